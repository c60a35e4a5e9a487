// Package profile defines per-target capture and analysis configuration
// and the registry the CLI resolves targets from. Adding support for a new
// backend target means registering its profiles here; the generic capture
// and analysis machinery never changes.
package profile

import (
	"strings"

	"github.com/agenttap/agenttap/pkg/render"
)

// ProxyConfig describes one reverse-proxy listener.
type ProxyConfig struct {
	// ListenPort is the local port the listener binds on.
	ListenPort int
	// UpstreamURL is the origin traffic is forwarded to.
	UpstreamURL string
	// Purpose is a human-readable label shown in the capture banner.
	Purpose string
}

// CaptureProfile describes how to set up traffic capture for a target.
// Profiles are built once at startup and read-only afterwards.
type CaptureProfile struct {
	Name    string
	Proxies []ProxyConfig
	// UpstreamProxy is an optional proxy URL for upstream internet
	// access.
	UpstreamProxy string
	// EnvOverrides are applied to the target command's environment.
	EnvOverrides map[string]string
	// ManualSteps are configuration steps the user must do by hand.
	ManualSteps []string
	// OutputDir is where the traffic log is written.
	OutputDir string
}

// AnalysisProfile describes how to analyze and render a target's traffic.
type AnalysisProfile struct {
	Name        string
	ReportTitle string
	Renderer    render.BodyRenderer
	// RedactedHeaders holds lowercase header names whose values are
	// redacted in reports.
	RedactedHeaders map[string]bool
}

// RedactionSet builds a case-insensitive header-name set.
func RedactionSet(names ...string) map[string]bool {
	set := make(map[string]bool, len(names))
	for _, n := range names {
		set[strings.ToLower(n)] = true
	}
	return set
}

// DefaultRedactedHeaders is the redaction set applied when a profile does
// not declare its own.
func DefaultRedactedHeaders() map[string]bool {
	return RedactionSet("authorization", "cookie", "set-cookie")
}
