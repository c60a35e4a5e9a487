package profile

import (
	"errors"
	"fmt"
	"sort"
)

// ErrNotFound reports an unregistered target name.
var ErrNotFound = errors.New("unknown target")

// Target bundles both profiles of one backend target.
type Target struct {
	Capture  CaptureProfile
	Analysis AnalysisProfile
}

var registry = make(map[string]Target)

// Register adds a target under its name. Call from an init function in the
// target's file; later registrations under the same name replace earlier
// ones.
func Register(name string, t Target) {
	if t.Analysis.RedactedHeaders == nil {
		t.Analysis.RedactedHeaders = DefaultRedactedHeaders()
	}
	registry[name] = t
}

// ResolveCapture looks up a target's capture profile.
func ResolveCapture(name string) (CaptureProfile, error) {
	t, ok := registry[name]
	if !ok {
		return CaptureProfile{}, fmt.Errorf("%w: %q (known targets: %v)", ErrNotFound, name, Names())
	}
	return t.Capture, nil
}

// ResolveAnalysis looks up a target's analysis profile.
func ResolveAnalysis(name string) (AnalysisProfile, error) {
	t, ok := registry[name]
	if !ok {
		return AnalysisProfile{}, fmt.Errorf("%w: %q (known targets: %v)", ErrNotFound, name, Names())
	}
	return t.Analysis, nil
}

// Names lists registered target names, sorted.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
