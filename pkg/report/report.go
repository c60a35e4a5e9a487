// Package report assembles the Markdown analysis document from aggregate
// statistics and the per-exchange renderings of the active profile. Output
// is fully deterministic: the same log always produces the same bytes.
package report

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/agenttap/agenttap/pkg/profile"
	"github.com/agenttap/agenttap/pkg/render"
	"github.com/agenttap/agenttap/pkg/stats"
	"github.com/agenttap/agenttap/pkg/traffic"
)

const (
	redactionMarker     = "[REDACTED]"
	redactionKeepPrefix = 20
)

// RedactHeaders returns a copy of headers with values of redacted names
// (matched case-insensitively) replaced. Long values keep their first 20
// characters ahead of the marker so token prefixes stay identifiable;
// short values are replaced wholesale. Redacted headers are never dropped.
func RedactHeaders(headers map[string]string, redacted map[string]bool) map[string]string {
	out := make(map[string]string, len(headers))
	for k, v := range headers {
		switch {
		case !redacted[strings.ToLower(k)]:
			out[k] = v
		case len(v) > redactionKeepPrefix:
			out[k] = v[:redactionKeepPrefix] + "..." + redactionMarker
		default:
			out[k] = redactionMarker
		}
	}
	return out
}

// Assemble builds the complete report document.
func Assemble(s *stats.Statistics, exchanges []traffic.Exchange, sourceLabel string, p profile.AnalysisProfile) string {
	var lines []string

	lines = append(lines,
		"# "+p.ReportTitle,
		"",
		fmt.Sprintf("**Source:** `%s`", sourceLabel),
		fmt.Sprintf("**Total requests:** %d", s.TotalRequests),
		fmt.Sprintf("**Capture duration:** %ss", strconv.FormatFloat(s.DurationSeconds, 'f', -1, 64)),
		fmt.Sprintf("**Total request payload:** %s bytes", render.Commas(s.TotalReqBytes)),
		fmt.Sprintf("**Total response payload:** %s bytes", render.Commas(s.TotalRespBytes)),
		"")

	lines = append(lines,
		"## Endpoints",
		"",
		"| Endpoint | Methods | Count |",
		"|----------|---------|-------|")
	for _, e := range s.EndpointCounts {
		methods := strings.Join(s.EndpointMethods[e.Key], ", ")
		lines = append(lines, fmt.Sprintf("| `%s` | %s | %d |", e.Key, methods, e.Count))
	}
	lines = append(lines, "")

	lines = append(lines,
		"## HTTP Methods",
		"",
		"| Method | Count |",
		"|--------|-------|")
	for _, e := range s.MethodCounts {
		lines = append(lines, fmt.Sprintf("| %s | %d |", e.Key, e.Count))
	}
	lines = append(lines, "")

	lines = append(lines,
		"## Response Status Codes",
		"",
		"| Status | Count |",
		"|--------|-------|")
	for _, e := range s.StatusCounts {
		lines = append(lines, fmt.Sprintf("| %s | %d |", e.Key, e.Count))
	}
	lines = append(lines, "")

	if len(s.RequestKeyCounts) > 0 {
		lines = append(lines, keyStructureSection("Request Payload Structure (Top Keys)", s.RequestKeyCounts, s.RequestKeyTypes)...)
	}
	if len(s.ResponseKeyCounts) > 0 {
		lines = append(lines, keyStructureSection("Response Payload Structure (Top Keys)", s.ResponseKeyCounts, s.ResponseKeyTypes)...)
	}

	lines = append(lines, assembleConversations(exchanges, p))

	return strings.Join(lines, "\n")
}

func keyStructureSection(title string, counts []stats.Entry, types map[string][]string) []string {
	lines := []string{
		"## " + title,
		"",
		"| Key Path | Type | Occurrences |",
		"|----------|------|-------------|",
	}
	for _, e := range counts {
		lines = append(lines, fmt.Sprintf("| `%s` | %s | %d |", e.Key, strings.Join(types[e.Key], ", "), e.Count))
	}
	return append(lines, "")
}

// assembleConversations renders one section per exchange in original log
// order: timestamp, redacted headers, and the profile's body renderings.
func assembleConversations(exchanges []traffic.Exchange, p profile.AnalysisProfile) string {
	lines := []string{"## Full Conversation Log", ""}

	for i, e := range exchanges {
		method := e.Request.Method
		if method == "" {
			method = "?"
		}
		url := e.Request.URL
		if url == "" {
			url = "?"
		}
		status := "?"
		statusCode := 0
		if e.Response.StatusCode != nil {
			statusCode = *e.Response.StatusCode
			status = strconv.Itoa(statusCode)
		}

		lines = append(lines,
			fmt.Sprintf("### Request %d: `%s %s` → %s", i+1, method, url, status),
			fmt.Sprintf("**Time:** %s UTC", formatTimestamp(e.Timestamp)),
			"")

		lines = append(lines, headerBlock("Request Headers", RedactHeaders(e.Request.Headers, p.RedactedHeaders))...)
		lines = append(lines,
			"#### Request Body",
			"",
			p.Renderer.RenderRequestBody(e.Request.Body),
			"")
		lines = append(lines, headerBlock("Response Headers", RedactHeaders(e.Response.Headers, p.RedactedHeaders))...)
		lines = append(lines,
			"#### Response Body",
			"",
			p.Renderer.RenderResponseBody(e.Response.Body, statusCode),
			"",
			"---",
			"")
	}

	return strings.Join(lines, "\n")
}

// formatTimestamp renders epoch seconds with millisecond precision, "?"
// when absent.
func formatTimestamp(ts float64) string {
	if ts == 0 {
		return "?"
	}
	sec := int64(ts)
	nsec := int64((ts - float64(sec)) * 1e9)
	return time.Unix(sec, nsec).UTC().Format("15:04:05.000")
}

// headerBlock renders headers inside a collapsible block, sorted by name
// for deterministic output.
func headerBlock(title string, headers map[string]string) []string {
	names := make([]string, 0, len(headers))
	for name := range headers {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := []string{
		"<details>",
		fmt.Sprintf("<summary><b>%s</b></summary>", title),
		"",
		"```",
	}
	for _, name := range names {
		lines = append(lines, fmt.Sprintf("%s: %s", name, headers[name]))
	}
	return append(lines, "```", "</details>", "")
}
