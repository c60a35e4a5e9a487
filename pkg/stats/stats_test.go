package stats

import (
	"encoding/json"
	"reflect"
	"testing"

	"github.com/agenttap/agenttap/pkg/traffic"
)

func intPtr(v int) *int { return &v }

func TestAnalyzeEmpty(t *testing.T) {
	s := Analyze(nil)
	if s.TotalRequests != 0 {
		t.Errorf("TotalRequests = %d, want 0", s.TotalRequests)
	}
	if s.DurationSeconds != 0 {
		t.Errorf("DurationSeconds = %v, want 0", s.DurationSeconds)
	}
	if len(s.EndpointCounts) != 0 || len(s.MethodCounts) != 0 || len(s.StatusCounts) != 0 {
		t.Errorf("expected empty count collections, got %+v", s)
	}
	if len(s.RequestKeyCounts) != 0 || len(s.ResponseKeyCounts) != 0 {
		t.Errorf("expected empty key collections")
	}
}

func TestAnalyzeEndpointsAndMethods(t *testing.T) {
	exchanges := []traffic.Exchange{
		{
			Timestamp: 100.0,
			Request:   traffic.Request{Method: "POST", URL: "https://api.openai.com/v1/responses"},
			Response:  traffic.Response{StatusCode: intPtr(200)},
		},
		{
			Timestamp: 112.5,
			Request:   traffic.Request{Method: "GET", URL: "https://api.openai.com/v1/responses"},
			Response:  traffic.Response{StatusCode: intPtr(404)},
		},
		{
			Request:  traffic.Request{Method: "GET", URL: "https://chatgpt.com"},
			Response: traffic.Response{},
		},
	}

	s := Analyze(exchanges)

	if s.TotalRequests != 3 {
		t.Errorf("TotalRequests = %d, want 3", s.TotalRequests)
	}
	if s.DurationSeconds != 12.5 {
		t.Errorf("DurationSeconds = %v, want 12.5", s.DurationSeconds)
	}

	wantEndpoints := []Entry{
		{Key: "/v1/responses", Count: 2},
		{Key: "/", Count: 1},
	}
	if !reflect.DeepEqual(s.EndpointCounts, wantEndpoints) {
		t.Errorf("EndpointCounts = %+v, want %+v", s.EndpointCounts, wantEndpoints)
	}

	wantMethods := map[string][]string{
		"/v1/responses": {"GET", "POST"},
		"/":             {"GET"},
	}
	if !reflect.DeepEqual(s.EndpointMethods, wantMethods) {
		t.Errorf("EndpointMethods = %+v, want %+v", s.EndpointMethods, wantMethods)
	}

	// Status absent on the third exchange: only two counted.
	wantStatuses := []Entry{{Key: "200", Count: 1}, {Key: "404", Count: 1}}
	if !reflect.DeepEqual(s.StatusCounts, wantStatuses) {
		t.Errorf("StatusCounts = %+v, want %+v", s.StatusCounts, wantStatuses)
	}
}

func TestAnalyzeSingleTimestampHasZeroDuration(t *testing.T) {
	s := Analyze([]traffic.Exchange{{Timestamp: 42, Request: traffic.Request{Method: "GET", URL: "/x"}}})
	if s.DurationSeconds != 0 {
		t.Errorf("DurationSeconds = %v, want 0", s.DurationSeconds)
	}
}

func TestAnalyzeKeyPaths(t *testing.T) {
	body := map[string]any{
		"model": "gpt-4o",
		"input": []any{
			map[string]any{"role": "user"},
			map[string]any{"ignored": true},
		},
		"config": map[string]any{
			"stream": true,
			"count":  json.Number("3"),
			"temp":   json.Number("0.5"),
		},
	}
	exchanges := []traffic.Exchange{{
		Request:  traffic.Request{Method: "POST", URL: "/v1/responses", Body: body},
		Response: traffic.Response{StatusCode: intPtr(200), Body: map[string]any{"ok": nil}},
	}}

	s := Analyze(exchanges)

	counts := make(map[string]int)
	for _, e := range s.RequestKeyCounts {
		counts[e.Key] = e.Count
	}
	for _, key := range []string{"model", "input", "input[].role", "config", "config.stream", "config.count", "config.temp"} {
		if counts[key] != 1 {
			t.Errorf("key %q count = %d, want 1", key, counts[key])
		}
	}
	// Only the first array element is walked.
	if _, ok := counts["input[].ignored"]; ok {
		t.Error("second array element should not be visited")
	}

	typeChecks := map[string]string{
		"model":         "string",
		"input":         "array",
		"config":        "object",
		"config.stream": "bool",
		"config.count":  "int",
		"config.temp":   "float",
	}
	for key, want := range typeChecks {
		got := s.RequestKeyTypes[key]
		if len(got) != 1 || got[0] != want {
			t.Errorf("types[%q] = %v, want [%s]", key, got, want)
		}
	}

	if got := s.ResponseKeyTypes["ok"]; len(got) != 1 || got[0] != "null" {
		t.Errorf("response types[ok] = %v, want [null]", got)
	}
}

func TestAnalyzeByteTotals(t *testing.T) {
	structured := map[string]any{"a": json.Number("1")}
	serialized, _ := json.Marshal(structured)

	exchanges := []traffic.Exchange{{
		Request:  traffic.Request{Method: "POST", URL: "/x", Body: structured},
		Response: traffic.Response{StatusCode: intPtr(200), Body: "event: done\n\n"},
	}}
	s := Analyze(exchanges)

	if s.TotalReqBytes != len(serialized) {
		t.Errorf("TotalReqBytes = %d, want %d", s.TotalReqBytes, len(serialized))
	}
	if s.TotalRespBytes != len("event: done\n\n") {
		t.Errorf("TotalRespBytes = %d, want %d", s.TotalRespBytes, len("event: done\n\n"))
	}
}

func TestCounterMostCommon(t *testing.T) {
	c := NewCounter()
	for _, k := range []string{"b", "a", "a", "c", "b"} {
		c.Add(k)
	}

	got := c.MostCommon(0)
	// b and a tie at 2; b was seen first.
	want := []Entry{{Key: "b", Count: 2}, {Key: "a", Count: 2}, {Key: "c", Count: 1}}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("MostCommon(0) = %+v, want %+v", got, want)
	}

	if top := c.MostCommon(2); len(top) != 2 || top[0].Key != "b" {
		t.Errorf("MostCommon(2) = %+v", top)
	}
}

func TestTypeName(t *testing.T) {
	tests := []struct {
		value    any
		expected string
	}{
		{nil, "null"},
		{true, "bool"},
		{json.Number("7"), "int"},
		{json.Number("7.5"), "float"},
		{3.25, "float"},
		{"x", "string"},
		{[]any{}, "array"},
		{map[string]any{}, "object"},
	}
	for _, tt := range tests {
		if got := TypeName(tt.value); got != tt.expected {
			t.Errorf("TypeName(%#v) = %q, want %q", tt.value, got, tt.expected)
		}
	}
}
