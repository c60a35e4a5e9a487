package render

import (
	"strings"
	"testing"
)

func TestRenderRequestBody(t *testing.T) {
	r := OpenAIResponses{}

	t.Run("Absent body", func(t *testing.T) {
		if got := r.RenderRequestBody(nil); got != "*(no body)*" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Raw text body", func(t *testing.T) {
		got := r.RenderRequestBody("hello world")
		if !strings.Contains(got, "<details>") {
			t.Errorf("expected collapsible block, got %q", got)
		}
		if !strings.Contains(got, "11 bytes") {
			t.Errorf("expected byte length, got %q", got)
		}
		if !strings.Contains(got, "hello world") {
			t.Errorf("expected raw content, got %q", got)
		}
	})

	t.Run("Structured body", func(t *testing.T) {
		body := map[string]any{
			"model":               "gpt-4o",
			"stream":              true,
			"tool_choice":         "auto",
			"parallel_tool_calls": false,
			"instructions":        strings.Repeat("i", 600),
			"reasoning":           map[string]any{"effort": "high"},
			"input": []any{
				map[string]any{"role": "user", "content": "short question"},
				map[string]any{
					"role": "assistant",
					"type": "message",
					"content": []any{
						map[string]any{"type": "output_text", "text": strings.Repeat("long answer ", 20)},
					},
				},
			},
			"tools": []any{
				map[string]any{"name": "shell", "type": "function"},
				map[string]any{"type": "web_search"},
			},
		}
		got := r.RenderRequestBody(body)

		for _, want := range []string{
			"**Model:** `gpt-4o`",
			"**stream:** `true`",
			"**tool_choice:** `auto`",
			"**parallel_tool_calls:** `false`",
			"**reasoning:** `high`",
			"System Instructions</b> (600 chars)",
			"**Input Messages** (2 items):",
			"| 0 | user | - | short question |",
			"Message 1 (assistant) full content",
			"- `shell` (function)",
			"- `(unnamed)` (web_search)",
		} {
			if !strings.Contains(got, want) {
				t.Errorf("missing %q in:\n%s", want, got)
			}
		}

		// Instructions preview cut at the budget with an ellipsis.
		if !strings.Contains(got, strings.Repeat("i", 500)+"...") {
			t.Error("instructions preview not truncated at 500 chars")
		}
		if strings.Contains(got, strings.Repeat("i", 501)) {
			t.Error("instructions preview exceeds budget")
		}
	})

	t.Run("Preview truncation", func(t *testing.T) {
		body := map[string]any{
			"model": "m",
			"input": []any{
				map[string]any{"role": "user", "content": strings.Repeat("x", 100)},
			},
		}
		got := r.RenderRequestBody(body)
		if !strings.Contains(got, strings.Repeat("x", 80)+"...") {
			t.Error("content preview not truncated at 80 chars")
		}
	})
}

func TestRenderResponseBody(t *testing.T) {
	r := OpenAIResponses{}

	t.Run("Absent body", func(t *testing.T) {
		if got := r.RenderResponseBody(nil, 200); got != "*(no body)*" {
			t.Errorf("got %q", got)
		}
	})

	t.Run("Structured non-stream body", func(t *testing.T) {
		got := r.RenderResponseBody(map[string]any{"id": "resp_1"}, 200)
		if !strings.Contains(got, "```json") {
			t.Errorf("expected pretty-printed JSON block, got %q", got)
		}
		if !strings.Contains(got, `"id": "resp_1"`) {
			t.Errorf("expected body content, got %q", got)
		}
	})

	t.Run("Non-stream text body", func(t *testing.T) {
		got := r.RenderResponseBody("plain text", 500)
		if strings.Contains(got, "SSE Stream") {
			t.Errorf("plain text should not render as a stream: %q", got)
		}
		if !strings.Contains(got, "plain text") {
			t.Errorf("expected raw content, got %q", got)
		}
	})
}

func TestRenderResponseBodyStream(t *testing.T) {
	r := OpenAIResponses{}
	body := strings.Join([]string{
		"event: response.created",
		`data: {"type":"response.created"}`,
		"",
		"event: response.output_text.delta",
		`data: {"delta":"He"}`,
		"",
		"event: response.reasoning_summary_text.delta",
		`data: {"delta":"thinking"}`,
		"",
		"event: response.output_text.delta",
		`data: {"delta":"llo"}`,
		"",
		"event: response.function_call_arguments.done",
		`data: {"name":"shell","call_id":"call_1","arguments":"{\"cmd\":\"ls\"}"}`,
		"",
		"event: response.completed",
		`data: {"response":{"usage":{"input_tokens":1200,"output_tokens":34,"total_tokens":1234,"input_tokens_details":{"cached_tokens":1000},"output_tokens_details":{"reasoning_tokens":8}}}}`,
		"",
	}, "\n")

	got := r.RenderResponseBody(body, 200)

	// Text deltas concatenate in stream order despite interleaving.
	if !strings.Contains(got, "\nHello\n") {
		t.Errorf("assembled output text missing, got:\n%s", got)
	}
	if !strings.Contains(got, "thinking") {
		t.Errorf("reasoning summary missing")
	}
	for _, want := range []string{
		"| `response.output_text.delta` | 2 |",
		"| `response.created` | 1 |",
		"**Tool Calls** (1):",
		"- `shell` (call_id: `call_1`)",
		"**Usage:** 1,200 input | 34 output | 1,234 total (1,000 cached, 8 reasoning)",
	} {
		if !strings.Contains(got, want) {
			t.Errorf("missing %q in:\n%s", want, got)
		}
	}
}

func TestRenderResponseBodyStreamTieOrder(t *testing.T) {
	r := OpenAIResponses{}
	// a and b each occur once; a was encountered first.
	body := "event: a\ndata: {}\n\nevent: b\ndata: {}\n\n"
	got := r.RenderResponseBody(body, 200)
	ia := strings.Index(got, "| `a` |")
	ib := strings.Index(got, "| `b` |")
	if ia < 0 || ib < 0 || ia > ib {
		t.Errorf("tie order wrong: a at %d, b at %d:\n%s", ia, ib, got)
	}
}

func TestCommas(t *testing.T) {
	tests := []struct {
		n        int
		expected string
	}{
		{0, "0"},
		{999, "999"},
		{1000, "1,000"},
		{1234567, "1,234,567"},
		{-4200, "-4,200"},
	}
	for _, tt := range tests {
		if got := Commas(tt.n); got != tt.expected {
			t.Errorf("Commas(%d) = %q, want %q", tt.n, got, tt.expected)
		}
	}
}

func TestToolCallArgumentsTruncated(t *testing.T) {
	r := OpenAIResponses{}
	longArgs := strings.Repeat("a", 400)
	body := "event: response.function_call_arguments.done\n" +
		`data: {"name":"f","call_id":"c","arguments":"` + longArgs + `"}` + "\n\n"
	got := r.RenderResponseBody(body, 200)
	if !strings.Contains(got, strings.Repeat("a", 300)+"...") {
		t.Error("arguments preview not truncated at 300 chars")
	}
	if strings.Contains(got, strings.Repeat("a", 301)) {
		t.Error("arguments preview exceeds budget")
	}
}
