package render

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/agenttap/agenttap/pkg/sse"
	"github.com/agenttap/agenttap/pkg/stats"
)

// Event types recognized in OpenAI Responses API streams.
const (
	eventOutputTextDelta    = "response.output_text.delta"
	eventReasoningTextDelta = "response.reasoning_summary_text.delta"
	eventFunctionCallDone   = "response.function_call_arguments.done"
	eventCompleted          = "response.completed"
)

// Layout budgets. These are the rendering contract other targets honor or
// deliberately override.
const (
	instructionsPreviewLimit = 500
	contentPreviewLimit      = 80
	fullContentThreshold     = 120
	argumentsPreviewLimit    = 300
)

// OpenAIResponses renders bodies in the OpenAI Responses API wire format:
// request bodies with model/config/instructions/input/tools sections, SSE
// response bodies with event breakdown, assembled output text, tool calls
// and token usage.
type OpenAIResponses struct{}

// RenderRequestBody implements BodyRenderer.
func (OpenAIResponses) RenderRequestBody(body any) string {
	switch t := body.(type) {
	case nil:
		return noBodyMarker
	case string:
		return rawBodyBlock(t)
	case map[string]any:
		return renderRequestObject(t)
	default:
		return rawBodyBlock(jsonText(t))
	}
}

func renderRequestObject(body map[string]any) string {
	var lines []string

	// Model and config fields.
	model := getStringDefault(body, "model", "unknown")
	configParts := []string{fmt.Sprintf("**Model:** `%s`", model)}
	for _, key := range []string{"stream", "tool_choice", "parallel_tool_calls", "store"} {
		if v, ok := body[key]; ok {
			configParts = append(configParts, fmt.Sprintf("**%s:** `%s`", key, scalarText(v)))
		}
	}
	if reasoning, ok := body["reasoning"].(map[string]any); ok && len(reasoning) > 0 {
		summary := getStringDefault(reasoning, "summary", getString(reasoning, "effort"))
		configParts = append(configParts, fmt.Sprintf("**reasoning:** `%s`", summary))
	}
	lines = append(lines, strings.Join(configParts, " | "), "")

	// System instructions.
	if instructions := getString(body, "instructions"); instructions != "" {
		lines = append(lines, fmt.Sprintf(
			"<details>\n<summary><b>System Instructions</b> (%s chars)</summary>\n\n```\n%s\n```\n</details>",
			Commas(utf8.RuneCountInString(instructions)),
			truncate(instructions, instructionsPreviewLimit)), "")
	}

	// Input messages.
	if input, ok := body["input"].([]any); ok && len(input) > 0 {
		lines = append(lines,
			fmt.Sprintf("**Input Messages** (%d items):", len(input)),
			"",
			"| # | Role | Type | Content Preview |",
			"|---|------|------|-----------------|")
		for i, item := range input {
			msg, _ := item.(map[string]any)
			lines = append(lines, fmt.Sprintf("| %d | %s | %s | %s |",
				i,
				getStringDefault(msg, "role", "-"),
				getStringDefault(msg, "type", "-"),
				contentPreview(msg["content"])))
		}
		lines = append(lines, "")

		for i, item := range input {
			msg, _ := item.(map[string]any)
			full := contentFull(msg["content"])
			if utf8.RuneCountInString(full) > fullContentThreshold {
				lines = append(lines, fmt.Sprintf(
					"<details>\n<summary>Message %d (%s) full content (%s chars)</summary>\n\n```\n%s\n```\n</details>",
					i,
					getStringDefault(msg, "role", "-"),
					Commas(utf8.RuneCountInString(full)),
					full), "")
			}
		}
	}

	// Tools.
	if tools, ok := body["tools"].([]any); ok && len(tools) > 0 {
		items := make([]string, 0, len(tools))
		for _, item := range tools {
			tool, _ := item.(map[string]any)
			name := getString(tool, "name")
			if name == "" {
				name = "(unnamed)"
			}
			items = append(items, fmt.Sprintf("- `%s` (%s)", name, getStringDefault(tool, "type", "function")))
		}
		lines = append(lines, fmt.Sprintf(
			"<details>\n<summary><b>Tools</b> (%d defined)</summary>\n\n%s\n</details>",
			len(tools), strings.Join(items, "\n")), "")
	}

	return strings.Join(lines, "\n")
}

// RenderResponseBody implements BodyRenderer. The status code is unused for
// now; error responses render the same as any other non-stream body.
func (OpenAIResponses) RenderResponseBody(body any, statusCode int) string {
	switch t := body.(type) {
	case nil:
		return noBodyMarker
	case map[string]any:
		return jsonBodyBlock(t)
	case string:
		if !strings.HasPrefix(strings.TrimLeftFunc(t, unicode.IsSpace), "event:") {
			return rawBodyBlock(t)
		}
		return renderStream(t)
	default:
		return rawBodyBlock(jsonText(t))
	}
}

type toolCall struct {
	name      string
	callID    string
	arguments string
}

func renderStream(body string) string {
	events := sse.Parse(body)

	typeCounts := stats.NewCounter()
	for _, e := range events {
		typeCounts.Add(e.Type)
	}

	var lines []string
	lines = append(lines,
		fmt.Sprintf("**SSE Stream** (%s bytes, %d events)", Commas(len(body)), len(events)),
		"",
		"| Event Type | Count |",
		"|------------|-------|")
	for _, entry := range typeCounts.MostCommon(0) {
		lines = append(lines, fmt.Sprintf("| `%s` | %d |", entry.Key, entry.Count))
	}
	lines = append(lines, "")

	var outputParts, reasoningParts []string
	var toolCalls []toolCall
	var usage map[string]any

	for _, e := range events {
		data, ok := e.Data.(map[string]any)
		if !ok {
			continue
		}
		switch e.Type {
		case eventOutputTextDelta:
			outputParts = append(outputParts, getString(data, "delta"))
		case eventReasoningTextDelta:
			reasoningParts = append(reasoningParts, getString(data, "delta"))
		case eventFunctionCallDone:
			toolCalls = append(toolCalls, toolCall{
				name:      getStringDefault(data, "name", "(unnamed)"),
				callID:    getString(data, "call_id"),
				arguments: getString(data, "arguments"),
			})
		case eventCompleted:
			if resp, ok := data["response"].(map[string]any); ok {
				usage, _ = resp["usage"].(map[string]any)
			}
		}
	}

	if len(outputParts) > 0 {
		text := strings.Join(outputParts, "")
		lines = append(lines, fmt.Sprintf(
			"<details>\n<summary><b>Output Text</b> (%s chars)</summary>\n\n```\n%s\n```\n</details>",
			Commas(utf8.RuneCountInString(text)), text), "")
	}

	if len(reasoningParts) > 0 {
		text := strings.Join(reasoningParts, "")
		lines = append(lines, fmt.Sprintf(
			"<details>\n<summary><b>Reasoning Summary</b> (%s chars)</summary>\n\n```\n%s\n```\n</details>",
			Commas(utf8.RuneCountInString(text)), text), "")
	}

	if len(toolCalls) > 0 {
		lines = append(lines, fmt.Sprintf("**Tool Calls** (%d):", len(toolCalls)), "")
		for _, tc := range toolCalls {
			lines = append(lines, fmt.Sprintf("- `%s` (call_id: `%s`)", tc.name, tc.callID))
			if tc.arguments != "" {
				lines = append(lines, fmt.Sprintf("  ```\n  %s\n  ```", truncate(tc.arguments, argumentsPreviewLimit)))
			}
		}
		lines = append(lines, "")
	}

	if usage != nil {
		lines = append(lines, usageLine(usage), "")
	}

	return strings.Join(lines, "\n")
}

func usageLine(usage map[string]any) string {
	parts := []string{
		Commas64(getInt(usage, "input_tokens")) + " input",
		Commas64(getInt(usage, "output_tokens")) + " output",
		Commas64(getInt(usage, "total_tokens")) + " total",
	}
	inputDetails, _ := usage["input_tokens_details"].(map[string]any)
	outputDetails, _ := usage["output_tokens_details"].(map[string]any)

	var detailParts []string
	if cached := getInt(inputDetails, "cached_tokens"); cached != 0 {
		detailParts = append(detailParts, Commas64(cached)+" cached")
	}
	if reasoning := getInt(outputDetails, "reasoning_tokens"); reasoning != 0 {
		detailParts = append(detailParts, Commas64(reasoning)+" reasoning")
	}

	line := "**Usage:** " + strings.Join(parts, " | ")
	if len(detailParts) > 0 {
		line += fmt.Sprintf(" (%s)", strings.Join(detailParts, ", "))
	}
	return line
}

// contentPreview extracts a short single-line preview from message content.
// Content is either a plain string or a list of content parts exposing a
// "text" field.
func contentPreview(content any) string {
	if content == nil {
		return "*(none)*"
	}
	text := strings.TrimSpace(strings.ReplaceAll(contentText(content, " "), "\n", " "))
	if text == "" {
		return "*(empty)*"
	}
	return truncate(text, contentPreviewLimit)
}

// contentFull extracts the full text from message content, parts joined
// with newlines.
func contentFull(content any) string {
	if content == nil {
		return ""
	}
	return contentText(content, "\n")
}

func contentText(content any, sep string) string {
	switch t := content.(type) {
	case string:
		return t
	case []any:
		parts := make([]string, 0, len(t))
		for _, item := range t {
			if m, ok := item.(map[string]any); ok {
				parts = append(parts, getString(m, "text"))
			}
		}
		return strings.Join(parts, sep)
	default:
		return jsonText(t)
	}
}
