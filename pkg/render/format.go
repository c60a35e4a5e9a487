package render

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"unicode/utf8"
)

// noBodyMarker is emitted for absent bodies.
const noBodyMarker = "*(no body)*"

// Commas formats an integer with thousands separators.
func Commas(n int) string {
	return Commas64(int64(n))
}

// Commas64 formats a 64-bit integer with thousands separators.
func Commas64(n int64) string {
	s := strconv.FormatInt(n, 10)
	neg := false
	if strings.HasPrefix(s, "-") {
		neg = true
		s = s[1:]
	}
	var b strings.Builder
	lead := len(s) % 3
	if lead > 0 {
		b.WriteString(s[:lead])
	}
	for i := lead; i < len(s); i += 3 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		b.WriteString(s[i : i+3])
	}
	if neg {
		return "-" + b.String()
	}
	return b.String()
}

// truncate shortens s to max runes, appending an ellipsis marker when
// anything was cut.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	return string([]rune(s)[:max]) + "..."
}

// rawBodyBlock wraps raw body text in a collapsible block with its byte
// length.
func rawBodyBlock(text string) string {
	return fmt.Sprintf("<details>\n<summary><b>Body</b> (%s bytes)</summary>\n\n```\n%s\n```\n</details>",
		Commas(len(text)), text)
}

// jsonBodyBlock wraps a pretty-printed structured body in a collapsible
// block.
func jsonBodyBlock(v any) string {
	formatted, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return rawBodyBlock(fmt.Sprintf("%v", v))
	}
	return fmt.Sprintf("<details>\n<summary><b>Body</b> (%s bytes)</summary>\n\n```json\n%s\n```\n</details>",
		Commas(len(formatted)), formatted)
}

// jsonText serializes a value compactly, falling back to fmt for values
// that cannot marshal.
func jsonText(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%v", v)
	}
	return string(data)
}

// scalarText renders a scalar config value for inline code spans.
func scalarText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case nil:
		return "null"
	default:
		return jsonText(t)
	}
}

// getString returns the string under key, or "" when absent or not a
// string.
func getString(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}

// getStringDefault returns the string under key, or def when the key is
// absent entirely.
func getStringDefault(m map[string]any, key, def string) string {
	v, ok := m[key]
	if !ok {
		return def
	}
	s, _ := v.(string)
	return s
}

// getInt returns the integer under key, zero when absent or not numeric.
func getInt(m map[string]any, key string) int64 {
	if m == nil {
		return 0
	}
	switch t := m[key].(type) {
	case json.Number:
		n, _ := t.Int64()
		return n
	case float64:
		return int64(t)
	default:
		return 0
	}
}
