// Package sse decodes server-sent-event streams captured from agent
// backends into discrete events with parsed data payloads.
package sse

import (
	"encoding/json"
	"strings"

	"github.com/tidwall/gjson"
)

// Event is one decoded block of an event stream.
type Event struct {
	// Type is the block's event type; empty when the block had no
	// "event:" line.
	Type string
	// Data is the block's payload: a decoded JSON value when the joined
	// data lines form valid JSON, the raw string otherwise, or nil when
	// the block carried no data.
	Data any
}

// Parse splits raw event-stream text into events. Blocks are delimited by
// blank lines; within a block the last "event:" line wins and "data:" lines
// are joined with newlines in order. Blocks with neither an event type nor
// data are dropped. Parse accepts any input and never fails.
func Parse(raw string) []Event {
	var events []Event
	for _, block := range strings.Split(raw, "\n\n") {
		block = strings.TrimSpace(block)
		if block == "" {
			continue
		}

		eventType := ""
		var dataLines []string
		for _, line := range strings.Split(block, "\n") {
			switch {
			case strings.HasPrefix(line, "event: "):
				eventType = line[len("event: "):]
			case strings.HasPrefix(line, "data: "):
				dataLines = append(dataLines, line[len("data: "):])
			case strings.HasPrefix(line, "data:"):
				dataLines = append(dataLines, line[len("data:"):])
			}
		}
		if eventType == "" && len(dataLines) == 0 {
			continue
		}

		var data any
		if dataStr := strings.Join(dataLines, "\n"); dataStr != "" {
			data = decodeData(dataStr)
		}
		events = append(events, Event{Type: eventType, Data: data})
	}
	return events
}

// decodeData returns the parsed JSON value when dataStr is valid JSON and
// the raw string otherwise. Upstream producers occasionally emit partial or
// non-JSON payloads, so decode failures degrade instead of erroring.
// Numbers decode as json.Number so integer and floating-point fields stay
// distinguishable downstream.
func decodeData(dataStr string) any {
	if !gjson.Valid(dataStr) {
		return dataStr
	}
	dec := json.NewDecoder(strings.NewReader(dataStr))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return dataStr
	}
	return v
}
