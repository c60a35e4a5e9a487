// Package traffic defines the captured exchange records and the durable
// JSONL log they are stored in.
package traffic

// LogName is the file name of the durable traffic log inside the capture
// output directory.
const LogName = "traffic.jsonl"

// Exchange is one logged request/response pair. Entries are immutable once
// logged; the analyzer never mutates them.
type Exchange struct {
	// Timestamp is seconds since epoch. Zero means the capture did not
	// record a timestamp.
	Timestamp float64  `json:"timestamp,omitempty"`
	Request   Request  `json:"request"`
	Response  Response `json:"response"`
}

// Request holds the client side of an exchange.
type Request struct {
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Headers map[string]string `json:"headers,omitempty"`
	// Body is a decoded JSON value, a raw string, or nil when the request
	// carried no body.
	Body any `json:"body,omitempty"`
}

// Response holds the upstream side of an exchange.
type Response struct {
	// StatusCode is nil when no response was observed.
	StatusCode *int              `json:"status_code"`
	Headers    map[string]string `json:"headers,omitempty"`
	Body       any               `json:"body,omitempty"`
}
