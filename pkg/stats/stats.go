// Package stats computes aggregate statistics over a captured exchange
// sequence: endpoint, method and status counts, payload key structure, and
// byte totals. The aggregation is a pure fold and is recomputed in full on
// every analysis run.
package stats

import (
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"sort"
	"strconv"

	"github.com/agenttap/agenttap/pkg/traffic"
)

// topKeyPaths caps the payload structure tables so reports stay bounded.
const topKeyPaths = 30

// Statistics is the aggregate view of one traffic log.
type Statistics struct {
	TotalRequests   int
	DurationSeconds float64

	EndpointCounts  []Entry
	MethodCounts    []Entry
	StatusCounts    []Entry
	EndpointMethods map[string][]string // sorted method names per endpoint

	RequestKeyCounts  []Entry
	ResponseKeyCounts []Entry
	RequestKeyTypes   map[string][]string // sorted type labels per key path
	ResponseKeyTypes  map[string][]string

	TotalReqBytes  int
	TotalRespBytes int
}

// Analyze folds the exchange sequence into aggregate statistics.
func Analyze(exchanges []traffic.Exchange) *Statistics {
	endpoints := NewCounter()
	methods := NewCounter()
	statuses := NewCounter()
	reqKeys := NewCounter()
	respKeys := NewCounter()
	reqTypes := make(map[string]map[string]bool)
	respTypes := make(map[string]map[string]bool)
	endpointMethods := make(map[string]map[string]bool)
	var timestamps []float64
	totalReqBytes := 0
	totalRespBytes := 0

	for _, e := range exchanges {
		endpoint := endpointKey(e.Request.URL)
		method := e.Request.Method
		if method == "" {
			method = "?"
		}

		endpoints.Add(endpoint)
		methods.Add(method)
		if endpointMethods[endpoint] == nil {
			endpointMethods[endpoint] = make(map[string]bool)
		}
		endpointMethods[endpoint][method] = true

		if e.Response.StatusCode != nil {
			statuses.Add(strconv.Itoa(*e.Response.StatusCode))
		}
		if e.Timestamp != 0 {
			timestamps = append(timestamps, e.Timestamp)
		}

		walkKeys(e.Request.Body, "", reqKeys, reqTypes)
		totalReqBytes += bodySize(e.Request.Body)
		walkKeys(e.Response.Body, "", respKeys, respTypes)
		totalRespBytes += bodySize(e.Response.Body)
	}

	duration := 0.0
	if len(timestamps) >= 2 {
		min, max := timestamps[0], timestamps[0]
		for _, ts := range timestamps[1:] {
			if ts < min {
				min = ts
			}
			if ts > max {
				max = ts
			}
		}
		duration = math.Round((max-min)*10) / 10
	}

	return &Statistics{
		TotalRequests:     len(exchanges),
		DurationSeconds:   duration,
		EndpointCounts:    endpoints.MostCommon(0),
		MethodCounts:      methods.MostCommon(0),
		StatusCounts:      statuses.MostCommon(0),
		EndpointMethods:   sortedSets(endpointMethods),
		RequestKeyCounts:  reqKeys.MostCommon(topKeyPaths),
		ResponseKeyCounts: respKeys.MostCommon(topKeyPaths),
		RequestKeyTypes:   sortedSets(reqTypes),
		ResponseKeyTypes:  sortedSets(respTypes),
		TotalReqBytes:     totalReqBytes,
		TotalRespBytes:    totalRespBytes,
	}
}

// endpointKey reduces a request URL to its path component, defaulting to "/".
func endpointKey(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Path == "" {
		return "/"
	}
	return u.Path
}

// TypeName returns the label used in structure tables for a decoded value.
func TypeName(v any) string {
	switch t := v.(type) {
	case nil:
		return "null"
	case bool:
		return "bool"
	case json.Number:
		if _, err := t.Int64(); err == nil {
			return "int"
		}
		return "float"
	case float64:
		return "float"
	case string:
		return "string"
	case []any:
		return "array"
	case map[string]any:
		return "object"
	default:
		return fmt.Sprintf("%T", v)
	}
}

// walkKeys recursively visits key paths in a structured body. Object keys
// append ".key"; a non-empty array contributes only its first element,
// walked under a "[]" suffix. Only map-rooted bodies are walked; raw-text
// bodies carry no key structure.
func walkKeys(v any, prefix string, counts *Counter, types map[string]map[string]bool) {
	switch t := v.(type) {
	case map[string]any:
		keys := make([]string, 0, len(t))
		for k := range t {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		for _, k := range keys {
			full := k
			if prefix != "" {
				full = prefix + "." + k
			}
			counts.Add(full)
			if types[full] == nil {
				types[full] = make(map[string]bool)
			}
			types[full][TypeName(t[k])] = true
			walkKeys(t[k], full, counts, types)
		}
	case []any:
		if len(t) > 0 && prefix != "" {
			walkKeys(t[0], prefix+"[]", counts, types)
		}
	}
}

// bodySize measures a body's contribution to the byte totals: raw text by
// its length, structured values by their serialized size.
func bodySize(body any) int {
	switch t := body.(type) {
	case nil:
		return 0
	case string:
		return len(t)
	default:
		data, err := json.Marshal(t)
		if err != nil {
			return 0
		}
		return len(data)
	}
}

// sortedSets converts accumulator sets to sorted slices for deterministic
// report output.
func sortedSets(sets map[string]map[string]bool) map[string][]string {
	out := make(map[string][]string, len(sets))
	for k, set := range sets {
		members := make([]string, 0, len(set))
		for m := range set {
			members = append(members, m)
		}
		sort.Strings(members)
		out[k] = members
	}
	return out
}
