package capture

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/agenttap/agenttap/pkg/profile"
	"github.com/agenttap/agenttap/pkg/traffic"
)

func TestListenerRecordsExchange(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/responses" {
			t.Errorf("upstream path = %q", r.URL.Path)
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`{"id":"resp_1","status":"completed"}`))
	}))
	defer upstream.Close()

	w, err := traffic.NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewListener(profile.ProxyConfig{ListenPort: 0, UpstreamURL: upstream.URL, Purpose: "test"}, "", w)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	resp, err := http.Post("http://"+l.Addr()+"/v1/responses", "application/json", strings.NewReader(`{"model":"gpt-4o"}`))
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Errorf("relayed status = %d, want 200", resp.StatusCode)
	}

	entries, skipped, err := traffic.Load(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if skipped != 0 || len(entries) != 1 {
		t.Fatalf("entries = %d, skipped = %d", len(entries), skipped)
	}

	e := entries[0]
	if e.Request.Method != "POST" {
		t.Errorf("method = %q", e.Request.Method)
	}
	if !strings.HasSuffix(e.Request.URL, "/v1/responses") {
		t.Errorf("url = %q", e.Request.URL)
	}
	reqBody, ok := e.Request.Body.(map[string]any)
	if !ok || reqBody["model"] != "gpt-4o" {
		t.Errorf("request body = %#v", e.Request.Body)
	}
	if e.Response.StatusCode == nil || *e.Response.StatusCode != 200 {
		t.Errorf("status = %v", e.Response.StatusCode)
	}
	respBody, ok := e.Response.Body.(map[string]any)
	if !ok || respBody["id"] != "resp_1" {
		t.Errorf("response body = %#v", e.Response.Body)
	}
	if e.Timestamp == 0 {
		t.Error("timestamp not recorded")
	}
}

func TestListenerKeepsEventStreamRaw(t *testing.T) {
	stream := "event: response.output_text.delta\ndata: {\"delta\":\"hi\"}\n\n"
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Write([]byte(stream))
	}))
	defer upstream.Close()

	w, err := traffic.NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	l, err := NewListener(profile.ProxyConfig{ListenPort: 0, UpstreamURL: upstream.URL}, "", w)
	if err != nil {
		t.Fatal(err)
	}
	if err := l.Start(); err != nil {
		t.Fatal(err)
	}
	defer l.Stop()

	resp, err := http.Get("http://" + l.Addr() + "/v1/responses")
	if err != nil {
		t.Fatal(err)
	}
	resp.Body.Close()

	entries, _, err := traffic.Load(w.Path())
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("entries = %d", len(entries))
	}
	if entries[0].Response.Body != stream {
		t.Errorf("stream body not kept raw: %#v", entries[0].Response.Body)
	}
}

func TestNewListenerRejectsBadUpstream(t *testing.T) {
	w, err := traffic.NewWriter(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	if _, err := NewListener(profile.ProxyConfig{ListenPort: 0, UpstreamURL: "::not-a-url"}, "", w); err == nil {
		t.Error("expected error for invalid upstream URL")
	}
}

func TestFlattenHeadersLastWins(t *testing.T) {
	h := http.Header{}
	h.Add("X-Multi", "first")
	h.Add("X-Multi", "second")
	got := flattenHeaders(h)
	if got["X-Multi"] != "second" {
		t.Errorf("X-Multi = %q, want second", got["X-Multi"])
	}
}
