// Package capture runs the capture side of the pipeline: reverse-proxy
// listeners that relay traffic to the configured upstreams while appending
// every exchange to the durable traffic log, and the runner that manages
// their lifecycle around a target command.
package capture

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
	"github.com/agenttap/agenttap/pkg/profile"
	"github.com/agenttap/agenttap/pkg/traffic"
)

// Listener is one reverse proxy bound to a local port, forwarding every
// request to a single upstream and recording the exchange. Capture is
// passive: requests and responses are relayed unmodified.
type Listener struct {
	cfg      profile.ProxyConfig
	upstream *url.URL
	client   *http.Client
	writer   *traffic.Writer
	server   *http.Server
	listener net.Listener
}

// NewListener builds a listener for one proxy entry. upstreamProxy, when
// non-empty, routes outbound connections through that proxy.
func NewListener(cfg profile.ProxyConfig, upstreamProxy string, w *traffic.Writer) (*Listener, error) {
	upstream, err := url.Parse(cfg.UpstreamURL)
	if err != nil || upstream.Host == "" {
		return nil, fmt.Errorf("invalid upstream URL %q for port %d", cfg.UpstreamURL, cfg.ListenPort)
	}

	transport := &http.Transport{}
	if upstreamProxy != "" {
		proxyURL, err := url.Parse(upstreamProxy)
		if err != nil {
			return nil, fmt.Errorf("invalid upstream proxy URL %q: %w", upstreamProxy, err)
		}
		transport.Proxy = http.ProxyURL(proxyURL)
	}

	return &Listener{
		cfg:      cfg,
		upstream: upstream,
		writer:   w,
		client: &http.Client{
			// Streaming responses for long agent turns can run for
			// minutes.
			Timeout:   10 * time.Minute,
			Transport: transport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// Redirects belong to the client under test.
				return http.ErrUseLastResponse
			},
		},
	}, nil
}

// Start binds the local port and begins serving. Bind failures are
// returned; later serve errors are logged.
func (l *Listener) Start() error {
	ln, err := net.Listen("tcp", fmt.Sprintf("127.0.0.1:%d", l.cfg.ListenPort))
	if err != nil {
		return fmt.Errorf("failed to listen on port %d: %w", l.cfg.ListenPort, err)
	}
	l.listener = ln
	l.server = &http.Server{Handler: http.HandlerFunc(l.handle)}

	go func() {
		if err := l.server.Serve(ln); err != nil && err != http.ErrServerClosed {
			logging.L.Error("Proxy listener stopped unexpectedly",
				zap.Int("port", l.cfg.ListenPort),
				zap.Error(err),
			)
		}
	}()

	logging.L.Info("Proxy listener started",
		zap.Int("port", l.cfg.ListenPort),
		zap.String("upstream", l.cfg.UpstreamURL),
		zap.String("purpose", l.cfg.Purpose),
	)
	return nil
}

// Stop closes the listener and any active connections.
func (l *Listener) Stop() error {
	if l.server == nil {
		return nil
	}
	return l.server.Close()
}

// Alive reports whether the listener still accepts connections.
func (l *Listener) Alive() bool {
	if l.listener == nil {
		return false
	}
	conn, err := net.DialTimeout("tcp", l.listener.Addr().String(), time.Second)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}

// Port returns the configured listen port.
func (l *Listener) Port() int {
	return l.cfg.ListenPort
}

// Addr returns the bound address. Valid after Start.
func (l *Listener) Addr() string {
	if l.listener == nil {
		return ""
	}
	return l.listener.Addr().String()
}

func (l *Listener) handle(w http.ResponseWriter, r *http.Request) {
	reqBody, err := io.ReadAll(r.Body)
	if err != nil {
		http.Error(w, "failed to read request body: "+err.Error(), http.StatusBadGateway)
		return
	}
	r.Body.Close()

	outURL := *l.upstream
	outURL.Path = r.URL.Path
	outURL.RawQuery = r.URL.RawQuery

	out, err := http.NewRequestWithContext(r.Context(), r.Method, outURL.String(), bytes.NewReader(reqBody))
	if err != nil {
		http.Error(w, "failed to build upstream request: "+err.Error(), http.StatusBadGateway)
		return
	}
	for name, values := range r.Header {
		if name == "Host" {
			continue
		}
		for _, value := range values {
			out.Header.Add(name, value)
		}
	}
	out.Host = l.upstream.Host

	resp, err := l.client.Do(out)
	if err != nil {
		logging.L.Error("Failed to forward request",
			zap.String("url", outURL.String()),
			zap.Error(err),
		)
		http.Error(w, "upstream request failed: "+err.Error(), http.StatusBadGateway)
		return
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		http.Error(w, "failed to read upstream response: "+err.Error(), http.StatusBadGateway)
		return
	}

	l.record(r.Method, outURL.String(), r.Header, reqBody, resp, respBody)

	for name, values := range resp.Header {
		if name == "Transfer-Encoding" || name == "Connection" || name == "Content-Length" {
			continue
		}
		for _, value := range values {
			w.Header().Add(name, value)
		}
	}
	w.WriteHeader(resp.StatusCode)
	if _, err := w.Write(respBody); err != nil {
		logging.L.Error("Failed to relay response", zap.Error(err))
	}
}

// record appends the exchange to the traffic log and updates metrics.
func (l *Listener) record(method, url string, reqHeaders http.Header, reqBody []byte, resp *http.Response, respBody []byte) {
	status := resp.StatusCode
	entry := &traffic.Exchange{
		Timestamp: float64(time.Now().UnixNano()) / 1e9,
		Request: traffic.Request{
			Method:  method,
			URL:     url,
			Headers: flattenHeaders(reqHeaders),
			Body:    decodeRequestBody(reqBody),
		},
		Response: traffic.Response{
			StatusCode: &status,
			Headers:    flattenHeaders(resp.Header),
			Body:       decodeResponseBody(respBody, resp.Header.Get("Content-Type")),
		},
	}

	if err := l.writer.Append(entry); err != nil {
		logging.L.Error("Failed to append traffic log", zap.Error(err))
	}

	host := l.upstream.Host
	exchangesCaptured.WithLabelValues(host).Inc()
	bodyBytesCaptured.WithLabelValues(host, "request").Add(float64(len(reqBody)))
	bodyBytesCaptured.WithLabelValues(host, "response").Add(float64(len(respBody)))

	logging.L.Info("Captured exchange",
		zap.String("method", method),
		zap.String("url", url),
		zap.Int("status", status),
	)
}

// flattenHeaders collapses multi-valued headers, last value wins.
func flattenHeaders(headers http.Header) map[string]string {
	out := make(map[string]string, len(headers))
	for name, values := range headers {
		if len(values) > 0 {
			out[name] = values[len(values)-1]
		}
	}
	return out
}

// decodeRequestBody stores JSON request bodies decoded and anything else as
// raw text.
func decodeRequestBody(content []byte) any {
	if len(content) == 0 {
		return nil
	}
	if v, ok := decodeJSON(content); ok {
		return v
	}
	return string(content)
}

// decodeResponseBody keeps event streams as raw text so the analyzer can
// run the SSE decoder over them; other bodies decode as JSON when valid.
func decodeResponseBody(content []byte, contentType string) any {
	if len(content) == 0 {
		return nil
	}
	if strings.Contains(contentType, "text/event-stream") {
		return string(content)
	}
	if v, ok := decodeJSON(content); ok {
		return v
	}
	return string(content)
}

func decodeJSON(content []byte) (any, bool) {
	if !gjson.ValidBytes(content) {
		return nil, false
	}
	dec := json.NewDecoder(bytes.NewReader(content))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, false
	}
	return v, true
}
