package capture

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/agenttap/agenttap/internal/logging"
)

var (
	exchangesCaptured = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agenttap_exchanges_captured_total",
		Help: "Number of request/response pairs recorded, per upstream host.",
	}, []string{"upstream"})

	bodyBytesCaptured = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "agenttap_body_bytes_captured_total",
		Help: "Body bytes recorded, per upstream host and direction.",
	}, []string{"upstream", "direction"})
)

func init() {
	prometheus.MustRegister(exchangesCaptured, bodyBytesCaptured)
}

// ServeMetrics exposes the Prometheus endpoint on bind. It blocks; run it
// in a goroutine.
func ServeMetrics(bind string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	logging.L.Info("Starting metrics server", zap.String("address", bind))
	if err := http.ListenAndServe(bind, mux); err != nil {
		logging.L.Error("Metrics server stopped", zap.Error(err))
	}
}
