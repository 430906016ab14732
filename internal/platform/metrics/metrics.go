// Package metrics holds the HTTP-level Prometheus metrics and the exposition
// handler. Module-level metrics live with their modules.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics provides request-level observability for the HTTP surface.
type Metrics struct {
	Requests *prometheus.CounterVec
	Latency  *prometheus.HistogramVec
}

// New creates and registers the HTTP metrics.
func New() *Metrics {
	return &Metrics{
		Requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_http_requests_total",
			Help: "HTTP requests by method, route pattern, and status class",
		}, []string{"method", "route", "status"}),

		Latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casetrace_http_request_duration_seconds",
			Help:    "HTTP request duration by route pattern",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"method", "route"}),
	}
}

// ObserveRequest records one completed request.
func (m *Metrics) ObserveRequest(method, route, status string, d time.Duration) {
	if m != nil {
		m.Requests.WithLabelValues(method, route, status).Inc()
		m.Latency.WithLabelValues(method, route).Observe(d.Seconds())
	}
}

// Handler returns the Prometheus exposition endpoint.
func Handler() http.Handler {
	return promhttp.Handler()
}
