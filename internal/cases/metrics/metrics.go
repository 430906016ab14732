package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the case lifecycle module.
type Metrics struct {
	// Committed status transitions by event and resulting status
	Transitions *prometheus.CounterVec

	// Denied lifecycle actions by error code
	Denied *prometheus.CounterVec

	// Ledger replay consistency checks by result
	ReplayChecks *prometheus.CounterVec

	// Lifecycle operation latency by operation
	OperationLatency *prometheus.HistogramVec
}

// New creates a Metrics instance with all case module metrics registered.
func New() *Metrics {
	return &Metrics{
		Transitions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_cases_transitions_total",
			Help: "Committed case status transitions by event and resulting status",
		}, []string{"event", "to"}),

		Denied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_cases_denied_total",
			Help: "Denied case lifecycle actions by error code",
		}, []string{"code"}),

		ReplayChecks: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_cases_replay_checks_total",
			Help: "Ledger replay consistency checks by result",
		}, []string{"result"}), // result: "consistent", "divergent", "error"

		OperationLatency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "casetrace_cases_operation_duration_seconds",
			Help:    "Duration of case lifecycle operations",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		}, []string{"operation"}),
	}
}

// IncrementTransition records a committed status transition.
func (m *Metrics) IncrementTransition(event, to string) {
	if m != nil {
		m.Transitions.WithLabelValues(event, to).Inc()
	}
}

// IncrementDenied records a denied lifecycle action.
func (m *Metrics) IncrementDenied(code string) {
	if m != nil {
		m.Denied.WithLabelValues(code).Inc()
	}
}

// IncrementReplayCheck records the result of a replay consistency check.
func (m *Metrics) IncrementReplayCheck(result string) {
	if m != nil {
		m.ReplayChecks.WithLabelValues(result).Inc()
	}
}

// ObserveOperation records the duration of a lifecycle operation.
func (m *Metrics) ObserveOperation(operation string, d time.Duration) {
	if m != nil {
		m.OperationLatency.WithLabelValues(operation).Observe(d.Seconds())
	}
}
