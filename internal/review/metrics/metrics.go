package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics provides observability for the match review module.
type Metrics struct {
	// Candidates accepted into review by confidence tier
	Ingested *prometheus.CounterVec

	// Duplicate submissions suppressed
	Duplicates prometheus.Counter

	// Reviewer decisions by verdict
	Decisions *prometheus.CounterVec

	// Denied review actions by error code
	Denied *prometheus.CounterVec
}

// New creates a Metrics instance with all review module metrics registered.
func New() *Metrics {
	return &Metrics{
		Ingested: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_review_candidates_ingested_total",
			Help: "Match candidates accepted into review by confidence tier",
		}, []string{"tier"}),

		Duplicates: promauto.NewCounter(prometheus.CounterOpts{
			Name: "casetrace_review_candidates_duplicate_total",
			Help: "Candidate submissions suppressed as duplicates of a live candidate",
		}),

		Decisions: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_review_decisions_total",
			Help: "Reviewer decisions by verdict",
		}, []string{"decision"}),

		Denied: promauto.NewCounterVec(prometheus.CounterOpts{
			Name: "casetrace_review_denied_total",
			Help: "Denied review actions by error code",
		}, []string{"code"}),
	}
}

// IncrementIngested records an accepted candidate by tier.
func (m *Metrics) IncrementIngested(tier string) {
	if m != nil {
		m.Ingested.WithLabelValues(tier).Inc()
	}
}

// IncrementDuplicate records a suppressed duplicate submission.
func (m *Metrics) IncrementDuplicate() {
	if m != nil {
		m.Duplicates.Inc()
	}
}

// IncrementDecision records a reviewer verdict.
func (m *Metrics) IncrementDecision(decision string) {
	if m != nil {
		m.Decisions.WithLabelValues(decision).Inc()
	}
}

// IncrementDenied records a denied review action.
func (m *Metrics) IncrementDenied(code string) {
	if m != nil {
		m.Denied.WithLabelValues(code).Inc()
	}
}
