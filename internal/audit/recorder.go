// Package audit owns the append-only activity ledger. The ledger is the
// single source of truth for a case's lifecycle: the materialized status on
// the case record is a view that must always be re-derivable from history.
package audit

import (
	"context"
	"log/slog"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"casetrace/internal/domain"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
)

var announceDropped = promauto.NewCounter(prometheus.CounterOpts{
	Name: "casetrace_audit_announce_dropped_total",
	Help: "Ledger entries dropped from the broker fan-out buffer",
})

// Recorder reads the ledger and fans committed entries out to the broker
// worker. Writes happen through the transactional store inside case
// mutations; the Recorder never bypasses that path.
type Recorder struct {
	store  storage.AuditStore
	sink   chan domain.AuditEntry
	logger *slog.Logger
}

// NewRecorder builds a Recorder with a buffered fan-out channel. The buffer
// absorbs bursts; when it fills, entries are dropped from the broker feed
// (never from the ledger) and counted.
func NewRecorder(store storage.AuditStore, logger *slog.Logger) *Recorder {
	return &Recorder{
		store:  store,
		sink:   make(chan domain.AuditEntry, 256),
		logger: logger,
	}
}

// History returns the case's ledger entries in insertion order.
func (r *Recorder) History(ctx context.Context, num id.CaseNumber) ([]domain.AuditEntry, error) {
	return r.store.ListByCase(ctx, num)
}

// Replay reconstructs the case status purely from its ledger. Dashboards use
// it as a consistency self-check against the materialized status field.
func (r *Recorder) Replay(ctx context.Context, num id.CaseNumber) (domain.Status, error) {
	entries, err := r.store.ListByCase(ctx, num)
	if err != nil {
		return "", err
	}
	return ReplayEntries(entries)
}

// Announce queues a committed entry for broker fan-out. It never blocks a
// case mutation: when the buffer is full the entry is dropped from the feed
// and counted, while the ledger row is already durable.
func (r *Recorder) Announce(entry domain.AuditEntry) {
	select {
	case r.sink <- entry:
	default:
		announceDropped.Inc()
		if r.logger != nil {
			r.logger.Warn("audit fan-out buffer full, dropping broker announcement",
				"case_number", entry.CaseNumber,
				"action", entry.Action,
			)
		}
	}
}

// Feed exposes the fan-out channel for the broker worker.
func (r *Recorder) Feed() <-chan domain.AuditEntry {
	return r.sink
}
