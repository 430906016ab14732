package audit

import (
	"context"
	"log/slog"

	"casetrace/internal/domain"
)

// Worker drains the recorder's fan-out feed into the publisher. Publish
// failures are logged and the entry is skipped: the ledger already holds the
// durable copy, and downstream consumers re-sync from it.
type Worker struct {
	feed      <-chan domain.AuditEntry
	publisher Publisher
	logger    *slog.Logger
}

func NewWorker(feed <-chan domain.AuditEntry, publisher Publisher, logger *slog.Logger) *Worker {
	return &Worker{feed: feed, publisher: publisher, logger: logger}
}

// Run consumes the feed until the context is cancelled.
func (w *Worker) Run(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case entry := <-w.feed:
			if err := w.publisher.Publish(ctx, entry); err != nil {
				w.logger.ErrorContext(ctx, "audit publish failed",
					"case_number", entry.CaseNumber,
					"action", entry.Action,
					"error", err,
				)
			}
		}
	}
}
