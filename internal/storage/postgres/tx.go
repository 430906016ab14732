package postgres

import (
	"context"
	"database/sql"
	"time"

	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	txcontext "casetrace/pkg/platform/tx"
)

const defaultCaseTxTimeout = 5 * time.Second

// TxRunner provides the per-case mutual-exclusion discipline on postgres.
// The whole mutation runs inside one database transaction, so a failed audit
// append rolls back the status change with it, and a per-case transaction
// advisory lock serializes writers across instances.
type TxRunner struct {
	db      *sql.DB
	stores  storage.Stores
	timeout time.Duration
}

func NewTxRunner(db *sql.DB, stores storage.Stores) *TxRunner {
	return &TxRunner{db: db, stores: stores}
}

func (t *TxRunner) RunInCaseTx(ctx context.Context, num id.CaseNumber, fn func(ctx context.Context, s storage.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	timeout := t.timeout
	if timeout == 0 {
		timeout = defaultCaseTxTimeout
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	tx, err := t.db.BeginTx(ctx, nil)
	if err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "begin transaction")
	}
	defer func() {
		_ = tx.Rollback()
	}()

	// Advisory lock scoped to the transaction: released on commit/rollback.
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext($1))`, string(num)); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "acquire case lock")
	}

	if err := fn(txcontext.WithTx(ctx, tx), t.stores); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeUnavailable, "commit transaction")
	}
	return nil
}
