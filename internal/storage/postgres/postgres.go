// Package postgres implements the storage contracts on PostgreSQL via
// database/sql and lib/pq. Mutating queries are compare-and-swap style so a
// lost race surfaces as sentinel.ErrInvalidState instead of a silent
// overwrite.
package postgres

import (
	"context"
	"database/sql"
	"fmt"

	_ "github.com/lib/pq"

	"casetrace/internal/storage"
	txcontext "casetrace/pkg/platform/tx"
)

// NewStores builds the full store bundle over one connection pool.
func NewStores(db *sql.DB) storage.Stores {
	return storage.Stores{
		Cases:      NewCaseStore(db),
		Candidates: NewCandidateStore(db),
		Audit:      NewAuditStore(db),
		Actors:     NewActorStore(db),
		Sequences:  NewSequenceStore(db),
	}
}

// Open connects to postgres and applies the schema.
func Open(ctx context.Context, dsn string) (*sql.DB, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	if err := Migrate(ctx, db); err != nil {
		db.Close()
		return nil, err
	}
	return db, nil
}

// Migrate applies the schema. Statements are idempotent so startup can run
// them unconditionally.
func Migrate(ctx context.Context, db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS cases (
			case_number        TEXT PRIMARY KEY,
			subject_name       TEXT NOT NULL,
			subject_birth_year INT NOT NULL,
			subject_gender     TEXT NOT NULL,
			last_seen_location TEXT NOT NULL,
			last_seen_at       TIMESTAMPTZ NOT NULL,
			reporter_id        UUID NOT NULL,
			reporter_name      TEXT NOT NULL,
			reporter_phone     TEXT NOT NULL,
			status             TEXT NOT NULL,
			created_at         TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS match_candidates (
			id           UUID PRIMARY KEY,
			case_number  TEXT NOT NULL REFERENCES cases(case_number),
			external_ref TEXT NOT NULL,
			subject_ref  TEXT NOT NULL,
			raw_score    DOUBLE PRECISION NOT NULL,
			decision     TEXT NOT NULL,
			decided_by   UUID,
			decided_at   TIMESTAMPTZ,
			created_at   TIMESTAMPTZ NOT NULL
		)`,
		// At most one live (pending) candidate per (case, external ref).
		`CREATE UNIQUE INDEX IF NOT EXISTS match_candidates_live_ref
			ON match_candidates (case_number, external_ref)
			WHERE decision = 'pending'`,
		`CREATE TABLE IF NOT EXISTS audit_entries (
			seq         BIGSERIAL PRIMARY KEY,
			id          UUID NOT NULL,
			case_number TEXT NOT NULL,
			ts          TIMESTAMPTZ NOT NULL,
			actor_id    TEXT NOT NULL,
			action      TEXT NOT NULL,
			from_status TEXT NOT NULL DEFAULT '',
			to_status   TEXT NOT NULL DEFAULT '',
			note        TEXT NOT NULL DEFAULT ''
		)`,
		`CREATE INDEX IF NOT EXISTS audit_entries_case
			ON audit_entries (case_number, seq)`,
		`CREATE TABLE IF NOT EXISTS actors (
			id          UUID PRIMARY KEY,
			name        TEXT NOT NULL,
			role        TEXT NOT NULL,
			verified    BOOLEAN NOT NULL DEFAULT FALSE,
			verified_by UUID,
			verified_at TIMESTAMPTZ,
			created_at  TIMESTAMPTZ NOT NULL
		)`,
		`CREATE TABLE IF NOT EXISTS case_number_seq (
			year INT PRIMARY KEY,
			last INT NOT NULL
		)`,
	}
	for _, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("apply schema: %w", err)
		}
	}
	return nil
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

// execer returns the transaction from context when one is active, otherwise
// the pooled connection.
func execer(ctx context.Context, db *sql.DB) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return db
}
