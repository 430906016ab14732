package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/google/uuid"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
)

// AuditStore implements the append-only ledger on postgres. The bigserial
// seq column defines insertion order; rows are never updated or deleted.
type AuditStore struct {
	db *sql.DB
}

func NewAuditStore(db *sql.DB) *AuditStore {
	return &AuditStore{db: db}
}

func (s *AuditStore) Append(ctx context.Context, entry *domain.AuditEntry) error {
	query := `
		INSERT INTO audit_entries (id, case_number, ts, actor_id, action, from_status, to_status, note)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		RETURNING seq
	`
	err := execer(ctx, s.db).QueryRowContext(ctx, query,
		entry.ID,
		entry.CaseNumber,
		entry.Timestamp,
		entry.ActorID,
		entry.Action,
		entry.FromStatus,
		entry.ToStatus,
		entry.Note,
	).Scan(&entry.Seq)
	if err != nil {
		return fmt.Errorf("insert audit entry: %w", err)
	}
	return nil
}

func (s *AuditStore) ListByCase(ctx context.Context, num id.CaseNumber) ([]domain.AuditEntry, error) {
	query := `
		SELECT seq, id, case_number, ts, actor_id, action, from_status, to_status, note
		FROM audit_entries
		WHERE case_number = $1
		ORDER BY seq
	`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, num)
	if err != nil {
		return nil, fmt.Errorf("query audit entries: %w", err)
	}
	defer rows.Close()

	var entries []domain.AuditEntry
	for rows.Next() {
		var (
			e       domain.AuditEntry
			entryID uuid.UUID
		)
		err := rows.Scan(
			&e.Seq,
			&entryID,
			&e.CaseNumber,
			&e.Timestamp,
			&e.ActorID,
			&e.Action,
			&e.FromStatus,
			&e.ToStatus,
			&e.Note,
		)
		if err != nil {
			return nil, fmt.Errorf("scan audit entry: %w", err)
		}
		e.ID = entryID
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate audit entries: %w", err)
	}
	return entries, nil
}
