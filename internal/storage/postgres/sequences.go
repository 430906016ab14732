package postgres

import (
	"context"
	"database/sql"
	"fmt"

	id "casetrace/pkg/domain"
)

// SequenceStore mints case numbers from a per-year counter row. The upsert
// increments atomically, so concurrent creations never share a number.
type SequenceStore struct {
	db *sql.DB
}

func NewSequenceStore(db *sql.DB) *SequenceStore {
	return &SequenceStore{db: db}
}

func (s *SequenceStore) NextCaseNumber(ctx context.Context, year int) (id.CaseNumber, error) {
	query := `
		INSERT INTO case_number_seq (year, last) VALUES ($1, 1)
		ON CONFLICT (year) DO UPDATE SET last = case_number_seq.last + 1
		RETURNING last
	`
	var last int
	if err := execer(ctx, s.db).QueryRowContext(ctx, query, year).Scan(&last); err != nil {
		return "", fmt.Errorf("next case number: %w", err)
	}
	return id.FormatCaseNumber(year, last), nil
}
