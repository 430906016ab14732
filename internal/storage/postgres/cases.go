package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/sentinel"
)

// CaseStore implements storage.CaseStore on postgres.
type CaseStore struct {
	db *sql.DB
}

func NewCaseStore(db *sql.DB) *CaseStore {
	return &CaseStore{db: db}
}

const caseColumns = `case_number, subject_name, subject_birth_year, subject_gender,
	last_seen_location, last_seen_at, reporter_id, reporter_name, reporter_phone,
	status, created_at`

func (s *CaseStore) Create(ctx context.Context, c *domain.Case) error {
	query := `
		INSERT INTO cases (` + caseColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		c.Number,
		c.Subject.Name,
		c.Subject.BirthYear,
		c.Subject.Gender,
		c.Subject.LastSeenLocation,
		c.Subject.LastSeenAt,
		uuid.UUID(c.Reporter.ActorID),
		c.Reporter.Name,
		c.Reporter.Phone,
		c.Status,
		c.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert case: %w", err)
	}
	return nil
}

func (s *CaseStore) FindByNumber(ctx context.Context, num id.CaseNumber) (*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE case_number = $1`
	c, err := scanCase(execer(ctx, s.db).QueryRowContext(ctx, query, num))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query case: %w", err)
	}
	return c, nil
}

func (s *CaseStore) List(ctx context.Context) ([]*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases ORDER BY case_number`
	return s.queryCases(ctx, query)
}

func (s *CaseStore) ListByReporter(ctx context.Context, reporter id.ActorID) ([]*domain.Case, error) {
	query := `SELECT ` + caseColumns + ` FROM cases WHERE reporter_id = $1 ORDER BY case_number`
	return s.queryCases(ctx, query, uuid.UUID(reporter))
}

func (s *CaseStore) UpdateStatus(ctx context.Context, num id.CaseNumber, from, to domain.Status) error {
	query := `UPDATE cases SET status = $1 WHERE case_number = $2 AND status = $3`
	result, err := execer(ctx, s.db).ExecContext(ctx, query, to, num, from)
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("update case status: %w", err)
	}
	if affected == 1 {
		return nil
	}
	// The compare-and-swap missed: distinguish a vanished case from a
	// concurrent transition.
	if _, err := s.FindByNumber(ctx, num); errors.Is(err, sentinel.ErrNotFound) {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *CaseStore) queryCases(ctx context.Context, query string, args ...any) ([]*domain.Case, error) {
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query cases: %w", err)
	}
	defer rows.Close()

	var out []*domain.Case
	for rows.Next() {
		c, err := scanCase(rows)
		if err != nil {
			return nil, fmt.Errorf("scan case: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate cases: %w", err)
	}
	return out, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCase(row rowScanner) (*domain.Case, error) {
	var (
		c          domain.Case
		reporterID uuid.UUID
	)
	err := row.Scan(
		&c.Number,
		&c.Subject.Name,
		&c.Subject.BirthYear,
		&c.Subject.Gender,
		&c.Subject.LastSeenLocation,
		&c.Subject.LastSeenAt,
		&reporterID,
		&c.Reporter.Name,
		&c.Reporter.Phone,
		&c.Status,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.Reporter.ActorID = id.ActorID(reporterID)
	return &c, nil
}
