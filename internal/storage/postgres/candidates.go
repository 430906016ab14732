package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/sentinel"
)

// CandidateStore implements storage.CandidateStore on postgres. The partial
// unique index match_candidates_live_ref backs the idempotent-ingestion
// guarantee at the database level.
type CandidateStore struct {
	db *sql.DB
}

func NewCandidateStore(db *sql.DB) *CandidateStore {
	return &CandidateStore{db: db}
}

const candidateColumns = `id, case_number, external_ref, subject_ref, raw_score,
	decision, decided_by, decided_at, created_at`

func (s *CandidateStore) Create(ctx context.Context, c *domain.MatchCandidate) error {
	query := `
		INSERT INTO match_candidates (` + candidateColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`
	var decidedBy *uuid.UUID
	if c.DecidedBy != nil {
		u := uuid.UUID(*c.DecidedBy)
		decidedBy = &u
	}
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(c.ID),
		c.CaseNumber,
		c.ExternalRef,
		c.SubjectRef,
		c.RawScore,
		c.Decision,
		decidedBy,
		c.DecidedAt,
		c.CreatedAt,
	)
	var pqErr *pq.Error
	if errors.As(err, &pqErr) && pqErr.Code.Name() == "unique_violation" {
		return sentinel.ErrConflict
	}
	if err != nil {
		return fmt.Errorf("insert candidate: %w", err)
	}
	return nil
}

func (s *CandidateStore) FindByID(ctx context.Context, matchID id.MatchID) (*domain.MatchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM match_candidates WHERE id = $1`
	c, err := scanCandidate(execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(matchID)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query candidate: %w", err)
	}
	return c, nil
}

func (s *CandidateStore) ListByCase(ctx context.Context, num id.CaseNumber) ([]*domain.MatchCandidate, error) {
	query := `SELECT ` + candidateColumns + ` FROM match_candidates WHERE case_number = $1 ORDER BY created_at, id`
	rows, err := execer(ctx, s.db).QueryContext(ctx, query, num)
	if err != nil {
		return nil, fmt.Errorf("query candidates: %w", err)
	}
	defer rows.Close()

	var out []*domain.MatchCandidate
	for rows.Next() {
		c, err := scanCandidate(rows)
		if err != nil {
			return nil, fmt.Errorf("scan candidate: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate candidates: %w", err)
	}
	return out, nil
}

func (s *CandidateStore) FindLiveByExternalRef(ctx context.Context, num id.CaseNumber, externalRef string) (*domain.MatchCandidate, error) {
	query := `
		SELECT ` + candidateColumns + ` FROM match_candidates
		WHERE case_number = $1 AND external_ref = $2 AND decision = $3
	`
	c, err := scanCandidate(execer(ctx, s.db).QueryRowContext(ctx, query, num, externalRef, domain.DecisionPending))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query live candidate: %w", err)
	}
	return c, nil
}

func (s *CandidateStore) Decide(ctx context.Context, matchID id.MatchID, decision domain.Decision, decidedBy id.ActorID, decidedAt time.Time) error {
	query := `
		UPDATE match_candidates
		SET decision = $1, decided_by = $2, decided_at = $3
		WHERE id = $4 AND decision = $5
	`
	result, err := execer(ctx, s.db).ExecContext(ctx, query,
		decision, uuid.UUID(decidedBy), decidedAt, uuid.UUID(matchID), domain.DecisionPending,
	)
	if err != nil {
		return fmt.Errorf("decide candidate: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("decide candidate: %w", err)
	}
	if affected == 1 {
		return nil
	}
	if _, err := s.FindByID(ctx, matchID); errors.Is(err, sentinel.ErrNotFound) {
		return sentinel.ErrNotFound
	}
	return sentinel.ErrInvalidState
}

func (s *CandidateStore) CountOpen(ctx context.Context, num id.CaseNumber) (pending, confirmed int, err error) {
	query := `
		SELECT
			COUNT(*) FILTER (WHERE decision = $2),
			COUNT(*) FILTER (WHERE decision = $3)
		FROM match_candidates WHERE case_number = $1
	`
	err = execer(ctx, s.db).QueryRowContext(ctx, query, num, domain.DecisionPending, domain.DecisionConfirmed).
		Scan(&pending, &confirmed)
	if err != nil {
		return 0, 0, fmt.Errorf("count open candidates: %w", err)
	}
	return pending, confirmed, nil
}

func scanCandidate(row rowScanner) (*domain.MatchCandidate, error) {
	var (
		c         domain.MatchCandidate
		matchID   uuid.UUID
		decidedBy *uuid.UUID
		decidedAt *time.Time
	)
	err := row.Scan(
		&matchID,
		&c.CaseNumber,
		&c.ExternalRef,
		&c.SubjectRef,
		&c.RawScore,
		&c.Decision,
		&decidedBy,
		&decidedAt,
		&c.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	c.ID = id.MatchID(matchID)
	if decidedBy != nil {
		actorID := id.ActorID(*decidedBy)
		c.DecidedBy = &actorID
	}
	c.DecidedAt = decidedAt
	return &c, nil
}
