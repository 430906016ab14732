package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/sentinel"
)

// ActorStore implements storage.ActorStore on postgres.
type ActorStore struct {
	db *sql.DB
}

func NewActorStore(db *sql.DB) *ActorStore {
	return &ActorStore{db: db}
}

func (s *ActorStore) Save(ctx context.Context, rec *domain.ActorRecord) error {
	query := `
		INSERT INTO actors (id, name, role, verified, verified_by, verified_at, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			role = EXCLUDED.role,
			verified = EXCLUDED.verified,
			verified_by = EXCLUDED.verified_by,
			verified_at = EXCLUDED.verified_at
	`
	var verifiedBy *uuid.UUID
	if rec.VerifiedBy != nil {
		u := uuid.UUID(*rec.VerifiedBy)
		verifiedBy = &u
	}
	_, err := execer(ctx, s.db).ExecContext(ctx, query,
		uuid.UUID(rec.ID), rec.Name, rec.Role, rec.Verified, verifiedBy, rec.VerifiedAt, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("save actor: %w", err)
	}
	return nil
}

func (s *ActorStore) FindByID(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error) {
	query := `SELECT id, name, role, verified, verified_by, verified_at, created_at FROM actors WHERE id = $1`
	var (
		rec        domain.ActorRecord
		recID      uuid.UUID
		verifiedBy *uuid.UUID
	)
	err := execer(ctx, s.db).QueryRowContext(ctx, query, uuid.UUID(actorID)).Scan(
		&recID, &rec.Name, &rec.Role, &rec.Verified, &verifiedBy, &rec.VerifiedAt, &rec.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("query actor: %w", err)
	}
	rec.ID = id.ActorID(recID)
	if verifiedBy != nil {
		by := id.ActorID(*verifiedBy)
		rec.VerifiedBy = &by
	}
	return &rec, nil
}

func (s *ActorStore) SetVerified(ctx context.Context, actorID id.ActorID, verifiedBy id.ActorID, verifiedAt time.Time) error {
	query := `UPDATE actors SET verified = TRUE, verified_by = $1, verified_at = $2 WHERE id = $3`
	result, err := execer(ctx, s.db).ExecContext(ctx, query, uuid.UUID(verifiedBy), verifiedAt, uuid.UUID(actorID))
	if err != nil {
		return fmt.Errorf("verify actor: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("verify actor: %w", err)
	}
	if affected == 0 {
		return sentinel.ErrNotFound
	}
	return nil
}
