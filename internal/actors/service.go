// Package actors manages the portal's actor records: first-seen
// registration and the admin-granted verification that unlocks police write
// capabilities. Authentication itself lives outside the portal; this module
// only decides what the portal knows about an authenticated identity.
package actors

import (
	"context"
	"errors"
	"log/slog"

	"casetrace/internal/authz"
	"casetrace/internal/domain"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/sentinel"
	"casetrace/pkg/requestcontext"
)

// Service owns actor record lifecycle.
type Service struct {
	store  storage.ActorStore
	auth   *authz.Authorizer
	logger *slog.Logger
}

func NewService(store storage.ActorStore, auth *authz.Authorizer, logger *slog.Logger) *Service {
	return &Service{store: store, auth: auth, logger: logger}
}

// Resolve overlays portal state on an authenticated identity. Unknown
// actors are registered on first sight. The verification flag on the token
// is ignored: only the portal's own record can mark a police actor
// verified, and citizens and admins do not carry one.
func (s *Service) Resolve(ctx context.Context, actor id.Actor) (id.Actor, error) {
	rec, err := s.store.FindByID(ctx, actor.ID)
	if errors.Is(err, sentinel.ErrNotFound) {
		rec = &domain.ActorRecord{
			ID:        actor.ID,
			Name:      actor.Name,
			Role:      actor.Role,
			CreatedAt: requestcontext.Now(ctx),
		}
		if err := s.store.Save(ctx, rec); err != nil {
			return id.Actor{}, err
		}
		s.logger.Info("actor registered", "actor", actor.ID, "role", actor.Role)
	} else if err != nil {
		return id.Actor{}, err
	}

	switch actor.Role {
	case id.RolePolice:
		actor.Verified = rec.Verified
	case id.RoleAdmin:
		actor.Verified = true
	default:
		actor.Verified = false
	}
	return actor, nil
}

// Verify marks a police actor as verified. Admin capability; verifying a
// non-police actor is rejected because the flag has no meaning for them.
func (s *Service) Verify(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error) {
	admin := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(admin, authz.ActionVerifyActor); err != nil {
		return nil, err
	}

	rec, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "actor not found")
		}
		return nil, err
	}
	if rec.Role != id.RolePolice {
		return nil, dErrors.Newf(dErrors.CodeInvalidInput, "%s actors do not carry a verification flag", rec.Role)
	}
	if rec.Verified {
		return rec, nil
	}

	now := requestcontext.Now(ctx)
	if err := s.store.SetVerified(ctx, actorID, admin.ID, now); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "actor not found")
		}
		return nil, err
	}
	rec.Verified = true
	rec.VerifiedBy = &admin.ID
	rec.VerifiedAt = &now

	s.logger.Info("actor verified", "actor", actorID, "verified_by", admin.ID)
	return rec, nil
}

// Get returns an actor record. Admin read, used by the verification screen.
func (s *Service) Get(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error) {
	caller := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(caller, authz.ActionReadCase); err != nil {
		return nil, err
	}
	rec, err := s.store.FindByID(ctx, actorID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "actor not found")
		}
		return nil, err
	}
	return rec, nil
}
