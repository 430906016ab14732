package actors

import (
	"context"
	"io"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/suite"

	"casetrace/internal/authz"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/requestcontext"
	"casetrace/pkg/testutil"
)

type ActorServiceSuite struct {
	suite.Suite

	store storage.ActorStore
	svc   *Service

	admin  id.Actor
	police id.Actor
}

func TestActorServiceSuite(t *testing.T) {
	suite.Run(t, new(ActorServiceSuite))
}

func (s *ActorServiceSuite) SetupTest() {
	s.store = storage.NewInMemoryActorStore()
	auth, err := authz.New()
	s.Require().NoError(err)
	s.svc = NewService(s.store, auth, slog.New(slog.NewTextHandler(io.Discard, nil)))

	s.admin = testutil.Admin()
	s.police = testutil.UnverifiedPolice()
}

func (s *ActorServiceSuite) ctxFor(actor id.Actor) context.Context {
	return requestcontext.WithActor(context.Background(), actor)
}

func (s *ActorServiceSuite) TestResolve() {
	s.Run("registers an unknown actor on first sight", func() {
		resolved, err := s.svc.Resolve(context.Background(), s.police)
		s.Require().NoError(err)
		s.False(resolved.Verified)

		rec, err := s.store.FindByID(context.Background(), s.police.ID)
		s.Require().NoError(err)
		s.Equal(id.RolePolice, rec.Role)
	})

	s.Run("police verification comes from the record, not the token", func() {
		claimed := s.police
		claimed.Verified = true

		resolved, err := s.svc.Resolve(context.Background(), claimed)
		s.Require().NoError(err)
		s.False(resolved.Verified, "token-claimed verification must be ignored")
	})

	s.Run("admins are always treated as verified", func() {
		resolved, err := s.svc.Resolve(context.Background(), s.admin)
		s.Require().NoError(err)
		s.True(resolved.Verified)
	})
}

func (s *ActorServiceSuite) TestVerify() {
	s.Run("admin verifies a police actor", func() {
		_, err := s.svc.Resolve(context.Background(), s.police)
		s.Require().NoError(err)

		rec, err := s.svc.Verify(s.ctxFor(s.admin), s.police.ID)
		s.Require().NoError(err)
		s.True(rec.Verified)
		s.Require().NotNil(rec.VerifiedBy)
		s.Equal(s.admin.ID, *rec.VerifiedBy)

		resolved, err := s.svc.Resolve(context.Background(), s.police)
		s.Require().NoError(err)
		s.True(resolved.Verified)
	})

	s.Run("verifying twice is a no-op", func() {
		_, err := s.svc.Resolve(context.Background(), s.police)
		s.Require().NoError(err)
		_, err = s.svc.Verify(s.ctxFor(s.admin), s.police.ID)
		s.Require().NoError(err)

		rec, err := s.svc.Verify(s.ctxFor(s.admin), s.police.ID)
		s.Require().NoError(err)
		s.True(rec.Verified)
	})

	s.Run("police may not verify actors", func() {
		officer := testutil.VerifiedPolice()
		_, err := s.svc.Verify(s.ctxFor(officer), s.police.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})

	s.Run("citizens do not carry a verification flag", func() {
		citizen := testutil.Citizen()
		_, err := s.svc.Resolve(context.Background(), citizen)
		s.Require().NoError(err)

		_, err = s.svc.Verify(s.ctxFor(s.admin), citizen.ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidInput))
	})

	s.Run("unknown actor is not found", func() {
		_, err := s.svc.Verify(s.ctxFor(s.admin), testutil.Citizen().ID)
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeNotFound))
	})
}
