package testutil

import (
	"net/http"

	"github.com/google/uuid"

	"casetrace/pkg/domain"
	"casetrace/pkg/requestcontext"
)

// WithActor adds an authenticated actor to the request context, simulating
// what the auth middleware does for authenticated requests.
func WithActor(req *http.Request, actor domain.Actor) *http.Request {
	return req.WithContext(requestcontext.WithActor(req.Context(), actor))
}

// Citizen returns a citizen actor with a fresh ID.
func Citizen() domain.Actor {
	return domain.Actor{ID: domain.ActorID(uuid.New()), Name: "Test Citizen", Role: domain.RoleCitizen}
}

// VerifiedPolice returns a verified police actor with a fresh ID.
func VerifiedPolice() domain.Actor {
	return domain.Actor{ID: domain.ActorID(uuid.New()), Name: "Test Officer", Role: domain.RolePolice, Verified: true}
}

// UnverifiedPolice returns a police actor that has not been verified yet.
func UnverifiedPolice() domain.Actor {
	return domain.Actor{ID: domain.ActorID(uuid.New()), Name: "New Officer", Role: domain.RolePolice}
}

// Admin returns an admin actor with a fresh ID.
func Admin() domain.Actor {
	return domain.Actor{ID: domain.ActorID(uuid.New()), Name: "Test Admin", Role: domain.RoleAdmin, Verified: true}
}
