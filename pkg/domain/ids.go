// Package domain holds shared identifier and actor types used across the
// case lifecycle modules. IDs are distinct types over uuid.UUID so the
// compiler rejects cross-type assignment (a MatchID can never be passed
// where an ActorID is expected).
package domain

import (
	"github.com/google/uuid"

	dErrors "casetrace/pkg/domain-errors"
)

// MatchID identifies one proposed identification (a match candidate).
// Unique per (case, candidate) pairing.
type MatchID uuid.UUID

// ActorID identifies an authenticated party. Issued by the external
// authentication system; the core only consumes it.
type ActorID uuid.UUID

// NewMatchID mints a fresh match identifier.
func NewMatchID() MatchID {
	return MatchID(uuid.New())
}

// ParseMatchID constructs a MatchID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseMatchID(s string) (MatchID, error) {
	u, err := parseUUID(s, "match id")
	if err != nil {
		return MatchID{}, err
	}
	return MatchID(u), nil
}

// ParseActorID constructs an ActorID from external input.
// Errors: CodeInvalidInput when the value is empty, malformed, or the nil UUID.
func ParseActorID(s string) (ActorID, error) {
	u, err := parseUUID(s, "actor id")
	if err != nil {
		return ActorID{}, err
	}
	return ActorID(u), nil
}

func (id MatchID) String() string { return uuid.UUID(id).String() }
func (id ActorID) String() string { return uuid.UUID(id).String() }

func (id MatchID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }
func (id ActorID) IsNil() bool { return uuid.UUID(id) == uuid.Nil }

func parseUUID(s, what string) (uuid.UUID, error) {
	if s == "" {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be empty")
	}
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, dErrors.Wrap(err, dErrors.CodeInvalidInput, "invalid "+what)
	}
	if u == uuid.Nil {
		return uuid.Nil, dErrors.New(dErrors.CodeInvalidInput, what+" cannot be the nil uuid")
	}
	return u, nil
}
