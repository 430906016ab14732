package domain

import (
	"time"

	"casetrace/pkg/domain"
)

// ActorRecord is the portal's durable view of a registered actor. The
// external authentication system owns credentials and sessions; this record
// only tracks what the portal decides about the actor, which today is the
// admin-granted verification flag for police accounts.
type ActorRecord struct {
	ID         domain.ActorID
	Name       string
	Role       domain.Role
	Verified   bool
	VerifiedBy *domain.ActorID
	VerifiedAt *time.Time
	CreatedAt  time.Time
}
