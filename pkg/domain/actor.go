package domain

import dErrors "casetrace/pkg/domain-errors"

// Role is a flat capability tag. Roles are not hierarchical: admin holds a
// superset of police capabilities only where the capability table says so,
// never through inheritance.
type Role string

const (
	RoleCitizen Role = "citizen"
	RolePolice  Role = "police"
	RoleAdmin   Role = "admin"
)

// validRoles is the single source of truth for supported roles.
var validRoles = map[Role]bool{
	RoleCitizen: true,
	RolePolice:  true,
	RoleAdmin:   true,
}

// ParseRole constructs a Role from external input.
// Errors: CodeInvalidInput when the value is empty or unsupported.
func ParseRole(s string) (Role, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "role cannot be empty")
	}
	r := Role(s)
	if !validRoles[r] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unsupported role: "+s)
	}
	return r, nil
}

func (r Role) String() string { return string(r) }

// Actor is an authenticated party attempting an action. The external
// authentication system supplies it on every call; the core never
// authenticates, only authorizes.
type Actor struct {
	ID   ActorID
	Name string
	Role Role
	// Verified gates write capabilities for police actors. An unverified
	// police actor has read-only capability until an admin verifies them.
	Verified bool
}

// IsZero reports whether the actor is absent (unauthenticated request).
func (a Actor) IsZero() bool {
	return a.ID.IsNil() && a.Role == ""
}
