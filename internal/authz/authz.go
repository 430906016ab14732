// Package authz is the single place role permissions are decided. Screens and
// handlers never check roles ad hoc; they ask the Authorizer, which evaluates
// a declarative capability table loaded from policy.yaml.
package authz

import (
	_ "embed"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
)

//go:embed policy.yaml
var defaultPolicyYAML []byte

// rolePolicy is the parsed capability set for one role.
type rolePolicy struct {
	Reads  []string `yaml:"reads"`
	Writes []string `yaml:"writes"`
}

type policyFile struct {
	Roles map[string]rolePolicy `yaml:"roles"`
}

// Authorizer answers allow/deny for (actor, action) pairs against a fixed
// capability table. It is stateless after construction and safe for
// concurrent use.
type Authorizer struct {
	reads  map[domain.Role]map[Action]bool
	writes map[domain.Role]map[Action]bool
}

// New builds an Authorizer from the embedded policy table.
func New() (*Authorizer, error) {
	return parse(defaultPolicyYAML)
}

// NewFromFile builds an Authorizer from a policy file on disk, for
// deployments that override the embedded table.
func NewFromFile(path string) (*Authorizer, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read policy file: %w", err)
	}
	return parse(raw)
}

func parse(raw []byte) (*Authorizer, error) {
	var file policyFile
	if err := yaml.Unmarshal(raw, &file); err != nil {
		return nil, fmt.Errorf("parse policy: %w", err)
	}
	a := &Authorizer{
		reads:  make(map[domain.Role]map[Action]bool),
		writes: make(map[domain.Role]map[Action]bool),
	}
	for roleName, policy := range file.Roles {
		role, err := domain.ParseRole(roleName)
		if err != nil {
			return nil, fmt.Errorf("policy role %q: %w", roleName, err)
		}
		a.reads[role] = make(map[Action]bool, len(policy.Reads))
		for _, action := range policy.Reads {
			a.reads[role][Action(action)] = true
		}
		a.writes[role] = make(map[Action]bool, len(policy.Writes))
		for _, action := range policy.Writes {
			a.writes[role][Action(action)] = true
		}
	}
	return a, nil
}

// Authorize decides whether the actor may perform the action.
//
// Returns nil when allowed. Denials are typed: CodeUnverifiedActor for an
// unverified police actor attempting a write they would otherwise hold
// (meaning "pending approval"), CodeForbidden for a capability the role does
// not hold at all.
func (a *Authorizer) Authorize(actor domain.Actor, action Action) error {
	if actor.IsZero() {
		return dErrors.New(dErrors.CodeUnauthorized, "authentication required")
	}
	if a.reads[actor.Role][action] {
		return nil
	}
	if a.writes[actor.Role][action] {
		if actor.Role == domain.RolePolice && !actor.Verified {
			return dErrors.New(dErrors.CodeUnverifiedActor, "actor pending verification by an administrator")
		}
		return nil
	}
	return dErrors.Newf(dErrors.CodeForbidden, "role %s may not %s", actor.Role, action)
}
