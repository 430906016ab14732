package authz

// Action names a capability a role may hold. The names appear verbatim in
// policy.yaml and in audit entries, so they are part of the operational
// vocabulary.
type Action string

const (
	// Citizen actions.
	ActionCreateCase     Action = "create-case"
	ActionReadOwnCase    Action = "read-own-case"
	ActionReadOwnHistory Action = "read-own-history"

	// Police/admin read actions.
	ActionReadCase       Action = "read-case"
	ActionListCases      Action = "list-cases"
	ActionReadHistory    Action = "read-history"
	ActionListCandidates Action = "list-candidates"

	// Police/admin write actions.
	ActionVerifyCase  Action = "verify-case"
	ActionRejectCase  Action = "reject-case"
	ActionDecideMatch Action = "decide-match"

	// Admin-only write actions.
	ActionCloseCase       Action = "close-case"
	ActionVerifyActor     Action = "verify-actor"
	ActionSubmitCandidate Action = "submit-candidate"
)

func (a Action) String() string { return string(a) }
