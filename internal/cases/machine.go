package cases

import (
	"casetrace/internal/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// Event names a lifecycle trigger. Events are internal vocabulary; the HTTP
// surface exposes them as commands (verify, reject, close, ...).
type Event string

const (
	EventCreate            Event = "create_report"
	EventVerify            Event = "verify"
	EventReject            Event = "reject"
	EventCandidateSurfaced Event = "candidate_surfaced"
	EventConfirmMatch      Event = "confirm_match"
	EventDeclineMatch      Event = "decline_match"
	EventClose             Event = "close"
)

// transitions is the single source of legal status moves. A requested change
// with no entry here fails with CodeInvalidTransition and leaves the case
// untouched. closed and rejected have no outgoing rows: they are terminal.
//
// EventClose from a non-matched, non-terminal status is the administrative
// override; the service requires a reason for it.
var transitions = map[domain.Status]map[Event]domain.Status{
	domain.StatusSubmitted: {
		EventVerify: domain.StatusVerified,
		EventReject: domain.StatusRejected,
		EventClose:  domain.StatusClosed,
	},
	domain.StatusVerified: {
		EventCandidateSurfaced: domain.StatusUnderReview,
		EventReject:            domain.StatusRejected,
		EventClose:             domain.StatusClosed,
	},
	domain.StatusUnderReview: {
		EventConfirmMatch: domain.StatusMatched,
		EventDeclineMatch: domain.StatusVerified,
		EventClose:        domain.StatusClosed,
	},
	domain.StatusMatched: {
		EventClose: domain.StatusClosed,
	},
}

// NextStatus resolves the target status for an event from the given state.
// Errors: CodeInvalidTransition when the table has no matching row.
func NextStatus(from domain.Status, event Event) (domain.Status, error) {
	if to, ok := transitions[from][event]; ok {
		return to, nil
	}
	return "", dErrors.Newf(dErrors.CodeInvalidTransition, "no %s transition from %s", event, from)
}
