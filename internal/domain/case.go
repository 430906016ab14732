// Package domain holds the case lifecycle entities shared by services and
// stores. Keeping them in one package lets the storage layer depend on a
// single model surface without importing service packages.
package domain

import (
	"time"

	"casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// Status is the lifecycle state of a case. It is a closed enum: unknown
// strings are rejected at the boundary, and the transition table in the
// cases package is the single source of legal moves.
type Status string

const (
	StatusSubmitted   Status = "submitted"
	StatusVerified    Status = "verified"
	StatusUnderReview Status = "under-review"
	StatusMatched     Status = "matched"
	StatusClosed      Status = "closed"
	StatusRejected    Status = "rejected"
)

var validStatuses = map[Status]bool{
	StatusSubmitted:   true,
	StatusVerified:    true,
	StatusUnderReview: true,
	StatusMatched:     true,
	StatusClosed:      true,
	StatusRejected:    true,
}

// ParseStatus constructs a Status from external input.
// Errors: CodeInvalidInput when the value is empty or unknown.
func ParseStatus(s string) (Status, error) {
	if s == "" {
		return "", dErrors.New(dErrors.CodeInvalidInput, "status cannot be empty")
	}
	st := Status(s)
	if !validStatuses[st] {
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown status: "+s)
	}
	return st, nil
}

func (s Status) String() string { return string(s) }

// Terminal reports whether no transition may ever leave this status.
func (s Status) Terminal() bool {
	return s == StatusClosed || s == StatusRejected
}

// SubjectProfile describes the missing person. Immutable reference data set
// at case creation.
type SubjectProfile struct {
	Name             string
	BirthYear        int
	Gender           string
	LastSeenLocation string
	LastSeenAt       time.Time
}

// Reporter identifies the citizen who filed the case. Set at creation,
// never reassigned.
type Reporter struct {
	ActorID domain.ActorID
	Name    string
	Phone   string
}

// Case is a filed missing-person report and its lifecycle state. Status is
// mutated only through authorized transitions; the audit ledger must always
// be able to reconstruct it.
type Case struct {
	Number    domain.CaseNumber
	Subject   SubjectProfile
	Reporter  Reporter
	Status    Status
	CreatedAt time.Time
}
