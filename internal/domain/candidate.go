package domain

import (
	"time"

	"casetrace/internal/classifier"
	"casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// Decision is the reviewer verdict on a match candidate. pending is the only
// non-terminal value; once a candidate leaves pending it is immutable and no
// longer "live" (re-review creates a new candidate record).
type Decision string

const (
	DecisionPending   Decision = "pending"
	DecisionConfirmed Decision = "confirmed"
	DecisionRejected  Decision = "rejected"
)

// ParseDecision validates a reviewer verdict from external input. pending is
// not a settable verdict, so only confirmed and rejected are accepted.
func ParseDecision(s string) (Decision, error) {
	switch Decision(s) {
	case DecisionConfirmed:
		return DecisionConfirmed, nil
	case DecisionRejected:
		return DecisionRejected, nil
	case DecisionPending:
		return "", dErrors.New(dErrors.CodeInvalidInput, "pending is not a settable decision")
	default:
		return "", dErrors.New(dErrors.CodeInvalidInput, "unknown decision: "+s)
	}
}

func (d Decision) String() string { return string(d) }

// MatchCandidate is one proposed identification returned by the external
// search engine for a case, awaiting a human decision. RawScore is supplied
// by the engine and never mutated locally.
type MatchCandidate struct {
	ID          domain.MatchID
	CaseNumber  domain.CaseNumber
	ExternalRef string
	SubjectRef  string
	RawScore    float64
	Decision    Decision
	DecidedBy   *domain.ActorID
	DecidedAt   *time.Time
	CreatedAt   time.Time
}

// Tier derives the confidence tier from the raw score. It is recomputed on
// every call so the label can never drift from the score. The score was
// validated at ingestion, so an error here indicates store corruption.
func (c MatchCandidate) Tier() (classifier.Tier, error) {
	return classifier.Classify(c.RawScore)
}

// Live reports whether the candidate is still awaiting a decision. Decided
// candidates are retired: they stay queryable but no longer block
// re-ingestion of the same external reference.
func (c MatchCandidate) Live() bool {
	return c.Decision == DecisionPending
}
