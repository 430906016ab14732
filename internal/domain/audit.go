package domain

import (
	"time"

	"github.com/google/uuid"

	"casetrace/pkg/domain"
)

// AuditAction names what happened. The values appear in the ledger and on
// dashboards, so they are stable identifiers.
type AuditAction string

const (
	AuditCaseCreated        AuditAction = "case_created"
	AuditCaseVerified       AuditAction = "case_verified"
	AuditCaseRejected       AuditAction = "case_rejected"
	AuditCaseClosed         AuditAction = "case_closed"
	AuditCandidateSurfaced  AuditAction = "candidate_surfaced"
	AuditCandidateDuplicate AuditAction = "candidate_duplicate"
	AuditMatchConfirmed     AuditAction = "match_confirmed"
	AuditMatchRejected      AuditAction = "match_rejected"
	AuditActionDenied       AuditAction = "action_denied"
)

// SystemActorID marks ledger entries produced by the system itself (for
// example candidate ingestion from the search engine) rather than a human
// actor. Audit actor ids are strings to support both schemes.
const SystemActorID = "system:search-engine"

// AuditEntry is one immutable line of a case's history. Entries are only
// ever appended; Seq is assigned by the store and defines insertion order.
//
// Entries where FromStatus != ToStatus record a committed transition; all
// other entries (denied attempts, candidate activity) leave both fields
// equal to the status current at the time.
type AuditEntry struct {
	ID         uuid.UUID
	Seq        int64
	CaseNumber domain.CaseNumber
	Timestamp  time.Time
	ActorID    string
	Action     AuditAction
	FromStatus Status
	ToStatus   Status
	Note       string
}

// Transition reports whether this entry records a status change.
func (e AuditEntry) Transition() bool {
	return e.ToStatus != "" && e.ToStatus != e.FromStatus
}
