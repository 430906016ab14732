// Package storage defines the persistence contracts for the case portal
// core. Stores are interface-driven so the domain logic stays testable and
// persistence can swap between in-memory and postgres without rewiring
// business code.
package storage

import (
	"context"
	"time"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
)

// CaseStore persists cases keyed by their public case number.
type CaseStore interface {
	// Create stores a new case. Returns sentinel.ErrConflict if the case
	// number is already taken.
	Create(ctx context.Context, c *domain.Case) error
	FindByNumber(ctx context.Context, num id.CaseNumber) (*domain.Case, error)
	List(ctx context.Context) ([]*domain.Case, error)
	ListByReporter(ctx context.Context, reporter id.ActorID) ([]*domain.Case, error)
	// UpdateStatus performs a compare-and-swap status mutation. Returns
	// sentinel.ErrInvalidState when the current status differs from `from`,
	// so a lost race never silently overwrites a concurrent transition.
	UpdateStatus(ctx context.Context, num id.CaseNumber, from, to domain.Status) error
}

// CandidateStore persists match candidates keyed by match id.
type CandidateStore interface {
	Create(ctx context.Context, c *domain.MatchCandidate) error
	FindByID(ctx context.Context, matchID id.MatchID) (*domain.MatchCandidate, error)
	ListByCase(ctx context.Context, num id.CaseNumber) ([]*domain.MatchCandidate, error)
	// FindLiveByExternalRef returns the pending candidate for the given
	// (case, external ref) pair, or sentinel.ErrNotFound when none is live.
	FindLiveByExternalRef(ctx context.Context, num id.CaseNumber, externalRef string) (*domain.MatchCandidate, error)
	// Decide records the verdict on a pending candidate. Returns
	// sentinel.ErrInvalidState when the candidate is no longer pending, so
	// exactly one of two racing decisions can succeed.
	Decide(ctx context.Context, matchID id.MatchID, decision domain.Decision, decidedBy id.ActorID, decidedAt time.Time) error
	// CountOpen reports how many pending and confirmed candidates remain for
	// the case. The review workflow uses it to decide whether a rejection
	// reverts the case to verified.
	CountOpen(ctx context.Context, num id.CaseNumber) (pending, confirmed int, err error)
}

// AuditStore is the append-only ledger. Entries are never edited or removed;
// Append assigns the insertion-order sequence.
type AuditStore interface {
	Append(ctx context.Context, entry *domain.AuditEntry) error
	// ListByCase returns the case's entries in insertion order.
	ListByCase(ctx context.Context, num id.CaseNumber) ([]domain.AuditEntry, error)
}

// ActorStore persists the portal's actor records.
type ActorStore interface {
	Save(ctx context.Context, rec *domain.ActorRecord) error
	FindByID(ctx context.Context, actorID id.ActorID) (*domain.ActorRecord, error)
	// SetVerified marks a police actor as verified by an admin. Returns
	// sentinel.ErrNotFound for unknown actors.
	SetVerified(ctx context.Context, actorID id.ActorID, verifiedBy id.ActorID, verifiedAt time.Time) error
}

// SequenceStore mints case numbers: a monotonically increasing sequence per
// year, formatted PEH-<year>-<seq>.
type SequenceStore interface {
	NextCaseNumber(ctx context.Context, year int) (id.CaseNumber, error)
}

// Stores bundles every store so transactional code receives one coherent
// view of persistence.
type Stores struct {
	Cases      CaseStore
	Candidates CandidateStore
	Audit      AuditStore
	Actors     ActorStore
	Sequences  SequenceStore
}

// TxRunner serializes state-mutating work per case. All mutations for a
// given case number execute under mutual exclusion; reads elsewhere see the
// last-committed state. Implementations may wrap a database transaction
// (postgres) or a sharded lock (in-memory).
type TxRunner interface {
	RunInCaseTx(ctx context.Context, num id.CaseNumber, fn func(ctx context.Context, s Stores) error) error
}
