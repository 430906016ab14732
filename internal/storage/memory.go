package storage

import (
	"context"
	"sort"
	"sync"
	"time"

	"casetrace/internal/domain"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/sentinel"
)

// In-memory stores keep tests and single-node deployments lightweight. They
// intentionally favor clarity over performance.

type InMemoryCaseStore struct {
	mu    sync.RWMutex
	cases map[id.CaseNumber]domain.Case
}

func NewInMemoryCaseStore() *InMemoryCaseStore {
	return &InMemoryCaseStore{cases: make(map[id.CaseNumber]domain.Case)}
}

func (s *InMemoryCaseStore) Create(_ context.Context, c *domain.Case) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.cases[c.Number]; ok {
		return sentinel.ErrConflict
	}
	s.cases[c.Number] = *c
	return nil
}

func (s *InMemoryCaseStore) FindByNumber(_ context.Context, num id.CaseNumber) (*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.cases[num]; ok {
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryCaseStore) List(_ context.Context) ([]*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*domain.Case, 0, len(s.cases))
	for num := range s.cases {
		c := s.cases[num]
		out = append(out, &c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemoryCaseStore) ListByReporter(_ context.Context, reporter id.ActorID) ([]*domain.Case, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.Case
	for num := range s.cases {
		c := s.cases[num]
		if c.Reporter.ActorID == reporter {
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *InMemoryCaseStore) UpdateStatus(_ context.Context, num id.CaseNumber, from, to domain.Status) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.cases[num]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Status != from {
		return sentinel.ErrInvalidState
	}
	c.Status = to
	s.cases[num] = c
	return nil
}

type InMemoryCandidateStore struct {
	mu         sync.RWMutex
	candidates map[id.MatchID]domain.MatchCandidate
	order      []id.MatchID
}

func NewInMemoryCandidateStore() *InMemoryCandidateStore {
	return &InMemoryCandidateStore{candidates: make(map[id.MatchID]domain.MatchCandidate)}
}

func (s *InMemoryCandidateStore) Create(_ context.Context, c *domain.MatchCandidate) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, existing := range s.candidates {
		if existing.CaseNumber == c.CaseNumber && existing.ExternalRef == c.ExternalRef && existing.Live() {
			return sentinel.ErrConflict
		}
	}
	s.candidates[c.ID] = *c
	s.order = append(s.order, c.ID)
	return nil
}

func (s *InMemoryCandidateStore) FindByID(_ context.Context, matchID id.MatchID) (*domain.MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if c, ok := s.candidates[matchID]; ok {
		return &c, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryCandidateStore) ListByCase(_ context.Context, num id.CaseNumber) ([]*domain.MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*domain.MatchCandidate
	for _, matchID := range s.order {
		c := s.candidates[matchID]
		if c.CaseNumber == num {
			copied := c
			out = append(out, &copied)
		}
	}
	return out, nil
}

func (s *InMemoryCandidateStore) FindLiveByExternalRef(_ context.Context, num id.CaseNumber, externalRef string) (*domain.MatchCandidate, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates {
		if c.CaseNumber == num && c.ExternalRef == externalRef && c.Live() {
			copied := c
			return &copied, nil
		}
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryCandidateStore) Decide(_ context.Context, matchID id.MatchID, decision domain.Decision, decidedBy id.ActorID, decidedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.candidates[matchID]
	if !ok {
		return sentinel.ErrNotFound
	}
	if c.Decision != domain.DecisionPending {
		return sentinel.ErrInvalidState
	}
	c.Decision = decision
	c.DecidedBy = &decidedBy
	c.DecidedAt = &decidedAt
	s.candidates[matchID] = c
	return nil
}

func (s *InMemoryCandidateStore) CountOpen(_ context.Context, num id.CaseNumber) (pending, confirmed int, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.candidates {
		if c.CaseNumber != num {
			continue
		}
		switch c.Decision {
		case domain.DecisionPending:
			pending++
		case domain.DecisionConfirmed:
			confirmed++
		}
	}
	return pending, confirmed, nil
}

type InMemoryAuditStore struct {
	mu      sync.RWMutex
	entries map[id.CaseNumber][]domain.AuditEntry
	nextSeq int64
}

func NewInMemoryAuditStore() *InMemoryAuditStore {
	return &InMemoryAuditStore{entries: make(map[id.CaseNumber][]domain.AuditEntry)}
}

func (s *InMemoryAuditStore) Append(_ context.Context, entry *domain.AuditEntry) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSeq++
	entry.Seq = s.nextSeq
	s.entries[entry.CaseNumber] = append(s.entries[entry.CaseNumber], *entry)
	return nil
}

func (s *InMemoryAuditStore) ListByCase(_ context.Context, num id.CaseNumber) ([]domain.AuditEntry, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return append([]domain.AuditEntry{}, s.entries[num]...), nil
}

type InMemoryActorStore struct {
	mu     sync.RWMutex
	actors map[id.ActorID]domain.ActorRecord
}

func NewInMemoryActorStore() *InMemoryActorStore {
	return &InMemoryActorStore{actors: make(map[id.ActorID]domain.ActorRecord)}
}

func (s *InMemoryActorStore) Save(_ context.Context, rec *domain.ActorRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.actors[rec.ID] = *rec
	return nil
}

func (s *InMemoryActorStore) FindByID(_ context.Context, actorID id.ActorID) (*domain.ActorRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.actors[actorID]; ok {
		return &rec, nil
	}
	return nil, sentinel.ErrNotFound
}

func (s *InMemoryActorStore) SetVerified(_ context.Context, actorID id.ActorID, verifiedBy id.ActorID, verifiedAt time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.actors[actorID]
	if !ok {
		return sentinel.ErrNotFound
	}
	rec.Verified = true
	rec.VerifiedBy = &verifiedBy
	rec.VerifiedAt = &verifiedAt
	s.actors[actorID] = rec
	return nil
}

type InMemorySequenceStore struct {
	mu   sync.Mutex
	last map[int]int
}

func NewInMemorySequenceStore() *InMemorySequenceStore {
	return &InMemorySequenceStore{last: make(map[int]int)}
}

func (s *InMemorySequenceStore) NextCaseNumber(_ context.Context, year int) (id.CaseNumber, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.last[year]++
	return id.FormatCaseNumber(year, s.last[year]), nil
}

// NewInMemoryStores bundles fresh in-memory stores, the default wiring for
// tests and single-node runs.
func NewInMemoryStores() Stores {
	return Stores{
		Cases:      NewInMemoryCaseStore(),
		Candidates: NewInMemoryCandidateStore(),
		Audit:      NewInMemoryAuditStore(),
		Actors:     NewInMemoryActorStore(),
		Sequences:  NewInMemorySequenceStore(),
	}
}
