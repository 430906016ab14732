//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/suite"

	"casetrace/internal/domain"
	"casetrace/internal/storage"
	"casetrace/internal/storage/postgres"
	id "casetrace/pkg/domain"
	"casetrace/pkg/platform/sentinel"
	"casetrace/pkg/testutil/containers"
)

type PostgresStoresSuite struct {
	suite.Suite
	pg     *containers.PostgresContainer
	stores storage.Stores
	txs    *postgres.TxRunner
}

func TestPostgresStoresSuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresStoresSuite))
}

func (s *PostgresStoresSuite) SetupSuite() {
	s.pg = containers.NewPostgresContainer(s.T())
	s.Require().NoError(postgres.Migrate(context.Background(), s.pg.DB))
	s.stores = postgres.NewStores(s.pg.DB)
	s.txs = postgres.NewTxRunner(s.pg.DB, s.stores)
}

func (s *PostgresStoresSuite) SetupTest() {
	err := s.pg.TruncateTables(context.Background(),
		"match_candidates", "audit_entries", "cases", "actors", "case_number_seq")
	s.Require().NoError(err)
}

func (s *PostgresStoresSuite) fileCase(num id.CaseNumber) *domain.Case {
	c := &domain.Case{
		Number: num,
		Subject: domain.SubjectProfile{
			Name:             "Jan Visser",
			LastSeenLocation: "Utrecht Centraal",
			LastSeenAt:       time.Now().UTC(),
		},
		Reporter:  domain.Reporter{ActorID: id.ActorID(uuid.New()), Name: "M. Visser"},
		Status:    domain.StatusSubmitted,
		CreatedAt: time.Now().UTC(),
	}
	s.Require().NoError(s.stores.Cases.Create(context.Background(), c))
	return c
}

func (s *PostgresStoresSuite) TestCaseRoundTrip() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	created := s.fileCase(num)

	got, err := s.stores.Cases.FindByNumber(ctx, num)
	s.Require().NoError(err)
	s.Equal(created.Subject.Name, got.Subject.Name)
	s.Equal(created.Reporter.ActorID, got.Reporter.ActorID)
	s.Equal(domain.StatusSubmitted, got.Status)

	s.Run("duplicate number conflicts", func() {
		err := s.stores.Cases.Create(ctx, created)
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("unknown number is not found", func() {
		_, err := s.stores.Cases.FindByNumber(ctx, id.FormatCaseNumber(2026, 999))
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

func (s *PostgresStoresSuite) TestUpdateStatusCompareAndSwap() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	s.Require().NoError(s.stores.Cases.UpdateStatus(ctx, num, domain.StatusSubmitted, domain.StatusVerified))

	err := s.stores.Cases.UpdateStatus(ctx, num, domain.StatusSubmitted, domain.StatusRejected)
	s.Require().ErrorIs(err, sentinel.ErrInvalidState)

	got, err := s.stores.Cases.FindByNumber(ctx, num)
	s.Require().NoError(err)
	s.Equal(domain.StatusVerified, got.Status)
}

func (s *PostgresStoresSuite) TestLiveCandidateUniquePerExternalRef() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	mk := func() *domain.MatchCandidate {
		return &domain.MatchCandidate{
			ID:          id.NewMatchID(),
			CaseNumber:  num,
			ExternalRef: "reg-7",
			SubjectRef:  "person-1",
			RawScore:    0.8,
			Decision:    domain.DecisionPending,
			CreatedAt:   time.Now().UTC(),
		}
	}

	first := mk()
	s.Require().NoError(s.stores.Candidates.Create(ctx, first))

	s.Run("second live candidate conflicts", func() {
		err := s.stores.Candidates.Create(ctx, mk())
		s.Require().ErrorIs(err, sentinel.ErrConflict)
	})

	s.Run("rejection frees the ref", func() {
		decider := id.ActorID(uuid.New())
		s.Require().NoError(s.stores.Candidates.Decide(ctx, first.ID, domain.DecisionRejected, decider, time.Now().UTC()))
		s.Require().NoError(s.stores.Candidates.Create(ctx, mk()))
	})
}

func (s *PostgresStoresSuite) TestConcurrentDecideHasOneWinner() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	cand := &domain.MatchCandidate{
		ID:          id.NewMatchID(),
		CaseNumber:  num,
		ExternalRef: "reg-7",
		SubjectRef:  "person-1",
		RawScore:    0.8,
		Decision:    domain.DecisionPending,
		CreatedAt:   time.Now().UTC(),
	}
	s.Require().NoError(s.stores.Candidates.Create(ctx, cand))

	const racers = 10
	var wg sync.WaitGroup
	results := make(chan error, racers)
	for i := 0; i < racers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			results <- s.stores.Candidates.Decide(ctx, cand.ID, domain.DecisionConfirmed, id.ActorID(uuid.New()), time.Now().UTC())
		}()
	}
	wg.Wait()
	close(results)

	wins, losses := 0, 0
	for err := range results {
		switch {
		case err == nil:
			wins++
		case errors.Is(err, sentinel.ErrInvalidState):
			losses++
		default:
			s.Failf("unexpected decide error", "%v", err)
		}
	}
	s.Equal(1, wins)
	s.Equal(racers-1, losses)
}

func (s *PostgresStoresSuite) TestAuditLedgerOrdering() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	for _, action := range []domain.AuditAction{domain.AuditCaseCreated, domain.AuditCaseVerified} {
		entry := &domain.AuditEntry{
			ID:         uuid.New(),
			CaseNumber: num,
			Timestamp:  time.Now().UTC(),
			ActorID:    "system",
			Action:     action,
		}
		s.Require().NoError(s.stores.Audit.Append(ctx, entry))
		s.Positive(entry.Seq)
	}

	entries, err := s.stores.Audit.ListByCase(ctx, num)
	s.Require().NoError(err)
	s.Require().Len(entries, 2)
	s.Less(entries[0].Seq, entries[1].Seq)
	s.Equal(domain.AuditCaseCreated, entries[0].Action)
}

func (s *PostgresStoresSuite) TestSequenceMintsUniqueNumbers() {
	ctx := context.Background()
	const goroutines = 20

	var wg sync.WaitGroup
	numbers := make(chan id.CaseNumber, goroutines)
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			num, err := s.stores.Sequences.NextCaseNumber(ctx, 2026)
			s.NoError(err)
			numbers <- num
		}()
	}
	wg.Wait()
	close(numbers)

	seen := make(map[id.CaseNumber]bool)
	for num := range numbers {
		s.False(seen[num], "case number %s minted twice", num)
		seen[num] = true
	}
	s.Len(seen, goroutines)
}

func (s *PostgresStoresSuite) TestActorVerification() {
	ctx := context.Background()
	officer := id.ActorID(uuid.New())
	admin := id.ActorID(uuid.New())

	s.Require().NoError(s.stores.Actors.Save(ctx, &domain.ActorRecord{
		ID:        officer,
		Name:      "New Officer",
		Role:      id.RolePolice,
		CreatedAt: time.Now().UTC(),
	}))

	s.Require().NoError(s.stores.Actors.SetVerified(ctx, officer, admin, time.Now().UTC()))

	rec, err := s.stores.Actors.FindByID(ctx, officer)
	s.Require().NoError(err)
	s.True(rec.Verified)
	s.Require().NotNil(rec.VerifiedBy)
	s.Equal(admin, *rec.VerifiedBy)

	s.Run("unknown actor", func() {
		err := s.stores.Actors.SetVerified(ctx, id.ActorID(uuid.New()), admin, time.Now().UTC())
		s.Require().ErrorIs(err, sentinel.ErrNotFound)
	})
}

// TestTxRollbackKeepsStatusAndLedgerCoherent verifies the core transactional
// guarantee: when the function passed to the runner fails after mutating both
// the case row and the ledger, neither write survives.
func (s *PostgresStoresSuite) TestTxRollbackKeepsStatusAndLedgerCoherent() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	failure := errors.New("ledger append refused")
	err := s.txs.RunInCaseTx(ctx, num, func(ctx context.Context, st storage.Stores) error {
		if err := st.Cases.UpdateStatus(ctx, num, domain.StatusSubmitted, domain.StatusVerified); err != nil {
			return err
		}
		entry := &domain.AuditEntry{
			ID:         uuid.New(),
			CaseNumber: num,
			Timestamp:  time.Now().UTC(),
			ActorID:    "system",
			Action:     domain.AuditCaseVerified,
			FromStatus: domain.StatusSubmitted,
			ToStatus:   domain.StatusVerified,
		}
		if err := st.Audit.Append(ctx, entry); err != nil {
			return err
		}
		return failure
	})
	s.Require().ErrorIs(err, failure)

	got, err := s.stores.Cases.FindByNumber(ctx, num)
	s.Require().NoError(err)
	s.Equal(domain.StatusSubmitted, got.Status, "status change must roll back")

	entries, err := s.stores.Audit.ListByCase(ctx, num)
	s.Require().NoError(err)
	s.Empty(entries, "ledger entry must roll back with the status")
}

func (s *PostgresStoresSuite) TestTxCommitPersistsBothWrites() {
	ctx := context.Background()
	num := id.FormatCaseNumber(2026, 1)
	s.fileCase(num)

	err := s.txs.RunInCaseTx(ctx, num, func(ctx context.Context, st storage.Stores) error {
		if err := st.Cases.UpdateStatus(ctx, num, domain.StatusSubmitted, domain.StatusVerified); err != nil {
			return err
		}
		return st.Audit.Append(ctx, &domain.AuditEntry{
			ID:         uuid.New(),
			CaseNumber: num,
			Timestamp:  time.Now().UTC(),
			ActorID:    "system",
			Action:     domain.AuditCaseVerified,
			FromStatus: domain.StatusSubmitted,
			ToStatus:   domain.StatusVerified,
		})
	})
	s.Require().NoError(err)

	got, err := s.stores.Cases.FindByNumber(ctx, num)
	s.Require().NoError(err)
	s.Equal(domain.StatusVerified, got.Status)

	entries, err := s.stores.Audit.ListByCase(ctx, num)
	s.Require().NoError(err)
	s.Require().Len(entries, 1)
	s.Equal(domain.AuditCaseVerified, entries[0].Action)
}
