package review

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"

	"casetrace/internal/audit"
	"casetrace/internal/authz"
	"casetrace/internal/cases"
	"casetrace/internal/classifier"
	"casetrace/internal/domain"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/requestcontext"
	"casetrace/pkg/testutil"
)

type ReviewServiceSuite struct {
	suite.Suite

	stores  storage.Stores
	svc     *Service
	casesvc *cases.Service

	citizen id.Actor
	police  id.Actor
	admin   id.Actor
}

func TestReviewServiceSuite(t *testing.T) {
	suite.Run(t, new(ReviewServiceSuite))
}

func (s *ReviewServiceSuite) SetupTest() {
	s.stores = storage.NewInMemoryStores()
	auth, err := authz.New()
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(s.stores.Audit, logger)
	txs := storage.NewShardedTxRunner(s.stores)
	s.svc = NewService(s.stores, txs, auth, recorder, nil, logger)
	s.casesvc = cases.NewService(s.stores, txs, auth, recorder, nil, logger)

	s.citizen = testutil.Citizen()
	s.police = testutil.VerifiedPolice()
	s.admin = testutil.Admin()
}

func (s *ReviewServiceSuite) ctxFor(actor id.Actor) context.Context {
	return requestcontext.WithActor(context.Background(), actor)
}

// verifiedCase files and verifies a fresh case, ready to accept candidates.
func (s *ReviewServiceSuite) verifiedCase() id.CaseNumber {
	subject := domain.SubjectProfile{
		Name:             "Jan Visser",
		BirthYear:        1988,
		LastSeenLocation: "Rotterdam Centraal",
		LastSeenAt:       time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
	}
	c, err := s.casesvc.CreateReport(s.ctxFor(s.citizen), subject, s.citizen.Name, "")
	s.Require().NoError(err)
	_, err = s.casesvc.Verify(s.ctxFor(s.police), c.Number)
	s.Require().NoError(err)
	return c.Number
}

func (s *ReviewServiceSuite) ingest(num id.CaseNumber, ref string, score float64) *domain.MatchCandidate {
	cand, err := s.svc.Ingest(context.Background(), CandidateInput{
		CaseNumber:  num,
		ExternalRef: ref,
		SubjectRef:  "shelter-amsterdam",
		RawScore:    score,
	})
	s.Require().NoError(err)
	return cand
}

func (s *ReviewServiceSuite) caseStatus(num id.CaseNumber) domain.Status {
	c, err := s.stores.Cases.FindByNumber(context.Background(), num)
	s.Require().NoError(err)
	return c.Status
}

func (s *ReviewServiceSuite) TestIngest() {
	s.Run("first candidate moves the case to under-review", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)

		s.Equal(domain.DecisionPending, cand.Decision)
		s.Equal(domain.StatusUnderReview, s.caseStatus(num))

		entries, err := s.stores.Audit.ListByCase(context.Background(), num)
		s.Require().NoError(err)
		last := entries[len(entries)-1]
		s.Equal(domain.AuditCandidateSurfaced, last.Action)
		s.Equal(domain.SystemActorID, last.ActorID)
		s.True(last.Transition())
	})

	s.Run("further candidates attach without another transition", func() {
		num := s.verifiedCase()
		s.ingest(num, "engine-ref-1", 0.85)
		s.ingest(num, "engine-ref-2", 0.65)

		s.Equal(domain.StatusUnderReview, s.caseStatus(num))
		candidates, err := s.stores.Candidates.ListByCase(context.Background(), num)
		s.Require().NoError(err)
		s.Len(candidates, 2)
	})

	s.Run("duplicate live reference is refused and logged", func() {
		num := s.verifiedCase()
		s.ingest(num, "engine-ref-1", 0.85)

		_, err := s.svc.Ingest(context.Background(), CandidateInput{
			CaseNumber: num, ExternalRef: "engine-ref-1", RawScore: 0.9,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeDuplicateCandidate))

		entries, err := s.stores.Audit.ListByCase(context.Background(), num)
		s.Require().NoError(err)
		s.Equal(domain.AuditCandidateDuplicate, entries[len(entries)-1].Action)
	})

	s.Run("score outside the unit interval is rejected", func() {
		num := s.verifiedCase()
		_, err := s.svc.Ingest(context.Background(), CandidateInput{
			CaseNumber: num, ExternalRef: "engine-ref-1", RawScore: 1.2,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidScore))
	})

	s.Run("submitted cases do not accept candidates", func() {
		subject := domain.SubjectProfile{Name: "X", LastSeenLocation: "Y"}
		c, err := s.casesvc.CreateReport(s.ctxFor(s.citizen), subject, "x", "")
		s.Require().NoError(err)

		_, err = s.svc.Ingest(context.Background(), CandidateInput{
			CaseNumber: c.Number, ExternalRef: "engine-ref-1", RawScore: 0.7,
		})
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})
}

func (s *ReviewServiceSuite) TestDecide() {
	s.Run("confirming a candidate moves the case to matched", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)

		decided, err := s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionConfirmed, "in-person identification")
		s.Require().NoError(err)
		s.Equal(domain.DecisionConfirmed, decided.Decision)
		s.Require().NotNil(decided.DecidedBy)
		s.Equal(s.police.ID, *decided.DecidedBy)
		s.Equal(domain.StatusMatched, s.caseStatus(num))
	})

	s.Run("rejecting the last open candidate reverts the case to verified", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)

		_, err := s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionRejected, "not the same person")
		s.Require().NoError(err)
		s.Equal(domain.StatusVerified, s.caseStatus(num))
	})

	s.Run("rejecting one of several keeps the case under review", func() {
		num := s.verifiedCase()
		first := s.ingest(num, "engine-ref-1", 0.85)
		s.ingest(num, "engine-ref-2", 0.65)

		_, err := s.svc.Decide(s.ctxFor(s.police), first.ID, domain.DecisionRejected, "no")
		s.Require().NoError(err)
		s.Equal(domain.StatusUnderReview, s.caseStatus(num))
	})

	s.Run("a rejected reference may be resubmitted for a fresh review", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)
		_, err := s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionRejected, "no")
		s.Require().NoError(err)

		fresh := s.ingest(num, "engine-ref-1", 0.85)
		s.NotEqual(cand.ID, fresh.ID)
		s.Equal(domain.DecisionPending, fresh.Decision)
	})

	s.Run("second decision on the same candidate fails", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)
		_, err := s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionConfirmed, "")
		s.Require().NoError(err)

		_, err = s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionRejected, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeAlreadyDecided))
	})

	s.Run("unverified police may not decide and the attempt is logged", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)

		rookie := testutil.UnverifiedPolice()
		_, err := s.svc.Decide(s.ctxFor(rookie), cand.ID, domain.DecisionConfirmed, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeUnverifiedActor))

		entries, err := s.stores.Audit.ListByCase(context.Background(), num)
		s.Require().NoError(err)
		s.Equal(domain.AuditActionDenied, entries[len(entries)-1].Action)
	})

	s.Run("citizens may not decide", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)
		_, err := s.svc.Decide(s.ctxFor(s.citizen), cand.ID, domain.DecisionConfirmed, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
	})
}

func (s *ReviewServiceSuite) TestConcurrentDecide() {
	num := s.verifiedCase()
	cand := s.ingest(num, "engine-ref-1", 0.85)

	second := testutil.VerifiedPolice()
	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i, actor := range []id.Actor{s.police, second} {
		wg.Add(1)
		go func(i int, actor id.Actor) {
			defer wg.Done()
			_, errs[i] = s.svc.Decide(s.ctxFor(actor), cand.ID, domain.DecisionConfirmed, "")
		}(i, actor)
	}
	wg.Wait()

	var won, lost int
	for _, err := range errs {
		if err == nil {
			won++
		} else if dErrors.HasCode(err, dErrors.CodeAlreadyDecided) {
			lost++
		}
	}
	s.Equal(1, won, "exactly one decision must win")
	s.Equal(1, lost, "the losing decision must fail as already decided")
	s.Equal(domain.StatusMatched, s.caseStatus(num))
}

func (s *ReviewServiceSuite) TestListCandidates() {
	num := s.verifiedCase()
	s.ingest(num, "engine-ref-1", 0.85)
	s.ingest(num, "engine-ref-2", 0.65)
	s.ingest(num, "engine-ref-3", 0.30)

	views, err := s.svc.ListCandidates(s.ctxFor(s.police), num)
	s.Require().NoError(err)
	s.Require().Len(views, 3)

	tiers := map[string]classifier.Tier{}
	for _, v := range views {
		tiers[v.Candidate.ExternalRef] = v.Tier
	}
	s.Equal(classifier.TierMatched, tiers["engine-ref-1"])
	s.Equal(classifier.TierUnderReview, tiers["engine-ref-2"])
	s.Equal(classifier.TierNoMatch, tiers["engine-ref-3"])

	_, err = s.svc.ListCandidates(s.ctxFor(s.citizen), num)
	s.Require().Error(err)
	s.True(dErrors.HasCode(err, dErrors.CodeForbidden))
}
