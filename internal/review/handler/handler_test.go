package handler

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/suite"

	"casetrace/internal/audit"
	"casetrace/internal/authz"
	"casetrace/internal/cases"
	"casetrace/internal/domain"
	"casetrace/internal/review"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	"casetrace/pkg/requestcontext"
	"casetrace/pkg/testutil"
)

type ReviewHandlerSuite struct {
	suite.Suite

	router  *chi.Mux
	stores  storage.Stores
	svc     *review.Service
	casesvc *cases.Service

	citizen id.Actor
	police  id.Actor
	admin   id.Actor
}

func TestReviewHandlerSuite(t *testing.T) {
	suite.Run(t, new(ReviewHandlerSuite))
}

func (s *ReviewHandlerSuite) SetupTest() {
	s.stores = storage.NewInMemoryStores()
	auth, err := authz.New()
	s.Require().NoError(err)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	recorder := audit.NewRecorder(s.stores.Audit, logger)
	txs := storage.NewShardedTxRunner(s.stores)
	s.svc = review.NewService(s.stores, txs, auth, recorder, nil, logger)
	s.casesvc = cases.NewService(s.stores, txs, auth, recorder, nil, logger)

	s.router = chi.NewRouter()
	New(s.svc, logger).Register(s.router)

	s.citizen = testutil.Citizen()
	s.police = testutil.VerifiedPolice()
	s.admin = testutil.Admin()
}

func (s *ReviewHandlerSuite) verifiedCase() id.CaseNumber {
	subject := domain.SubjectProfile{
		Name:             "Jan Visser",
		LastSeenLocation: "Rotterdam Centraal",
		LastSeenAt:       time.Date(2026, 3, 14, 18, 30, 0, 0, time.UTC),
	}
	ctx := requestcontext.WithActor(context.Background(), s.citizen)
	c, err := s.casesvc.CreateReport(ctx, subject, s.citizen.Name, "")
	s.Require().NoError(err)
	_, err = s.casesvc.Verify(requestcontext.WithActor(context.Background(), s.police), c.Number)
	s.Require().NoError(err)
	return c.Number
}

func (s *ReviewHandlerSuite) ingest(num id.CaseNumber, ref string, score float64) *domain.MatchCandidate {
	cand, err := s.svc.Ingest(context.Background(), review.CandidateInput{
		CaseNumber: num, ExternalRef: ref, SubjectRef: "shelter-utrecht", RawScore: score,
	})
	s.Require().NoError(err)
	return cand
}

func (s *ReviewHandlerSuite) TestSubmit() {
	s.Run("admin submits a manual candidate", func() {
		num := s.verifiedCase()
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+num.String()+"/candidates",
			SubmitCandidateRequest{ExternalRef: "manual-1", SubjectRef: "tip-line", RawScore: 0.91}), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusCreated)

		resp := testutil.UnmarshalResponse[CandidateResponse](s.T(), rr)
		s.Equal("matched", resp.Tier)
		s.Equal("pending", resp.Decision)
	})

	s.Run("police may not submit manually", func() {
		num := s.verifiedCase()
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+num.String()+"/candidates",
			SubmitCandidateRequest{ExternalRef: "manual-1", RawScore: 0.5}), s.police)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusForbidden, "forbidden")
	})

	s.Run("duplicate submission is a conflict", func() {
		num := s.verifiedCase()
		s.ingest(num, "engine-ref-1", 0.85)
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/cases/"+num.String()+"/candidates",
			SubmitCandidateRequest{ExternalRef: "engine-ref-1", RawScore: 0.85}), s.admin)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "duplicate_candidate")
	})
}

func (s *ReviewHandlerSuite) TestList() {
	num := s.verifiedCase()
	s.ingest(num, "engine-ref-1", 0.85)
	s.ingest(num, "engine-ref-2", 0.40)

	req := testutil.WithActor(testutil.NewRequest(s.T(), http.MethodGet, "/cases/"+num.String()+"/candidates"), s.police)
	rr := testutil.DoRequest(s.router, req)
	testutil.AssertStatus(s.T(), rr, http.StatusOK)

	body := testutil.UnmarshalResponse[struct {
		Candidates []CandidateResponse `json:"candidates"`
	}](s.T(), rr)
	s.Require().Len(body.Candidates, 2)
}

func (s *ReviewHandlerSuite) TestDecide() {
	s.Run("police confirm a candidate", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)

		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/matches/"+cand.ID.String()+"/decision",
			DecisionRequest{Decision: "confirmed", Note: "identified at shelter"}), s.police)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatus(s.T(), rr, http.StatusOK)
		s.Equal("confirmed", testutil.UnmarshalResponse[CandidateResponse](s.T(), rr).Decision)
	})

	s.Run("pending is not a settable decision", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/matches/"+cand.ID.String()+"/decision",
			DecisionRequest{Decision: "pending"}), s.police)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})

	s.Run("second decision is reported as already decided", func() {
		num := s.verifiedCase()
		cand := s.ingest(num, "engine-ref-1", 0.85)
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/matches/"+cand.ID.String()+"/decision",
			DecisionRequest{Decision: "rejected", Note: "no"}), s.police)
		testutil.AssertStatus(s.T(), testutil.DoRequest(s.router, req), http.StatusOK)

		req = testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/matches/"+cand.ID.String()+"/decision",
			DecisionRequest{Decision: "confirmed"}), s.police)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusConflict, "already_decided")
	})

	s.Run("malformed match id is rejected", func() {
		req := testutil.WithActor(testutil.NewJSONRequest(s.T(), http.MethodPost, "/matches/nonsense/decision",
			DecisionRequest{Decision: "confirmed"}), s.police)
		rr := testutil.DoRequest(s.router, req)
		testutil.AssertStatusAndError(s.T(), rr, http.StatusBadRequest, "invalid_input")
	})
}
