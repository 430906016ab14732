package review

import (
	"context"
	"time"

	"casetrace/internal/classifier"
	"casetrace/internal/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// TestFullCaseLifecycle walks one case from citizen report to administrative
// close and checks the ledger agrees with the materialized status at the end.
func (s *ReviewServiceSuite) TestFullCaseLifecycle() {
	subject := domain.SubjectProfile{
		Name:             "Sanne de Jong",
		BirthYear:        2001,
		LastSeenLocation: "Eindhoven Strijp-S",
		LastSeenAt:       time.Date(2026, 5, 2, 21, 15, 0, 0, time.UTC),
	}

	c, err := s.casesvc.CreateReport(s.ctxFor(s.citizen), subject, s.citizen.Name, "+31 6 1234 5678")
	s.Require().NoError(err)
	s.Equal(domain.StatusSubmitted, c.Status)

	_, err = s.casesvc.Verify(s.ctxFor(s.police), c.Number)
	s.Require().NoError(err)
	s.Equal(domain.StatusVerified, s.caseStatus(c.Number))

	// Engine surfaces a high-confidence candidate: the tier is matched, but
	// the case still waits for a human decision in under-review.
	cand := s.ingest(c.Number, "engine-ref-85", 0.85)
	tier, err := cand.Tier()
	s.Require().NoError(err)
	s.Equal(classifier.TierMatched, tier)
	s.Equal(domain.StatusUnderReview, s.caseStatus(c.Number))

	second := s.ingest(c.Number, "engine-ref-62", 0.62)

	decided, err := s.svc.Decide(s.ctxFor(s.police), cand.ID, domain.DecisionConfirmed, "family recognized the photo")
	s.Require().NoError(err)
	s.Equal(domain.DecisionConfirmed, decided.Decision)
	s.Equal(domain.StatusMatched, s.caseStatus(c.Number))

	_, err = s.casesvc.Close(s.ctxFor(s.admin), c.Number, "")
	s.Require().NoError(err)
	s.Equal(domain.StatusClosed, s.caseStatus(c.Number))

	s.Run("decisions on a closed case are refused", func() {
		_, err := s.svc.Decide(s.ctxFor(s.police), second.ID, domain.DecisionRejected, "")
		s.Require().Error(err)
		s.True(dErrors.HasCode(err, dErrors.CodeInvalidTransition))
	})

	s.Run("ledger replays to the materialized status", func() {
		report, err := s.casesvc.CheckConsistency(s.ctxFor(s.police), c.Number)
		s.Require().NoError(err)
		s.True(report.Consistent)
		s.Equal(domain.StatusClosed, report.Stored)
		s.Equal(domain.StatusClosed, report.Replayed)
	})

	s.Run("ledger has every step in order", func() {
		entries, err := s.stores.Audit.ListByCase(context.Background(), c.Number)
		s.Require().NoError(err)

		var actions []domain.AuditAction
		for _, e := range entries {
			actions = append(actions, e.Action)
		}
		s.Equal([]domain.AuditAction{
			domain.AuditCaseCreated,
			domain.AuditCaseVerified,
			domain.AuditCandidateSurfaced,
			domain.AuditCandidateSurfaced,
			domain.AuditMatchConfirmed,
			domain.AuditCaseClosed,
		}, actions)
	})
}
