// Package review owns the match review workflow: ingesting candidates from
// the external search engine, surfacing them to reviewers, and recording the
// exactly-once human decision that resolves each one.
package review

import (
	"context"
	"errors"
	"log/slog"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"casetrace/internal/audit"
	"casetrace/internal/authz"
	"casetrace/internal/cases"
	"casetrace/internal/classifier"
	"casetrace/internal/domain"
	"casetrace/internal/review/metrics"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/sentinel"
	"casetrace/pkg/requestcontext"
)

// CandidateInput is one proposed identification offered for review.
type CandidateInput struct {
	CaseNumber  id.CaseNumber
	ExternalRef string
	SubjectRef  string
	RawScore    float64
}

// Service orchestrates candidate ingestion and reviewer decisions. Every
// mutation runs in the owning case's transaction so candidate state, case
// status, and the ledger can never disagree.
type Service struct {
	stores   storage.Stores
	txs      storage.TxRunner
	auth     *authz.Authorizer
	recorder *audit.Recorder
	metrics  *metrics.Metrics
	logger   *slog.Logger
	tracer   trace.Tracer
}

func NewService(stores storage.Stores, txs storage.TxRunner, auth *authz.Authorizer, recorder *audit.Recorder, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		stores:   stores,
		txs:      txs,
		auth:     auth,
		recorder: recorder,
		metrics:  m,
		logger:   logger,
		tracer:   otel.Tracer("casetrace/review"),
	}
}

// Ingest accepts a candidate from the search engine pipeline. It acts as
// the system, not a human actor, and needs no authorization. Duplicate
// submissions fail with CodeDuplicateCandidate; the pipeline treats that as
// a no-op.
func (s *Service) Ingest(ctx context.Context, input CandidateInput) (*domain.MatchCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "review.Ingest",
		trace.WithAttributes(attribute.String("case_number", input.CaseNumber.String())))
	defer span.End()
	return s.submit(ctx, input, domain.SystemActorID)
}

// Submit accepts a manually entered candidate from an admin, for engine
// results that arrived out of band.
func (s *Service) Submit(ctx context.Context, input CandidateInput) (*domain.MatchCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "review.Submit",
		trace.WithAttributes(attribute.String("case_number", input.CaseNumber.String())))
	defer span.End()

	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, authz.ActionSubmitCandidate); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		s.recordDenied(ctx, input.CaseNumber, actor.ID.String(), authz.ActionSubmitCandidate, err)
		return nil, err
	}
	return s.submit(ctx, input, actor.ID.String())
}

func (s *Service) submit(ctx context.Context, input CandidateInput, actorID string) (*domain.MatchCandidate, error) {
	tier, err := classifier.Classify(input.RawScore)
	if err != nil {
		return nil, err
	}
	if input.ExternalRef == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "external ref is required")
	}

	var (
		candidate *domain.MatchCandidate
		entry     domain.AuditEntry
		duplicate bool
	)
	err = s.txs.RunInCaseTx(ctx, input.CaseNumber, func(ctx context.Context, st storage.Stores) error {
		c, err := st.Cases.FindByNumber(ctx, input.CaseNumber)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "case not found")
			}
			return err
		}
		if c.Status != domain.StatusVerified && c.Status != domain.StatusUnderReview {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "case in %s does not accept candidates", c.Status)
		}

		// One live candidate per (case, external ref). A retired candidate
		// does not block resubmission: a fresh record restarts review.
		// The transaction commits normally so the duplicate attempt lands
		// on the ledger; the submission error is raised after commit.
		if _, err := st.Candidates.FindLiveByExternalRef(ctx, input.CaseNumber, input.ExternalRef); err == nil {
			dup, err := cases.AppendActivity(ctx, st, input.CaseNumber, c.Status, actorID, domain.AuditCandidateDuplicate,
				"duplicate submission for "+input.ExternalRef)
			if err != nil {
				return err
			}
			entry, duplicate = dup, true
			return nil
		} else if !errors.Is(err, sentinel.ErrNotFound) {
			return err
		}

		cand := &domain.MatchCandidate{
			ID:          id.NewMatchID(),
			CaseNumber:  input.CaseNumber,
			ExternalRef: input.ExternalRef,
			SubjectRef:  input.SubjectRef,
			RawScore:    input.RawScore,
			Decision:    domain.DecisionPending,
			CreatedAt:   requestcontext.Now(ctx),
		}
		if err := st.Candidates.Create(ctx, cand); err != nil {
			return err
		}

		if c.Status == domain.StatusVerified {
			applied, err := cases.ApplyTransition(ctx, st, input.CaseNumber, c.Status, cases.EventCandidateSurfaced,
				actorID, domain.AuditCandidateSurfaced, "candidate "+cand.ID.String())
			if err != nil {
				return err
			}
			entry = applied
		} else {
			surfaced, err := cases.AppendActivity(ctx, st, input.CaseNumber, c.Status, actorID,
				domain.AuditCandidateSurfaced, "candidate "+cand.ID.String())
			if err != nil {
				return err
			}
			entry = surfaced
		}
		candidate = cand
		return nil
	})
	if err != nil {
		return nil, err
	}
	s.recorder.Announce(entry)
	if duplicate {
		s.metrics.IncrementDuplicate()
		return nil, dErrors.New(dErrors.CodeDuplicateCandidate, "a live candidate already exists for this reference")
	}

	s.metrics.IncrementIngested(string(tier))
	s.logger.Info("candidate surfaced",
		"case_number", input.CaseNumber,
		"match_id", candidate.ID,
		"tier", tier,
	)
	return candidate, nil
}

// CandidateView pairs a candidate with its derived confidence tier.
type CandidateView struct {
	Candidate *domain.MatchCandidate
	Tier      classifier.Tier
}

// ListCandidates returns a case's candidates, newest first is not promised;
// store insertion order is. Each is paired with its recomputed tier.
func (s *Service) ListCandidates(ctx context.Context, num id.CaseNumber) ([]CandidateView, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, authz.ActionListCandidates); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}
	if _, err := s.stores.Cases.FindByNumber(ctx, num); err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
		}
		return nil, err
	}
	candidates, err := s.stores.Candidates.ListByCase(ctx, num)
	if err != nil {
		return nil, err
	}
	views := make([]CandidateView, 0, len(candidates))
	for _, cand := range candidates {
		tier, err := cand.Tier()
		if err != nil {
			return nil, dErrors.Wrap(err, dErrors.CodeInternal, "stored candidate has an invalid score")
		}
		views = append(views, CandidateView{Candidate: cand, Tier: tier})
	}
	return views, nil
}

// Decide records the reviewer's verdict on a pending candidate. Exactly one
// decision wins: a second decision, concurrent or later, fails with
// CodeAlreadyDecided and changes nothing.
//
// Confirming moves the case to matched. Rejecting retires the candidate;
// when it was the case's last open candidate the case drops back to
// verified so the search pipeline can surface new ones.
func (s *Service) Decide(ctx context.Context, matchID id.MatchID, decision domain.Decision, note string) (*domain.MatchCandidate, error) {
	ctx, span := s.tracer.Start(ctx, "review.Decide",
		trace.WithAttributes(attribute.String("match_id", matchID.String())))
	defer span.End()

	if decision != domain.DecisionConfirmed && decision != domain.DecisionRejected {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "decision must be confirmed or rejected")
	}

	// Resolve the owning case outside the lock; the authoritative re-read
	// happens inside the transaction.
	located, err := s.stores.Candidates.FindByID(ctx, matchID)
	if err != nil {
		if errors.Is(err, sentinel.ErrNotFound) {
			return nil, dErrors.New(dErrors.CodeNotFound, "match candidate not found")
		}
		return nil, err
	}
	num := located.CaseNumber

	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, authz.ActionDecideMatch); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		s.recordDenied(ctx, num, actor.ID.String(), authz.ActionDecideMatch, err)
		return nil, err
	}

	var (
		decided *domain.MatchCandidate
		entry   domain.AuditEntry
	)
	err = s.txs.RunInCaseTx(ctx, num, func(ctx context.Context, st storage.Stores) error {
		cand, err := st.Candidates.FindByID(ctx, matchID)
		if err != nil {
			if errors.Is(err, sentinel.ErrNotFound) {
				return dErrors.New(dErrors.CodeNotFound, "match candidate not found")
			}
			return err
		}
		if !cand.Live() {
			return dErrors.Newf(dErrors.CodeAlreadyDecided, "candidate was already %s", cand.Decision)
		}
		c, err := st.Cases.FindByNumber(ctx, num)
		if err != nil {
			return err
		}
		if c.Status != domain.StatusUnderReview {
			return dErrors.Newf(dErrors.CodeInvalidTransition, "case in %s has no reviewable candidates", c.Status)
		}

		now := requestcontext.Now(ctx)
		if err := st.Candidates.Decide(ctx, matchID, decision, actor.ID, now); err != nil {
			if errors.Is(err, sentinel.ErrInvalidState) {
				return dErrors.New(dErrors.CodeAlreadyDecided, "candidate was decided concurrently")
			}
			return err
		}
		cand.Decision = decision
		cand.DecidedBy = &actor.ID
		cand.DecidedAt = &now

		switch decision {
		case domain.DecisionConfirmed:
			applied, err := cases.ApplyTransition(ctx, st, num, c.Status, cases.EventConfirmMatch,
				actor.ID.String(), domain.AuditMatchConfirmed, note)
			if err != nil {
				return err
			}
			entry = applied
		case domain.DecisionRejected:
			pending, confirmed, err := st.Candidates.CountOpen(ctx, num)
			if err != nil {
				return err
			}
			if pending == 0 && confirmed == 0 {
				applied, err := cases.ApplyTransition(ctx, st, num, c.Status, cases.EventDeclineMatch,
					actor.ID.String(), domain.AuditMatchRejected, note)
				if err != nil {
					return err
				}
				entry = applied
			} else {
				recorded, err := cases.AppendActivity(ctx, st, num, c.Status, actor.ID.String(),
					domain.AuditMatchRejected, note)
				if err != nil {
					return err
				}
				entry = recorded
			}
		}
		decided = cand
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Announce(entry)
	s.metrics.IncrementDecision(decision.String())
	s.logger.Info("candidate decided",
		"case_number", num,
		"match_id", matchID,
		"decision", decision,
		"reviewer", actor.ID,
	)
	return decided, nil
}

// recordDenied writes an action_denied ledger line for a refused review
// action. Best effort, same contract as the case lifecycle service.
func (s *Service) recordDenied(ctx context.Context, num id.CaseNumber, actorID string, action authz.Action, cause error) {
	c, err := s.stores.Cases.FindByNumber(ctx, num)
	if err != nil {
		return
	}
	entry, err := cases.AppendActivity(ctx, s.stores, num, c.Status, actorID, domain.AuditActionDenied,
		"denied "+string(action)+": "+dErrors.MessageOf(cause))
	if err != nil {
		s.logger.Warn("failed to record denied action", "case_number", num, "error", err)
		return
	}
	s.recorder.Announce(entry)
}
