// Package cases owns the case lifecycle: filing, verification, rejection,
// closure, and the status state machine the review workflow drives through.
// Every mutation runs inside a per-case transaction and lands in the audit
// ledger, or it does not happen at all.
package cases

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"casetrace/internal/audit"
	"casetrace/internal/authz"
	"casetrace/internal/cases/metrics"
	"casetrace/internal/domain"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/sentinel"
	"casetrace/pkg/requestcontext"
)

// asNotFound maps the store's not-found sentinel to the coded error the
// surface returns; other store failures pass through untouched.
func asNotFound(err error) error {
	if errors.Is(err, sentinel.ErrNotFound) {
		return dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return err
}

// Service orchestrates case lifecycle operations. It authorizes every call
// through the capability table, applies transitions through the shared
// state machine, and records everything (including denied attempts) in the
// audit ledger.
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
		tracer:   otel.Tracer("casetrace/cases"),
	}
}

// CreateReport files a new missing-person case for the authenticated
// citizen. The case number is minted from the yearly sequence and the case
// starts in submitted with a case_created ledger entry.
func (s *Service) CreateReport(ctx context.Context, subject domain.SubjectProfile, reporterName, reporterPhone string) (*domain.Case, error) {
	ctx, span := s.tracer.Start(ctx, "cases.CreateReport")
	defer span.End()

	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, authz.ActionCreateCase); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}
	if err := validateSubject(subject); err != nil {
		return nil, err
	}

	now := requestcontext.Now(ctx)
	num, err := s.stores.Sequences.NextCaseNumber(ctx, now.Year())
	if err != nil {
		return nil, dErrors.Wrap(err, dErrors.CodeUnavailable, "mint case number")
	}
	span.SetAttributes(attribute.String("case_number", num.String()))

	c := &domain.Case{
		Number:  num,
		Subject: subject,
		Reporter: domain.Reporter{
			ActorID: actor.ID,
			Name:    reporterName,
			Phone:   reporterPhone,
		},
		Status:    domain.StatusSubmitted,
		CreatedAt: now,
	}

	var entry domain.AuditEntry
	err = s.txs.RunInCaseTx(ctx, num, func(ctx context.Context, st storage.Stores) error {
		if err := st.Cases.Create(ctx, c); err != nil {
			return err
		}
		created, err := AppendCreation(ctx, st, num, actor.ID.String())
		if err != nil {
			return err
		}
		entry = created
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.recorder.Announce(entry)
	s.metrics.IncrementTransition(string(EventCreate), domain.StatusSubmitted.String())
	s.logger.Info("case filed",
		"case_number", num,
		"reporter", actor.ID,
	)
	return c, nil
}

// Verify moves a submitted case to verified after a police review of the
// report's plausibility.
func (s *Service) Verify(ctx context.Context, num id.CaseNumber) (*domain.Case, error) {
	return s.transition(ctx, "cases.Verify", num, authz.ActionVerifyCase, EventVerify, domain.AuditCaseVerified, "", nil)
}

// Reject marks a case as not actionable. The reason is mandatory and is
// preserved verbatim on the ledger entry. rejected is terminal.
func (s *Service) Reject(ctx context.Context, num id.CaseNumber, reason string) (*domain.Case, error) {
	if strings.TrimSpace(reason) == "" {
		return nil, dErrors.New(dErrors.CodeInvalidInput, "rejection requires a reason")
	}
	return s.transition(ctx, "cases.Reject", num, authz.ActionRejectCase, EventReject, domain.AuditCaseRejected, reason, nil)
}

// Close finishes a case. From matched this is the normal resolution; from
// any other non-terminal status it is the administrative override and a
// reason is mandatory.
func (s *Service) Close(ctx context.Context, num id.CaseNumber, reason string) (*domain.Case, error) {
	guard := func(c *domain.Case) error {
		if c.Status != domain.StatusMatched && strings.TrimSpace(reason) == "" {
			return dErrors.New(dErrors.CodeInvalidInput, "closing a case before a confirmed match requires a reason")
		}
		return nil
	}
	return s.transition(ctx, "cases.Close", num, authz.ActionCloseCase, EventClose, domain.AuditCaseClosed, reason, guard)
}

// transition is the shared authorize-then-apply path for the human-driven
// lifecycle events. Denied attempts are written to the case's ledger as
// action_denied entries before the denial is returned.
func (s *Service) transition(ctx context.Context, span string, num id.CaseNumber, action authz.Action, event Event, auditAction domain.AuditAction, note string, guard func(*domain.Case) error) (*domain.Case, error) {
	ctx, sp := s.tracer.Start(ctx, span, trace.WithAttributes(attribute.String("case_number", num.String())))
	defer sp.End()

	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, action); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		s.recordDenied(ctx, num, actor, action, err)
		return nil, err
	}

	var (
		c     *domain.Case
		entry domain.AuditEntry
	)
	err := s.txs.RunInCaseTx(ctx, num, func(ctx context.Context, st storage.Stores) error {
		found, err := st.Cases.FindByNumber(ctx, num)
		if err != nil {
			return asNotFound(err)
		}
		if guard != nil {
			if err := guard(found); err != nil {
				return err
			}
		}
		applied, err := ApplyTransition(ctx, st, num, found.Status, event, actor.ID.String(), auditAction, note)
		if err != nil {
			return err
		}
		found.Status = applied.ToStatus
		c, entry = found, applied
		return nil
	})
	if err != nil {
		if dErrors.HasCode(err, dErrors.CodeInvalidTransition) {
			s.recordDenied(ctx, num, actor, action, err)
		}
		return nil, err
	}

	s.recorder.Announce(entry)
	s.metrics.IncrementTransition(string(event), entry.ToStatus.String())
	s.logger.Info("case transitioned",
		"case_number", num,
		"event", event,
		"from", entry.FromStatus,
		"to", entry.ToStatus,
		"actor", actor.ID,
	)
	return c, nil
}

// recordDenied writes an action_denied ledger line for an attempt that was
// refused. Best effort: a ledger problem here is logged, never surfaced,
// because the caller is already receiving the denial itself.
func (s *Service) recordDenied(ctx context.Context, num id.CaseNumber, actor id.Actor, action authz.Action, cause error) {
	c, err := s.stores.Cases.FindByNumber(ctx, num)
	if err != nil {
		return
	}
	entry, err := AppendActivity(ctx, s.stores, num, c.Status, actor.ID.String(), domain.AuditActionDenied,
		"denied "+string(action)+": "+dErrors.MessageOf(cause))
	if err != nil {
		s.logger.Warn("failed to record denied action", "case_number", num, "error", err)
		return
	}
	s.recorder.Announce(entry)
}

// Get returns a single case. Citizens may only read cases they reported;
// for anything else they receive not-found rather than a role error, so the
// portal does not leak which case numbers exist.
func (s *Service) Get(ctx context.Context, num id.CaseNumber) (*domain.Case, error) {
	actor := requestcontext.Actor(ctx)
	action := authz.ActionReadCase
	if actor.Role == id.RoleCitizen {
		action = authz.ActionReadOwnCase
	}
	if err := s.auth.Authorize(actor, action); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}
	c, err := s.stores.Cases.FindByNumber(ctx, num)
	if err != nil {
		return nil, asNotFound(err)
	}
	if actor.Role == id.RoleCitizen && c.Reporter.ActorID != actor.ID {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return c, nil
}

// List returns the cases visible to the actor: everything for police and
// admins, only their own reports for citizens.
func (s *Service) List(ctx context.Context) ([]*domain.Case, error) {
	actor := requestcontext.Actor(ctx)
	if actor.Role == id.RoleCitizen {
		if err := s.auth.Authorize(actor, authz.ActionReadOwnCase); err != nil {
			s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
			return nil, err
		}
		return s.stores.Cases.ListByReporter(ctx, actor.ID)
	}
	if err := s.auth.Authorize(actor, authz.ActionListCases); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}
	return s.stores.Cases.List(ctx)
}

// History returns a case's full ledger in insertion order, subject to the
// same visibility rules as Get.
func (s *Service) History(ctx context.Context, num id.CaseNumber) ([]domain.AuditEntry, error) {
	actor := requestcontext.Actor(ctx)
	action := authz.ActionReadHistory
	if actor.Role == id.RoleCitizen {
		action = authz.ActionReadOwnHistory
	}
	if err := s.auth.Authorize(actor, action); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return nil, err
	}
	c, err := s.stores.Cases.FindByNumber(ctx, num)
	if err != nil {
		return nil, asNotFound(err)
	}
	if actor.Role == id.RoleCitizen && c.Reporter.ActorID != actor.ID {
		return nil, dErrors.New(dErrors.CodeNotFound, "case not found")
	}
	return s.recorder.History(ctx, num)
}

// ConsistencyReport compares the materialized case status against the
// status replayed purely from the ledger.
type ConsistencyReport struct {
	CaseNumber id.CaseNumber
	Stored     domain.Status
	Replayed   domain.Status
	Consistent bool
}

// CheckConsistency replays the case's ledger and compares the result with
// the stored status. Divergence indicates a bug or tampering and is logged
// at error level; the report is still returned so dashboards can show it.
func (s *Service) CheckConsistency(ctx context.Context, num id.CaseNumber) (ConsistencyReport, error) {
	actor := requestcontext.Actor(ctx)
	if err := s.auth.Authorize(actor, authz.ActionReadHistory); err != nil {
		s.metrics.IncrementDenied(string(dErrors.CodeOf(err)))
		return ConsistencyReport{}, err
	}
	c, err := s.stores.Cases.FindByNumber(ctx, num)
	if err != nil {
		return ConsistencyReport{}, asNotFound(err)
	}
	replayed, err := s.recorder.Replay(ctx, num)
	if err != nil {
		s.metrics.IncrementReplayCheck("error")
		return ConsistencyReport{}, err
	}
	report := ConsistencyReport{
		CaseNumber: num,
		Stored:     c.Status,
		Replayed:   replayed,
		Consistent: c.Status == replayed,
	}
	if report.Consistent {
		s.metrics.IncrementReplayCheck("consistent")
	} else {
		s.metrics.IncrementReplayCheck("divergent")
		s.logger.Error("ledger replay diverges from stored status",
			"case_number", num,
			"stored", c.Status,
			"replayed", replayed,
		)
	}
	return report, nil
}

func validateSubject(subject domain.SubjectProfile) error {
	if strings.TrimSpace(subject.Name) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "subject name is required")
	}
	if strings.TrimSpace(subject.LastSeenLocation) == "" {
		return dErrors.New(dErrors.CodeInvalidInput, "last seen location is required")
	}
	return nil
}
