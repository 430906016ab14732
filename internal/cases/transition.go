package cases

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"casetrace/internal/domain"
	"casetrace/internal/storage"
	id "casetrace/pkg/domain"
	dErrors "casetrace/pkg/domain-errors"
	"casetrace/pkg/platform/sentinel"
	"casetrace/pkg/requestcontext"
)

// ApplyTransition validates and applies a status transition inside an open
// case transaction, appending the matching ledger entry. Callers run it
// under TxRunner so the status swap and the ledger line commit together.
//
// The status update is a compare-and-swap against `from`: a concurrent
// transition that already moved the case makes this one fail with
// CodeInvalidTransition instead of silently overwriting it. When the ledger
// append fails, the status change is reverted and the whole transition fails
// with CodeAuditWriteFailed, so a transition can never outrun its entry.
//
// The returned entry is what the caller should hand to the audit recorder
// for broker fan-out after the transaction commits.
func ApplyTransition(ctx context.Context, s storage.Stores, num id.CaseNumber, from domain.Status, event Event, actorID string, action domain.AuditAction, note string) (domain.AuditEntry, error) {
	to, err := NextStatus(from, event)
	if err != nil {
		return domain.AuditEntry{}, err
	}
	if err := s.Cases.UpdateStatus(ctx, num, from, to); err != nil {
		if errors.Is(err, sentinel.ErrInvalidState) {
			return domain.AuditEntry{}, dErrors.Wrap(err, dErrors.CodeInvalidTransition, "case moved concurrently")
		}
		return domain.AuditEntry{}, err
	}
	entry := domain.AuditEntry{
		ID:         uuid.New(),
		CaseNumber: num,
		Timestamp:  requestcontext.Now(ctx),
		ActorID:    actorID,
		Action:     action,
		FromStatus: from,
		ToStatus:   to,
		Note:       note,
	}
	if err := s.Audit.Append(ctx, &entry); err != nil {
		// Revert so the materialized status never claims a transition the
		// ledger cannot account for. Under postgres the surrounding
		// transaction rolls back anyway; this keeps the in-memory runner
		// honest too.
		if revertErr := s.Cases.UpdateStatus(ctx, num, to, from); revertErr != nil {
			return domain.AuditEntry{}, dErrors.Wrap(revertErr, dErrors.CodeAuditWriteFailed, "ledger append and status revert both failed")
		}
		return domain.AuditEntry{}, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "transition aborted: ledger append failed")
	}
	return entry, nil
}

// AppendCreation writes the case_created entry for a freshly stored case.
// The entry is the ledger's opening line: no prior status, ToStatus
// submitted.
func AppendCreation(ctx context.Context, s storage.Stores, num id.CaseNumber, actorID string) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:         uuid.New(),
		CaseNumber: num,
		Timestamp:  requestcontext.Now(ctx),
		ActorID:    actorID,
		Action:     domain.AuditCaseCreated,
		ToStatus:   domain.StatusSubmitted,
	}
	if err := s.Audit.Append(ctx, &entry); err != nil {
		return domain.AuditEntry{}, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "case creation aborted: ledger append failed")
	}
	return entry, nil
}

// AppendActivity appends a non-transition ledger entry (denied attempts,
// candidate activity) at the case's current status. Same transactional
// contract as ApplyTransition, but nothing to revert.
func AppendActivity(ctx context.Context, s storage.Stores, num id.CaseNumber, status domain.Status, actorID string, action domain.AuditAction, note string) (domain.AuditEntry, error) {
	entry := domain.AuditEntry{
		ID:         uuid.New(),
		CaseNumber: num,
		Timestamp:  requestcontext.Now(ctx),
		ActorID:    actorID,
		Action:     action,
		FromStatus: status,
		ToStatus:   status,
		Note:       note,
	}
	if err := s.Audit.Append(ctx, &entry); err != nil {
		return domain.AuditEntry{}, dErrors.Wrap(err, dErrors.CodeAuditWriteFailed, "ledger append failed")
	}
	return entry, nil
}
