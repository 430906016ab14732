package audit

import (
	"casetrace/internal/domain"
	dErrors "casetrace/pkg/domain-errors"
)

// ReplayEntries folds a case's ledger into its final status. Only transition
// entries move the fold; denied attempts and candidate activity are recorded
// with FromStatus == ToStatus and are skipped.
//
// Every transition entry must continue from the status the previous one
// ended at. A gap means the ledger and the case record were mutated outside
// the transactional path, which is exactly what this check exists to catch.
func ReplayEntries(entries []domain.AuditEntry) (domain.Status, error) {
	var current domain.Status
	for _, e := range entries {
		if !e.Transition() {
			continue
		}
		if e.FromStatus != current {
			return "", dErrors.Newf(dErrors.CodeInternal,
				"ledger inconsistent at seq %d: transition from %q but replayed status is %q",
				e.Seq, e.FromStatus, current)
		}
		current = e.ToStatus
	}
	if current == "" {
		return "", dErrors.New(dErrors.CodeNotFound, "no transitions recorded for case")
	}
	return current, nil
}
