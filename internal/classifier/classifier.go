// Package classifier maps raw similarity scores from the external face
// search engine to discrete confidence tiers. This is pure domain logic -
// no I/O, no side effects - so the thresholds stay centralized and testable.
package classifier

import dErrors "casetrace/pkg/domain-errors"

// Tier is the discrete confidence classification derived from a raw score.
// It is always recomputed from the score, never stored as independently
// settable state, so score and label cannot drift apart.
type Tier string

const (
	// TierMatched marks high-confidence candidates eligible for direct
	// confirmation by a reviewer.
	TierMatched Tier = "matched"
	// TierUnderReview marks medium-confidence candidates that require
	// explicit human judgment and are flagged for priority review.
	TierUnderReview Tier = "under-review"
	// TierNoMatch marks low-confidence candidates displayed for
	// transparency only; they are not actionable without manual escalation.
	TierNoMatch Tier = "no-match"
)

// Tier thresholds. Intervals are closed on the lower bound: a score of
// exactly 0.80 is matched, exactly 0.60 is under-review.
const (
	MatchedThreshold     = 0.80
	UnderReviewThreshold = 0.60
)

// Classify maps a raw similarity score in [0, 1] to its confidence tier.
// A score outside [0, 1] is a caller contract violation and fails with
// CodeInvalidScore rather than being silently clamped.
func Classify(rawScore float64) (Tier, error) {
	if rawScore < 0 || rawScore > 1 {
		return "", dErrors.Newf(dErrors.CodeInvalidScore, "raw score %v outside [0, 1]", rawScore)
	}
	switch {
	case rawScore >= MatchedThreshold:
		return TierMatched, nil
	case rawScore >= UnderReviewThreshold:
		return TierUnderReview, nil
	default:
		return TierNoMatch, nil
	}
}
