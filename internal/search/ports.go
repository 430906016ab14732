// Package search bridges the external face search engine and the review
// workflow: it sweeps active cases, queries the engine, and feeds reportable
// results into review as match candidates.
package search

import (
	"context"

	"casetrace/internal/domain"
)

//go:generate mockgen -source=ports.go -destination=mocks/engine_mock.go -package=mocks

// Result is one raw hit from the search engine.
type Result struct {
	// ExternalRef identifies the engine-side record (a sighting, a shelter
	// intake, a registration). Stable across repeated queries.
	ExternalRef string
	// SubjectRef points at the source of the sighting for reviewers.
	SubjectRef string
	// RawScore is the engine's similarity score in [0, 1].
	RawScore float64
}

// Engine is the external search system. The portal never ranks or rescores;
// it consumes what the engine reports.
type Engine interface {
	FindCandidates(ctx context.Context, subject domain.SubjectProfile) ([]Result, error)
}
