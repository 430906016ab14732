package search

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"golang.org/x/sync/errgroup"

	"casetrace/internal/domain"
	"casetrace/internal/review"
	"casetrace/internal/storage"
	dErrors "casetrace/pkg/domain-errors"
)

var (
	sweepResults = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "casetrace_search_sweep_results_total",
		Help: "Engine results handled per sweep by outcome",
	}, []string{"outcome"}) // outcome: ingested, duplicate, below_threshold, error

	sweepDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "casetrace_search_sweep_duration_seconds",
		Help:    "Duration of a full case sweep",
		Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})
)

// maxConcurrentQueries bounds the engine fan-out per sweep.
const maxConcurrentQueries = 8

// Ingestor periodically queries the engine for every case that can accept
// candidates and hands reportable results to the review workflow.
type Ingestor struct {
	engine Engine
	cases  storage.CaseStore
	review *review.Service
	logger *slog.Logger

	// minReportable drops results the engine scored below the operational
	// noise floor before they reach review.
	minReportable float64
}

func NewIngestor(engine Engine, cases storage.CaseStore, rev *review.Service, minReportable float64, logger *slog.Logger) *Ingestor {
	return &Ingestor{
		engine:        engine,
		cases:         cases,
		review:        rev,
		logger:        logger,
		minReportable: minReportable,
	}
}

// Run sweeps on the given interval until the context is cancelled.
func (i *Ingestor) Run(ctx context.Context, interval time.Duration) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if err := i.Sweep(ctx); err != nil {
				i.logger.Error("search sweep failed", "error", err)
			}
		}
	}
}

// Sweep queries the engine once for every active case. Per-case failures
// are logged and counted, never fatal: one unreachable engine shard must
// not starve the other cases of results.
func (i *Ingestor) Sweep(ctx context.Context) error {
	start := time.Now()
	defer func() { sweepDuration.Observe(time.Since(start).Seconds()) }()

	all, err := i.cases.List(ctx)
	if err != nil {
		return err
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(maxConcurrentQueries)
	for _, c := range all {
		if c.Status != domain.StatusVerified && c.Status != domain.StatusUnderReview {
			continue
		}
		c := c
		g.Go(func() error {
			i.sweepCase(ctx, c)
			return nil
		})
	}
	return g.Wait()
}

func (i *Ingestor) sweepCase(ctx context.Context, c *domain.Case) {
	results, err := i.engine.FindCandidates(ctx, c.Subject)
	if err != nil {
		sweepResults.WithLabelValues("error").Inc()
		i.logger.Warn("engine query failed", "case_number", c.Number, "error", err)
		return
	}
	for _, res := range results {
		if res.RawScore < i.minReportable {
			sweepResults.WithLabelValues("below_threshold").Inc()
			continue
		}
		_, err := i.review.Ingest(ctx, review.CandidateInput{
			CaseNumber:  c.Number,
			ExternalRef: res.ExternalRef,
			SubjectRef:  res.SubjectRef,
			RawScore:    res.RawScore,
		})
		switch {
		case err == nil:
			sweepResults.WithLabelValues("ingested").Inc()
		case dErrors.HasCode(err, dErrors.CodeDuplicateCandidate):
			// The same sighting reported twice is business as usual.
			sweepResults.WithLabelValues("duplicate").Inc()
		case dErrors.HasCode(err, dErrors.CodeInvalidTransition):
			// The case moved while the sweep ran; its results are stale.
			sweepResults.WithLabelValues("error").Inc()
		default:
			sweepResults.WithLabelValues("error").Inc()
			i.logger.Warn("candidate ingestion failed",
				"case_number", c.Number,
				"external_ref", res.ExternalRef,
				"error", err,
			)
		}
	}
}
