// Command server runs the missing-person case portal: HTTP API, search
// sweep worker, and audit fan-out. main only wires dependencies; all
// behavior lives in the internal packages.
package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"casetrace/internal/actors"
	actorshandler "casetrace/internal/actors/handler"
	"casetrace/internal/audit"
	"casetrace/internal/authz"
	"casetrace/internal/cases"
	caseshandler "casetrace/internal/cases/handler"
	casesmetrics "casetrace/internal/cases/metrics"
	"casetrace/internal/platform/config"
	"casetrace/internal/platform/httpserver"
	"casetrace/internal/platform/logger"
	platformmetrics "casetrace/internal/platform/metrics"
	"casetrace/internal/platform/middleware"
	platformredis "casetrace/internal/platform/redis"
	"casetrace/internal/review"
	reviewhandler "casetrace/internal/review/handler"
	reviewmetrics "casetrace/internal/review/metrics"
	"casetrace/internal/search"
	"casetrace/internal/storage"
	"casetrace/internal/storage/postgres"
	httptransport "casetrace/internal/transport/http"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		os.Stderr.WriteString("config: " + err.Error() + "\n")
		os.Exit(1)
	}
	log := logger.New(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Persistence: postgres when configured, in-memory otherwise.
	var (
		stores storage.Stores
		txs    storage.TxRunner
		db     httptransport.Pinger
	)
	if cfg.PostgresDSN != "" {
		pool, err := postgres.Open(ctx, cfg.PostgresDSN)
		if err != nil {
			log.Error("postgres unavailable", "error", err)
			os.Exit(1)
		}
		defer pool.Close()
		stores = postgres.NewStores(pool)
		txs = postgres.NewTxRunner(pool, stores)
		db = pool
	} else {
		log.Warn("no postgres DSN configured, using in-memory stores")
		stores = storage.NewInMemoryStores()
		txs = storage.NewShardedTxRunner(stores)
	}

	redisClient, err := platformredis.New(ctx, cfg.RedisURL)
	if err != nil {
		log.Error("redis unavailable", "error", err)
		os.Exit(1)
	}
	defer redisClient.Close()

	auth, err := authz.New()
	if err != nil {
		log.Error("invalid capability table", "error", err)
		os.Exit(1)
	}

	// Audit: recorder feeds a worker that fans entries out to the broker,
	// or to the log when no broker is configured.
	recorder := audit.NewRecorder(stores.Audit, log)
	var publisher audit.Publisher = audit.LogPublisher{Logger: log}
	if len(cfg.KafkaBrokers) > 0 {
		kp, err := audit.NewKafkaPublisher(ctx, cfg.KafkaBrokers, cfg.KafkaTopic)
		if err != nil {
			log.Error("kafka unavailable", "error", err)
			os.Exit(1)
		}
		publisher = kp
	}
	defer publisher.Close()

	// Services.
	caseSvc := cases.NewService(stores, txs, auth, recorder, casesmetrics.New(), log)
	reviewSvc := review.NewService(stores, txs, auth, recorder, reviewmetrics.New(), log)
	actorSvc := actors.NewService(stores.Actors, auth, log)

	limiter := middleware.NewReportLimiter(redisClient, cfg.ReportRateLimit, log)
	router := httptransport.NewRouter(httptransport.Deps{
		Logger:    log,
		Metrics:   platformmetrics.New(),
		Validator: middleware.NewTokenValidator(cfg.JWTSigningKey),
		Resolver:  actorSvc,
		Handlers: []httptransport.Registrar{
			caseshandler.New(caseSvc, log).WithReportLimiter(limiter.Limit),
			reviewhandler.New(reviewSvc, log),
			actorshandler.New(actorSvc, log),
		},
		Redis: redisClient,
		DB:    db,
	})

	srv := httpserver.New(cfg.Addr, router)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		log.Info("starting casetrace", "addr", cfg.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		err := audit.NewWorker(recorder.Feed(), publisher, log).Run(gctx)
		if errors.Is(err, context.Canceled) {
			return nil
		}
		return err
	})
	if cfg.EngineURL != "" {
		engine := search.NewHTTPEngine(cfg.EngineURL, nil)
		ingestor := search.NewIngestor(engine, stores.Cases, reviewSvc, cfg.MinReportableScore, log)
		g.Go(func() error {
			err := ingestor.Run(gctx, cfg.SweepInterval)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		return httpserver.Shutdown(srv, 10*time.Second)
	})

	if err := g.Wait(); err != nil {
		log.Error("shutdown with error", "error", err)
		os.Exit(1)
	}
	log.Info("shutdown complete")
}
