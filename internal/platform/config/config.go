// Package config loads runtime configuration from the environment so main
// stays lean. A .env file is honored in development; real deployments set
// the variables directly.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	pstrings "casetrace/pkg/platform/strings"
)

// Config is the full runtime configuration of the portal.
type Config struct {
	// Addr is the HTTP listen address.
	Addr string
	// LogLevel is one of debug, info, warn, error.
	LogLevel string

	// PostgresDSN selects the postgres stores when set; empty means the
	// in-memory stores (development and tests).
	PostgresDSN string

	// RedisURL enables the redis-backed report rate limiter and health
	// check when set.
	RedisURL string

	// KafkaBrokers enables audit fan-out to the broker when non-empty.
	KafkaBrokers []string
	// KafkaTopic is the audit fan-out topic.
	KafkaTopic string

	// JWTSigningKey verifies tokens minted by the external authentication
	// system.
	JWTSigningKey string

	// EngineURL is the base URL of the external search engine. Empty
	// disables the periodic sweep; candidates then only arrive via the
	// manual admin endpoint.
	EngineURL string

	// MinReportableScore drops engine results below this score before they
	// reach review.
	MinReportableScore float64
	// SweepInterval is how often the search ingestor queries the engine.
	SweepInterval time.Duration

	// ReportRateLimit caps case submissions per actor per minute. Zero
	// disables the limiter.
	ReportRateLimit int
}

// Load builds the Config from the environment, after loading .env when
// present.
func Load() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		Addr:               envOr("CASETRACE_ADDR", ":8080"),
		LogLevel:           envOr("CASETRACE_LOG_LEVEL", "info"),
		PostgresDSN:        os.Getenv("CASETRACE_POSTGRES_DSN"),
		RedisURL:           os.Getenv("CASETRACE_REDIS_URL"),
		KafkaTopic:         envOr("CASETRACE_KAFKA_TOPIC", "casetrace.audit"),
		EngineURL:          os.Getenv("CASETRACE_ENGINE_URL"),
		JWTSigningKey:      envOr("CASETRACE_JWT_SIGNING_KEY", "dev-secret-key-change-in-production"),
		MinReportableScore: 0.2,
		SweepInterval:      5 * time.Minute,
		ReportRateLimit:    10,
	}

	if brokers := os.Getenv("CASETRACE_KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = pstrings.DedupeAndTrim(strings.Split(brokers, ","))
	}
	if raw := os.Getenv("CASETRACE_MIN_REPORTABLE_SCORE"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || v > 1 {
			return Config{}, fmt.Errorf("CASETRACE_MIN_REPORTABLE_SCORE: must be a number in [0, 1], got %q", raw)
		}
		cfg.MinReportableScore = v
	}
	if raw := os.Getenv("CASETRACE_SWEEP_INTERVAL"); raw != "" {
		d, err := time.ParseDuration(raw)
		if err != nil || d <= 0 {
			return Config{}, fmt.Errorf("CASETRACE_SWEEP_INTERVAL: must be a positive duration, got %q", raw)
		}
		cfg.SweepInterval = d
	}
	if raw := os.Getenv("CASETRACE_REPORT_RATE_LIMIT"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			return Config{}, fmt.Errorf("CASETRACE_REPORT_RATE_LIMIT: must be a non-negative integer, got %q", raw)
		}
		cfg.ReportRateLimit = n
	}
	return cfg, nil
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
