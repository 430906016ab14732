package search

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"casetrace/internal/domain"
	"casetrace/pkg/platform/sentinel"
)

func TestHTTPEngineFindCandidates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/candidates/query", r.URL.Path)
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"results":[
			{"external_ref":"reg-11","subject_ref":"person-3","raw_score":0.91},
			{"external_ref":"reg-12","subject_ref":"person-9","raw_score":0.44}
		]}`))
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, srv.Client())
	results, err := engine.FindCandidates(context.Background(), domain.SubjectProfile{
		Name:             "Jan Visser",
		LastSeenLocation: "Utrecht Centraal",
		LastSeenAt:       time.Now(),
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "reg-11", results[0].ExternalRef)
	assert.Equal(t, "person-3", results[0].SubjectRef)
	assert.InDelta(t, 0.91, results[0].RawScore, 1e-9)
}

func TestHTTPEngineRejectsNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "overloaded", http.StatusServiceUnavailable)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, srv.Client())
	_, err := engine.FindCandidates(context.Background(), domain.SubjectProfile{Name: "Jan Visser"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "503")
}

func TestHTTPEngineBreakerOpensAfterRepeatedFailures(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		http.Error(w, "down", http.StatusInternalServerError)
	}))
	defer srv.Close()

	engine := NewHTTPEngine(srv.URL, srv.Client())
	subject := domain.SubjectProfile{Name: "Jan Visser"}

	for i := 0; i < 5; i++ {
		_, err := engine.FindCandidates(context.Background(), subject)
		require.Error(t, err)
		require.False(t, errors.Is(err, sentinel.ErrUnavailable), "call %d should still reach the engine", i+1)
	}
	require.EqualValues(t, 5, hits.Load())

	// Breaker is open: the next call is refused without touching the engine.
	_, err := engine.FindCandidates(context.Background(), subject)
	require.ErrorIs(t, err, sentinel.ErrUnavailable)
	assert.EqualValues(t, 5, hits.Load())
}
