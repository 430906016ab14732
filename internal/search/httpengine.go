package search

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"casetrace/internal/domain"
	"casetrace/pkg/platform/circuit"
	"casetrace/pkg/platform/sentinel"
)

// HTTPEngine queries the search engine over its HTTP API. A circuit
// breaker guards the endpoint: after repeated failures the engine is
// presumed down and sweeps skip it until it recovers.
type HTTPEngine struct {
	baseURL string
	client  *http.Client
	breaker *circuit.Breaker
}

// NewHTTPEngine builds an engine client. A nil http.Client gets a default
// with a bounded timeout.
func NewHTTPEngine(baseURL string, client *http.Client) *HTTPEngine {
	if client == nil {
		client = &http.Client{Timeout: 15 * time.Second}
	}
	return &HTTPEngine{
		baseURL: baseURL,
		client:  client,
		breaker: circuit.New("search-engine", circuit.WithFailureThreshold(5)),
	}
}

type queryRequest struct {
	Name             string    `json:"name"`
	BirthYear        int       `json:"birth_year,omitempty"`
	Gender           string    `json:"gender,omitempty"`
	LastSeenLocation string    `json:"last_seen_location,omitempty"`
	LastSeenAt       time.Time `json:"last_seen_at,omitempty"`
}

type queryResponse struct {
	Results []struct {
		ExternalRef string  `json:"external_ref"`
		SubjectRef  string  `json:"subject_ref"`
		RawScore    float64 `json:"raw_score"`
	} `json:"results"`
}

// FindCandidates posts the subject profile to the engine's query endpoint.
// While the breaker is open the call is skipped and sentinel.ErrUnavailable
// is returned.
func (e *HTTPEngine) FindCandidates(ctx context.Context, subject domain.SubjectProfile) ([]Result, error) {
	if e.breaker.IsOpen() {
		return nil, fmt.Errorf("engine %s: %w", e.breaker.Name(), sentinel.ErrUnavailable)
	}

	results, err := e.query(ctx, subject)
	if err != nil {
		e.breaker.RecordFailure()
		return nil, err
	}
	e.breaker.RecordSuccess()
	return results, nil
}

func (e *HTTPEngine) query(ctx context.Context, subject domain.SubjectProfile) ([]Result, error) {
	body, err := json.Marshal(queryRequest{
		Name:             subject.Name,
		BirthYear:        subject.BirthYear,
		Gender:           subject.Gender,
		LastSeenLocation: subject.LastSeenLocation,
		LastSeenAt:       subject.LastSeenAt,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal engine query: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/v1/candidates/query", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build engine request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("query engine: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("engine returned %s", resp.Status)
	}

	var decoded queryResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("decode engine response: %w", err)
	}
	results := make([]Result, 0, len(decoded.Results))
	for _, r := range decoded.Results {
		results = append(results, Result{
			ExternalRef: r.ExternalRef,
			SubjectRef:  r.SubjectRef,
			RawScore:    r.RawScore,
		})
	}
	return results, nil
}
