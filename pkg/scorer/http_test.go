package scorer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPScorerScoreBatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/score", r.URL.Path)
		require.Equal(t, "Bearer secret", r.Header.Get("Authorization"))

		var req scoreRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		require.Equal(t, "test-model", req.Model)
		require.Equal(t, len(req.Queries), len(req.Passages))

		scores := make([]float64, len(req.Queries))
		for i := range scores {
			scores[i] = float64(i) * 0.25
		}
		json.NewEncoder(w).Encode(scoreResponse{Scores: scores})
	}))
	defer srv.Close()

	sc, err := NewHTTPScorer(Config{
		Provider: ProviderHTTP,
		Model:    "test-model",
		BaseURL:  srv.URL,
		APIKey:   "secret",
	})
	require.NoError(t, err)
	defer sc.Close()

	pairs := []Pair{
		{Query: "q", Passage: "a"},
		{Query: "q", Passage: "b"},
		{Query: "q", Passage: "c"},
	}
	scores, err := sc.ScoreBatch(context.Background(), pairs)
	require.NoError(t, err)
	assert.Equal(t, []float64{0, 0.25, 0.5}, scores)
}

func TestHTTPScorerRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			http.Error(w, "model loading", http.StatusServiceUnavailable)
			return
		}
		var req scoreRequest
		json.NewDecoder(r.Body).Decode(&req)
		json.NewEncoder(w).Encode(scoreResponse{Scores: make([]float64, len(req.Queries))})
	}))
	defer srv.Close()

	sc, err := NewHTTPScorer(Config{
		Provider:   ProviderHTTP,
		BaseURL:    srv.URL,
		MaxRetries: 3,
	})
	require.NoError(t, err)
	// shrink backoff for the test
	sc.httpClient.Timeout = time.Second

	scores, err := sc.ScoreBatch(context.Background(), []Pair{{Query: "q", Passage: "p"}})
	require.NoError(t, err)
	assert.Len(t, scores, 1)
	assert.Equal(t, int32(3), calls.Load())
}

func TestHTTPScorerDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		http.Error(w, "bad request", http.StatusBadRequest)
	}))
	defer srv.Close()

	sc, err := NewHTTPScorer(Config{Provider: ProviderHTTP, BaseURL: srv.URL, MaxRetries: 3})
	require.NoError(t, err)

	_, err = sc.ScoreBatch(context.Background(), []Pair{{Query: "q", Passage: "p"}})
	require.Error(t, err)
	assert.Equal(t, int32(1), calls.Load())
}

func TestHTTPScorerLengthMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Scores: []float64{0.5}})
	}))
	defer srv.Close()

	sc, err := NewHTTPScorer(Config{Provider: ProviderHTTP, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = sc.ScoreBatch(context.Background(), []Pair{
		{Query: "q", Passage: "a"},
		{Query: "q", Passage: "b"},
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 scores for 2 pairs")
}

func TestHTTPScorerEndpointError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(scoreResponse{Error: &scoreError{Message: "unknown model"}})
	}))
	defer srv.Close()

	sc, err := NewHTTPScorer(Config{Provider: ProviderHTTP, BaseURL: srv.URL})
	require.NoError(t, err)

	_, err = sc.ScoreBatch(context.Background(), []Pair{{Query: "q", Passage: "p"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown model")
}
