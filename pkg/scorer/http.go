package scorer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"time"
)

// HTTPScorer calls a remote cross-encoder inference endpoint. The wire
// contract follows vLLM-style pairwise score APIs: POST /score with aligned
// query and passage lists, one score back per pair.
type HTTPScorer struct {
	cfg        Config
	httpClient *http.Client
}

// NewHTTPScorer creates a scorer backed by a remote inference endpoint
func NewHTTPScorer(cfg Config) (*HTTPScorer, error) {
	if cfg.BaseURL == "" {
		return nil, fmt.Errorf("base URL is required for HTTP scorer")
	}
	if cfg.Model == "" {
		cfg.Model = "BAAI/bge-reranker-v2-m3"
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}

	return &HTTPScorer{
		cfg: cfg,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

type scoreRequest struct {
	Model    string   `json:"model"`
	Queries  []string `json:"queries"`
	Passages []string `json:"passages"`
}

type scoreResponse struct {
	Scores []float64   `json:"scores"`
	Error  *scoreError `json:"error,omitempty"`
}

type scoreError struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
}

// ScoreBatch scores every pair in one upstream call. Connection errors and
// retryable statuses are retried with exponential backoff up to MaxRetries;
// the model invocation itself is otherwise treated as all-or-nothing.
func (s *HTTPScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	if len(pairs) == 0 {
		return []float64{}, nil
	}

	req := scoreRequest{
		Model:    s.cfg.Model,
		Queries:  make([]string, len(pairs)),
		Passages: make([]string, len(pairs)),
	}
	for i, p := range pairs {
		req.Queries[i] = p.Query
		req.Passages[i] = p.Passage
	}

	body, err := json.Marshal(req)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal score request: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= s.cfg.MaxRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-time.After(s.backoff(attempt)):
			case <-ctx.Done():
				return nil, fmt.Errorf("context cancelled during retry backoff: %w", ctx.Err())
			}
		}

		scores, retryable, err := s.scoreOnce(ctx, body)
		if err == nil {
			if len(scores) != len(pairs) {
				return nil, fmt.Errorf("endpoint returned %d scores for %d pairs", len(scores), len(pairs))
			}
			return scores, nil
		}
		lastErr = err
		if !retryable {
			return nil, err
		}
	}
	return nil, fmt.Errorf("score request failed after %d attempts: %w", s.cfg.MaxRetries+1, lastErr)
}

func (s *HTTPScorer) scoreOnce(ctx context.Context, body []byte) (scores []float64, retryable bool, err error) {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.cfg.BaseURL+"/score", bytes.NewReader(body))
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	if s.cfg.APIKey != "" {
		httpReq.Header.Set("Authorization", "Bearer "+s.cfg.APIKey)
	}

	resp, err := s.httpClient.Do(httpReq)
	if err != nil {
		return nil, true, fmt.Errorf("score request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, true, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		retryable := resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500
		return nil, retryable, fmt.Errorf("score request failed with status %d: %s", resp.StatusCode, string(respBody))
	}

	var scoreResp scoreResponse
	if err := json.Unmarshal(respBody, &scoreResp); err != nil {
		return nil, false, fmt.Errorf("failed to unmarshal response: %w", err)
	}
	if scoreResp.Error != nil {
		return nil, false, fmt.Errorf("endpoint error: %s", scoreResp.Error.Message)
	}
	return scoreResp.Scores, false, nil
}

func (s *HTTPScorer) backoff(attempt int) time.Duration {
	d := time.Duration(float64(500*time.Millisecond) * math.Pow(2, float64(attempt-1)))
	if d > 10*time.Second {
		d = 10 * time.Second
	}
	return d
}

// Close cleans up any resources used by the scorer
func (s *HTTPScorer) Close() error {
	s.httpClient.CloseIdleConnections()
	return nil
}
