/*
Package scorer provides cross-encoder score functions for (query, passage)
pairs.

A Scorer computes one relevance score per pair in a single invocation. Scoring
a whole batch at once is what makes the batching pipeline worthwhile: model
backends amortize per-call overhead across the batch. Implementations include
an HTTP client for remote cross-encoder endpoints, an LLM-judge scorer built
on the OpenAI API, a local term-frequency similarity scorer and a
deterministic mock for testing, plus circuit-breaker and caching wrappers.

Scorers are not required to be safe for concurrent use; the dispatcher
serializes all calls to a given instance.
*/
package scorer

import (
	"context"
	"fmt"
	"time"
)

// Pair is one (query, passage) scoring input
type Pair struct {
	Query   string `json:"query"`
	Passage string `json:"passage"`
}

// Scorer computes relevance scores for a batch of pairs. ScoreBatch is
// length- and order-preserving: scores[i] belongs to pairs[i]. It fails
// wholesale; partial results are never returned.
type Scorer interface {
	ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error)

	// Close cleans up any resources used by the scorer
	Close() error
}

// Func adapts an ordinary function to the Scorer interface
type Func func(ctx context.Context, pairs []Pair) ([]float64, error)

// ScoreBatch implements Scorer
func (f Func) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	return f(ctx, pairs)
}

// Close implements Scorer
func (f Func) Close() error { return nil }

// Provider represents the type of scorer backend
type Provider string

const (
	// ProviderHTTP calls a remote cross-encoder inference endpoint
	ProviderHTTP Provider = "http"

	// ProviderOpenAI uses an OpenAI chat model as a relevance judge
	ProviderOpenAI Provider = "openai"

	// ProviderLocal uses local term-frequency cosine similarity
	ProviderLocal Provider = "local"

	// ProviderMock uses a deterministic mock for testing
	ProviderMock Provider = "mock"
)

// Config holds common configuration for scorer backends
type Config struct {
	Provider Provider `json:"provider"`

	// Model names the cross-encoder (HTTP) or chat model (OpenAI)
	Model string `json:"model,omitempty"`

	// BaseURL points at the inference endpoint (HTTP) or an
	// OpenAI-compatible API (OpenAI, optional)
	BaseURL string `json:"base_url,omitempty"`

	APIKey string `json:"api_key,omitempty"`

	// Timeout bounds a single backend call
	Timeout time.Duration `json:"timeout,omitempty"`

	// MaxRetries bounds transport-level retries inside the HTTP scorer
	MaxRetries int `json:"max_retries,omitempty"`
}

// New creates a scorer for the configured provider
func New(cfg Config) (Scorer, error) {
	switch cfg.Provider {
	case ProviderHTTP:
		return NewHTTPScorer(cfg)
	case ProviderOpenAI:
		return NewOpenAIScorer(cfg)
	case ProviderLocal:
		return NewLocalScorer(cfg), nil
	case ProviderMock:
		return NewMockScorer(cfg), nil
	default:
		return nil, fmt.Errorf("unsupported scorer provider: %s", cfg.Provider)
	}
}

// DefaultConfig returns a default configuration for the given provider
func DefaultConfig(provider Provider) Config {
	switch provider {
	case ProviderHTTP:
		return Config{
			Provider:   ProviderHTTP,
			Model:      "BAAI/bge-reranker-v2-m3",
			BaseURL:    "http://localhost:8000",
			Timeout:    30 * time.Second,
			MaxRetries: 2,
		}
	case ProviderOpenAI:
		return Config{
			Provider: ProviderOpenAI,
			Model:    "gpt-4o-mini",
			Timeout:  60 * time.Second,
		}
	case ProviderLocal:
		return Config{Provider: ProviderLocal}
	case ProviderMock:
		return Config{Provider: ProviderMock}
	default:
		return Config{Provider: provider}
	}
}
