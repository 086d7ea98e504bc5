// Package ranking turns a (query, passages) request into per-passage scoring
// requests, waits for them all, and reassembles the final ordering.
package ranking

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/soundprediction/go-rerank/pkg/batching"
)

// ErrEmptyPassages indicates the request carried no passages to rank
var ErrEmptyPassages = errors.New("passages must not be empty")

// Submitter is the slice of the batch accumulator the service needs
type Submitter interface {
	Submit(query, passage string) (*batching.Handle, error)
}

// Result is the outcome of ranking one query against its passages. Scores is
// aligned to the input passage order; Order is a permutation of indices
// sorted by descending score.
type Result struct {
	Order  []int     `json:"order"`
	Scores []float64 `json:"scores"`
}

// Service orchestrates pairwise scoring for ranking requests
type Service struct {
	submitter Submitter
	timeout   time.Duration
	log       *slog.Logger
}

// NewService creates a ranking service. timeout is the per-request deadline
// while awaiting scores.
func NewService(submitter Submitter, timeout time.Duration, log *slog.Logger) *Service {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	if log == nil {
		log = slog.Default()
	}
	return &Service{
		submitter: submitter,
		timeout:   timeout,
		log:       log,
	}
}

// Rank scores every passage against the query and returns the descending
// order plus the raw scores aligned to the input order. Sub-requests may be
// scored across different batches; ties are broken by ascending input index
// so equal-scoring passages rank deterministically.
func (s *Service) Rank(ctx context.Context, query string, passages []string) (*Result, error) {
	if len(passages) == 0 {
		return nil, ErrEmptyPassages
	}

	handles := make([]*batching.Handle, len(passages))
	for i, passage := range passages {
		h, err := s.submitter.Submit(query, passage)
		if err != nil {
			// already-submitted siblings still execute; their handles are
			// simply abandoned
			return nil, err
		}
		handles[i] = h
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	scores := make([]float64, len(passages))
	g, gctx := errgroup.WithContext(ctx)
	for i, h := range handles {
		i, h := i, h
		g.Go(func() error {
			score, err := h.Await(gctx)
			if err != nil {
				return err
			}
			scores[i] = score
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	order := make([]int, len(passages))
	for i := range order {
		order[i] = i
	}
	sort.Slice(order, func(a, b int) bool {
		if scores[order[a]] != scores[order[b]] {
			return scores[order[a]] > scores[order[b]]
		}
		return order[a] < order[b]
	})

	s.log.Debug("ranked passages", "query_len", len(query), "passages", len(passages))
	return &Result{Order: order, Scores: scores}, nil
}
