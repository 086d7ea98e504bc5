package scorer

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/soundprediction/go-rerank/pkg/cache"
)

// CachedScorer wraps a Scorer with a per-pair score cache. Only cache misses
// are forwarded to the inner scorer, in their original relative order, and
// the merged result preserves positional alignment with the input pairs.
// Cross-encoder scores are pure functions of (model, query, passage), which
// makes them safe to cache.
type CachedScorer struct {
	inner Scorer
	store cache.Store
	model string
	ttl   time.Duration
	log   *slog.Logger
}

// NewCachedScorer creates a caching scorer wrapper. The model name is part
// of the cache key so switching models never serves stale scores.
func NewCachedScorer(inner Scorer, store cache.Store, model string, ttl time.Duration, log *slog.Logger) *CachedScorer {
	if log == nil {
		log = slog.Default()
	}
	return &CachedScorer{
		inner: inner,
		store: store,
		model: model,
		ttl:   ttl,
		log:   log,
	}
}

// ScoreBatch implements Scorer
func (c *CachedScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	scores := make([]float64, len(pairs))
	var missIdx []int
	var missPairs []Pair

	for i, p := range pairs {
		val, err := c.store.Get(ctx, c.key(p))
		if err != nil {
			if !errors.Is(err, cache.ErrNotFound) {
				c.log.Warn("score cache read failed", "error", err)
			}
			missIdx = append(missIdx, i)
			missPairs = append(missPairs, p)
			continue
		}
		score, err := strconv.ParseFloat(string(val), 64)
		if err != nil {
			missIdx = append(missIdx, i)
			missPairs = append(missPairs, p)
			continue
		}
		scores[i] = score
	}

	if len(missPairs) == 0 {
		return scores, nil
	}

	missScores, err := c.inner.ScoreBatch(ctx, missPairs)
	if err != nil {
		return nil, err
	}
	if len(missScores) != len(missPairs) {
		return nil, fmt.Errorf("inner scorer returned %d scores for %d pairs", len(missScores), len(missPairs))
	}

	for j, i := range missIdx {
		scores[i] = missScores[j]
		val := strconv.FormatFloat(missScores[j], 'g', -1, 64)
		if err := c.store.Set(ctx, c.key(pairs[i]), []byte(val), c.ttl); err != nil {
			c.log.Warn("score cache write failed", "error", err)
		}
	}
	return scores, nil
}

func (c *CachedScorer) key(p Pair) string {
	h := sha256.New()
	h.Write([]byte(c.model))
	h.Write([]byte{0})
	h.Write([]byte(p.Query))
	h.Write([]byte{0})
	h.Write([]byte(p.Passage))
	return "score:" + hex.EncodeToString(h.Sum(nil))
}

// Close implements Scorer
func (c *CachedScorer) Close() error {
	return c.inner.Close()
}
