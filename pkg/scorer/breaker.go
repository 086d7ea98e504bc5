package scorer

import (
	"context"
	"log/slog"
	"time"

	"github.com/sony/gobreaker"

	"github.com/soundprediction/go-rerank/pkg/config"
)

// BreakerScorer wraps a Scorer with circuit breaking logic. When the
// upstream model endpoint fails repeatedly the breaker opens and batches
// fail immediately instead of piling timeouts onto the single dispatch lane.
type BreakerScorer struct {
	inner Scorer
	cb    *gobreaker.CircuitBreaker
	log   *slog.Logger
}

// NewBreakerScorer creates a circuit-breaking scorer wrapper
func NewBreakerScorer(inner Scorer, cfg config.CircuitBreakerConfig, name string, log *slog.Logger) *BreakerScorer {
	if log == nil {
		log = slog.Default()
	}

	st := gobreaker.Settings{
		Name:        name,
		MaxRequests: cfg.MaxRequests,
		Interval:    time.Duration(cfg.Interval) * time.Second,
		Timeout:     time.Duration(cfg.Timeout) * time.Second,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			failureRatio := float64(counts.TotalFailures) / float64(counts.Requests)
			return counts.Requests >= 3 && failureRatio >= cfg.ReadyToTripRatio
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			log.Warn("circuit breaker state changed", "name", name, "from", from.String(), "to", to.String())
		},
	}

	return &BreakerScorer{
		inner: inner,
		cb:    gobreaker.NewCircuitBreaker(st),
		log:   log,
	}
}

// ScoreBatch implements Scorer
func (b *BreakerScorer) ScoreBatch(ctx context.Context, pairs []Pair) ([]float64, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		return b.inner.ScoreBatch(ctx, pairs)
	})
	if err != nil {
		return nil, err
	}
	return result.([]float64), nil
}

// Close implements Scorer
func (b *BreakerScorer) Close() error {
	return b.inner.Close()
}
