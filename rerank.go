package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/soundprediction/go-rerank/pkg/batching"
	"github.com/soundprediction/go-rerank/pkg/cache"
	"github.com/soundprediction/go-rerank/pkg/config"
	"github.com/soundprediction/go-rerank/pkg/ranking"
	"github.com/soundprediction/go-rerank/pkg/scorer"
)

// Service composes the full reranking pipeline: scorer backend (optionally
// cached and circuit-broken), batch accumulator, dispatcher, and ranking
// orchestration. One Service owns one scorer execution lane; run several
// Services behind a load balancer to scale out.
type Service struct {
	cfg *config.Config
	log *slog.Logger

	sc        scorer.Scorer
	store     cache.Store
	acc       *batching.Accumulator
	disp      *batching.Dispatcher
	ranker    *ranking.Service
	cancel    context.CancelFunc
	closeOnce sync.Once
}

// New builds and starts a reranking pipeline from config. The dispatcher
// goroutine runs until Close.
func New(cfg *config.Config, log *slog.Logger) (*Service, error) {
	if log == nil {
		log = slog.Default()
	}

	sc, store, err := buildScorer(cfg, log)
	if err != nil {
		return nil, err
	}

	acc := batching.NewAccumulator(batching.Config{
		MaxBatchSize:  cfg.Batching.MaxBatchSize,
		MaxWait:       cfg.Batching.MaxWait,
		MaxQueueDepth: cfg.Batching.MaxQueueDepth,
	})
	disp := batching.NewDispatcher(acc, sc, log)

	ctx, cancel := context.WithCancel(context.Background())
	disp.Start(ctx)

	svc := &Service{
		cfg:    cfg,
		log:    log,
		sc:     sc,
		store:  store,
		acc:    acc,
		disp:   disp,
		ranker: ranking.NewService(acc, cfg.Batching.RequestTimeout, log),
		cancel: cancel,
	}
	log.Info("reranking pipeline started",
		"provider", cfg.Scorer.Provider,
		"model", cfg.Scorer.Model,
		"max_batch_size", cfg.Batching.MaxBatchSize,
		"max_wait", cfg.Batching.MaxWait)
	return svc, nil
}

// Rank scores passages against the query through the batching pipeline
func (s *Service) Rank(ctx context.Context, query string, passages []string) (*ranking.Result, error) {
	return s.ranker.Rank(ctx, query, passages)
}

// Health reports pipeline state for the health endpoint
func (s *Service) Health() map[string]any {
	stats := s.disp.Stats()
	return map[string]any{
		"model":      s.cfg.Scorer.Model,
		"dispatcher": s.disp.State().String(),
		"pending":    s.acc.Pending(),
		"batches":    stats.Batches,
		"requests":   stats.Requests,
		"failures":   stats.Failures,
	}
}

// Close drains and stops the pipeline: intake stops, the partially filled
// batch is force-released, the dispatcher finishes every already-submitted
// request, then backend resources are released. Safe to call from multiple
// goroutines; only the first call does the work.
func (s *Service) Close() error {
	var err error
	s.closeOnce.Do(func() {
		s.acc.Close()
		s.disp.Wait()
		s.cancel()

		err = s.sc.Close()
		if s.store != nil {
			if cerr := s.store.Close(); err == nil {
				err = cerr
			}
		}
		s.log.Info("reranking pipeline stopped")
	})
	return err
}

// buildScorer assembles the scorer chain from config: backend, then cache
// wrapper, then circuit breaker outermost
func buildScorer(cfg *config.Config, log *slog.Logger) (scorer.Scorer, cache.Store, error) {
	sc, err := scorer.New(scorer.Config{
		Provider:   scorer.Provider(cfg.Scorer.Provider),
		Model:      cfg.Scorer.Model,
		BaseURL:    cfg.Scorer.BaseURL,
		APIKey:     cfg.Scorer.APIKey,
		Timeout:    cfg.Scorer.Timeout,
		MaxRetries: cfg.Scorer.MaxRetries,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create scorer: %w", err)
	}

	var store cache.Store
	switch cfg.Cache.Backend {
	case "", "none":
	case "memory":
		store = cache.NewMemoryStore()
	case "redis":
		store, err = cache.NewRedisStore(cfg.Cache.Redis.Addr, cfg.Cache.Redis.Password, cfg.Cache.Redis.DB)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to connect score cache: %w", err)
		}
	case "badger":
		store, err = cache.NewBadgerStore(cfg.Cache.Badger.Path)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open score cache: %w", err)
		}
	default:
		return nil, nil, fmt.Errorf("unknown cache backend: %s", cfg.Cache.Backend)
	}
	if store != nil {
		sc = scorer.NewCachedScorer(sc, store, cfg.Scorer.Model, cfg.Cache.TTL, log)
	}

	if cfg.CircuitBreaker.Enabled {
		sc = scorer.NewBreakerScorer(sc, cfg.CircuitBreaker, "scorer", log)
	}
	return sc, store, nil
}
