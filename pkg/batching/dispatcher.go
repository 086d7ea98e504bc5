package batching

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/soundprediction/go-rerank/pkg/scorer"
)

// State describes where the dispatcher loop currently is
type State int32

const (
	// StateIdle means the dispatcher has not been started yet
	StateIdle State = iota
	// StateAwaitingBatch means the dispatcher is blocked waiting for a batch
	StateAwaitingBatch
	// StateExecuting means a scorer invocation is in flight
	StateExecuting
	// StateDistributing means batch results are being assigned to handles
	StateDistributing
	// StateStopped is terminal, reached on shutdown
	StateStopped
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingBatch:
		return "awaiting_batch"
	case StateExecuting:
		return "executing"
	case StateDistributing:
		return "distributing"
	case StateStopped:
		return "stopped"
	default:
		return "unknown"
	}
}

// Stats holds dispatcher counters for the health endpoint
type Stats struct {
	Batches  uint64 `json:"batches"`
	Requests uint64 `json:"requests"`
	Failures uint64 `json:"failures"`
}

// Dispatcher owns the single execution lane to the scorer. It drains ready
// batches one at a time and never issues two scorer calls concurrently: the
// model behind the scorer is treated as a non-thread-safe, resource-bound
// compute unit. For horizontal scaling run independent accumulator plus
// dispatcher pairs, each with its own scorer.
type Dispatcher struct {
	acc *Accumulator
	sc  scorer.Scorer
	log *slog.Logger

	state    atomic.Int32
	done     chan struct{}
	batches  atomic.Uint64
	requests atomic.Uint64
	failures atomic.Uint64
}

// NewDispatcher creates a dispatcher draining acc into sc
func NewDispatcher(acc *Accumulator, sc scorer.Scorer, log *slog.Logger) *Dispatcher {
	if log == nil {
		log = slog.Default()
	}
	return &Dispatcher{
		acc:  acc,
		sc:   sc,
		log:  log,
		done: make(chan struct{}),
	}
}

// Start launches the dispatch loop in its own goroutine. The loop runs until
// the accumulator is closed and drained, or ctx is cancelled.
func (d *Dispatcher) Start(ctx context.Context) {
	go d.run(ctx)
}

// Wait blocks until the dispatch loop has stopped
func (d *Dispatcher) Wait() {
	<-d.done
}

// State returns the dispatcher's current state
func (d *Dispatcher) State() State {
	return State(d.state.Load())
}

// Stats returns a snapshot of the dispatcher counters
func (d *Dispatcher) Stats() Stats {
	return Stats{
		Batches:  d.batches.Load(),
		Requests: d.requests.Load(),
		Failures: d.failures.Load(),
	}
}

func (d *Dispatcher) run(ctx context.Context) {
	defer close(d.done)
	defer d.state.Store(int32(StateStopped))

	for {
		d.state.Store(int32(StateAwaitingBatch))
		batch, err := d.acc.NextReady(ctx)
		if err != nil {
			if errors.Is(err, ErrStopped) {
				d.log.Info("dispatcher stopped, accumulator drained")
				return
			}
			// context cancelled: nothing already submitted may be left
			// hanging, so fail whatever is still queued
			d.acc.Close()
			for _, b := range d.acc.drainReady() {
				d.failBatch(b, err)
			}
			d.log.Warn("dispatcher stopped by context", "error", err)
			return
		}

		d.state.Store(int32(StateExecuting))
		pairs := make([]scorer.Pair, len(batch.Requests))
		for i, req := range batch.Requests {
			pairs[i] = scorer.Pair{Query: req.Query, Passage: req.Passage}
		}
		scores, err := d.sc.ScoreBatch(ctx, pairs)
		if err == nil && len(scores) != len(batch.Requests) {
			err = fmt.Errorf("scorer returned %d scores for %d requests", len(scores), len(batch.Requests))
		}

		d.state.Store(int32(StateDistributing))
		if err != nil {
			d.failBatch(batch, err)
			d.log.Error("batch scoring failed", "size", len(batch.Requests), "error", err)
			continue
		}
		for i, req := range batch.Requests {
			req.handle.resolve(scores[i], nil)
		}
		d.batches.Add(1)
		d.requests.Add(uint64(len(batch.Requests)))
		d.log.Debug("batch scored", "size", len(batch.Requests), "age", time.Since(batch.CreatedAt))
	}
}

// failBatch resolves every handle in the batch with the same upstream
// failure. No partial batch retry happens at this layer.
func (d *Dispatcher) failBatch(b *Batch, err error) {
	d.failures.Add(1)
	upstream := NewUpstreamError(err)
	for _, req := range b.Requests {
		req.handle.resolve(0, upstream)
	}
}
