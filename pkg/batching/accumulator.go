package batching

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Request is a single (query, passage) scoring request. Immutable once
// created; owned by the accumulator until batched, then by the dispatcher.
type Request struct {
	ID       uuid.UUID
	Query    string
	Passage  string
	Enqueued time.Time

	handle *Handle
}

// Batch is an insertion-ordered group of requests scored in one model
// invocation. Order must be preserved end-to-end: result i belongs to
// Requests[i].
type Batch struct {
	Requests  []*Request
	CreatedAt time.Time
}

// Config holds accumulator tuning parameters
type Config struct {
	// MaxBatchSize releases a batch as soon as it holds this many requests
	MaxBatchSize int

	// MaxWait releases a partial batch this long after its first request
	// arrived, bounding tail latency during quiet periods
	MaxWait time.Duration

	// MaxQueueDepth bounds requests submitted but not yet dispatched;
	// beyond it Submit fails fast with ErrOverloaded
	MaxQueueDepth int
}

// DefaultConfig returns accumulator defaults suitable for a single
// cross-encoder execution lane
func DefaultConfig() Config {
	return Config{
		MaxBatchSize:  32,
		MaxWait:       25 * time.Millisecond,
		MaxQueueDepth: 1024,
	}
}

func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.MaxBatchSize <= 0 {
		c.MaxBatchSize = d.MaxBatchSize
	}
	if c.MaxWait <= 0 {
		c.MaxWait = d.MaxWait
	}
	if c.MaxQueueDepth <= 0 {
		c.MaxQueueDepth = d.MaxQueueDepth
	}
	return c
}

// Accumulator buffers incoming scoring requests into batches. Many
// producers call Submit concurrently; a single dispatcher consumes via
// NextReady. A batch is released when it reaches MaxBatchSize or when
// MaxWait has elapsed since its first request, whichever comes first.
type Accumulator struct {
	cfg Config

	mu      sync.Mutex
	open    *Batch
	gen     uint64 // bumped on every flush, guards stale wait timers
	timer   *time.Timer
	pending int
	closed  bool

	ready chan *Batch
}

// NewAccumulator creates an accumulator. Zero config fields take defaults.
func NewAccumulator(cfg Config) *Accumulator {
	cfg = cfg.withDefaults()
	return &Accumulator{
		cfg: cfg,
		// every buffered batch holds at least one pending request, so the
		// queue-depth bound also caps buffered batches and sends below
		// never block
		ready: make(chan *Batch, cfg.MaxQueueDepth),
	}
}

// Submit appends a request to the currently open batch, opening one (and
// arming its wait timer) if needed. It never blocks: when the pending
// queue is full it fails fast with ErrOverloaded, and after Close it
// fails with ErrStopped.
func (a *Accumulator) Submit(query, passage string) (*Handle, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	if a.closed {
		return nil, ErrStopped
	}
	if a.pending >= a.cfg.MaxQueueDepth {
		return nil, ErrOverloaded
	}

	h := newHandle()
	req := &Request{
		ID:       h.id,
		Query:    query,
		Passage:  passage,
		Enqueued: time.Now(),
		handle:   h,
	}

	if a.open == nil {
		a.open = &Batch{CreatedAt: time.Now()}
		gen := a.gen
		a.timer = time.AfterFunc(a.cfg.MaxWait, func() { a.flushExpired(gen) })
	}
	a.open.Requests = append(a.open.Requests, req)
	a.pending++

	if len(a.open.Requests) >= a.cfg.MaxBatchSize {
		a.flushLocked()
	}
	return h, nil
}

// NextReady blocks until a batch is released, then atomically closes it to
// further additions and hands it to the caller. Intended for a single
// consumer. Returns ErrStopped once the accumulator is closed and drained.
func (a *Accumulator) NextReady(ctx context.Context) (*Batch, error) {
	select {
	case b, ok := <-a.ready:
		if !ok {
			return nil, ErrStopped
		}
		a.mu.Lock()
		a.pending -= len(b.Requests)
		a.mu.Unlock()
		return b, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close stops intake and force-releases any partially filled open batch so
// that no already-submitted request is discarded. Idempotent.
func (a *Accumulator) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	a.flushLocked()
	a.closed = true
	close(a.ready)
}

// Pending returns the number of requests submitted but not yet dispatched
func (a *Accumulator) Pending() int {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.pending
}

// flushLocked moves the open batch onto the ready queue. Callers hold a.mu.
func (a *Accumulator) flushLocked() {
	if a.open == nil {
		return
	}
	if a.timer != nil {
		a.timer.Stop()
		a.timer = nil
	}
	b := a.open
	a.open = nil
	a.gen++
	a.ready <- b
}

// flushExpired releases the open batch when its MaxWait elapses. The
// generation check drops timers whose batch was already flushed by size.
func (a *Accumulator) flushExpired(gen uint64) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed || a.gen != gen {
		return
	}
	a.flushLocked()
}

// drainReady collects batches still buffered after Close. Used by the
// dispatcher to fail leftovers when its context is cancelled mid-shutdown.
func (a *Accumulator) drainReady() []*Batch {
	var out []*Batch
	for {
		select {
		case b, ok := <-a.ready:
			if !ok {
				return out
			}
			a.mu.Lock()
			a.pending -= len(b.Requests)
			a.mu.Unlock()
			out = append(out, b)
		default:
			return out
		}
	}
}
