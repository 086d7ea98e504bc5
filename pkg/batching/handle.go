package batching

import (
	"context"
	"sync"

	"github.com/google/uuid"
)

// Handle represents one caller's pending scoring request. Its result slot is
// written exactly once by the dispatcher; callers block in Await until then.
// A caller that stops waiting (deadline, cancellation) may simply drop the
// handle: resolution of an abandoned handle never blocks the dispatcher.
type Handle struct {
	id    uuid.UUID
	once  sync.Once
	done  chan struct{}
	score float64
	err   error
}

func newHandle() *Handle {
	return &Handle{
		id:   uuid.New(),
		done: make(chan struct{}),
	}
}

// ID returns the unique id assigned to the request at submission time
func (h *Handle) ID() uuid.UUID {
	return h.id
}

// resolve writes the single-assignment result slot. Subsequent calls are
// no-ops, so a batch failure racing a late distribution cannot double-write.
func (h *Handle) resolve(score float64, err error) {
	h.once.Do(func() {
		h.score = score
		h.err = err
		close(h.done)
	})
}

// Await blocks until the request has been scored or ctx expires. A deadline
// expiry is reported as ErrTimeout; other cancellations return ctx.Err().
// Await is safe to call more than once; after resolution it returns the
// stored result immediately.
func (h *Handle) Await(ctx context.Context) (float64, error) {
	// A resolved handle wins over an already-expired ctx, otherwise repeat
	// Await calls could flip to ErrTimeout after a result was delivered.
	select {
	case <-h.done:
		return h.score, h.err
	default:
	}
	select {
	case <-h.done:
		return h.score, h.err
	case <-ctx.Done():
		if ctx.Err() == context.DeadlineExceeded {
			return 0, ErrTimeout
		}
		return 0, ctx.Err()
	}
}

// Resolved reports whether the result slot has been written
func (h *Handle) Resolved() bool {
	select {
	case <-h.done:
		return true
	default:
		return false
	}
}
