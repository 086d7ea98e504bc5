package batching

import (
	"errors"
	"fmt"
)

// Common batching errors
var (
	// ErrOverloaded indicates the pending-request queue is full and the
	// request was rejected without blocking
	ErrOverloaded = errors.New("scoring queue is full, request rejected")

	// ErrStopped indicates the accumulator has been closed and no longer
	// accepts requests
	ErrStopped = errors.New("batch accumulator is stopped")

	// ErrTimeout indicates a caller's deadline elapsed before its request
	// was scored
	ErrTimeout = errors.New("timed out waiting for score")
)

// UpstreamError wraps a scorer failure. Every request in the failed batch
// resolves with the same UpstreamError.
type UpstreamError struct {
	Err error
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream scorer failed: %v", e.Err)
}

// Unwrap returns the underlying scorer error
func (e *UpstreamError) Unwrap() error {
	return e.Err
}

// Is implements errors.Is support for UpstreamError.
// This allows errors.Is(err, &UpstreamError{}) to work with wrapped errors.
func (e *UpstreamError) Is(target error) bool {
	_, ok := target.(*UpstreamError)
	return ok
}

// NewUpstreamError creates a new upstream error wrapping the scorer failure
func NewUpstreamError(err error) *UpstreamError {
	return &UpstreamError{Err: err}
}
