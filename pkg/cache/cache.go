// Package cache provides key-value score cache backends: an in-memory store
// with TTL expiry, a Redis-backed store for sharing scores across replicas,
// and a Badger-backed store for a local persistent cache.
package cache

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound indicates the key is absent or expired
var ErrNotFound = errors.New("cache: key not found")

// Store is a minimal key-value interface used by the score cache. A zero or
// negative ttl means the entry does not expire.
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error

	// Close releases backend resources
	Close() error
}
