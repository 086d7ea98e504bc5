package cache

import (
	"context"
	"sync"
	"time"
)

// MemoryStore is an in-memory Store for development and tests. Supports TTL
// but loses data on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	data  map[string]*entry
	clean *time.Ticker
	stop  chan struct{}
}

type entry struct {
	value     []byte
	expiresAt *time.Time
}

// NewMemoryStore creates an in-memory store with a background janitor that
// evicts expired entries
func NewMemoryStore() *MemoryStore {
	ms := &MemoryStore{
		data:  make(map[string]*entry),
		clean: time.NewTicker(10 * time.Second),
		stop:  make(chan struct{}),
	}
	go ms.cleanup()
	return ms
}

// Get implements Store
func (m *MemoryStore) Get(ctx context.Context, key string) ([]byte, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	e, ok := m.data[key]
	if !ok {
		return nil, ErrNotFound
	}
	if e.expiresAt != nil && time.Now().After(*e.expiresAt) {
		return nil, ErrNotFound
	}
	return e.value, nil
}

// Set implements Store
func (m *MemoryStore) Set(ctx context.Context, key string, value []byte, ttl time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	e := &entry{value: value}
	if ttl > 0 {
		expire := time.Now().Add(ttl)
		e.expiresAt = &expire
	}
	m.data[key] = e
	return nil
}

// Close stops the janitor and drops all entries
func (m *MemoryStore) Close() error {
	m.clean.Stop()
	close(m.stop)
	m.mu.Lock()
	m.data = make(map[string]*entry)
	m.mu.Unlock()
	return nil
}

func (m *MemoryStore) cleanup() {
	for {
		select {
		case <-m.clean.C:
			now := time.Now()
			m.mu.Lock()
			for key, e := range m.data {
				if e.expiresAt != nil && now.After(*e.expiresAt) {
					delete(m.data, key)
				}
			}
			m.mu.Unlock()
		case <-m.stop:
			return
		}
	}
}
