package cache

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGet(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("0.75"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("0.75"), val)
}

func TestMemoryStoreMissingKey(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	_, err := store.Get(context.Background(), "absent")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreTTLExpiry(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("v"), 10*time.Millisecond))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("v"), val)

	time.Sleep(20 * time.Millisecond)
	_, err = store.Get(ctx, "k")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMemoryStoreOverwrite(t *testing.T) {
	store := NewMemoryStore()
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "k", []byte("old"), 0))
	require.NoError(t, store.Set(ctx, "k", []byte("new"), 0))

	val, err := store.Get(ctx, "k")
	require.NoError(t, err)
	assert.Equal(t, []byte("new"), val)
}
