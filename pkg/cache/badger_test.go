package cache

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBadgerStoreRoundTrip(t *testing.T) {
	store, err := NewBadgerStore(t.TempDir())
	require.NoError(t, err)
	defer store.Close()

	ctx := context.Background()
	require.NoError(t, store.Set(ctx, "score:abc", []byte("0.42"), 0))

	val, err := store.Get(ctx, "score:abc")
	require.NoError(t, err)
	assert.Equal(t, []byte("0.42"), val)

	_, err = store.Get(ctx, "score:missing")
	assert.ErrorIs(t, err, ErrNotFound)
}
