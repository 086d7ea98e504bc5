package batching

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"regexp"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soundprediction/go-rerank/pkg/scorer"
)

// indexScorer returns i/10 for the i-th pair of each call, making positional
// alignment observable
func indexScorer() scorer.Scorer {
	return scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		scores := make([]float64, len(pairs))
		for i := range pairs {
			scores[i] = float64(i) / 10.0
		}
		return scores, nil
	})
}

func TestDispatcherPositionalAlignment(t *testing.T) {
	acc := NewAccumulator(Config{MaxBatchSize: 4, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, indexScorer(), nil)
	disp.Start(context.Background())

	handles := make([]*Handle, 4)
	for i := range handles {
		h, err := acc.Submit("q", "p")
		require.NoError(t, err)
		handles[i] = h
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for i, h := range handles {
		score, err := h.Await(ctx)
		require.NoError(t, err)
		assert.Equal(t, float64(i)/10.0, score, "score[%d] must match request[%d]", i, i)
	}

	acc.Close()
	disp.Wait()

	stats := disp.Stats()
	assert.Equal(t, uint64(1), stats.Batches)
	assert.Equal(t, uint64(4), stats.Requests)
	assert.Equal(t, uint64(0), stats.Failures)
	assert.Equal(t, StateStopped, disp.State())
}

func TestDispatcherSerializesScorerCalls(t *testing.T) {
	var inFlight, maxInFlight atomic.Int32
	sc := scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		cur := inFlight.Add(1)
		for {
			prev := maxInFlight.Load()
			if cur <= prev || maxInFlight.CompareAndSwap(prev, cur) {
				break
			}
		}
		time.Sleep(2 * time.Millisecond)
		inFlight.Add(-1)
		return make([]float64, len(pairs)), nil
	})

	acc := NewAccumulator(Config{MaxBatchSize: 2, MaxWait: time.Millisecond, MaxQueueDepth: 1000})
	disp := NewDispatcher(acc, sc, nil)
	disp.Start(context.Background())

	var handles []*Handle
	for i := 0; i < 40; i++ {
		h, err := acc.Submit("q", "p")
		require.NoError(t, err)
		handles = append(handles, h)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, h := range handles {
		_, err := h.Await(ctx)
		require.NoError(t, err)
	}
	acc.Close()
	disp.Wait()

	assert.Equal(t, int32(1), maxInFlight.Load(), "scorer must never be called concurrently")
}

func TestDispatcherFailurePropagatesToWholeBatch(t *testing.T) {
	boom := errors.New("model exploded")
	sc := scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		return nil, boom
	})

	acc := NewAccumulator(Config{MaxBatchSize: 3, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, sc, nil)
	disp.Start(context.Background())

	handles := make([]*Handle, 3)
	for i := range handles {
		h, err := acc.Submit("q", "p")
		require.NoError(t, err)
		handles[i] = h
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	for _, h := range handles {
		_, err := h.Await(ctx)
		require.Error(t, err)
		assert.ErrorIs(t, err, &UpstreamError{})
		assert.ErrorIs(t, err, boom)
	}

	acc.Close()
	disp.Wait()
	assert.Equal(t, uint64(1), disp.Stats().Failures)
}

func TestDispatcherLengthMismatchFailsBatch(t *testing.T) {
	sc := scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		return []float64{0.5}, nil // wrong length for a 2-request batch
	})

	acc := NewAccumulator(Config{MaxBatchSize: 2, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, sc, nil)
	disp.Start(context.Background())

	h1, err := acc.Submit("q", "p1")
	require.NoError(t, err)
	h2, err := acc.Submit("q", "p2")
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = h1.Await(ctx)
	assert.ErrorIs(t, err, &UpstreamError{})
	_, err = h2.Await(ctx)
	assert.ErrorIs(t, err, &UpstreamError{})

	acc.Close()
	disp.Wait()
}

func TestDispatcherShutdownResolvesPartialBatch(t *testing.T) {
	acc := NewAccumulator(Config{MaxBatchSize: 100, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, indexScorer(), nil)
	disp.Start(context.Background())

	h1, err := acc.Submit("q", "p1")
	require.NoError(t, err)
	h2, err := acc.Submit("q", "p2")
	require.NoError(t, err)

	// batch is partial: neither size nor max-wait has released it
	acc.Close()
	disp.Wait()

	require.True(t, h1.Resolved())
	require.True(t, h2.Resolved())
	score, err := h1.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.0, score)
	score, err = h2.Await(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 0.1, score)
}

func TestDispatcherAbandonedHandleDoesNotBlock(t *testing.T) {
	release := make(chan struct{})
	sc := scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		<-release
		return make([]float64, len(pairs)), nil
	})

	acc := NewAccumulator(Config{MaxBatchSize: 1, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, sc, nil)
	disp.Start(context.Background())

	h, err := acc.Submit("q", "p")
	require.NoError(t, err)

	// caller gives up before the batch executes
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Millisecond)
	defer cancel()
	_, err = h.Await(ctx)
	require.ErrorIs(t, err, ErrTimeout)

	// the request still executes and the dispatcher keeps going
	close(release)
	h2, err := acc.Submit("q", "p2")
	require.NoError(t, err)
	ctx2, cancel2 := context.WithTimeout(context.Background(), time.Second)
	defer cancel2()
	_, err = h2.Await(ctx2)
	require.NoError(t, err)

	acc.Close()
	disp.Wait()
}

func TestDispatcherLogsBatchAgeAsDuration(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	acc := NewAccumulator(Config{MaxBatchSize: 1, MaxWait: time.Hour, MaxQueueDepth: 100})
	disp := NewDispatcher(acc, indexScorer(), log)
	disp.Start(context.Background())

	h, err := acc.Submit("q", "p")
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err = h.Await(ctx)
	require.NoError(t, err)

	acc.Close()
	disp.Wait()

	m := regexp.MustCompile(`age=(\S+)`).FindStringSubmatch(buf.String())
	require.NotNil(t, m, "batch scored log must carry an age attribute")
	age, err := time.ParseDuration(m[1])
	require.NoError(t, err, "age must be an elapsed duration, not a timestamp")
	assert.Less(t, age, time.Second)
}

func TestDispatcherContextCancelFailsQueuedBatches(t *testing.T) {
	sc := scorer.Func(func(ctx context.Context, pairs []scorer.Pair) ([]float64, error) {
		<-ctx.Done()
		return nil, ctx.Err()
	})

	acc := NewAccumulator(Config{MaxBatchSize: 1, MaxWait: time.Hour, MaxQueueDepth: 100})
	ctx, cancel := context.WithCancel(context.Background())
	disp := NewDispatcher(acc, sc, nil)
	disp.Start(ctx)

	// first batch occupies the scorer, second waits in the ready queue
	h1, err := acc.Submit("q", "p1")
	require.NoError(t, err)
	h2, err := acc.Submit("q", "p2")
	require.NoError(t, err)

	cancel()
	disp.Wait()

	_, err = h1.Await(context.Background())
	require.ErrorIs(t, err, &UpstreamError{})
	require.True(t, h2.Resolved(), "queued request must not be silently dropped")
	_, err = h2.Await(context.Background())
	assert.ErrorIs(t, err, &UpstreamError{})
}
