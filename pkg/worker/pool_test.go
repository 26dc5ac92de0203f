package worker

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testWork struct {
	id    int
	delay time.Duration
	fail  bool
}

func noopProcessor(_ context.Context, _ testWork) error { return nil }

func TestNewPool_Defaults(t *testing.T) {
	pool := NewPool(5, 100, noopProcessor)
	assert.Equal(t, 5, pool.workers)
	assert.Equal(t, 100, pool.queueSize)

	pool = NewPool(0, 0, noopProcessor)
	assert.Equal(t, 4, pool.workers)
	assert.Equal(t, 256, pool.queueSize)
}

func TestNewPool_NilProcessorPanics(t *testing.T) {
	assert.PanicsWithValue(t, ErrNilProcessor, func() {
		NewPool[testWork](5, 100, nil)
	})
}

func TestPool_StartSubmitStop(t *testing.T) {
	var processed int64
	pool := NewPool(2, 10, func(_ context.Context, _ testWork) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	assert.ErrorIs(t, pool.Start(context.Background()), ErrPoolAlreadyStarted)

	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i}))
	}

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(5), atomic.LoadInt64(&processed), "Stop drains queued work")
	assert.ErrorIs(t, pool.Submit(testWork{id: 99}), ErrPoolStopped)
}

func TestPool_SubmitBeforeStart(t *testing.T) {
	pool := NewPool(2, 10, noopProcessor)
	assert.ErrorIs(t, pool.Submit(testWork{id: 1}), ErrPoolNotStarted)
}

func TestPool_QueueFullDrops(t *testing.T) {
	pool := NewPool(1, 2, func(_ context.Context, work testWork) error {
		time.Sleep(work.delay)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))
	t.Cleanup(func() { _ = pool.Stop(5 * time.Second) })

	var dropped int
	for i := 0; i < 8; i++ {
		if err := pool.Submit(testWork{id: i, delay: 200 * time.Millisecond}); err != nil {
			assert.ErrorIs(t, err, ErrQueueFull)
			dropped++
		}
	}

	assert.Positive(t, dropped, "a full queue drops rather than blocks")
	assert.Equal(t, int64(dropped), pool.Stats().Dropped)
}

func TestPool_FailedWorkCounted(t *testing.T) {
	pool := NewPool(2, 10, func(_ context.Context, work testWork) error {
		if work.fail {
			return errors.New("simulated failure")
		}
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	for i := 0; i < 10; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, fail: i%2 == 0}))
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats := pool.Stats()
	assert.Equal(t, int64(10), stats.Processed)
	assert.Equal(t, int64(5), stats.Failed)
}

func TestPool_ConcurrentSubmissions(t *testing.T) {
	var processed int64
	pool := NewPool(5, 200, func(_ context.Context, _ testWork) error {
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(context.Background()))

	var wg sync.WaitGroup
	const submitters, each = 10, 10
	for i := 0; i < submitters; i++ {
		wg.Add(1)
		go func(base int) {
			defer wg.Done()
			for j := 0; j < each; j++ {
				assert.NoError(t, pool.Submit(testWork{id: base*each + j}))
			}
		}(i)
	}
	wg.Wait()

	require.NoError(t, pool.Stop(5*time.Second))
	assert.Equal(t, int64(submitters*each), atomic.LoadInt64(&processed))
}

func TestPool_StopTimeout(t *testing.T) {
	started := make(chan struct{})
	pool := NewPool(1, 10, func(ctx context.Context, _ testWork) error {
		close(started)
		select {
		case <-time.After(10 * time.Second):
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	})

	require.NoError(t, pool.Start(context.Background()))
	require.NoError(t, pool.Submit(testWork{id: 1}))
	<-started

	assert.ErrorIs(t, pool.Stop(50*time.Millisecond), ErrStopTimeout)
}

func TestPool_ContextCancellationStopsWorkers(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	var processed int64
	pool := NewPool(2, 10, func(_ context.Context, work testWork) error {
		time.Sleep(work.delay)
		atomic.AddInt64(&processed, 1)
		return nil
	})

	require.NoError(t, pool.Start(ctx))
	for i := 0; i < 5; i++ {
		require.NoError(t, pool.Submit(testWork{id: i, delay: 50 * time.Millisecond}))
	}

	time.Sleep(10 * time.Millisecond)
	cancel()
	require.NoError(t, pool.Stop(5*time.Second))

	assert.LessOrEqual(t, atomic.LoadInt64(&processed), int64(5))
}

func TestPool_Stats(t *testing.T) {
	pool := NewPool(3, 50, noopProcessor)

	stats := pool.Stats()
	assert.Equal(t, 3, stats.Workers)
	assert.Equal(t, 50, stats.QueueSize)
	assert.Zero(t, stats.Submitted)

	require.NoError(t, pool.Start(context.Background()))
	for i := 0; i < 10; i++ {
		_ = pool.Submit(testWork{id: i})
	}
	require.NoError(t, pool.Stop(5*time.Second))

	stats = pool.Stats()
	assert.Equal(t, int64(10), stats.Submitted)
	assert.Equal(t, int64(10), stats.Processed)
}
