package syncq

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

func TestQueueRunsJobsOneAtATime(t *testing.T) {
	q := New(4)
	defer q.Close()

	var running, maxRunning int32
	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := q.Do(context.Background(), func(context.Context) error {
				n := atomic.AddInt32(&running, 1)
				for {
					m := atomic.LoadInt32(&maxRunning)
					if n <= m || atomic.CompareAndSwapInt32(&maxRunning, m, n) {
						break
					}
				}
				time.Sleep(time.Millisecond)
				atomic.AddInt32(&running, -1)
				return nil
			})
			assert.NoError(t, err)
		}()
	}
	wg.Wait()
	require.Equal(t, int32(1), atomic.LoadInt32(&maxRunning))
}

func TestQueueReturnsJobError(t *testing.T) {
	q := New(0)
	defer q.Close()

	boom := errors.New("boom")
	err := q.Do(context.Background(), func(context.Context) error { return boom })
	require.ErrorIs(t, err, boom)
}

func TestQueueJobIgnoresCallerCancellation(t *testing.T) {
	q := New(0)
	defer q.Close()

	ctx, cancel := context.WithCancel(context.Background())
	err := q.Do(ctx, func(jobCtx context.Context) error {
		cancel()
		return jobCtx.Err()
	})
	require.NoError(t, err)
}

func TestQueueRecoversPanics(t *testing.T) {
	q := New(0)
	defer q.Close()

	err := q.Do(context.Background(), func(context.Context) error { panic("nope") })
	require.Error(t, err)

	require.NoError(t, q.Do(context.Background(), func(context.Context) error { return nil }))
}

func TestQueueClosed(t *testing.T) {
	q := New(0)
	q.Close()
	q.Close()

	err := q.Do(context.Background(), func(context.Context) error { return nil })
	require.ErrorIs(t, err, ErrClosed)
}
