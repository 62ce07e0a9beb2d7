package browser

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Mhixter/arapointx-sub002/shared/logger"
)

func fakeFactory(counter *atomic.Int64) Factory {
	return func() (*Session, error) {
		n := counter.Add(1)
		return &Session{
			id:        fmt.Sprintf("session-%d", n),
			createdAt: time.Now(),
		}, nil
	}
}

func newTestPool(capacity int, counter *atomic.Int64, mutate func(*PoolConfig)) *Pool {
	cfg := PoolConfig{
		Capacity:       capacity,
		AcquireTimeout: 100 * time.Millisecond,
		SessionMaxAge:  time.Hour,
		SessionMaxUses: 100,
	}
	if mutate != nil {
		mutate(&cfg)
	}
	return NewPool(fakeFactory(counter), cfg, logger.NewDefault().Logger)
}

func TestPool_AcquireRelease(t *testing.T) {
	var created atomic.Int64
	pool := newTestPool(2, &created, nil)

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s1)

	s2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	require.NotNil(t, s2)
	assert.NotEqual(t, s1.ID(), s2.ID())

	// Pool is full - third acquire must time out, not block forever
	start := time.Now()
	s3, err := pool.Acquire(context.Background())
	require.ErrorIs(t, err, ErrPoolExhausted)
	assert.Nil(t, s3)
	assert.Less(t, time.Since(start), time.Second)

	// After a release the lease is available again
	pool.Release(s1)
	s4, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	// Reuses the idle session rather than creating a new one
	assert.Equal(t, s1.ID(), s4.ID())
	assert.Equal(t, int64(2), created.Load())
}

func TestPool_LeaseCountNeverExceedsCapacity(t *testing.T) {
	const capacity = 3
	const workers = 20

	var created atomic.Int64
	pool := newTestPool(capacity, &created, func(cfg *PoolConfig) {
		cfg.AcquireTimeout = 2 * time.Second
	})

	var live atomic.Int64
	var peak atomic.Int64
	var wg sync.WaitGroup

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			s, err := pool.Acquire(context.Background())
			if err != nil {
				return
			}
			defer pool.Release(s)

			n := live.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(5 * time.Millisecond)
			live.Add(-1)
		}()
	}

	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int64(capacity))
	assert.LessOrEqual(t, created.Load(), int64(capacity))
}

func TestPool_BrokenSessionDiscarded(t *testing.T) {
	var created atomic.Int64
	pool := newTestPool(1, &created, nil)

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)

	s1.MarkBroken()
	pool.Release(s1)

	// Broken session must not come back from the free-list
	s2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
	assert.Equal(t, int64(2), created.Load())
}

func TestPool_SessionRecycledAfterMaxUses(t *testing.T) {
	var created atomic.Int64
	pool := newTestPool(1, &created, func(cfg *PoolConfig) {
		cfg.SessionMaxUses = 2
	})

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	pool.Release(s1)

	s2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.Equal(t, s1.ID(), s2.ID())
	pool.Release(s2)

	// Two uses spent - the next acquire gets a fresh session
	s3, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s3.ID())
}

func TestPool_SessionRecycledAfterMaxAge(t *testing.T) {
	var created atomic.Int64
	pool := newTestPool(1, &created, func(cfg *PoolConfig) {
		cfg.SessionMaxAge = time.Nanosecond
	})

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	time.Sleep(time.Millisecond)
	pool.Release(s1)

	s2, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, s1.ID(), s2.ID())
}

func TestPool_AcquireRespectsCallerContext(t *testing.T) {
	var created atomic.Int64
	pool := newTestPool(1, &created, func(cfg *PoolConfig) {
		cfg.AcquireTimeout = 10 * time.Second
	})

	s1, err := pool.Acquire(context.Background())
	require.NoError(t, err)
	defer pool.Release(s1)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = pool.Acquire(ctx)
	require.ErrorIs(t, err, ErrPoolExhausted)
}
