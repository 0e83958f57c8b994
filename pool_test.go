package neonfs

import (
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewContextPoolValidation(t *testing.T) {
	for _, size := range []int{0, -1} {
		_, err := NewContextPool(size)
		assertKind(t, err, KindInvalidArgument)
	}

	pool, err := NewContextPool(1)
	require.NoError(t, err)
	assert.Equal(t, 1, pool.MaxSize())
	assert.Equal(t, 0, pool.AvailableCount())
}

func TestPoolAcquireRelease(t *testing.T) {
	pool, err := NewContextPool(2)
	require.NoError(t, err)

	h, err := pool.Acquire()
	require.NoError(t, err)
	require.NotNil(t, h.Ctx())
	assert.False(t, h.IsEmpty())
	assert.Equal(t, 0, pool.AvailableCount())

	h.Release()
	assert.True(t, h.IsEmpty())
	assert.Equal(t, 1, pool.AvailableCount())

	// Idempotent release does not double-push.
	h.Release()
	assert.Equal(t, 1, pool.AvailableCount())
}

func TestPoolHandleCtxPanicsAfterRelease(t *testing.T) {
	pool, err := NewContextPool(1)
	require.NoError(t, err)

	h, err := pool.Acquire()
	require.NoError(t, err)
	h.Release()

	assert.Panics(t, func() { h.Ctx() })
}

func TestPoolLIFOReuse(t *testing.T) {
	pool, err := NewContextPool(3)
	require.NoError(t, err)

	h, err := pool.Acquire()
	require.NoError(t, err)
	first := h.Ctx()
	h.Release()

	// The most recently released context comes back first.
	h2, err := pool.Acquire()
	require.NoError(t, err)
	assert.Same(t, first, h2.Ctx(), "LIFO reuse returned a different context")
	h2.Release()
}

func TestPoolReleaseResetsContext(t *testing.T) {
	pool, err := NewContextPool(1)
	require.NoError(t, err)

	key := make([]byte, MasterKeySize)
	nonce := make([]byte, NonceSize)

	h, err := pool.Acquire()
	require.NoError(t, err)
	require.NoError(t, h.Ctx().Init(SuiteAES256GCM, key, nonce, true))
	h.Release()

	h, err = pool.Acquire()
	require.NoError(t, err)
	assert.False(t, h.Ctx().IsReady(), "released context came back initialized")
	h.Release()
}

func TestPoolBlocksWhenExhausted(t *testing.T) {
	pool, err := NewContextPool(3)
	require.NoError(t, err)

	handles := make([]*PoolHandle, 3)
	for i := range handles {
		h, err := pool.Acquire()
		require.NoError(t, err)
		handles[i] = h
	}

	var acquired atomic.Bool
	done := make(chan *PoolHandle)
	go func() {
		h, err := pool.Acquire()
		if err != nil {
			panic(err)
		}
		acquired.Store(true)
		done <- h
	}()

	time.Sleep(50 * time.Millisecond)
	assert.False(t, acquired.Load(), "fourth acquire did not block")

	// Releasing one handle unblocks exactly the one waiter.
	handles[0].Release()
	select {
	case h := <-done:
		h.Release()
	case <-time.After(2 * time.Second):
		t.Fatal("waiter was not woken by release")
	}

	for _, h := range handles[1:] {
		h.Release()
	}
}

func TestPoolAcquireTimeout(t *testing.T) {
	pool, err := NewContextPool(1)
	require.NoError(t, err)

	h, err := pool.Acquire()
	require.NoError(t, err)

	start := time.Now()
	_, err = pool.AcquireTimeout(100 * time.Millisecond)
	assertKind(t, err, KindTimeout)
	assert.GreaterOrEqual(t, time.Since(start), 100*time.Millisecond)

	// After release, the timed variant succeeds immediately.
	h.Release()
	h2, err := pool.AcquireTimeout(100 * time.Millisecond)
	require.NoError(t, err)
	h2.Release()

	_, err = pool.AcquireTimeout(0)
	assertKind(t, err, KindInvalidArgument)
}

func TestPoolWithReleasesOnPanic(t *testing.T) {
	pool, err := NewContextPool(1)
	require.NoError(t, err)

	assert.Panics(t, func() {
		_ = pool.With(func(ctx *CipherContext) error {
			panic("boom")
		})
	})

	// The context must be back in the pool.
	assert.Equal(t, 1, pool.AvailableCount())
	h, err := pool.AcquireTimeout(time.Second)
	require.NoError(t, err)
	h.Release()
}

func TestPoolWithPropagatesError(t *testing.T) {
	pool, err := NewContextPool(1)
	require.NoError(t, err)

	wantErr := errCrypto("cipher step failed")
	err = pool.With(func(ctx *CipherContext) error { return wantErr })
	assert.Equal(t, wantErr, err)
	assert.Equal(t, 1, pool.AvailableCount())
}

func TestPoolInvariantsUnderLoad(t *testing.T) {
	const maxSize = 4
	const workers = 16
	const rounds = 200

	pool, err := NewContextPool(maxSize)
	require.NoError(t, err)

	var outstanding atomic.Int64
	var peak atomic.Int64
	seen := sync.Map{} // ctx pointer -> struct{} while held

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < rounds; i++ {
				h, err := pool.Acquire()
				if err != nil {
					t.Error(err)
					return
				}
				ctx := h.Ctx()
				if _, loaded := seen.LoadOrStore(ctx, struct{}{}); loaded {
					t.Error("two live handles share one context")
				}
				n := outstanding.Add(1)
				for {
					p := peak.Load()
					if n <= p || peak.CompareAndSwap(p, n) {
						break
					}
				}
				outstanding.Add(-1)
				seen.Delete(ctx)
				h.Release()
			}
		}()
	}
	wg.Wait()

	assert.LessOrEqual(t, peak.Load(), int64(maxSize), "outstanding handles exceeded pool size")
	assert.LessOrEqual(t, pool.AvailableCount(), maxSize)
}
