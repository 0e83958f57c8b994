package neonfs

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// ContextPool is a bounded, thread-safe pool of cipher contexts. Idle
// contexts are reused LIFO; when the pool is at capacity, Acquire blocks
// on a condition variable until a handle is released. Contexts are
// created outside the critical section so the lock is never held across
// allocation.
type ContextPool struct {
	mu      sync.Mutex
	cond    *sync.Cond
	idle    []*CipherContext
	current int // contexts ever created, never exceeds max
	max     int
}

// NewContextPool creates a pool holding at most maxSize contexts.
func NewContextPool(maxSize int) (*ContextPool, error) {
	if maxSize < 1 {
		return nil, errInvalidArgument("pool size must be at least 1, got %d", maxSize)
	}
	p := &ContextPool{max: maxSize}
	p.cond = sync.NewCond(&p.mu)
	return p, nil
}

// Acquire returns a handle to an exclusive cipher context, blocking while
// the pool is exhausted. Release the handle (or use With) to return the
// context.
func (p *ContextPool) Acquire() (*PoolHandle, error) {
	return p.acquire(nil)
}

// AcquireTimeout is Acquire with a deadline. It fails with a timeout
// error when no context becomes available in time, leaving no context
// outstanding.
func (p *ContextPool) AcquireTimeout(d time.Duration) (*PoolHandle, error) {
	if d <= 0 {
		return nil, errInvalidArgument("acquire timeout must be positive")
	}
	deadline := time.Now().Add(d)
	return p.acquire(&deadline)
}

func (p *ContextPool) acquire(deadline *time.Time) (*PoolHandle, error) {
	p.mu.Lock()
	for {
		if n := len(p.idle); n > 0 {
			ctx := p.idle[n-1]
			p.idle = p.idle[:n-1]
			p.mu.Unlock()
			return &PoolHandle{pool: p, ctx: ctx}, nil
		}
		if p.current < p.max {
			p.current++
			created := p.current
			p.mu.Unlock()
			// Allocation happens outside the lock.
			ctx := NewCipherContext()
			log.WithFields(logrus.Fields{
				"current": created,
				"max":     p.max,
			}).Debug("cipher context created")
			return &PoolHandle{pool: p, ctx: ctx}, nil
		}
		if deadline != nil {
			remaining := time.Until(*deadline)
			if remaining <= 0 {
				p.mu.Unlock()
				return nil, errTimeout("timed out waiting for a cipher context")
			}
			// sync.Cond has no timed wait; a one-shot timer wakes all
			// waiters so the deadline check above can run. The timer
			// takes the mutex first so the broadcast cannot land in the
			// gap before Wait starts waiting.
			timer := time.AfterFunc(remaining, func() {
				p.mu.Lock()
				defer p.mu.Unlock()
				p.cond.Broadcast()
			})
			p.cond.Wait()
			timer.Stop()
		} else {
			p.cond.Wait()
		}
	}
}

// With acquires a context, passes it to fn, and guarantees the context is
// returned to the pool on every exit path, including a panic in fn.
func (p *ContextPool) With(fn func(*CipherContext) error) error {
	h, err := p.Acquire()
	if err != nil {
		return err
	}
	defer h.Release()
	return fn(h.Ctx())
}

// AvailableCount returns a snapshot of the idle stack size.
func (p *ContextPool) AvailableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.idle)
}

// MaxSize returns the pool capacity.
func (p *ContextPool) MaxSize() int { return p.max }

// release resets the context and pushes it back onto the idle stack,
// waking one waiter. current is not decremented: the context stays part
// of the pool.
func (p *ContextPool) release(ctx *CipherContext) {
	ctx.Reset()
	p.mu.Lock()
	p.idle = append(p.idle, ctx)
	p.mu.Unlock()
	p.cond.Signal()
}

// PoolHandle is an exclusive token for one pooled cipher context. A
// handle must be released exactly once; Release is idempotent, and With
// wraps the acquire/release pair for scope-bound use.
type PoolHandle struct {
	pool *ContextPool
	ctx  *CipherContext
}

// Ctx returns the underlying context. It panics on an empty (released)
// handle, matching dereference of a moved-from handle.
func (h *PoolHandle) Ctx() *CipherContext {
	if h.ctx == nil {
		panic("neonfs: use of released pool handle")
	}
	return h.ctx
}

// IsEmpty reports whether the handle has been released.
func (h *PoolHandle) IsEmpty() bool { return h.ctx == nil }

// Release resets the context and returns it to the pool. Safe to call
// more than once; the handle is empty afterwards.
func (h *PoolHandle) Release() {
	if h.ctx == nil {
		return
	}
	ctx := h.ctx
	h.ctx = nil
	h.pool.release(ctx)
}
