package neonfs

import (
	"crypto/subtle"
	"sync"

	"github.com/awnumar/memguard"
)

const (
	// DefaultSecureHeapSize is the default secure heap capacity (64 MiB).
	DefaultSecureHeapSize = 64 * 1024 * 1024
	// DefaultMinAllocation is the default allocation granularity. Every
	// allocation is charged against the heap in multiples of this.
	DefaultMinAllocation = 64
)

// secureHeap is the process-wide accounting for page-locked memory. The
// actual locking, guard pages, and wipe-on-free are memguard's; the heap
// adds the one-shot lifecycle and the fail-closed capacity bound.
type secureHeap struct {
	mu          sync.Mutex
	initialized bool
	size        int64
	minAlloc    int64
	used        int64
	live        int64
}

var heap secureHeap

// InitializeSecureHeap prepares the process-wide secure heap. It must be
// called exactly once before any SecureBuffer is allocated; a second call
// fails with an invalid-state error. Passing zero for either parameter
// selects the default (64 MiB, 64-byte granularity).
func InitializeSecureHeap(size, minAllocation int64) error {
	if size < 0 || minAllocation < 0 {
		return errInvalidArgument("secure heap size and granularity cannot be negative")
	}
	if size == 0 {
		size = DefaultSecureHeapSize
	}
	if minAllocation == 0 {
		minAllocation = DefaultMinAllocation
	}

	heap.mu.Lock()
	defer heap.mu.Unlock()

	if heap.initialized {
		return errInvalidState("secure heap already initialized")
	}
	heap.initialized = true
	heap.size = size
	heap.minAlloc = minAllocation
	heap.used = 0
	heap.live = 0
	return nil
}

// CleanupSecureHeap tears the secure heap down. It fails with an
// invalid-state error while any SecureBuffer is still live; on success
// the memguard session is purged and the heap may be initialized again.
func CleanupSecureHeap() error {
	heap.mu.Lock()
	defer heap.mu.Unlock()

	if !heap.initialized {
		return errInvalidState("secure heap not initialized")
	}
	if heap.live > 0 {
		return errInvalidState("secure heap still has %d live buffers", heap.live)
	}
	heap.initialized = false
	heap.used = 0
	memguard.Purge()
	return nil
}

// charge reserves n bytes of secure heap, rounded up to the allocation
// granularity. Fails closed when the heap is uninitialized or exhausted.
func (h *secureHeap) charge(n int64) (int64, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if !h.initialized {
		return 0, errAllocation("secure heap not initialized")
	}
	rounded := (n + h.minAlloc - 1) / h.minAlloc * h.minAlloc
	if h.used+rounded > h.size {
		return 0, errAllocation("secure heap exhausted: %d of %d bytes in use, %d requested",
			h.used, h.size, rounded)
	}
	h.used += rounded
	return rounded, nil
}

func (h *secureHeap) release(charge int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.used -= charge
	if h.used < 0 {
		h.used = 0
	}
}

func (h *secureHeap) track(delta int64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.live += delta
	if h.live < 0 {
		h.live = 0
	}
}

// SecureBuffer is a contiguous byte container whose backing store is
// page-locked, guarded, and zeroed on release. Buffers are not safe for
// concurrent mutation; share them the way you would share a []byte.
//
// An empty buffer is legal and holds no locked pages; it grows on Resize.
type SecureBuffer struct {
	buf       *memguard.LockedBuffer // nil while empty
	charge    int64
	destroyed bool
}

// NewSecureBuffer allocates a zeroed secure buffer of n bytes. n must be
// non-negative; n == 0 yields a live empty buffer.
func NewSecureBuffer(n int) (*SecureBuffer, error) {
	if n < 0 {
		return nil, errInvalidArgument("buffer size cannot be negative")
	}
	s := &SecureBuffer{}
	if n > 0 {
		charge, err := heap.charge(int64(n))
		if err != nil {
			return nil, err
		}
		s.buf = memguard.NewBuffer(n)
		s.charge = charge
	}
	heap.track(1)
	return s, nil
}

// NewSecureBufferFromBytes copies data into a fresh secure buffer and
// wipes the source slice.
func NewSecureBufferFromBytes(data []byte) (*SecureBuffer, error) {
	s, err := NewSecureBuffer(len(data))
	if err != nil {
		return nil, err
	}
	if len(data) > 0 {
		copy(s.buf.Bytes(), data)
		memguard.WipeBytes(data)
	}
	return s, nil
}

// Len returns the buffer length in bytes. A destroyed buffer has length
// zero.
func (s *SecureBuffer) Len() int {
	if s == nil || s.destroyed || s.buf == nil {
		return 0
	}
	return s.buf.Size()
}

// Bytes exposes the backing slice. The slice is only valid until the next
// Resize or Destroy; do not retain it. Returns nil for an empty or
// destroyed buffer.
func (s *SecureBuffer) Bytes() []byte {
	if s == nil || s.destroyed || s.buf == nil {
		return nil
	}
	return s.buf.Bytes()
}

// IsDestroyed reports whether Destroy has been called.
func (s *SecureBuffer) IsDestroyed() bool {
	return s == nil || s.destroyed
}

// Resize grows or shrinks the buffer to n bytes, preserving the common
// prefix. The abandoned region is wiped before its pages are released.
// On failure the buffer is unchanged.
func (s *SecureBuffer) Resize(n int) error {
	if s.destroyed {
		return errInvalidState("buffer has been destroyed")
	}
	if n < 0 {
		return errInvalidArgument("buffer size cannot be negative")
	}
	if n == s.Len() {
		return nil
	}

	var next *memguard.LockedBuffer
	var nextCharge int64
	if n > 0 {
		charge, err := heap.charge(int64(n))
		if err != nil {
			return err
		}
		next = memguard.NewBuffer(n)
		nextCharge = charge
		if s.buf != nil {
			copy(next.Bytes(), s.buf.Bytes())
		}
	}
	if s.buf != nil {
		s.buf.Destroy() // wipes before release
		heap.release(s.charge)
	}
	s.buf = next
	s.charge = nextCharge
	return nil
}

// Wipe zeroes the contents without releasing the buffer.
func (s *SecureBuffer) Wipe() error {
	if s.destroyed {
		return errInvalidState("buffer has been destroyed")
	}
	if s.buf != nil {
		s.buf.Wipe()
	}
	return nil
}

// Clone returns an independent copy of the buffer.
func (s *SecureBuffer) Clone() (*SecureBuffer, error) {
	if s.destroyed {
		return nil, errInvalidState("buffer has been destroyed")
	}
	out, err := NewSecureBuffer(s.Len())
	if err != nil {
		return nil, err
	}
	copy(out.Bytes(), s.Bytes())
	return out, nil
}

// Equal compares two buffers in constant time with respect to their
// contents. Buffers of different lengths compare unequal immediately.
func (s *SecureBuffer) Equal(other *SecureBuffer) bool {
	if s.Len() != other.Len() {
		return false
	}
	if s.Len() == 0 {
		return true
	}
	return subtle.ConstantTimeCompare(s.Bytes(), other.Bytes()) == 1
}

// Destroy wipes the contents and releases the locked pages. Idempotent;
// the buffer is unusable afterwards.
func (s *SecureBuffer) Destroy() {
	if s == nil || s.destroyed {
		return
	}
	if s.buf != nil {
		s.buf.Destroy()
		heap.release(s.charge)
		s.buf = nil
		s.charge = 0
	}
	s.destroyed = true
	heap.track(-1)
}
