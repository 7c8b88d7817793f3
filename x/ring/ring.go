// Package ring provides a fixed-capacity FIFO shared between one producer
// goroutine and one consumer goroutine.
package ring

import "sync"

// Ring is a bounded FIFO guarded by a single mutex. The lock is only held for
// index updates, so Push is safe to call from a sampling loop.
//
// A full ring rejects new values: the newest value is lost, queued values are
// never overwritten.
type Ring[T any] struct {
	mu    sync.Mutex
	buf   []T
	head  int // next write slot
	tail  int // next read slot
	count int

	dropped  uint32
	readable chan struct{} // 0->>0 available edge
}

// New returns a ring holding at most size values.
func New[T any](size int) *Ring[T] {
	if size < 1 {
		panic("ring: size must be >= 1")
	}
	return &Ring[T]{
		buf:      make([]T, size),
		readable: make(chan struct{}, 1),
	}
}

// Push appends v. It reports false, leaving the contents untouched, when the
// ring is full.
func (r *Ring[T]) Push(v T) bool {
	r.mu.Lock()
	if r.count == len(r.buf) {
		r.dropped++
		r.mu.Unlock()
		return false
	}
	r.buf[r.head] = v
	r.head = (r.head + 1) % len(r.buf)
	r.count++
	edge := r.count == 1
	r.mu.Unlock()

	if edge {
		select {
		case r.readable <- struct{}{}:
		default:
		}
	}
	return true
}

// Pop removes the oldest value.
func (r *Ring[T]) Pop() (T, bool) {
	var zero T
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.count == 0 {
		return zero, false
	}
	v := r.buf[r.tail]
	r.buf[r.tail] = zero
	r.tail = (r.tail + 1) % len(r.buf)
	r.count--
	return v, true
}

// Reset empties the ring. The dropped counter is kept.
func (r *Ring[T]) Reset() {
	var zero T
	r.mu.Lock()
	for i := range r.buf {
		r.buf[i] = zero
	}
	r.head, r.tail, r.count = 0, 0, 0
	r.mu.Unlock()

	select {
	case <-r.readable:
	default:
	}
}

func (r *Ring[T]) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.count
}

func (r *Ring[T]) Cap() int { return len(r.buf) }

// Dropped returns how many pushes were rejected because the ring was full.
func (r *Ring[T]) Dropped() uint32 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.dropped
}

// Readable is signalled when the ring goes from empty to non-empty.
// Wakes are coalesced; drain with Pop until it reports false.
func (r *Ring[T]) Readable() <-chan struct{} { return r.readable }
