// Package ring implements the lock-free single-producer single-consumer
// bounded queue that connects pipeline stages.
//
// The algorithm is Kjell Hedström's circular FIFO (as used by
// toa::frame_bender::CircularFifo): a fixed array of size N+1 with two
// atomic cursors, so that the full and empty conditions are distinguishable
// without a separate element counter. Head/tail cursors use
// [code.hybscloud.com/atomix] for the acquire/release memory ordering the
// algorithm depends on.
package ring

import (
	"code.hybscloud.com/atomix"
)

// Ring is a bounded SPSC queue of capacity N (internal slots = N+1).
// Exactly one goroutine may call the TryPush side and exactly one goroutine
// may call the TryPop side; Ring enforces neither, per spec.
type Ring[T any] struct {
	buf      []T
	slots    uint64 // N+1
	tail     atomix.Uint64
	head     atomix.Uint64
	canceled atomix.Bool
}

// New creates a Ring with capacity N (N >= 1). Internally N+1 slots are
// allocated so is_empty/is_full can be told apart from the cursors alone.
func New[T any](capacity int) *Ring[T] {
	if capacity < 1 {
		panic("ring: capacity must be >= 1")
	}
	return &Ring[T]{
		buf:   make([]T, capacity+1),
		slots: uint64(capacity + 1),
	}
}

// Capacity returns N, the number of items the ring can hold.
func (r *Ring[T]) Capacity() int {
	return int(r.slots - 1)
}

func (r *Ring[T]) increment(idx uint64) uint64 {
	idx++
	if idx == r.slots {
		return 0
	}
	return idx
}

// TryPush moves item into the tail slot. Returns false if the ring is full.
// Producer-only; wait-free.
func (r *Ring[T]) TryPush(item T) bool {
	tail := r.tail.LoadRelaxed()
	next := r.increment(tail)
	if next == r.head.LoadAcquire() {
		return false
	}
	r.buf[tail] = item
	r.tail.StoreRelease(next)
	return true
}

// TryPop moves the head slot out of the ring into the returned value.
// Returns false (zero value) if the ring is empty. Consumer-only; wait-free.
func (r *Ring[T]) TryPop() (T, bool) {
	head := r.head.LoadRelaxed()
	if head == r.tail.LoadAcquire() {
		var zero T
		return zero, false
	}
	item := r.buf[head]
	var zero T
	r.buf[head] = zero
	r.head.StoreRelease(r.increment(head))
	return item, true
}

// Len returns a relaxed snapshot of the number of items currently queued.
// Not a synchronization point.
func (r *Ring[T]) Len() int {
	tail := r.tail.LoadAcquire()
	head := r.head.LoadAcquire()
	if tail < head {
		return int(tail+r.slots) - int(head)
	}
	return int(tail) - int(head)
}

// IsEmpty reports whether the ring held no items at the moment of the call.
func (r *Ring[T]) IsEmpty() bool {
	return r.head.LoadAcquire() == r.tail.LoadAcquire()
}

// IsFull reports whether the ring held no free slots at the moment of the call.
func (r *Ring[T]) IsFull() bool {
	return r.increment(r.tail.LoadAcquire()) == r.head.LoadAcquire()
}

// Cancel sets a sticky cancel flag observed by blocking waiters wrapping
// this ring. One-shot: subsequent calls are no-ops.
func (r *Ring[T]) Cancel() {
	r.canceled.StoreRelease(true)
}

// Canceled reports whether Cancel has been called.
func (r *Ring[T]) Canceled() bool {
	return r.canceled.LoadAcquire()
}
