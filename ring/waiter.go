package ring

import (
	"sync"

	"code.hybscloud.com/spin"
)

// Waiter adds a blocking interface on top of a Ring's non-blocking
// TryPush/TryPop. Two policies are provided: Spin and Park.
type Waiter[T any] interface {
	// Push blocks (per the wrapper's policy) until the item is accepted or
	// the ring is canceled.
	Push(item T) error
	// Pop removes the head item. If wait is false it behaves like TryPop
	// wrapped in the same error convention; if wait is true it blocks until
	// an item is available or the ring is canceled.
	Pop(wait bool) (T, error)
	// Cancel cancels the underlying ring, unblocking any waiter.
	Cancel()
	// Canceled reports the underlying ring's cancel state.
	Canceled() bool
	// Ring returns the wrapped ring.
	Ring() *Ring[T]
}

// SpinWaiter retries TryPush/TryPop with a cooperative yield between
// attempts, checking the cancel flag on every retry. Grounded on
// code.hybscloud.com/spin's spin.Wait escalation used throughout
// hayabusa-cloud-lfq's own benchmarks and tests for exactly this pattern.
type SpinWaiter[T any] struct {
	r *Ring[T]
}

// NewSpinWaiter wraps r with the spin-wait blocking policy.
func NewSpinWaiter[T any](r *Ring[T]) *SpinWaiter[T] {
	return &SpinWaiter[T]{r: r}
}

func (w *SpinWaiter[T]) Ring() *Ring[T] { return w.r }

func (w *SpinWaiter[T]) Push(item T) error {
	var sw spin.Wait
	for {
		if w.r.TryPush(item) {
			return nil
		}
		if w.r.Canceled() {
			return ErrCanceled
		}
		sw.Once()
	}
}

func (w *SpinWaiter[T]) Pop(wait bool) (T, error) {
	if !wait {
		v, ok := w.r.TryPop()
		if !ok {
			var zero T
			return zero, ErrCanceled
		}
		return v, nil
	}
	var sw spin.Wait
	for {
		if v, ok := w.r.TryPop(); ok {
			return v, nil
		}
		if w.r.Canceled() {
			var zero T
			return zero, ErrCanceled
		}
		sw.Once()
	}
}

func (w *SpinWaiter[T]) Cancel()        { w.r.Cancel() }
func (w *SpinWaiter[T]) Canceled() bool { return w.r.Canceled() }

// ParkWaiter guards the ring with a mutex+condition-variable. The producer
// broadcasts on a successful push, the consumer broadcasts on a successful
// pop; a blocked caller wakes on either broadcast or cancellation and
// re-checks the ring, tolerating spurious wakeups. The underlying TryPush/
// TryPop remain the data path — the condvar only delivers wakeups.
type ParkWaiter[T any] struct {
	r    *Ring[T]
	mu   sync.Mutex
	cond *sync.Cond
}

// NewParkWaiter wraps r with the park (mutex/condvar) blocking policy.
func NewParkWaiter[T any](r *Ring[T]) *ParkWaiter[T] {
	w := &ParkWaiter[T]{r: r}
	w.cond = sync.NewCond(&w.mu)
	return w
}

func (w *ParkWaiter[T]) Ring() *Ring[T] { return w.r }

func (w *ParkWaiter[T]) Push(item T) error {
	for {
		if w.r.TryPush(item) {
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
			return nil
		}
		if w.r.Canceled() {
			return ErrCanceled
		}
		w.mu.Lock()
		if !w.r.IsFull() || w.r.Canceled() {
			w.mu.Unlock()
			continue
		}
		w.cond.Wait()
		w.mu.Unlock()
	}
}

func (w *ParkWaiter[T]) Pop(wait bool) (T, error) {
	if !wait {
		v, ok := w.r.TryPop()
		if !ok {
			var zero T
			return zero, ErrCanceled
		}
		w.mu.Lock()
		w.cond.Broadcast()
		w.mu.Unlock()
		return v, nil
	}
	for {
		if v, ok := w.r.TryPop(); ok {
			w.mu.Lock()
			w.cond.Broadcast()
			w.mu.Unlock()
			return v, nil
		}
		if w.r.Canceled() {
			var zero T
			return zero, ErrCanceled
		}
		w.mu.Lock()
		if !w.r.IsEmpty() || w.r.Canceled() {
			w.mu.Unlock()
			continue
		}
		w.cond.Wait()
		w.mu.Unlock()
	}
}

func (w *ParkWaiter[T]) Cancel() {
	w.r.Cancel()
	w.mu.Lock()
	w.cond.Broadcast()
	w.mu.Unlock()
}

func (w *ParkWaiter[T]) Canceled() bool { return w.r.Canceled() }
