package ring_test

import (
	"errors"
	"sync"
	"testing"

	"github.com/Carmen-Shannon/streamforge/ring"
)

func TestRingTryPushPopBasic(t *testing.T) {
	r := ring.New[int](3)

	if r.Capacity() != 3 {
		t.Fatalf("Capacity: got %d, want 3", r.Capacity())
	}
	if !r.IsEmpty() {
		t.Fatalf("expected empty ring")
	}

	for i := range 3 {
		if !r.TryPush(i) {
			t.Fatalf("TryPush(%d): expected success", i)
		}
	}
	if !r.IsFull() {
		t.Fatalf("expected full ring")
	}
	if r.TryPush(99) {
		t.Fatalf("TryPush on full ring: expected false")
	}

	for i := range 3 {
		v, ok := r.TryPop()
		if !ok {
			t.Fatalf("TryPop(%d): expected success", i)
		}
		if v != i {
			t.Fatalf("TryPop(%d): got %d, want %d", i, v, i)
		}
	}
	if _, ok := r.TryPop(); ok {
		t.Fatalf("TryPop on empty ring: expected false")
	}
}

func TestRingFIFONoLossNoDuplication(t *testing.T) {
	const n = 200_000
	r := ring.New[int](16)
	w := ring.NewSpinWaiter(r)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := range n {
			if err := w.Push(i); err != nil {
				t.Errorf("Push(%d): %v", i, err)
				return
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for range n {
			v, err := w.Pop(true)
			if err != nil {
				t.Errorf("Pop: %v", err)
				return
			}
			got = append(got, v)
		}
	}()

	wg.Wait()

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestRingCancelUnblocksSpinConsumer(t *testing.T) {
	r := ring.New[int](4)
	w := ring.NewSpinWaiter(r)

	done := make(chan error, 1)
	go func() {
		_, err := w.Pop(true)
		done <- err
	}()

	r.Cancel()

	err := <-done
	if !errors.Is(err, ring.ErrCanceled) {
		t.Fatalf("Pop after cancel: got %v, want ErrCanceled", err)
	}
	if !r.Canceled() {
		t.Fatalf("expected Canceled() true")
	}
}

func TestRingCancelUnblocksParkConsumer(t *testing.T) {
	r := ring.New[int](4)
	w := ring.NewParkWaiter(r)

	done := make(chan error, 1)
	go func() {
		_, err := w.Pop(true)
		done <- err
	}()

	w.Cancel()

	err := <-done
	if !errors.Is(err, ring.ErrCanceled) {
		t.Fatalf("Pop after cancel: got %v, want ErrCanceled", err)
	}
}

func TestParkWaiterProducerConsumer(t *testing.T) {
	const n = 50_000
	r := ring.New[int](8)
	w := ring.NewParkWaiter(r)

	var wg sync.WaitGroup
	wg.Add(2)

	go func() {
		defer wg.Done()
		for i := range n {
			if err := w.Push(i); err != nil {
				t.Errorf("Push(%d): %v", i, err)
				return
			}
		}
	}()

	got := make([]int, 0, n)
	go func() {
		defer wg.Done()
		for range n {
			v, err := w.Pop(true)
			if err != nil {
				t.Errorf("Pop: %v", err)
				return
			}
			got = append(got, v)
		}
	}()

	wg.Wait()

	if len(got) != n {
		t.Fatalf("got %d items, want %d", len(got), n)
	}
	for i, v := range got {
		if v != i {
			t.Fatalf("out of order at %d: got %d", i, v)
		}
	}
}

func TestRingLenSnapshot(t *testing.T) {
	r := ring.New[int](4)
	if r.Len() != 0 {
		t.Fatalf("Len: got %d, want 0", r.Len())
	}
	r.TryPush(1)
	r.TryPush(2)
	if r.Len() != 2 {
		t.Fatalf("Len: got %d, want 2", r.Len())
	}
	r.TryPop()
	if r.Len() != 1 {
		t.Fatalf("Len: got %d, want 1", r.Len())
	}
}
