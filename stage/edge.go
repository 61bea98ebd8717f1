package stage

import (
	"github.com/Carmen-Shannon/streamforge/ring"
	"github.com/Carmen-Shannon/streamforge/token"
)

// WaitPolicy selects the blocking strategy an Edge's rings use.
type WaitPolicy int

const (
	// WaitSpin retries with a cooperative yield between attempts.
	WaitSpin WaitPolicy = iota
	// WaitPark guards the ring with a mutex+condition-variable.
	WaitPark
)

// Edge is a pair of rings (downstream, upstream) of identical capacity N,
// both owned by the upstream (producing) stage. At construction the
// upstream ring is pre-populated with N initial tokens (the free list); the
// downstream ring starts empty.
type Edge struct {
	capacity int
	down     ring.Waiter[token.QueueItem]
	up       ring.Waiter[token.QueueItem]
}

// NewEdge builds an Edge of the given capacity and wait policy. seed, if
// non-nil, is called once per free-list slot (index 0..capacity) to
// initialize the Token each slot starts with (e.g. to attach a pre-sized
// host buffer); a nil seed leaves tokens zero-valued.
func NewEdge(capacity int, policy WaitPolicy, seed func(i int) token.Token) *Edge {
	if capacity < 1 {
		panic("stage: edge capacity must be >= 1")
	}

	downRing := ring.New[token.QueueItem](capacity)
	upRing := ring.New[token.QueueItem](capacity)

	for i := 0; i < capacity; i++ {
		var tok token.Token
		if seed != nil {
			tok = seed(i)
		}
		if !upRing.TryPush(token.QueueItem{Token: tok, Command: token.NoChange}) {
			panic("stage: free-list seeding overflowed edge capacity")
		}
	}

	e := &Edge{capacity: capacity}
	switch policy {
	case WaitPark:
		e.down = ring.NewParkWaiter(downRing)
		e.up = ring.NewParkWaiter(upRing)
	default:
		e.down = ring.NewSpinWaiter(downRing)
		e.up = ring.NewSpinWaiter(upRing)
	}
	return e
}

// Capacity returns N, this edge's configured token count.
func (e *Edge) Capacity() int { return e.capacity }

// Down is the downstream ring: the producer pushes produced tokens here,
// the consumer pops them.
func (e *Edge) Down() ring.Waiter[token.QueueItem] { return e.down }

// Up is the upstream ring (the backchannel/free list): the consumer pushes
// spent tokens here, the producer pops them to refill.
func (e *Edge) Up() ring.Waiter[token.QueueItem] { return e.up }

// Cancel cancels both of this edge's rings, unblocking any waiter. Used at
// dispatcher-teardown time to unstick remaining blocked stages.
func (e *Edge) Cancel() {
	e.down.Cancel()
	e.up.Cancel()
}

// Flush drains both rings, invoking f on every remaining token's Token so
// the application can release GPU sync objects, unmap buffers, etc.
func (e *Edge) Flush(f func(token.Token)) {
	for {
		item, ok := e.down.Ring().TryPop()
		if !ok {
			break
		}
		f(item.Token)
	}
	for {
		item, ok := e.up.Ring().TryPop()
		if !ok {
			break
		}
		f(item.Token)
	}
}
