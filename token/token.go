// Package token defines the value carried across a pipeline edge and the
// command that accompanies it.
package token

// Command accompanies a Token across an edge. It propagates both downstream
// (producer signals drain) and upstream (consumer signals early
// termination).
type Command int

const (
	// NoChange means processing continues normally.
	NoChange Command = iota
	// StopExecution means the stage that set this command is draining or
	// has observed upstream/downstream termination.
	StopExecution
)

func (c Command) String() string {
	switch c {
	case NoChange:
		return "NoChange"
	case StopExecution:
		return "StopExecution"
	default:
		return "Command(?)"
	}
}

// Rational is a rational timestamp (numerator/denominator), matching the
// original's boost::rational<int64_t>-based Time type.
type Rational struct {
	Num int64
	Den int64
}

// Seconds converts the rational time to a float64 number of seconds.
func (r Rational) Seconds() float64 {
	if r.Den == 0 {
		return 0
	}
	return float64(r.Num) / float64(r.Den)
}

// CompositionHandle routes a token back to its owning composition without
// the token package needing to know about dispatcher.Composition.
type CompositionHandle interface {
	// ID returns the composition's identifier, for logging/routing.
	ID() string
}

// Token is the fixed-size value moved across one pipeline edge.
//
// Tokens are moved between rings, never shared: exactly one goroutine holds
// a given Token at any instant (the ring it sits in, or the stage currently
// processing it).
type Token struct {
	// Resource identifies a reusable host or device buffer. Opaque from the
	// runtime's perspective — concrete stage bodies type-assert it to their
	// own buffer type (e.g. a host byte slice or a *wgpu.Buffer).
	Resource any

	// Format describes the pixel/image layout currently held by Resource.
	Format ImageFormat

	// Fence is an optional GPU fence/sync opaque handle a producing stage
	// attaches so a consumer on a different GPU context can wait on it
	// before using Resource.
	Fence any

	// Time is this token's position within its owning composition.
	Time Rational

	// Composition routes the token back to the stream it belongs to.
	Composition CompositionHandle

	// HostPointer is an optional host-side mapped pointer into Resource,
	// populated while a staging buffer is mapped.
	HostPointer []byte
}

// QueueItem is the pair carried through a Ring: a Token plus the Command
// that accompanies it on this hop.
type QueueItem struct {
	Token   Token
	Command Command
}
