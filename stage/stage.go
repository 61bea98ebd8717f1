// Package stage implements the worker-polled unit of pipeline work: a task
// function plumbed between an input edge (borrowed from its upstream stage)
// and an output edge (owned, and pre-filled with reusable free tokens).
package stage

import (
	"fmt"
	"sync/atomic"

	"github.com/Carmen-Shannon/streamforge/ring"
	"github.com/Carmen-Shannon/streamforge/sampler"
	"github.com/Carmen-Shannon/streamforge/token"
)

// State is a Stage's lifecycle state. It only ever moves forward:
// Initializing -> ReadyToExecute -> Stopped.
type State int32

const (
	Initializing State = iota
	ReadyToExecute
	Stopped
)

func (s State) String() string {
	switch s {
	case Initializing:
		return "Initializing"
	case ReadyToExecute:
		return "ReadyToExecute"
	case Stopped:
		return "Stopped"
	default:
		return "State(?)"
	}
}

// TaskFunc is the opaque unit of work a Stage wraps. input is nil for a
// producer stage (no input edge); output is nil for a consumer stage (no
// output edge). The task mutates *input and/or *output in place and
// returns the command to propagate. Detecting a mismatched image format
// between input and output (a programming error, not a runtime condition)
// is the task's responsibility: it should return StopExecution.
type TaskFunc func(input, output *token.Token) token.Command

// Bypass is a trivial transform task body that copies the input token to
// the output token unchanged. Used by the dispatcher to stand in for a
// bypassed sub-pipeline.
func Bypass(input, output *token.Token) token.Command {
	*output = *input
	return token.NoChange
}

// Stage is one unit of pipeline work with its rings, task, state, and
// optional sampler.
type Stage struct {
	name  string
	task  TaskFunc
	state atomic.Int32

	upstream *Stage // nil for a producer stage; used for load-constraint liveness checks

	inputDown ring.Waiter[token.QueueItem] // borrowed, pop-only; nil for a producer
	inputUp   ring.Waiter[token.QueueItem] // borrowed, push-only; nil for a producer

	outputDown ring.Waiter[token.QueueItem] // owned, push-only; nil for a consumer
	outputUp   ring.Waiter[token.QueueItem] // owned, pop-only; nil for a consumer

	loadConstraint int
	sampler        *sampler.Sampler
}

// Option configures a Stage at construction.
type Option func(*Stage)

// WithLoadConstraint sets the minimum input-queue length required before
// the dispatcher's worker loop will run this stage, so long as its
// immediate upstream is still ReadyToExecute (spec §3, "Load-constraint
// gate").
func WithLoadConstraint(k int) Option {
	return func(s *Stage) { s.loadConstraint = k }
}

// WithSampler attaches a Sampler; Execute will record lifecycle timestamps
// into it.
func WithSampler(smp *sampler.Sampler) Option {
	return func(s *Stage) { s.sampler = smp }
}

// NewProducer builds a stage with no input: it only draws free tokens from
// output's backchannel and writes into them via task.
func NewProducer(name string, task TaskFunc, output *Edge, opts ...Option) *Stage {
	s := newStage(name, task, opts...)
	s.outputDown = output.Down()
	s.outputUp = output.Up()
	s.finishWiring()
	return s
}

// NewConsumer builds a stage with no output: it only drains input's
// downstream ring and returns spent tokens via input's backchannel.
func NewConsumer(name string, task TaskFunc, input *Edge, upstream *Stage, opts ...Option) *Stage {
	s := newStage(name, task, opts...)
	s.upstream = upstream
	s.inputDown = input.Down()
	s.inputUp = input.Up()
	s.finishWiring()
	return s
}

// NewTransform builds a stage with both an input and an output edge.
func NewTransform(name string, task TaskFunc, input, output *Edge, upstream *Stage, opts ...Option) *Stage {
	s := newStage(name, task, opts...)
	s.upstream = upstream
	s.inputDown = input.Down()
	s.inputUp = input.Up()
	s.outputDown = output.Down()
	s.outputUp = output.Up()
	s.finishWiring()
	return s
}

func newStage(name string, task TaskFunc, opts ...Option) *Stage {
	s := &Stage{name: name, task: task}
	s.state.Store(int32(Initializing))
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// finishWiring validates construction-time invariants and transitions the
// stage out of the transient Initializing flag into ReadyToExecute.
func (s *Stage) finishWiring() {
	if s.loadConstraint > 0 && s.upstream == nil {
		panic(fmt.Errorf("%w: stage %q has load constraint %d but no upstream", ErrInvalidConfiguration, s.name, s.loadConstraint))
	}
	s.state.Store(int32(ReadyToExecute))
}

// Name returns the stage's identifier, used for logging and trace export.
func (s *Stage) Name() string { return s.name }

// State returns the current lifecycle state.
func (s *Stage) State() State { return State(s.state.Load()) }

func (s *Stage) setState(v State) { s.state.Store(int32(v)) }

// Upstream returns the stage this stage's input edge belongs to, or nil for
// a producer.
func (s *Stage) Upstream() *Stage { return s.upstream }

// LoadConstraint returns the configured minimum input-queue length.
func (s *Stage) LoadConstraint() int { return s.loadConstraint }

// InputLen returns a relaxed snapshot of this stage's input-downstream
// queue length, or 0 for a producer.
func (s *Stage) InputLen() int {
	if s.inputDown == nil {
		return 0
	}
	return s.inputDown.Ring().Len()
}

// IsProducer reports whether this stage has no input edge.
func (s *Stage) IsProducer() bool { return s.inputDown == nil }

// IsConsumer reports whether this stage has no output edge.
func (s *Stage) IsConsumer() bool { return s.outputUp == nil }

// Sampler returns the stage's attached Sampler, or nil if sampling was not
// configured via WithSampler.
func (s *Stage) Sampler() *sampler.Sampler { return s.sampler }

func (s *Stage) sample(event sampler.EventKind) {
	if s.sampler != nil {
		s.sampler.Sample(event)
	}
}

// Execute performs exactly one iteration: acquire an input token (if any)
// and a free output token (if any), run the task body unless either side
// is already stopping, then forward both items to their respective
// backchannel/downstream rings. Calling Execute on a Stopped stage is a
// programming error.
func (s *Stage) Execute() {
	if s.State() == Stopped {
		panic(fmt.Errorf("%w: Execute called on stopped stage %q", ErrInvalidState, s.name))
	}

	s.sample(sampler.EventExecuteBegin)

	var inItem, outItem token.QueueItem
	haveIn, haveOut := false, false
	stopping := false

	if s.inputDown != nil {
		item, err := s.inputDown.Pop(true)
		if err != nil {
			stopping = true
		} else {
			inItem = item
			haveIn = true
			if item.Command == token.StopExecution {
				stopping = true
			}
		}
		s.sample(sampler.EventInputTokenAvailable)
	}

	if s.outputUp != nil {
		item, err := s.outputUp.Pop(true)
		if err != nil {
			stopping = true
		} else {
			outItem = item
			haveOut = true
			if item.Command == token.StopExecution {
				stopping = true
			}
		}
		s.sample(sampler.EventOutputTokenAvailable)
	}

	if stopping {
		s.setState(Stopped)
		if haveIn {
			inItem.Command = token.StopExecution
		}
		if haveOut {
			outItem.Command = token.StopExecution
		}
	} else if s.task != nil {
		s.sample(sampler.EventTaskBegin)
		var inTok, outTok *token.Token
		if haveIn {
			inTok = &inItem.Token
		}
		if haveOut {
			outTok = &outItem.Token
		}
		cmd := s.task(inTok, outTok)
		s.sample(sampler.EventTaskEnd)
		if cmd == token.StopExecution {
			s.setState(Stopped)
		}
		if haveIn {
			inItem.Command = cmd
		}
		if haveOut {
			outItem.Command = cmd
		}
	}

	if haveIn {
		// Backchannel pushes on a correctly-sized pipeline never fail: the
		// item just popped from inputDown vacated a slot that inputUp is
		// entitled to refill. A push error here only happens at teardown,
		// when the upstream has already canceled its rings.
		_ = s.inputUp.Push(inItem)
	}
	if haveOut {
		_ = s.outputDown.Push(outItem)
	}

	s.sample(sampler.EventExecuteEnd)
}

// Flush drains this stage's own rings (the output edge it produces into),
// invoking f on every remaining token. Must only be called after the stage
// has stopped; calling it earlier is a programming error.
func (s *Stage) Flush(f func(token.Token)) error {
	if s.State() != Stopped {
		return fmt.Errorf("%w: Flush called on stage %q in state %v", ErrInvalidState, s.name, s.State())
	}
	if s.outputDown != nil {
		for {
			item, ok := s.outputDown.Ring().TryPop()
			if !ok {
				break
			}
			f(item.Token)
		}
	}
	if s.outputUp != nil {
		for {
			item, ok := s.outputUp.Ring().TryPop()
			if !ok {
				break
			}
			f(item.Token)
		}
	}
	return nil
}

// CancelRings cancels this stage's own (owned) rings, unblocking any
// downstream consumer blocked on them. Used at dispatcher-teardown time.
func (s *Stage) CancelRings() {
	if s.outputDown != nil {
		s.outputDown.Cancel()
	}
	if s.outputUp != nil {
		s.outputUp.Cancel()
	}
}
