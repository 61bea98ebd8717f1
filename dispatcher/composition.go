package dispatcher

import (
	"sync/atomic"

	"github.com/Carmen-Shannon/streamforge/gpu"
)

// CompositionState is a Composition's lifecycle state.
type CompositionState int32

const (
	CompositionCreated CompositionState = iota
	CompositionStarted
	CompositionCompleted
	CompositionStopped
)

func (s CompositionState) String() string {
	switch s {
	case CompositionCreated:
		return "Created"
	case CompositionStarted:
		return "Started"
	case CompositionCompleted:
		return "Completed"
	case CompositionStopped:
		return "Stopped"
	default:
		return "CompositionState(?)"
	}
}

// Composition is a named logical stream: a source, a renderer, and an
// optional per-frame output callback, per spec §3. The dispatcher holds
// compositions by id; at most one is ever active (bound to the
// dispatcher's atomic slot) at a time.
type Composition struct {
	id       string
	source   gpu.Source
	renderer gpu.Renderer
	output   gpu.OutputCallback

	state      atomic.Int32
	frameCount atomic.Int64

	onComplete   func()
	completeOnce int32
}

// ID satisfies token.CompositionHandle, routing a token back to the stream
// it belongs to for logging/diagnostics.
func (c *Composition) ID() string { return c.id }

// Source returns the composition's frame source.
func (c *Composition) Source() gpu.Source { return c.source }

// Renderer returns the composition's render collaborator.
func (c *Composition) Renderer() gpu.Renderer { return c.renderer }

// OutputCallback returns the composition's per-frame output sink, or nil if
// none was registered.
func (c *Composition) OutputCallback() gpu.OutputCallback { return c.output }

// State returns the composition's current lifecycle state.
func (c *Composition) State() CompositionState { return CompositionState(c.state.Load()) }

func (c *Composition) setState(s CompositionState) { c.state.Store(int32(s)) }

// FrameCount returns the number of frames OutputSink has forwarded for this
// composition so far, the original's StreamComposition frame counter
// (spec §6's "total frames processed" session statistic).
func (c *Composition) FrameCount() int64 { return c.frameCount.Load() }

func (c *Composition) recordFrame() { c.frameCount.Add(1) }
