// Package gpu defines the external collaborator interfaces the dispatcher
// consumes: the video source, the renderer, and the GPU context. These are
// the "opaque task bodies from the runtime's perspective" spec §1 excludes
// from the core — concrete implementations live in stagebody and present.
package gpu

import "github.com/Carmen-Shannon/streamforge/token"

// Frame is one uncompressed video frame as produced by a Source and
// consumed by an OutputCallback.
type Frame struct {
	Data   []byte
	Format token.ImageFormat
	Time   token.Rational
}

// SourceState is a Source's lifecycle state.
type SourceState int

const (
	SourceInitialized SourceState = iota
	SourceReadyToRead
	SourceEndOfStream
)

func (s SourceState) String() string {
	switch s {
	case SourceInitialized:
		return "Initialized"
	case SourceReadyToRead:
		return "ReadyToRead"
	case SourceEndOfStream:
		return "EndOfStream"
	default:
		return "SourceState(?)"
	}
}

// Source supplies frames to the head of the pipeline (the SourceFeed
// stage). Concrete implementations (e.g. a raw-frame file reader) live
// outside the core, per spec §1.
type Source interface {
	// PopFrame fills out with the next frame. Returns false once the
	// source can supply no more (State() then reports SourceEndOfStream).
	PopFrame(out *Frame) bool
	// State reports the source's current lifecycle state.
	State() SourceState
	// InvalidateFrame returns a drained frame to the source's own free
	// list for reuse.
	InvalidateFrame(f Frame)
}

// ImageRef is an opaque handle to a device-resident image/texture, passed
// to Renderer.Render as one of its inputs.
type ImageRef any

// FboRef is an opaque handle to a render target.
type FboRef any

// Renderer performs the user-supplied GPU render from decoded inputs into
// an output image.
type Renderer interface {
	// Render draws inputs into target at composition time t.
	Render(t token.Rational, inputs []ImageRef, target FboRef)
	// InputSlotCount returns how many ImageRef inputs Render expects.
	InputSlotCount() int
}

// OutputCallback receives each completed output frame.
type OutputCallback func(f *Frame)

// AdapterInfo describes the GPU adapter backing a Context: vendor,
// renderer (device) name, and driver/API version strings, used to
// populate the trace header's GPU fields (spec §6).
type AdapterInfo struct {
	Vendor   string
	Renderer string
	Version  string
}

// InfoProvider is implemented by Context backends that can describe their
// underlying adapter. Not all backends need to (e.g. a test stub), so the
// dispatcher type-asserts for it rather than requiring it on Context.
type InfoProvider interface {
	AdapterInfo() (AdapterInfo, error)
}
