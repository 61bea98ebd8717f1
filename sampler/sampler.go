// Package sampler timestamps stage lifecycle events so the pipeline can be
// profiled without distorting its own timing: recording a sample is a plain
// array write at a pre-allocated index, no allocation or synchronization
// beyond what the caller already does.
package sampler

import "time"

// EventKind identifies one of the lifecycle points a Stage samples during
// Execute.
type EventKind int

const (
	EventExecuteBegin EventKind = iota
	EventInputTokenAvailable
	EventOutputTokenAvailable
	EventTaskBegin
	EventTaskEnd
	EventExecuteEnd
	EventGPUTaskBegin
	EventGPUTaskEnd

	eventKindCount
)

func (k EventKind) String() string {
	switch k {
	case EventExecuteBegin:
		return "EXECUTE_BEGIN"
	case EventInputTokenAvailable:
		return "INPUT_TOKEN_AVAILABLE"
	case EventOutputTokenAvailable:
		return "OUTPUT_TOKEN_AVAILABLE"
	case EventTaskBegin:
		return "TASK_BEGIN"
	case EventTaskEnd:
		return "TASK_END"
	case EventExecuteEnd:
		return "EXECUTE_END"
	case EventGPUTaskBegin:
		return "GPU_TASK_BEGIN"
	case EventGPUTaskEnd:
		return "GPU_TASK_END"
	default:
		return "UNKNOWN_EVENT"
	}
}

// DefaultMaxSamples is the default per-event fixed-capacity ring size.
const DefaultMaxSamples = 10000

// Now is the indirection point sampler.Sample uses for "the current time",
// the equivalent of the original's ChronoUtils.h wrapper over
// std::chrono::steady_clock. Tests may substitute a deterministic clock.
var Now = time.Now

// Sampler is a per-stage fixed-capacity ring of timestamp arrays, one per
// EventKind. It has a single writer (the stage's own worker goroutine);
// readers (trace export) only run after that goroutine has stopped, so no
// synchronization is needed here — the dispatcher's worker join supplies
// the happens-before edge.
type Sampler struct {
	name          string
	maxSamples    int
	timestamps    [eventKindCount][]int64
	next          [eventKindCount]int
	overflow      [eventKindCount]int
	nameOverrides [eventKindCount]string
}

// New creates a Sampler for the named stage. maxSamples <= 0 uses
// DefaultMaxSamples.
func New(name string, maxSamples int) *Sampler {
	if maxSamples <= 0 {
		maxSamples = DefaultMaxSamples
	}
	s := &Sampler{name: name, maxSamples: maxSamples}
	for k := range s.timestamps {
		s.timestamps[k] = make([]int64, maxSamples)
	}
	return s
}

// Name returns the sampler's stage name.
func (s *Sampler) Name() string { return s.name }

// SetNameOverride records a display-name override for an event kind,
// carried through to trace export.
func (s *Sampler) SetNameOverride(event EventKind, name string) {
	s.nameOverrides[event] = name
}

// Sample records Now() as the next sample for event. On overflow the
// overflow counter for event is incremented and the sample is discarded.
func (s *Sampler) Sample(event EventKind) {
	s.SampleAt(event, Now())
}

// SampleAt records t as the next sample for event.
func (s *Sampler) SampleAt(event EventKind, t time.Time) {
	if s.next[event] >= s.maxSamples {
		s.overflow[event]++
		return
	}
	s.timestamps[event][s.next[event]] = t.UnixNano()
	s.next[event]++
}

// Count returns the number of samples recorded for event (excluding
// overflowed ones).
func (s *Sampler) Count(event EventKind) int { return s.next[event] }

// Overflow returns the number of samples dropped for event because its
// fixed-capacity array was full.
func (s *Sampler) Overflow(event EventKind) int { return s.overflow[event] }

// Timestamps returns a copy of the recorded nanosecond timestamps for event.
func (s *Sampler) Timestamps(event EventKind) []int64 {
	n := s.next[event]
	out := make([]int64, n)
	copy(out, s.timestamps[event][:n])
	return out
}
