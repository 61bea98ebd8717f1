package sampler

import (
	"log"
	"time"
)

// GPUQuerySource is the collaborator a TimeSampler submits/resolves GPU
// timestamp queries through. Concrete, GPU-API-specific implementations
// live outside the core; none is provided in this module.
type GPUQuerySource interface {
	// Submit inserts a timestamp query into the current GPU command stream.
	Submit() (handle any, err error)
	// Resolve attempts to read back the device tick count for handle.
	// ok is false if the query has not completed yet.
	Resolve(handle any) (deviceTicks uint64, ok bool, err error)
	// Period returns nanoseconds per device tick.
	Period() float64
}

type pendingQuery struct {
	handle any
	kind   EventKind
}

// TimeSampler records GPU_TASK_BEGIN/GPU_TASK_END by submitting timestamp
// queries to the GPU, holding a small ring of in-flight queries, resolving
// completed ones on each new sample, and converting device timestamps into
// host-clock timestamps using a one-shot sync point captured at startup.
type TimeSampler struct {
	source GPUQuerySource
	target *Sampler
	begin  EventKind
	end    EventKind

	maxInFlight int
	inFlight    []pendingQuery

	hostOffsetNs int64
	synced       bool
}

// NewTimeSampler creates a TimeSampler that records begin/end samples into
// target, sourcing device timestamps from source.
func NewTimeSampler(source GPUQuerySource, target *Sampler, begin, end EventKind, maxInFlight int) *TimeSampler {
	if maxInFlight <= 0 {
		maxInFlight = 64
	}
	return &TimeSampler{source: source, target: target, begin: begin, end: end, maxInFlight: maxInFlight}
}

// SyncClocks captures the one-shot device-time/host-time offset. Must be
// called once, while attached to the GPU context, before the first
// BeginGPUTask/EndGPUTask.
func (t *TimeSampler) SyncClocks(deviceTicksNow uint64, hostNow time.Time) {
	t.hostOffsetNs = hostNow.UnixNano() - int64(float64(deviceTicksNow)*t.source.Period())
	t.synced = true
}

// BeginGPUTask submits a timestamp query tagged as the begin event.
func (t *TimeSampler) BeginGPUTask() error {
	return t.submit(t.begin)
}

// EndGPUTask submits a timestamp query tagged as the end event.
func (t *TimeSampler) EndGPUTask() error {
	return t.submit(t.end)
}

func (t *TimeSampler) submit(kind EventKind) error {
	h, err := t.source.Submit()
	if err != nil {
		return err
	}
	if len(t.inFlight) >= t.maxInFlight {
		log.Printf("[sampler] %s: in-flight GPU query ring full, forcing a resolve pass", kind)
	}
	t.inFlight = append(t.inFlight, pendingQuery{handle: h, kind: kind})
	t.resolvePending()
	return nil
}

func (t *TimeSampler) resolvePending() {
	if !t.synced || len(t.inFlight) == 0 {
		return
	}
	remaining := t.inFlight[:0]
	for _, q := range t.inFlight {
		ticks, ok, err := t.source.Resolve(q.handle)
		if err != nil || !ok {
			remaining = append(remaining, q)
			continue
		}
		hostNs := int64(float64(ticks)*t.source.Period()) + t.hostOffsetNs
		t.target.SampleAt(q.kind, time.Unix(0, hostNs))
	}
	t.inFlight = remaining
}

// Drain blocks resolving outstanding queries until none remain or maxWait
// elapses, logging if queries are still outstanding when it gives up. Must
// be called during dispatcher shutdown so no GPU query objects leak.
func (t *TimeSampler) Drain(maxWait time.Duration) {
	deadline := time.Now().Add(maxWait)
	for len(t.inFlight) > 0 && time.Now().Before(deadline) {
		t.resolvePending()
		if len(t.inFlight) > 0 {
			time.Sleep(time.Millisecond)
		}
	}
	if n := len(t.inFlight); n > 0 {
		log.Printf("[sampler] %d GPU timestamp queries still outstanding after drain timeout", n)
	}
}
