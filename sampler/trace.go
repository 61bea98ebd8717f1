package sampler

import "time"

// DeltaPair names a begin/end EventKind pair to derive Stats for during
// export, e.g. {EventTaskBegin, EventTaskEnd}.
type DeltaPair struct {
	Begin EventKind
	End   EventKind
}

// DefaultDeltaPairs are the begin->end pairs listed in spec §2.
var DefaultDeltaPairs = []DeltaPair{
	{EventExecuteBegin, EventExecuteEnd},
	{EventTaskBegin, EventTaskEnd},
	{EventGPUTaskBegin, EventGPUTaskEnd},
}

// StageTrace is one stage's exported sample data: per-event timestamp
// vectors, any display-name overrides, and derived delta-statistics.
type StageTrace struct {
	Name          string             `json:"name"`
	Events        map[string][]int64 `json:"events"`
	Overflow      map[string]int     `json:"overflow,omitempty"`
	NameOverrides map[string]string  `json:"name_overrides,omitempty"`
	Deltas        []Stats            `json:"deltas"`
}

// Export produces a StageTrace covering every event kind and the given
// delta pairs. Pairs whose begin/end counts mismatch are skipped (the
// mismatch itself is a Stage/Dispatcher bug, not something export should
// hide, so callers that care should call Delta directly and check the
// error).
func (s *Sampler) Export(pairs []DeltaPair) StageTrace {
	tr := StageTrace{
		Name:          s.name,
		Events:        make(map[string][]int64, eventKindCount),
		NameOverrides: make(map[string]string),
	}
	for k := EventKind(0); k < eventKindCount; k++ {
		tr.Events[k.String()] = s.Timestamps(k)
		if ov := s.Overflow(k); ov > 0 {
			if tr.Overflow == nil {
				tr.Overflow = make(map[string]int)
			}
			tr.Overflow[k.String()] = ov
		}
		if s.nameOverrides[k] != "" {
			tr.NameOverrides[k.String()] = s.nameOverrides[k]
		}
	}
	for _, p := range pairs {
		name := p.Begin.String() + "->" + p.End.String()
		if override, ok := tr.NameOverrides[p.Begin.String()]; ok {
			name = override
		}
		st, err := Delta(name, tr.Events[p.Begin.String()], tr.Events[p.End.String()])
		if err == nil {
			tr.Deltas = append(tr.Deltas, st)
		}
	}
	return tr
}

// SessionStats are the session-level aggregates spec §6 requires in the
// trace output.
type SessionStats struct {
	TotalFrames       int     `json:"total_frames"`
	AverageThroughput float64 `json:"avg_mb_per_sec"`
	MedianLatencyNs   float64 `json:"median_latency_ns"`
	AverageMsPerFrame float64 `json:"avg_ms_per_frame"`
}

// SessionTrace is the top-level serialized record: session name, wall-clock
// start, GPU vendor/renderer/version, one StageTrace per stage, and the
// session-level statistics. Serialization itself (to JSON, to a file, to
// anything else) is external to the core per spec §6 — SessionTrace is a
// plain value the caller marshals however it likes.
type SessionTrace struct {
	SessionName string       `json:"session_name"`
	StartedAt   time.Time    `json:"started_at"`
	GPUVendor   string       `json:"gpu_vendor"`
	GPURenderer string       `json:"gpu_renderer"`
	GPUVersion  string       `json:"gpu_version"`
	Stages      []StageTrace `json:"stages"`
	Session     SessionStats `json:"session"`
}
