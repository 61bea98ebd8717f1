package dispatcher

import "github.com/Carmen-Shannon/streamforge/stage"

// Options is the flat, explicit configuration record spec §6 calls for: the
// enumerated queue capacities, load-constraint counts, and toggles, read
// once at construction and stored on the Dispatcher.
//
// Defaults are sized for a modest identity-topology smoke test; a real
// deployment overrides them via the With* options below, mirroring
// engine.EngineBuilderOption's builder style.
type Options struct {
	// Queue capacities. See Dispatcher.buildTopology for the exact edge
	// each one sizes.
	UploadPBOCount            int
	UploadCopyToUnmapCount    int
	UploadUnmapToUnpackCount  int
	DownloadPBOCount          int
	DownloadPackToMapCount    int
	DownloadMapToCopyCount    int
	SourceTextureCount        int
	DestinationTextureCount   int
	FrameInputPipelineSize    int
	FrameOutputCacheCount     int

	// Load-constraint counts, named after the edge whose downstream stage
	// they gate.
	DownloadPackToMapConstraint           int
	UploadUnmapToUnpackConstraint         int
	DownloadFormatConverterToPackConstraint int
	UploadUnpackToFormatConverterConstraint int

	// EnableSampling attaches a Sampler to every stage and aggregates a
	// SessionTrace on shutdown.
	EnableSampling bool

	// EnableGPUTimerQueries is stored on the Dispatcher but not read by it:
	// New attaches no sampler.TimeSampler, so GPU_TASK_BEGIN/END are not
	// sampled whatever its value.
	EnableGPUTimerQueries bool

	// WaitPolicy selects the blocking strategy for every edge's rings.
	WaitPolicy stage.WaitPolicy
}

// DefaultOptions returns the configuration a Dispatcher is built with absent
// any With* option: small spin-waited edges suitable for unit tests.
func DefaultOptions() Options {
	return Options{
		UploadPBOCount:           8,
		UploadCopyToUnmapCount:   4,
		UploadUnmapToUnpackCount: 4,
		DownloadPBOCount:         8,
		DownloadPackToMapCount:   4,
		DownloadMapToCopyCount:   4,
		SourceTextureCount:       4,
		DestinationTextureCount:  4,
		FrameInputPipelineSize:   4,
		FrameOutputCacheCount:    4,
		WaitPolicy:               stage.WaitSpin,
	}
}

// Option is a functional option configuring Options during New.
type Option func(*Options)

// WithUploadPBOCount sets the total upload staging-buffer pool size; the
// CopyToUnmap and UnmapToUnpack edge capacities must sum to it.
func WithUploadPBOCount(n int) Option {
	return func(o *Options) { o.UploadPBOCount = n }
}

// WithUploadEdgeCounts sets the two upload-path edge capacities that must
// sum to UploadPBOCount.
func WithUploadEdgeCounts(copyToUnmap, unmapToUnpack int) Option {
	return func(o *Options) {
		o.UploadCopyToUnmapCount = copyToUnmap
		o.UploadUnmapToUnpackCount = unmapToUnpack
	}
}

// WithDownloadPBOCount sets the total download staging-buffer pool size.
func WithDownloadPBOCount(n int) Option {
	return func(o *Options) { o.DownloadPBOCount = n }
}

// WithDownloadEdgeCounts sets the two download-path edge capacities that
// must sum to DownloadPBOCount.
func WithDownloadEdgeCounts(packToMap, mapToCopy int) Option {
	return func(o *Options) {
		o.DownloadPackToMapCount = packToMap
		o.DownloadMapToCopyCount = mapToCopy
	}
}

// WithTextureCounts sets the decode-side and encode-side device-image pool
// sizes.
func WithTextureCounts(source, destination int) Option {
	return func(o *Options) {
		o.SourceTextureCount = source
		o.DestinationTextureCount = destination
	}
}

// WithFramePipelineSizes sets the host-side frame queue depths at the head
// and tail of the pipeline.
func WithFramePipelineSizes(input, output int) Option {
	return func(o *Options) {
		o.FrameInputPipelineSize = input
		o.FrameOutputCacheCount = output
	}
}

// WithLoadConstraints sets the four named gate thresholds from spec §6.
func WithLoadConstraints(downloadPackToMap, uploadUnmapToUnpack, downloadFormatConverterToPack, uploadUnpackToFormatConverter int) Option {
	return func(o *Options) {
		o.DownloadPackToMapConstraint = downloadPackToMap
		o.UploadUnmapToUnpackConstraint = uploadUnmapToUnpack
		o.DownloadFormatConverterToPackConstraint = downloadFormatConverterToPack
		o.UploadUnpackToFormatConverterConstraint = uploadUnpackToFormatConverter
	}
}

// WithSampling enables or disables per-stage sampling and sets
// EnableGPUTimerQueries to gpuTimers (which the dispatcher does not act on;
// see that field).
func WithSampling(enabled, gpuTimers bool) Option {
	return func(o *Options) {
		o.EnableSampling = enabled
		o.EnableGPUTimerQueries = gpuTimers
	}
}

// WithWaitPolicy overrides the default spin-wait edges with park-mode
// (mutex+condvar) waiting, trading CPU spin for reduced contention under
// heavier queue depths.
func WithWaitPolicy(p stage.WaitPolicy) Option {
	return func(o *Options) { o.WaitPolicy = p }
}
