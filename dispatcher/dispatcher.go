// Package dispatcher composes Stage instances into the fixed linear
// pipeline spec §2 describes, binds them to worker goroutines, enforces the
// per-edge load-constraint gates, and drives composition start/stop/
// completion across the graph. It is the largest of the core components:
// everything else in this module exists to be wired together here.
package dispatcher

import (
	"fmt"
	"log"
	"runtime"
	"sync"
	"sync/atomic"
	"time"

	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/sampler"
	"github.com/Carmen-Shannon/streamforge/stage"
	"github.com/Carmen-Shannon/streamforge/token"
)

// Stage names, used for logging, trace export, and worker-list diagnostics.
const (
	NameSourceFeed           = "SourceFeed"
	NameCopyHostToStaging    = "CopyHostToStaging"
	NameUnmapStaging         = "UnmapStaging"
	NameUnpackStagingToImage = "UnpackStagingToImage"
	NameConvertFormatIn      = "ConvertFormatIn"
	NameRender               = "Render"
	NameConvertFormatOut     = "ConvertFormatOut"
	NamePackImageToStaging   = "PackImageToStaging"
	NameMapStaging           = "MapStaging"
	NameCopyStagingToHost    = "CopyStagingToHost"
	NameOutputSink           = "OutputSink"
)

// StageBodies supplies the concrete, GPU-API-specific task bodies for the
// stages spec §1 calls "opaque task bodies from the runtime's
// perspective" — everything except SourceFeed, Render, and OutputSink,
// which the dispatcher itself builds around the active Composition.
// A nil field (or an entirely disabled sub-pipeline) falls back to
// stage.Bypass.
type StageBodies struct {
	CopyHostToStaging    stage.TaskFunc
	UnmapStaging         stage.TaskFunc
	UnpackStagingToImage stage.TaskFunc
	ConvertFormatIn      stage.TaskFunc
	ConvertFormatOut     stage.TaskFunc
	PackImageToStaging   stage.TaskFunc
	MapStaging           stage.TaskFunc
	CopyStagingToHost    stage.TaskFunc
}

func bodyOrBypass(f stage.TaskFunc, enabled bool) stage.TaskFunc {
	if !enabled || f == nil {
		return stage.Bypass
	}
	return f
}

// Dispatcher owns the stage graph, the worker goroutines, and the
// registered compositions. See spec §4.4.
type Dispatcher struct {
	name string

	gpuContext    gpu.Context
	uploadContext gpu.Context // non-nil only with FlagSet.MultipleGpuContexts
	downloadContext gpu.Context

	originFormat token.ImageFormat
	renderFormat token.ImageFormat

	flags FlagSet
	opts  Options

	stages  []*stage.Stage // upstream -> downstream
	workers map[string][]*stage.Stage

	compMu       sync.Mutex
	compositions map[string]*Composition
	active       atomic.Pointer[Composition]

	stopping atomic.Bool
	wg       sync.WaitGroup

	startedAt time.Time
}

// New builds the pipeline topology, validates the per-edge invariants spec
// §4.4 names, and assigns stages to worker lists. It does not start any
// goroutines; call Start to begin running compositions.
//
// gpuCtx must not already be attached to the calling thread: the dispatcher
// attaches it to the render worker itself once Start is called.
func New(name string, gpuCtx gpu.Context, originFormat, renderFormat token.ImageFormat, enableInput, enableRender, enableOutput bool, flags FlagSet, bodies StageBodies, opts ...Option) (*Dispatcher, error) {
	if gpuCtx != nil && gpuCtx.IsAttachedToCurrentThread() {
		return nil, fmt.Errorf("%w: main gpu context already attached at construction", ErrInvalidConfiguration)
	}

	o := DefaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	if err := validateOptions(o); err != nil {
		return nil, err
	}

	d := &Dispatcher{
		name:         name,
		gpuContext:   gpuCtx,
		originFormat: originFormat,
		renderFormat: renderFormat,
		flags:        flags,
		opts:         o,
		compositions: make(map[string]*Composition),
	}

	if flags.MultipleGpuContexts && gpuCtx != nil {
		up, err := gpuCtx.CreateShared(name + "-upload")
		if err != nil {
			return nil, fmt.Errorf("dispatcher: create shared upload context: %w", err)
		}
		down, err := gpuCtx.CreateShared(name + "-download")
		if err != nil {
			return nil, fmt.Errorf("dispatcher: create shared download context: %w", err)
		}
		d.uploadContext = up
		d.downloadContext = down
	}

	if err := d.buildTopology(enableInput, enableRender, enableOutput, bodies); err != nil {
		return nil, err
	}
	d.buildWorkerLists(enableInput, enableOutput)

	return d, nil
}

func validateOptions(o Options) error {
	if o.UploadCopyToUnmapCount+o.UploadUnmapToUnpackCount != o.UploadPBOCount {
		return fmt.Errorf("%w: upload edge capacities %d+%d do not sum to UploadPBOCount %d",
			ErrInvalidConfiguration, o.UploadCopyToUnmapCount, o.UploadUnmapToUnpackCount, o.UploadPBOCount)
	}
	if o.DownloadPackToMapCount+o.DownloadMapToCopyCount != o.DownloadPBOCount {
		return fmt.Errorf("%w: download edge capacities %d+%d do not sum to DownloadPBOCount %d",
			ErrInvalidConfiguration, o.DownloadPackToMapCount, o.DownloadMapToCopyCount, o.DownloadPBOCount)
	}
	if o.UploadUnmapToUnpackConstraint > o.UploadUnmapToUnpackCount {
		return fmt.Errorf("%w: UploadUnmapToUnpack constraint %d exceeds edge capacity %d",
			ErrInvalidConfiguration, o.UploadUnmapToUnpackConstraint, o.UploadUnmapToUnpackCount)
	}
	if o.UploadUnpackToFormatConverterConstraint > o.SourceTextureCount {
		return fmt.Errorf("%w: UploadUnpackToFormatConverter constraint %d exceeds edge capacity %d",
			ErrInvalidConfiguration, o.UploadUnpackToFormatConverterConstraint, o.SourceTextureCount)
	}
	if o.DownloadFormatConverterToPackConstraint > o.DestinationTextureCount {
		return fmt.Errorf("%w: DownloadFormatConverterToPack constraint %d exceeds edge capacity %d",
			ErrInvalidConfiguration, o.DownloadFormatConverterToPackConstraint, o.DestinationTextureCount)
	}
	if o.DownloadPackToMapConstraint > o.DownloadPackToMapCount {
		return fmt.Errorf("%w: DownloadPackToMap constraint %d exceeds edge capacity %d",
			ErrInvalidConfiguration, o.DownloadPackToMapConstraint, o.DownloadPackToMapCount)
	}
	return nil
}

// buildTopology instantiates the 11 stages in strict upstream-to-downstream
// order, substituting stage.Bypass for any disabled sub-pipeline.
func (d *Dispatcher) buildTopology(enableInput, enableRender, enableOutput bool, b StageBodies) error {
	o := d.opts
	policy := o.WaitPolicy

	var smp func(name string) stage.Option
	if o.EnableSampling {
		smp = func(name string) stage.Option { return stage.WithSampler(sampler.New(name, 0)) }
	} else {
		smp = func(string) stage.Option { return func(*stage.Stage) {} }
	}

	edgeSourceToHost := stage.NewEdge(o.FrameInputPipelineSize, policy, nil)
	edgeCopyToUnmap := stage.NewEdge(o.UploadCopyToUnmapCount, policy, nil)
	edgeUnmapToUnpack := stage.NewEdge(o.UploadUnmapToUnpackCount, policy, nil)
	edgeUnpackToConvertIn := stage.NewEdge(o.SourceTextureCount, policy, nil)
	edgeConvertInToRender := stage.NewEdge(o.SourceTextureCount, policy, nil)
	edgeRenderToConvertOut := stage.NewEdge(o.DestinationTextureCount, policy, nil)
	edgeConvertOutToPack := stage.NewEdge(o.DestinationTextureCount, policy, nil)
	edgePackToMap := stage.NewEdge(o.DownloadPackToMapCount, policy, nil)
	edgeMapToCopy := stage.NewEdge(o.DownloadMapToCopyCount, policy, nil)
	edgeCopyToSink := stage.NewEdge(o.FrameOutputCacheCount, policy, nil)

	sourceFeed := stage.NewProducer(NameSourceFeed, d.sourceFeedTask(), edgeSourceToHost, smp(NameSourceFeed))

	copyHostToStaging := stage.NewTransform(NameCopyHostToStaging,
		bodyOrBypass(b.CopyHostToStaging, enableInput),
		edgeSourceToHost, edgeCopyToUnmap, sourceFeed, smp(NameCopyHostToStaging))

	unmapStaging := stage.NewTransform(NameUnmapStaging,
		bodyOrBypass(b.UnmapStaging, enableInput),
		edgeCopyToUnmap, edgeUnmapToUnpack, copyHostToStaging, smp(NameUnmapStaging))

	unpackStagingToImage := stage.NewTransform(NameUnpackStagingToImage,
		bodyOrBypass(b.UnpackStagingToImage, enableInput),
		edgeUnmapToUnpack, edgeUnpackToConvertIn, unmapStaging,
		smp(NameUnpackStagingToImage), stage.WithLoadConstraint(o.UploadUnmapToUnpackConstraint))

	convertFormatIn := stage.NewTransform(NameConvertFormatIn,
		bodyOrBypass(b.ConvertFormatIn, enableInput),
		edgeUnpackToConvertIn, edgeConvertInToRender, unpackStagingToImage,
		smp(NameConvertFormatIn), stage.WithLoadConstraint(o.UploadUnpackToFormatConverterConstraint))

	render := stage.NewTransform(NameRender,
		bodyOrBypass(d.renderTask(), enableRender),
		edgeConvertInToRender, edgeRenderToConvertOut, convertFormatIn, smp(NameRender))

	convertFormatOut := stage.NewTransform(NameConvertFormatOut,
		bodyOrBypass(b.ConvertFormatOut, enableOutput),
		edgeRenderToConvertOut, edgeConvertOutToPack, render, smp(NameConvertFormatOut))

	packImageToStaging := stage.NewTransform(NamePackImageToStaging,
		bodyOrBypass(b.PackImageToStaging, enableOutput),
		edgeConvertOutToPack, edgePackToMap, convertFormatOut,
		smp(NamePackImageToStaging), stage.WithLoadConstraint(o.DownloadFormatConverterToPackConstraint))

	mapStaging := stage.NewTransform(NameMapStaging,
		bodyOrBypass(b.MapStaging, enableOutput),
		edgePackToMap, edgeMapToCopy, packImageToStaging,
		smp(NameMapStaging), stage.WithLoadConstraint(o.DownloadPackToMapConstraint))

	copyStagingToHost := stage.NewTransform(NameCopyStagingToHost,
		bodyOrBypass(b.CopyStagingToHost, enableOutput),
		edgeMapToCopy, edgeCopyToSink, mapStaging, smp(NameCopyStagingToHost))

	outputSink := stage.NewConsumer(NameOutputSink, d.outputSinkTask(), edgeCopyToSink, copyStagingToHost, smp(NameOutputSink))

	d.stages = []*stage.Stage{
		sourceFeed, copyHostToStaging, unmapStaging, unpackStagingToImage,
		convertFormatIn, render, convertFormatOut, packImageToStaging,
		mapStaging, copyStagingToHost, outputSink,
	}

	return nil
}

// buildWorkerLists assigns each stage to one of the five logical lists and
// collapses them per the configured flags, per spec §4.4's "Worker
// assignment" paragraph. SourceFeed always heads host_in; OutputSink always
// tails host_out.
func (d *Dispatcher) buildWorkerLists(enableInput, enableOutput bool) {
	byName := make(map[string]*stage.Stage, len(d.stages))
	for _, s := range d.stages {
		byName[s.Name()] = s
	}

	hostIn := []*stage.Stage{byName[NameSourceFeed]}
	gpuUpload := []*stage.Stage{}
	gpuRender := []*stage.Stage{}
	gpuDownload := []*stage.Stage{}
	hostOut := []*stage.Stage{}

	if d.flags.AsyncInput && enableInput {
		hostIn = append(hostIn, byName[NameCopyHostToStaging])
	} else {
		gpuUpload = append(gpuUpload, byName[NameCopyHostToStaging])
	}
	gpuUpload = append(gpuUpload, byName[NameUnmapStaging], byName[NameUnpackStagingToImage])
	gpuRender = append(gpuRender, byName[NameConvertFormatIn], byName[NameRender], byName[NameConvertFormatOut])
	gpuDownload = append(gpuDownload, byName[NamePackImageToStaging], byName[NameMapStaging])

	if d.flags.AsyncOutput && enableOutput {
		hostOut = append(hostOut, byName[NameCopyStagingToHost])
	} else {
		gpuDownload = append(gpuDownload, byName[NameCopyStagingToHost])
	}
	hostOut = append(hostOut, byName[NameOutputSink])

	if !d.flags.MultipleGpuContexts {
		gpuRender = append(append(gpuUpload, gpuRender...), gpuDownload...)
		gpuUpload, gpuDownload = nil, nil
	}

	d.workers = map[string][]*stage.Stage{
		"host_in":     hostIn,
		"gpu_upload":  gpuUpload,
		"gpu_render":  gpuRender,
		"gpu_download": gpuDownload,
		"host_out":    hostOut,
	}
}

// sourceFeedTask builds the head-stage body: it waits (spinning) for the
// dispatcher's active composition slot to be populated, per spec §4.4's
// "head stages wait on this pointer before their first acquisition", then
// pulls one frame from the composition's Source. Once a composition has been
// seen, an empty slot (StopComposition) makes the feed return StopExecution
// instead of waiting again.
func (d *Dispatcher) sourceFeedTask() stage.TaskFunc {
	var frame gpu.Frame
	started := false
	return func(_, output *token.Token) token.Command {
		var comp *Composition
		for {
			comp = d.active.Load()
			if comp != nil || started || d.stopping.Load() {
				break
			}
			runtime.Gosched()
		}
		if comp == nil {
			return token.StopExecution
		}
		started = true
		if !comp.Source().PopFrame(&frame) {
			return token.StopExecution
		}
		output.Resource = frame.Data
		output.Format = frame.Format
		output.Time = frame.Time
		output.Composition = comp
		return token.NoChange
	}
}

// renderTask builds the Render stage body around the active composition's
// Renderer collaborator. Disabled-render bypass is handled by the caller
// via bodyOrBypass.
func (d *Dispatcher) renderTask() stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		comp, _ := input.Composition.(*Composition)
		if comp == nil || comp.Renderer() == nil {
			output.Resource = input.Resource
			output.Format = input.Format
			output.Time = input.Time
			output.Composition = input.Composition
			return token.NoChange
		}
		comp.Renderer().Render(input.Time, []gpu.ImageRef{input.Resource}, output.Resource)
		output.Format = d.renderFormat
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}

// outputSinkTask builds the terminal-stage body: it invokes the owning
// composition's output callback (if any) and records the frame against
// that composition's frame counter (spec §9 supplement 5).
func (d *Dispatcher) outputSinkTask() stage.TaskFunc {
	return func(input, _ *token.Token) token.Command {
		comp, _ := input.Composition.(*Composition)
		if comp != nil {
			comp.recordFrame()
			if cb := comp.OutputCallback(); cb != nil {
				cb(&gpu.Frame{Data: asBytes(input.Resource), Format: input.Format, Time: input.Time})
			}
		}
		return token.NoChange
	}
}

func asBytes(v any) []byte {
	if b, ok := v.([]byte); ok {
		return b
	}
	return nil
}

// CreateComposition registers a composition and returns its id. If name
// collides with an already-registered id, a numeric suffix is appended.
func (d *Dispatcher) CreateComposition(name string, source gpu.Source, renderer gpu.Renderer, output gpu.OutputCallback) string {
	d.compMu.Lock()
	defer d.compMu.Unlock()

	id := name
	for n := 1; ; n++ {
		if _, exists := d.compositions[id]; !exists {
			break
		}
		id = fmt.Sprintf("%s-%d", name, n)
	}

	c := &Composition{id: id, source: source, renderer: renderer, output: output}
	d.compositions[id] = c
	return id
}

// StartComposition binds id as the dispatcher's single active composition
// and arranges for onComplete to be invoked exactly once, from the worker
// that owns OutputSink, once the source reports end-of-stream and the
// terminal worker finishes its sweep.
func (d *Dispatcher) StartComposition(id string, onComplete func()) error {
	d.compMu.Lock()
	c, ok := d.compositions[id]
	d.compMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownComposition, id)
	}
	if !d.active.CompareAndSwap(nil, c) {
		return ErrCompositionActive
	}
	c.onComplete = onComplete
	c.setState(CompositionStarted)
	return nil
}

// StopComposition clears the active-composition slot if it currently holds
// id; head stages observe the nil pointer and emit StopExecution on their
// next acquisition.
func (d *Dispatcher) StopComposition(id string) error {
	d.compMu.Lock()
	c, ok := d.compositions[id]
	d.compMu.Unlock()
	if !ok {
		return fmt.Errorf("%w: %q", ErrUnknownComposition, id)
	}
	if d.active.CompareAndSwap(c, nil) {
		c.setState(CompositionStopped)
	}
	return nil
}

// Start attaches the GPU context(s) and launches one goroutine per
// non-empty worker list. It returns immediately; call Wait to block until
// every worker has stopped.
func (d *Dispatcher) Start() error {
	d.startedAt = sampler.Now()

	for name, list := range d.workers {
		if len(list) == 0 {
			continue
		}
		ctx := d.contextFor(name)
		d.wg.Add(1)
		go d.runWorker(name, list, ctx)
	}
	return nil
}

func (d *Dispatcher) contextFor(workerName string) gpu.Context {
	switch workerName {
	case "gpu_upload":
		if d.uploadContext != nil {
			return d.uploadContext
		}
		return d.gpuContext
	case "gpu_download":
		if d.downloadContext != nil {
			return d.downloadContext
		}
		return d.gpuContext
	case "gpu_render":
		return d.gpuContext
	default:
		return nil
	}
}

// runWorker is one OS-thread-affine worker executing the sweep-loop
// pseudocontract from spec §4.4: each stage runs at most once per sweep;
// a load-constraint gate that isn't satisfied restarts the sweep early so
// the upstream stage gets cycles to refill it.
func (d *Dispatcher) runWorker(name string, stages []*stage.Stage, ctx gpu.Context) {
	defer d.wg.Done()

	if ctx != nil {
		runtime.LockOSThread()
		defer runtime.UnlockOSThread()
		if err := ctx.Attach(); err != nil {
			log.Printf("[dispatcher] worker %s: attach gpu context: %v", name, err)
			return
		}
		defer func() {
			if err := ctx.Detach(); err != nil {
				log.Printf("[dispatcher] worker %s: detach gpu context: %v", name, err)
			}
		}()
	}

	for {
		if allStopped(stages) {
			break
		}
		restarted := false
		for _, s := range stages {
			if s.State() == stage.Stopped {
				continue
			}
			if k := s.LoadConstraint(); k > 0 {
				up := s.Upstream()
				if up != nil && up.State() == stage.ReadyToExecute && s.InputLen() < k {
					restarted = true
					break
				}
			}
			if s.State() == stage.ReadyToExecute {
				s.Execute()
			}
		}
		if !restarted {
			// full sweep completed without a gate restart; still loop to
			// pick up newly available work on the next pass.
			runtime.Gosched()
		}
	}

	d.maybeSignalCompletion(name, stages)
}

func allStopped(stages []*stage.Stage) bool {
	for _, s := range stages {
		if s.State() != stage.Stopped {
			return false
		}
	}
	return true
}

// maybeSignalCompletion invokes the active composition's completion
// handler exactly once, from the worker owning OutputSink (the terminal
// stage in data-flow order). A composition cleared by StopComposition keeps
// its Stopped state but still has its handler invoked.
func (d *Dispatcher) maybeSignalCompletion(workerName string, stages []*stage.Stage) {
	isTerminal := false
	for _, s := range stages {
		if s.Name() == NameOutputSink {
			isTerminal = true
			break
		}
	}
	if !isTerminal {
		return
	}
	c := d.active.Load()
	if c == nil {
		d.compMu.Lock()
		for _, cand := range d.compositions {
			if cand.State() == CompositionStopped && cand.onComplete != nil {
				c = cand
				break
			}
		}
		d.compMu.Unlock()
		if c == nil {
			return
		}
	}
	if atomic.CompareAndSwapInt32(&c.completeOnce, 0, 1) {
		if c.State() == CompositionStarted {
			c.setState(CompositionCompleted)
		}
		if c.onComplete != nil {
			c.onComplete()
		}
	}
}

// Wait blocks until every launched worker has exited.
func (d *Dispatcher) Wait() { d.wg.Wait() }

// Stages returns the dispatcher's stage list in upstream-to-downstream
// order, for diagnostics and tests.
func (d *Dispatcher) Stages() []*stage.Stage { return d.stages }

// Shutdown sets the global stop flag, cancels every edge's rings to
// unblock any remaining waiters, joins all workers, and — if sampling was
// enabled — aggregates and returns a session trace. Resources are released
// in reverse construction order via each stage's Flush.
func (d *Dispatcher) Shutdown(release func(token.Token)) *sampler.SessionTrace {
	d.stopping.Store(true)
	for _, s := range d.stages {
		s.CancelRings()
	}
	d.wg.Wait()

	if release != nil {
		for i := len(d.stages) - 1; i >= 0; i-- {
			_ = d.stages[i].Flush(release)
		}
	}

	if !d.opts.EnableSampling {
		return nil
	}
	return d.aggregateTrace()
}

func (d *Dispatcher) aggregateTrace() *sampler.SessionTrace {
	tr := &sampler.SessionTrace{
		SessionName: d.name,
		StartedAt:   d.startedAt,
	}
	if provider, ok := d.gpuContext.(gpu.InfoProvider); ok {
		if info, err := provider.AdapterInfo(); err == nil {
			tr.GPUVendor = info.Vendor
			tr.GPURenderer = info.Renderer
			tr.GPUVersion = info.Version
		}
	}

	samplers := make(map[string]*sampler.Sampler, len(d.stages))
	for _, s := range d.stages {
		if smp := s.Sampler(); smp != nil {
			samplers[smp.Name()] = smp
			tr.Stages = append(tr.Stages, smp.Export(sampler.DefaultDeltaPairs))
		}
	}

	var totalFrames int64
	d.compMu.Lock()
	for _, c := range d.compositions {
		totalFrames += c.FrameCount()
	}
	d.compMu.Unlock()
	tr.Session.TotalFrames = int(totalFrames)

	// End-to-end per-frame latency: SourceFeed's EXECUTE_BEGIN to
	// OutputSink's EXECUTE_END for the same frame index. The rings between
	// them are FIFO with no reordering, so index i on each side names the
	// same frame.
	if source, ok := samplers[NameSourceFeed]; ok {
		if sink, ok := samplers[NameOutputSink]; ok {
			latency, err := sampler.Delta("end_to_end",
				source.Timestamps(sampler.EventExecuteBegin), sink.Timestamps(sampler.EventExecuteEnd))
			if err == nil && latency.Count > 0 {
				tr.Session.MedianLatencyNs = latency.Median
				tr.Session.AverageMsPerFrame = latency.Mean / float64(time.Millisecond)
			}
		}
	}

	if totalFrames > 0 {
		if elapsed := time.Since(d.startedAt).Seconds(); elapsed > 0 {
			totalBytes := float64(totalFrames) * float64(d.originFormat.ByteSize())
			tr.Session.AverageThroughput = totalBytes / elapsed / (1024 * 1024)
		}
	}

	return tr
}
