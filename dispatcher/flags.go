package dispatcher

// FlagSet recognizes the structural configuration choices spec §4.4
// describes. Each flag is independent; the dispatcher resolves their
// combination into a concrete worker assignment at construction time.
type FlagSet struct {
	// MultipleGpuContexts runs the upload and download stages on two
	// additional worker threads with dedicated GPU contexts shared with
	// the render context. When false, all GPU work runs on the render
	// worker.
	MultipleGpuContexts bool

	// AsyncInput runs the host-side input copy (CopyHostToStaging) on its
	// own worker, decoupled from the GPU-upload worker.
	AsyncInput bool

	// AsyncOutput is the symmetric choice for CopyStagingToHost.
	AsyncOutput bool

	// PersistentMapping indicates the GPU backend supports
	// persistent-mapped staging buffers. The map/unmap stages collapse to
	// memory barriers plus a client-side fence wait; wired through to
	// stagebody, which decides how UnmapStaging/MapStaging behave.
	PersistentMapping bool

	// CopyStagingBeforeDownload inserts an extra staging copy before the
	// device->host transfer, a vendor workaround. Recognized and carried
	// through per spec §9's open question; no inner-loop behavior depends
	// on it yet.
	CopyStagingBeforeDownload bool
}
