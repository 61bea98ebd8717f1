package gpu

// Context is the GPU context/device collaborator the dispatcher attaches
// to worker threads. A Context enforces single-thread attachment: a second
// Attach from another goroutine/OS thread while already attached is an
// error.
//
// main_gpu_context must not be current on any thread at dispatcher
// construction; the dispatcher attaches it to the render worker itself.
type Context interface {
	// Attach binds the context to the calling OS thread (the caller must
	// have called runtime.LockOSThread). Returns ErrAlreadyAttached if
	// already bound elsewhere.
	Attach() error
	// Detach releases the context from the calling thread.
	Detach() error
	// CreateShared creates a new Context sharing GPU resources with this
	// one, for the extra workers of dispatcher.FlagSet.MultipleGpuContexts.
	CreateShared(name string) (Context, error)
	// IsAttachedToCurrentThread reports whether this context is currently
	// attached to the calling OS thread.
	IsAttachedToCurrentThread() bool
}
