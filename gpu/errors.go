package gpu

import "errors"

// ErrAlreadyAttached is returned by Context.Attach when the context is
// already attached to a different OS thread. A GPU context enforces
// single-thread attachment; this is a fatal InvalidConfiguration condition
// per spec §7 when observed at dispatcher construction.
var ErrAlreadyAttached = errors.New("gpu: context already attached to another thread")
