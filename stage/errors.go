package stage

import "errors"

// ErrInvalidState is returned (or, for the Execute fast path, panicked with)
// when a caller violates the monotonic Initializing -> ReadyToExecute ->
// Stopped state machine: executing a Stopped stage, or flushing a stage
// that has not yet stopped. Both are programming errors, not runtime
// conditions — per spec §7 they must be validated, not tolerated.
var ErrInvalidState = errors.New("stage: invalid state")

// ErrInvalidConfiguration is wrapped in the value a stage constructor panics
// with when the stage's wiring violates an invariant the dispatcher is responsible for enforcing
// before stages ever run — e.g. a non-zero load constraint on a stage with
// no upstream.
var ErrInvalidConfiguration = errors.New("stage: invalid configuration")
