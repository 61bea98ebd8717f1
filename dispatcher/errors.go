package dispatcher

import "errors"

// ErrInvalidConfiguration is returned at construction time when the
// requested queue capacities or load-constraint counts violate one of the
// invariants the dispatcher is responsible for enforcing before any stage
// ever runs.
var ErrInvalidConfiguration = errors.New("dispatcher: invalid configuration")

// ErrUnknownComposition is returned by StartComposition/StopComposition when
// given an id that was never registered via CreateComposition.
var ErrUnknownComposition = errors.New("dispatcher: unknown composition")

// ErrCompositionActive is returned by StartComposition when another
// composition is already occupying the single active-composition slot.
var ErrCompositionActive = errors.New("dispatcher: a composition is already active")
