package ring

import "errors"

// ErrCanceled is returned by a blocking Pop/Push when the underlying ring's
// cancel flag is observed set. It is local to the stage that receives it:
// the caller treats it as end-of-stream, not a propagated failure.
var ErrCanceled = errors.New("ring: canceled")
