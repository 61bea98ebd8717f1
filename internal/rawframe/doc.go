// Package rawframe implements a gpu.Source reading uncompressed frames from
// a directory of raw frame files, grounded on the original's
// PrefetchedImageSequence (lib/StreamSource.h): a name-sorted file sequence,
// each file read whole as one frame's packed pixel data, optionally looped
// loop_count times.
package rawframe
