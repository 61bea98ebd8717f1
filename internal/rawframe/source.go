package rawframe

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/token"
)

// Sequence implements gpu.Source over a name-sorted directory of raw frame
// files, each read whole as one frame's packed pixel data. Mirrors the
// original's PrefetchedImageSequence, minus the "prefetch everything into
// memory up front" part: Sequence reads each file lazily from PopFrame so
// arbitrarily long sequences don't need to fit in RAM at once.
type Sequence struct {
	mu         sync.Mutex
	paths      []string
	format     token.ImageFormat
	frameTime  token.Rational
	loopCount  int
	loopsLeft  int
	nextIndex  int
	nextTime   int64
	exhausted  bool
}

// NewSequence globs dir for files matching pattern (e.g. "*.raw"), sorts
// them by name, and returns a Sequence that yields each file's bytes as one
// frame of format, loopCount times (loopCount < 1 is treated as 1).
func NewSequence(dir, pattern string, format token.ImageFormat, frameDuration token.Rational, loopCount int) (*Sequence, error) {
	matches, err := filepath.Glob(filepath.Join(dir, pattern))
	if err != nil {
		return nil, fmt.Errorf("rawframe: glob %q: %w", pattern, err)
	}
	if len(matches) == 0 {
		return nil, fmt.Errorf("rawframe: no files matching %q in %q", pattern, dir)
	}
	sort.Strings(matches)

	if loopCount < 1 {
		loopCount = 1
	}
	return &Sequence{
		paths:     matches,
		format:    format,
		frameTime: frameDuration,
		loopCount: loopCount,
		loopsLeft: loopCount,
	}, nil
}

// NumFrames returns the total number of frames this sequence will yield
// across all loops.
func (s *Sequence) NumFrames() int {
	return len(s.paths) * s.loopCount
}

func (s *Sequence) PopFrame(out *gpu.Frame) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.exhausted {
		return false
	}
	if s.nextIndex >= len(s.paths) {
		s.nextIndex = 0
		s.loopsLeft--
		if s.loopsLeft <= 0 {
			s.exhausted = true
			return false
		}
	}

	data, err := os.ReadFile(s.paths[s.nextIndex])
	if err != nil {
		s.exhausted = true
		return false
	}

	out.Data = data
	out.Format = s.format
	out.Time = token.Rational{Num: s.nextTime * s.frameTime.Num, Den: s.frameTime.Den}

	s.nextIndex++
	s.nextTime++
	if s.nextIndex >= len(s.paths) && s.loopsLeft <= 1 {
		s.exhausted = true
	}
	return true
}

func (s *Sequence) State() gpu.SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.exhausted {
		return gpu.SourceEndOfStream
	}
	if s.nextIndex == 0 && s.nextTime == 0 {
		return gpu.SourceInitialized
	}
	return gpu.SourceReadyToRead
}

// InvalidateFrame is a no-op: each frame's backing slice is freshly read
// from disk and has no pool to return to.
func (s *Sequence) InvalidateFrame(gpu.Frame) {}
