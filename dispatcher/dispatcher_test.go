package dispatcher_test

import (
	"encoding/binary"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamforge/dispatcher"
	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/token"
)

// fakeSource is a gpu.Source emitting n frames whose 4-byte payload encodes
// a monotonically increasing sequence number, letting tests assert FIFO
// order and completeness without any real GPU or file-backed source.
type fakeSource struct {
	mu   sync.Mutex
	n    int
	next int
}

func (f *fakeSource) PopFrame(out *gpu.Frame) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= f.n {
		return false
	}
	buf := make([]byte, 4)
	binary.LittleEndian.PutUint32(buf, uint32(f.next))
	out.Data = buf
	out.Format = token.ImageFormat{}
	out.Time = token.Rational{Num: int64(f.next), Den: 1}
	f.next++
	return true
}

func (f *fakeSource) State() gpu.SourceState {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.next >= f.n {
		return gpu.SourceEndOfStream
	}
	return gpu.SourceReadyToRead
}

func (f *fakeSource) InvalidateFrame(gpu.Frame) {}

func sequenceOf(f *gpu.Frame) int {
	return int(binary.LittleEndian.Uint32(f.Data))
}

func newSmokeDispatcher(t *testing.T, n int) (*dispatcher.Dispatcher, *[]int, *sync.Mutex) {
	t.Helper()
	d, err := dispatcher.New(
		"smoke", nil,
		token.ImageFormat{}, token.ImageFormat{},
		false, false, false,
		dispatcher.FlagSet{},
		dispatcher.StageBodies{},
	)
	require.NoError(t, err)

	var mu sync.Mutex
	var out []int
	cb := func(f *gpu.Frame) {
		mu.Lock()
		defer mu.Unlock()
		out = append(out, sequenceOf(f))
	}

	id := d.CreateComposition("session", &fakeSource{n: n}, nil, cb)
	require.NoError(t, d.Start())

	done := make(chan struct{})
	require.NoError(t, d.StartComposition(id, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("composition did not complete in time")
	}
	d.Wait()

	return d, &out, &mu
}

func TestIdentityPassThroughAllBypassed(t *testing.T) {
	const n = 1000
	_, out, mu := newSmokeDispatcher(t, n)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, *out, n)
	for i, v := range *out {
		require.Equalf(t, i, v, "out of order at index %d", i)
	}
}

func TestCreateCompositionIDCollisionSuffix(t *testing.T) {
	d, err := dispatcher.New("dup", nil, token.ImageFormat{}, token.ImageFormat{}, false, false, false, dispatcher.FlagSet{}, dispatcher.StageBodies{})
	require.NoError(t, err)

	id1 := d.CreateComposition("session", &fakeSource{n: 1}, nil, nil)
	id2 := d.CreateComposition("session", &fakeSource{n: 1}, nil, nil)
	assert.Equal(t, "session", id1)
	assert.Equal(t, "session-1", id2)
}

func TestStartCompositionSingleActiveSlot(t *testing.T) {
	d, err := dispatcher.New("single", nil, token.ImageFormat{}, token.ImageFormat{}, false, false, false, dispatcher.FlagSet{}, dispatcher.StageBodies{})
	require.NoError(t, err)

	idA := d.CreateComposition("a", &fakeSource{n: 1}, nil, nil)
	idB := d.CreateComposition("b", &fakeSource{n: 1}, nil, nil)

	require.NoError(t, d.StartComposition(idA, func() {}))
	err = d.StartComposition(idB, func() {})
	assert.ErrorIs(t, err, dispatcher.ErrCompositionActive)
}

func TestValidateOptionsRejectsCapacityMismatch(t *testing.T) {
	_, err := dispatcher.New(
		"bad", nil, token.ImageFormat{}, token.ImageFormat{}, false, false, false,
		dispatcher.FlagSet{}, dispatcher.StageBodies{},
		dispatcher.WithUploadPBOCount(10),
		dispatcher.WithUploadEdgeCounts(4, 4), // sums to 8, not 10
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatcher.ErrInvalidConfiguration))
}

func TestValidateOptionsRejectsConstraintExceedingCapacity(t *testing.T) {
	_, err := dispatcher.New(
		"bad", nil, token.ImageFormat{}, token.ImageFormat{}, false, false, false,
		dispatcher.FlagSet{}, dispatcher.StageBodies{},
		dispatcher.WithUploadEdgeCounts(4, 4),
		dispatcher.WithUploadPBOCount(8),
		dispatcher.WithLoadConstraints(0, 5, 0, 0), // exceeds UploadUnmapToUnpackCount=4
	)
	require.Error(t, err)
	assert.True(t, errors.Is(err, dispatcher.ErrInvalidConfiguration))
}

func TestEarlyCancelStopsCompletionExactlyOnce(t *testing.T) {
	const n = 1_000_000
	d, err := dispatcher.New("cancel", nil, token.ImageFormat{}, token.ImageFormat{}, false, false, false, dispatcher.FlagSet{}, dispatcher.StageBodies{})
	require.NoError(t, err)

	var mu sync.Mutex
	var produced int
	cb := func(f *gpu.Frame) {
		mu.Lock()
		defer mu.Unlock()
		produced++
	}

	id := d.CreateComposition("cancel-session", &fakeSource{n: n}, nil, cb)
	require.NoError(t, d.Start())

	var completions int
	var compMu sync.Mutex
	done := make(chan struct{})
	var once sync.Once
	onComplete := func() {
		compMu.Lock()
		completions++
		compMu.Unlock()
		once.Do(func() { close(done) })
	}
	require.NoError(t, d.StartComposition(id, onComplete))

	time.Sleep(5 * time.Millisecond)
	require.NoError(t, d.StopComposition(id))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("cancel did not complete in time")
	}
	d.Wait()

	compMu.Lock()
	assert.Equal(t, 1, completions)
	compMu.Unlock()

	mu.Lock()
	assert.LessOrEqual(t, produced, n)
	mu.Unlock()
}

// TestSessionTraceLatencyAndThroughputNonZero covers spec §6's S6 scenario:
// after a 1000-frame run with sampling enabled, the aggregated SessionTrace
// must report a positive median end-to-end latency and average ms/frame,
// alongside the already-covered TotalFrames.
func TestSessionTraceLatencyAndThroughputNonZero(t *testing.T) {
	const n = 1000
	originFormat := token.ImageFormat{Width: 4, Height: 4, PixelFormat: token.PixelFormatRGBA8}

	d, err := dispatcher.New(
		"sampled", nil, originFormat, originFormat,
		false, false, false,
		dispatcher.FlagSet{},
		dispatcher.StageBodies{},
		dispatcher.WithSampling(true, false),
	)
	require.NoError(t, err)

	cb := func(*gpu.Frame) {}
	id := d.CreateComposition("sampled-session", &fakeSource{n: n}, nil, cb)
	require.NoError(t, d.Start())

	done := make(chan struct{})
	require.NoError(t, d.StartComposition(id, func() { close(done) }))

	select {
	case <-done:
	case <-time.After(10 * time.Second):
		t.Fatal("composition did not complete in time")
	}
	d.Wait()

	trace := d.Shutdown(nil)
	require.NotNil(t, trace)
	assert.Equal(t, n, trace.Session.TotalFrames)
	assert.Greater(t, trace.Session.MedianLatencyNs, 0.0)
	assert.Greater(t, trace.Session.AverageMsPerFrame, 0.0)
	assert.Greater(t, trace.Session.AverageThroughput, 0.0)
}
