package rawframe_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/internal/rawframe"
	"github.com/Carmen-Shannon/streamforge/token"
)

func writeFrames(t *testing.T, n int) string {
	t.Helper()
	dir := t.TempDir()
	for i := 0; i < n; i++ {
		path := filepath.Join(dir, fmt.Sprintf("frame_%03d.raw", i))
		require.NoError(t, os.WriteFile(path, []byte{byte(i)}, 0o644))
	}
	return dir
}

func TestSequencePopFrameYieldsEachFileOnce(t *testing.T) {
	dir := writeFrames(t, 3)
	seq, err := rawframe.NewSequence(dir, "*.raw", token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGB8}, token.Rational{Num: 1, Den: 30}, 1)
	require.NoError(t, err)
	require.Equal(t, 3, seq.NumFrames())

	var got []byte
	var f gpu.Frame
	for seq.PopFrame(&f) {
		got = append(got, f.Data...)
	}
	require.Equal(t, []byte{0, 1, 2}, got)
	require.Equal(t, gpu.SourceEndOfStream, seq.State())
}

func TestSequenceLoopsLoopCountTimes(t *testing.T) {
	dir := writeFrames(t, 2)
	seq, err := rawframe.NewSequence(dir, "*.raw", token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGB8}, token.Rational{Num: 1, Den: 30}, 3)
	require.NoError(t, err)

	count := 0
	var f gpu.Frame
	for seq.PopFrame(&f) {
		count++
	}
	require.Equal(t, 6, count)
}

func TestNewSequenceErrorsOnNoMatches(t *testing.T) {
	dir := t.TempDir()
	_, err := rawframe.NewSequence(dir, "*.raw", token.ImageFormat{}, token.Rational{Num: 1, Den: 30}, 1)
	require.Error(t, err)
}
