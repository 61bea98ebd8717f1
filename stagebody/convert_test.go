package stagebody

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Carmen-Shannon/streamforge/token"
)

func TestConvertPixelsRGB8ToRGBA8FillsOpaqueAlpha(t *testing.T) {
	src := token.ImageFormat{Width: 2, Height: 1, PixelFormat: token.PixelFormatRGB8}
	dst := token.ImageFormat{Width: 2, Height: 1, PixelFormat: token.PixelFormatRGBA8}
	in := []byte{10, 20, 30, 40, 50, 60}

	out := convertPixels(src, dst, in)

	assert.Equal(t, []byte{10, 20, 30, 0xFF, 40, 50, 60, 0xFF}, out)
}

func TestConvertPixelsRGBA8ToRGB8DropsAlpha(t *testing.T) {
	src := token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGBA8}
	dst := token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGB8}
	in := []byte{1, 2, 3, 255}

	out := convertPixels(src, dst, in)

	assert.Equal(t, []byte{1, 2, 3}, out)
}

func TestConvertPixelsUnknownPairingPassesThrough(t *testing.T) {
	src := token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGBAFloat32}
	dst := token.ImageFormat{Width: 1, Height: 1, PixelFormat: token.PixelFormatRGBAFloat16}
	in := []byte{1, 2, 3, 4}

	out := convertPixels(src, dst, in)

	assert.Equal(t, in, out)
}

func TestFormatsEquivalent(t *testing.T) {
	a := token.ImageFormat{Width: 4, Height: 4, PixelFormat: token.PixelFormatRGBA8}
	b := a
	b.Transfer = token.TransferSRGB

	assert.True(t, formatsEquivalent(a, b), "Transfer differences don't affect pixel layout equivalence")

	c := a
	c.Width = 8
	assert.False(t, formatsEquivalent(a, c))
}

func TestWgpuFormatOfKnownPixelFormats(t *testing.T) {
	assert.NotEqual(t, wgpuFormatOf(token.PixelFormatRGBA8), wgpuFormatOf(token.PixelFormatRGBA16))
}
