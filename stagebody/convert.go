package stagebody

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/streamforge/stage"
	"github.com/Carmen-Shannon/streamforge/token"
)

// NewConvertFormatIn builds the ConvertFormatIn body: reformats whatever
// the upstream Source naturally produces into target (the renderer's
// expected format) before Render sees it.
func NewConvertFormatIn(ctx DeviceProvider, target token.ImageFormat) stage.TaskFunc {
	return newConvertBody(ctx, target)
}

// NewConvertFormatOut builds the ConvertFormatOut body: reformats the
// renderer's output back into target (the format OutputSink delivers).
func NewConvertFormatOut(ctx DeviceProvider, target token.ImageFormat) stage.TaskFunc {
	return newConvertBody(ctx, target)
}

// newConvertBody is shared by both directions: when the incoming image
// already matches target it passes the texture through untouched;
// otherwise it round-trips through a throwaway staging buffer to perform
// the conversion on the host, since the conversions this pipeline performs
// (RGB8<->RGBA8 channel padding/truncation; see convertPixels) are cheap
// enough not to warrant a compute shader. Bit-depth conversions are not
// performed.
func newConvertBody(ctx DeviceProvider, target token.ImageFormat) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		img, ok := input.Resource.(*deviceImage)
		if !ok {
			return token.StopExecution
		}
		if formatsEquivalent(input.Format, target) {
			output.Resource = img
			output.Format = target
			output.Time = input.Time
			output.Composition = input.Composition
			return token.NoChange
		}

		device, queue := deviceOf(ctx)
		raw, err := readTexture(device, queue, img, input.Format)
		if err != nil {
			return token.StopExecution
		}
		converted := convertPixels(input.Format, target, raw)

		dst, err := ensureTexture(device, output.Resource, target)
		if err != nil {
			return token.StopExecution
		}
		if err := writeTexture(queue, dst, target, converted); err != nil {
			return token.StopExecution
		}

		output.Resource = dst
		output.Format = target
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}

func formatsEquivalent(a, b token.ImageFormat) bool {
	return a.PixelFormat == b.PixelFormat && a.Width == b.Width && a.Height == b.Height
}

// convertPixels reformats a packed pixel buffer from src's layout to dst's.
// Only the channel-count conversions this pipeline actually needs are
// implemented (RGB8<->RGBA8 and same-format resizing-less copies); any
// other pairing is passed through unconverted, matching the opaque-body
// contract's "task's responsibility to detect a mismatch" note.
func convertPixels(src, dst token.ImageFormat, in []byte) []byte {
	switch {
	case src.PixelFormat == token.PixelFormatRGB8 && dst.PixelFormat == token.PixelFormatRGBA8:
		out := make([]byte, int(dst.Width)*int(dst.Height)*4)
		for i, n := 0, int(src.Width)*int(src.Height); i < n && (i*3+2) < len(in) && (i*4+3) < len(out); i++ {
			out[i*4+0] = in[i*3+0]
			out[i*4+1] = in[i*3+1]
			out[i*4+2] = in[i*3+2]
			out[i*4+3] = 0xFF
		}
		return out
	case src.PixelFormat == token.PixelFormatRGBA8 && dst.PixelFormat == token.PixelFormatRGB8:
		out := make([]byte, int(dst.Width)*int(dst.Height)*3)
		for i, n := 0, int(src.Width)*int(src.Height); i < n && (i*4+2) < len(in) && (i*3+2) < len(out); i++ {
			out[i*3+0] = in[i*4+0]
			out[i*3+1] = in[i*4+1]
			out[i*3+2] = in[i*4+2]
		}
		return out
	default:
		return in
	}
}

func readTexture(device *wgpu.Device, queue *wgpu.Queue, img *deviceImage, format token.ImageFormat) ([]byte, error) {
	size := uint64(format.ByteSize())
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "streamforge convert readback",
		Size:             size,
		Usage:            wgpu.BufferUsageMapRead | wgpu.BufferUsageCopyDst,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("stagebody: convert readback buffer: %w", err)
	}

	encoder, err := device.CreateCommandEncoder(nil)
	if err != nil {
		return nil, fmt.Errorf("stagebody: convert readback encoder: %w", err)
	}
	bytesPerRow := format.Width * uint32(format.PixelFormat.BytesPerPixel())
	encoder.CopyTextureToBuffer(
		&wgpu.ImageCopyTexture{Texture: img.tex, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		&wgpu.ImageCopyBuffer{Buffer: buf, Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: format.Height}},
		&wgpu.Extent3D{Width: format.Width, Height: format.Height, DepthOrArrayLayers: 1},
	)
	cmd, err := encoder.Finish(nil)
	if err != nil {
		return nil, fmt.Errorf("stagebody: convert readback finish: %w", err)
	}
	queue.Submit(cmd)
	cmd.Release()
	encoder.Release()

	sb := &stagingBuffer{buf: buf, size: size}
	view, err := mapForRead(device, sb)
	if err != nil {
		return nil, err
	}
	out := make([]byte, len(view))
	copy(out, view)
	unmap(sb)
	return out, nil
}

func writeTexture(queue *wgpu.Queue, img *deviceImage, format token.ImageFormat, data []byte) error {
	bytesPerRow := format.Width * uint32(format.PixelFormat.BytesPerPixel())
	queue.WriteTexture(
		&wgpu.ImageCopyTexture{Texture: img.tex, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
		data,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: format.Height},
		&wgpu.Extent3D{Width: format.Width, Height: format.Height, DepthOrArrayLayers: 1},
	)
	return nil
}
