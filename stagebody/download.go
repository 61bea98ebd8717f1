package stagebody

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/streamforge/stage"
	"github.com/Carmen-Shannon/streamforge/token"
)

// NewPackImageToStaging builds the PackImageToStaging body: copies the
// renderer's (format-converted) output texture into a download PBO.
func NewPackImageToStaging(ctx DeviceProvider) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		img, ok := input.Resource.(*deviceImage)
		if !ok {
			return token.StopExecution
		}

		device, queue := deviceOf(ctx)
		sb, err := ensureStagingBuffer(device, output.Resource, wgpu.BufferUsageMapRead|wgpu.BufferUsageCopyDst, uint64(input.Format.ByteSize()))
		if err != nil {
			return token.StopExecution
		}

		encoder, err := device.CreateCommandEncoder(nil)
		if err != nil {
			return token.StopExecution
		}
		bytesPerRow := input.Format.Width * uint32(input.Format.PixelFormat.BytesPerPixel())
		encoder.CopyTextureToBuffer(
			&wgpu.ImageCopyTexture{Texture: img.tex, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
			&wgpu.ImageCopyBuffer{
				Buffer: sb.buf,
				Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: input.Format.Height},
			},
			&wgpu.Extent3D{Width: input.Format.Width, Height: input.Format.Height, DepthOrArrayLayers: 1},
		)
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return token.StopExecution
		}
		queue.Submit(cmd)
		cmd.Release()
		encoder.Release()

		output.Resource = sb
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}

// NewMapStaging builds the MapStaging body: maps the download PBO for CPU
// reads, attaching the mapped range to the Token's HostPointer field. When
// persistentMapping is set, a buffer CopyStagingToHost left fence-waited
// (rather than truly unmapped) is reused directly.
func NewMapStaging(ctx DeviceProvider, persistentMapping bool) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		sb, ok := input.Resource.(*stagingBuffer)
		if !ok {
			return token.StopExecution
		}

		device, _ := deviceOf(ctx)
		view, err := mapForReadOrReuse(device, sb, persistentMapping)
		if err != nil {
			return token.StopExecution
		}

		output.Resource = sb
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		output.HostPointer = view
		return token.NoChange
	}
}

// NewCopyStagingToHost builds the CopyStagingToHost body: copies the
// mapped download PBO's content into a reusable host byte buffer, then
// either unmaps the PBO (default) or, with persistentMapping set, leaves it
// mapped behind a fence wait for MapStaging to reuse next pass.
func NewCopyStagingToHost(ctx DeviceProvider, persistentMapping bool) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		sb, ok := input.Resource.(*stagingBuffer)
		if !ok || input.HostPointer == nil {
			return token.StopExecution
		}

		hostBuf, ok := output.Resource.([]byte)
		if !ok || len(hostBuf) != len(input.HostPointer) {
			hostBuf = make([]byte, len(input.HostPointer))
		}
		copy(hostBuf, input.HostPointer)
		device, _ := deviceOf(ctx)
		unmapOrFence(device, sb, persistentMapping)

		output.Resource = hostBuf
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}
