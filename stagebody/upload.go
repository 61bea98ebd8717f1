package stagebody

import (
	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/streamforge/stage"
	"github.com/Carmen-Shannon/streamforge/token"
)

// NewCopyHostToStaging builds the CopyHostToStaging body: writes the
// source's host frame bytes into this Token's upload PBO. When
// persistentMapping is set, a buffer left mapped by a prior UnmapStaging
// fence-wait is reused directly instead of re-mapping.
func NewCopyHostToStaging(ctx DeviceProvider, persistentMapping bool) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		hostBytes, ok := input.Resource.([]byte)
		if !ok {
			return token.StopExecution
		}

		device, _ := deviceOf(ctx)
		sb, err := ensureStagingBuffer(device, output.Resource, wgpu.BufferUsageMapWrite|wgpu.BufferUsageCopySrc, uint64(input.Format.ByteSize()))
		if err != nil {
			return token.StopExecution
		}
		view, err := mapForWriteOrReuse(device, sb, persistentMapping)
		if err != nil {
			return token.StopExecution
		}
		copy(view, hostBytes)

		output.Resource = sb
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}

// NewUnmapStaging builds the UnmapStaging body: releases the host-visible
// mapping obtained by CopyHostToStaging so the buffer becomes GPU-visible.
// With persistentMapping set, per spec §4.4 this collapses to a memory
// barrier plus a client-side fence wait instead of a real unmap — the
// buffer stays mapped for CopyHostToStaging to reuse next pass.
func NewUnmapStaging(ctx DeviceProvider, persistentMapping bool) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		sb, ok := input.Resource.(*stagingBuffer)
		if !ok {
			return token.StopExecution
		}
		device, _ := deviceOf(ctx)
		unmapOrFence(device, sb, persistentMapping)

		output.Resource = sb
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}

// NewUnpackStagingToImage builds the UnpackStagingToImage body: copies the
// unmapped staging buffer into a device texture for Render to sample.
func NewUnpackStagingToImage(ctx DeviceProvider) stage.TaskFunc {
	return func(input, output *token.Token) token.Command {
		sb, ok := input.Resource.(*stagingBuffer)
		if !ok {
			return token.StopExecution
		}

		device, queue := deviceOf(ctx)
		img, err := ensureTexture(device, output.Resource, input.Format)
		if err != nil {
			return token.StopExecution
		}

		encoder, err := device.CreateCommandEncoder(nil)
		if err != nil {
			return token.StopExecution
		}
		bytesPerRow := input.Format.Width * uint32(input.Format.PixelFormat.BytesPerPixel())
		encoder.CopyBufferToTexture(
			&wgpu.ImageCopyBuffer{
				Buffer: sb.buf,
				Layout: wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: input.Format.Height},
			},
			&wgpu.ImageCopyTexture{Texture: img.tex, MipLevel: 0, Origin: wgpu.Origin3D{}, Aspect: wgpu.TextureAspectAll},
			&wgpu.Extent3D{Width: input.Format.Width, Height: input.Format.Height, DepthOrArrayLayers: 1},
		)
		cmd, err := encoder.Finish(nil)
		if err != nil {
			return token.StopExecution
		}
		queue.Submit(cmd)
		cmd.Release()
		encoder.Release()

		output.Resource = img
		output.Format = input.Format
		output.Time = input.Time
		output.Composition = input.Composition
		return token.NoChange
	}
}
