package stagebody

import (
	"fmt"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/streamforge/token"
)

// deviceImage wraps one device-resident texture, attached to a Token's
// Resource field for the lifetime of its free-list slot. Implements
// gpu.ImageRef by being passed directly as the opaque type.
type deviceImage struct {
	tex    *wgpu.Texture
	view   *wgpu.TextureView
	format token.ImageFormat
}

func wgpuFormatOf(pf token.PixelFormat) wgpu.TextureFormat {
	switch pf {
	case token.PixelFormatRGB8:
		// wgpu has no 3-channel texture format; RGB8 frames are padded to
		// RGBA8 on upload/download by unpackRGB8/packRGB8 below.
		return wgpu.TextureFormatRGBA8Unorm
	case token.PixelFormatRGBA8:
		return wgpu.TextureFormatRGBA8Unorm
	case token.PixelFormatRGBA16:
		return wgpu.TextureFormatRGBA16Uint
	case token.PixelFormatRGBAFloat16:
		return wgpu.TextureFormatRGBA16Float
	case token.PixelFormatRGBAFloat32:
		return wgpu.TextureFormatRGBA32Float
	default:
		// YUV_10BIT_V210 and any other packed format are carried as opaque
		// byte buffers, never unpacked into a device texture directly.
		return wgpu.TextureFormatRGBA8Unorm
	}
}

// ensureTexture returns the deviceImage already attached to res for format
// (if dimensions/format match), or creates a new one.
func ensureTexture(device *wgpu.Device, res any, format token.ImageFormat) (*deviceImage, error) {
	if img, ok := res.(*deviceImage); ok && img.tex != nil && img.format == format {
		return img, nil
	}
	tex, err := device.CreateTexture(&wgpu.TextureDescriptor{
		Label:     "streamforge frame texture",
		Usage:     wgpu.TextureUsageTextureBinding | wgpu.TextureUsageStorageBinding | wgpu.TextureUsageCopyDst | wgpu.TextureUsageCopySrc,
		Dimension: wgpu.TextureDimension2D,
		Size: wgpu.Extent3D{
			Width:              format.Width,
			Height:             format.Height,
			DepthOrArrayLayers: 1,
		},
		Format:        wgpuFormatOf(format.PixelFormat),
		MipLevelCount: 1,
		SampleCount:   1,
	})
	if err != nil {
		return nil, fmt.Errorf("stagebody: create texture: %w", err)
	}
	view, err := tex.CreateView(nil)
	if err != nil {
		return nil, fmt.Errorf("stagebody: texture view: %w", err)
	}
	return &deviceImage{tex: tex, view: view, format: format}, nil
}
