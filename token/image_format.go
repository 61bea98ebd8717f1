package token

// PixelFormat enumerates the uncompressed pixel layouts the pipeline moves
// between host and GPU memory.
type PixelFormat int32

const (
	PixelFormatInvalid PixelFormat = iota
	PixelFormatRGB8
	PixelFormatRGBA8
	PixelFormatRGBA16
	PixelFormatYUV10V210
	PixelFormatRGBAFloat16
	PixelFormatRGBAFloat32
)

func (p PixelFormat) String() string {
	switch p {
	case PixelFormatRGB8:
		return "RGB_8BIT"
	case PixelFormatRGBA8:
		return "RGBA_8BIT"
	case PixelFormatRGBA16:
		return "RGBA_16BIT"
	case PixelFormatYUV10V210:
		return "YUV_10BIT_V210"
	case PixelFormatRGBAFloat16:
		return "RGBA_FLOAT_16BIT"
	case PixelFormatRGBAFloat32:
		return "RGBA_FLOAT_32BIT"
	default:
		return "INVALID"
	}
}

// BytesPerPixel returns the packed storage size in bytes per pixel for
// formats with a fixed per-pixel size. Subsampled/packed formats such as
// YUV_10BIT_V210 are not expressible per-pixel and return 0; callers must
// use ImageFormat.ByteSize for those.
func (p PixelFormat) BytesPerPixel() int {
	switch p {
	case PixelFormatRGB8:
		return 3
	case PixelFormatRGBA8:
		return 4
	case PixelFormatRGBA16:
		return 8
	case PixelFormatRGBAFloat16:
		return 8
	case PixelFormatRGBAFloat32:
		return 16
	default:
		return 0
	}
}

// Transfer is the transfer function (gamma/EOTF) applied to samples.
type Transfer int32

const (
	TransferBT709 Transfer = iota
	TransferBT601
	TransferSRGB
	TransferLinear
)

// Chromaticity is the color primaries used to interpret chroma samples.
type Chromaticity int32

const (
	ChromaticityBT709 Chromaticity = iota
	ChromaticityBT601
	ChromaticitySRGB
)

// Origin is the row order of the image data.
type Origin int32

const (
	OriginUpperLeft Origin = iota
	OriginLowerLeft
)

// ImageFormat is an opaque-to-the-core image descriptor: width, height,
// pixel format, transfer function, chromaticity, and row origin. The core
// treats it as a value to compare and propagate; interpreting it is the
// task body's job.
type ImageFormat struct {
	Width        uint32
	Height       uint32
	PixelFormat  PixelFormat
	Transfer     Transfer
	Chromaticity Chromaticity
	Origin       Origin
}

// ByteSize returns the number of bytes required to store one image with
// this format. For subsampled/packed formats (YUV_10BIT_V210, which packs
// 6 pixels into 16 bytes per the V210 layout) the exact packed size is
// computed; all others use Width*Height*BytesPerPixel.
func (f ImageFormat) ByteSize() int {
	switch f.PixelFormat {
	case PixelFormatYUV10V210:
		groupsPerRow := (int(f.Width) + 5) / 6
		rowBytes := groupsPerRow * 16
		return rowBytes * int(f.Height)
	default:
		return int(f.Width) * int(f.Height) * f.PixelFormat.BytesPerPixel()
	}
}

// Equal reports whether f and other describe the same image layout.
func (f ImageFormat) Equal(other ImageFormat) bool {
	return f == other
}
