package present

import (
	"fmt"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"

	"github.com/Carmen-Shannon/streamforge/engine/window"
	"github.com/Carmen-Shannon/streamforge/gpu"
	"github.com/Carmen-Shannon/streamforge/token"
)

// WindowSink configures a wgpu surface against win and exposes a
// gpu.OutputCallback that uploads each delivered frame and presents it.
// Grounded on the teacher's wgpuRendererBackendImpl surface setup/BeginFrame
// /Present sequence (engine/renderer/wgpu_renderer_backend.go), adapted
// from a 3D render target to a direct video frame blit.
type WindowSink struct {
	mu      sync.Mutex
	win     window.Window
	surface *wgpu.Surface
	adapter *wgpu.Adapter
	device  *wgpu.Device
	queue   *wgpu.Queue
	format  wgpu.TextureFormat

	width  uint32
	height uint32
}

// NewWindowSink creates and configures the surface for win against ctx's
// device, sized to the frame format's dimensions.
func NewWindowSink(ctx SurfaceProvider, win window.Window, frameFormat token.ImageFormat) (*WindowSink, error) {
	surface := ctx.Instance().CreateSurface(win.SurfaceDescriptor())
	if surface == nil {
		return nil, fmt.Errorf("present: CreateSurface returned nil")
	}

	capabilities := surface.GetCapabilities(ctx.Adapter())
	if len(capabilities.Formats) == 0 {
		return nil, fmt.Errorf("present: surface reports no supported formats")
	}
	surfaceFormat := capabilities.Formats[0]

	width, height := uint32(frameFormat.Width), uint32(frameFormat.Height)
	surface.Configure(ctx.Adapter(), ctx.Device(), &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      surfaceFormat,
		Width:       width,
		Height:      height,
		PresentMode: wgpu.PresentModeFifo,
		AlphaMode:   capabilities.AlphaModes[0],
	})

	sink := &WindowSink{
		win:     win,
		surface: surface,
		adapter: ctx.Adapter(),
		device:  ctx.Device(),
		queue:   ctx.Queue(),
		format:  surfaceFormat,
		width:   width,
		height:  height,
	}
	win.SetResizeCallback(sink.resize)
	return sink, nil
}

// resize reconfigures the surface to the window's new framebuffer size.
// Registered as the window's resize callback so a preview window can be
// dragged to a new size without tearing down and recreating the sink.
func (s *WindowSink) resize(width, height int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface == nil || width <= 0 || height <= 0 {
		return
	}
	s.width, s.height = uint32(width), uint32(height)
	// AlphaMode is left at its zero value here (wgpu-native's
	// CompositeAlphaModeAuto): only Width/Height actually change across a
	// resize, and Auto re-resolves to whatever the surface originally
	// reported as its first supported alpha mode.
	s.surface.Configure(s.adapter, s.device, &wgpu.SurfaceConfiguration{
		Usage:       wgpu.TextureUsageRenderAttachment | wgpu.TextureUsageCopyDst,
		Format:      s.format,
		Width:       s.width,
		Height:      s.height,
		PresentMode: wgpu.PresentModeFifo,
	})
}

// Callback returns the gpu.OutputCallback the dispatcher invokes per frame.
// Frames are expected as RGBA8 packed bytes, matching the surface's copy
// destination layout; ConvertFormatOut is responsible for getting the
// composition's output into that layout before it reaches this sink.
func (s *WindowSink) Callback() gpu.OutputCallback {
	return func(f *gpu.Frame) {
		s.mu.Lock()
		defer s.mu.Unlock()
		if err := s.present(f); err != nil {
			// A single dropped frame (surface resize race, device lost)
			// isn't fatal to the stream; the frame is dropped silently and
			// the stream continues, matching the teacher's BeginFrame
			// "previous frame surface not yet presented" guard.
			return
		}
	}
}

func (s *WindowSink) present(f *gpu.Frame) error {
	surfaceTexture, err := s.surface.GetCurrentTexture()
	if err != nil {
		return fmt.Errorf("present: acquire surface texture: %w", err)
	}
	defer surfaceTexture.Release()

	bytesPerRow := s.width * f.Format.PixelFormat.BytesPerPixel()
	s.queue.WriteTexture(
		&wgpu.ImageCopyTexture{
			Texture:  surfaceTexture.Texture,
			MipLevel: 0,
			Origin:   wgpu.Origin3D{},
			Aspect:   wgpu.TextureAspectAll,
		},
		f.Data,
		&wgpu.TextureDataLayout{Offset: 0, BytesPerRow: bytesPerRow, RowsPerImage: s.height},
		&wgpu.Extent3D{Width: s.width, Height: s.height, DepthOrArrayLayers: 1},
	)

	s.surface.Present()
	return nil
}

// Close releases the surface. The owning window is left to its own
// lifecycle management.
func (s *WindowSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.surface != nil {
		s.surface.Release()
		s.surface = nil
	}
	return nil
}
