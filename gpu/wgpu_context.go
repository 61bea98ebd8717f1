package gpu

import (
	"fmt"
	"runtime"
	"sync"

	"github.com/cogentcore/webgpu/wgpu"
)

// wgpuContext is the concrete Context implementation backing the core's
// opaque GPU-context collaborator, grounded on the teacher's
// newWGPURendererBackend (engine/renderer/wgpu_renderer_backend.go):
// instance/adapter/device/queue creation and the same
// runtime.LockOSThread discipline used for platform window/graphics
// context binding.
type wgpuContext struct {
	mu sync.Mutex

	instance *wgpu.Instance
	adapter  *wgpu.Adapter
	device   *wgpu.Device
	queue    *wgpu.Queue

	attached bool
}

// NewWGPUContext creates a GPU context suitable for use as the dispatcher's
// main_gpu_context. forceFallbackAdapter mirrors the teacher's
// RendererBuilderOption of the same name.
func NewWGPUContext(forceFallbackAdapter bool) (Context, error) {
	inst := wgpu.CreateInstance(nil)
	adapter, err := inst.RequestAdapter(&wgpu.RequestAdapterOptions{
		ForceFallbackAdapter: forceFallbackAdapter,
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request adapter: %w", err)
	}

	limits := wgpu.DefaultLimits()
	device, err := adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: "streamforge Device",
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request device: %w", err)
	}

	return &wgpuContext{
		instance: inst,
		adapter:  adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}

// Device returns the underlying wgpu.Device for stagebody task bodies.
func (c *wgpuContext) Device() *wgpu.Device { return c.device }

// Queue returns the underlying wgpu.Queue for stagebody task bodies.
func (c *wgpuContext) Queue() *wgpu.Queue { return c.queue }

// Adapter returns the underlying wgpu.Adapter, used for trace export's
// GPU vendor/renderer/version fields (spec §6).
func (c *wgpuContext) Adapter() *wgpu.Adapter { return c.adapter }

// Instance returns the underlying wgpu.Instance, used by present to create
// a window surface sharing this context's GPU.
func (c *wgpuContext) Instance() *wgpu.Instance { return c.instance }

// AdapterInfo implements gpu.InfoProvider.
func (c *wgpuContext) AdapterInfo() (AdapterInfo, error) {
	info, err := c.adapter.GetInfo()
	if err != nil {
		return AdapterInfo{}, fmt.Errorf("gpu: adapter info: %w", err)
	}
	return AdapterInfo{
		Vendor:   info.VendorName,
		Renderer: info.Device,
		Version:  info.Driver,
	}, nil
}

// Attach pins the calling goroutine to its current OS thread and marks the
// context attached. Go has no portable way to compare OS thread identity
// across calls, so a second Attach is rejected unconditionally while the
// context is attached — a conservative reading of "second attach from
// another thread is an error" that also happens to catch same-thread
// double-attach bugs.
func (c *wgpuContext) Attach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.attached {
		return ErrAlreadyAttached
	}
	runtime.LockOSThread()
	c.attached = true
	return nil
}

func (c *wgpuContext) Detach() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.attached {
		return nil
	}
	c.attached = false
	runtime.UnlockOSThread()
	return nil
}

func (c *wgpuContext) IsAttachedToCurrentThread() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.attached
}

// CreateShared creates a context sharing the same instance/adapter, backing
// dispatcher.FlagSet.MultipleGpuContexts' extra upload/download worker threads.
// wgpu devices created from the same adapter share GPU resources.
func (c *wgpuContext) CreateShared(name string) (Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	limits := wgpu.DefaultLimits()
	device, err := c.adapter.RequestDevice(&wgpu.DeviceDescriptor{
		Label: name,
		RequiredLimits: &wgpu.RequiredLimits{
			Limits: limits,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("gpu: request shared device %q: %w", name, err)
	}
	return &wgpuContext{
		instance: c.instance,
		adapter:  c.adapter,
		device:   device,
		queue:    device.GetQueue(),
	}, nil
}
