package present

import "github.com/cogentcore/webgpu/wgpu"

// SurfaceProvider is implemented by gpu.Context backends that can share
// their instance/device/queue with a window surface. Mirrors
// gpu.InfoProvider and stagebody.DeviceProvider: a capability the core
// Context interface doesn't need to know about.
type SurfaceProvider interface {
	Instance() *wgpu.Instance
	Adapter() *wgpu.Adapter
	Device() *wgpu.Device
	Queue() *wgpu.Queue
}
