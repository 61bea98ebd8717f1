package stagebody

import "github.com/cogentcore/webgpu/wgpu"

// DeviceProvider is implemented by gpu.Context backends that expose the
// underlying wgpu device and queue task bodies issue commands against.
// Mirrors gpu.InfoProvider: a capability the core doesn't need to know
// about; callers type-assert their gpu.Context to it before passing it to
// the body constructors.
type DeviceProvider interface {
	Device() *wgpu.Device
	Queue() *wgpu.Queue
}

// deviceOf returns ctx's device and queue. It performs no checks of its
// own; a nil ctx panics on the method call. Callers should only ever wire
// stagebody bodies against a real gpu.NewWGPUContext.
func deviceOf(ctx DeviceProvider) (*wgpu.Device, *wgpu.Queue) {
	return ctx.Device(), ctx.Queue()
}
