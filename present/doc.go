// Package present provides a windowed live-preview OutputCallback: a
// window.Window-backed wgpu surface that blits each completed frame to the
// screen. It is an external collaborator per the core's "opaque task
// bodies" boundary — the dispatcher only ever calls the gpu.OutputCallback
// this package returns.
package present
