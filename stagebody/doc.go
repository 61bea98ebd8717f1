// Package stagebody provides the concrete wgpu-backed implementations of
// the dispatcher's opaque task bodies: the upload half (host bytes ->
// staging buffer -> device texture) and the download half (device texture
// -> staging buffer -> host bytes). Buffer/texture creation, mapping, and
// queue submission follow the same device/queue/command-encoder pattern as
// the teacher's engine/renderer/wgpu_renderer_backend.go.
//
// Each body lazily creates its backing wgpu resource on a Token's Resource
// field the first time it sees that Token, then reuses it on every later
// pass through the same free-list slot — a Token never moves between
// pipeline runs without draining through Flush first, so this is safe.
package stagebody
