package stagebody

import (
	"fmt"

	"code.hybscloud.com/iox"
	"github.com/cogentcore/webgpu/wgpu"
)

// stagingBuffer wraps one PBO-style wgpu.Buffer alongside the host-visible
// slice obtained from its last successful map. It is attached to a
// token.Token's Resource field and persists across every pass through that
// Token's free-list slot.
type stagingBuffer struct {
	buf    *wgpu.Buffer
	size   uint64
	mapped []byte
}

// ensureStagingBuffer returns the stagingBuffer already attached to res (if
// its size still matches), or creates a new one of usage/size.
func ensureStagingBuffer(device *wgpu.Device, res any, usage wgpu.BufferUsage, size uint64) (*stagingBuffer, error) {
	if sb, ok := res.(*stagingBuffer); ok && sb.buf != nil && sb.size == size {
		return sb, nil
	}
	buf, err := device.CreateBuffer(&wgpu.BufferDescriptor{
		Label:            "streamforge staging buffer",
		Size:             size,
		Usage:            usage,
		MappedAtCreation: false,
	})
	if err != nil {
		return nil, fmt.Errorf("stagebody: create staging buffer: %w", err)
	}
	return &stagingBuffer{buf: buf, size: size}, nil
}

// mapForWrite maps sb for CPU writes and blocks (via device.Poll) until the
// map completes, returning the mapped host-visible range.
func mapForWrite(device *wgpu.Device, sb *stagingBuffer) ([]byte, error) {
	return mapSync(device, sb, wgpu.MapModeWrite)
}

// mapForRead maps sb for CPU reads and blocks until the map completes.
func mapForRead(device *wgpu.Device, sb *stagingBuffer) ([]byte, error) {
	return mapSync(device, sb, wgpu.MapModeRead)
}

// mapForWriteOrReuse is mapForWrite, except when persistentMapping is set
// and sb is already mapped from a prior pass (because unmapOrFence last
// left it mapped) — then it just hands back the existing range, skipping
// the MapAsync/poll round trip entirely.
func mapForWriteOrReuse(device *wgpu.Device, sb *stagingBuffer, persistentMapping bool) ([]byte, error) {
	if persistentMapping && sb.mapped != nil {
		return sb.mapped, nil
	}
	return mapForWrite(device, sb)
}

// mapForReadOrReuse is the read-side counterpart of mapForWriteOrReuse.
func mapForReadOrReuse(device *wgpu.Device, sb *stagingBuffer, persistentMapping bool) ([]byte, error) {
	if persistentMapping && sb.mapped != nil {
		return sb.mapped, nil
	}
	return mapForRead(device, sb)
}

func mapSync(device *wgpu.Device, sb *stagingBuffer, mode wgpu.MapMode) ([]byte, error) {
	done := make(chan error, 1)
	err := sb.buf.MapAsync(mode, 0, sb.size, func(status wgpu.BufferMapAsyncStatus) {
		if status != wgpu.BufferMapAsyncStatusSuccess {
			done <- fmt.Errorf("stagebody: map buffer: status %v", status)
			return
		}
		done <- nil
	})
	if err != nil {
		return nil, fmt.Errorf("stagebody: map buffer: %w", err)
	}
	var backoff iox.Backoff
	for {
		device.Poll(true, nil)
		select {
		case err := <-done:
			if err != nil {
				return nil, err
			}
			view, err := sb.buf.GetMappedRange(0, uint(sb.size))
			if err != nil {
				return nil, fmt.Errorf("stagebody: mapped range: %w", err)
			}
			sb.mapped = view
			return view, nil
		default:
			backoff.Wait()
		}
	}
}

// unmap releases sb's host-visible mapping.
func unmap(sb *stagingBuffer) {
	if sb.mapped == nil {
		return
	}
	sb.buf.Unmap()
	sb.mapped = nil
}

// unmapOrFence is unmap, except when persistentMapping is set: per spec
// §4.4, a persistently-mapped backend collapses the unmap stage to a memory
// barrier plus a client-side fence wait, so sb stays mapped and the next
// mapForWriteOrReuse/mapForReadOrReuse call reuses it directly. device.Poll
// with wait=false is the fence wait: it drains any already-completed GPU
// callbacks without blocking on a fresh map round trip.
func unmapOrFence(device *wgpu.Device, sb *stagingBuffer, persistentMapping bool) {
	if persistentMapping {
		device.Poll(false, nil)
		return
	}
	unmap(sb)
}
