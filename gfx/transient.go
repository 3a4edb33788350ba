package gfx

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/logx"
)

const (
	transientCapacity = 64 << 20 // 64MiB
	transientAlign    = 256
)

// TransientBufferAllocator is a linear (bump) sub-allocator over a
// single large host-visible, host-coherent buffer: every per-frame
// transient allocation (culling output draw/count streams, small
// per-frame uniform data) comes from offsets into one VkBuffer rather than its own
// allocation, avoiding per-frame vkAllocateMemory churn.
//
// Reset happens once per frame, after the previous use of the
// buffer has retired on the GPU (tracked by the caller via the
// in-flight fence, see frame.Loop): Reset just rewinds the bump
// pointer, it does not touch GPU memory.
//
// An allocation larger than the remaining capacity falls back to a
// dedicated one-off buffer (logged at warn level) rather than
// failing outright — this keeps a single oversized upload from
// wedging the frame loop, at the cost of an extra allocation that
// frame.
type TransientBufferAllocator struct {
	ctx    *Context
	buf    *Buffer
	mapped unsafe.Pointer
	offset vk.DeviceSize
	cap    vk.DeviceSize
	extras []*Buffer
}

// NewTransientBufferAllocator creates the backing buffer and maps it
// persistently for host writes, usable as vertex/index/storage/
// indirect source depending on usage.
func NewTransientBufferAllocator(ctx *Context, usage vk.BufferUsageFlagBits) (*TransientBufferAllocator, error) {
	buf, err := ctx.CreateBuffer(transientCapacity, usage,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(ctx.Device, buf.Memory, 0, transientCapacity, 0, &data); res != vk.Success {
		buf.Destroy(ctx)
		return nil, fmt.Errorf("gfx: MapMemory failed: %d", res)
	}
	return &TransientBufferAllocator{ctx: ctx, buf: buf, mapped: data, cap: transientCapacity}, nil
}

func align(x, a vk.DeviceSize) vk.DeviceSize { return (x + a - 1) &^ (a - 1) }

// Alloc reserves size bytes and returns the backing buffer handle,
// the byte offset the caller should bind/copy at, and a byte slice
// view of the mapped memory for host writes. When size exceeds the
// remaining capacity, a dedicated buffer is created for this
// allocation instead and logged.
func (t *TransientBufferAllocator) Alloc(size vk.DeviceSize) (vk.Buffer, vk.DeviceSize, []byte) {
	want := align(size, transientAlign)
	if t.offset+want > t.cap {
		logx.L().Warn("transient allocator overflow, falling back to dedicated buffer",
			"requested", size, "remaining", t.cap-t.offset)
		extra, err := t.ctx.CreateBuffer(size,
			vk.BufferUsageStorageBufferBit|vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit|vk.BufferUsageIndirectBufferBit,
			vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
		if err != nil {
			logx.Fatal("transient allocator: dedicated fallback buffer failed", "err", err)
		}
		t.extras = append(t.extras, extra)
		var data unsafe.Pointer
		vk.MapMemory(t.ctx.Device, extra.Memory, 0, size, 0, &data)
		return extra.Handle, 0, unsafe.Slice((*byte)(data), int(size))
	}
	off := t.offset
	t.offset += want
	ptr := unsafe.Add(t.mapped, off)
	return t.buf.Handle, off, unsafe.Slice((*byte)(ptr), int(size))
}

// Reset rewinds the bump pointer and releases any dedicated
// overflow buffers from the previous frame.
func (t *TransientBufferAllocator) Reset() {
	t.offset = 0
	for _, b := range t.extras {
		vk.UnmapMemory(t.ctx.Device, b.Memory)
		b.Destroy(t.ctx)
	}
	t.extras = t.extras[:0]
}

func (t *TransientBufferAllocator) Destroy() {
	vk.UnmapMemory(t.ctx.Device, t.buf.Memory)
	t.buf.Destroy(t.ctx)
}
