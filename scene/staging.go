package scene

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/gfxstate"
	"github.com/vkforge/vkforge/internal/bitm"
)

const stagingCapacity = 128 << 20 // 128MiB

// StagingUploader is a single host-visible, persistently-mapped
// staging buffer used to move CPU data (mesh buffers, material/
// instance tables, image texel data) onto the device. A pool of
// staging buffers behind a channel (letting concurrent goroutines
// each borrow one) is overkill here: the loading path is
// single-threaded (the scene loader runs once at startup, off the
// frame loop), so one uploader with a bitmap sub-allocator (internal/
// bitm.Bitm) is sufficient.
type StagingUploader struct {
	ctx    *Context
	buf    *gfx.Buffer
	mapped unsafe.Pointer
	bm     bitm.Bitm[uint32]

	cmd   vk.CommandBuffer
	pool  vk.CommandPool
	fence vk.Fence
}

type Context = gfx.Context

// NewStagingUploader allocates the staging buffer and a dedicated
// command pool/buffer/fence for the one-shot upload command streams
// it records.
func NewStagingUploader(ctx *Context) (*StagingUploader, error) {
	buf, err := ctx.CreateBuffer(stagingCapacity, vk.BufferUsageTransferSrcBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		return nil, err
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(ctx.Device, buf.Memory, 0, stagingCapacity, 0, &data); res != vk.Success {
		buf.Destroy(ctx)
		return nil, fmt.Errorf("scene: MapMemory failed: %d", res)
	}

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit),
		QueueFamilyIndex: ctx.GraphicsFamily,
	}
	var pool vk.CommandPool
	if res := vk.CreateCommandPool(ctx.Device, &poolInfo, nil, &pool); res != vk.Success {
		return nil, fmt.Errorf("scene: CreateCommandPool failed: %d", res)
	}
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cmds := make([]vk.CommandBuffer, 1)
	if res := vk.AllocateCommandBuffers(ctx.Device, &allocInfo, cmds); res != vk.Success {
		return nil, fmt.Errorf("scene: AllocateCommandBuffers failed: %d", res)
	}

	fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo}
	var fence vk.Fence
	vk.CreateFence(ctx.Device, &fenceInfo, nil, &fence)

	return &StagingUploader{ctx: ctx, buf: buf, mapped: data, cmd: cmds[0], pool: pool, fence: fence}, nil
}

// stage copies data into the staging buffer at a bitmap-allocated
// offset, padding empty uploads to 4 bytes so a zero-length copy
// never produces a VkBufferCopy with size 0 (which some
// implementations reject).
func (s *StagingUploader) stage(data []byte) (offset vk.DeviceSize, size vk.DeviceSize) {
	n := len(data)
	if n == 0 {
		n = 4
	}
	words := (n + 3) / 4
	word, ok := s.bm.SearchRange(words)
	if !ok {
		s.bm.Grow(words)
		word, ok = s.bm.SearchRange(words)
		if !ok {
			panic("scene: staging buffer exhausted")
		}
	}
	for i := 0; i < words; i++ {
		s.bm.Set(word + i)
	}
	off := vk.DeviceSize(word) * 4
	dst := unsafe.Slice((*byte)(unsafe.Add(s.mapped, off)), n)
	copy(dst, data)
	return off, vk.DeviceSize(n)
}

// beginUnsynchronized starts recording the upload command buffer
// without waiting on the previous submission's fence — callers that
// know no previous upload is still in flight (the common case during
// initial scene load) use this to avoid a needless stall.
func (s *StagingUploader) beginUnsynchronized() error {
	vk.ResetCommandBuffer(s.cmd, 0)
	begin := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	if res := vk.BeginCommandBuffer(s.cmd, &begin); res != vk.Success {
		return fmt.Errorf("scene: BeginCommandBuffer failed: %d", res)
	}
	return nil
}

// UploadBuffer stages data and records a copy into dst at dstOffset.
func (s *StagingUploader) UploadBuffer(dst vk.Buffer, dstOffset vk.DeviceSize, data []byte) {
	off, size := s.stage(data)
	region := vk.BufferCopy{SrcOffset: off, DstOffset: dstOffset, Size: size}
	vk.CmdCopyBuffer(s.cmd, s.buf.Handle, dst, 1, []vk.BufferCopy{region})
}

// UploadImage stages data and records a copy into the given mip
// level/layer of dst, which must already be in TransferDst layout.
func (s *StagingUploader) UploadImage(dst vk.Image, width, height uint32, level, layer uint32, data []byte) {
	off, _ := s.stage(data)
	region := vk.BufferImageCopy{
		BufferOffset: off,
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
			MipLevel:       level,
			BaseArrayLayer: layer,
			LayerCount:     1,
		},
		ImageExtent: vk.Extent3D{Width: width, Height: height, Depth: 1},
	}
	vk.CmdCopyBufferToImage(s.cmd, s.buf.Handle, dst, vk.ImageLayoutTransferDstOptimal, 1, []vk.BufferImageCopy{region})
}

// submit ends recording and submits the upload command buffer,
// blocking on s.fence until the copies complete, then rewinds the
// bitmap allocator so the staging buffer can be reused.
func (s *StagingUploader) submit() error {
	if res := vk.EndCommandBuffer(s.cmd); res != vk.Success {
		return fmt.Errorf("scene: EndCommandBuffer failed: %d", res)
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{s.cmd},
	}
	vk.ResetFences(s.ctx.Device, 1, []vk.Fence{s.fence})
	if res := vk.QueueSubmit(s.ctx.GraphicsQueue, 1, []vk.SubmitInfo{submit}, s.fence); res != vk.Success {
		return fmt.Errorf("scene: QueueSubmit failed: %d", res)
	}
	vk.WaitForFences(s.ctx.Device, 1, []vk.Fence{s.fence}, vk.True, ^uint64(0))
	s.bm.Clear()
	return nil
}

// submitUnsynchronized submits without waiting on the fence,
// leaving the caller responsible for ensuring the copies have
// completed (ImageUploader.Queue follows each call with Wait).
func (s *StagingUploader) submitUnsynchronized() error {
	if res := vk.EndCommandBuffer(s.cmd); res != vk.Success {
		return fmt.Errorf("scene: EndCommandBuffer failed: %d", res)
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{s.cmd},
	}
	vk.ResetFences(s.ctx.Device, 1, []vk.Fence{s.fence})
	return vkErr(vk.QueueSubmit(s.ctx.GraphicsQueue, 1, []vk.SubmitInfo{submit}, s.fence), "QueueSubmit")
}

// Wait blocks until the most recent unsynchronized submission
// completes and rewinds the allocator.
func (s *StagingUploader) Wait() {
	vk.WaitForFences(s.ctx.Device, 1, []vk.Fence{s.fence}, vk.True, ^uint64(0))
	s.bm.Clear()
}

func (s *StagingUploader) Destroy() {
	vk.UnmapMemory(s.ctx.Device, s.buf.Memory)
	s.buf.Destroy(s.ctx)
	vk.DestroyCommandPool(s.ctx.Device, s.pool, nil)
	vk.DestroyFence(s.ctx.Device, s.fence, nil)
}

func vkErr(res vk.Result, what string) error {
	if res != vk.Success {
		return fmt.Errorf("scene: %s failed: %d", what, res)
	}
	return nil
}

var _ = gfxstate.Undefined // StagingUploader leaves layout transitions to ImageUploader
