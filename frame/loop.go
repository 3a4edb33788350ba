// Package frame implements the per-frame ring orchestration that
// ties the swapchain, per-frame resource rings, and the sequence of
// pass renderers together into one submitted command buffer per
// frame.
package frame

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/gfxstate"
	"github.com/vkforge/vkforge/logx"
)

// ringResources are the per-CPU-frame objects capped at
// gfx.MaxFramesInFlight concurrent frames: the command pool/buffer
// the frame records into, its descriptor allocator, and its
// transient (linear) buffer allocator.
type ringResources struct {
	pool       vk.CommandPool
	cmd        vk.CommandBuffer
	descs      *gfx.DescriptorAllocator
	transient  *gfx.TransientBufferAllocator
	imageAvail vk.Semaphore
	inFlight   vk.Fence
}

// Loop owns the swapchain and every per-ring/per-swapchain-image
// synchronization primitive, and drives the eight-step sequence from
// acquire through present once per call to RenderFrame.
//
// Semaphore indexing is deliberate: renderFinished is
// indexed by swapchain image index (it must finish signaling before
// that image can be re-acquired), while imageAvailable and
// inFlightFence are indexed by ring index (at most
// gfx.MaxFramesInFlight CPU-side frames run concurrently).
type Loop struct {
	ctx       *gfx.Context
	surface   vk.Surface
	Swapchain *gfx.Swapchain

	ring      [gfx.MaxFramesInFlight]ringResources
	ringIndex int

	renderFinished []vk.Semaphore // indexed by swapchain image index

	width, height uint32
}

// RecordFunc records one frame's pass sequence (depth pre-pass,
// per-cascade shadow, SSAO, blob mesh, skybox, PBR, blob draw,
// finalize) into cmd, given
// the image index being rendered to and this ring slot's descriptor
// and transient allocators.
type RecordFunc func(cmd vk.CommandBuffer, imageIndex uint32, descs *gfx.DescriptorAllocator, transient *gfx.TransientBufferAllocator)

func NewLoop(ctx *gfx.Context, surface vk.Surface, width, height uint32, descriptorRatios map[vk.DescriptorType]float32) (*Loop, error) {
	sc, err := gfx.NewSwapchain(ctx, surface, width, height, 0)
	if err != nil {
		return nil, err
	}

	l := &Loop{ctx: ctx, surface: surface, Swapchain: sc, width: width, height: height}

	for i := range l.ring {
		poolInfo := vk.CommandPoolCreateInfo{
			SType:            vk.StructureTypeCommandPoolCreateInfo,
			Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
			QueueFamilyIndex: ctx.GraphicsFamily,
		}
		var pool vk.CommandPool
		if res := vk.CreateCommandPool(ctx.Device, &poolInfo, nil, &pool); res != vk.Success {
			return nil, fmt.Errorf("frame: CreateCommandPool failed: %d", res)
		}
		allocInfo := vk.CommandBufferAllocateInfo{
			SType:              vk.StructureTypeCommandBufferAllocateInfo,
			CommandPool:        pool,
			Level:              vk.CommandBufferLevelPrimary,
			CommandBufferCount: 1,
		}
		cmds := make([]vk.CommandBuffer, 1)
		if res := vk.AllocateCommandBuffers(ctx.Device, &allocInfo, cmds); res != vk.Success {
			return nil, fmt.Errorf("frame: AllocateCommandBuffers failed: %d", res)
		}

		transient, err := gfx.NewTransientBufferAllocator(ctx, vk.BufferUsageStorageBufferBit|vk.BufferUsageVertexBufferBit|vk.BufferUsageIndexBufferBit|vk.BufferUsageIndirectBufferBit)
		if err != nil {
			return nil, err
		}

		var avail vk.Semaphore
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		vk.CreateSemaphore(ctx.Device, &semInfo, nil, &avail)

		var fence vk.Fence
		fenceInfo := vk.FenceCreateInfo{SType: vk.StructureTypeFenceCreateInfo, Flags: vk.FenceCreateFlags(vk.FenceCreateSignaledBit)}
		vk.CreateFence(ctx.Device, &fenceInfo, nil, &fence)

		l.ring[i] = ringResources{
			pool: pool, cmd: cmds[0],
			descs:      gfx.NewDescriptorAllocator(ctx, descriptorRatios),
			transient:  transient,
			imageAvail: avail,
			inFlight:   fence,
		}
	}

	l.renderFinished = make([]vk.Semaphore, len(sc.Images))
	for i := range l.renderFinished {
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		vk.CreateSemaphore(ctx.Device, &semInfo, nil, &l.renderFinished[i])
	}

	return l, nil
}

// RenderFrame executes the per-frame sequence:
// wait+reset the ring's fence, advance the swapchain, reset the
// ring's per-frame allocators, record via fn, barrier the swapchain
// image to present-src, submit, and present. A swapchain recreation
// request bubbles up as a skipped frame (the caller should
// re-query Loop.Swapchain and its screen-sized attachments before the
// next call).
func (l *Loop) RenderFrame(fn RecordFunc) error {
	r := &l.ring[l.ringIndex]

	vk.WaitForFences(l.ctx.Device, 1, []vk.Fence{r.inFlight}, vk.True, ^uint64(0))

	imageIndex, err := l.Swapchain.Acquire(r.imageAvail)
	if err == gfx.ErrSwapchainOutOfDate {
		return l.recreate()
	} else if err != nil {
		return err
	}

	vk.ResetFences(l.ctx.Device, 1, []vk.Fence{r.inFlight})

	r.descs.ResetFrame()
	r.transient.Reset()

	vk.ResetCommandBuffer(r.cmd, 0)
	begin := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit),
	}
	vk.BeginCommandBuffer(r.cmd, &begin)

	fn(r.cmd, imageIndex, r.descs, r.transient)

	state := &l.Swapchain.State[imageIndex]
	barrier := state.Barrier(l.Swapchain.Images[imageIndex], vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.PresentSrc)
	depInfo := vk.DependencyInfo{
		SType: vk.StructureTypeDependencyInfo, ImageMemoryBarrierCount: 1,
		PImageMemoryBarriers: []vk.ImageMemoryBarrier2{barrier},
	}
	vk.CmdPipelineBarrier2(r.cmd, &depInfo)

	vk.EndCommandBuffer(r.cmd)

	waitStage := vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)
	submit := vk.SubmitInfo{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   1,
		PWaitSemaphores:      []vk.Semaphore{r.imageAvail},
		PWaitDstStageMask:    []vk.PipelineStageFlags{waitStage},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{r.cmd},
		SignalSemaphoreCount: 1,
		PSignalSemaphores:    []vk.Semaphore{l.renderFinished[imageIndex]},
	}
	if res := vk.QueueSubmit(l.ctx.GraphicsQueue, 1, []vk.SubmitInfo{submit}, r.inFlight); res != vk.Success {
		return fmt.Errorf("frame: QueueSubmit failed: %d", res)
	}

	if err := l.Swapchain.Present(l.ctx.GraphicsQueue, l.renderFinished[imageIndex], imageIndex); err == gfx.ErrSwapchainOutOfDate {
		return l.recreate()
	} else if err != nil {
		return err
	}

	l.ringIndex = (l.ringIndex + 1) % gfx.MaxFramesInFlight
	return nil
}

// recreate waits for the device to go idle and rebuilds the
// swapchain (and its renderFinished semaphores, sized off the new
// image count). Screen-sized attachments owned outside this package
// (HDR color/depth, SSAO intermediates) must be recreated by the
// caller after this returns.
func (l *Loop) recreate() error {
	vk.DeviceWaitIdle(l.ctx.Device)

	old := l.Swapchain
	sc, err := gfx.NewSwapchain(l.ctx, l.surface, l.width, l.height, old.Handle())
	if err != nil {
		return err
	}
	old.Destroy()
	l.Swapchain = sc

	for _, s := range l.renderFinished {
		vk.DestroySemaphore(l.ctx.Device, s, nil)
	}
	l.renderFinished = make([]vk.Semaphore, len(sc.Images))
	for i := range l.renderFinished {
		semInfo := vk.SemaphoreCreateInfo{SType: vk.StructureTypeSemaphoreCreateInfo}
		vk.CreateSemaphore(l.ctx.Device, &semInfo, nil, &l.renderFinished[i])
	}
	logx.L().Warn("swapchain recreated")
	return nil
}

func (l *Loop) Destroy() {
	vk.DeviceWaitIdle(l.ctx.Device)
	for _, s := range l.renderFinished {
		vk.DestroySemaphore(l.ctx.Device, s, nil)
	}
	for i := range l.ring {
		r := &l.ring[i]
		vk.DestroySemaphore(l.ctx.Device, r.imageAvail, nil)
		vk.DestroyFence(l.ctx.Device, r.inFlight, nil)
		vk.DestroyCommandPool(l.ctx.Device, r.pool, nil)
		r.descs.Destroy()
		r.transient.Destroy()
	}
	l.Swapchain.Destroy()
}
