// Package gfxstate tracks the synchronization state of GPU resources
// and produces the pipeline barriers needed to move between named
// access patterns.
//
// Vulkan's synchronization2 extension expresses a barrier as a
// (stage, access, layout) pair on either side of the transition.
// Every renderer stage in this module transitions through one of a
// small, closed set of named access patterns (see the Access
// catalog below), so rather than construct VkPipelineStageFlags2/
// VkAccessFlags2/VkImageLayout triples at each call site, callers
// name the access pattern and gfxstate looks up the triple.
package gfxstate

import vk "github.com/goki/vulkan"

// Access names a synchronization scope: a pipeline stage mask, an
// access mask, and — for images — a layout. It corresponds to one
// row of the canonical access catalog.
type Access struct {
	name    string
	Stage   vk.PipelineStageFlags2
	Access  vk.AccessFlags2
	Layout  vk.ImageLayout
	Family  bool // true if this access implies a queue family change
}

func (a Access) String() string { return a.name }

// The canonical named access catalog. Every resource transition in
// the renderer is expressed as a move from one of these to another.
var (
	TransferWrite = Access{
		name:   "TransferWrite",
		Stage:  vk.PipelineStageFlagBits2TransferBit,
		Access: vk.AccessFlagBits2TransferWriteBit,
		Layout: vk.ImageLayoutTransferDstOptimal,
	}
	TransferRead = Access{
		name:   "TransferRead",
		Stage:  vk.PipelineStageFlagBits2TransferBit,
		Access: vk.AccessFlagBits2TransferReadBit,
		Layout: vk.ImageLayoutTransferSrcOptimal,
	}
	ComputeShaderWriteGeneral = Access{
		name:   "ComputeShaderWriteGeneral",
		Stage:  vk.PipelineStageFlagBits2ComputeShaderBit,
		Access: vk.AccessFlagBits2ShaderWriteBit,
		Layout: vk.ImageLayoutGeneral,
	}
	ComputeShaderReadGeneral = Access{
		name:   "ComputeShaderReadGeneral",
		Stage:  vk.PipelineStageFlagBits2ComputeShaderBit,
		Access: vk.AccessFlagBits2ShaderReadBit,
		Layout: vk.ImageLayoutGeneral,
	}
	ComputeShaderReadOptimal = Access{
		name:   "ComputeShaderReadOptimal",
		Stage:  vk.PipelineStageFlagBits2ComputeShaderBit,
		Access: vk.AccessFlagBits2ShaderReadBit,
		Layout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	FragmentShaderReadOptimal = Access{
		name:   "FragmentShaderReadOptimal",
		Stage:  vk.PipelineStageFlagBits2FragmentShaderBit,
		Access: vk.AccessFlagBits2ShaderReadBit,
		Layout: vk.ImageLayoutShaderReadOnlyOptimal,
	}
	ColorAttachmentLoad = Access{
		name:   "ColorAttachmentLoad",
		Stage:  vk.PipelineStageFlagBits2ColorAttachmentOutputBit,
		Access: vk.AccessFlagBits2ColorAttachmentReadBit,
		Layout: vk.ImageLayoutColorAttachmentOptimal,
	}
	ColorAttachmentWrite = Access{
		name:   "ColorAttachmentWrite",
		Stage:  vk.PipelineStageFlagBits2ColorAttachmentOutputBit,
		Access: vk.AccessFlagBits2ColorAttachmentWriteBit,
		Layout: vk.ImageLayoutColorAttachmentOptimal,
	}
	DepthAttachmentEarlyOps = Access{
		name: "DepthAttachmentEarlyOps",
		Stage: vk.PipelineStageFlagBits2EarlyFragmentTestsBit,
		Access: vk.AccessFlagBits2DepthStencilAttachmentReadBit |
			vk.AccessFlagBits2DepthStencilAttachmentWriteBit,
		Layout: vk.ImageLayoutDepthAttachmentOptimal,
	}
	DepthAttachmentLateOps = Access{
		name: "DepthAttachmentLateOps",
		Stage: vk.PipelineStageFlagBits2LateFragmentTestsBit,
		Access: vk.AccessFlagBits2DepthStencilAttachmentReadBit |
			vk.AccessFlagBits2DepthStencilAttachmentWriteBit,
		Layout: vk.ImageLayoutDepthAttachmentOptimal,
	}
	PresentSrc = Access{
		name:   "PresentSrc",
		Stage:  vk.PipelineStageFlagBits2BottomOfPipeBit,
		Access: vk.AccessFlagBits2None,
		Layout: vk.ImageLayoutPresentSrc,
	}
	// DrawIndirectRead and VertexInputRead are buffer-only accesses
	// (Layout is meaningless for a BufferMemoryBarrier2): the blob
	// pass's compute-written draw-indirect and vertex buffers must
	// cross one of these before DrawDomains reads them.
	DrawIndirectRead = Access{
		name:   "DrawIndirectRead",
		Stage:  vk.PipelineStageFlagBits2DrawIndirectBit,
		Access: vk.AccessFlagBits2IndirectCommandReadBit,
	}
	VertexInputRead = Access{
		name:   "VertexInputRead",
		Stage:  vk.PipelineStageFlagBits2VertexInputBit,
		Access: vk.AccessFlagBits2VertexAttributeReadBit | vk.AccessFlagBits2IndexReadBit,
	}
	Undefined = Access{
		name:   "Undefined",
		Stage:  vk.PipelineStageFlagBits2TopOfPipeBit,
		Access: vk.AccessFlagBits2None,
		Layout: vk.ImageLayoutUndefined,
	}
)

// Tracked is the mutable state attached to a single image or buffer:
// the last named access it was used under. It is embedded in the
// gfx package's Image and Buffer wrappers (see gfx.ImageWithView,
// gfx.Buffer).
type Tracked struct {
	last Access
}

// NewTracked returns a Tracked resource starting in the given access
// state (typically Undefined for a freshly created image, or
// TransferWrite right after an initial upload).
func NewTracked(initial Access) Tracked { return Tracked{last: initial} }

// Last returns the resource's current tracked access.
func (t *Tracked) Last() Access { return t.last }

// Barrier builds the VkImageMemoryBarrier2 moving an image from its
// last tracked access to next, and updates the tracked state to
// next. Callers append the returned barrier to a
// vk.DependencyInfo.ImageMemoryBarriers slice and submit it as part
// of a single vkCmdPipelineBarrier2 call — batching barriers is the
// caller's responsibility, not this package's (see gfx.CmdBuffer
// usage in the render packages).
func (t *Tracked) Barrier(img vk.Image, aspect vk.ImageAspectFlags, next Access) vk.ImageMemoryBarrier2 {
	b := vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        t.last.Stage,
		SrcAccessMask:       t.last.Access,
		DstStageMask:        next.Stage,
		DstAccessMask:       next.Access,
		OldLayout:           t.last.Layout,
		NewLayout:           next.Layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
	t.last = next
	return b
}

// BufferBarrier builds the VkBufferMemoryBarrier2 moving a buffer
// from its last tracked access to next, updating the tracked state.
func (t *Tracked) BufferBarrier(buf vk.Buffer, offset, size vk.DeviceSize, next Access) vk.BufferMemoryBarrier2 {
	b := vk.BufferMemoryBarrier2{
		SType:               vk.StructureTypeBufferMemoryBarrier2,
		SrcStageMask:        t.last.Stage,
		SrcAccessMask:       t.last.Access,
		DstStageMask:        next.Stage,
		DstAccessMask:       next.Access,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf,
		Offset:              offset,
		Size:                size,
	}
	t.last = next
	return b
}

// QueueTransfer builds the release/acquire barrier pair needed to
// hand an image off from one queue family to another (used when a
// transfer-queue upload must be consumed by the graphics queue). The
// release barrier goes on the source queue's command buffer, the
// acquire barrier on the destination queue's; both must name the
// real family indices, not QueueFamilyIgnored, or the ownership
// transfer is a no-op.
func (t *Tracked) QueueTransfer(img vk.Image, aspect vk.ImageAspectFlags, srcFamily, dstFamily uint32, next Access) (release, acquire vk.ImageMemoryBarrier2) {
	release = vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        t.last.Stage,
		SrcAccessMask:       t.last.Access,
		DstStageMask:        vk.PipelineStageFlagBits2BottomOfPipeBit,
		DstAccessMask:       vk.AccessFlagBits2None,
		OldLayout:           t.last.Layout,
		NewLayout:           next.Layout,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
	acquire = vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        vk.PipelineStageFlagBits2TopOfPipeBit,
		SrcAccessMask:       vk.AccessFlagBits2None,
		DstStageMask:        next.Stage,
		DstAccessMask:       next.Access,
		OldLayout:           t.last.Layout,
		NewLayout:           next.Layout,
		SrcQueueFamilyIndex: srcFamily,
		DstQueueFamilyIndex: dstFamily,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     vk.RemainingMipLevels,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
	t.last = next
	return
}

// MipBarrier builds a barrier scoped to a single mip level, used by
// the blit-based mipmap generation loop: level i must finish as a
// TransferRead source before level i+1 can blit from it, while level
// i+1 itself is still a TransferWrite destination.
func MipBarrier(img vk.Image, aspect vk.ImageAspectFlags, level uint32, before, after Access) vk.ImageMemoryBarrier2 {
	return vk.ImageMemoryBarrier2{
		SType:               vk.StructureTypeImageMemoryBarrier2,
		SrcStageMask:        before.Stage,
		SrcAccessMask:       before.Access,
		DstStageMask:        after.Stage,
		DstAccessMask:       after.Access,
		OldLayout:           before.Layout,
		NewLayout:           after.Layout,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               img,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   level,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     vk.RemainingArrayLayers,
		},
	}
}
