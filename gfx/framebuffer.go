package gfx

import vk "github.com/goki/vulkan"

// ColorTarget describes one color attachment for a dynamic-rendering
// pass.
type ColorTarget struct {
	View    vk.ImageView
	Load    vk.AttachmentLoadOp
	Store   vk.AttachmentStoreOp
	Clear   [4]float32
}

// DepthTarget describes the depth attachment for a dynamic-rendering
// pass. Clear is 0 for every reverse-Z pass in this module (the far
// plane, under this renderer's reverse-Z convention).
type DepthTarget struct {
	View  vk.ImageView
	Load  vk.AttachmentLoadOp
	Store vk.AttachmentStoreOp
	Clear float32
}

// BeginRendering begins a dynamic-rendering pass over the given
// color/depth targets within the pixel rectangle described by
// extent. No render pass or framebuffer object is ever constructed;
// this module relies entirely on VK_KHR_dynamic_rendering.
func BeginRendering(cmd vk.CommandBuffer, extent vk.Extent2D, colors []ColorTarget, depth *DepthTarget) {
	colorInfos := make([]vk.RenderingAttachmentInfo, len(colors))
	for i, c := range colors {
		colorInfos[i] = vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   c.View,
			ImageLayout: vk.ImageLayoutColorAttachmentOptimal,
			LoadOp:      c.Load,
			StoreOp:     c.Store,
			ClearValue:  vk.ClearValue{Color: vk.ClearColorValue{Float32: c.Clear}},
		}
	}

	info := vk.RenderingInfo{
		SType:      vk.StructureTypeRenderingInfo,
		RenderArea: vk.Rect2D{Offset: vk.Offset2D{}, Extent: extent},
		LayerCount: 1,
		ColorAttachmentCount: uint32(len(colorInfos)),
		PColorAttachments:    colorInfos,
	}

	if depth != nil {
		depthInfo := vk.RenderingAttachmentInfo{
			SType:       vk.StructureTypeRenderingAttachmentInfo,
			ImageView:   depth.View,
			ImageLayout: vk.ImageLayoutDepthAttachmentOptimal,
			LoadOp:      depth.Load,
			StoreOp:     depth.Store,
			ClearValue:  vk.ClearValue{Depthstencil: vk.ClearDepthStencilValue{Depth: depth.Clear}},
		}
		info.PDepthAttachment = &depthInfo
	}

	vk.CmdBeginRendering(cmd, &info)
}

func EndRendering(cmd vk.CommandBuffer) { vk.CmdEndRendering(cmd) }

// SetViewportScissor sets the dynamic viewport/scissor state every
// pipeline in this module declares as dynamic. The Y-flip needed to
// reconcile Vulkan's Y-down clip space is already baked into
// linear.M4.Persp/PerspInf/Ortho, so this viewport is the ordinary
// top-left-origin, positive-height kind — flipping here too would
// cancel that out and invert every pass a second time.
func SetViewportScissor(cmd vk.CommandBuffer, extent vk.Extent2D) {
	vp := vk.Viewport{
		X: 0, Y: 0,
		Width: float32(extent.Width), Height: float32(extent.Height),
		MinDepth: 0, MaxDepth: 1,
	}
	vk.CmdSetViewport(cmd, 0, 1, []vk.Viewport{vp})
	sc := vk.Rect2D{Offset: vk.Offset2D{}, Extent: extent}
	vk.CmdSetScissor(cmd, 0, 1, []vk.Rect2D{sc})
}
