// Package render implements the per-pass scene renderers: the
// frustum-culled depth pre-pass, the PBR main pass, the skybox, and
// the AgX tone-mapping finalize pass. Each renderer owns its own
// pipeline(s) and a Draw/Dispatch method the frame loop calls in
// sequence; cross-pass synchronization (barriers between passes) is
// the frame loop's responsibility, driven by gfxstate.Tracked.
package render

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// DepthPrePassRenderer draws depth-only, indexed-indirect, from a
// compacted draw stream a cull.Culler has already written. Running
// depth first lets SSAO sample real scene depth before the PBR pass
// shades anything, and lets the PBR pass early-out with an Equal
// depth test instead of re-writing depth. The caller dispatches
// culling once per frame and passes the same draw/count buffer to
// both this pass and PbrSceneRenderer.Draw, since both need to walk
// an identical compacted section list.
type DepthPrePassRenderer struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

func NewDepthPrePassRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, sceneSet vk.DescriptorSetLayout, depthFormat vk.Format) (*DepthPrePassRenderer, error) {
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts: []vk.DescriptorSetLayout{sceneSet},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("render: CreatePipelineLayout (depth) failed: %d", res)
	}
	vert, err := loader.Load("depth.vert.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	pipeline, err := factory.CreateGraphicsPipeline(gfx.GraphicsPipelineConfig{
		VertShader: vert,
		VertexBindings: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: 12, InputRate: vk.VertexInputRateVertex},
		},
		VertexAttributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		},
		Topology: vk.PrimitiveTopologyTriangleList, CullMode: vk.CullModeBackBit,
		DepthTest: true, DepthWrite: true, DepthCompare: vk.CompareOpGreater,
		DepthFormat: depthFormat, Layout: layout,
		Dynamic: []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}
	return &DepthPrePassRenderer{ctx: ctx, pipeline: pipeline, layout: layout}, nil
}

// Draw binds the shared scene vertex/index buffers and issues one
// drawIndexedIndirectCount reading the compacted draw stream a prior
// cull.Culler.Dispatch call produced. drawOffset/countOffset locate
// that stream within drawBuf/countBuf, which the caller may share
// with other draws inside one transient frame buffer rather than
// dedicating a whole buffer to it.
func (r *DepthPrePassRenderer) Draw(cmd vk.CommandBuffer, sceneSet vk.DescriptorSet, vertex, index vk.Buffer, drawBuf, countBuf vk.Buffer, drawOffset, countOffset vk.DeviceSize, maxDraws uint32) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.layout, 0, 1, []vk.DescriptorSet{sceneSet}, 0, nil)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vertex}, []vk.DeviceSize{0})
	vk.CmdBindIndexBuffer(cmd, index, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexedIndirectCount(cmd, drawBuf, drawOffset, countBuf, countOffset, maxDraws, 20)
}

func (r *DepthPrePassRenderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.layout, nil)
}
