package shadow

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// Tunables mirrors the config package's Shadow section (see
// config.Config.Shadow); kept as its own struct so this package does
// not import config directly.
type Tunables struct {
	SplitLambda                           float32
	DepthBiasConstant, DepthBiasSlope, DepthBiasClamp float32
}

// Renderer draws each cascade's depth map with a dedicated pipeline
// using depth-bias to reduce shadow acne, driven by per-cascade
// constant/slope/clamp bias tunables.
type Renderer struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

// NewRenderer builds the shadow depth pipeline. Vertex input is
// positions only (shadow maps don't need normals/texcoords), cull
// mode is front-face (peter-panning trade-off preferred for thin
// geometry), depth compare is Greater to match the renderer's
// reverse-Z convention used for every depth target.
func NewRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, setLayout vk.DescriptorSetLayout) (*Renderer, error) {
	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit),
		Size:       64, // one M4 light-space matrix
	}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         1,
		PSetLayouts:            []vk.DescriptorSetLayout{setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("shadow: CreatePipelineLayout failed: %d", res)
	}

	vert, err := loader.Load("shadow.vert.spv")
	if err != nil {
		return nil, err
	}
	frag, err := loader.Load("shadow.frag.spv")
	if err != nil {
		return nil, err
	}

	factory := gfx.NewPipelineFactory(ctx)
	pipeline, err := factory.CreateGraphicsPipeline(gfx.GraphicsPipelineConfig{
		VertShader: vert, FragShader: frag,
		VertexBindings: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: 12, InputRate: vk.VertexInputRateVertex},
		},
		VertexAttributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
		},
		Topology:     vk.PrimitiveTopologyTriangleList,
		CullMode:     vk.CullModeFrontBit,
		DepthTest:    true,
		DepthWrite:   true,
		DepthCompare: vk.CompareOpGreater,
		DepthFormat:  vk.FormatD32Sfloat,
		Layout:       layout,
		Dynamic: []vk.DynamicState{
			vk.DynamicStateViewport, vk.DynamicStateScissor,
			vk.DynamicStateDepthBias,
		},
	})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}

	return &Renderer{ctx: ctx, pipeline: pipeline, layout: layout}, nil
}

// BeginCascade starts the dynamic-rendering pass for one cascade's
// depth map and sets its depth bias.
func (r *Renderer) BeginCascade(cmd vk.CommandBuffer, c *Cascade, resolution uint32, t Tunables) {
	extent := vk.Extent2D{Width: resolution, Height: resolution}
	gfx.BeginRendering(cmd, extent, nil, &gfx.DepthTarget{
		View: c.Depth.View, Load: vk.AttachmentLoadOpClear, Store: vk.AttachmentStoreOpStore, Clear: 0,
	})
	gfx.SetViewportScissor(cmd, extent)
	vk.CmdSetDepthBias(cmd, t.DepthBiasConstant, t.DepthBiasClamp, t.DepthBiasSlope)
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdPushConstants(cmd, r.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, 64, matPtr(&c.LightViewProj))
}

func (r *Renderer) EndCascade(cmd vk.CommandBuffer) { gfx.EndRendering(cmd) }

// Layout returns the pipeline layout BeginCascade bound, so the caller
// can bind the scene descriptor set (set 0) and issue its own
// drawIndexedIndirectCount between BeginCascade and EndCascade — this
// package only owns the depth-only pipeline, not the scene's vertex/
// index buffers or per-cascade cull output.
func (r *Renderer) Layout() vk.PipelineLayout { return r.layout }

func (r *Renderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.layout, nil)
}
