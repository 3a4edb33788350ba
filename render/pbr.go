package render

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// PbrScenePush carries the few per-frame values cheaper to push than
// to bind: the sun direction/color drive the single directional
// light every material receives in addition to its point/spot lists.
type PbrScenePush struct {
	SunDirection [3]float32
	_pad0        float32
	SunColor     [3]float32
	SunIntensity float32
}

// PbrSceneRenderer draws the lit scene: set 0 is the scene descriptor
// set (vertex/index/section/material/instance storage buffers, the
// bindless image array, point/spot light buffers), set 1 is the
// cascade shadow maps sampled with depth-comparison (greaterOrEqual,
// matching the renderer's reverse-Z convention), set 2 is the
// filtered SSAO term.
type PbrSceneRenderer struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

func NewPbrSceneRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, sceneSet, shadowSet, ssaoSet vk.DescriptorSetLayout, colorFormat, depthFormat vk.Format) (*PbrSceneRenderer, error) {
	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit), Size: uint32(unsafe.Sizeof(PbrScenePush{}))}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 3,
		PSetLayouts:            []vk.DescriptorSetLayout{sceneSet, shadowSet, ssaoSet},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("render: CreatePipelineLayout (pbr) failed: %d", res)
	}
	vert, err := loader.Load("pbr.vert.spv")
	if err != nil {
		return nil, err
	}
	frag, err := loader.Load("pbr.frag.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	pipeline, err := factory.CreateGraphicsPipeline(gfx.GraphicsPipelineConfig{
		VertShader: vert, FragShader: frag,
		VertexBindings: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: 12, InputRate: vk.VertexInputRateVertex}, // position
			{Binding: 1, Stride: 12, InputRate: vk.VertexInputRateVertex}, // normal
			{Binding: 2, Stride: 16, InputRate: vk.VertexInputRateVertex}, // tangent
			{Binding: 3, Stride: 8, InputRate: vk.VertexInputRateVertex},  // texcoord
		},
		VertexAttributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 1, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 2, Binding: 2, Format: vk.FormatR32g32b32a32Sfloat, Offset: 0},
			{Location: 3, Binding: 3, Format: vk.FormatR32g32Sfloat, Offset: 0},
		},
		Topology: vk.PrimitiveTopologyTriangleList, CullMode: vk.CullModeBackBit,
		DepthTest: true, DepthWrite: false, DepthCompare: vk.CompareOpEqual,
		ColorFormats: []vk.Format{colorFormat}, DepthFormat: depthFormat,
		Layout:  layout,
		Dynamic: []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}
	return &PbrSceneRenderer{ctx: ctx, pipeline: pipeline, layout: layout}, nil
}

// SceneVertexBuffers groups the scene's four separate per-attribute
// vertex buffers (positions, normals, tangents, texcoords), bound
// together at Draw time since GPUScene keeps each attribute in its
// own buffer rather than interleaving them.
type SceneVertexBuffers struct {
	Positions, Normals, Tangents, Texcoords vk.Buffer
}

// Draw binds the scene/shadow/ssao descriptor sets and issues one
// drawIndexedIndirectCount against the culler's compacted draw
// stream, reusing the same shared vertex/index buffers and
// draw/count buffers the depth pre-pass drew from. drawOffset and
// countOffset mirror DepthPrePassRenderer.Draw's since both passes
// must read the very same compacted stream out of the same frame's
// transient buffer.
func (r *PbrSceneRenderer) Draw(cmd vk.CommandBuffer, sets [3]vk.DescriptorSet, push PbrScenePush, vertex SceneVertexBuffers, index vk.Buffer, drawBuf, countBuf vk.Buffer, drawOffset, countOffset vk.DeviceSize, maxDraws uint32) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.layout, 0, 3, sets[:], 0, nil)
	vk.CmdPushConstants(cmd, r.layout, vk.ShaderStageFlags(vk.ShaderStageFragmentBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	buffers := []vk.Buffer{vertex.Positions, vertex.Normals, vertex.Tangents, vertex.Texcoords}
	offsets := []vk.DeviceSize{0, 0, 0, 0}
	vk.CmdBindVertexBuffers(cmd, 0, 4, buffers, offsets)
	vk.CmdBindIndexBuffer(cmd, index, 0, vk.IndexTypeUint32)
	vk.CmdDrawIndexedIndirectCount(cmd, drawBuf, drawOffset, countBuf, countOffset, maxDraws, 20)
}

func (r *PbrSceneRenderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.layout, nil)
}
