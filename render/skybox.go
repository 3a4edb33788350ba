package render

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/linear"
)

// skyboxVertices are 36 hard-coded positions forming a unit cube
// drawn from the inside.
var skyboxVertices = [36][3]float32{
	{-1, 1, -1}, {-1, -1, -1}, {1, -1, -1}, {1, -1, -1}, {1, 1, -1}, {-1, 1, -1},
	{-1, -1, 1}, {-1, -1, -1}, {-1, 1, -1}, {-1, 1, -1}, {-1, 1, 1}, {-1, -1, 1},
	{1, -1, -1}, {1, -1, 1}, {1, 1, 1}, {1, 1, 1}, {1, 1, -1}, {1, -1, -1},
	{-1, -1, 1}, {-1, 1, 1}, {1, 1, 1}, {1, 1, 1}, {1, -1, 1}, {-1, -1, 1},
	{-1, 1, -1}, {1, 1, -1}, {1, 1, 1}, {1, 1, 1}, {-1, 1, 1}, {-1, 1, -1},
	{-1, -1, -1}, {-1, -1, 1}, {1, -1, -1}, {1, -1, -1}, {-1, -1, 1}, {1, -1, 1},
}

// SkyboxRenderer draws the background cubemap: depth test/write
// disabled, no culling (the cube is drawn from its inside), and the
// camera's translation stripped from the pushed view-projection
// matrix so the sky never translates with the viewer.
type SkyboxRenderer struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
	vertex   *gfx.Buffer
}

func NewSkyboxRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, cubemapSet vk.DescriptorSetLayout, colorFormat vk.Format) (*SkyboxRenderer, error) {
	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit), Size: 64}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts:            []vk.DescriptorSetLayout{cubemapSet},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("render: CreatePipelineLayout (skybox) failed: %d", res)
	}
	vert, err := loader.Load("skybox.vert.spv")
	if err != nil {
		return nil, err
	}
	frag, err := loader.Load("skybox.frag.spv")
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
		Topology: vk.PrimitiveTopologyTriangleList, CullMode: vk.CullModeNone,
		DepthTest: false, DepthWrite: false,
		ColorFormats: []vk.Format{colorFormat},
		Layout:       layout,
		Dynamic:      []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}

	vertex, err := ctx.CreateBuffer(vk.DeviceSize(len(skyboxVertices)*12), vk.BufferUsageVertexBufferBit,
		vk.MemoryPropertyHostVisibleBit|vk.MemoryPropertyHostCoherentBit)
	if err != nil {
		vk.DestroyPipeline(ctx.Device, pipeline, nil)
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}
	var data unsafe.Pointer
	if res := vk.MapMemory(ctx.Device, vertex.Memory, 0, vertex.Size, 0, &data); res != vk.Success {
		vertex.Destroy(ctx)
		vk.DestroyPipeline(ctx.Device, pipeline, nil)
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, fmt.Errorf("render: MapMemory (skybox vertex) failed: %d", res)
	}
	dst := unsafe.Slice((*byte)(data), len(skyboxVertices)*12)
	src := unsafe.Slice((*byte)(unsafe.Pointer(&skyboxVertices[0])), len(skyboxVertices)*12)
	copy(dst, src)
	vk.UnmapMemory(ctx.Device, vertex.Memory)

	return &SkyboxRenderer{ctx: ctx, pipeline: pipeline, layout: layout, vertex: vertex}, nil
}

// Draw pushes projView with its translation column zeroed, binds the
// cube's vertex buffer, and draws its 36 hard-coded vertices.
func (r *SkyboxRenderer) Draw(cmd vk.CommandBuffer, set vk.DescriptorSet, projView *linear.M4) {
	stripped := *projView
	stripped.TranslateView(-stripped[3][0], -stripped[3][1], -stripped[3][2])

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, r.layout, vk.ShaderStageFlags(vk.ShaderStageVertexBit), 0, 64, unsafe.Pointer(&stripped))
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{r.vertex.Handle}, []vk.DeviceSize{0})
	vk.CmdDraw(cmd, uint32(len(skyboxVertices)), 1, 0, 0)
}

func (r *SkyboxRenderer) Destroy() {
	r.vertex.Destroy(r.ctx)
	vk.DestroyPipeline(r.ctx.Device, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.layout, nil)
}
