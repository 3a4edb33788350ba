package blob

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

type meshPush struct {
	DomainMin   [3]float32
	DomainIndex uint32
	DomainMax   [3]float32
	MemberStart uint32
	MemberCount uint32
	_pad        [3]uint32
}

// Renderer owns the per-domain marching-cubes compute pipeline and
// the graphics pipeline that draws the vertices it produces.
type Renderer struct {
	ctx *gfx.Context

	meshLayout vk.PipelineLayout
	meshPipe   vk.Pipeline

	drawLayout vk.PipelineLayout
	drawPipe   vk.Pipeline
}

func NewRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, meshSet, drawSet vk.DescriptorSetLayout, colorFormat, depthFormat vk.Format) (*Renderer, error) {
	r := &Renderer{ctx: ctx}

	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Size: uint32(unsafe.Sizeof(meshPush{}))}
	meshLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts: []vk.DescriptorSetLayout{meshSet}, PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{pushRange},
	}
	if res := vk.CreatePipelineLayout(ctx.Device, &meshLayoutInfo, nil, &r.meshLayout); res != vk.Success {
		return nil, fmt.Errorf("blob: CreatePipelineLayout (mesh) failed: %d", res)
	}
	meshShader, err := loader.Load("blob_mesh.comp.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	r.meshPipe, err = factory.CreateComputePipeline(gfx.ComputePipelineConfig{Shader: meshShader, Layout: r.meshLayout})
	if err != nil {
		return nil, err
	}

	drawLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts: []vk.DescriptorSetLayout{drawSet},
	}
	if res := vk.CreatePipelineLayout(ctx.Device, &drawLayoutInfo, nil, &r.drawLayout); res != vk.Success {
		return nil, fmt.Errorf("blob: CreatePipelineLayout (draw) failed: %d", res)
	}
	vert, err := loader.Load("blob.vert.spv")
	if err != nil {
		return nil, err
	}
	frag, err := loader.Load("blob.frag.spv")
	if err != nil {
		return nil, err
	}
	r.drawPipe, err = factory.CreateGraphicsPipeline(gfx.GraphicsPipelineConfig{
		VertShader: vert, FragShader: frag,
		VertexBindings: []vk.VertexInputBindingDescription{
			{Binding: 0, Stride: vertexStride, InputRate: vk.VertexInputRateVertex},
		},
		VertexAttributes: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 16},
		},
		Topology: vk.PrimitiveTopologyTriangleList, CullMode: vk.CullModeNone,
		DepthTest: true, DepthWrite: true, DepthCompare: vk.CompareOpGreater,
		ColorFormats: []vk.Format{colorFormat}, DepthFormat: depthFormat,
		Layout: r.drawLayout,
		Dynamic: []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor},
	})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, r.drawLayout, nil)
		return nil, err
	}
	return r, nil
}

// DispatchMesh runs the marching-cubes kernel for one domain,
// one workgroup of 8x8x8 threads covering the domain's voxel grid.
func (r *Renderer) DispatchMesh(cmd vk.CommandBuffer, set vk.DescriptorSet, domainIndex uint32, d Domain, memberStart uint32) {
	push := meshPush{
		DomainMin: [3]float32{d.Bounds.Min[0], d.Bounds.Min[1], d.Bounds.Min[2]},
		DomainMax: [3]float32{d.Bounds.Max[0], d.Bounds.Max[1], d.Bounds.Max[2]},
		DomainIndex: domainIndex, MemberStart: memberStart, MemberCount: uint32(len(d.Members)),
	}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, r.meshPipe)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, r.meshLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, r.meshLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	vk.CmdDispatch(cmd, 1, 1, 1)
}

// DrawDomains issues one non-indexed drawIndirect per domain reading
// from the shared vertex buffer, after the mesh compute pass and its
// memory barrier have completed.
func (r *Renderer) DrawDomains(cmd vk.CommandBuffer, set vk.DescriptorSet, vertex vk.Buffer, drawIndirect vk.Buffer, domainCount int) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointGraphics, r.drawPipe)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, r.drawLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{vertex}, []vk.DeviceSize{0})
	for i := 0; i < domainCount; i++ {
		vk.CmdDrawIndirect(cmd, drawIndirect, vk.DeviceSize(i*drawIndirectStride), 1, drawIndirectStride)
	}
}

func (r *Renderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.meshPipe, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.meshLayout, nil)
	vk.DestroyPipeline(r.ctx.Device, r.drawPipe, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.drawLayout, nil)
}

// NewMeshSetLayout builds the marching-cubes compute pass's set:
// binding 0 = the Metaball table, binding 1 = the domain's member
// index list, binding 2 = the output vertex buffer, binding 3 = the
// output per-domain draw-indirect buffer.
func NewMeshSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 2, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 3, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
}

// NewDrawSetLayout builds the draw pass's set: binding 0 is the
// camera view-projection, the only per-frame value the blob vertex
// shader needs beyond the vertices themselves.
func NewDrawSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeUniformBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit)},
	})
}

func newSetLayout(ctx *gfx.Context, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType: vk.StructureTypeDescriptorSetLayoutCreateInfo, BindingCount: uint32(len(bindings)), PBindings: bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &info, nil, &layout); res != vk.Success {
		return 0, fmt.Errorf("blob: CreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}
