// Package cull implements GPU-driven frustum culling: a compute pass
// that tests every scene instance's bounding box against the current
// view frustum and compacts the surviving sections into an indirect
// draw stream consumed by the depth pre-pass and PBR pass.
//
// Grounded on original_source/renderer/FrustumCuller.cpp/.h: the
// plane-extraction and positive-vertex test there are reproduced in
// linear.ExtractFrustum/Frustum.ContainsAABB; this package owns the
// GPU-side dispatch and the transient output buffer layout.
package cull

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/linear"
)

const workgroupSize = 64

// drawCommand mirrors VkDrawIndexedIndirectCommand's field layout,
// written by the culling compute shader for every section that
// survives the test.
type drawCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

const drawCommandSize = 20 // 5 * 4 bytes, matches drawCommand's layout

// Culler runs the frustum-culling compute pass and owns the pipeline
// used to do it.
type Culler struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
	setLayout vk.DescriptorSetLayout

	paused    bool
	pausedVP  linear.M4
}

// NewCuller builds the culling compute pipeline. setLayout describes
// the compute shader's bindings: binding 0 = input Section records
// (storage buffer), binding 1 = input Instance records (storage
// buffer), binding 2 = output draw command + count buffer (storage
// buffer).
func NewCuller(ctx *gfx.Context, loader *gfx.ShaderLoader, setLayout vk.DescriptorSetLayout) (*Culler, error) {
	pushRange := vk.PushConstantRange{
		StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit),
		Offset:     0,
		Size:       uint32(unsafe.Sizeof(pushConstants{})),
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
		return nil, fmt.Errorf("cull: CreatePipelineLayout failed: %d", res)
	}

	shader, err := loader.Load("cull.comp.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	pipeline, err := factory.CreateComputePipeline(gfx.ComputePipelineConfig{Shader: shader, Layout: layout})
	if err != nil {
		return nil, err
	}

	return &Culler{ctx: ctx, pipeline: pipeline, layout: layout, setLayout: setLayout}, nil
}

// pushConstants is the per-dispatch data passed to the culling
// shader: the view-projection planes plus the section count.
type pushConstants struct {
	Planes       [6][4]float32
	SectionCount uint32
	_pad         [3]uint32
}

// PauseCulling freezes the culling frustum at its last value — used
// for a debug "detach culling camera" mode, which lets the fly
// camera move freely while the culling frustum stays fixed so
// culling behavior becomes visible.
func (c *Culler) PauseCulling(paused bool, currentVP *linear.M4) {
	if paused && !c.paused {
		c.pausedVP = *currentVP
	}
	c.paused = paused
}

// Dispatch records the culling compute pass over sectionCount
// sections, writing compacted VkDrawIndexedIndirectCommand entries
// and a trailing atomic counter into the output buffer bound at
// binding 2 of set (allocated by the caller, typically from a
// gfx.TransientBufferAllocator — see scene.Scene.Sections for section
// count, frame.Loop for the allocator lifetime). The uint32 counter
// sits at CountBufferOffset(sectionCount), immediately after the last
// draw command slot (sectionCount * drawCommandSize).
func (c *Culler) Dispatch(cmd vk.CommandBuffer, set vk.DescriptorSet, vp *linear.M4, sectionCount uint32) {
	frustumVP := vp
	if c.paused {
		frustumVP = &c.pausedVP
	}
	frustum := linear.ExtractFrustum(frustumVP)

	var push pushConstants
	for i, p := range frustum {
		push.Planes[i] = [4]float32{p.N[0], p.N[1], p.N[2], p.D}
	}
	push.SectionCount = sectionCount

	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, c.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, c.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, c.layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0,
		uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))

	groups := (sectionCount + workgroupSize - 1) / workgroupSize
	if groups == 0 {
		groups = 1
	}
	vk.CmdDispatch(cmd, groups, 1, 1)
}

// CountBufferOffset returns the byte offset of the atomic draw-count
// counter within a culling output buffer sized for sectionCount
// sections: the count sits immediately after every possible draw
// command slot.
func CountBufferOffset(sectionCount uint32) vk.DeviceSize {
	return vk.DeviceSize(sectionCount) * drawCommandSize
}

// OutputBufferSize returns the total byte size needed for a culling
// output buffer covering sectionCount sections (draw commands plus
// the trailing count).
func OutputBufferSize(sectionCount uint32) vk.DeviceSize {
	return CountBufferOffset(sectionCount) + 4
}

func (c *Culler) Destroy() {
	vk.DestroyPipeline(c.ctx.Device, c.pipeline, nil)
	vk.DestroyPipelineLayout(c.ctx.Device, c.layout, nil)
}

// NewSetLayout builds the descriptor set layout NewCuller expects:
// binding 0 = Section storage buffer, binding 1 = Instance storage
// buffer, binding 2 = the transient output draw/count buffer, all
// compute-stage only.
func NewSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 2, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType: vk.StructureTypeDescriptorSetLayoutCreateInfo, BindingCount: uint32(len(bindings)), PBindings: bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &info, nil, &layout); res != vk.Success {
		return 0, fmt.Errorf("cull: CreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}
