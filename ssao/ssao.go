// Package ssao implements screen-space ambient occlusion: a compute
// pass that reconstructs view-space position/normal from the depth
// buffer and samples a rotated slice/sample kernel around each
// pixel, followed by a separable two-pass cross-bilateral filter
// that blurs the raw AO term without bleeding across depth/normal
// discontinuities.
package ssao

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// Tunables mirrors config.Config.SSAO.
type Tunables struct {
	Slices, Samples     int32
	Radius, Bias        float32
	Sharpness, Exponent float32
}

type samplePush struct {
	InvProjScale, InvProjOffset [2]float32
	Radius, Bias                float32
	Slices, Samples             int32
	FrameIndex                  uint32
	_pad                        uint32
}

type filterPush struct {
	Direction  [2]float32
	Sharpness  float32
	Exponent   float32
}

// Renderer owns the sample-pass and filter-pass compute pipelines.
type Renderer struct {
	ctx *gfx.Context

	sampleLayout vk.PipelineLayout
	samplePipe   vk.Pipeline

	filterLayout vk.PipelineLayout
	filterPipe   vk.Pipeline
}

func NewRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, sampleSet, filterSet vk.DescriptorSetLayout) (*Renderer, error) {
	r := &Renderer{ctx: ctx}

	samplePush := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Size: uint32(unsafe.Sizeof(samplePush{}))}
	sampleLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts: []vk.DescriptorSetLayout{sampleSet}, PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{samplePush},
	}
	if res := vk.CreatePipelineLayout(ctx.Device, &sampleLayoutInfo, nil, &r.sampleLayout); res != vk.Success {
		return nil, fmt.Errorf("ssao: CreatePipelineLayout (sample) failed: %d", res)
	}
	sampleShader, err := loader.Load("ssao_sample.comp.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	r.samplePipe, err = factory.CreateComputePipeline(gfx.ComputePipelineConfig{Shader: sampleShader, Layout: r.sampleLayout})
	if err != nil {
		return nil, err
	}

	filterPushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Size: uint32(unsafe.Sizeof(filterPush{}))}
	filterLayoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts: []vk.DescriptorSetLayout{filterSet}, PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{filterPushRange},
	}
	if res := vk.CreatePipelineLayout(ctx.Device, &filterLayoutInfo, nil, &r.filterLayout); res != vk.Success {
		return nil, fmt.Errorf("ssao: CreatePipelineLayout (filter) failed: %d", res)
	}
	filterShader, err := loader.Load("ssao_filter.comp.spv")
	if err != nil {
		return nil, err
	}
	r.filterPipe, err = factory.CreateComputePipeline(gfx.ComputePipelineConfig{Shader: filterShader, Layout: r.filterLayout})
	if err != nil {
		return nil, err
	}
	return r, nil
}

// InverseProjectionParams computes the (scale, offset) pair used by
// the sample-pass shader to reconstruct view-space position from
// depth and screen UV without a full matrix inverse: for a
// symmetric perspective projection, view.xy = (uv*2-1) *
// invProjScale * viewZ + invProjOffset * viewZ, with
// invProjScale = (1/proj[0][0], 1/proj[1][1]).
func InverseProjectionParams(proj00, proj11 float32) (scale, offset [2]float32) {
	return [2]float32{1 / proj00, 1 / proj11}, [2]float32{0, 0}
}

// DispatchSample runs the sample pass over a width x height target,
// one workgroup per 8x8 pixel tile.
func (r *Renderer) DispatchSample(cmd vk.CommandBuffer, set vk.DescriptorSet, width, height uint32, t Tunables, invScale, invOffset [2]float32, frameIndex uint32) {
	push := samplePush{
		InvProjScale: invScale, InvProjOffset: invOffset,
		Radius: t.Radius, Bias: t.Bias, Slices: t.Slices, Samples: t.Samples,
		FrameIndex: frameIndex,
	}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, r.samplePipe)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, r.sampleLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, r.sampleLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	vk.CmdDispatch(cmd, ceilDiv(width, 8), ceilDiv(height, 8), 1)
}

// DispatchFilter runs one separable pass of the cross-bilateral
// filter in the given direction ({1,0} horizontal, {0,1} vertical);
// the caller issues two passes with a barrier between them.
func (r *Renderer) DispatchFilter(cmd vk.CommandBuffer, set vk.DescriptorSet, width, height uint32, t Tunables, direction [2]float32) {
	push := filterPush{Direction: direction, Sharpness: t.Sharpness, Exponent: t.Exponent}
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, r.filterPipe)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, r.filterLayout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, r.filterLayout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(push)), unsafe.Pointer(&push))
	vk.CmdDispatch(cmd, ceilDiv(width, 8), ceilDiv(height, 8), 1)
}

func ceilDiv(a, b uint32) uint32 { return (a + b - 1) / b }

// NewSampleSetLayout builds the sample-pass descriptor set layout:
// binding 0 = the depth pre-pass's depth buffer (sampled), binding 1
// = the raw AO output image (storage).
func NewSampleSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
}

// NewFilterSetLayout builds the (shared, rewritten per direction)
// filter-pass descriptor set layout: binding 0 = depth (sampled, used
// to weight the bilateral kernel), binding 1 = the AO term from the
// previous pass (sampled), binding 2 = this pass's output (storage).
func NewFilterSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 2, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
}

func newSetLayout(ctx *gfx.Context, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType: vk.StructureTypeDescriptorSetLayoutCreateInfo, BindingCount: uint32(len(bindings)), PBindings: bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &info, nil, &layout); res != vk.Success {
		return 0, fmt.Errorf("ssao: CreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}

func (r *Renderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.samplePipe, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.sampleLayout, nil)
	vk.DestroyPipeline(r.ctx.Device, r.filterPipe, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.filterLayout, nil)
}
