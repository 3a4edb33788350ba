package render

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// NewSkyboxSetLayout builds the cubemap set: binding 0 is the
// skybox's combined cube sampler, sampled only by the fragment stage.
func NewSkyboxSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	})
}

// NewFinalizeSetLayout builds the tonemap pass's set: binding 0 is
// the HDR color target (sampled), binding 1 is the swapchain image
// view the tonemapped result is written into (storage).
func NewFinalizeSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
		{Binding: 1, DescriptorType: vk.DescriptorTypeStorageImage, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit)},
	})
}

// NewShadowSetLayout builds the PBR pass's shadow-sampling set:
// binding 0 is a combined-image-sampler array of every cascade's
// depth map, sized to maxCascades and sampled with depth-comparison
// (the sampler itself carries CompareOp=GreaterOrEqual).
func NewShadowSetLayout(ctx *gfx.Context, maxCascades uint32) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: maxCascades, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	})
}

// NewSSAOSetLayout builds the PBR pass's ambient-occlusion set:
// binding 0 is the filtered AO term from the second ssao.Renderer
// filter pass.
func NewSSAOSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	return newSetLayout(ctx, []vk.DescriptorSetLayoutBinding{
		{Binding: 0, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: 1, StageFlags: vk.ShaderStageFlags(vk.ShaderStageFragmentBit)},
	})
}

func newSetLayout(ctx *gfx.Context, bindings []vk.DescriptorSetLayoutBinding) (vk.DescriptorSetLayout, error) {
	info := vk.DescriptorSetLayoutCreateInfo{
		SType: vk.StructureTypeDescriptorSetLayoutCreateInfo, BindingCount: uint32(len(bindings)), PBindings: bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &info, nil, &layout); res != vk.Success {
		return 0, fmt.Errorf("render: CreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}
