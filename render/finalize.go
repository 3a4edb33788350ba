package render

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// TonemapParams mirrors config.Config.Tonemap, pushed directly to
// the AgX finalize compute shader.
type TonemapParams struct {
	EVMin, EVMax     float32
	MidGray          float32
	Offset, Slope    float32
	Power, Saturation float32
}

// FinalizeRenderer is the last pass of the frame: a compute shader
// that reads the HDR color target, applies the AgX tonemap operator,
// and writes linear SDR color directly into the swapchain image.
type FinalizeRenderer struct {
	ctx      *gfx.Context
	pipeline vk.Pipeline
	layout   vk.PipelineLayout
}

func NewFinalizeRenderer(ctx *gfx.Context, loader *gfx.ShaderLoader, set vk.DescriptorSetLayout) (*FinalizeRenderer, error) {
	pushRange := vk.PushConstantRange{StageFlags: vk.ShaderStageFlags(vk.ShaderStageComputeBit), Size: uint32(unsafe.Sizeof(TonemapParams{}))}
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType: vk.StructureTypePipelineLayoutCreateInfo, SetLayoutCount: 1,
		PSetLayouts:            []vk.DescriptorSetLayout{set},
		PushConstantRangeCount: 1,
		PPushConstantRanges:    []vk.PushConstantRange{pushRange},
	}
	var layout vk.PipelineLayout
	if res := vk.CreatePipelineLayout(ctx.Device, &layoutInfo, nil, &layout); res != vk.Success {
		return nil, fmt.Errorf("render: CreatePipelineLayout (finalize) failed: %d", res)
	}
	shader, err := loader.Load("finalize.comp.spv")
	if err != nil {
		return nil, err
	}
	factory := gfx.NewPipelineFactory(ctx)
	pipeline, err := factory.CreateComputePipeline(gfx.ComputePipelineConfig{Shader: shader, Layout: layout})
	if err != nil {
		vk.DestroyPipelineLayout(ctx.Device, layout, nil)
		return nil, err
	}
	return &FinalizeRenderer{ctx: ctx, pipeline: pipeline, layout: layout}, nil
}

// Dispatch runs the tonemap compute pass over the full swapchain
// extent, one workgroup per 8x8 pixel tile.
func (r *FinalizeRenderer) Dispatch(cmd vk.CommandBuffer, set vk.DescriptorSet, width, height uint32, p TonemapParams) {
	vk.CmdBindPipeline(cmd, vk.PipelineBindPointCompute, r.pipeline)
	vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointCompute, r.layout, 0, 1, []vk.DescriptorSet{set}, 0, nil)
	vk.CmdPushConstants(cmd, r.layout, vk.ShaderStageFlags(vk.ShaderStageComputeBit), 0, uint32(unsafe.Sizeof(p)), unsafe.Pointer(&p))
	vk.CmdDispatch(cmd, ceilDiv8(width), ceilDiv8(height), 1)
}

func ceilDiv8(n uint32) uint32 { return (n + 7) / 8 }

func (r *FinalizeRenderer) Destroy() {
	vk.DestroyPipeline(r.ctx.Device, r.pipeline, nil)
	vk.DestroyPipelineLayout(r.ctx.Device, r.layout, nil)
}
