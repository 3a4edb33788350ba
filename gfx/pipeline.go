package gfx

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// GraphicsPipelineConfig is the declarative description of a
// graphics pipeline: the PipelineFactory turns it into a concrete
// VkPipeline using dynamic rendering (no VkRenderPass/VkFramebuffer
// objects), so the config instead names the color/depth formats the
// pipeline will be used with.
//
// Bundles the programmable/fixed-function state behind a single
// struct passed to pipeline creation; this module drops any
// RenderPass/Subpass fields (meaningless under dynamic rendering)
// and adds ColorFormats/DepthFormat in their place.
type GraphicsPipelineConfig struct {
	VertShader vk.ShaderModule
	FragShader vk.ShaderModule

	VertexBindings   []vk.VertexInputBindingDescription
	VertexAttributes []vk.VertexInputAttributeDescription

	Topology vk.PrimitiveTopology

	CullMode  vk.CullModeFlagBits
	Clockwise bool
	Wireframe bool

	DepthTest    bool
	DepthWrite   bool
	DepthCompare vk.CompareOp // reverse-Z pipelines use CompareOpGreater

	Blend bool

	ColorFormats []vk.Format
	DepthFormat  vk.Format

	Layout vk.PipelineLayout

	// Dynamic enumerates which pipeline states are left dynamic
	// (set per-draw via vkCmdSet*) rather than baked in; viewport
	// and scissor are always dynamic since every renderer stage in
	// this module resizes with the swapchain.
	Dynamic []vk.DynamicState
}

// PipelineFactory builds pipelines from GraphicsPipelineConfig/
// ComputePipelineConfig values, the "config as data" approach this
// module favors over a builder API: every field of the Vulkan state
// a renderer stage needs is visible at the call site as a struct
// literal.
type PipelineFactory struct {
	ctx *Context
}

func NewPipelineFactory(ctx *Context) *PipelineFactory { return &PipelineFactory{ctx: ctx} }

func (f *PipelineFactory) CreateGraphicsPipeline(cfg GraphicsPipelineConfig) (vk.Pipeline, error) {
	stages := []vk.PipelineShaderStageCreateInfo{
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageVertexBit, Module: cfg.VertShader, PName: cstr("main")},
		{SType: vk.StructureTypePipelineShaderStageCreateInfo, Stage: vk.ShaderStageFragmentBit, Module: cfg.FragShader, PName: cstr("main")},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                           vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount:   uint32(len(cfg.VertexBindings)),
		PVertexBindingDescriptions:      cfg.VertexBindings,
		VertexAttributeDescriptionCount: uint32(len(cfg.VertexAttributes)),
		PVertexAttributeDescriptions:    cfg.VertexAttributes,
	}

	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: cfg.Topology,
	}

	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	polygonMode := vk.PolygonModeFill
	if cfg.Wireframe {
		polygonMode = vk.PolygonModeLine
	}
	frontFace := vk.FrontFaceCounterClockwise
	if cfg.Clockwise {
		frontFace = vk.FrontFaceClockwise
	}
	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: polygonMode,
		CullMode:    vk.CullModeFlags(cfg.CullMode),
		FrontFace:   frontFace,
		LineWidth:   1,
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:            vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthTestEnable:  vkBool(cfg.DepthTest),
		DepthWriteEnable: vkBool(cfg.DepthWrite),
		DepthCompareOp:   cfg.DepthCompare,
	}

	blendAttachments := make([]vk.PipelineColorBlendAttachmentState, len(cfg.ColorFormats))
	for i := range blendAttachments {
		blendAttachments[i] = vk.PipelineColorBlendAttachmentState{
			BlendEnable: vkBool(cfg.Blend),
			ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit |
				vk.ColorComponentBBit | vk.ColorComponentABit),
			SrcColorBlendFactor: vk.BlendFactorSrcAlpha,
			DstColorBlendFactor: vk.BlendFactorOneMinusSrcAlpha,
			ColorBlendOp:        vk.BlendOpAdd,
			SrcAlphaBlendFactor: vk.BlendFactorOne,
			DstAlphaBlendFactor: vk.BlendFactorZero,
			AlphaBlendOp:        vk.BlendOpAdd,
		}
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: uint32(len(blendAttachments)),
		PAttachments:    blendAttachments,
	}

	dynamic := cfg.Dynamic
	if len(dynamic) == 0 {
		dynamic = []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	}
	dynState := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamic)),
		PDynamicStates:    dynamic,
	}

	renderingInfo := vk.PipelineRenderingCreateInfo{
		SType:                vk.StructureTypePipelineRenderingCreateInfo,
		ColorAttachmentCount: uint32(len(cfg.ColorFormats)),
		PColorAttachmentFormats: cfg.ColorFormats,
		DepthAttachmentFormat:   cfg.DepthFormat,
	}

	create := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		PNext:               pnextOf(&renderingInfo),
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynState,
		Layout:              cfg.Layout,
	}

	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateGraphicsPipelines(f.ctx.Device, vk.PipelineCache(vk.NullHandle), 1, []vk.GraphicsPipelineCreateInfo{create}, nil, pipelines); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateGraphicsPipelines failed: %d", res)
	}
	return pipelines[0], nil
}

// ComputePipelineConfig is the declarative description of a compute
// pipeline.
type ComputePipelineConfig struct {
	Shader vk.ShaderModule
	Layout vk.PipelineLayout
}

func (f *PipelineFactory) CreateComputePipeline(cfg ComputePipelineConfig) (vk.Pipeline, error) {
	create := vk.ComputePipelineCreateInfo{
		SType: vk.StructureTypeComputePipelineCreateInfo,
		Stage: vk.PipelineShaderStageCreateInfo{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageComputeBit,
			Module: cfg.Shader,
			PName:  cstr("main"),
		},
		Layout: cfg.Layout,
	}
	pipelines := make([]vk.Pipeline, 1)
	if res := vk.CreateComputePipelines(f.ctx.Device, vk.PipelineCache(vk.NullHandle), 1, []vk.ComputePipelineCreateInfo{create}, nil, pipelines); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateComputePipelines failed: %d", res)
	}
	return pipelines[0], nil
}

func vkBool(b bool) vk.Bool32 {
	if b {
		return vk.True
	}
	return vk.False
}
