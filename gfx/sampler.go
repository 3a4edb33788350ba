package gfx

import (
	"fmt"

	vk "github.com/goki/vulkan"
)

// SamplerOpts configures CreateSampler. CompareEnable selects
// depth-comparison sampling (used by the cascade shadow maps, which
// compare with GreaterOrEqual to match the renderer's reverse-Z
// convention); it is mutually exclusive with anisotropic filtering
// in practice, though nothing here enforces that.
type SamplerOpts struct {
	Filter         vk.Filter
	AddressMode    vk.SamplerAddressMode
	AnisotropyMax  float32
	CompareEnable  bool
	CompareOp      vk.CompareOp
	MaxLod         float32
}

// CreateSampler builds a sampler for the given options. Mip mode is
// always linear; the renderer has no use for nearest-mip sampling.
func (c *Context) CreateSampler(o SamplerOpts) (vk.Sampler, error) {
	info := vk.SamplerCreateInfo{
		SType:                   vk.StructureTypeSamplerCreateInfo,
		MagFilter:               o.Filter,
		MinFilter:               o.Filter,
		MipmapMode:              vk.SamplerMipmapModeLinear,
		AddressModeU:            o.AddressMode,
		AddressModeV:            o.AddressMode,
		AddressModeW:            o.AddressMode,
		AnisotropyEnable:        vk.Bool32(boolToInt(o.AnisotropyMax > 0)),
		MaxAnisotropy:           o.AnisotropyMax,
		CompareEnable:           vk.Bool32(boolToInt(o.CompareEnable)),
		CompareOp:               o.CompareOp,
		MinLod:                  0,
		MaxLod:                  o.MaxLod,
		BorderColor:             vk.BorderColorFloatOpaqueWhite,
	}
	var s vk.Sampler
	if res := vk.CreateSampler(c.Device, &info, nil, &s); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateSampler failed: %d", res)
	}
	return s, nil
}

func boolToInt(b bool) uint32 {
	if b {
		return 1
	}
	return 0
}
