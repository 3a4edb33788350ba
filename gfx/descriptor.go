package gfx

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"
)

// DescriptorAllocator is a pool-of-pools descriptor allocator: it
// grows by appending fresh VkDescriptorPool objects rather than
// resizing an existing one (Vulkan pools cannot grow in place), and
// resets every pool in one pass at the start of each frame so
// per-frame descriptor sets don't need individual frees.
//
// Mirrors a DescHeap/DescTable pool-of-pools split, generalized here
// into a straightforward grow-by-append strategy.
type DescriptorAllocator struct {
	ctx   *Context
	sizes []vk.DescriptorPoolSize
	used  []vk.DescriptorPool
	free  []vk.DescriptorPool
	cur   vk.DescriptorPool
}

// NewDescriptorAllocator creates an allocator that sizes each new
// pool proportionally to ratios (descriptor type -> count per 1000
// sets), matching the ratio-table style common to pool-of-pools
// allocators in the ecosystem.
func NewDescriptorAllocator(ctx *Context, ratios map[vk.DescriptorType]float32) *DescriptorAllocator {
	sizes := make([]vk.DescriptorPoolSize, 0, len(ratios))
	for t, r := range ratios {
		sizes = append(sizes, vk.DescriptorPoolSize{Type: t, DescriptorCount: uint32(r * 1000)})
	}
	return &DescriptorAllocator{ctx: ctx, sizes: sizes}
}

func (d *DescriptorAllocator) newPool() (vk.DescriptorPool, error) {
	create := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateUpdateAfterBindBit),
		MaxSets:       1000,
		PoolSizeCount: uint32(len(d.sizes)),
		PPoolSizes:    d.sizes,
	}
	var p vk.DescriptorPool
	if res := vk.CreateDescriptorPool(d.ctx.Device, &create, nil, &p); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateDescriptorPool failed: %d", res)
	}
	return p, nil
}

func (d *DescriptorAllocator) grab() (vk.DescriptorPool, error) {
	if d.cur != 0 {
		return d.cur, nil
	}
	if n := len(d.free); n > 0 {
		d.cur = d.free[n-1]
		d.free = d.free[:n-1]
		return d.cur, nil
	}
	p, err := d.newPool()
	if err != nil {
		return 0, err
	}
	d.cur = p
	return p, nil
}

// Allocate returns a descriptor set of the given layout, retrying
// against a fresh pool if the current one is exhausted
// (VK_ERROR_OUT_OF_POOL_MEMORY / VK_ERROR_FRAGMENTED_POOL).
func (d *DescriptorAllocator) Allocate(layout vk.DescriptorSetLayout, variableCount uint32) (vk.DescriptorSet, error) {
	for attempt := 0; attempt < 2; attempt++ {
		pool, err := d.grab()
		if err != nil {
			return 0, err
		}

		info := vk.DescriptorSetAllocateInfo{
			SType:              vk.StructureTypeDescriptorSetAllocateInfo,
			DescriptorPool:     pool,
			DescriptorSetCount: 1,
			PSetLayouts:        []vk.DescriptorSetLayout{layout},
		}
		if variableCount > 0 {
			variableInfo := &vk.DescriptorSetVariableDescriptorCountAllocateInfo{
				SType:              vk.StructureTypeDescriptorSetVariableDescriptorCountAllocateInfo,
				DescriptorSetCount: 1,
				PDescriptorCounts:  []uint32{variableCount},
			}
			info.PNext = unsafe.Pointer(variableInfo)
		}

		var set vk.DescriptorSet
		res := vk.AllocateDescriptorSets(d.ctx.Device, &info, &set)
		if res == vk.Success {
			return set, nil
		}
		if res == vk.ErrorOutOfPoolMemory || res == vk.ErrorFragmentedPool {
			d.used = append(d.used, pool)
			d.cur = 0
			continue
		}
		return 0, fmt.Errorf("gfx: AllocateDescriptorSets failed: %d", res)
	}
	return 0, fmt.Errorf("gfx: descriptor allocation exhausted after pool growth")
}

// ResetFrame resets every pool used this frame back into the free
// list, ready for the next frame's allocations. Called once per
// frame, after the previous use of the returned sets has retired
// (see frame.Loop).
func (d *DescriptorAllocator) ResetFrame() {
	if d.cur != 0 {
		d.used = append(d.used, d.cur)
		d.cur = 0
	}
	for _, p := range d.used {
		vk.ResetDescriptorPool(d.ctx.Device, p, 0)
		d.free = append(d.free, p)
	}
	d.used = d.used[:0]
}

func (d *DescriptorAllocator) Destroy() {
	for _, p := range d.free {
		vk.DestroyDescriptorPool(d.ctx.Device, p, nil)
	}
	for _, p := range d.used {
		vk.DestroyDescriptorPool(d.ctx.Device, p, nil)
	}
	if d.cur != 0 {
		vk.DestroyDescriptorPool(d.ctx.Device, d.cur, nil)
	}
}
