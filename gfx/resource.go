package gfx

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfxstate"
)

// Buffer is a device allocation plus its tracked synchronization
// state, a concrete struct rather than an interface boundary since
// this module targets exactly one backend.
type Buffer struct {
	Handle vk.Buffer
	Memory vk.DeviceMemory
	Size   vk.DeviceSize
	State  gfxstate.Tracked
}

// CreateBuffer allocates a buffer of size bytes with the given usage
// flags, backed by memory satisfying memProps (e.g.
// DeviceLocalBit for GPU-only storage, HostVisibleBit|HostCoherentBit
// for persistently-mapped staging).
func (c *Context) CreateBuffer(size vk.DeviceSize, usage vk.BufferUsageFlagBits, memProps vk.MemoryPropertyFlagBits) (*Buffer, error) {
	create := vk.BufferCreateInfo{
		SType:       vk.StructureTypeBufferCreateInfo,
		Size:        size,
		Usage:       vk.BufferUsageFlags(usage),
		SharingMode: vk.SharingModeExclusive,
	}
	var buf vk.Buffer
	if res := vk.CreateBuffer(c.Device, &create, nil, &buf); res != vk.Success {
		return nil, fmt.Errorf("gfx: CreateBuffer failed: %d", res)
	}

	var req vk.MemoryRequirements
	vk.GetBufferMemoryRequirements(c.Device, buf, &req)
	req.Deref()

	idx, err := c.findMemoryType(req.MemoryTypeBits, memProps)
	if err != nil {
		vk.DestroyBuffer(c.Device, buf, nil)
		return nil, err
	}

	alloc := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  req.Size,
		MemoryTypeIndex: idx,
	}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(c.Device, &alloc, nil, &mem); res != vk.Success {
		vk.DestroyBuffer(c.Device, buf, nil)
		return nil, fmt.Errorf("gfx: AllocateMemory failed: %d", res)
	}
	vk.BindBufferMemory(c.Device, buf, mem, 0)

	return &Buffer{Handle: buf, Memory: mem, Size: size, State: gfxstate.NewTracked(gfxstate.Undefined)}, nil
}

func (b *Buffer) Destroy(c *Context) {
	vk.DestroyBuffer(c.Device, b.Handle, nil)
	vk.FreeMemory(c.Device, b.Memory, nil)
}

// ImageWithView pairs an allocated image with its default view and
// the mip count computed for its dimensions, the single object every
// caller in this module actually needs.
type ImageWithView struct {
	Handle vk.Image
	Memory vk.DeviceMemory
	View   vk.ImageView
	Format vk.Format
	Extent vk.Extent3D
	Levels uint32
	Layers uint32
	State  gfxstate.Tracked
}

// MipLevels returns the number of mip levels a full chain for a
// width x height image would have: floor(log2(max(w,h))) + 1.
func MipLevels(width, height uint32) uint32 {
	m := width
	if height > m {
		m = height
	}
	return uint32(math.Floor(math.Log2(float64(m)))) + 1
}

// ImageOpts configures CreateImage.
type ImageOpts struct {
	Format   vk.Format
	Width    uint32
	Height   uint32
	Layers   uint32
	Levels   uint32 // 0 means "one level, no mip chain"
	Usage    vk.ImageUsageFlagBits
	Aspect   vk.ImageAspectFlags
	ViewType vk.ImageViewType
	Cube     bool
}

// CreateImage allocates a device-local image and its default view.
func (c *Context) CreateImage(o ImageOpts) (*ImageWithView, error) {
	levels := o.Levels
	if levels == 0 {
		levels = 1
	}
	layers := o.Layers
	if layers == 0 {
		layers = 1
	}

	var flags vk.ImageCreateFlags
	if o.Cube {
		flags = vk.ImageCreateFlags(vk.ImageCreateCubeCompatibleBit)
	}

	create := vk.ImageCreateInfo{
		SType:       vk.StructureTypeImageCreateInfo,
		Flags:       flags,
		ImageType:   vk.ImageType2d,
		Format:      o.Format,
		Extent:      vk.Extent3D{Width: o.Width, Height: o.Height, Depth: 1},
		MipLevels:   levels,
		ArrayLayers: layers,
		Samples:     vk.SampleCount1Bit,
		Tiling:      vk.ImageTilingOptimal,
		Usage:       vk.ImageUsageFlags(o.Usage),
		SharingMode: vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	var img vk.Image
	if res := vk.CreateImage(c.Device, &create, nil, &img); res != vk.Success {
		return nil, fmt.Errorf("gfx: CreateImage failed: %d", res)
	}

	var req vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.Device, img, &req)
	req.Deref()
	idx, err := c.findMemoryType(req.MemoryTypeBits, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		vk.DestroyImage(c.Device, img, nil)
		return nil, err
	}
	alloc := vk.MemoryAllocateInfo{SType: vk.StructureTypeMemoryAllocateInfo, AllocationSize: req.Size, MemoryTypeIndex: idx}
	var mem vk.DeviceMemory
	if res := vk.AllocateMemory(c.Device, &alloc, nil, &mem); res != vk.Success {
		vk.DestroyImage(c.Device, img, nil)
		return nil, fmt.Errorf("gfx: AllocateMemory failed: %d", res)
	}
	vk.BindImageMemory(c.Device, img, mem, 0)

	viewType := o.ViewType
	if viewType == 0 {
		viewType = vk.ImageViewType2d
	}
	view := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: viewType,
		Format:   o.Format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     o.Aspect,
			BaseMipLevel:   0,
			LevelCount:     levels,
			BaseArrayLayer: 0,
			LayerCount:     layers,
		},
	}
	var iv vk.ImageView
	if res := vk.CreateImageView(c.Device, &view, nil, &iv); res != vk.Success {
		vk.DestroyImage(c.Device, img, nil)
		vk.FreeMemory(c.Device, mem, nil)
		return nil, fmt.Errorf("gfx: CreateImageView failed: %d", res)
	}

	return &ImageWithView{
		Handle: img, Memory: mem, View: iv, Format: o.Format,
		Extent: vk.Extent3D{Width: o.Width, Height: o.Height, Depth: 1},
		Levels: levels, Layers: layers,
		State: gfxstate.NewTracked(gfxstate.Undefined),
	}, nil
}

func (i *ImageWithView) Destroy(c *Context) {
	vk.DestroyImageView(c.Device, i.View, nil)
	vk.DestroyImage(c.Device, i.Handle, nil)
	vk.FreeMemory(c.Device, i.Memory, nil)
}

func (c *Context) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlagBits) (uint32, error) {
	c.MemProps.Deref()
	for i := uint32(0); i < c.MemProps.MemoryTypeCount; i++ {
		mt := c.MemProps.MemoryTypes[i]
		mt.Deref()
		if typeBits&(1<<i) != 0 && mt.PropertyFlags&vk.MemoryPropertyFlags(props) == vk.MemoryPropertyFlags(props) {
			return i, nil
		}
	}
	return 0, fmt.Errorf("gfx: no memory type satisfies requirements (bits=%#x props=%v)", typeBits, props)
}
