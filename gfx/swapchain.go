package gfx

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfxstate"
	"github.com/vkforge/vkforge/logx"
)

// ErrSwapchainOutOfDate is returned by Swapchain.Acquire and
// Swapchain.Present when the swapchain must be recreated (window
// resize, surface change) before rendering can continue.
var ErrSwapchainOutOfDate = fmt.Errorf("gfx: swapchain out of date")

// Swapchain wraps a VkSwapchainKHR and its per-image resources. Present
// mode is chosen in preference order mailbox > fifo-relaxed > fifo >
// immediate, and the image count is minImageCount+1, lowered to
// maxImageCount when the surface sets a nonzero maximum below it.
type Swapchain struct {
	ctx     *Context
	surface vk.Surface
	handle  vk.Swapchain

	Format     vk.Format
	Extent     vk.Extent2D
	Images     []vk.Image
	Views      []vk.ImageView
	ViewsSRGB  []vk.ImageView // sRGB-reinterpreted views; never populated, only Views are created
	State      []gfxstate.Tracked
}

var presentModePreference = []vk.PresentMode{
	vk.PresentModeMailbox,
	vk.PresentModeFifoRelaxed,
	vk.PresentModeFifo,
	vk.PresentModeImmediate,
}

// NewSwapchain creates a swapchain for surface sized width x height.
// old, if non-zero, is the previous swapchain to retire (passed via
// VkSwapchainCreateInfoKHR.oldSwapchain so the implementation can
// reuse resources across a resize).
func NewSwapchain(ctx *Context, surface vk.Surface, width, height uint32, old vk.Swapchain) (*Swapchain, error) {
	var caps vk.SurfaceCapabilities
	vk.GetPhysicalDeviceSurfaceCapabilities(ctx.PhysicalDevice, surface, &caps)
	caps.Deref()

	var fmtCount uint32
	vk.GetPhysicalDeviceSurfaceFormats(ctx.PhysicalDevice, surface, &fmtCount, nil)
	formats := make([]vk.SurfaceFormat, fmtCount)
	vk.GetPhysicalDeviceSurfaceFormats(ctx.PhysicalDevice, surface, &fmtCount, formats)
	chosenFormat := formats[0]
	chosenFormat.Deref()
	for _, f := range formats {
		f.Deref()
		if f.Format == vk.FormatB8g8r8a8Srgb && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			chosenFormat = f
			break
		}
	}

	var modeCount uint32
	vk.GetPhysicalDeviceSurfacePresentModes(ctx.PhysicalDevice, surface, &modeCount, nil)
	modes := make([]vk.PresentMode, modeCount)
	vk.GetPhysicalDeviceSurfacePresentModes(ctx.PhysicalDevice, surface, &modeCount, modes)
	chosenMode := vk.PresentModeFifo
	for _, pref := range presentModePreference {
		if containsMode(modes, pref) {
			chosenMode = pref
			break
		}
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	extent := vk.Extent2D{Width: width, Height: height}
	if caps.CurrentExtent.Width != 0xFFFFFFFF {
		extent = caps.CurrentExtent
	}

	create := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          surface,
		MinImageCount:    imageCount,
		ImageFormat:      chosenFormat.Format,
		ImageColorSpace:  chosenFormat.ColorSpace,
		ImageExtent:      extent,
		ImageArrayLayers: 1,
		// StorageBit lets FinalizeRenderer's tonemap compute pass
		// write directly into the swapchain image instead of a
		// blit from a separate LDR target.
		ImageUsage: vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit) | vk.ImageUsageFlags(vk.ImageUsageTransferDstBit) | vk.ImageUsageFlags(vk.ImageUsageStorageBit),
		ImageSharingMode: vk.SharingModeExclusive,
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      chosenMode,
		Clipped:          vk.True,
		OldSwapchain:     old,
	}

	var sc vk.Swapchain
	if res := vk.CreateSwapchain(ctx.Device, &create, nil, &sc); res != vk.Success {
		return nil, fmt.Errorf("gfx: CreateSwapchain failed: %d", res)
	}

	var n uint32
	vk.GetSwapchainImages(ctx.Device, sc, &n, nil)
	images := make([]vk.Image, n)
	vk.GetSwapchainImages(ctx.Device, sc, &n, images)

	views := make([]vk.ImageView, n)
	state := make([]gfxstate.Tracked, n)
	for i, img := range images {
		v, err := makeImageView(ctx, img, chosenFormat.Format, vk.ImageAspectFlags(vk.ImageAspectColorBit))
		if err != nil {
			return nil, err
		}
		views[i] = v
		state[i] = gfxstate.NewTracked(gfxstate.Undefined)
	}

	logx.L().Info("swapchain created",
		"format", chosenFormat.Format, "mode", chosenMode, "images", n,
		"extent", fmt.Sprintf("%dx%d", extent.Width, extent.Height))

	return &Swapchain{
		ctx: ctx, surface: surface, handle: sc,
		Format: chosenFormat.Format, Extent: extent,
		Images: images, Views: views, State: state,
	}, nil
}

// Handle returns the underlying VkSwapchainKHR, for passing as
// oldSwapchain to NewSwapchain during recreation.
func (s *Swapchain) Handle() vk.Swapchain { return s.handle }

func containsMode(modes []vk.PresentMode, m vk.PresentMode) bool {
	for _, x := range modes {
		if x == m {
			return true
		}
	}
	return false
}

// Acquire waits for and returns the index of the next presentable
// image, signaling imageAvailable when it becomes available. It
// returns ErrSwapchainOutOfDate when the caller must recreate the
// swapchain before proceeding.
func (s *Swapchain) Acquire(imageAvailable vk.Semaphore) (uint32, error) {
	var idx uint32
	res := vk.AcquireNextImage(s.ctx.Device, s.handle, ^uint64(0), imageAvailable, vk.Fence(vk.NullHandle), &idx)
	switch res {
	case vk.Success, vk.Suboptimal:
		return idx, nil
	case vk.ErrorOutOfDate:
		return 0, ErrSwapchainOutOfDate
	default:
		return 0, fmt.Errorf("gfx: AcquireNextImage failed: %d", res)
	}
}

// Present submits a present request for imageIndex, waiting on
// renderFinished. It returns ErrSwapchainOutOfDate on both
// VK_ERROR_OUT_OF_DATE_KHR and VK_SUBOPTIMAL_KHR: the frame loop
// treats either as "recreate before the next frame" (see
// frame.Loop).
func (s *Swapchain) Present(queue vk.Queue, renderFinished vk.Semaphore, imageIndex uint32) error {
	idx := imageIndex
	sc := s.handle
	info := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{renderFinished},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{sc},
		PImageIndices:      []uint32{idx},
	}
	res := vk.QueuePresent(queue, &info)
	switch res {
	case vk.Success:
		return nil
	case vk.Suboptimal, vk.ErrorOutOfDate:
		return ErrSwapchainOutOfDate
	default:
		return fmt.Errorf("gfx: QueuePresent failed: %d", res)
	}
}

// Destroy destroys the swapchain's image views and the swapchain
// itself. It does not destroy s.Images: those are owned by the
// swapchain and freed implicitly by vkDestroySwapchainKHR.
func (s *Swapchain) Destroy() {
	for _, v := range s.Views {
		vk.DestroyImageView(s.ctx.Device, v, nil)
	}
	vk.DestroySwapchain(s.ctx.Device, s.handle, nil)
}

func makeImageView(ctx *Context, img vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error) {
	create := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask:     aspect,
			BaseMipLevel:   0,
			LevelCount:     1,
			BaseArrayLayer: 0,
			LayerCount:     1,
		},
	}
	var v vk.ImageView
	if res := vk.CreateImageView(ctx.Device, &create, nil, &v); res != vk.Success {
		return 0, fmt.Errorf("gfx: CreateImageView failed: %d", res)
	}
	return v, nil
}
