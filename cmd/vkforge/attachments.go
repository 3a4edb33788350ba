package main

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// screenResources are every image and descriptor set sized to the
// current swapchain extent: the depth pre-pass/PBR depth buffer, the
// HDR color target the PBR/skybox/blob passes draw into, the two
// SSAO ping-pong targets, and the descriptor sets that bind them.
// Rebuilt whenever the swapchain is recreated (see app.rebuildScreenIfNeeded).
type screenResources struct {
	width, height uint32

	depth    *gfx.ImageWithView
	hdrColor *gfx.ImageWithView
	ssaoA    *gfx.ImageWithView // raw AO after DispatchSample, filtered-V output
	ssaoB    *gfx.ImageWithView // filtered-H output

	sampler vk.Sampler // shared linear clamp sampler for depth/AO reads

	ssaoSampleSet  vk.DescriptorSet
	ssaoFilterSetH vk.DescriptorSet
	ssaoFilterSetV vk.DescriptorSet
	ssaoConsumeSet vk.DescriptorSet

	finalizeSets []vk.DescriptorSet // one per swapchain image
}

// buildScreen (re)creates every screen-sized resource for the
// window's current width/height, allocating fresh descriptor sets
// from the static pool. Called once at startup and again whenever
// frame.Loop reports a new swapchain.
func (a *app) buildScreen() error {
	width, height := a.loopExtent()

	s := &screenResources{width: width, height: height}

	var err error
	s.depth, err = a.ctx.CreateImage(gfx.ImageOpts{
		Format: sceneDepthFormat, Width: width, Height: height,
		Usage:  vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit,
		Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	})
	if err != nil {
		return fmt.Errorf("vkforge: creating depth attachment: %w", err)
	}

	s.hdrColor, err = a.ctx.CreateImage(gfx.ImageOpts{
		Format: hdrColorFormat, Width: width, Height: height,
		Usage:  vk.ImageUsageColorAttachmentBit | vk.ImageUsageSampledBit | vk.ImageUsageStorageBit,
		Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
	})
	if err != nil {
		return fmt.Errorf("vkforge: creating HDR color attachment: %w", err)
	}

	for _, img := range []**gfx.ImageWithView{&s.ssaoA, &s.ssaoB} {
		*img, err = a.ctx.CreateImage(gfx.ImageOpts{
			Format: ssaoFormat, Width: width, Height: height,
			Usage:  vk.ImageUsageStorageBit | vk.ImageUsageSampledBit,
			Aspect: vk.ImageAspectFlags(vk.ImageAspectColorBit),
		})
		if err != nil {
			return fmt.Errorf("vkforge: creating SSAO target: %w", err)
		}
	}

	s.sampler, err = a.ctx.CreateSampler(gfx.SamplerOpts{
		Filter: vk.FilterLinear, AddressMode: vk.SamplerAddressModeClampToEdge,
	})
	if err != nil {
		return err
	}

	if s.ssaoSampleSet, err = a.staticPool.Allocate(a.ssaoSampleLayout, 0); err != nil {
		return err
	}
	if s.ssaoFilterSetH, err = a.staticPool.Allocate(a.ssaoFilterLayout, 0); err != nil {
		return err
	}
	if s.ssaoFilterSetV, err = a.staticPool.Allocate(a.ssaoFilterLayout, 0); err != nil {
		return err
	}
	if s.ssaoConsumeSet, err = a.staticPool.Allocate(a.ssaoConsumeLayout, 0); err != nil {
		return err
	}

	writeCombinedImageSampler(a.ctx, s.ssaoSampleSet, 0, s.sampler, s.depth.View, vk.ImageLayoutShaderReadOnlyOptimal)
	writeStorageImage(a.ctx, s.ssaoSampleSet, 1, s.ssaoA.View, vk.ImageLayoutGeneral)

	writeCombinedImageSampler(a.ctx, s.ssaoFilterSetH, 0, s.sampler, s.depth.View, vk.ImageLayoutShaderReadOnlyOptimal)
	writeCombinedImageSampler(a.ctx, s.ssaoFilterSetH, 1, s.sampler, s.ssaoA.View, vk.ImageLayoutShaderReadOnlyOptimal)
	writeStorageImage(a.ctx, s.ssaoFilterSetH, 2, s.ssaoB.View, vk.ImageLayoutGeneral)

	writeCombinedImageSampler(a.ctx, s.ssaoFilterSetV, 0, s.sampler, s.depth.View, vk.ImageLayoutShaderReadOnlyOptimal)
	writeCombinedImageSampler(a.ctx, s.ssaoFilterSetV, 1, s.sampler, s.ssaoB.View, vk.ImageLayoutShaderReadOnlyOptimal)
	writeStorageImage(a.ctx, s.ssaoFilterSetV, 2, s.ssaoA.View, vk.ImageLayoutGeneral)

	writeCombinedImageSampler(a.ctx, s.ssaoConsumeSet, 0, s.sampler, s.ssaoA.View, vk.ImageLayoutShaderReadOnlyOptimal)

	s.finalizeSets = make([]vk.DescriptorSet, len(a.loop.Swapchain.Views))
	for i, view := range a.loop.Swapchain.Views {
		set, err := a.staticPool.Allocate(a.finalizeSetLayout, 0)
		if err != nil {
			return err
		}
		writeCombinedImageSampler(a.ctx, set, 0, s.sampler, s.hdrColor.View, vk.ImageLayoutShaderReadOnlyOptimal)
		writeStorageImage(a.ctx, set, 1, view, vk.ImageLayoutGeneral)
		s.finalizeSets[i] = set
	}

	a.screen = s
	return nil
}

// loopExtent returns the frame loop's swapchain extent if a loop
// exists, or the configured window size while a.loop is still nil.
func (a *app) loopExtent() (uint32, uint32) {
	if a.loop != nil {
		return a.loop.Swapchain.Extent.Width, a.loop.Swapchain.Extent.Height
	}
	return uint32(a.cfg.Window.Width), uint32(a.cfg.Window.Height)
}

// rebuildScreenIfNeeded recreates every screen-sized resource when
// the swapchain's extent no longer matches the one screenResources
// was built for (frame.Loop recreated the swapchain after a resize).
func (a *app) rebuildScreenIfNeeded() {
	width, height := a.loopExtent()
	if width == a.screen.width && height == a.screen.height {
		return
	}
	a.screen.Destroy(a.ctx)
	if err := a.buildScreen(); err != nil {
		panic("vkforge: rebuilding screen resources failed: " + err.Error())
	}
}

func (s *screenResources) Destroy(ctx *gfx.Context) {
	s.depth.Destroy(ctx)
	s.hdrColor.Destroy(ctx)
	s.ssaoA.Destroy(ctx)
	s.ssaoB.Destroy(ctx)
	vk.DestroySampler(ctx.Device, s.sampler, nil)
	// Descriptor sets are reclaimed implicitly: they came from
	// app.staticPool, which is never reset mid-run, so the stale
	// handles here simply stop being referenced; the pool itself is
	// destroyed wholesale in app.Destroy.
}
