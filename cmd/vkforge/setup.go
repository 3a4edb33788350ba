package main

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/blob"
	"github.com/vkforge/vkforge/cull"
	"github.com/vkforge/vkforge/frame"
	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/render"
	"github.com/vkforge/vkforge/scene"
	"github.com/vkforge/vkforge/shadow"
	"github.com/vkforge/vkforge/ssao"
)

// hdrColorFormat/sceneDepthFormat/ssaoFormat are fixed across the renderer's
// lifetime (they don't depend on the swapchain's surface format),
// so every pipeline using them can be built once in buildStatic.
const (
	hdrColorFormat = vk.FormatR16g16b16a16Sfloat
	sceneDepthFormat = vk.FormatD32Sfloat
	ssaoFormat = vk.FormatR32Sfloat
)

// buildStatic brings up every resource that does not depend on the
// swapchain's size: shader loader, descriptor set layouts, the
// static descriptor pool, the loaded scene and cubemap, the shadow
// cascades, every pass renderer, and the per-frame ring (frame.Loop).
func (a *app) buildStatic() error {
	a.shaders = gfx.NewShaderLoader(a.ctx, a.cfg.Resources+"/shaders")

	var err error
	if a.sceneSetLayout, err = scene.NewSceneSetLayout(a.ctx); err != nil {
		return err
	}
	if a.cullSetLayout, err = cull.NewSetLayout(a.ctx); err != nil {
		return err
	}
	if a.shadowSetLayout, err = render.NewShadowSetLayout(a.ctx, uint32(a.cfg.Shadow.CascadeCount)); err != nil {
		return err
	}
	if a.ssaoSampleLayout, err = ssao.NewSampleSetLayout(a.ctx); err != nil {
		return err
	}
	if a.ssaoFilterLayout, err = ssao.NewFilterSetLayout(a.ctx); err != nil {
		return err
	}
	if a.ssaoConsumeLayout, err = render.NewSSAOSetLayout(a.ctx); err != nil {
		return err
	}
	if a.skyboxSetLayout, err = render.NewSkyboxSetLayout(a.ctx); err != nil {
		return err
	}
	if a.finalizeSetLayout, err = render.NewFinalizeSetLayout(a.ctx); err != nil {
		return err
	}
	if a.blobMeshLayout, err = blob.NewMeshSetLayout(a.ctx); err != nil {
		return err
	}
	if a.blobDrawLayout, err = blob.NewDrawSetLayout(a.ctx); err != nil {
		return err
	}

	a.staticPool = gfx.NewDescriptorAllocator(a.ctx, map[vk.DescriptorType]float32{
		vk.DescriptorTypeStorageBuffer:        10,
		vk.DescriptorTypeCombinedImageSampler: 10,
		vk.DescriptorTypeStorageImage:         10,
		vk.DescriptorTypeUniformBuffer:        4,
	})

	gltfPath := a.cfg.Resources + "/scene.gltf"
	a.gscene, err = scene.LoadScene(a.ctx, a.staticPool, a.sceneSetLayout, gltfPath)
	if err != nil {
		return fmt.Errorf("vkforge: loading scene: %w", err)
	}

	faces := scene.CubemapFaces{
		a.cfg.Resources + "/skybox/px.png", a.cfg.Resources + "/skybox/nx.png",
		a.cfg.Resources + "/skybox/py.png", a.cfg.Resources + "/skybox/ny.png",
		a.cfg.Resources + "/skybox/pz.png", a.cfg.Resources + "/skybox/nz.png",
	}
	a.cubemap, err = scene.LoadCubemap(a.ctx, faces)
	if err != nil {
		return fmt.Errorf("vkforge: loading cubemap: %w", err)
	}
	a.cubemapSampler, err = a.ctx.CreateSampler(gfx.SamplerOpts{
		Filter: vk.FilterLinear, AddressMode: vk.SamplerAddressModeClampToEdge, MaxLod: 0,
	})
	if err != nil {
		return err
	}
	a.skyboxSet, err = a.staticPool.Allocate(a.skyboxSetLayout, 0)
	if err != nil {
		return err
	}
	writeCombinedImageSampler(a.ctx, a.skyboxSet, 0, a.cubemapSampler, a.cubemap.View, vk.ImageLayoutShaderReadOnlyOptimal)

	a.cascades, err = shadow.NewCascades(a.ctx, a.cfg.Shadow.CascadeCount, uint32(a.cfg.Shadow.Resolution))
	if err != nil {
		return fmt.Errorf("vkforge: creating shadow cascades: %w", err)
	}
	a.shadowSampler, err = a.ctx.CreateSampler(gfx.SamplerOpts{
		Filter: vk.FilterLinear, AddressMode: vk.SamplerAddressModeClampToBorder,
		CompareEnable: true, CompareOp: vk.CompareOpGreaterOrEqual,
	})
	if err != nil {
		return err
	}
	a.shadowSet, err = a.staticPool.Allocate(a.shadowSetLayout, 0)
	if err != nil {
		return err
	}
	a.writeShadowSet()

	a.blobBuffers, err = blob.NewBuffers(a.ctx)
	if err != nil {
		return err
	}

	if err := a.buildRenderers(); err != nil {
		return err
	}

	descriptorRatios := map[vk.DescriptorType]float32{
		vk.DescriptorTypeStorageBuffer: 4,
		vk.DescriptorTypeUniformBuffer: 1,
	}
	a.loop, err = frame.NewLoop(a.ctx, a.surface, uint32(a.cfg.Window.Width), uint32(a.cfg.Window.Height), descriptorRatios)
	if err != nil {
		return fmt.Errorf("vkforge: creating frame loop: %w", err)
	}

	return nil
}

// buildRenderers (re)builds every pipeline-owning renderer. Split out
// from buildStatic so reloadPipelines can call it again after
// destroying the old pipelines, without re-loading the scene,
// cubemap, or shadow cascades.
func (a *app) buildRenderers() error {
	var err error
	if a.culler, err = cull.NewCuller(a.ctx, a.shaders, a.cullSetLayout); err != nil {
		return err
	}
	if a.shadowRenderer, err = shadow.NewRenderer(a.ctx, a.shaders, a.sceneSetLayout); err != nil {
		return err
	}
	if a.ssaoRenderer, err = ssao.NewRenderer(a.ctx, a.shaders, a.ssaoSampleLayout, a.ssaoFilterLayout); err != nil {
		return err
	}
	if a.depthPass, err = render.NewDepthPrePassRenderer(a.ctx, a.shaders, a.sceneSetLayout, sceneDepthFormat); err != nil {
		return err
	}
	if a.pbrPass, err = render.NewPbrSceneRenderer(a.ctx, a.shaders, a.sceneSetLayout, a.shadowSetLayout, a.ssaoConsumeLayout, hdrColorFormat, sceneDepthFormat); err != nil {
		return err
	}
	if a.skyboxPass, err = render.NewSkyboxRenderer(a.ctx, a.shaders, a.skyboxSetLayout, hdrColorFormat); err != nil {
		return err
	}
	if a.finalizePass, err = render.NewFinalizeRenderer(a.ctx, a.shaders, a.finalizeSetLayout); err != nil {
		return err
	}
	if a.blobPass, err = blob.NewRenderer(a.ctx, a.shaders, a.blobMeshLayout, a.blobDrawLayout, hdrColorFormat, sceneDepthFormat); err != nil {
		return err
	}
	return nil
}

// writeShadowSet populates the single combined-image-sampler-array
// binding of the shadow set with every cascade's depth view, all
// sharing the one depth-comparison sampler.
func (a *app) writeShadowSet() {
	count := a.cascades.Count()
	infos := make([]vk.DescriptorImageInfo, count)
	for i := 0; i < count; i++ {
		infos[i] = vk.DescriptorImageInfo{
			Sampler: a.shadowSampler, ImageView: a.cascades.At(i).Depth.View,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}
	}
	write := vk.WriteDescriptorSet{
		SType: vk.StructureTypeWriteDescriptorSet, DstSet: a.shadowSet, DstBinding: 0,
		DescriptorCount: uint32(count), DescriptorType: vk.DescriptorTypeCombinedImageSampler, PImageInfo: infos,
	}
	vk.UpdateDescriptorSets(a.ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

// writeCombinedImageSampler is the one-binding-at-a-time descriptor
// write every screen-sized and static set in this package builds
// from, following scene.GPUScene.writeSet's "build a slice, issue one
// vkUpdateDescriptorSets call" shape but specialized to a single
// binding, since most of this package's sets have only one or two
// bindings each.
func writeCombinedImageSampler(ctx *gfx.Context, set vk.DescriptorSet, binding uint32, sampler vk.Sampler, view vk.ImageView, layout vk.ImageLayout) {
	info := []vk.DescriptorImageInfo{{Sampler: sampler, ImageView: view, ImageLayout: layout}}
	write := vk.WriteDescriptorSet{
		SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: binding,
		DescriptorCount: 1, DescriptorType: vk.DescriptorTypeCombinedImageSampler, PImageInfo: info,
	}
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}

func writeStorageImage(ctx *gfx.Context, set vk.DescriptorSet, binding uint32, view vk.ImageView, layout vk.ImageLayout) {
	info := []vk.DescriptorImageInfo{{ImageView: view, ImageLayout: layout}}
	write := vk.WriteDescriptorSet{
		SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: binding,
		DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageImage, PImageInfo: info,
	}
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
