package scene

import (
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
)

// MaxBindlessImages bounds the variable-count image array in the
// scene descriptor set; SceneLoader writes only as many descriptors
// as the loaded scene actually has images (len(GPUScene.Images)),
// the rest are left unbound and never indexed (DescriptorBindingPartiallyBound).
const MaxBindlessImages = 4096

// sceneSetBindings enumerates the fixed scene descriptor set layout:
// every pass that draws scene geometry (DepthPrePassRenderer,
// shadow.Renderer, PbrSceneRenderer) shares this one layout even
// though only the PBR pass's fragment stage actually reads bindings
// 1 and 5.
const (
	bindingSections = iota
	bindingMaterials
	bindingInstances
	bindingPointLights
	bindingSpotLights
	bindingImages
)

// NewSceneSetLayout builds the fixed scene descriptor set layout
// shared by every pass that draws scene geometry.
func NewSceneSetLayout(ctx *gfx.Context) (vk.DescriptorSetLayout, error) {
	stage := vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit | vk.ShaderStageComputeBit)
	bindings := []vk.DescriptorSetLayoutBinding{
		{Binding: bindingSections, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: stage},
		{Binding: bindingMaterials, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: stage},
		{Binding: bindingInstances, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: stage},
		{Binding: bindingPointLights, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: stage},
		{Binding: bindingSpotLights, DescriptorType: vk.DescriptorTypeStorageBuffer, DescriptorCount: 1, StageFlags: stage},
		{Binding: bindingImages, DescriptorType: vk.DescriptorTypeCombinedImageSampler, DescriptorCount: MaxBindlessImages, StageFlags: stage},
	}
	flags := make([]vk.DescriptorBindingFlags, len(bindings))
	flags[bindingImages] = vk.DescriptorBindingFlags(vk.DescriptorBindingPartiallyBoundBit | vk.DescriptorBindingVariableDescriptorCountBit)
	flagsInfo := vk.DescriptorSetLayoutBindingFlagsCreateInfo{
		SType:         vk.StructureTypeDescriptorSetLayoutBindingFlagsCreateInfo,
		BindingCount:  uint32(len(flags)),
		PBindingFlags: flags,
	}
	info := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		PNext:        unsafe.Pointer(&flagsInfo),
		BindingCount: uint32(len(bindings)),
		PBindings:    bindings,
	}
	var layout vk.DescriptorSetLayout
	if res := vk.CreateDescriptorSetLayout(ctx.Device, &info, nil, &layout); res != vk.Success {
		return 0, fmt.Errorf("scene: CreateDescriptorSetLayout failed: %d", res)
	}
	return layout, nil
}

// GPUScene is the device-resident counterpart of a loaded Scene: the
// five shared vertex/index buffers, the section/material/instance/
// light storage buffers, the bindless image table, the persistent
// (uncull) draw-indirect buffer, and the set 0 descriptor set every
// scene-drawing pass binds, which holds the storage buffers and the
// image table.
type GPUScene struct {
	ctx *gfx.Context

	Positions *gfx.Buffer
	Normals   *gfx.Buffer
	Tangents  *gfx.Buffer
	Texcoords *gfx.Buffer
	Indices   *gfx.Buffer

	Sections    *gfx.Buffer
	Materials   *gfx.Buffer
	Instances   *gfx.Buffer
	PointLights *gfx.Buffer
	SpotLights  *gfx.Buffer

	// Draws holds one VkDrawIndexedIndirectCommand per section,
	// firstInstance = section index. No pass draws from it: every
	// scene draw uses the frustum culler's output, and there is no
	// culling-disabled draw path.
	Draws *gfx.Buffer

	Images []*gfx.ImageWithView
	imageSampler vk.Sampler

	Set vk.DescriptorSet

	Scene Scene
}

// LoadScene runs the full scene-loading pipeline: parse the glTF
// document, upload every buffer and image, and write the scene
// descriptor set, blocking until all transfers complete.
func LoadScene(ctx *gfx.Context, pool *gfx.DescriptorAllocator, layout vk.DescriptorSetLayout, path string) (*GPUScene, error) {
	result, err := Load(path)
	if err != nil {
		return nil, err
	}

	staging, err := NewStagingUploader(ctx)
	if err != nil {
		return nil, err
	}
	defer staging.Destroy()

	g := &GPUScene{ctx: ctx, Scene: result.Scene}

	if err := staging.beginUnsynchronized(); err != nil {
		return nil, err
	}

	mesh := result.Mesh
	g.Positions, err = g.uploadVertices(staging, asBytes(mesh.Positions), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	g.Normals, err = g.uploadVertices(staging, asBytes(mesh.Normals), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	g.Tangents, err = g.uploadVertices(staging, tangentBytes(mesh.Tangents), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	g.Texcoords, err = g.uploadVertices(staging, texcoordBytes(mesh.TexCoords), vk.BufferUsageVertexBufferBit)
	if err != nil {
		return nil, err
	}
	g.Indices, err = g.uploadVertices(staging, indexBytes(mesh.Indices), vk.BufferUsageIndexBufferBit)
	if err != nil {
		return nil, err
	}

	g.Sections, err = g.uploadStorage(staging, sectionBytes(result.Scene.Sections))
	if err != nil {
		return nil, err
	}
	g.Materials, err = g.uploadStorage(staging, materialBytes(result.Scene.Materials))
	if err != nil {
		return nil, err
	}
	g.Instances, err = g.uploadStorage(staging, instanceBytes(result.Scene.Instances))
	if err != nil {
		return nil, err
	}
	g.PointLights, err = g.uploadStorage(staging, pointLightBytes(result.Scene.Points))
	if err != nil {
		return nil, err
	}
	g.SpotLights, err = g.uploadStorage(staging, spotLightBytes(result.Scene.Spots))
	if err != nil {
		return nil, err
	}
	g.Draws, err = g.uploadStorage(staging, drawCommandBytes(result.Scene.Sections), vk.BufferUsageIndirectBufferBit)
	if err != nil {
		return nil, err
	}

	if err := staging.submit(); err != nil {
		return nil, err
	}

	imgUploader := NewImageUploader(ctx, staging)
	g.Images = make([]*gfx.ImageWithView, 0, len(result.Images))
	for _, src := range result.Images {
		img, err := imgUploader.Queue(src)
		if err != nil {
			return nil, fmt.Errorf("scene: queuing image %q: %w", src.Path, err)
		}
		g.Images = append(g.Images, img)
	}

	g.imageSampler, err = ctx.CreateSampler(gfx.SamplerOpts{
		Filter: vk.FilterLinear, AddressMode: vk.SamplerAddressModeRepeat,
		AnisotropyMax: 16, MaxLod: 16,
	})
	if err != nil {
		return nil, err
	}

	g.Set, err = pool.Allocate(layout, uint32(len(g.Images)))
	if err != nil {
		return nil, err
	}
	g.writeSet()

	return g, nil
}

func (g *GPUScene) uploadVertices(staging *StagingUploader, data []byte, usage vk.BufferUsageFlagBits) (*gfx.Buffer, error) {
	return g.uploadDeviceLocal(staging, data, usage|vk.BufferUsageTransferDstBit)
}

func (g *GPUScene) uploadStorage(staging *StagingUploader, data []byte, extra ...vk.BufferUsageFlagBits) (*gfx.Buffer, error) {
	usage := vk.BufferUsageStorageBufferBit | vk.BufferUsageTransferDstBit
	for _, e := range extra {
		usage |= e
	}
	return g.uploadDeviceLocal(staging, data, usage)
}

func (g *GPUScene) uploadDeviceLocal(staging *StagingUploader, data []byte, usage vk.BufferUsageFlagBits) (*gfx.Buffer, error) {
	n := len(data)
	if n == 0 {
		n = 4
	}
	buf, err := g.ctx.CreateBuffer(vk.DeviceSize(n), usage, vk.MemoryPropertyDeviceLocalBit)
	if err != nil {
		return nil, err
	}
	staging.UploadBuffer(buf.Handle, 0, data)
	return buf, nil
}

// writeSet populates every binding of g.Set from the buffers and
// images just uploaded.
func (g *GPUScene) writeSet() {
	bufferInfo := func(b *gfx.Buffer) []vk.DescriptorBufferInfo {
		return []vk.DescriptorBufferInfo{{Buffer: b.Handle, Offset: 0, Range: vk.DeviceSize(vk.WholeSize)}}
	}
	writes := []vk.WriteDescriptorSet{
		{SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingSections, DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: bufferInfo(g.Sections)},
		{SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingMaterials, DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: bufferInfo(g.Materials)},
		{SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingInstances, DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: bufferInfo(g.Instances)},
		{SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingPointLights, DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: bufferInfo(g.PointLights)},
		{SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingSpotLights, DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: bufferInfo(g.SpotLights)},
	}
	if len(g.Images) > 0 {
		imageInfos := make([]vk.DescriptorImageInfo, len(g.Images))
		for i, img := range g.Images {
			imageInfos[i] = vk.DescriptorImageInfo{
				Sampler: g.imageSampler, ImageView: img.View, ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
			}
		}
		writes = append(writes, vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: g.Set, DstBinding: bindingImages,
			DescriptorCount: uint32(len(imageInfos)), DescriptorType: vk.DescriptorTypeCombinedImageSampler, PImageInfo: imageInfos,
		})
	}
	vk.UpdateDescriptorSets(g.ctx.Device, uint32(len(writes)), writes, 0, nil)
}

// SectionCount is how many sections the frustum culler and both
// indirect draw paths should dispatch/issue over.
func (g *GPUScene) SectionCount() uint32 { return uint32(len(g.Scene.Sections)) }

func (g *GPUScene) Destroy() {
	for _, img := range g.Images {
		img.Destroy(g.ctx)
	}
	if g.imageSampler != 0 {
		vk.DestroySampler(g.ctx.Device, g.imageSampler, nil)
	}
	for _, b := range []*gfx.Buffer{g.Positions, g.Normals, g.Tangents, g.Texcoords, g.Indices,
		g.Sections, g.Materials, g.Instances, g.PointLights, g.SpotLights, g.Draws} {
		if b != nil {
			b.Destroy(g.ctx)
		}
	}
}

func asBytes[T any](s []T) []byte {
	if len(s) == 0 {
		return nil
	}
	var zero T
	size := int(unsafe.Sizeof(zero))
	return unsafe.Slice((*byte)(unsafe.Pointer(&s[0])), len(s)*size)
}

func tangentBytes(t [][4]float32) []byte {
	if len(t) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&t[0])), len(t)*16)
}

func texcoordBytes(t [][2]float32) []byte {
	if len(t) == 0 {
		return nil
	}
	return unsafe.Slice((*byte)(unsafe.Pointer(&t[0])), len(t)*8)
}

func indexBytes(idx []uint32) []byte { return asBytes(idx) }

func sectionBytes(s []Section) []byte    { return asBytes(s) }
func materialBytes(m []Material) []byte  { return asBytes(m) }
func instanceBytes(i []Instance) []byte  { return asBytes(i) }
func pointLightBytes(p []PointLight) []byte { return asBytes(p) }
func spotLightBytes(s []SpotLight) []byte   { return asBytes(s) }

// drawCommand mirrors cull.drawCommand's field layout exactly
// (VkDrawIndexedIndirectCommand), built once from the Sections table
// into GPUScene.Draws.
type drawCommand struct {
	IndexCount    uint32
	InstanceCount uint32
	FirstIndex    uint32
	VertexOffset  int32
	FirstInstance uint32
}

func drawCommandBytes(sections []Section) []byte {
	cmds := make([]drawCommand, len(sections))
	for i, s := range sections {
		cmds[i] = drawCommand{
			IndexCount: s.IndexCount, InstanceCount: 1, FirstIndex: s.FirstIndex,
			VertexOffset: s.VertexOffset, FirstInstance: uint32(i),
		}
	}
	return asBytes(cmds)
}
