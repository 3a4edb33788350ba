package main

import (
	"encoding/binary"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/blob"
	"github.com/vkforge/vkforge/cull"
	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/gfxstate"
	"github.com/vkforge/vkforge/linear"
	"github.com/vkforge/vkforge/render"
	"github.com/vkforge/vkforge/shadow"
	"github.com/vkforge/vkforge/ssao"
)

// defaultSun is used when the loaded document defines no
// KHR_lights_punctual directional light (scene.Scene.SunDirection
// nil), so the PBR pass always has something to shade by.
var (
	defaultSunDirection = linear.V3{-0.4, -1, -0.3}
	defaultSunColor     = [3]float32{1, 1, 1}
	defaultSunIntensity = float32(3)
)

// record implements frame.RecordFunc: it builds the camera and light
// matrices for this frame and issues every pass in sequence — main
// camera cull, per-cascade shadow cull, depth pre-pass, per-cascade
// shadow draw, SSAO, blob mesh compute, the main color pass (skybox,
// PBR, blob metaballs), and the tonemap finalize dispatch.
// Barriers between passes are batched per gfxstate's "caller owns
// batching" convention: each step below issues the barriers its own
// pass needs before recording, rather than letting the next pass
// discover a hazard.
func (a *app) record(cmd vk.CommandBuffer, imageIndex uint32, descs *gfx.DescriptorAllocator, transient *gfx.TransientBufferAllocator) {
	width, height := a.screen.width, a.screen.height
	extent := vk.Extent2D{Width: width, Height: height}
	aspect := float32(width) / float32(height)

	var proj, view, vp linear.M4
	proj.Persp(a.cfg.Camera.FovY, aspect, a.cfg.Camera.Near, a.cfg.Camera.Far)
	view = a.cam.View()
	vp.Mul(&proj, &view)

	sunDir := defaultSunDirection
	sunColor := defaultSunColor
	sunIntensity := defaultSunIntensity
	if a.gscene.Scene.SunDirection != nil {
		sunDir = *a.gscene.Scene.SunDirection
		sunColor = a.gscene.Scene.SunColor
		sunIntensity = a.gscene.Scene.SunIntensity
	}

	sectionCount := a.gscene.SectionCount()

	mainDraw := a.cullPass(cmd, descs, transient, &vp, sectionCount)

	cascadeCount := a.cascades.Count()
	cascadeDraws := make([]drawStream, cascadeCount)
	if cascadeCount > 0 {
		splits := shadow.Split(a.cfg.Camera.Near, a.cfg.Camera.Far, a.cfg.Shadow.SplitLambda, cascadeCount)
		for i := 0; i < cascadeCount; i++ {
			cascade := a.cascades.At(i)
			cascade.NearSplit, cascade.FarSplit = splits[i], splits[i+1]

			var subProj, subVP, invSubVP linear.M4
			subProj.Persp(a.cfg.Camera.FovY, aspect, splits[i], splits[i+1])
			subVP.Mul(&subProj, &view)
			invSubVP.Invert(&subVP)

			cascade.LightViewProj = shadow.Fit(&invSubVP, &sunDir, a.cascades.Resolution())
			cascadeDraws[i] = a.cullPass(cmd, descs, transient, &cascade.LightViewProj, sectionCount)
		}
	}

	// The cull dispatches above all wrote into the ring's transient
	// buffer; one coarse barrier covers every region this frame
	// allocated from it, since they all share the same underlying
	// VkBuffer and none of them has a persistent gfxstate.Tracked
	// (the transient buffer is reset wholesale every frame, not
	// tracked resource by resource).
	cmdBarrier(cmd, nil, []vk.BufferMemoryBarrier2{
		transientBarrier(mainDraw.buf, gfxstate.ComputeShaderWriteGeneral, gfxstate.DrawIndirectRead),
	})

	a.recordDepthPrePass(cmd, extent, mainDraw, sectionCount)

	a.recordShadowCascades(cmd, cascadeDraws, sectionCount)

	a.recordSSAO(cmd, &proj, width, height)
	a.frameIndex++

	domains := blob.Partition(a.metaballs, a.cfg.Blob.CellSize)
	a.blobBuffers.Update(domains, voxelSubdivisions)

	// WriteMetaballs issues vkCmdUpdateBuffer (a transfer-class write);
	// its destination buffers must already be in TransferWrite before
	// recording it, since whatever compute-shader read left them in
	// last frame (see the end of recordBlobMesh) is otherwise racing
	// with this frame's update.
	cmdBarrier(cmd, nil, []vk.BufferMemoryBarrier2{
		a.blobBuffers.Metaball.State.BufferBarrier(a.blobBuffers.Metaball.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.TransferWrite),
		a.blobBuffers.DomainMember.State.BufferBarrier(a.blobBuffers.DomainMember.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.TransferWrite),
	})
	memberStarts := a.blobBuffers.WriteMetaballs(cmd, a.metaballs, domains)
	a.recordBlobMesh(cmd, descs, domains, memberStarts)

	a.recordMainPass(cmd, descs, transient, extent, &vp, render.PbrScenePush{
		SunDirection: [3]float32{sunDir[0], sunDir[1], sunDir[2]},
		SunColor:     sunColor,
		SunIntensity: sunIntensity,
	}, mainDraw, sectionCount, domains)

	a.recordFinalize(cmd, imageIndex, width, height)
}

// drawStream locates one cull dispatch's compacted draw/count stream
// within the ring's transient buffer.
type drawStream struct {
	buf               vk.Buffer
	drawOff, countOff vk.DeviceSize
}

// cullPass allocates a fresh output region from the ring's transient
// buffer, zeroes its trailing atomic counter (the transient buffer is
// a persistently-mapped bump allocator, so stale bytes from an older
// frame would otherwise survive until the compute shader's first
// atomicAdd), and dispatches the culling compute shader for vp.
func (a *app) cullPass(cmd vk.CommandBuffer, descs *gfx.DescriptorAllocator, transient *gfx.TransientBufferAllocator, vp *linear.M4, sectionCount uint32) drawStream {
	size := cull.OutputBufferSize(sectionCount)
	buf, off, bytes := transient.Alloc(size)
	binary.LittleEndian.PutUint32(bytes[cull.CountBufferOffset(sectionCount):], 0)

	set, err := descs.Allocate(a.cullSetLayout, 0)
	if err != nil {
		panic("vkforge: allocating cull set: " + err.Error())
	}
	writeStorageBuffers(a.ctx, set,
		storageBinding{0, a.gscene.Sections.Handle, 0, vk.DeviceSize(vk.WholeSize)},
		storageBinding{1, a.gscene.Instances.Handle, 0, vk.DeviceSize(vk.WholeSize)},
		storageBinding{2, buf, off, size},
	)

	a.culler.Dispatch(cmd, set, vp, sectionCount)

	return drawStream{buf: buf, drawOff: off, countOff: off + cull.CountBufferOffset(sectionCount)}
}

func (a *app) recordDepthPrePass(cmd vk.CommandBuffer, extent vk.Extent2D, draw drawStream, sectionCount uint32) {
	barriers := []vk.ImageMemoryBarrier2{
		a.screen.depth.State.Barrier(a.screen.depth.Handle, vk.ImageAspectFlags(vk.ImageAspectDepthBit), gfxstate.DepthAttachmentEarlyOps),
	}
	cmdBarrier(cmd, barriers, nil)

	gfx.BeginRendering(cmd, extent, nil, &gfx.DepthTarget{
		View: a.screen.depth.View, Load: vk.AttachmentLoadOpClear, Store: vk.AttachmentStoreOpStore, Clear: 0,
	})
	gfx.SetViewportScissor(cmd, extent)
	a.depthPass.Draw(cmd, a.gscene.Set, a.gscene.Positions.Handle, a.gscene.Indices.Handle,
		draw.buf, draw.buf, draw.drawOff, draw.countOff, sectionCount)
	gfx.EndRendering(cmd)
}

// recordShadowCascades draws each cascade's depth map against the
// draw stream cullPass already produced for it, then leaves every
// cascade depth image in the layout the PBR pass's shadow set was
// written against (see app.writeShadowSet).
func (a *app) recordShadowCascades(cmd vk.CommandBuffer, draws []drawStream, sectionCount uint32) {
	tunables := shadow.Tunables{
		SplitLambda:       a.cfg.Shadow.SplitLambda,
		DepthBiasConstant: a.cfg.Shadow.DepthBiasConstant,
		DepthBiasSlope:    a.cfg.Shadow.DepthBiasSlope,
		DepthBiasClamp:    a.cfg.Shadow.DepthBiasClamp,
	}
	resolution := a.cascades.Resolution()

	for i, draw := range draws {
		cascade := a.cascades.At(i)
		cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
			cascade.Depth.State.Barrier(cascade.Depth.Handle, vk.ImageAspectFlags(vk.ImageAspectDepthBit), gfxstate.DepthAttachmentEarlyOps),
		}, nil)

		a.shadowRenderer.BeginCascade(cmd, cascade, resolution, tunables)
		vk.CmdBindDescriptorSets(cmd, vk.PipelineBindPointGraphics, a.shadowRenderer.Layout(), 0, 1, []vk.DescriptorSet{a.gscene.Set}, 0, nil)
		vk.CmdBindVertexBuffers(cmd, 0, 1, []vk.Buffer{a.gscene.Positions.Handle}, []vk.DeviceSize{0})
		vk.CmdBindIndexBuffer(cmd, a.gscene.Indices.Handle, 0, vk.IndexTypeUint32)
		vk.CmdDrawIndexedIndirectCount(cmd, draw.buf, draw.drawOff, draw.buf, draw.countOff, sectionCount, 20)
		a.shadowRenderer.EndCascade(cmd)

		cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
			cascade.Depth.State.Barrier(cascade.Depth.Handle, vk.ImageAspectFlags(vk.ImageAspectDepthBit), gfxstate.FragmentShaderReadOptimal),
		}, nil)
	}
}

// recordSSAO samples raw ambient occlusion from the pre-pass depth
// buffer, then cross-bilateral filters it horizontally then
// vertically, leaving the final term (always in screen.ssaoA) ready
// for the PBR pass's fragment shader to sample.
func (a *app) recordSSAO(cmd vk.CommandBuffer, proj *linear.M4, width, height uint32) {
	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.depth.State.Barrier(a.screen.depth.Handle, vk.ImageAspectFlags(vk.ImageAspectDepthBit), gfxstate.ComputeShaderReadOptimal),
	}, nil)

	t := ssao.Tunables{
		Slices: int32(a.cfg.SSAO.Slices), Samples: int32(a.cfg.SSAO.Samples),
		Radius: a.cfg.SSAO.Radius, Bias: a.cfg.SSAO.Bias,
		Sharpness: a.cfg.SSAO.Sharpness, Exponent: a.cfg.SSAO.Exponent,
	}
	invScale, invOffset := ssao.InverseProjectionParams(proj[0][0], proj[1][1])

	a.ssaoRenderer.DispatchSample(cmd, a.screen.ssaoSampleSet, width, height, t, invScale, invOffset, a.frameIndex)

	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.ssaoA.State.Barrier(a.screen.ssaoA.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ComputeShaderReadOptimal),
	}, nil)
	a.ssaoRenderer.DispatchFilter(cmd, a.screen.ssaoFilterSetH, width, height, t, [2]float32{1, 0})

	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.ssaoB.State.Barrier(a.screen.ssaoB.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ComputeShaderReadOptimal),
		a.screen.ssaoA.State.Barrier(a.screen.ssaoA.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ComputeShaderWriteGeneral),
	}, nil)
	a.ssaoRenderer.DispatchFilter(cmd, a.screen.ssaoFilterSetV, width, height, t, [2]float32{0, 1})

	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.ssaoA.State.Barrier(a.screen.ssaoA.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.FragmentShaderReadOptimal),
		a.screen.depth.State.Barrier(a.screen.depth.Handle, vk.ImageAspectFlags(vk.ImageAspectDepthBit), gfxstate.DepthAttachmentEarlyOps),
	}, nil)
}

// recordBlobMesh runs the metaball mesh-generation compute pass for
// every surviving domain, entirely before the main color pass begins
// (compute dispatch is illegal inside a dynamic-rendering scope).
func (a *app) recordBlobMesh(cmd vk.CommandBuffer, descs *gfx.DescriptorAllocator, domains []blob.Domain, memberStarts []uint32) {
	if len(domains) == 0 {
		return
	}

	cmdBarrier(cmd, nil, []vk.BufferMemoryBarrier2{
		a.blobBuffers.Metaball.State.BufferBarrier(a.blobBuffers.Metaball.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.ComputeShaderReadGeneral),
		a.blobBuffers.DomainMember.State.BufferBarrier(a.blobBuffers.DomainMember.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.ComputeShaderReadGeneral),
	})

	set, err := descs.Allocate(a.blobMeshLayout, 0)
	if err != nil {
		panic("vkforge: allocating blob mesh set: " + err.Error())
	}
	writeStorageBuffers(a.ctx, set,
		storageBinding{0, a.blobBuffers.Metaball.Handle, 0, vk.DeviceSize(vk.WholeSize)},
		storageBinding{1, a.blobBuffers.DomainMember.Handle, 0, vk.DeviceSize(vk.WholeSize)},
		storageBinding{2, a.blobBuffers.Vertex.Handle, 0, vk.DeviceSize(vk.WholeSize)},
		storageBinding{3, a.blobBuffers.DrawIndirect.Handle, 0, vk.DeviceSize(vk.WholeSize)},
	)

	// Vertex/DrawIndirect go from whatever read access the draw pass
	// left them in last frame (or Undefined, for a buffer Update just
	// grew) to this frame's compute writes.
	cmdBarrier(cmd, nil, []vk.BufferMemoryBarrier2{
		a.blobBuffers.Vertex.State.BufferBarrier(a.blobBuffers.Vertex.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.ComputeShaderWriteGeneral),
		a.blobBuffers.DrawIndirect.State.BufferBarrier(a.blobBuffers.DrawIndirect.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.ComputeShaderWriteGeneral),
	})

	for i, d := range domains {
		a.blobPass.DispatchMesh(cmd, set, uint32(i), d, memberStarts[i])
	}

	cmdBarrier(cmd, nil, []vk.BufferMemoryBarrier2{
		a.blobBuffers.Vertex.State.BufferBarrier(a.blobBuffers.Vertex.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.VertexInputRead),
		a.blobBuffers.DrawIndirect.State.BufferBarrier(a.blobBuffers.DrawIndirect.Handle, 0, vk.DeviceSize(vk.WholeSize), gfxstate.DrawIndirectRead),
	})
}

// recordMainPass draws skybox, PBR-lit scene, and metaball domains
// into the shared HDR color/depth attachments in one dynamic-
// rendering scope: skybox first, since it never depth-tests and
// would otherwise paint over anything drawn before it.
func (a *app) recordMainPass(cmd vk.CommandBuffer, descs *gfx.DescriptorAllocator, transient *gfx.TransientBufferAllocator, extent vk.Extent2D, vp *linear.M4, push render.PbrScenePush, draw drawStream, sectionCount uint32, domains []blob.Domain) {
	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.hdrColor.State.Barrier(a.screen.hdrColor.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ColorAttachmentWrite),
	}, nil)

	gfx.BeginRendering(cmd, extent,
		[]gfx.ColorTarget{{View: a.screen.hdrColor.View, Load: vk.AttachmentLoadOpClear, Store: vk.AttachmentStoreOpStore, Clear: [4]float32{a.cfg.Fog.R, a.cfg.Fog.G, a.cfg.Fog.B, 1}}},
		&gfx.DepthTarget{View: a.screen.depth.View, Load: vk.AttachmentLoadOpLoad, Store: vk.AttachmentStoreOpStore, Clear: 0},
	)
	gfx.SetViewportScissor(cmd, extent)

	a.skyboxPass.Draw(cmd, a.skyboxSet, vp)

	a.pbrPass.Draw(cmd, [3]vk.DescriptorSet{a.gscene.Set, a.shadowSet, a.screen.ssaoConsumeSet}, push,
		render.SceneVertexBuffers{
			Positions: a.gscene.Positions.Handle, Normals: a.gscene.Normals.Handle,
			Tangents: a.gscene.Tangents.Handle, Texcoords: a.gscene.Texcoords.Handle,
		},
		a.gscene.Indices.Handle, draw.buf, draw.buf, draw.drawOff, draw.countOff, sectionCount)

	if len(domains) > 0 {
		drawSet, err := descs.Allocate(a.blobDrawLayout, 0)
		if err != nil {
			panic("vkforge: allocating blob draw set: " + err.Error())
		}
		ubo, off, bytes := transient.Alloc(64)
		copyMatrix(bytes, vp)
		writeUniformBuffer(a.ctx, drawSet, 0, ubo, off, 64)
		a.blobPass.DrawDomains(cmd, drawSet, a.blobBuffers.Vertex.Handle, a.blobBuffers.DrawIndirect.Handle, len(domains))
	}

	gfx.EndRendering(cmd)
}

func (a *app) recordFinalize(cmd vk.CommandBuffer, imageIndex, width, height uint32) {
	cmdBarrier(cmd, []vk.ImageMemoryBarrier2{
		a.screen.hdrColor.State.Barrier(a.screen.hdrColor.Handle, vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ComputeShaderReadOptimal),
		a.loop.Swapchain.State[imageIndex].Barrier(a.loop.Swapchain.Images[imageIndex], vk.ImageAspectFlags(vk.ImageAspectColorBit), gfxstate.ComputeShaderWriteGeneral),
	}, nil)

	a.finalizePass.Dispatch(cmd, a.screen.finalizeSets[imageIndex], width, height, render.TonemapParams{
		EVMin: a.cfg.Tonemap.EVMin, EVMax: a.cfg.Tonemap.EVMax, MidGray: a.cfg.Tonemap.MidGray,
		Offset: a.cfg.Tonemap.Offset, Slope: a.cfg.Tonemap.Slope, Power: a.cfg.Tonemap.Power,
		Saturation: a.cfg.Tonemap.Saturation,
	})
}

// cmdBarrier issues one vkCmdPipelineBarrier2 for the given image and
// buffer barriers; either slice may be nil.
func cmdBarrier(cmd vk.CommandBuffer, images []vk.ImageMemoryBarrier2, buffers []vk.BufferMemoryBarrier2) {
	info := vk.DependencyInfo{SType: vk.StructureTypeDependencyInfo}
	if len(images) > 0 {
		info.ImageMemoryBarrierCount = uint32(len(images))
		info.PImageMemoryBarriers = images
	}
	if len(buffers) > 0 {
		info.BufferMemoryBarrierCount = uint32(len(buffers))
		info.PBufferMemoryBarriers = buffers
	}
	vk.CmdPipelineBarrier2(cmd, &info)
}

// transientBarrier builds an ad hoc buffer barrier for a region of
// the ring's transient allocator, which has no persistent
// gfxstate.Tracked of its own (it is reset wholesale every frame, not
// tracked sub-allocation by sub-allocation).
func transientBarrier(buf vk.Buffer, src, dst gfxstate.Access) vk.BufferMemoryBarrier2 {
	return vk.BufferMemoryBarrier2{
		SType:               vk.StructureTypeBufferMemoryBarrier2,
		SrcStageMask:        src.Stage,
		SrcAccessMask:       src.Access,
		DstStageMask:        dst.Stage,
		DstAccessMask:       dst.Access,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Buffer:              buf,
		Offset:              0,
		Size:                vk.DeviceSize(vk.WholeSize),
	}
}

func copyMatrix(dst []byte, m *linear.M4) {
	for c := 0; c < 4; c++ {
		for r := 0; r < 4; r++ {
			binary.LittleEndian.PutUint32(dst[(c*4+r)*4:], math.Float32bits(m[c][r]))
		}
	}
}

type storageBinding struct {
	binding uint32
	buffer  vk.Buffer
	offset  vk.DeviceSize
	size    vk.DeviceSize
}

// writeStorageBuffers issues one vkUpdateDescriptorSets call covering
// every storage-buffer binding in bindings, following
// scene.GPUScene.writeSet's "build a slice, write once" shape.
func writeStorageBuffers(ctx *gfx.Context, set vk.DescriptorSet, bindings ...storageBinding) {
	writes := make([]vk.WriteDescriptorSet, len(bindings))
	for i, b := range bindings {
		info := []vk.DescriptorBufferInfo{{Buffer: b.buffer, Offset: b.offset, Range: b.size}}
		writes[i] = vk.WriteDescriptorSet{
			SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: b.binding,
			DescriptorCount: 1, DescriptorType: vk.DescriptorTypeStorageBuffer, PBufferInfo: info,
		}
	}
	vk.UpdateDescriptorSets(ctx.Device, uint32(len(writes)), writes, 0, nil)
}

func writeUniformBuffer(ctx *gfx.Context, set vk.DescriptorSet, binding uint32, buf vk.Buffer, offset, size vk.DeviceSize) {
	info := []vk.DescriptorBufferInfo{{Buffer: buf, Offset: offset, Range: size}}
	write := vk.WriteDescriptorSet{
		SType: vk.StructureTypeWriteDescriptorSet, DstSet: set, DstBinding: binding,
		DescriptorCount: 1, DescriptorType: vk.DescriptorTypeUniformBuffer, PBufferInfo: info,
	}
	vk.UpdateDescriptorSets(ctx.Device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
}
