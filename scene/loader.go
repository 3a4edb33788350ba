package scene

import (
	"fmt"
	"path/filepath"
	"sort"

	"github.com/qmuntal/gltf"
	"github.com/qmuntal/gltf/modeler"

	"github.com/vkforge/vkforge/linear"
	"github.com/vkforge/vkforge/logx"
)

// CPUMesh is the packed vertex/index data produced by Load, staged
// into the five shared GPU buffers by the caller (see
// scene.StagingUploader). Kept separate from GPU-resident Scene so
// Load itself never touches a vk.Device.
type CPUMesh struct {
	Positions []linear.V3
	Normals   []linear.V3
	Tangents  [][4]float32 // xyz + handedness, per glTF TANGENT
	TexCoords [][2]float32
	Indices   []uint32
}

// ImageSource names a glTF image by its resolved file path (glTF
// images are either external files or embedded buffer views;
// embedded images are written to a scratch file by Load so the
// image upload path only ever deals with paths, the same way every
// other asset in this module is loaded).
type ImageSource struct {
	Path   string
	SRGB   bool // color textures decode sRGB; normal/MR/occlusion are linear
}

// LoadResult bundles everything Load extracts from a glTF document.
type LoadResult struct {
	Mesh   CPUMesh
	Scene  Scene
	Images []ImageSource
}

// Load parses the glTF document at path and flattens its default
// scene into packed buffers and a material-sorted section list.
//
// Grounded on the attribute-extraction flow of the pack's glTF mesh
// extractor (present/absent-attribute handling per primitive,
// tangent/normal fallbacks) generalized onto qmuntal/gltf's document
// model and its modeler accessor-reading helpers instead of a
// hand-rolled parser.
func Load(path string) (*LoadResult, error) {
	doc, err := gltf.Open(path)
	if err != nil {
		return nil, fmt.Errorf("scene: opening %q: %w", path, err)
	}

	l := &loader{doc: doc, dir: filepath.Dir(path)}
	if err := l.loadImages(); err != nil {
		return nil, err
	}
	if err := l.loadMaterials(); err != nil {
		return nil, err
	}

	sceneIdx := uint32(0)
	if doc.Scene != nil {
		sceneIdx = *doc.Scene
	}
	if int(sceneIdx) >= len(doc.Scenes) {
		return nil, fmt.Errorf("scene: document has no scenes")
	}
	var root linear.M4
	root.I()
	for _, n := range doc.Scenes[sceneIdx].Nodes {
		l.walk(n, &root)
	}
	l.gatherLights()
	sort.SliceStable(l.sections, func(i, j int) bool {
		return l.sections[i].MaterialIdx < l.sections[j].MaterialIdx
	})

	bounds := linear.EmptyAABB()
	for _, inst := range l.instances {
		bounds.Extend(&bounds, &inst.Bounds)
	}

	logx.L().Info("scene loaded", "path", path,
		"sections", len(l.sections), "materials", len(l.materials),
		"instances", len(l.instances), "vertices", len(l.mesh.Positions))

	return &LoadResult{
		Mesh: l.mesh,
		Scene: Scene{
			Sections:     l.sections,
			Materials:    l.materials,
			Instances:    l.instances,
			Points:       l.points,
			Spots:        l.spots,
			Bounds:       bounds,
			SunDirection: l.sunDirection,
			SunColor:     l.sunColor,
			SunIntensity: l.sunIntensity,
			VertexCount:  uint32(len(l.mesh.Positions)),
			IndexCount:   uint32(len(l.mesh.Indices)),
		},
		Images: l.images,
	}, nil
}

type loader struct {
	doc *gltf.Document
	dir string

	mesh      CPUMesh
	sections  []Section
	materials []Material
	instances []Instance
	points    []PointLight
	spots     []SpotLight
	images    []ImageSource

	imageIndex map[uint32]uint32 // glTF texture index -> bindless slot

	pendingLights []pendingLight

	sunDirection *linear.V3
	sunColor     [3]float32
	sunIntensity float32
}

type pendingLight struct {
	idx   int
	world linear.M4
}

func (l *loader) loadImages() error {
	l.imageIndex = make(map[uint32]uint32, len(l.doc.Textures))
	for ti, tex := range l.doc.Textures {
		if tex.Source == nil {
			continue
		}
		img := l.doc.Images[*tex.Source]
		path := img.URI
		if path == "" {
			// Embedded image: qmuntal/gltf exposes the bytes via the
			// referenced buffer view; write them to a scratch file
			// so downstream upload code has a uniform path-based
			// interface.
			data, err := modeler.ReadBufferView(l.doc, l.doc.BufferViews[*img.BufferView])
			if err != nil {
				return fmt.Errorf("scene: reading embedded image %d: %w", *tex.Source, err)
			}
			scratch, err := writeScratchImage(l.dir, *tex.Source, data, img.MimeType)
			if err != nil {
				return err
			}
			path = scratch
		} else {
			path = filepath.Join(l.dir, path)
		}
		l.imageIndex[uint32(ti)] = uint32(len(l.images))
		l.images = append(l.images, ImageSource{Path: path})
	}
	return nil
}

func (l *loader) textureSlot(ref *gltf.TextureInfo, srgb bool) uint32 {
	if ref == nil {
		return BindlessNone
	}
	idx, ok := l.imageIndex[ref.Index]
	if !ok {
		return BindlessNone
	}
	if srgb {
		l.images[idx].SRGB = true
	}
	return idx
}

func (l *loader) loadMaterials() error {
	l.materials = make([]Material, len(l.doc.Materials))
	for i, m := range l.doc.Materials {
		mat := Material{
			BaseColorFactor:        [4]float32{1, 1, 1, 1},
			MetallicFactor:         1,
			RoughnessFactor:        1,
			NormalScale:            1,
			OcclusionStrength:      1,
			AlphaCutoff:            0.5,
			BaseColorImage:         BindlessNone,
			MetallicRoughnessImage: BindlessNone,
			NormalImage:            BindlessNone,
			OcclusionImage:         BindlessNone,
			EmissiveImage:          BindlessNone,
		}
		if pbr := m.PBRMetallicRoughness; pbr != nil {
			if pbr.BaseColorFactor != nil {
				mat.BaseColorFactor = *pbr.BaseColorFactor
			}
			if pbr.MetallicFactor != nil {
				mat.MetallicFactor = *pbr.MetallicFactor
			}
			if pbr.RoughnessFactor != nil {
				mat.RoughnessFactor = *pbr.RoughnessFactor
			}
			mat.BaseColorImage = l.textureSlot(pbr.BaseColorTexture, true)
			mat.MetallicRoughnessImage = l.textureSlot(pbr.MetallicRoughnessTexture, false)
		}
		if m.NormalTexture != nil {
			mat.NormalImage = l.textureSlot(&m.NormalTexture.TextureInfo, false)
			if m.NormalTexture.Scale != nil {
				mat.NormalScale = *m.NormalTexture.Scale
			}
		}
		if m.OcclusionTexture != nil {
			mat.OcclusionImage = l.textureSlot(&m.OcclusionTexture.TextureInfo, false)
			if m.OcclusionTexture.Strength != nil {
				mat.OcclusionStrength = *m.OcclusionTexture.Strength
			}
		}
		mat.EmissiveImage = l.textureSlot(m.EmissiveTexture, true)
		mat.EmissiveFactor = m.EmissiveFactor
		mat.DoubleSided = m.DoubleSided
		if m.AlphaCutoff != nil {
			mat.AlphaCutoff = *m.AlphaCutoff
		}
		l.materials[i] = mat
	}
	return nil
}

func (l *loader) walk(nodeIdx uint32, parent *linear.M4) {
	n := l.doc.Nodes[nodeIdx]

	var local linear.M4
	if n.Matrix != gltf.DefaultMatrix {
		local = linear.M4{
			{n.Matrix[0], n.Matrix[1], n.Matrix[2], n.Matrix[3]},
			{n.Matrix[4], n.Matrix[5], n.Matrix[6], n.Matrix[7]},
			{n.Matrix[8], n.Matrix[9], n.Matrix[10], n.Matrix[11]},
			{n.Matrix[12], n.Matrix[13], n.Matrix[14], n.Matrix[15]},
		}
	} else {
		t := linear.V3{n.Translation[0], n.Translation[1], n.Translation[2]}
		r := linear.Q{V: linear.V3{n.Rotation[0], n.Rotation[1], n.Rotation[2]}, R: n.Rotation[3]}
		s := linear.V3{n.Scale[0], n.Scale[1], n.Scale[2]}
		local.TRS(&t, &r, &s)
	}

	var world linear.M4
	world.Mul(parent, &local)

	if n.Mesh != nil {
		l.addMeshInstance(*n.Mesh, &world)
	}
	if lightIdx, ok := lightExtension(n.Extensions); ok {
		l.pendingLights = append(l.pendingLights, pendingLight{idx: lightIdx, world: world})
	}

	for _, c := range n.Children {
		l.walk(c, &world)
	}
}

func (l *loader) addMeshInstance(meshIdx uint32, world *linear.M4) {
	mesh := l.doc.Meshes[meshIdx]

	var upper linear.M3
	world.Upper3(&upper)
	var normalMat linear.M3
	normalMat.Normal(world)

	for _, prim := range mesh.Primitives {
		if prim.Mode != gltf.PrimitiveTriangles {
			logx.L().Warn("scene: skipping non-triangle primitive", "mode", prim.Mode)
			continue
		}
		sec, err := l.addPrimitive(&prim)
		if err != nil {
			logx.L().Warn("scene: skipping primitive", "err", err)
			continue
		}

		var bounds linear.AABB
		bounds.Transform(world, &sec.Bounds)

		instIdx := uint32(len(l.instances))
		l.instances = append(l.instances, Instance{World: *world, Normal: normalMat, Bounds: bounds})
		sec.InstanceIdx = instIdx
		l.sections = append(l.sections, sec)
	}
}

func (l *loader) addPrimitive(prim *gltf.Primitive) (Section, error) {
	posIdx, ok := prim.Attributes[gltf.POSITION]
	if !ok {
		return Section{}, fmt.Errorf("primitive has no POSITION attribute")
	}
	positions, err := modeler.ReadPosition(l.doc, l.doc.Accessors[posIdx], nil)
	if err != nil {
		return Section{}, fmt.Errorf("reading positions: %w", err)
	}
	count := len(positions)

	vertexOffset := int32(len(l.mesh.Positions))
	for _, p := range positions {
		l.mesh.Positions = append(l.mesh.Positions, linear.V3{p[0], p[1], p[2]})
	}

	bounds := linear.EmptyAABB()
	for _, p := range l.mesh.Positions[vertexOffset:] {
		pp := p
		bounds.ExtendPoint(&pp)
	}

	if normIdx, ok := prim.Attributes[gltf.NORMAL]; ok {
		normals, err := modeler.ReadNormal(l.doc, l.doc.Accessors[normIdx], nil)
		if err != nil {
			return Section{}, fmt.Errorf("reading normals: %w", err)
		}
		for _, n := range normals {
			l.mesh.Normals = append(l.mesh.Normals, linear.V3{n[0], n[1], n[2]})
		}
	} else {
		for i := 0; i < count; i++ {
			l.mesh.Normals = append(l.mesh.Normals, linear.V3{0, 1, 0})
		}
	}

	if tanIdx, ok := prim.Attributes[gltf.TANGENT]; ok {
		tangents, err := modeler.ReadTangent(l.doc, l.doc.Accessors[tanIdx], nil)
		if err != nil {
			return Section{}, fmt.Errorf("reading tangents: %w", err)
		}
		for _, t := range tangents {
			l.mesh.Tangents = append(l.mesh.Tangents, t)
		}
	} else {
		for i := 0; i < count; i++ {
			l.mesh.Tangents = append(l.mesh.Tangents, [4]float32{1, 0, 0, 1})
		}
	}

	if tcIdx, ok := prim.Attributes[gltf.TEXCOORD_0]; ok {
		uvs, err := modeler.ReadTextureCoord(l.doc, l.doc.Accessors[tcIdx], nil)
		if err != nil {
			return Section{}, fmt.Errorf("reading texcoords: %w", err)
		}
		l.mesh.TexCoords = append(l.mesh.TexCoords, uvs...)
	} else {
		for i := 0; i < count; i++ {
			l.mesh.TexCoords = append(l.mesh.TexCoords, [2]float32{0, 0})
		}
	}

	firstIndex := uint32(len(l.mesh.Indices))
	var indices []uint32
	if prim.Indices != nil {
		indices, err = modeler.ReadIndices(l.doc, l.doc.Accessors[*prim.Indices], nil)
		if err != nil {
			return Section{}, fmt.Errorf("reading indices: %w", err)
		}
	} else {
		indices = make([]uint32, count)
		for i := range indices {
			indices[i] = uint32(i)
		}
	}
	l.mesh.Indices = append(l.mesh.Indices, indices...)

	matIdx := uint32(0)
	if prim.Material != nil {
		matIdx = *prim.Material
	}

	return Section{
		FirstIndex:   firstIndex,
		IndexCount:   uint32(len(indices)),
		VertexOffset: vertexOffset,
		MaterialIdx:  matIdx,
		Bounds:       bounds,
	}, nil
}
