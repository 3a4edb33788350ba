// Package scene loads a glTF 2.0 document into the renderer's own
// packed GPU representation: five shared vertex/index buffers, a
// bindless image table, and per-draw Section/Material/Instance
// records sorted so the frustum culler and the PBR pass can walk
// them linearly.
//
// glTF parsing itself is delegated to github.com/qmuntal/gltf and
// its modeler helper package; this package owns everything that
// happens after the document is decoded.
package scene

import "github.com/vkforge/vkforge/linear"

// Section is a contiguous index range within the shared index
// buffer that shares a single material. It is the renderer's unit
// of culling and drawing — one Section becomes one (possibly culled)
// indexed draw.
type Section struct {
	FirstIndex   uint32
	IndexCount   uint32
	VertexOffset int32
	MaterialIdx  uint32
	InstanceIdx  uint32
	Bounds       linear.AABB // object-space, transformed per-instance by the culler
}

// Material holds the indices into the bindless image table for a
// glTF PBR metallic-roughness material, plus its scalar factors.
// The *Image fields are BindlessNone (0xFFFF) when the corresponding
// texture is absent.
type Material struct {
	BaseColorFactor         [4]float32
	EmissiveFactor          [3]float32
	MetallicFactor          float32
	RoughnessFactor         float32
	NormalScale             float32
	OcclusionStrength       float32
	BaseColorImage          uint32
	MetallicRoughnessImage  uint32
	NormalImage             uint32
	OcclusionImage          uint32
	EmissiveImage           uint32
	AlphaCutoff             float32
	DoubleSided             bool
}

// BindlessNone marks an absent texture slot in the bindless image
// table, matching the sentinel value sampled as "no texture" by the
// PBR shader.
const BindlessNone uint32 = 0xFFFF

// Instance is a node's world transform plus the bounding box of one
// of its mesh primitives: Load creates one Instance per section, and
// the frustum culler reaches it through Section.InstanceIdx.
type Instance struct {
	World  linear.M4
	Normal linear.M3 // inverse-transpose of World's upper 3x3, for normal transform
	Bounds linear.AABB
}

// PointLight is a glTF KHR_lights_punctual point light converted to
// world space at load time (lights are static for the lifetime of a
// loaded scene; dynamic scene graphs are out of scope).
type PointLight struct {
	Position  linear.V3
	Color     [3]float32
	Intensity float32
	Range     float32
}

// SpotLight is a glTF KHR_lights_punctual spot light converted to
// world space at load time.
type SpotLight struct {
	Position     linear.V3
	Direction    linear.V3
	Color        [3]float32
	Intensity    float32
	Range        float32
	InnerConeCos float32
	OuterConeCos float32
}

// Scene holds the CPU-side tables of a loaded scene; GPUScene holds
// their device copies and the packed vertex/index buffers.
// SunDirection/SunColor/SunIntensity come from the document's first
// KHR_lights_punctual directional light when present; if the
// document defines none, SunDirection is nil and the caller (see
// cmd/vkforge's record) falls back to its own default.
type Scene struct {
	Sections  []Section
	Materials []Material
	Instances []Instance
	Points    []PointLight
	Spots     []SpotLight
	Bounds    linear.AABB

	SunDirection *linear.V3
	SunColor     [3]float32
	SunIntensity float32

	VertexCount uint32
	IndexCount  uint32
}
