// Package blob implements the metaball "blob" isosurface renderer:
// a CPU partitioning pass that buckets up to 16 metaballs into
// disjoint coarse voxel domains, and a GPU system that meshes each
// domain with a marching-cubes compute kernel and draws the result
// with a non-indexed indirect draw per domain.
package blob

import (
	"sort"

	"github.com/vkforge/vkforge/linear"
)

// Metaball is one implicit-surface influence source.
type Metaball struct {
	Center              linear.V3
	Scale               linear.V3
	BaseRadius, MaxRadius float32
}

// MaxMetaballs bounds the scene's metaball count, matching the
// packed MetaballBuffer's fixed-size layout consumed by the compute
// kernel.
const MaxMetaballs = 16

// Domain is one coarse voxel tagged with the metaballs that
// influence it.
type Domain struct {
	Bounds  linear.AABB
	Members []int // indices into the Metaball slice passed to Partition
}

type voxelKey struct{ x, y, z int32 }

// Partition buckets metaballs into disjoint 8*cellSize voxels,
// culling voxels the balls' influence can't reach and discarding
// voxels with no surviving members.
//
// Grounded on the coarse voxel-shell extraction algorithm: a voxel is
// culled if it lies entirely outside a ball's outer radius or
// entirely inside its inner solid core, so only the "shell" where the
// isosurface can actually appear is kept. Deduplication then collapses
// voxels reached by more than one ball into a single Domain with a
// concatenated member list.
func Partition(balls []Metaball, cellSize float32) []Domain {
	voxelSize := 8 * cellSize
	voxelRadius := voxelSize * 1.7320508 / 2 // voxelSize*sqrt(3)/2

	domainsByKey := map[voxelKey]*Domain{}
	var keys []voxelKey

	for bi, b := range balls {
		rOuter := b.MaxRadius * maxComponent(b.Scale)
		rInner := b.BaseRadius * minComponent(b.Scale)

		minX := int32(floorDiv(b.Center[0]-rOuter, voxelSize))
		maxX := int32(floorDiv(b.Center[0]+rOuter, voxelSize))
		minY := int32(floorDiv(b.Center[1]-rOuter, voxelSize))
		maxY := int32(floorDiv(b.Center[1]+rOuter, voxelSize))
		minZ := int32(floorDiv(b.Center[2]-rOuter, voxelSize))
		maxZ := int32(floorDiv(b.Center[2]+rOuter, voxelSize))

		padding := voxelSize * 0.5

		for x := minX; x <= maxX; x++ {
			for y := minY; y <= maxY; y++ {
				for z := minZ; z <= maxZ; z++ {
					centroid := linear.V3{
						(float32(x) + 0.5) * voxelSize,
						(float32(y) + 0.5) * voxelSize,
						(float32(z) + 0.5) * voxelSize,
					}
					d := dist(centroid, b.Center)
					if d > rOuter+voxelRadius || d < rInner-voxelRadius {
						continue
					}

					key := voxelKey{x, y, z}
					dom, ok := domainsByKey[key]
					if !ok {
						half := voxelSize/2 + padding
						dom = &Domain{Bounds: linear.AABB{
							Min: linear.V3{centroid[0] - half, centroid[1] - half, centroid[2] - half},
							Max: linear.V3{centroid[0] + half, centroid[1] + half, centroid[2] + half},
						}}
						domainsByKey[key] = dom
						keys = append(keys, key)
					}
					if !contains(dom.Members, bi) {
						dom.Members = append(dom.Members, bi)
					}
				}
			}
		}
	}

	sort.Slice(keys, func(i, j int) bool {
		a, b := keys[i], keys[j]
		if a.x != b.x {
			return a.x < b.x
		}
		if a.y != b.y {
			return a.y < b.y
		}
		return a.z < b.z
	})

	domains := make([]Domain, 0, len(keys))
	for _, k := range keys {
		d := domainsByKey[k]
		if len(d.Members) == 0 {
			continue
		}
		domains = append(domains, *d)
	}
	return domains
}

// EstimateVertexCount is the conservative per-domain upper bound used
// to size the shared vertex buffer before meshing: a cubic
// marching-cubes grid of 8 cells per axis, at most 12 triangle-edge
// vertices per cell, scaled by 0.5 as a fill-rate heuristic.
func EstimateVertexCount(voxelSubdivisions int) int {
	return voxelSubdivisions * voxelSubdivisions * voxelSubdivisions * 12 / 2
}

func contains(s []int, v int) bool {
	for _, x := range s {
		if x == v {
			return true
		}
	}
	return false
}

func dist(a, b linear.V3) float32 {
	d := linear.V3{a[0] - b[0], a[1] - b[1], a[2] - b[2]}
	return d.Len()
}

func maxComponent(v linear.V3) float32 {
	m := v[0]
	if v[1] > m {
		m = v[1]
	}
	if v[2] > m {
		m = v[2]
	}
	return m
}

func minComponent(v linear.V3) float32 {
	m := v[0]
	if v[1] < m {
		m = v[1]
	}
	if v[2] < m {
		m = v[2]
	}
	return m
}

func floorDiv(a, b float32) float32 {
	q := a / b
	f := float32(int32(q))
	if q < 0 && f != q {
		f--
	}
	return f
}
