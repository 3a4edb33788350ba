package main

import (
	"github.com/vkforge/vkforge/blob"
	"github.com/vkforge/vkforge/linear"
	"github.com/vkforge/vkforge/scene"
)

// voxelSubdivisions is the per-domain marching-cubes grid resolution
// passed to blob.EstimateVertexCount/Buffers.Update.
const voxelSubdivisions = 8

// demoMetaballs hand-authors a small cluster of blobs near the
// world origin so the metaball renderer always has something to
// draw, independent of whatever glTF scene is loaded. The list must
// stay within blob.MaxMetaballs, the capacity of the fixed-size
// Metaball buffer that blob.Buffers.WriteMetaballs fills.
func demoMetaballs() []blob.Metaball {
	return []blob.Metaball{
		{Center: linear.V3{0, 1.2, 0}, Scale: linear.V3{1, 1, 1}, BaseRadius: 0.6, MaxRadius: 1.1},
		{Center: linear.V3{0.9, 1.0, 0.3}, Scale: linear.V3{1, 1, 1}, BaseRadius: 0.45, MaxRadius: 0.9},
		{Center: linear.V3{-0.8, 0.9, -0.4}, Scale: linear.V3{1, 1, 1}, BaseRadius: 0.5, MaxRadius: 0.95},
		{Center: linear.V3{0.2, 1.8, -0.7}, Scale: linear.V3{1, 1, 1}, BaseRadius: 0.35, MaxRadius: 0.7},
	}
}

// initialEye places the camera just outside the loaded scene's
// bounds, looking back towards its center; falls back to a fixed
// offset when the scene carries no valid bounds (an empty document).
func initialEye(g *scene.GPUScene) linear.V3 {
	b := g.Scene.Bounds
	if !b.Valid() {
		return linear.V3{0, 2, 6}
	}
	c := b.Center()
	radius := b.Max[0] - b.Min[0]
	if h := b.Max[1] - b.Min[1]; h > radius {
		radius = h
	}
	if d := b.Max[2] - b.Min[2]; d > radius {
		radius = d
	}
	if radius <= 0 {
		radius = 4
	}
	return linear.V3{c[0], c[1] + radius*0.3, c[2] + radius*1.5}
}
