// Package shadow implements cascaded shadow mapping: splitting the
// view frustum into CascadeCount slices via a practical split-scheme
// (PSSM) blend, fitting a texel-snapped orthographic light view to
// each slice, and rendering per-cascade depth maps sampled by the
// PBR pass with depth-comparison (greaterEqual, matching the
// renderer's reverse-Z convention).
package shadow

import (
	"math"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/linear"
)

// Cascade holds one cascade's depth target and the split distances
// and light-space matrix computed for the current frame.
type Cascade struct {
	Depth *gfx.ImageWithView

	NearSplit, FarSplit float32
	LightViewProj       linear.M4
}

// Cascades owns the full set of cascade depth targets for a shadow
// renderer configuration.
type Cascades struct {
	ctx        *gfx.Context
	list       []Cascade
	resolution uint32
}

// NewCascades allocates count depth images of resolution x
// resolution, one per cascade. D32_SFLOAT, reverse-Z clear value 0,
// matching this renderer's depth convention across every depth
// target (not just the main depth buffer).
func NewCascades(ctx *gfx.Context, count int, resolution uint32) (*Cascades, error) {
	c := &Cascades{ctx: ctx, resolution: resolution, list: make([]Cascade, count)}
	for i := range c.list {
		img, err := ctx.CreateImage(gfx.ImageOpts{
			Format: vk.FormatD32Sfloat, Width: resolution, Height: resolution,
			Usage:  vk.ImageUsageDepthStencilAttachmentBit | vk.ImageUsageSampledBit,
			Aspect: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
		})
		if err != nil {
			return nil, err
		}
		c.list[i].Depth = img
	}
	return c, nil
}

func (c *Cascades) Count() int { return len(c.list) }

// At returns a pointer to the i-th cascade so the frame loop can
// recompute and store its split distances and light-space matrix
// each frame (see Split and Fit).
func (c *Cascades) At(i int) *Cascade { return &c.list[i] }

// Resolution returns the per-cascade depth map resolution every
// cascade was allocated with.
func (c *Cascades) Resolution() uint32 { return c.resolution }

// Split computes the near/far distance of each cascade along the
// camera's view axis by blending logarithmic and uniform splits with
// weight lambda (config.Config.Shadow.SplitLambda): lambda=1 is
// pure logarithmic (tight near-camera cascades, common for outdoor
// scenes), lambda=0 is pure uniform.
func Split(near, far, lambda float32, count int) []float32 {
	splits := make([]float32, count+1)
	splits[0] = near
	for i := 1; i <= count; i++ {
		f := float32(i) / float32(count)
		log := near * float32(math.Pow(float64(far/near), float64(f)))
		uniform := near + (far-near)*f
		splits[i] = lambda*log + (1-lambda)*uniform
	}
	return splits
}

// Fit computes the texel-snapped orthographic light view/projection
// for a single cascade, as seen from a directional light pointing
// along lightDir. splitInvViewProj must already be the inverse of a
// view-projection built from this cascade's own [splitNear,
// splitFar] sub-frustum (the caller composes it per cascade from
// Split's distances via linear.Persp); Fit itself only needs the
// resulting world-space corners.
//
// Grounded on the frustum-corner + enclosing-sphere technique common
// to cascaded shadow mapping implementations: corners of the split
// sub-frustum are computed in world space, a bounding sphere is fit
// around them (radius rounded up to the nearest 1/16 to further
// stabilize the fit frame-to-frame), and the light view's origin is
// snapped to texel-sized increments so moving the camera does not
// sub-pixel-jitter the shadow edges (the "double snap": snap is
// computed, applied, and the view re-derived from the snapped origin
// so the projection that follows sees already-quantized
// coordinates).
func Fit(splitInvViewProj *linear.M4, lightDir *linear.V3, resolution uint32) linear.M4 {
	var corners [8]linear.V3
	ndc := [8][3]float32{
		{-1, -1, 0}, {1, -1, 0}, {-1, 1, 0}, {1, 1, 0},
		{-1, -1, 1}, {1, -1, 1}, {-1, 1, 1}, {1, 1, 1},
	}
	for i, n := range ndc {
		corners[i] = unproject(splitInvViewProj, n[0], n[1], n[2])
	}

	center := linear.V3{}
	for _, c := range corners {
		center[0] += c[0] / 8
		center[1] += c[1] / 8
		center[2] += c[2] / 8
	}

	var radius float32
	for _, c := range corners {
		d := linear.V3{c[0] - center[0], c[1] - center[1], c[2] - center[2]}
		if l := d.Len(); l > radius {
			radius = l
		}
	}
	radius = float32(math.Ceil(float64(radius)*16) / 16)

	eye := linear.V3{center[0] - lightDir[0]*radius*2, center[1] - lightDir[1]*radius*2, center[2] - lightDir[2]*radius*2}
	up := linear.V3{0, 1, 0}
	if math.Abs(float64(lightDir[1])) > 0.999 {
		up = linear.V3{0, 0, 1}
	}

	var view linear.M4
	view.LookAt(&eye, &center, &up)

	texelsPerUnit := float32(resolution) / (radius * 2)

	// Snap the view-space origin to whole texels: transform the
	// origin into light view space, round X/Y to texel increments,
	// and fold the remainder back as a view-space translation. This
	// is the texel-snapping "double snap" — snapping the translation
	// that feeds the projection below rather than rounding the
	// projection's own offsets, which double-counts the snap.
	origin := linear.V3{}
	snapped := view.MulPoint(&origin)
	snapped[0] = float32(math.Round(float64(snapped[0]*texelsPerUnit))) / texelsPerUnit
	snapped[1] = float32(math.Round(float64(snapped[1]*texelsPerUnit))) / texelsPerUnit
	dx := snapped[0] - view.MulPoint(&origin)[0]
	dy := snapped[1] - view.MulPoint(&origin)[1]
	view.TranslateView(dx, dy, 0)

	// Reversed near/far: the light's "near" plane is placed at the
	// far edge of the enclosing sphere along -Z (farthest from the
	// eye) to match the rest of the renderer's reverse-Z convention.
	var proj linear.M4
	proj.Ortho(-radius, radius, -radius, radius, radius*4, 0)

	var vp linear.M4
	vp.Mul(&proj, &view)
	return vp
}

func unproject(invVP *linear.M4, x, y, z float32) linear.V3 {
	clip := linear.V4{x, y, z, 1}
	var world linear.V4
	world.Mul(invVP, &clip)
	if world[3] != 0 {
		world[0] /= world[3]
		world[1] /= world[3]
		world[2] /= world[3]
	}
	return linear.V3{world[0], world[1], world[2]}
}

func (c *Cascades) Destroy() {
	for _, cs := range c.list {
		cs.Depth.Destroy(c.ctx)
	}
}
