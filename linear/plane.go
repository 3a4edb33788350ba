// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

// Plane is a half-space defined by dot(N, p) + D >= 0.
type Plane struct {
	N V3
	D float32
}

// normalize scales p so that N has unit length.
func (p *Plane) normalize() {
	l := p.N.Len()
	if l == 0 {
		return
	}
	inv := 1 / l
	p.N.Scale(inv, &p.N)
	p.D *= inv
}

// Dist returns the signed distance from p to the plane.
// It is >= 0 iff p lies on the side the plane's normal
// points towards (i.e., "inside").
func (pl *Plane) Dist(p *V3) float32 { return pl.N.Dot(p) + pl.D }

// Frustum is the six planes of a view frustum, in the order
// {left, right, bottom, top, z >= 0, z <= w}; under this package's
// reverse-Z projections index 4 is the far plane and index 5 the
// near plane. Each plane's normal
// points towards the inside of the frustum.
type Frustum [6]Plane

// ExtractFrustum extracts the six frustum planes from a
// combined projection*view matrix m, using the Gribb-Hartmann
// method adapted to Vulkan's [0, 1] clip-space depth range.
func ExtractFrustum(m *M4) Frustum {
	r0 := m.Row(0)
	r1 := m.Row(1)
	r2 := m.Row(2)
	r3 := m.Row(3)

	mkPlane := func(a, b V4, sign float32) Plane {
		var v V4
		v.Scale(sign, &b)
		v.Add(&a, &v)
		p := Plane{N: V3{v[0], v[1], v[2]}, D: v[3]}
		p.normalize()
		return p
	}

	var f Frustum
	f[0] = mkPlane(r3, r0, 1)  // left:   r3 + r0
	f[1] = mkPlane(r3, r0, -1) // right:  r3 - r0
	f[2] = mkPlane(r3, r1, 1)  // bottom: r3 + r1
	f[3] = mkPlane(r3, r1, -1) // top:    r3 - r1
	f[4] = Plane{N: V3{r2[0], r2[1], r2[2]}, D: r2[3]}
	f[4].normalize() // z >= 0: r2 (far under reverse-Z)
	f[5] = mkPlane(r3, r2, -1) // z <= w: r3 - r2 (near under reverse-Z)
	return f
}

// Contains reports whether p classifies as inside the
// frustum, i.e., dot(plane.N, p) + plane.D >= 0 for every
// plane.
func (f *Frustum) Contains(p *V3) bool {
	for i := range f {
		if f[i].Dist(p) < 0 {
			return false
		}
	}
	return true
}

// ContainsAABB reports whether the frustum may see the given
// AABB, using the "positive vertex" (a.k.a. p-vertex) test:
// for each plane, the AABB corner most aligned with the
// plane's normal is tested; if that corner is outside, the
// whole box is outside.
func (f *Frustum) ContainsAABB(b *AABB) bool {
	for i := range f {
		var pv V3
		for k := 0; k < 3; k++ {
			if f[i].N[k] >= 0 {
				pv[k] = b.Max[k]
			} else {
				pv[k] = b.Min[k]
			}
		}
		if f[i].Dist(&pv) < 0 {
			return false
		}
	}
	return true
}
