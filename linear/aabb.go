// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

// AABB is an axis-aligned bounding box in R3.
type AABB struct {
	Min, Max V3
}

// EmptyAABB returns the identity element of the Extend monoid:
// Extend(EmptyAABB(), b) == b for any valid b.
func EmptyAABB() AABB {
	const inf = float32(3.4e38)
	return AABB{Min: V3{inf, inf, inf}, Max: V3{-inf, -inf, -inf}}
}

// Valid reports whether b has Min <= Max on every axis.
func (b *AABB) Valid() bool {
	return b.Min[0] <= b.Max[0] && b.Min[1] <= b.Max[1] && b.Min[2] <= b.Max[2]
}

// Extend sets b to the smallest AABB containing both l and r.
// (EmptyAABB, Extend) forms a commutative monoid over AABB.
func (b *AABB) Extend(l, r *AABB) {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(l.Min[i], r.Min[i])
		b.Max[i] = max(l.Max[i], r.Max[i])
	}
}

// ExtendPoint grows b so that it contains p.
func (b *AABB) ExtendPoint(p *V3) {
	for i := 0; i < 3; i++ {
		b.Min[i] = min(b.Min[i], p[i])
		b.Max[i] = max(b.Max[i], p[i])
	}
}

// Center returns the midpoint of b.
func (b *AABB) Center() V3 {
	var c V3
	c.Add(&b.Min, &b.Max)
	c.Scale(0.5, &c)
	return c
}

// Corners writes the eight corners of b to out, in the
// conventional order (x varies fastest, then y, then z).
func (b *AABB) Corners(out *[8]V3) {
	for i := 0; i < 8; i++ {
		out[i] = V3{
			pick(i&1 != 0, b.Min[0], b.Max[0]),
			pick(i&2 != 0, b.Min[1], b.Max[1]),
			pick(i&4 != 0, b.Min[2], b.Max[2]),
		}
	}
}

func pick(b bool, f, t float32) float32 {
	if b {
		return t
	}
	return f
}

// Transform sets b to the AABB that results from transforming
// every corner of n by m and taking their bounding box.
func (b *AABB) Transform(m *M4, n *AABB) {
	var corners [8]V3
	n.Corners(&corners)
	*b = EmptyAABB()
	for i := range corners {
		c := corners[i]
		v4 := V4{c[0], c[1], c[2], 1}
		var r V4
		r.Mul(m, &v4)
		p := V3{r[0], r[1], r[2]}
		b.ExtendPoint(&p)
	}
}
