// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import "testing"

func TestExtractFrustum(t *testing.T) {
	var proj, view, pv M4
	proj.Persp(1.5707963, 1, 0.1, 100)
	eye := V3{0, 0, 0}
	center := V3{0, 0, -1}
	up := V3{0, 1, 0}
	view.LookAt(&eye, &center, &up)
	pv.Mul(&proj, &view)

	f := ExtractFrustum(&pv)

	inside := V3{0, 0, -5}
	if !f.Contains(&inside) {
		t.Fatalf("Frustum.Contains: point in front of camera must be inside")
	}
	behind := V3{0, 0, 5}
	if f.Contains(&behind) {
		t.Fatalf("Frustum.Contains: point behind camera must be outside")
	}
	farAway := V3{10000, 0, -5}
	if f.Contains(&farAway) {
		t.Fatalf("Frustum.Contains: point far off to the side must be outside")
	}
}

func TestFrustumAABB(t *testing.T) {
	var proj, view, pv M4
	proj.Persp(1.5707963, 1, 0.1, 100)
	eye := V3{0, 0, 0}
	center := V3{0, 0, -1}
	up := V3{0, 1, 0}
	view.LookAt(&eye, &center, &up)
	pv.Mul(&proj, &view)
	f := ExtractFrustum(&pv)

	near := AABB{Min: V3{-0.1, -0.1, -5.1}, Max: V3{0.1, 0.1, -4.9}}
	if !f.ContainsAABB(&near) {
		t.Fatalf("ContainsAABB: box in view must be visible")
	}
	far := AABB{Min: V3{9999, 0, 0}, Max: V3{10001, 1, 1}}
	if f.ContainsAABB(&far) {
		t.Fatalf("ContainsAABB: box far outside the frustum must be culled")
	}
}
