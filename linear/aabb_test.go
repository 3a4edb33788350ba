// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import "testing"

func TestAABBExtend(t *testing.T) {
	a := AABB{Min: V3{-1, -1, -1}, Max: V3{1, 1, 1}}
	b := AABB{Min: V3{0, 0, 0}, Max: V3{2, 2, 2}}
	var u AABB
	u.Extend(&a, &b)
	if u.Min != (V3{-1, -1, -1}) || u.Max != (V3{2, 2, 2}) {
		t.Fatalf("AABB.Extend\nhave %v\nwant min[-1,-1,-1] max[2,2,2]", u)
	}

	e := EmptyAABB()
	var v AABB
	v.Extend(&e, &a)
	if v != a {
		t.Fatalf("Extend(EmptyAABB, a) must equal a\nhave %v\nwant %v", v, a)
	}
}

func TestAABBTransform(t *testing.T) {
	b := AABB{Min: V3{-1, -1, -1}, Max: V3{1, 1, 1}}
	var m M4
	m.I()
	translate := V3{5, 0, 0}
	m[3] = V4{translate[0], translate[1], translate[2], 1}

	var out AABB
	out.Transform(&m, &b)
	if out.Min != (V3{4, -1, -1}) || out.Max != (V3{6, 1, 1}) {
		t.Fatalf("AABB.Transform\nhave %v\nwant min[4,-1,-1] max[6,1,1]", out)
	}
}
