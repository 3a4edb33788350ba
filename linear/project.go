// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package linear

import "math"

// Persp sets m to a reverse-Z perspective projection matrix for
// the Vulkan depth range [0, 1], such that the near plane maps
// to a depth of 1 and the far plane maps to a depth of 0.
// fovy is the full vertical field of view, in radians.
func (m *M4) Persp(fovy, aspect, near, far float32) {
	f := float32(1 / math.Tan(float64(fovy)/2))
	*m = M4{}
	m[0][0] = f / aspect
	m[1][1] = -f // Vulkan clip space has Y pointing down.
	m[2][2] = near / (far - near)
	m[2][3] = -1
	m[3][2] = (near * far) / (far - near)
}

// PerspInf sets m to a reverse-Z perspective projection matrix
// with an infinite far plane. As distance grows the depth value
// approaches, but never reaches, 0.
func (m *M4) PerspInf(fovy, aspect, near float32) {
	f := float32(1 / math.Tan(float64(fovy)/2))
	*m = M4{}
	m[0][0] = f / aspect
	m[1][1] = -f
	m[2][2] = 0
	m[2][3] = -1
	m[3][2] = near
}

// Ortho sets m to a reverse-Z orthographic projection matrix.
// Callers that want the standard reverse-Z behavior (near maps
// to 1, far maps to 0) pass near and far already swapped, e.g.,
// Ortho(-r, r, -r, r, +dist, -dist).
func (m *M4) Ortho(left, right, bottom, top, near, far float32) {
	*m = M4{}
	m[0][0] = 2 / (right - left)
	m[1][1] = -2 / (top - bottom)
	m[2][2] = 1 / (far - near)
	m[3][0] = -(right + left) / (right - left)
	m[3][1] = -(top + bottom) / (top - bottom)
	m[3][2] = -near / (far - near)
	m[3][3] = 1
}

// LookAt sets m to a view matrix for an observer at eye looking
// towards center, with the given up vector.
func (m *M4) LookAt(eye, center, up *V3) {
	var f, s, u V3
	f.Sub(center, eye)
	f.Norm(&f)
	s.Cross(&f, up)
	s.Norm(&s)
	u.Cross(&s, &f)
	*m = M4{
		{s[0], u[0], -f[0], 0},
		{s[1], u[1], -f[1], 0},
		{s[2], u[2], -f[2], 0},
		{-s.Dot(eye), -u.Dot(eye), f.Dot(eye), 1},
	}
}
