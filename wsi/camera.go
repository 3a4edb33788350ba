// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"math"

	"github.com/vkforge/vkforge/linear"
)

const pitchLimit = 1.5533 // just under 89 degrees, in radians

// FlyCamera is a mouselook WASD camera controller: it owns the
// window's cursor capture state and turns per-frame key/mouse state
// into a world-space eye position and yaw/pitch orientation.
type FlyCamera struct {
	win wasFlyWindow

	Eye            linear.V3
	Yaw, Pitch     float32
	MoveSpeed      float32
	FastMultiplier float32

	captured bool
	fast     bool

	forward, back, left, right, up, down bool
}

// wasFlyWindow is the subset of Window FlyCamera needs for cursor
// capture, kept as its own interface so tests can supply a fake.
type wasFlyWindow interface {
	CaptureCursor(captured bool)
}

// NewFlyCamera builds a controller starting at eye with the given
// move speed and fast-multiplier (applied while Shift is held),
// mirroring config.Config.Camera's tunables.
func NewFlyCamera(win wasFlyWindow, eye linear.V3, moveSpeed, fastMultiplier float32) *FlyCamera {
	return &FlyCamera{win: win, Eye: eye, MoveSpeed: moveSpeed, FastMultiplier: fastMultiplier}
}

// KeyboardKey implements KeyboardKeyHandler: WASD + Space/Ctrl move,
// Shift applies FastMultiplier, F5 is reserved for the caller's own
// pipeline-reload handling (FlyCamera only tracks movement keys),
// Esc/LeftAlt release the mouse capture.
func (c *FlyCamera) KeyboardKey(key Key, pressed bool, mods Modifier) {
	switch key {
	case KeyW:
		c.forward = pressed
	case KeyS:
		c.back = pressed
	case KeyA:
		c.left = pressed
	case KeyD:
		c.right = pressed
	case KeySpace:
		c.up = pressed
	case KeyLCtrl, KeyRCtrl:
		c.down = pressed
	case KeyLShift, KeyRShift:
		c.fast = pressed
	case KeyEsc, KeyLAlt:
		if pressed {
			c.SetCaptured(false)
		}
	}
}

// PointerButton implements PointerButtonHandler: a left click inside
// the viewport (re-)captures the cursor for mouselook.
func (c *FlyCamera) PointerButton(btn Button, pressed bool) {
	if btn == BtnLeft && pressed {
		c.SetCaptured(true)
	}
}

// PointerMotion implements PointerMotionHandler, applying mouse
// deltas to yaw/pitch while the cursor is captured. Sensitivity is
// fixed rather than configurable.
func (c *FlyCamera) PointerMotion(_, _, dx, dy float64) {
	if !c.captured {
		return
	}
	const sensitivity = 0.0025
	c.Yaw += float32(dx) * sensitivity
	c.Pitch -= float32(dy) * sensitivity
	if c.Pitch > pitchLimit {
		c.Pitch = pitchLimit
	}
	if c.Pitch < -pitchLimit {
		c.Pitch = -pitchLimit
	}
}

func (c *FlyCamera) SetCaptured(captured bool) {
	c.captured = captured
	c.win.CaptureCursor(captured)
}

func (c *FlyCamera) Captured() bool { return c.captured }

// Forward and Right return the camera's basis vectors derived from
// yaw/pitch, in the right-handed, Y-up world space the rest of the
// renderer uses.
func (c *FlyCamera) Forward() linear.V3 {
	cp := float32(math.Cos(float64(c.Pitch)))
	return linear.V3{
		float32(math.Sin(float64(c.Yaw))) * cp,
		float32(math.Sin(float64(c.Pitch))),
		-float32(math.Cos(float64(c.Yaw))) * cp,
	}
}

func (c *FlyCamera) Right() linear.V3 {
	return linear.V3{
		float32(math.Cos(float64(c.Yaw))),
		0,
		float32(math.Sin(float64(c.Yaw))),
	}
}

// Update advances Eye by dt seconds' worth of movement along the
// currently-held direction keys.
func (c *FlyCamera) Update(dt float32) {
	speed := c.MoveSpeed
	if c.fast {
		speed *= c.FastMultiplier
	}
	speed *= dt

	f, r := c.Forward(), c.Right()
	move := func(dir linear.V3, s float32) {
		c.Eye[0] += dir[0] * s
		c.Eye[1] += dir[1] * s
		c.Eye[2] += dir[2] * s
	}
	if c.forward {
		move(f, speed)
	}
	if c.back {
		move(f, -speed)
	}
	if c.right {
		move(r, speed)
	}
	if c.left {
		move(r, -speed)
	}
	if c.up {
		c.Eye[1] += speed
	}
	if c.down {
		c.Eye[1] -= speed
	}
}

// View builds the camera's view matrix for the current Eye/Forward.
func (c *FlyCamera) View() linear.M4 {
	f := c.Forward()
	center := linear.V3{c.Eye[0] + f[0], c.Eye[1] + f[1], c.Eye[2] + f[2]}
	up := linear.V3{0, 1, 0}
	var view linear.M4
	eye := c.Eye
	view.LookAt(&eye, &center, &up)
	return view
}
