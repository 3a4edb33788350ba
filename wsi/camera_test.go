// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"math"
	"testing"

	"github.com/vkforge/vkforge/linear"
)

type fakeWindow struct{ captured bool }

func (f *fakeWindow) CaptureCursor(captured bool) { f.captured = captured }

func TestFlyCameraPitchClamp(t *testing.T) {
	win := &fakeWindow{}
	c := NewFlyCamera(win, linear.V3{}, 4, 4)
	c.SetCaptured(true)

	for i := 0; i < 1000; i++ {
		c.PointerMotion(0, 0, 0, -1000)
	}
	if c.Pitch > pitchLimit {
		t.Errorf("Pitch = %v exceeds pitchLimit %v", c.Pitch, pitchLimit)
	}

	for i := 0; i < 1000; i++ {
		c.PointerMotion(0, 0, 0, 1000)
	}
	if c.Pitch < -pitchLimit {
		t.Errorf("Pitch = %v exceeds -pitchLimit %v", c.Pitch, -pitchLimit)
	}
}

func TestFlyCameraMotionIgnoredUntilCaptured(t *testing.T) {
	win := &fakeWindow{}
	c := NewFlyCamera(win, linear.V3{}, 4, 4)
	c.PointerMotion(0, 0, 100, 100)
	if c.Yaw != 0 || c.Pitch != 0 {
		t.Errorf("uncaptured PointerMotion changed orientation: yaw=%v pitch=%v", c.Yaw, c.Pitch)
	}
}

func TestFlyCameraMoveForward(t *testing.T) {
	win := &fakeWindow{}
	c := NewFlyCamera(win, linear.V3{}, 2, 1)
	c.KeyboardKey(KeyW, true, 0)
	c.Update(1)

	f := c.Forward()
	want := linear.V3{f[0] * 2, f[1] * 2, f[2] * 2}
	for i := 0; i < 3; i++ {
		if math.Abs(float64(c.Eye[i]-want[i])) > 1e-4 {
			t.Errorf("Eye[%d] = %v, want %v", i, c.Eye[i], want[i])
		}
	}
}

func TestFlyCameraCaptureToggle(t *testing.T) {
	win := &fakeWindow{}
	c := NewFlyCamera(win, linear.V3{}, 1, 1)
	c.PointerButton(BtnLeft, true)
	if !win.captured || !c.Captured() {
		t.Fatalf("left click did not capture the cursor")
	}
	c.KeyboardKey(KeyEsc, true, 0)
	if win.captured || c.Captured() {
		t.Fatalf("Esc did not release the cursor")
	}
}
