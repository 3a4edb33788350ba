// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import "testing"

func TestKeyFromUnknownCode(t *testing.T) {
	if k := keyFrom(-1); k != KeyUnknown {
		t.Errorf("keyFrom(-1) = %v, want KeyUnknown", k)
	}
	if k := keyFrom(len(keymap) + 100); k != KeyUnknown {
		t.Errorf("keyFrom(out of range) = %v, want KeyUnknown", k)
	}
}

func TestKeyFromKnownCodes(t *testing.T) {
	cases := map[int]Key{
		int('W'): KeyW,
		int('A'): KeyA,
		int('S'): KeyS,
		int('D'): KeyD,
	}
	for code, want := range cases {
		if got := keyFrom(code); got != want {
			t.Errorf("keyFrom(%d) = %v, want %v", code, got, want)
		}
	}
}

func TestModifierFlags(t *testing.T) {
	m := ModShift | ModCtrl
	if m&ModShift == 0 || m&ModCtrl == 0 {
		t.Errorf("Modifier bits did not combine: %v", m)
	}
	if m&ModAlt != 0 {
		t.Errorf("ModAlt set unexpectedly in %v", m)
	}
}

func TestAppName(t *testing.T) {
	SetAppName("test app")
	if s := AppName(); s != "test app" {
		t.Errorf("AppName() = %q, want %q", s, "test app")
	}
}

type recordingHandler struct {
	closed  bool
	resized bool
	keys    []Key
}

func (h *recordingHandler) WindowClose(Window)                 { h.closed = true }
func (h *recordingHandler) WindowResize(Window, int, int)      { h.resized = true }
func (h *recordingHandler) KeyboardKey(key Key, pressed bool, _ Modifier) {
	if pressed {
		h.keys = append(h.keys, key)
	}
}

func TestHandlerRegistration(t *testing.T) {
	h := &recordingHandler{}
	SetWindowCloseHandler(h)
	SetWindowResizeHandler(h)
	SetKeyboardKeyHandler(h)

	windowCloseHandler.WindowClose(nil)
	windowResizeHandler.WindowResize(nil, 640, 480)
	keyboardKeyHandler.KeyboardKey(KeyW, true, 0)

	if !h.closed || !h.resized || len(h.keys) != 1 || h.keys[0] != KeyW {
		t.Errorf("handler did not observe dispatched events: %+v", h)
	}
}
