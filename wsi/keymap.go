// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import "github.com/go-gl/glfw/v3.3/glfw"

// keyFrom returns the Key value that represents a glfw key code.
func keyFrom(code int) Key {
	if code < 0 || code >= len(keymap) {
		return KeyUnknown
	}
	return keymap[code]
}

// keymap is indexed directly by glfw.Key (glfw key codes top out
// around glfw.KeyLast, comfortably small for a dense slice).
var keymap = func() []Key {
	m := make([]Key, glfw.KeyLast+1)
	set := func(code glfw.Key, k Key) { m[code] = k }

	set(glfw.KeyGraveAccent, KeyGrave)
	set(glfw.Key1, Key1)
	set(glfw.Key2, Key2)
	set(glfw.Key3, Key3)
	set(glfw.Key4, Key4)
	set(glfw.Key5, Key5)
	set(glfw.Key6, Key6)
	set(glfw.Key7, Key7)
	set(glfw.Key8, Key8)
	set(glfw.Key9, Key9)
	set(glfw.Key0, Key0)
	set(glfw.KeyMinus, KeyMinus)
	set(glfw.KeyEqual, KeyEqual)
	set(glfw.KeyBackspace, KeyBackspace)
	set(glfw.KeyTab, KeyTab)
	set(glfw.KeyQ, KeyQ)
	set(glfw.KeyW, KeyW)
	set(glfw.KeyE, KeyE)
	set(glfw.KeyR, KeyR)
	set(glfw.KeyT, KeyT)
	set(glfw.KeyY, KeyY)
	set(glfw.KeyU, KeyU)
	set(glfw.KeyI, KeyI)
	set(glfw.KeyO, KeyO)
	set(glfw.KeyP, KeyP)
	set(glfw.KeyLeftBracket, KeyLBracket)
	set(glfw.KeyRightBracket, KeyRBracket)
	set(glfw.KeyBackslash, KeyBackslash)
	set(glfw.KeyCapsLock, KeyCapsLock)
	set(glfw.KeyA, KeyA)
	set(glfw.KeyS, KeyS)
	set(glfw.KeyD, KeyD)
	set(glfw.KeyF, KeyF)
	set(glfw.KeyG, KeyG)
	set(glfw.KeyH, KeyH)
	set(glfw.KeyJ, KeyJ)
	set(glfw.KeyK, KeyK)
	set(glfw.KeyL, KeyL)
	set(glfw.KeySemicolon, KeySemicolon)
	set(glfw.KeyApostrophe, KeyApostrophe)
	set(glfw.KeyEnter, KeyReturn)
	set(glfw.KeyLeftShift, KeyLShift)
	set(glfw.KeyZ, KeyZ)
	set(glfw.KeyX, KeyX)
	set(glfw.KeyC, KeyC)
	set(glfw.KeyV, KeyV)
	set(glfw.KeyB, KeyB)
	set(glfw.KeyN, KeyN)
	set(glfw.KeyM, KeyM)
	set(glfw.KeyComma, KeyComma)
	set(glfw.KeyPeriod, KeyDot)
	set(glfw.KeySlash, KeySlash)
	set(glfw.KeyRightShift, KeyRShift)
	set(glfw.KeyLeftControl, KeyLCtrl)
	set(glfw.KeyLeftAlt, KeyLAlt)
	set(glfw.KeyLeftSuper, KeyLMeta)
	set(glfw.KeySpace, KeySpace)
	set(glfw.KeyRightSuper, KeyRMeta)
	set(glfw.KeyRightAlt, KeyRAlt)
	set(glfw.KeyRightControl, KeyRCtrl)
	set(glfw.KeyEscape, KeyEsc)
	set(glfw.KeyF1, KeyF1)
	set(glfw.KeyF2, KeyF2)
	set(glfw.KeyF3, KeyF3)
	set(glfw.KeyF4, KeyF4)
	set(glfw.KeyF5, KeyF5)
	set(glfw.KeyF6, KeyF6)
	set(glfw.KeyF7, KeyF7)
	set(glfw.KeyF8, KeyF8)
	set(glfw.KeyF9, KeyF9)
	set(glfw.KeyF10, KeyF10)
	set(glfw.KeyF11, KeyF11)
	set(glfw.KeyF12, KeyF12)
	set(glfw.KeyUp, KeyUp)
	set(glfw.KeyDown, KeyDown)
	set(glfw.KeyLeft, KeyLeft)
	set(glfw.KeyRight, KeyRight)
	return m
}()
