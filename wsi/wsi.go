// Copyright 2022 Gustavo C. Viegas. All rights reserved.

// Package wsi provides window system integration (WSI) for the
// renderer: a single glfw-backed Window implementation (desktop
// Linux/Windows/macOS) behind the same small event-driven surface
// the rest of the renderer drives its main loop from.
package wsi

import (
	"errors"
)

// Window is the interface that defines a drawable window.
// The purpose of a window is to provide a surface into
// which a GPU can draw.
type Window interface {
	// Map makes the window visible.
	Map() error

	// Unmap hides the window.
	Unmap() error

	// Resize resizes the window.
	Resize(width, height int) error

	// SetTitle sets the window's title.
	SetTitle(title string) error

	// Close closes the window.
	Close()

	// Width returns the window's width.
	Width() int

	// Height returns the window's height.
	Height() int

	// Title returns the window's title.
	Title() string

	// ShouldClose reports whether the platform requested the window
	// be closed (e.g. the user clicked the close button).
	ShouldClose() bool
}

// NewWindow creates a new window.
func NewWindow(width, height int, title string) (Window, error) {
	if windowCount >= MaxWindows {
		return nil, errors.New("wsi: too many windows")
	}
	win, err := newWindow(width, height, title)
	if err != nil {
		return nil, err
	}
	for i := range createdWindows {
		if createdWindows[i] == nil {
			createdWindows[i] = win
			windowCount++
			break
		}
	}
	return win, nil
}

var newWindow func(int, int, string) (Window, error)

// MaxWindows is the maximum number of windows that can exist at any
// given time.
const MaxWindows = 16

// Windows returns all created windows.
// The returned value becomes out of date after calls to
// NewWindow and Window.Close.
func Windows() []Window {
	if windowCount == 0 {
		return nil
	}
	wins := make([]Window, 0, windowCount)
	for i := range createdWindows {
		if createdWindows[i] != nil {
			wins = append(wins, createdWindows[i])
		}
	}
	return wins
}

// closeWindow removes win from createdWindows and decrements
// windowCount. It must be called by implementations on win.Close.
func closeWindow(win Window) {
	for i := range createdWindows {
		if createdWindows[i] == win {
			createdWindows[i] = nil
			windowCount--
			return
		}
	}
}

var (
	windowCount    int
	createdWindows [MaxWindows]Window
)

// Key is the type of keyboard keys, mapped from glfw's key codes in
// keymap.go.
type Key int

// Keyboard keys.
const (
	KeyUnknown Key = iota
	KeyGrave
	Key1
	Key2
	Key3
	Key4
	Key5
	Key6
	Key7
	Key8
	Key9
	Key0
	KeyMinus
	KeyEqual
	KeyBackspace
	KeyTab
	KeyQ
	KeyW
	KeyE
	KeyR
	KeyT
	KeyY
	KeyU
	KeyI
	KeyO
	KeyP
	KeyLBracket
	KeyRBracket
	KeyBackslash
	KeyCapsLock
	KeyA
	KeyS
	KeyD
	KeyF
	KeyG
	KeyH
	KeyJ
	KeyK
	KeyL
	KeySemicolon
	KeyApostrophe
	KeyReturn
	KeyLShift
	KeyZ
	KeyX
	KeyC
	KeyV
	KeyB
	KeyN
	KeyM
	KeyComma
	KeyDot
	KeySlash
	KeyRShift
	KeyLCtrl
	KeyLAlt
	KeyLMeta
	KeySpace
	KeyRMeta
	KeyRAlt
	KeyRCtrl
	KeyEsc
	KeyF1
	KeyF2
	KeyF3
	KeyF4
	KeyF5
	KeyF6
	KeyF7
	KeyF8
	KeyF9
	KeyF10
	KeyF11
	KeyF12
	KeyUp
	KeyDown
	KeyLeft
	KeyRight
)

// Modifier is the type of modifier flags.
type Modifier int

// Modifier flags.
const (
	ModShift Modifier = 1 << iota
	ModCtrl
	ModAlt
)

// Button is the type of pointer buttons.
type Button int

// Pointer buttons.
const (
	BtnUnknown Button = iota
	BtnLeft
	BtnRight
	BtnMiddle
)

// WindowCloseHandler is called when a window is closed.
type WindowCloseHandler interface {
	WindowClose(win Window)
}

// WindowResizeHandler is called when a window is resized.
type WindowResizeHandler interface {
	WindowResize(win Window, newWidth, newHeight int)
}

// KeyboardKeyHandler is called when a key is pressed or released.
type KeyboardKeyHandler interface {
	KeyboardKey(key Key, pressed bool, modMask Modifier)
}

// PointerMotionHandler is called when the pointer moves, reporting
// the absolute position and the delta since the last event (the
// delta is what FlyCamera consumes; absolute position matters only
// while the pointer is not captured).
type PointerMotionHandler interface {
	PointerMotion(x, y, dx, dy float64)
}

// PointerButtonHandler is called when a pointer button changes state.
type PointerButtonHandler interface {
	PointerButton(btn Button, pressed bool)
}

// SetWindowCloseHandler sets the global window-close handler.
func SetWindowCloseHandler(h WindowCloseHandler) { windowCloseHandler = h }

// SetWindowResizeHandler sets the global window-resize handler.
func SetWindowResizeHandler(h WindowResizeHandler) { windowResizeHandler = h }

// SetKeyboardKeyHandler sets the global keyboard handler.
func SetKeyboardKeyHandler(h KeyboardKeyHandler) { keyboardKeyHandler = h }

// SetPointerMotionHandler sets the global pointer-motion handler.
func SetPointerMotionHandler(h PointerMotionHandler) { pointerMotionHandler = h }

// SetPointerButtonHandler sets the global pointer-button handler.
func SetPointerButtonHandler(h PointerButtonHandler) { pointerButtonHandler = h }

var (
	windowCloseHandler   WindowCloseHandler
	windowResizeHandler  WindowResizeHandler
	keyboardKeyHandler   KeyboardKeyHandler
	pointerMotionHandler PointerMotionHandler
	pointerButtonHandler PointerButtonHandler
)

// Dispatch polls and dispatches queued platform events.
func Dispatch() {
	dispatch()
}

var dispatch func()

// AppName returns the string used to identify the application.
func AppName() string {
	return appName
}

// SetAppName updates the string used to identify the application.
func SetAppName(s string) {
	appName = s
}

var appName string
