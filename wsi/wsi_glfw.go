// Copyright 2022 Gustavo C. Viegas. All rights reserved.

package wsi

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/vkforge/vkforge/logx"
)

func init() {
	newWindow = newGlfwWindow
	dispatch = glfw.PollEvents
}

// glfwWindow is the Window implementation backing every platform
// glfw supports; there are no separate X11/Wayland/Win32 cgo
// backends (see DESIGN.md).
type glfwWindow struct {
	win   *glfw.Window
	title string

	lastX, lastY float64
	haveLast     bool
}

func initGlfw() error {
	if glfwInitDone {
		return nil
	}
	if err := glfw.Init(); err != nil {
		return fmt.Errorf("wsi: glfw.Init failed: %w", err)
	}
	glfwInitDone = true
	return nil
}

var glfwInitDone bool

func newGlfwWindow(width, height int, title string) (Window, error) {
	if err := initGlfw(); err != nil {
		return nil, err
	}

	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI) // this module drives Vulkan itself
	glfw.WindowHint(glfw.Resizable, glfw.True)

	w, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		return nil, fmt.Errorf("wsi: glfw.CreateWindow failed: %w", err)
	}

	gw := &glfwWindow{win: w, title: title}

	w.SetCloseCallback(func(*glfw.Window) {
		if windowCloseHandler != nil {
			windowCloseHandler.WindowClose(gw)
		}
	})
	w.SetSizeCallback(func(_ *glfw.Window, width, height int) {
		if windowResizeHandler != nil {
			windowResizeHandler.WindowResize(gw, width, height)
		}
	})
	w.SetKeyCallback(func(_ *glfw.Window, key glfw.Key, _ int, action glfw.Action, mods glfw.ModifierKey) {
		if keyboardKeyHandler == nil || action == glfw.Repeat {
			return
		}
		keyboardKeyHandler.KeyboardKey(keyFrom(int(key)), action == glfw.Press, modifierFrom(mods))
	})
	w.SetCursorPosCallback(func(_ *glfw.Window, x, y float64) {
		if pointerMotionHandler == nil {
			return
		}
		var dx, dy float64
		if gw.haveLast {
			dx, dy = x-gw.lastX, y-gw.lastY
		}
		gw.lastX, gw.lastY, gw.haveLast = x, y, true
		pointerMotionHandler.PointerMotion(x, y, dx, dy)
	})
	w.SetMouseButtonCallback(func(_ *glfw.Window, button glfw.MouseButton, action glfw.Action, _ glfw.ModifierKey) {
		if pointerButtonHandler == nil {
			return
		}
		var btn Button
		switch button {
		case glfw.MouseButtonLeft:
			btn = BtnLeft
		case glfw.MouseButtonRight:
			btn = BtnRight
		case glfw.MouseButtonMiddle:
			btn = BtnMiddle
		default:
			btn = BtnUnknown
		}
		pointerButtonHandler.PointerButton(btn, action == glfw.Press)
	})

	logx.L().Info("window created", "width", width, "height", height, "title", title)
	return gw, nil
}

func modifierFrom(mods glfw.ModifierKey) Modifier {
	var m Modifier
	if mods&glfw.ModShift != 0 {
		m |= ModShift
	}
	if mods&glfw.ModControl != 0 {
		m |= ModCtrl
	}
	if mods&glfw.ModAlt != 0 {
		m |= ModAlt
	}
	return m
}

func (w *glfwWindow) Map() error {
	w.win.Show()
	return nil
}

func (w *glfwWindow) Unmap() error {
	w.win.Hide()
	return nil
}

func (w *glfwWindow) Resize(width, height int) error {
	w.win.SetSize(width, height)
	return nil
}

func (w *glfwWindow) SetTitle(title string) error {
	w.win.SetTitle(title)
	w.title = title
	return nil
}

func (w *glfwWindow) Close() {
	w.win.Destroy()
	closeWindow(w)
}

func (w *glfwWindow) Width() int {
	width, _ := w.win.GetSize()
	return width
}

func (w *glfwWindow) Height() int {
	_, height := w.win.GetSize()
	return height
}

func (w *glfwWindow) Title() string { return w.title }

func (w *glfwWindow) ShouldClose() bool { return w.win.ShouldClose() }

// CaptureCursor hides and locks the cursor to the window for
// mouselook, or restores the normal cursor.
func (w *glfwWindow) CaptureCursor(captured bool) {
	if captured {
		w.win.SetInputMode(glfw.CursorMode, glfw.CursorDisabled)
	} else {
		w.win.SetInputMode(glfw.CursorMode, glfw.CursorNormal)
	}
}

// VulkanWindow exposes the underlying *glfw.Window for callers that
// need to create a VkSurfaceKHR (glfw.CreateWindowSurface) or query
// the required instance extensions (glfw.GetRequiredInstanceExtensions),
// neither of which belongs behind the platform-agnostic Window
// interface.
func VulkanWindow(w Window) *glfw.Window {
	gw, ok := w.(*glfwWindow)
	if !ok {
		return nil
	}
	return gw.win
}
