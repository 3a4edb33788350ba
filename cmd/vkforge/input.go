package main

import (
	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/wsi"
)

// installHandlers wires app as every global wsi handler: window
// close, keyboard (forwarded to the fly camera, plus F5 for a
// pipeline reload), and pointer motion/buttons (fly camera
// mouselook).
func (a *app) installHandlers() {
	wsi.SetWindowCloseHandler(a)
	wsi.SetKeyboardKeyHandler(a)
	wsi.SetPointerMotionHandler(a)
	wsi.SetPointerButtonHandler(a)
}

func (a *app) WindowClose(wsi.Window) { a.closed = true }

func (a *app) KeyboardKey(key wsi.Key, pressed bool, mods wsi.Modifier) {
	if key == wsi.KeyF5 && pressed {
		a.reloadRequested = true
		return
	}
	a.cam.KeyboardKey(key, pressed, mods)
}

func (a *app) PointerMotion(x, y, dx, dy float64) { a.cam.PointerMotion(x, y, dx, dy) }

func (a *app) PointerButton(btn wsi.Button, pressed bool) { a.cam.PointerButton(btn, pressed) }

// reloadPipelines reloads every changed shader module and rebuilds
// every pipeline-owning renderer, waiting for the device to go idle
// first since the old pipelines may still be referenced by
// in-flight command buffers.
func (a *app) reloadPipelines() {
	vk.DeviceWaitIdle(a.ctx.Device)

	a.shaders.Reload()

	a.culler.Destroy()
	a.shadowRenderer.Destroy()
	a.ssaoRenderer.Destroy()
	a.depthPass.Destroy()
	a.pbrPass.Destroy()
	a.skyboxPass.Destroy()
	a.finalizePass.Destroy()
	a.blobPass.Destroy()

	if err := a.buildRenderers(); err != nil {
		panic("vkforge: pipeline reload failed: " + err.Error())
	}
}
