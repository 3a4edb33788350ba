// Command vkforge is the renderer's entry point: it brings up a
// window and a Vulkan device, loads a glTF scene and a skybox
// cubemap, and drives the per-frame pass sequence (depth pre-pass +
// GPU frustum culling, cascaded shadow maps, cross-bilateral SSAO,
// PBR, metaball blobs, skybox, AgX tonemap finalize) until the window
// is closed.
package main

import (
	"fmt"
	"os"
	"time"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/blob"
	"github.com/vkforge/vkforge/config"
	"github.com/vkforge/vkforge/cull"
	"github.com/vkforge/vkforge/frame"
	"github.com/vkforge/vkforge/gfx"
	"github.com/vkforge/vkforge/logx"
	"github.com/vkforge/vkforge/render"
	"github.com/vkforge/vkforge/scene"
	"github.com/vkforge/vkforge/shadow"
	"github.com/vkforge/vkforge/ssao"
	"github.com/vkforge/vkforge/wsi"
)

func main() {
	cfg, err := config.Load("vkforge.toml")
	if err != nil {
		logx.Fatal("loading config", "err", err)
	}
	if st, err := os.Stat(cfg.Resources); err != nil || !st.IsDir() {
		logx.Fatal("resources directory not found", "path", cfg.Resources)
	}

	app, err := newApp(cfg)
	if err != nil {
		logx.Fatal("initializing renderer", "err", err)
	}
	defer app.Destroy()

	app.Run()
}

// app owns every long-lived resource the renderer needs across its
// lifetime: the window/device, the static scene data, every pass
// renderer, and the per-frame ring (frame.Loop).
type app struct {
	cfg config.Config
	win wsi.Window

	ctx     *gfx.Context
	surface vk.Surface
	loop    *frame.Loop

	shaders *gfx.ShaderLoader

	sceneSetLayout  vk.DescriptorSetLayout
	cullSetLayout   vk.DescriptorSetLayout
	shadowSetLayout vk.DescriptorSetLayout
	ssaoSampleLayout vk.DescriptorSetLayout
	ssaoFilterLayout vk.DescriptorSetLayout
	ssaoConsumeLayout vk.DescriptorSetLayout
	skyboxSetLayout vk.DescriptorSetLayout
	finalizeSetLayout vk.DescriptorSetLayout
	blobMeshLayout  vk.DescriptorSetLayout
	blobDrawLayout  vk.DescriptorSetLayout

	staticPool *gfx.DescriptorAllocator

	gscene  *scene.GPUScene
	cubemap *gfx.ImageWithView
	cubemapSampler vk.Sampler
	skyboxSet vk.DescriptorSet

	cascades     *shadow.Cascades
	shadowSampler vk.Sampler
	shadowSet    vk.DescriptorSet

	culler        *cull.Culler
	shadowRenderer *shadow.Renderer
	ssaoRenderer  *ssao.Renderer
	depthPass     *render.DepthPrePassRenderer
	pbrPass       *render.PbrSceneRenderer
	skyboxPass    *render.SkyboxRenderer
	finalizePass  *render.FinalizeRenderer
	blobBuffers   *blob.Buffers
	blobPass      *blob.Renderer

	metaballs []blob.Metaball

	screen *screenResources

	cam      *wsi.FlyCamera
	lastTime time.Time
	closed   bool

	frameIndex uint32 // rotates the SSAO sample kernel frame to frame

	reloadRequested bool
}

func newApp(cfg config.Config) (*app, error) {
	wsi.SetAppName(cfg.Window.Title)
	win, err := wsi.NewWindow(cfg.Window.Width, cfg.Window.Height, cfg.Window.Title)
	if err != nil {
		return nil, fmt.Errorf("vkforge: creating window: %w", err)
	}

	glfwWin := wsi.VulkanWindow(win)
	if glfwWin == nil {
		return nil, fmt.Errorf("vkforge: window has no Vulkan surface support")
	}

	instanceExts := glfwWin.GetRequiredInstanceExtensions()

	ctx, err := gfx.Init(cfg.Window.Title, instanceExts)
	if err != nil {
		return nil, fmt.Errorf("vkforge: gfx.Init: %w", err)
	}

	surfPtr, err := glfwWin.CreateWindowSurface(ctx.Instance, nil)
	if err != nil {
		return nil, fmt.Errorf("vkforge: CreateWindowSurface: %w", err)
	}
	surface := vk.SurfaceFromPointer(surfPtr)

	if err := win.Map(); err != nil {
		return nil, fmt.Errorf("vkforge: mapping window: %w", err)
	}

	a := &app{cfg: cfg, win: win, ctx: ctx, surface: surface}

	if err := a.buildStatic(); err != nil {
		return nil, err
	}
	if err := a.buildScreen(); err != nil {
		return nil, err
	}

	a.cam = wsi.NewFlyCamera(win.(interface{ CaptureCursor(bool) }), initialEye(a.gscene), cfg.Camera.MoveSpeed, cfg.Camera.FastMul)
	a.installHandlers()

	a.metaballs = demoMetaballs()

	a.lastTime = time.Now()
	return a, nil
}

// Run drives the main loop: dispatch platform events, advance the
// camera, and record+submit one frame, until the window requests a
// close.
func (a *app) Run() {
	for !a.win.ShouldClose() && !a.closed {
		wsi.Dispatch()

		t := time.Now()
		dt := float32(t.Sub(a.lastTime).Seconds())
		a.lastTime = t
		a.cam.Update(dt)

		if a.reloadRequested {
			a.reloadPipelines()
			a.reloadRequested = false
		}

		if err := a.loop.RenderFrame(a.record); err != nil {
			logx.L().Error("RenderFrame failed", "err", err)
		}
		a.rebuildScreenIfNeeded()
	}
}

func (a *app) Destroy() {
	vk.DeviceWaitIdle(a.ctx.Device)

	a.screen.Destroy(a.ctx)

	a.blobPass.Destroy()
	a.blobBuffers.Destroy()
	a.finalizePass.Destroy()
	a.skyboxPass.Destroy()
	a.pbrPass.Destroy()
	a.depthPass.Destroy()
	a.ssaoRenderer.Destroy()
	a.shadowRenderer.Destroy()
	a.culler.Destroy()

	a.cascades.Destroy()
	vk.DestroySampler(a.ctx.Device, a.shadowSampler, nil)

	a.cubemap.Destroy(a.ctx)
	vk.DestroySampler(a.ctx.Device, a.cubemapSampler, nil)

	a.gscene.Destroy()

	a.staticPool.Destroy()

	for _, l := range []vk.DescriptorSetLayout{
		a.sceneSetLayout, a.cullSetLayout, a.shadowSetLayout,
		a.ssaoSampleLayout, a.ssaoFilterLayout, a.ssaoConsumeLayout,
		a.skyboxSetLayout, a.finalizeSetLayout, a.blobMeshLayout, a.blobDrawLayout,
	} {
		vk.DestroyDescriptorSetLayout(a.ctx.Device, l, nil)
	}

	a.shaders.Destroy()
	a.loop.Destroy()
	vk.DestroySurface(a.ctx.Instance, a.surface, nil)
	a.ctx.Destroy()
	a.win.Close()
}

