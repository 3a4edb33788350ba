// Package gfx is the renderer's Vulkan access layer: instance/device
// setup, swapchain management, resource allocation, descriptor and
// transient-buffer allocators, shader/pipeline construction, and
// dynamic-rendering framebuffer binding.
//
// The package follows the process-wide singleton, init-then-use
// lifecycle used throughout this module (see logx, and the
// ctxt-style loadDriver pattern it is grounded on): Init installs a
// context, Ctx retrieves it, and nothing here is safe to call
// concurrently with Init.
package gfx

import (
	"errors"
	"fmt"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/vkforge/vkforge/logx"
)

// ErrNoDevice means that no Vulkan physical device satisfies the
// renderer's feature requirements.
var ErrNoDevice = errors.New("gfx: no suitable device found")

// MaxFramesInFlight bounds the number of CPU-side frames the frame
// loop allows in flight at once; per-ring resources (command
// buffers, descriptor allocators, transient buffer allocators,
// deferred-destruction rings) are all sized off this constant, while
// per-swapchain-image resources are sized off the swapchain's image
// count.
const MaxFramesInFlight = 2

// Context owns the Vulkan instance, the selected physical device,
// the logical device, and its queues. It is the root object every
// other gfx type is constructed from.
type Context struct {
	Instance       vk.Instance
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device

	GraphicsQueue      vk.Queue
	GraphicsFamily     uint32
	TransferQueue      vk.Queue
	TransferFamily     uint32
	PresentFamily      uint32

	MemProps  vk.PhysicalDeviceMemoryProperties
	DevProps  vk.PhysicalDeviceProperties
}

var current *Context

// Init creates the Vulkan instance and device and installs the
// resulting Context as the process-wide instance. appName is used
// only for VkApplicationInfo; it has no effect on behavior.
func Init(appName string, instanceExts []string) (*Context, error) {
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("gfx: vk.Init: %w", err)
	}

	appInfo := vk.ApplicationInfo{
		SType:         vk.StructureTypeApplicationInfo,
		PApplicationName: cstr(appName),
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:      cstr("vkforge"),
		EngineVersion:    vk.MakeVersion(1, 0, 0),
		ApiVersion:       vk.ApiVersion13,
	}

	instCreate := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(instanceExts)),
		PpEnabledExtensionNames: instanceExts,
	}

	var inst vk.Instance
	if res := vk.CreateInstance(&instCreate, nil, &inst); res != vk.Success {
		return nil, fmt.Errorf("gfx: CreateInstance failed: %d", res)
	}
	vk.InitInstance(inst)

	phys, graphicsFam, transferFam, err := pickPhysicalDevice(inst)
	if err != nil {
		vk.DestroyInstance(inst, nil)
		return nil, err
	}

	dev, gq, tq, err := createDevice(phys, graphicsFam, transferFam)
	if err != nil {
		vk.DestroyInstance(inst, nil)
		return nil, err
	}

	c := &Context{
		Instance:       inst,
		PhysicalDevice: phys,
		Device:         dev,
		GraphicsQueue:  gq,
		GraphicsFamily: graphicsFam,
		TransferQueue:  tq,
		TransferFamily: transferFam,
		PresentFamily:  graphicsFam,
	}
	vk.GetPhysicalDeviceMemoryProperties(phys, &c.MemProps)
	vk.GetPhysicalDeviceProperties(phys, &c.DevProps)

	current = c
	logx.L().Info("gfx context initialized", "device", deviceName(c.DevProps))
	return c, nil
}

// Ctx returns the process-wide Context installed by Init. It panics
// if Init has not been called: this is programmer error, not a
// recoverable runtime condition.
func Ctx() *Context {
	if current == nil {
		panic("gfx: Init not called")
	}
	return current
}

// pickPhysicalDevice selects the first device exposing a graphics
// queue family and, if available, a dedicated transfer-only family
// (used for background uploads so they do not contend with the
// graphics queue's frame-loop submissions). Falls back to using the
// graphics family for transfer when no dedicated family exists.
func pickPhysicalDevice(inst vk.Instance) (dev vk.PhysicalDevice, graphicsFam, transferFam uint32, err error) {
	var count uint32
	vk.EnumeratePhysicalDevices(inst, &count, nil)
	if count == 0 {
		return 0, 0, 0, ErrNoDevice
	}
	devices := make([]vk.PhysicalDevice, count)
	vk.EnumeratePhysicalDevices(inst, &count, devices)

	for _, d := range devices {
		var qc uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(d, &qc, nil)
		families := make([]vk.QueueFamilyProperties, qc)
		vk.GetPhysicalDeviceQueueFamilyProperties(d, &qc, families)

		gf, gfOk := -1, false
		tf, tfOk := -1, false
		for i, f := range families {
			f.Deref()
			if f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 && !gfOk {
				gf, gfOk = i, true
			}
			isTransferOnly := f.QueueFlags&vk.QueueFlags(vk.QueueTransferBit) != 0 &&
				f.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) == 0 &&
				f.QueueFlags&vk.QueueFlags(vk.QueueComputeBit) == 0
			if isTransferOnly && !tfOk {
				tf, tfOk = i, true
			}
		}
		if !gfOk {
			continue
		}
		if !tfOk {
			tf = gf
		}
		return d, uint32(gf), uint32(tf), nil
	}
	return 0, 0, 0, ErrNoDevice
}

func createDevice(phys vk.PhysicalDevice, graphicsFam, transferFam uint32) (vk.Device, vk.Queue, vk.Queue, error) {
	priority := float32(1)
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: graphicsFam,
		QueueCount:       1,
		PQueuePriorities: []float32{priority},
	}}
	if transferFam != graphicsFam {
		queueInfos = append(queueInfos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: transferFam,
			QueueCount:       1,
			PQueuePriorities: []float32{priority},
		})
	}

	// Features enabled for the renderer: synchronization2 and
	// dynamic rendering (no render-pass/framebuffer objects), and
	// descriptor indexing (bindless image table). No other device
	// feature is requested.
	sync2 := vk.PhysicalDeviceSynchronization2Features{
		SType:            vk.StructureTypePhysicalDeviceSynchronization2Features,
		Synchronization2: vk.True,
	}
	dynRender := vk.PhysicalDeviceDynamicRenderingFeatures{
		SType:            vk.StructureTypePhysicalDeviceDynamicRenderingFeatures,
		PNext:            unsafe.Pointer(&sync2),
		DynamicRendering: vk.True,
	}
	descIndex := vk.PhysicalDeviceDescriptorIndexingFeatures{
		SType: vk.StructureTypePhysicalDeviceDescriptorIndexingFeatures,
		PNext: unsafe.Pointer(&dynRender),
		ShaderSampledImageArrayNonUniformIndexing: vk.True,
		DescriptorBindingPartiallyBound:           vk.True,
		DescriptorBindingVariableDescriptorCount:  vk.True,
		RuntimeDescriptorArray:                    vk.True,
	}

	devExts := []string{
		"VK_KHR_swapchain",
		"VK_KHR_dynamic_rendering",
		"VK_KHR_synchronization2",
	}

	devCreate := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		PNext:                   unsafe.Pointer(&descIndex),
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(devExts)),
		PpEnabledExtensionNames: devExts,
	}

	var dev vk.Device
	if res := vk.CreateDevice(phys, &devCreate, nil, &dev); res != vk.Success {
		return nil, nil, nil, fmt.Errorf("gfx: CreateDevice failed: %d", res)
	}
	vk.InitDevice(dev)

	var gq, tq vk.Queue
	vk.GetDeviceQueue(dev, graphicsFam, 0, &gq)
	vk.GetDeviceQueue(dev, transferFam, 0, &tq)
	return dev, gq, tq, nil
}

// SetDebugName attaches a VK_EXT_debug_utils object name to handle,
// surfaced in validation messages and capture tools. A no-op unless
// the instance was created with VK_EXT_debug_utils (Init never
// requests it on its own — callers that want object naming must add
// it to instanceExts).
func (c *Context) SetDebugName(objectType vk.ObjectType, handle uint64, name string) {
	info := vk.DebugUtilsObjectNameInfoExt{
		SType:        vk.StructureTypeDebugUtilsObjectNameInfoExt,
		ObjectType:   objectType,
		ObjectHandle: handle,
		PObjectName:  cstr(name),
	}
	vk.SetDebugUtilsObjectNameExt(c.Device, &info)
}

// Destroy tears down the device and instance. Callers must have
// destroyed every resource built on top of this Context first.
func (c *Context) Destroy() {
	vk.DestroyDevice(c.Device, nil)
	vk.DestroyInstance(c.Instance, nil)
	if current == c {
		current = nil
	}
}

func deviceName(p vk.PhysicalDeviceProperties) string {
	p.Deref()
	n := p.DeviceName
	b := make([]byte, 0, len(n))
	for _, c := range n {
		if c == 0 {
			break
		}
		b = append(b, byte(c))
	}
	return string(b)
}
