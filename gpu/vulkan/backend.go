// Package vulkan implements gpu.API on top of github.com/vulkan-go/vulkan.
//
// Vulkan objects are kept in per-category tables and exposed to callers as
// opaque gpu handles. A Backend is not safe for concurrent use.
package vulkan

import (
	"unsafe"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkboot/gpu"
)

// table maps opaque handles to Vulkan objects. Handle 0 is never issued.
type table[T any] struct {
	next uint64
	m    map[uint64]T
}

func (t *table[T]) add(v T) uint64 {
	if t.m == nil {
		t.m = make(map[uint64]T)
	}
	t.next++
	t.m[t.next] = v
	return t.next
}

func (t *table[T]) get(h uint64) T {
	return t.m[h]
}

func (t *table[T]) remove(h uint64) (T, bool) {
	v, ok := t.m[h]
	delete(t.m, h)
	return v, ok
}

// Backend is a gpu.API backed by the system Vulkan loader.
type Backend struct {
	instances  table[vk.Instance]
	callbacks  table[vk.DebugReportCallback]
	surfaces   table[vk.Surface]
	gpus       table[vk.PhysicalDevice]
	devices    table[vk.Device]
	queues     table[vk.Queue]
	swapchains table[vk.Swapchain]
	images     table[vk.Image]
	views      table[vk.ImageView]
	passes     table[vk.RenderPass]
	fbs        table[vk.Framebuffer]
	pools      table[vk.CommandPool]
	buffers    table[vk.CommandBuffer]
	fences     table[vk.Fence]
	semaphores table[vk.Semaphore]
	modules    table[vk.ShaderModule]

	// Enumerated objects are handed out once and reused.
	gpuIDs      map[vk.PhysicalDevice]gpu.PhysicalDevice
	queueIDs    map[vk.Queue]gpu.Queue
	swapImages  map[gpu.Swapchain][]gpu.Image
	poolBuffers map[gpu.CommandPool][]gpu.CommandBuffer
}

var _ gpu.API = (*Backend)(nil)

// New initializes the Vulkan loader from procAddr, the address of
// vkGetInstanceProcAddr as reported by the window system
// (glfw.GetVulkanGetInstanceProcAddress, sdl.VulkanGetVkGetInstanceProcAddr).
func New(procAddr unsafe.Pointer) (*Backend, error) {
	if procAddr == nil {
		return nil, errors.Wrap(gpu.ErrInitialization, "vulkan: nil vkGetInstanceProcAddr")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, errors.Wrap(err, "vulkan: init loader")
	}
	return &Backend{
		gpuIDs:      make(map[vk.PhysicalDevice]gpu.PhysicalDevice),
		queueIDs:    make(map[vk.Queue]gpu.Queue),
		swapImages:  make(map[gpu.Swapchain][]gpu.Image),
		poolBuffers: make(map[gpu.CommandPool][]gpu.CommandBuffer),
	}, nil
}

func (b *Backend) InstanceExtensions() (names []string, err error) {
	var count uint32
	if err := result(vk.EnumerateInstanceExtensionProperties("", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := result(vk.EnumerateInstanceExtensionProperties("", &count, list)); err != nil {
		return nil, err
	}
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func (b *Backend) InstanceLayers() (names []string, err error) {
	var count uint32
	if err := result(vk.EnumerateInstanceLayerProperties(&count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.LayerProperties, count)
	if err := result(vk.EnumerateInstanceLayerProperties(&count, list)); err != nil {
		return nil, err
	}
	for _, layer := range list {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:]))
	}
	return names, nil
}

func (b *Backend) CreateInstance(info gpu.InstanceInfo) (gpu.Instance, error) {
	var instance vk.Instance
	ret := vk.CreateInstance(&vk.InstanceCreateInfo{
		SType: vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: &vk.ApplicationInfo{
			SType:              vk.StructureTypeApplicationInfo,
			ApiVersion:         uint32(info.APIVersion),
			ApplicationVersion: uint32(info.AppVersion),
			PApplicationName:   safeString(info.AppName),
			PEngineName:        safeString("vkboot"),
		},
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}, nil, &instance)
	if err := result(ret); err != nil {
		return 0, err
	}
	if err := vk.InitInstance(instance); err != nil {
		vk.DestroyInstance(instance, nil)
		return 0, errors.Wrap(err, "vulkan: init instance procs")
	}
	return gpu.Instance(b.instances.add(instance)), nil
}

func (b *Backend) DestroyInstance(inst gpu.Instance) {
	if instance, ok := b.instances.remove(uint64(inst)); ok {
		vk.DestroyInstance(instance, nil)
	}
}

func (b *Backend) CreateDebugMessenger(inst gpu.Instance, fn gpu.DebugFunc) (gpu.DebugMessenger, error) {
	var cb vk.DebugReportCallback
	ret := vk.CreateDebugReportCallback(b.instances.get(uint64(inst)), &vk.DebugReportCallbackCreateInfo{
		SType: vk.StructureTypeDebugReportCallbackCreateInfo,
		Flags: vk.DebugReportFlags(vk.DebugReportErrorBit | vk.DebugReportWarningBit |
			vk.DebugReportPerformanceWarningBit),
		PfnCallback: func(flags vk.DebugReportFlags, objectType vk.DebugReportObjectType,
			object uint64, location uint, messageCode int32, pLayerPrefix string,
			pMessage string, pUserData unsafe.Pointer) vk.Bool32 {

			fn(severity(flags), pLayerPrefix, pMessage)
			return vk.Bool32(vk.False)
		},
	}, nil, &cb)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.DebugMessenger(b.callbacks.add(cb)), nil
}

func (b *Backend) DestroyDebugMessenger(inst gpu.Instance, m gpu.DebugMessenger) {
	if cb, ok := b.callbacks.remove(uint64(m)); ok {
		vk.DestroyDebugReportCallback(b.instances.get(uint64(inst)), cb, nil)
	}
}

func severity(flags vk.DebugReportFlags) gpu.Severity {
	switch {
	case flags&vk.DebugReportFlags(vk.DebugReportErrorBit) != 0:
		return gpu.SeverityError
	case flags&vk.DebugReportFlags(vk.DebugReportWarningBit) != 0:
		return gpu.SeverityWarning
	case flags&vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit) != 0:
		return gpu.SeverityPerformance
	case flags&vk.DebugReportFlags(vk.DebugReportDebugBit) != 0:
		return gpu.SeverityDebug
	}
	return gpu.SeverityInfo
}

func (b *Backend) CreateSurface(inst gpu.Instance, fn gpu.SurfaceFunc) (gpu.Surface, error) {
	raw, err := fn(b.instances.get(uint64(inst)))
	if err != nil {
		return 0, errors.Wrap(err, "vulkan: create window surface")
	}
	surface := vk.SurfaceFromPointer(raw)
	if surface == vk.NullSurface {
		return 0, errors.Wrap(gpu.ErrSurfaceLost, "vulkan: window returned a null surface")
	}
	return gpu.Surface(b.surfaces.add(surface)), nil
}

func (b *Backend) DestroySurface(inst gpu.Instance, s gpu.Surface) {
	if surface, ok := b.surfaces.remove(uint64(s)); ok {
		vk.DestroySurface(b.instances.get(uint64(inst)), surface, nil)
	}
}
