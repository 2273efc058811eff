// Package gputest provides an instrumented in-memory gpu.API.
//
// Mock issues handles from a single counter, logs every creation and
// destruction, and simulates a GPU timeline: submitted work stays pending
// until a fence wait or device-idle wait completes it. Misuse that a real
// driver would reject or that validation layers would report (destroying a
// parent before its children, resetting a command buffer that is still in
// flight, waiting on an unsignaled semaphore) is recorded as a violation
// instead of failing the call.
package gputest

import (
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// Kind names a category of owned object.
type Kind string

const (
	KindInstance       Kind = "instance"
	KindDebugMessenger Kind = "debug-messenger"
	KindSurface        Kind = "surface"
	KindDevice         Kind = "device"
	KindSwapchain      Kind = "swapchain"
	KindImageView      Kind = "image-view"
	KindRenderPass     Kind = "render-pass"
	KindFramebuffer    Kind = "framebuffer"
	KindCommandPool    Kind = "command-pool"
	KindCommandBuffer  Kind = "command-buffer"
	KindFence          Kind = "fence"
	KindSemaphore      Kind = "semaphore"
	KindShaderModule   Kind = "shader-module"
)

// Event is one entry of the creation/destruction log.
type Event struct {
	Destroy bool
	Kind    Kind
	Handle  uint64
}

func (e Event) String() string {
	op := "create"
	if e.Destroy {
		op = "destroy"
	}
	return fmt.Sprintf("%s %s#%d", op, e.Kind, e.Handle)
}

// PhysicalDeviceConfig describes a fake physical device and the surface
// properties it reports.
type PhysicalDeviceConfig struct {
	Name       string
	Type       gpu.DeviceType
	APIVersion gpu.Version
	Extensions []string
	Families   []gpu.QueueFamily
	// PresentFamilies lists the families that can present. Nil means every
	// graphics family can.
	PresentFamilies []uint32
	Capabilities    gpu.SurfaceCapabilities
	Formats         []gpu.SurfaceFormat
	PresentModes    []gpu.PresentMode
}

// DefaultDevice is a discrete Vulkan 1.1 device with one graphics family
// that can present, and a surface fixed at 1280x700.
func DefaultDevice() PhysicalDeviceConfig {
	return PhysicalDeviceConfig{
		Name:       "mock discrete",
		Type:       gpu.DeviceTypeDiscreteGPU,
		APIVersion: gpu.MakeVersion(1, 1, 0),
		Extensions: []string{"VK_KHR_swapchain"},
		Families: []gpu.QueueFamily{
			{Graphics: true, Compute: true, Transfer: true, Count: 1},
		},
		Capabilities: gpu.SurfaceCapabilities{
			MinImageCount:           2,
			MaxImageCount:           8,
			CurrentExtent:           gpu.Extent2D{Width: 1280, Height: 700},
			MinImageExtent:          gpu.Extent2D{Width: 1, Height: 1},
			MaxImageExtent:          gpu.Extent2D{Width: 4096, Height: 4096},
			CurrentTransform:        1,
			SupportedCompositeAlpha: 1,
		},
		Formats: []gpu.SurfaceFormat{
			{Format: gpu.FormatB8G8R8A8Unorm, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
			{Format: gpu.FormatB8G8R8A8Srgb, ColorSpace: gpu.ColorSpaceSrgbNonlinear},
		},
		PresentModes: []gpu.PresentMode{gpu.PresentModeMailbox, gpu.PresentModeFifo},
	}
}

type object struct {
	kind Kind
	deps []uint64
}

type fenceState struct {
	signaled bool
}

type bufferState int

const (
	bufferInitial bufferState = iota
	bufferRecording
	bufferExecutable
	bufferPending
)

type commandBuffer struct {
	pool   uint64
	state  bufferState
	inPass bool
}

type swapchainState struct {
	images   []gpu.Image
	next     int
	acquired map[uint32]bool
}

type submission struct {
	fence   uint64
	buffers []uint64
}

// Mock is an in-memory gpu.API. Configuration fields must be set before the
// first call; everything else is guarded by an internal lock.
type Mock struct {
	InstanceExtensionList []string
	InstanceLayerList     []string
	Devices               []PhysicalDeviceConfig

	mu         sync.Mutex
	next       uint64
	live       map[uint64]*object
	events     []Event
	trace      []string
	violations []string
	failNext   map[string][]error
	failAlways map[string]error
	hung       bool

	pds        []uint64
	pdInstance uint64
	queues     map[uint64]gpu.Queue
	messengers map[uint64]gpu.DebugFunc
	fences     map[uint64]*fenceState
	semaphores map[uint64]bool
	buffers    map[uint64]*commandBuffer
	swapchains map[uint64]*swapchainState
	inflight   []submission

	instanceInfo  gpu.InstanceInfo
	deviceInfo    gpu.DeviceInfo
	deviceCaps    *gpu.SurfaceCapabilities
	swapchainInfo gpu.SwapchainInfo
	views         map[uint64]gpu.Image
	framebuffers  map[uint64]gpu.FramebufferInfo
	passes        []gpu.RenderPassBegin
	submits       []gpu.SubmitInfo
	presents      []gpu.PresentInfo
	modules       map[uint64][]byte
}

var _ gpu.API = (*Mock)(nil)

// New returns a Mock with a surface-capable instance and DefaultDevice.
func New() *Mock {
	return &Mock{
		InstanceExtensionList: []string{"VK_KHR_surface", "VK_KHR_xcb_surface", "VK_EXT_debug_report"},
		InstanceLayerList:     []string{"VK_LAYER_KHRONOS_validation"},
		Devices:               []PhysicalDeviceConfig{DefaultDevice()},

		live:       make(map[uint64]*object),
		failNext:   make(map[string][]error),
		failAlways: make(map[string]error),
		queues:     make(map[uint64]gpu.Queue),
		messengers: make(map[uint64]gpu.DebugFunc),
		fences:     make(map[uint64]*fenceState),
		semaphores: make(map[uint64]bool),
		buffers:    make(map[uint64]*commandBuffer),
		swapchains: make(map[uint64]*swapchainState),
		views:      make(map[uint64]gpu.Image),

		framebuffers: make(map[uint64]gpu.FramebufferInfo),
		modules:      make(map[uint64][]byte),
	}
}

// FailNext makes the next calls to op return errs, one per call.
// Op is the gpu.API method name, e.g. "QueueSubmit".
func (m *Mock) FailNext(op string, errs ...error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.failNext[op] = append(m.failNext[op], errs...)
}

// FailAlways makes every call to op return err until cleared with a nil err.
func (m *Mock) FailAlways(op string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failAlways, op)
		return
	}
	m.failAlways[op] = err
}

// SetHung stops (or resumes) completion of submitted work. While hung,
// fence waits time out and device-idle waits report device loss.
func (m *Mock) SetHung(hung bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.hung = hung
}

// Emit delivers a message to every live debug messenger.
func (m *Mock) Emit(sev gpu.Severity, prefix, msg string) {
	m.mu.Lock()
	fns := make([]gpu.DebugFunc, 0, len(m.messengers))
	for _, fn := range m.messengers {
		fns = append(fns, fn)
	}
	m.mu.Unlock()
	for _, fn := range fns {
		fn(sev, prefix, msg)
	}
}

// Live reports the number of owned objects that have not been destroyed.
func (m *Mock) Live() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.live)
}

// LiveKinds reports the live object count per kind.
func (m *Mock) LiveKinds() map[Kind]int {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make(map[Kind]int)
	for _, o := range m.live {
		out[o.kind]++
	}
	return out
}

// Events returns the creation/destruction log.
func (m *Mock) Events() []Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Event(nil), m.events...)
}

// Created returns the handles created so far, in creation order.
func (m *Mock) Created() []uint64 {
	return m.filter(false)
}

// Destroyed returns the handles destroyed so far, in destruction order.
func (m *Mock) Destroyed() []uint64 {
	return m.filter(true)
}

func (m *Mock) filter(destroy bool) (out []uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.events {
		if e.Destroy == destroy {
			out = append(out, e.Handle)
		}
	}
	return out
}

// Trace returns the names of the gpu.API methods called, in order.
func (m *Mock) Trace() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.trace...)
}

// ResetTrace clears the call trace.
func (m *Mock) ResetTrace() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trace = nil
}

// Violations returns every misuse recorded so far.
func (m *Mock) Violations() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.violations...)
}

// InstanceInfo returns the info passed to the last CreateInstance.
func (m *Mock) InstanceInfo() gpu.InstanceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.instanceInfo
}

// DeviceInfo returns the info passed to the last CreateDevice.
func (m *Mock) DeviceInfo() gpu.DeviceInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.deviceInfo
}

// SwapchainInfo returns the info passed to the last CreateSwapchain.
func (m *Mock) SwapchainInfo() gpu.SwapchainInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.swapchainInfo
}

// Framebuffer returns the info fb was created with.
func (m *Mock) Framebuffer(fb gpu.Framebuffer) gpu.FramebufferInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.framebuffers[uint64(fb)]
}

// ViewImage returns the image a view was created for.
func (m *Mock) ViewImage(v gpu.ImageView) gpu.Image {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.views[uint64(v)]
}

// RenderPasses returns every render pass instance recorded.
func (m *Mock) RenderPasses() []gpu.RenderPassBegin {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gpu.RenderPassBegin(nil), m.passes...)
}

// Submits returns every accepted queue submission.
func (m *Mock) Submits() []gpu.SubmitInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gpu.SubmitInfo(nil), m.submits...)
}

// Presents returns every accepted present request.
func (m *Mock) Presents() []gpu.PresentInfo {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]gpu.PresentInfo(nil), m.presents...)
}

// ShaderCode returns the bytes a shader module was created from.
func (m *Mock) ShaderCode(sm gpu.ShaderModule) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.modules[uint64(sm)]
}

// Pending reports the number of submissions the GPU has not completed.
func (m *Mock) Pending() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.inflight)
}

// call records op in the trace and returns an injected failure, if any.
// The caller holds m.mu.
func (m *Mock) call(op string) error {
	m.trace = append(m.trace, op)
	if errs := m.failNext[op]; len(errs) > 0 {
		m.failNext[op] = errs[1:]
		return errs[0]
	}
	return m.failAlways[op]
}

func (m *Mock) violate(format string, args ...interface{}) {
	m.violations = append(m.violations, fmt.Sprintf(format, args...))
}

func (m *Mock) handle() uint64 {
	m.next++
	return m.next
}

func (m *Mock) create(kind Kind, deps ...uint64) uint64 {
	h := m.handle()
	m.live[h] = &object{kind: kind, deps: deps}
	m.events = append(m.events, Event{Kind: kind, Handle: h})
	return h
}

// check reports whether h is a live object of the given kind, recording a
// violation otherwise.
func (m *Mock) check(op string, kind Kind, h uint64) bool {
	o, ok := m.live[h]
	switch {
	case h == 0:
		m.violate("%s: null %s", op, kind)
	case !ok:
		m.violate("%s: %s#%d is not alive", op, kind, h)
	case o.kind != kind:
		m.violate("%s: #%d is a %s, not a %s", op, h, o.kind, kind)
	default:
		return true
	}
	return false
}

func (m *Mock) destroy(op string, kind Kind, h uint64) bool {
	if !m.check(op, kind, h) {
		return false
	}
	var dependents []string
	for id, o := range m.live {
		for _, d := range o.deps {
			if d == h {
				dependents = append(dependents, fmt.Sprintf("%s#%d", o.kind, id))
			}
		}
	}
	if len(dependents) > 0 {
		sort.Strings(dependents)
		m.violate("%s: %s#%d destroyed while %s still alive", op, kind, h, strings.Join(dependents, ", "))
	}
	delete(m.live, h)
	m.events = append(m.events, Event{Destroy: true, Kind: kind, Handle: h})
	return true
}

func (m *Mock) InstanceExtensions() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("InstanceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.InstanceExtensionList...), nil
}

func (m *Mock) InstanceLayers() ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("InstanceLayers"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.InstanceLayerList...), nil
}

func (m *Mock) CreateInstance(info gpu.InstanceInfo) (gpu.Instance, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateInstance"); err != nil {
		return 0, err
	}
	if miss := missing(info.Extensions, m.InstanceExtensionList); len(miss) > 0 {
		return 0, errors.Wrap(gpu.ErrExtensionNotPresent, strings.Join(miss, ", "))
	}
	if miss := missing(info.Layers, m.InstanceLayerList); len(miss) > 0 {
		return 0, errors.Wrap(gpu.ErrLayerNotPresent, strings.Join(miss, ", "))
	}
	m.instanceInfo = info
	return gpu.Instance(m.create(KindInstance)), nil
}

func missing(want, have []string) (out []string) {
	for _, w := range want {
		found := false
		for _, h := range have {
			if w == h {
				found = true
				break
			}
		}
		if !found {
			out = append(out, w)
		}
	}
	return out
}

func (m *Mock) DestroyInstance(inst gpu.Instance) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyInstance")
	m.destroy("DestroyInstance", KindInstance, uint64(inst))
}

func (m *Mock) CreateDebugMessenger(inst gpu.Instance, fn gpu.DebugFunc) (gpu.DebugMessenger, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateDebugMessenger"); err != nil {
		return 0, err
	}
	if !m.check("CreateDebugMessenger", KindInstance, uint64(inst)) {
		return 0, gpu.ErrInitialization
	}
	h := m.create(KindDebugMessenger, uint64(inst))
	m.messengers[h] = fn
	return gpu.DebugMessenger(h), nil
}

func (m *Mock) DestroyDebugMessenger(inst gpu.Instance, dm gpu.DebugMessenger) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyDebugMessenger")
	m.destroy("DestroyDebugMessenger", KindDebugMessenger, uint64(dm))
	delete(m.messengers, uint64(dm))
}

// CreateSurface calls fn with the instance handle as the raw instance.
func (m *Mock) CreateSurface(inst gpu.Instance, fn gpu.SurfaceFunc) (gpu.Surface, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateSurface"); err != nil {
		return 0, err
	}
	if !m.check("CreateSurface", KindInstance, uint64(inst)) {
		return 0, gpu.ErrInitialization
	}
	if _, err := fn(uint64(inst)); err != nil {
		return 0, err
	}
	return gpu.Surface(m.create(KindSurface, uint64(inst))), nil
}

func (m *Mock) DestroySurface(inst gpu.Instance, s gpu.Surface) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroySurface")
	m.destroy("DestroySurface", KindSurface, uint64(s))
}

func (m *Mock) PhysicalDevices(inst gpu.Instance) ([]gpu.PhysicalDevice, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("PhysicalDevices"); err != nil {
		return nil, err
	}
	m.pdInstance = uint64(inst)
	for len(m.pds) < len(m.Devices) {
		m.pds = append(m.pds, m.handle())
	}
	out := make([]gpu.PhysicalDevice, len(m.Devices))
	for i := range out {
		out[i] = gpu.PhysicalDevice(m.pds[i])
	}
	return out, nil
}

func (m *Mock) device(pd gpu.PhysicalDevice) *PhysicalDeviceConfig {
	for i, h := range m.pds {
		if h == uint64(pd) && i < len(m.Devices) {
			return &m.Devices[i]
		}
	}
	m.violate("unknown physical device #%d", pd)
	return &PhysicalDeviceConfig{}
}

func (m *Mock) PhysicalDeviceProperties(pd gpu.PhysicalDevice) gpu.DeviceProperties {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("PhysicalDeviceProperties")
	cfg := m.device(pd)
	return gpu.DeviceProperties{Name: cfg.Name, Type: cfg.Type, APIVersion: cfg.APIVersion}
}

func (m *Mock) DeviceExtensions(pd gpu.PhysicalDevice) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeviceExtensions"); err != nil {
		return nil, err
	}
	return append([]string(nil), m.device(pd).Extensions...), nil
}

func (m *Mock) QueueFamilies(pd gpu.PhysicalDevice) []gpu.QueueFamily {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("QueueFamilies")
	return append([]gpu.QueueFamily(nil), m.device(pd).Families...)
}

func (m *Mock) SurfaceSupport(pd gpu.PhysicalDevice, family uint32, s gpu.Surface) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SurfaceSupport"); err != nil {
		return false, err
	}
	m.check("SurfaceSupport", KindSurface, uint64(s))
	cfg := m.device(pd)
	if int(family) >= len(cfg.Families) {
		m.violate("SurfaceSupport: queue family %d out of range", family)
		return false, nil
	}
	if cfg.PresentFamilies == nil {
		return cfg.Families[family].Graphics, nil
	}
	for _, f := range cfg.PresentFamilies {
		if f == family {
			return true, nil
		}
	}
	return false, nil
}

func (m *Mock) SurfaceCapabilities(pd gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SurfaceCapabilities"); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	m.check("SurfaceCapabilities", KindSurface, uint64(s))
	return m.device(pd).Capabilities, nil
}

func (m *Mock) SurfaceFormats(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SurfaceFormats"); err != nil {
		return nil, err
	}
	m.check("SurfaceFormats", KindSurface, uint64(s))
	return append([]gpu.SurfaceFormat(nil), m.device(pd).Formats...), nil
}

func (m *Mock) SurfacePresentModes(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.PresentMode, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SurfacePresentModes"); err != nil {
		return nil, err
	}
	m.check("SurfacePresentModes", KindSurface, uint64(s))
	return append([]gpu.PresentMode(nil), m.device(pd).PresentModes...), nil
}
