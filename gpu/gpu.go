// Package gpu defines the rendering-API surface used by vkboot.
//
// Handles are opaque identifiers issued by an API implementation. They carry
// no meaning outside of the implementation that created them; the zero value
// of every handle type is the null handle.
package gpu

import (
	"time"
)

// Handle types. Each one names a distinct object category so that a fence
// cannot be passed where a semaphore is expected.
type (
	Instance       uint64
	DebugMessenger uint64
	Surface        uint64
	PhysicalDevice uint64
	Device         uint64
	Queue          uint64
	Swapchain      uint64
	Image          uint64
	ImageView      uint64
	RenderPass     uint64
	Framebuffer    uint64
	CommandPool    uint64
	CommandBuffer  uint64
	Fence          uint64
	Semaphore      uint64
	ShaderModule   uint64
)

// Extent2D is a width/height pair in pixels.
type Extent2D struct {
	Width  uint32
	Height uint32
}

// Format is a pixel format, numerically equal to the Vulkan VkFormat value.
type Format uint32

// ColorSpace is numerically equal to the Vulkan VkColorSpaceKHR value.
type ColorSpace uint32

// Formats and color spaces the presentation engine cares about.
const (
	FormatUndefined     Format = 0
	FormatB8G8R8A8Unorm Format = 44
	FormatB8G8R8A8Srgb  Format = 50

	ColorSpaceSrgbNonlinear ColorSpace = 0
)

// PresentMode is numerically equal to the Vulkan VkPresentModeKHR value.
type PresentMode uint32

const (
	PresentModeImmediate   PresentMode = 0
	PresentModeMailbox     PresentMode = 1
	PresentModeFifo        PresentMode = 2
	PresentModeFifoRelaxed PresentMode = 3
)

// ImageLayout is numerically equal to the Vulkan VkImageLayout value.
type ImageLayout uint32

const (
	ImageLayoutUndefined              ImageLayout = 0
	ImageLayoutColorAttachmentOptimal ImageLayout = 2
	ImageLayoutPresentSrc             ImageLayout = 1000001002
)

// LoadOp and StoreOp describe attachment load/store behavior.
type (
	LoadOp  uint32
	StoreOp uint32
)

const (
	LoadOpLoad     LoadOp = 0
	LoadOpClear    LoadOp = 1
	LoadOpDontCare LoadOp = 2

	StoreOpStore    StoreOp = 0
	StoreOpDontCare StoreOp = 1
)

// PipelineStage is numerically equal to a single VkPipelineStageFlagBits value.
type PipelineStage uint32

const (
	StageTopOfPipe             PipelineStage = 0x00000001
	StageColorAttachmentOutput PipelineStage = 0x00000400
	StageBottomOfPipe          PipelineStage = 0x00002000
)

// DeviceType is numerically equal to the Vulkan VkPhysicalDeviceType value.
type DeviceType uint32

const (
	DeviceTypeOther DeviceType = iota
	DeviceTypeIntegratedGPU
	DeviceTypeDiscreteGPU
	DeviceTypeVirtualGPU
	DeviceTypeCPU
)

func (t DeviceType) String() string {
	switch t {
	case DeviceTypeIntegratedGPU:
		return "integrated"
	case DeviceTypeDiscreteGPU:
		return "discrete"
	case DeviceTypeVirtualGPU:
		return "virtual"
	case DeviceTypeCPU:
		return "cpu"
	}
	return "other"
}

// Severity classifies a debug message emitted by validation layers.
type Severity int

const (
	SeverityDebug Severity = iota
	SeverityInfo
	SeverityWarning
	SeverityPerformance
	SeverityError
)

// DebugFunc receives validation and driver messages.
type DebugFunc func(sev Severity, prefix, msg string)

// SurfaceFunc creates a native presentation surface for the raw API instance
// passed in (a vk.Instance for the Vulkan backend) and returns the raw
// surface handle.
type SurfaceFunc func(rawInstance interface{}) (uintptr, error)

// InstanceInfo configures instance creation.
type InstanceInfo struct {
	AppName    string
	AppVersion Version
	APIVersion Version
	Extensions []string
	Layers     []string
}

// DeviceProperties describes a physical device.
type DeviceProperties struct {
	Name       string
	Type       DeviceType
	APIVersion Version
}

// QueueFamily describes one queue family of a physical device.
type QueueFamily struct {
	Graphics bool
	Compute  bool
	Transfer bool
	Count    uint32
}

// DeviceInfo configures logical device creation with a single queue.
type DeviceInfo struct {
	QueueFamily uint32
	Extensions  []string
	Layers      []string
}

// SurfaceCapabilities reports the swapchain limits of a surface.
type SurfaceCapabilities struct {
	MinImageCount uint32
	// MaxImageCount is zero when there is no limit.
	MaxImageCount uint32
	// CurrentExtent has Width == math.MaxUint32 when the surface size is
	// determined by the swapchain extent.
	CurrentExtent  Extent2D
	MinImageExtent Extent2D
	MaxImageExtent Extent2D
	// CurrentTransform and SupportedCompositeAlpha are raw Vulkan bit values.
	CurrentTransform        uint32
	SupportedCompositeAlpha uint32
}

// SurfaceFormat pairs a format with its color space.
type SurfaceFormat struct {
	Format     Format
	ColorSpace ColorSpace
}

// SwapchainInfo configures swapchain creation.
type SwapchainInfo struct {
	Surface        Surface
	MinImageCount  uint32
	Format         SurfaceFormat
	Extent         Extent2D
	PresentMode    PresentMode
	Transform      uint32
	CompositeAlpha uint32
}

// AttachmentInfo describes one render pass attachment.
type AttachmentInfo struct {
	Format        Format
	LoadOp        LoadOp
	StoreOp       StoreOp
	InitialLayout ImageLayout
	FinalLayout   ImageLayout
}

// SubpassInfo describes one graphics subpass by the indices of its color
// attachments.
type SubpassInfo struct {
	ColorAttachments []uint32
	ColorLayout      ImageLayout
}

// RenderPassInfo configures render pass creation.
type RenderPassInfo struct {
	Attachments []AttachmentInfo
	Subpasses   []SubpassInfo
}

// FramebufferInfo configures framebuffer creation.
type FramebufferInfo struct {
	RenderPass  RenderPass
	Attachments []ImageView
	Extent      Extent2D
	Layers      uint32
}

// RenderPassBegin describes a render pass instance recorded into a command
// buffer.
type RenderPassBegin struct {
	RenderPass  RenderPass
	Framebuffer Framebuffer
	Extent      Extent2D
	ClearColor  [4]float32
}

// SubmitInfo describes a single queue submission.
type SubmitInfo struct {
	CommandBuffers []CommandBuffer
	Wait           []Semaphore
	WaitStages     []PipelineStage
	Signal         []Semaphore
	Fence          Fence
}

// PresentInfo describes a single present request.
type PresentInfo struct {
	Wait       []Semaphore
	Swapchain  Swapchain
	ImageIndex uint32
}

// API is the rendering API used by the core. Methods follow Vulkan
// semantics: objects must be destroyed before their parents, and
// implementations are not safe for concurrent use unless stated otherwise.
type API interface {
	InstanceExtensions() ([]string, error)
	InstanceLayers() ([]string, error)
	CreateInstance(info InstanceInfo) (Instance, error)
	DestroyInstance(inst Instance)
	CreateDebugMessenger(inst Instance, fn DebugFunc) (DebugMessenger, error)
	DestroyDebugMessenger(inst Instance, m DebugMessenger)

	CreateSurface(inst Instance, fn SurfaceFunc) (Surface, error)
	DestroySurface(inst Instance, s Surface)

	PhysicalDevices(inst Instance) ([]PhysicalDevice, error)
	PhysicalDeviceProperties(pd PhysicalDevice) DeviceProperties
	DeviceExtensions(pd PhysicalDevice) ([]string, error)
	QueueFamilies(pd PhysicalDevice) []QueueFamily
	SurfaceSupport(pd PhysicalDevice, family uint32, s Surface) (bool, error)
	SurfaceCapabilities(pd PhysicalDevice, s Surface) (SurfaceCapabilities, error)
	SurfaceFormats(pd PhysicalDevice, s Surface) ([]SurfaceFormat, error)
	SurfacePresentModes(pd PhysicalDevice, s Surface) ([]PresentMode, error)

	CreateDevice(pd PhysicalDevice, info DeviceInfo) (Device, error)
	DestroyDevice(d Device)
	DeviceQueue(d Device, family uint32) Queue
	DeviceWaitIdle(d Device) error

	CreateSwapchain(d Device, info SwapchainInfo) (Swapchain, error)
	DestroySwapchain(d Device, sc Swapchain)
	SwapchainImages(d Device, sc Swapchain) ([]Image, error)
	CreateImageView(d Device, img Image, format Format) (ImageView, error)
	DestroyImageView(d Device, v ImageView)

	CreateRenderPass(d Device, info RenderPassInfo) (RenderPass, error)
	DestroyRenderPass(d Device, rp RenderPass)
	CreateFramebuffer(d Device, info FramebufferInfo) (Framebuffer, error)
	DestroyFramebuffer(d Device, fb Framebuffer)

	CreateCommandPool(d Device, family uint32) (CommandPool, error)
	// DestroyCommandPool also frees every buffer allocated from the pool.
	DestroyCommandPool(d Device, p CommandPool)
	AllocateCommandBuffer(d Device, p CommandPool) (CommandBuffer, error)
	ResetCommandBuffer(cb CommandBuffer) error
	BeginCommandBuffer(cb CommandBuffer, oneTimeSubmit bool) error
	CmdBeginRenderPass(cb CommandBuffer, begin RenderPassBegin)
	CmdEndRenderPass(cb CommandBuffer)
	EndCommandBuffer(cb CommandBuffer) error

	CreateFence(d Device, signaled bool) (Fence, error)
	DestroyFence(d Device, f Fence)
	// WaitForFence returns ErrTimeout if the fence is still unsignaled once
	// timeout elapses.
	WaitForFence(d Device, f Fence, timeout time.Duration) error
	ResetFence(d Device, f Fence) error
	CreateSemaphore(d Device) (Semaphore, error)
	DestroySemaphore(d Device, s Semaphore)

	// AcquireNextImage returns ErrTimeout when no image became available
	// within timeout and ErrOutOfDate when the swapchain is unusable.
	AcquireNextImage(d Device, sc Swapchain, timeout time.Duration, signal Semaphore) (uint32, error)
	QueueSubmit(q Queue, info SubmitInfo) error
	QueuePresent(q Queue, info PresentInfo) error

	CreateShaderModule(d Device, code []byte) (ShaderModule, error)
	DestroyShaderModule(d Device, m ShaderModule)
}
