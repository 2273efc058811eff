package vkboot

import (
	"math"
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// Composite alpha bits in order of preference.
var compositeAlphaBits = []uint32{
	0x1, // opaque
	0x2, // pre-multiplied
	0x4, // post-multiplied
	0x8, // inherit
}

// preferredFormat is chosen when the surface offers it or accepts any format.
var preferredFormat = gpu.SurfaceFormat{
	Format:     gpu.FormatB8G8R8A8Srgb,
	ColorSpace: gpu.ColorSpaceSrgbNonlinear,
}

// Swapchain owns the swapchain and one image view per swapchain image.
type Swapchain struct {
	api    gpu.API
	device gpu.Device

	Handle      gpu.Swapchain
	Format      gpu.SurfaceFormat
	Extent      gpu.Extent2D
	PresentMode gpu.PresentMode
	Images      []gpu.Image
	Views       []gpu.ImageView

	stack releaser
}

// BuildSwapchain creates a FIFO swapchain for the context's surface. The
// extent is fixed for the life of the swapchain.
func BuildSwapchain(api gpu.API, dc *DeviceContext, desired gpu.Extent2D) (_ *Swapchain, err error) {
	sc := &Swapchain{api: api, device: dc.Device, PresentMode: gpu.PresentModeFifo}
	defer func() {
		if err != nil {
			sc.stack.release()
		}
	}()

	caps, err := api.SurfaceCapabilities(dc.PhysicalDevice, dc.Surface)
	if err != nil {
		return nil, initError("query surface capabilities", err)
	}
	formats, err := api.SurfaceFormats(dc.PhysicalDevice, dc.Surface)
	if err != nil {
		return nil, initError("query surface formats", err)
	}
	modes, err := api.SurfacePresentModes(dc.PhysicalDevice, dc.Surface)
	if err != nil {
		return nil, initError("query present modes", err)
	}
	if !supportsMode(modes, sc.PresentMode) {
		return nil, initError("choose present mode", errors.Errorf("surface does not offer FIFO presentation (modes %v)", modes))
	}
	format, ok := chooseFormat(formats)
	if !ok {
		return nil, initError("choose surface format", errors.New("surface reports no formats"))
	}
	sc.Format = format
	sc.Extent = chooseExtent(caps, desired)

	handle, err := api.CreateSwapchain(dc.Device, gpu.SwapchainInfo{
		Surface:        dc.Surface,
		MinImageCount:  chooseImageCount(caps),
		Format:         format,
		Extent:         sc.Extent,
		PresentMode:    sc.PresentMode,
		Transform:      caps.CurrentTransform,
		CompositeAlpha: chooseCompositeAlpha(caps.SupportedCompositeAlpha),
	})
	if err != nil {
		return nil, initError("create swapchain", err)
	}
	sc.Handle = handle
	sc.stack.push("swapchain", func() { api.DestroySwapchain(dc.Device, handle) })

	sc.Images, err = api.SwapchainImages(dc.Device, handle)
	if err != nil {
		return nil, initError("get swapchain images", err)
	}
	for i, img := range sc.Images {
		view, err := api.CreateImageView(dc.Device, img, format.Format)
		if err != nil {
			return nil, initError("create image view", errors.Wrapf(err, "image %d", i))
		}
		sc.Views = append(sc.Views, view)
		sc.stack.push("image view", func() { api.DestroyImageView(dc.Device, view) })
	}
	Logger().Info("swapchain ready",
		"images", len(sc.Images),
		"format", uint32(format.Format),
		"width", sc.Extent.Width,
		"height", sc.Extent.Height)
	return sc, nil
}

func supportsMode(modes []gpu.PresentMode, want gpu.PresentMode) bool {
	for _, m := range modes {
		if m == want {
			return true
		}
	}
	return false
}

// chooseFormat prefers B8G8R8A8 sRGB. A single UNDEFINED entry means the
// surface takes any format.
func chooseFormat(formats []gpu.SurfaceFormat) (gpu.SurfaceFormat, bool) {
	if len(formats) == 0 {
		return gpu.SurfaceFormat{}, false
	}
	if len(formats) == 1 && formats[0].Format == gpu.FormatUndefined {
		return preferredFormat, true
	}
	for _, f := range formats {
		if f == preferredFormat {
			return f, true
		}
	}
	return formats[0], true
}

// chooseImageCount asks for one image more than the minimum, capped at the
// maximum when the surface has one.
func chooseImageCount(caps gpu.SurfaceCapabilities) uint32 {
	n := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && n > caps.MaxImageCount {
		n = caps.MaxImageCount
	}
	return n
}

// chooseExtent uses the surface's current extent, or desired clamped to
// the surface limits when the surface leaves the size to the swapchain.
func chooseExtent(caps gpu.SurfaceCapabilities, desired gpu.Extent2D) gpu.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return gpu.Extent2D{
		Width:  clamp(desired.Width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(desired.Height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clamp(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func chooseCompositeAlpha(supported uint32) uint32 {
	for _, bit := range compositeAlphaBits {
		if supported&bit != 0 {
			return bit
		}
	}
	return compositeAlphaBits[0]
}

// AcquireNext returns the index of the next presentable image and arranges
// for signal to be signaled once it is ready.
func (sc *Swapchain) AcquireNext(signal gpu.Semaphore, timeout time.Duration) (uint32, error) {
	idx, err := sc.api.AcquireNextImage(sc.device, sc.Handle, timeout, signal)
	switch {
	case err == nil:
		return idx, nil
	case errors.Is(err, gpu.ErrTimeout), errors.Is(err, gpu.ErrNotReady):
		return 0, newError(AcquireTimeout, "acquire next image", err)
	default:
		return 0, newError(SwapchainError, "acquire next image", err)
	}
}

// Present queues image index for presentation once wait is signaled.
func (sc *Swapchain) Present(queue gpu.Queue, index uint32, wait gpu.Semaphore) error {
	err := sc.api.QueuePresent(queue, gpu.PresentInfo{
		Wait:       []gpu.Semaphore{wait},
		Swapchain:  sc.Handle,
		ImageIndex: index,
	})
	if err != nil {
		return newError(PresentError, "present", err)
	}
	return nil
}

// Release destroys the image views and the swapchain.
func (sc *Swapchain) Release() error {
	return sc.stack.release()
}
