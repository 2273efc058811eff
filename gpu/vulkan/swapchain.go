package vulkan

import (
	"time"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkboot/gpu"
)

func (b *Backend) CreateSwapchain(d gpu.Device, info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	var swapchain vk.Swapchain
	ret := vk.CreateSwapchain(b.devices.get(uint64(d)), &vk.SwapchainCreateInfo{
		SType:           vk.StructureTypeSwapchainCreateInfo,
		Surface:         b.surfaces.get(uint64(info.Surface)),
		MinImageCount:   info.MinImageCount,
		ImageFormat:     vk.Format(info.Format.Format),
		ImageColorSpace: vk.ColorSpace(info.Format.ColorSpace),
		ImageExtent: vk.Extent2D{
			Width:  info.Extent.Width,
			Height: info.Extent.Height,
		},
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     vk.SurfaceTransformFlagBits(info.Transform),
		CompositeAlpha:   vk.CompositeAlphaFlagBits(info.CompositeAlpha),
		ImageArrayLayers: 1,
		ImageSharingMode: vk.SharingModeExclusive,
		PresentMode:      vk.PresentMode(info.PresentMode),
		OldSwapchain:     vk.NullSwapchain,
		Clipped:          vk.True,
	}, nil, &swapchain)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.Swapchain(b.swapchains.add(swapchain)), nil
}

func (b *Backend) DestroySwapchain(d gpu.Device, sc gpu.Swapchain) {
	swapchain, ok := b.swapchains.remove(uint64(sc))
	if !ok {
		return
	}
	for _, img := range b.swapImages[sc] {
		b.images.remove(uint64(img))
	}
	delete(b.swapImages, sc)
	vk.DestroySwapchain(b.devices.get(uint64(d)), swapchain, nil)
}

// SwapchainImages returns the images owned by sc. The same handles are
// returned on every call and become invalid when sc is destroyed.
func (b *Backend) SwapchainImages(d gpu.Device, sc gpu.Swapchain) ([]gpu.Image, error) {
	if imgs, ok := b.swapImages[sc]; ok {
		return append([]gpu.Image(nil), imgs...), nil
	}
	device, swapchain := b.devices.get(uint64(d)), b.swapchains.get(uint64(sc))
	var count uint32
	if err := result(vk.GetSwapchainImages(device, swapchain, &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.Image, count)
	if err := result(vk.GetSwapchainImages(device, swapchain, &count, list)); err != nil {
		return nil, err
	}
	imgs := make([]gpu.Image, 0, count)
	for _, img := range list[:count] {
		imgs = append(imgs, gpu.Image(b.images.add(img)))
	}
	b.swapImages[sc] = imgs
	return append([]gpu.Image(nil), imgs...), nil
}

func (b *Backend) CreateImageView(d gpu.Device, img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	var view vk.ImageView
	ret := vk.CreateImageView(b.devices.get(uint64(d)), &vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    b.images.get(uint64(img)),
		ViewType: vk.ImageViewType2d,
		Format:   vk.Format(format),
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleR,
			G: vk.ComponentSwizzleG,
			B: vk.ComponentSwizzleB,
			A: vk.ComponentSwizzleA,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}, nil, &view)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.ImageView(b.views.add(view)), nil
}

func (b *Backend) DestroyImageView(d gpu.Device, v gpu.ImageView) {
	if view, ok := b.views.remove(uint64(v)); ok {
		vk.DestroyImageView(b.devices.get(uint64(d)), view, nil)
	}
}

func (b *Backend) CreateRenderPass(d gpu.Device, info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	attachments := make([]vk.AttachmentDescription, len(info.Attachments))
	for i, a := range info.Attachments {
		attachments[i] = vk.AttachmentDescription{
			Format:         vk.Format(a.Format),
			Samples:        vk.SampleCount1Bit,
			LoadOp:         vk.AttachmentLoadOp(a.LoadOp),
			StoreOp:        vk.AttachmentStoreOp(a.StoreOp),
			StencilLoadOp:  vk.AttachmentLoadOpDontCare,
			StencilStoreOp: vk.AttachmentStoreOpDontCare,
			InitialLayout:  vk.ImageLayout(a.InitialLayout),
			FinalLayout:    vk.ImageLayout(a.FinalLayout),
		}
	}
	subpasses := make([]vk.SubpassDescription, len(info.Subpasses))
	for i, sp := range info.Subpasses {
		refs := make([]vk.AttachmentReference, len(sp.ColorAttachments))
		for j, idx := range sp.ColorAttachments {
			refs[j] = vk.AttachmentReference{
				Attachment: idx,
				Layout:     vk.ImageLayout(sp.ColorLayout),
			}
		}
		subpasses[i] = vk.SubpassDescription{
			PipelineBindPoint:    vk.PipelineBindPointGraphics,
			ColorAttachmentCount: uint32(len(refs)),
			PColorAttachments:    refs,
		}
	}
	var pass vk.RenderPass
	ret := vk.CreateRenderPass(b.devices.get(uint64(d)), &vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    uint32(len(subpasses)),
		PSubpasses:      subpasses,
	}, nil, &pass)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.RenderPass(b.passes.add(pass)), nil
}

func (b *Backend) DestroyRenderPass(d gpu.Device, rp gpu.RenderPass) {
	if pass, ok := b.passes.remove(uint64(rp)); ok {
		vk.DestroyRenderPass(b.devices.get(uint64(d)), pass, nil)
	}
}

func (b *Backend) CreateFramebuffer(d gpu.Device, info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	views := make([]vk.ImageView, len(info.Attachments))
	for i, v := range info.Attachments {
		views[i] = b.views.get(uint64(v))
	}
	var fb vk.Framebuffer
	ret := vk.CreateFramebuffer(b.devices.get(uint64(d)), &vk.FramebufferCreateInfo{
		SType:           vk.StructureTypeFramebufferCreateInfo,
		RenderPass:      b.passes.get(uint64(info.RenderPass)),
		AttachmentCount: uint32(len(views)),
		PAttachments:    views,
		Width:           info.Extent.Width,
		Height:          info.Extent.Height,
		Layers:          info.Layers,
	}, nil, &fb)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.Framebuffer(b.fbs.add(fb)), nil
}

func (b *Backend) DestroyFramebuffer(d gpu.Device, fb gpu.Framebuffer) {
	if framebuffer, ok := b.fbs.remove(uint64(fb)); ok {
		vk.DestroyFramebuffer(b.devices.get(uint64(d)), framebuffer, nil)
	}
}

func (b *Backend) AcquireNextImage(d gpu.Device, sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, error) {
	var idx uint32
	ret := vk.AcquireNextImage(b.devices.get(uint64(d)), b.swapchains.get(uint64(sc)),
		uint64(timeout.Nanoseconds()), b.semaphores.get(uint64(signal)), vk.Fence(vk.NullHandle), &idx)
	if err := result(ret); err != nil {
		return 0, err
	}
	return idx, nil
}

func (b *Backend) QueuePresent(q gpu.Queue, info gpu.PresentInfo) error {
	wait := make([]vk.Semaphore, len(info.Wait))
	for i, s := range info.Wait {
		wait[i] = b.semaphores.get(uint64(s))
	}
	return result(vk.QueuePresent(b.queues.get(uint64(q)), &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(wait)),
		PWaitSemaphores:    wait,
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{b.swapchains.get(uint64(info.Swapchain))},
		PImageIndices:      []uint32{info.ImageIndex},
	}))
}
