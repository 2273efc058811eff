package vkboot

import (
	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// RenderTargets owns the render pass and one framebuffer per swapchain
// image view. Framebuffer i draws into view i.
type RenderTargets struct {
	RenderPass   gpu.RenderPass
	Framebuffers []gpu.Framebuffer

	stack releaser
}

// BuildRenderTargets creates a single-subpass render pass that clears the
// color attachment and leaves it ready to present, plus the framebuffers.
func BuildRenderTargets(api gpu.API, dc *DeviceContext, sc *Swapchain) (_ *RenderTargets, err error) {
	rt := &RenderTargets{}
	defer func() {
		if err != nil {
			rt.stack.release()
		}
	}()

	rp, err := api.CreateRenderPass(dc.Device, gpu.RenderPassInfo{
		Attachments: []gpu.AttachmentInfo{{
			Format:        sc.Format.Format,
			LoadOp:        gpu.LoadOpClear,
			StoreOp:       gpu.StoreOpStore,
			InitialLayout: gpu.ImageLayoutUndefined,
			FinalLayout:   gpu.ImageLayoutPresentSrc,
		}},
		Subpasses: []gpu.SubpassInfo{{
			ColorAttachments: []uint32{0},
			ColorLayout:      gpu.ImageLayoutColorAttachmentOptimal,
		}},
	})
	if err != nil {
		return nil, initError("create render pass", err)
	}
	rt.RenderPass = rp
	rt.stack.push("render pass", func() { api.DestroyRenderPass(dc.Device, rp) })

	for i, view := range sc.Views {
		fb, err := api.CreateFramebuffer(dc.Device, gpu.FramebufferInfo{
			RenderPass:  rp,
			Attachments: []gpu.ImageView{view},
			Extent:      sc.Extent,
			Layers:      1,
		})
		if err != nil {
			return nil, initError("create framebuffer", errors.Wrapf(err, "view %d", i))
		}
		rt.Framebuffers = append(rt.Framebuffers, fb)
		rt.stack.push("framebuffer", func() { api.DestroyFramebuffer(dc.Device, fb) })
	}
	return rt, nil
}

// Release destroys the framebuffers and then the render pass.
func (rt *RenderTargets) Release() error {
	return rt.stack.release()
}
