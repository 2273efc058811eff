package vkboot

import (
	"github.com/andewx/vkboot/gpu"
)

// CommandContext owns a command pool and the single primary buffer the
// frame loop records into. The buffer may only be reset once the fence of
// its previous submission has signaled.
type CommandContext struct {
	api    gpu.API
	device gpu.Device

	Pool   gpu.CommandPool
	Buffer gpu.CommandBuffer

	stack releaser
}

// NewCommandContext creates a pool whose buffers can be reset individually
// and allocates one primary buffer from it.
func NewCommandContext(api gpu.API, dc *DeviceContext) (_ *CommandContext, err error) {
	cc := &CommandContext{api: api, device: dc.Device}
	defer func() {
		if err != nil {
			cc.stack.release()
		}
	}()

	pool, err := api.CreateCommandPool(dc.Device, dc.QueueFamily)
	if err != nil {
		return nil, initError("create command pool", err)
	}
	cc.Pool = pool
	// Destroying the pool frees the buffer.
	cc.stack.push("command pool", func() { api.DestroyCommandPool(dc.Device, pool) })

	cc.Buffer, err = api.AllocateCommandBuffer(dc.Device, pool)
	if err != nil {
		return nil, initError("allocate command buffer", err)
	}
	return cc, nil
}

// RecordFrame re-records the buffer with a single render pass instance that
// clears framebuffer fb to clear.
func (cc *CommandContext) RecordFrame(rp gpu.RenderPass, fb gpu.Framebuffer, extent gpu.Extent2D, clear [4]float32) error {
	api, cb := cc.api, cc.Buffer
	if err := api.ResetCommandBuffer(cb); err != nil {
		return newError(SubmitError, "reset command buffer", err)
	}
	if err := api.BeginCommandBuffer(cb, true); err != nil {
		return newError(SubmitError, "begin command buffer", err)
	}
	api.CmdBeginRenderPass(cb, gpu.RenderPassBegin{
		RenderPass:  rp,
		Framebuffer: fb,
		Extent:      extent,
		ClearColor:  clear,
	})
	api.CmdEndRenderPass(cb)
	if err := api.EndCommandBuffer(cb); err != nil {
		return newError(SubmitError, "end command buffer", err)
	}
	return nil
}

// Submit queues the buffer. It waits on wait at stage, signals signal when
// done and fence as the CPU-visible completion marker.
func (cc *CommandContext) Submit(queue gpu.Queue, wait gpu.Semaphore, stage gpu.PipelineStage, signal gpu.Semaphore, fence gpu.Fence) error {
	err := cc.api.QueueSubmit(queue, gpu.SubmitInfo{
		CommandBuffers: []gpu.CommandBuffer{cc.Buffer},
		Wait:           []gpu.Semaphore{wait},
		WaitStages:     []gpu.PipelineStage{stage},
		Signal:         []gpu.Semaphore{signal},
		Fence:          fence,
	})
	if err != nil {
		return newError(SubmitError, "queue submit", err)
	}
	return nil
}

// Forward submits a batch with no command buffers. It waits on wait at
// stage and signals signal and fence, handing an acquired image on to
// present without drawing into it.
func (cc *CommandContext) Forward(queue gpu.Queue, wait gpu.Semaphore, stage gpu.PipelineStage, signal gpu.Semaphore, fence gpu.Fence) error {
	err := cc.api.QueueSubmit(queue, gpu.SubmitInfo{
		Wait:       []gpu.Semaphore{wait},
		WaitStages: []gpu.PipelineStage{stage},
		Signal:     []gpu.Semaphore{signal},
		Fence:      fence,
	})
	if err != nil {
		return newError(SubmitError, "queue empty submit", err)
	}
	return nil
}

// Release destroys the pool, freeing the buffer with it.
func (cc *CommandContext) Release() error {
	return cc.stack.release()
}
