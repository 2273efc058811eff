package vulkan

import (
	"time"

	"github.com/pkg/errors"
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkboot/gpu"
)

// CreateCommandPool creates a pool whose buffers may be reset individually.
func (b *Backend) CreateCommandPool(d gpu.Device, family uint32) (gpu.CommandPool, error) {
	var pool vk.CommandPool
	ret := vk.CreateCommandPool(b.devices.get(uint64(d)), &vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
		QueueFamilyIndex: family,
	}, nil, &pool)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.CommandPool(b.pools.add(pool)), nil
}

func (b *Backend) DestroyCommandPool(d gpu.Device, p gpu.CommandPool) {
	pool, ok := b.pools.remove(uint64(p))
	if !ok {
		return
	}
	for _, cb := range b.poolBuffers[p] {
		b.buffers.remove(uint64(cb))
	}
	delete(b.poolBuffers, p)
	vk.DestroyCommandPool(b.devices.get(uint64(d)), pool, nil)
}

func (b *Backend) AllocateCommandBuffer(d gpu.Device, p gpu.CommandPool) (gpu.CommandBuffer, error) {
	buffers := make([]vk.CommandBuffer, 1)
	ret := vk.AllocateCommandBuffers(b.devices.get(uint64(d)), &vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        b.pools.get(uint64(p)),
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}, buffers)
	if err := result(ret); err != nil {
		return 0, err
	}
	cb := gpu.CommandBuffer(b.buffers.add(buffers[0]))
	b.poolBuffers[p] = append(b.poolBuffers[p], cb)
	return cb, nil
}

func (b *Backend) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	return result(vk.ResetCommandBuffer(b.buffers.get(uint64(cb)), 0))
}

func (b *Backend) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	var flags vk.CommandBufferUsageFlags
	if oneTimeSubmit {
		flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return result(vk.BeginCommandBuffer(b.buffers.get(uint64(cb)), &vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}))
}

func (b *Backend) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	clearValues := []vk.ClearValue{vk.NewClearValue(begin.ClearColor[:])}
	vk.CmdBeginRenderPass(b.buffers.get(uint64(cb)), &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  b.passes.get(uint64(begin.RenderPass)),
		Framebuffer: b.fbs.get(uint64(begin.Framebuffer)),
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: vk.Extent2D{
				Width:  begin.Extent.Width,
				Height: begin.Extent.Height,
			},
		},
		ClearValueCount: uint32(len(clearValues)),
		PClearValues:    clearValues,
	}, vk.SubpassContentsInline)
}

func (b *Backend) CmdEndRenderPass(cb gpu.CommandBuffer) {
	vk.CmdEndRenderPass(b.buffers.get(uint64(cb)))
}

func (b *Backend) EndCommandBuffer(cb gpu.CommandBuffer) error {
	return result(vk.EndCommandBuffer(b.buffers.get(uint64(cb))))
}

func (b *Backend) QueueSubmit(q gpu.Queue, info gpu.SubmitInfo) error {
	if len(info.Wait) != len(info.WaitStages) {
		return errors.Errorf("vulkan: %d wait semaphores with %d wait stages", len(info.Wait), len(info.WaitStages))
	}
	buffers := make([]vk.CommandBuffer, len(info.CommandBuffers))
	for i, cb := range info.CommandBuffers {
		buffers[i] = b.buffers.get(uint64(cb))
	}
	wait := make([]vk.Semaphore, len(info.Wait))
	stages := make([]vk.PipelineStageFlags, len(info.Wait))
	for i, s := range info.Wait {
		wait[i] = b.semaphores.get(uint64(s))
		stages[i] = vk.PipelineStageFlags(info.WaitStages[i])
	}
	signal := make([]vk.Semaphore, len(info.Signal))
	for i, s := range info.Signal {
		signal[i] = b.semaphores.get(uint64(s))
	}
	fence := vk.Fence(vk.NullHandle)
	if info.Fence != 0 {
		fence = b.fences.get(uint64(info.Fence))
	}
	return result(vk.QueueSubmit(b.queues.get(uint64(q)), 1, []vk.SubmitInfo{{
		SType:                vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount:   uint32(len(wait)),
		PWaitSemaphores:      wait,
		PWaitDstStageMask:    stages,
		CommandBufferCount:   uint32(len(buffers)),
		PCommandBuffers:      buffers,
		SignalSemaphoreCount: uint32(len(signal)),
		PSignalSemaphores:    signal,
	}}, fence))
}

func (b *Backend) CreateFence(d gpu.Device, signaled bool) (gpu.Fence, error) {
	var flags vk.FenceCreateFlags
	if signaled {
		flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	ret := vk.CreateFence(b.devices.get(uint64(d)), &vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
		Flags: flags,
	}, nil, &fence)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.Fence(b.fences.add(fence)), nil
}

func (b *Backend) DestroyFence(d gpu.Device, f gpu.Fence) {
	if fence, ok := b.fences.remove(uint64(f)); ok {
		vk.DestroyFence(b.devices.get(uint64(d)), fence, nil)
	}
}

func (b *Backend) WaitForFence(d gpu.Device, f gpu.Fence, timeout time.Duration) error {
	return result(vk.WaitForFences(b.devices.get(uint64(d)), 1,
		[]vk.Fence{b.fences.get(uint64(f))}, vk.True, uint64(timeout.Nanoseconds())))
}

func (b *Backend) ResetFence(d gpu.Device, f gpu.Fence) error {
	return result(vk.ResetFences(b.devices.get(uint64(d)), 1, []vk.Fence{b.fences.get(uint64(f))}))
}

func (b *Backend) CreateSemaphore(d gpu.Device) (gpu.Semaphore, error) {
	var sem vk.Semaphore
	ret := vk.CreateSemaphore(b.devices.get(uint64(d)), &vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}, nil, &sem)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.Semaphore(b.semaphores.add(sem)), nil
}

func (b *Backend) DestroySemaphore(d gpu.Device, s gpu.Semaphore) {
	if sem, ok := b.semaphores.remove(uint64(s)); ok {
		vk.DestroySemaphore(b.devices.get(uint64(d)), sem, nil)
	}
}

func (b *Backend) CreateShaderModule(d gpu.Device, code []byte) (gpu.ShaderModule, error) {
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Errorf("vulkan: SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	var module vk.ShaderModule
	ret := vk.CreateShaderModule(b.devices.get(uint64(d)), &vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code)),
		PCode:    sliceUint32(code),
	}, nil, &module)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.ShaderModule(b.modules.add(module)), nil
}

func (b *Backend) DestroyShaderModule(d gpu.Device, m gpu.ShaderModule) {
	if module, ok := b.modules.remove(uint64(m)); ok {
		vk.DestroyShaderModule(b.devices.get(uint64(d)), module, nil)
	}
}
