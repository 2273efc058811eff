package gputest

import (
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

func (m *Mock) CreateDevice(pd gpu.PhysicalDevice, info gpu.DeviceInfo) (gpu.Device, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateDevice"); err != nil {
		return 0, err
	}
	cfg := m.device(pd)
	if int(info.QueueFamily) >= len(cfg.Families) {
		return 0, errors.Wrapf(gpu.ErrInitialization, "queue family %d out of range", info.QueueFamily)
	}
	if miss := missing(info.Extensions, cfg.Extensions); len(miss) > 0 {
		return 0, errors.Wrapf(gpu.ErrExtensionNotPresent, "%v", miss)
	}
	m.deviceInfo = info
	m.deviceCaps = &cfg.Capabilities
	return gpu.Device(m.create(KindDevice, m.pdInstance)), nil
}

func (m *Mock) DestroyDevice(d gpu.Device) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyDevice")
	if n := len(m.inflight); n > 0 {
		m.violate("DestroyDevice: device#%d destroyed with %d submissions in flight", d, n)
	}
	m.destroy("DestroyDevice", KindDevice, uint64(d))
}

// DeviceQueue returns the same handle for every call with the same family.
func (m *Mock) DeviceQueue(d gpu.Device, family uint32) gpu.Queue {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DeviceQueue")
	m.check("DeviceQueue", KindDevice, uint64(d))
	key := uint64(d)<<32 | uint64(family)
	q, ok := m.queues[key]
	if !ok {
		q = gpu.Queue(m.handle())
		m.queues[key] = q
	}
	return q
}

func (m *Mock) DeviceWaitIdle(d gpu.Device) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("DeviceWaitIdle"); err != nil {
		return err
	}
	m.check("DeviceWaitIdle", KindDevice, uint64(d))
	if m.hung && len(m.inflight) > 0 {
		return gpu.ErrDeviceLost
	}
	m.completeUpTo(len(m.inflight) - 1)
	return nil
}

// completeUpTo retires the in-flight submissions up to and including index
// last, in queue order.
func (m *Mock) completeUpTo(last int) {
	for _, sub := range m.inflight[:last+1] {
		if f, ok := m.fences[sub.fence]; ok {
			f.signaled = true
		}
		for _, h := range sub.buffers {
			if cb, ok := m.buffers[h]; ok && cb.state == bufferPending {
				cb.state = bufferExecutable
			}
		}
	}
	m.inflight = append([]submission(nil), m.inflight[last+1:]...)
}

func (m *Mock) fencePending(f uint64) int {
	for i := len(m.inflight) - 1; i >= 0; i-- {
		if m.inflight[i].fence == f {
			return i
		}
	}
	return -1
}

func (m *Mock) CreateSwapchain(d gpu.Device, info gpu.SwapchainInfo) (gpu.Swapchain, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateSwapchain"); err != nil {
		return 0, err
	}
	m.check("CreateSwapchain", KindDevice, uint64(d))
	m.check("CreateSwapchain", KindSurface, uint64(info.Surface))
	if info.MinImageCount == 0 {
		m.violate("CreateSwapchain: zero image count")
	}
	if m.deviceCaps != nil {
		caps := *m.deviceCaps
		if info.MinImageCount < caps.MinImageCount || (caps.MaxImageCount > 0 && info.MinImageCount > caps.MaxImageCount) {
			m.violate("CreateSwapchain: image count %d outside [%d, %d]", info.MinImageCount, caps.MinImageCount, caps.MaxImageCount)
		}
	}
	m.swapchainInfo = info
	h := m.create(KindSwapchain, uint64(d), uint64(info.Surface))
	sc := &swapchainState{acquired: make(map[uint32]bool)}
	for i := uint32(0); i < info.MinImageCount; i++ {
		sc.images = append(sc.images, gpu.Image(m.handle()))
	}
	m.swapchains[h] = sc
	return gpu.Swapchain(h), nil
}

func (m *Mock) DestroySwapchain(d gpu.Device, sc gpu.Swapchain) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroySwapchain")
	if m.destroy("DestroySwapchain", KindSwapchain, uint64(sc)) {
		delete(m.swapchains, uint64(sc))
	}
}

func (m *Mock) SwapchainImages(d gpu.Device, sc gpu.Swapchain) ([]gpu.Image, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("SwapchainImages"); err != nil {
		return nil, err
	}
	if !m.check("SwapchainImages", KindSwapchain, uint64(sc)) {
		return nil, gpu.ErrSurfaceLost
	}
	return append([]gpu.Image(nil), m.swapchains[uint64(sc)].images...), nil
}

func (m *Mock) CreateImageView(d gpu.Device, img gpu.Image, format gpu.Format) (gpu.ImageView, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateImageView"); err != nil {
		return 0, err
	}
	m.check("CreateImageView", KindDevice, uint64(d))
	var owner uint64
	for h, sc := range m.swapchains {
		for _, i := range sc.images {
			if i == img {
				owner = h
			}
		}
	}
	if owner == 0 {
		m.violate("CreateImageView: image#%d belongs to no live swapchain", img)
		return 0, gpu.ErrInitialization
	}
	h := m.create(KindImageView, uint64(d), owner)
	m.views[h] = img
	return gpu.ImageView(h), nil
}

func (m *Mock) DestroyImageView(d gpu.Device, v gpu.ImageView) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyImageView")
	m.destroy("DestroyImageView", KindImageView, uint64(v))
}

func (m *Mock) CreateRenderPass(d gpu.Device, info gpu.RenderPassInfo) (gpu.RenderPass, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateRenderPass"); err != nil {
		return 0, err
	}
	m.check("CreateRenderPass", KindDevice, uint64(d))
	for _, sp := range info.Subpasses {
		for _, idx := range sp.ColorAttachments {
			if int(idx) >= len(info.Attachments) {
				m.violate("CreateRenderPass: subpass references attachment %d of %d", idx, len(info.Attachments))
			}
		}
	}
	return gpu.RenderPass(m.create(KindRenderPass, uint64(d))), nil
}

func (m *Mock) DestroyRenderPass(d gpu.Device, rp gpu.RenderPass) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyRenderPass")
	m.destroy("DestroyRenderPass", KindRenderPass, uint64(rp))
}

func (m *Mock) CreateFramebuffer(d gpu.Device, info gpu.FramebufferInfo) (gpu.Framebuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateFramebuffer"); err != nil {
		return 0, err
	}
	m.check("CreateFramebuffer", KindDevice, uint64(d))
	m.check("CreateFramebuffer", KindRenderPass, uint64(info.RenderPass))
	deps := []uint64{uint64(d), uint64(info.RenderPass)}
	for _, v := range info.Attachments {
		m.check("CreateFramebuffer", KindImageView, uint64(v))
		deps = append(deps, uint64(v))
	}
	h := m.create(KindFramebuffer, deps...)
	info.Attachments = append([]gpu.ImageView(nil), info.Attachments...)
	m.framebuffers[h] = info
	return gpu.Framebuffer(h), nil
}

func (m *Mock) DestroyFramebuffer(d gpu.Device, fb gpu.Framebuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyFramebuffer")
	m.destroy("DestroyFramebuffer", KindFramebuffer, uint64(fb))
}

func (m *Mock) CreateCommandPool(d gpu.Device, family uint32) (gpu.CommandPool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateCommandPool"); err != nil {
		return 0, err
	}
	m.check("CreateCommandPool", KindDevice, uint64(d))
	return gpu.CommandPool(m.create(KindCommandPool, uint64(d))), nil
}

// DestroyCommandPool frees the pool's buffers before the pool itself.
func (m *Mock) DestroyCommandPool(d gpu.Device, p gpu.CommandPool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyCommandPool")
	for h, cb := range m.buffers {
		if cb.pool != uint64(p) {
			continue
		}
		if cb.state == bufferPending {
			m.violate("DestroyCommandPool: command-buffer#%d freed while in flight", h)
		}
		m.destroy("DestroyCommandPool", KindCommandBuffer, h)
		delete(m.buffers, h)
	}
	m.destroy("DestroyCommandPool", KindCommandPool, uint64(p))
}

func (m *Mock) AllocateCommandBuffer(d gpu.Device, p gpu.CommandPool) (gpu.CommandBuffer, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AllocateCommandBuffer"); err != nil {
		return 0, err
	}
	if !m.check("AllocateCommandBuffer", KindCommandPool, uint64(p)) {
		return 0, gpu.ErrInitialization
	}
	h := m.create(KindCommandBuffer, uint64(p))
	m.buffers[h] = &commandBuffer{pool: uint64(p)}
	return gpu.CommandBuffer(h), nil
}

func (m *Mock) buffer(op string, cb gpu.CommandBuffer) *commandBuffer {
	if !m.check(op, KindCommandBuffer, uint64(cb)) {
		return &commandBuffer{}
	}
	return m.buffers[uint64(cb)]
}

func (m *Mock) ResetCommandBuffer(cb gpu.CommandBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ResetCommandBuffer"); err != nil {
		return err
	}
	b := m.buffer("ResetCommandBuffer", cb)
	if b.state == bufferPending {
		m.violate("ResetCommandBuffer: command-buffer#%d reset while in flight", cb)
	}
	b.state = bufferInitial
	b.inPass = false
	return nil
}

func (m *Mock) BeginCommandBuffer(cb gpu.CommandBuffer, oneTimeSubmit bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("BeginCommandBuffer"); err != nil {
		return err
	}
	b := m.buffer("BeginCommandBuffer", cb)
	switch b.state {
	case bufferPending:
		m.violate("BeginCommandBuffer: command-buffer#%d recorded while in flight", cb)
	case bufferRecording:
		m.violate("BeginCommandBuffer: command-buffer#%d already recording", cb)
	}
	b.state = bufferRecording
	b.inPass = false
	return nil
}

func (m *Mock) CmdBeginRenderPass(cb gpu.CommandBuffer, begin gpu.RenderPassBegin) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("CmdBeginRenderPass")
	b := m.buffer("CmdBeginRenderPass", cb)
	if b.state != bufferRecording || b.inPass {
		m.violate("CmdBeginRenderPass: command-buffer#%d not recording outside a render pass", cb)
	}
	m.check("CmdBeginRenderPass", KindRenderPass, uint64(begin.RenderPass))
	m.check("CmdBeginRenderPass", KindFramebuffer, uint64(begin.Framebuffer))
	b.inPass = true
	m.passes = append(m.passes, begin)
}

func (m *Mock) CmdEndRenderPass(cb gpu.CommandBuffer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("CmdEndRenderPass")
	b := m.buffer("CmdEndRenderPass", cb)
	if !b.inPass {
		m.violate("CmdEndRenderPass: command-buffer#%d has no render pass", cb)
	}
	b.inPass = false
}

func (m *Mock) EndCommandBuffer(cb gpu.CommandBuffer) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("EndCommandBuffer"); err != nil {
		return err
	}
	b := m.buffer("EndCommandBuffer", cb)
	if b.state != bufferRecording || b.inPass {
		m.violate("EndCommandBuffer: command-buffer#%d not recording or inside a render pass", cb)
	}
	b.state = bufferExecutable
	return nil
}

func (m *Mock) CreateFence(d gpu.Device, signaled bool) (gpu.Fence, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateFence"); err != nil {
		return 0, err
	}
	m.check("CreateFence", KindDevice, uint64(d))
	h := m.create(KindFence, uint64(d))
	m.fences[h] = &fenceState{signaled: signaled}
	return gpu.Fence(h), nil
}

func (m *Mock) DestroyFence(d gpu.Device, f gpu.Fence) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyFence")
	if m.fencePending(uint64(f)) >= 0 {
		m.violate("DestroyFence: fence#%d destroyed while in flight", f)
	}
	if m.destroy("DestroyFence", KindFence, uint64(f)) {
		delete(m.fences, uint64(f))
	}
}

// WaitForFence completes pending work up to the fence's submission unless
// the GPU is hung. An unsignaled fence with no pending submission can never
// signal, so the wait times out.
func (m *Mock) WaitForFence(d gpu.Device, f gpu.Fence, timeout time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("WaitForFence"); err != nil {
		return err
	}
	if !m.check("WaitForFence", KindFence, uint64(f)) {
		return gpu.ErrDeviceLost
	}
	if m.fences[uint64(f)].signaled {
		return nil
	}
	i := m.fencePending(uint64(f))
	if i < 0 || m.hung {
		return gpu.ErrTimeout
	}
	m.completeUpTo(i)
	return nil
}

// FenceSignaled reports whether f is currently signaled.
func (m *Mock) FenceSignaled(f gpu.Fence) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	s, ok := m.fences[uint64(f)]
	return ok && s.signaled
}

func (m *Mock) ResetFence(d gpu.Device, f gpu.Fence) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("ResetFence"); err != nil {
		return err
	}
	if !m.check("ResetFence", KindFence, uint64(f)) {
		return nil
	}
	if m.fencePending(uint64(f)) >= 0 {
		m.violate("ResetFence: fence#%d reset while in flight", f)
	}
	m.fences[uint64(f)].signaled = false
	return nil
}

func (m *Mock) CreateSemaphore(d gpu.Device) (gpu.Semaphore, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateSemaphore"); err != nil {
		return 0, err
	}
	m.check("CreateSemaphore", KindDevice, uint64(d))
	h := m.create(KindSemaphore, uint64(d))
	m.semaphores[h] = false
	return gpu.Semaphore(h), nil
}

func (m *Mock) DestroySemaphore(d gpu.Device, s gpu.Semaphore) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroySemaphore")
	if m.destroy("DestroySemaphore", KindSemaphore, uint64(s)) {
		delete(m.semaphores, uint64(s))
	}
}

// AcquireNextImage hands out images round robin, skipping images that are
// acquired but not yet presented. With none left it times out.
func (m *Mock) AcquireNextImage(d gpu.Device, sc gpu.Swapchain, timeout time.Duration, signal gpu.Semaphore) (uint32, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("AcquireNextImage"); err != nil {
		return 0, err
	}
	if !m.check("AcquireNextImage", KindSwapchain, uint64(sc)) {
		return 0, gpu.ErrOutOfDate
	}
	m.check("AcquireNextImage", KindSemaphore, uint64(signal))
	if m.semaphores[uint64(signal)] {
		m.violate("AcquireNextImage: semaphore#%d already signaled", signal)
	}
	state := m.swapchains[uint64(sc)]
	n := len(state.images)
	for k := 0; k < n; k++ {
		idx := uint32((state.next + k) % n)
		if state.acquired[idx] {
			continue
		}
		state.acquired[idx] = true
		state.next = int(idx+1) % n
		m.semaphores[uint64(signal)] = true
		return idx, nil
	}
	return 0, gpu.ErrTimeout
}

// QueueSubmit retires nothing: the work stays pending until a wait.
func (m *Mock) QueueSubmit(q gpu.Queue, info gpu.SubmitInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("QueueSubmit"); err != nil {
		return err
	}
	if len(info.Wait) != len(info.WaitStages) {
		m.violate("QueueSubmit: %d wait semaphores with %d stages", len(info.Wait), len(info.WaitStages))
	}
	sub := submission{fence: uint64(info.Fence)}
	for _, cb := range info.CommandBuffers {
		b := m.buffer("QueueSubmit", cb)
		switch b.state {
		case bufferPending:
			m.violate("QueueSubmit: command-buffer#%d resubmitted while in flight", cb)
		case bufferExecutable:
		default:
			m.violate("QueueSubmit: command-buffer#%d is not executable", cb)
		}
		b.state = bufferPending
		sub.buffers = append(sub.buffers, uint64(cb))
	}
	for _, s := range info.Wait {
		m.check("QueueSubmit", KindSemaphore, uint64(s))
		if !m.semaphores[uint64(s)] {
			m.violate("QueueSubmit: wait on unsignaled semaphore#%d", s)
		}
		m.semaphores[uint64(s)] = false
	}
	for _, s := range info.Signal {
		m.check("QueueSubmit", KindSemaphore, uint64(s))
		if m.semaphores[uint64(s)] {
			m.violate("QueueSubmit: signal of already signaled semaphore#%d", s)
		}
		m.semaphores[uint64(s)] = true
	}
	if info.Fence != 0 {
		m.check("QueueSubmit", KindFence, uint64(info.Fence))
		if f, ok := m.fences[uint64(info.Fence)]; ok && f.signaled {
			m.violate("QueueSubmit: fence#%d is signaled", info.Fence)
		}
		if m.fencePending(uint64(info.Fence)) >= 0 {
			m.violate("QueueSubmit: fence#%d already in flight", info.Fence)
		}
	}
	m.inflight = append(m.inflight, sub)
	m.submits = append(m.submits, info)
	return nil
}

// QueuePresent returns the image to the swapchain and consumes the wait
// semaphores even when it fails, as a presentation engine does for
// out-of-date and surface-lost results.
func (m *Mock) QueuePresent(q gpu.Queue, info gpu.PresentInfo) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	failed := m.call("QueuePresent")
	for _, s := range info.Wait {
		m.check("QueuePresent", KindSemaphore, uint64(s))
		if !m.semaphores[uint64(s)] {
			m.violate("QueuePresent: wait on unsignaled semaphore#%d", s)
		}
		m.semaphores[uint64(s)] = false
	}
	if !m.check("QueuePresent", KindSwapchain, uint64(info.Swapchain)) {
		return gpu.ErrOutOfDate
	}
	state := m.swapchains[uint64(info.Swapchain)]
	if !state.acquired[info.ImageIndex] {
		m.violate("QueuePresent: image %d was not acquired", info.ImageIndex)
	}
	delete(state.acquired, info.ImageIndex)
	if failed != nil {
		return failed
	}
	m.presents = append(m.presents, info)
	return nil
}

func (m *Mock) CreateShaderModule(d gpu.Device, code []byte) (gpu.ShaderModule, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err := m.call("CreateShaderModule"); err != nil {
		return 0, err
	}
	m.check("CreateShaderModule", KindDevice, uint64(d))
	if len(code) == 0 || len(code)%4 != 0 {
		return 0, errors.Errorf("SPIR-V size %d is not a positive multiple of 4", len(code))
	}
	h := m.create(KindShaderModule, uint64(d))
	m.modules[h] = append([]byte(nil), code...)
	return gpu.ShaderModule(h), nil
}

func (m *Mock) DestroyShaderModule(d gpu.Device, sm gpu.ShaderModule) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.call("DestroyShaderModule")
	if m.destroy("DestroyShaderModule", KindShaderModule, uint64(sm)) {
		delete(m.modules, uint64(sm))
	}
}
