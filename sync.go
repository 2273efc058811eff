package vkboot

import (
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// FrameSync holds the single set of synchronization objects of the frame
// loop: a fence the CPU waits on and two semaphores ordering acquire,
// render and present on the GPU.
type FrameSync struct {
	api    gpu.API
	device gpu.Device

	Fence      gpu.Fence
	Acquire    gpu.Semaphore
	RenderDone gpu.Semaphore

	// armed is set while the fence is either signaled or guarded by a
	// pending submission, i.e. while waiting on it can succeed.
	armed bool

	stack releaser
}

// NewFrameSync creates the fence in the signaled state so the first wait
// returns at once.
func NewFrameSync(api gpu.API, dc *DeviceContext) (_ *FrameSync, err error) {
	fs := &FrameSync{api: api, device: dc.Device}
	defer func() {
		if err != nil {
			fs.stack.release()
		}
	}()

	fence, err := api.CreateFence(dc.Device, true)
	if err != nil {
		return nil, initError("create fence", err)
	}
	fs.Fence = fence
	fs.armed = true
	fs.stack.push("fence", func() { api.DestroyFence(dc.Device, fence) })

	if fs.Acquire, err = fs.createSemaphore("acquire semaphore"); err != nil {
		return nil, err
	}
	if fs.RenderDone, err = fs.createSemaphore("render semaphore"); err != nil {
		return nil, err
	}
	return fs, nil
}

func (fs *FrameSync) createSemaphore(name string) (gpu.Semaphore, error) {
	s, err := fs.api.CreateSemaphore(fs.device)
	if err != nil {
		return 0, initError("create "+name, err)
	}
	fs.stack.push(name, func() { fs.api.DestroySemaphore(fs.device, s) })
	return s, nil
}

// WaitPrevious blocks until the previous frame's work has completed, then
// resets the fence. A timeout means the GPU is presumed hung and is fatal.
// When no submission guards the fence it returns at once.
func (fs *FrameSync) WaitPrevious(timeout time.Duration) error {
	if !fs.armed {
		return nil
	}
	if err := fs.api.WaitForFence(fs.device, fs.Fence, timeout); err != nil {
		if errors.Is(err, gpu.ErrTimeout) {
			return newError(FenceTimeout, "wait for fence", errors.Wrapf(err, "after %v", timeout))
		}
		return newError(FenceTimeout, "wait for fence", err)
	}
	if err := fs.api.ResetFence(fs.device, fs.Fence); err != nil {
		return newError(FenceTimeout, "reset fence", err)
	}
	fs.armed = false
	return nil
}

// Submitted records that a submission now guards the fence.
func (fs *FrameSync) Submitted() {
	fs.armed = true
}

// Armed reports whether waiting on the fence can succeed.
func (fs *FrameSync) Armed() bool {
	return fs.armed
}

// Release destroys the semaphores and the fence.
func (fs *FrameSync) Release() error {
	return fs.stack.release()
}
