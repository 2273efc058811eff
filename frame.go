package vkboot

import (
	"context"
	"time"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// maxConsecutiveDrops ends the run when that many frames in a row are
// dropped. A single bad frame is tolerated; a stream of them is not.
const maxConsecutiveDrops = 8

// EventSource reports whether the application should keep running. Poll
// also pumps the window system's event queue.
type EventSource interface {
	Poll() bool
}

// FrameStats counts completed and dropped frames.
type FrameStats struct {
	Frames  uint64
	Dropped uint64
}

// FrameLoop drives the draw cycle:
// wait previous, acquire, record and submit, present.
type FrameLoop struct {
	dc      *DeviceContext
	sc      *Swapchain
	rt      *RenderTargets
	cmd     *CommandContext
	sync    *FrameSync
	fenceTO time.Duration
	acqTO   time.Duration

	frame uint64
	drops int
	stats FrameStats
}

// NewFrameLoop wires the components built at init into a loop.
func NewFrameLoop(dc *DeviceContext, sc *Swapchain, rt *RenderTargets, cmd *CommandContext, fs *FrameSync, cfg Config) *FrameLoop {
	return &FrameLoop{
		dc:      dc,
		sc:      sc,
		rt:      rt,
		cmd:     cmd,
		sync:    fs,
		fenceTO: time.Duration(cfg.FenceTimeout),
		acqTO:   time.Duration(cfg.AcquireTimeout),
	}
}

// Frame returns the number of completed draw cycles.
func (l *FrameLoop) Frame() uint64 { return l.frame }

// Stats returns the frame counters.
func (l *FrameLoop) Stats() FrameStats { return l.stats }

// DrawFrame runs one draw cycle. A failed record, submit or present drops
// the frame instead of failing; the error is returned only when it is fatal
// or ends a run of maxConsecutiveDrops dropped frames.
func (l *FrameLoop) DrawFrame() error {
	if err := l.sync.WaitPrevious(l.fenceTO); err != nil {
		return err
	}
	idx, err := l.sc.AcquireNext(l.sync.Acquire, l.acqTO)
	if err != nil {
		return err
	}

	color := ClearColor(l.frame)
	if err := l.cmd.RecordFrame(l.rt.RenderPass, l.rt.Framebuffers[idx], l.sc.Extent, [4]float32(color)); err != nil {
		return l.drop(idx, err)
	}
	err = l.cmd.Submit(l.dc.Queue, l.sync.Acquire, gpu.StageColorAttachmentOutput, l.sync.RenderDone, l.sync.Fence)
	if err != nil {
		return l.drop(idx, err)
	}
	l.sync.Submitted()

	if err := l.sc.Present(l.dc.Queue, idx, l.sync.RenderDone); err != nil {
		// The presentation engine still takes the image back and waits on
		// the semaphore, so nothing is left to hand back.
		return l.count(err)
	}

	l.frame++
	l.stats.Frames++
	l.drops = 0
	Logger().Debug("frame presented", "frame", l.frame, "image", idx)
	return nil
}

// drop discards a frame that failed before its submission was queued. The
// image is still forwarded to present through an empty batch, which also
// consumes the acquire semaphore and re-arms the fence. If even that batch
// is rejected the image is lost to the swapchain and the run cannot go on.
func (l *FrameLoop) drop(idx uint32, cause error) error {
	if IsFatal(cause) {
		return cause
	}
	err := l.cmd.Forward(l.dc.Queue, l.sync.Acquire, gpu.StageColorAttachmentOutput, l.sync.RenderDone, l.sync.Fence)
	if err != nil {
		return newError(SwapchainError, "return dropped image", errors.Wrapf(err, "after %v", cause))
	}
	l.sync.Submitted()
	if err := l.sc.Present(l.dc.Queue, idx, l.sync.RenderDone); err != nil {
		Logger().Warn("present of dropped image failed", "image", idx, "err", err)
	}
	return l.count(cause)
}

// count records a dropped frame. The frame counter does not advance.
func (l *FrameLoop) count(cause error) error {
	l.stats.Dropped++
	l.drops++
	Logger().Warn("frame dropped", "frame", l.frame, "err", cause)
	if l.drops >= maxConsecutiveDrops {
		return cause
	}
	return nil
}

// Run draws frames until events asks to stop, ctx is done, or maxFrames
// iterations have run (zero means no limit). The stop conditions are
// checked once per iteration, before the frame starts.
func (l *FrameLoop) Run(ctx context.Context, events EventSource, maxFrames uint64) (FrameStats, error) {
	var iterations uint64
	for {
		if ctx.Err() != nil {
			Logger().Info("frame loop cancelled", "cause", context.Cause(ctx))
			break
		}
		if maxFrames > 0 && iterations >= maxFrames {
			break
		}
		if !events.Poll() {
			break
		}
		if err := l.DrawFrame(); err != nil {
			return l.stats, err
		}
		iterations++
	}
	return l.stats, nil
}

// Finish waits for the last submitted frame so its objects can be
// destroyed.
func (l *FrameLoop) Finish() error {
	if l.sync.Armed() {
		if err := l.sync.api.WaitForFence(l.sync.device, l.sync.Fence, l.fenceTO); err != nil {
			return newError(TeardownError, "wait for last frame", err)
		}
	}
	if err := l.dc.api.DeviceWaitIdle(l.dc.Device); err != nil {
		return newError(TeardownError, "wait device idle", err)
	}
	return nil
}
