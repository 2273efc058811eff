package vkboot

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/gpu/gputest"
)

func TestRecordFrame(t *testing.T) {
	b := buildAll(t, gputest.New())
	m := b.m
	m.ResetTrace()

	clear := [4]float32{0, 0, 0.5, 1}
	if err := b.cmd.RecordFrame(b.rt.RenderPass, b.rt.Framebuffers[1], b.sc.Extent, clear); err != nil {
		t.Fatal(err)
	}
	want := "ResetCommandBuffer BeginCommandBuffer CmdBeginRenderPass CmdEndRenderPass EndCommandBuffer"
	if got := strings.Join(m.Trace(), " "); got != want {
		t.Fatalf("trace: %s", got)
	}
	passes := m.RenderPasses()
	if len(passes) != 1 {
		t.Fatalf("%d render passes", len(passes))
	}
	p := passes[0]
	if p.Framebuffer != b.rt.Framebuffers[1] || p.RenderPass != b.rt.RenderPass || p.Extent != b.sc.Extent || p.ClearColor != clear {
		t.Fatalf("render pass begin %+v", p)
	}

	b.release(t)
	assertClean(t, m)
}

func TestRecordFrameErrorsAreRecoverable(t *testing.T) {
	for _, op := range []string{"ResetCommandBuffer", "BeginCommandBuffer", "EndCommandBuffer"} {
		b := buildAll(t, gputest.New())
		b.m.FailNext(op, gpu.ErrOutOfMemory)
		err := b.cmd.RecordFrame(b.rt.RenderPass, b.rt.Framebuffers[0], b.sc.Extent, [4]float32{})
		if k, _ := KindOf(err); k != SubmitError || IsFatal(err) {
			t.Errorf("%s: kind %v err %v", op, k, err)
		}
		b.release(t)
	}
}

func TestSubmit(t *testing.T) {
	b := buildAll(t, gputest.New())
	m := b.m
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	if _, err := b.sc.AcquireNext(b.sync.Acquire, time.Second); err != nil {
		t.Fatal(err)
	}
	if err := b.cmd.RecordFrame(b.rt.RenderPass, b.rt.Framebuffers[0], b.sc.Extent, [4]float32{}); err != nil {
		t.Fatal(err)
	}
	err := b.cmd.Submit(b.dc.Queue, b.sync.Acquire, gpu.StageColorAttachmentOutput, b.sync.RenderDone, b.sync.Fence)
	if err != nil {
		t.Fatal(err)
	}
	subs := m.Submits()
	if len(subs) != 1 {
		t.Fatalf("%d submits", len(subs))
	}
	s := subs[0]
	if len(s.CommandBuffers) != 1 || s.CommandBuffers[0] != b.cmd.Buffer {
		t.Errorf("buffers %v", s.CommandBuffers)
	}
	if len(s.Wait) != 1 || s.Wait[0] != b.sync.Acquire || len(s.WaitStages) != 1 || s.WaitStages[0] != gpu.StageColorAttachmentOutput {
		t.Errorf("wait %v at %v", s.Wait, s.WaitStages)
	}
	if len(s.Signal) != 1 || s.Signal[0] != b.sync.RenderDone || s.Fence != b.sync.Fence {
		t.Errorf("signal %v fence %d", s.Signal, s.Fence)
	}
	b.sync.Submitted()

	m.FailNext("QueueSubmit", gpu.ErrDeviceLost)
	err = b.cmd.Submit(b.dc.Queue, b.sync.Acquire, gpu.StageColorAttachmentOutput, b.sync.RenderDone, b.sync.Fence)
	if k, _ := KindOf(err); k != SubmitError || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("kind %v err %v", k, err)
	}

	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	b.release(t)
	assertClean(t, m)
}

// WaitPrevious returns only once the guarded submission has completed and
// leaves the fence reset for the next one.
func TestWaitPrevious(t *testing.T) {
	b := buildAll(t, gputest.New())
	m := b.m

	if !b.sync.Armed() || !m.FenceSignaled(b.sync.Fence) {
		t.Fatal("fence not created signaled")
	}
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	if b.sync.Armed() || m.FenceSignaled(b.sync.Fence) {
		t.Fatal("fence not reset after wait")
	}

	// Nothing guards the fence: the wait is skipped instead of timing out.
	m.ResetTrace()
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	if len(m.Trace()) != 0 {
		t.Fatalf("disarmed wait called %v", m.Trace())
	}

	if err := m.QueueSubmit(b.dc.Queue, gpu.SubmitInfo{Fence: b.sync.Fence}); err != nil {
		t.Fatal(err)
	}
	b.sync.Submitted()
	if m.Pending() != 1 {
		t.Fatal("submission not pending")
	}
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	if m.Pending() != 0 {
		t.Fatal("WaitPrevious returned before the submission completed")
	}

	b.release(t)
	assertClean(t, m)
}

func TestWaitPreviousTimeoutIsFatal(t *testing.T) {
	b := buildAll(t, gputest.New())
	m := b.m
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	if err := m.QueueSubmit(b.dc.Queue, gpu.SubmitInfo{Fence: b.sync.Fence}); err != nil {
		t.Fatal(err)
	}
	b.sync.Submitted()
	m.SetHung(true)

	err := b.sync.WaitPrevious(250 * time.Millisecond)
	if k, _ := KindOf(err); k != FenceTimeout || !IsFatal(err) || !errors.Is(err, gpu.ErrTimeout) {
		t.Fatalf("kind %v err %v", k, err)
	}
	if !strings.Contains(err.Error(), "250ms") {
		t.Fatalf("timeout missing from %q", err)
	}

	m.SetHung(false)
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	b.release(t)
	assertClean(t, m)
}

// Forward hands an acquired image on without drawing: it consumes the
// acquire semaphore, signals render-done and guards the fence.
func TestForward(t *testing.T) {
	b := buildAll(t, gputest.New())
	m := b.m
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}
	idx, err := b.sc.AcquireNext(b.sync.Acquire, time.Second)
	if err != nil {
		t.Fatal(err)
	}
	err = b.cmd.Forward(b.dc.Queue, b.sync.Acquire, gpu.StageColorAttachmentOutput, b.sync.RenderDone, b.sync.Fence)
	if err != nil {
		t.Fatal(err)
	}
	b.sync.Submitted()
	s := m.Submits()[0]
	if len(s.CommandBuffers) != 0 || s.Wait[0] != b.sync.Acquire || s.Signal[0] != b.sync.RenderDone || s.Fence != b.sync.Fence {
		t.Fatalf("submit %+v", s)
	}
	if err := b.sc.Present(b.dc.Queue, idx, b.sync.RenderDone); err != nil {
		t.Fatal(err)
	}
	if err := b.sync.WaitPrevious(time.Second); err != nil {
		t.Fatal(err)
	}

	m.FailNext("QueueSubmit", gpu.ErrDeviceLost)
	err = b.cmd.Forward(b.dc.Queue, b.sync.Acquire, gpu.StageColorAttachmentOutput, b.sync.RenderDone, b.sync.Fence)
	if k, _ := KindOf(err); k != SubmitError || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("kind %v err %v", k, err)
	}
	b.release(t)
	assertClean(t, m)
}

func TestNewFrameSyncFailureReleases(t *testing.T) {
	for _, x := range []struct {
		op   string
		errs []error
	}{
		{"CreateFence", []error{gpu.ErrOutOfMemory}},
		{"CreateSemaphore", []error{gpu.ErrOutOfMemory}},
		{"CreateSemaphore", []error{nil, gpu.ErrOutOfMemory}},
	} {
		m := gputest.New()
		dc, err := BuildDeviceContext(m, testConfig(), newFakeWindow(0))
		if err != nil {
			t.Fatal(err)
		}
		m.FailNext(x.op, x.errs...)
		if fs, err := NewFrameSync(m, dc); fs != nil || !errors.Is(err, gpu.ErrOutOfMemory) {
			t.Fatalf("%s: %v", x.op, err)
		}
		dc.Release()
		assertClean(t, m)
	}
}

func TestNewCommandContextFailureReleases(t *testing.T) {
	for _, op := range []string{"CreateCommandPool", "AllocateCommandBuffer"} {
		m := gputest.New()
		dc, err := BuildDeviceContext(m, testConfig(), newFakeWindow(0))
		if err != nil {
			t.Fatal(err)
		}
		m.FailNext(op, gpu.ErrOutOfMemory)
		if cc, err := NewCommandContext(m, dc); cc != nil || !errors.Is(err, gpu.ErrOutOfMemory) {
			t.Fatalf("%s: %v", op, err)
		}
		dc.Release()
		assertClean(t, m)
	}
}
