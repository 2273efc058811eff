package vkboot

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/andewx/vkboot/gpu/gputest"
)

// fakeWindow is a surface provider and event source. Poll returns true for
// the first frames calls; a negative frames never stops.
type fakeWindow struct {
	extensions []string
	surfaceErr error
	frames     int
	polls      int
}

func newFakeWindow(frames int) *fakeWindow {
	return &fakeWindow{extensions: []string{"VK_KHR_surface", "VK_KHR_xcb_surface"}, frames: frames}
}

func (w *fakeWindow) InstanceExtensions() []string { return w.extensions }

func (w *fakeWindow) CreateSurface(interface{}) (uintptr, error) {
	if w.surfaceErr != nil {
		return 0, w.surfaceErr
	}
	return 0x5eed, nil
}

func (w *fakeWindow) Poll() bool {
	w.polls++
	return w.frames < 0 || w.polls <= w.frames
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.Validation = false
	cfg.Shaders = nil
	return cfg
}

// captureLog routes the package logger into a buffer for the test.
func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	var buf bytes.Buffer
	SetLogger(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	t.Cleanup(func() { SetLogger(nil) })
	return &buf
}

// assertClean fails the test when m recorded misuse or objects outlived
// teardown.
func assertClean(t *testing.T, m *gputest.Mock) {
	t.Helper()
	if v := m.Violations(); len(v) > 0 {
		t.Errorf("violations:\n%q", v)
	}
	if n := m.Live(); n != 0 {
		t.Errorf("%d objects still alive: %v", n, m.LiveKinds())
	}
}

// assertReverseTeardown checks that destruction order mirrors creation.
func assertReverseTeardown(t *testing.T, m *gputest.Mock) {
	t.Helper()
	created, destroyed := m.Created(), m.Destroyed()
	if len(created) != len(destroyed) {
		t.Fatalf("created %d objects, destroyed %d", len(created), len(destroyed))
	}
	for i := range created {
		if created[i] != destroyed[len(destroyed)-1-i] {
			t.Fatalf("teardown order:\ncreated   %v\ndestroyed %v", created, destroyed)
		}
	}
}

type built struct {
	m    *gputest.Mock
	dc   *DeviceContext
	sc   *Swapchain
	rt   *RenderTargets
	cmd  *CommandContext
	sync *FrameSync
}

// buildAll creates every frame component on m and registers their release
// in teardown order.
func buildAll(t *testing.T, m *gputest.Mock) *built {
	t.Helper()
	b := &built{m: m}
	var err error
	if b.dc, err = BuildDeviceContext(m, testConfig(), newFakeWindow(0)); err != nil {
		t.Fatal(err)
	}
	if b.sc, err = BuildSwapchain(m, b.dc, testConfig().Extent()); err != nil {
		t.Fatal(err)
	}
	if b.rt, err = BuildRenderTargets(m, b.dc, b.sc); err != nil {
		t.Fatal(err)
	}
	if b.cmd, err = NewCommandContext(m, b.dc); err != nil {
		t.Fatal(err)
	}
	if b.sync, err = NewFrameSync(m, b.dc); err != nil {
		t.Fatal(err)
	}
	return b
}

func (b *built) release(t *testing.T) {
	t.Helper()
	for _, fn := range []func() error{b.sync.Release, b.cmd.Release, b.rt.Release, b.sc.Release, b.dc.Release} {
		if err := fn(); err != nil {
			t.Error(err)
		}
	}
}

func (b *built) loop(cfg Config) *FrameLoop {
	return NewFrameLoop(b.dc, b.sc, b.rt, b.cmd, b.sync, cfg)
}
