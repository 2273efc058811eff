package vkboot

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/gpu/gputest"
	"github.com/andewx/vkboot/shadercache"
)

type pollFunc func() bool

func (f pollFunc) Poll() bool { return f() }

func TestEngineCleanRun(t *testing.T) {
	logs := captureLog(t)
	m := gputest.New()
	cfg := testConfig()
	cfg.MaxFrames = 10
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg)
	if code := e.Exec(context.Background()); code != 0 {
		t.Fatalf("exit code %d\n%s", code, logs)
	}
	if e.Stats().Frames != 10 || e.Loop.Frame() != 10 {
		t.Fatalf("stats %+v", e.Stats())
	}
	assertClean(t, m)
	assertReverseTeardown(t, m)
	for _, want := range []string{"device context ready", "swapchain ready", "frame loop stopped", "teardown complete"} {
		if !strings.Contains(logs.String(), want) {
			t.Errorf("log lacks %q", want)
		}
	}
}

// Two shaders are compiled on the first run and reused by the second.
func TestEngineShaderCacheAcrossRuns(t *testing.T) {
	_, paths := writeShaders(t, map[string]string{"triangle.vert": "vertex", "triangle.frag": "fragment"})
	cfg := testConfig()
	cfg.MaxFrames = 3
	cfg.Shaders = paths

	for run, want := range []int32{2, 0} {
		m := gputest.New()
		comp := &wordCompiler{}
		e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg, WithShaderLoader(shadercache.New(comp)))
		if code := e.Exec(context.Background()); code != 0 {
			t.Fatalf("run %d: exit code %d", run, code)
		}
		if comp.calls.Load() != want {
			t.Fatalf("run %d: %d compiles, want %d", run, comp.calls.Load(), want)
		}
		if len(e.Shaders.Modules) != 2 {
			t.Fatalf("run %d: %d modules", run, len(e.Shaders.Modules))
		}
		assertClean(t, m)
		assertReverseTeardown(t, m)
	}
}

// A dropped frame creates no objects mid-run, so teardown still mirrors
// construction with shader modules built after the frame objects.
func TestEngineDropKeepsTeardownOrder(t *testing.T) {
	logs := captureLog(t)
	_, paths := writeShaders(t, map[string]string{"triangle.frag": "fragment"})
	m := gputest.New()
	m.FailNext("QueueSubmit", nil, gpu.ErrDeviceLost)
	cfg := testConfig()
	cfg.MaxFrames = 5
	cfg.Shaders = paths
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg, WithShaderLoader(shadercache.New(&wordCompiler{})))
	if code := e.Exec(context.Background()); code != 0 {
		t.Fatalf("exit code %d\n%s", code, logs)
	}
	if s := e.Stats(); s.Frames != 4 || s.Dropped != 1 {
		t.Fatalf("stats %+v", s)
	}
	var semaphores int
	for _, ev := range m.Events() {
		if ev.Kind == gputest.KindSemaphore && !ev.Destroy {
			semaphores++
		}
	}
	if semaphores != 2 {
		t.Fatalf("%d semaphores created", semaphores)
	}
	assertClean(t, m)
	assertReverseTeardown(t, m)
}

func TestEngineInitFailure(t *testing.T) {
	for _, op := range []string{"CreateInstance", "CreateSwapchain", "CreateRenderPass", "CreateCommandPool", "CreateFence", "CreateShaderModule"} {
		t.Run(op, func(t *testing.T) {
			logs := captureLog(t)
			_, paths := writeShaders(t, map[string]string{"a.vert": "vertex"})
			m := gputest.New()
			m.FailNext(op, gpu.ErrOutOfMemory)
			cfg := testConfig()
			cfg.Shaders = paths
			e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg, WithShaderLoader(shadercache.New(&wordCompiler{})))
			if code := e.Exec(context.Background()); code != 1 {
				t.Fatalf("exit code %d", code)
			}
			if !strings.Contains(logs.String(), "kind=init") {
				t.Fatalf("failure not logged:\n%s", logs)
			}
			assertClean(t, m)
			assertReverseTeardown(t, m)
		})
	}
}

func TestEngineCompileError(t *testing.T) {
	logs := captureLog(t)
	_, paths := writeShaders(t, map[string]string{"bad.frag": "error"})
	m := gputest.New()
	cfg := testConfig()
	cfg.Shaders = paths
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg, WithShaderLoader(shadercache.New(&wordCompiler{})))
	if code := e.Exec(context.Background()); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(logs.String(), "syntax error") {
		t.Fatalf("diagnostic not logged:\n%s", logs)
	}
	if len(m.Submits()) != 0 {
		t.Fatal("frames drawn after a failed init")
	}
	assertClean(t, m)
}

func TestEngineInvalidConfig(t *testing.T) {
	m := gputest.New()
	cfg := testConfig()
	cfg.Window = "x11"
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg)
	if code := e.Exec(context.Background()); code != 1 {
		t.Fatalf("exit code %d", code)
	}
	if len(m.Trace()) != 0 {
		t.Fatal("GPU touched with an invalid config")
	}
}

func TestEngineTeardownFailure(t *testing.T) {
	logs := captureLog(t)
	m := gputest.New()
	m.FailNext("DeviceWaitIdle", gpu.ErrDeviceLost)
	cfg := testConfig()
	cfg.MaxFrames = 2
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg)
	err := e.Run(context.Background())
	if k, _ := KindOf(err); k != TeardownError || !errors.Is(err, gpu.ErrDeviceLost) {
		t.Fatalf("kind %v err %v", k, err)
	}
	if !strings.Contains(logs.String(), "teardown complete") {
		t.Fatal("objects not released after a teardown error")
	}
	if m.Live() != 0 {
		t.Fatalf("%d objects alive", m.Live())
	}
}

func TestEngineHungGPU(t *testing.T) {
	m := gputest.New()
	polls := 0
	events := pollFunc(func() bool {
		polls++
		if polls == 4 {
			m.SetHung(true)
		}
		return true
	})
	e := NewEngine(m, newFakeWindow(0), events, testConfig())
	err := e.Run(context.Background())
	if k, _ := KindOf(err); k != FenceTimeout {
		t.Fatalf("kind %v err %v", k, err)
	}
	if e.Stats().Frames != 3 {
		t.Fatalf("stats %+v", e.Stats())
	}
	if m.Live() != 0 {
		t.Fatalf("%d objects alive", m.Live())
	}
}

func TestEngineCancel(t *testing.T) {
	m := gputest.New()
	ctx, cancel := context.WithCancel(context.Background())
	polls := 0
	events := pollFunc(func() bool {
		polls++
		if polls == 5 {
			cancel()
		}
		return true
	})
	e := NewEngine(m, newFakeWindow(0), events, testConfig())
	if code := e.Exec(ctx); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if e.Stats().Frames != 5 {
		t.Fatalf("stats %+v", e.Stats())
	}
	assertClean(t, m)
}

func TestWithLogger(t *testing.T) {
	var buf bytes.Buffer
	t.Cleanup(func() { SetLogger(nil) })
	m := gputest.New()
	cfg := testConfig()
	cfg.MaxFrames = 1
	e := NewEngine(m, newFakeWindow(0), newFakeWindow(-1), cfg,
		WithLogger(slog.New(slog.NewJSONHandler(&buf, nil))))
	if code := e.Exec(context.Background()); code != 0 {
		t.Fatalf("exit code %d", code)
	}
	if !strings.Contains(buf.String(), `"msg":"engine initialized"`) {
		t.Fatalf("log:\n%s", buf.String())
	}
}
