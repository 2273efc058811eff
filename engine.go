package vkboot

import (
	"context"
	"log/slog"

	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/shadercache"
)

// Engine wires the components together: it builds them in dependency
// order, runs the frame loop and tears everything down in reverse.
type Engine struct {
	api      gpu.API
	surfaces SurfaceProvider
	events   EventSource
	cfg      Config
	shaders  ShaderLoader

	Device    *DeviceContext
	Swapchain *Swapchain
	Targets   *RenderTargets
	Commands  *CommandContext
	Sync      *FrameSync
	Shaders   *ShaderSet
	Loop      *FrameLoop
	stats     FrameStats

	stack releaser
}

// EngineOption configures an Engine.
type EngineOption func(*Engine)

// WithLogger installs l as the package logger.
func WithLogger(l *slog.Logger) EngineOption {
	return func(*Engine) { SetLogger(l) }
}

// WithShaderLoader replaces the shader cache built from the config.
func WithShaderLoader(loader ShaderLoader) EngineOption {
	return func(e *Engine) { e.shaders = loader }
}

// NewEngine returns an engine that has not touched the GPU yet.
func NewEngine(api gpu.API, surfaces SurfaceProvider, events EventSource, cfg Config, opts ...EngineOption) *Engine {
	e := &Engine{api: api, surfaces: surfaces, events: events, cfg: cfg}
	for _, opt := range opts {
		opt(e)
	}
	if e.shaders == nil {
		e.shaders = shadercache.New(shadercache.DefaultCompiler(), shadercache.WithExtension(cfg.ShaderExt))
	}
	return e
}

// Stats returns the frame counters of the last run.
func (e *Engine) Stats() FrameStats { return e.stats }

// Exec runs the engine to completion and returns the process exit code:
// 0 for a clean run, 1 when init, a fatal frame error or teardown failed.
func (e *Engine) Exec(ctx context.Context) int {
	if err := e.Run(ctx); err != nil {
		kind := "unclassified"
		if k, ok := KindOf(err); ok {
			kind = k.String()
		}
		Logger().Error("vkboot failed", "kind", kind, "err", err)
		return 1
	}
	return 0
}

// Run initializes, loops until stopped and tears down. Teardown always
// runs; its error is returned only when nothing failed before it.
func (e *Engine) Run(ctx context.Context) (err error) {
	defer recoverError(&err)
	defer func() {
		if relErr := e.stack.release(); relErr != nil {
			if err == nil {
				err = newError(TeardownError, "release", relErr)
			}
		}
		Logger().Info("teardown complete")
	}()

	if err := e.cfg.Validate(); err != nil {
		return initError("validate config", err)
	}
	if err := e.init(); err != nil {
		return err
	}

	Logger().Info("frame loop started", "max_frames", e.cfg.MaxFrames)
	stats, runErr := e.Loop.Run(ctx, e.events, e.cfg.MaxFrames)
	e.stats = stats
	Logger().Info("frame loop stopped", "frames", stats.Frames, "dropped", stats.Dropped)

	finErr := e.Loop.Finish()
	if runErr != nil {
		if finErr != nil {
			Logger().Error("wait for device after failure", "err", finErr)
		}
		return runErr
	}
	return finErr
}

func (e *Engine) init() error {
	api := e.api
	var err error

	if e.Device, err = BuildDeviceContext(api, e.cfg, e.surfaces); err != nil {
		return err
	}
	e.stack.pushErr("device context", e.Device.Release)

	if e.Swapchain, err = BuildSwapchain(api, e.Device, e.cfg.Extent()); err != nil {
		return err
	}
	e.stack.pushErr("swapchain", e.Swapchain.Release)

	if e.Targets, err = BuildRenderTargets(api, e.Device, e.Swapchain); err != nil {
		return err
	}
	e.stack.pushErr("render targets", e.Targets.Release)

	if e.Commands, err = NewCommandContext(api, e.Device); err != nil {
		return err
	}
	e.stack.pushErr("command context", e.Commands.Release)

	if e.Sync, err = NewFrameSync(api, e.Device); err != nil {
		return err
	}
	e.stack.pushErr("frame sync", e.Sync.Release)

	if e.Shaders, err = LoadShaders(api, e.Device, e.shaders, e.cfg.Shaders); err != nil {
		return err
	}
	e.stack.pushErr("shaders", e.Shaders.Release)

	e.Loop = NewFrameLoop(e.Device, e.Swapchain, e.Targets, e.Commands, e.Sync, e.cfg)
	Logger().Info("engine initialized", "shaders", len(e.Shaders.Modules))
	return nil
}
