// Command vkboot opens a window, brings up Vulkan and clears the screen
// every frame until the window closes or the process is interrupted.
//
// It exits 0 after a clean run and 1 on any failure, bad flags and config
// included. Shader paths given with -shader replace the configured list.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/andewx/vkboot"
	"github.com/andewx/vkboot/gpu/vulkan"
	"github.com/andewx/vkboot/window"
)

func init() {
	runtime.LockOSThread()
}

type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	*l = append(*l, v)
	return nil
}

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	fs := flag.NewFlagSet("vkboot", flag.ContinueOnError)
	var (
		configPath = fs.String("config", "", "JSON config `file`")
		system     = fs.String("window", "", "window system: glfw or sdl")
		frames     = fs.Uint64("frames", 0, "stop after `n` frames (0 runs until the window closes)")
		validation = fs.Bool("validation", false, "enable validation layers (-validation=false forces them off)")
		logLevel   = fs.String("log-level", "info", "debug, info, warn or error")
		shaders    stringList
	)
	fs.Var(&shaders, "shader", "shader source `path` to compile and load (repeatable)")
	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 1
	}

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "vkboot: %v\n", err)
		return 1
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	cfg := vkboot.DefaultConfig()
	if *configPath != "" {
		var err error
		if cfg, err = vkboot.LoadConfig(*configPath); err != nil {
			log.Error("load config", "err", err)
			return 1
		}
	}
	if *system != "" {
		cfg.Window = *system
	}
	if *frames != 0 {
		cfg.MaxFrames = *frames
	}
	fs.Visit(func(f *flag.Flag) {
		if f.Name == "validation" {
			cfg.Validation = *validation
		}
	})
	if len(shaders) > 0 {
		cfg.Shaders = shaders
	}
	if err := cfg.Validate(); err != nil {
		log.Error("invalid config", "err", err)
		return 1
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	w, err := window.Open(cfg.Window, cfg.AppName, int(cfg.Width), int(cfg.Height))
	if err != nil {
		log.Error("open window", "err", err)
		return 1
	}
	defer w.Close()

	api, err := vulkan.New(w.InstanceProcAddr())
	if err != nil {
		log.Error("load vulkan", "err", err)
		return 1
	}
	return vkboot.NewEngine(api, w, w, cfg, vkboot.WithLogger(log)).Exec(ctx)
}
