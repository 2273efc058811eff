package window_test

import (
	"context"
	"os"
	"runtime"
	"testing"

	"github.com/andewx/vkboot"
	"github.com/andewx/vkboot/gpu/vulkan"
	"github.com/andewx/vkboot/window"
)

func TestOpenUnknown(t *testing.T) {
	if w, err := window.Open("wayland-direct", "x", 1, 1); w != nil || err == nil {
		t.Fatal("opened an unknown window system")
	}
}

// TestRender draws a few frames on a real display. It needs a Vulkan driver
// and a display server, so it runs only when VKBOOT_DISPLAY names the window
// system to use.
func TestRender(t *testing.T) {
	system := os.Getenv("VKBOOT_DISPLAY")
	if system == "" {
		t.Skip("VKBOOT_DISPLAY not set")
	}
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()

	w, err := window.Open(system, "vkboot test", 500, 500)
	if err != nil {
		t.Fatal(err)
	}
	defer w.Close()

	api, err := vulkan.New(w.InstanceProcAddr())
	if err != nil {
		t.Fatal(err)
	}
	cfg := vkboot.DefaultConfig()
	cfg.Width, cfg.Height = 500, 500
	cfg.Window = system
	cfg.MaxFrames = 60
	cfg.Shaders = nil

	e := vkboot.NewEngine(api, w, w, cfg)
	if err := e.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if s := e.Stats(); s.Frames == 0 {
		t.Fatalf("no frames presented: %+v", s)
	}
}
