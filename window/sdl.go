package window

import (
	"unsafe"

	"github.com/pkg/errors"
	"github.com/veandco/go-sdl2/sdl"
)

// SDL is a Window on SDL2.
type SDL struct {
	win  *sdl.Window
	quit bool
}

var _ Window = (*SDL)(nil)

// OpenSDL initializes the SDL video subsystem and opens a Vulkan window.
func OpenSDL(title string, width, height int) (*SDL, error) {
	if err := sdl.Init(sdl.INIT_VIDEO | sdl.INIT_EVENTS); err != nil {
		return nil, errors.Wrap(err, "sdl: init")
	}
	win, err := sdl.CreateWindow(title, sdl.WINDOWPOS_UNDEFINED, sdl.WINDOWPOS_UNDEFINED,
		int32(width), int32(height), sdl.WINDOW_SHOWN|sdl.WINDOW_VULKAN)
	if err != nil {
		sdl.Quit()
		return nil, errors.Wrap(err, "sdl: create window")
	}
	return &SDL{win: win}, nil
}

func (s *SDL) InstanceExtensions() []string {
	return s.win.VulkanGetInstanceExtensions()
}

func (s *SDL) CreateSurface(rawInstance interface{}) (uintptr, error) {
	surface, err := s.win.VulkanCreateSurface(rawInstance)
	if err != nil {
		return 0, errors.Wrap(err, "sdl: create surface")
	}
	return uintptr(surface), nil
}

func (s *SDL) InstanceProcAddr() unsafe.Pointer {
	return sdl.VulkanGetVkGetInstanceProcAddr()
}

// Poll drains the event queue. A quit event or Escape stops the run.
func (s *SDL) Poll() bool {
	for ev := sdl.PollEvent(); ev != nil; ev = sdl.PollEvent() {
		switch e := ev.(type) {
		case *sdl.QuitEvent:
			s.quit = true
		case *sdl.KeyboardEvent:
			if e.Type == sdl.KEYDOWN && e.Keysym.Sym == sdl.K_ESCAPE {
				s.quit = true
			}
		}
	}
	return !s.quit
}

// Close destroys the window and shuts SDL down.
func (s *SDL) Close() {
	s.win.Destroy()
	sdl.Quit()
}
