// Package window provides the window systems vkboot can present to. A
// Window creates the Vulkan surface, hands out the loader entry point and
// reports when the user asks to quit.
//
// Window systems require their calls on the main OS thread; callers lock it
// with runtime.LockOSThread before opening a window.
package window

import (
	"unsafe"

	"github.com/pkg/errors"
)

// Window is a surface provider and event source.
type Window interface {
	// InstanceExtensions lists the instance extensions surface creation
	// needs on this platform.
	InstanceExtensions() []string
	// CreateSurface creates a VkSurfaceKHR for rawInstance, a vk.Instance.
	CreateSurface(rawInstance interface{}) (uintptr, error)
	// InstanceProcAddr returns vkGetInstanceProcAddr of the loader the
	// window system uses.
	InstanceProcAddr() unsafe.Pointer
	// Poll pumps pending events and reports whether to keep running.
	Poll() bool
	Close()
}

// Open creates a window of the named system, "glfw" or "sdl", that cannot
// be resized.
func Open(system, title string, width, height int) (Window, error) {
	switch system {
	case "glfw":
		return OpenGLFW(title, width, height)
	case "sdl":
		return OpenSDL(title, width, height)
	}
	return nil, errors.Errorf("window: unknown system %q", system)
}
