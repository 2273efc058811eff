package window

import (
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/pkg/errors"
)

// GLFW is a Window on GLFW 3.3.
type GLFW struct {
	win *glfw.Window
}

var _ Window = (*GLFW)(nil)

// OpenGLFW initializes GLFW and opens a window without a client API.
func OpenGLFW(title string, width, height int) (*GLFW, error) {
	if err := glfw.Init(); err != nil {
		return nil, errors.Wrap(err, "glfw: init")
	}
	if !glfw.VulkanSupported() {
		glfw.Terminate()
		return nil, errors.New("glfw: no Vulkan loader found")
	}
	glfw.WindowHint(glfw.ClientAPI, glfw.NoAPI)
	glfw.WindowHint(glfw.Resizable, glfw.False)
	glfw.WindowHint(glfw.Visible, glfw.True)
	win, err := glfw.CreateWindow(width, height, title, nil, nil)
	if err != nil {
		glfw.Terminate()
		return nil, errors.Wrap(err, "glfw: create window")
	}
	win.SetKeyCallback(func(w *glfw.Window, key glfw.Key, _ int, action glfw.Action, _ glfw.ModifierKey) {
		if key == glfw.KeyEscape && action == glfw.Press {
			w.SetShouldClose(true)
		}
	})
	return &GLFW{win: win}, nil
}

func (g *GLFW) InstanceExtensions() []string {
	return g.win.GetRequiredInstanceExtensions()
}

func (g *GLFW) CreateSurface(rawInstance interface{}) (uintptr, error) {
	surface, err := g.win.CreateWindowSurface(rawInstance, nil)
	if err != nil {
		return 0, errors.Wrap(err, "glfw: create window surface")
	}
	return surface, nil
}

func (g *GLFW) InstanceProcAddr() unsafe.Pointer {
	return glfw.GetVulkanGetInstanceProcAddress()
}

func (g *GLFW) Poll() bool {
	glfw.PollEvents()
	return !g.win.ShouldClose()
}

// Close destroys the window and terminates GLFW.
func (g *GLFW) Close() {
	g.win.Destroy()
	glfw.Terminate()
}
