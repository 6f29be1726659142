// Package glgpu is the OpenGL fallback backend. It only clears the default
// framebuffer and swaps buffers; everything else is drawn by the caller.
package glgpu

import (
	"fmt"

	"github.com/go-gl/gl/v3.3-core/gl"
	"github.com/go-gl/glfw/v3.3/glfw"
	"github.com/xlab/linmath"

	"vkframe/config"
	"vkframe/gpu"
	"vkframe/logs"
)

// Sizer reports the current framebuffer size.
type Sizer interface {
	Size() (width, height int)
}

// Backend is the OpenGL gpu.Backend.
type Backend struct {
	window     *glfw.Window
	sizes      Sizer
	clearColor linmath.Vec4
}

var _ gpu.Backend = (*Backend)(nil)

// New returns a Backend which sets its viewport to the size reported by
// sizes. Frames are cleared to blue so that a missing renderer is obvious.
func New(sizes Sizer) *Backend {
	return &Backend{
		sizes:      sizes,
		clearColor: linmath.Vec4{0, 0, 1, 1},
	}
}

// SetClearColor sets the color every frame starts with.
func (b *Backend) SetClearColor(color linmath.Vec4) {
	b.clearColor = color
}

// CreateWindow opens a window with an OpenGL 3.3 core context and makes the
// context current.
func (b *Backend) CreateWindow(name string, cfg config.Config) (*glfw.Window, error) {
	window, err := gpu.OpenWindow(name, cfg,
		gpu.Hint{Target: glfw.ClientAPI, Value: glfw.OpenGLAPI},
		gpu.Hint{Target: glfw.ContextVersionMajor, Value: 3},
		gpu.Hint{Target: glfw.ContextVersionMinor, Value: 3},
		gpu.Hint{Target: glfw.OpenGLProfile, Value: glfw.OpenGLCoreProfile},
		gpu.Hint{Target: glfw.OpenGLForwardCompatible, Value: glfw.True},
	)
	if err != nil {
		return nil, err
	}

	window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		gpu.CloseWindow(window)
		return nil, fmt.Errorf("gl.Init: %w", err)
	}

	if cfg.Vsync {
		glfw.SwapInterval(1)
	} else {
		glfw.SwapInterval(0)
	}

	gl.Disable(gl.DEPTH_TEST)
	gl.Disable(gl.CULL_FACE)
	gl.BlendFunc(gl.SRC_ALPHA, gl.ONE_MINUS_SRC_ALPHA)
	gl.Disable(gl.BLEND)

	logs.Graphics().Info("OpenGL context ready",
		"version", gl.GoStr(gl.GetString(gl.VERSION)),
		"renderer", gl.GoStr(gl.GetString(gl.RENDERER)),
		"vsync", cfg.Vsync,
	)

	b.window = window
	return window, nil
}

// NextFrame binds the default framebuffer, sets the viewport to the window
// and clears color and depth.
func (b *Backend) NextFrame() bool {
	if b.window == nil {
		return false
	}

	width, height := b.sizes.Size()

	gl.BindFramebuffer(gl.FRAMEBUFFER, 0)
	gl.ClearColor(b.clearColor[0], b.clearColor[1], b.clearColor[2], b.clearColor[3])
	gl.ClearDepth(1)
	gl.ClearStencil(0)
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)

	return true
}

// Swap shows the back buffer. A resize only needs the new size, which the
// next NextFrame picks up.
func (b *Backend) Swap(req gpu.SwapRequest) bool {
	if b.window == nil {
		return false
	}

	if req.Resized {
		width, height := req.Size()
		logs.Graphics().Debug("framebuffer resized", "width", width, "height", height)
	}

	b.window.SwapBuffers()
	return true
}

// Clean detaches the context. The window itself belongs to the caller.
func (b *Backend) Clean() {
	if b.window == nil {
		return
	}
	glfw.DetachCurrentContext()
	b.window = nil
}
