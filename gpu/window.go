package gpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"

	"vkframe/config"
	"vkframe/logs"
)

// Hint is a GLFW window hint applied before the window is created.
type Hint struct {
	Target glfw.Hint
	Value  int
}

// OpenWindow initializes GLFW and creates a resizable window. Backends pass
// their API specific hints. In fullscreen mode the window takes the size,
// color depth and refresh rate of the primary monitor's current video mode.
func OpenWindow(name string, cfg config.Config, hints ...Hint) (*glfw.Window, error) {
	if err := glfw.Init(); err != nil {
		return nil, fmt.Errorf("glfw.Init: %w", err)
	}

	glfw.DefaultWindowHints()
	for _, hint := range hints {
		glfw.WindowHint(hint.Target, hint.Value)
	}
	glfw.WindowHint(glfw.Resizable, glfw.True)

	var (
		monitor *glfw.Monitor
		width   = cfg.InitialWidth
		height  = cfg.InitialHeight
	)

	if cfg.Fullscreen {
		monitor = glfw.GetPrimaryMonitor()
		mode := monitor.GetVideoMode()

		glfw.WindowHint(glfw.RedBits, mode.RedBits)
		glfw.WindowHint(glfw.GreenBits, mode.GreenBits)
		glfw.WindowHint(glfw.BlueBits, mode.BlueBits)
		glfw.WindowHint(glfw.RefreshRate, mode.RefreshRate)

		width, height = mode.Width, mode.Height
	}

	window, err := glfw.CreateWindow(width, height, name, monitor, nil)
	if err != nil {
		glfw.Terminate()
		return nil, fmt.Errorf("creating window: %w", err)
	}

	logs.Graphics().Info("window created",
		"name", name,
		"width", width,
		"height", height,
		"fullscreen", cfg.Fullscreen,
	)

	return window, nil
}

// CloseWindow destroys window and terminates GLFW.
func CloseWindow(window *glfw.Window) {
	if window != nil {
		window.Destroy()
	}
	glfw.Terminate()
}
