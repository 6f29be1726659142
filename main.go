package main

import (
	"fmt"
	"os"
	"runtime"

	"github.com/go-gl/glfw/v3.3/glfw"

	"vkframe/config"
	"vkframe/gpu"
	"vkframe/gpu/glgpu"
	"vkframe/gpu/vkgpu"
	"vkframe/input"
	"vkframe/logs"
)

func init() {
	// This is needed to arrange that main() runs on main thread.
	// See documentation for functions that are only allowed to be called
	// from the main thread.
	runtime.LockOSThread()
}

const title = "vkframe"

func main() {
	cfg, err := config.FromArgs(os.Args[0], os.Args[1:])
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(2)
	}

	logFile, err := logs.Open(cfg.LogPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "ERROR: %s\n", err)
		os.Exit(1)
	}
	defer logFile.Close()
	logs.Setup(logFile, cfg.LogVerbose)

	app := &App{cfg: cfg}
	if err := app.Run(); err != nil {
		logs.Graphics().Error("fatal", "err", err)
		logFile.Close()
		os.Exit(1)
	}
}

// App opens the window, runs the frame loop until the window is closed and
// tears everything down.
type App struct {
	cfg    config.Config
	resize *input.ResizeTracker
	device *gpu.Device
	window *glfw.Window
}

// Run runs the program.
func (a *App) Run() error {
	if err := a.initDevice(); err != nil {
		return fmt.Errorf("initDevice: %w", err)
	}
	defer a.cleanup()

	a.mainLoop()
	return nil
}

func (a *App) initDevice() error {
	a.resize = input.NewResizeTracker(a.cfg.InitialWidth, a.cfg.InitialHeight)

	var backend gpu.Backend
	switch a.cfg.Backend {
	case config.BackendOpenGL:
		backend = glgpu.New(a.resize)
	default:
		backend = vkgpu.New()
	}
	logs.Utilities().Info("configuration loaded",
		"backend", a.cfg.Backend,
		"fullscreen", a.cfg.Fullscreen,
		"width", a.cfg.InitialWidth,
		"height", a.cfg.InitialHeight,
	)

	a.device = gpu.NewDevice(backend, a.resize)

	window, err := a.device.CreateWindow(title, a.cfg)
	if err != nil {
		return err
	}
	a.window = window
	a.resize.Attach(window)

	return nil
}

func (a *App) mainLoop() {
	logs.Utilities().Debug("main loop")

	for !a.window.ShouldClose() {
		glfw.PollEvents()

		// Recording of scene commands goes between NextFrame and Swap.
		a.device.NextFrame()

		if !a.device.Swap(a.window) {
			logs.Graphics().Error("cannot present frames anymore, closing window")
			a.window.SetShouldClose(true)
		}
	}
}

func (a *App) cleanup() {
	a.device.Clean()
	gpu.CloseWindow(a.window)
}
