// Package gpu is the rendering device facade. A Device forwards frame
// lifecycle calls to whichever Backend it was built with and takes care of
// window resizes, including waiting out a minimized window.
package gpu

import (
	"time"

	"github.com/go-gl/glfw/v3.3/glfw"

	"vkframe/config"
	"vkframe/logs"
)

// Backend is a rendering API able to open a window and put frames on it.
type Backend interface {
	// CreateWindow opens the window and initializes everything needed to
	// draw into it.
	CreateWindow(name string, cfg config.Config) (*glfw.Window, error)

	// NextFrame prepares the next frame for recording. It returns false when
	// no frame could be prepared; the caller should skip recording but still
	// call Swap.
	NextFrame() bool

	// Swap finishes the frame prepared by NextFrame and presents it. It
	// returns false on an unrecoverable error.
	Swap(req SwapRequest) bool

	// Clean releases everything created by CreateWindow.
	Clean()
}

// SwapRequest carries what a Backend needs to know about the window when it
// swaps.
type SwapRequest struct {
	// Resized is true when the window changed size since the previous swap.
	Resized bool

	// Size returns the current framebuffer size. It blocks while the window
	// is minimized and never returns a zero dimension.
	Size func() (width, height int)
}

// ResizeSource tells the device about window resizes.
type ResizeSource interface {
	// Resized reports whether a resize happened since the previous call and
	// clears the flag.
	Resized() bool

	// Size returns the latest known framebuffer size.
	Size() (width, height int)

	// SetSize records a size without flagging a resize.
	SetSize(width, height int)
}

// Window is the part of a window the device polls for its size.
type Window interface {
	GetFramebufferSize() (width, height int)
}

// Default bounds of the wait between two framebuffer size polls while the
// window is minimized.
const (
	DefaultMinBackoff = 10 * time.Millisecond
	DefaultMaxBackoff = 250 * time.Millisecond
)

// Device is the single entry point the application uses to render.
type Device struct {
	backend Backend
	resize  ResizeSource

	waitEvents func(timeout time.Duration)
	minBackoff time.Duration
	maxBackoff time.Duration

	created bool
	cleaned bool
}

// Option customizes a Device.
type Option func(*Device)

// WithEventWait replaces the function used to wait for window events while
// the window is minimized.
func WithEventWait(wait func(timeout time.Duration)) Option {
	return func(d *Device) {
		d.waitEvents = wait
	}
}

// WithBackoff sets the first and the largest wait between two size polls.
func WithBackoff(min, max time.Duration) Option {
	return func(d *Device) {
		d.minBackoff = min
		d.maxBackoff = max
	}
}

// NewDevice returns a Device which renders with backend and learns about
// resizes from resize.
func NewDevice(backend Backend, resize ResizeSource, opts ...Option) *Device {
	d := &Device{
		backend:    backend,
		resize:     resize,
		waitEvents: waitEventsTimeout,
		minBackoff: DefaultMinBackoff,
		maxBackoff: DefaultMaxBackoff,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.maxBackoff < d.minBackoff {
		d.maxBackoff = d.minBackoff
	}
	return d
}

// CreateWindow opens the window through the backend.
func (d *Device) CreateWindow(name string, cfg config.Config) (*glfw.Window, error) {
	window, err := d.backend.CreateWindow(name, cfg)
	if err != nil {
		return nil, err
	}
	d.created = true
	d.cleaned = false
	return window, nil
}

// NextFrame prepares the next frame. See Backend.NextFrame.
func (d *Device) NextFrame() bool {
	return d.backend.NextFrame()
}

// Swap presents the current frame. A pending resize is consumed and passed to
// the backend together with a way to get the framebuffer size of window.
func (d *Device) Swap(window Window) bool {
	req := SwapRequest{
		Resized: d.resize.Resized(),
		Size: func() (int, int) {
			return d.framebufferSize(window)
		},
	}
	return d.backend.Swap(req)
}

// Clean releases the backend. Calling it more than once is harmless.
func (d *Device) Clean() {
	if d.cleaned || !d.created {
		logs.Graphics().Debug("device clean skipped", "created", d.created, "cleaned", d.cleaned)
		return
	}
	d.backend.Clean()
	d.cleaned = true
}

// framebufferSize polls the framebuffer size until both dimensions are
// non-zero. Between polls it waits for window events, doubling the wait each
// time up to maxBackoff.
func (d *Device) framebufferSize(window Window) (int, int) {
	width, height := window.GetFramebufferSize()
	backoff := d.minBackoff

	for width == 0 || height == 0 {
		logs.Graphics().Debug("window minimized, waiting", "backoff", backoff)
		d.waitEvents(backoff)

		backoff *= 2
		if backoff > d.maxBackoff {
			backoff = d.maxBackoff
		}
		width, height = window.GetFramebufferSize()
	}

	d.resize.SetSize(width, height)
	return width, height
}

func waitEventsTimeout(timeout time.Duration) {
	glfw.WaitEventsTimeout(timeout.Seconds())
}
