// Package input tracks window events the renderer has to react to.
package input

import (
	"github.com/go-gl/glfw/v3.3/glfw"
)

// ResizeTracker remembers whether the framebuffer changed size since the last
// time anybody asked, and what its latest size is.
type ResizeTracker struct {
	resized bool
	width   int
	height  int
}

// NewResizeTracker returns a tracker which starts at the given size with no
// pending resize.
func NewResizeTracker(width, height int) *ResizeTracker {
	return &ResizeTracker{width: width, height: height}
}

// Attach installs the framebuffer size callback of window so that the tracker
// sees every resize. It replaces any previously installed callback.
func (t *ResizeTracker) Attach(window *glfw.Window) {
	width, height := window.GetFramebufferSize()
	t.SetSize(width, height)

	window.SetFramebufferSizeCallback(func(_ *glfw.Window, width, height int) {
		t.ResizeEvent(width, height)
	})
}

// ResizeEvent records a new framebuffer size and flags it as pending.
func (t *ResizeTracker) ResizeEvent(width, height int) {
	t.resized = true
	t.width = width
	t.height = height
}

// Resized reports whether a resize happened since the previous call. The
// pending flag is cleared.
func (t *ResizeTracker) Resized() bool {
	resized := t.resized
	t.resized = false
	return resized
}

// SetSize records the size without flagging a resize.
func (t *ResizeTracker) SetSize(width, height int) {
	t.width = width
	t.height = height
}

// Size returns the latest known framebuffer size.
func (t *ResizeTracker) Size() (int, int) {
	return t.width, t.height
}
