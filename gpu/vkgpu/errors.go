package vkgpu

import (
	"errors"
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// ErrNoDevice means that no physical device with Vulkan support exists.
var ErrNoDevice = errors.New("vkgpu: no GPU with Vulkan support")

// ErrNoSuitableDevice means that no physical device can render and present
// to the window surface.
var ErrNoSuitableDevice = errors.New("vkgpu: no suitable physical device")

// ErrInvalidExtent means a swapchain was requested with a zero or negative
// dimension.
var ErrInvalidExtent = errors.New("vkgpu: invalid swapchain extent")

// ErrUnsupportedLayout means an image layout transition which the backend
// does not know how to record.
var ErrUnsupportedLayout = errors.New("vkgpu: unsupported layout transition")

// ErrNoMemoryType means the device has no memory type with the required
// properties.
var ErrNoMemoryType = errors.New("vkgpu: no suitable memory type")

// ErrNoDepthFormat means none of the candidate depth formats can be used as
// an optimally tiled depth attachment.
var ErrNoDepthFormat = errors.New("vkgpu: no suitable depth format")

// ErrNoSurfaceFormat means the surface reported no formats or no present
// modes.
var ErrNoSurfaceFormat = errors.New("vkgpu: surface has no formats or present modes")

// usable reports whether an acquired image can be rendered to and presented.
func usable(res vk.Result) bool {
	return res == vk.Success || res == vk.Suboptimal
}

// check turns a failed vk.Result into an error naming the call.
func check(res vk.Result, call string) error {
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("%s: %w", call, err)
	}
	return nil
}
