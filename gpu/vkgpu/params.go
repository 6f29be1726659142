package vkgpu

import (
	"cmp"
	"fmt"
	"math"

	vk "github.com/vulkan-go/vulkan"
)

// Parameters are the negotiated properties of a swapchain.
type Parameters struct {
	Support SupportDetails
	Extent  vk.Extent2D
	Surface vk.SurfaceFormat
	Mode    vk.PresentMode

	// Count is the number of images asked for. The presentation engine may
	// create more.
	Count uint32
}

// preferredFormat is used whenever the surface allows it.
var preferredFormat = vk.SurfaceFormat{
	Format:     vk.FormatB8g8r8a8Unorm,
	ColorSpace: vk.ColorSpaceSrgbNonlinear,
}

func newParameters(support SupportDetails, width, height int) (Parameters, error) {
	if width <= 0 || height <= 0 {
		return Parameters{}, fmt.Errorf("%w: %dx%d", ErrInvalidExtent, width, height)
	}
	if len(support.Formats) == 0 || len(support.PresentModes) == 0 {
		return Parameters{}, ErrNoSurfaceFormat
	}

	return Parameters{
		Support: support,
		Extent:  chooseExtent(support.Capabilities, uint32(width), uint32(height)),
		Surface: chooseSurfaceFormat(support.Formats),
		Mode:    choosePresentMode(support.PresentModes),
		Count:   chooseImageCount(support.Capabilities),
	}, nil
}

// chooseExtent returns the surface's current extent when it has one.
// Otherwise the requested size is clamped into the supported range.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}

	return vk.Extent2D{
		Width:  clamp(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clamp(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

// chooseSurfaceFormat picks BGRA8 UNORM with sRGB non linear color space when
// offered, or when the surface has no preference at all.
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return preferredFormat
	}

	for _, format := range formats {
		if format.Format == preferredFormat.Format &&
			format.ColorSpace == preferredFormat.ColorSpace {
			return format
		}
	}

	return formats[0]
}

// choosePresentMode prefers mailbox. FIFO is always available.
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, mode := range modes {
		if mode == vk.PresentModeMailbox {
			return mode
		}
	}

	return vk.PresentModeFifo
}

// chooseImageCount asks for one image more than the minimum. A maximum of
// zero means there is no limit.
func chooseImageCount(caps vk.SurfaceCapabilities) uint32 {
	count := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && count > caps.MaxImageCount {
		count = caps.MaxImageCount
	}
	return count
}

func clamp[T cmp.Ordered](val, min, max T) T {
	if val < min {
		val = min
	}
	if val > max {
		val = max
	}
	return val
}
