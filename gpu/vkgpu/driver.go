package vkgpu

import (
	vk "github.com/vulkan-go/vulkan"
)

// SupportDetails describes what a surface supports on a physical device.
type SupportDetails struct {
	Capabilities vk.SurfaceCapabilities
	Formats      []vk.SurfaceFormat
	PresentModes []vk.PresentMode
}

// Driver is the set of device level Vulkan calls the swapchain and the frame
// synchronizer make. Every method works on the logical device, queues and
// command pool the Driver was created for.
type Driver interface {
	SurfaceSupport() (SupportDetails, error)

	CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error)
	DestroySwapchain(swapchain vk.Swapchain)
	SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error)

	CreateImageView(image vk.Image, format vk.Format, aspect vk.ImageAspectFlags) (vk.ImageView, error)
	DestroyImageView(view vk.ImageView)

	// CreateImage creates an optimally tiled 2D image backed by its own
	// device local memory allocation.
	CreateImage(extent vk.Extent2D, format vk.Format, usage vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error)
	DestroyImage(image vk.Image)
	FreeMemory(memory vk.DeviceMemory)
	TransitionImageLayout(image vk.Image, format vk.Format, from, to vk.ImageLayout) error
	DepthFormat() (vk.Format, error)

	CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error)
	DestroyRenderPass(renderPass vk.RenderPass)
	CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error)
	DestroyFramebuffer(framebuffer vk.Framebuffer)

	AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error)
	FreeCommandBuffers(buffers []vk.CommandBuffer)
	BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error
	EndCommandBuffer(buffer vk.CommandBuffer) error
	CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo)
	CmdEndRenderPass(buffer vk.CommandBuffer)

	CreateSemaphore() (vk.Semaphore, error)
	DestroySemaphore(semaphore vk.Semaphore)
	CreateFence(signaled bool) (vk.Fence, error)
	DestroyFence(fence vk.Fence)
	WaitForFence(fence vk.Fence) error
	ResetFence(fence vk.Fence) error

	// AcquireNextImage waits without timeout for a presentable image and
	// signals semaphore once it can be written to.
	AcquireNextImage(swapchain vk.Swapchain, semaphore vk.Semaphore) (uint32, vk.Result)
	QueueSubmit(info vk.SubmitInfo, fence vk.Fence) error
	QueuePresent(info *vk.PresentInfo) vk.Result
	DeviceWaitIdle() error
}
