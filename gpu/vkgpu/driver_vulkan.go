package vkgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// vulkanDriver forwards every Driver call to the Vulkan loader.
type vulkanDriver struct {
	physicalDevice vk.PhysicalDevice
	device         vk.Device
	surface        vk.Surface
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue
	commandPool    vk.CommandPool
}

func (d *vulkanDriver) SurfaceSupport() (SupportDetails, error) {
	return querySurfaceSupport(d.physicalDevice, d.surface)
}

func (d *vulkanDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	var swapchain vk.Swapchain
	if err := check(vk.CreateSwapchain(d.device, info, nil, &swapchain), "vkCreateSwapchainKHR"); err != nil {
		return vk.NullSwapchain, err
	}
	return swapchain, nil
}

func (d *vulkanDriver) DestroySwapchain(swapchain vk.Swapchain) {
	vk.DestroySwapchain(d.device, swapchain, nil)
}

func (d *vulkanDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	var count uint32
	res := vk.GetSwapchainImages(d.device, swapchain, &count, nil)
	if err := check(res, "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}

	images := make([]vk.Image, count)
	res = vk.GetSwapchainImages(d.device, swapchain, &count, images)
	if err := check(res, "vkGetSwapchainImagesKHR"); err != nil {
		return nil, err
	}
	return images[:count], nil
}

func (d *vulkanDriver) CreateImageView(
	image vk.Image,
	format vk.Format,
	aspect vk.ImageAspectFlags,
) (vk.ImageView, error) {
	createInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    image,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		Components: vk.ComponentMapping{
			R: vk.ComponentSwizzleIdentity,
			G: vk.ComponentSwizzleIdentity,
			B: vk.ComponentSwizzleIdentity,
			A: vk.ComponentSwizzleIdentity,
		},
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: aspect,
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var view vk.ImageView
	if err := check(vk.CreateImageView(d.device, &createInfo, nil, &view), "vkCreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return view, nil
}

func (d *vulkanDriver) DestroyImageView(view vk.ImageView) {
	vk.DestroyImageView(d.device, view, nil)
}

func (d *vulkanDriver) CreateImage(
	extent vk.Extent2D,
	format vk.Format,
	usage vk.ImageUsageFlags,
) (vk.Image, vk.DeviceMemory, error) {
	imageInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Extent: vk.Extent3D{
			Width:  extent.Width,
			Height: extent.Height,
			Depth:  1,
		},
		MipLevels:     1,
		ArrayLayers:   1,
		Format:        format,
		Tiling:        vk.ImageTilingOptimal,
		InitialLayout: vk.ImageLayoutUndefined,
		Usage:         usage,
		SharingMode:   vk.SharingModeExclusive,
		Samples:       vk.SampleCount1Bit,
	}

	var image vk.Image
	if err := check(vk.CreateImage(d.device, &imageInfo, nil, &image), "vkCreateImage"); err != nil {
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	var memRequirements vk.MemoryRequirements
	vk.GetImageMemoryRequirements(d.device, image, &memRequirements)
	memRequirements.Deref()

	memTypeIndex, err := d.findMemoryType(
		memRequirements.MemoryTypeBits,
		vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit),
	)
	if err != nil {
		vk.DestroyImage(d.device, image, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  memRequirements.Size,
		MemoryTypeIndex: memTypeIndex,
	}

	var memory vk.DeviceMemory
	if err := check(vk.AllocateMemory(d.device, &allocInfo, nil, &memory), "vkAllocateMemory"); err != nil {
		vk.DestroyImage(d.device, image, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	if err := check(vk.BindImageMemory(d.device, image, memory, 0), "vkBindImageMemory"); err != nil {
		vk.DestroyImage(d.device, image, nil)
		vk.FreeMemory(d.device, memory, nil)
		return vk.NullImage, vk.NullDeviceMemory, err
	}

	return image, memory, nil
}

func (d *vulkanDriver) findMemoryType(
	typeFilter uint32,
	properties vk.MemoryPropertyFlags,
) (uint32, error) {
	var memProperties vk.PhysicalDeviceMemoryProperties
	vk.GetPhysicalDeviceMemoryProperties(d.physicalDevice, &memProperties)
	memProperties.Deref()

	for i := uint32(0); i < memProperties.MemoryTypeCount; i++ {
		memType := memProperties.MemoryTypes[i]
		memType.Deref()

		if typeFilter&(1<<i) == 0 {
			continue
		}
		if memType.PropertyFlags&properties != properties {
			continue
		}
		return i, nil
	}

	return 0, ErrNoMemoryType
}

func (d *vulkanDriver) DestroyImage(image vk.Image) {
	vk.DestroyImage(d.device, image, nil)
}

func (d *vulkanDriver) FreeMemory(memory vk.DeviceMemory) {
	vk.FreeMemory(d.device, memory, nil)
}

// TransitionImageLayout records a pipeline barrier into a one time command
// buffer and waits for the graphics queue to execute it.
func (d *vulkanDriver) TransitionImageLayout(
	image vk.Image,
	format vk.Format,
	from, to vk.ImageLayout,
) error {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               image,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: 1,
			LayerCount: 1,
		},
	}

	var srcStage, dstStage vk.PipelineStageFlags

	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutDepthStencilAttachmentOptimal:
		barrier.SubresourceRange.AspectMask = depthAspect(format)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessDepthStencilAttachmentReadBit |
			vk.AccessDepthStencilAttachmentWriteBit)

		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageEarlyFragmentTestsBit)

	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)

		srcStage = vk.PipelineStageFlags(vk.PipelineStageTopOfPipeBit)
		dstStage = vk.PipelineStageFlags(vk.PipelineStageTransferBit)

	default:
		return fmt.Errorf("%w: %d to %d", ErrUnsupportedLayout, from, to)
	}

	commandBuffer, err := d.beginSingleTimeCommands()
	if err != nil {
		return err
	}

	vk.CmdPipelineBarrier(
		commandBuffer,
		srcStage, dstStage,
		0,
		0, nil,
		0, nil,
		1, []vk.ImageMemoryBarrier{barrier},
	)

	return d.endSingleTimeCommands(commandBuffer)
}

func (d *vulkanDriver) beginSingleTimeCommands() (vk.CommandBuffer, error) {
	commandBuffers, err := d.AllocateCommandBuffers(1)
	if err != nil {
		return nil, err
	}

	flags := vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	if err := d.BeginCommandBuffer(commandBuffers[0], flags); err != nil {
		d.FreeCommandBuffers(commandBuffers)
		return nil, err
	}
	return commandBuffers[0], nil
}

func (d *vulkanDriver) endSingleTimeCommands(commandBuffer vk.CommandBuffer) error {
	commandBuffers := []vk.CommandBuffer{commandBuffer}
	defer d.FreeCommandBuffers(commandBuffers)

	if err := d.EndCommandBuffer(commandBuffer); err != nil {
		return err
	}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    commandBuffers,
	}
	if err := d.QueueSubmit(submitInfo, vk.NullFence); err != nil {
		return err
	}

	return check(vk.QueueWaitIdle(d.graphicsQueue), "vkQueueWaitIdle")
}

// depthCandidates are tried in order by DepthFormat.
var depthCandidates = []vk.Format{
	vk.FormatD32Sfloat,
	vk.FormatD32SfloatS8Uint,
	vk.FormatD24UnormS8Uint,
}

func (d *vulkanDriver) DepthFormat() (vk.Format, error) {
	features := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)

	for _, format := range depthCandidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(d.physicalDevice, format, &props)
		props.Deref()

		if props.OptimalTilingFeatures&features == features {
			return format, nil
		}
	}

	return vk.FormatUndefined, ErrNoDepthFormat
}

func (d *vulkanDriver) CreateRenderPass(info *vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	var renderPass vk.RenderPass
	if err := check(vk.CreateRenderPass(d.device, info, nil, &renderPass), "vkCreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	return renderPass, nil
}

func (d *vulkanDriver) DestroyRenderPass(renderPass vk.RenderPass) {
	vk.DestroyRenderPass(d.device, renderPass, nil)
}

func (d *vulkanDriver) CreateFramebuffer(info *vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	var framebuffer vk.Framebuffer
	if err := check(vk.CreateFramebuffer(d.device, info, nil, &framebuffer), "vkCreateFramebuffer"); err != nil {
		return vk.NullFramebuffer, err
	}
	return framebuffer, nil
}

func (d *vulkanDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	vk.DestroyFramebuffer(d.device, framebuffer, nil)
}

func (d *vulkanDriver) AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        d.commandPool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: count,
	}

	commandBuffers := make([]vk.CommandBuffer, count)
	res := vk.AllocateCommandBuffers(d.device, &allocInfo, commandBuffers)
	if err := check(res, "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return commandBuffers, nil
}

func (d *vulkanDriver) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	if len(buffers) == 0 {
		return
	}
	vk.FreeCommandBuffers(d.device, d.commandPool, uint32(len(buffers)), buffers)
}

func (d *vulkanDriver) BeginCommandBuffer(buffer vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
		Flags: flags,
	}
	return check(vk.BeginCommandBuffer(buffer, &beginInfo), "vkBeginCommandBuffer")
}

func (d *vulkanDriver) EndCommandBuffer(buffer vk.CommandBuffer) error {
	return check(vk.EndCommandBuffer(buffer), "vkEndCommandBuffer")
}

func (d *vulkanDriver) CmdBeginRenderPass(buffer vk.CommandBuffer, info *vk.RenderPassBeginInfo) {
	vk.CmdBeginRenderPass(buffer, info, vk.SubpassContentsInline)
}

func (d *vulkanDriver) CmdEndRenderPass(buffer vk.CommandBuffer) {
	vk.CmdEndRenderPass(buffer)
}

func (d *vulkanDriver) CreateSemaphore() (vk.Semaphore, error) {
	semaphoreInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}

	var semaphore vk.Semaphore
	if err := check(vk.CreateSemaphore(d.device, &semaphoreInfo, nil, &semaphore), "vkCreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return semaphore, nil
}

func (d *vulkanDriver) DestroySemaphore(semaphore vk.Semaphore) {
	vk.DestroySemaphore(d.device, semaphore, nil)
}

func (d *vulkanDriver) CreateFence(signaled bool) (vk.Fence, error) {
	fenceInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		fenceInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}

	var fence vk.Fence
	if err := check(vk.CreateFence(d.device, &fenceInfo, nil, &fence), "vkCreateFence"); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func (d *vulkanDriver) DestroyFence(fence vk.Fence) {
	vk.DestroyFence(d.device, fence, nil)
}

func (d *vulkanDriver) WaitForFence(fence vk.Fence) error {
	res := vk.WaitForFences(d.device, 1, []vk.Fence{fence}, vk.True, vk.MaxUint64)
	return check(res, "vkWaitForFences")
}

func (d *vulkanDriver) ResetFence(fence vk.Fence) error {
	return check(vk.ResetFences(d.device, 1, []vk.Fence{fence}), "vkResetFences")
}

func (d *vulkanDriver) AcquireNextImage(swapchain vk.Swapchain, semaphore vk.Semaphore) (uint32, vk.Result) {
	var imageIndex uint32
	res := vk.AcquireNextImage(
		d.device,
		swapchain,
		vk.MaxUint64,
		semaphore,
		vk.NullFence,
		&imageIndex,
	)
	return imageIndex, res
}

func (d *vulkanDriver) QueueSubmit(info vk.SubmitInfo, fence vk.Fence) error {
	res := vk.QueueSubmit(d.graphicsQueue, 1, []vk.SubmitInfo{info}, fence)
	return check(res, "vkQueueSubmit")
}

func (d *vulkanDriver) QueuePresent(info *vk.PresentInfo) vk.Result {
	return vk.QueuePresent(d.presentQueue, info)
}

func (d *vulkanDriver) DeviceWaitIdle() error {
	return check(vk.DeviceWaitIdle(d.device), "vkDeviceWaitIdle")
}

// depthAspect returns the aspects of a depth format, including stencil when
// the format has it.
func depthAspect(format vk.Format) vk.ImageAspectFlags {
	aspect := vk.ImageAspectFlags(vk.ImageAspectDepthBit)
	if hasStencil(format) {
		aspect |= vk.ImageAspectFlags(vk.ImageAspectStencilBit)
	}
	return aspect
}

func hasStencil(format vk.Format) bool {
	return format == vk.FormatD32SfloatS8Uint || format == vk.FormatD24UnormS8Uint
}
