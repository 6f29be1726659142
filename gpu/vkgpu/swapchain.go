package vkgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"vkframe/logs"
	"vkframe/queues"
)

// Swapchain owns the presentable images of a surface together with
// everything sized after them: image views, a depth buffer, a render pass,
// framebuffers and one command buffer per image. It also owns the semaphores
// which order acquire, rendering and presentation of each frame slot.
//
// Frame slots are used round robin. CurrentFrame is the slot in use and
// Step moves to the next one.
type Swapchain struct {
	api      Driver
	surface  vk.Surface
	families queues.FamilyIndices

	params     Parameters
	swapchain  vk.Swapchain
	renderPass vk.RenderPass

	depthFormat vk.Format
	depthImage  vk.Image
	depthMemory vk.DeviceMemory
	depthView   vk.ImageView

	// images belong to the presentation engine and are never destroyed
	// here.
	images         []vk.Image
	views          []vk.ImageView
	framebuffers   []vk.Framebuffer
	commandBuffers []vk.CommandBuffer

	maxInFlight  uint32
	currentFrame uint32
	imageIndex   uint32

	imageAvailable []vk.Semaphore
	renderFinished []vk.Semaphore

	// owned holds the destroy calls of everything created by setup.
	owned releaser
}

// NewSwapchain creates a swapchain for the context's surface, sized as close
// to width x height as the surface allows.
func NewSwapchain(ctx *Context, width, height int) (*Swapchain, error) {
	return newSwapchain(ctx.api, ctx.Surface, ctx.Queues, width, height)
}

func newSwapchain(
	api Driver,
	surface vk.Surface,
	families queues.FamilyIndices,
	width, height int,
) (*Swapchain, error) {
	s := &Swapchain{
		api:      api,
		surface:  surface,
		families: families,
	}

	if err := s.setup(width, height); err != nil {
		return nil, err
	}

	if err := s.createSemaphores(); err != nil {
		s.Clean()
		return nil, fmt.Errorf("createSemaphores: %w", err)
	}

	return s, nil
}

// setup creates every size dependent object. When any step fails the objects
// created so far are destroyed again.
func (s *Swapchain) setup(width, height int) (err error) {
	defer func() {
		if err != nil {
			s.unsetup()
		}
	}()

	support, err := s.api.SurfaceSupport()
	if err != nil {
		return fmt.Errorf("querying surface support: %w", err)
	}

	params, err := newParameters(support, width, height)
	if err != nil {
		return err
	}
	s.params = params

	if err := s.createSwapchain(); err != nil {
		return fmt.Errorf("createSwapchain: %w", err)
	}
	if err := s.createRenderPass(); err != nil {
		return fmt.Errorf("createRenderPass: %w", err)
	}
	if err := s.createDepthResources(); err != nil {
		return fmt.Errorf("createDepthResources: %w", err)
	}
	if err := s.createImageViews(); err != nil {
		return fmt.Errorf("createImageViews: %w", err)
	}
	if err := s.createFramebuffers(); err != nil {
		return fmt.Errorf("createFramebuffers: %w", err)
	}
	if err := s.createCommandBuffers(); err != nil {
		return fmt.Errorf("createCommandBuffers: %w", err)
	}

	s.maxInFlight = uint32(len(s.images))

	logs.Resources().Info("swapchain ready",
		"width", s.params.Extent.Width,
		"height", s.params.Extent.Height,
		"images", s.maxInFlight,
		"minImages", s.params.Support.Capabilities.MinImageCount,
		"maxImages", s.params.Support.Capabilities.MaxImageCount,
		"presentMode", s.params.Mode,
	)
	return nil
}

// unsetup destroys everything setup created. Semaphores are kept.
func (s *Swapchain) unsetup() {
	s.owned.release()

	s.swapchain = vk.NullSwapchain
	s.renderPass = vk.NullRenderPass
	s.depthImage = vk.NullImage
	s.depthMemory = vk.NullDeviceMemory
	s.depthView = vk.NullImageView
	s.images = nil
	s.views = nil
	s.framebuffers = nil
	s.commandBuffers = nil
}

func (s *Swapchain) createSwapchain() error {
	caps := s.params.Support.Capabilities

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          s.surface,
		MinImageCount:    s.params.Count,
		ImageFormat:      s.params.Surface.Format,
		ImageColorSpace:  s.params.Surface.ColorSpace,
		ImageExtent:      s.params.Extent,
		ImageArrayLayers: 1,
		ImageUsage:       vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit),
		PreTransform:     caps.CurrentTransform,
		CompositeAlpha:   vk.CompositeAlphaOpaqueBit,
		PresentMode:      s.params.Mode,
		Clipped:          vk.True,
		OldSwapchain:     vk.NullSwapchain,
	}

	if s.families.Shared() {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	} else {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{
			s.families.Graphics.Get(),
			s.families.Present.Get(),
		}
	}

	swapchain, err := s.api.CreateSwapchain(&createInfo)
	if err != nil {
		return err
	}
	s.swapchain = swapchain
	s.owned.add(func() { s.api.DestroySwapchain(swapchain) })

	return nil
}

func (s *Swapchain) createRenderPass() error {
	depthFormat, err := s.api.DepthFormat()
	if err != nil {
		return err
	}
	s.depthFormat = depthFormat

	colorAttachment := vk.AttachmentDescription{
		Format:         s.params.Surface.Format,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpStore,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutPresentSrc,
	}

	depthAttachment := vk.AttachmentDescription{
		Format:         depthFormat,
		Samples:        vk.SampleCount1Bit,
		LoadOp:         vk.AttachmentLoadOpClear,
		StoreOp:        vk.AttachmentStoreOpDontCare,
		StencilLoadOp:  vk.AttachmentLoadOpDontCare,
		StencilStoreOp: vk.AttachmentStoreOpDontCare,
		InitialLayout:  vk.ImageLayoutUndefined,
		FinalLayout:    vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	colorAttachmentRef := vk.AttachmentReference{
		Attachment: 0,
		Layout:     vk.ImageLayoutColorAttachmentOptimal,
	}

	depthAttachmentRef := vk.AttachmentReference{
		Attachment: 1,
		Layout:     vk.ImageLayoutDepthStencilAttachmentOptimal,
	}

	subpass := vk.SubpassDescription{
		PipelineBindPoint:       vk.PipelineBindPointGraphics,
		ColorAttachmentCount:    1,
		PColorAttachments:       []vk.AttachmentReference{colorAttachmentRef},
		PDepthStencilAttachment: &depthAttachmentRef,
	}

	dependency := vk.SubpassDependency{
		SrcSubpass:    vk.SubpassExternal,
		DstSubpass:    0,
		SrcStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		SrcAccessMask: 0,
		DstStageMask:  vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		DstAccessMask: vk.AccessFlags(vk.AccessColorAttachmentReadBit) |
			vk.AccessFlags(vk.AccessColorAttachmentWriteBit),
	}

	attachments := []vk.AttachmentDescription{
		colorAttachment,
		depthAttachment,
	}

	renderPassInfo := vk.RenderPassCreateInfo{
		SType:           vk.StructureTypeRenderPassCreateInfo,
		AttachmentCount: uint32(len(attachments)),
		PAttachments:    attachments,
		SubpassCount:    1,
		PSubpasses:      []vk.SubpassDescription{subpass},
		DependencyCount: 1,
		PDependencies:   []vk.SubpassDependency{dependency},
	}

	renderPass, err := s.api.CreateRenderPass(&renderPassInfo)
	if err != nil {
		return err
	}
	s.renderPass = renderPass
	s.owned.add(func() { s.api.DestroyRenderPass(renderPass) })

	return nil
}

func (s *Swapchain) createDepthResources() error {
	image, memory, err := s.api.CreateImage(
		s.params.Extent,
		s.depthFormat,
		vk.ImageUsageFlags(vk.ImageUsageDepthStencilAttachmentBit),
	)
	if err != nil {
		return fmt.Errorf("could not create depth image: %w", err)
	}
	s.depthImage = image
	s.depthMemory = memory
	s.owned.add(func() { s.api.FreeMemory(memory) })
	s.owned.add(func() { s.api.DestroyImage(image) })

	view, err := s.api.CreateImageView(
		image,
		s.depthFormat,
		vk.ImageAspectFlags(vk.ImageAspectDepthBit),
	)
	if err != nil {
		return fmt.Errorf("failed to create depth image view: %w", err)
	}
	s.depthView = view
	s.owned.add(func() { s.api.DestroyImageView(view) })

	return s.api.TransitionImageLayout(
		image,
		s.depthFormat,
		vk.ImageLayoutUndefined,
		vk.ImageLayoutDepthStencilAttachmentOptimal,
	)
}

// createImageViews asks the presentation engine for the images it actually
// created. Their number is authoritative for every per image array.
func (s *Swapchain) createImageViews() error {
	images, err := s.api.SwapchainImages(s.swapchain)
	if err != nil {
		return err
	}
	if len(images) == 0 {
		return fmt.Errorf("presentation engine returned no images")
	}
	s.images = images

	for i, image := range s.images {
		view, err := s.api.CreateImageView(
			image,
			s.params.Surface.Format,
			vk.ImageAspectFlags(vk.ImageAspectColorBit),
		)
		if err != nil {
			return fmt.Errorf("failed to create image view %d: %w", i, err)
		}

		s.views = append(s.views, view)
		s.owned.add(func() { s.api.DestroyImageView(view) })
	}

	return nil
}

func (s *Swapchain) createFramebuffers() error {
	for i, view := range s.views {
		attachments := []vk.ImageView{
			view,
			s.depthView,
		}

		framebufferInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      s.renderPass,
			AttachmentCount: uint32(len(attachments)),
			PAttachments:    attachments,
			Width:           s.params.Extent.Width,
			Height:          s.params.Extent.Height,
			Layers:          1,
		}

		framebuffer, err := s.api.CreateFramebuffer(&framebufferInfo)
		if err != nil {
			return fmt.Errorf("failed to create framebuffer %d: %w", i, err)
		}

		s.framebuffers = append(s.framebuffers, framebuffer)
		s.owned.add(func() { s.api.DestroyFramebuffer(framebuffer) })
	}

	return nil
}

func (s *Swapchain) createCommandBuffers() error {
	commandBuffers, err := s.api.AllocateCommandBuffers(uint32(len(s.images)))
	if err != nil {
		return err
	}
	s.commandBuffers = commandBuffers
	s.owned.add(func() { s.api.FreeCommandBuffers(commandBuffers) })

	return nil
}

func (s *Swapchain) createSemaphores() error {
	for i := uint32(0); i < s.maxInFlight; i++ {
		imageAvailable, err := s.api.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create image available semaphore: %w", err)
		}
		s.imageAvailable = append(s.imageAvailable, imageAvailable)

		renderFinished, err := s.api.CreateSemaphore()
		if err != nil {
			return fmt.Errorf("failed to create render finished semaphore: %w", err)
		}
		s.renderFinished = append(s.renderFinished, renderFinished)
	}

	return nil
}

func (s *Swapchain) destroySemaphores() {
	for _, semaphore := range s.imageAvailable {
		s.api.DestroySemaphore(semaphore)
	}
	for _, semaphore := range s.renderFinished {
		s.api.DestroySemaphore(semaphore)
	}
	s.imageAvailable = nil
	s.renderFinished = nil
}

// AcquireNextFrame asks for the next presentable image using the current
// slot's image available semaphore. When the image can be used the returned
// begin info targets its framebuffer over the whole extent; otherwise it is
// nil and the result tells why.
func (s *Swapchain) AcquireNextFrame() (vk.Result, *vk.RenderPassBeginInfo) {
	imageIndex, res := s.api.AcquireNextImage(s.swapchain, s.StartSemaphore())
	if !usable(res) {
		return res, nil
	}
	s.imageIndex = imageIndex

	return res, &vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  s.renderPass,
		Framebuffer: s.framebuffers[imageIndex],
		RenderArea: vk.Rect2D{
			Offset: vk.Offset2D{X: 0, Y: 0},
			Extent: s.params.Extent,
		},
	}
}

// Resize rebuilds the swapchain for a new window size. It does nothing when
// the size equals the current extent.
func (s *Swapchain) Resize(width, height int) error {
	if s.params.Extent.Width == uint32(width) && s.params.Extent.Height == uint32(height) {
		return nil
	}
	return s.Rebuild(width, height)
}

// Rebuild waits for the device to go idle and recreates every size dependent
// object, even if the size did not change. If the presentation engine now
// hands out a different number of images the semaphores follow.
func (s *Swapchain) Rebuild(width, height int) error {
	if err := s.api.DeviceWaitIdle(); err != nil {
		return fmt.Errorf("waiting for device idle: %w", err)
	}

	s.unsetup()
	if err := s.setup(width, height); err != nil {
		return err
	}

	if int(s.maxInFlight) != len(s.imageAvailable) {
		logs.Resources().Info("swapchain image count changed",
			"from", len(s.imageAvailable),
			"to", s.maxInFlight,
		)
		s.destroySemaphores()
		if err := s.createSemaphores(); err != nil {
			return fmt.Errorf("createSemaphores: %w", err)
		}
		s.currentFrame %= s.maxInFlight
	}

	return nil
}

// Step moves to the next frame slot.
func (s *Swapchain) Step() {
	if s.maxInFlight == 0 {
		return
	}
	s.currentFrame = (s.currentFrame + 1) % s.maxInFlight
}

// Clean destroys everything the swapchain owns. The command pool, the device
// and the instance are left alone.
func (s *Swapchain) Clean() {
	s.unsetup()
	s.destroySemaphores()
	s.maxInFlight = 0
	s.currentFrame = 0
}

// CommandBuffer returns the command buffer of the current frame slot.
func (s *Swapchain) CommandBuffer() vk.CommandBuffer {
	return s.commandBuffers[s.currentFrame]
}

// StartSemaphore is signaled when the current slot's image is acquired.
func (s *Swapchain) StartSemaphore() vk.Semaphore {
	return s.imageAvailable[s.currentFrame]
}

// EndSemaphore is signaled when rendering of the current slot finishes.
func (s *Swapchain) EndSemaphore() vk.Semaphore {
	return s.renderFinished[s.currentFrame]
}

// PresentInfo describes presenting the last acquired image once the current
// slot finished rendering.
func (s *Swapchain) PresentInfo() *vk.PresentInfo {
	waitSemaphores := []vk.Semaphore{s.EndSemaphore()}
	swapchains := []vk.Swapchain{s.swapchain}

	return &vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: uint32(len(waitSemaphores)),
		PWaitSemaphores:    waitSemaphores,
		SwapchainCount:     uint32(len(swapchains)),
		PSwapchains:        swapchains,
		PImageIndices:      []uint32{s.imageIndex},
	}
}

// CurrentFrame returns the index of the frame slot in use.
func (s *Swapchain) CurrentFrame() uint32 { return s.currentFrame }

// ImageIndex returns the index of the last acquired image.
func (s *Swapchain) ImageIndex() uint32 { return s.imageIndex }

// MaxInFlight returns the number of frame slots, which equals the number of
// swapchain images.
func (s *Swapchain) MaxInFlight() uint32 { return s.maxInFlight }

// Extent returns the size of the swapchain images.
func (s *Swapchain) Extent() vk.Extent2D { return s.params.Extent }

// Parameters returns the negotiated swapchain parameters.
func (s *Swapchain) Parameters() Parameters { return s.params }

// RenderPass returns the render pass compatible with the framebuffers.
func (s *Swapchain) RenderPass() vk.RenderPass { return s.renderPass }

// Images returns the presentation engine's images.
func (s *Swapchain) Images() []vk.Image { return s.images }

// Views returns one color view per image.
func (s *Swapchain) Views() []vk.ImageView { return s.views }

// Framebuffers returns one framebuffer per image.
func (s *Swapchain) Framebuffers() []vk.Framebuffer { return s.framebuffers }
