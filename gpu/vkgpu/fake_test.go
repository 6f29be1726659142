package vkgpu

import (
	"errors"
	"fmt"
	"math"
	"unsafe"

	vk "github.com/vulkan-go/vulkan"

	"vkframe/queues"
)

var errInjected = errors.New("injected failure")

// fakeDriver hands out unique handles and keeps track of which ones are
// alive. It never talks to a GPU.
type fakeDriver struct {
	support SupportDetails

	// extraImages is added to the requested image count when the
	// presentation engine creates images.
	extraImages int

	// failAt makes the n-th call (1 based) of a method fail.
	failAt map[string]int
	calls  map[string]int

	// next is the address of the next handle. Handles never point into
	// the Go heap, the same as the ones the loader returns.
	next     uintptr
	live     map[unsafe.Pointer]string
	problems []string

	engineImages map[vk.Swapchain][]vk.Image
	lastCreate   vk.SwapchainCreateInfo

	acquireResults []vk.Result
	presentResults []vk.Result
	nextImage      uint32

	signaled   map[vk.Fence]bool
	submits    []vk.SubmitInfo
	submitted  []vk.Fence
	presents   []vk.PresentInfo
	beginFlags []vk.CommandBufferUsageFlags
	recorded   []string
	idleWaits  int
	fenceWaits []vk.Fence
}

func newFakeDriver(caps vk.SurfaceCapabilities) *fakeDriver {
	return &fakeDriver{
		support: SupportDetails{
			Capabilities: caps,
			Formats: []vk.SurfaceFormat{
				{Format: vk.FormatB8g8r8a8Srgb, ColorSpace: vk.ColorSpaceSrgbNonlinear},
				{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear},
			},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo},
		},
		failAt:       map[string]int{},
		calls:        map[string]int{},
		next:         0x10000,
		live:         map[unsafe.Pointer]string{},
		engineImages: map[vk.Swapchain][]vk.Image{},
		signaled:     map[vk.Fence]bool{},
	}
}

// windowCaps describes a surface which follows the window size.
func windowCaps(minCount, maxCount uint32) vk.SurfaceCapabilities {
	return vk.SurfaceCapabilities{
		MinImageCount:  minCount,
		MaxImageCount:  maxCount,
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 1, Height: 1},
		MaxImageExtent: vk.Extent2D{Width: 4096, Height: 4096},
	}
}

func testFamilies(graphics, present uint32) queues.FamilyIndices {
	var f queues.FamilyIndices
	f.Graphics.Set(graphics)
	f.Present.Set(present)
	return f
}

func (d *fakeDriver) call(name string) error {
	d.calls[name]++
	if n, ok := d.failAt[name]; ok && d.calls[name] == n {
		return fmt.Errorf("%s: %w", name, errInjected)
	}
	return nil
}

func (d *fakeDriver) alloc(kind string) unsafe.Pointer {
	p := unsafe.Pointer(d.next)
	d.next += 0x10
	d.live[p] = kind
	return p
}

func (d *fakeDriver) free(p unsafe.Pointer, kind string) {
	got, ok := d.live[p]
	switch {
	case !ok:
		d.problems = append(d.problems, fmt.Sprintf("destroying unknown or dead %s", kind))
	case got != kind:
		d.problems = append(d.problems, fmt.Sprintf("destroying %s as %s", got, kind))
	default:
		delete(d.live, p)
	}
}

// alive counts live objects of kind. An empty kind counts everything.
func (d *fakeDriver) alive(kind string) int {
	n := 0
	for _, k := range d.live {
		if kind == "" || k == kind {
			n++
		}
	}
	return n
}

func (d *fakeDriver) SurfaceSupport() (SupportDetails, error) {
	if err := d.call("SurfaceSupport"); err != nil {
		return SupportDetails{}, err
	}
	return d.support, nil
}

func (d *fakeDriver) CreateSwapchain(info *vk.SwapchainCreateInfo) (vk.Swapchain, error) {
	if err := d.call("CreateSwapchain"); err != nil {
		return vk.NullSwapchain, err
	}
	d.lastCreate = *info

	swapchain := vk.Swapchain(d.alloc("swapchain"))
	count := int(info.MinImageCount) + d.extraImages
	images := make([]vk.Image, count)
	for i := range images {
		images[i] = vk.Image(d.alloc("engine image"))
	}
	d.engineImages[swapchain] = images
	return swapchain, nil
}

func (d *fakeDriver) DestroySwapchain(swapchain vk.Swapchain) {
	for _, image := range d.engineImages[swapchain] {
		d.free(unsafe.Pointer(image), "engine image")
	}
	delete(d.engineImages, swapchain)
	d.free(unsafe.Pointer(swapchain), "swapchain")
}

func (d *fakeDriver) SwapchainImages(swapchain vk.Swapchain) ([]vk.Image, error) {
	if err := d.call("SwapchainImages"); err != nil {
		return nil, err
	}
	images := d.engineImages[swapchain]
	return append([]vk.Image(nil), images...), nil
}

func (d *fakeDriver) CreateImageView(vk.Image, vk.Format, vk.ImageAspectFlags) (vk.ImageView, error) {
	if err := d.call("CreateImageView"); err != nil {
		return vk.NullImageView, err
	}
	return vk.ImageView(d.alloc("image view")), nil
}

func (d *fakeDriver) DestroyImageView(view vk.ImageView) {
	d.free(unsafe.Pointer(view), "image view")
}

func (d *fakeDriver) CreateImage(vk.Extent2D, vk.Format, vk.ImageUsageFlags) (vk.Image, vk.DeviceMemory, error) {
	if err := d.call("CreateImage"); err != nil {
		return vk.NullImage, vk.NullDeviceMemory, err
	}
	return vk.Image(d.alloc("image")), vk.DeviceMemory(d.alloc("memory")), nil
}

func (d *fakeDriver) DestroyImage(image vk.Image) {
	d.free(unsafe.Pointer(image), "image")
}

func (d *fakeDriver) FreeMemory(memory vk.DeviceMemory) {
	d.free(unsafe.Pointer(memory), "memory")
}

func (d *fakeDriver) TransitionImageLayout(vk.Image, vk.Format, vk.ImageLayout, vk.ImageLayout) error {
	return d.call("TransitionImageLayout")
}

func (d *fakeDriver) DepthFormat() (vk.Format, error) {
	if err := d.call("DepthFormat"); err != nil {
		return vk.FormatUndefined, err
	}
	return vk.FormatD32Sfloat, nil
}

func (d *fakeDriver) CreateRenderPass(*vk.RenderPassCreateInfo) (vk.RenderPass, error) {
	if err := d.call("CreateRenderPass"); err != nil {
		return vk.NullRenderPass, err
	}
	return vk.RenderPass(d.alloc("render pass")), nil
}

func (d *fakeDriver) DestroyRenderPass(renderPass vk.RenderPass) {
	d.free(unsafe.Pointer(renderPass), "render pass")
}

func (d *fakeDriver) CreateFramebuffer(*vk.FramebufferCreateInfo) (vk.Framebuffer, error) {
	if err := d.call("CreateFramebuffer"); err != nil {
		return vk.NullFramebuffer, err
	}
	return vk.Framebuffer(d.alloc("framebuffer")), nil
}

func (d *fakeDriver) DestroyFramebuffer(framebuffer vk.Framebuffer) {
	d.free(unsafe.Pointer(framebuffer), "framebuffer")
}

func (d *fakeDriver) AllocateCommandBuffers(count uint32) ([]vk.CommandBuffer, error) {
	if err := d.call("AllocateCommandBuffers"); err != nil {
		return nil, err
	}
	buffers := make([]vk.CommandBuffer, count)
	for i := range buffers {
		buffers[i] = vk.CommandBuffer(d.alloc("command buffer"))
	}
	return buffers, nil
}

func (d *fakeDriver) FreeCommandBuffers(buffers []vk.CommandBuffer) {
	for _, buffer := range buffers {
		d.free(unsafe.Pointer(buffer), "command buffer")
	}
}

func (d *fakeDriver) BeginCommandBuffer(_ vk.CommandBuffer, flags vk.CommandBufferUsageFlags) error {
	if err := d.call("BeginCommandBuffer"); err != nil {
		return err
	}
	d.beginFlags = append(d.beginFlags, flags)
	d.recorded = append(d.recorded, "begin")
	return nil
}

func (d *fakeDriver) EndCommandBuffer(vk.CommandBuffer) error {
	if err := d.call("EndCommandBuffer"); err != nil {
		return err
	}
	d.recorded = append(d.recorded, "end")
	return nil
}

func (d *fakeDriver) CmdBeginRenderPass(vk.CommandBuffer, *vk.RenderPassBeginInfo) {
	d.recorded = append(d.recorded, "beginRenderPass")
}

func (d *fakeDriver) CmdEndRenderPass(vk.CommandBuffer) {
	d.recorded = append(d.recorded, "endRenderPass")
}

func (d *fakeDriver) CreateSemaphore() (vk.Semaphore, error) {
	if err := d.call("CreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return vk.Semaphore(d.alloc("semaphore")), nil
}

func (d *fakeDriver) DestroySemaphore(semaphore vk.Semaphore) {
	d.free(unsafe.Pointer(semaphore), "semaphore")
}

func (d *fakeDriver) CreateFence(signaled bool) (vk.Fence, error) {
	if err := d.call("CreateFence"); err != nil {
		return vk.NullFence, err
	}
	fence := vk.Fence(d.alloc("fence"))
	d.signaled[fence] = signaled
	return fence, nil
}

func (d *fakeDriver) DestroyFence(fence vk.Fence) {
	delete(d.signaled, fence)
	d.free(unsafe.Pointer(fence), "fence")
}

// WaitForFence fails instead of blocking forever on an unsignaled fence.
func (d *fakeDriver) WaitForFence(fence vk.Fence) error {
	if err := d.call("WaitForFence"); err != nil {
		return err
	}
	d.fenceWaits = append(d.fenceWaits, fence)
	if !d.signaled[fence] {
		return errors.New("deadlock: waiting for a fence nothing will signal")
	}
	return nil
}

func (d *fakeDriver) ResetFence(fence vk.Fence) error {
	if err := d.call("ResetFence"); err != nil {
		return err
	}
	d.signaled[fence] = false
	return nil
}

func (d *fakeDriver) AcquireNextImage(swapchain vk.Swapchain, _ vk.Semaphore) (uint32, vk.Result) {
	d.calls["AcquireNextImage"]++

	res := vk.Success
	if len(d.acquireResults) > 0 {
		res = d.acquireResults[0]
		d.acquireResults = d.acquireResults[1:]
	}
	if !usable(res) {
		return 0, res
	}

	index := d.nextImage
	d.nextImage = (d.nextImage + 1) % uint32(len(d.engineImages[swapchain]))
	return index, res
}

// QueueSubmit completes the work immediately and signals the fence.
func (d *fakeDriver) QueueSubmit(info vk.SubmitInfo, fence vk.Fence) error {
	if err := d.call("QueueSubmit"); err != nil {
		return err
	}
	d.submits = append(d.submits, info)
	d.submitted = append(d.submitted, fence)
	d.signaled[fence] = true
	return nil
}

func (d *fakeDriver) QueuePresent(info *vk.PresentInfo) vk.Result {
	d.calls["QueuePresent"]++
	d.presents = append(d.presents, *info)

	if len(d.presentResults) > 0 {
		res := d.presentResults[0]
		d.presentResults = d.presentResults[1:]
		return res
	}
	return vk.Success
}

func (d *fakeDriver) DeviceWaitIdle() error {
	d.idleWaits++
	return d.call("DeviceWaitIdle")
}

var _ Driver = (*fakeDriver)(nil)
