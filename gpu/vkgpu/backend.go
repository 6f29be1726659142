// Package vkgpu renders through Vulkan. It creates the instance, device and
// surface for a GLFW window, manages the swapchain and paces frames with one
// fence and two semaphores per frame slot.
package vkgpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"
	"github.com/xlab/linmath"

	"vkframe/config"
	"vkframe/gpu"
	"vkframe/logs"
)

// Backend is the Vulkan gpu.Backend.
type Backend struct {
	ctx       *Context
	api       Driver
	swapchain *Swapchain
	frames    frames

	clearColor linmath.Vec4

	// failed is set after an unrecoverable error. Nothing is rendered
	// afterwards.
	failed bool
}

var _ gpu.Backend = (*Backend)(nil)

// New returns a Backend which clears every frame to opaque black.
func New() *Backend {
	return &Backend{
		clearColor: linmath.Vec4{0, 0, 0, 1},
	}
}

// SetClearColor sets the color the baseline render pass clears to.
func (b *Backend) SetClearColor(color linmath.Vec4) {
	b.clearColor = color
}

// CreateWindow opens a window without a client API, creates the Vulkan
// context for it and a swapchain of the window's framebuffer size.
func (b *Backend) CreateWindow(name string, cfg config.Config) (*glfw.Window, error) {
	window, err := gpu.OpenWindow(name, cfg, gpu.Hint{Target: glfw.ClientAPI, Value: glfw.NoAPI})
	if err != nil {
		return nil, err
	}

	ctx, err := NewContext(window, name)
	if err != nil {
		gpu.CloseWindow(window)
		return nil, fmt.Errorf("creating Vulkan context: %w", err)
	}

	width, height := window.GetFramebufferSize()
	swapchain, err := NewSwapchain(ctx, width, height)
	if err != nil {
		ctx.Destroy()
		gpu.CloseWindow(window)
		return nil, fmt.Errorf("creating swapchain: %w", err)
	}

	if err := b.attach(ctx.api, swapchain); err != nil {
		swapchain.Clean()
		ctx.Destroy()
		gpu.CloseWindow(window)
		return nil, err
	}
	b.ctx = ctx

	return window, nil
}

// attach starts pacing frames on swapchain.
func (b *Backend) attach(api Driver, swapchain *Swapchain) error {
	b.api = api
	b.swapchain = swapchain
	b.frames = frames{api: api, status: vk.Success}
	b.failed = false

	if err := b.frames.create(swapchain.MaxInFlight()); err != nil {
		b.frames.destroy()
		return fmt.Errorf("createSyncObjects: %w", err)
	}
	return nil
}

// NextFrame waits until the current slot is free, acquires an image and
// starts recording the slot's command buffer with a render pass which clears
// color and depth. It returns false when no image could be acquired.
func (b *Backend) NextFrame() bool {
	if b.swapchain == nil || b.failed {
		return false
	}

	if err := b.frames.wait(b.swapchain.CurrentFrame()); err != nil {
		logs.Graphics().Error("waiting for frame fence", "err", err)
		return false
	}

	status, beginInfo := b.swapchain.AcquireNextFrame()
	b.frames.status = status
	if beginInfo == nil {
		logs.Graphics().Debug("no image acquired", "result", status)
		return false
	}

	commandBuffer := b.swapchain.CommandBuffer()
	flags := vk.CommandBufferUsageFlags(vk.CommandBufferUsageSimultaneousUseBit)
	if err := b.api.BeginCommandBuffer(commandBuffer, flags); err != nil {
		// The acquired image can't be handed back without a submit.
		logs.Graphics().Error("cannot begin command buffer", "err", err)
		b.failed = true
		return false
	}

	clearValues := make([]vk.ClearValue, 2)
	clearValues[0].SetColor(b.clearColor[:])
	clearValues[1].SetDepthStencil(1, 0)
	beginInfo.ClearValueCount = uint32(len(clearValues))
	beginInfo.PClearValues = clearValues

	b.api.CmdBeginRenderPass(commandBuffer, beginInfo)
	b.api.CmdEndRenderPass(commandBuffer)

	b.frames.acquired = true
	return true
}

// Swap submits and presents the frame started by NextFrame. Without one
// nothing is submitted or presented. The swapchain is rebuilt when it went
// out of date, became suboptimal or the window was resized. The slot always
// advances.
func (b *Backend) Swap(req gpu.SwapRequest) bool {
	if b.swapchain == nil || b.failed {
		return false
	}
	defer b.swapchain.Step()

	presented := false
	if b.frames.acquired {
		b.frames.acquired = false

		if err := b.frames.submit(b.swapchain); err != nil {
			logs.Graphics().Error("submitting frame", "err", err)
			b.failed = true
			return false
		}
		b.frames.present(b.swapchain)
		presented = true
	}

	status := b.frames.status
	if status == vk.ErrorOutOfDate || status == vk.Suboptimal || req.Resized {
		if err := b.resize(status, req); err != nil {
			logs.Graphics().Error("recreating swapchain", "err", err)
			b.failed = true
			return false
		}
		return true
	}

	if presented && status != vk.Success {
		logs.Graphics().Error("failed to present swapchain image", "err", vk.Error(status))
		b.failed = true
		return false
	}

	return true
}

func (b *Backend) resize(status vk.Result, req gpu.SwapRequest) error {
	width, height := req.Size()
	before := b.swapchain.MaxInFlight()

	var err error
	if status == vk.ErrorOutOfDate {
		err = b.swapchain.Rebuild(width, height)
	} else {
		err = b.swapchain.Resize(width, height)
	}
	if err != nil {
		return err
	}
	b.frames.status = vk.Success

	if after := b.swapchain.MaxInFlight(); after != before {
		if err := b.frames.rebuild(after); err != nil {
			return fmt.Errorf("createSyncObjects: %w", err)
		}
	}
	return nil
}

// Clean waits for the GPU to finish and destroys everything in reverse
// creation order.
func (b *Backend) Clean() {
	if b.api == nil {
		return
	}

	if err := b.api.DeviceWaitIdle(); err != nil {
		logs.Graphics().Warn("waiting for device idle before cleanup", "err", err)
	}

	b.frames.destroy()
	if b.swapchain != nil {
		b.swapchain.Clean()
		b.swapchain = nil
	}
	if b.ctx != nil {
		b.ctx.Destroy()
		b.ctx = nil
	}
	b.api = nil
}

// Swapchain returns the swapchain frames are presented with.
func (b *Backend) Swapchain() *Swapchain {
	return b.swapchain
}

// Context returns the Vulkan context of the window.
func (b *Backend) Context() *Context {
	return b.ctx
}
