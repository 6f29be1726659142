package vkgpu

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	vk "github.com/vulkan-go/vulkan"
)

func newTestSwapchain(t *testing.T, d *fakeDriver, width, height int) *Swapchain {
	t.Helper()

	sc, err := newSwapchain(d, vk.NullSurface, testFamilies(0, 0), width, height)
	require.NoError(t, err)
	return sc
}

func assertCounts(t *testing.T, sc *Swapchain) {
	t.Helper()

	n := int(sc.MaxInFlight())
	assert.NotZero(t, n)
	assert.Len(t, sc.Images(), n)
	assert.Len(t, sc.Views(), n)
	assert.Len(t, sc.Framebuffers(), n)
	assert.Len(t, sc.commandBuffers, n)
	assert.Len(t, sc.imageAvailable, n)
	assert.Len(t, sc.renderFinished, n)
}

func TestSwapchain800x600(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	params := sc.Parameters()
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, sc.Extent())
	assert.Equal(t, vk.FormatB8g8r8a8Unorm, params.Surface.Format)
	assert.Equal(t, vk.ColorSpaceSrgbNonlinear, params.Surface.ColorSpace)
	assert.Equal(t, vk.PresentModeFifo, params.Mode)
	assert.Equal(t, uint32(3), sc.MaxInFlight())
	assertCounts(t, sc)

	assert.Equal(t, 3, d.alive("image view")-1, "one view per image plus the depth view")
	assert.Equal(t, 1, d.alive("image"))
	assert.Equal(t, 1, d.alive("memory"))
	assert.Equal(t, 1, d.alive("render pass"))
	assert.Equal(t, 6, d.alive("semaphore"))
	assert.Equal(t, 1, d.calls["TransitionImageLayout"])
	assert.True(t, sc.RenderPass() != vk.NullRenderPass)

	sc.Clean()
	assert.Zero(t, d.alive(""))
	assert.Empty(t, d.problems)
}

func TestSwapchainImageCountFollowsEngine(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 2))
	d.extraImages = 1

	sc := newTestSwapchain(t, d, 640, 480)
	assert.Equal(t, uint32(2), d.lastCreate.MinImageCount)
	assert.Equal(t, uint32(3), sc.MaxInFlight(), "the engine may create more images than asked")
	assertCounts(t, sc)

	sc.Clean()
	assert.Empty(t, d.problems)
}

func TestSwapchainSharingMode(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))

	sc, err := newSwapchain(d, vk.NullSurface, testFamilies(0, 0), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, vk.SharingModeExclusive, d.lastCreate.ImageSharingMode)
	sc.Clean()

	sc, err = newSwapchain(d, vk.NullSurface, testFamilies(0, 1), 100, 100)
	require.NoError(t, err)
	assert.Equal(t, vk.SharingModeConcurrent, d.lastCreate.ImageSharingMode)
	assert.Equal(t, []uint32{0, 1}, d.lastCreate.PQueueFamilyIndices)
	sc.Clean()

	assert.Empty(t, d.problems)
}

func TestSwapchainInvalidExtent(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))

	_, err := newSwapchain(d, vk.NullSurface, testFamilies(0, 0), 0, 600)
	assert.ErrorIs(t, err, ErrInvalidExtent)
	assert.Zero(t, d.alive(""))
}

func TestSwapchainResizeSameSizeIsNoop(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	swapchain := sc.swapchain
	views := append([]vk.ImageView(nil), sc.Views()...)
	framebuffers := append([]vk.Framebuffer(nil), sc.Framebuffers()...)

	require.NoError(t, sc.Resize(800, 600))
	assert.True(t, swapchain == sc.swapchain)
	require.Len(t, sc.Views(), len(views))
	for i, view := range sc.Views() {
		assert.True(t, view == views[i], "view %d was recreated", i)
	}
	require.Len(t, sc.Framebuffers(), len(framebuffers))
	for i, framebuffer := range sc.Framebuffers() {
		assert.True(t, framebuffer == framebuffers[i], "framebuffer %d was recreated", i)
	}
	assert.Zero(t, d.idleWaits)

	sc.Clean()
}

func TestSwapchainResize(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)
	before := d.alive("")
	semaphore := sc.StartSemaphore()

	require.NoError(t, sc.Resize(1024, 768))
	assert.Equal(t, 1, d.idleWaits)
	assert.Equal(t, vk.Extent2D{Width: 1024, Height: 768}, sc.Extent())
	assertCounts(t, sc)
	assert.Equal(t, before, d.alive(""), "old objects are gone, new ones replace them")
	assert.True(t, semaphore == sc.StartSemaphore(), "semaphores survive a resize")

	sc.Clean()
	assert.Zero(t, d.alive(""))
	assert.Empty(t, d.problems)
}

func TestSwapchainResizeChangesImageCount(t *testing.T) {
	d := newFakeDriver(windowCaps(3, 0))
	sc := newTestSwapchain(t, d, 800, 600)
	require.Equal(t, uint32(4), sc.MaxInFlight())

	sc.Step()
	sc.Step()
	sc.Step()
	require.Equal(t, uint32(3), sc.CurrentFrame())

	d.support.Capabilities = windowCaps(1, 0)
	require.NoError(t, sc.Resize(400, 300))

	assert.Equal(t, uint32(2), sc.MaxInFlight())
	assertCounts(t, sc)
	assert.Less(t, sc.CurrentFrame(), sc.MaxInFlight())
	assert.Equal(t, 4, d.alive("semaphore"))

	sc.Clean()
	assert.Zero(t, d.alive(""))
	assert.Empty(t, d.problems)
}

func TestSwapchainSetupUnsetupRoundTrip(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	sc.unsetup()
	assert.Equal(t, 6, d.alive(""), "only the semaphores are left")
	assert.Equal(t, 6, d.alive("semaphore"))
	assert.Zero(t, sc.owned.len())

	require.NoError(t, sc.setup(800, 600))
	assertCounts(t, sc)

	sc.Clean()
	assert.Zero(t, d.alive(""))
	assert.Empty(t, d.problems)
}

func TestSwapchainSetupFailureLeaksNothing(t *testing.T) {
	steps := []struct {
		method string
		call   int
	}{
		{"SurfaceSupport", 1},
		{"CreateSwapchain", 1},
		{"DepthFormat", 1},
		{"CreateRenderPass", 1},
		{"CreateImage", 1},
		{"CreateImageView", 1},
		{"TransitionImageLayout", 1},
		{"SwapchainImages", 1},
		{"CreateImageView", 3},
		{"CreateFramebuffer", 2},
		{"AllocateCommandBuffers", 1},
		{"CreateSemaphore", 4},
	}

	for _, step := range steps {
		t.Run(step.method, func(t *testing.T) {
			d := newFakeDriver(windowCaps(2, 0))
			d.failAt[step.method] = step.call

			_, err := newSwapchain(d, vk.NullSurface, testFamilies(0, 0), 800, 600)
			assert.ErrorIs(t, err, errInjected)
			assert.Zero(t, d.alive(""), "live objects after failure: %v", d.live)
			assert.Empty(t, d.problems)
		})
	}
}

func TestSwapchainRebuildFailure(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	d.failAt["CreateFramebuffer"] = d.calls["CreateFramebuffer"] + 1
	err := sc.Resize(1024, 768)
	assert.ErrorIs(t, err, errInjected)
	assert.Equal(t, 6, d.alive(""), "only the semaphores are left")

	sc.Clean()
	assert.Zero(t, d.alive(""))
	assert.Empty(t, d.problems)
}

func TestSwapchainStepWraps(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	start := sc.CurrentFrame()
	seen := map[uint32]bool{}
	for i := uint32(0); i < sc.MaxInFlight(); i++ {
		seen[sc.CurrentFrame()] = true
		sc.Step()
	}
	assert.Equal(t, start, sc.CurrentFrame())
	assert.Len(t, seen, int(sc.MaxInFlight()))

	sc.Clean()
}

func TestSwapchainCleanTwice(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)

	sc.Clean()
	sc.Clean()
	sc.Step()
	assert.Empty(t, d.problems)
	assert.Zero(t, d.alive(""))
}

func TestAcquireNextFrame(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)
	d.nextImage = 2

	res, info := sc.AcquireNextFrame()
	require.Equal(t, vk.Success, res)
	require.NotNil(t, info)
	assert.Equal(t, uint32(2), sc.ImageIndex())
	assert.True(t, sc.Framebuffers()[2] == info.Framebuffer)
	assert.True(t, sc.RenderPass() == info.RenderPass)
	assert.Equal(t, sc.Extent(), info.RenderArea.Extent)

	d.acquireResults = []vk.Result{vk.Suboptimal, vk.ErrorOutOfDate, vk.Timeout}

	res, info = sc.AcquireNextFrame()
	assert.Equal(t, vk.Suboptimal, res)
	assert.NotNil(t, info, "a suboptimal image can still be used")

	res, info = sc.AcquireNextFrame()
	assert.Equal(t, vk.ErrorOutOfDate, res)
	assert.Nil(t, info)

	res, info = sc.AcquireNextFrame()
	assert.Equal(t, vk.Timeout, res)
	assert.Nil(t, info)

	sc.Clean()
}

func TestPresentInfo(t *testing.T) {
	d := newFakeDriver(windowCaps(2, 0))
	sc := newTestSwapchain(t, d, 800, 600)
	d.nextImage = 1

	_, info := sc.AcquireNextFrame()
	require.NotNil(t, info)

	present := sc.PresentInfo()
	require.Len(t, present.PWaitSemaphores, 1)
	assert.True(t, present.PWaitSemaphores[0] == sc.EndSemaphore())
	require.Len(t, present.PSwapchains, 1)
	assert.True(t, present.PSwapchains[0] == sc.swapchain)
	assert.Equal(t, []uint32{1}, present.PImageIndices)

	sc.Clean()
}
