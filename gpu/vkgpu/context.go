package vkgpu

import (
	"fmt"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/vulkan-go/vulkan"

	"vkframe/logs"
	"vkframe/queues"
)

// Context owns the Vulkan objects which live as long as the window: the
// instance, the surface, the logical device with its queues and the command
// pool swapchain command buffers are allocated from.
type Context struct {
	Instance       vk.Instance
	Surface        vk.Surface
	PhysicalDevice vk.PhysicalDevice
	Device         vk.Device

	GraphicsQueue vk.Queue
	PresentQueue  vk.Queue
	Queues        queues.FamilyIndices

	// CommandPool belongs to the graphics family and allows resetting
	// individual command buffers.
	CommandPool vk.CommandPool

	// MinUniformOffset is the alignment required for dynamic uniform buffer
	// offsets on the selected device.
	MinUniformOffset vk.DeviceSize

	// DebugEnabled is true when the validation layers and the debug report
	// callback are active.
	DebugEnabled bool

	debugCallback vk.DebugReportCallback
	api           Driver
}

// NewContext creates every window lifetime Vulkan object for window. On error
// whatever was already created is destroyed.
func NewContext(window *glfw.Window, appName string) (*Context, error) {
	c := &Context{
		PhysicalDevice: vk.PhysicalDevice(vk.NullHandle),
		Device:         vk.Device(vk.NullHandle),
		Surface:        vk.NullSurface,
		CommandPool:    vk.NullCommandPool,
		debugCallback:  vk.NullDebugReportCallback,
		DebugEnabled:   debugBuild,
	}

	if err := c.init(window, appName); err != nil {
		c.Destroy()
		return nil, err
	}

	c.api = &vulkanDriver{
		physicalDevice: c.PhysicalDevice,
		device:         c.Device,
		surface:        c.Surface,
		graphicsQueue:  c.GraphicsQueue,
		presentQueue:   c.PresentQueue,
		commandPool:    c.CommandPool,
	}
	return c, nil
}

func (c *Context) init(window *glfw.Window, appName string) error {
	vk.SetGetInstanceProcAddr(glfw.GetVulkanGetInstanceProcAddress())

	if err := vk.Init(); err != nil {
		return fmt.Errorf("failed to init Vulkan Go: %w", err)
	}

	if c.DebugEnabled {
		c.DebugEnabled = validationAvailable(instanceLayerNames())
	}

	if err := c.createInstance(window, appName); err != nil {
		return fmt.Errorf("createInstance: %w", err)
	}

	if c.DebugEnabled {
		if err := c.createDebugCallback(); err != nil {
			return fmt.Errorf("createDebugCallback: %w", err)
		}
	}

	if err := c.createSurface(window); err != nil {
		return fmt.Errorf("createSurface: %w", err)
	}

	if err := c.pickPhysicalDevice(); err != nil {
		return fmt.Errorf("pickPhysicalDevice: %w", err)
	}

	if err := c.createLogicalDevice(); err != nil {
		return fmt.Errorf("createLogicalDevice: %w", err)
	}

	if err := c.createCommandPool(); err != nil {
		return fmt.Errorf("createCommandPool: %w", err)
	}

	return nil
}

func (c *Context) createInstance(window *glfw.Window, appName string) error {
	appInfo := vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		PApplicationName:   appName + "\x00",
		ApplicationVersion: vk.MakeVersion(1, 0, 0),
		PEngineName:        "vkframe\x00",
		EngineVersion:      vk.MakeVersion(1, 0, 0),
		ApiVersion:         vk.ApiVersion10,
	}

	extensions := window.GetRequiredInstanceExtensions()
	if c.DebugEnabled {
		extensions = append(extensions, vk.ExtDebugReportExtensionName+"\x00")
	}

	createInfo := vk.InstanceCreateInfo{
		SType:                   vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo:        &appInfo,
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: extensions,
	}

	if c.DebugEnabled {
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
		createInfo.PpEnabledLayerNames = validationLayers
	}

	var instance vk.Instance
	if err := vk.Error(vk.CreateInstance(&createInfo, nil, &instance)); err != nil {
		return fmt.Errorf("failed to create Vulkan instance: %w", err)
	}
	c.Instance = instance

	return nil
}

func (c *Context) createSurface(window *glfw.Window) error {
	surfacePtr, err := window.CreateWindowSurface(c.Instance, nil)
	if err != nil {
		return fmt.Errorf("cannot create surface within GLFW window: %w", err)
	}

	c.Surface = vk.SurfaceFromPointer(surfacePtr)
	return nil
}

func (c *Context) pickPhysicalDevice() error {
	var deviceCount uint32
	err := vk.Error(vk.EnumeratePhysicalDevices(c.Instance, &deviceCount, nil))
	if err != nil {
		return fmt.Errorf("failed to get the number of physical devices: %w", err)
	}
	if deviceCount == 0 {
		return ErrNoDevice
	}

	devices := make([]vk.PhysicalDevice, deviceCount)
	err = vk.Error(vk.EnumeratePhysicalDevices(c.Instance, &deviceCount, devices))
	if err != nil {
		return fmt.Errorf("failed to enumerate the physical devices: %w", err)
	}

	caps := make([]deviceCaps, 0, len(devices))
	for _, device := range devices {
		dc := queryDeviceCaps(device, c.Surface)
		logs.Resources().Debug("available device",
			"name", dc.name,
			"suitable", deviceSuitable(dc),
		)
		caps = append(caps, dc)
	}

	selected := firstSuitable(caps)
	if selected < 0 {
		return ErrNoSuitableDevice
	}

	c.PhysicalDevice = devices[selected]
	c.Queues = caps[selected].families

	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(c.PhysicalDevice, &properties)
	properties.Deref()
	properties.Limits.Deref()
	c.MinUniformOffset = properties.Limits.MinUniformBufferOffsetAlignment

	logs.Resources().Info("selected physical device",
		"name", caps[selected].name,
		"minUniformOffset", c.MinUniformOffset,
	)
	return nil
}

func (c *Context) createLogicalDevice() error {
	queueInfos := queueCreateInfos(c.Queues)

	createInfo := vk.DeviceCreateInfo{
		SType: vk.StructureTypeDeviceCreateInfo,
		PEnabledFeatures: []vk.PhysicalDeviceFeatures{{
			SamplerAnisotropy: vk.True,
		}},

		PQueueCreateInfos:    queueInfos,
		QueueCreateInfoCount: uint32(len(queueInfos)),

		EnabledExtensionCount:   uint32(len(deviceExtensions)),
		PpEnabledExtensionNames: deviceExtensions,
	}

	if c.DebugEnabled {
		createInfo.PpEnabledLayerNames = validationLayers
		createInfo.EnabledLayerCount = uint32(len(validationLayers))
	}

	var device vk.Device
	err := vk.Error(vk.CreateDevice(c.PhysicalDevice, &createInfo, nil, &device))
	if err != nil {
		return fmt.Errorf("failed to create logical device: %w", err)
	}
	c.Device = device

	var graphicsQueue vk.Queue
	vk.GetDeviceQueue(c.Device, c.Queues.Graphics.Get(), 0, &graphicsQueue)
	c.GraphicsQueue = graphicsQueue

	var presentQueue vk.Queue
	vk.GetDeviceQueue(c.Device, c.Queues.Present.Get(), 0, &presentQueue)
	c.PresentQueue = presentQueue

	if c.Queues.Shared() {
		logs.Resources().Info("graphics and present share a queue family",
			"family", c.Queues.Graphics.Get())
	}

	return nil
}

func (c *Context) createCommandPool() error {
	poolInfo := vk.CommandPoolCreateInfo{
		SType: vk.StructureTypeCommandPoolCreateInfo,
		Flags: vk.CommandPoolCreateFlags(
			vk.CommandPoolCreateResetCommandBufferBit,
		),
		QueueFamilyIndex: c.Queues.Graphics.Get(),
	}

	var commandPool vk.CommandPool
	res := vk.CreateCommandPool(c.Device, &poolInfo, nil, &commandPool)
	if err := vk.Error(res); err != nil {
		return fmt.Errorf("failed to create command pool: %w", err)
	}
	c.CommandPool = commandPool

	return nil
}

// Destroy releases the context objects in reverse creation order. The
// swapchain must have been cleaned before.
func (c *Context) Destroy() {
	if c.CommandPool != vk.NullCommandPool {
		vk.DestroyCommandPool(c.Device, c.CommandPool, nil)
		c.CommandPool = vk.NullCommandPool
	}
	if c.Device != vk.Device(vk.NullHandle) {
		vk.DestroyDevice(c.Device, nil)
		c.Device = vk.Device(vk.NullHandle)
	}
	if c.debugCallback != vk.NullDebugReportCallback {
		vk.DestroyDebugReportCallback(c.Instance, c.debugCallback, nil)
		c.debugCallback = vk.NullDebugReportCallback
	}
	if c.Surface != vk.NullSurface {
		vk.DestroySurface(c.Instance, c.Surface, nil)
		c.Surface = vk.NullSurface
	}
	if c.Instance != nil {
		vk.DestroyInstance(c.Instance, nil)
		c.Instance = nil
	}
	c.api = nil
}
