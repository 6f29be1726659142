package vkgpu

import (
	vk "github.com/vulkan-go/vulkan"

	"vkframe/logs"
	"vkframe/queues"
)

// validationLayers are enabled on debug builds when the loader has them.
var validationLayers = []string{
	"VK_LAYER_KHRONOS_validation\x00",
}

// deviceExtensions must all be supported by the selected physical device.
var deviceExtensions = []string{
	vk.KhrSwapchainExtensionName + "\x00",
}

// deviceCaps is what device selection needs to know about a physical device.
type deviceCaps struct {
	name       string
	families   queues.FamilyIndices
	extensions []string
	support    SupportDetails
	anisotropy bool
}

// deviceSuitable reports whether a device can render into the window surface
// the way the swapchain needs it.
func deviceSuitable(caps deviceCaps) bool {
	return caps.families.IsComplete() &&
		hasAll(caps.extensions, deviceExtensions) &&
		len(caps.support.Formats) > 0 &&
		len(caps.support.PresentModes) > 0 &&
		caps.anisotropy
}

// firstSuitable returns the index of the first suitable device in
// enumeration order, or -1.
func firstSuitable(devices []deviceCaps) int {
	for i, caps := range devices {
		if deviceSuitable(caps) {
			return i
		}
	}
	return -1
}

// hasAll reports whether every name in required is in available. Both use
// NUL terminated names.
// validationAvailable reports whether every validation layer is among the
// available instance layers. Running without them is degraded, not fatal.
func validationAvailable(available []string) bool {
	if !hasAll(available, validationLayers) {
		logs.Graphics().Warn("validation layers requested but not available, disabling them")
		return false
	}
	return true
}

func hasAll(available, required []string) bool {
	set := make(map[string]struct{}, len(available))
	for _, name := range available {
		set[name] = struct{}{}
	}

	for _, name := range required {
		if _, ok := set[name]; !ok {
			return false
		}
	}
	return true
}

// queueCreateInfos returns one create info per distinct queue family.
func queueCreateInfos(families queues.FamilyIndices) []vk.DeviceQueueCreateInfo {
	var infos []vk.DeviceQueueCreateInfo
	for _, family := range families.Unique() {
		infos = append(infos, vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1.0},
		})
	}
	return infos
}

func queryDeviceCaps(device vk.PhysicalDevice, surface vk.Surface) deviceCaps {
	var properties vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(device, &properties)
	properties.Deref()

	caps := deviceCaps{
		name:       vk.ToString(properties.DeviceName[:]),
		families:   findQueueFamilies(device, surface),
		extensions: deviceExtensionNames(device),
	}

	if hasAll(caps.extensions, deviceExtensions) {
		support, err := querySurfaceSupport(device, surface)
		if err != nil {
			logs.Resources().Warn("querying surface support", "device", caps.name, "err", err)
		}
		caps.support = support
	}

	var features vk.PhysicalDeviceFeatures
	vk.GetPhysicalDeviceFeatures(device, &features)
	features.Deref()
	caps.anisotropy = features.SamplerAnisotropy.B()

	return caps
}

func findQueueFamilies(device vk.PhysicalDevice, surface vk.Surface) queues.FamilyIndices {
	indices := queues.FamilyIndices{}

	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)

	families := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, families)

	for i, family := range families {
		family.Deref()

		if family.QueueFlags&vk.QueueFlags(vk.QueueGraphicsBit) != 0 {
			indices.Graphics.Set(uint32(i))
		}

		var hasPresent vk.Bool32
		res := vk.GetPhysicalDeviceSurfaceSupport(device, uint32(i), surface, &hasPresent)
		if err := vk.Error(res); err != nil {
			logs.Resources().Warn("querying surface support", "family", i, "err", err)
		} else if hasPresent.B() {
			indices.Present.Set(uint32(i))
		}

		if indices.IsComplete() {
			break
		}
	}

	return indices
}

func deviceExtensionNames(device vk.PhysicalDevice) []string {
	var count uint32
	res := vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)
	if err := vk.Error(res); err != nil {
		logs.Resources().Warn("enumerating device extensions", "err", err)
		return nil
	}

	available := make([]vk.ExtensionProperties, count)
	res = vk.EnumerateDeviceExtensionProperties(device, "", &count, available)
	if err := vk.Error(res); err != nil {
		logs.Resources().Warn("enumerating device extensions", "err", err)
		return nil
	}

	names := make([]string, 0, count)
	for _, extension := range available {
		extension.Deref()
		names = append(names, vk.ToString(extension.ExtensionName[:])+"\x00")
	}
	return names
}

func instanceLayerNames() []string {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success {
		return nil
	}

	available := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, available) != vk.Success {
		return nil
	}

	names := make([]string, 0, count)
	for _, layer := range available {
		layer.Deref()
		names = append(names, vk.ToString(layer.LayerName[:])+"\x00")
	}
	return names
}

func querySurfaceSupport(device vk.PhysicalDevice, surface vk.Surface) (SupportDetails, error) {
	details := SupportDetails{}

	var capabilities vk.SurfaceCapabilities
	res := vk.GetPhysicalDeviceSurfaceCapabilities(device, surface, &capabilities)
	if err := check(res, "vkGetPhysicalDeviceSurfaceCapabilitiesKHR"); err != nil {
		return details, err
	}
	capabilities.Deref()
	capabilities.CurrentExtent.Deref()
	capabilities.MinImageExtent.Deref()
	capabilities.MaxImageExtent.Deref()
	details.Capabilities = capabilities

	var formatCount uint32
	res = vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, nil)
	if err := check(res, "vkGetPhysicalDeviceSurfaceFormatsKHR"); err != nil {
		return details, err
	}
	if formatCount != 0 {
		formats := make([]vk.SurfaceFormat, formatCount)
		vk.GetPhysicalDeviceSurfaceFormats(device, surface, &formatCount, formats)
		for _, format := range formats {
			format.Deref()
			details.Formats = append(details.Formats, format)
		}
	}

	var modeCount uint32
	res = vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, nil)
	if err := check(res, "vkGetPhysicalDeviceSurfacePresentModesKHR"); err != nil {
		return details, err
	}
	if modeCount != 0 {
		modes := make([]vk.PresentMode, modeCount)
		vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &modeCount, modes)
		details.PresentModes = modes
	}

	return details, nil
}
