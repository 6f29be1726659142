package vkgpu

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	vk "github.com/vulkan-go/vulkan"

	"vkframe/logs"
	"vkframe/queues"
)

func suitableCaps() deviceCaps {
	return deviceCaps{
		name:       "test gpu",
		families:   testFamilies(0, 0),
		extensions: []string{"VK_KHR_maintenance1\x00", vk.KhrSwapchainExtensionName + "\x00"},
		support: SupportDetails{
			Formats:      []vk.SurfaceFormat{preferredFormat},
			PresentModes: []vk.PresentMode{vk.PresentModeFifo},
		},
		anisotropy: true,
	}
}

func TestDeviceSuitable(t *testing.T) {
	tests := []struct {
		name   string
		modify func(c *deviceCaps)
		want   bool
	}{
		{name: "everything present", modify: func(c *deviceCaps) {}, want: true},
		{
			name:   "no swapchain extension",
			modify: func(c *deviceCaps) { c.extensions = c.extensions[:1] },
		},
		{
			name:   "no graphics family",
			modify: func(c *deviceCaps) { c.families.Graphics.Reset() },
		},
		{
			name:   "no present family",
			modify: func(c *deviceCaps) { c.families.Present.Reset() },
		},
		{
			name:   "no surface formats",
			modify: func(c *deviceCaps) { c.support.Formats = nil },
		},
		{
			name:   "no present modes",
			modify: func(c *deviceCaps) { c.support.PresentModes = nil },
		},
		{
			name:   "no sampler anisotropy",
			modify: func(c *deviceCaps) { c.anisotropy = false },
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			caps := suitableCaps()
			tt.modify(&caps)
			assert.Equal(t, tt.want, deviceSuitable(caps))
		})
	}
}

func TestFirstSuitable(t *testing.T) {
	bad := suitableCaps()
	bad.anisotropy = false

	assert.Equal(t, -1, firstSuitable(nil))
	assert.Equal(t, -1, firstSuitable([]deviceCaps{bad, bad}))
	assert.Equal(t, 1, firstSuitable([]deviceCaps{bad, suitableCaps(), suitableCaps()}))
}

func TestHasAll(t *testing.T) {
	available := []string{"a\x00", "b\x00", "c\x00"}

	assert.True(t, hasAll(available, nil))
	assert.True(t, hasAll(available, []string{"c\x00", "a\x00"}))
	assert.False(t, hasAll(available, []string{"a\x00", "d\x00"}))
	assert.False(t, hasAll(nil, validationLayers))
}

func TestQueueCreateInfos(t *testing.T) {
	infos := queueCreateInfos(testFamilies(0, 0))
	assert.Len(t, infos, 1)
	assert.Equal(t, uint32(0), infos[0].QueueFamilyIndex)
	assert.Equal(t, []float32{1.0}, infos[0].PQueuePriorities)

	infos = queueCreateInfos(testFamilies(2, 1))
	assert.Len(t, infos, 2)
	assert.Equal(t, uint32(2), infos[0].QueueFamilyIndex)
	assert.Equal(t, uint32(1), infos[1].QueueFamilyIndex)

	assert.Empty(t, queueCreateInfos(queues.FamilyIndices{}))
}

func TestDebugReportLevel(t *testing.T) {
	assert.Equal(t, slog.LevelError, debugReportLevel(vk.DebugReportFlags(vk.DebugReportErrorBit)))
	assert.Equal(t, slog.LevelWarn, debugReportLevel(vk.DebugReportFlags(vk.DebugReportWarningBit)))
	assert.Equal(t, slog.LevelWarn, debugReportLevel(vk.DebugReportFlags(vk.DebugReportPerformanceWarningBit)))
	assert.Equal(t, slog.LevelDebug, debugReportLevel(vk.DebugReportFlags(vk.DebugReportInformationBit)))
}

func TestValidationAvailable(t *testing.T) {
	defer slog.SetDefault(slog.Default())

	var buf bytes.Buffer
	logs.Setup(&buf, false)

	assert.True(t, validationAvailable([]string{"VK_LAYER_LUNARG_monitor\x00", "VK_LAYER_KHRONOS_validation\x00"}))
	assert.Empty(t, buf.String())

	assert.False(t, validationAvailable([]string{"VK_LAYER_LUNARG_monitor\x00"}))
	assert.False(t, validationAvailable(nil))
	assert.Contains(t, buf.String(), "level=WARN")
	assert.Contains(t, buf.String(), "subsystem=graphics")
	assert.NotContains(t, buf.String(), "level=ERROR", "missing layers only degrade debugging")
}
