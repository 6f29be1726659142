//go:build debug

package vkgpu

const debugBuild = true
