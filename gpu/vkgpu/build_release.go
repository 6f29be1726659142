//go:build !debug

package vkgpu

// debugBuild enables the Khronos validation layer and the debug report
// callback. Build with -tags debug to turn it on.
const debugBuild = false
