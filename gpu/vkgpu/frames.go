package vkgpu

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"
)

// frames keeps one fence per frame slot and the state of the frame between
// NextFrame and Swap.
//
// A slot's fence is signaled once the GPU finished the slot's previous
// submission, so its command buffer may be recorded again.
type frames struct {
	api    Driver
	fences []vk.Fence

	// status is the result of the last acquire or present.
	status vk.Result

	// acquired is true between a usable acquire and the matching swap.
	acquired bool
}

// create makes count fences, all signaled so that the first wait on every
// slot returns immediately.
func (f *frames) create(count uint32) error {
	for i := uint32(0); i < count; i++ {
		fence, err := f.api.CreateFence(true)
		if err != nil {
			return fmt.Errorf("failed to create in flight fence: %w", err)
		}
		f.fences = append(f.fences, fence)
	}
	return nil
}

func (f *frames) destroy() {
	for _, fence := range f.fences {
		f.api.DestroyFence(fence)
	}
	f.fences = nil
	f.acquired = false
}

// rebuild replaces the fences with count new ones. The device must be idle.
func (f *frames) rebuild(count uint32) error {
	f.destroy()
	return f.create(count)
}

// wait blocks until the slot's previous submission completed.
func (f *frames) wait(slot uint32) error {
	return f.api.WaitForFence(f.fences[slot])
}

// submit finishes recording the current slot's command buffer and submits
// it. The submission waits for the acquired image and signals the slot's end
// semaphore and fence.
func (f *frames) submit(sc *Swapchain) error {
	commandBuffer := sc.CommandBuffer()
	if err := f.api.EndCommandBuffer(commandBuffer); err != nil {
		return fmt.Errorf("recording commands to buffer failed: %w", err)
	}

	fence := f.fences[sc.CurrentFrame()]

	// Only reset the fence once there is work that will signal it again.
	if err := f.api.ResetFence(fence); err != nil {
		return err
	}

	signalSemaphores := []vk.Semaphore{sc.EndSemaphore()}

	submitInfo := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{sc.StartSemaphore()},
		PWaitDstStageMask: []vk.PipelineStageFlags{
			vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit),
		},
		CommandBufferCount:   1,
		PCommandBuffers:      []vk.CommandBuffer{commandBuffer},
		SignalSemaphoreCount: uint32(len(signalSemaphores)),
		PSignalSemaphores:    signalSemaphores,
	}

	if err := f.api.QueueSubmit(submitInfo, fence); err != nil {
		return fmt.Errorf("queue submit error: %w", err)
	}
	return nil
}

// present queues the acquired image for presentation and records the result.
func (f *frames) present(sc *Swapchain) vk.Result {
	f.status = f.api.QueuePresent(sc.PresentInfo())
	return f.status
}
