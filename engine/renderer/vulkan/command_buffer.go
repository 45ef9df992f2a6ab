package vulkan

import (
	"math"

	vk "github.com/goki/vulkan"
)

func allocateCommandBuffer(c *context, pool vk.CommandPool) (vk.CommandBuffer, error) {
	allocInfo := vk.CommandBufferAllocateInfo{
		SType:              vk.StructureTypeCommandBufferAllocateInfo,
		CommandPool:        pool,
		Level:              vk.CommandBufferLevelPrimary,
		CommandBufferCount: 1,
	}
	cbs := make([]vk.CommandBuffer, 1)
	if err := check(vk.AllocateCommandBuffers(c.device, &allocInfo, cbs), "vkAllocateCommandBuffers"); err != nil {
		return nil, err
	}
	return cbs[0], nil
}

func beginCommandBuffer(cb vk.CommandBuffer, singleUse bool) error {
	beginInfo := vk.CommandBufferBeginInfo{
		SType: vk.StructureTypeCommandBufferBeginInfo,
	}
	if singleUse {
		beginInfo.Flags = vk.CommandBufferUsageFlags(vk.CommandBufferUsageOneTimeSubmitBit)
	}
	return check(vk.BeginCommandBuffer(cb, &beginInfo), "vkBeginCommandBuffer")
}

/**
 * @brief Allocates a command buffer and begins recording it for one
 * submission. Finish it with endSingleUse.
 */
func beginSingleUse(c *context) (vk.CommandBuffer, error) {
	cb, err := allocateCommandBuffer(c, c.uploadPool)
	if err != nil {
		return nil, err
	}
	if err := beginCommandBuffer(cb, true); err != nil {
		vk.FreeCommandBuffers(c.device, c.uploadPool, 1, []vk.CommandBuffer{cb})
		return nil, err
	}
	return cb, nil
}

/**
 * @brief Ends recording, submits to the graphics queue, waits for the work
 * to finish and frees the command buffer. The caller holds the device lock,
 * which guards the upload pool and the queue.
 */
func endSingleUse(c *context, cb vk.CommandBuffer) error {
	defer vk.FreeCommandBuffers(c.device, c.uploadPool, 1, []vk.CommandBuffer{cb})
	if err := check(vk.EndCommandBuffer(cb), "vkEndCommandBuffer"); err != nil {
		return err
	}
	fence, err := newFence(c, false)
	if err != nil {
		return err
	}
	defer vk.DestroyFence(c.device, fence, nil)

	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{cb},
	}
	if err := check(vk.QueueSubmit(c.graphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit"); err != nil {
		return err
	}
	return waitFence(c, fence)
}

func newFence(c *context, signaled bool) (vk.Fence, error) {
	createInfo := vk.FenceCreateInfo{
		SType: vk.StructureTypeFenceCreateInfo,
	}
	if signaled {
		createInfo.Flags = vk.FenceCreateFlags(vk.FenceCreateSignaledBit)
	}
	var fence vk.Fence
	if err := check(vk.CreateFence(c.device, &createInfo, nil, &fence), "vkCreateFence"); err != nil {
		return vk.NullFence, err
	}
	return fence, nil
}

func waitFence(c *context, fence vk.Fence) error {
	return check(vk.WaitForFences(c.device, 1, []vk.Fence{fence}, vk.True, math.MaxUint64), "vkWaitForFences")
}

func newSemaphore(c *context) (vk.Semaphore, error) {
	createInfo := vk.SemaphoreCreateInfo{
		SType: vk.StructureTypeSemaphoreCreateInfo,
	}
	var sem vk.Semaphore
	if err := check(vk.CreateSemaphore(c.device, &createInfo, nil, &sem), "vkCreateSemaphore"); err != nil {
		return vk.NullSemaphore, err
	}
	return sem, nil
}
