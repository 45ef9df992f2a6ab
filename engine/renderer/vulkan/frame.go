package vulkan

import (
	vk "github.com/goki/vulkan"
)

const framesInFlight = 2

/**
 * @brief Per frame resources. A frame is reused once its fence signals,
 * which is also when everything queued in garbage gets released.
 */
type frame struct {
	cb             vk.CommandBuffer
	fence          vk.Fence
	imageAvailable vk.Semaphore
	renderComplete vk.Semaphore

	vertices stream
	indexes  stream

	garbage []func(*context)
}

func newFrame(c *context) (*frame, error) {
	f := &frame{
		vertices: stream{usage: vk.BufferUsageVertexBufferBit},
		indexes:  stream{usage: vk.BufferUsageIndexBufferBit},
	}
	var err error
	if f.cb, err = allocateCommandBuffer(c, c.commandPool); err != nil {
		return nil, err
	}
	// signaled so the first wait returns at once
	if f.fence, err = newFence(c, true); err != nil {
		f.destroy(c)
		return nil, err
	}
	if f.imageAvailable, err = newSemaphore(c); err != nil {
		f.destroy(c)
		return nil, err
	}
	if f.renderComplete, err = newSemaphore(c); err != nil {
		f.destroy(c)
		return nil, err
	}
	return f, nil
}

// recycle waits for the frame's previous submission and releases its garbage.
func (f *frame) recycle(c *context) error {
	if err := waitFence(c, f.fence); err != nil {
		return err
	}
	f.collect(c)
	f.vertices.reset()
	f.indexes.reset()
	return nil
}

func (f *frame) collect(c *context) {
	for _, free := range f.garbage {
		free(c)
	}
	f.garbage = f.garbage[:0]
}

func (f *frame) destroy(c *context) {
	f.collect(c)
	f.vertices.destroy(c)
	f.indexes.destroy(c)
	if f.renderComplete != vk.NullSemaphore {
		vk.DestroySemaphore(c.device, f.renderComplete, nil)
	}
	if f.imageAvailable != vk.NullSemaphore {
		vk.DestroySemaphore(c.device, f.imageAvailable, nil)
	}
	if f.fence != vk.NullFence {
		vk.DestroyFence(c.device, f.fence, nil)
	}
	if f.cb != nil {
		vk.FreeCommandBuffers(c.device, c.commandPool, 1, []vk.CommandBuffer{f.cb})
	}
}
