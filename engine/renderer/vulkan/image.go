package vulkan

import (
	vk "github.com/goki/vulkan"
)

// image is a device local 2D image with its memory and a view over every level.
type image struct {
	handle vk.Image
	memory vk.DeviceMemory
	view   vk.ImageView
	format vk.Format
	width  uint32
	height uint32
	levels uint32
}

func newImage(c *context, width, height, levels uint32, format vk.Format, usage vk.ImageUsageFlagBits, aspect vk.ImageAspectFlagBits) (*image, error) {
	img := &image{format: format, width: width, height: height, levels: levels}
	createInfo := vk.ImageCreateInfo{
		SType:     vk.StructureTypeImageCreateInfo,
		ImageType: vk.ImageType2d,
		Format:    format,
		Extent: vk.Extent3D{
			Width:  width,
			Height: height,
			Depth:  1,
		},
		MipLevels:     levels,
		ArrayLayers:   1,
		Samples:       vk.SampleCount1Bit,
		Tiling:        vk.ImageTilingOptimal,
		Usage:         vk.ImageUsageFlags(usage),
		SharingMode:   vk.SharingModeExclusive,
		InitialLayout: vk.ImageLayoutUndefined,
	}
	if err := check(vk.CreateImage(c.device, &createInfo, nil, &img.handle), "vkCreateImage"); err != nil {
		return nil, err
	}

	var reqs vk.MemoryRequirements
	vk.GetImageMemoryRequirements(c.device, img.handle, &reqs)
	reqs.Deref()
	memType, err := c.findMemoryType(reqs.MemoryTypeBits, vk.MemoryPropertyFlags(vk.MemoryPropertyDeviceLocalBit))
	if err != nil {
		img.destroy(c)
		return nil, err
	}
	allocInfo := vk.MemoryAllocateInfo{
		SType:           vk.StructureTypeMemoryAllocateInfo,
		AllocationSize:  reqs.Size,
		MemoryTypeIndex: memType,
	}
	if err := check(vk.AllocateMemory(c.device, &allocInfo, nil, &img.memory), "vkAllocateMemory"); err != nil {
		img.destroy(c)
		return nil, err
	}
	if err := check(vk.BindImageMemory(c.device, img.handle, img.memory, 0), "vkBindImageMemory"); err != nil {
		img.destroy(c)
		return nil, err
	}

	viewInfo := vk.ImageViewCreateInfo{
		SType:    vk.StructureTypeImageViewCreateInfo,
		Image:    img.handle,
		ViewType: vk.ImageViewType2d,
		Format:   format,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(aspect),
			LevelCount: levels,
			LayerCount: 1,
		},
	}
	if err := check(vk.CreateImageView(c.device, &viewInfo, nil, &img.view), "vkCreateImageView"); err != nil {
		img.destroy(c)
		return nil, err
	}
	return img, nil
}

func (img *image) destroy(c *context) {
	if img.view != nil {
		vk.DestroyImageView(c.device, img.view, nil)
		img.view = nil
	}
	if img.handle != nil {
		vk.DestroyImage(c.device, img.handle, nil)
		img.handle = nil
	}
	if img.memory != vk.NullDeviceMemory {
		vk.FreeMemory(c.device, img.memory, nil)
		img.memory = vk.NullDeviceMemory
	}
}

/** @brief Records a layout transition of the given levels of a color image. */
func transitionImage(cb vk.CommandBuffer, handle vk.Image, levels uint32, from, to vk.ImageLayout) {
	barrier := vk.ImageMemoryBarrier{
		SType:               vk.StructureTypeImageMemoryBarrier,
		OldLayout:           from,
		NewLayout:           to,
		SrcQueueFamilyIndex: vk.QueueFamilyIgnored,
		DstQueueFamilyIndex: vk.QueueFamilyIgnored,
		Image:               handle,
		SubresourceRange: vk.ImageSubresourceRange{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LevelCount: levels,
			LayerCount: 1,
		},
	}
	src, dst := vk.PipelineStageTopOfPipeBit, vk.PipelineStageTransferBit
	switch {
	case from == vk.ImageLayoutUndefined && to == vk.ImageLayoutTransferDstOptimal:
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
	case from == vk.ImageLayoutShaderReadOnlyOptimal && to == vk.ImageLayoutTransferDstOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		src = vk.PipelineStageFragmentShaderBit
	case to == vk.ImageLayoutShaderReadOnlyOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessShaderReadBit)
		src, dst = vk.PipelineStageTransferBit, vk.PipelineStageFragmentShaderBit
	case to == vk.ImageLayoutTransferSrcOptimal:
		// the swapchain image after the render pass
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessColorAttachmentWriteBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		src = vk.PipelineStageColorAttachmentOutputBit
	case to == vk.ImageLayoutColorAttachmentOptimal:
		barrier.SrcAccessMask = vk.AccessFlags(vk.AccessTransferReadBit)
		barrier.DstAccessMask = vk.AccessFlags(vk.AccessColorAttachmentReadBit | vk.AccessColorAttachmentWriteBit)
		src, dst = vk.PipelineStageTransferBit, vk.PipelineStageColorAttachmentOutputBit
	}
	vk.CmdPipelineBarrier(cb,
		vk.PipelineStageFlags(src), vk.PipelineStageFlags(dst),
		0, 0, nil, 0, nil, 1, []vk.ImageMemoryBarrier{barrier})
}
