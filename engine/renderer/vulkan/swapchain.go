package vulkan

import (
	"fmt"
	"math"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
)

type swapchain struct {
	handle vk.Swapchain
	format vk.SurfaceFormat
	extent vk.Extent2D
	images []vk.Image
	views  []vk.ImageView
	depth  *image

	// one framebuffer per image, compatible with both render passes
	framebuffers []vk.Framebuffer
}

/** @brief Prefers BGRA8 in the sRGB color space, else the first format offered. */
func chooseSurfaceFormat(formats []vk.SurfaceFormat) vk.SurfaceFormat {
	if len(formats) == 1 && formats[0].Format == vk.FormatUndefined {
		return vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	}
	for _, f := range formats {
		if f.Format == vk.FormatB8g8r8a8Unorm && f.ColorSpace == vk.ColorSpaceSrgbNonlinear {
			return f
		}
	}
	return formats[0]
}

/** @brief Mailbox when offered; FIFO is always available. */
func choosePresentMode(modes []vk.PresentMode) vk.PresentMode {
	for _, m := range modes {
		if m == vk.PresentModeMailbox {
			return m
		}
	}
	return vk.PresentModeFifo
}

// chooseExtent takes the surface size when it is fixed, else clamps the window size.
func chooseExtent(caps vk.SurfaceCapabilities, width, height uint32) vk.Extent2D {
	if caps.CurrentExtent.Width != math.MaxUint32 {
		return caps.CurrentExtent
	}
	return vk.Extent2D{
		Width:  clampUint32(width, caps.MinImageExtent.Width, caps.MaxImageExtent.Width),
		Height: clampUint32(height, caps.MinImageExtent.Height, caps.MaxImageExtent.Height),
	}
}

func clampUint32(v, lo, hi uint32) uint32 {
	if v < lo {
		return lo
	}
	if hi > 0 && v > hi {
		return hi
	}
	return v
}

func isBGRA(f vk.Format) bool {
	return f == vk.FormatB8g8r8a8Unorm || f == vk.FormatB8g8r8a8Srgb
}

func (c *context) surfaceSupport() (vk.SurfaceCapabilities, []vk.SurfaceFormat, []vk.PresentMode, error) {
	var caps vk.SurfaceCapabilities
	if err := check(vk.GetPhysicalDeviceSurfaceCapabilities(c.gpu, c.surface, &caps), "vkGetPhysicalDeviceSurfaceCapabilities"); err != nil {
		return caps, nil, nil, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()

	var count uint32
	vk.GetPhysicalDeviceSurfaceFormats(c.gpu, c.surface, &count, nil)
	formats := make([]vk.SurfaceFormat, count)
	vk.GetPhysicalDeviceSurfaceFormats(c.gpu, c.surface, &count, formats)
	for i := range formats {
		formats[i].Deref()
	}

	vk.GetPhysicalDeviceSurfacePresentModes(c.gpu, c.surface, &count, nil)
	modes := make([]vk.PresentMode, count)
	vk.GetPhysicalDeviceSurfacePresentModes(c.gpu, c.surface, &count, modes)

	if len(formats) == 0 || len(modes) == 0 {
		return caps, nil, nil, fmt.Errorf("surface offers no formats or present modes")
	}
	return caps, formats, modes, nil
}

func createSwapchain(c *context, width, height uint32, pass vk.RenderPass) (*swapchain, error) {
	caps, formats, modes, err := c.surfaceSupport()
	if err != nil {
		return nil, err
	}
	sc := &swapchain{
		format: chooseSurfaceFormat(formats),
		extent: chooseExtent(caps, width, height),
	}
	if sc.extent.Width == 0 || sc.extent.Height == 0 {
		return nil, fmt.Errorf("surface has zero size")
	}

	imageCount := caps.MinImageCount + 1
	if caps.MaxImageCount > 0 && imageCount > caps.MaxImageCount {
		imageCount = caps.MaxImageCount
	}

	createInfo := vk.SwapchainCreateInfo{
		SType:            vk.StructureTypeSwapchainCreateInfo,
		Surface:          c.surface,
		MinImageCount:    imageCount,
		ImageFormat:      sc.format.Format,
		ImageColorSpace:  sc.format.ColorSpace,
		ImageExtent:      sc.extent,
		ImageArrayLayers: 1,
		// screenshots copy out of the swapchain image
		ImageUsage:     vk.ImageUsageFlags(vk.ImageUsageColorAttachmentBit | vk.ImageUsageTransferSrcBit),
		PreTransform:   caps.CurrentTransform,
		CompositeAlpha: vk.CompositeAlphaOpaqueBit,
		PresentMode:    choosePresentMode(modes),
		Clipped:        vk.True,
	}
	if c.graphicsFamily != c.presentFamily {
		createInfo.ImageSharingMode = vk.SharingModeConcurrent
		createInfo.QueueFamilyIndexCount = 2
		createInfo.PQueueFamilyIndices = []uint32{c.graphicsFamily, c.presentFamily}
	} else {
		createInfo.ImageSharingMode = vk.SharingModeExclusive
	}
	if err := check(vk.CreateSwapchain(c.device, &createInfo, nil, &sc.handle), "vkCreateSwapchain"); err != nil {
		return nil, err
	}

	var count uint32
	if err := check(vk.GetSwapchainImages(c.device, sc.handle, &count, nil), "vkGetSwapchainImages"); err != nil {
		sc.destroy(c)
		return nil, err
	}
	sc.images = make([]vk.Image, count)
	if err := check(vk.GetSwapchainImages(c.device, sc.handle, &count, sc.images), "vkGetSwapchainImages"); err != nil {
		sc.destroy(c)
		return nil, err
	}

	sc.views = make([]vk.ImageView, count)
	for i := range sc.images {
		viewInfo := vk.ImageViewCreateInfo{
			SType:    vk.StructureTypeImageViewCreateInfo,
			Image:    sc.images[i],
			ViewType: vk.ImageViewType2d,
			Format:   sc.format.Format,
			SubresourceRange: vk.ImageSubresourceRange{
				AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
				LevelCount: 1,
				LayerCount: 1,
			},
		}
		if err := check(vk.CreateImageView(c.device, &viewInfo, nil, &sc.views[i]), "vkCreateImageView"); err != nil {
			sc.destroy(c)
			return nil, err
		}
	}

	sc.depth, err = newImage(c, sc.extent.Width, sc.extent.Height, 1, c.depthFormat,
		vk.ImageUsageDepthStencilAttachmentBit, vk.ImageAspectDepthBit)
	if err != nil {
		sc.destroy(c)
		return nil, err
	}

	sc.framebuffers = make([]vk.Framebuffer, count)
	for i := range sc.views {
		fbInfo := vk.FramebufferCreateInfo{
			SType:           vk.StructureTypeFramebufferCreateInfo,
			RenderPass:      pass,
			AttachmentCount: 2,
			PAttachments:    []vk.ImageView{sc.views[i], sc.depth.view},
			Width:           sc.extent.Width,
			Height:          sc.extent.Height,
			Layers:          1,
		}
		if err := check(vk.CreateFramebuffer(c.device, &fbInfo, nil, &sc.framebuffers[i]), "vkCreateFramebuffer"); err != nil {
			sc.destroy(c)
			return nil, err
		}
	}

	core.LogInfo("swapchain created: %dx%d, %d images", sc.extent.Width, sc.extent.Height, count)
	return sc, nil
}

// destroy releases the views and framebuffers; the images belong to the swapchain.
func (sc *swapchain) destroy(c *context) {
	for _, fb := range sc.framebuffers {
		if fb != nil {
			vk.DestroyFramebuffer(c.device, fb, nil)
		}
	}
	sc.framebuffers = nil
	if sc.depth != nil {
		sc.depth.destroy(c)
		sc.depth = nil
	}
	for _, v := range sc.views {
		if v != nil {
			vk.DestroyImageView(c.device, v, nil)
		}
	}
	sc.views = nil
	if sc.handle != vk.NullSwapchain {
		vk.DestroySwapchain(c.device, sc.handle, nil)
		sc.handle = vk.NullSwapchain
	}
}
