package vulkan

import (
	"fmt"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const maxTextures = 4096

type texture struct {
	image   *image
	sampler vk.Sampler
	set     vk.DescriptorSet
	mipmap  bool
}

func checkPixels(tex *metadata.Texture, pixels []byte) error {
	want := int(tex.Width) * int(tex.Height) * 4
	if tex.Width == 0 || tex.Height == 0 || len(pixels) < want {
		return fmt.Errorf("texture '%s': need %d bytes for %dx%d, got %d", tex.Name, want, tex.Width, tex.Height, len(pixels))
	}
	return nil
}

/**
 * @brief Builds every level of a mip chain with a 2x2 box filter, the base
 * level first. Odd sizes reuse the last row or column.
 */
func mipChain(pixels []byte, width, height int) [][]byte {
	levels := [][]byte{pixels[:width*height*4]}
	for width > 1 || height > 1 {
		w, h := maxInt(width/2, 1), maxInt(height/2, 1)
		src := levels[len(levels)-1]
		dst := make([]byte, w*h*4)
		for y := 0; y < h; y++ {
			y0, y1 := minInt(y*2, height-1), minInt(y*2+1, height-1)
			for x := 0; x < w; x++ {
				x0, x1 := minInt(x*2, width-1), minInt(x*2+1, width-1)
				for c := 0; c < 4; c++ {
					sum := int(src[(y0*width+x0)*4+c]) + int(src[(y0*width+x1)*4+c]) +
						int(src[(y1*width+x0)*4+c]) + int(src[(y1*width+x1)*4+c])
					dst[(y*w+x)*4+c] = byte((sum + 2) / 4)
				}
			}
		}
		levels = append(levels, dst)
		width, height = w, h
	}
	return levels
}

func minInt(a, b int) int {
	if a < b {
		return a
	}
	return b
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func createDescriptorPool(c *context) (vk.DescriptorPool, error) {
	poolInfo := vk.DescriptorPoolCreateInfo{
		SType:         vk.StructureTypeDescriptorPoolCreateInfo,
		Flags:         vk.DescriptorPoolCreateFlags(vk.DescriptorPoolCreateFreeDescriptorSetBit),
		MaxSets:       maxTextures,
		PoolSizeCount: 1,
		PPoolSizes: []vk.DescriptorPoolSize{{
			Type:            vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: maxTextures,
		}},
	}
	var pool vk.DescriptorPool
	if err := check(vk.CreateDescriptorPool(c.device, &poolInfo, nil, &pool), "vkCreateDescriptorPool"); err != nil {
		return nil, err
	}
	return pool, nil
}

// newTexture creates the image, sampler and descriptor set. Pixels are uploaded separately.
func (d *Device) newTexture(width, height uint32, mipmap, clamp bool) (*texture, error) {
	levels := uint32(1)
	if mipmap {
		for w, h := width, height; w > 1 || h > 1; w, h = w/2, h/2 {
			levels++
		}
	}
	img, err := newImage(d.ctx, width, height, levels, vk.FormatR8g8b8a8Unorm,
		vk.ImageUsageSampledBit|vk.ImageUsageTransferDstBit, vk.ImageAspectColorBit)
	if err != nil {
		return nil, err
	}
	t := &texture{image: img, mipmap: mipmap}

	address := vk.SamplerAddressModeRepeat
	if clamp {
		address = vk.SamplerAddressModeClampToEdge
	}
	samplerInfo := vk.SamplerCreateInfo{
		SType:        vk.StructureTypeSamplerCreateInfo,
		MagFilter:    vk.FilterLinear,
		MinFilter:    vk.FilterLinear,
		MipmapMode:   vk.SamplerMipmapModeNearest,
		AddressModeU: address,
		AddressModeV: address,
		AddressModeW: address,
		MaxLod:       float32(levels - 1),
		BorderColor:  vk.BorderColorIntOpaqueBlack,
	}
	if d.ctx.features.SamplerAnisotropy == vk.True && mipmap {
		samplerInfo.AnisotropyEnable = vk.True
		samplerInfo.MaxAnisotropy = 2
	}
	if err := check(vk.CreateSampler(d.ctx.device, &samplerInfo, nil, &t.sampler), "vkCreateSampler"); err != nil {
		t.destroy(d.ctx, d.descriptorPool)
		return nil, err
	}

	allocInfo := vk.DescriptorSetAllocateInfo{
		SType:              vk.StructureTypeDescriptorSetAllocateInfo,
		DescriptorPool:     d.descriptorPool,
		DescriptorSetCount: 1,
		PSetLayouts:        []vk.DescriptorSetLayout{d.pipelines.setLayout},
	}
	if err := check(vk.AllocateDescriptorSets(d.ctx.device, &allocInfo, &t.set), "vkAllocateDescriptorSets"); err != nil {
		t.destroy(d.ctx, d.descriptorPool)
		return nil, err
	}
	write := vk.WriteDescriptorSet{
		SType:           vk.StructureTypeWriteDescriptorSet,
		DstSet:          t.set,
		DstBinding:      0,
		DescriptorCount: 1,
		DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
		PImageInfo: []vk.DescriptorImageInfo{{
			Sampler:     t.sampler,
			ImageView:   img.view,
			ImageLayout: vk.ImageLayoutShaderReadOnlyOptimal,
		}},
	}
	vk.UpdateDescriptorSets(d.ctx.device, 1, []vk.WriteDescriptorSet{write}, 0, nil)
	return t, nil
}

func (t *texture) destroy(c *context, pool vk.DescriptorPool) {
	if t.set != nil {
		vk.FreeDescriptorSets(c.device, pool, 1, &t.set)
		t.set = nil
	}
	if t.sampler != nil {
		vk.DestroySampler(c.device, t.sampler, nil)
		t.sampler = nil
	}
	t.image.destroy(c)
}

/**
 * @brief Copies a region of pixels into the texture through a staging
 * buffer. The whole mip chain is rebuilt when the texture has one, which
 * requires the region to cover the full image.
 */
func (d *Device) uploadTexture(t *texture, x, y, width, height int, pixels []byte, fresh bool) error {
	var regions [][]byte
	if t.mipmap && x == 0 && y == 0 && width == int(t.image.width) && height == int(t.image.height) {
		regions = mipChain(pixels, width, height)
	} else {
		regions = [][]byte{pixels[:width*height*4]}
	}
	size := 0
	for _, r := range regions {
		size += len(r)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	staging, err := newBuffer(d.ctx, size, vk.BufferUsageTransferSrcBit)
	if err != nil {
		return err
	}
	defer staging.destroy(d.ctx)

	cb, err := beginSingleUse(d.ctx)
	if err != nil {
		return err
	}
	from := vk.ImageLayoutShaderReadOnlyOptimal
	if fresh {
		from = vk.ImageLayoutUndefined
	}
	transitionImage(cb, t.image.handle, t.image.levels, from, vk.ImageLayoutTransferDstOptimal)

	copies := make([]vk.BufferImageCopy, len(regions))
	offset := 0
	w, h := width, height
	for level, r := range regions {
		copy(staging.data[offset:], r)
		copies[level] = vk.BufferImageCopy{
			BufferOffset: vk.DeviceSize(offset),
			ImageSubresource: vk.ImageSubresourceLayers{
				AspectMask:     vk.ImageAspectFlags(vk.ImageAspectColorBit),
				MipLevel:       uint32(level),
				BaseArrayLayer: 0,
				LayerCount:     1,
			},
			ImageOffset: vk.Offset3D{X: int32(x), Y: int32(y)},
			ImageExtent: vk.Extent3D{Width: uint32(w), Height: uint32(h), Depth: 1},
		}
		offset += len(r)
		w, h = maxInt(w/2, 1), maxInt(h/2, 1)
	}
	vk.CmdCopyBufferToImage(cb, staging.handle, t.image.handle, vk.ImageLayoutTransferDstOptimal, uint32(len(copies)), copies)
	transitionImage(cb, t.image.handle, t.image.levels, vk.ImageLayoutTransferDstOptimal, vk.ImageLayoutShaderReadOnlyOptimal)
	return endSingleUse(d.ctx, cb)
}

func (d *Device) createTexture(tex *metadata.Texture, pixels []byte, mipmap bool) error {
	if err := checkPixels(tex, pixels); err != nil {
		return err
	}
	if int(tex.Width) > d.caps.MaxTextureSize || int(tex.Height) > d.caps.MaxTextureSize {
		return fmt.Errorf("texture '%s': %dx%d exceeds the maximum size %d", tex.Name, tex.Width, tex.Height, d.caps.MaxTextureSize)
	}
	if tex.Handle != 0 {
		d.DestroyTexture(tex)
	}

	clamp := tex.Repeat == metadata.TextureRepeatClampToEdge || tex.HasFlag(metadata.TextureFlagClampToEdge)
	t, err := d.newTexture(tex.Width, tex.Height, mipmap, clamp)
	if err != nil {
		return fmt.Errorf("texture '%s': %w", tex.Name, err)
	}
	if err := d.uploadTexture(t, 0, 0, int(tex.Width), int(tex.Height), pixels, true); err != nil {
		t.destroy(d.ctx, d.descriptorPool)
		return fmt.Errorf("texture '%s': %w", tex.Name, err)
	}

	d.mu.Lock()
	tex.Handle = d.handles.Acquire(t)
	d.mu.Unlock()
	return nil
}

func (d *Device) CreateTexture(tex *metadata.Texture, pixels []byte) error {
	return d.createTexture(tex, pixels, tex.HasFlag(metadata.TextureFlagMipmap))
}

func (d *Device) CreateTextureEx(tex *metadata.Texture, pixels []byte) error {
	return d.createTexture(tex, pixels, true)
}

func (d *Device) UpdateTexture(tex *metadata.Texture, x, y, width, height int, pixels []byte) error {
	t := d.lookupTexture(tex.Handle)
	if t == nil {
		return fmt.Errorf("texture '%s' was not created", tex.Name)
	}
	if len(pixels) < width*height*4 {
		return fmt.Errorf("texture '%s': need %d bytes for a %dx%d update, got %d", tex.Name, width*height*4, width, height, len(pixels))
	}
	if x < 0 || y < 0 || x+width > int(t.image.width) || y+height > int(t.image.height) {
		return fmt.Errorf("texture '%s': update %d,%d %dx%d is out of bounds", tex.Name, x, y, width, height)
	}
	return d.uploadTexture(t, x, y, width, height, pixels, false)
}

/**
 * @brief Releases the texture handle at once. The image itself goes away
 * when the frame that may still sample it has finished.
 */
func (d *Device) DestroyTexture(tex *metadata.Texture) {
	if tex.Handle == 0 {
		return
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if t, ok := d.handles.Owner(tex.Handle).(*texture); ok {
		// between frames the last submitted frame may still sample it
		target := d.frameIndex
		if !d.recording {
			target = (d.frameIndex + framesInFlight - 1) % framesInFlight
		}
		pool := d.descriptorPool
		f := d.frames[target]
		f.garbage = append(f.garbage, func(c *context) {
			t.destroy(c, pool)
		})
	}
	_ = d.handles.Release(tex.Handle)
	tex.Handle = 0
}

func (d *Device) lookupTexture(handle uint32) *texture {
	d.mu.Lock()
	defer d.mu.Unlock()
	t, _ := d.handles.Owner(handle).(*texture)
	return t
}
