package vulkan

import (
	"math"
	"testing"

	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"
)

func TestChooseSurfaceFormat(t *testing.T) {
	preferred := vk.SurfaceFormat{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}
	other := vk.SurfaceFormat{Format: vk.FormatR8g8b8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}

	assert.Equal(t, preferred, chooseSurfaceFormat([]vk.SurfaceFormat{other, preferred}))
	assert.Equal(t, other, chooseSurfaceFormat([]vk.SurfaceFormat{other}))
	assert.Equal(t, preferred, chooseSurfaceFormat([]vk.SurfaceFormat{{Format: vk.FormatUndefined}}))
}

func TestChoosePresentMode(t *testing.T) {
	assert.Equal(t, vk.PresentModeMailbox, choosePresentMode([]vk.PresentMode{vk.PresentModeFifo, vk.PresentModeMailbox}))
	assert.Equal(t, vk.PresentModeFifo, choosePresentMode([]vk.PresentMode{vk.PresentModeImmediate}))
}

func TestChooseExtent(t *testing.T) {
	fixed := vk.SurfaceCapabilities{CurrentExtent: vk.Extent2D{Width: 800, Height: 600}}
	assert.Equal(t, vk.Extent2D{Width: 800, Height: 600}, chooseExtent(fixed, 1024, 768))

	free := vk.SurfaceCapabilities{
		CurrentExtent:  vk.Extent2D{Width: math.MaxUint32, Height: math.MaxUint32},
		MinImageExtent: vk.Extent2D{Width: 64, Height: 64},
		MaxImageExtent: vk.Extent2D{Width: 1920, Height: 1080},
	}
	assert.Equal(t, vk.Extent2D{Width: 1920, Height: 64}, chooseExtent(free, 4000, 10))
	assert.Equal(t, vk.Extent2D{Width: 640, Height: 480}, chooseExtent(free, 640, 480))
}

func TestClampUint32_ZeroMaxIsUnbounded(t *testing.T) {
	assert.Equal(t, uint32(5000), clampUint32(5000, 1, 0))
	assert.Equal(t, uint32(1), clampUint32(0, 1, 0))
}

func TestPickQueueFamilies(t *testing.T) {
	g, p, ok := pickQueueFamilies([]bool{true, false, true}, []bool{false, true, true})
	assert.True(t, ok)
	assert.Equal(t, uint32(2), g, "a family doing both wins")
	assert.Equal(t, uint32(2), p)

	g, p, ok = pickQueueFamilies([]bool{true, false}, []bool{false, true})
	assert.True(t, ok)
	assert.Equal(t, uint32(0), g)
	assert.Equal(t, uint32(1), p)

	_, _, ok = pickQueueFamilies([]bool{false, false}, []bool{true, true})
	assert.False(t, ok)
}

func TestViewportFor_FlipsOrigin(t *testing.T) {
	vp, scissor := viewportFor(10, 20, 300, 200, 600, 0, 1)

	assert.Equal(t, float32(10), vp.X)
	assert.Equal(t, float32(380), vp.Y)
	assert.Equal(t, float32(300), vp.Width)
	assert.Equal(t, float32(200), vp.Height)
	assert.Equal(t, vk.Offset2D{X: 10, Y: 380}, scissor.Offset)
	assert.Equal(t, vk.Extent2D{Width: 300, Height: 200}, scissor.Extent)

	// rectangles above the framebuffer get a clamped scissor
	_, scissor = viewportFor(-5, 500, 100, 200, 600, 0, 1)
	assert.Equal(t, vk.Offset2D{X: 0, Y: 0}, scissor.Offset)
	assert.Equal(t, vk.Extent2D{Width: 95, Height: 100}, scissor.Extent)
}
