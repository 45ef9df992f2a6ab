package vulkan

import (
	"testing"

	"github.com/go-gl/mathgl/mgl32"
	vk "github.com/goki/vulkan"
	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func TestKeyFor_OpaqueDefaults(t *testing.T) {
	key := keyFor(device.PipelineGeneric, &device.State{Bits: metadata.DepthMaskTrue, Cull: metadata.CullFrontSided})

	assert.False(t, key.dlight)
	assert.False(t, key.blend)
	assert.Equal(t, vk.BlendFactorOne, key.src)
	assert.Equal(t, vk.BlendFactorZero, key.dst)
	assert.True(t, key.depthWrite)
	assert.True(t, key.depthTest)
	assert.False(t, key.depthEqual)
	assert.Equal(t, vk.CullModeFrontBit, key.cull)
}

func TestKeyFor_BlendAndDepthBits(t *testing.T) {
	state := &device.State{
		Bits: metadata.SrcBlendSrcAlpha | metadata.DstBlendOneMinusSrcAlpha |
			metadata.DepthFuncEqual | metadata.DepthTestDisable | metadata.PolyModeLine | metadata.PolygonOffset,
		Cull: metadata.CullTwoSided,
	}
	key := keyFor(device.PipelineDynamicLight, state)

	assert.True(t, key.dlight)
	assert.True(t, key.blend)
	assert.Equal(t, vk.BlendFactorSrcAlpha, key.src)
	assert.Equal(t, vk.BlendFactorOneMinusSrcAlpha, key.dst)
	assert.True(t, key.depthEqual)
	assert.False(t, key.depthTest)
	assert.False(t, key.depthWrite)
	assert.True(t, key.line)
	assert.True(t, key.offset)
	assert.Equal(t, vk.CullModeNone, key.cull)

	// identical state maps onto the same cached pipeline
	assert.Equal(t, key, keyFor(device.PipelineDynamicLight, state))
}

func TestCullMode_MirrorSwapsFaces(t *testing.T) {
	assert.Equal(t, vk.CullModeFrontBit, cullMode(metadata.CullFrontSided, false))
	assert.Equal(t, vk.CullModeBackBit, cullMode(metadata.CullFrontSided, true))
	assert.Equal(t, vk.CullModeBackBit, cullMode(metadata.CullBackSided, false))
	assert.Equal(t, vk.CullModeFrontBit, cullMode(metadata.CullBackSided, true))
	assert.Equal(t, vk.CullModeNone, cullMode(metadata.CullTwoSided, true))
}

func TestBlendFactors(t *testing.T) {
	assert.Equal(t, vk.BlendFactorZero, srcFactor(metadata.SrcBlendZero))
	assert.Equal(t, vk.BlendFactorDstColor, srcFactor(metadata.SrcBlendDstColor))
	assert.Equal(t, vk.BlendFactorSrcAlphaSaturate, srcFactor(metadata.SrcBlendAlphaSaturate))
	assert.Equal(t, vk.BlendFactorOne, srcFactor(metadata.SrcBlendOne))

	assert.Equal(t, vk.BlendFactorOne, dstFactor(metadata.DstBlendOne))
	assert.Equal(t, vk.BlendFactorOneMinusSrcColor, dstFactor(metadata.DstBlendOneMinusSrcColor))
	assert.Equal(t, vk.BlendFactorZero, dstFactor(metadata.DstBlendZero))
}

func TestShaderFlags(t *testing.T) {
	flags := shaderFlags(&device.State{
		Bits:     metadata.AlphaTestGE80,
		Textures: [2]uint32{3, 0},
		TexEnv:   metadata.CollapseModulate,
	})
	assert.Equal(t, [4]int32{1, 0, 1, 3}, flags)

	flags = shaderFlags(&device.State{
		Bits:     metadata.AlphaTestGT0,
		Textures: [2]uint32{3, 4},
		TexEnv:   metadata.CollapseAdd,
	})
	assert.Equal(t, [4]int32{1, 1, 2, 1}, flags)

	assert.Equal(t, int32(2), shaderFlags(&device.State{Bits: metadata.AlphaTestLT80})[3])
}

func TestModelViewProjection_FlipsYAndHalvesDepth(t *testing.T) {
	mvp := modelViewProjection(math.Mat4Identity, math.Mat4Identity)

	near := mvp.Mul4x1(math.Vec4{0, 1, -1, 1})
	assert.InDelta(t, -1, near[1], 1e-6)
	assert.InDelta(t, 0, near[2], 1e-6)

	far := mvp.Mul4x1(math.Vec4{0, 0, 1, 1})
	assert.InDelta(t, 1, far[2], 1e-6)
}

func TestModelClipPlane_MatchesEyeSpaceDistance(t *testing.T) {
	modelView := mgl32.Translate3D(0, 0, -10).Mul4(mgl32.HomogRotate3DZ(0.7))
	eye := math.Vec4{0, 0, 1, 5}
	plane := modelClipPlane(eye, modelView)

	for _, p := range []math.Vec4{{0, 0, 6, 1}, {3, -2, 1, 1}, {-7, 4, 12, 1}} {
		want := eye.Dot(modelView.Mul4x1(p))
		assert.InDelta(t, want, plane.Dot(p), 1e-4)
	}
}
