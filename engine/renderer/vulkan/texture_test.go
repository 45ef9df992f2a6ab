package vulkan

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func TestMipChain_BoxFilter(t *testing.T) {
	pixels := []byte{
		0, 0, 0, 255, 100, 100, 100, 255,
		200, 200, 200, 255, 101, 101, 101, 255,
	}
	levels := mipChain(pixels, 2, 2)

	require.Len(t, levels, 2)
	assert.Equal(t, pixels, levels[0])
	// (0+100+200+101+2)/4 rounds to 100
	assert.Equal(t, []byte{100, 100, 100, 255}, levels[1])
}

func TestMipChain_NonSquare(t *testing.T) {
	levels := mipChain(make([]byte, 8*2*4), 8, 2)

	require.Len(t, levels, 4)
	assert.Len(t, levels[1], 4*1*4)
	assert.Len(t, levels[2], 2*1*4)
	assert.Len(t, levels[3], 1*1*4)
}

func TestCheckPixels(t *testing.T) {
	tex := &metadata.Texture{Name: "lightmap", Width: 4, Height: 2}
	assert.NoError(t, checkPixels(tex, make([]byte, 32)))
	assert.Error(t, checkPixels(tex, make([]byte, 31)))
	assert.Error(t, checkPixels(&metadata.Texture{Name: "empty"}, nil))
}
