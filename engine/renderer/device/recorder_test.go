package device

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func texture(name string) *metadata.Texture {
	return &metadata.Texture{Name: name, Width: 2, Height: 2}
}

func TestRecorder_TextureHandlesAreRecycled(t *testing.T) {
	r := NewRecorder(false)
	pixels := make([]byte, 16)

	a, b := texture("a"), texture("b")
	require.NoError(t, r.CreateTexture(a, pixels))
	require.NoError(t, r.CreateTextureEx(b, pixels))
	assert.NotZero(t, a.Handle)
	assert.NotEqual(t, a.Handle, b.Handle)

	freed := a.Handle
	r.DestroyTexture(a)
	assert.Zero(t, a.Handle)

	c := texture("c")
	require.NoError(t, r.CreateTexture(c, pixels))
	assert.Equal(t, freed, c.Handle)

	assert.Error(t, r.CreateTexture(texture("short"), pixels[:4]))
}

func TestRecorder_DrawInheritsLatchedState(t *testing.T) {
	r := NewRecorder(false)
	geo := &Geometry{
		XYZ:     []math.Vec3{{0, 0, 0}, {1, 0, 0}, {0, 1, 0}},
		Indexes: []uint32{0, 1, 2},
	}

	r.ApplyState(&State{Textures: [2]uint32{7, 0}})
	r.Draw(PipelineGeneric, geo)
	// later changes to the caller's buffers are not seen by the recording
	geo.Indexes[0] = 2

	draws := r.Draws()
	require.Len(t, draws, 1)
	assert.Equal(t, uint32(7), draws[0].State.Textures[0])
	assert.Equal(t, []uint32{0, 1, 2}, draws[0].Geometry.Indexes)
	assert.Equal(t, []Op{OpApplyState, OpDraw}, r.Ops())

	r.Reset()
	assert.Empty(t, r.Calls())
}

func TestRecorder_ReadPixelsUsesClearPattern(t *testing.T) {
	r := NewRecorder(false)
	r.SetClearPattern(9)

	pixels, err := r.ReadPixels(0, 0, 2, 3)
	require.NoError(t, err)
	assert.Len(t, pixels, 24)
	for _, p := range pixels {
		assert.Equal(t, byte(9), p)
	}

	_, err = r.ReadPixels(0, 0, 0, 3)
	assert.Error(t, err)
}
