package vulkan

import (
	"encoding/binary"
	gomath "math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
)

func floatAt(b []byte, at int) float32 {
	return gomath.Float32frombits(binary.LittleEndian.Uint32(b[at:]))
}

func TestPackVertices_Layout(t *testing.T) {
	geo := &device.Geometry{
		XYZ:     []math.Vec3{{1, 2, 3}, {4, 5, 6}},
		Normals: []math.Vec3{{0, 1, 0}, {1, 0, 0}},
		Colors:  [][4]uint8{{10, 20, 30, 40}, {50, 60, 70, 80}},
	}
	geo.TexCoords[0] = [][2]float32{{0.25, 0.5}, {0.75, 1}}
	geo.TexCoords[1] = [][2]float32{{2, 3}, {4, 5}}

	out := packVertices(geo)
	require.Len(t, out, 2*vertexStride)

	v := out[vertexStride:]
	assert.Equal(t, float32(4), floatAt(v, 0))
	assert.Equal(t, float32(6), floatAt(v, 8))
	assert.Equal(t, float32(1), floatAt(v, 12))
	assert.Equal(t, []byte{50, 60, 70, 80}, v[24:28])
	assert.Equal(t, float32(0.75), floatAt(v, 28))
	assert.Equal(t, float32(1), floatAt(v, 32))
	assert.Equal(t, float32(4), floatAt(v, 36))
	assert.Equal(t, float32(5), floatAt(v, 40))
}

func TestPackVertices_Defaults(t *testing.T) {
	out := packVertices(&device.Geometry{XYZ: []math.Vec3{{1, 1, 1}}})
	require.Len(t, out, vertexStride)

	assert.Equal(t, float32(0), floatAt(out, 12))
	assert.Equal(t, float32(1), floatAt(out, 20), "normal defaults to +Z")
	assert.Equal(t, []byte{255, 255, 255, 255}, out[24:28])
	assert.Equal(t, float32(0), floatAt(out, 28))
}

func TestPackIndexes(t *testing.T) {
	assert.Equal(t, []byte{1, 0, 0, 0, 0, 1, 0, 0}, packIndexes([]uint32{1, 256}))
}
