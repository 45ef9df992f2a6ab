package tess

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func testShader(name string) *metadata.Shader {
	return &metadata.Shader{
		Name:          name,
		LightingStage: -1,
		Sort:          metadata.SortOpaque,
		Stages: []*metadata.ShaderStage{{
			Active:    true,
			RGBGen:    metadata.CGenIdentity,
			AlphaGen:  metadata.AGenIdentity,
			StateBits: metadata.StateDefault,
			Bundle: [metadata.NUM_TEXTURE_BUNDLES]metadata.TextureBundle{
				{TCGen: metadata.TCGenTexture},
			},
		}},
	}
}

func newTestBuffer(maxVertexes, maxIndexes int) (*Buffer, *device.Recorder) {
	rec := device.NewRecorder(false)
	return New(maxVertexes, maxIndexes, rec), rec
}

func quadPoly(x float32) *metadata.SurfacePoly {
	return &metadata.SurfacePoly{Verts: []metadata.PolyVert{
		{XYZ: math.Vec3{x, 0, 0}, ST: [2]float32{0, 0}, Modulate: [4]uint8{255, 255, 255, 255}},
		{XYZ: math.Vec3{x + 1, 0, 0}, ST: [2]float32{1, 0}, Modulate: [4]uint8{255, 255, 255, 255}},
		{XYZ: math.Vec3{x + 1, 1, 0}, ST: [2]float32{1, 1}, Modulate: [4]uint8{255, 255, 255, 255}},
		{XYZ: math.Vec3{x, 1, 0}, ST: [2]float32{0, 1}, Modulate: [4]uint8{255, 255, 255, 255}},
	}}
}

func TestOverflowSplitsIntoBatches(t *testing.T) {
	b, rec := newTestBuffer(8, 12)
	b.Begin(testShader("split"), 0)

	for i := 0; i < 5; i++ {
		require.NoError(t, b.TessellateSurface(quadPoly(float32(i))))
	}
	require.NoError(t, b.End())

	draws := rec.Draws()
	// two quads fill a batch exactly
	assert.Len(t, draws, 3)
	assert.Equal(t, 3, b.Counters.Batches)
	assert.Equal(t, 2, b.Counters.Overflows)

	verts, indexes := 0, 0
	for _, d := range draws {
		verts += len(d.Geometry.XYZ)
		indexes += len(d.Geometry.Indexes)
		for _, idx := range d.Geometry.Indexes {
			assert.Less(t, int(idx), len(d.Geometry.XYZ))
		}
	}
	assert.Equal(t, 20, verts)
	assert.Equal(t, 30, indexes)
}

func TestOverflowSingleSurfaceTooLargeIsFatal(t *testing.T) {
	b, rec := newTestBuffer(8, 64)
	b.Begin(testShader("huge"), 0)

	verts := make([]metadata.PolyVert, 10)
	err := b.TessellateSurface(&metadata.SurfacePoly{Verts: verts})
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.True(t, errors.Is(err, core.ErrTessOverflow))
	assert.Empty(t, rec.Draws())
}

func TestOverflowKeepsLight(t *testing.T) {
	b, _ := newTestBuffer(4, 6)
	light := &metadata.Dlight{Radius: 100}
	b.BeginLit(testShader("lit"), 0, light)

	require.NoError(t, b.TessellateSurface(quadPoly(0)))
	require.NoError(t, b.TessellateSurface(quadPoly(1)))
	assert.Same(t, light, b.Light)
	assert.Equal(t, 4, b.NumVertexes)
}

func TestFaceIndexesAreRebased(t *testing.T) {
	b, _ := newTestBuffer(100, 100)
	b.Begin(testShader("face"), 0)

	face := &metadata.SurfaceFace{
		Plane:   math.NewPlane(math.Vec3{0, 0, 1}, 0),
		Verts:   make([]metadata.DrawVert, 3),
		Indexes: []uint32{0, 1, 2},
	}
	require.NoError(t, b.TessellateSurface(face))
	require.NoError(t, b.TessellateSurface(face))

	assert.Equal(t, []uint32{0, 1, 2, 3, 4, 5}, b.Indexes[:b.NumIndexes])
	assert.Equal(t, math.Vec3{0, 0, 1}, b.Normal[4])
}

func TestSkyDrawnOncePerView(t *testing.T) {
	b, rec := newTestBuffer(1000, 6000)
	sky := testShader("sky")
	sky.IsSky = true
	for i := range sky.Sky.OuterBox {
		sky.Sky.OuterBox[i] = &metadata.Texture{Handle: uint32(i + 1)}
	}

	for i := 0; i < 2; i++ {
		b.Begin(sky, 0)
		require.NoError(t, b.TessellateSurface(quadPoly(0)))
		require.NoError(t, b.End())
	}
	assert.Len(t, rec.Draws(), 6)

	b.ResetFrame()
	b.Begin(sky, 0)
	require.NoError(t, b.TessellateSurface(quadPoly(0)))
	require.NoError(t, b.End())

	begins := 0
	for _, op := range rec.Ops() {
		if op == device.OpBeginSkyAndClouds {
			begins++
		}
	}
	assert.Equal(t, 2, begins)
	assert.Len(t, rec.Draws(), 12)
}

func TestSkyVecCorners(t *testing.T) {
	v, st := MakeSkyVec(0, 0, 0, 1.75)
	assert.InDelta(t, 1, v[0], 1e-5)
	assert.InDelta(t, 0, v[1], 1e-5)
	assert.InDelta(t, 0, v[2], 1e-5)
	assert.InDelta(t, 0.5, st[0], 1e-5)
	assert.InDelta(t, 0.5, st[1], 1e-5)

	_, st = MakeSkyVec(-1, 1, 4, 1.75)
	assert.InDelta(t, 1.0/256, st[0], 1e-6)
	assert.InDelta(t, 1.0/256, st[1], 1e-6)
}

// triangleSoup expands the indexed draws into one flat list of triangle
// corners, which is what reaches the screen regardless of batching.
func triangleSoup(draws []device.Call) (xyz []math.Vec3, st [][2]float32, colors [][4]uint8) {
	for _, d := range draws {
		for _, idx := range d.Geometry.Indexes {
			xyz = append(xyz, d.Geometry.XYZ[idx])
			st = append(st, d.Geometry.TexCoords[0][idx])
			colors = append(colors, d.Geometry.Colors[idx])
		}
	}
	return xyz, st, colors
}

func TestFlushedBatchesMatchSingleBatch(t *testing.T) {
	run := func(maxVertexes, maxIndexes int) []device.Call {
		b, rec := newTestBuffer(maxVertexes, maxIndexes)
		b.Begin(testShader("identity"), 0)
		for i := 0; i < 7; i++ {
			require.NoError(t, b.TessellateSurface(quadPoly(float32(i)*3)))
		}
		require.NoError(t, b.End())
		return rec.Draws()
	}

	split := run(8, 12)
	whole := run(64, 96)
	require.Len(t, split, 4)
	require.Len(t, whole, 1)

	splitXYZ, splitST, splitColors := triangleSoup(split)
	wholeXYZ, wholeST, wholeColors := triangleSoup(whole)
	assert.Len(t, wholeXYZ, 42)
	assert.Equal(t, wholeXYZ, splitXYZ)
	assert.Equal(t, wholeST, splitST)
	assert.Equal(t, wholeColors, splitColors)
	for _, d := range split {
		assert.Equal(t, whole[0].State, d.State)
	}
}
