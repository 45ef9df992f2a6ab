package tess

import (
	"slices"
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func TestEvalWaveForm(t *testing.T) {
	sin := metadata.WaveForm{Func: metadata.GenFuncSin, Base: 0, Amplitude: 1, Frequency: 1}
	assert.InDelta(t, 1, EvalWaveForm(&sin, 0.25), 1e-4)
	assert.InDelta(t, 0, EvalWaveForm(&sin, 0), 1e-4)

	square := metadata.WaveForm{Func: metadata.GenFuncSquare, Base: 0.5, Amplitude: 0.5, Frequency: 1}
	assert.InDelta(t, 1, EvalWaveForm(&square, 0.25), 1e-6)
	assert.InDelta(t, 0, EvalWaveForm(&square, 0.75), 1e-6)

	big := metadata.WaveForm{Func: metadata.GenFuncSin, Base: 1, Amplitude: 4, Frequency: 1}
	assert.Equal(t, float32(1), EvalWaveFormClamped(&big, 0.25))
}

func TestNoiseIsDeterministic(t *testing.T) {
	a := NoiseGet4f(0, 0, 0, 1.5)
	b := NoiseGet4f(0, 0, 0, 1.5)
	assert.Equal(t, a, b)
	assert.GreaterOrEqual(t, a, float32(-1))
	assert.LessOrEqual(t, a, float32(1))
}

func TestScrollOffsetWraps(t *testing.T) {
	assert.Equal(t, float32(0.25), ScrollOffset(1, 3.25))
	assert.Equal(t, float32(0.75), ScrollOffset(-1, 0.25))

	// long uptimes stay in range
	for _, tm := range []float64{1e7, 1e9 + 0.999999999, 86400 * 365} {
		off := ScrollOffset(0.37, tm)
		assert.GreaterOrEqual(t, off, float32(0))
		assert.Less(t, off, float32(1))
	}
}

func TestDiffuseAmbientForBackFacingVertices(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("diffuse")
	shader.Stages[0].RGBGen = metadata.CGenLightingDiffuse
	b.Begin(shader, 0)

	b.Ctx.Entity = &metadata.SceneEntity{
		LightDir:        math.Vec3{0, 0, 1},
		AmbientLight:    math.Vec3{10, 20, 30},
		AmbientLightInt: [4]uint8{10, 20, 30, 255},
		DirectedLight:   math.Vec3{100, 100, 100},
	}
	b.NumVertexes = 3
	b.Normal[0] = math.Vec3{1, 0, 0}
	b.Normal[1] = math.Vec3{0, 0, 1}
	b.Normal[2] = math.Vec3{0, 0, -1}

	b.ComputeColors(shader.Stages[0])
	assert.Equal(t, [4]uint8{10, 20, 30, 255}, b.Colors[0])
	assert.Equal(t, [4]uint8{110, 120, 130, 255}, b.Colors[1])
	assert.Equal(t, [4]uint8{10, 20, 30, 255}, b.Colors[2])
}

func TestAlphaIdentityKeepsVertexAlpha(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("vertex")
	stage := shader.Stages[0]
	stage.RGBGen = metadata.CGenVertex
	b.Begin(shader, 0)
	b.Ctx.Settings.IdentityLight = 1

	b.NumVertexes = 1
	b.VertexColors[0] = [4]uint8{1, 2, 3, 4}
	b.ComputeColors(stage)
	assert.Equal(t, [4]uint8{1, 2, 3, 4}, b.Colors[0])

	b.Ctx.Settings.IdentityLight = 0.5
	b.ComputeColors(stage)
	assert.Equal(t, uint8(255), b.Colors[0][3])
}

func TestProjectDlightSubset(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	light := &metadata.Dlight{Color: math.Vec3{1, 1, 1}, Radius: 100}
	b.BeginLit(testShader("lit"), 0, light)

	near := []math.Vec3{{-10, -10, -10}, {10, -10, -10}, {0, 10, -10}}
	far := []math.Vec3{{1000, -10, -10}, {1010, -10, -10}, {1000, 10, -10}}
	for i, v := range append(near, far...) {
		b.XYZ[i] = v
		b.Normal[i] = math.Vec3{0, 0, 1}
	}
	b.NumVertexes = 6
	copy(b.Indexes, []uint32{0, 1, 2, 3, 4, 5})
	b.NumIndexes = 6

	n := b.ProjectDlight()
	require.Equal(t, 3, n)
	assert.Equal(t, []uint32{0, 1, 2}, b.DlightIndexes[:n])
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, b.Colors[0])
}

func TestProjectDlightBackFacing(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	b.BeginLit(testShader("lit"), 0, &metadata.Dlight{Color: math.Vec3{1, 1, 1}, Radius: 100})

	for i := 0; i < 3; i++ {
		b.XYZ[i] = math.Vec3{float32(i), 0, -10}
		b.Normal[i] = math.Vec3{0, 0, -1}
	}
	b.NumVertexes = 3
	copy(b.Indexes, []uint32{0, 1, 2})
	b.NumIndexes = 3

	assert.Equal(t, 0, b.ProjectDlight())
}

func TestDeformText(t *testing.T) {
	b, _ := newTestBuffer(64, 96)
	shader := testShader("text")
	shader.Deforms = []metadata.DeformStage{{Deformation: metadata.DeformText0}}
	b.Begin(shader, 0)
	b.Ctx.Text[0] = "AB C"

	require.NoError(t, b.AddQuadStampExt(math.Vec3{}, math.Vec3{0, 8, 0}, math.Vec3{0, 0, 8}, [4]uint8{255, 255, 255, 255}, 0, 0, 1, 1))
	b.DeformVertexes()

	assert.Equal(t, 12, b.NumVertexes)
	assert.Equal(t, 18, b.NumIndexes)
	// 'A' is row 4, column 1 of the glyph grid
	assert.InDelta(t, 0.0625, b.TexCoords[0][0][0], 1e-6)
	assert.InDelta(t, 0.25, b.TexCoords[0][0][1], 1e-6)
}

func TestAutospriteKeepsCenter(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("sprite")
	shader.Deforms = []metadata.DeformStage{{Deformation: metadata.DeformAutosprite}}
	b.Begin(shader, 0)

	origin := math.Vec3{5, 5, 5}
	require.NoError(t, b.AddQuadStamp(origin, math.Vec3{2, 0, 0}, math.Vec3{0, 2, 0}, [4]uint8{9, 9, 9, 9}))
	b.DeformVertexes()

	require.Equal(t, 4, b.NumVertexes)
	require.Equal(t, 6, b.NumIndexes)
	var mid math.Vec3
	for i := 0; i < 4; i++ {
		mid = mid.Add(b.XYZ[i])
	}
	mid = mid.Mul(0.25)
	assert.InDelta(t, 5, mid[0], 1e-4)
	assert.InDelta(t, 5, mid[1], 1e-4)
	assert.InDelta(t, 5, mid[2], 1e-4)
	assert.Equal(t, [4]uint8{9, 9, 9, 9}, b.VertexColors[0])
}

func gridSurface(lodOrigin math.Vec3) *metadata.SurfaceGrid {
	g := &metadata.SurfaceGrid{
		LodOrigin:      lodOrigin,
		Width:          3,
		Height:         3,
		WidthLodError:  []float32{0, 5, 0},
		HeightLodError: []float32{0, 5, 0},
		Verts:          make([]metadata.DrawVert, 9),
	}
	for i := range g.Verts {
		g.Verts[i].XYZ = math.Vec3{float32(i % 3), float32(i / 3), 0}
	}
	return g
}

func TestGridLevelOfDetail(t *testing.T) {
	b, _ := newTestBuffer(100, 100)
	b.Begin(testShader("grid"), 0)

	w, h := b.GridLodTables(gridSurface(math.Vec3{1000, 0, 0}))
	assert.Equal(t, []int{0, 2}, w)
	assert.Equal(t, []int{0, 2}, h)

	w, _ = b.GridLodTables(gridSurface(math.Vec3{10, 0, 0}))
	assert.Equal(t, []int{0, 1, 2}, w)

	require.NoError(t, b.TessellateSurface(gridSurface(math.Vec3{1000, 0, 0})))
	assert.Equal(t, 4, b.NumVertexes)
	assert.Equal(t, 6, b.NumIndexes)
	assert.Equal(t, math.Vec3{2, 2, 0}, b.XYZ[3])
}

func TestGridSplitsAcrossBatches(t *testing.T) {
	b, rec := newTestBuffer(6, 18)
	b.Begin(testShader("grid"), 0)

	require.NoError(t, b.TessellateSurface(gridSurface(math.Vec3{10, 0, 0})))
	require.NoError(t, b.End())

	// room for two rows of three vertexes per batch
	draws := rec.Draws()
	require.Len(t, draws, 2)
	total := 0
	for _, d := range draws {
		total += len(d.Geometry.Indexes)
	}
	assert.Equal(t, 24, total)
}

func TestMeshLerp(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	b.Begin(testShader("mesh"), 0)
	b.Ctx.Entity = &metadata.SceneEntity{E: metadata.RefEntity{Frame: 1, OldFrame: 0, Backlerp: 0.5}}

	mesh := &metadata.SurfaceMD3{
		NumVerts:  1,
		NumFrames: 2,
		Vertexes: []metadata.MD3Vertex{
			{XYZ: [3]int16{0, 0, 0}},
			{XYZ: [3]int16{128, 0, 64}},
		},
		ST:      [][2]float32{{0.5, 0.5}},
		Indexes: []uint32{0, 0, 0},
	}
	require.NoError(t, b.TessellateSurface(mesh))
	assert.InDelta(t, 1, b.XYZ[0][0], 1e-5)
	assert.InDelta(t, 0.5, b.XYZ[0][2], 1e-5)
	assert.InDelta(t, 1, b.Normal[0].Len(), 1e-4)

	// out of range frames clamp unless wrapping
	assert.Equal(t, 1, clampFrame(5, 2, 0))
	assert.Equal(t, 1, clampFrame(5, 2, metadata.RF_WRAP_FRAMES))
}

func TestScrollOffsetNegativeSpeedsAndHugeTimes(t *testing.T) {
	for _, speed := range []float32{-0.37, -1e-3, -123.456, 0.5, 1e4} {
		for _, tm := range []float64{0, 0.25, 1e7, 1e9 + 0.5, 3.1e10, 86400 * 365 * 20} {
			off := ScrollOffset(speed, tm)
			assert.GreaterOrEqual(t, off, float32(0), "speed %v time %v", speed, tm)
			assert.Less(t, off, float32(1), "speed %v time %v", speed, tm)
		}
	}
	assert.InDelta(t, 0.5, ScrollOffset(-0.5, 1), 1e-6)
}

// texModBuffer prepares one vertex per entry of st with the base texture
// coordinates set.
func texModBuffer(st [][2]float32, mods ...metadata.TexModInfo) (*Buffer, *metadata.ShaderStage) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("tcmod")
	stage := shader.Stages[0]
	stage.Bundle[0].TexMods = mods
	b.Begin(shader, 0)
	b.NumVertexes = len(st)
	copy(b.TexCoords[0], st)
	return b, stage
}

func TestTexModRotate(t *testing.T) {
	st := [][2]float32{{0, 0}, {1, 0}, {0.5, 0.5}}
	b, stage := texModBuffer(st, metadata.TexModInfo{Type: metadata.TModRotate, RotateSpeed: 90})
	b.ShaderTime = 1
	b.ComputeTexCoords(stage)

	out := b.STs[0]
	// a quarter turn around the texture center
	assert.InDelta(t, 0, out[0][0], 1e-5)
	assert.InDelta(t, 1, out[0][1], 1e-5)
	assert.InDelta(t, 0, out[1][0], 1e-5)
	assert.InDelta(t, 0, out[1][1], 1e-5)
	assert.InDelta(t, 0.5, out[2][0], 1e-5)
	assert.InDelta(t, 0.5, out[2][1], 1e-5)
	// the source coordinates are untouched
	assert.Equal(t, [2]float32{1, 0}, b.TexCoords[0][1])
}

func TestTexModStretch(t *testing.T) {
	st := [][2]float32{{0, 0}, {1, 1}, {0.5, 0.5}}
	wave := metadata.WaveForm{Func: metadata.GenFuncSin, Base: 2, Amplitude: 0, Frequency: 1}
	b, stage := texModBuffer(st, metadata.TexModInfo{Type: metadata.TModStretch, Wave: wave})
	b.ComputeTexCoords(stage)

	out := b.STs[0]
	assert.InDelta(t, 0.25, out[0][0], 1e-6)
	assert.InDelta(t, 0.25, out[0][1], 1e-6)
	assert.InDelta(t, 0.75, out[1][0], 1e-6)
	assert.InDelta(t, 0.75, out[1][1], 1e-6)
	assert.InDelta(t, 0.5, out[2][0], 1e-6)

	// a zero scale leaves the coordinates alone
	wave.Base = 0
	b, stage = texModBuffer(st, metadata.TexModInfo{Type: metadata.TModStretch, Wave: wave})
	b.ComputeTexCoords(stage)
	assert.Equal(t, [2]float32{1, 1}, b.STs[0][1])
}

func TestTexModTransformAppliesInOrder(t *testing.T) {
	st := [][2]float32{{1, 1}, {0, 2}}
	b, stage := texModBuffer(st,
		metadata.TexModInfo{Type: metadata.TModTransform, Matrix: [2][2]float32{{1, 2}, {3, 4}}, Translate: [2]float32{5, 6}},
		metadata.TexModInfo{Type: metadata.TModScale, Scale: [2]float32{0.5, 0.25}},
	)
	b.ComputeTexCoords(stage)

	out := b.STs[0]
	// s' = s*m00 + t*m10 + tx, t' = s*m01 + t*m11 + ty, then scaled
	assert.InDelta(t, 4.5, out[0][0], 1e-6)
	assert.InDelta(t, 3, out[0][1], 1e-6)
	assert.InDelta(t, 5.5, out[1][0], 1e-6)
	assert.InDelta(t, 3.5, out[1][1], 1e-6)
}

func TestFogModulatesVertexColors(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("fogged")
	stage := shader.Stages[0]
	stage.AdjustColorsForFog = metadata.ACFFModulateRGB
	b.Ctx.Fogs = []metadata.Fog{{}, {TCScale: 0.01}}
	b.Begin(shader, 1)

	// at the eye, far inside the fog, and a little way in
	b.NumVertexes = 3
	b.XYZ[0] = math.Vec3{0, 0, 0}
	b.XYZ[1] = math.Vec3{0, 0, -1000}
	b.XYZ[2] = math.Vec3{0, 0, -2}
	b.ComputeColors(stage)

	assert.Equal(t, [4]uint8{255, 255, 255, 255}, b.Colors[0])
	assert.Equal(t, [4]uint8{0, 0, 0, 255}, b.Colors[1])
	assert.InDelta(t, 154, b.Colors[2][0], 1)
	assert.Equal(t, b.Colors[2][0], b.Colors[2][2])
	assert.Equal(t, uint8(255), b.Colors[2][3])

	// alpha only
	stage.AdjustColorsForFog = metadata.ACFFModulateAlpha
	b.ComputeColors(stage)
	assert.Equal(t, [4]uint8{255, 255, 255, 0}, b.Colors[1])

	// outside any fog volume nothing changes
	b.Begin(shader, 0)
	b.NumVertexes = 2
	b.XYZ[1] = math.Vec3{0, 0, -1000}
	b.ComputeColors(stage)
	assert.Equal(t, [4]uint8{255, 255, 255, 255}, b.Colors[1])
}

func TestAutosprite2FacesViewerAlongLongAxis(t *testing.T) {
	b, _ := newTestBuffer(16, 16)
	shader := testShader("beam")
	shader.Deforms = []metadata.DeformStage{{Deformation: metadata.DeformAutosprite2}}
	b.Begin(shader, 0)

	// a 2x10 quad edge on to a viewer looking down +X
	require.NoError(t, b.AddQuadStamp(math.Vec3{0, 0, 5}, math.Vec3{1, 0, 0}, math.Vec3{0, 0, 5}, [4]uint8{255, 255, 255, 255}))
	b.DeformVertexes()

	require.Equal(t, 4, b.NumVertexes)
	var zs []float32
	for i := 0; i < 4; i++ {
		v := b.XYZ[i]
		assert.InDelta(t, 0, v[0], 1e-4)
		assert.InDelta(t, 1, math32.Abs(v[1]), 1e-4)
		zs = append(zs, v[2])
	}
	// the long axis keeps its ends
	slices.Sort(zs)
	assert.InDeltaSlice(t, []float32{0, 0, 10, 10}, zs, 1e-4)
}
