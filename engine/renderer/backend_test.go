package renderer

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/tess"
	"github.com/spaghettifunk/tessera/engine/renderer/views"
)

func backEndShader(name string, sortedIndex int) *metadata.Shader {
	return &metadata.Shader{
		Name:          name,
		SortedIndex:   sortedIndex,
		LightingStage: -1,
		Sort:          metadata.SortOpaque,
		Stages: []*metadata.ShaderStage{{
			Active:    true,
			RGBGen:    metadata.CGenExactVertex,
			AlphaGen:  metadata.AGenIdentity,
			StateBits: metadata.StateDefault,
			Bundle: [metadata.NUM_TEXTURE_BUNDLES]metadata.TextureBundle{
				{TCGen: metadata.TCGenTexture},
			},
		}},
	}
}

func newTestBackEnd(shaders ...*metadata.Shader) (*BackEnd, *device.Recorder) {
	rec := device.NewRecorder(false)
	buf := tess.New(1000, 6000, rec)
	lookup := func(i int) *metadata.Shader {
		if i < 0 || i >= len(shaders) {
			return shaders[0]
		}
		return shaders[i]
	}
	return NewBackEnd(rec, buf, lookup), rec
}

func triangleSurf() *metadata.SurfaceTriangles {
	white := [4]uint8{255, 255, 255, 255}
	return &metadata.SurfaceTriangles{
		Verts: []metadata.DrawVert{
			{XYZ: math.Vec3{0, 0, 0}, Color: white},
			{XYZ: math.Vec3{1, 0, 0}, Color: white},
			{XYZ: math.Vec3{0, 1, 0}, Color: white},
		},
		Indexes: []uint32{0, 1, 2},
	}
}

func worldViewParms() metadata.ViewParms {
	var p metadata.ViewParms
	p.ViewportWidth, p.ViewportHeight = 640, 480
	p.Or.Axis = math.IdentityAxis
	p.World.Axis = math.IdentityAxis
	p.World.ModelMatrix = math.Mat4Identity
	return p
}

func sceneEntity(renderFX int) *metadata.SceneEntity {
	ent := &metadata.SceneEntity{}
	ent.E.ReType = metadata.RTModel
	ent.E.Axis = math.IdentityAxis
	ent.E.RenderFX = renderFX
	return ent
}

func runCommands(t *testing.T, be *BackEnd, cmds ...commands.Command) {
	t.Helper()
	q := commands.NewQueue(1<<16, nil)
	for _, c := range cmds {
		require.True(t, q.Append(c))
	}
	require.NoError(t, be.ExecuteRenderCommands(q))
}

func countOps(ops []device.Op, op device.Op) int {
	n := 0
	for _, o := range ops {
		if o == op {
			n++
		}
	}
	return n
}

func TestBackEnd_BatchesByShaderAndEntity(t *testing.T) {
	s0 := backEndShader("s0", 0)
	s1 := backEndShader("s1", 1)
	be, rec := newTestBackEnd(s0, s1)

	world := metadata.ENTITYNUM_WORLD
	surfs := []metadata.DrawSurf{
		{Sort: metadata.ComposeSortKey(0, world, 0, false), Surface: triangleSurf()},
		{Sort: metadata.ComposeSortKey(0, world, 0, false), Surface: triangleSurf()},
		{Sort: metadata.ComposeSortKey(1, world, 0, false), Surface: triangleSurf()},
		// s1 cannot merge entities, so the entity change starts a batch
		{Sort: metadata.ComposeSortKey(1, 0, 0, false), Surface: triangleSurf()},
		{Sort: metadata.ComposeSortKey(1, 0, 0, false), Surface: triangleSurf()},
	}
	runCommands(t, be,
		&commands.DrawBufferCommand{Width: 640, Height: 480},
		&commands.DrawSurfsCommand{
			DrawSurfs: surfs,
			Entities:  []*metadata.SceneEntity{sceneEntity(0)},
			ViewParms: worldViewParms(),
		},
		&commands.SwapBuffersCommand{},
	)

	draws := rec.Draws()
	require.Len(t, draws, 3)
	assert.Len(t, draws[0].Geometry.Indexes, 6)
	assert.Len(t, draws[1].Geometry.Indexes, 3)
	assert.Len(t, draws[2].Geometry.Indexes, 6)

	ops := rec.Ops()
	assert.Equal(t, device.OpBeginFrame, ops[0])
	assert.Equal(t, device.OpBegin3D, ops[1])
	assert.Equal(t, device.OpEndFrame, ops[len(ops)-1])
}

func TestBackEnd_MergableShaderKeepsBatchAcrossEntities(t *testing.T) {
	s0 := backEndShader("s0", 0)
	s0.EntityMergable = true
	be, rec := newTestBackEnd(s0)

	surfs := []metadata.DrawSurf{
		{Sort: metadata.ComposeSortKey(0, 0, 0, false), Surface: triangleSurf()},
		{Sort: metadata.ComposeSortKey(0, 1, 0, false), Surface: triangleSurf()},
	}
	runCommands(t, be, &commands.DrawSurfsCommand{
		DrawSurfs: surfs,
		Entities:  []*metadata.SceneEntity{sceneEntity(0), sceneEntity(0)},
		ViewParms: worldViewParms(),
	})

	draws := rec.Draws()
	require.Len(t, draws, 1)
	assert.Len(t, draws[0].Geometry.Indexes, 6)
}

func TestBackEnd_DepthHackEntity(t *testing.T) {
	s0 := backEndShader("s0", 0)
	be, rec := newTestBackEnd(s0)

	surfs := []metadata.DrawSurf{
		{Sort: metadata.ComposeSortKey(0, 0, 0, false), Surface: triangleSurf()},
		{Sort: metadata.ComposeSortKey(0, metadata.ENTITYNUM_WORLD, 0, false), Surface: triangleSurf()},
	}
	runCommands(t, be, &commands.DrawSurfsCommand{
		DrawSurfs: surfs,
		Entities:  []*metadata.SceneEntity{sceneEntity(metadata.RF_DEPTHHACK)},
		ViewParms: worldViewParms(),
	})

	var ranges [][2]float32
	var sequence []device.Op
	for _, c := range rec.Calls() {
		switch c.Op {
		case device.OpSetDepthRange:
			ranges = append(ranges, c.Values)
			sequence = append(sequence, c.Op)
		case device.OpDraw:
			sequence = append(sequence, c.Op)
		}
	}
	require.Len(t, ranges, 2)
	assert.InDelta(t, 0.3, ranges[0][1], 1e-6)
	assert.Equal(t, [2]float32{0, 1}, ranges[1])
	assert.Equal(t, []device.Op{device.OpSetDepthRange, device.OpDraw, device.OpSetDepthRange, device.OpDraw}, sequence)
}

func TestBackEnd_StretchPicsBatchPerShader(t *testing.T) {
	s0 := backEndShader("s0", 0)
	s1 := backEndShader("s1", 1)
	be, rec := newTestBackEnd(s0, s1)

	runCommands(t, be,
		&commands.DrawBufferCommand{Width: 320, Height: 200},
		&commands.SetColorCommand{Color: [4]float32{1, 0, 0, 1}},
		&commands.StretchPicCommand{Shader: s0, W: 10, H: 10, S2: 1, T2: 1},
		&commands.StretchPicCommand{Shader: s0, X: 10, W: 10, H: 10, S2: 1, T2: 1},
		&commands.StretchPicCommand{Shader: s1, W: 5, H: 5, S2: 1, T2: 1},
		&commands.TriangleCommand{Shader: s1, XY: [3][2]float32{{0, 0}, {1, 0}, {0, 1}}},
		&commands.SwapBuffersCommand{},
	)

	draws := rec.Draws()
	require.Len(t, draws, 2)
	assert.Len(t, draws[0].Geometry.XYZ, 8)
	assert.Len(t, draws[1].Geometry.XYZ, 7)
	for _, c := range draws[0].Geometry.Colors {
		assert.Equal(t, [4]uint8{255, 0, 0, 255}, c)
	}

	ops := rec.Ops()
	assert.Equal(t, 1, countOps(ops, device.OpBegin2D))
	assert.Equal(t, device.OpEndFrame, ops[len(ops)-1])
}

func TestBackEnd_RemappedStretchPicsShareBatch(t *testing.T) {
	s0 := backEndShader("s0", 0)
	s1 := backEndShader("s1", 1)
	s1.RemappedShader = s0
	be, rec := newTestBackEnd(s0, s1)

	runCommands(t, be,
		&commands.StretchPicCommand{Shader: s0, W: 1, H: 1},
		&commands.StretchPicCommand{Shader: s1, W: 1, H: 1},
	)
	require.Len(t, rec.Draws(), 1)
}

func TestBackEnd_ClearDepthFlushes2D(t *testing.T) {
	s0 := backEndShader("s0", 0)
	be, rec := newTestBackEnd(s0)

	runCommands(t, be,
		&commands.StretchPicCommand{Shader: s0, W: 1, H: 1},
		&commands.ClearDepthCommand{},
	)
	ops := rec.Ops()
	require.NotEmpty(t, ops)
	assert.Equal(t, device.OpClearDepth, ops[len(ops)-1])
	assert.Len(t, rec.Draws(), 1)
}

func TestBackEnd_PostProcessBeforeSwap(t *testing.T) {
	s0 := backEndShader("s0", 0)
	be, rec := newTestBackEnd(s0)
	be.SetGamma(1.5)

	runCommands(t, be,
		&commands.DrawBufferCommand{Width: 320, Height: 200},
		&commands.StretchPicCommand{Shader: s0, W: 10, H: 10, S2: 1, T2: 1},
		&commands.SwapBuffersCommand{},
	)

	draws := rec.Draws()
	require.Len(t, draws, 2)
	post := draws[1]
	assert.Equal(t, device.PipelinePostProcess, post.Pipeline)
	assert.Equal(t, float32(1.5), post.State.Gamma)
	assert.NotZero(t, post.State.Bits&metadata.DepthTestDisable)
	assert.Equal(t, []math.Vec3{{0, 0, 0}, {320, 0, 0}, {320, 200, 0}, {0, 200, 0}}, post.Geometry.XYZ)

	// the pass is the last draw of the frame
	calls := rec.Calls()
	require.Equal(t, device.OpEndFrame, calls[len(calls)-1].Op)
	assert.Equal(t, device.OpDraw, calls[len(calls)-2].Op)
	assert.Equal(t, device.PipelinePostProcess, calls[len(calls)-2].Pipeline)
}

func TestBackEnd_PostProcessSkipped(t *testing.T) {
	s0 := backEndShader("s0", 0)
	frame := []commands.Command{
		&commands.DrawBufferCommand{Width: 320, Height: 200},
		&commands.StretchPicCommand{Shader: s0, W: 10, H: 10, S2: 1, T2: 1},
		&commands.SwapBuffersCommand{},
	}

	// unit gamma
	be, rec := newTestBackEnd(s0)
	runCommands(t, be, frame...)
	for _, d := range rec.Draws() {
		assert.NotEqual(t, device.PipelinePostProcess, d.Pipeline)
	}

	// no device support
	rec = device.NewRecorder(false)
	rec.SetCapabilities(device.Capabilities{MaxTextureSize: 4096, MaxTextureUnits: 2})
	be = NewBackEnd(rec, tess.New(1000, 6000, rec), func(int) *metadata.Shader { return s0 })
	be.SetGamma(2)
	runCommands(t, be, frame...)
	require.Len(t, rec.Draws(), 1)
	assert.Equal(t, device.PipelineGeneric, rec.Draws()[0].Pipeline)
}

func markedTriangle(x float32) *metadata.SurfaceTriangles {
	surf := triangleSurf()
	for i := range surf.Verts {
		surf.Verts[i].XYZ[0] += x
	}
	return surf
}

func TestBackEnd_EmissionOrderWithinSortClass(t *testing.T) {
	s0 := backEndShader("s0", 0)
	s0.FogPass = metadata.FogPassEqual
	be, rec := newTestBackEnd(s0)

	world := metadata.ENTITYNUM_WORLD
	surfs := []metadata.DrawSurf{
		{Sort: metadata.ComposeSortKey(0, 1, 2, false), Surface: markedTriangle(12)},
		{Sort: metadata.ComposeSortKey(0, world, 0, false), Surface: markedTriangle(100)},
		{Sort: metadata.ComposeSortKey(0, 0, 1, false), Surface: markedTriangle(1)},
		{Sort: metadata.ComposeSortKey(0, 1, 0, false), Surface: markedTriangle(10)},
		{Sort: metadata.ComposeSortKey(0, 0, 0, false), Surface: markedTriangle(0)},
	}
	views.SortDrawSurfs(surfs)

	fogs := make([]metadata.Fog, 3)
	for i := range fogs {
		fogs[i].TCScale = 0.01
		fogs[i].ColorInt = [4]uint8{uint8(i), 0, 0, 255}
	}
	runCommands(t, be, &commands.DrawSurfsCommand{
		DrawSurfs: surfs,
		Entities:  []*metadata.SceneEntity{sceneEntity(0), sceneEntity(0)},
		ViewParms: worldViewParms(),
		Fogs:      fogs,
	})

	var markers []float32
	for _, d := range rec.Draws() {
		require.NotEmpty(t, d.Geometry.XYZ)
		markers = append(markers, d.Geometry.XYZ[0][0])
	}
	// entity first, then fog; a fogged batch is followed by its fog pass
	assert.Equal(t, []float32{0, 1, 1, 10, 12, 12, 100}, markers)
}
