package renderer

import (
	"bytes"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/config"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const rendererScript = `
textures/glow
{
	{
		map textures/base
		blendFunc add
	}
}

textures/solid
{
	{
		map textures/wall
	}
}
`

func writePNG(t *testing.T, path string, c color.NRGBA) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, c)
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestRenderer(t *testing.T, rec *device.Recorder, tune func(*config.RendererConfig)) *Renderer {
	t.Helper()
	root := t.TempDir()
	writePNG(t, filepath.Join(root, "textures", "base.png"), color.NRGBA{200, 100, 50, 255})
	writePNG(t, filepath.Join(root, "textures", "wall.png"), color.NRGBA{20, 40, 60, 255})
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "scripts", "test.shader"), []byte(rendererScript), 0o644))

	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.ScreenshotDir = filepath.Join(t.TempDir(), "shots")
	if tune != nil {
		tune(cfg)
	}
	r, err := New(cfg, rec, WithAssetRoots(root), WithSize(64, 48))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func quadVerts() []metadata.PolyVert {
	white := [4]uint8{255, 255, 255, 255}
	return []metadata.PolyVert{
		{XYZ: math.Vec3{64, -8, -8}, ST: [2]float32{0, 0}, Modulate: white},
		{XYZ: math.Vec3{64, 8, -8}, ST: [2]float32{1, 0}, Modulate: white},
		{XYZ: math.Vec3{64, 8, 8}, ST: [2]float32{1, 1}, Modulate: white},
		{XYZ: math.Vec3{64, -8, 8}, ST: [2]float32{0, 1}, Modulate: white},
	}
}

func worldlessRefDef() *metadata.RefDef {
	return &metadata.RefDef{
		Width:    64,
		Height:   48,
		FovX:     90,
		FovY:     73.74,
		ViewAxis: math.IdentityAxis,
		RDFlags:  metadata.RDF_NOWORLDMODEL,
	}
}

// frameOps keeps the operations that describe the frame structure.
func frameOps(rec *device.Recorder) []device.Op {
	var out []device.Op
	for _, op := range rec.Ops() {
		switch op {
		case device.OpBeginFrame, device.OpBegin3D, device.OpBegin2D, device.OpDraw, device.OpEndFrame:
			out = append(out, op)
		}
	}
	return out
}

func TestRenderer_RequiresRegistration(t *testing.T) {
	r := newTestRenderer(t, device.NewRecorder(false), nil)

	assert.ErrorIs(t, r.BeginFrame(), core.ErrNotInitialized)
	_, _, err := r.EndFrame()
	assert.ErrorIs(t, err, core.ErrNotInitialized)
}

func TestRenderer_RejectsSingleTextureUnit(t *testing.T) {
	rec := device.NewRecorder(false)
	rec.SetCapabilities(device.Capabilities{MaxTextureSize: 1024, MaxTextureUnits: 1})

	_, err := New(config.Default(), rec, WithAssetRoots(t.TempDir()))
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrMissingCapability)
}

func TestRenderer_FrameDrawsSceneThen2D(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newTestRenderer(t, rec, nil)
	r.BeginRegistration()
	h := r.RegisterShader("textures/solid")

	require.NoError(t, r.BeginFrame())
	r.AddPolyToScene(h, quadVerts())
	require.NoError(t, r.RenderScene(worldlessRefDef()))
	r.DrawStretchPic(0, 0, 16, 16, 0, 0, 1, 1, h)
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, []device.Op{
		device.OpBeginFrame,
		device.OpBegin3D,
		device.OpDraw,
		device.OpBegin2D,
		device.OpDraw,
		device.OpEndFrame,
	}, frameOps(rec))
}

func TestRenderer_EmptySceneQueuesNothing(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newTestRenderer(t, rec, nil)
	r.BeginRegistration()

	require.NoError(t, r.BeginFrame())
	require.NoError(t, r.RenderScene(worldlessRefDef()))
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, []device.Op{device.OpBeginFrame, device.OpEndFrame}, frameOps(rec))
}

func TestRenderer_SceneNeedsWorld(t *testing.T) {
	r := newTestRenderer(t, device.NewRecorder(false), nil)
	r.BeginRegistration()
	require.NoError(t, r.BeginFrame())

	rd := worldlessRefDef()
	rd.RDFlags = 0
	err := r.RenderScene(rd)
	require.Error(t, err)
	assert.True(t, core.IsFatal(err))
	assert.ErrorIs(t, err, core.ErrNoWorld)
}

func TestRenderer_LateRegistrationKeepsQueuedShader(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newTestRenderer(t, rec, nil)
	r.BeginRegistration()

	ss := r.Systems().ShaderSystem
	hGlow := r.RegisterShader("textures/glow")
	glow := ss.GetShaderByHandle(hGlow)
	require.False(t, glow.DefaultShader)
	before := glow.SortedIndex

	require.NoError(t, r.BeginFrame())
	r.AddPolyToScene(hGlow, quadVerts())
	require.NoError(t, r.RenderScene(worldlessRefDef()))

	// an opaque shader sorts in front of the queued additive one
	solid := ss.GetShaderByHandle(r.RegisterShader("textures/solid"))
	require.Equal(t, before+1, glow.SortedIndex)
	require.Less(t, solid.SortedIndex, glow.SortedIndex)

	_, _, err := r.EndFrame()
	require.NoError(t, err)

	draws := rec.Draws()
	require.Len(t, draws, 1)
	base := glow.Stages[0].Bundle[0].Images[0]
	wall := solid.Stages[0].Bundle[0].Images[0]
	assert.Equal(t, base.Handle, draws[0].State.Textures[0])
	assert.NotEqual(t, wall.Handle, draws[0].State.Textures[0])
}

func TestRenderer_ScreenshotDelayedWhenQueueFull(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newTestRenderer(t, rec, func(cfg *config.RendererConfig) {
		cfg.CommandBufferSize = 1024
	})
	r.BeginRegistration()

	require.NoError(t, r.BeginFrame())
	for r.frame.queue.Append(&commands.SetColorCommand{}) {
	}
	name := r.TakeScreenshot("late", "png")
	assert.Equal(t, filepath.Join(r.Config().ScreenshotDir, "late.png"), name)

	_, _, err := r.EndFrame()
	require.NoError(t, err)
	r.Systems().JobSystem.Wait()
	assert.NoFileExists(t, name)

	require.NoError(t, r.BeginFrame())
	_, _, err = r.EndFrame()
	require.NoError(t, err)
	r.Systems().JobSystem.Wait()
	assert.FileExists(t, name)
	assert.Equal(t, 1, countOps(rec.Ops(), device.OpReadPixels))
}

func TestRenderer_ScreenshotNameIsGenerated(t *testing.T) {
	r := newTestRenderer(t, device.NewRecorder(false), nil)
	r.BeginRegistration()
	require.NoError(t, r.BeginFrame())

	name := r.TakeScreenshot("", "bmp")
	assert.Equal(t, ".bmp", filepath.Ext(name))
	assert.Equal(t, r.Config().ScreenshotDir, filepath.Dir(name))

	_, _, err := r.EndFrame()
	require.NoError(t, err)
	// the file is encoded on a worker
	r.Systems().JobSystem.Wait()

	data, err := os.ReadFile(name)
	require.NoError(t, err)
	assert.Equal(t, "BM", string(data[:2]))
}

func TestRenderer_VideoFrameStreamsRows(t *testing.T) {
	rec := device.NewRecorder(false)
	rec.SetClearPattern(7)
	r := newTestRenderer(t, rec, nil)
	r.BeginRegistration()

	var sink bytes.Buffer
	require.NoError(t, r.BeginFrame())
	r.TakeVideoFrame(2, 2, &sink)
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, bytes.Repeat([]byte{7}, 16), sink.Bytes())
}

func TestRenderer_MultithreadedBackEnd(t *testing.T) {
	rec := device.NewRecorder(true)
	r := newTestRenderer(t, rec, func(cfg *config.RendererConfig) {
		cfg.SMPFrames = 2
	})
	r.BeginRegistration()
	h := r.RegisterShader("textures/solid")

	for i := 0; i < 3; i++ {
		require.NoError(t, r.BeginFrame())
		r.AddPolyToScene(h, quadVerts())
		require.NoError(t, r.RenderScene(worldlessRefDef()))
		r.DrawStretchPic(0, 0, 8, 8, 0, 0, 1, 1, h)
		_, _, err := r.EndFrame()
		require.NoError(t, err)
	}
	r.syncBackEnd()

	ops := rec.Ops()
	assert.Equal(t, 3, countOps(ops, device.OpEndFrame))
	assert.Equal(t, 3, countOps(ops, device.OpBegin3D))
	assert.Len(t, rec.Draws(), 6)
}

func TestRenderer_ScenesShareFrameStorage(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newTestRenderer(t, rec, nil)
	r.BeginRegistration()
	h := r.RegisterShader("textures/solid")

	require.NoError(t, r.BeginFrame())
	r.AddPolyToScene(h, quadVerts())
	require.NoError(t, r.RenderScene(worldlessRefDef()))
	// the second scene starts empty
	require.NoError(t, r.RenderScene(worldlessRefDef()))
	r.AddPolyToScene(h, quadVerts())
	r.AddPolyToScene(h, quadVerts())
	require.NoError(t, r.RenderScene(worldlessRefDef()))
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	assert.Equal(t, 2, countOps(rec.Ops(), device.OpBegin3D))
	draws := rec.Draws()
	require.Len(t, draws, 2)
	assert.Len(t, draws[0].Geometry.Indexes, 6)
	assert.Len(t, draws[1].Geometry.Indexes, 12)
}

func TestRenderer_LoadWorldTwiceFails(t *testing.T) {
	r := newTestRenderer(t, device.NewRecorder(false), nil)
	r.BeginRegistration()

	w := &metadata.World{Name: "maps/empty"}
	require.NoError(t, r.LoadWorld(w))
	assert.ErrorIs(t, r.LoadWorld(&metadata.World{Name: "maps/other"}), ErrWorldLoaded)

	r.UnloadWorld()
	require.NoError(t, r.LoadWorld(&metadata.World{Name: "maps/other"}))
}
