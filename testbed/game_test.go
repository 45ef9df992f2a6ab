package testbed

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/config"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func newRoomRenderer(t *testing.T, rec *device.Recorder) *renderer.Renderer {
	t.Helper()
	root := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(root, "scripts"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "scripts", "testbed.shader"), []byte(testbedScript), 0o644))

	cfg := config.Default()
	cfg.LogLevel = "error"
	cfg.DlightMode = 1
	r, err := renderer.New(cfg, rec, renderer.WithAssetRoots(root), renderer.WithSize(64, 48))
	require.NoError(t, err)
	t.Cleanup(func() { _ = r.Shutdown() })
	return r
}

func TestBuildRoomWorld(t *testing.T) {
	w := BuildRoomWorld()

	require.Len(t, w.Nodes, 3)
	assert.False(t, w.Root().IsLeaf())
	assert.Equal(t, 0, w.PointInLeaf(math.Vec3{100, 0, 0}).Cluster)
	assert.Equal(t, 1, w.PointInLeaf(math.Vec3{-100, 0, 0}).Cluster)

	// side walls are shared by both leaves
	assert.Len(t, w.Nodes[1].MarkSurfaces, 5)
	assert.Len(t, w.Nodes[2].MarkSurfaces, 5)

	for _, s := range w.Surfaces {
		face, ok := s.Data.(*metadata.SurfaceFace)
		require.True(t, ok)
		require.Len(t, face.Verts, 4)
		for _, v := range face.Verts {
			// every corner lies on the face plane
			assert.InDelta(t, 0, face.Plane.Distance(v.XYZ), 1e-3)
		}
	}
}

func TestRenderFrame(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newRoomRenderer(t, rec)
	st := newGameState()
	st.width, st.height = 64, 48

	require.NoError(t, setupScene(r, st))
	for _, s := range st.world.Surfaces {
		require.NotNil(t, s.Shader, s.ShaderName)
		assert.Equal(t, s.ShaderName, s.Shader.Name)
		assert.False(t, s.Shader.DefaultShader, s.ShaderName)
	}
	// no font in the asset root
	assert.Nil(t, st.font)

	rec.Reset()
	require.NoError(t, r.BeginFrame())
	require.NoError(t, renderFrame(r, st))
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	ops := rec.Ops()
	assert.Contains(t, ops, device.OpBegin3D)
	assert.Contains(t, ops, device.OpBegin2D)
	assert.Contains(t, ops, device.OpBeginDynamicLight)
	assert.GreaterOrEqual(t, len(rec.Draws()), 3)
}

func TestRenderFrameSkipsZeroSize(t *testing.T) {
	rec := device.NewRecorder(false)
	r := newRoomRenderer(t, rec)
	st := newGameState()
	require.NoError(t, setupScene(r, st))

	rec.Reset()
	require.NoError(t, r.BeginFrame())
	require.NoError(t, renderFrame(r, st))
	_, _, err := r.EndFrame()
	require.NoError(t, err)

	assert.NotContains(t, rec.Ops(), device.OpBegin3D)
	assert.Empty(t, rec.Draws())
}
