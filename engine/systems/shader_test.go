package systems

import (
	"fmt"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const testScript = `
textures/glow
{
	{
		map textures/base
		blendFunc GL_ONE GL_ONE
		rgbGen identity
	}
	{
		map textures/base
		blendFunc GL_ONE GL_ONE
		rgbGen const ( 1 1 1 )
	}
}

textures/glow_vertex
{
	{
		map textures/base
		blendFunc GL_ONE GL_ONE
		rgbGen identity
	}
	{
		map textures/base
		blendFunc GL_ONE GL_ONE
		rgbGen vertex
	}
}

textures/water
{
	qer_editorimage textures/base.tga
	surfaceparm nodlight
	surfaceparm water
	cull none
	deformVertexes wave 64 sin 0 4 0 0.5
	{
		map textures/base
		blendFunc blend
		tcMod scroll 0.5 -0.25
		rgbGen wave sin 0.5 0.5 0 1
	}
}

textures/broken
{
	surfaceparm nodraw
}

textures/sky
{
	skyParms - 256 -
	surfaceparm sky
}

textures/fog
{
	surfaceparm fog
	fogparms ( 1 0 0 ) 128
}

textures/decal
{
	polygonOffset
	{
		map textures/base
	}
}
`

func writeTestPNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 4, 4))
	for y := 0; y < 4; y++ {
		for x := 0; x < 4; x++ {
			img.Set(x, y, color.NRGBA{200, 100, 50, 255})
		}
	}
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func writeTestScript(t *testing.T, path, text string) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, []byte(text), 0o644))
}

func newTestShaderSystem(t *testing.T, maxShaders int, scripts map[string]string) (*ShaderSystem, string) {
	t.Helper()
	root := t.TempDir()
	writeTestPNG(t, filepath.Join(root, "textures", "base.png"))
	writeTestPNG(t, filepath.Join(root, "textures", "wall.png"))
	for name, text := range scripts {
		writeTestScript(t, filepath.Join(root, "scripts", name), text)
	}

	am, err := assets.NewAssetManager(false)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { _ = am.Shutdown() })

	ts, err := NewTextureSystem(&TextureSystemConfig{MaxTextureCount: 256}, am, device.NewRecorder(false))
	require.NoError(t, err)
	require.NoError(t, ts.Initialize())

	ss, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount:    maxShaders,
		IdentityLight:     1,
		IdentityLightByte: 255,
	}, ts, am)
	require.NoError(t, err)
	require.NoError(t, ss.Initialize())
	return ss, root
}

func TestShaderSystem_DefaultShaderIsHandleZero(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, nil)

	require.NotNil(t, ss.DefaultShader)
	assert.Equal(t, 0, ss.DefaultShader.Index)
	assert.Equal(t, 0, ss.DefaultShader.SortedIndex)
	assert.Equal(t, metadata.SortOpaque, ss.DefaultShader.Sort)
	assert.Same(t, ss.DefaultShader, ss.GetShaderByHandle(0))
	assert.Same(t, ss.DefaultShader, ss.GetShaderByHandle(999))
	assert.Same(t, ss.DefaultShader, ss.SortedShader(-1))
}

func TestShaderSystem_CollapsesAdditivePair(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	sh := ss.FindShader("textures/glow", metadata.LIGHTMAP_NONE, true)
	require.False(t, sh.DefaultShader)
	require.Len(t, sh.Stages, 1)
	st := sh.Stages[0]
	assert.Equal(t, metadata.CollapseAdd, st.MultitextureEnv)
	assert.Equal(t, "add", st.MultitextureEnv.String())
	assert.Equal(t, metadata.SrcBlendOne|metadata.DstBlendOne, st.StateBits&metadata.BlendBits)
	assert.Equal(t, "textures/base", st.Bundle[1].Images[0].Name)
	assert.Equal(t, metadata.SortBlend0, sh.Sort)
	assert.Equal(t, 1, sh.NumUnfoggedPasses)
	// additive stages do not take dynamic light
	assert.Equal(t, -1, sh.LightingStage)
}

func TestShaderSystem_VertexColorPreventsCollapse(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	sh := ss.FindShader("textures/glow_vertex", metadata.LIGHTMAP_NONE, true)
	require.Len(t, sh.Stages, 2)
	for _, st := range sh.Stages {
		assert.Equal(t, metadata.CollapseNone, st.MultitextureEnv)
	}
	assert.Equal(t, metadata.AGenVertex, sh.Stages[1].AlphaGen)
	assert.Equal(t, metadata.ACFFModulateRGB, sh.Stages[1].AdjustColorsForFog)
}

func TestShaderSystem_ParsesDirectives(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	sh := ss.FindShader("textures/water", metadata.LIGHTMAP_NONE, true)
	require.False(t, sh.DefaultShader)
	assert.True(t, sh.ExplicitlyDefined)
	assert.Equal(t, metadata.CullTwoSided, sh.CullType)
	assert.NotZero(t, sh.SurfaceFlags&metadata.SURF_NODLIGHT)
	assert.NotZero(t, sh.ContentFlags&metadata.CONTENTS_WATER)

	require.Len(t, sh.Deforms, 1)
	ds := sh.Deforms[0]
	assert.Equal(t, metadata.DeformWave, ds.Deformation)
	assert.InDelta(t, 1.0/64, ds.DeformationSpread, 1e-6)
	assert.Equal(t, metadata.GenFuncSin, ds.DeformationWave.Func)
	assert.Equal(t, float32(4), ds.DeformationWave.Amplitude)

	require.Len(t, sh.Stages, 1)
	st := sh.Stages[0]
	assert.Equal(t, metadata.SrcBlendSrcAlpha|metadata.DstBlendOneMinusSrcAlpha, st.StateBits&metadata.BlendBits)
	assert.Zero(t, st.StateBits&metadata.DepthMaskTrue)
	assert.Equal(t, metadata.CGenWaveform, st.RGBGen)
	assert.Equal(t, metadata.TCGenTexture, st.Bundle[0].TCGen)
	require.Len(t, st.Bundle[0].TexMods, 1)
	assert.Equal(t, metadata.TModScroll, st.Bundle[0].TexMods[0].Type)
	assert.Equal(t, [2]float32{0.5, -0.25}, st.Bundle[0].TexMods[0].Scroll)
	assert.Equal(t, metadata.ACFFModulateAlpha, st.AdjustColorsForFog)

	assert.Equal(t, metadata.SortBlend0, sh.Sort)
	assert.Equal(t, metadata.FogPassNone, sh.FogPass)
	assert.Equal(t, -1, sh.LightingStage)
}

func TestShaderSystem_SkyFogAndDecalSorts(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	sky := ss.FindShader("textures/sky", metadata.LIGHTMAP_NONE, true)
	assert.True(t, sky.IsSky)
	assert.Equal(t, metadata.SortEnvironment, sky.Sort)
	assert.Equal(t, float32(256), sky.Sky.CloudHeight)
	assert.Equal(t, -1, sky.LightingStage)

	fog := ss.FindShader("textures/fog", metadata.LIGHTMAP_NONE, true)
	assert.Empty(t, fog.Stages)
	assert.Equal(t, metadata.SortFog, fog.Sort)
	assert.Equal(t, metadata.FogPassLessEqual, fog.FogPass)
	assert.Equal(t, float32(128), fog.FogParms.DepthForOpaque)

	decal := ss.FindShader("textures/decal", metadata.LIGHTMAP_NONE, true)
	assert.Equal(t, metadata.SortDecal, decal.Sort)
	assert.Equal(t, metadata.FogPassNone, decal.FogPass)
	assert.Equal(t, 0, decal.LightingStage)
}

func TestShaderSystem_BrokenShaderFallsBackToDefault(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	sh := ss.FindShader("textures/broken", metadata.LIGHTMAP_NONE, true)
	assert.True(t, sh.DefaultShader)
	require.Len(t, sh.Stages, 1)
	assert.Same(t, ss.textureSystem.DefaultTexture, sh.Stages[0].Bundle[0].Images[0])

	// a failed name resolves to the same shader for every lightmap
	assert.Same(t, sh, ss.FindShader("textures/broken", metadata.LIGHTMAP_BY_VERTEX, true))
	assert.Equal(t, 0, ss.RegisterShader("textures/broken"))
	assert.Equal(t, 0, ss.RegisterShader("textures/does_not_exist"))
}

func TestShaderSystem_ImplicitShaders(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, nil)

	h := ss.RegisterShaderNoMip("textures/wall.tga")
	require.NotZero(t, h)
	pic := ss.GetShaderByHandle(h)
	assert.Equal(t, "textures/wall", pic.Name)
	assert.Equal(t, metadata.LIGHTMAP_2D, pic.LightmapIndex)
	require.Len(t, pic.Stages, 1)
	assert.Equal(t, metadata.CGenVertex, pic.Stages[0].RGBGen)
	assert.Equal(t, metadata.AGenVertex, pic.Stages[0].AlphaGen)
	assert.NotZero(t, pic.Stages[0].StateBits&metadata.DepthTestDisable)
	assert.False(t, pic.Stages[0].Bundle[0].Images[0].HasFlag(metadata.TextureFlagMipmap))
	// registering again finds the same shader
	assert.Equal(t, h, ss.RegisterShader("textures/wall"))

	diffuse := ss.FindShader("textures/wall", metadata.LIGHTMAP_NONE, true)
	assert.NotSame(t, pic, diffuse)
	assert.Equal(t, metadata.CGenLightingDiffuse, diffuse.Stages[0].RGBGen)
	assert.Equal(t, metadata.SortOpaque, diffuse.Sort)
	assert.Equal(t, metadata.FogPassEqual, diffuse.FogPass)
	assert.Equal(t, 0, diffuse.LightingStage)

	// lightmap 0 was never loaded, so the surface falls back to vertex light
	vertex := ss.FindShader("textures/wall", 0, true)
	assert.Equal(t, metadata.LIGHTMAP_BY_VERTEX, vertex.LightmapIndex)
	assert.Equal(t, metadata.CGenExactVertex, vertex.Stages[0].RGBGen)
	assert.Equal(t, metadata.AGenSkip, vertex.Stages[0].AlphaGen)
}

func TestShaderSystem_LightmappedImplicitShaderCollapses(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, nil)
	require.NoError(t, ss.textureSystem.LoadLightmaps([]metadata.LightmapImage{
		{Width: 2, Height: 2, RGB: make([]byte, 12)},
	}))

	sh := ss.FindShader("textures/wall", 0, true)
	assert.Equal(t, 0, sh.LightmapIndex)
	require.Len(t, sh.Stages, 1)
	st := sh.Stages[0]
	assert.Equal(t, metadata.CollapseModulate, st.MultitextureEnv)
	assert.True(t, st.Bundle[0].IsLightmap)
	assert.Equal(t, metadata.TCGenLightmap, st.Bundle[0].TCGen)
	assert.Equal(t, "textures/wall", st.Bundle[1].Images[0].Name)
	assert.Equal(t, metadata.TCGenTexture, st.Bundle[1].TCGen)
	assert.False(t, st.StateBits.Blended())
	assert.Equal(t, metadata.SortOpaque, sh.Sort)

	assert.Equal(t, 0, sh.LightingStage)
	assert.Equal(t, 1, sh.LightingBundle)
}

func TestShaderSystem_LateRegistrationFixesQueuedSortKeys(t *testing.T) {
	script := `
textures/a { { map textures/wall } }
textures/b { { map textures/wall } }
textures/c { { map textures/wall } }
textures/d { { map textures/wall } }
textures/e { { map textures/wall } }
textures/f { { map textures/wall } }
textures/g { { map textures/wall } }
textures/h { { map textures/wall } }
textures/late
{
	{
		map textures/base
		blendFunc add
	}
}
`
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"late.shader": script})
	q := commands.NewQueue(1<<16, nil)
	ss.OnSortedInsert = func(sortedIndex int) { q.FixSortKeys(sortedIndex) }

	ss.RegisterShader("textures/a")
	ss.RegisterShader("textures/b")
	late := ss.GetShaderByHandle(ss.RegisterShader("textures/late"))
	require.Equal(t, 3, late.SortedIndex)

	surfs := make([]metadata.DrawSurf, 10)
	for i := range surfs {
		surfs[i].Sort = metadata.ComposeSortKey(late.SortedIndex, i, 0, false)
	}
	require.True(t, q.Append(&commands.DrawSurfsCommand{DrawSurfs: surfs}))

	// six opaque shaders sort in front of the blended one
	for _, name := range []string{"c", "d", "e", "f", "g", "h"} {
		ss.RegisterShader("textures/" + name)
	}
	require.Equal(t, 9, late.SortedIndex)
	require.Same(t, late, ss.SortedShader(9))

	require.NoError(t, q.Execute(func(c commands.Command) error {
		ds, ok := c.(*commands.DrawSurfsCommand)
		if !ok {
			return nil
		}
		for i, surf := range ds.DrawSurfs {
			idx, ent, _, _ := metadata.DecomposeSortKey(surf.Sort)
			assert.Equal(t, 9, idx)
			assert.Equal(t, i, ent)
			assert.Same(t, late, ss.SortedShader(idx))
		}
		return nil
	}))

	for i, sh := range ss.SortedShaders {
		assert.Equal(t, i, sh.SortedIndex)
	}
}

func TestShaderSystem_RegistryFull(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 2, nil)

	h := ss.RegisterShader("textures/wall")
	assert.Equal(t, 1, h)
	// the default shader and one registration fill the registry
	assert.Equal(t, 0, ss.RegisterShader("textures/base"))
	assert.Len(t, ss.Shaders, 2)
}

func TestShaderSystem_RemapShader(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{"test.shader": testScript})

	old := ss.FindShader("textures/wall", metadata.LIGHTMAP_NONE, true)
	require.NoError(t, ss.RemapShader("textures/wall", "textures/decal", 2.5))
	replacement := ss.FindShader("textures/decal", metadata.LIGHTMAP_NONE, true)
	assert.Same(t, replacement, old.RemappedShader)
	assert.Equal(t, 2.5, replacement.TimeOffset)

	// remapping back to itself clears the remap
	require.NoError(t, ss.RemapShader("textures/wall", "textures/wall", 0))
	assert.Nil(t, old.RemappedShader)

	assert.Error(t, ss.RemapShader("textures/wall", "textures/nothing", 0))
}

func TestShaderSystem_LaterScriptsOverrideEarlier(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, map[string]string{
		"a.shader": "textures/dup\n{\n\t{\n\t\tmap textures/base\n\t}\n}\n",
		"b.shader": "textures/dup\n{\n\tsort nearest\n\t{\n\t\tmap textures/base\n\t}\n}\n",
	})

	sh := ss.FindShader("textures/dup", metadata.LIGHTMAP_NONE, true)
	assert.Equal(t, metadata.SortNearest, sh.Sort)
}

func TestShaderSystem_ReloadScripts(t *testing.T) {
	ss, root := newTestShaderSystem(t, 64, map[string]string{
		"hot.shader": "textures/hot\n{\n\t{\n\t\tmap textures/base\n\t}\n}\n",
	})
	other := ss.FindShader("textures/wall", metadata.LIGHTMAP_NONE, true)
	hot := ss.FindShader("textures/hot", metadata.LIGHTMAP_NONE, true)
	require.Equal(t, metadata.SortOpaque, hot.Sort)
	index := hot.Index

	path := filepath.Join(root, "scripts", "hot.shader")
	writeTestScript(t, path, "textures/hot\n{\n\t{\n\t\tmap textures/base\n\t\tblendFunc add\n\t}\n}\n")

	assert.Equal(t, 1, ss.ReloadScripts([]string{path}))
	assert.Same(t, hot, ss.FindShader("textures/hot", metadata.LIGHTMAP_NONE, true))
	assert.Equal(t, index, hot.Index)
	assert.Equal(t, metadata.SortBlend0, hot.Sort)
	assert.Same(t, hot, ss.SortedShaders[len(ss.SortedShaders)-1])
	assert.Same(t, other, ss.SortedShader(other.SortedIndex))

	for i := 1; i < len(ss.SortedShaders); i++ {
		assert.LessOrEqual(t, ss.SortedShaders[i-1].Sort, ss.SortedShaders[i].Sort)
		assert.Equal(t, i, ss.SortedShaders[i].SortedIndex)
	}
}

func TestShaderSystem_OpenVideo(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, nil)

	h, err := ss.OpenVideo("video/intro.roq")
	require.NoError(t, err)
	name, ok := ss.VideoName(h)
	assert.True(t, ok)
	assert.Equal(t, "video/intro.roq", name)
	assert.NotNil(t, ss.textureSystem.Scratch(h))
}

func TestShaderSystem_ReloadReadsScriptsOnJobs(t *testing.T) {
	ss, root := newTestShaderSystem(t, 64, map[string]string{
		"a.shader": "textures/dup\n{\n\t{\n\t\tmap textures/base\n\t}\n}\n",
		"b.shader": "textures/dup\n{\n\tsort nearest\n\t{\n\t\tmap textures/base\n\t}\n}\n",
	})
	ss.Jobs = newTestJobSystem(t, 4)

	dup := ss.FindShader("textures/dup", metadata.LIGHTMAP_NONE, true)
	require.Equal(t, metadata.SortNearest, dup.Sort)

	// both files change; b still wins because scripts are indexed in path order
	a := filepath.Join(root, "scripts", "a.shader")
	b := filepath.Join(root, "scripts", "b.shader")
	writeTestScript(t, a, "textures/dup\n{\n\tsort underwater\n\t{\n\t\tmap textures/base\n\t}\n}\n")
	writeTestScript(t, b, "textures/dup\n{\n\tsort banner\n\t{\n\t\tmap textures/base\n\t}\n}\n")
	missing := filepath.Join(root, "scripts", "gone.shader")

	assert.Equal(t, 1, ss.ReloadScripts([]string{a, missing, b}))
	assert.Equal(t, metadata.SortBanner, dup.Sort)
}

func TestTextureSystem_LoadLightmapsOnJobs(t *testing.T) {
	ss, _ := newTestShaderSystem(t, 64, nil)
	ts := ss.textureSystem
	ts.Jobs = newTestJobSystem(t, 3)
	ts.Config.MapOverbrightShift = 1

	pages := make([]metadata.LightmapImage, 6)
	for i := range pages {
		rgb := make([]byte, 2*2*3)
		for p := range rgb {
			rgb[p] = byte(10 * (i + 1))
		}
		pages[i] = metadata.LightmapImage{Width: 2, Height: 2, RGB: rgb}
	}
	require.NoError(t, ts.LoadLightmaps(pages))

	for i := range pages {
		lm := ts.Lightmap(i)
		require.NotNil(t, lm)
		assert.Equal(t, fmt.Sprintf("*lightmap%d", i), lm.Name)
	}
	assert.Nil(t, ts.Lightmap(len(pages)))

	px, err := lightmapPixels(&pages[2], 1)
	require.NoError(t, err)
	assert.Equal(t, []byte{60, 60, 60, 255}, px[:4])

	pages[4].RGB = pages[4].RGB[:5]
	err = ts.LoadLightmaps(pages)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "lightmap 4")
}

func TestShaderSystem_ReloadReleasesVideoScratch(t *testing.T) {
	const script = "textures/screen\n{\n\t{\n\t\tvideoMap video/intro.roq\n\t}\n}\n"
	ss, root := newTestShaderSystem(t, 64, map[string]string{"video.shader": script})
	ts := ss.textureSystem
	rec := ts.dev.(*device.Recorder)

	sh := ss.FindShader("textures/screen", metadata.LIGHTMAP_NONE, true)
	handle := sh.Stages[0].Bundle[0].VideoMapHandle
	scratch := ts.Scratch(handle)
	require.NotNil(t, scratch)
	registered := len(ts.RegisteredTextures)
	destroyed := countTextureOps(rec, device.OpDestroyTexture, scratch.Name)

	path := filepath.Join(root, "scripts", "video.shader")
	for i := 0; i < 3; i++ {
		require.Equal(t, 1, ss.ReloadScripts([]string{path}))
	}

	// every reload frees the old texture and recreates it in the same slot
	assert.Equal(t, destroyed+3, countTextureOps(rec, device.OpDestroyTexture, scratch.Name))
	assert.Len(t, ts.scratch, 1)
	assert.Empty(t, ts.freeScratch)
	assert.Equal(t, registered, len(ts.RegisteredTextures))
	assert.Len(t, ss.videos, 1)

	assert.Equal(t, handle, sh.Stages[0].Bundle[0].VideoMapHandle)
	assert.Same(t, scratch, sh.Stages[0].Bundle[0].Images[0])
	assert.NotZero(t, scratch.Handle)

	ss.CloseVideo(handle)
	assert.Nil(t, ts.Scratch(handle))
	assert.Zero(t, scratch.Handle)
	_, ok := ss.VideoName(handle)
	assert.False(t, ok)
}

func countTextureOps(rec *device.Recorder, op device.Op, name string) int {
	n := 0
	for _, c := range rec.Calls() {
		if c.Op == op && c.Texture == name {
			n++
		}
	}
	return n
}
