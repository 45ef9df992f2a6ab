package assets

import (
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func writeFile(t *testing.T, path string, data []byte) {
	t.Helper()
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func writePNG(t *testing.T, path string) {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 2, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(1, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(0, 1, color.NRGBA{0, 0, 255, 128})
	img.Set(1, 1, color.NRGBA{0, 0, 255, 128})
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	f, err := os.Create(path)
	require.NoError(t, err)
	defer f.Close()
	require.NoError(t, png.Encode(f, img))
}

func newTestManager(t *testing.T) (*AssetManager, string) {
	t.Helper()
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "scripts", "base.shader"), []byte("textures/wall\n{\n}\n"))
	writePNG(t, filepath.Join(root, "Textures", "Wall.png"))
	writeFile(t, filepath.Join(root, "readme.txt"), []byte("ignored"))

	am, err := NewAssetManager(false)
	require.NoError(t, err)
	require.NoError(t, am.Initialize(root, filepath.Join(root, "missing")))
	t.Cleanup(func() { _ = am.Shutdown() })
	return am, root
}

func TestAssetManager_FindIgnoresExtensionAndCase(t *testing.T) {
	am, root := newTestManager(t)

	path, ok := am.Find("textures/wall.tga", metadata.ResourceTypeImage)
	require.True(t, ok)
	assert.Equal(t, filepath.Join(root, "Textures", "Wall.png"), path)

	_, ok = am.Find("readme", metadata.ResourceTypeImage)
	assert.False(t, ok)

	assert.Equal(t, []string{filepath.Join(root, "scripts", "base.shader")}, am.Paths(metadata.ResourceTypeShaderScript))
}

func TestAssetManager_LoadScriptAndImage(t *testing.T) {
	am, _ := newTestManager(t)

	res, err := am.Load("scripts/base", metadata.ResourceTypeShaderScript, nil)
	require.NoError(t, err)
	assert.Equal(t, "scripts/base", res.Name)
	assert.Equal(t, "textures/wall\n{\n}\n", res.Data.(string))

	res, err = am.Load("textures/wall", metadata.ResourceTypeImage, &metadata.ImageResourceParams{FlipY: true})
	require.NoError(t, err)
	img := res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, uint32(2), img.Width)
	assert.Equal(t, uint32(2), img.Height)
	assert.True(t, img.HasTransparency)
	// flipped: the translucent blue row comes first
	assert.Equal(t, byte(0), img.Pixels[0])
	assert.Equal(t, byte(128), img.Pixels[3])
	assert.Equal(t, byte(255), img.Pixels[len(img.Pixels)-1])

	res, err = am.Load("textures/wall", metadata.ResourceTypeImage, &metadata.ImageResourceParams{PicMip: 1})
	require.NoError(t, err)
	img = res.Data.(*metadata.ImageResourceData)
	assert.Equal(t, uint32(1), img.Width)
	assert.Len(t, img.Pixels, 4)
}

func TestAssetManager_ChangedScriptsAreDrained(t *testing.T) {
	am, root := newTestManager(t)
	assert.Nil(t, am.ChangedScripts())

	script := filepath.Join(root, "scripts", "base.shader")
	am.handleFileEvent(script, true)
	am.handleFileEvent(filepath.Join(root, "Textures", "Wall.png"), true)

	assert.Equal(t, []string{script}, am.ChangedScripts())
	assert.Nil(t, am.ChangedScripts())

	am.removeAsset(script)
	_, ok := am.Find("scripts/base", metadata.ResourceTypeShaderScript)
	assert.False(t, ok)
}

const resourceTypeSkin = metadata.ResourceTypeBitmapFont + 1

type skinLoader struct{}

func (skinLoader) Extensions() []string { return []string{".skin", ".png"} }

func (skinLoader) Load(path string, assetType metadata.ResourceType, params interface{}) (*metadata.Resource, error) {
	return &metadata.Resource{FullPath: path, Data: "skin"}, nil
}

func (skinLoader) Unload(*metadata.Resource) error { return nil }

func TestAssetManager_LoadersClaimExtensions(t *testing.T) {
	root := t.TempDir()
	writeFile(t, filepath.Join(root, "models", "head.skin"), []byte("skin"))
	writePNG(t, filepath.Join(root, "models", "head.png"))
	writeFile(t, filepath.Join(root, "models", "head.tga"), []byte("tga"))

	am, err := NewAssetManager(false)
	require.NoError(t, err)
	// a later loader takes over an extension
	am.registerLoader(resourceTypeSkin, skinLoader{})
	require.NoError(t, am.Initialize(root))
	t.Cleanup(func() { _ = am.Shutdown() })

	path, ok := am.Find("models/head", resourceTypeSkin)
	require.True(t, ok)
	res, err := am.LoadAsset(path, resourceTypeSkin, nil)
	require.NoError(t, err)
	assert.Equal(t, "skin", res.Data)

	_, ok = am.Find("models/head", metadata.ResourceTypeImage)
	assert.False(t, ok)
	assert.Len(t, am.Paths(resourceTypeSkin), 1)
}
