package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadMissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.toml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadTOML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.toml")
	data := `
smp_frames = 7
overbright_bits = 1
greyscale = 2.5
greyscale_whitelist = ["textures/ctf/red_telep", "textures/ctf/blue_telep"]
screenshot_format = "TIFF"
max_vertexes = 10
`
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.SMPFrames)
	assert.Equal(t, float32(1), cfg.Greyscale)
	assert.Equal(t, "tiff", cfg.ScreenshotFormat)
	assert.Equal(t, MinVertexes, cfg.MaxVertexes)
	assert.True(t, cfg.IsGreyscaleExempt("TEXTURES/CTF/RED_TELEP"))
	assert.False(t, cfg.IsGreyscaleExempt("textures/base/wall"))
	assert.Equal(t, uint8(127), cfg.IdentityLightByte())
	assert.Equal(t, 1, cfg.MapOverbrightShift())
}

func TestLoadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.yaml")
	data := "dynamic_lights: false\nsmp_frames: 1\nscreenshot_format: gif\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.False(t, cfg.DynamicLights)
	assert.Equal(t, 1, cfg.SMPFrames)
	assert.Equal(t, "png", cfg.ScreenshotFormat)
}

func TestLoadUnsupportedFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.ini")
	require.NoError(t, os.WriteFile(path, []byte("x=1"), 0o644))
	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoadBackendAndGamma(t *testing.T) {
	path := filepath.Join(t.TempDir(), "renderer.toml")
	data := "backend = \"Vulkan\"\nvalidation = true\ngamma = 9\n"
	require.NoError(t, os.WriteFile(path, []byte(data), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, BackendVulkan, cfg.Backend)
	assert.True(t, cfg.Validation)
	assert.Equal(t, float32(3), cfg.Gamma)

	cfg = Default()
	cfg.Backend = "d3d9"
	cfg.Gamma = 0
	cfg.Normalize()
	assert.Equal(t, BackendOpenGL, cfg.Backend)
	assert.Equal(t, float32(1), cfg.Gamma)
}
