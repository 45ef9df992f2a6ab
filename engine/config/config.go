package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
)

// Hard limits the tessellation buffer and sort key layout impose.
const (
	MaxShaders       = 1 << 14
	MaxEntities      = 1023
	MaxFogs          = 32
	MaxDlights       = 32
	MaxShaderStages  = 8
	MinVertexes      = 1000
	MinIndexes       = 6000
	DefaultVertexes  = 4000
	DefaultIndexes   = 6 * DefaultVertexes
	DefaultDrawSurfs = 0x10000
	DefaultCommands  = 0x80000
)

// Render device implementations the engine can create.
const (
	BackendOpenGL = "opengl"
	BackendVulkan = "vulkan"
)

/**
 * @brief The renderer configuration. Every field has a default and is
 * clamped by Normalize, so a partial file is always valid.
 */
type RendererConfig struct {
	LogLevel string `toml:"log_level" yaml:"log_level"`

	/** @brief "opengl" or "vulkan". */
	Backend string `toml:"backend" yaml:"backend"`
	/** @brief Directory holding the compiled SPIR-V modules of the Vulkan device. */
	SPIRVDir string `toml:"spirv_dir" yaml:"spirv_dir"`
	/** @brief Enables the Khronos validation layer when it is installed. */
	Validation bool `toml:"validation" yaml:"validation"`

	/** @brief Display gamma applied by the post-process pass; 1 skips it. */
	Gamma float32 `toml:"gamma" yaml:"gamma"`

	/** @brief Number of overbright bits the hardware gamma can reproduce. */
	OverbrightBits    int `toml:"overbright_bits" yaml:"overbright_bits"`
	MapOverbrightBits int `toml:"map_overbright_bits" yaml:"map_overbright_bits"`

	/** @brief Mix factor toward greyscale for lighting-diffuse and textures, 0..1. */
	Greyscale    float32 `toml:"greyscale" yaml:"greyscale"`
	MapGreyscale float32 `toml:"map_greyscale" yaml:"map_greyscale"`
	/** @brief Texture names exempt from map greyscale (team colored content). */
	GreyscaleWhitelist []string `toml:"greyscale_whitelist" yaml:"greyscale_whitelist"`

	DynamicLights bool `toml:"dynamic_lights" yaml:"dynamic_lights"`
	/** @brief 0 = projected additive passes, 1 = dedicated dynamic light pipeline. */
	DlightMode int `toml:"dlight_mode" yaml:"dlight_mode"`

	NoVis         bool `toml:"novis" yaml:"novis"`
	NoCull        bool `toml:"nocull" yaml:"nocull"`
	LockPVS       bool `toml:"lockpvs" yaml:"lockpvs"`
	FacePlaneCull bool `toml:"face_plane_cull" yaml:"face_plane_cull"`
	PortalOnly    bool `toml:"portal_only" yaml:"portal_only"`

	LodCurveError float32 `toml:"lod_curve_error" yaml:"lod_curve_error"`
	LodBias       int     `toml:"lod_bias" yaml:"lod_bias"`

	/** @brief Number of times picmip textures are halved on load. */
	PicMip int `toml:"picmip" yaml:"picmip"`

	MaxVertexes  int `toml:"max_vertexes" yaml:"max_vertexes"`
	MaxIndexes   int `toml:"max_indexes" yaml:"max_indexes"`
	MaxDrawSurfs int `toml:"max_draw_surfs" yaml:"max_draw_surfs"`
	MaxLitSurfs  int `toml:"max_lit_surfs" yaml:"max_lit_surfs"`
	MaxPolys     int `toml:"max_polys" yaml:"max_polys"`
	MaxPolyVerts int `toml:"max_poly_verts" yaml:"max_poly_verts"`

	/** @brief Byte budget of one frame's render command list. */
	CommandBufferSize int `toml:"command_buffer_size" yaml:"command_buffer_size"`
	/** @brief Number of back-end frames in flight, 1..3. */
	SMPFrames int `toml:"smp_frames" yaml:"smp_frames"`

	SoftSprites bool `toml:"soft_sprites" yaml:"soft_sprites"`

	ScreenshotDir    string `toml:"screenshot_dir" yaml:"screenshot_dir"`
	ScreenshotFormat string `toml:"screenshot_format" yaml:"screenshot_format"`

	/** @brief Asset roots searched for shader scripts, images and fonts. */
	ShaderDirs []string `toml:"shader_dirs" yaml:"shader_dirs"`
	HotReload  bool     `toml:"hot_reload" yaml:"hot_reload"`

	Speeds   bool `toml:"speeds" yaml:"speeds"`
	ShowTris bool `toml:"show_tris" yaml:"show_tris"`
}

// Default returns the configuration used when no file is present.
func Default() *RendererConfig {
	return &RendererConfig{
		LogLevel:          "info",
		Backend:           BackendOpenGL,
		SPIRVDir:          "engine/renderer/vulkan/shaders",
		Gamma:             1,
		OverbrightBits:    1,
		MapOverbrightBits: 2,
		DynamicLights:     true,
		FacePlaneCull:     true,
		LodCurveError:     250,
		MaxVertexes:       DefaultVertexes,
		MaxIndexes:        DefaultIndexes,
		MaxDrawSurfs:      DefaultDrawSurfs,
		MaxLitSurfs:       DefaultDrawSurfs,
		MaxPolys:          600,
		MaxPolyVerts:      3000,
		CommandBufferSize: DefaultCommands,
		SMPFrames:         2,
		SoftSprites:       true,
		ScreenshotDir:     "screenshots",
		ScreenshotFormat:  "png",
		ShaderDirs:        []string{"assets"},
	}
}

// Load reads a .toml or .yaml configuration file on top of the defaults.
// A missing file is not an error.
func Load(path string) (*RendererConfig, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			core.LogInfo("config file '%s' not found, using defaults", path)
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config '%s': %w", path, err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".toml":
		err = toml.Unmarshal(data, cfg)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		return nil, fmt.Errorf("unsupported config format '%s'", filepath.Ext(path))
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode config '%s': %w", path, err)
	}

	cfg.Normalize()
	return cfg, nil
}

// Normalize clamps every field into its valid range.
func (c *RendererConfig) Normalize() {
	switch strings.ToLower(c.Backend) {
	case BackendOpenGL, BackendVulkan:
		c.Backend = strings.ToLower(c.Backend)
	default:
		core.LogWarn("unknown backend '%s', using %s", c.Backend, BackendOpenGL)
		c.Backend = BackendOpenGL
	}
	if c.Gamma == 0 {
		c.Gamma = 1
	}
	c.Gamma = math.Clamp(c.Gamma, 0.5, 3)
	c.OverbrightBits = math.Clamp(c.OverbrightBits, 0, 2)
	c.MapOverbrightBits = math.Clamp(c.MapOverbrightBits, 0, 4)
	c.Greyscale = math.Clamp(c.Greyscale, 0, 1)
	c.MapGreyscale = math.Clamp(c.MapGreyscale, 0, 1)
	c.DlightMode = math.Clamp(c.DlightMode, 0, 1)
	if c.LodCurveError < 1 {
		c.LodCurveError = 1
	}
	c.LodBias = math.Clamp(c.LodBias, 0, 2)
	c.PicMip = math.Clamp(c.PicMip, 0, 4)

	c.MaxVertexes = math.Clamp(c.MaxVertexes, MinVertexes, 0xffff)
	if c.MaxIndexes < MinIndexes {
		c.MaxIndexes = MinIndexes
	}
	if c.MaxDrawSurfs < 1 {
		c.MaxDrawSurfs = DefaultDrawSurfs
	}
	if c.MaxLitSurfs < 1 {
		c.MaxLitSurfs = c.MaxDrawSurfs
	}
	if c.MaxPolys < 1 {
		c.MaxPolys = 600
	}
	if c.MaxPolyVerts < 1 {
		c.MaxPolyVerts = 3000
	}
	if c.CommandBufferSize < 1024 {
		c.CommandBufferSize = 1024
	}
	c.SMPFrames = math.Clamp(c.SMPFrames, 1, 3)

	switch strings.ToLower(c.ScreenshotFormat) {
	case "png", "bmp", "tiff":
		c.ScreenshotFormat = strings.ToLower(c.ScreenshotFormat)
	default:
		core.LogWarn("unknown screenshot format '%s', using png", c.ScreenshotFormat)
		c.ScreenshotFormat = "png"
	}
}

// MapOverbrightShift is the number of bits lightmap and vertex colors are
// shifted by once the hardware overbright bits are accounted for.
func (c *RendererConfig) MapOverbrightShift() int {
	shift := c.MapOverbrightBits - c.OverbrightBits
	if shift < 0 {
		return 0
	}
	return shift
}

// IdentityLight is the scale applied to colors so that hardware overbright
// output a midtone of 1.0.
func (c *RendererConfig) IdentityLight() float32 {
	return 1.0 / float32(int(1)<<c.OverbrightBits)
}

// IdentityLightByte is IdentityLight as a 0..255 color channel.
func (c *RendererConfig) IdentityLightByte() uint8 {
	return math.ClampByte(255 * c.IdentityLight())
}

// IsGreyscaleExempt reports whether a texture is listed in the greyscale whitelist.
func (c *RendererConfig) IsGreyscaleExempt(texture string) bool {
	for _, name := range c.GreyscaleWhitelist {
		if strings.EqualFold(name, texture) {
			return true
		}
	}
	return false
}
