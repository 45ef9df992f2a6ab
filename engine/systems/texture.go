package systems

import (
	"fmt"
	"slices"
	"strings"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/tess"
)

const (
	defaultTextureSize = 16
	whiteTextureSize   = 8
	dlightTextureSize  = 16
	fogTextureS        = 256
	fogTextureT        = 32
)

type TextureSystemConfig struct {
	/** @brief The maximum number of textures that can be loaded at once. */
	MaxTextureCount uint32
	/** @brief Number of times picmip textures are halved on load. */
	PicMip int
	/** @brief Mix toward greyscale applied to loaded images, 0..1. */
	MapGreyscale float32
	/** @brief Reports texture names exempt from MapGreyscale. Optional. */
	GreyscaleExempt func(name string) bool
	/** @brief Bits lightmap colors are shifted up before upload. */
	MapOverbrightShift int
}

/**
 * @brief Owns every device texture: the built-in images, textures loaded from
 * disk, lightmap pages and scratch textures streamed by video stages.
 */
type TextureSystem struct {
	Config *TextureSystemConfig

	DefaultTexture *metadata.Texture
	WhiteTexture   *metadata.Texture
	FogTexture     *metadata.Texture
	DlightTexture  *metadata.Texture

	// Array of registered textures.
	RegisteredTextures []*metadata.Texture
	// Hashtable for texture lookups.
	RegisteredTextureTable map[string]*metadata.Texture

	lightmaps []*metadata.Texture
	scratch   []*metadata.Texture
	// released scratch handles, reused before new ones are made
	freeScratch []int

	/** @brief Converts lightmap pages in parallel when set. */
	Jobs *JobSystem

	// sub systems
	assetManager *assets.AssetManager
	dev          device.Device
}

func NewTextureSystem(config *TextureSystemConfig, am *assets.AssetManager, dev device.Device) (*TextureSystem, error) {
	if config.MaxTextureCount == 0 {
		err := fmt.Errorf("func NewTextureSystem - config.MaxTextureCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}

	return &TextureSystem{
		Config:                 config,
		RegisteredTextures:     make([]*metadata.Texture, 0, config.MaxTextureCount),
		RegisteredTextureTable: make(map[string]*metadata.Texture),
		assetManager:           am,
		dev:                    dev,
	}, nil
}

// Initialize creates the built-in textures on the device.
func (ts *TextureSystem) Initialize() error {
	var err error
	if ts.DefaultTexture, err = ts.CreateFromPixels(metadata.DEFAULT_TEXTURE_NAME, defaultTextureSize, defaultTextureSize, defaultPixels(), metadata.TextureFlagMipmap); err != nil {
		return err
	}
	if ts.WhiteTexture, err = ts.CreateFromPixels(metadata.WHITE_TEXTURE_NAME, whiteTextureSize, whiteTextureSize, solidPixels(whiteTextureSize, 255), 0); err != nil {
		return err
	}
	if ts.FogTexture, err = ts.CreateFromPixels(metadata.FOG_TEXTURE_NAME, fogTextureS, fogTextureT, fogPixels(), metadata.TextureFlagClampToEdge); err != nil {
		return err
	}
	if ts.DlightTexture, err = ts.CreateFromPixels(metadata.DLIGHT_TEXTURE_NAME, dlightTextureSize, dlightTextureSize, dlightPixels(), metadata.TextureFlagClampToEdge); err != nil {
		return err
	}
	return nil
}

// Images returns the built-in textures the evaluator binds on its own.
func (ts *TextureSystem) Images() tess.Images {
	return tess.Images{
		White:  ts.WhiteTexture,
		Fog:    ts.FogTexture,
		Dlight: ts.DlightTexture,
	}
}

func (ts *TextureSystem) Shutdown() error {
	// Destroy all loaded textures.
	for _, t := range ts.RegisteredTextures {
		ts.dev.DestroyTexture(t)
	}
	ts.RegisteredTextures = ts.RegisteredTextures[:0]
	ts.RegisteredTextureTable = make(map[string]*metadata.Texture)
	ts.lightmaps = nil
	ts.scratch = nil
	ts.freeScratch = nil
	return nil
}

// Find returns an already registered texture.
func (ts *TextureSystem) Find(name string) (*metadata.Texture, bool) {
	t, ok := ts.RegisteredTextureTable[textureKey(name)]
	return t, ok
}

// Acquire returns the named texture, loading it on first use. Built-in
// names starting with '*' resolve to the built-in textures.
func (ts *TextureSystem) Acquire(name string, flags metadata.TextureFlagBits) (*metadata.Texture, error) {
	if t, ok := ts.Find(name); ok {
		if t.Flags&metadata.TextureFlagClampToEdge != flags&metadata.TextureFlagClampToEdge {
			core.LogWarn("texture '%s' reused with a different clamp mode", name)
		}
		return t, nil
	}
	if strings.HasPrefix(name, "*") {
		return nil, fmt.Errorf("unknown built-in texture '%s'", name)
	}
	if ts.assetManager == nil {
		return nil, fmt.Errorf("texture '%s' not found: no asset manager", name)
	}

	params := &metadata.ImageResourceParams{FlipY: false}
	if flags&metadata.TextureFlagPicmip != 0 {
		params.PicMip = ts.Config.PicMip
	}
	res, err := ts.assetManager.Load(name, metadata.ResourceTypeImage, params)
	if err != nil {
		return nil, err
	}
	img := res.Data.(*metadata.ImageResourceData)

	if ts.Config.MapGreyscale > 0 && flags&metadata.TextureFlagNoGreyscale == 0 &&
		(ts.Config.GreyscaleExempt == nil || !ts.Config.GreyscaleExempt(name)) {
		greyscale(img.Pixels, ts.Config.MapGreyscale)
	}
	if img.HasTransparency {
		flags |= metadata.TextureFlagHasTransparency
	}
	return ts.CreateFromPixels(name, img.Width, img.Height, img.Pixels, flags)
}

// CreateFromPixels registers an RGBA8 texture and uploads it.
func (ts *TextureSystem) CreateFromPixels(name string, width, height uint32, pixels []byte, flags metadata.TextureFlagBits) (*metadata.Texture, error) {
	if uint32(len(ts.RegisteredTextures)) >= ts.Config.MaxTextureCount {
		return nil, fmt.Errorf("texture system full: %d textures", ts.Config.MaxTextureCount)
	}
	if len(pixels) < int(width*height*4) {
		return nil, fmt.Errorf("texture '%s': %d bytes for %dx%d", name, len(pixels), width, height)
	}

	t := &metadata.Texture{
		ID:     uint32(len(ts.RegisteredTextures)),
		Name:   name,
		Width:  width,
		Height: height,
		Flags:  flags,
		Repeat: metadata.TextureRepeatRepeat,
	}
	if flags&metadata.TextureFlagClampToEdge != 0 {
		t.Repeat = metadata.TextureRepeatClampToEdge
	}

	var err error
	if flags&metadata.TextureFlagMipmap != 0 {
		err = ts.dev.CreateTextureEx(t, pixels)
	} else {
		err = ts.dev.CreateTexture(t, pixels)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create texture '%s': %w", name, err)
	}
	t.Generation++

	ts.RegisteredTextures = append(ts.RegisteredTextures, t)
	ts.RegisteredTextureTable[textureKey(name)] = t
	return t, nil
}

/**
 * @brief Uploads the lightmap pages of a world, replacing any previous set.
 * Pages are converted to RGBA on the job system; device calls stay on the
 * calling goroutine.
 */
func (ts *TextureSystem) LoadLightmaps(pages []metadata.LightmapImage) error {
	ts.lightmaps = ts.lightmaps[:0]

	converted := make([][]byte, len(pages))
	group := ts.Jobs.Group()
	for i := range pages {
		group.Go(metadata.JOB_TYPE_GENERAL, func() error {
			pixels, err := lightmapPixels(&pages[i], ts.Config.MapOverbrightShift)
			if err != nil {
				return fmt.Errorf("lightmap %d: %w", i, err)
			}
			converted[i] = pixels
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return err
	}

	for i, page := range pages {
		pixels := converted[i]
		name := fmt.Sprintf("*lightmap%d", i)
		if old, ok := ts.Find(name); ok && old.Width == uint32(page.Width) && old.Height == uint32(page.Height) {
			if err := ts.dev.UpdateTexture(old, 0, 0, page.Width, page.Height, pixels); err != nil {
				return err
			}
			old.Generation++
			ts.lightmaps = append(ts.lightmaps, old)
			continue
		}
		t, err := ts.CreateFromPixels(name, uint32(page.Width), uint32(page.Height), pixels,
			metadata.TextureFlagLightmap|metadata.TextureFlagClampToEdge|metadata.TextureFlagNoGreyscale)
		if err != nil {
			return err
		}
		ts.lightmaps = append(ts.lightmaps, t)
	}
	return nil
}

// lightmapPixels expands an RGB page to overbright shifted RGBA.
func lightmapPixels(page *metadata.LightmapImage, shift int) ([]byte, error) {
	n := page.Width * page.Height
	if len(page.RGB) < n*3 {
		return nil, fmt.Errorf("%d bytes for %dx%d", len(page.RGB), page.Width, page.Height)
	}
	pixels := make([]byte, n*4)
	for p := 0; p < n; p++ {
		c := ColorShiftLightingBytes([3]byte{page.RGB[p*3], page.RGB[p*3+1], page.RGB[p*3+2]}, shift)
		pixels[p*4+0] = c[0]
		pixels[p*4+1] = c[1]
		pixels[p*4+2] = c[2]
		pixels[p*4+3] = 255
	}
	return pixels, nil
}

// Lightmap returns lightmap page index, or nil when the world has none.
func (ts *TextureSystem) Lightmap(index int) *metadata.Texture {
	if index < 0 || index >= len(ts.lightmaps) {
		return nil
	}
	return ts.lightmaps[index]
}

// CreateScratch allocates a texture whose contents are streamed every frame
// and returns its handle.
func (ts *TextureSystem) CreateScratch() (int, error) {
	if n := len(ts.freeScratch); n > 0 {
		handle := ts.freeScratch[n-1]
		t := ts.scratch[handle]
		t.Width, t.Height = whiteTextureSize, whiteTextureSize
		if err := ts.dev.CreateTexture(t, solidPixels(whiteTextureSize, 0)); err != nil {
			return -1, err
		}
		t.Generation++
		ts.freeScratch = ts.freeScratch[:n-1]
		return handle, nil
	}

	name := metadata.SCRATCH_TEXTURE_PREFIX + "-" + uuid.NewString()
	t, err := ts.CreateFromPixels(name, whiteTextureSize, whiteTextureSize, solidPixels(whiteTextureSize, 0), metadata.TextureFlagClampToEdge)
	if err != nil {
		return -1, err
	}
	ts.scratch = append(ts.scratch, t)
	return len(ts.scratch) - 1, nil
}

// ReleaseScratch frees the device texture behind a scratch handle. The
// handle resolves to nil until CreateScratch hands it out again.
func (ts *TextureSystem) ReleaseScratch(handle int) {
	t := ts.Scratch(handle)
	if t == nil {
		return
	}
	ts.dev.DestroyTexture(t)
	ts.freeScratch = append(ts.freeScratch, handle)
}

// Scratch resolves a scratch handle, nil when the handle is unknown or released.
func (ts *TextureSystem) Scratch(handle int) *metadata.Texture {
	if handle < 0 || handle >= len(ts.scratch) || slices.Contains(ts.freeScratch, handle) {
		return nil
	}
	return ts.scratch[handle]
}

// UploadScratch replaces the contents of a scratch texture, recreating it
// when the size changes.
func (ts *TextureSystem) UploadScratch(handle, width, height int, pixels []byte) error {
	t := ts.Scratch(handle)
	if t == nil {
		return fmt.Errorf("unknown scratch texture %d", handle)
	}
	if len(pixels) < width*height*4 {
		return fmt.Errorf("scratch texture %d: %d bytes for %dx%d", handle, len(pixels), width, height)
	}
	if uint32(width) != t.Width || uint32(height) != t.Height {
		ts.dev.DestroyTexture(t)
		t.Width = uint32(width)
		t.Height = uint32(height)
		if err := ts.dev.CreateTexture(t, pixels); err != nil {
			return err
		}
	} else if err := ts.dev.UpdateTexture(t, 0, 0, width, height, pixels); err != nil {
		return err
	}
	t.Generation++
	return nil
}

// ColorShiftLightingBytes scales a lightmap or vertex color by 1<<shift,
// normalizing by the brightest channel so hue is kept when it saturates.
func ColorShiftLightingBytes(in [3]byte, shift int) [3]byte {
	r := int(in[0]) << shift
	g := int(in[1]) << shift
	b := int(in[2]) << shift

	if (r | g | b) > 255 {
		maxc := max(r, g, b)
		r = r * 255 / maxc
		g = g * 255 / maxc
		b = b * 255 / maxc
	}
	return [3]byte{byte(r), byte(g), byte(b)}
}

func textureKey(name string) string {
	name = strings.ToLower(strings.ReplaceAll(name, "\\", "/"))
	if strings.HasPrefix(name, "*") {
		return name
	}
	if i := strings.LastIndexByte(name, '.'); i > strings.LastIndexByte(name, '/') {
		name = name[:i]
	}
	return name
}

func greyscale(pixels []byte, amount float32) {
	for i := 0; i+3 < len(pixels); i += 4 {
		r, g, b := float32(pixels[i]), float32(pixels[i+1]), float32(pixels[i+2])
		luma := tess.Luminance(r, g, b)
		pixels[i] = math.ClampByte(math.Lerp(r, luma, amount))
		pixels[i+1] = math.ClampByte(math.Lerp(g, luma, amount))
		pixels[i+2] = math.ClampByte(math.Lerp(b, luma, amount))
	}
}

func solidPixels(size int, value byte) []byte {
	pixels := make([]byte, size*size*4)
	for i := range pixels {
		pixels[i] = value
	}
	return pixels
}

// the default image is a dark box with a white border, so texture mapping
// stays visible
func defaultPixels() []byte {
	pixels := solidPixels(defaultTextureSize, 32)
	set := func(x, y int) {
		copy(pixels[(y*defaultTextureSize+x)*4:], []byte{255, 255, 255, 255})
	}
	for i := 0; i < defaultTextureSize; i++ {
		set(i, 0)
		set(0, i)
		set(i, defaultTextureSize-1)
		set(defaultTextureSize-1, i)
	}
	for i := 3; i < len(pixels); i += 4 {
		pixels[i] = 255
	}
	return pixels
}

func dlightPixels() []byte {
	pixels := make([]byte, dlightTextureSize*dlightTextureSize*4)
	half := float32(dlightTextureSize)/2 - 0.5
	for y := 0; y < dlightTextureSize; y++ {
		for x := 0; x < dlightTextureSize; x++ {
			dx, dy := half-float32(x), half-float32(y)
			b := 4000 / (dx*dx + dy*dy)
			if b > 255 {
				b = 255
			} else if b < 75 {
				b = 0
			}
			o := (y*dlightTextureSize + x) * 4
			pixels[o], pixels[o+1], pixels[o+2], pixels[o+3] = byte(b), byte(b), byte(b), 255
		}
	}
	return pixels
}

func fogPixels() []byte {
	pixels := make([]byte, fogTextureS*fogTextureT*4)
	for y := 0; y < fogTextureT; y++ {
		for x := 0; x < fogTextureS; x++ {
			d := tess.FogFactor((float32(x)+0.5)/fogTextureS, (float32(y)+0.5)/fogTextureT)
			o := (y*fogTextureS + x) * 4
			pixels[o], pixels[o+1], pixels[o+2] = 255, 255, 255
			pixels[o+3] = math.ClampByte(255 * d)
		}
	}
	return pixels
}
