package systems

import (
	"fmt"
	"path"
	"strings"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief The configuration for the font system. */
type FontSystemConfig struct {
	/** @brief The maximum number of fonts that can be registered. */
	MaxFontCount int
}

/**
 * @brief Registers bitmap fonts. Every glyph page becomes a 2D shader, so
 * text is drawn with ordinary stretch pics.
 */
type FontSystem struct {
	Config *FontSystemConfig
	Fonts  []*metadata.FontInfo

	lookup map[string]*metadata.FontInfo

	// sub systems
	shaderSystem *ShaderSystem
	assetManager *assets.AssetManager
}

func NewFontSystem(config *FontSystemConfig, ss *ShaderSystem, am *assets.AssetManager) (*FontSystem, error) {
	if config.MaxFontCount <= 0 {
		err := fmt.Errorf("func NewFontSystem - config.MaxFontCount must be > 0")
		core.LogError(err.Error())
		return nil, err
	}
	return &FontSystem{
		Config:       config,
		Fonts:        make([]*metadata.FontInfo, 0, config.MaxFontCount),
		lookup:       make(map[string]*metadata.FontInfo),
		shaderSystem: ss,
		assetManager: am,
	}, nil
}

func (fs *FontSystem) Shutdown() error {
	fs.Fonts = fs.Fonts[:0]
	fs.lookup = make(map[string]*metadata.FontInfo)
	return nil
}

/**
 * @brief Loads a BMFont descriptor and builds its glyph table. Fonts are
 * cached by name and point size.
 * @param name Asset name or path of the .fnt file.
 * @param pointSize Size the font is drawn at; 0 keeps the descriptor size.
 */
func (fs *FontSystem) RegisterFont(name string, pointSize int) (*metadata.FontInfo, error) {
	key := fmt.Sprintf("%s_%d", strings.ToLower(name), pointSize)
	if f, ok := fs.lookup[key]; ok {
		return f, nil
	}
	if len(fs.Fonts) >= fs.Config.MaxFontCount {
		return nil, fmt.Errorf("font '%s': no space left, increase the maximum font count", name)
	}

	var (
		res *metadata.Resource
		err error
	)
	if p, ok := fs.assetManager.Find(name, metadata.ResourceTypeBitmapFont); ok {
		res, err = fs.assetManager.LoadAsset(p, metadata.ResourceTypeBitmapFont, nil)
	} else {
		res, err = fs.assetManager.LoadAsset(name, metadata.ResourceTypeBitmapFont, nil)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load font '%s': %w", name, err)
	}
	data := res.Data.(*metadata.BitmapFontResourceData)

	font := fs.buildFont(res.Name, data, pointSize)
	if err := fs.assetManager.UnloadAsset(res, metadata.ResourceTypeBitmapFont); err != nil {
		core.LogWarn("font '%s': %s", name, err.Error())
	}

	fs.Fonts = append(fs.Fonts, font)
	fs.lookup[key] = font
	core.LogDebug("registered font '%s' (%s %d) with %d pages", name, font.Face, font.Size, len(data.Pages))
	return font, nil
}

func (fs *FontSystem) buildFont(name string, data *metadata.BitmapFontResourceData, pointSize int) *metadata.FontInfo {
	font := &metadata.FontInfo{
		Name:       name,
		Face:       data.Face,
		Size:       int(data.Size),
		LineHeight: int(data.LineHeight),
		Baseline:   int(data.Baseline),
		GlyphScale: 1,
	}
	if pointSize > 0 && data.Size > 0 {
		font.GlyphScale = float32(pointSize) / float32(data.Size)
	}

	// page images live next to the descriptor
	pages := make(map[uint8]*metadata.Shader, len(data.Pages))
	dir := path.Dir(name)
	for _, p := range data.Pages {
		pageName := p.File
		if dir != "." {
			pageName = path.Join(dir, p.File)
		}
		handle := fs.shaderSystem.RegisterShaderNoMip(pageName)
		pages[uint8(p.ID)] = fs.shaderSystem.GetShaderByHandle(handle)
	}

	atlasW, atlasH := float32(data.AtlasSizeX), float32(data.AtlasSizeY)
	if atlasW <= 0 {
		atlasW = 1
	}
	if atlasH <= 0 {
		atlasH = 1
	}
	for _, g := range data.Glyphs {
		if g.Codepoint < 0 || int(g.Codepoint) >= metadata.GLYPHS_PER_FONT {
			continue
		}
		top := int(data.Baseline) - int(g.YOffset)
		font.Glyphs[g.Codepoint] = metadata.GlyphInfo{
			Height:      int(g.Height),
			Top:         top,
			Bottom:      top - int(g.Height),
			Pitch:       int(g.XOffset),
			XSkip:       int(g.XAdvance),
			ImageWidth:  int(g.Width),
			ImageHeight: int(g.Height),
			S:           float32(g.X) / atlasW,
			T:           float32(g.Y) / atlasH,
			S2:          float32(int(g.X)+int(g.Width)) / atlasW,
			T2:          float32(int(g.Y)+int(g.Height)) / atlasH,
			Glyph:       pages[g.PageID],
		}
	}
	for _, k := range data.Kernings {
		if k.Codepoint0 < 0 || int(k.Codepoint0) >= metadata.GLYPHS_PER_FONT {
			continue
		}
		g := &font.Glyphs[k.Codepoint0]
		if g.Kerning == nil {
			g.Kerning = make(map[rune]int)
		}
		g.Kerning[k.Codepoint1] = int(k.Amount)
	}
	return font
}
