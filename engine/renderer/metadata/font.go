package metadata

/** @brief Number of glyphs in a font table. */
const GLYPHS_PER_FONT int = 256

/**
 * @brief One glyph of a registered font, in texture space of its page.
 */
type GlyphInfo struct {
	Height      int
	Top         int
	Bottom      int
	Pitch       int
	XSkip       int
	ImageWidth  int
	ImageHeight int
	S           float32
	T           float32
	S2          float32
	T2          float32
	/** @brief Shader of the page texture holding the glyph. */
	Glyph *Shader
	/** @brief Kerning adjustment against the following rune. */
	Kerning map[rune]int
}

/**
 * @brief A font registered from a bitmap font descriptor.
 */
type FontInfo struct {
	Name       string
	Face       string
	Size       int
	LineHeight int
	Baseline   int
	GlyphScale float32
	Glyphs     [GLYPHS_PER_FONT]GlyphInfo
}
