package metadata

type ResourceType int

/** @brief Pre-defined resource types. */
const (
	/** @brief Unknown or unsupported file. */
	ResourceTypeNone ResourceType = iota
	/** @brief Shader script text holding any number of shader blocks. */
	ResourceTypeShaderScript
	/** @brief Image resource type. */
	ResourceTypeImage
	/** @brief Bitmap font descriptor. */
	ResourceTypeBitmapFont
)

func (r ResourceType) String() string {
	switch r {
	case ResourceTypeShaderScript:
		return "shader-script"
	case ResourceTypeImage:
		return "image"
	case ResourceTypeBitmapFont:
		return "bitmap-font"
	}
	return "none"
}

/**
 * @brief A generic structure for a resource. All resource loaders
 * load data into these.
 */
type Resource struct {
	/** @brief The name of the resource, its path relative to the asset root without extension. */
	Name string
	/** @brief The full file path of the resource. */
	FullPath string
	/** @brief The size of the resource data in bytes. */
	DataSize uint64
	/** @brief The resource data. */
	Data interface{}
}

/** @brief Parameters used when loading an image. */
type ImageResourceParams struct {
	/** @brief Flip the rows so the first row is the bottom of the image. */
	FlipY bool
	/** @brief Halve the image this many times, never below 1x1. */
	PicMip int
}

/** @brief Decoded image, always RGBA8. */
type ImageResourceData struct {
	ChannelCount uint8
	Width        uint32
	Height       uint32
	Pixels       []byte
	/** @brief Set when any pixel is not fully opaque. */
	HasTransparency bool
}

/** @brief One glyph of a bitmap font page, in pixels. */
type FontGlyph struct {
	Codepoint rune
	X         uint16
	Y         uint16
	Width     uint16
	Height    uint16
	XOffset   int16
	YOffset   int16
	XAdvance  int16
	PageID    uint8
}

/** @brief Kerning amount between two codepoints. */
type FontKerning struct {
	Codepoint0 rune
	Codepoint1 rune
	Amount     int16
}

/** @brief A texture page of a bitmap font. */
type BitmapFontPage struct {
	ID   int8
	File string
}

/** @brief Data read from a bitmap font descriptor. */
type BitmapFontResourceData struct {
	Face       string
	Size       uint32
	LineHeight int32
	Baseline   int32
	AtlasSizeX int32
	AtlasSizeY int32
	Glyphs     []*FontGlyph
	Kernings   []*FontKerning
	Pages      []*BitmapFontPage
}
