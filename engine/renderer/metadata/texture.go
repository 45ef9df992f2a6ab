package metadata

const (
	/** @brief The default texture name. */
	DEFAULT_TEXTURE_NAME string = "*default"
	/** @brief A plain white texture. */
	WHITE_TEXTURE_NAME string = "*white"
	/** @brief The fog falloff texture. */
	FOG_TEXTURE_NAME string = "*fog"
	/** @brief The dynamic light falloff texture. */
	DLIGHT_TEXTURE_NAME string = "*dlight"
	/** @brief Scratch textures streamed by videoMap stages. */
	SCRATCH_TEXTURE_PREFIX string = "*scratch"
)

/** @brief Holds bit flags for textures. */
type TextureFlagBits uint16

const (
	/** @brief Indicates if the texture has transparency. */
	TextureFlagHasTransparency TextureFlagBits = 0x1
	/** @brief A full mip chain is generated from the base level. */
	TextureFlagMipmap TextureFlagBits = 0x2
	/** @brief The texture may be downscaled by the picmip setting. */
	TextureFlagPicmip TextureFlagBits = 0x4
	/** @brief Texture coordinates are clamped to the edge. */
	TextureFlagClampToEdge TextureFlagBits = 0x8
	/** @brief The texture is a lightmap page. */
	TextureFlagLightmap TextureFlagBits = 0x10
	/** @brief Upload without resampling to a power of two. */
	TextureFlagNoScale TextureFlagBits = 0x20
	/** @brief Exempt from greyscale conversion. */
	TextureFlagNoGreyscale TextureFlagBits = 0x40
)

/**
 * @brief Represents supported texture filtering modes.
 */
type TextureFilter int

const (
	/** @brief Nearest-neighbor filtering. */
	TextureFilterModeNearest TextureFilter = 0x0
	/** @brief Linear (i.e. bilinear) filtering.*/
	TextureFilterModeLinear TextureFilter = 0x1
)

type TextureRepeat int

const (
	TextureRepeatRepeat      TextureRepeat = 0x1
	TextureRepeatClampToEdge TextureRepeat = 0x3
)

/**
 * @brief Represents a texture.
 */
type Texture struct {
	/** @brief The registration index. */
	ID uint32
	/** @brief Device handle returned by CreateTexture. */
	Handle uint32
	/** @brief The texture Width. */
	Width uint32
	/** @brief The texture Height. */
	Height uint32
	/** @brief Holds various Flags for this texture. */
	Flags TextureFlagBits
	/** @brief Repeat mode used when sampling. */
	Repeat TextureRepeat
	/** @brief The texture Generation. Incremented every time the data is reloaded. */
	Generation uint32
	/** @brief The texture Name. */
	Name string
}

// HasFlag reports whether every bit in f is set.
func (t *Texture) HasFlag(f TextureFlagBits) bool {
	return t.Flags&f == f
}
