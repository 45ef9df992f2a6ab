package metadata

import "github.com/spaghettifunk/tessera/engine/math"

const (
	/** @brief The name of the default shader. */
	DEFAULT_SHADER_NAME string = "<default>"
	/** @brief Longest shader or image name accepted. */
	MAX_QPATH int = 64
	/** @brief Maximum stages a shader may declare. */
	MAX_SHADER_STAGES int = 8
	/** @brief Maximum deforms a shader may declare. */
	MAX_SHADER_DEFORMS int = 3
	/** @brief Maximum frames in an animMap. */
	MAX_IMAGE_ANIMATIONS int = 8
	/** @brief Maximum texture coordinate modifiers per bundle. */
	MAX_TEXMODS int = 4
	/** @brief Texture bundles per stage. Two once a pair has been collapsed. */
	NUM_TEXTURE_BUNDLES int = 2

	/** @brief Lightmap index of a shader that uses vertex lighting. */
	LIGHTMAP_BY_VERTEX int = -3
	/** @brief Lightmap index of a 2D shader. */
	LIGHTMAP_2D int = -4
	/** @brief Lightmap index of a shader without a lightmap. */
	LIGHTMAP_NONE int = -1
)

/**
 * @brief Shader sort classes. The order surfaces are drawn in is the order of
 * these values.
 */
type ShaderSort float32

const (
	SortBad           ShaderSort = 0
	SortPortal        ShaderSort = 1
	SortEnvironment   ShaderSort = 2
	SortOpaque        ShaderSort = 3
	SortDecal         ShaderSort = 4
	SortSeeThrough    ShaderSort = 5
	SortBanner        ShaderSort = 6
	SortFog           ShaderSort = 7
	SortUnderwater    ShaderSort = 8
	SortBlend0        ShaderSort = 9
	SortBlend1        ShaderSort = 10
	SortBlend2        ShaderSort = 11
	SortBlend3        ShaderSort = 12
	SortBlend6        ShaderSort = 13
	SortStencilShadow ShaderSort = 14
	SortAlmostNearest ShaderSort = 15
	SortNearest       ShaderSort = 16
)

/** @brief Periodic generator functions. */
type GenFunc int

const (
	GenFuncNone GenFunc = iota
	GenFuncSin
	GenFuncSquare
	GenFuncTriangle
	GenFuncSawtooth
	GenFuncInverseSawtooth
	GenFuncNoise
)

/** @brief A periodic waveform: base + func(phase + time*frequency) * amplitude. */
type WaveForm struct {
	Func      GenFunc
	Base      float32
	Amplitude float32
	Phase     float32
	Frequency float32
}

/** @brief Vertex deformation types. */
type DeformType int

const (
	DeformNone DeformType = iota
	DeformWave
	DeformNormals
	DeformBulge
	DeformMove
	DeformProjectionShadow
	DeformAutosprite
	DeformAutosprite2
	DeformText0
	DeformText1
	DeformText2
	DeformText3
	DeformText4
	DeformText5
	DeformText6
	DeformText7
)

/** @brief One vertex deformation, applied to the whole surface before shading. */
type DeformStage struct {
	Deformation DeformType
	/** @brief Direction for DeformMove. */
	MoveVector math.Vec3
	/** @brief Wave for DeformWave, DeformNormals and DeformMove. */
	DeformationWave WaveForm
	/** @brief Phase offset per world unit for DeformWave. */
	DeformationSpread float32
	BulgeWidth        float32
	BulgeHeight       float32
	BulgeSpeed        float32
}

/** @brief Color generators. */
type ColorGen int

const (
	CGenBad ColorGen = iota
	CGenIdentityLighting
	CGenIdentity
	CGenEntity
	CGenOneMinusEntity
	CGenExactVertex
	CGenVertex
	CGenOneMinusVertex
	CGenWaveform
	CGenLightingDiffuse
	CGenFog
	CGenConst
	CGenDebugAlpha
)

/** @brief Alpha generators. */
type AlphaGen int

const (
	AGenIdentity AlphaGen = iota
	AGenSkip
	AGenEntity
	AGenOneMinusEntity
	AGenVertex
	AGenOneMinusVertex
	AGenLightingSpecular
	AGenWaveform
	AGenPortal
	AGenConst
)

/** @brief Texture coordinate generators. */
type TexCoordGen int

const (
	TCGenBad TexCoordGen = iota
	TCGenIdentity
	TCGenLightmap
	TCGenTexture
	TCGenEnvironmentMapped
	TCGenFog
	TCGenVector
)

/** @brief Texture coordinate modifiers. */
type TexMod int

const (
	TModNone TexMod = iota
	TModTransform
	TModTurbulent
	TModScroll
	TModScale
	TModStretch
	TModRotate
	TModEntityTranslate
)

/** @brief One tcMod with its parameters. */
type TexModInfo struct {
	Type TexMod
	/** @brief Used by TModTurbulent and TModStretch. */
	Wave WaveForm
	/** @brief Used by TModTransform. */
	Matrix    [2][2]float32
	Translate [2]float32
	/** @brief Used by TModScale. */
	Scale [2]float32
	/** @brief Used by TModScroll, in units per second. */
	Scroll [2]float32
	/** @brief Used by TModRotate, in degrees per second. */
	RotateSpeed float32
}

/** @brief How stage colors are attenuated when a fog volume covers the surface. */
type AdjustColorsForFog int

const (
	ACFFNone AdjustColorsForFog = iota
	ACFFModulateRGB
	ACFFModulateRGBA
	ACFFModulateAlpha
)

/** @brief Hardware blend environment of a collapsed multitexture stage. */
type CollapseType int

const (
	CollapseNone CollapseType = iota
	CollapseModulate
	CollapseAdd
)

func (c CollapseType) String() string {
	switch c {
	case CollapseModulate:
		return "modulate"
	case CollapseAdd:
		return "add"
	}
	return "none"
}

/** @brief The textures and coordinate generation of one texture unit. */
type TextureBundle struct {
	/** @brief Animation frames, or a single image. */
	Images              [MAX_IMAGE_ANIMATIONS]*Texture
	NumImageAnimations  int
	ImageAnimationSpeed float32

	TCGen        TexCoordGen
	TCGenVectors [2]math.Vec3

	TexMods []TexModInfo

	/** @brief Handle of a video stream driving the texture, -1 when unused. */
	VideoMapHandle int
	IsLightmap     bool
	IsVideoMap     bool
}

/** @brief One layer of a shader. */
type ShaderStage struct {
	Active bool

	Bundle [NUM_TEXTURE_BUNDLES]TextureBundle

	RGBGen  ColorGen
	RGBWave WaveForm

	AlphaGen  AlphaGen
	AlphaWave WaveForm

	/** @brief Color used by CGenConst and AGenConst. */
	ConstantColor [4]uint8

	StateBits StateBits

	AdjustColorsForFog AdjustColorsForFog

	/** @brief Blend environment when two stages were merged into one. */
	MultitextureEnv CollapseType

	IsDetail bool

	/** @brief Soft sprite parameters from the depthFade directive. */
	DepthFade      bool
	DepthFadeScale float32
	DepthFadeBias  float32
}

/** @brief Which faces are removed by the hardware. */
type CullType int

const (
	CullFrontSided CullType = iota
	CullBackSided
	CullTwoSided
)

/** @brief How the fog pass is depth tested. */
type FogPass int

const (
	FogPassNone FogPass = iota
	FogPassEqual
	FogPassLessEqual
)

/** @brief Sky box and cloud layer parameters. */
type SkyParms struct {
	CloudHeight float32
	/** @brief Outer box faces; nil entries are not drawn. */
	OuterBox [6]*Texture
	InnerBox [6]*Texture
}

/** @brief Fog volume parameters. */
type FogParms struct {
	Color          math.Vec3
	DepthForOpaque float32
}

// Surface flags a shader can declare with surfaceParm.
const (
	SURF_NODAMAGE    int = 0x1
	SURF_SLICK       int = 0x2
	SURF_SKY         int = 0x4
	SURF_LADDER      int = 0x8
	SURF_NOIMPACT    int = 0x10
	SURF_NOMARKS     int = 0x20
	SURF_FLESH       int = 0x40
	SURF_NODRAW      int = 0x80
	SURF_HINT        int = 0x100
	SURF_SKIP        int = 0x200
	SURF_NOLIGHTMAP  int = 0x400
	SURF_POINTLIGHT  int = 0x800
	SURF_METALSTEPS  int = 0x1000
	SURF_NOSTEPS     int = 0x2000
	SURF_NONSOLID    int = 0x4000
	SURF_LIGHTFILTER int = 0x8000
	SURF_ALPHASHADOW int = 0x10000
	SURF_NODLIGHT    int = 0x20000
	SURF_DUST        int = 0x40000
)

// Content flags a shader can declare with surfaceParm.
const (
	CONTENTS_SOLID         int = 0x1
	CONTENTS_LAVA          int = 0x8
	CONTENTS_SLIME         int = 0x10
	CONTENTS_WATER         int = 0x20
	CONTENTS_FOG           int = 0x40
	CONTENTS_AREAPORTAL    int = 0x8000
	CONTENTS_PLAYERCLIP    int = 0x10000
	CONTENTS_MONSTERCLIP   int = 0x20000
	CONTENTS_CLUSTERPORTAL int = 0x100000
	CONTENTS_DONOTENTER    int = 0x200000
	CONTENTS_ORIGIN        int = 0x1000000
	CONTENTS_DETAIL        int = 0x8000000
	CONTENTS_STRUCTURAL    int = 0x10000000
	CONTENTS_TRANSLUCENT   int = 0x20000000
	CONTENTS_NODROP        int = -0x80000000
)

/**
 * @brief A named description of how a class of surfaces is rendered. Shaders
 * are immutable once the shader system has finalized them.
 */
type Shader struct {
	/** @brief The shader name, lower case and without extension. */
	Name string
	/** @brief Lightmap number, or one of the LIGHTMAP_ constants. */
	LightmapIndex int
	/** @brief Registration order, also the handle given to callers. */
	Index int
	/** @brief Position in the sort order, the value stored in sort keys. */
	SortedIndex int

	Sort ShaderSort

	DefaultShader     bool
	ExplicitlyDefined bool

	SurfaceFlags int
	ContentFlags int

	/** @brief Entity surfaces with this shader can share a batch. */
	EntityMergable bool

	IsSky bool
	Sky   SkyParms

	FogParms FogParms
	FogPass  FogPass

	PolygonOffset bool
	NoMipMaps     bool
	NoPicMip      bool

	NeedsNormal bool
	NeedsST1    bool
	NeedsST2    bool
	NeedsColor  bool

	Deforms []DeformStage

	/** @brief Active stages, at most MAX_SHADER_STAGES. */
	Stages            []*ShaderStage
	NumUnfoggedPasses int

	CullType CullType

	/** @brief Shader time is clamped to this many seconds when non zero. */
	ClampTime  float64
	TimeOffset float64

	/** @brief Distance at which AGenPortal reaches full alpha. */
	PortalRange float32

	/** @brief Stage additive dynamic light passes modulate, -1 when not eligible. */
	LightingStage int
	/** @brief Bundle of the lighting stage holding the diffuse texture. */
	LightingBundle int

	/** @brief Per-shader lightmap atlas correction: scale xy, bias xy. */
	LightmapScaleBias [4]float32
	HasLightmapScale  bool

	/** @brief Replacement installed by a shader remap, nil when not remapped. */
	RemappedShader *Shader
}

// HasDlightStage reports whether additive dynamic light passes can be applied.
func (s *Shader) HasDlightStage() bool {
	return s.LightingStage >= 0
}

// IsFogVolume reports whether the shader declares fog parameters.
func (s *Shader) IsFogVolume() bool {
	return s.ContentFlags&CONTENTS_FOG != 0
}
