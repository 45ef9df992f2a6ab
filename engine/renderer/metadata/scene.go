package metadata

import "github.com/spaghettifunk/tessera/engine/math"

const (
	/** @brief Entity number used for world surfaces. */
	ENTITYNUM_WORLD int = 1022
	/** @brief Maximum entities per scene, world excluded. */
	MAX_REFENTITIES int = 1022
	/** @brief Maximum dynamic lights per scene. */
	MAX_DLIGHTS int = 32
	/** @brief Maximum fog volumes a sort key can address. */
	MAX_FOGS int = 32
	/** @brief Maximum bytes of the area visibility mask. */
	MAX_MAP_AREA_BYTES int = 32
)

/** @brief Kind of scene entity. */
type RefEntityType int

const (
	RTModel RefEntityType = iota
	RTPoly
	RTSprite
	RTBeam
	RTRailCore
	RTRailRings
	RTLightning
	RTPortalSurface
)

// Render flags of a scene entity.
const (
	RF_MINLIGHT        int = 0x0001
	RF_THIRD_PERSON    int = 0x0002
	RF_FIRST_PERSON    int = 0x0004
	RF_DEPTHHACK       int = 0x0008
	RF_NOSHADOW        int = 0x0040
	RF_LIGHTING_ORIGIN int = 0x0080
	RF_WRAP_FRAMES     int = 0x0200
)

// Scene flags of a RefDef.
const (
	RDF_NOWORLDMODEL int = 0x0001
	RDF_HYPERSPACE   int = 0x0004
)

/** @brief Kind of registered model. */
type ModelType int

const (
	ModelBad ModelType = iota
	ModelBrush
	ModelMesh
)

/** @brief One frame of a keyframed mesh. */
type MD3Frame struct {
	Bounds      math.Bounds
	LocalOrigin math.Vec3
	Radius      float32
}

/** @brief A keyframed mesh model at one level of detail. */
type MD3Model struct {
	Name     string
	Frames   []MD3Frame
	Surfaces []*SurfaceMD3
}

/** @brief A registered model. */
type Model struct {
	Name   string
	Type   ModelType
	Index  int
	BModel *BModel
	/** @brief Levels of detail, most detailed first. */
	MD3 []*MD3Model
}

/**
 * @brief An entity as submitted by the game for one scene.
 */
type RefEntity struct {
	ReType   RefEntityType
	RenderFX int

	Model *Model

	/** @brief Used instead of Origin for lighting when RF_LIGHTING_ORIGIN is set. */
	LightingOrigin math.Vec3

	Axis              math.Axis
	NonNormalizedAxes bool
	Origin            math.Vec3
	Frame             int

	OldOrigin math.Vec3
	OldFrame  int
	/** @brief 0.0 = current frame, 1.0 = old frame. */
	Backlerp float32

	CustomShader *Shader

	ShaderRGBA     [4]uint8
	ShaderTexCoord [2]float32
	/** @brief Subtracted from the refdef time for shader animation, in seconds. */
	ShaderTime float64

	// extra sprite information
	Radius   float32
	Rotation float32
}

/**
 * @brief A scene entity with the lighting the front end computed for it.
 */
type SceneEntity struct {
	E RefEntity

	LightingCalculated bool
	/** @brief Normalized direction towards the light, in entity space. */
	LightDir math.Vec3
	/** @brief 0..255 per channel. */
	AmbientLight math.Vec3
	/** @brief Packed ambient color emitted for vertices facing away from the light. */
	AmbientLightInt [4]uint8
	DirectedLight   math.Vec3
	/** @brief Dynamic lights touch this entity's bounds. */
	NeedDlights bool
}

/**
 * @brief A dynamic light. The lit-surface list is rebuilt every frame.
 */
type Dlight struct {
	Origin   math.Vec3
	Color    math.Vec3
	Radius   float32
	Additive bool

	/** @brief Origin in the space of the entity currently being drawn. */
	Transformed math.Vec3

	/** @brief Head and tail of this frame's lit surfaces. */
	Head *LitSurf
	Tail *LitSurf
}

/** @brief A polygon submitted by the game for one scene. */
type Poly struct {
	Shader   *Shader
	FogIndex int
	Verts    []PolyVert
}

/**
 * @brief The scene description passed to RenderScene.
 */
type RefDef struct {
	X      int
	Y      int
	Width  int
	Height int
	FovX   float32
	FovY   float32

	ViewOrg  math.Vec3
	ViewAxis math.Axis

	/** @brief Scene time in milliseconds. */
	Time    int
	RDFlags int

	/** @brief Bit per area; a set bit blocks the area (closed door). */
	AreaMask [MAX_MAP_AREA_BYTES]byte

	/** @brief Strings drawn by text0..text7 deforms. */
	Text [8]string
}

/**
 * @brief A local coordinate frame and the matrix placing it in view space.
 */
type Orientation struct {
	Origin      math.Vec3
	Axis        math.Axis
	ViewOrigin  math.Vec3
	ModelMatrix math.Mat4
}

/**
 * @brief Everything needed to draw one view: orientation, frustum and the
 * range of draw surfaces it produced.
 */
type ViewParms struct {
	Or    Orientation
	World Orientation

	/** @brief Point the PVS is computed from, differs from the origin for portals. */
	PVSOrigin math.Vec3

	IsPortal bool
	IsMirror bool

	FrameSceneNum int
	FrameCount    int

	PortalPlane math.Plane

	ViewportX      int
	ViewportY      int
	ViewportWidth  int
	ViewportHeight int

	FovX float32
	FovY float32

	ProjectionMatrix math.Mat4
	/** @brief Left, right, bottom, top and near planes. */
	Frustum   [5]math.Plane
	VisBounds math.Bounds
	ZFar      float32
	ZNear     float32
}
