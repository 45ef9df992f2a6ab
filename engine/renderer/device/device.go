package device

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief The fixed set of draw pipelines a device provides. */
type PipelineKind int

const (
	/** @brief Textured geometry with up to two texture units. */
	PipelineGeneric PipelineKind = iota
	/** @brief Additive dynamic light pass using the latched light. */
	PipelineDynamicLight
	/** @brief Textured geometry faded against scene depth. */
	PipelineSoftSprite
	/** @brief Full screen pass applied before presenting. */
	PipelinePostProcess
)

func (p PipelineKind) String() string {
	switch p {
	case PipelineDynamicLight:
		return "dlight"
	case PipelineSoftSprite:
		return "soft-sprite"
	case PipelinePostProcess:
		return "post-process"
	}
	return "generic"
}

/**
 * @brief Render state latched by ApplyState and used by subsequent draws.
 */
type State struct {
	Bits metadata.StateBits
	Cull metadata.CullType
	/** @brief Mirrored views flip the culled face. */
	Mirror bool
	/** @brief Device texture handles per unit; 0 leaves the unit unused. */
	Textures [2]uint32
	/** @brief Blend environment of the second unit. */
	TexEnv metadata.CollapseType
	/** @brief Soft sprite depth fade scale and bias. */
	DepthFade [2]float32
	/** @brief Display gamma of the post-process pipeline. */
	Gamma float32
}

/**
 * @brief Vertex streams of one draw. Slices are only valid during the call.
 */
type Geometry struct {
	XYZ       []math.Vec3
	Normals   []math.Vec3
	Indexes   []uint32
	Colors    [][4]uint8
	TexCoords [2][][2]float32
}

/** @brief Per light data latched by BeginDynamicLight. */
type DynamicLight struct {
	/** @brief Origin in the space of the current model matrix. */
	Origin   math.Vec3
	Color    math.Vec3
	Radius   float32
	Additive bool
}

/**
 * @brief Projection, viewport and clear settings for a 3D view.
 */
type View3D struct {
	X, Y, Width, Height int
	Projection          math.Mat4
	/** @brief Portal clip plane in eye space, nil when disabled. Points with
	 * dot(xyz, eye) + w < 0 are clipped. */
	ClipPlane  *math.Vec4
	ClearColor bool
	Color      math.Vec4
}

/** @brief Optional features, checked when the renderer starts. */
type Capabilities struct {
	MaxTextureSize  int
	MaxTextureUnits int
	SoftSprites     bool
	PostProcess     bool
}

/** @brief Information reported by PrintInfo. */
type Info struct {
	Vendor   string
	Renderer string
	Version  string
}

/**
 * @brief The graphics API layer the rendering core draws through. Every
 * backend implements it; nothing else in the renderer talks to the API.
 */
type Device interface {
	Init(width, height int) error
	Shutdown() error
	/** @brief Reports whether command execution may run on its own goroutine. */
	IsMultithreaded() bool
	Capabilities() Capabilities

	BeginFrame() error
	EndFrame() error

	/** @brief Pins the depth range to depth and disables the clip plane. */
	BeginSkyAndClouds(depth float32)
	EndSkyAndClouds()

	Begin2D(width, height int)
	/** @brief Sets up a 3D view and clears its depth buffer. */
	Begin3D(view *View3D)
	ClearDepth()
	SetModelViewMatrix(m math.Mat4)
	SetDepthRange(min, max float32)

	CreateTexture(tex *metadata.Texture, pixels []byte) error
	UpdateTexture(tex *metadata.Texture, x, y, width, height int, pixels []byte) error
	/** @brief Creates a texture and generates its full mip chain from pixels. */
	CreateTextureEx(tex *metadata.Texture, pixels []byte) error
	DestroyTexture(tex *metadata.Texture)

	ApplyState(state *State)
	Draw(kind PipelineKind, geo *Geometry)
	BeginDynamicLight(light *DynamicLight)

	/** @brief Reads back RGBA pixels, bottom row first. */
	ReadPixels(x, y, width, height int) ([]byte, error)
	PrintInfo() Info
}
