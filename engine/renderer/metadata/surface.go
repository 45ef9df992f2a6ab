package metadata

import "github.com/spaghettifunk/tessera/engine/math"

/** @brief Discriminates the Surface variants. */
type SurfaceType int

const (
	SurfaceTypeBad SurfaceType = iota
	SurfaceTypeSkip
	SurfaceTypeFace
	SurfaceTypeGrid
	SurfaceTypeTriangles
	SurfaceTypePoly
	SurfaceTypeMD3
	SurfaceTypeFlare
	SurfaceTypeEntity
)

func (s SurfaceType) String() string {
	switch s {
	case SurfaceTypeSkip:
		return "skip"
	case SurfaceTypeFace:
		return "face"
	case SurfaceTypeGrid:
		return "grid"
	case SurfaceTypeTriangles:
		return "triangles"
	case SurfaceTypePoly:
		return "poly"
	case SurfaceTypeMD3:
		return "md3"
	case SurfaceTypeFlare:
		return "flare"
	case SurfaceTypeEntity:
		return "entity"
	}
	return "bad"
}

/**
 * @brief Geometry that can be expanded into the tessellation buffer. The set of
 * implementations is closed; the tessellator switches on SurfaceType.
 */
type Surface interface {
	SurfaceType() SurfaceType
}

/** @brief A world vertex. */
type DrawVert struct {
	XYZ      math.Vec3
	ST       [2]float32
	Lightmap [2]float32
	Normal   math.Vec3
	Color    [4]uint8
}

/** @brief A surface that contributes nothing. */
type SurfaceSkip struct{}

func (*SurfaceSkip) SurfaceType() SurfaceType { return SurfaceTypeSkip }

/** @brief A planar polygon with a precomputed plane. */
type SurfaceFace struct {
	Plane   math.Plane
	Verts   []DrawVert
	Indexes []uint32
}

func (*SurfaceFace) SurfaceType() SurfaceType { return SurfaceTypeFace }

/**
 * @brief A bi-quadratic patch already subdivided into a width x height control
 * grid, with per-row and per-column level of detail errors.
 */
type SurfaceGrid struct {
	MeshBounds  math.Bounds
	LocalOrigin math.Vec3
	MeshRadius  float32

	/** @brief Origin and radius the level of detail is computed from. */
	LodOrigin math.Vec3
	LodRadius float32

	Width  int
	Height int
	/** @brief Error introduced by dropping column i; the last entry is never dropped. */
	WidthLodError []float32
	/** @brief Error introduced by dropping row i. */
	HeightLodError []float32
	/** @brief Width*Height control points, row major. */
	Verts []DrawVert
}

func (*SurfaceGrid) SurfaceType() SurfaceType { return SurfaceTypeGrid }

/** @brief A static indexed triangle soup. */
type SurfaceTriangles struct {
	Bounds      math.Bounds
	LocalOrigin math.Vec3
	Radius      float32
	Verts       []DrawVert
	Indexes     []uint32
}

func (*SurfaceTriangles) SurfaceType() SurfaceType { return SurfaceTypeTriangles }

/** @brief A vertex of a polygon submitted by game code. */
type PolyVert struct {
	XYZ      math.Vec3
	ST       [2]float32
	Modulate [4]uint8
}

/** @brief A transient convex polygon, drawn as a fan. */
type SurfacePoly struct {
	Shader   *Shader
	FogIndex int
	Verts    []PolyVert
}

func (*SurfacePoly) SurfaceType() SurfaceType { return SurfaceTypePoly }

/** @brief A compressed mesh vertex: position in 1/64 units and a lat/long normal. */
type MD3Vertex struct {
	XYZ    [3]int16
	Normal uint16
}

/** @brief Scale applied to MD3Vertex positions. */
const MD3_XYZ_SCALE float32 = 1.0 / 64

/** @brief One surface of a keyframed mesh. */
type SurfaceMD3 struct {
	Name      string
	Shaders   []*Shader
	NumVerts  int
	NumFrames int
	/** @brief NumFrames*NumVerts vertices, frame major. */
	Vertexes []MD3Vertex
	ST       [][2]float32
	Indexes  []uint32
}

func (*SurfaceMD3) SurfaceType() SurfaceType { return SurfaceTypeMD3 }

/** @brief A light flare. */
type SurfaceFlare struct {
	Origin math.Vec3
	Normal math.Vec3
	Color  math.Vec3
}

func (*SurfaceFlare) SurfaceType() SurfaceType { return SurfaceTypeFlare }

/**
 * @brief Geometry generated on demand from the current entity (sprites, beams,
 * rails, lightning).
 */
type SurfaceEntity struct{}

func (*SurfaceEntity) SurfaceType() SurfaceType { return SurfaceTypeEntity }

// EntitySurface is shared by every entity-procedural draw surface.
var EntitySurface Surface = &SurfaceEntity{}

// SkipSurface is shared by every surface that should not be drawn.
var SkipSurface Surface = &SurfaceSkip{}
