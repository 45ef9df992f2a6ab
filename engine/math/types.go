package math

import "github.com/go-gl/mathgl/mgl32"

// Vec2 represents a 2D vector
type Vec2 = mgl32.Vec2

// Vec3 represents a 3D vector
type Vec3 = mgl32.Vec3

// Vec4 represents a 4D vector
type Vec4 = mgl32.Vec4

/** @brief a 4x4 column-major matrix, laid out the way the device expects it. */
type Mat4 = mgl32.Mat4

/** @brief Three orthonormal basis vectors: forward, left, up. */
type Axis [3]Vec3

/**
 * @brief Represents the extents of a 3d object.
 */
type Bounds struct {
	/** @brief The minimum extents of the object. */
	Min Vec3
	/** @brief The maximum extents of the object. */
	Max Vec3
}

// Plane types: 0-2 are axial along X/Y/Z, anything else is arbitrary.
const (
	PlaneX        uint8 = 0
	PlaneY        uint8 = 1
	PlaneZ        uint8 = 2
	PlaneNonAxial uint8 = 3
)

// Sides returned by BoxOnPlaneSide.
const (
	SideFront = 1
	SideBack  = 2
	SideCross = 3
)

/**
 * @brief A plane in normal/distance form with cached classification data.
 */
type Plane struct {
	Normal Vec3
	Dist   float32
	/** @brief Axial type, used for the fast box test. */
	Type uint8
	/** @brief One bit per negative normal component. */
	SignBits uint8
}

// IdentityAxis is the world basis.
var IdentityAxis = Axis{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}

// Mat4Identity is the identity matrix.
var Mat4Identity = mgl32.Ident4()

// NewMat4Perspective creates a perspective projection; fov is the vertical
// field of view in radians.
func NewMat4Perspective(fov, aspectRatio, nearClip, farClip float32) Mat4 {
	return mgl32.Perspective(fov, aspectRatio, nearClip, farClip)
}

// NewMat4Orthographic creates an orthographic projection.
func NewMat4Orthographic(left, right, bottom, top, nearClip, farClip float32) Mat4 {
	return mgl32.Ortho(left, right, bottom, top, nearClip, farClip)
}
