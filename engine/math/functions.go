package math

import (
	"github.com/chewxy/math32"
)

const (
	/** @brief An approximate representation of PI. */
	K_PI float32 = 3.14159265358979323846
	/** @brief An approximate representation of PI multiplied by 2. */
	K_PI_2 float32 = 2.0 * K_PI
	/** @brief A multiplier used to convert degrees to radians. */
	K_DEG2RAD_MULTIPLIER float32 = K_PI / 180.0
	/** @brief A multiplier used to convert radians to degrees. */
	K_RAD2DEG_MULTIPLIER float32 = 180.0 / K_PI
	/** @brief Smallest positive number where 1.0 + FLOAT_EPSILON != 0 */
	K_FLOAT_EPSILON float32 = 1.192092896e-07
)

func DegToRad(degrees float32) float32 {
	return degrees * K_DEG2RAD_MULTIPLIER
}

// Normalize normalizes v in place and returns its original length. A zero
// vector is left untouched.
func Normalize(v *Vec3) float32 {
	length := math32.Sqrt(v[0]*v[0] + v[1]*v[1] + v[2]*v[2])
	if length != 0 {
		inv := 1.0 / length
		v[0] *= inv
		v[1] *= inv
		v[2] *= inv
	}
	return length
}

// NormalizeFast is Normalize without the length result or zero check beyond
// avoiding a division by zero.
func NormalizeFast(v Vec3) Vec3 {
	d := v[0]*v[0] + v[1]*v[1] + v[2]*v[2]
	if d == 0 {
		return v
	}
	inv := 1.0 / math32.Sqrt(d)
	return Vec3{v[0] * inv, v[1] * inv, v[2] * inv}
}

// MA returns v + s*b.
func MA(v Vec3, s float32, b Vec3) Vec3 {
	return Vec3{v[0] + s*b[0], v[1] + s*b[1], v[2] + s*b[2]}
}

// AngleVectors converts pitch/yaw/roll degrees into forward, right and up vectors.
func AngleVectors(angles Vec3) (forward, right, up Vec3) {
	yaw := DegToRad(angles[1])
	sy, cy := math32.Sin(yaw), math32.Cos(yaw)
	pitch := DegToRad(angles[0])
	sp, cp := math32.Sin(pitch), math32.Cos(pitch)
	roll := DegToRad(angles[2])
	sr, cr := math32.Sin(roll), math32.Cos(roll)

	forward = Vec3{cp * cy, cp * sy, -sp}
	right = Vec3{-1*sr*sp*cy + -1*cr*-sy, -1*sr*sp*sy + -1*cr*cy, -1 * sr * cp}
	up = Vec3{cr*sp*cy + -sr*-sy, cr*sp*sy + -sr*cy, cr * cp}
	return forward, right, up
}

// AnglesToAxis builds a forward/left/up basis from angles.
func AnglesToAxis(angles Vec3) Axis {
	f, r, u := AngleVectors(angles)
	return Axis{f, r.Mul(-1), u}
}

// PerpendicularVector returns a unit vector perpendicular to src, which must
// be normalized.
func PerpendicularVector(src Vec3) Vec3 {
	pos := 0
	minelem := float32(1.0)
	// find the smallest magnitude axially aligned vector
	for i := 0; i < 3; i++ {
		if math32.Abs(src[i]) < minelem {
			pos = i
			minelem = math32.Abs(src[i])
		}
	}
	var temp Vec3
	temp[pos] = 1.0

	// project the point onto the plane defined by src
	d := temp.Dot(src)
	dst := temp.Sub(src.Mul(d))
	Normalize(&dst)
	return dst
}

// LocalToWorld transforms a point expressed in (origin, axis) space into world space.
func LocalToWorld(origin Vec3, axis *Axis, local Vec3) Vec3 {
	return Vec3{
		origin[0] + axis[0][0]*local[0] + axis[1][0]*local[1] + axis[2][0]*local[2],
		origin[1] + axis[0][1]*local[0] + axis[1][1]*local[1] + axis[2][1]*local[2],
		origin[2] + axis[0][2]*local[0] + axis[1][2]*local[1] + axis[2][2]*local[2],
	}
}

// WorldVectorToLocal rotates a world direction into axis space.
func WorldVectorToLocal(axis *Axis, world Vec3) Vec3 {
	return Vec3{axis[0].Dot(world), axis[1].Dot(world), axis[2].Dot(world)}
}

// RadiusFromBounds returns the radius of the sphere around the origin that
// encloses the box.
func RadiusFromBounds(mins, maxs Vec3) float32 {
	var corner Vec3
	for i := 0; i < 3; i++ {
		a := math32.Abs(mins[i])
		b := math32.Abs(maxs[i])
		corner[i] = a
		if b > a {
			corner[i] = b
		}
	}
	return corner.Len()
}

// ClearBounds resets b so that the first AddPoint defines it.
func (b *Bounds) Clear() {
	b.Min = Vec3{99999, 99999, 99999}
	b.Max = Vec3{-99999, -99999, -99999}
}

func (b *Bounds) AddPoint(v Vec3) {
	for i := 0; i < 3; i++ {
		if v[i] < b.Min[i] {
			b.Min[i] = v[i]
		}
		if v[i] > b.Max[i] {
			b.Max[i] = v[i]
		}
	}
}

// IntersectsSphere is a conservative box versus sphere overlap test.
func (b *Bounds) IntersectsSphere(origin Vec3, radius float32) bool {
	for i := 0; i < 3; i++ {
		if origin[i]-radius > b.Max[i] || origin[i]+radius < b.Min[i] {
			return false
		}
	}
	return true
}

// DecodeLatLong unpacks a 16 bit latitude/longitude normal (latitude in the
// high byte) into a unit vector.
func DecodeLatLong(packed uint16) Vec3 {
	lat := float32((packed>>8)&0xff) * (K_PI_2 / 255.0)
	lng := float32(packed&0xff) * (K_PI_2 / 255.0)
	return Vec3{
		math32.Cos(lat) * math32.Sin(lng),
		math32.Sin(lat) * math32.Sin(lng),
		math32.Cos(lng),
	}
}

// EncodeLatLong packs a unit normal into the 16 bit latitude/longitude form.
func EncodeLatLong(n Vec3) uint16 {
	if n[0] == 0 && n[1] == 0 {
		if n[2] > 0 {
			return 0
		}
		return 128
	}
	lat := int(math32.Atan2(n[1], n[0]) * (255.0 / K_PI_2))
	lng := int(math32.Acos(Clamp(n[2], -1, 1)) * (255.0 / K_PI_2))
	return uint16(lat&0xff)<<8 | uint16(lng&0xff)
}

// ClampByte converts a 0..255 float to a byte with saturation.
func ClampByte(v float32) uint8 {
	if v <= 0 {
		return 0
	}
	if v >= 255 {
		return 255
	}
	return uint8(v)
}

// RotatePointAroundVector rotates point by degrees around the unit vector dir.
func RotatePointAroundVector(dir, point Vec3, degrees float32) Vec3 {
	rad := DegToRad(degrees)
	c, s := math32.Cos(rad), math32.Sin(rad)
	return point.Mul(c).Add(dir.Cross(point).Mul(s)).Add(dir.Mul(dir.Dot(point) * (1 - c)))
}

// MakeNormalVectors returns two unit vectors perpendicular to forward and to
// each other.
func MakeNormalVectors(forward Vec3) (right, up Vec3) {
	// this rotate and negate guarantees a vector not colinear with the original
	right = Vec3{forward[2], -forward[0], forward[1]}
	d := right.Dot(forward)
	right = MA(right, -d, forward)
	Normalize(&right)
	up = right.Cross(forward)
	return right, up
}
