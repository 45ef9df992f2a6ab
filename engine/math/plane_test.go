package math

import (
	"testing"

	"github.com/chewxy/math32"
	"github.com/stretchr/testify/assert"
)

func TestBoxOnPlaneSideAxial(t *testing.T) {
	p := NewPlane(Vec3{0, 0, 1}, 10)
	assert.Equal(t, PlaneZ, p.Type)

	assert.Equal(t, SideFront, BoxOnPlaneSide(Vec3{-1, -1, 11}, Vec3{1, 1, 12}, &p))
	assert.Equal(t, SideBack, BoxOnPlaneSide(Vec3{-1, -1, 0}, Vec3{1, 1, 9}, &p))
	assert.Equal(t, SideCross, BoxOnPlaneSide(Vec3{-1, -1, 0}, Vec3{1, 1, 20}, &p))
}

func TestBoxOnPlaneSideGeneral(t *testing.T) {
	n := NormalizeFast(Vec3{1, -1, 0})
	p := NewPlane(n, 0)
	assert.Equal(t, PlaneNonAxial, p.Type)
	assert.Equal(t, uint8(2), p.SignBits)

	assert.Equal(t, SideFront, BoxOnPlaneSide(Vec3{10, -20, 0}, Vec3{20, -10, 1}, &p))
	assert.Equal(t, SideBack, BoxOnPlaneSide(Vec3{-20, 10, 0}, Vec3{-10, 20, 1}, &p))
	assert.Equal(t, SideCross, BoxOnPlaneSide(Vec3{-5, -5, 0}, Vec3{5, 5, 1}, &p))
}

func TestLatLongRoundTrip(t *testing.T) {
	for _, n := range []Vec3{{0, 0, 1}, {1, 0, 0}, NormalizeFast(Vec3{1, 1, 1}), NormalizeFast(Vec3{-1, 0.5, -0.2})} {
		d := DecodeLatLong(EncodeLatLong(n))
		assert.InDelta(t, 1.0, float64(d.Len()), 1e-4)
		assert.Greater(t, d.Dot(n), float32(0.99), "normal %v decoded as %v", n, d)
	}
}

func TestNormalize(t *testing.T) {
	v := Vec3{3, 4, 0}
	l := Normalize(&v)
	assert.Equal(t, float32(5), l)
	assert.InDelta(t, 0.6, float64(v[0]), 1e-6)

	zero := Vec3{}
	assert.Equal(t, float32(0), Normalize(&zero))
}

func TestPerpendicularVector(t *testing.T) {
	src := NormalizeFast(Vec3{0.3, 0.2, 0.9})
	p := PerpendicularVector(src)
	assert.InDelta(t, 0, float64(p.Dot(src)), 1e-5)
	assert.InDelta(t, 1, float64(math32.Sqrt(p.Dot(p))), 1e-5)
}

func TestBoundsSphere(t *testing.T) {
	var b Bounds
	b.Clear()
	b.AddPoint(Vec3{0, 0, 0})
	b.AddPoint(Vec3{10, 10, 10})
	assert.True(t, b.IntersectsSphere(Vec3{15, 5, 5}, 6))
	assert.False(t, b.IntersectsSphere(Vec3{15, 5, 5}, 4))
	assert.Equal(t, 3, Clamp(5, 0, 3))
}
