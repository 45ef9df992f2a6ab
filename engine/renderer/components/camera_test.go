package components

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/spaghettifunk/tessera/engine/math"
)

func assertVec3(t *testing.T, want, got math.Vec3) {
	t.Helper()
	for i := range want {
		assert.InDelta(t, want[i], got[i], 1e-4, "component %d of %v", i, got)
	}
}

func TestCamera_AxisFollowsYaw(t *testing.T) {
	c := NewCamera()
	assertVec3(t, math.Vec3{1, 0, 0}, c.Forward())

	c.Yaw(90)
	assertVec3(t, math.Vec3{0, 1, 0}, c.Forward())
	assertVec3(t, math.Vec3{-1, 0, 0}, c.Left())
	assertVec3(t, math.Vec3{0, 0, 1}, c.Axis()[2])
}

func TestCamera_PitchIsClamped(t *testing.T) {
	c := NewCamera()
	c.Pitch(120)
	assert.Equal(t, maxPitch, c.Angles[0])
	c.SetAngles(math.Vec3{-100, 0, 0})
	assert.Equal(t, -maxPitch, c.Angles[0])
}

func TestCamera_Move(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.Vec3{10, 0, 0})
	c.MoveForward(5)
	c.MoveLeft(2)
	c.MoveUp(3)
	assertVec3(t, math.Vec3{15, 2, 3}, c.Position)
}

func TestCamera_RefDef(t *testing.T) {
	c := NewCamera()
	c.SetPosition(math.Vec3{1, 2, 3})

	rd := c.RefDef(640, 480, 90)
	assert.Equal(t, 640, rd.Width)
	assert.Equal(t, 480, rd.Height)
	assert.InDelta(t, 73.74, rd.FovY, 0.01)
	assert.Equal(t, math.Vec3{1, 2, 3}, rd.ViewOrg)
	assert.Equal(t, math.IdentityAxis, rd.ViewAxis)
}
