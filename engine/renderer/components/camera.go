package components

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief Pitch is clamped short of straight up or down. */
const maxPitch float32 = 89

/**
 * @brief A first person view: an origin and pitch/yaw/roll angles in degrees.
 * The view axis is rebuilt lazily after any change.
 */
type Camera struct {
	/**
	 * @brief The position of this camera.
	 * NOTE: Do not set this directly, use SetPosition() instead
	 * so the axis is recalculated when needed.
	 */
	Position math.Vec3
	/**
	 * @brief The rotation of this camera in degrees (pitch, yaw, roll).
	 * NOTE: Do not set this directly, use SetAngles() instead.
	 */
	Angles math.Vec3
	/** @brief Internal flag used to determine when the axis needs to be rebuilt. */
	IsDirty bool

	axis math.Axis
}

func NewCamera() *Camera {
	camera := &Camera{}
	camera.Reset()
	return camera
}

func (c *Camera) Reset() {
	c.Position = math.Vec3{}
	c.Angles = math.Vec3{}
	c.axis = math.IdentityAxis
	c.IsDirty = false
}

func (c *Camera) SetPosition(position math.Vec3) {
	c.Position = position
}

func (c *Camera) SetAngles(angles math.Vec3) {
	c.Angles = angles
	c.Angles[0] = math.Clamp(c.Angles[0], -maxPitch, maxPitch)
	c.IsDirty = true
}

// Axis returns forward, left and up in world space.
func (c *Camera) Axis() math.Axis {
	if c.IsDirty {
		c.axis = math.AnglesToAxis(c.Angles)
		c.IsDirty = false
	}
	return c.axis
}

func (c *Camera) Forward() math.Vec3 {
	return c.Axis()[0]
}

func (c *Camera) Left() math.Vec3 {
	return c.Axis()[1]
}

func (c *Camera) MoveForward(amount float32) {
	c.Position = math.MA(c.Position, amount, c.Forward())
}

func (c *Camera) MoveLeft(amount float32) {
	c.Position = math.MA(c.Position, amount, c.Left())
}

func (c *Camera) MoveUp(amount float32) {
	c.Position[2] += amount
}

func (c *Camera) Yaw(amount float32) {
	c.Angles[1] = math32.Mod(c.Angles[1]+amount, 360)
	c.IsDirty = true
}

func (c *Camera) Pitch(amount float32) {
	c.Angles[0] = math.Clamp(c.Angles[0]+amount, -maxPitch, maxPitch)
	c.IsDirty = true
}

/**
 * @brief Fills a full screen refdef seen from the camera. fovY follows fovX
 * and the aspect ratio of the viewport.
 * @param width The viewport width in pixels.
 * @param height The viewport height in pixels.
 * @param fovX The horizontal field of view in degrees.
 */
func (c *Camera) RefDef(width, height int, fovX float32) metadata.RefDef {
	x := float32(width) / math32.Tan(fovX/360*math32.Pi)
	fovY := math32.Atan2(float32(height), x) * 360 / math32.Pi
	return metadata.RefDef{
		Width:    width,
		Height:   height,
		FovX:     fovX,
		FovY:     fovY,
		ViewOrg:  c.Position,
		ViewAxis: c.Axis(),
	}
}
