package views

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	defaultZNear = 4
	defaultZFar  = 2048
)

/** @brief Switches that tune traversal and culling. */
type Settings struct {
	NoVis         bool
	NoCull        bool
	LockPVS       bool
	FacePlaneCull bool
	DynamicLights bool
	/** @brief Added to the computed mesh level of detail. */
	LodBias int
	/** @brief Lighting scale applied to the light grid, as in the evaluator. */
	IdentityLight     float32
	IdentityLightByte uint8
}

// DefaultSettings enables every optimization.
func DefaultSettings() Settings {
	return Settings{
		FacePlaneCull:     true,
		DynamicLights:     true,
		IdentityLight:     0.5,
		IdentityLightByte: 127,
	}
}

/**
 * @brief Frame scoped storage for draw and lit surfaces, shared by every view
 * of a frame. Capacities are fixed; appends past them are dropped.
 */
type Arena struct {
	DrawSurfs []metadata.DrawSurf
	LitSurfs  []metadata.LitSurf
}

// NewArena allocates an arena with fixed capacities.
func NewArena(maxDrawSurfs, maxLitSurfs int) *Arena {
	return &Arena{
		DrawSurfs: make([]metadata.DrawSurf, 0, maxDrawSurfs),
		LitSurfs:  make([]metadata.LitSurf, 0, maxLitSurfs),
	}
}

// Reset empties the arena for the next frame.
func (a *Arena) Reset() {
	for i := range a.DrawSurfs {
		a.DrawSurfs[i].Surface = nil
	}
	a.DrawSurfs = a.DrawSurfs[:0]
	for i := range a.LitSurfs {
		a.LitSurfs[i] = metadata.LitSurf{}
	}
	a.LitSurfs = a.LitSurfs[:0]
}

/**
 * @brief One view being built by the front end: its parameters, the current
 * model orientation and the surfaces gathered for it.
 */
type View struct {
	Parms  metadata.ViewParms
	RefDef *metadata.RefDef
	/** @brief Orientation of the model currently being added. */
	Or metadata.Orientation

	Dlights  []*metadata.Dlight
	Entities []*metadata.SceneEntity
	Polys    []*metadata.Poly
	Fogs     []metadata.Fog

	arena     *Arena
	firstSurf int
	Counters  *core.FrameCounters
}

// NewView starts a view whose surfaces are stored in arena.
func NewView(refdef *metadata.RefDef, arena *Arena, counters *core.FrameCounters) *View {
	if counters == nil {
		counters = &core.FrameCounters{}
	}
	v := &View{
		RefDef:    refdef,
		arena:     arena,
		firstSurf: len(arena.DrawSurfs),
		Counters:  counters,
	}
	p := &v.Parms
	p.ViewportX = refdef.X
	p.ViewportY = refdef.Y
	p.ViewportWidth = refdef.Width
	p.ViewportHeight = refdef.Height
	p.FovX = refdef.FovX
	p.FovY = refdef.FovY
	p.Or.Origin = refdef.ViewOrg
	p.Or.Axis = refdef.ViewAxis
	p.PVSOrigin = refdef.ViewOrg
	p.ZNear = defaultZNear
	p.VisBounds.Clear()
	return v
}

// DrawSurfs returns the surfaces added to this view.
func (v *View) DrawSurfs() []metadata.DrawSurf {
	return v.arena.DrawSurfs[v.firstSurf:]
}

// flipMatrix converts from the world convention (looking down X, Z up) to the
// device convention (looking down -Z).
var flipMatrix = math.Mat4{
	0, 0, -1, 0,
	-1, 0, 0, 0,
	0, 1, 0, 0,
	0, 0, 0, 1,
}

// RotateForViewer sets up the world orientation and model matrix for the
// view origin and axis.
func (v *View) RotateForViewer() {
	p := &v.Parms
	origin := p.Or.Origin
	axis := &p.Or.Axis

	viewer := math.Mat4{
		axis[0][0], axis[1][0], axis[2][0], 0,
		axis[0][1], axis[1][1], axis[2][1], 0,
		axis[0][2], axis[1][2], axis[2][2], 0,
		-origin.Dot(axis[0]), -origin.Dot(axis[1]), -origin.Dot(axis[2]), 1,
	}

	p.World = metadata.Orientation{
		Axis:        math.IdentityAxis,
		ViewOrigin:  origin,
		ModelMatrix: flipMatrix.Mul4(viewer),
	}
	v.Or = p.World
}

// RotateForEntity returns the orientation placing ent in the view.
func (v *View) RotateForEntity(ent *metadata.RefEntity) metadata.Orientation {
	return OrientationForEntity(&v.Parms, ent)
}

// OrientationForEntity returns the orientation placing ent in the view
// described by parms. The back end uses it when it switches entities.
func OrientationForEntity(parms *metadata.ViewParms, ent *metadata.RefEntity) metadata.Orientation {
	if ent.ReType != metadata.RTModel {
		return parms.World
	}
	or := metadata.Orientation{Origin: ent.Origin, Axis: ent.Axis}
	model := math.Mat4{
		or.Axis[0][0], or.Axis[0][1], or.Axis[0][2], 0,
		or.Axis[1][0], or.Axis[1][1], or.Axis[1][2], 0,
		or.Axis[2][0], or.Axis[2][1], or.Axis[2][2], 0,
		or.Origin[0], or.Origin[1], or.Origin[2], 1,
	}
	or.ModelMatrix = parms.World.ModelMatrix.Mul4(model)

	// calculate the viewer origin in the model's space
	delta := parms.Or.Origin.Sub(or.Origin)
	axisLength := float32(1)
	if ent.NonNormalizedAxes {
		if l := ent.Axis[0].Len(); l != 0 {
			axisLength = 1 / l
		}
	}
	or.ViewOrigin = math.Vec3{
		delta.Dot(or.Axis[0]) * axisLength,
		delta.Dot(or.Axis[1]) * axisLength,
		delta.Dot(or.Axis[2]) * axisLength,
	}
	return or
}

// SetupFrustum builds the four side planes and the near plane from the view
// axis and field of view.
func (v *View) SetupFrustum() {
	p := &v.Parms
	axis := &p.Or.Axis

	ang := math.DegToRad(p.FovX) * 0.5
	xs, xc := math32.Sin(ang), math32.Cos(ang)
	ang = math.DegToRad(p.FovY) * 0.5
	ys, yc := math32.Sin(ang), math32.Cos(ang)

	normals := [4]math.Vec3{
		axis[0].Mul(xs).Add(axis[1].Mul(xc)),
		axis[0].Mul(xs).Sub(axis[1].Mul(xc)),
		axis[0].Mul(ys).Add(axis[2].Mul(yc)),
		axis[0].Mul(ys).Sub(axis[2].Mul(yc)),
	}
	for i, n := range normals {
		p.Frustum[i] = math.NewPlane(n, n.Dot(p.Or.Origin))
	}

	near := math.MA(p.Or.Origin, p.ZNear, axis[0])
	p.Frustum[4] = math.NewPlane(axis[0], axis[0].Dot(near))
}

// SetFarClip derives the far plane distance from the bounds of the visible
// leaves.
func (v *View) SetFarClip() {
	p := &v.Parms
	if v.RefDef.RDFlags&metadata.RDF_NOWORLDMODEL != 0 || p.VisBounds.Min[0] > p.VisBounds.Max[0] {
		p.ZFar = defaultZFar
		return
	}

	// set far clipping planes dynamically
	var farthest float32
	for i := 0; i < 8; i++ {
		var corner math.Vec3
		for j := 0; j < 3; j++ {
			if i&(1<<j) != 0 {
				corner[j] = p.VisBounds.Min[j]
			} else {
				corner[j] = p.VisBounds.Max[j]
			}
		}
		d := corner.Sub(p.Or.Origin)
		farthest = math32.Max(farthest, d.Dot(d))
	}
	p.ZFar = math32.Sqrt(farthest)
}

// SetupProjection builds the perspective projection for the field of view
// and clip distances.
func (v *View) SetupProjection() {
	p := &v.Parms
	if p.ZFar <= p.ZNear {
		p.ZFar = defaultZFar
	}
	aspect := float32(1)
	if p.ViewportHeight > 0 {
		aspect = float32(p.ViewportWidth) / float32(p.ViewportHeight)
	}
	fovY := p.FovY
	if fovY <= 0 {
		fovY = 90
	}
	p.ProjectionMatrix = math.NewMat4Perspective(math.DegToRad(fovY), aspect, p.ZNear, p.ZFar)
}

// ProjectRadius returns the screen space size of a sphere at location, 0 when
// it is behind the viewer.
func (v *View) ProjectRadius(r float32, location math.Vec3) float32 {
	p := &v.Parms
	c := p.Or.Axis[0].Dot(p.Or.Origin)
	dist := p.Or.Axis[0].Dot(location) - c
	if dist <= 0 {
		return 0
	}
	proj := &p.ProjectionMatrix
	py := math32.Abs(r)*proj[5] + -dist*proj[9] + proj[13]
	pw := math32.Abs(r)*proj[7] + -dist*proj[11] + proj[15]
	if pw == 0 {
		return 0
	}
	return math32.Min(py/pw, 1)
}
