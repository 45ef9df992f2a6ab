package views

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Results of the frustum tests.
const (
	CullIn   = 0
	CullClip = 1
	CullOut  = 2
)

// Surfaces closer than this to their plane are never backface culled, to hide
// rounding cracks.
const backfaceEpsilon = 8

// CullPointAndRadius tests a world space sphere against the side planes.
func (v *View) CullPointAndRadius(pt math.Vec3, radius float32) int {
	mightBeClipped := false
	for i := 0; i < 4; i++ {
		frust := &v.Parms.Frustum[i]
		dist := frust.Distance(pt)
		if dist < -radius {
			return CullOut
		} else if dist <= radius {
			mightBeClipped = true
		}
	}
	if mightBeClipped {
		return CullClip
	}
	return CullIn
}

// CullLocalPointAndRadius tests a sphere in the current model's space.
func (v *View) CullLocalPointAndRadius(pt math.Vec3, radius float32) int {
	return v.CullPointAndRadius(math.LocalToWorld(v.Or.Origin, &v.Or.Axis, pt), radius)
}

// CullLocalBox tests a box in the current model's space against the side
// planes.
func (v *View) CullLocalBox(bounds math.Bounds) int {
	// transform into world space
	var corners [8]math.Vec3
	for i := range corners {
		local := math.Vec3{bounds.Min[0], bounds.Min[1], bounds.Min[2]}
		if i&1 != 0 {
			local[0] = bounds.Max[0]
		}
		if i&2 != 0 {
			local[1] = bounds.Max[1]
		}
		if i&4 != 0 {
			local[2] = bounds.Max[2]
		}
		corners[i] = math.LocalToWorld(v.Or.Origin, &v.Or.Axis, local)
	}

	// check against frustum planes
	anyBack := false
	for i := 0; i < 4; i++ {
		frust := &v.Parms.Frustum[i]
		front, back := false, false
		for j := range corners {
			if frust.Distance(corners[j]) > 0 {
				front = true
				if back {
					break // a point is in front
				}
			} else {
				back = true
			}
		}
		if !front {
			// all points were behind one of the planes
			return CullOut
		}
		anyBack = anyBack || back
	}
	if anyBack {
		return CullClip
	}
	return CullIn
}

// CullSurface reports whether a surface can be skipped for this view.
func (v *View) CullSurface(data metadata.Surface, shader *metadata.Shader, s *Settings) bool {
	if s.NoCull {
		return false
	}
	switch surf := data.(type) {
	case *metadata.SurfaceGrid:
		// try sphere cull first, then box
		switch v.CullLocalPointAndRadius(surf.LocalOrigin, surf.MeshRadius) {
		case CullOut:
			return true
		case CullIn:
			return false
		}
		return v.CullLocalBox(surf.MeshBounds) == CullOut
	case *metadata.SurfaceTriangles:
		return v.CullLocalBox(surf.Bounds) == CullOut
	case *metadata.SurfaceFace:
		return v.cullFace(surf, shader, s)
	}
	return false
}

func (v *View) cullFace(face *metadata.SurfaceFace, shader *metadata.Shader, s *Settings) bool {
	cull := shader.CullType
	if cull == metadata.CullTwoSided || !s.FacePlaneCull {
		return false
	}
	// mirrors swap which side faces the viewer
	if v.Parms.IsMirror {
		if cull == metadata.CullFrontSided {
			cull = metadata.CullBackSided
		} else {
			cull = metadata.CullFrontSided
		}
	}

	d := v.Or.ViewOrigin.Dot(face.Plane.Normal)
	if cull == metadata.CullFrontSided {
		return d < face.Plane.Dist-backfaceEpsilon
	}
	return d > face.Plane.Dist+backfaceEpsilon
}
