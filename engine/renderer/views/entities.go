package views

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// AddEntitySurfaces adds the surfaces of every scene entity. defaultShader is
// used for entities with neither a custom nor a surface shader.
func (vis *Visibility) AddEntitySurfaces(view *View, defaultShader *metadata.Shader) {
	for num, ent := range view.Entities {
		e := &ent.E
		ent.NeedDlights = false

		// we don't want the hacked weapon position showing in mirrors or portals
		if e.RenderFX&metadata.RF_FIRST_PERSON != 0 && view.Parms.IsPortal {
			continue
		}
		// third person entities are only seen in mirrors or portals
		if e.RenderFX&metadata.RF_THIRD_PERSON != 0 && !view.Parms.IsPortal {
			continue
		}

		switch e.ReType {
		case metadata.RTPortalSurface:
			// don't draw anything
		case metadata.RTSprite, metadata.RTBeam, metadata.RTLightning, metadata.RTRailCore, metadata.RTRailRings:
			shader := e.CustomShader
			if shader == nil {
				shader = defaultShader
			}
			view.AddDrawSurf(metadata.EntitySurface, shader, vis.FogNumForSphere(e.Origin, e.Radius), num)
		case metadata.RTModel:
			view.Or = view.RotateForEntity(e)
			if e.Model == nil {
				continue
			}
			switch e.Model.Type {
			case metadata.ModelMesh:
				vis.addMeshSurfaces(view, ent, num, defaultShader)
			case metadata.ModelBrush:
				vis.addBrushModelSurfaces(view, ent, num)
			}
		default:
			core.LogWarn("AddEntitySurfaces: bad reType %d", e.ReType)
		}
	}
	view.Or = view.Parms.World
}

// meshLod picks the level of detail of a mesh from its projected size.
func (v *View) meshLod(ent *metadata.RefEntity, lods int, radius float32, bias int) int {
	lod := 0
	if lods > 1 {
		flod := float32(0)
		if projected := v.ProjectRadius(radius, ent.Origin); projected != 0 {
			flod = 1 - projected
		}
		lod = int(flod * float32(lods))
	}
	return math.Clamp(lod+bias, 0, lods-1)
}

func (vis *Visibility) addMeshSurfaces(view *View, ent *metadata.SceneEntity, num int, defaultShader *metadata.Shader) {
	e := &ent.E
	if len(e.Model.MD3) == 0 {
		return
	}
	base := e.Model.MD3[0]
	if len(base.Frames) == 0 {
		return
	}
	frame := math.Clamp(e.Frame, 0, len(base.Frames)-1)
	oldFrame := math.Clamp(e.OldFrame, 0, len(base.Frames)-1)

	// cull the entire model if merged bounding box of both frames is outside the view frustum
	f, of := &base.Frames[frame], &base.Frames[oldFrame]
	if !e.NonNormalizedAxes && !vis.Settings.NoCull {
		switch view.CullLocalPointAndRadius(f.LocalOrigin, math32.Max(f.Radius, of.Radius)) {
		case CullOut:
			vis.Counters.SurfacesCulled++
			return
		case CullClip:
			bounds := f.Bounds
			bounds.AddPoint(of.Bounds.Min)
			bounds.AddPoint(of.Bounds.Max)
			if view.CullLocalBox(bounds) == CullOut {
				vis.Counters.SurfacesCulled++
				return
			}
		}
	}

	md3 := e.Model.MD3[view.meshLod(e, len(e.Model.MD3), math.RadiusFromBounds(f.Bounds.Min, f.Bounds.Max), vis.Settings.LodBias)]
	fogNum := vis.FogNumForSphere(e.Origin, f.Radius)

	for _, surf := range md3.Surfaces {
		shader := e.CustomShader
		if shader == nil && len(surf.Shaders) > 0 {
			shader = surf.Shaders[0]
		}
		if shader == nil {
			shader = defaultShader
		}
		view.AddDrawSurf(surf, shader, fogNum, num)
	}
}

func (vis *Visibility) addBrushModelSurfaces(view *View, ent *metadata.SceneEntity, num int) {
	bmodel := ent.E.Model.BModel
	if bmodel == nil {
		return
	}
	if view.CullLocalBox(bmodel.Bounds) == CullOut {
		vis.Counters.SurfacesCulled++
		return
	}

	for _, surf := range bmodel.Surfaces {
		if surf.Shader == nil {
			continue
		}
		if view.CullSurface(surf.Data, surf.Shader, &vis.Settings) {
			vis.Counters.SurfacesCulled++
			continue
		}
		view.AddDrawSurf(surf.Data, surf.Shader, surf.FogIndex, num)
	}

	if !vis.Settings.DynamicLights {
		return
	}
	// lights are tested in the model's space
	for _, dl := range view.Dlights {
		local := math.WorldVectorToLocal(&view.Or.Axis, dl.Origin.Sub(view.Or.Origin))
		if !bmodel.Bounds.IntersectsSphere(local, dl.Radius) {
			continue
		}
		ent.NeedDlights = true
		moved := *dl
		moved.Transformed = local
		for _, surf := range bmodel.Surfaces {
			if !LightEligible(surf.Shader) || !SurfaceTouchesLight(surf.Data, &moved) {
				continue
			}
			if !view.AddLitSurf(dl, surf.Data, surf.Shader, surf.FogIndex, num) {
				vis.Counters.DlightsDropped++
				return
			}
		}
	}
}

// AddPolygonSurfaces adds the scene's client polygons.
func (vis *Visibility) AddPolygonSurfaces(view *View) {
	for _, poly := range view.Polys {
		if poly.Shader == nil {
			continue
		}
		view.AddDrawSurf(&metadata.SurfacePoly{Shader: poly.Shader, FogIndex: poly.FogIndex, Verts: poly.Verts}, poly.Shader, poly.FogIndex, metadata.ENTITYNUM_WORLD)
	}
}

// FogNumForSphere returns the first fog volume overlapping a sphere, 0 when
// there is none.
func (vis *Visibility) FogNumForSphere(origin math.Vec3, radius float32) int {
	if vis.World == nil {
		return 0
	}
	for i := 1; i < len(vis.World.Fogs); i++ {
		fog := &vis.World.Fogs[i]
		if fog.Bounds.IntersectsSphere(origin, radius) {
			return i
		}
	}
	return 0
}

// FogNumForPoints returns the first fog volume overlapping the bounds of pts.
func (vis *Visibility) FogNumForPoints(pts []math.Vec3) int {
	if vis.World == nil || len(pts) == 0 {
		return 0
	}
	var b math.Bounds
	b.Clear()
	for _, p := range pts {
		b.AddPoint(p)
	}
	for i := 1; i < len(vis.World.Fogs); i++ {
		fb := &vis.World.Fogs[i].Bounds
		if b.Min[0] <= fb.Max[0] && b.Max[0] >= fb.Min[0] &&
			b.Min[1] <= fb.Max[1] && b.Max[1] >= fb.Min[1] &&
			b.Min[2] <= fb.Max[2] && b.Max[2] >= fb.Min[2] {
			return i
		}
	}
	return 0
}
