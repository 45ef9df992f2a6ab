package renderer

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/views"
)

// ClearScene starts a new scene in the current frame. Entities, lights and
// polygons added before belong to scenes already rendered.
func (r *Renderer) ClearScene() {
	f := r.frame
	r.firstSceneEntity = len(f.entityRefs)
	r.firstSceneDlight = len(f.dlightRefs)
	r.firstScenePoly = len(f.polyRefs)
}

/**
 * @brief Adds an entity to the current scene. Entities past the scene limit
 * are dropped with a warning.
 */
func (r *Renderer) AddRefEntityToScene(ent *metadata.RefEntity) {
	if !r.registered {
		return
	}
	f := r.frame
	if len(f.entities) >= cap(f.entities) || len(f.entities) >= metadata.MAX_REFENTITIES {
		core.LogWarn("AddRefEntityToScene: dropping entity, reached %d entities", metadata.MAX_REFENTITIES)
		return
	}
	if ent.ReType < metadata.RTModel || ent.ReType > metadata.RTPortalSurface {
		core.LogWarn("AddRefEntityToScene: bad reType %d", ent.ReType)
		return
	}
	f.entities = append(f.entities, metadata.SceneEntity{E: *ent})
	f.entityRefs = append(f.entityRefs, &f.entities[len(f.entities)-1])
}

/**
 * @brief Adds a polygon drawn with shader handle hShader to the current
 * scene. The vertices are copied.
 */
func (r *Renderer) AddPolyToScene(hShader int, verts []metadata.PolyVert) {
	if !r.registered || len(verts) < 3 {
		return
	}
	f := r.frame
	if len(f.polys) >= cap(f.polys) || len(f.polyVerts)+len(verts) > cap(f.polyVerts) {
		core.LogWarn("AddPolyToScene: polygon storage full, dropping polygon")
		return
	}

	start := len(f.polyVerts)
	f.polyVerts = append(f.polyVerts, verts...)
	poly := metadata.Poly{
		Shader: r.systems.ShaderSystem.GetShaderByHandle(hShader),
		Verts:  f.polyVerts[start:len(f.polyVerts):len(f.polyVerts)],
	}

	// see if it is in a fog volume
	if r.world != nil && r.vis != nil {
		pts := make([]math.Vec3, len(verts))
		for i := range verts {
			pts[i] = verts[i].XYZ
		}
		poly.FogIndex = r.vis.FogNumForPoints(pts)
	}
	f.polys = append(f.polys, poly)
	f.polyRefs = append(f.polyRefs, &f.polys[len(f.polys)-1])
}

// AddLightToScene adds a dynamic light modulated by the surface textures.
func (r *Renderer) AddLightToScene(origin math.Vec3, intensity, red, green, blue float32) {
	r.addLight(origin, intensity, red, green, blue, false)
}

// AddAdditiveLightToScene adds a dynamic light added on top of the surfaces.
func (r *Renderer) AddAdditiveLightToScene(origin math.Vec3, intensity, red, green, blue float32) {
	r.addLight(origin, intensity, red, green, blue, true)
}

func (r *Renderer) addLight(origin math.Vec3, intensity, red, green, blue float32, additive bool) {
	if !r.registered || !r.config.DynamicLights || intensity <= 0 {
		return
	}
	f := r.frame
	if len(f.dlights) >= cap(f.dlights) {
		return
	}
	f.dlights = append(f.dlights, metadata.Dlight{
		Origin:   origin,
		Color:    math.Vec3{red, green, blue},
		Radius:   intensity,
		Additive: additive,
	})
	f.dlightRefs = append(f.dlightRefs, &f.dlights[len(f.dlights)-1])
}

/**
 * @brief Builds the views of a scene and queues them for drawing: the world
 * and entity surfaces are gathered, culled, sorted and appended as one
 * draw-surfs command.
 */
func (r *Renderer) RenderScene(refdef *metadata.RefDef) error {
	if !r.registered {
		return core.ErrNotInitialized
	}
	noWorld := refdef.RDFlags&metadata.RDF_NOWORLDMODEL != 0
	if !noWorld && r.world == nil {
		return core.Fatal(core.ErrNoWorld, "RenderScene: world model required")
	}

	clock := core.NewClock()
	clock.Start()
	defer func() {
		clock.Stop()
		core.LogDebug("scene %d built in %s", r.sceneCount, clock.Elapsed())
	}()

	f := r.frame
	r.sceneCount++

	// the refdef is copied into the frame so the caller may reuse it
	rd := *refdef
	view := views.NewView(&rd, f.arena, &f.counters)
	view.Parms.FrameSceneNum = r.sceneCount
	view.Parms.FrameCount = r.frameCount
	view.Entities = f.entityRefs[r.firstSceneEntity:]
	view.Dlights = f.dlightRefs[r.firstSceneDlight:]
	view.Polys = f.polyRefs[r.firstScenePoly:]
	for _, dl := range view.Dlights {
		dl.Head, dl.Tail = nil, nil
	}

	vis := r.vis
	if vis == nil || noWorld {
		vis = &views.Visibility{Settings: r.viewSettings()}
	}
	vis.Counters = &f.counters

	r.renderView(vis, view)

	if len(view.DrawSurfs()) == 0 {
		r.ClearScene()
		return nil
	}
	r.frame.queue.Append(&commands.DrawSurfsCommand{
		DrawSurfs: view.DrawSurfs(),
		Dlights:   view.Dlights,
		Entities:  view.Entities,
		RefDef:    rd,
		ViewParms: view.Parms,
		Fogs:      view.Fogs,
	})
	// the next scene of this frame starts empty
	r.ClearScene()
	return nil
}

// renderView runs the front end steps for one view.
func (r *Renderer) renderView(vis *views.Visibility, view *views.View) {
	if view.Parms.ViewportWidth <= 0 || view.Parms.ViewportHeight <= 0 {
		return
	}
	view.RotateForViewer()
	view.SetupFrustum()

	if vis.World != nil {
		vis.AddWorldSurfaces(view)
	}
	vis.AddPolygonSurfaces(view)

	// the far plane is known once the world was walked
	view.SetFarClip()
	view.SetupProjection()

	for _, ent := range view.Entities {
		ent.LightingCalculated = false
		vis.SetupEntityLighting(view, ent)
	}
	defaultShader := r.systems.ShaderSystem.DefaultShader
	vis.AddEntitySurfaces(view, defaultShader)

	view.Finish()
}
