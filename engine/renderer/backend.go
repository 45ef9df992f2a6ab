package renderer

import (
	"fmt"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/tess"
	"github.com/spaghettifunk/tessera/engine/renderer/views"
	"github.com/spaghettifunk/tessera/engine/systems"
)

const (
	// depth range of RF_DEPTHHACK entities, so weapons don't poke into walls
	depthHackMax = 0.3
)

/**
 * @brief Executes render command lists on a device. It owns the
 * tessellation buffer; a back end is driven by one goroutine at a time.
 */
type BackEnd struct {
	dev     device.Device
	tess    *tess.Buffer
	shaders func(sortedIndex int) *metadata.Shader

	width  int
	height int
	// frame time in milliseconds from the last draw-buffer command
	time int

	color2D      [4]uint8
	projection2D bool
	view2D       metadata.ViewParms
	entity2D     metadata.SceneEntity
	worldEntity  metadata.SceneEntity

	refTime     float64
	depthHacked bool

	// display gamma of the post-process pass, 1 when disabled
	gamma       float32
	postProcess bool

	// encodes screenshots off the back end; nil writes them inline
	jobs *systems.JobSystem
}

// NewBackEnd creates a back end drawing with buf. shaders resolves the
// sorted shader index stored in sort keys.
func NewBackEnd(dev device.Device, buf *tess.Buffer, shaders func(int) *metadata.Shader) *BackEnd {
	be := &BackEnd{
		dev:     dev,
		tess:    buf,
		shaders: shaders,
		color2D: [4]uint8{255, 255, 255, 255},
		gamma:   1,
	}
	be.postProcess = dev.Capabilities().PostProcess
	be.view2D.Or.Axis = math.IdentityAxis
	be.view2D.World.Axis = math.IdentityAxis
	be.view2D.World.ModelMatrix = math.Mat4Identity
	be.entity2D.E.Axis = math.IdentityAxis
	be.entity2D.E.ShaderRGBA = [4]uint8{255, 255, 255, 255}
	be.worldEntity.E.Axis = math.IdentityAxis
	be.worldEntity.E.ShaderRGBA = [4]uint8{255, 255, 255, 255}
	return be
}

// SetJobs lets screenshots be encoded and written on js.
func (be *BackEnd) SetJobs(js *systems.JobSystem) {
	be.jobs = js
}

// SetGamma sets the display gamma applied before each swap. Devices without
// post-processing ignore it.
func (be *BackEnd) SetGamma(gamma float32) {
	be.gamma = gamma
}

// Tess returns the tessellation buffer of the back end.
func (be *BackEnd) Tess() *tess.Buffer { return be.tess }

// SetCounters directs the back end counters of the next frame.
func (be *BackEnd) SetCounters(c *core.FrameCounters) {
	be.tess.Counters = c
}

/**
 * @brief Executes every command of q in order. Fatal errors stop the scan
 * and are returned; anything drawn before stays drawn.
 */
func (be *BackEnd) ExecuteRenderCommands(q *commands.Queue) error {
	if err := q.Execute(be.execute); err != nil {
		return err
	}
	// stretch pics may still be batched
	return be.flush()
}

func (be *BackEnd) execute(cmd commands.Command) error {
	switch c := cmd.(type) {
	case *commands.SetColorCommand:
		be.setColor(c)
		return nil
	case *commands.StretchPicCommand:
		return be.stretchPic(c)
	case *commands.TriangleCommand:
		return be.triangle(c)
	case *commands.DrawSurfsCommand:
		if err := be.flush(); err != nil {
			return err
		}
		return be.drawSurfs(c)
	case *commands.DrawBufferCommand:
		if err := be.flush(); err != nil {
			return err
		}
		return be.drawBuffer(c)
	case *commands.SwapBuffersCommand:
		if err := be.flush(); err != nil {
			return err
		}
		be.postProcessPass()
		return be.dev.EndFrame()
	case *commands.ScreenshotCommand:
		if err := be.flush(); err != nil {
			return err
		}
		be.screenshot(c)
		return nil
	case *commands.VideoFrameCommand:
		if err := be.flush(); err != nil {
			return err
		}
		be.videoFrame(c)
		return nil
	case *commands.ClearDepthCommand:
		if err := be.flush(); err != nil {
			return err
		}
		be.dev.ClearDepth()
		return nil
	}
	return fmt.Errorf("unknown render command %s", cmd.Kind())
}

// flush draws a pending batch.
func (be *BackEnd) flush() error {
	if be.tess.NumIndexes == 0 {
		return nil
	}
	return be.tess.End()
}

func (be *BackEnd) drawBuffer(c *commands.DrawBufferCommand) error {
	be.width, be.height = c.Width, c.Height
	be.time = c.Time
	be.projection2D = false
	be.tess.Shader = nil
	return be.dev.BeginFrame()
}

/**
 * @brief Redraws the finished frame through the post-process pipeline with
 * one screen covering quad. Skipped at unit gamma.
 */
func (be *BackEnd) postProcessPass() {
	if !be.postProcess || be.gamma <= 0 || be.gamma == 1 || be.width <= 0 || be.height <= 0 {
		return
	}
	be.set2D()
	be.dev.ApplyState(&device.State{
		Bits:  metadata.DepthTestDisable,
		Cull:  metadata.CullTwoSided,
		Gamma: be.gamma,
	})

	w, h := float32(be.width), float32(be.height)
	be.dev.Draw(device.PipelinePostProcess, &device.Geometry{
		XYZ:     []math.Vec3{{0, 0, 0}, {w, 0, 0}, {w, h, 0}, {0, h, 0}},
		Indexes: []uint32{0, 1, 2, 0, 2, 3},
		Colors:  [][4]uint8{{255, 255, 255, 255}, {255, 255, 255, 255}, {255, 255, 255, 255}, {255, 255, 255, 255}},
		// 2D rows run top down, framebuffer rows bottom up
		TexCoords: [2][][2]float32{{{0, 1}, {1, 1}, {1, 0}, {0, 0}}},
	})
}

func (be *BackEnd) setColor(c *commands.SetColorCommand) {
	for i := 0; i < 4; i++ {
		be.color2D[i] = math.ClampByte(c.Color[i] * 255)
	}
}

// set2D switches to an orthographic projection covering the framebuffer.
func (be *BackEnd) set2D() {
	be.projection2D = true
	be.dev.Begin2D(be.width, be.height)
	be.dev.SetModelViewMatrix(math.Mat4Identity)
	be.setDepthHack(false)

	ctx := be.tess.Ctx
	ctx.View = &be.view2D
	ctx.Or = be.view2D.World
	ctx.Entity = &be.entity2D
	ctx.IsWorldEntity = true
	ctx.Time = be.time
	ctx.FloatTime = float64(be.time) * 0.001
	be.tess.Shader = nil
}

// begin2DBatch starts a new batch when the 2D shader changes.
func (be *BackEnd) begin2DBatch(shader *metadata.Shader) error {
	if !be.projection2D {
		if err := be.flush(); err != nil {
			return err
		}
		be.set2D()
	}
	resolved := shader
	if resolved.RemappedShader != nil {
		resolved = resolved.RemappedShader
	}
	if be.tess.Shader != resolved {
		if err := be.flush(); err != nil {
			return err
		}
		be.tess.Begin(shader, 0)
	}
	return nil
}

func (be *BackEnd) stretchPic(c *commands.StretchPicCommand) error {
	if c.Shader == nil {
		return nil
	}
	if err := be.begin2DBatch(c.Shader); err != nil {
		return err
	}
	return be.tess.AddStretchPic(c.X, c.Y, c.W, c.H, c.S1, c.T1, c.S2, c.T2, be.color2D)
}

func (be *BackEnd) triangle(c *commands.TriangleCommand) error {
	if c.Shader == nil {
		return nil
	}
	if err := be.begin2DBatch(c.Shader); err != nil {
		return err
	}
	return be.tess.AddTriangle(c.XY, c.ST, be.color2D)
}

/**
 * @brief Draws one view: the sorted surface list, then every dynamic
 * light's lit surfaces.
 */
func (be *BackEnd) drawSurfs(c *commands.DrawSurfsCommand) error {
	be.projection2D = false
	be.beginDrawingView(c)

	if err := be.renderDrawSurfList(c); err != nil {
		return err
	}
	if err := be.renderLitSurfList(c); err != nil {
		return err
	}

	// go back to the world modelview matrix
	be.dev.SetModelViewMatrix(c.ViewParms.World.ModelMatrix)
	be.setDepthHack(false)
	return nil
}

func (be *BackEnd) beginDrawingView(c *commands.DrawSurfsCommand) {
	p := &c.ViewParms
	view := &device.View3D{
		X:          p.ViewportX,
		Y:          p.ViewportY,
		Width:      p.ViewportWidth,
		Height:     p.ViewportHeight,
		Projection: p.ProjectionMatrix,
	}
	if c.RefDef.RDFlags&metadata.RDF_HYPERSPACE != 0 {
		view.ClearColor = true
		view.Color = math.Vec4{0.8, 0.8, 0.8, 1}
	}
	if p.IsPortal {
		plane := portalClipPlane(p)
		view.ClipPlane = &plane
	}
	be.dev.Begin3D(view)

	ctx := be.tess.Ctx
	ctx.View = p
	ctx.Fogs = c.Fogs
	ctx.Text = c.RefDef.Text
	ctx.Time = c.RefDef.Time
	be.refTime = float64(c.RefDef.Time) * 0.001
	be.tess.ResetFrame()
	be.tess.Shader = nil
	be.setDepthHack(false)
}

// portalClipPlane moves the portal plane into eye space, after the axis flip
// of the world model matrix.
func portalClipPlane(p *metadata.ViewParms) math.Vec4 {
	n := p.PortalPlane.Normal
	eye := math.Vec3{p.Or.Axis[0].Dot(n), p.Or.Axis[1].Dot(n), p.Or.Axis[2].Dot(n)}
	return math.Vec4{-eye[1], eye[2], -eye[0], n.Dot(p.Or.Origin) - p.PortalPlane.Dist}
}

// setEntity makes entNum the current entity: orientation, shader time and
// model matrix.
func (be *BackEnd) setEntity(c *commands.DrawSurfsCommand, entNum int) {
	ctx := be.tess.Ctx
	depthHack := false
	if entNum != metadata.ENTITYNUM_WORLD && entNum < len(c.Entities) {
		ent := c.Entities[entNum]
		ctx.Entity = ent
		ctx.IsWorldEntity = false
		ctx.FloatTime = be.refTime - ent.E.ShaderTime
		ctx.Or = views.OrientationForEntity(&c.ViewParms, &ent.E)
		depthHack = ent.E.RenderFX&metadata.RF_DEPTHHACK != 0
	} else {
		ctx.Entity = &be.worldEntity
		ctx.IsWorldEntity = true
		ctx.FloatTime = be.refTime
		ctx.Or = c.ViewParms.World
	}
	be.dev.SetModelViewMatrix(ctx.Or.ModelMatrix)
	be.setDepthHack(depthHack)

	// the shader time of the open batch follows the entity
	if b := be.tess; b.Shader != nil {
		b.ShaderTime = ctx.FloatTime - b.Shader.TimeOffset
		if b.Shader.ClampTime != 0 && b.ShaderTime >= b.Shader.ClampTime {
			b.ShaderTime = b.Shader.ClampTime
		}
	}
}

func (be *BackEnd) setDepthHack(on bool) {
	if on == be.depthHacked {
		return
	}
	be.depthHacked = on
	if on {
		be.dev.SetDepthRange(0, depthHackMax)
	} else {
		be.dev.SetDepthRange(0, 1)
	}
}

/**
 * @brief Walks the sorted surfaces, starting a new batch whenever the
 * shader, the fog volume or (for shaders that cannot merge entities) the
 * entity changes.
 */
func (be *BackEnd) renderDrawSurfList(c *commands.DrawSurfsCommand) error {
	b := be.tess
	var oldShader *metadata.Shader
	oldFog, oldEntity := -1, -1
	oldSort := ^uint32(0)

	for i := range c.DrawSurfs {
		ds := &c.DrawSurfs[i]
		if ds.Sort == oldSort {
			// fast path, same as previous sort
			if err := b.TessellateSurface(ds.Surface); err != nil {
				return err
			}
			continue
		}
		oldSort = ds.Sort
		sortedIndex, entNum, fogNum, _ := metadata.DecomposeSortKey(ds.Sort)
		shader := be.shaders(sortedIndex)

		// change the tess parameters if needed
		if shader != oldShader || fogNum != oldFog || (entNum != oldEntity && !shader.EntityMergable) {
			if oldShader != nil {
				if err := b.End(); err != nil {
					return err
				}
			}
			b.Begin(shader, fogNum)
			oldShader, oldFog = shader, fogNum
		}

		if entNum != oldEntity {
			be.setEntity(c, entNum)
			oldEntity = entNum
		}

		if err := b.TessellateSurface(ds.Surface); err != nil {
			return err
		}
	}

	// draw the contents of the last shader batch
	if oldShader != nil {
		return b.End()
	}
	return nil
}

/**
 * @brief Draws the additive pass of every dynamic light over the surfaces
 * it touches. Batching follows renderDrawSurfList with the light as an
 * extra batch key.
 */
func (be *BackEnd) renderLitSurfList(c *commands.DrawSurfsCommand) error {
	b := be.tess
	for _, dl := range c.Dlights {
		if dl.Head == nil {
			continue
		}
		var oldShader *metadata.Shader
		oldFog, oldEntity := -1, -1
		oldSort := ^uint32(0)

		for ls := dl.Head; ls != nil; ls = ls.Next {
			if ls.Sort == oldSort {
				if err := b.TessellateSurface(ls.Surface); err != nil {
					return err
				}
				continue
			}
			oldSort = ls.Sort
			sortedIndex, entNum, fogNum, _ := metadata.DecomposeSortKey(ls.Sort)
			shader := be.shaders(sortedIndex)

			if shader != oldShader || fogNum != oldFog || (entNum != oldEntity && !shader.EntityMergable) {
				if oldShader != nil {
					if err := b.End(); err != nil {
						return err
					}
				}
				b.BeginLit(shader, fogNum, dl)
				oldShader, oldFog = shader, fogNum
			}

			if entNum != oldEntity {
				be.setEntity(c, entNum)
				transformDlight(dl, &b.Ctx.Or, b.Ctx.IsWorldEntity)
				oldEntity = entNum
			}

			if err := b.TessellateSurface(ls.Surface); err != nil {
				return err
			}
		}
		if oldShader != nil {
			if err := b.End(); err != nil {
				return err
			}
		}
	}
	return nil
}

// transformDlight moves the light origin into the space of the current
// orientation.
func transformDlight(dl *metadata.Dlight, or *metadata.Orientation, world bool) {
	if world {
		dl.Transformed = dl.Origin
		return
	}
	dl.Transformed = math.WorldVectorToLocal(&or.Axis, dl.Origin.Sub(or.Origin))
}

// screenshot reads back the framebuffer and writes it to disk. Failures are
// logged; a screenshot never stops the frame.
func (be *BackEnd) screenshot(c *commands.ScreenshotCommand) {
	pixels, err := be.dev.ReadPixels(c.X, c.Y, c.Width, c.Height)
	if err != nil {
		core.LogWarn("screenshot '%s': %s", c.FileName, err.Error())
		return
	}
	if be.jobs == nil {
		_ = writeScreenshot(c.FileName, c.Format, pixels, c.Width, c.Height)
		return
	}
	// non-blocking: the back end may itself be running on a worker
	be.jobs.AddWorkNonBlocking(metadata.JobTask{
		JobType: metadata.JOB_TYPE_GENERAL,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			return writeScreenshot(c.FileName, c.Format, pixels, c.Width, c.Height)
		},
	})
}

func writeScreenshot(name, format string, pixels []byte, width, height int) error {
	img, err := ScreenshotImage(pixels, width, height)
	if err == nil {
		err = SaveImage(img, name, format)
	}
	if err != nil {
		core.LogWarn("screenshot '%s': %s", name, err.Error())
		return err
	}
	core.LogInfo("wrote %s", name)
	return nil
}

func (be *BackEnd) videoFrame(c *commands.VideoFrameCommand) {
	pixels, err := be.dev.ReadPixels(0, 0, c.Width, c.Height)
	if err != nil {
		core.LogWarn("video frame: %s", err.Error())
		return
	}
	FlipRows(pixels, c.Width, c.Height)
	if _, err := c.Sink.Write(pixels); err != nil {
		core.LogWarn("video frame: %s", err.Error())
	}
}
