package opengl

import (
	"fmt"
	"unsafe"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief The window the device draws into; a *glfw.Window satisfies it. */
type Window interface {
	MakeContextCurrent()
	SwapBuffers()
}

const (
	attribPos = iota
	attribNormal
	attribColor
	attribTexCoord0
	attribTexCoord1
	numAttribs
)

/**
 * @brief An OpenGL 4.1 core profile Device. The context is bound to the
 * goroutine that created it, so command lists execute on the caller.
 */
type Device struct {
	window Window
	caps   device.Capabilities
	width  int
	height int

	generic *program
	dlight  *program
	post    *program

	// copy of the framebuffer the post-process pass samples
	scene     uint32
	sceneSize [2]int

	vao     uint32
	buffers [numAttribs]uint32
	ebo     uint32

	// latched state
	state       device.State
	stateValid  bool
	current     *program
	projection  math.Mat4
	modelView   math.Mat4
	clipPlane   math.Vec4
	clipEnabled bool
	depthRange  [2]float32
	light       device.DynamicLight
}

// New creates a device drawing into window. The context is made current in Init.
func New(window Window) *Device {
	return &Device{
		window:     window,
		projection: math.Mat4Identity,
		modelView:  math.Mat4Identity,
		depthRange: [2]float32{0, 1},
	}
}

func (d *Device) Init(width, height int) error {
	d.window.MakeContextCurrent()
	if err := gl.Init(); err != nil {
		return fmt.Errorf("failed to initialize OpenGL: %w", err)
	}
	d.width, d.height = width, height

	var maxSize, maxUnits int32
	gl.GetIntegerv(gl.MAX_TEXTURE_SIZE, &maxSize)
	gl.GetIntegerv(gl.MAX_TEXTURE_IMAGE_UNITS, &maxUnits)
	d.caps = device.Capabilities{
		MaxTextureSize:  int(maxSize),
		MaxTextureUnits: int(maxUnits),
		PostProcess:     true,
	}

	var err error
	d.generic, err = newProgram(vertexSource, genericFragmentSource,
		"uProjection", "uModelView", "uClipPlane", "uClipEnabled",
		"uTex0", "uTex1", "uUseTex0", "uUseTex1", "uTexEnv", "uAlphaFunc")
	if err != nil {
		return err
	}
	d.dlight, err = newProgram(vertexSource, dlightFragmentSource,
		"uProjection", "uModelView", "uClipPlane", "uClipEnabled",
		"uLightOrigin", "uLightColor", "uLightRadius")
	if err != nil {
		return err
	}
	d.post, err = newProgram(vertexSource, postFragmentSource,
		"uProjection", "uModelView", "uClipEnabled", "uScene", "uGamma")
	if err != nil {
		return err
	}
	d.post.use()
	d.post.setInt("uScene", 0)
	d.generic.use()
	d.generic.setInt("uTex0", 0)
	d.generic.setInt("uTex1", 1)

	gl.GenVertexArrays(1, &d.vao)
	gl.BindVertexArray(d.vao)
	gl.GenBuffers(numAttribs, &d.buffers[0])
	gl.GenBuffers(1, &d.ebo)
	gl.BindBuffer(gl.ELEMENT_ARRAY_BUFFER, d.ebo)

	gl.PixelStorei(gl.UNPACK_ALIGNMENT, 1)
	gl.PixelStorei(gl.PACK_ALIGNMENT, 1)
	gl.Enable(gl.DEPTH_TEST)
	gl.ClearColor(0, 0, 0, 1)
	gl.ClearDepth(1)
	return nil
}

func (d *Device) Shutdown() error {
	if d.vao == 0 {
		return nil
	}
	gl.DeleteBuffers(numAttribs, &d.buffers[0])
	gl.DeleteBuffers(1, &d.ebo)
	gl.DeleteVertexArrays(1, &d.vao)
	if d.scene != 0 {
		gl.DeleteTextures(1, &d.scene)
		d.scene = 0
	}
	d.generic.destroy()
	d.dlight.destroy()
	d.post.destroy()
	d.vao = 0
	return nil
}

func (d *Device) IsMultithreaded() bool { return false }

func (d *Device) Capabilities() device.Capabilities { return d.caps }

func (d *Device) BeginFrame() error {
	gl.Viewport(0, 0, int32(d.width), int32(d.height))
	gl.Disable(gl.SCISSOR_TEST)
	gl.DepthMask(true)
	gl.Clear(gl.COLOR_BUFFER_BIT | gl.DEPTH_BUFFER_BIT)
	d.stateValid = false
	return d.checkError("BeginFrame")
}

func (d *Device) EndFrame() error {
	d.window.SwapBuffers()
	return d.checkError("EndFrame")
}

// Resize sets the size of the default framebuffer.
func (d *Device) Resize(width, height int) {
	d.width, d.height = width, height
}

func (d *Device) BeginSkyAndClouds(depth float32) {
	gl.DepthRange(float64(depth), float64(depth))
	if d.clipEnabled {
		gl.Disable(gl.CLIP_DISTANCE0)
	}
}

func (d *Device) EndSkyAndClouds() {
	gl.DepthRange(float64(d.depthRange[0]), float64(d.depthRange[1]))
	if d.clipEnabled {
		gl.Enable(gl.CLIP_DISTANCE0)
	}
}

func (d *Device) Begin2D(width, height int) {
	gl.Viewport(0, 0, int32(width), int32(height))
	gl.Scissor(0, 0, int32(width), int32(height))
	gl.Enable(gl.SCISSOR_TEST)
	gl.Disable(gl.CLIP_DISTANCE0)
	d.clipEnabled = false
	d.projection = math.NewMat4Orthographic(0, float32(width), float32(height), 0, 0, 1)
	d.modelView = math.Mat4Identity
}

func (d *Device) Begin3D(view *device.View3D) {
	gl.Viewport(int32(view.X), int32(view.Y), int32(view.Width), int32(view.Height))
	gl.Scissor(int32(view.X), int32(view.Y), int32(view.Width), int32(view.Height))
	gl.Enable(gl.SCISSOR_TEST)

	gl.DepthMask(true)
	d.stateValid = false
	mask := uint32(gl.DEPTH_BUFFER_BIT)
	if view.ClearColor {
		gl.ClearColor(view.Color[0], view.Color[1], view.Color[2], view.Color[3])
		mask |= gl.COLOR_BUFFER_BIT
	}
	gl.Clear(mask)
	gl.ClearColor(0, 0, 0, 1)

	d.projection = view.Projection
	d.clipEnabled = view.ClipPlane != nil
	if d.clipEnabled {
		d.clipPlane = *view.ClipPlane
		gl.Enable(gl.CLIP_DISTANCE0)
	} else {
		gl.Disable(gl.CLIP_DISTANCE0)
	}
}

func (d *Device) ClearDepth() {
	gl.DepthMask(true)
	d.stateValid = false
	gl.Clear(gl.DEPTH_BUFFER_BIT)
}

func (d *Device) SetModelViewMatrix(m math.Mat4) {
	d.modelView = m
}

func (d *Device) SetDepthRange(min, max float32) {
	d.depthRange = [2]float32{min, max}
	gl.DepthRange(float64(min), float64(max))
}

func (d *Device) BeginDynamicLight(light *device.DynamicLight) {
	d.light = *light
}

func (d *Device) ReadPixels(x, y, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid read back size %dx%d", width, height)
	}
	out := make([]byte, width*height*4)
	gl.ReadPixels(int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(out))
	return out, d.checkError("ReadPixels")
}

func (d *Device) PrintInfo() device.Info {
	info := device.Info{
		Vendor:   gl.GoStr(gl.GetString(gl.VENDOR)),
		Renderer: gl.GoStr(gl.GetString(gl.RENDERER)),
		Version:  gl.GoStr(gl.GetString(gl.VERSION)),
	}
	core.LogInfo("GL_VENDOR: %s", info.Vendor)
	core.LogInfo("GL_RENDERER: %s", info.Renderer)
	core.LogInfo("GL_VERSION: %s", info.Version)
	core.LogInfo("GL_MAX_TEXTURE_SIZE: %d, texture units: %d", d.caps.MaxTextureSize, d.caps.MaxTextureUnits)
	return info
}

/**
 * @brief Latches render state for the following draws. Only the parts that
 * changed since the last call reach the driver.
 */
func (d *Device) ApplyState(state *device.State) {
	prev := d.state
	force := !d.stateValid
	d.state = *state
	d.stateValid = true

	if force || prev.Cull != state.Cull || prev.Mirror != state.Mirror {
		applyCull(state.Cull, state.Mirror)
	}
	if force || prev.Bits != state.Bits {
		applyBits(prev.Bits, state.Bits, force)
	}
	for unit := 0; unit < 2; unit++ {
		if force || prev.Textures[unit] != state.Textures[unit] {
			gl.ActiveTexture(gl.TEXTURE0 + uint32(unit))
			gl.BindTexture(gl.TEXTURE_2D, state.Textures[unit])
		}
	}
	gl.ActiveTexture(gl.TEXTURE0)
}

func applyCull(cull metadata.CullType, mirror bool) {
	if cull == metadata.CullTwoSided {
		gl.Disable(gl.CULL_FACE)
		return
	}
	gl.Enable(gl.CULL_FACE)
	back := cull == metadata.CullBackSided
	if mirror {
		back = !back
	}
	if back {
		gl.CullFace(gl.BACK)
	} else {
		gl.CullFace(gl.FRONT)
	}
}

func applyBits(prev, bits metadata.StateBits, force bool) {
	diff := prev ^ bits
	if force {
		diff = ^metadata.StateBits(0)
	}

	if diff&metadata.DepthFuncEqual != 0 {
		if bits&metadata.DepthFuncEqual != 0 {
			gl.DepthFunc(gl.EQUAL)
		} else {
			gl.DepthFunc(gl.LEQUAL)
		}
	}
	if diff&metadata.BlendBits != 0 {
		if bits&metadata.BlendBits != 0 {
			gl.Enable(gl.BLEND)
			gl.BlendFunc(srcFactor(bits.SrcBlend()), dstFactor(bits.DstBlend()))
		} else {
			gl.Disable(gl.BLEND)
		}
	}
	if diff&metadata.DepthMaskTrue != 0 {
		gl.DepthMask(bits&metadata.DepthMaskTrue != 0)
	}
	if diff&metadata.DepthTestDisable != 0 {
		if bits&metadata.DepthTestDisable != 0 {
			gl.Disable(gl.DEPTH_TEST)
		} else {
			gl.Enable(gl.DEPTH_TEST)
		}
	}
	if diff&metadata.PolyModeLine != 0 {
		if bits&metadata.PolyModeLine != 0 {
			gl.PolygonMode(gl.FRONT_AND_BACK, gl.LINE)
		} else {
			gl.PolygonMode(gl.FRONT_AND_BACK, gl.FILL)
		}
	}
	if diff&metadata.PolygonOffset != 0 {
		if bits&metadata.PolygonOffset != 0 {
			gl.Enable(gl.POLYGON_OFFSET_FILL)
			gl.PolygonOffset(-1, -2)
		} else {
			gl.Disable(gl.POLYGON_OFFSET_FILL)
		}
	}
}

func srcFactor(b metadata.StateBits) uint32 {
	switch b {
	case metadata.SrcBlendZero:
		return gl.ZERO
	case metadata.SrcBlendDstColor:
		return gl.DST_COLOR
	case metadata.SrcBlendOneMinusDstColor:
		return gl.ONE_MINUS_DST_COLOR
	case metadata.SrcBlendSrcAlpha:
		return gl.SRC_ALPHA
	case metadata.SrcBlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case metadata.SrcBlendDstAlpha:
		return gl.DST_ALPHA
	case metadata.SrcBlendOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	case metadata.SrcBlendAlphaSaturate:
		return gl.SRC_ALPHA_SATURATE
	}
	return gl.ONE
}

func dstFactor(b metadata.StateBits) uint32 {
	switch b {
	case metadata.DstBlendOne:
		return gl.ONE
	case metadata.DstBlendSrcColor:
		return gl.SRC_COLOR
	case metadata.DstBlendOneMinusSrcColor:
		return gl.ONE_MINUS_SRC_COLOR
	case metadata.DstBlendSrcAlpha:
		return gl.SRC_ALPHA
	case metadata.DstBlendOneMinusSrcAlpha:
		return gl.ONE_MINUS_SRC_ALPHA
	case metadata.DstBlendDstAlpha:
		return gl.DST_ALPHA
	case metadata.DstBlendOneMinusDstAlpha:
		return gl.ONE_MINUS_DST_ALPHA
	}
	return gl.ZERO
}

func alphaFunc(bits metadata.StateBits) int32 {
	switch bits & metadata.AlphaTestBits {
	case metadata.AlphaTestGT0:
		return 1
	case metadata.AlphaTestLT80:
		return 2
	case metadata.AlphaTestGE80:
		return 3
	}
	return 0
}

/**
 * @brief Uploads the vertex streams of geo and draws them as indexed
 * triangles with the latched state. Soft sprite draws use the generic
 * pipeline; the device does not report that capability.
 */
func (d *Device) Draw(kind device.PipelineKind, geo *device.Geometry) {
	if geo == nil || len(geo.Indexes) == 0 || len(geo.XYZ) == 0 {
		return
	}
	if kind == device.PipelinePostProcess {
		d.drawPostProcess(geo)
		return
	}

	p := d.generic
	if kind == device.PipelineDynamicLight {
		p = d.dlight
	}
	if d.current != p {
		p.use()
		d.current = p
	}
	p.setMat4("uProjection", (*[16]float32)(&d.projection))
	p.setMat4("uModelView", (*[16]float32)(&d.modelView))
	if d.clipEnabled {
		p.setInt("uClipEnabled", 1)
		p.setVec4("uClipPlane", d.clipPlane[0], d.clipPlane[1], d.clipPlane[2], d.clipPlane[3])
	} else {
		p.setInt("uClipEnabled", 0)
	}

	if kind == device.PipelineDynamicLight {
		l := &d.light
		p.setVec3("uLightOrigin", l.Origin[0], l.Origin[1], l.Origin[2])
		p.setVec3("uLightColor", l.Color[0], l.Color[1], l.Color[2])
		p.setFloat("uLightRadius", l.Radius)
	} else {
		s := &d.state
		p.setInt("uUseTex0", boolInt(s.Textures[0] != 0))
		p.setInt("uUseTex1", boolInt(s.Textures[1] != 0))
		texEnv := int32(1)
		if s.TexEnv == metadata.CollapseAdd {
			texEnv = 2
		}
		p.setInt("uTexEnv", texEnv)
		p.setInt("uAlphaFunc", alphaFunc(s.Bits))
	}
	d.drawGeometry(geo)
}

/**
 * @brief Copies the framebuffer into the scene texture and redraws geo with
 * it through the gamma program. The latched state stays in effect apart from
 * the texture on unit 0, which is rebound by the next ApplyState.
 */
func (d *Device) drawPostProcess(geo *device.Geometry) {
	gl.ActiveTexture(gl.TEXTURE0)
	if d.scene == 0 {
		gl.GenTextures(1, &d.scene)
	}
	gl.BindTexture(gl.TEXTURE_2D, d.scene)
	if d.sceneSize != [2]int{d.width, d.height} {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.NEAREST)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.NEAREST)
		gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(d.width), int32(d.height), 0, gl.RGBA, gl.UNSIGNED_BYTE, nil)
		d.sceneSize = [2]int{d.width, d.height}
	}
	gl.CopyTexSubImage2D(gl.TEXTURE_2D, 0, 0, 0, 0, 0, int32(d.width), int32(d.height))

	gamma := d.state.Gamma
	if gamma <= 0 {
		gamma = 1
	}
	d.post.use()
	d.current = d.post
	d.post.setMat4("uProjection", (*[16]float32)(&d.projection))
	d.post.setMat4("uModelView", (*[16]float32)(&d.modelView))
	d.post.setInt("uClipEnabled", 0)
	d.post.setFloat("uGamma", gamma)
	d.drawGeometry(geo)

	d.stateValid = false
}

func (d *Device) drawGeometry(geo *device.Geometry) {
	n := len(geo.XYZ)
	d.upload(attribPos, 3, gl.Ptr(&geo.XYZ[0]), n*3*4)
	if len(geo.Normals) >= n {
		d.upload(attribNormal, 3, gl.Ptr(&geo.Normals[0]), n*3*4)
	} else {
		gl.DisableVertexAttribArray(attribNormal)
		gl.VertexAttrib3f(attribNormal, 0, 0, 1)
	}
	if len(geo.Colors) >= n {
		d.uploadColors(geo.Colors[:n])
	} else {
		gl.DisableVertexAttribArray(attribColor)
		gl.VertexAttrib4f(attribColor, 1, 1, 1, 1)
	}
	for i := 0; i < 2; i++ {
		attrib := uint32(attribTexCoord0 + i)
		if len(geo.TexCoords[i]) >= n {
			d.upload(attrib, 2, gl.Ptr(&geo.TexCoords[i][0]), n*2*4)
		} else {
			gl.DisableVertexAttribArray(attrib)
			gl.VertexAttrib2f(attrib, 0, 0)
		}
	}

	gl.BufferData(gl.ELEMENT_ARRAY_BUFFER, len(geo.Indexes)*4, gl.Ptr(&geo.Indexes[0]), gl.STREAM_DRAW)
	gl.DrawElements(gl.TRIANGLES, int32(len(geo.Indexes)), gl.UNSIGNED_INT, gl.PtrOffset(0))
}

func (d *Device) upload(attrib uint32, size int32, data unsafe.Pointer, bytes int) {
	gl.BindBuffer(gl.ARRAY_BUFFER, d.buffers[attrib])
	gl.BufferData(gl.ARRAY_BUFFER, bytes, data, gl.STREAM_DRAW)
	gl.EnableVertexAttribArray(attrib)
	gl.VertexAttribPointer(attrib, size, gl.FLOAT, false, 0, gl.PtrOffset(0))
}

// uploadColors sends byte colors normalized to 0..1.
func (d *Device) uploadColors(colors [][4]uint8) {
	gl.BindBuffer(gl.ARRAY_BUFFER, d.buffers[attribColor])
	gl.BufferData(gl.ARRAY_BUFFER, len(colors)*4, gl.Ptr(&colors[0]), gl.STREAM_DRAW)
	gl.EnableVertexAttribArray(attribColor)
	gl.VertexAttribPointer(attribColor, 4, gl.UNSIGNED_BYTE, true, 0, gl.PtrOffset(0))
}

func (d *Device) checkError(where string) error {
	if code := gl.GetError(); code != gl.NO_ERROR {
		return fmt.Errorf("%s: GL error 0x%04x", where, code)
	}
	return nil
}

func boolInt(b bool) int32 {
	if b {
		return 1
	}
	return 0
}
