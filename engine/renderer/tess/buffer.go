package tess

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief Renderer wide values the evaluator needs, fixed between frames.
 */
type Settings struct {
	/** @brief Color scale compensating for hardware overbright. */
	IdentityLight     float32
	IdentityLightByte uint8
	/** @brief Mix toward greyscale applied to lighting-diffuse colors. */
	Greyscale float32
	/** @brief 0 projects a falloff texture, 1 uses the dynamic light pipeline. */
	DlightMode  int
	SoftSprites bool
	ShowTris    bool
	/** @brief Numerator of the patch level of detail error. */
	LodCurveError float32
}

// DefaultSettings is used by buffers created without explicit settings.
func DefaultSettings() Settings {
	return Settings{
		IdentityLight:     0.5,
		IdentityLightByte: 127,
		LodCurveError:     250,
		SoftSprites:       true,
	}
}

/** @brief Built-in textures the evaluator binds on its own. */
type Images struct {
	White  *metadata.Texture
	Fog    *metadata.Texture
	Dlight *metadata.Texture
}

/**
 * @brief The back-end state the evaluator reads while surfaces are built:
 * current view, entity and orientation. The executor updates it as it walks
 * the surface list.
 */
type Context struct {
	View *metadata.ViewParms
	/** @brief Orientation of the current entity; the world orientation for world surfaces. */
	Or     metadata.Orientation
	Entity *metadata.SceneEntity
	/** @brief Set while drawing world surfaces, which need no vector transforms. */
	IsWorldEntity bool
	/** @brief Scene time in seconds, adjusted by the entity's shader time. */
	FloatTime float64
	/** @brief Scene time in milliseconds. */
	Time int
	/** @brief Strings drawn by text deforms. */
	Text [8]string
	Fogs []metadata.Fog

	Settings Settings
	Images   Images
	/** @brief Resolves a videoMap handle to its scratch texture. */
	Video func(handle int) *metadata.Texture
}

// NewContext returns a context positioned at the origin with an identity view.
func NewContext() *Context {
	view := &metadata.ViewParms{}
	view.Or.Axis = math.IdentityAxis
	view.World.Axis = math.IdentityAxis
	view.World.ModelMatrix = math.Mat4Identity
	ent := &metadata.SceneEntity{}
	ent.E.Axis = math.IdentityAxis
	return &Context{
		View:          view,
		Or:            view.World,
		Entity:        ent,
		IsWorldEntity: true,
		Settings:      DefaultSettings(),
	}
}

/**
 * @brief The tessellation buffer: vertex and index arrays of the batch being
 * assembled plus per-stage scratch arrays. One buffer is used by a single
 * goroutine at a time.
 */
type Buffer struct {
	maxVertexes int
	maxIndexes  int

	Indexes      []uint32
	XYZ          []math.Vec3
	Normal       []math.Vec3
	TexCoords    [2][][2]float32
	VertexColors [][4]uint8
	NumVertexes  int
	NumIndexes   int

	/** @brief Triangles touched by the current dynamic light. */
	DlightIndexes    []uint32
	NumDlightIndexes int

	// per stage scratch
	Colors [][4]uint8
	STs    [2][][2]float32
	fogST  [][2]float32
	clip   []uint8

	Shader     *metadata.Shader
	ShaderTime float64
	FogNum     int
	/** @brief Light of a lit pass batch, nil for the main pass. */
	Light *metadata.Dlight

	Ctx      *Context
	Dev      device.Device
	Counters *core.FrameCounters

	skyDrawn bool
}

// New allocates a buffer with fixed vertex and index caps.
func New(maxVertexes, maxIndexes int, dev device.Device) *Buffer {
	b := &Buffer{
		maxVertexes:   maxVertexes,
		maxIndexes:    maxIndexes,
		Indexes:       make([]uint32, maxIndexes),
		XYZ:           make([]math.Vec3, maxVertexes),
		Normal:        make([]math.Vec3, maxVertexes),
		VertexColors:  make([][4]uint8, maxVertexes),
		DlightIndexes: make([]uint32, maxIndexes),
		Colors:        make([][4]uint8, maxVertexes),
		fogST:         make([][2]float32, maxVertexes),
		clip:          make([]uint8, maxVertexes),
		Ctx:           NewContext(),
		Dev:           dev,
		Counters:      &core.FrameCounters{},
	}
	for i := 0; i < 2; i++ {
		b.TexCoords[i] = make([][2]float32, maxVertexes)
		b.STs[i] = make([][2]float32, maxVertexes)
	}
	return b
}

// MaxVertexes is the vertex cap of one batch.
func (b *Buffer) MaxVertexes() int { return b.maxVertexes }

// MaxIndexes is the index cap of one batch.
func (b *Buffer) MaxIndexes() int { return b.maxIndexes }

// Begin starts a new batch for shader and fog volume.
func (b *Buffer) Begin(shader *metadata.Shader, fogNum int) {
	if shader.RemappedShader != nil {
		shader = shader.RemappedShader
	}
	b.NumIndexes = 0
	b.NumVertexes = 0
	b.NumDlightIndexes = 0
	b.Shader = shader
	b.FogNum = fogNum
	b.Light = nil

	b.ShaderTime = b.Ctx.FloatTime - shader.TimeOffset
	if shader.ClampTime != 0 && b.ShaderTime >= shader.ClampTime {
		b.ShaderTime = shader.ClampTime
	}
}

// BeginLit starts a batch of the additive pass for light.
func (b *Buffer) BeginLit(shader *metadata.Shader, fogNum int, light *metadata.Dlight) {
	b.Begin(shader, fogNum)
	b.Light = light
}

// CheckOverflow makes room for verts and indexes more elements. When the batch
// is full it is drawn and restarted with the same shader and fog. A single
// request larger than the caps is fatal.
//
// Faces, triangle soups, meshes and polygons make one request each, so they
// cost at most one extra flush per surface.
// Grids ask strip by strip and rail rings and lightning ask per quad; those
// may flush once per batch they fill.
func (b *Buffer) CheckOverflow(verts, indexes int) error {
	if b.NumVertexes+verts <= b.maxVertexes && b.NumIndexes+indexes <= b.maxIndexes {
		return nil
	}

	if verts > b.maxVertexes {
		return core.Fatal(core.ErrTessOverflow, "verts > MAX (%d > %d) in shader '%s'", verts, b.maxVertexes, b.shaderName())
	}
	if indexes > b.maxIndexes {
		return core.Fatal(core.ErrTessOverflow, "indexes > MAX (%d > %d) in shader '%s'", indexes, b.maxIndexes, b.shaderName())
	}

	b.Counters.Overflows++
	light := b.Light
	if err := b.End(); err != nil {
		return err
	}
	b.Begin(b.Shader, b.FogNum)
	b.Light = light
	return nil
}

func (b *Buffer) shaderName() string {
	if b.Shader == nil {
		return "<none>"
	}
	return b.Shader.Name
}

// End evaluates the batch (deforms, stages, fog, lights) and issues its draws,
// then empties the buffer.
func (b *Buffer) End() error {
	defer func() {
		b.NumIndexes = 0
		b.NumVertexes = 0
	}()

	if b.NumIndexes == 0 || b.NumVertexes == 0 {
		return nil
	}
	if b.Shader == nil {
		return core.Fatal(core.ErrShaderInvalid, "batch ended without a shader")
	}

	b.Counters.Batches++
	b.Counters.Vertexes += b.NumVertexes
	b.Counters.Indexes += b.NumIndexes

	switch {
	case b.Light != nil:
		b.stageIteratorLit()
	case b.Shader.IsSky:
		b.stageIteratorSky()
	default:
		b.stageIteratorGeneric()
	}

	if b.Ctx.Settings.ShowTris {
		b.drawTris()
	}
	return nil
}

// ResetFrame clears per-view state such as the sky drawn flag.
func (b *Buffer) ResetFrame() {
	b.skyDrawn = false
	b.Light = nil
}

// geometry returns the device view of the first NumVertexes vertices with the
// given stage scratch arrays.
func (b *Buffer) geometry(indexes []uint32) *device.Geometry {
	n := b.NumVertexes
	return &device.Geometry{
		XYZ:       b.XYZ[:n],
		Normals:   b.Normal[:n],
		Indexes:   indexes,
		Colors:    b.Colors[:n],
		TexCoords: [2][][2]float32{b.STs[0][:n], b.STs[1][:n]},
	}
}

func (b *Buffer) draw(kind device.PipelineKind, state *device.State, indexes []uint32) {
	b.Dev.ApplyState(state)
	b.Dev.Draw(kind, b.geometry(indexes))
	b.Counters.Draws++
}

func (b *Buffer) drawTris() {
	for i := 0; i < b.NumVertexes; i++ {
		b.Colors[i] = [4]uint8{255, 255, 255, 255}
	}
	state := &device.State{
		Bits:     metadata.PolyModeLine | metadata.DepthMaskTrue,
		Cull:     b.Shader.CullType,
		Textures: [2]uint32{b.imageHandle(b.Ctx.Images.White), 0},
	}
	if b.Ctx.View != nil {
		state.Mirror = b.Ctx.View.IsMirror
	}
	b.draw(device.PipelineGeneric, state, b.Indexes[:b.NumIndexes])
}

func (b *Buffer) imageHandle(t *metadata.Texture) uint32 {
	if t == nil {
		return 0
	}
	return t.Handle
}
