package device

import (
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief Names of the operations a Recorder logs. */
type Op string

const (
	OpInit              Op = "Init"
	OpShutdown          Op = "Shutdown"
	OpBeginFrame        Op = "BeginFrame"
	OpEndFrame          Op = "EndFrame"
	OpBeginSkyAndClouds Op = "BeginSkyAndClouds"
	OpEndSkyAndClouds   Op = "EndSkyAndClouds"
	OpBegin2D           Op = "Begin2D"
	OpBegin3D           Op = "Begin3D"
	OpClearDepth        Op = "ClearDepth"
	OpSetModelView      Op = "SetModelViewMatrix"
	OpSetDepthRange     Op = "SetDepthRange"
	OpCreateTexture     Op = "CreateTexture"
	OpUpdateTexture     Op = "UpdateTexture"
	OpCreateTextureEx   Op = "CreateTextureEx"
	OpDestroyTexture    Op = "DestroyTexture"
	OpApplyState        Op = "ApplyState"
	OpDraw              Op = "Draw"
	OpBeginDynamicLight Op = "BeginDynamicLight"
	OpReadPixels        Op = "ReadPixels"
)

/**
 * @brief One recorded device call. Only the fields relevant to Op are set;
 * geometry is deep copied.
 */
type Call struct {
	Op       Op
	Pipeline PipelineKind
	State    State
	Geometry Geometry
	Light    DynamicLight
	Matrix   math.Mat4
	Values   [2]float32
	Texture  string
}

/**
 * @brief A headless Device that records every call. Used by tests and by the
 * renderer when no window is available.
 */
type Recorder struct {
	mu           sync.Mutex
	calls        []Call
	handles      *core.Identifiers
	width        int
	height       int
	multithread  bool
	caps         Capabilities
	clearPattern byte
}

// NewRecorder creates a recorder. A multithreaded recorder lets the renderer
// execute command lists on a worker goroutine.
func NewRecorder(multithreaded bool) *Recorder {
	return &Recorder{
		multithread: multithreaded,
		handles:     core.NewIdentifiers(64),
		caps: Capabilities{
			MaxTextureSize:  4096,
			MaxTextureUnits: 2,
			SoftSprites:     true,
			PostProcess:     true,
		},
	}
}

// SetCapabilities overrides the reported capabilities.
func (r *Recorder) SetCapabilities(c Capabilities) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.caps = c
}

// SetClearPattern sets the byte ReadPixels fills its result with.
func (r *Recorder) SetClearPattern(b byte) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.clearPattern = b
}

func (r *Recorder) record(c Call) {
	r.mu.Lock()
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

// Calls returns a copy of everything recorded so far.
func (r *Recorder) Calls() []Call {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Call, len(r.calls))
	copy(out, r.calls)
	return out
}

// Draws returns only the recorded draw calls.
func (r *Recorder) Draws() []Call {
	var out []Call
	for _, c := range r.Calls() {
		if c.Op == OpDraw {
			out = append(out, c)
		}
	}
	return out
}

// Ops returns the recorded operation names in order.
func (r *Recorder) Ops() []Op {
	calls := r.Calls()
	out := make([]Op, len(calls))
	for i := range calls {
		out[i] = calls[i].Op
	}
	return out
}

// Reset forgets all recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls = r.calls[:0]
}

func (r *Recorder) Init(width, height int) error {
	r.width, r.height = width, height
	r.record(Call{Op: OpInit})
	return nil
}

func (r *Recorder) Shutdown() error {
	r.record(Call{Op: OpShutdown})
	return nil
}

func (r *Recorder) IsMultithreaded() bool { return r.multithread }

func (r *Recorder) Capabilities() Capabilities {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.caps
}

func (r *Recorder) BeginFrame() error {
	r.record(Call{Op: OpBeginFrame})
	return nil
}

func (r *Recorder) EndFrame() error {
	r.record(Call{Op: OpEndFrame})
	return nil
}

func (r *Recorder) BeginSkyAndClouds(depth float32) {
	r.record(Call{Op: OpBeginSkyAndClouds, Values: [2]float32{depth, depth}})
}

func (r *Recorder) EndSkyAndClouds() {
	r.record(Call{Op: OpEndSkyAndClouds})
}

func (r *Recorder) Begin2D(width, height int) {
	r.record(Call{Op: OpBegin2D, Values: [2]float32{float32(width), float32(height)}})
}

func (r *Recorder) Begin3D(view *View3D) {
	r.record(Call{Op: OpBegin3D, Matrix: view.Projection})
}

func (r *Recorder) ClearDepth() {
	r.record(Call{Op: OpClearDepth})
}

func (r *Recorder) SetModelViewMatrix(m math.Mat4) {
	r.record(Call{Op: OpSetModelView, Matrix: m})
}

func (r *Recorder) SetDepthRange(min, max float32) {
	r.record(Call{Op: OpSetDepthRange, Values: [2]float32{min, max}})
}

// allocate gives tex a handle, reusing the ones of destroyed textures.
func (r *Recorder) allocate(tex *metadata.Texture) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if tex.Handle != 0 {
		_ = r.handles.Release(tex.Handle)
	}
	tex.Handle = r.handles.Acquire(tex)
}

func (r *Recorder) CreateTexture(tex *metadata.Texture, pixels []byte) error {
	if err := checkPixels(tex, pixels); err != nil {
		return err
	}
	r.allocate(tex)
	r.record(Call{Op: OpCreateTexture, Texture: tex.Name})
	return nil
}

func (r *Recorder) UpdateTexture(tex *metadata.Texture, x, y, width, height int, pixels []byte) error {
	if len(pixels) < width*height*4 {
		return fmt.Errorf("update of '%s' needs %d bytes, got %d", tex.Name, width*height*4, len(pixels))
	}
	r.record(Call{Op: OpUpdateTexture, Texture: tex.Name})
	return nil
}

func (r *Recorder) CreateTextureEx(tex *metadata.Texture, pixels []byte) error {
	if err := checkPixels(tex, pixels); err != nil {
		return err
	}
	r.allocate(tex)
	r.record(Call{Op: OpCreateTextureEx, Texture: tex.Name})
	return nil
}

func (r *Recorder) DestroyTexture(tex *metadata.Texture) {
	r.record(Call{Op: OpDestroyTexture, Texture: tex.Name})
	if tex.Handle != 0 {
		r.mu.Lock()
		_ = r.handles.Release(tex.Handle)
		r.mu.Unlock()
	}
	tex.Handle = 0
}

func (r *Recorder) ApplyState(state *State) {
	r.record(Call{Op: OpApplyState, State: *state})
}

func (r *Recorder) Draw(kind PipelineKind, geo *Geometry) {
	c := Call{Op: OpDraw, Pipeline: kind}
	if geo != nil {
		c.Geometry = Geometry{
			XYZ:     append([]math.Vec3(nil), geo.XYZ...),
			Normals: append([]math.Vec3(nil), geo.Normals...),
			Indexes: append([]uint32(nil), geo.Indexes...),
			Colors:  append([][4]uint8(nil), geo.Colors...),
		}
		for i := range geo.TexCoords {
			c.Geometry.TexCoords[i] = append([][2]float32(nil), geo.TexCoords[i]...)
		}
	}
	r.mu.Lock()
	if n := len(r.calls); n > 0 {
		// draws inherit the last latched state so tests can inspect it per draw
		for i := n - 1; i >= 0; i-- {
			if r.calls[i].Op == OpApplyState {
				c.State = r.calls[i].State
				break
			}
		}
	}
	r.calls = append(r.calls, c)
	r.mu.Unlock()
}

func (r *Recorder) BeginDynamicLight(light *DynamicLight) {
	r.record(Call{Op: OpBeginDynamicLight, Light: *light})
}

func (r *Recorder) ReadPixels(x, y, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid read back size %dx%d", width, height)
	}
	r.mu.Lock()
	pattern := r.clearPattern
	r.mu.Unlock()
	out := make([]byte, width*height*4)
	for i := range out {
		out[i] = pattern
	}
	r.record(Call{Op: OpReadPixels, Values: [2]float32{float32(width), float32(height)}})
	return out, nil
}

func (r *Recorder) PrintInfo() Info {
	info := Info{Vendor: "tessera", Renderer: "recorder", Version: "1.0"}
	core.LogInfo("device: %s %s %s (%dx%d)", info.Vendor, info.Renderer, info.Version, r.width, r.height)
	return info
}

func checkPixels(tex *metadata.Texture, pixels []byte) error {
	want := int(tex.Width) * int(tex.Height) * 4
	if len(pixels) < want {
		return fmt.Errorf("texture '%s' needs %d bytes, got %d", tex.Name, want, len(pixels))
	}
	return nil
}
