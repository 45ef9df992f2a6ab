package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/spaghettifunk/tessera/engine/config"
	"github.com/spaghettifunk/tessera/engine/containers"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
	"github.com/spaghettifunk/tessera/engine/renderer/tess"
	"github.com/spaghettifunk/tessera/engine/renderer/views"
	"github.com/spaghettifunk/tessera/engine/systems"
)

var ErrWorldLoaded = errors.New("world already loaded")

/**
 * @brief Storage for one frame in flight: the surface arena, the command
 * queue and the scene lists the queued commands point into. The front end
 * fills a frame while the back end may still execute the previous one.
 */
type frameData struct {
	arena *views.Arena
	queue *commands.Queue

	entities   []metadata.SceneEntity
	entityRefs []*metadata.SceneEntity
	dlights    []metadata.Dlight
	dlightRefs []*metadata.Dlight
	polys      []metadata.Poly
	polyRefs   []*metadata.Poly
	polyVerts  []metadata.PolyVert

	counters core.FrameCounters

	inFlight sync.WaitGroup
	err      error
	backMsec int
}

func newFrameData(cfg *config.RendererConfig) *frameData {
	f := &frameData{
		arena:      views.NewArena(cfg.MaxDrawSurfs, cfg.MaxLitSurfs),
		entities:   make([]metadata.SceneEntity, 0, metadata.MAX_REFENTITIES),
		entityRefs: make([]*metadata.SceneEntity, 0, metadata.MAX_REFENTITIES),
		dlights:    make([]metadata.Dlight, 0, metadata.MAX_DLIGHTS),
		dlightRefs: make([]*metadata.Dlight, 0, metadata.MAX_DLIGHTS),
		polys:      make([]metadata.Poly, 0, cfg.MaxPolys),
		polyRefs:   make([]*metadata.Poly, 0, cfg.MaxPolys),
		polyVerts:  make([]metadata.PolyVert, 0, cfg.MaxPolyVerts),
	}
	f.queue = commands.NewQueue(cfg.CommandBufferSize, &f.counters)
	return f
}

func (f *frameData) reset() {
	f.arena.Reset()
	f.queue.Reset()
	clear(f.entities[:cap(f.entities)])
	f.entities = f.entities[:0]
	clear(f.entityRefs[:cap(f.entityRefs)])
	f.entityRefs = f.entityRefs[:0]
	f.dlights = f.dlights[:0]
	clear(f.dlightRefs[:cap(f.dlightRefs)])
	f.dlightRefs = f.dlightRefs[:0]
	clear(f.polys[:cap(f.polys)])
	f.polys = f.polys[:0]
	clear(f.polyRefs[:cap(f.polyRefs)])
	f.polyRefs = f.polyRefs[:0]
	f.polyVerts = f.polyVerts[:0]
	f.counters = core.FrameCounters{}
	f.err = nil
	f.backMsec = 0
}

type options struct {
	width, height int
	roots         []string
}

/** @brief Configures a Renderer at creation. */
type Option func(*options)

// WithSize sets the initial framebuffer size.
func WithSize(width, height int) Option {
	return func(o *options) {
		o.width, o.height = width, height
	}
}

// WithAssetRoots overrides the configured asset roots.
func WithAssetRoots(roots ...string) Option {
	return func(o *options) {
		o.roots = roots
	}
}

/**
 * @brief The renderer context. The front end API builds frames of render
 * commands; the back end executes them on the device, on the GPU job worker
 * when the device allows it.
 */
type Renderer struct {
	config  *config.RendererConfig
	dev     device.Device
	systems *systems.SystemManager
	metrics *core.Metrics
	backEnd *BackEnd

	width  int
	height int

	registered  bool
	world       *metadata.World
	vis         *views.Visibility
	models      []*metadata.Model
	externalVis []byte

	frames *containers.RingQueue[*frameData]
	frame  *frameData

	firstSceneEntity int
	firstSceneDlight int
	firstScenePoly   int

	frameCount int
	sceneCount int

	clock      *core.Clock
	frontClock *core.Clock

	pendingShot      *commands.ScreenshotCommand
	pendingShotFrame int

	// fatal errors raised while syncing outside of EndFrame
	pendingErr error
}

/**
 * @brief Creates the renderer: initializes the device, the asset, texture
 * and shader systems and the ring of frames in flight.
 */
func New(cfg *config.RendererConfig, dev device.Device, opts ...Option) (*Renderer, error) {
	if cfg == nil {
		cfg = config.Default()
	}
	cfg.Normalize()
	core.SetLogLevel(core.ParseLogLevel(cfg.LogLevel))

	o := &options{width: 640, height: 480, roots: cfg.ShaderDirs}
	for _, opt := range opts {
		opt(o)
	}

	if err := dev.Init(o.width, o.height); err != nil {
		return nil, fmt.Errorf("failed to initialize device: %w", err)
	}
	caps := dev.Capabilities()
	if caps.MaxTextureUnits < 2 {
		return nil, core.Fatal(core.ErrMissingCapability, "device has %d texture units, 2 are required", caps.MaxTextureUnits)
	}
	dev.PrintInfo()

	sm, err := systems.NewSystemManager(cfg, dev)
	if err != nil {
		return nil, err
	}
	if err := sm.Initialize(o.roots...); err != nil {
		return nil, err
	}

	buf := tess.New(cfg.MaxVertexes, cfg.MaxIndexes, dev)
	buf.Ctx.Settings = tess.Settings{
		IdentityLight:     cfg.IdentityLight(),
		IdentityLightByte: cfg.IdentityLightByte(),
		Greyscale:         cfg.Greyscale,
		DlightMode:        cfg.DlightMode,
		SoftSprites:       cfg.SoftSprites && caps.SoftSprites,
		ShowTris:          cfg.ShowTris,
		LodCurveError:     cfg.LodCurveError,
	}
	buf.Ctx.Images = sm.TextureSystem.Images()
	buf.Ctx.Video = sm.TextureSystem.Scratch

	r := &Renderer{
		config:     cfg,
		dev:        dev,
		systems:    sm,
		metrics:    core.NewMetrics(),
		backEnd:    NewBackEnd(dev, buf, sm.ShaderSystem.SortedShader),
		width:      o.width,
		height:     o.height,
		frames:     containers.NewRingQueue[*frameData](cfg.SMPFrames),
		clock:      core.NewClock(),
		frontClock: core.NewClock(),
	}
	for i := 0; i < cfg.SMPFrames; i++ {
		if err := r.frames.Enqueue(newFrameData(cfg)); err != nil {
			return nil, err
		}
	}
	r.frame, _ = r.frames.Peek()
	r.backEnd.SetGamma(cfg.Gamma)
	r.backEnd.SetJobs(sm.JobSystem)

	// shaders registered after surfaces were queued shift the queued sort keys
	sm.ShaderSystem.OnSortedInsert = func(sortedIndex int) {
		if r.frame != nil {
			r.frame.queue.FixSortKeys(sortedIndex)
		}
	}

	r.clock.Start()
	core.LogInfo("renderer initialized: %dx%d, %d frame(s) in flight, multithreaded=%v", o.width, o.height, cfg.SMPFrames, dev.IsMultithreaded())
	return r, nil
}

// Shutdown waits for the back end and releases every subsystem and the device.
func (r *Renderer) Shutdown() error {
	r.syncBackEnd()
	r.registered = false
	if err := r.systems.Shutdown(); err != nil {
		return err
	}
	return r.dev.Shutdown()
}

// Config returns the normalized configuration in use.
func (r *Renderer) Config() *config.RendererConfig { return r.config }

// Metrics returns the frame timing and counters of the last completed frame.
func (r *Renderer) Metrics() *core.Metrics { return r.metrics }

// Systems exposes the shader, texture and font systems.
func (r *Renderer) Systems() *systems.SystemManager { return r.systems }

// Resize updates the framebuffer size used by following frames.
func (r *Renderer) Resize(width, height int) {
	r.width, r.height = width, height
}

// syncBackEnd blocks until no frame is executing. Frames that failed leave
// their error in pendingErr for the next EndFrame.
func (r *Renderer) syncBackEnd() {
	for i := 0; i < r.frames.Len(); i++ {
		f, _ := r.frames.Dequeue()
		f.inFlight.Wait()
		if f.err != nil && r.pendingErr == nil {
			r.pendingErr = f.err
			f.err = nil
		}
		_ = r.frames.Enqueue(f)
	}
}

/**
 * @brief Starts level registration. The back end is idle afterwards so
 * shaders and textures can be created safely.
 */
func (r *Renderer) BeginRegistration() {
	r.syncBackEnd()
	r.registered = true
	r.firstSceneEntity, r.firstSceneDlight, r.firstScenePoly = 0, 0, 0
	core.LogDebug("begin registration")
}

/**
 * @brief Makes w the current world: uploads its lightmaps, resolves its
 * surface shaders and prepares it for traversal.
 */
func (r *Renderer) LoadWorld(w *metadata.World) error {
	if !r.registered {
		return core.ErrNotInitialized
	}
	if r.world != nil {
		return fmt.Errorf("%s: %w", w.Name, ErrWorldLoaded)
	}
	r.syncBackEnd()

	if err := r.systems.TextureSystem.LoadLightmaps(w.Lightmaps); err != nil {
		return fmt.Errorf("failed to load lightmaps of '%s': %w", w.Name, err)
	}
	if r.externalVis != nil {
		w.Vis = r.externalVis
	}

	ss := r.systems.ShaderSystem
	for i := range w.Surfaces {
		surf := &w.Surfaces[i]
		if surf.Shader != nil || surf.ShaderName == "" {
			continue
		}
		surf.Shader = ss.FindShader(surf.ShaderName, surf.LightmapNum, true)
	}

	r.world = w
	r.vis = views.NewVisibility(w, r.viewSettings(), nil)
	r.models = r.models[:0]
	for i := range w.BModels {
		r.models = append(r.models, &metadata.Model{
			Name:   fmt.Sprintf("*%d", i),
			Type:   metadata.ModelBrush,
			Index:  len(r.models),
			BModel: &w.BModels[i],
		})
	}
	core.LogInfo("loaded world '%s': %d surfaces, %d nodes, %d fogs", w.Name, len(w.Surfaces), len(w.Nodes), len(w.Fogs))
	return nil
}

// UnloadWorld drops the current world so another can be loaded.
func (r *Renderer) UnloadWorld() {
	r.syncBackEnd()
	r.world = nil
	r.vis = nil
	r.models = r.models[:0]
}

/**
 * @brief Replaces the PVS of the world loaded next, for games that ship
 * visibility separately from the map.
 */
func (r *Renderer) SetWorldVisData(vis []byte) {
	r.externalVis = vis
}

// InlineModel returns brush model n of the world, nil when there is none.
func (r *Renderer) InlineModel(n int) *metadata.Model {
	if n < 0 || n >= len(r.models) {
		return nil
	}
	return r.models[n]
}

// RegisterShader finds or creates a shader. The back end is synced first so
// the sort order does not change under it.
func (r *Renderer) RegisterShader(name string) int {
	r.syncBackEnd()
	return r.systems.ShaderSystem.RegisterShader(name)
}

// RegisterShaderNoMip is RegisterShader for images without mipmaps.
func (r *Renderer) RegisterShaderNoMip(name string) int {
	r.syncBackEnd()
	return r.systems.ShaderSystem.RegisterShaderNoMip(name)
}

// RemapShader draws newName wherever oldName was used.
func (r *Renderer) RemapShader(oldName, newName string, timeOffset float64) error {
	r.syncBackEnd()
	return r.systems.ShaderSystem.RemapShader(oldName, newName, timeOffset)
}

// RegisterFont loads a bitmap font drawn at pointSize.
func (r *Renderer) RegisterFont(name string, pointSize int) (*metadata.FontInfo, error) {
	r.syncBackEnd()
	return r.systems.FontSystem.RegisterFont(name, pointSize)
}

func (r *Renderer) viewSettings() views.Settings {
	c := r.config
	return views.Settings{
		NoVis:             c.NoVis,
		NoCull:            c.NoCull,
		LockPVS:           c.LockPVS,
		FacePlaneCull:     c.FacePlaneCull,
		DynamicLights:     c.DynamicLights,
		LodBias:           c.LodBias,
		IdentityLight:     c.IdentityLight(),
		IdentityLightByte: c.IdentityLightByte(),
	}
}

/**
 * @brief Starts a frame. Shader scripts changed on disk are reloaded here,
 * with the back end idle.
 */
func (r *Renderer) BeginFrame() error {
	if !r.registered {
		return core.ErrNotInitialized
	}
	r.frontClock.Start()
	r.frameCount++

	if changed := r.systems.AssetManager.ChangedScripts(); len(changed) > 0 {
		r.syncBackEnd()
		n := r.systems.ShaderSystem.ReloadScripts(changed)
		core.LogInfo("reloaded %d shader(s) from %d script(s)", n, len(changed))
	}

	r.clock.Update()
	r.frame.queue.Append(&commands.DrawBufferCommand{
		Width:  r.width,
		Height: r.height,
		Time:   r.clock.Milliseconds(),
	})
	return nil
}

/**
 * @brief Ends the frame: queues the swap, hands the frame to the back end
 * and moves on to the next frame of the ring, waiting for it to be free.
 * @return The front end and back end times in milliseconds.
 */
func (r *Renderer) EndFrame() (frontMsec int, backMsec int, err error) {
	if !r.registered {
		return 0, 0, core.ErrNotInitialized
	}
	f := r.frame

	// a screenshot dropped last frame takes the reserved slot now
	if r.pendingShot != nil && r.pendingShotFrame < r.frameCount {
		shot := r.pendingShot
		r.pendingShot = nil
		if err := f.queue.AppendCritical(shot); err != nil {
			return 0, 0, err
		}
	}
	if err := f.queue.AppendCritical(&commands.SwapBuffersCommand{}); err != nil {
		return 0, 0, err
	}

	r.frontClock.Stop()
	frontMsec = r.frontClock.Milliseconds()

	r.issueRenderCommands(f)

	// advance the ring; the next frame may still be executing
	done, _ := r.frames.Dequeue()
	_ = r.frames.Enqueue(done)
	next, _ := r.frames.Peek()
	next.inFlight.Wait()

	r.metrics.Counters = next.counters
	backMsec = next.backMsec
	err = next.err
	if err == nil {
		err = r.pendingErr
	}
	r.pendingErr = nil
	next.reset()
	r.frame = next
	r.firstSceneEntity, r.firstSceneDlight, r.firstScenePoly = 0, 0, 0

	r.metrics.Update(float64(frontMsec+backMsec) / 1000)
	if r.config.Speeds {
		core.LogInfo("%s front %dms back %dms", r.metrics.Speeds(), frontMsec, backMsec)
	}
	return frontMsec, backMsec, err
}

// issueRenderCommands hands a finished frame to the back end.
func (r *Renderer) issueRenderCommands(f *frameData) {
	f.inFlight.Add(1)
	if !r.dev.IsMultithreaded() {
		r.executeFrame(f)
		f.inFlight.Done()
		return
	}
	r.systems.JobSystem.Submit(metadata.JobTask{
		JobType: metadata.JOB_TYPE_GPU_RESOURCE,
		OnStart: func(params interface{}, results chan<- interface{}) error {
			return r.executeFrame(params.(*frameData))
		},
		OnCompletionCallback: f.inFlight.Done,
		InputParams:          f,
	})
}

func (r *Renderer) executeFrame(f *frameData) error {
	clock := core.NewClock()
	clock.Start()
	r.backEnd.SetCounters(&f.counters)
	f.err = r.backEnd.ExecuteRenderCommands(f.queue)
	clock.Stop()
	f.backMsec = clock.Milliseconds()
	return f.err
}
