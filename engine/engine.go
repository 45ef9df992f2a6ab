package engine

import (
	"fmt"
	"sync/atomic"

	"github.com/go-gl/glfw/v3.3/glfw"

	"github.com/spaghettifunk/tessera/engine/config"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/platform"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/opengl"
	"github.com/spaghettifunk/tessera/engine/renderer/vulkan"
)

type Stage uint8

const (
	// Engine is in an uninitialized state
	EngineStageUninitialized Stage = iota
	// Engine is currently initializing
	EngineStageInitializing
	// Engine initialization is complete
	EngineStageInitialized
	// Engine is currently running
	EngineStageRunning
	// Engine is in the process of shutting down
	EngineStageShuttingDown
)

// windowDevice is a render device bound to the platform window.
type windowDevice interface {
	device.Device
	Resize(width, height int)
}

type Engine struct {
	currentStage Stage
	gameInstance *Game
	isRunning    bool
	quit         atomic.Bool
	isSuspended  bool
	platform     *platform.Platform
	device       windowDevice
	renderer     *renderer.Renderer
	width        int
	height       int
	clock        *core.Clock
	lastTime     float64
}

func New(g *Game) (*Engine, error) {
	if g == nil || g.ApplicationConfig == nil {
		return nil, fmt.Errorf("game and application config are required")
	}
	return &Engine{
		currentStage: EngineStageUninitialized,
		gameInstance: g,
		clock:        core.NewClock(),
		platform:     platform.New(),
		isRunning:    true,
		width:        g.ApplicationConfig.StartWidth,
		height:       g.ApplicationConfig.StartHeight,
	}, nil
}

/**
 * @brief Opens the window, creates the configured render device and the
 * renderer, then initializes the game.
 */
func (e *Engine) Initialize() error {
	e.currentStage = EngineStageInitializing
	appConfig := e.gameInstance.ApplicationConfig

	cfg, err := config.Load(appConfig.ConfigPath)
	if err != nil {
		return err
	}

	if cfg.Backend == config.BackendVulkan {
		e.platform.API = platform.APIVulkan
	}
	if err := e.platform.Startup(appConfig.Name,
		appConfig.StartPosX,
		appConfig.StartPosY,
		appConfig.StartWidth,
		appConfig.StartHeight); err != nil {
		return err
	}
	e.width, e.height = e.platform.FramebufferSize()
	e.platform.OnResize = e.onResized
	e.platform.OnKey = e.onKey

	switch cfg.Backend {
	case config.BackendVulkan:
		e.device = vulkan.New(e.platform.Window, vulkan.Options{
			AppName:    appConfig.Name,
			ShaderDir:  cfg.SPIRVDir,
			Validation: cfg.Validation,
		})
	default:
		e.device = opengl.New(e.platform.Window)
	}
	core.LogInfo("render backend: %s", cfg.Backend)
	opts := []renderer.Option{renderer.WithSize(e.width, e.height)}
	if len(appConfig.AssetRoots) > 0 {
		opts = append(opts, renderer.WithAssetRoots(appConfig.AssetRoots...))
	}
	r, err := renderer.New(cfg, e.device, opts...)
	if err != nil {
		return err
	}
	e.renderer = r
	e.gameInstance.Renderer = r

	if err := e.gameInstance.FnInitialize(); err != nil {
		return err
	}
	if err := e.gameInstance.FnOnResize(e.width, e.height); err != nil {
		return err
	}
	e.currentStage = EngineStageInitialized
	return nil
}

func (e *Engine) Run() error {
	e.currentStage = EngineStageRunning
	e.clock.Start()
	e.clock.Update()

	e.lastTime = e.clock.Seconds()

	var targetFrameSeconds float64
	if fps := e.gameInstance.ApplicationConfig.TargetFPS; fps > 0 {
		targetFrameSeconds = 1.0 / float64(fps)
	}

	for e.isRunning {
		if e.quit.Load() || !e.platform.PumpMessages() {
			e.isRunning = false
			break
		}
		if e.isSuspended {
			e.platform.Sleep(16)
			continue
		}

		// Update clock and get delta time.
		e.clock.Update()
		currentTime := e.clock.Seconds()
		delta := currentTime - e.lastTime
		frameStartTime := platform.GetAbsoluteTime()

		if err := e.gameInstance.FnUpdate(delta); err != nil {
			core.LogError("game update failed, shutting down: %s", err)
			return err
		}

		if err := e.renderer.BeginFrame(); err != nil {
			return err
		}
		if err := e.gameInstance.FnRender(delta); err != nil {
			core.LogError("game render failed, shutting down: %s", err)
			return err
		}
		if _, _, err := e.renderer.EndFrame(); err != nil {
			if core.IsFatal(err) {
				return err
			}
			core.LogWarn("frame failed: %s", err)
		}

		// Figure out how long the frame took and, if below the target, give
		// the rest back to the OS.
		frameElapsedTime := platform.GetAbsoluteTime() - frameStartTime
		if remaining := targetFrameSeconds - frameElapsedTime; remaining > 0 {
			e.platform.Sleep(remaining*1000 - 1)
		}

		e.lastTime = currentTime
	}
	return nil
}

// Quit asks the main loop to return after the current frame. It is safe to
// call from any goroutine.
func (e *Engine) Quit() {
	e.quit.Store(true)
}

func (e *Engine) Shutdown() error {
	e.currentStage = EngineStageShuttingDown
	e.isRunning = false
	if e.gameInstance.FnShutdown != nil {
		if err := e.gameInstance.FnShutdown(); err != nil {
			core.LogError("%s", err)
		}
	}
	if e.renderer != nil {
		if err := e.renderer.Shutdown(); err != nil {
			return err
		}
	}
	return e.platform.Shutdown()
}

// GetFramebufferSize returns the width and height (in this order) of the
// application framebuffer.
func (e *Engine) GetFramebufferSize() (int, int) {
	return e.width, e.height
}

func (e *Engine) onKey(key glfw.Key) {
	switch key {
	case glfw.KeyF12:
		name := e.renderer.TakeScreenshot("", "")
		core.LogInfo("screenshot requested: %s", name)
	}
}

func (e *Engine) onResized(width, height int) {
	if width == e.width && height == e.height {
		return
	}
	e.width, e.height = width, height
	core.LogDebug("Window resize: %d, %d", width, height)

	// Handle minimization
	if width == 0 || height == 0 {
		core.LogInfo("Window minimized, suspending application.")
		e.isSuspended = true
		return
	}
	if e.isSuspended {
		core.LogInfo("Window restored, resuming application.")
		e.isSuspended = false
	}
	e.device.Resize(width, height)
	e.renderer.Resize(width, height)
	if err := e.gameInstance.FnOnResize(width, height); err != nil {
		core.LogError("%s", err)
	}
}
