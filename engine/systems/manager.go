package systems

import (
	"runtime"

	"github.com/spaghettifunk/tessera/engine/assets"
	"github.com/spaghettifunk/tessera/engine/config"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
)

/**
 * @brief Owns the renderer's subsystems and their start up and shut down
 * order: jobs, assets, textures, shaders, then fonts.
 */
type SystemManager struct {
	JobSystem     *JobSystem
	AssetManager  *assets.AssetManager
	TextureSystem *TextureSystem
	ShaderSystem  *ShaderSystem
	FontSystem    *FontSystem
}

func NewSystemManager(cfg *config.RendererConfig, dev device.Device) (*SystemManager, error) {
	js, err := NewJobSystem(max(1, runtime.NumCPU()-1), cfg.SMPFrames)
	if err != nil {
		return nil, err
	}
	am, err := assets.NewAssetManager(cfg.HotReload)
	if err != nil {
		return nil, err
	}
	ts, err := NewTextureSystem(&TextureSystemConfig{
		MaxTextureCount:    4096,
		PicMip:             cfg.PicMip,
		MapGreyscale:       cfg.MapGreyscale,
		GreyscaleExempt:    cfg.IsGreyscaleExempt,
		MapOverbrightShift: cfg.MapOverbrightShift(),
	}, am, dev)
	if err != nil {
		return nil, err
	}
	ssys, err := NewShaderSystem(&ShaderSystemConfig{
		MaxShaderCount:    config.MaxShaders,
		IdentityLight:     cfg.IdentityLight(),
		IdentityLightByte: cfg.IdentityLightByte(),
	}, ts, am)
	if err != nil {
		return nil, err
	}
	ts.Jobs = js
	ssys.Jobs = js
	fs, err := NewFontSystem(&FontSystemConfig{MaxFontCount: 16}, ssys, am)
	if err != nil {
		return nil, err
	}
	return &SystemManager{
		JobSystem:     js,
		AssetManager:  am,
		TextureSystem: ts,
		ShaderSystem:  ssys,
		FontSystem:    fs,
	}, nil
}

// Initialize indexes the asset roots and creates the built-in textures and shaders.
func (sm *SystemManager) Initialize(roots ...string) error {
	if err := sm.AssetManager.Initialize(roots...); err != nil {
		return err
	}
	if err := sm.TextureSystem.Initialize(); err != nil {
		return err
	}
	return sm.ShaderSystem.Initialize()
}

func (sm *SystemManager) Shutdown() error {
	// queued device work must finish before the textures it uses go away
	if err := sm.JobSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.FontSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.ShaderSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.TextureSystem.Shutdown(); err != nil {
		return err
	}
	if err := sm.AssetManager.Shutdown(); err != nil {
		return err
	}
	return nil
}
