package testbed

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine"
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer"
	"github.com/spaghettifunk/tessera/engine/renderer/components"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	fovX        = 90
	orbitRadius = 256
	// degrees per second
	turnSpeed = 20
)

type TestGame struct {
	*engine.Game
}

type gameState struct {
	width  int
	height int

	// seconds since the world was loaded
	time   float64
	yaw    float32
	camera *components.Camera

	world  *metadata.World
	glow   int
	flare  *metadata.Shader
	font   *metadata.FontInfo
	hud    [4]float32
	frames int
}

func NewTestGame(configPath string, assetRoots ...string) (*TestGame, error) {
	tg := &TestGame{
		Game: &engine.Game{
			ApplicationConfig: &engine.ApplicationConfig{
				StartPosX:   100,
				StartPosY:   100,
				StartWidth:  1280,
				StartHeight: 720,
				Name:        "Tessera Testbed",
				ConfigPath:  configPath,
				AssetRoots:  assetRoots,
				TargetFPS:   60,
			},
			State: newGameState(),
		},
	}

	tg.FnInitialize = tg.Initialize
	tg.FnUpdate = tg.Update
	tg.FnRender = tg.Render
	tg.FnOnResize = tg.OnResize
	tg.FnShutdown = tg.Shutdown

	return tg, nil
}

func newGameState() *gameState {
	camera := components.NewCamera()
	camera.SetPosition(math.Vec3{0, 0, 32})
	return &gameState{
		camera: camera,
		hud:    [4]float32{1, 1, 1, 0.8},
	}
}

func (g *TestGame) state() *gameState {
	return g.State.(*gameState)
}

/**
 * @brief Registers the testbed shaders and loads the procedural room. A
 * missing font only disables the text overlay.
 */
func (g *TestGame) Initialize() error {
	core.LogInfo("initializing testbed...")
	return setupScene(g.Renderer, g.state())
}

func setupScene(r *renderer.Renderer, st *gameState) error {
	r.BeginRegistration()

	st.world = BuildRoomWorld()
	if err := r.LoadWorld(st.world); err != nil {
		return err
	}

	st.glow = r.RegisterShader(GlowShader)
	st.flare = r.Systems().ShaderSystem.GetShaderByHandle(r.RegisterShader(SpriteShader))

	font, err := r.RegisterFont("fonts/testbed", 16)
	if err != nil {
		core.LogWarn("text overlay disabled: %s", err)
	} else {
		st.font = font
	}
	return nil
}

func (g *TestGame) Update(deltaTime float64) error {
	st := g.state()
	st.time += deltaTime
	st.yaw = math32.Mod(float32(st.time)*turnSpeed, 360)
	// the camera turns against the light
	st.camera.Yaw(-turnSpeed * float32(deltaTime))
	return nil
}

func (g *TestGame) Render(deltaTime float64) error {
	st := g.state()
	st.frames++
	return renderFrame(g.Renderer, st)
}

// renderFrame adds the scene and the overlay to the frame the engine opened.
func renderFrame(r *renderer.Renderer, st *gameState) error {
	if st.width == 0 || st.height == 0 {
		return nil
	}

	// a sprite marks the light as it orbits the room
	rad := st.yaw * math32.Pi / 180
	lightOrigin := math.Vec3{orbitRadius * math32.Cos(rad), orbitRadius * math32.Sin(rad), 0}
	r.AddRefEntityToScene(&metadata.RefEntity{
		ReType:       metadata.RTSprite,
		Origin:       lightOrigin,
		CustomShader: st.flare,
		ShaderRGBA:   [4]uint8{255, 200, 120, 255},
		Radius:       16,
	})
	r.AddLightToScene(lightOrigin, 300, 1, 0.8, 0.5)

	if err := r.RenderScene(sceneRefDef(st)); err != nil {
		return err
	}

	r.SetColor(&st.hud)
	r.DrawStretchPic(8, float32(st.height-24), 160, 16, 0, 0, 1, 1, st.glow)
	r.SetColor(nil)
	if st.font != nil {
		r.DrawString(st.font, 12, float32(st.height-12), 1, fmt.Sprintf("frame %d", st.frames))
	}
	return nil
}

// sceneRefDef looks at the room from the camera.
func sceneRefDef(st *gameState) *metadata.RefDef {
	rd := st.camera.RefDef(st.width, st.height, fovX)
	rd.Time = int(st.time * 1000)
	return &rd
}

func (g *TestGame) OnResize(width, height int) error {
	st := g.state()
	st.width, st.height = width, height
	return nil
}

func (g *TestGame) Shutdown() error {
	core.LogInfo("shutting down testbed after %d frames", g.state().frames)
	if g.Renderer != nil {
		g.Renderer.UnloadWorld()
	}
	return nil
}
