package engine

import (
	"github.com/spaghettifunk/tessera/engine/renderer"
)

type Game struct {
	ApplicationConfig *ApplicationConfig
	Renderer          *renderer.Renderer
	State             interface{}
	FnInitialize      Initialize
	FnUpdate          Update
	FnRender          Render
	FnOnResize        OnResize
	FnShutdown        Shutdown
}

type Initialize func() error
type Update func(deltaTime float64) error

// Render queues the scenes and 2D draws of one frame; the engine begins and
// ends the frame around it.
type Render func(deltaTime float64) error
type OnResize func(width int, height int) error
type Shutdown func() error
