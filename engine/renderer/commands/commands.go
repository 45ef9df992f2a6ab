package commands

import (
	"io"
	"unsafe"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/** @brief Leading discriminator of a command record. */
type Kind int32

const (
	KindEnd Kind = iota
	KindSetColor
	KindStretchPic
	KindTriangle
	KindDrawSurfs
	KindDrawBuffer
	KindSwapBuffers
	KindScreenshot
	KindVideoFrame
	KindClearDepth
)

func (k Kind) String() string {
	switch k {
	case KindEnd:
		return "end"
	case KindSetColor:
		return "set-color"
	case KindStretchPic:
		return "stretch-pic"
	case KindTriangle:
		return "triangle"
	case KindDrawSurfs:
		return "draw-surfs"
	case KindDrawBuffer:
		return "draw-buffer"
	case KindSwapBuffers:
		return "swap-buffers"
	case KindScreenshot:
		return "screenshot"
	case KindVideoFrame:
		return "video-frame"
	case KindClearDepth:
		return "clear-depth"
	}
	return "unknown"
}

// Command is one typed record of the render command queue.
type Command interface {
	Kind() Kind
}

const tagSize = uint64(unsafe.Sizeof(Kind(0)))

// Size is the number of queue bytes a record occupies: its tag plus its fixed
// payload, aligned to pointer size.
func Size(cmd Command) int {
	var payload uintptr
	switch c := cmd.(type) {
	case *SetColorCommand:
		payload = unsafe.Sizeof(*c)
	case *StretchPicCommand:
		payload = unsafe.Sizeof(*c)
	case *TriangleCommand:
		payload = unsafe.Sizeof(*c)
	case *DrawSurfsCommand:
		payload = unsafe.Sizeof(*c)
	case *DrawBufferCommand:
		payload = unsafe.Sizeof(*c)
	case *SwapBuffersCommand:
		payload = unsafe.Sizeof(*c)
	case *ScreenshotCommand:
		payload = unsafe.Sizeof(*c)
	case *VideoFrameCommand:
		payload = unsafe.Sizeof(*c)
	case *ClearDepthCommand:
		payload = unsafe.Sizeof(*c)
	}
	return int(metadata.GetAligned(tagSize+uint64(payload), uint64(unsafe.Sizeof(uintptr(0)))))
}

/** @brief Sets the color used by following 2D draws. */
type SetColorCommand struct {
	Color [4]float32
}

func (*SetColorCommand) Kind() Kind { return KindSetColor }

/** @brief Draws a textured screen rectangle. */
type StretchPicCommand struct {
	Shader *metadata.Shader
	X, Y   float32
	W, H   float32
	S1, T1 float32
	S2, T2 float32
}

func (*StretchPicCommand) Kind() Kind { return KindStretchPic }

/** @brief Draws a textured screen triangle. */
type TriangleCommand struct {
	Shader *metadata.Shader
	XY     [3][2]float32
	ST     [3][2]float32
}

func (*TriangleCommand) Kind() Kind { return KindTriangle }

/**
 * @brief Draws one view: its sorted surface list, then the lit pass of each
 * dynamic light.
 */
type DrawSurfsCommand struct {
	DrawSurfs []metadata.DrawSurf
	Dlights   []*metadata.Dlight
	Entities  []*metadata.SceneEntity
	RefDef    metadata.RefDef
	ViewParms metadata.ViewParms
	Fogs      []metadata.Fog
}

func (*DrawSurfsCommand) Kind() Kind { return KindDrawSurfs }

/** @brief Starts a frame. */
type DrawBufferCommand struct {
	Width, Height int
	/** @brief Frame time in milliseconds, used to animate 2D shaders. */
	Time int
}

func (*DrawBufferCommand) Kind() Kind { return KindDrawBuffer }

/** @brief Ends a frame and presents it. */
type SwapBuffersCommand struct{}

func (*SwapBuffersCommand) Kind() Kind { return KindSwapBuffers }

/** @brief Reads back the framebuffer and writes it to disk. */
type ScreenshotCommand struct {
	X, Y          int
	Width, Height int
	FileName      string
	Format        string
}

func (*ScreenshotCommand) Kind() Kind { return KindScreenshot }

/** @brief Streams the framebuffer to a capture sink. */
type VideoFrameCommand struct {
	Width, Height int
	Sink          io.Writer
}

func (*VideoFrameCommand) Kind() Kind { return KindVideoFrame }

/** @brief Clears the depth buffer between 3D views. */
type ClearDepthCommand struct{}

func (*ClearDepthCommand) Kind() Kind { return KindClearDepth }
