package renderer

import (
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/commands"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// SetColor sets the modulation of following 2D draws; nil resets to white.
func (r *Renderer) SetColor(rgba *[4]float32) {
	if !r.registered {
		return
	}
	cmd := &commands.SetColorCommand{Color: [4]float32{1, 1, 1, 1}}
	if rgba != nil {
		cmd.Color = *rgba
	}
	r.frame.queue.Append(cmd)
}

// DrawStretchPic draws a screen rectangle with texture coordinates s1,t1 to
// s2,t2 of the shader's image.
func (r *Renderer) DrawStretchPic(x, y, w, h, s1, t1, s2, t2 float32, hShader int) {
	if !r.registered {
		return
	}
	r.stretchPic(r.systems.ShaderSystem.GetShaderByHandle(hShader), x, y, w, h, s1, t1, s2, t2)
}

func (r *Renderer) stretchPic(shader *metadata.Shader, x, y, w, h, s1, t1, s2, t2 float32) {
	r.frame.queue.Append(&commands.StretchPicCommand{
		Shader: shader,
		X:      x, Y: y, W: w, H: h,
		S1: s1, T1: t1, S2: s2, T2: t2,
	})
}

// DrawTriangle draws a textured screen triangle.
func (r *Renderer) DrawTriangle(xy, st [3][2]float32, hShader int) {
	if !r.registered {
		return
	}
	r.frame.queue.Append(&commands.TriangleCommand{
		Shader: r.systems.ShaderSystem.GetShaderByHandle(hShader),
		XY:     xy,
		ST:     st,
	})
}

/**
 * @brief Draws text with a registered font. x,y is the left end of the
 * baseline; scale multiplies the font's own glyph scale.
 */
func (r *Renderer) DrawString(font *metadata.FontInfo, x, y, scale float32, text string) {
	if !r.registered || font == nil {
		return
	}
	scale *= font.GlyphScale
	for i := 0; i < len(text); i++ {
		g := &font.Glyphs[text[i]]
		if g.Glyph != nil && g.ImageWidth > 0 && g.ImageHeight > 0 {
			r.stretchPic(g.Glyph,
				x+float32(g.Pitch)*scale, y-float32(g.Top)*scale,
				float32(g.ImageWidth)*scale, float32(g.ImageHeight)*scale,
				g.S, g.T, g.S2, g.T2)
		}
		x += float32(g.XSkip) * scale
		if i+1 < len(text) && g.Kerning != nil {
			x += float32(g.Kerning[rune(text[i+1])]) * scale
		}
	}
}

/**
 * @brief Requests a screenshot of the current frame. A request that does
 * not fit in the command queue is retried at the end of the next frame in
 * the reserved slot.
 * @param name File name; a unique name is generated when empty.
 * @param format png, bmp or tiff; empty uses the configured format.
 */
func (r *Renderer) TakeScreenshot(name, format string) string {
	if format == "" {
		format = r.config.ScreenshotFormat
	}
	format = strings.ToLower(format)
	if name == "" {
		name = fmt.Sprintf("shot-%s.%s", uuid.NewString()[:8], format)
	}
	if filepath.Ext(name) == "" {
		name += "." + format
	}
	if !filepath.IsAbs(name) && r.config.ScreenshotDir != "" {
		name = filepath.Join(r.config.ScreenshotDir, name)
	}

	cmd := &commands.ScreenshotCommand{
		Width:    r.width,
		Height:   r.height,
		FileName: name,
		Format:   format,
	}
	if !r.frame.queue.Append(cmd) {
		core.LogDebug("screenshot '%s' delayed to the next frame", name)
		r.pendingShot = cmd
		r.pendingShotFrame = r.frameCount
	}
	return name
}

// TakeVideoFrame streams the lower left width x height region of the
// framebuffer to sink as raw RGBA rows, top row first.
func (r *Renderer) TakeVideoFrame(width, height int, sink io.Writer) {
	if !r.registered || sink == nil {
		return
	}
	r.frame.queue.Append(&commands.VideoFrameCommand{
		Width:  width,
		Height: height,
		Sink:   sink,
	})
}

// ClearDepth clears the depth buffer before the next scene, for views
// drawn on top of the world.
func (r *Renderer) ClearDepth() {
	if !r.registered {
		return
	}
	r.frame.queue.Append(&commands.ClearDepthCommand{})
}
