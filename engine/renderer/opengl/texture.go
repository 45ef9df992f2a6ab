package opengl

import (
	"fmt"

	"github.com/go-gl/gl/v4.1-core/gl"

	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func checkPixels(tex *metadata.Texture, pixels []byte) error {
	want := int(tex.Width) * int(tex.Height) * 4
	if tex.Width == 0 || tex.Height == 0 || len(pixels) < want {
		return fmt.Errorf("texture '%s': need %d bytes for %dx%d, got %d", tex.Name, want, tex.Width, tex.Height, len(pixels))
	}
	return nil
}

// createTexture uploads the base level and sets sampling from the texture flags.
func (d *Device) createTexture(tex *metadata.Texture, pixels []byte, mipmap bool) error {
	if err := checkPixels(tex, pixels); err != nil {
		return err
	}
	if tex.Handle != 0 {
		d.DestroyTexture(tex)
	}

	var id uint32
	gl.GenTextures(1, &id)
	gl.BindTexture(gl.TEXTURE_2D, id)

	wrap := int32(gl.REPEAT)
	if tex.Repeat == metadata.TextureRepeatClampToEdge || tex.HasFlag(metadata.TextureFlagClampToEdge) {
		wrap = gl.CLAMP_TO_EDGE
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_S, wrap)
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_WRAP_T, wrap)

	gl.TexImage2D(gl.TEXTURE_2D, 0, gl.RGBA8, int32(tex.Width), int32(tex.Height), 0, gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	if mipmap {
		gl.GenerateMipmap(gl.TEXTURE_2D)
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR_MIPMAP_NEAREST)
	} else {
		gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MIN_FILTER, gl.LINEAR)
	}
	gl.TexParameteri(gl.TEXTURE_2D, gl.TEXTURE_MAG_FILTER, gl.LINEAR)

	// the bound unit no longer matches the latched state
	d.stateValid = false
	tex.Handle = id
	return d.checkError("CreateTexture " + tex.Name)
}

func (d *Device) CreateTexture(tex *metadata.Texture, pixels []byte) error {
	return d.createTexture(tex, pixels, tex.HasFlag(metadata.TextureFlagMipmap))
}

func (d *Device) CreateTextureEx(tex *metadata.Texture, pixels []byte) error {
	return d.createTexture(tex, pixels, true)
}

func (d *Device) UpdateTexture(tex *metadata.Texture, x, y, width, height int, pixels []byte) error {
	if tex.Handle == 0 {
		return fmt.Errorf("texture '%s' was not created", tex.Name)
	}
	if len(pixels) < width*height*4 {
		return fmt.Errorf("texture '%s': need %d bytes for a %dx%d update, got %d", tex.Name, width*height*4, width, height, len(pixels))
	}
	gl.BindTexture(gl.TEXTURE_2D, tex.Handle)
	gl.TexSubImage2D(gl.TEXTURE_2D, 0, int32(x), int32(y), int32(width), int32(height), gl.RGBA, gl.UNSIGNED_BYTE, gl.Ptr(pixels))
	if tex.HasFlag(metadata.TextureFlagMipmap) {
		gl.GenerateMipmap(gl.TEXTURE_2D)
	}
	d.stateValid = false
	return d.checkError("UpdateTexture " + tex.Name)
}

func (d *Device) DestroyTexture(tex *metadata.Texture) {
	if tex.Handle == 0 {
		return
	}
	gl.DeleteTextures(1, &tex.Handle)
	tex.Handle = 0
	d.stateValid = false
}
