package tess

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Fixed light position used by the specular alpha generator.
var specularLightOrigin = math.Vec3{-960, 1980, 96}

// ComputeColors fills the stage color array for the current batch: the color
// generator first, then the alpha generator, then fog attenuation.
func (b *Buffer) ComputeColors(stage *metadata.ShaderStage) {
	n := b.NumVertexes
	colors := b.Colors[:n]
	settings := &b.Ctx.Settings

	switch stage.RGBGen {
	case metadata.CGenIdentity:
		fill(colors, [4]uint8{255, 255, 255, 255})
	case metadata.CGenLightingDiffuse:
		b.calcDiffuseColor(colors)
	case metadata.CGenExactVertex:
		copy(colors, b.VertexColors[:n])
	case metadata.CGenConst:
		fill(colors, stage.ConstantColor)
	case metadata.CGenVertex:
		if settings.IdentityLight == 1 {
			copy(colors, b.VertexColors[:n])
		} else {
			for i := range colors {
				vc := b.VertexColors[i]
				colors[i] = [4]uint8{
					uint8(float32(vc[0]) * settings.IdentityLight),
					uint8(float32(vc[1]) * settings.IdentityLight),
					uint8(float32(vc[2]) * settings.IdentityLight),
					vc[3],
				}
			}
		}
	case metadata.CGenOneMinusVertex:
		for i := range colors {
			vc := b.VertexColors[i]
			if settings.IdentityLight == 1 {
				colors[i] = [4]uint8{255 - vc[0], 255 - vc[1], 255 - vc[2], colors[i][3]}
			} else {
				colors[i] = [4]uint8{
					uint8(float32(255-vc[0]) * settings.IdentityLight),
					uint8(float32(255-vc[1]) * settings.IdentityLight),
					uint8(float32(255-vc[2]) * settings.IdentityLight),
					colors[i][3],
				}
			}
		}
	case metadata.CGenFog:
		fill(colors, b.fog().ColorInt)
	case metadata.CGenWaveform:
		b.calcWaveColor(&stage.RGBWave, colors)
	case metadata.CGenEntity:
		if b.Ctx.Entity != nil {
			fill(colors, b.Ctx.Entity.E.ShaderRGBA)
		}
	case metadata.CGenOneMinusEntity:
		if b.Ctx.Entity != nil {
			c := b.Ctx.Entity.E.ShaderRGBA
			fill(colors, [4]uint8{255 - c[0], 255 - c[1], 255 - c[2], 255 - c[3]})
		}
	case metadata.CGenDebugAlpha:
		for i := range colors {
			a := b.VertexColors[i][3]
			colors[i] = [4]uint8{a, a, a, a}
		}
	default:
		l := settings.IdentityLightByte
		fill(colors, [4]uint8{l, l, l, l})
	}

	switch stage.AlphaGen {
	case metadata.AGenSkip:
	case metadata.AGenIdentity:
		if stage.RGBGen != metadata.CGenIdentity {
			if stage.RGBGen != metadata.CGenVertex || settings.IdentityLight != 1 {
				setAlpha(colors, 255)
			}
		}
	case metadata.AGenConst:
		if stage.RGBGen != metadata.CGenConst {
			setAlpha(colors, stage.ConstantColor[3])
		}
	case metadata.AGenWaveform:
		setAlpha(colors, uint8(255*EvalWaveFormClamped(&stage.AlphaWave, b.ShaderTime)))
	case metadata.AGenLightingSpecular:
		b.calcSpecularAlpha(colors)
	case metadata.AGenEntity:
		if b.Ctx.Entity != nil {
			setAlpha(colors, b.Ctx.Entity.E.ShaderRGBA[3])
		}
	case metadata.AGenOneMinusEntity:
		if b.Ctx.Entity != nil {
			setAlpha(colors, 255-b.Ctx.Entity.E.ShaderRGBA[3])
		}
	case metadata.AGenVertex:
		if stage.RGBGen != metadata.CGenVertex {
			for i := range colors {
				colors[i][3] = b.VertexColors[i][3]
			}
		}
	case metadata.AGenOneMinusVertex:
		for i := range colors {
			colors[i][3] = 255 - b.VertexColors[i][3]
		}
	case metadata.AGenPortal:
		b.calcPortalAlpha(colors)
	}

	// fog adjustment for colors to fade out as fog increases
	if b.FogNum != 0 && stage.AdjustColorsForFog != metadata.ACFFNone {
		b.modulateByFog(colors, stage.AdjustColorsForFog)
	}
}

func fill(colors [][4]uint8, c [4]uint8) {
	for i := range colors {
		colors[i] = c
	}
}

func setAlpha(colors [][4]uint8, a uint8) {
	for i := range colors {
		colors[i][3] = a
	}
}

func (b *Buffer) calcWaveColor(wf *metadata.WaveForm, colors [][4]uint8) {
	var glow float32
	if wf.Func == metadata.GenFuncNoise {
		glow = wf.Base + NoiseGet4f(0, 0, 0, (b.ShaderTime+float64(wf.Phase))*float64(wf.Frequency))*wf.Amplitude
	} else {
		glow = EvalWaveForm(wf, b.ShaderTime) * b.Ctx.Settings.IdentityLight
	}
	glow = math.Clamp(glow, 0, 1)
	v := uint8(255 * glow)
	fill(colors, [4]uint8{v, v, v, 255})
}

// calcDiffuseColor applies the entity's light grid lighting per vertex.
// Vertices facing away from the light get the precomputed ambient color.
func (b *Buffer) calcDiffuseColor(colors [][4]uint8) {
	ent := b.Ctx.Entity
	if ent == nil {
		fill(colors, [4]uint8{255, 255, 255, 255})
		return
	}
	grey := b.Ctx.Settings.Greyscale
	for i := range colors {
		incoming := b.Normal[i].Dot(ent.LightDir)
		if incoming <= 0 {
			colors[i] = ent.AmbientLightInt
			continue
		}
		r := math32.Min(ent.AmbientLight[0]+incoming*ent.DirectedLight[0], 255)
		g := math32.Min(ent.AmbientLight[1]+incoming*ent.DirectedLight[1], 255)
		bl := math32.Min(ent.AmbientLight[2]+incoming*ent.DirectedLight[2], 255)
		if grey > 0 {
			luma := Luminance(r, g, bl)
			r = math.Lerp(r, luma, grey)
			g = math.Lerp(g, luma, grey)
			bl = math.Lerp(bl, luma, grey)
		}
		colors[i] = [4]uint8{uint8(r), uint8(g), uint8(bl), 255}
	}
}

// Luminance is the greyscale weight of an rgb color.
func Luminance(r, g, b float32) float32 {
	return r*0.299 + g*0.587 + b*0.114
}

func (b *Buffer) calcSpecularAlpha(colors [][4]uint8) {
	viewOrigin := b.Ctx.Or.ViewOrigin
	for i := range colors {
		v := b.XYZ[i]
		normal := b.Normal[i]

		lightDir := math.NormalizeFast(specularLightOrigin.Sub(v))
		d := normal.Dot(lightDir)
		reflected := normal.Mul(2 * d).Sub(lightDir)

		viewer := viewOrigin.Sub(v)
		length := viewer.Len()
		if length == 0 {
			colors[i][3] = 0
			continue
		}
		l := reflected.Dot(viewer) / length
		if l < 0 {
			colors[i][3] = 0
			continue
		}
		l = l * l
		l = l * l
		colors[i][3] = math.ClampByte(l * 255)
	}
}

func (b *Buffer) calcPortalAlpha(colors [][4]uint8) {
	if b.Ctx.View == nil || b.Shader.PortalRange == 0 {
		setAlpha(colors, 255)
		return
	}
	origin := b.Ctx.View.Or.Origin
	for i := range colors {
		l := b.XYZ[i].Sub(origin).Len() / b.Shader.PortalRange
		colors[i][3] = uint8(math.Clamp(l, 0, 1) * 255)
	}
}

func (b *Buffer) modulateByFog(colors [][4]uint8, mode metadata.AdjustColorsForFog) {
	st := b.fogST[:len(colors)]
	b.CalcFogTexCoords(st)
	for i := range colors {
		f := 1 - FogFactor(st[i][0], st[i][1])
		switch mode {
		case metadata.ACFFModulateRGB:
			colors[i][0] = uint8(float32(colors[i][0]) * f)
			colors[i][1] = uint8(float32(colors[i][1]) * f)
			colors[i][2] = uint8(float32(colors[i][2]) * f)
		case metadata.ACFFModulateAlpha:
			colors[i][3] = uint8(float32(colors[i][3]) * f)
		case metadata.ACFFModulateRGBA:
			for c := 0; c < 4; c++ {
				colors[i][c] = uint8(float32(colors[i][c]) * f)
			}
		}
	}
}
