package tess

import (
	stdmath "math"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// ComputeTexCoords fills the stage texture coordinates of every bundle: the
// generator first, then each tcMod in declaration order, then the lightmap
// atlas correction. Coordinates are always copied, never aliased.
func (b *Buffer) ComputeTexCoords(stage *metadata.ShaderStage) {
	for i := range stage.Bundle {
		bundle := &stage.Bundle[i]
		if i > 0 && bundle.Images[0] == nil && !bundle.IsVideoMap {
			break
		}
		b.computeBundleTexCoords(bundle, b.STs[i][:b.NumVertexes])
	}
}

func (b *Buffer) computeBundleTexCoords(bundle *metadata.TextureBundle, st [][2]float32) {
	switch bundle.TCGen {
	case metadata.TCGenIdentity:
		for i := range st {
			st[i] = [2]float32{}
		}
	case metadata.TCGenTexture:
		copy(st, b.TexCoords[0][:len(st)])
	case metadata.TCGenLightmap:
		copy(st, b.TexCoords[1][:len(st)])
	case metadata.TCGenVector:
		for i := range st {
			st[i][0] = b.XYZ[i].Dot(bundle.TCGenVectors[0])
			st[i][1] = b.XYZ[i].Dot(bundle.TCGenVectors[1])
		}
	case metadata.TCGenFog:
		b.CalcFogTexCoords(st)
	case metadata.TCGenEnvironmentMapped:
		b.calcEnvironmentTexCoords(st)
	default:
		return
	}

	for _, tm := range bundle.TexMods {
		switch tm.Type {
		case metadata.TModNone:
		case metadata.TModTurbulent:
			b.calcTurbulentTexCoords(&tm.Wave, st)
		case metadata.TModEntityTranslate:
			if b.Ctx.Entity != nil {
				off := b.Ctx.Entity.E.ShaderTexCoord
				scrollTexCoords(st, wrap(float64(off[0])), wrap(float64(off[1])))
			}
		case metadata.TModScroll:
			scrollTexCoords(st, ScrollOffset(tm.Scroll[0], b.ShaderTime), ScrollOffset(tm.Scroll[1], b.ShaderTime))
		case metadata.TModScale:
			for i := range st {
				st[i][0] *= tm.Scale[0]
				st[i][1] *= tm.Scale[1]
			}
		case metadata.TModStretch:
			b.calcStretchTexCoords(&tm.Wave, st)
		case metadata.TModTransform:
			transformTexCoords(st, &tm.Matrix, tm.Translate)
		case metadata.TModRotate:
			b.calcRotateTexCoords(tm.RotateSpeed, st)
		}
	}

	if bundle.IsLightmap && b.Shader != nil && b.Shader.HasLightmapScale {
		sb := b.Shader.LightmapScaleBias
		for i := range st {
			st[i][0] = st[i][0]*sb[0] + sb[2]
			st[i][1] = st[i][1]*sb[1] + sb[3]
		}
	}
}

// wrap returns the fractional part of v, always in [0,1).
func wrap(v float64) float32 {
	f := v - stdmath.Floor(v)
	r := float32(f)
	if r >= 1 {
		// rounding to float32 can land exactly on 1
		r = 0
	}
	return r
}

// ScrollOffset returns the scroll offset for speed at time, wrapped into [0,1)
// so coordinates do not grow without bound over long uptimes.
func ScrollOffset(speed float32, time float64) float32 {
	return wrap(float64(speed) * time)
}

func scrollTexCoords(st [][2]float32, s, t float32) {
	for i := range st {
		st[i][0] += s
		st[i][1] += t
	}
}

func transformTexCoords(st [][2]float32, m *[2][2]float32, translate [2]float32) {
	for i := range st {
		s, t := st[i][0], st[i][1]
		st[i][0] = s*m[0][0] + t*m[1][0] + translate[0]
		st[i][1] = s*m[0][1] + t*m[1][1] + translate[1]
	}
}

func (b *Buffer) calcTurbulentTexCoords(wf *metadata.WaveForm, st [][2]float32) {
	now := float64(wf.Phase) + b.ShaderTime*float64(wf.Frequency)
	for i := range st {
		xyz := b.XYZ[i]
		s := int64((float64((xyz[0]+xyz[2])*(1.0/128)*0.125) + now) * FUNCTABLE_SIZE)
		t := int64((float64(xyz[1]*(1.0/128)*0.125) + now) * FUNCTABLE_SIZE)
		st[i][0] += SinTable[s&FUNCTABLE_MASK] * wf.Amplitude
		st[i][1] += SinTable[t&FUNCTABLE_MASK] * wf.Amplitude
	}
}

func (b *Buffer) calcStretchTexCoords(wf *metadata.WaveForm, st [][2]float32) {
	v := EvalWaveForm(wf, b.ShaderTime)
	if v == 0 {
		return
	}
	p := 1 / v
	m := [2][2]float32{{p, 0}, {0, p}}
	transformTexCoords(st, &m, [2]float32{0.5 - 0.5*p, 0.5 - 0.5*p})
}

func (b *Buffer) calcRotateTexCoords(degsPerSecond float32, st [][2]float32) {
	degs := -float64(degsPerSecond) * b.ShaderTime
	index := int64(degs * (FUNCTABLE_SIZE / 360.0))
	sinValue := SinTable[index&FUNCTABLE_MASK]
	cosValue := SinTable[(index+FUNCTABLE_SIZE/4)&FUNCTABLE_MASK]

	m := [2][2]float32{{cosValue, sinValue}, {-sinValue, cosValue}}
	translate := [2]float32{
		0.5 - 0.5*cosValue + 0.5*sinValue,
		0.5 - 0.5*sinValue - 0.5*cosValue,
	}
	transformTexCoords(st, &m, translate)
}

func (b *Buffer) calcEnvironmentTexCoords(st [][2]float32) {
	viewOrigin := b.Ctx.Or.ViewOrigin
	for i := range st {
		viewer := math.NormalizeFast(viewOrigin.Sub(b.XYZ[i]))
		normal := b.Normal[i]
		d := normal.Dot(viewer)
		reflected := normal.Mul(2 * d).Sub(viewer)
		st[i][0] = 0.5 + reflected[1]*0.5
		st[i][1] = 0.5 - reflected[2]*0.5
	}
}
