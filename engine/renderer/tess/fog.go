package tess

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

var noFog metadata.Fog

func (b *Buffer) fog() *metadata.Fog {
	if b.FogNum <= 0 || b.FogNum >= len(b.Ctx.Fogs) {
		return &noFog
	}
	return &b.Ctx.Fogs[b.FogNum]
}

// CalcFogTexCoords computes fog texture coordinates: s is the distance through
// the fog along the view axis and t the depth below the fog surface. When the
// eye is outside the volume, t is cut at the fog plane.
func (b *Buffer) CalcFogTexCoords(st [][2]float32) {
	fog := b.fog()
	or := &b.Ctx.Or
	view := b.Ctx.View

	// all fogging distance is based on world Z units
	local := or.Origin.Sub(view.Or.Origin)
	m := or.ModelMatrix
	distance := math.Vec4{-m[2], -m[6], -m[10], local.Dot(view.Or.Axis[0])}
	for i := range distance {
		distance[i] *= fog.TCScale
	}

	var depth math.Vec4
	var eyeT float32
	if fog.HasSurface {
		surf := fog.Surface.Vec3()
		depth[0] = surf.Dot(or.Axis[0])
		depth[1] = surf.Dot(or.Axis[1])
		depth[2] = surf.Dot(or.Axis[2])
		depth[3] = -fog.Surface[3] + or.Origin.Dot(surf)
		eyeT = or.ViewOrigin.Dot(depth.Vec3()) + depth[3]
	} else {
		// non-surface fog always has eye inside
		eyeT = 1
	}

	// see if the viewpoint is outside
	// this is needed for clipping distance even for constant fog
	eyeOutside := eyeT < 0

	distance[3] += 1.0 / 512

	dv := distance.Vec3()
	tv := depth.Vec3()
	for i := range st {
		s := b.XYZ[i].Dot(dv) + distance[3]
		t := b.XYZ[i].Dot(tv) + depth[3]

		// partially clipped fogs use the T axis
		if eyeOutside {
			if t < 1 {
				// point is outside, so no fogging
				t = 1.0 / 32
			} else {
				// cut the distance at the fog plane
				t = 1.0/32 + 30.0/32*t/(t-eyeT)
			}
		} else {
			if t < 0 {
				t = 1.0 / 32
			} else {
				t = 31.0 / 32
			}
		}
		st[i] = [2]float32{s, t}
	}
}

// fogPass blends the fog color over the batch using the fog falloff texture.
func (b *Buffer) fogPass() {
	n := b.NumVertexes
	fill(b.Colors[:n], b.fog().ColorInt)
	b.CalcFogTexCoords(b.STs[0][:n])

	bits := metadata.SrcBlendSrcAlpha | metadata.DstBlendOneMinusSrcAlpha
	if b.Shader.FogPass == metadata.FogPassEqual {
		bits |= metadata.DepthFuncEqual
	}
	state := &device.State{
		Bits:     bits,
		Cull:     b.Shader.CullType,
		Mirror:   b.Ctx.View.IsMirror,
		Textures: [2]uint32{b.imageHandle(b.Ctx.Images.Fog), 0},
	}
	b.draw(device.PipelineGeneric, state, b.Indexes[:b.NumIndexes])
}
