package tess

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// Edges of a quad, used to find the two short edges of an autosprite2 strip.
var edgeVerts = [6][2]int{{0, 1}, {0, 2}, {0, 3}, {1, 2}, {1, 3}, {2, 3}}

// DeformVertexes applies the shader's deforms, in order, to the whole batch.
// It runs once per batch, before any stage reads positions or normals.
func (b *Buffer) DeformVertexes() {
	for i := range b.Shader.Deforms {
		ds := &b.Shader.Deforms[i]
		switch ds.Deformation {
		case metadata.DeformNone:
		case metadata.DeformNormals:
			b.calcDeformNormals(ds)
		case metadata.DeformWave:
			b.calcDeformVertexes(ds)
		case metadata.DeformBulge:
			b.calcBulgeVertexes(ds)
		case metadata.DeformMove:
			b.calcMoveVertexes(ds)
		case metadata.DeformAutosprite:
			b.autospriteDeform()
		case metadata.DeformAutosprite2:
			b.autosprite2Deform()
		case metadata.DeformText0, metadata.DeformText1, metadata.DeformText2, metadata.DeformText3,
			metadata.DeformText4, metadata.DeformText5, metadata.DeformText6, metadata.DeformText7:
			b.deformText(b.Ctx.Text[ds.Deformation-metadata.DeformText0])
		}
	}
}

func (b *Buffer) calcDeformVertexes(ds *metadata.DeformStage) {
	wf := &ds.DeformationWave
	if wf.Frequency == 0 {
		scale := EvalWaveForm(wf, b.ShaderTime)
		for i := 0; i < b.NumVertexes; i++ {
			b.XYZ[i] = math.MA(b.XYZ[i], scale, b.Normal[i])
		}
		return
	}

	table := TableForFunc(wf.Func)
	for i := 0; i < b.NumVertexes; i++ {
		xyz := b.XYZ[i]
		off := (xyz[0] + xyz[1] + xyz[2]) * ds.DeformationSpread
		scale := WaveValue(table, wf.Base, wf.Amplitude, wf.Phase+off, wf.Frequency, b.ShaderTime)
		b.XYZ[i] = math.MA(xyz, scale, b.Normal[i])
	}
}

func (b *Buffer) calcDeformNormals(ds *metadata.DeformStage) {
	const scale = 0.98
	t := b.ShaderTime * float64(ds.DeformationWave.Frequency)
	amp := ds.DeformationWave.Amplitude
	for i := 0; i < b.NumVertexes; i++ {
		xyz := b.XYZ[i]
		n := b.Normal[i]
		n[0] += amp * NoiseGet4f(xyz[0]*scale, xyz[1]*scale, xyz[2]*scale, t)
		n[1] += amp * NoiseGet4f(100+xyz[0]*scale, xyz[1]*scale, xyz[2]*scale, t)
		n[2] += amp * NoiseGet4f(200+xyz[0]*scale, xyz[1]*scale, xyz[2]*scale, t)
		b.Normal[i] = math.NormalizeFast(n)
	}
}

func (b *Buffer) calcBulgeVertexes(ds *metadata.DeformStage) {
	now := float64(b.Ctx.Time) * float64(ds.BulgeSpeed) * 0.001
	for i := 0; i < b.NumVertexes; i++ {
		off := int64(float64(FUNCTABLE_SIZE/(math.K_PI*2)) * (float64(b.TexCoords[0][i][0]*ds.BulgeWidth) + now))
		scale := SinTable[off&FUNCTABLE_MASK] * ds.BulgeHeight
		b.XYZ[i] = math.MA(b.XYZ[i], scale, b.Normal[i])
	}
}

func (b *Buffer) calcMoveVertexes(ds *metadata.DeformStage) {
	wf := &ds.DeformationWave
	scale := WaveValue(TableForFunc(wf.Func), wf.Base, wf.Amplitude, wf.Phase, wf.Frequency, b.ShaderTime)
	offset := ds.MoveVector.Mul(scale)
	for i := 0; i < b.NumVertexes; i++ {
		b.XYZ[i] = b.XYZ[i].Add(offset)
	}
}

// viewVector returns a view axis in the space of the current entity.
func (b *Buffer) viewVector(axis int) math.Vec3 {
	v := b.Ctx.View.Or.Axis[axis]
	if b.Ctx.IsWorldEntity {
		return v
	}
	return math.WorldVectorToLocal(&b.Ctx.Or.Axis, v)
}

// autospriteDeform rebuilds every quad as a camera facing billboard of the
// same area.
func (b *Buffer) autospriteDeform() {
	if b.NumVertexes&3 != 0 {
		core.LogWarn("autosprite shader '%s' had odd vertex count", b.Shader.Name)
	}
	if b.NumIndexes != (b.NumVertexes>>2)*6 {
		core.LogWarn("autosprite shader '%s' had odd index count", b.Shader.Name)
	}

	oldVerts := b.NumVertexes &^ 3
	xyz := make([]math.Vec3, oldVerts)
	copy(xyz, b.XYZ[:oldVerts])
	colors := make([][4]uint8, oldVerts)
	copy(colors, b.VertexColors[:oldVerts])

	b.NumVertexes = 0
	b.NumIndexes = 0

	leftDir := b.viewVector(1)
	upDir := b.viewVector(2)

	for i := 0; i < oldVerts; i += 4 {
		// find the midpoint
		mid := xyz[i].Add(xyz[i+1]).Add(xyz[i+2]).Add(xyz[i+3]).Mul(0.25)
		radius := xyz[i].Sub(mid).Len() * 0.707 // / sqrt(2)

		left := leftDir.Mul(radius)
		up := upDir.Mul(radius)
		if b.Ctx.View.IsMirror {
			left = left.Mul(-1)
		}

		// compensate for scale in the axes if necessary
		if b.Ctx.Entity != nil && b.Ctx.Entity.E.NonNormalizedAxes {
			axisLength := b.Ctx.Entity.E.Axis[0].Len()
			if axisLength != 0 {
				axisLength = 1 / axisLength
			}
			left = left.Mul(axisLength)
			up = up.Mul(axisLength)
		}

		b.addQuadStampExt(mid, left, up, colors[i], 0, 0, 1, 1)
	}
}

// autosprite2Deform pivots each quad around its long axis so it faces the
// viewer while keeping its length.
func (b *Buffer) autosprite2Deform() {
	if b.NumVertexes&3 != 0 {
		core.LogWarn("autosprite2 shader '%s' had odd vertex count", b.Shader.Name)
	}
	if b.NumIndexes != (b.NumVertexes>>2)*6 {
		core.LogWarn("autosprite2 shader '%s' had odd index count", b.Shader.Name)
	}

	forward := b.viewVector(0)

	for i, indexes := 0, 0; i+3 < b.NumVertexes; i, indexes = i+4, indexes+6 {
		xyz := b.XYZ[i : i+4]

		// identify the two shortest edges
		var nums [2]int
		lengths := [2]float32{999999, 999999}
		for j := 0; j < 6; j++ {
			temp := xyz[edgeVerts[j][0]].Sub(xyz[edgeVerts[j][1]])
			l := temp.Dot(temp)
			if l < lengths[0] {
				nums[1] = nums[0]
				lengths[1] = lengths[0]
				nums[0] = j
				lengths[0] = l
			} else if l < lengths[1] {
				nums[1] = j
				lengths[1] = l
			}
		}

		var mid [2]math.Vec3
		for j := 0; j < 2; j++ {
			v1 := xyz[edgeVerts[nums[j]][0]]
			v2 := xyz[edgeVerts[nums[j]][1]]
			mid[j] = v1.Add(v2).Mul(0.5)
		}

		// find the vector of the major axis
		major := mid[1].Sub(mid[0])

		// cross this with the view direction to get minor axis
		minor := major.Cross(forward)
		math.Normalize(&minor)

		// re-project the points
		for j := 0; j < 2; j++ {
			e0 := edgeVerts[nums[j]][0]
			e1 := edgeVerts[nums[j]][1]
			l := 0.5 * math32.Sqrt(lengths[j])

			// we need to see which direction this edge
			// is used to determine direction of projection
			k := 0
			for ; k < 5 && indexes+k+1 < b.NumIndexes; k++ {
				if int(b.Indexes[indexes+k]) == i+e0 && int(b.Indexes[indexes+k+1]) == i+e1 {
					break
				}
			}
			if k == 5 || indexes+k+1 >= b.NumIndexes {
				xyz[e0] = math.MA(mid[j], l, minor)
				xyz[e1] = math.MA(mid[j], -l, minor)
			} else {
				xyz[e0] = math.MA(mid[j], -l, minor)
				xyz[e1] = math.MA(mid[j], l, minor)
			}
		}
	}
}

// deformText replaces the batch with one quad per character of text, laid
// out over the first quad of the surface using a 16x16 glyph grid.
func (b *Buffer) deformText(text string) {
	if b.NumVertexes < 4 {
		return
	}
	height := math.Vec3{0, 0, -1}
	width := b.Normal[0].Cross(height)

	// find the midpoint of the box
	var mid math.Vec3
	bottom := float32(999999)
	top := float32(-999999)
	for i := 0; i < 4; i++ {
		mid = mid.Add(b.XYZ[i])
		bottom = math32.Min(bottom, b.XYZ[i][2])
		top = math32.Max(top, b.XYZ[i][2])
	}
	origin := mid.Mul(0.25)

	// determine the individual character size
	height = math.Vec3{0, 0, (top - bottom) * 0.5}
	width = width.Mul(height[2] * -0.75)

	// determine the starting position
	origin = math.MA(origin, float32(len(text)-1), width)

	b.NumIndexes = 0
	b.NumVertexes = 0

	white := [4]uint8{255, 255, 255, 255}
	for i := 0; i < len(text); i++ {
		ch := int(text[i])
		if ch != ' ' {
			row := ch >> 4
			col := ch & 15
			frow := float32(row) * 0.0625
			fcol := float32(col) * 0.0625
			const size = 0.0625
			b.addQuadStampExt(origin, width, height, white, fcol, frow, fcol+size, frow+size)
		}
		origin = math.MA(origin, -2, width)
	}
}

// addQuadStampExt appends a quad centered on origin. The caller guarantees
// room for 4 vertexes and 6 indexes.
func (b *Buffer) addQuadStampExt(origin, left, up math.Vec3, color [4]uint8, s1, t1, s2, t2 float32) {
	if b.NumVertexes+4 > b.maxVertexes || b.NumIndexes+6 > b.maxIndexes {
		return
	}
	ndx := uint32(b.NumVertexes)

	// triangle indexes for a simple quad
	idx := b.Indexes[b.NumIndexes:]
	idx[0], idx[1], idx[2] = ndx, ndx+1, ndx+3
	idx[3], idx[4], idx[5] = ndx+3, ndx+1, ndx+2

	n := b.NumVertexes
	b.XYZ[n] = origin.Add(left).Add(up)
	b.XYZ[n+1] = origin.Sub(left).Add(up)
	b.XYZ[n+2] = origin.Sub(left).Sub(up)
	b.XYZ[n+3] = origin.Add(left).Sub(up)

	// constant normal all the way around
	normal := b.Ctx.View.Or.Axis[0].Mul(-1)
	sts := [4][2]float32{{s1, t1}, {s2, t1}, {s2, t2}, {s1, t2}}
	for i := 0; i < 4; i++ {
		b.Normal[n+i] = normal
		b.TexCoords[0][n+i] = sts[i]
		b.TexCoords[1][n+i] = sts[i]
		b.VertexColors[n+i] = color
	}

	b.NumVertexes += 4
	b.NumIndexes += 6
}

// AddQuadStamp appends a quad with full texture coordinates, flushing the
// batch first when it is full.
func (b *Buffer) AddQuadStamp(origin, left, up math.Vec3, color [4]uint8) error {
	return b.AddQuadStampExt(origin, left, up, color, 0, 0, 1, 1)
}

// AddQuadStampExt appends a quad with explicit texture coordinates, flushing
// the batch first when it is full.
func (b *Buffer) AddQuadStampExt(origin, left, up math.Vec3, color [4]uint8, s1, t1, s2, t2 float32) error {
	if err := b.CheckOverflow(4, 6); err != nil {
		return err
	}
	b.addQuadStampExt(origin, left, up, color, s1, t1, s2, t2)
	return nil
}
