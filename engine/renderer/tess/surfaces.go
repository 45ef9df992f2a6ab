package tess

import (
	"fmt"

	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	railCoreWidth     = 6
	railWidth         = 16
	railSegmentLength = 32
	numBeamSegs       = 6
	flareSize         = 8
)

// TessellateSurface appends a surface's geometry to the current batch. The
// batch is flushed and restarted with the same shader whenever it is full.
func (b *Buffer) TessellateSurface(surf metadata.Surface) error {
	b.Counters.Surfaces++
	switch s := surf.(type) {
	case *metadata.SurfaceSkip:
		return nil
	case *metadata.SurfaceFace:
		return b.surfaceFace(s)
	case *metadata.SurfaceGrid:
		return b.surfaceGrid(s)
	case *metadata.SurfaceTriangles:
		return b.surfaceTriangles(s.Verts, s.Indexes)
	case *metadata.SurfacePoly:
		return b.surfacePolychain(s.Verts)
	case *metadata.SurfaceMD3:
		return b.surfaceMesh(s)
	case *metadata.SurfaceFlare:
		return b.surfaceFlare(s)
	case *metadata.SurfaceEntity:
		return b.surfaceEntity()
	case nil:
		return nil
	}
	return fmt.Errorf("unknown surface type %s", surf.SurfaceType())
}

func (b *Buffer) appendDrawVert(dv *metadata.DrawVert) {
	n := b.NumVertexes
	b.XYZ[n] = dv.XYZ
	b.Normal[n] = dv.Normal
	b.TexCoords[0][n] = dv.ST
	b.TexCoords[1][n] = dv.Lightmap
	b.VertexColors[n] = dv.Color
	b.NumVertexes++
}

func (b *Buffer) surfaceFace(s *metadata.SurfaceFace) error {
	if err := b.CheckOverflow(len(s.Verts), len(s.Indexes)); err != nil {
		return err
	}
	base := uint32(b.NumVertexes)
	for i, idx := range s.Indexes {
		b.Indexes[b.NumIndexes+i] = idx + base
	}
	b.NumIndexes += len(s.Indexes)

	for i := range s.Verts {
		b.appendDrawVert(&s.Verts[i])
		b.Normal[b.NumVertexes-1] = s.Plane.Normal
	}
	return nil
}

func (b *Buffer) surfaceTriangles(verts []metadata.DrawVert, indexes []uint32) error {
	if err := b.CheckOverflow(len(verts), len(indexes)); err != nil {
		return err
	}
	base := uint32(b.NumVertexes)
	for i, idx := range indexes {
		b.Indexes[b.NumIndexes+i] = idx + base
	}
	b.NumIndexes += len(indexes)
	for i := range verts {
		b.appendDrawVert(&verts[i])
	}
	return nil
}

func (b *Buffer) surfacePolychain(verts []metadata.PolyVert) error {
	if len(verts) < 3 {
		return nil
	}
	if err := b.CheckOverflow(len(verts), 3*(len(verts)-2)); err != nil {
		return err
	}

	// fan triangles into the tess array
	numv := uint32(b.NumVertexes)
	for _, v := range verts {
		n := b.NumVertexes
		b.XYZ[n] = v.XYZ
		b.Normal[n] = math.Vec3{}
		b.TexCoords[0][n] = v.ST
		b.TexCoords[1][n] = v.ST
		b.VertexColors[n] = v.Modulate
		b.NumVertexes++
	}

	// generate fan indexes into the tess array
	for i := uint32(0); i < uint32(len(verts)-2); i++ {
		b.Indexes[b.NumIndexes] = numv
		b.Indexes[b.NumIndexes+1] = numv + i + 1
		b.Indexes[b.NumIndexes+2] = numv + i + 2
		b.NumIndexes += 3
	}
	return nil
}

// surfaceMesh interpolates a keyframed mesh between the entity's old and
// current frames and appends it.
func (b *Buffer) surfaceMesh(s *metadata.SurfaceMD3) error {
	if s.NumVerts == 0 || s.NumFrames == 0 {
		return nil
	}
	e := &b.Ctx.Entity.E

	frame := clampFrame(e.Frame, s.NumFrames, e.RenderFX)
	oldFrame := clampFrame(e.OldFrame, s.NumFrames, e.RenderFX)
	backlerp := e.Backlerp
	if frame == oldFrame {
		backlerp = 0
	}

	if err := b.CheckOverflow(s.NumVerts, len(s.Indexes)); err != nil {
		return err
	}

	b.lerpMeshVertexes(s, frame, oldFrame, backlerp)

	base := uint32(b.NumVertexes)
	for i, idx := range s.Indexes {
		b.Indexes[b.NumIndexes+i] = base + idx
	}
	b.NumIndexes += len(s.Indexes)

	for j := 0; j < s.NumVerts; j++ {
		b.TexCoords[0][b.NumVertexes+j] = s.ST[j]
		b.TexCoords[1][b.NumVertexes+j] = s.ST[j]
		b.VertexColors[b.NumVertexes+j] = [4]uint8{255, 255, 255, 255}
	}
	b.NumVertexes += s.NumVerts
	return nil
}

func clampFrame(frame, numFrames, renderFX int) int {
	if renderFX&metadata.RF_WRAP_FRAMES != 0 {
		frame %= numFrames
		if frame < 0 {
			frame += numFrames
		}
		return frame
	}
	return math.Clamp(frame, 0, numFrames-1)
}

// LerpMeshVertexes blends positions and decoded normals of two frames by
// backlerp (0 = current frame) and renormalizes the blended normals.
func (b *Buffer) lerpMeshVertexes(s *metadata.SurfaceMD3, frame, oldFrame int, backlerp float32) {
	newVerts := s.Vertexes[frame*s.NumVerts : (frame+1)*s.NumVerts]
	outXYZ := b.XYZ[b.NumVertexes : b.NumVertexes+s.NumVerts]
	outNormal := b.Normal[b.NumVertexes : b.NumVertexes+s.NumVerts]

	newXYZScale := metadata.MD3_XYZ_SCALE * (1 - backlerp)
	if backlerp == 0 {
		// just copy the vertexes
		for i := range newVerts {
			v := &newVerts[i]
			outXYZ[i] = math.Vec3{float32(v.XYZ[0]), float32(v.XYZ[1]), float32(v.XYZ[2])}.Mul(newXYZScale)
			outNormal[i] = math.DecodeLatLong(v.Normal)
		}
		return
	}

	// interpolate and copy the vertex and normal
	oldVerts := s.Vertexes[oldFrame*s.NumVerts : (oldFrame+1)*s.NumVerts]
	oldXYZScale := metadata.MD3_XYZ_SCALE * backlerp
	newNormalScale := 1 - backlerp
	for i := range newVerts {
		nv, ov := &newVerts[i], &oldVerts[i]
		outXYZ[i] = math.Vec3{
			float32(ov.XYZ[0])*oldXYZScale + float32(nv.XYZ[0])*newXYZScale,
			float32(ov.XYZ[1])*oldXYZScale + float32(nv.XYZ[1])*newXYZScale,
			float32(ov.XYZ[2])*oldXYZScale + float32(nv.XYZ[2])*newXYZScale,
		}
		n := math.DecodeLatLong(ov.Normal).Mul(backlerp).Add(math.DecodeLatLong(nv.Normal).Mul(newNormalScale))
		math.Normalize(&n)
		outNormal[i] = n
	}
}

func (b *Buffer) surfaceFlare(s *metadata.SurfaceFlare) error {
	left := b.Ctx.View.Or.Axis[1].Mul(flareSize)
	up := b.Ctx.View.Or.Axis[2].Mul(flareSize)
	color := [4]uint8{math.ClampByte(s.Color[0] * 255), math.ClampByte(s.Color[1] * 255), math.ClampByte(s.Color[2] * 255), 255}
	return b.AddQuadStamp(s.Origin, left, up, color)
}

// surfaceEntity generates the geometry of an entity-procedural surface.
func (b *Buffer) surfaceEntity() error {
	e := &b.Ctx.Entity.E
	switch e.ReType {
	case metadata.RTSprite:
		return b.surfaceSprite(e)
	case metadata.RTBeam:
		return b.surfaceBeam(e)
	case metadata.RTRailCore:
		return b.surfaceRailCore(e)
	case metadata.RTRailRings:
		return b.surfaceRailRings(e)
	case metadata.RTLightning:
		return b.surfaceLightningBolt(e)
	}
	return nil
}

func (b *Buffer) surfaceSprite(e *metadata.RefEntity) error {
	axis := &b.Ctx.View.Or.Axis
	radius := e.Radius

	var left, up math.Vec3
	if e.Rotation == 0 {
		left = axis[1].Mul(radius)
		up = axis[2].Mul(radius)
	} else {
		ang := math.K_PI * e.Rotation / 180
		s, c := math32.Sin(ang), math32.Cos(ang)
		left = math.MA(axis[1].Mul(c*radius), -s*radius, axis[2])
		up = math.MA(axis[2].Mul(c*radius), s*radius, axis[1])
	}
	if b.Ctx.View.IsMirror {
		left = left.Mul(-1)
	}
	return b.AddQuadStamp(e.Origin, left, up, e.ShaderRGBA)
}

// surfaceBeam builds a six sided tube from origin to old origin.
func (b *Buffer) surfaceBeam(e *metadata.RefEntity) error {
	dir := e.OldOrigin.Sub(e.Origin)
	if math.Normalize(&dir) == 0 {
		return nil
	}
	length := e.OldOrigin.Sub(e.Origin).Len()
	perp := math.PerpendicularVector(dir).Mul(4)

	if err := b.CheckOverflow(numBeamSegs*2, numBeamSegs*6); err != nil {
		return err
	}
	base := uint32(b.NumVertexes)
	for i := 0; i < numBeamSegs; i++ {
		p := math.RotatePointAroundVector(dir, perp, 360.0/numBeamSegs*float32(i))
		for j, o := range []math.Vec3{e.Origin, e.OldOrigin} {
			n := b.NumVertexes
			b.XYZ[n] = o.Add(p)
			b.Normal[n] = math.NormalizeFast(p)
			b.TexCoords[0][n] = [2]float32{float32(i) / numBeamSegs, float32(j) * length / 256}
			b.TexCoords[1][n] = b.TexCoords[0][n]
			b.VertexColors[n] = e.ShaderRGBA
			b.NumVertexes++
		}
	}
	for i := uint32(0); i < numBeamSegs; i++ {
		a0, a1 := base+i*2, base+i*2+1
		next := (i + 1) % numBeamSegs
		b0, b1 := base+next*2, base+next*2+1
		idx := b.Indexes[b.NumIndexes:]
		idx[0], idx[1], idx[2] = a0, a1, b0
		idx[3], idx[4], idx[5] = b0, a1, b1
		b.NumIndexes += 6
	}
	return nil
}

func (b *Buffer) doRailCore(start, end, up math.Vec3, length, spanWidth float32, rgba [4]uint8) error {
	if err := b.CheckOverflow(4, 6); err != nil {
		return err
	}
	vbase := uint32(b.NumVertexes)
	t := length / 256

	dim := [4]uint8{uint8(float32(rgba[0]) * 0.25), uint8(float32(rgba[1]) * 0.25), uint8(float32(rgba[2]) * 0.25), 255}
	corners := []struct {
		p  math.Vec3
		st [2]float32
		c  [4]uint8
	}{
		{math.MA(start, spanWidth, up), [2]float32{0, 0}, dim},
		{math.MA(start, -spanWidth, up), [2]float32{0, 1}, rgba},
		{math.MA(end, spanWidth, up), [2]float32{t, 0}, rgba},
		{math.MA(end, -spanWidth, up), [2]float32{t, 1}, rgba},
	}
	for _, c := range corners {
		n := b.NumVertexes
		b.XYZ[n] = c.p
		b.Normal[n] = up
		b.TexCoords[0][n] = c.st
		b.TexCoords[1][n] = c.st
		b.VertexColors[n] = c.c
		b.NumVertexes++
	}

	idx := b.Indexes[b.NumIndexes:]
	idx[0], idx[1], idx[2] = vbase, vbase+1, vbase+2
	idx[3], idx[4], idx[5] = vbase+2, vbase+1, vbase+3
	b.NumIndexes += 6
	return nil
}

// railSide returns the unit vector perpendicular to the line and the view.
func (b *Buffer) railSide(start, end math.Vec3) math.Vec3 {
	viewOrigin := b.Ctx.View.Or.Origin
	v1 := math.NormalizeFast(start.Sub(viewOrigin))
	v2 := math.NormalizeFast(end.Sub(viewOrigin))
	right := v1.Cross(v2)
	math.Normalize(&right)
	return right
}

func (b *Buffer) surfaceRailCore(e *metadata.RefEntity) error {
	start, end := e.OldOrigin, e.Origin
	vec := end.Sub(start)
	length := math.Normalize(&vec)
	right := b.railSide(start, end)
	return b.doRailCore(start, end, right, length, railCoreWidth, e.ShaderRGBA)
}

func (b *Buffer) surfaceRailRings(e *metadata.RefEntity) error {
	start, end := e.OldOrigin, e.Origin
	vec := end.Sub(start)
	length := math.Normalize(&vec)
	right, up := math.MakeNormalVectors(vec)

	numSegs := int(length / railSegmentLength)
	if numSegs <= 0 {
		numSegs = 1
	}
	dir := vec.Mul(railSegmentLength)

	if numSegs > 1 {
		numSegs--
	}

	var pos [4]math.Vec3
	const scale = 0.25
	for i := 0; i < 4; i++ {
		ang := math.DegToRad(45 + float32(i)*90)
		c, s := math32.Cos(ang), math32.Sin(ang)
		v := right.Mul(c).Add(up.Mul(s)).Mul(scale * railWidth)
		pos[i] = start.Add(v)
		if numSegs > 1 {
			// offset by 1 segment if we're doing a long distance shot
			pos[i] = pos[i].Add(dir)
		}
	}

	for i := 0; i < numSegs; i++ {
		if err := b.CheckOverflow(4, 6); err != nil {
			return err
		}
		for j := 0; j < 4; j++ {
			n := b.NumVertexes
			b.XYZ[n] = pos[j]
			b.Normal[n] = vec
			var s, t float32
			if j < 2 {
				s = 1
			}
			if j != 0 && j != 3 {
				t = 1
			}
			b.TexCoords[0][n] = [2]float32{s, t}
			b.TexCoords[1][n] = b.TexCoords[0][n]
			b.VertexColors[n] = e.ShaderRGBA
			b.NumVertexes++
			pos[j] = pos[j].Add(dir)
		}
		v := uint32(b.NumVertexes)
		idx := b.Indexes[b.NumIndexes:]
		idx[0], idx[1], idx[2] = v-4, v-3, v-1
		idx[3], idx[4], idx[5] = v-1, v-3, v-2
		b.NumIndexes += 6
	}
	return nil
}

func (b *Buffer) surfaceLightningBolt(e *metadata.RefEntity) error {
	start, end := e.Origin, e.OldOrigin
	vec := end.Sub(start)
	length := math.Normalize(&vec)
	right := b.railSide(start, end)

	for i := 0; i < 4; i++ {
		if err := b.doRailCore(start, end, right, length, 8, e.ShaderRGBA); err != nil {
			return err
		}
		right = math.RotatePointAroundVector(vec, right, 45)
	}
	return nil
}

// AddStretchPic appends a screen aligned rectangle for 2D drawing.
func (b *Buffer) AddStretchPic(x, y, w, h, s1, t1, s2, t2 float32, color [4]uint8) error {
	if err := b.CheckOverflow(4, 6); err != nil {
		return err
	}
	n := b.NumVertexes
	base := uint32(n)
	idx := b.Indexes[b.NumIndexes:]
	idx[0], idx[1], idx[2] = base+3, base, base+2
	idx[3], idx[4], idx[5] = base+2, base, base+1
	b.NumIndexes += 6

	corners := [4]math.Vec3{{x, y, 0}, {x + w, y, 0}, {x + w, y + h, 0}, {x, y + h, 0}}
	sts := [4][2]float32{{s1, t1}, {s2, t1}, {s2, t2}, {s1, t2}}
	for i := 0; i < 4; i++ {
		b.XYZ[n+i] = corners[i]
		b.Normal[n+i] = math.Vec3{0, 0, 1}
		b.TexCoords[0][n+i] = sts[i]
		b.TexCoords[1][n+i] = sts[i]
		b.VertexColors[n+i] = color
	}
	b.NumVertexes += 4
	return nil
}

// AddTriangle appends a textured 2D triangle.
func (b *Buffer) AddTriangle(xy [3][2]float32, st [3][2]float32, color [4]uint8) error {
	if err := b.CheckOverflow(3, 3); err != nil {
		return err
	}
	n := b.NumVertexes
	for i := 0; i < 3; i++ {
		b.Indexes[b.NumIndexes+i] = uint32(n + i)
		b.XYZ[n+i] = math.Vec3{xy[i][0], xy[i][1], 0}
		b.Normal[n+i] = math.Vec3{0, 0, 1}
		b.TexCoords[0][n+i] = st[i]
		b.TexCoords[1][n+i] = st[i]
		b.VertexColors[n+i] = color
	}
	b.NumIndexes += 3
	b.NumVertexes += 3
	return nil
}

// lodErrorForVolume is the error a patch may show at its distance from the
// viewer; farther patches tolerate larger errors.
func (b *Buffer) lodErrorForVolume(local math.Vec3, radius float32) float32 {
	curve := b.Ctx.Settings.LodCurveError
	if curve < 0 {
		return 0
	}
	world := math.LocalToWorld(b.Ctx.Or.Origin, &b.Ctx.Or.Axis, local)
	d := world.Sub(b.Ctx.View.Or.Origin).Dot(b.Ctx.View.Or.Axis[0])
	if d < 0 {
		d = -d
	}
	d -= radius
	if d < 1 {
		d = 1
	}
	return curve / d
}

// GridLodTables returns the control point columns and rows kept for the
// grid's level of detail. The outer columns and rows are always kept.
func (b *Buffer) GridLodTables(s *metadata.SurfaceGrid) (widthTable, heightTable []int) {
	lodError := b.lodErrorForVolume(s.LodOrigin, s.LodRadius)
	return lodTable(s.WidthLodError, s.Width, lodError), lodTable(s.HeightLodError, s.Height, lodError)
}

func lodTable(errs []float32, n int, lodError float32) []int {
	table := make([]int, 0, n)
	table = append(table, 0)
	for i := 1; i < n-1; i++ {
		if i < len(errs) && errs[i] <= lodError {
			table = append(table, i)
		}
	}
	return append(table, n-1)
}

// surfaceGrid emits the grid in row strips, flushing the batch whenever the
// next strip does not fit.
func (b *Buffer) surfaceGrid(s *metadata.SurfaceGrid) error {
	if s.Width < 2 || s.Height < 2 {
		return nil
	}
	widthTable, heightTable := b.GridLodTables(s)
	lodWidth, lodHeight := len(widthTable), len(heightTable)

	used := 0
	for used < lodHeight-1 {
		var vrows, irows int
		for {
			vrows = (b.maxVertexes - b.NumVertexes) / lodWidth
			irows = (b.maxIndexes - b.NumIndexes) / (lodWidth * 6)
			if vrows >= 2 && irows >= 1 {
				break
			}
			if b.NumVertexes == 0 && b.NumIndexes == 0 {
				return core.Fatal(core.ErrTessOverflow, "grid row of %d verts does not fit in shader '%s'", lodWidth, b.shaderName())
			}
			b.Counters.Overflows++
			light := b.Light
			if err := b.End(); err != nil {
				return err
			}
			b.Begin(b.Shader, b.FogNum)
			b.Light = light
		}

		// irows strips need irows+1 rows of vertexes
		rows := irows + 1
		if rows > vrows {
			rows = vrows
		}
		if used+rows > lodHeight {
			rows = lodHeight - used
		}

		numVertexes := b.NumVertexes
		for i := 0; i < rows; i++ {
			for j := 0; j < lodWidth; j++ {
				b.appendDrawVert(&s.Verts[heightTable[used+i]*s.Width+widthTable[j]])
			}
		}

		// add the indexes
		h, w := rows-1, lodWidth-1
		for i := 0; i < h; i++ {
			for j := 0; j < w; j++ {
				// vertex order to be recognized as tristrips
				v1 := uint32(numVertexes + i*lodWidth + j + 1)
				v2 := v1 - 1
				v3 := v2 + uint32(lodWidth)
				v4 := v3 + 1
				idx := b.Indexes[b.NumIndexes:]
				idx[0], idx[1], idx[2] = v2, v3, v1
				idx[3], idx[4], idx[5] = v1, v3, v4
				b.NumIndexes += 6
			}
		}
		used += rows - 1
	}
	return nil
}
