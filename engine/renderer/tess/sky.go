package tess

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	SKY_SUBDIVISIONS      = 8
	HALF_SKY_SUBDIVISIONS = SKY_SUBDIVISIONS / 2

	skyRadiusWorld = 4096
	skyDefaultZFar = 4096
	skyTexMin      = 1.0 / 256
	skyTexMax      = 255.0 / 256
)

// axis mapping of the six box sides: right, left, back, front, up, down
var stToVec = [6][3]int{
	{3, -1, 2},
	{-3, 1, 2},
	{1, 3, 2},
	{-1, -3, 2},
	{-2, -1, 3},
	{2, -1, -3},
}

// MakeSkyVec maps a point of a sky box side, s and t in -1..1, to a view
// relative position and its texture coordinate.
func MakeSkyVec(s, t float32, side int, zFar float32) (math.Vec3, [2]float32) {
	boxSize := zFar / 1.75 // div sqrt(3)
	b := [3]float32{s * boxSize, t * boxSize, boxSize}

	var v math.Vec3
	for j := 0; j < 3; j++ {
		k := stToVec[side][j]
		if k < 0 {
			v[j] = -b[-k-1]
		} else {
			v[j] = b[k-1]
		}
	}

	// avoid bilerp seam
	s = math.Clamp((s+1)*0.5, skyTexMin, skyTexMax)
	t = math.Clamp((t+1)*0.5, skyTexMin, skyTexMax)
	return v, [2]float32{s, 1 - t}
}

// CloudTexCoord returns the texture coordinate where the view ray through a
// sky box point meets a cloud layer of the given height.
func CloudTexCoord(skyVec math.Vec3, cloudHeight float32) [2]float32 {
	sq := func(x float32) float32 { return x * x }
	const r = skyRadiusWorld
	h := cloudHeight

	// compute parametric value 'p' that intersects with cloud layer
	p := (1 / (2 * skyVec.Dot(skyVec))) *
		(-2*skyVec[2]*r + 2*math32.Sqrt(sq(skyVec[2])*sq(r)+
			2*sq(skyVec[0])*r*h+sq(skyVec[0])*sq(h)+
			2*sq(skyVec[1])*r*h+sq(skyVec[1])*sq(h)+
			2*sq(skyVec[2])*r*h+sq(skyVec[2])*sq(h)))

	v := skyVec.Mul(p)
	v[2] += r
	math.Normalize(&v)
	return [2]float32{math32.Acos(v[0]), math32.Acos(v[1])}
}

// stageIteratorSky draws the sky box and cloud layers once per view, at the
// far end of the depth range and centered on the viewer.
func (b *Buffer) stageIteratorSky() {
	if b.skyDrawn {
		return
	}
	b.skyDrawn = true

	b.Dev.BeginSkyAndClouds(1)
	defer b.Dev.EndSkyAndClouds()

	b.drawSkyBox()

	if b.Shader.Sky.CloudHeight > 0 && len(b.Shader.Stages) > 0 {
		if b.fillCloudBox() {
			b.IterateStages()
		}
	}
}

func (b *Buffer) skyZFar() float32 {
	if b.Ctx.View != nil && b.Ctx.View.ZFar > 0 {
		return b.Ctx.View.ZFar
	}
	return skyDefaultZFar
}

// fillSkySide writes one side of the box as a (SKY_SUBDIVISIONS+1)^2 grid.
func (b *Buffer) fillSkySide(side int, cloudHeight float32) {
	zFar := b.skyZFar()
	origin := b.Ctx.View.Or.Origin
	base := uint32(b.NumVertexes)
	const stride = SKY_SUBDIVISIONS + 1

	for t := 0; t <= SKY_SUBDIVISIONS; t++ {
		for s := 0; s <= SKY_SUBDIVISIONS; s++ {
			v, st := MakeSkyVec(
				float32(s-HALF_SKY_SUBDIVISIONS)/HALF_SKY_SUBDIVISIONS,
				float32(t-HALF_SKY_SUBDIVISIONS)/HALF_SKY_SUBDIVISIONS,
				side, zFar)
			if cloudHeight > 0 {
				st = CloudTexCoord(v, cloudHeight)
			}
			n := b.NumVertexes
			b.XYZ[n] = v.Add(origin)
			b.Normal[n] = math.NormalizeFast(v.Mul(-1))
			b.TexCoords[0][n] = st
			b.TexCoords[1][n] = st
			b.VertexColors[n] = [4]uint8{255, 255, 255, 255}
			b.NumVertexes++
		}
	}

	for t := uint32(0); t < SKY_SUBDIVISIONS; t++ {
		for s := uint32(0); s < SKY_SUBDIVISIONS; s++ {
			v := base + t*stride + s
			idx := b.Indexes[b.NumIndexes:]
			idx[0], idx[1], idx[2] = v, v+stride, v+1
			idx[3], idx[4], idx[5] = v+1, v+stride, v+stride+1
			b.NumIndexes += 6
		}
	}
}

const (
	skySideVerts   = (SKY_SUBDIVISIONS + 1) * (SKY_SUBDIVISIONS + 1)
	skySideIndexes = SKY_SUBDIVISIONS * SKY_SUBDIVISIONS * 6
)

// drawSkyBox draws each outer box side that has an image.
func (b *Buffer) drawSkyBox() {
	c := b.Ctx.Settings.IdentityLightByte
	for side, image := range b.Shader.Sky.OuterBox {
		if image == nil {
			continue
		}
		b.NumVertexes, b.NumIndexes = 0, 0
		b.fillSkySide(side, 0)
		n := b.NumVertexes
		fill(b.Colors[:n], [4]uint8{c, c, c, 255})
		copy(b.STs[0][:n], b.TexCoords[0][:n])
		copy(b.STs[1][:n], b.TexCoords[0][:n])

		state := &device.State{
			Bits:     0,
			Cull:     metadata.CullTwoSided,
			Textures: [2]uint32{b.imageHandle(image), 0},
		}
		b.draw(device.PipelineGeneric, state, b.Indexes[:b.NumIndexes])
	}
	b.NumVertexes, b.NumIndexes = 0, 0
}

// fillCloudBox fills the buffer with the cloud layer geometry of the upper
// five sides. It reports false when the buffer is too small to hold it.
func (b *Buffer) fillCloudBox() bool {
	if 5*skySideVerts > b.maxVertexes || 5*skySideIndexes > b.maxIndexes {
		return false
	}
	b.NumVertexes, b.NumIndexes = 0, 0
	for side := 0; side < 5; side++ {
		b.fillSkySide(side, b.Shader.Sky.CloudHeight)
	}
	return true
}
