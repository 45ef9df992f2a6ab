package testbed

import (
	"github.com/chewxy/math32"

	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	roomHalfWidth  = 512
	roomHalfHeight = 128
	texelScale     = 1.0 / 128
)

const (
	FloorShader   = "textures/testbed/floor"
	WallShader    = "textures/testbed/wall"
	CeilingShader = "textures/testbed/ceiling"
	GlowShader    = "textures/testbed/glow"
	SpriteShader  = "textures/testbed/flare"
)

// quadFace builds a face from four corners wound around normal.
func quadFace(corners [4]math.Vec3, normal math.Vec3, color [4]uint8) *metadata.SurfaceFace {
	face := &metadata.SurfaceFace{
		Plane:   math.NewPlane(normal, normal.Dot(corners[0])),
		Indexes: []uint32{0, 1, 2, 0, 2, 3},
	}
	// project the texture along the dominant axis of the normal
	s, t := 0, 1
	switch {
	case math32.Abs(normal[0]) > 0.5:
		s, t = 1, 2
	case math32.Abs(normal[1]) > 0.5:
		s, t = 0, 2
	}
	for _, c := range corners {
		face.Verts = append(face.Verts, metadata.DrawVert{
			XYZ:    c,
			ST:     [2]float32{c[s] * texelScale, c[t] * texelScale},
			Normal: normal,
			Color:  color,
		})
	}
	return face
}

/**
 * @brief Builds a closed room split in two leaves by the plane x = 0. Every
 * surface refers to its shader by name; the renderer resolves them when the
 * world is loaded.
 */
func BuildRoomWorld() *metadata.World {
	const w, h = roomHalfWidth, roomHalfHeight
	grey := [4]uint8{200, 200, 200, 255}
	warm := [4]uint8{255, 220, 180, 255}

	type face struct {
		shader  string
		corners [4]math.Vec3
		normal  math.Vec3
		color   [4]uint8
		leaves  []int
	}
	faces := []face{
		// floor and ceiling of each half
		{FloorShader, [4]math.Vec3{{0, -w, -h}, {w, -w, -h}, {w, w, -h}, {0, w, -h}}, math.Vec3{0, 0, 1}, grey, []int{0}},
		{FloorShader, [4]math.Vec3{{-w, -w, -h}, {0, -w, -h}, {0, w, -h}, {-w, w, -h}}, math.Vec3{0, 0, 1}, grey, []int{1}},
		{CeilingShader, [4]math.Vec3{{0, w, h}, {w, w, h}, {w, -w, h}, {0, -w, h}}, math.Vec3{0, 0, -1}, warm, []int{0}},
		{CeilingShader, [4]math.Vec3{{-w, w, h}, {0, w, h}, {0, -w, h}, {-w, -w, h}}, math.Vec3{0, 0, -1}, warm, []int{1}},
		// end walls
		{WallShader, [4]math.Vec3{{w, -w, -h}, {w, -w, h}, {w, w, h}, {w, w, -h}}, math.Vec3{-1, 0, 0}, warm, []int{0}},
		{WallShader, [4]math.Vec3{{-w, w, -h}, {-w, w, h}, {-w, -w, h}, {-w, -w, -h}}, math.Vec3{1, 0, 0}, warm, []int{1}},
		// side walls span both leaves
		{WallShader, [4]math.Vec3{{-w, -w, -h}, {-w, -w, h}, {w, -w, h}, {w, -w, -h}}, math.Vec3{0, 1, 0}, grey, []int{0, 1}},
		{WallShader, [4]math.Vec3{{w, w, -h}, {w, w, h}, {-w, w, h}, {-w, w, -h}}, math.Vec3{0, -1, 0}, grey, []int{0, 1}},
	}

	world := &metadata.World{
		Name:         "maps/testbed_room",
		BaseName:     "testbed_room",
		Planes:       []math.Plane{math.NewPlane(math.Vec3{1, 0, 0}, 0)},
		Surfaces:     make([]metadata.WorldSurface, len(faces)),
		Fogs:         make([]metadata.Fog, 1),
		NumClusters:  2,
		ClusterBytes: 1,
		Nodes:        make([]metadata.Node, 3),
	}
	for i, f := range faces {
		world.Surfaces[i] = metadata.WorldSurface{
			ShaderName:  f.shader,
			LightmapNum: metadata.LIGHTMAP_BY_VERTEX,
			Data:        quadFace(f.corners, f.normal, f.color),
		}
	}

	root := &world.Nodes[0]
	root.Contents = metadata.CONTENTS_NODE
	root.Plane = &world.Planes[0]
	root.Mins, root.Maxs = math.Vec3{-w, -w, -h}, math.Vec3{w, w, h}
	root.Children = [2]*metadata.Node{&world.Nodes[1], &world.Nodes[2]}

	// front leaf is x > 0, back leaf x <= 0
	for leaf := 0; leaf < 2; leaf++ {
		n := &world.Nodes[1+leaf]
		n.Cluster = leaf
		if leaf == 0 {
			n.Mins, n.Maxs = math.Vec3{0, -w, -h}, math.Vec3{w, w, h}
		} else {
			n.Mins, n.Maxs = math.Vec3{-w, -w, -h}, math.Vec3{0, w, h}
		}
	}
	for i, f := range faces {
		for _, leaf := range f.leaves {
			n := &world.Nodes[1+leaf]
			n.MarkSurfaces = append(n.MarkSurfaces, &world.Surfaces[i])
		}
	}
	return world
}

// testbedScript mirrors assets/scripts/testbed.shader.
const testbedScript = `
textures/testbed/floor
{
	{
		map *white
		rgbGen vertex
	}
}

textures/testbed/wall
{
	{
		map *white
		rgbGen vertex
		tcMod scroll 0.05 0
	}
}

textures/testbed/ceiling
{
	{
		map *white
		rgbGen wave sin 0.75 0.25 0 0.2
	}
}

textures/testbed/glow
{
	cull none
	{
		map *white
		blendFunc add
		rgbGen vertex
	}
}

textures/testbed/flare
{
	cull none
	{
		map *white
		blendFunc add
		rgbGen entity
	}
}
`
