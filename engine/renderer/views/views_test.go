package views

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

func litShader(sortedIndex int) *metadata.Shader {
	return &metadata.Shader{
		Name:          "lit",
		SortedIndex:   sortedIndex,
		Sort:          metadata.SortOpaque,
		LightingStage: 0,
		CullType:      metadata.CullTwoSided,
		Stages:        []*metadata.ShaderStage{{Active: true, StateBits: metadata.StateDefault}},
	}
}

func trisSurface(shader *metadata.Shader, mins, maxs math.Vec3) *metadata.WorldSurface {
	return &metadata.WorldSurface{
		Shader: shader,
		Data:   &metadata.SurfaceTriangles{Bounds: math.Bounds{Min: mins, Max: maxs}},
	}
}

// testWorld splits space at x=0: leaf 1 (x>0, cluster 0, area 0) and leaf 2
// (x<0, cluster 1, area 1). Surface A straddles both leaves.
func testWorld() (*metadata.World, []*metadata.WorldSurface) {
	shader := litShader(1)
	a := trisSurface(shader, math.Vec3{-5, -5, -5}, math.Vec3{5, 5, 5})
	b := trisSurface(shader, math.Vec3{-20, -5, -5}, math.Vec3{-10, 5, 5})
	c := trisSurface(shader, math.Vec3{1000, 1000, 1000}, math.Vec3{1010, 1010, 1010})

	w := &metadata.World{
		Planes:       []math.Plane{math.NewPlane(math.Vec3{1, 0, 0}, 0)},
		Nodes:        make([]metadata.Node, 3),
		NumClusters:  2,
		ClusterBytes: 1,
		// cluster 0 sees both clusters, cluster 1 only itself
		Vis: []byte{0x3, 0x2},
	}
	w.Nodes[0] = metadata.Node{
		Contents: metadata.CONTENTS_NODE,
		Mins:     math.Vec3{-100, -5, -5},
		Maxs:     math.Vec3{100, 5, 5},
		Plane:    &w.Planes[0],
		Children: [2]*metadata.Node{&w.Nodes[1], &w.Nodes[2]},
	}
	w.Nodes[1] = metadata.Node{
		Mins: math.Vec3{10, -5, -5}, Maxs: math.Vec3{100, 5, 5},
		Cluster: 0, Area: 0,
		MarkSurfaces: []*metadata.WorldSurface{a, c},
	}
	w.Nodes[2] = metadata.Node{
		Mins: math.Vec3{-100, -5, -5}, Maxs: math.Vec3{-10, 5, 5},
		Cluster: 1, Area: 1,
		MarkSurfaces: []*metadata.WorldSurface{a, b},
	}
	return w, []*metadata.WorldSurface{a, b, c}
}

func testView(refdef *metadata.RefDef, arena *Arena) *View {
	v := NewView(refdef, arena, nil)
	v.RotateForViewer()
	v.SetupFrustum()
	return v
}

func identityRefDef(origin math.Vec3) *metadata.RefDef {
	return &metadata.RefDef{Width: 640, Height: 480, FovX: 90, FovY: 73.74, ViewOrg: origin, ViewAxis: math.IdentityAxis}
}

func TestMarkLeavesMemoized(t *testing.T) {
	w, _ := testWorld()
	counters := &core.FrameCounters{}
	vis := NewVisibility(w, DefaultSettings(), counters)

	var mask [metadata.MAX_MAP_AREA_BYTES]byte
	vis.MarkLeaves(math.Vec3{50, 0, 0}, &mask)
	vis.MarkLeaves(math.Vec3{60, 0, 0}, &mask)
	assert.Equal(t, 1, counters.MarkLeavesCalls)
	for i := range w.Nodes {
		assert.Equal(t, vis.VisCount(), w.Nodes[i].VisFrame)
	}

	// closing the door to area 1 forces a recompute
	mask[0] = 1 << 1
	vis.MarkLeaves(math.Vec3{50, 0, 0}, &mask)
	assert.Equal(t, 2, counters.MarkLeavesCalls)
	assert.Equal(t, vis.VisCount(), w.Nodes[0].VisFrame)
	assert.Equal(t, vis.VisCount(), w.Nodes[1].VisFrame)
	assert.NotEqual(t, vis.VisCount(), w.Nodes[2].VisFrame)

	// cluster 1 does not see cluster 0
	mask[0] = 0
	vis.MarkLeaves(math.Vec3{-50, 0, 0}, &mask)
	assert.Equal(t, 3, counters.MarkLeavesCalls)
	assert.NotEqual(t, vis.VisCount(), w.Nodes[1].VisFrame)
	assert.Equal(t, vis.VisCount(), w.Nodes[2].VisFrame)
}

func TestWorldSurfacesAreDeduplicated(t *testing.T) {
	w, surfs := testWorld()
	settings := DefaultSettings()
	settings.NoCull = true
	vis := NewVisibility(w, settings, nil)

	arena := NewArena(16, 16)
	view := testView(identityRefDef(math.Vec3{50, 0, 0}), arena)
	vis.AddWorldSurfaces(view)

	got := view.DrawSurfs()
	require.Len(t, got, 3)
	seen := map[metadata.Surface]int{}
	for _, ds := range got {
		seen[ds.Surface]++
	}
	for _, s := range surfs {
		assert.Equal(t, 1, seen[s.Data])
		assert.Equal(t, vis.ViewCount(), s.VisCount)
	}
	assert.Equal(t, 2, vis.Counters.LeafsVisited)
}

func TestFrustumCullsNodesBehindViewer(t *testing.T) {
	w, surfs := testWorld()
	w.Vis = nil
	vis := NewVisibility(w, DefaultSettings(), nil)

	view := testView(identityRefDef(math.Vec3{0, 0, 0}), NewArena(16, 16))
	vis.AddWorldSurfaces(view)

	got := view.DrawSurfs()
	require.Len(t, got, 1)
	assert.Same(t, surfs[0].Data, got[0].Surface)
	assert.Equal(t, 1, vis.Counters.LeafsVisited)
}

func TestDynamicLightSurfacesAreDeduplicated(t *testing.T) {
	w, surfs := testWorld()
	settings := DefaultSettings()
	settings.NoCull = true
	vis := NewVisibility(w, settings, nil)

	view := testView(identityRefDef(math.Vec3{50, 0, 0}), NewArena(16, 16))
	dl := &metadata.Dlight{Origin: math.Vec3{0, 0, 0}, Color: math.Vec3{1, 1, 1}, Radius: 50}
	view.Dlights = []*metadata.Dlight{dl}
	vis.AddWorldSurfaces(view)

	var lit []metadata.Surface
	for ls := dl.Head; ls != nil; ls = ls.Next {
		lit = append(lit, ls.Surface)
		_, _, _, dlight := metadata.DecomposeSortKey(ls.Sort)
		assert.True(t, dlight)
	}
	assert.ElementsMatch(t, []metadata.Surface{surfs[0].Data, surfs[1].Data}, lit)
}

func TestLitSurfaceOverflowDropsLights(t *testing.T) {
	w, _ := testWorld()
	settings := DefaultSettings()
	settings.NoCull = true
	vis := NewVisibility(w, settings, nil)

	view := testView(identityRefDef(math.Vec3{50, 0, 0}), NewArena(16, 1))
	first := &metadata.Dlight{Radius: 50}
	second := &metadata.Dlight{Radius: 50}
	view.Dlights = []*metadata.Dlight{first, second}
	vis.AddWorldSurfaces(view)

	assert.Equal(t, 1, vis.Counters.DlightsDropped)
	assert.Nil(t, second.Head)
}

func TestLightEligibility(t *testing.T) {
	assert.True(t, LightEligible(litShader(0)))

	noDlight := litShader(0)
	noDlight.SurfaceFlags = metadata.SURF_NODLIGHT
	assert.False(t, LightEligible(noDlight))

	translucent := litShader(0)
	translucent.Sort = metadata.SortBanner
	assert.False(t, LightEligible(translucent))

	filter := litShader(0)
	filter.Stages[0].StateBits = metadata.SrcBlendDstColor | metadata.DstBlendZero
	assert.False(t, LightEligible(filter))

	none := litShader(0)
	none.LightingStage = -1
	assert.False(t, LightEligible(none))
}

func TestFaceCulling(t *testing.T) {
	view := testView(identityRefDef(math.Vec3{}), NewArena(1, 1))
	s := DefaultSettings()
	front := &metadata.Shader{CullType: metadata.CullFrontSided}
	back := &metadata.Shader{CullType: metadata.CullBackSided}

	face := func(dist float32) *metadata.SurfaceFace {
		return &metadata.SurfaceFace{Plane: math.NewPlane(math.Vec3{1, 0, 0}, dist)}
	}
	assert.True(t, view.CullSurface(face(20), front, &s))
	// within the epsilon the face is kept
	assert.False(t, view.CullSurface(face(5), front, &s))
	assert.True(t, view.CullSurface(face(-20), back, &s))
	assert.False(t, view.CullSurface(face(-20), front, &s))

	view.Parms.IsMirror = true
	assert.True(t, view.CullSurface(face(-20), front, &s))

	s.FacePlaneCull = false
	assert.False(t, view.CullSurface(face(20), front, &s))
}

func TestSortDrawSurfs(t *testing.T) {
	arena := NewArena(8, 0)
	view := NewView(identityRefDef(math.Vec3{}), arena, nil)
	view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{SortedIndex: 5}, 0, 1)
	view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{SortedIndex: 2}, 3, 7)
	view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{SortedIndex: 9}, 0, 0)
	view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{SortedIndex: 2}, 1, 7)
	view.Finish()

	var order [][2]int
	for _, ds := range view.DrawSurfs() {
		idx, _, fog, _ := metadata.DecomposeSortKey(ds.Sort)
		order = append(order, [2]int{idx, fog})
	}
	assert.Equal(t, [][2]int{{2, 1}, {2, 3}, {5, 0}, {9, 0}}, order)
}

func TestDrawSurfCapacity(t *testing.T) {
	arena := NewArena(1, 0)
	view := NewView(identityRefDef(math.Vec3{}), arena, nil)
	assert.True(t, view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{}, 0, 0))
	assert.False(t, view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{}, 0, 0))
}

func TestEntityLightingWithoutGrid(t *testing.T) {
	vis := &Visibility{Settings: DefaultSettings(), Counters: &core.FrameCounters{}}
	view := NewView(&metadata.RefDef{RDFlags: metadata.RDF_NOWORLDMODEL}, NewArena(0, 0), nil)

	ent := &metadata.SceneEntity{}
	ent.E.Axis = math.IdentityAxis
	vis.SetupEntityLighting(view, ent)

	assert.True(t, ent.LightingCalculated)
	assert.Equal(t, [4]uint8{91, 91, 91, 255}, ent.AmbientLightInt)
	assert.InDelta(t, 1, ent.LightDir.Len(), 1e-4)
}

func TestEntityLightingFromGrid(t *testing.T) {
	w := &metadata.World{
		LightGridInverseSize: math.Vec3{1.0 / 64, 1.0 / 64, 1.0 / 128},
		LightGridBounds:      [3]int{1, 1, 1},
		LightGridData:        []byte{100, 100, 100, 50, 50, 50, 0, 0},
	}
	vis := &Visibility{World: w, Settings: DefaultSettings(), Counters: &core.FrameCounters{}}
	view := NewView(&metadata.RefDef{}, NewArena(0, 0), nil)

	ent := &metadata.SceneEntity{}
	ent.E.Axis = math.IdentityAxis
	vis.SetupEntityLighting(view, ent)

	assert.Equal(t, [4]uint8{76, 76, 76, 255}, ent.AmbientLightInt)
	assert.InDelta(t, 0, ent.LightDir[0], 1e-5)
	assert.InDelta(t, 0, ent.LightDir[1], 1e-5)
	assert.InDelta(t, 1, ent.LightDir[2], 1e-5)
}

func TestDrawSurfLod(t *testing.T) {
	view := NewView(identityRefDef(math.Vec3{}), NewArena(4, 0), nil)
	grid := &metadata.SurfaceGrid{LodOrigin: math.Vec3{100, 0, 0}, LodRadius: 50}
	tris := &metadata.SurfaceTriangles{Radius: 8}
	view.AddDrawSurf(grid, &metadata.Shader{SortedIndex: 1}, 0, 0)
	view.AddDrawSurf(tris, &metadata.Shader{SortedIndex: 2}, 0, 0)
	view.AddDrawSurf(metadata.SkipSurface, &metadata.Shader{SortedIndex: 3}, 0, 0)
	view.Finish()

	ds := view.DrawSurfs()
	require.Len(t, ds, 3)
	assert.InDelta(t, 0.5, ds[0].Lod, 1e-6)
	// the viewer sits on the triangle origin
	assert.InDelta(t, 8/0.001, ds[1].Lod, 1)
	assert.Zero(t, ds[2].Lod)
}
