package views

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief Traversal state of the loaded world: the generation counters stamped
 * on nodes and surfaces and the memoized view cluster.
 */
type Visibility struct {
	World    *metadata.World
	Settings Settings
	Counters *core.FrameCounters

	visCount   int
	viewCount  int
	lightCount int

	viewCluster  int
	lastAreaMask [metadata.MAX_MAP_AREA_BYTES]byte
	lastNoVis    bool
	marked       bool
}

// NewVisibility prepares world for traversal.
func NewVisibility(world *metadata.World, settings Settings, counters *core.FrameCounters) *Visibility {
	if counters == nil {
		counters = &core.FrameCounters{}
	}
	world.LinkParents()
	return &Visibility{
		World:       world,
		Settings:    settings,
		Counters:    counters,
		viewCluster: -1,
		visCount:    1,
	}
}

// VisCount is the current PVS generation.
func (vis *Visibility) VisCount() int { return vis.visCount }

// ViewCount is the current BSP visit generation.
func (vis *Visibility) ViewCount() int { return vis.viewCount }

// MarkLeaves stamps every node that can be seen from the view cluster with a
// new PVS generation. Nothing is recomputed while the cluster, the area mask
// and the novis switch stay the same.
func (vis *Visibility) MarkLeaves(pvsOrigin math.Vec3, areaMask *[metadata.MAX_MAP_AREA_BYTES]byte) {
	// lockpvs lets designers walk around to determine the extent of the current pvs
	if vis.Settings.LockPVS {
		return
	}

	// current viewcluster
	leaf := vis.World.PointInLeaf(pvsOrigin)
	cluster := leaf.Cluster

	// if the cluster is the same and the area visibility matrix
	// hasn't changed, we don't need to mark everything again
	if vis.viewCluster == cluster && *areaMask == vis.lastAreaMask && vis.lastNoVis == vis.Settings.NoVis && vis.marked {
		return
	}

	vis.visCount++
	vis.marked = true
	vis.viewCluster = cluster
	vis.lastAreaMask = *areaMask
	vis.lastNoVis = vis.Settings.NoVis
	vis.Counters.MarkLeavesCalls++

	world := vis.World
	if vis.Settings.NoVis || cluster == -1 || world.Vis == nil {
		for i := range world.Nodes {
			world.Nodes[i].VisFrame = vis.visCount
		}
		return
	}

	pvs := world.ClusterPVS(cluster)
	for i := range world.Nodes {
		leaf := &world.Nodes[i]
		if !leaf.IsLeaf() {
			continue
		}
		cl := leaf.Cluster
		if cl < 0 || cl >= world.NumClusters {
			continue
		}

		// check general pvs
		if pvs[cl>>3]&(1<<(cl&7)) == 0 {
			continue
		}

		// check for door connection
		if leaf.Area >= 0 && areaMask[leaf.Area>>3]&(1<<(leaf.Area&7)) != 0 {
			continue // not visible
		}

		for parent := leaf; parent != nil; parent = parent.Parent {
			if parent.VisFrame == vis.visCount {
				break
			}
			parent.VisFrame = vis.visCount
		}
	}
}

// AddWorldSurfaces walks the tree for view, adding every visible surface, and
// then gathers the lit surfaces of each dynamic light.
func (vis *Visibility) AddWorldSurfaces(view *View) {
	if view.RefDef.RDFlags&metadata.RDF_NOWORLDMODEL != 0 {
		return
	}
	vis.viewCount++
	view.Or = view.Parms.World
	view.Fogs = vis.World.Fogs

	// determine which leaves are in the PVS / areamask
	vis.MarkLeaves(view.Parms.PVSOrigin, &view.RefDef.AreaMask)

	// clear out the visible min/max
	view.Parms.VisBounds.Clear()

	// perform frustum culling and add all the potentially visible surfaces
	vis.RecursiveWorldNode(view, vis.World.Root(), 15)

	if !vis.Settings.DynamicLights {
		return
	}
	for _, dl := range view.Dlights {
		dl.Transformed = dl.Origin
		vis.lightCount++
		vis.Counters.DlightsTraversed++
		if !vis.RecursiveLightNode(view, dl, vis.World.Root()) {
			// lit surface storage is exhausted, remaining lights are skipped
			vis.Counters.DlightsDropped++
			break
		}
	}
}

// RecursiveWorldNode descends node, narrowing the set of frustum planes
// still to test as boxes are found fully inside them.
func (vis *Visibility) RecursiveWorldNode(view *View, node *metadata.Node, planeBits int) {
	for {
		// if the node wasn't marked as potentially visible, exit
		if node.VisFrame != vis.visCount {
			return
		}

		// if the bounding volume is outside the frustum, nothing
		// inside can be visible OPTIMIZE: don't do this all the way to leafs?
		if !vis.Settings.NoCull {
			for i := 0; i < 4; i++ {
				if planeBits&(1<<i) == 0 {
					continue
				}
				r := math.BoxOnPlaneSide(node.Mins, node.Maxs, &view.Parms.Frustum[i])
				if r == math.SideBack {
					return // culled
				}
				if r == math.SideFront {
					planeBits &^= 1 << i // all descendants will also be in front
				}
			}
		}

		if node.IsLeaf() {
			break
		}

		// recurse down the children, front side first
		vis.RecursiveWorldNode(view, node.Children[0], planeBits)

		// tail recurse
		node = node.Children[1]
	}

	// leaf node, so add mark surfaces
	vis.Counters.LeafsVisited++

	// add to z buffer bounds
	view.Parms.VisBounds.AddPoint(node.Mins)
	view.Parms.VisBounds.AddPoint(node.Maxs)

	for _, surf := range node.MarkSurfaces {
		vis.addWorldSurface(view, surf)
	}
}

func (vis *Visibility) addWorldSurface(view *View, surf *metadata.WorldSurface) {
	if surf.ViewCount == vis.viewCount {
		return // already in this view
	}
	surf.ViewCount = vis.viewCount

	shader := surf.Shader
	if shader == nil || (len(shader.Stages) == 0 && !shader.IsSky) {
		return
	}
	if view.CullSurface(surf.Data, shader, &vis.Settings) {
		vis.Counters.SurfacesCulled++
		return
	}
	surf.VisCount = vis.viewCount
	view.AddDrawSurf(surf.Data, shader, surf.FogIndex, metadata.ENTITYNUM_WORLD)
}

// RecursiveLightNode adds the visible surfaces touched by dl below node to its
// lit surface list. It reports false when lit surface storage ran out.
func (vis *Visibility) RecursiveLightNode(view *View, dl *metadata.Dlight, node *metadata.Node) bool {
	for {
		if node.VisFrame != vis.visCount {
			return true
		}
		if node.IsLeaf() {
			break
		}

		dist := node.Plane.Distance(dl.Transformed)
		front := dist > -dl.Radius
		back := dist < dl.Radius

		switch {
		case front && back:
			if !vis.RecursiveLightNode(view, dl, node.Children[0]) {
				return false
			}
			node = node.Children[1]
		case front:
			node = node.Children[0]
		case back:
			node = node.Children[1]
		default:
			return true
		}
	}

	for _, surf := range node.MarkSurfaces {
		if surf.LightCount == vis.lightCount {
			continue // already checked for this light
		}
		surf.LightCount = vis.lightCount

		if surf.VisCount != vis.viewCount {
			continue // not drawn in this view
		}
		if !LightEligible(surf.Shader) || !SurfaceTouchesLight(surf.Data, dl) {
			continue
		}
		if !view.AddLitSurf(dl, surf.Data, surf.Shader, surf.FogIndex, metadata.ENTITYNUM_WORLD) {
			return false
		}
	}
	return true
}

// LightEligible reports whether surfaces of shader can receive a dynamic
// light pass.
func LightEligible(shader *metadata.Shader) bool {
	if shader == nil || shader.SurfaceFlags&(metadata.SURF_NODLIGHT|metadata.SURF_SKY) != 0 {
		return false
	}
	if shader.Sort < metadata.SortOpaque || shader.Sort > metadata.SortSeeThrough {
		return false
	}
	if shader.IsFogVolume() || !shader.HasDlightStage() || shader.LightingStage >= len(shader.Stages) {
		return false
	}
	// light can't be composited through blends reading the destination
	return !shader.Stages[shader.LightingStage].StateBits.ReadsDestination()
}

// SurfaceTouchesLight is the exact bounding test of a surface against the
// light sphere, in the light's transformed space.
func SurfaceTouchesLight(data metadata.Surface, dl *metadata.Dlight) bool {
	switch surf := data.(type) {
	case *metadata.SurfaceFace:
		d := surf.Plane.Distance(dl.Transformed)
		return d >= -dl.Radius && d <= dl.Radius
	case *metadata.SurfaceGrid:
		return surf.MeshBounds.IntersectsSphere(dl.Transformed, dl.Radius)
	case *metadata.SurfaceTriangles:
		return surf.Bounds.IntersectsSphere(dl.Transformed, dl.Radius)
	}
	return false
}
