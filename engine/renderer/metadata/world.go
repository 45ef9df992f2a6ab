package metadata

import "github.com/spaghettifunk/tessera/engine/math"

/** @brief Contents value of an internal BSP node; leaves carry their real contents. */
const CONTENTS_NODE int = -1

/**
 * @brief A BSP surface together with its traversal stamps.
 */
type WorldSurface struct {
	/** @brief Traversal generation in which the surface was last reached through a leaf. */
	ViewCount int
	/** @brief Traversal generation in which the surface last passed culling. */
	VisCount int
	/** @brief Dynamic light generation in which the surface was last lit. */
	LightCount int

	Shader   *Shader
	FogIndex int
	Data     Surface

	/** @brief Shader reference of the map file, resolved when the world is loaded. */
	ShaderName  string
	LightmapNum int
}

/**
 * @brief A BSP node or leaf. Leaves have Contents != CONTENTS_NODE.
 */
type Node struct {
	Contents int
	/** @brief PVS generation stamp; nodes not stamped this generation are skipped. */
	VisFrame int
	Mins     math.Vec3
	Maxs     math.Vec3
	Parent   *Node

	// node specific
	Plane    *math.Plane
	Children [2]*Node

	// leaf specific
	Cluster      int
	Area         int
	MarkSurfaces []*WorldSurface
}

// IsLeaf reports whether the node is a leaf.
func (n *Node) IsLeaf() bool {
	return n.Contents != CONTENTS_NODE
}

/** @brief A fog volume. */
type Fog struct {
	OriginalBrushNumber int
	Bounds              math.Bounds
	Parms               FogParms
	/** @brief Packed RGBA fog color. */
	ColorInt [4]uint8
	/** @brief Inverse of the opaque depth, scaled for the fog texture. */
	TCScale float32
	/** @brief Set when the volume has a visible surface plane. */
	HasSurface bool
	/** @brief Visible surface plane (normal, dist). */
	Surface math.Vec4
}

/** @brief A brush model: a range of world surfaces moved by an entity. */
type BModel struct {
	Bounds   math.Bounds
	Surfaces []*WorldSurface
}

/**
 * @brief The loaded level: BSP tree, surfaces, fog volumes, visibility and
 * light grid. Immutable during a frame apart from the traversal stamps.
 */
type World struct {
	Name     string
	BaseName string

	Planes   []math.Plane
	Nodes    []Node
	Surfaces []WorldSurface
	BModels  []BModel

	/** @brief Fog 0 is unused so that fog index 0 means no fog. */
	Fogs []Fog

	NumClusters  int
	ClusterBytes int
	/** @brief NumClusters*ClusterBytes PVS bits; nil means everything is visible. */
	Vis []byte
	/** @brief All-visible row used when Vis is nil or the cluster is invalid. */
	NoVis []byte

	LightGridOrigin      math.Vec3
	LightGridSize        math.Vec3
	LightGridInverseSize math.Vec3
	LightGridBounds      [3]int
	/** @brief 8 bytes per cell: ambient rgb, directed rgb, lat/long direction. */
	LightGridData []byte

	/** @brief Lightmap pages indexed by a surface shader's lightmap number. */
	Lightmaps []LightmapImage
}

/** @brief Raw lightmap page as stored by the map compiler. */
type LightmapImage struct {
	Width  int
	Height int
	/** @brief Width*Height RGB triples before overbright shifting. */
	RGB []byte
}

// Root returns the head node of the BSP tree.
func (w *World) Root() *Node {
	return &w.Nodes[0]
}

// ClusterPVS returns the visibility row of a cluster.
func (w *World) ClusterPVS(cluster int) []byte {
	if w.Vis == nil || cluster < 0 || cluster >= w.NumClusters {
		if len(w.NoVis) < w.ClusterBytes {
			w.NoVis = make([]byte, w.ClusterBytes)
			for i := range w.NoVis {
				w.NoVis[i] = 0xff
			}
		}
		return w.NoVis
	}
	return w.Vis[cluster*w.ClusterBytes : (cluster+1)*w.ClusterBytes]
}

// PointInLeaf descends the tree to the leaf containing p.
func (w *World) PointInLeaf(p math.Vec3) *Node {
	node := w.Root()
	for !node.IsLeaf() {
		if node.Plane.Distance(p) > 0 {
			node = node.Children[0]
		} else {
			node = node.Children[1]
		}
	}
	return node
}

// LinkParents fills in every node's Parent pointer.
func (w *World) LinkParents() {
	var link func(n, parent *Node)
	link = func(n, parent *Node) {
		n.Parent = parent
		if n.IsLeaf() {
			return
		}
		link(n.Children[0], n)
		link(n.Children[1], n)
	}
	if len(w.Nodes) > 0 {
		link(w.Root(), nil)
	}
}
