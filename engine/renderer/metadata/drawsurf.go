package metadata

import "github.com/spaghettifunk/tessera/engine/math"

// Sort key layout: shader sorted index, entity number, fog number and the
// dynamic light flag packed into one word, compared as an unsigned integer.
const (
	QSORT_SHADERNUM_SHIFT = 17
	QSORT_SHADERNUM_BITS  = 14
	QSORT_ENTITYNUM_SHIFT = 7
	QSORT_ENTITYNUM_BITS  = 10
	QSORT_FOGNUM_SHIFT    = 2
	QSORT_FOGNUM_BITS     = 5

	QSORT_SHADERNUM_MASK = (1 << QSORT_SHADERNUM_BITS) - 1
	QSORT_ENTITYNUM_MASK = (1 << QSORT_ENTITYNUM_BITS) - 1
	QSORT_FOGNUM_MASK    = (1 << QSORT_FOGNUM_BITS) - 1
)

// lodEpsilon keeps the metric finite when the viewer sits on the origin.
const lodEpsilon = 0.001

/** @brief A surface queued for the main color pass. */
type DrawSurf struct {
	Sort    uint32
	Surface Surface
	/**
	 * @brief Bounding radius over distance to the viewer, zero for surfaces
	 * without a bounding sphere. Larger values mean a denser tessellation.
	 */
	Lod float32
}

/** @brief A surface queued for an additive dynamic light pass. */
type LitSurf struct {
	Sort    uint32
	Surface Surface
	Next    *LitSurf
}

// ComposeSortKey packs a sort key. Values out of range are masked.
func ComposeSortKey(sortedIndex, entityNum, fogNum int, dlight bool) uint32 {
	key := uint32(sortedIndex&QSORT_SHADERNUM_MASK)<<QSORT_SHADERNUM_SHIFT |
		uint32(entityNum&QSORT_ENTITYNUM_MASK)<<QSORT_ENTITYNUM_SHIFT |
		uint32(fogNum&QSORT_FOGNUM_MASK)<<QSORT_FOGNUM_SHIFT
	if dlight {
		key |= 1
	}
	return key
}

// DecomposeSortKey unpacks a sort key.
func DecomposeSortKey(key uint32) (sortedIndex, entityNum, fogNum int, dlight bool) {
	sortedIndex = int(key>>QSORT_SHADERNUM_SHIFT) & QSORT_SHADERNUM_MASK
	entityNum = int(key>>QSORT_ENTITYNUM_SHIFT) & QSORT_ENTITYNUM_MASK
	fogNum = int(key>>QSORT_FOGNUM_SHIFT) & QSORT_FOGNUM_MASK
	dlight = key&1 != 0
	return
}

// WithSortedIndex returns key with its shader index replaced.
func WithSortedIndex(key uint32, sortedIndex int) uint32 {
	key &^= QSORT_SHADERNUM_MASK << QSORT_SHADERNUM_SHIFT
	return key | uint32(sortedIndex&QSORT_SHADERNUM_MASK)<<QSORT_SHADERNUM_SHIFT
}

/**
 * @brief Returns radius / max(distance, epsilon) for the bounding sphere of
 * s as seen from viewOrigin. Only grids and triangle soups carry a sphere;
 * every other surface reports zero.
 */
func SurfaceLod(s Surface, viewOrigin math.Vec3) float32 {
	var origin math.Vec3
	var radius float32
	switch t := s.(type) {
	case *SurfaceGrid:
		origin, radius = t.LodOrigin, t.LodRadius
	case *SurfaceTriangles:
		origin, radius = t.LocalOrigin, t.Radius
	default:
		return 0
	}
	return radius / max(origin.Sub(viewOrigin).Len(), lodEpsilon)
}
