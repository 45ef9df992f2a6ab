package math

// NewPlane builds a plane and fills in its classification data.
func NewPlane(normal Vec3, dist float32) Plane {
	p := Plane{Normal: normal, Dist: dist}
	p.Type = PlaneTypeForNormal(normal)
	p.SetSignBits()
	return p
}

// PlaneTypeForNormal returns the axial type of a normal, or PlaneNonAxial.
func PlaneTypeForNormal(n Vec3) uint8 {
	switch {
	case n[0] == 1.0:
		return PlaneX
	case n[1] == 1.0:
		return PlaneY
	case n[2] == 1.0:
		return PlaneZ
	}
	return PlaneNonAxial
}

// SetSignBits caches which normal components are negative for the box test.
func (p *Plane) SetSignBits() {
	bits := uint8(0)
	for j := 0; j < 3; j++ {
		if p.Normal[j] < 0 {
			bits |= 1 << j
		}
	}
	p.SignBits = bits
}

// Distance is the signed distance from the plane to point.
func (p *Plane) Distance(point Vec3) float32 {
	return p.Normal.Dot(point) - p.Dist
}

// BoxOnPlaneSide classifies an axis aligned box against a plane, returning
// SideFront, SideBack or SideCross.
func BoxOnPlaneSide(mins, maxs Vec3, p *Plane) int {
	// fast axial cases
	if p.Type < PlaneNonAxial {
		if p.Dist <= mins[p.Type] {
			return SideFront
		}
		if p.Dist >= maxs[p.Type] {
			return SideBack
		}
		return SideCross
	}

	// general case
	var dist [2]float32
	for i := 0; i < 3; i++ {
		b := (p.SignBits >> i) & 1
		dist[b] += p.Normal[i] * maxs[i]
		dist[b^1] += p.Normal[i] * mins[i]
	}

	sides := 0
	if dist[0] >= p.Dist {
		sides = SideFront
	}
	if dist[1] < p.Dist {
		sides |= SideBack
	}
	return sides
}
