package views

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

const (
	dlightAtRadius      = 16 // at the edge of a dlight's influence, this amount of light will be added
	dlightMinimumRadius = 16 // never calculate a range less than this to prevent huge light numbers

	ambientScale  = 0.6
	directedScale = 1.0
)

// sunDirection lights entities when the world has no light grid.
var sunDirection = math.NormalizeFast(math.Vec3{0.45, 0.3, 0.9})

// SetupEntityLighting computes the ambient color, directed color and light
// direction of an entity from the light grid and the view's dynamic lights.
// The light direction is returned in the entity's space.
func (vis *Visibility) SetupEntityLighting(view *View, ent *metadata.SceneEntity) {
	if ent.LightingCalculated {
		return
	}
	ent.LightingCalculated = true
	s := &vis.Settings

	// trace a sample point down to find ambient light
	lightOrigin := ent.E.Origin
	if ent.E.RenderFX&metadata.RF_LIGHTING_ORIGIN != 0 {
		// separate lightOrigins are needed so an object that is sinking into the ground can still be lit
		lightOrigin = ent.E.LightingOrigin
	}

	// if NOWORLDMODEL, only use dynamic lights (menu system, etc)
	if view.RefDef.RDFlags&metadata.RDF_NOWORLDMODEL == 0 && vis.World != nil && len(vis.World.LightGridData) > 0 {
		vis.setupEntityLightingGrid(ent, lightOrigin)
	} else {
		v := s.IdentityLight * 150
		ent.AmbientLight = math.Vec3{v, v, v}
		ent.DirectedLight = math.Vec3{v, v, v}
		ent.LightDir = sunDirection
	}

	// give everything a minimum light add
	minLight := s.IdentityLight * 32
	ent.AmbientLight = ent.AmbientLight.Add(math.Vec3{minLight, minLight, minLight})

	// modify the light by dynamic lights
	d := ent.DirectedLight.Len()
	lightDir := ent.LightDir.Mul(d)

	for _, dl := range view.Dlights {
		dir := dl.Origin.Sub(lightOrigin)
		d := math.Normalize(&dir)
		power := dlightAtRadius * (dl.Radius * dl.Radius)
		if d < dlightMinimumRadius {
			d = dlightMinimumRadius
		}
		d = power / (d * d)

		ent.DirectedLight = math.MA(ent.DirectedLight, d, dl.Color)
		lightDir = math.MA(lightDir, d, dir)
	}

	// clamp ambient
	limit := float32(s.IdentityLightByte)
	for i := 0; i < 3; i++ {
		if ent.AmbientLight[i] > limit {
			ent.AmbientLight[i] = limit
		}
	}

	// save out the byte packet version
	ent.AmbientLightInt = [4]uint8{
		math.ClampByte(ent.AmbientLight[0]),
		math.ClampByte(ent.AmbientLight[1]),
		math.ClampByte(ent.AmbientLight[2]),
		0xff,
	}

	// transform the direction to local space
	math.Normalize(&lightDir)
	ent.LightDir = math.Vec3{
		lightDir.Dot(ent.E.Axis[0]),
		lightDir.Dot(ent.E.Axis[1]),
		lightDir.Dot(ent.E.Axis[2]),
	}
}

// setupEntityLightingGrid trilinearly samples the world light grid. Samples
// inside solid geometry (all black) are ignored.
func (vis *Visibility) setupEntityLightingGrid(ent *metadata.SceneEntity, lightOrigin math.Vec3) {
	w := vis.World
	lightOrigin = lightOrigin.Sub(w.LightGridOrigin)

	var pos [3]int
	var frac [3]float32
	for i := 0; i < 3; i++ {
		v := lightOrigin[i] * w.LightGridInverseSize[i]
		fl := float32(int(v))
		if v < 0 && fl != v {
			fl--
		}
		pos[i] = int(fl)
		frac[i] = v - fl
		if pos[i] < 0 {
			pos[i] = 0
		} else if pos[i] >= w.LightGridBounds[i]-1 {
			pos[i] = w.LightGridBounds[i] - 1
		}
	}

	var ambient, directed, direction math.Vec3

	// trilerp the light value
	gridStep := [3]int{8, 8 * w.LightGridBounds[0], 8 * w.LightGridBounds[0] * w.LightGridBounds[1]}
	base := pos[0]*gridStep[0] + pos[1]*gridStep[1] + pos[2]*gridStep[2]

	var totalFactor float32
	for i := 0; i < 8; i++ {
		factor := float32(1)
		offset := base
		j := 0
		for ; j < 3; j++ {
			if i&(1<<j) != 0 {
				if pos[j]+1 > w.LightGridBounds[j]-1 {
					break // ignore values outside lightgrid
				}
				factor *= frac[j]
				offset += gridStep[j]
			} else {
				factor *= 1 - frac[j]
			}
		}
		if j != 3 || offset+8 > len(w.LightGridData) {
			continue
		}
		data := w.LightGridData[offset : offset+8]
		if int(data[0])+int(data[1])+int(data[2]) == 0 {
			continue // ignore samples in walls
		}
		totalFactor += factor
		ambient = ambient.Add(math.Vec3{float32(data[0]), float32(data[1]), float32(data[2])}.Mul(factor))
		directed = directed.Add(math.Vec3{float32(data[3]), float32(data[4]), float32(data[5])}.Mul(factor))
		normal := math.DecodeLatLong(uint16(data[7])<<8 | uint16(data[6]))
		direction = math.MA(direction, factor, normal)
	}

	if totalFactor > 0 && totalFactor < 0.99 {
		totalFactor = 1 / totalFactor
		ambient = ambient.Mul(totalFactor)
		directed = directed.Mul(totalFactor)
	}

	ent.AmbientLight = ambient.Mul(ambientScale)
	ent.DirectedLight = directed.Mul(directedScale)
	math.Normalize(&direction)
	ent.LightDir = direction
}
