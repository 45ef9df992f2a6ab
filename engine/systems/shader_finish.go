package systems

import (
	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// collapse describes a pair of stage blend functions that one multitexture
// stage can reproduce.
type collapse struct {
	blendA metadata.StateBits
	blendB metadata.StateBits
	env    metadata.CollapseType
	blend  metadata.StateBits
}

const (
	blendFilter      = metadata.SrcBlendDstColor | metadata.DstBlendZero
	blendFilterAlt   = metadata.SrcBlendZero | metadata.DstBlendSrcColor
	blendAdd         = metadata.SrcBlendOne | metadata.DstBlendOne
	blendOpaqueFirst = metadata.StateBits(0)
)

var collapseTable = []collapse{
	{blendOpaqueFirst, blendFilterAlt, metadata.CollapseModulate, 0},
	{blendOpaqueFirst, blendFilter, metadata.CollapseModulate, 0},
	{blendFilter, blendFilter, metadata.CollapseModulate, blendFilter},
	{blendFilterAlt, blendFilter, metadata.CollapseModulate, blendFilter},
	{blendFilter, blendFilterAlt, metadata.CollapseModulate, blendFilter},
	{blendFilterAlt, blendFilterAlt, metadata.CollapseModulate, blendFilter},
	{blendOpaqueFirst, blendAdd, metadata.CollapseAdd, 0},
	{blendAdd, blendAdd, metadata.CollapseAdd, blendAdd},
}

/**
 * @brief Finalizes a parsed shader and registers it: assigns its handle,
 * adds it to the lookup table and inserts it into the sort order.
 */
func (ss *ShaderSystem) FinishShader(sh *metadata.Shader) *metadata.Shader {
	ss.finalize(sh)

	sh.Index = len(ss.Shaders)
	ss.Shaders = append(ss.Shaders, sh)
	ss.Lookup[sh.Name] = append(ss.Lookup[sh.Name], sh)
	ss.SortNewShader(sh)
	return sh
}

// finalize derives everything the parser leaves implicit: sort class, fog
// color adjustment, merged stages, fog pass and the dynamic light stage.
func (ss *ShaderSystem) finalize(sh *metadata.Shader) {
	if sh.IsSky {
		sh.Sort = metadata.SortEnvironment
	}
	if sh.PolygonOffset && sh.Sort == metadata.SortBad {
		sh.Sort = metadata.SortDecal
	}

	hasLightmapStage := false
	stages := make([]*metadata.ShaderStage, 0, len(sh.Stages))
	for _, st := range sh.Stages {
		if st == nil || !st.Active {
			continue
		}
		if st.Bundle[0].Images[0] == nil {
			core.LogWarn("shader '%s' has a stage with no image", sh.Name)
			continue
		}

		// default texture coordinate generation
		if st.Bundle[0].IsLightmap {
			if st.Bundle[0].TCGen == metadata.TCGenBad {
				st.Bundle[0].TCGen = metadata.TCGenLightmap
			}
			hasLightmapStage = true
		} else if st.Bundle[0].TCGen == metadata.TCGenBad {
			st.Bundle[0].TCGen = metadata.TCGenTexture
		}

		first := st
		if len(stages) > 0 {
			first = stages[0]
		}
		if st.StateBits.Blended() && first.StateBits.Blended() {
			blend := st.StateBits & metadata.BlendBits
			switch blend {
			case metadata.SrcBlendOne | metadata.DstBlendOne,
				metadata.SrcBlendZero | metadata.DstBlendOneMinusSrcColor:
				// fading the color toward black keeps additive stages neutral
				st.AdjustColorsForFog = metadata.ACFFModulateRGB
			case metadata.SrcBlendSrcAlpha | metadata.DstBlendOneMinusSrcAlpha:
				st.AdjustColorsForFog = metadata.ACFFModulateAlpha
			case metadata.SrcBlendOne | metadata.DstBlendOneMinusSrcAlpha:
				st.AdjustColorsForFog = metadata.ACFFModulateRGBA
			}

			if sh.Sort == metadata.SortBad {
				if st.StateBits&metadata.DepthMaskTrue != 0 {
					sh.Sort = metadata.SortSeeThrough
				} else {
					sh.Sort = metadata.SortBlend0
				}
			}
		}
		stages = append(stages, st)
	}
	sh.Stages = stages

	if sh.Sort == metadata.SortBad {
		sh.Sort = metadata.SortOpaque
	}

	ss.CollapseStages(sh)

	if sh.LightmapIndex >= 0 && !hasLightmapStage {
		core.LogWarn("shader '%s' has lightmap but no lightmap stage", sh.Name)
		sh.LightmapIndex = metadata.LIGHTMAP_NONE
	}

	sh.NumUnfoggedPasses = len(sh.Stages)

	// fog shaders have no stages of their own
	if len(sh.Stages) == 0 && !sh.IsSky {
		sh.Sort = metadata.SortFog
	}

	switch {
	case sh.Sort <= metadata.SortOpaque:
		sh.FogPass = metadata.FogPassEqual
	case sh.IsFogVolume():
		sh.FogPass = metadata.FogPassLessEqual
	default:
		sh.FogPass = metadata.FogPassNone
	}

	sh.LightingStage, sh.LightingBundle = findLightingStage(sh)
}

// findLightingStage picks the stage whose diffuse texture dynamic light
// passes modulate, or -1 when the shader cannot receive dynamic light.
func findLightingStage(sh *metadata.Shader) (int, int) {
	if sh.IsSky || sh.Sort == metadata.SortEnvironment || sh.Sort >= metadata.SortFog || sh.IsFogVolume() {
		return -1, 0
	}
	if sh.SurfaceFlags&(metadata.SURF_NODLIGHT|metadata.SURF_SKY) != 0 {
		return -1, 0
	}

	for i, st := range sh.Stages {
		bundle := 0
		if st.Bundle[0].IsLightmap {
			// a merged lightmap stage carries the diffuse texture in its second bundle
			if st.MultitextureEnv == metadata.CollapseNone || st.Bundle[1].IsLightmap {
				continue
			}
			bundle = 1
		}
		b := &st.Bundle[bundle]
		if b.TCGen != metadata.TCGenTexture || b.IsVideoMap {
			continue
		}
		blend := st.StateBits & metadata.BlendBits
		if blend == blendAdd || st.StateBits.ReadsDestination() {
			continue
		}
		return i, bundle
	}
	return -1, 0
}

/**
 * @brief Merges adjacent stage pairs into single multitexture stages where a
 * known blend environment reproduces the two pass result. Pairs are
 * considered greedily from the first stage.
 */
func (ss *ShaderSystem) CollapseStages(sh *metadata.Shader) {
	if len(sh.Stages) < 2 {
		return
	}
	out := make([]*metadata.ShaderStage, 0, len(sh.Stages))
	for i := 0; i < len(sh.Stages); {
		if i+1 < len(sh.Stages) {
			if merged := ss.collapsePair(sh, sh.Stages[i], sh.Stages[i+1]); merged != nil {
				out = append(out, merged)
				i += 2
				continue
			}
		}
		out = append(out, sh.Stages[i])
		i++
	}
	if len(out) != len(sh.Stages) {
		core.LogDebug("shader '%s': collapsed %d stages into %d", sh.Name, len(sh.Stages), len(out))
	}
	sh.Stages = out
}

func (ss *ShaderSystem) collapsePair(sh *metadata.Shader, a, b *metadata.ShaderStage) *metadata.ShaderStage {
	if !a.Active || !b.Active {
		return nil
	}
	if a.MultitextureEnv != metadata.CollapseNone || b.MultitextureEnv != metadata.CollapseNone {
		return nil
	}
	if a.IsDetail != b.IsDetail || a.DepthFade || b.DepthFade {
		return nil
	}
	if b.Bundle[0].IsVideoMap {
		return nil
	}

	mask := ^(metadata.BlendBits | metadata.DepthMaskTrue)
	if a.StateBits&mask != b.StateBits&mask {
		return nil
	}

	var entry *collapse
	for i := range collapseTable {
		c := &collapseTable[i]
		if c.blendA == a.StateBits&metadata.BlendBits && c.blendB == b.StateBits&metadata.BlendBits {
			entry = c
			break
		}
	}
	if entry == nil {
		return nil
	}

	if !ss.opaqueWhite(sh, b) {
		return nil
	}

	merged := *a
	merged.Bundle[1] = b.Bundle[0]
	merged.MultitextureEnv = entry.env
	merged.StateBits = (a.StateBits &^ metadata.BlendBits) | entry.blend
	return &merged
}

// opaqueWhite reports whether the stage's generators produce constant
// opaque white, so its color can be folded into the previous stage.
func (ss *ShaderSystem) opaqueWhite(sh *metadata.Shader, st *metadata.ShaderStage) bool {
	switch st.RGBGen {
	case metadata.CGenIdentity, metadata.CGenIdentityLighting, metadata.CGenConst:
	default:
		return false
	}
	switch st.AlphaGen {
	case metadata.AGenIdentity, metadata.AGenConst, metadata.AGenSkip:
	default:
		return false
	}

	p := ss.sample
	p.Begin(sh, 0)
	p.NumVertexes = len(p.XYZ)
	for i := range p.Colors {
		p.Colors[i] = [4]uint8{}
		p.VertexColors[i] = [4]uint8{}
	}
	p.ComputeColors(st)
	for _, c := range p.Colors[:p.NumVertexes] {
		if c != [4]uint8{255, 255, 255, 255} {
			return false
		}
	}
	return true
}

/**
 * @brief Inserts a finalized shader into the sort order. Shaders of a higher
 * sort move up one place, so OnSortedInsert is told the insertion point and
 * queued sort keys can be renumbered.
 */
func (ss *ShaderSystem) SortNewShader(sh *metadata.Shader) {
	i := len(ss.SortedShaders) - 1
	ss.SortedShaders = append(ss.SortedShaders, nil)
	for ; i >= 0; i-- {
		if ss.SortedShaders[i].Sort <= sh.Sort {
			break
		}
		ss.SortedShaders[i+1] = ss.SortedShaders[i]
		ss.SortedShaders[i+1].SortedIndex++
	}

	if ss.OnSortedInsert != nil {
		ss.OnSortedInsert(i + 1)
	}

	sh.SortedIndex = i + 1
	ss.SortedShaders[i+1] = sh
}
