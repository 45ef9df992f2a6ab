package tess

import (
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

// stageIteratorGeneric deforms the batch, draws every stage, then the fog pass.
func (b *Buffer) stageIteratorGeneric() {
	b.DeformVertexes()
	b.IterateStages()

	if b.FogNum != 0 && b.Shader.FogPass != metadata.FogPassNone {
		b.fogPass()
	}
}

// IterateStages evaluates and draws every active stage of the batch shader.
func (b *Buffer) IterateStages() {
	indexes := b.Indexes[:b.NumIndexes]
	for _, stage := range b.Shader.Stages {
		if stage == nil || !stage.Active {
			break
		}
		b.ComputeColors(stage)
		b.ComputeTexCoords(stage)

		state := b.stageState(stage)
		kind := device.PipelineGeneric
		if stage.DepthFade && b.Ctx.Settings.SoftSprites {
			kind = device.PipelineSoftSprite
			state.DepthFade = [2]float32{stage.DepthFadeScale, stage.DepthFadeBias}
		}
		b.draw(kind, state, indexes)
	}
}

func (b *Buffer) stageState(stage *metadata.ShaderStage) *device.State {
	state := &device.State{
		Bits:   stage.StateBits,
		Cull:   b.Shader.CullType,
		TexEnv: stage.MultitextureEnv,
	}
	if b.Shader.PolygonOffset {
		state.Bits |= metadata.PolygonOffset
	}
	if b.Ctx.View != nil {
		state.Mirror = b.Ctx.View.IsMirror
	}
	state.Textures[0] = b.imageHandle(b.AnimatedImage(&stage.Bundle[0]))
	if stage.MultitextureEnv != metadata.CollapseNone {
		state.Textures[1] = b.imageHandle(b.AnimatedImage(&stage.Bundle[1]))
	}
	return state
}

// AnimatedImage picks the frame of an animMap for the current shader time, or
// the streamed texture of a videoMap.
func (b *Buffer) AnimatedImage(bundle *metadata.TextureBundle) *metadata.Texture {
	if bundle.IsVideoMap {
		if b.Ctx.Video != nil {
			if t := b.Ctx.Video(bundle.VideoMapHandle); t != nil {
				return t
			}
		}
		return b.Ctx.Images.White
	}
	if bundle.NumImageAnimations <= 1 {
		return bundle.Images[0]
	}

	// it is necessary to do this messy calc to make sure animations line up
	// exactly with waveforms of the same frequency
	index := int64(b.ShaderTime * float64(bundle.ImageAnimationSpeed) * FUNCTABLE_SIZE)
	index >>= FUNCTABLE_SHIFT
	if index < 0 {
		// may happen with shader time offsets
		index = 0
	}
	return bundle.Images[index%int64(bundle.NumImageAnimations)]
}

// stageIteratorLit draws the additive pass of the current light over the
// batch, using the shader's lighting stage.
func (b *Buffer) stageIteratorLit() {
	if !b.Shader.HasDlightStage() || b.Shader.LightingStage >= len(b.Shader.Stages) {
		return
	}
	b.DeformVertexes()

	if b.ProjectDlight() == 0 {
		return
	}
	indexes := b.DlightIndexes[:b.NumDlightIndexes]

	stage := b.Shader.Stages[b.Shader.LightingStage]
	bits := metadata.SrcBlendDstColor | metadata.DstBlendOne | metadata.DepthFuncEqual
	if b.Light.Additive {
		bits = metadata.SrcBlendOne | metadata.DstBlendOne | metadata.DepthFuncEqual
	}
	// include the alpha test so alpha tested surfaces don't add light where they aren't rendered
	bits |= stage.StateBits & metadata.AlphaTestBits

	state := &device.State{
		Bits:   bits,
		Cull:   b.Shader.CullType,
		Mirror: b.Ctx.View.IsMirror,
	}

	if b.Ctx.Settings.DlightMode == 1 {
		b.ComputeTexCoords(stage)
		b.ComputeColors(stage)
		bundle := b.Shader.LightingBundle
		if bundle != 0 {
			copy(b.STs[0][:b.NumVertexes], b.STs[bundle][:b.NumVertexes])
		}
		state.Textures[0] = b.imageHandle(b.AnimatedImage(&stage.Bundle[bundle]))
		b.Dev.BeginDynamicLight(&device.DynamicLight{
			Origin:   b.Light.Transformed,
			Color:    b.Light.Color,
			Radius:   b.Light.Radius,
			Additive: b.Light.Additive,
		})
		b.draw(device.PipelineDynamicLight, state, indexes)
	} else {
		state.Textures[0] = b.imageHandle(b.Ctx.Images.Dlight)
		b.draw(device.PipelineGeneric, state, indexes)
	}
	b.Counters.LitDraws++
}

// ProjectDlight projects the current light onto the batch: it writes falloff
// texture coordinates and modulated colors for every vertex and collects the
// triangles the light touches into the dynamic light index subset. It returns
// the number of indexes in the subset.
func (b *Buffer) ProjectDlight() int {
	dl := b.Light
	b.NumDlightIndexes = 0
	if dl == nil || dl.Radius <= 0 {
		return 0
	}

	origin := dl.Transformed
	radius := dl.Radius
	scale := 1 / radius

	floatColor := dl.Color.Mul(255)
	if grey := b.Ctx.Settings.Greyscale; grey > 0 {
		luma := Luminance(floatColor[0], floatColor[1], floatColor[2])
		floatColor = math.Vec3{
			math.Lerp(floatColor[0], luma, grey),
			math.Lerp(floatColor[1], luma, grey),
			math.Lerp(floatColor[2], luma, grey),
		}
	}

	st := b.STs[0]
	colors := b.Colors
	clipBits := b.clip
	for i := 0; i < b.NumVertexes; i++ {
		dist := origin.Sub(b.XYZ[i])
		var clip uint8
		var modulate float32

		st[i][0] = 0.5 + dist[0]*scale
		st[i][1] = 0.5 + dist[1]*scale

		if dist.Dot(b.Normal[i]) < 0 {
			clip = 63
		} else {
			if st[i][0] < 0 {
				clip |= 1
			} else if st[i][0] > 1 {
				clip |= 2
			}
			if st[i][1] < 0 {
				clip |= 4
			} else if st[i][1] > 1 {
				clip |= 8
			}

			// modulate the strength based on the height and color
			switch {
			case dist[2] > radius:
				clip |= 16
			case dist[2] < -radius:
				clip |= 32
			default:
				d := dist[2]
				if d < 0 {
					d = -d
				}
				if d < radius*0.5 {
					modulate = 1
				} else {
					modulate = 2 * (radius - d) * scale
				}
			}
		}
		clipBits[i] = clip
		colors[i] = [4]uint8{
			math.ClampByte(floatColor[0] * modulate),
			math.ClampByte(floatColor[1] * modulate),
			math.ClampByte(floatColor[2] * modulate),
			255,
		}
	}

	// build a list of triangles that need light
	n := 0
	for i := 0; i+2 < b.NumIndexes; i += 3 {
		a, bb, c := b.Indexes[i], b.Indexes[i+1], b.Indexes[i+2]
		if clipBits[a]&clipBits[bb]&clipBits[c] != 0 {
			// not lighted
			continue
		}
		b.DlightIndexes[n] = a
		b.DlightIndexes[n+1] = bb
		b.DlightIndexes[n+2] = c
		n += 3
	}
	b.NumDlightIndexes = n
	return n
}
