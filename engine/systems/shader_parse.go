package systems

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

var errStageSkipped = errors.New("stage skipped")

var skySuffixes = [6]string{"rt", "bk", "lf", "ft", "up", "dn"}

type surfaceParm struct {
	surfaceFlags int
	contents     int
	// contents flags cleared by the parameter
	clearSolid bool
}

var surfaceParms = map[string]surfaceParm{
	// server relevant contents
	"water":       {contents: metadata.CONTENTS_WATER, clearSolid: true},
	"slime":       {contents: metadata.CONTENTS_SLIME, clearSolid: true},
	"lava":        {contents: metadata.CONTENTS_LAVA, clearSolid: true},
	"playerclip":  {contents: metadata.CONTENTS_PLAYERCLIP, clearSolid: true},
	"monsterclip": {contents: metadata.CONTENTS_MONSTERCLIP, clearSolid: true},
	"nodrop":      {contents: metadata.CONTENTS_NODROP, clearSolid: true},
	"nonsolid":    {surfaceFlags: metadata.SURF_NONSOLID, clearSolid: true},

	// utility relevant attributes
	"origin":        {contents: metadata.CONTENTS_ORIGIN, clearSolid: true},
	"trans":         {contents: metadata.CONTENTS_TRANSLUCENT},
	"detail":        {contents: metadata.CONTENTS_DETAIL},
	"structural":    {contents: metadata.CONTENTS_STRUCTURAL},
	"areaportal":    {contents: metadata.CONTENTS_AREAPORTAL, clearSolid: true},
	"clusterportal": {contents: metadata.CONTENTS_CLUSTERPORTAL, clearSolid: true},
	"donotenter":    {contents: metadata.CONTENTS_DONOTENTER, clearSolid: true},

	"fog": {contents: metadata.CONTENTS_FOG, clearSolid: true},
	"sky": {surfaceFlags: metadata.SURF_SKY},

	"lightfilter": {surfaceFlags: metadata.SURF_LIGHTFILTER},
	"alphashadow": {surfaceFlags: metadata.SURF_ALPHASHADOW},
	"hint":        {surfaceFlags: metadata.SURF_HINT},

	// server attributes
	"slick":      {surfaceFlags: metadata.SURF_SLICK},
	"noimpact":   {surfaceFlags: metadata.SURF_NOIMPACT},
	"nomarks":    {surfaceFlags: metadata.SURF_NOMARKS},
	"ladder":     {surfaceFlags: metadata.SURF_LADDER},
	"nodamage":   {surfaceFlags: metadata.SURF_NODAMAGE},
	"metalsteps": {surfaceFlags: metadata.SURF_METALSTEPS},
	"flesh":      {surfaceFlags: metadata.SURF_FLESH},
	"nosteps":    {surfaceFlags: metadata.SURF_NOSTEPS},

	// drawsurf attributes
	"nodraw":     {surfaceFlags: metadata.SURF_NODRAW},
	"pointlight": {surfaceFlags: metadata.SURF_POINTLIGHT},
	"nolightmap": {surfaceFlags: metadata.SURF_NOLIGHTMAP},
	"nodlight":   {surfaceFlags: metadata.SURF_NODLIGHT},
	"dust":       {surfaceFlags: metadata.SURF_DUST},
}

var sortNames = map[string]metadata.ShaderSort{
	"portal":      metadata.SortPortal,
	"sky":         metadata.SortEnvironment,
	"opaque":      metadata.SortOpaque,
	"decal":       metadata.SortDecal,
	"seethrough":  metadata.SortSeeThrough,
	"banner":      metadata.SortBanner,
	"additive":    metadata.SortBlend1,
	"nearest":     metadata.SortNearest,
	"underwater":  metadata.SortUnderwater,
	"environment": metadata.SortEnvironment,
}

var genFuncNames = map[string]metadata.GenFunc{
	"sin":             metadata.GenFuncSin,
	"square":          metadata.GenFuncSquare,
	"triangle":        metadata.GenFuncTriangle,
	"sawtooth":        metadata.GenFuncSawtooth,
	"inversesawtooth": metadata.GenFuncInverseSawtooth,
	"noise":           metadata.GenFuncNoise,
}

var srcBlendNames = map[string]metadata.StateBits{
	"gl_one":                 metadata.SrcBlendOne,
	"gl_zero":                metadata.SrcBlendZero,
	"gl_dst_color":           metadata.SrcBlendDstColor,
	"gl_one_minus_dst_color": metadata.SrcBlendOneMinusDstColor,
	"gl_src_alpha":           metadata.SrcBlendSrcAlpha,
	"gl_one_minus_src_alpha": metadata.SrcBlendOneMinusSrcAlpha,
	"gl_dst_alpha":           metadata.SrcBlendDstAlpha,
	"gl_one_minus_dst_alpha": metadata.SrcBlendOneMinusDstAlpha,
	"gl_src_alpha_saturate":  metadata.SrcBlendAlphaSaturate,
}

var dstBlendNames = map[string]metadata.StateBits{
	"gl_one":                 metadata.DstBlendOne,
	"gl_zero":                metadata.DstBlendZero,
	"gl_src_alpha":           metadata.DstBlendSrcAlpha,
	"gl_one_minus_src_alpha": metadata.DstBlendOneMinusSrcAlpha,
	"gl_dst_alpha":           metadata.DstBlendDstAlpha,
	"gl_one_minus_dst_alpha": metadata.DstBlendOneMinusDstAlpha,
	"gl_src_color":           metadata.DstBlendSrcColor,
	"gl_one_minus_src_color": metadata.DstBlendOneMinusSrcColor,
}

/**
 * @brief Parses the body of one shader block into an unfinished shader.
 */
type shaderParser struct {
	ss  *ShaderSystem
	sh  *metadata.Shader
	tok *scriptTokenizer
}

// NewShader returns a shader with every field at its pre-parse default.
func NewShader(name string, lightmapIndex int) *metadata.Shader {
	return &metadata.Shader{
		Name:          name,
		LightmapIndex: lightmapIndex,
		LightingStage: -1,
		NeedsNormal:   true,
		NeedsST1:      true,
		NeedsST2:      true,
		NeedsColor:    true,
	}
}

func newStage() *metadata.ShaderStage {
	st := &metadata.ShaderStage{}
	st.Bundle[0].VideoMapHandle = -1
	st.Bundle[1].VideoMapHandle = -1
	return st
}

// ParseShaderText parses the text of one shader block, starting at its
// opening brace. Problems inside a stage drop that stage; a structural error
// returns an error and the caller substitutes the default shader.
func (ss *ShaderSystem) ParseShaderText(name string, text string, lightmapIndex int) (*metadata.Shader, error) {
	p := &shaderParser{
		ss:  ss,
		sh:  NewShader(name, lightmapIndex),
		tok: newScriptTokenizer(text),
	}
	if err := p.parse(); err != nil {
		return nil, fmt.Errorf("shader '%s' line %d: %w", name, p.tok.Line(), err)
	}
	return p.sh, nil
}

func (p *shaderParser) warn(format string, args ...interface{}) {
	core.LogWarn("shader '%s' line %d: %s", p.sh.Name, p.tok.Line(), fmt.Sprintf(format, args...))
}

func (p *shaderParser) parse() error {
	sh := p.sh
	if tok := p.tok.Next(true); tok != "{" {
		return fmt.Errorf("expecting '{', found '%s'", tok)
	}

	for {
		tok := p.tok.Next(true)
		if tok == "" {
			return fmt.Errorf("no concluding '}'")
		}
		lower := strings.ToLower(tok)

		switch {
		case tok == "}":
			// ignore shaders that don't have any stages, unless it is a sky or fog
			if len(sh.Stages) == 0 && !sh.IsSky && !sh.IsFogVolume() {
				return fmt.Errorf("no stages")
			}
			sh.ExplicitlyDefined = true
			return nil

		case tok == "{":
			if len(sh.Stages) >= metadata.MAX_SHADER_STAGES {
				return fmt.Errorf("too many stages (max %d)", metadata.MAX_SHADER_STAGES)
			}
			stage, err := p.parseStage()
			if err != nil {
				p.warn("%s", err)
				continue
			}
			stage.Active = true
			sh.Stages = append(sh.Stages, stage)

		// skip stuff that only the editor or map compiler needs
		case strings.HasPrefix(lower, "qer"), strings.HasPrefix(lower, "q3map"), lower == "tesssize":
			p.tok.SkipRestOfLine()

		case lower == "deformvertexes":
			p.parseDeform()

		case lower == "clamptime":
			if v, ok := p.tok.Float(); ok {
				sh.ClampTime = float64(v)
			}

		case lower == "surfaceparm":
			p.parseSurfaceParm()

		case lower == "nomipmaps":
			sh.NoMipMaps = true
			sh.NoPicMip = true

		case lower == "nopicmip":
			sh.NoPicMip = true

		case lower == "polygonoffset":
			sh.PolygonOffset = true

		case lower == "entitymergable":
			sh.EntityMergable = true

		case lower == "fogparms":
			color, ok := p.parseVector()
			if !ok {
				continue
			}
			sh.FogParms.Color = color
			depth, ok := p.tok.Float()
			if !ok {
				p.warn("missing parm for 'fogParms' keyword")
				continue
			}
			sh.FogParms.DepthForOpaque = depth
			// skip any old gradient directions
			p.tok.SkipRestOfLine()

		case lower == "portal":
			sh.Sort = metadata.SortPortal

		case lower == "skyparms":
			p.parseSkyParms()

		case lower == "light":
			p.tok.Next(false)

		case lower == "cull":
			p.parseCull()

		case lower == "sort":
			p.parseSort()

		case lower == "lightmapscalebias":
			var sb [4]float32
			ok := true
			for i := range sb {
				if sb[i], ok = p.tok.Float(); !ok {
					break
				}
			}
			if !ok {
				p.warn("missing parms for 'lightmapScaleBias'")
				continue
			}
			sh.LightmapScaleBias = sb
			sh.HasLightmapScale = true

		default:
			p.warn("unknown general shader parameter '%s'", tok)
			p.tok.SkipRestOfLine()
		}
	}
}

// findImage resolves a texture for a stage. A missing texture is replaced by
// the default texture.
func (p *shaderParser) findImage(name string, clamp bool) *metadata.Texture {
	ts := p.ss.textureSystem
	switch strings.ToLower(name) {
	case "$whiteimage", "*white":
		return ts.WhiteTexture
	}

	var flags metadata.TextureFlagBits
	if !p.sh.NoMipMaps {
		flags |= metadata.TextureFlagMipmap
	}
	if !p.sh.NoPicMip {
		flags |= metadata.TextureFlagPicmip
	}
	if clamp {
		flags |= metadata.TextureFlagClampToEdge
	}
	t, err := ts.Acquire(name, flags)
	if err != nil {
		p.warn("could not find image '%s': %s", name, err)
		return ts.DefaultTexture
	}
	return t
}

func (p *shaderParser) lightmapImage() *metadata.Texture {
	if p.sh.LightmapIndex < 0 {
		return p.ss.textureSystem.WhiteTexture
	}
	if t := p.ss.textureSystem.Lightmap(p.sh.LightmapIndex); t != nil {
		return t
	}
	return p.ss.textureSystem.WhiteTexture
}

// skipStage consumes the rest of a stage after an error.
func (p *shaderParser) skipStage() {
	for {
		tok := p.tok.Next(true)
		if tok == "" || tok == "}" {
			return
		}
	}
}

func (p *shaderParser) stageError(format string, args ...interface{}) (*metadata.ShaderStage, error) {
	p.skipStage()
	return nil, fmt.Errorf("%w: %s", errStageSkipped, fmt.Sprintf(format, args...))
}

func (p *shaderParser) parseStage() (*metadata.ShaderStage, error) {
	stage := newStage()
	depthMaskBits := metadata.DepthMaskTrue
	depthMaskExplicit := false
	var blendSrcBits, blendDstBits, atestBits, depthFuncBits metadata.StateBits

	for {
		tok := p.tok.Next(true)
		if tok == "" {
			return nil, fmt.Errorf("no matching '}' found")
		}
		if tok == "}" {
			break
		}
		lower := strings.ToLower(tok)

		switch {
		case lower == "map", lower == "clampmap":
			name := p.tok.Next(false)
			if name == "" {
				return p.stageError("missing parameter for '%s' keyword", tok)
			}
			if strings.EqualFold(name, "$lightmap") {
				stage.Bundle[0].IsLightmap = true
				stage.Bundle[0].Images[0] = p.lightmapImage()
			} else {
				stage.Bundle[0].Images[0] = p.findImage(name, lower == "clampmap")
			}
			stage.Bundle[0].NumImageAnimations = 1

		case lower == "animmap":
			freq, ok := p.tok.Float()
			if !ok {
				return p.stageError("missing parameter for 'animMap' keyword")
			}
			stage.Bundle[0].ImageAnimationSpeed = freq
			for {
				name := p.tok.Next(false)
				if name == "" {
					break
				}
				num := stage.Bundle[0].NumImageAnimations
				if num < metadata.MAX_IMAGE_ANIMATIONS {
					stage.Bundle[0].Images[num] = p.findImage(name, false)
					stage.Bundle[0].NumImageAnimations++
				}
			}
			if stage.Bundle[0].NumImageAnimations == 0 {
				return p.stageError("animMap without frames")
			}

		case lower == "videomap":
			name := p.tok.Next(false)
			if name == "" {
				return p.stageError("missing parameter for 'videoMap' keyword")
			}
			handle, err := p.ss.OpenVideo(name)
			if err != nil {
				return p.stageError("videoMap '%s': %s", name, err)
			}
			stage.Bundle[0].IsVideoMap = true
			stage.Bundle[0].VideoMapHandle = handle
			stage.Bundle[0].Images[0] = p.ss.textureSystem.Scratch(handle)
			stage.Bundle[0].NumImageAnimations = 1

		case lower == "alphafunc":
			fn := p.tok.Next(false)
			switch strings.ToUpper(fn) {
			case "GT0":
				atestBits = metadata.AlphaTestGT0
			case "LT128":
				atestBits = metadata.AlphaTestLT80
			case "GE128":
				atestBits = metadata.AlphaTestGE80
			default:
				p.warn("invalid alphaFunc name '%s'", fn)
			}

		case lower == "depthfunc":
			fn := strings.ToLower(p.tok.Next(false))
			switch fn {
			case "lequal":
				depthFuncBits = 0
			case "equal":
				depthFuncBits = metadata.DepthFuncEqual
			default:
				p.warn("unknown depthfunc '%s'", fn)
			}

		case lower == "detail":
			stage.IsDetail = true

		case lower == "blendfunc":
			fn := p.tok.Next(false)
			if fn == "" {
				p.warn("missing parm for blendFunc")
				continue
			}
			switch strings.ToLower(fn) {
			case "add":
				blendSrcBits, blendDstBits = metadata.SrcBlendOne, metadata.DstBlendOne
			case "filter":
				blendSrcBits, blendDstBits = metadata.SrcBlendDstColor, metadata.DstBlendZero
			case "blend":
				blendSrcBits, blendDstBits = metadata.SrcBlendSrcAlpha, metadata.DstBlendOneMinusSrcAlpha
			default:
				blendSrcBits = p.blendMode(fn, srcBlendNames, metadata.SrcBlendOne)
				dst := p.tok.Next(false)
				if dst == "" {
					p.warn("missing parm for blendFunc")
					continue
				}
				blendDstBits = p.blendMode(dst, dstBlendNames, metadata.DstBlendOne)
			}
			// clear depth mask for blended surfaces
			if !depthMaskExplicit {
				depthMaskBits = 0
			}

		case lower == "rgbgen":
			p.parseRGBGen(stage)

		case lower == "alphagen":
			p.parseAlphaGen(stage)

		case lower == "texgen", lower == "tcgen":
			p.parseTCGen(stage)

		case lower == "tcmod":
			p.parseTexMod(stage)

		case lower == "depthmask", lower == "depthwrite":
			depthMaskBits = metadata.DepthMaskTrue
			depthMaskExplicit = true

		case strings.HasSuffix(lower, "_depthfade"):
			scale, ok1 := p.tok.Float()
			bias, ok2 := p.tok.Float()
			if !ok1 || !ok2 {
				p.warn("missing parms for '%s'", tok)
				continue
			}
			stage.DepthFade = true
			stage.DepthFadeScale = scale
			stage.DepthFadeBias = bias

		default:
			p.warn("unknown parameter '%s'", tok)
			p.tok.SkipRestOfLine()
		}
	}

	// if cgen isn't explicitly specified, use either identity or identitylighting
	if stage.RGBGen == metadata.CGenBad {
		if blendSrcBits == 0 || blendSrcBits == metadata.SrcBlendOne || blendSrcBits == metadata.SrcBlendSrcAlpha {
			stage.RGBGen = metadata.CGenIdentityLighting
		} else {
			stage.RGBGen = metadata.CGenIdentity
		}
	}

	// implicitly assume that a GL_ONE GL_ZERO blend mask disables blending
	if blendSrcBits == metadata.SrcBlendOne && blendDstBits == metadata.DstBlendZero {
		blendSrcBits, blendDstBits = 0, 0
		depthMaskBits = metadata.DepthMaskTrue
	}

	// decide which agens we can skip
	if stage.AlphaGen == metadata.AGenIdentity {
		if stage.RGBGen == metadata.CGenIdentity || stage.RGBGen == metadata.CGenLightingDiffuse {
			stage.AlphaGen = metadata.AGenSkip
		}
	}

	stage.StateBits = depthMaskBits | blendSrcBits | blendDstBits | atestBits | depthFuncBits
	return stage, nil
}

func (p *shaderParser) blendMode(name string, table map[string]metadata.StateBits, fallback metadata.StateBits) metadata.StateBits {
	if bits, ok := table[strings.ToLower(name)]; ok {
		return bits
	}
	p.warn("unknown blend mode '%s', substituting GL_ONE", name)
	return fallback
}

// parseVector reads ( x y z ).
func (p *shaderParser) parseVector() (math.Vec3, bool) {
	var v math.Vec3
	if tok := p.tok.Next(false); tok != "(" {
		p.warn("missing parenthesis")
		return v, false
	}
	for i := 0; i < 3; i++ {
		f, ok := p.tok.Float()
		if !ok {
			p.warn("missing vector element")
			return v, false
		}
		v[i] = f
	}
	if tok := p.tok.Next(false); tok != ")" {
		p.warn("missing parenthesis")
		return v, false
	}
	return v, true
}

func (p *shaderParser) parseWaveForm(wave *metadata.WaveForm) bool {
	name := p.tok.Next(false)
	if name == "" {
		p.warn("missing waveform parm")
		return false
	}
	fn, ok := genFuncNames[strings.ToLower(name)]
	if !ok {
		p.warn("invalid genfunc name '%s'", name)
		fn = metadata.GenFuncSin
	}
	wave.Func = fn

	for _, dst := range []*float32{&wave.Base, &wave.Amplitude, &wave.Phase, &wave.Frequency} {
		v, ok := p.tok.Float()
		if !ok {
			p.warn("missing waveform parm")
			return false
		}
		*dst = v
	}
	return true
}

func (p *shaderParser) parseRGBGen(stage *metadata.ShaderStage) {
	tok := p.tok.Next(false)
	switch strings.ToLower(tok) {
	case "wave":
		p.parseWaveForm(&stage.RGBWave)
		stage.RGBGen = metadata.CGenWaveform
	case "const":
		color, ok := p.parseVector()
		if !ok {
			return
		}
		stage.ConstantColor[0] = math.ClampByte(255 * color[0])
		stage.ConstantColor[1] = math.ClampByte(255 * color[1])
		stage.ConstantColor[2] = math.ClampByte(255 * color[2])
		stage.RGBGen = metadata.CGenConst
	case "identity":
		stage.RGBGen = metadata.CGenIdentity
	case "identitylighting":
		stage.RGBGen = metadata.CGenIdentityLighting
	case "entity":
		stage.RGBGen = metadata.CGenEntity
	case "oneminusentity":
		stage.RGBGen = metadata.CGenOneMinusEntity
	case "vertex":
		stage.RGBGen = metadata.CGenVertex
		if stage.AlphaGen == metadata.AGenIdentity {
			stage.AlphaGen = metadata.AGenVertex
		}
	case "exactvertex":
		stage.RGBGen = metadata.CGenExactVertex
	case "lightingdiffuse":
		stage.RGBGen = metadata.CGenLightingDiffuse
	case "oneminusvertex":
		stage.RGBGen = metadata.CGenOneMinusVertex
	default:
		p.warn("unknown rgbGen parameter '%s'", tok)
	}
}

func (p *shaderParser) parseAlphaGen(stage *metadata.ShaderStage) {
	tok := p.tok.Next(false)
	switch strings.ToLower(tok) {
	case "wave":
		p.parseWaveForm(&stage.AlphaWave)
		stage.AlphaGen = metadata.AGenWaveform
	case "const":
		v, ok := p.tok.Float()
		if !ok {
			p.warn("missing parameter for alphaGen const")
			return
		}
		stage.ConstantColor[3] = math.ClampByte(255 * v)
		stage.AlphaGen = metadata.AGenConst
	case "identity":
		stage.AlphaGen = metadata.AGenIdentity
	case "entity":
		stage.AlphaGen = metadata.AGenEntity
	case "oneminusentity":
		stage.AlphaGen = metadata.AGenOneMinusEntity
	case "vertex":
		stage.AlphaGen = metadata.AGenVertex
	case "lightingspecular":
		stage.AlphaGen = metadata.AGenLightingSpecular
	case "oneminusvertex":
		stage.AlphaGen = metadata.AGenOneMinusVertex
	case "portal":
		stage.AlphaGen = metadata.AGenPortal
		v, ok := p.tok.Float()
		if !ok {
			p.sh.PortalRange = 256
			p.warn("missing range parameter for alphaGen portal, defaulting to 256")
			return
		}
		p.sh.PortalRange = v
	default:
		p.warn("unknown alphaGen parameter '%s'", tok)
	}
}

func (p *shaderParser) parseTCGen(stage *metadata.ShaderStage) {
	tok := p.tok.Next(false)
	bundle := &stage.Bundle[0]
	switch strings.ToLower(tok) {
	case "environment":
		bundle.TCGen = metadata.TCGenEnvironmentMapped
	case "lightmap":
		bundle.TCGen = metadata.TCGenLightmap
	case "texture", "base":
		bundle.TCGen = metadata.TCGenTexture
	case "vector":
		s, ok1 := p.parseVector()
		t, ok2 := p.parseVector()
		if !ok1 || !ok2 {
			return
		}
		bundle.TCGenVectors = [2]math.Vec3{s, t}
		bundle.TCGen = metadata.TCGenVector
	default:
		p.warn("unknown texgen parm '%s'", tok)
	}
}

func (p *shaderParser) floats(dst ...*float32) bool {
	for _, d := range dst {
		v, ok := p.tok.Float()
		if !ok {
			return false
		}
		*d = v
	}
	return true
}

func (p *shaderParser) parseTexMod(stage *metadata.ShaderStage) {
	bundle := &stage.Bundle[0]
	if len(bundle.TexMods) >= metadata.MAX_TEXMODS {
		p.warn("too many tcMod stages (max %d)", metadata.MAX_TEXMODS)
		p.tok.SkipRestOfLine()
		return
	}

	var tm metadata.TexModInfo
	tok := p.tok.Next(false)
	ok := true
	switch strings.ToLower(tok) {
	case "turb":
		tm.Type = metadata.TModTurbulent
		ok = p.floats(&tm.Wave.Base, &tm.Wave.Amplitude, &tm.Wave.Phase, &tm.Wave.Frequency)
	case "scale":
		tm.Type = metadata.TModScale
		ok = p.floats(&tm.Scale[0], &tm.Scale[1])
	case "scroll":
		tm.Type = metadata.TModScroll
		ok = p.floats(&tm.Scroll[0], &tm.Scroll[1])
	case "stretch":
		tm.Type = metadata.TModStretch
		ok = p.parseWaveForm(&tm.Wave)
	case "transform":
		tm.Type = metadata.TModTransform
		ok = p.floats(&tm.Matrix[0][0], &tm.Matrix[0][1], &tm.Matrix[1][0], &tm.Matrix[1][1], &tm.Translate[0], &tm.Translate[1])
	case "rotate":
		tm.Type = metadata.TModRotate
		ok = p.floats(&tm.RotateSpeed)
	case "entitytranslate":
		tm.Type = metadata.TModEntityTranslate
	default:
		p.warn("unknown tcMod '%s'", tok)
		p.tok.SkipRestOfLine()
		return
	}
	if !ok {
		p.warn("missing parms for tcMod %s", tok)
		p.tok.SkipRestOfLine()
		return
	}
	bundle.TexMods = append(bundle.TexMods, tm)
}

func (p *shaderParser) parseDeform() {
	sh := p.sh
	tok := p.tok.Next(false)
	if tok == "" {
		p.warn("missing deform parm")
		return
	}
	if len(sh.Deforms) >= metadata.MAX_SHADER_DEFORMS {
		p.warn("MAX_SHADER_DEFORMS reached")
		p.tok.SkipRestOfLine()
		return
	}

	var ds metadata.DeformStage
	lower := strings.ToLower(tok)
	switch {
	case lower == "projectionshadow":
		ds.Deformation = metadata.DeformProjectionShadow
	case lower == "autosprite":
		ds.Deformation = metadata.DeformAutosprite
	case lower == "autosprite2":
		ds.Deformation = metadata.DeformAutosprite2
	case strings.HasPrefix(lower, "text"):
		n, err := strconv.Atoi(lower[4:])
		if err != nil || n < 0 || n > 7 {
			n = 0
		}
		ds.Deformation = metadata.DeformText0 + metadata.DeformType(n)
	case lower == "bulge":
		if !p.floats(&ds.BulgeWidth, &ds.BulgeHeight, &ds.BulgeSpeed) {
			p.warn("missing deformVertexes bulge parm")
			return
		}
		ds.Deformation = metadata.DeformBulge
	case lower == "wave":
		div, ok := p.tok.Float()
		if !ok {
			p.warn("missing deformVertexes parm")
			return
		}
		if div != 0 {
			ds.DeformationSpread = 1.0 / div
		} else {
			ds.DeformationSpread = 100.0
			p.warn("illegal div value of 0 in deformVertexes command")
		}
		if !p.parseWaveForm(&ds.DeformationWave) {
			return
		}
		ds.Deformation = metadata.DeformWave
	case lower == "normal":
		if !p.floats(&ds.DeformationWave.Amplitude, &ds.DeformationWave.Frequency) {
			p.warn("missing deformVertexes normal parm")
			return
		}
		ds.Deformation = metadata.DeformNormals
	case lower == "move":
		if !p.floats(&ds.MoveVector[0], &ds.MoveVector[1], &ds.MoveVector[2]) {
			p.warn("missing deformVertexes move parm")
			return
		}
		if !p.parseWaveForm(&ds.DeformationWave) {
			return
		}
		ds.Deformation = metadata.DeformMove
	default:
		p.warn("unknown deformVertexes subtype '%s'", tok)
		p.tok.SkipRestOfLine()
		return
	}
	sh.Deforms = append(sh.Deforms, ds)
}

func (p *shaderParser) parseSkyParms() {
	sh := p.sh
	loadBox := func(box *[6]*metadata.Texture) {
		name := p.tok.Next(false)
		if name == "" {
			p.warn("'skyParms' missing parameter")
			return
		}
		if name == "-" {
			return
		}
		for i, suffix := range skySuffixes {
			box[i] = p.findImage(fmt.Sprintf("%s_%s", name, suffix), true)
		}
	}

	// outer box
	loadBox(&sh.Sky.OuterBox)

	// cloud height
	height, ok := p.tok.Float()
	if !ok {
		p.warn("'skyParms' missing cloudheight")
	}
	if height == 0 {
		height = 512
	}
	sh.Sky.CloudHeight = height

	// inner box
	loadBox(&sh.Sky.InnerBox)

	sh.IsSky = true
}

func (p *shaderParser) parseCull() {
	tok := p.tok.Next(false)
	switch strings.ToLower(tok) {
	case "none", "twosided", "disable":
		p.sh.CullType = metadata.CullTwoSided
	case "back", "backside", "backsided":
		p.sh.CullType = metadata.CullBackSided
	case "front", "frontsided":
		p.sh.CullType = metadata.CullFrontSided
	default:
		p.warn("invalid cull parm '%s'", tok)
	}
}

func (p *shaderParser) parseSort() {
	tok := p.tok.Next(false)
	if tok == "" {
		p.warn("missing sort parameter")
		return
	}
	if s, ok := sortNames[strings.ToLower(tok)]; ok {
		p.sh.Sort = s
		return
	}
	v, err := strconv.ParseFloat(tok, 32)
	if err != nil {
		p.warn("invalid sort parameter '%s'", tok)
		return
	}
	p.sh.Sort = metadata.ShaderSort(v)
}

func (p *shaderParser) parseSurfaceParm() {
	tok := p.tok.Next(false)
	parm, ok := surfaceParms[strings.ToLower(tok)]
	if !ok {
		p.warn("unknown surfaceparm '%s'", tok)
		return
	}
	p.sh.SurfaceFlags |= parm.surfaceFlags
	p.sh.ContentFlags |= parm.contents
	if parm.clearSolid {
		p.sh.ContentFlags &^= metadata.CONTENTS_SOLID
	}
}
