package vulkan

import (
	"fmt"
	"path/filepath"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	"github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
	"github.com/spaghettifunk/tessera/engine/renderer/metadata"
)

/**
 * @brief Per draw constants shared by every pipeline. The layout must match
 * the push_constant block of the shaders.
 */
type pushConstants struct {
	MVP [16]float32
	/** @brief Clip plane in model space; (0,0,0,1) keeps everything. */
	ClipPlane  [4]float32
	Light      [4]float32
	LightColor [4]float32
	/** @brief useTex0, useTex1, texEnv, alphaFunc. */
	Flags [4]int32
}

const pushConstantsSize = uint32(unsafe.Sizeof(pushConstants{}))

/**
 * @brief Everything that selects a pipeline object. Vulkan bakes blending,
 * depth and raster state into the pipeline, so each distinct key is built
 * once and cached.
 */
type pipelineKey struct {
	dlight     bool
	blend      bool
	src        vk.BlendFactor
	dst        vk.BlendFactor
	depthEqual bool
	depthWrite bool
	depthTest  bool
	line       bool
	offset     bool
	cull       vk.CullModeFlagBits
}

func keyFor(kind device.PipelineKind, state *device.State) pipelineKey {
	bits := state.Bits
	key := pipelineKey{
		dlight:     kind == device.PipelineDynamicLight,
		blend:      bits.Blended(),
		src:        vk.BlendFactorOne,
		dst:        vk.BlendFactorZero,
		depthEqual: bits&metadata.DepthFuncEqual != 0,
		depthWrite: bits&metadata.DepthMaskTrue != 0,
		depthTest:  bits&metadata.DepthTestDisable == 0,
		line:       bits&metadata.PolyModeLine != 0,
		offset:     bits&metadata.PolygonOffset != 0,
		cull:       cullMode(state.Cull, state.Mirror),
	}
	if key.blend {
		key.src = srcFactor(bits.SrcBlend())
		key.dst = dstFactor(bits.DstBlend())
	}
	return key
}

func cullMode(cull metadata.CullType, mirror bool) vk.CullModeFlagBits {
	if cull == metadata.CullTwoSided {
		return vk.CullModeNone
	}
	back := cull == metadata.CullBackSided
	if mirror {
		back = !back
	}
	if back {
		return vk.CullModeBackBit
	}
	return vk.CullModeFrontBit
}

func srcFactor(b metadata.StateBits) vk.BlendFactor {
	switch b {
	case metadata.SrcBlendZero:
		return vk.BlendFactorZero
	case metadata.SrcBlendDstColor:
		return vk.BlendFactorDstColor
	case metadata.SrcBlendOneMinusDstColor:
		return vk.BlendFactorOneMinusDstColor
	case metadata.SrcBlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case metadata.SrcBlendOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case metadata.SrcBlendDstAlpha:
		return vk.BlendFactorDstAlpha
	case metadata.SrcBlendOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	case metadata.SrcBlendAlphaSaturate:
		return vk.BlendFactorSrcAlphaSaturate
	}
	return vk.BlendFactorOne
}

func dstFactor(b metadata.StateBits) vk.BlendFactor {
	switch b {
	case metadata.DstBlendOne:
		return vk.BlendFactorOne
	case metadata.DstBlendSrcColor:
		return vk.BlendFactorSrcColor
	case metadata.DstBlendOneMinusSrcColor:
		return vk.BlendFactorOneMinusSrcColor
	case metadata.DstBlendSrcAlpha:
		return vk.BlendFactorSrcAlpha
	case metadata.DstBlendOneMinusSrcAlpha:
		return vk.BlendFactorOneMinusSrcAlpha
	case metadata.DstBlendDstAlpha:
		return vk.BlendFactorDstAlpha
	case metadata.DstBlendOneMinusDstAlpha:
		return vk.BlendFactorOneMinusDstAlpha
	}
	return vk.BlendFactorZero
}

// shaderFlags packs the texture unit and alpha test state for the fragment stage.
func shaderFlags(state *device.State) [4]int32 {
	var flags [4]int32
	if state.Textures[0] != 0 {
		flags[0] = 1
	}
	if state.Textures[1] != 0 {
		flags[1] = 1
	}
	flags[2] = 1
	if state.TexEnv == metadata.CollapseAdd {
		flags[2] = 2
	}
	switch state.Bits & metadata.AlphaTestBits {
	case metadata.AlphaTestGT0:
		flags[3] = 1
	case metadata.AlphaTestLT80:
		flags[3] = 2
	case metadata.AlphaTestGE80:
		flags[3] = 3
	}
	return flags
}

// clipFix maps GL clip space (y up, z in -w..w) to Vulkan's (y down, z in 0..w).
var clipFix = math.Mat4{
	1, 0, 0, 0,
	0, -1, 0, 0,
	0, 0, 0.5, 0,
	0, 0, 0.5, 1,
}

func modelViewProjection(projection, modelView math.Mat4) math.Mat4 {
	return clipFix.Mul4(projection).Mul4(modelView)
}

/**
 * @brief Moves an eye space plane into model space. Planes transform by the
 * inverse transpose, so with the model view M the model plane is M^T p.
 */
func modelClipPlane(eye math.Vec4, modelView math.Mat4) math.Vec4 {
	return modelView.Transpose().Mul4x1(eye)
}

/**
 * @brief The shader modules, layouts and the pipeline cache. Pipelines are
 * created against the clearing render pass and stay valid for the loading
 * one since both are compatible.
 */
type pipelines struct {
	setLayout vk.DescriptorSetLayout
	layout    vk.PipelineLayout
	vert      vk.ShaderModule
	generic   vk.ShaderModule
	dlight    vk.ShaderModule
	pass      vk.RenderPass
	cache     map[pipelineKey]vk.Pipeline
	// without fillModeNonSolid wireframe falls back to fill
	lineMode bool
}

func createShaderModule(c *context, path string) (vk.ShaderModule, error) {
	code, err := loadSPIRV(path)
	if err != nil {
		return nil, err
	}
	createInfo := vk.ShaderModuleCreateInfo{
		SType:    vk.StructureTypeShaderModuleCreateInfo,
		CodeSize: uint(len(code) * 4),
		PCode:    code,
	}
	var module vk.ShaderModule
	if err := check(vk.CreateShaderModule(c.device, &createInfo, nil, &module), "vkCreateShaderModule"); err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return module, nil
}

func newPipelines(c *context, shaderDir string, pass vk.RenderPass) (*pipelines, error) {
	p := &pipelines{
		pass:     pass,
		cache:    make(map[pipelineKey]vk.Pipeline),
		lineMode: c.features.FillModeNonSolid == vk.True,
	}

	var err error
	if p.vert, err = createShaderModule(c, filepath.Join(shaderDir, "generic.vert.spv")); err != nil {
		p.destroy(c)
		return nil, err
	}
	if p.generic, err = createShaderModule(c, filepath.Join(shaderDir, "generic.frag.spv")); err != nil {
		p.destroy(c)
		return nil, err
	}
	if p.dlight, err = createShaderModule(c, filepath.Join(shaderDir, "dlight.frag.spv")); err != nil {
		p.destroy(c)
		return nil, err
	}

	setInfo := vk.DescriptorSetLayoutCreateInfo{
		SType:        vk.StructureTypeDescriptorSetLayoutCreateInfo,
		BindingCount: 1,
		PBindings: []vk.DescriptorSetLayoutBinding{{
			Binding:         0,
			DescriptorType:  vk.DescriptorTypeCombinedImageSampler,
			DescriptorCount: 1,
			StageFlags:      vk.ShaderStageFlags(vk.ShaderStageFragmentBit),
		}},
	}
	if err := check(vk.CreateDescriptorSetLayout(c.device, &setInfo, nil, &p.setLayout), "vkCreateDescriptorSetLayout"); err != nil {
		p.destroy(c)
		return nil, err
	}

	// one set per texture unit, both with the same layout
	layoutInfo := vk.PipelineLayoutCreateInfo{
		SType:                  vk.StructureTypePipelineLayoutCreateInfo,
		SetLayoutCount:         2,
		PSetLayouts:            []vk.DescriptorSetLayout{p.setLayout, p.setLayout},
		PushConstantRangeCount: 1,
		PPushConstantRanges: []vk.PushConstantRange{{
			StageFlags: vk.ShaderStageFlags(vk.ShaderStageVertexBit | vk.ShaderStageFragmentBit),
			Offset:     0,
			Size:       pushConstantsSize,
		}},
	}
	if err := check(vk.CreatePipelineLayout(c.device, &layoutInfo, nil, &p.layout), "vkCreatePipelineLayout"); err != nil {
		p.destroy(c)
		return nil, err
	}
	return p, nil
}

// get returns the pipeline for key, building it on first use.
func (p *pipelines) get(c *context, key pipelineKey) (vk.Pipeline, error) {
	if pl, ok := p.cache[key]; ok {
		return pl, nil
	}
	pl, err := p.create(c, key)
	if err != nil {
		return vk.NullPipeline, err
	}
	p.cache[key] = pl
	core.LogDebug("created pipeline %d for %+v", len(p.cache), key)
	return pl, nil
}

func (p *pipelines) create(c *context, key pipelineKey) (vk.Pipeline, error) {
	frag := p.generic
	if key.dlight {
		frag = p.dlight
	}
	stages := []vk.PipelineShaderStageCreateInfo{
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageVertexBit,
			Module: p.vert,
			PName:  safeString("main"),
		},
		{
			SType:  vk.StructureTypePipelineShaderStageCreateInfo,
			Stage:  vk.ShaderStageFragmentBit,
			Module: frag,
			PName:  safeString("main"),
		},
	}

	vertexInput := vk.PipelineVertexInputStateCreateInfo{
		SType:                         vk.StructureTypePipelineVertexInputStateCreateInfo,
		VertexBindingDescriptionCount: 1,
		PVertexBindingDescriptions: []vk.VertexInputBindingDescription{{
			Binding:   0,
			Stride:    vertexStride,
			InputRate: vk.VertexInputRateVertex,
		}},
		VertexAttributeDescriptionCount: 5,
		PVertexAttributeDescriptions: []vk.VertexInputAttributeDescription{
			{Location: 0, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 0},
			{Location: 1, Binding: 0, Format: vk.FormatR32g32b32Sfloat, Offset: 12},
			{Location: 2, Binding: 0, Format: vk.FormatR8g8b8a8Unorm, Offset: 24},
			{Location: 3, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 28},
			{Location: 4, Binding: 0, Format: vk.FormatR32g32Sfloat, Offset: 36},
		},
	}
	inputAssembly := vk.PipelineInputAssemblyStateCreateInfo{
		SType:    vk.StructureTypePipelineInputAssemblyStateCreateInfo,
		Topology: vk.PrimitiveTopologyTriangleList,
	}
	viewportState := vk.PipelineViewportStateCreateInfo{
		SType:         vk.StructureTypePipelineViewportStateCreateInfo,
		ViewportCount: 1,
		ScissorCount:  1,
	}

	raster := vk.PipelineRasterizationStateCreateInfo{
		SType:       vk.StructureTypePipelineRasterizationStateCreateInfo,
		PolygonMode: vk.PolygonModeFill,
		CullMode:    vk.CullModeFlags(key.cull),
		FrontFace:   vk.FrontFaceCounterClockwise,
		LineWidth:   1,
	}
	if key.line && p.lineMode {
		raster.PolygonMode = vk.PolygonModeLine
	}
	if key.offset {
		raster.DepthBiasEnable = vk.True
		raster.DepthBiasConstantFactor = -2
		raster.DepthBiasSlopeFactor = -1
	}

	multisample := vk.PipelineMultisampleStateCreateInfo{
		SType:                vk.StructureTypePipelineMultisampleStateCreateInfo,
		RasterizationSamples: vk.SampleCount1Bit,
		MinSampleShading:     1,
	}

	depthStencil := vk.PipelineDepthStencilStateCreateInfo{
		SType:          vk.StructureTypePipelineDepthStencilStateCreateInfo,
		DepthCompareOp: vk.CompareOpLessOrEqual,
	}
	if key.depthTest {
		depthStencil.DepthTestEnable = vk.True
		if key.depthWrite {
			depthStencil.DepthWriteEnable = vk.True
		}
		if key.depthEqual {
			depthStencil.DepthCompareOp = vk.CompareOpEqual
		}
	}

	attachment := vk.PipelineColorBlendAttachmentState{
		ColorWriteMask: vk.ColorComponentFlags(vk.ColorComponentRBit | vk.ColorComponentGBit | vk.ColorComponentBBit | vk.ColorComponentABit),
	}
	if key.blend {
		attachment.BlendEnable = vk.True
		attachment.SrcColorBlendFactor = key.src
		attachment.DstColorBlendFactor = key.dst
		attachment.ColorBlendOp = vk.BlendOpAdd
		attachment.SrcAlphaBlendFactor = key.src
		attachment.DstAlphaBlendFactor = key.dst
		attachment.AlphaBlendOp = vk.BlendOpAdd
	}
	colorBlend := vk.PipelineColorBlendStateCreateInfo{
		SType:           vk.StructureTypePipelineColorBlendStateCreateInfo,
		AttachmentCount: 1,
		PAttachments:    []vk.PipelineColorBlendAttachmentState{attachment},
	}

	dynamicStates := []vk.DynamicState{vk.DynamicStateViewport, vk.DynamicStateScissor}
	dynamic := vk.PipelineDynamicStateCreateInfo{
		SType:             vk.StructureTypePipelineDynamicStateCreateInfo,
		DynamicStateCount: uint32(len(dynamicStates)),
		PDynamicStates:    dynamicStates,
	}

	createInfo := vk.GraphicsPipelineCreateInfo{
		SType:               vk.StructureTypeGraphicsPipelineCreateInfo,
		StageCount:          uint32(len(stages)),
		PStages:             stages,
		PVertexInputState:   &vertexInput,
		PInputAssemblyState: &inputAssembly,
		PViewportState:      &viewportState,
		PRasterizationState: &raster,
		PMultisampleState:   &multisample,
		PDepthStencilState:  &depthStencil,
		PColorBlendState:    &colorBlend,
		PDynamicState:       &dynamic,
		Layout:              p.layout,
		RenderPass:          p.pass,
		Subpass:             0,
	}
	out := make([]vk.Pipeline, 1)
	if err := check(vk.CreateGraphicsPipelines(c.device, vk.NullPipelineCache, 1, []vk.GraphicsPipelineCreateInfo{createInfo}, nil, out), "vkCreateGraphicsPipelines"); err != nil {
		return vk.NullPipeline, err
	}
	return out[0], nil
}

func (p *pipelines) destroy(c *context) {
	for key, pl := range p.cache {
		vk.DestroyPipeline(c.device, pl, nil)
		delete(p.cache, key)
	}
	if p.layout != nil {
		vk.DestroyPipelineLayout(c.device, p.layout, nil)
		p.layout = nil
	}
	if p.setLayout != nil {
		vk.DestroyDescriptorSetLayout(c.device, p.setLayout, nil)
		p.setLayout = nil
	}
	for _, m := range []*vk.ShaderModule{&p.vert, &p.generic, &p.dlight} {
		if *m != nil {
			vk.DestroyShaderModule(c.device, *m, nil)
			*m = nil
		}
	}
}
