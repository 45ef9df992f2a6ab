package vulkan

import (
	"fmt"
	"math"
	"sync"
	"unsafe"

	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
	tmath "github.com/spaghettifunk/tessera/engine/math"
	"github.com/spaghettifunk/tessera/engine/renderer/device"
)

/** @brief Settings fixed when the device is created. */
type Options struct {
	AppName string
	/** @brief Directory holding the compiled SPIR-V shaders. */
	ShaderDir  string
	Validation bool
}

/**
 * @brief A Vulkan 1.0 Device. Command recording happens on whichever
 * goroutine runs the back end, while textures may be created from another
 * one; mu guards the queue, the upload pool and the handle table.
 */
type Device struct {
	window Window
	opts   Options
	caps   device.Capabilities

	mu sync.Mutex

	ctx            *context
	clearPass      vk.RenderPass
	loadPass       vk.RenderPass
	swapchain      *swapchain
	pipelines      *pipelines
	descriptorPool vk.DescriptorPool
	handles        *core.Identifiers
	white          *texture

	frames     [framesInFlight]*frame
	frameIndex int
	imageIndex uint32
	// a frame is being recorded
	recording bool
	// the frame's first submission still has to wait for the acquired image
	waitAcquire bool

	width   int
	height  int
	resized bool

	// latched state
	state       device.State
	projection  tmath.Mat4
	modelView   tmath.Mat4
	clipPlane   tmath.Vec4
	clipEnabled bool
	skyClip     bool
	depthRange  [2]float32
	rect        [4]int
	bound       vk.Pipeline
	light       device.DynamicLight
}

// New creates a device presenting to window. Nothing is created before Init.
func New(window Window, opts Options) *Device {
	if opts.AppName == "" {
		opts.AppName = "Tessera"
	}
	return &Device{
		window:     window,
		opts:       opts,
		projection: tmath.Mat4Identity,
		modelView:  tmath.Mat4Identity,
		depthRange: [2]float32{0, 1},
	}
}

func (d *Device) Init(width, height int) error {
	var err error
	d.width, d.height = width, height
	if d.ctx, err = createInstance(d.opts.AppName, d.window, d.opts.Validation); err != nil {
		return err
	}
	if d.ctx.features.ShaderClipDistance != vk.True {
		d.Shutdown()
		return fmt.Errorf("device does not support shaderClipDistance")
	}

	d.caps = device.Capabilities{
		MaxTextureSize:  int(d.ctx.properties.Limits.MaxImageDimension2D),
		MaxTextureUnits: 2,
	}

	format := chooseSurfaceFormat(mustFormats(d.ctx))
	if d.clearPass, err = createRenderPass(d.ctx, format.Format, true); err != nil {
		d.Shutdown()
		return err
	}
	if d.loadPass, err = createRenderPass(d.ctx, format.Format, false); err != nil {
		d.Shutdown()
		return err
	}
	if d.swapchain, err = createSwapchain(d.ctx, uint32(width), uint32(height), d.clearPass); err != nil {
		d.Shutdown()
		return err
	}
	if d.pipelines, err = newPipelines(d.ctx, d.opts.ShaderDir, d.clearPass); err != nil {
		d.Shutdown()
		return err
	}
	if d.descriptorPool, err = createDescriptorPool(d.ctx); err != nil {
		d.Shutdown()
		return err
	}
	for i := range d.frames {
		if d.frames[i], err = newFrame(d.ctx); err != nil {
			d.Shutdown()
			return err
		}
	}

	d.handles = core.NewIdentifiers(256)
	// bound to units without a texture so every draw has valid descriptors
	if d.white, err = d.newTexture(1, 1, false, false); err != nil {
		d.Shutdown()
		return err
	}
	if err := d.uploadTexture(d.white, 0, 0, 1, 1, []byte{255, 255, 255, 255}, true); err != nil {
		d.Shutdown()
		return err
	}
	return nil
}

// mustFormats returns the surface formats or a BGRA8 fallback.
func mustFormats(c *context) []vk.SurfaceFormat {
	_, formats, _, err := c.surfaceSupport()
	if err != nil {
		core.LogWarn("surface formats: %s", err)
		return []vk.SurfaceFormat{{Format: vk.FormatB8g8r8a8Unorm, ColorSpace: vk.ColorSpaceSrgbNonlinear}}
	}
	return formats
}

func (d *Device) Shutdown() error {
	if d.ctx == nil {
		return nil
	}
	vk.DeviceWaitIdle(d.ctx.device)
	for i, f := range d.frames {
		if f != nil {
			f.destroy(d.ctx)
			d.frames[i] = nil
		}
	}
	if d.handles != nil {
		for id := uint32(1); ; id++ {
			t, _ := d.handles.Owner(id).(*texture)
			if d.handles.Release(id) != nil {
				break
			}
			if t != nil {
				t.destroy(d.ctx, d.descriptorPool)
			}
		}
		d.handles = nil
	}
	if d.white != nil {
		d.white.destroy(d.ctx, d.descriptorPool)
		d.white = nil
	}
	if d.descriptorPool != nil {
		vk.DestroyDescriptorPool(d.ctx.device, d.descriptorPool, nil)
		d.descriptorPool = nil
	}
	if d.pipelines != nil {
		d.pipelines.destroy(d.ctx)
		d.pipelines = nil
	}
	if d.swapchain != nil {
		d.swapchain.destroy(d.ctx)
		d.swapchain = nil
	}
	for _, pass := range []*vk.RenderPass{&d.clearPass, &d.loadPass} {
		if *pass != nil {
			vk.DestroyRenderPass(d.ctx.device, *pass, nil)
			*pass = nil
		}
	}
	d.ctx.destroy()
	d.ctx = nil
	core.LogInfo("Vulkan device shut down")
	return nil
}

func (d *Device) IsMultithreaded() bool { return true }

func (d *Device) Capabilities() device.Capabilities { return d.caps }

// Resize marks the swapchain for recreation at the start of the next frame.
func (d *Device) Resize(width, height int) {
	d.mu.Lock()
	d.width, d.height = width, height
	d.resized = true
	d.mu.Unlock()
}

func (d *Device) recreateSwapchain() error {
	vk.DeviceWaitIdle(d.ctx.device)
	if d.swapchain != nil {
		d.swapchain.destroy(d.ctx)
		d.swapchain = nil
	}
	d.resized = false
	if d.width <= 0 || d.height <= 0 {
		return nil
	}
	sc, err := createSwapchain(d.ctx, uint32(d.width), uint32(d.height), d.clearPass)
	if err != nil {
		return err
	}
	d.swapchain = sc
	return nil
}

/**
 * @brief Waits for the frame slot, acquires a swapchain image and starts
 * the clearing render pass. When no image can be acquired the frame is
 * skipped and every call up to EndFrame does nothing.
 */
func (d *Device) BeginFrame() error {
	if d.recording {
		return fmt.Errorf("BeginFrame called twice")
	}
	f := d.frames[d.frameIndex]
	d.mu.Lock()
	err := f.recycle(d.ctx)
	if err == nil && (d.resized || d.swapchain == nil) {
		err = d.recreateSwapchain()
	}
	d.mu.Unlock()
	if err != nil {
		return err
	}
	if d.swapchain == nil {
		return nil
	}

	res := vk.AcquireNextImage(d.ctx.device, d.swapchain.handle, math.MaxUint64, f.imageAvailable, vk.NullFence, &d.imageIndex)
	switch res {
	case vk.Success, vk.Suboptimal:
	case vk.ErrorOutOfDate:
		d.mu.Lock()
		d.resized = true
		d.mu.Unlock()
		return nil
	default:
		return check(res, "vkAcquireNextImage")
	}

	if err := beginCommandBuffer(f.cb, false); err != nil {
		return err
	}
	d.recording = true
	d.waitAcquire = true
	d.bound = vk.NullPipeline
	d.clipEnabled = false
	d.skyClip = false
	d.depthRange = [2]float32{0, 1}
	d.rect = [4]int{0, 0, int(d.swapchain.extent.Width), int(d.swapchain.extent.Height)}
	d.beginPass(d.clearPass)
	return nil
}

func (d *Device) beginPass(pass vk.RenderPass) {
	f := d.frames[d.frameIndex]
	beginInfo := vk.RenderPassBeginInfo{
		SType:       vk.StructureTypeRenderPassBeginInfo,
		RenderPass:  pass,
		Framebuffer: d.swapchain.framebuffers[d.imageIndex],
		RenderArea: vk.Rect2D{
			Extent: d.swapchain.extent,
		},
		ClearValueCount: 2,
		PClearValues: []vk.ClearValue{
			vk.NewClearValue([]float32{0, 0, 0, 1}),
			vk.NewClearDepthStencil(1, 0),
		},
	}
	vk.CmdBeginRenderPass(f.cb, &beginInfo, vk.SubpassContentsInline)
	d.applyViewport()
}

// submit ends the frame's command buffer and queues it, signaling fence.
func (d *Device) submit(fence vk.Fence, signal bool) error {
	f := d.frames[d.frameIndex]
	if err := check(vk.EndCommandBuffer(f.cb), "vkEndCommandBuffer"); err != nil {
		return err
	}
	submit := vk.SubmitInfo{
		SType:              vk.StructureTypeSubmitInfo,
		CommandBufferCount: 1,
		PCommandBuffers:    []vk.CommandBuffer{f.cb},
	}
	if d.waitAcquire {
		submit.WaitSemaphoreCount = 1
		submit.PWaitSemaphores = []vk.Semaphore{f.imageAvailable}
		submit.PWaitDstStageMask = []vk.PipelineStageFlags{vk.PipelineStageFlags(vk.PipelineStageColorAttachmentOutputBit)}
		d.waitAcquire = false
	}
	if signal {
		submit.SignalSemaphoreCount = 1
		submit.PSignalSemaphores = []vk.Semaphore{f.renderComplete}
	}
	return check(vk.QueueSubmit(d.ctx.graphicsQueue, 1, []vk.SubmitInfo{submit}, fence), "vkQueueSubmit")
}

// EndFrame closes the render pass, submits the frame and presents it.
func (d *Device) EndFrame() error {
	if !d.recording {
		return nil
	}
	d.recording = false
	f := d.frames[d.frameIndex]
	vk.CmdEndRenderPass(f.cb)

	d.mu.Lock()
	defer d.mu.Unlock()
	defer func() { d.frameIndex = (d.frameIndex + 1) % framesInFlight }()

	if err := check(vk.ResetFences(d.ctx.device, 1, []vk.Fence{f.fence}), "vkResetFences"); err != nil {
		return err
	}
	if err := d.submit(f.fence, true); err != nil {
		return err
	}

	present := vk.PresentInfo{
		SType:              vk.StructureTypePresentInfo,
		WaitSemaphoreCount: 1,
		PWaitSemaphores:    []vk.Semaphore{f.renderComplete},
		SwapchainCount:     1,
		PSwapchains:        []vk.Swapchain{d.swapchain.handle},
		PImageIndices:      []uint32{d.imageIndex},
	}
	switch res := vk.QueuePresent(d.ctx.presentQueue, &present); res {
	case vk.Success:
	case vk.Suboptimal, vk.ErrorOutOfDate:
		d.resized = true
	default:
		return check(res, "vkQueuePresent")
	}
	return nil
}

/**
 * @brief Converts a GL style rectangle, origin at the bottom left, into a
 * Vulkan viewport and scissor with the origin at the top left.
 */
func viewportFor(x, y, width, height, fbHeight int, minDepth, maxDepth float32) (vk.Viewport, vk.Rect2D) {
	top := fbHeight - y - height
	vp := vk.Viewport{
		X:        float32(x),
		Y:        float32(top),
		Width:    float32(width),
		Height:   float32(height),
		MinDepth: minDepth,
		MaxDepth: maxDepth,
	}
	sx, sy := x, top
	sw, sh := width, height
	if sx < 0 {
		sw += sx
		sx = 0
	}
	if sy < 0 {
		sh += sy
		sy = 0
	}
	scissor := vk.Rect2D{
		Offset: vk.Offset2D{X: int32(sx), Y: int32(sy)},
		Extent: vk.Extent2D{Width: uint32(maxInt(sw, 0)), Height: uint32(maxInt(sh, 0))},
	}
	return vp, scissor
}

func (d *Device) applyViewport() {
	if !d.recording {
		return
	}
	min, max := d.depthRange[0], d.depthRange[1]
	if d.skyClip {
		min = max
	}
	vp, scissor := viewportFor(d.rect[0], d.rect[1], d.rect[2], d.rect[3], int(d.swapchain.extent.Height), min, max)
	cb := d.frames[d.frameIndex].cb
	vk.CmdSetViewport(cb, 0, 1, []vk.Viewport{vp})
	vk.CmdSetScissor(cb, 0, 1, []vk.Rect2D{scissor})
}

// clear clears attachments inside the current scissor rectangle.
func (d *Device) clear(depth bool, color *tmath.Vec4) {
	if !d.recording {
		return
	}
	_, scissor := viewportFor(d.rect[0], d.rect[1], d.rect[2], d.rect[3], int(d.swapchain.extent.Height), 0, 1)
	if scissor.Extent.Width == 0 || scissor.Extent.Height == 0 {
		return
	}
	var attachments []vk.ClearAttachment
	if depth {
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectDepthBit),
			ClearValue: vk.NewClearDepthStencil(1, 0),
		})
	}
	if color != nil {
		attachments = append(attachments, vk.ClearAttachment{
			AspectMask:      vk.ImageAspectFlags(vk.ImageAspectColorBit),
			ColorAttachment: 0,
			ClearValue:      vk.NewClearValue(color[:]),
		})
	}
	rect := vk.ClearRect{Rect: scissor, BaseArrayLayer: 0, LayerCount: 1}
	vk.CmdClearAttachments(d.frames[d.frameIndex].cb, uint32(len(attachments)), attachments, 1, []vk.ClearRect{rect})
}

func (d *Device) BeginSkyAndClouds(depth float32) {
	d.skyClip = true
	saved := d.depthRange
	d.depthRange = [2]float32{depth, depth}
	d.applyViewport()
	d.depthRange = saved
}

func (d *Device) EndSkyAndClouds() {
	d.skyClip = false
	d.applyViewport()
}

func (d *Device) Begin2D(width, height int) {
	d.rect = [4]int{0, 0, width, height}
	d.applyViewport()
	d.clipEnabled = false
	d.projection = tmath.NewMat4Orthographic(0, float32(width), float32(height), 0, 0, 1)
	d.modelView = tmath.Mat4Identity
}

func (d *Device) Begin3D(view *device.View3D) {
	d.rect = [4]int{view.X, view.Y, view.Width, view.Height}
	d.applyViewport()
	var color *tmath.Vec4
	if view.ClearColor {
		c := view.Color
		color = &c
	}
	d.clear(true, color)

	d.projection = view.Projection
	d.clipEnabled = view.ClipPlane != nil
	if d.clipEnabled {
		d.clipPlane = *view.ClipPlane
	}
}

func (d *Device) ClearDepth() {
	d.clear(true, nil)
}

func (d *Device) SetModelViewMatrix(m tmath.Mat4) {
	d.modelView = m
}

func (d *Device) SetDepthRange(min, max float32) {
	d.depthRange = [2]float32{min, max}
	d.applyViewport()
}

func (d *Device) ApplyState(state *device.State) {
	d.state = *state
}

func (d *Device) BeginDynamicLight(light *device.DynamicLight) {
	d.light = *light
}

func (d *Device) constants(kind device.PipelineKind) pushConstants {
	pc := pushConstants{
		MVP:       modelViewProjection(d.projection, d.modelView),
		ClipPlane: [4]float32{0, 0, 0, 1},
		Flags:     shaderFlags(&d.state),
	}
	if d.clipEnabled && !d.skyClip {
		pc.ClipPlane = modelClipPlane(d.clipPlane, d.modelView)
	}
	if kind == device.PipelineDynamicLight {
		l := &d.light
		pc.Light = [4]float32{l.Origin[0], l.Origin[1], l.Origin[2], l.Radius}
		pc.LightColor = [4]float32{l.Color[0], l.Color[1], l.Color[2], 1}
	}
	return pc
}

/**
 * @brief Streams the vertices of geo into the frame's buffers and draws
 * them with the pipeline matching the latched state. Soft sprite and post
 * process draws use the generic pipeline; the device reports neither
 * capability.
 */
func (d *Device) Draw(kind device.PipelineKind, geo *device.Geometry) {
	if !d.recording || geo == nil || len(geo.Indexes) == 0 || len(geo.XYZ) == 0 {
		return
	}
	f := d.frames[d.frameIndex]
	cb := f.cb

	pl, err := d.pipelines.get(d.ctx, keyFor(kind, &d.state))
	if err != nil {
		core.LogError("draw skipped: %s", err)
		return
	}
	if pl != d.bound {
		vk.CmdBindPipeline(cb, vk.PipelineBindPointGraphics, pl)
		d.bound = pl
	}

	d.mu.Lock()
	sets := make([]vk.DescriptorSet, 2)
	for unit := range sets {
		t, _ := d.handles.Owner(d.state.Textures[unit]).(*texture)
		if t == nil {
			t = d.white
		}
		sets[unit] = t.set
	}
	vb, voff, err := f.vertices.write(d.ctx, f, packVertices(geo))
	var ib vk.Buffer
	var ioff int
	if err == nil {
		ib, ioff, err = f.indexes.write(d.ctx, f, packIndexes(geo.Indexes))
	}
	d.mu.Unlock()
	if err != nil {
		core.LogError("draw skipped: %s", err)
		return
	}

	vk.CmdBindDescriptorSets(cb, vk.PipelineBindPointGraphics, d.pipelines.layout, 0, 2, sets, 0, nil)
	pc := d.constants(kind)
	vk.CmdPushConstants(cb, d.pipelines.layout,
		vk.ShaderStageFlags(vk.ShaderStageVertexBit|vk.ShaderStageFragmentBit),
		0, pushConstantsSize, unsafe.Pointer(&pc))
	vk.CmdBindVertexBuffers(cb, 0, 1, []vk.Buffer{vb}, []vk.DeviceSize{vk.DeviceSize(voff)})
	vk.CmdBindIndexBuffer(cb, ib, vk.DeviceSize(ioff), vk.IndexTypeUint32)
	vk.CmdDrawIndexed(cb, uint32(len(geo.Indexes)), 1, 0, 0, 0)
}

/**
 * @brief Reads back a rectangle of the image being drawn. The render pass
 * is closed, the pixels copied out and the frame resumed with the loading
 * pass, so drawing continues on top of what is already there.
 */
func (d *Device) ReadPixels(x, y, width, height int) ([]byte, error) {
	if width <= 0 || height <= 0 {
		return nil, fmt.Errorf("invalid read back size %dx%d", width, height)
	}
	if !d.recording {
		return nil, fmt.Errorf("read back outside of a frame")
	}
	ext := d.swapchain.extent
	if x < 0 || y < 0 || x+width > int(ext.Width) || y+height > int(ext.Height) {
		return nil, fmt.Errorf("read back %d,%d %dx%d is outside the %dx%d framebuffer", x, y, width, height, ext.Width, ext.Height)
	}

	f := d.frames[d.frameIndex]
	img := d.swapchain.images[d.imageIndex]
	vk.CmdEndRenderPass(f.cb)

	d.mu.Lock()
	defer d.mu.Unlock()

	staging, err := newBuffer(d.ctx, width*height*4, vk.BufferUsageTransferDstBit)
	if err != nil {
		return nil, err
	}
	defer staging.destroy(d.ctx)

	transitionImage(f.cb, img, 1, vk.ImageLayoutPresentSrc, vk.ImageLayoutTransferSrcOptimal)
	region := vk.BufferImageCopy{
		ImageSubresource: vk.ImageSubresourceLayers{
			AspectMask: vk.ImageAspectFlags(vk.ImageAspectColorBit),
			LayerCount: 1,
		},
		ImageOffset: vk.Offset3D{X: int32(x), Y: int32(int(ext.Height) - y - height)},
		ImageExtent: vk.Extent3D{Width: uint32(width), Height: uint32(height), Depth: 1},
	}
	vk.CmdCopyImageToBuffer(f.cb, img, vk.ImageLayoutTransferSrcOptimal, staging.handle, 1, []vk.BufferImageCopy{region})
	transitionImage(f.cb, img, 1, vk.ImageLayoutTransferSrcOptimal, vk.ImageLayoutColorAttachmentOptimal)

	fence, err := newFence(d.ctx, false)
	if err != nil {
		return nil, err
	}
	defer vk.DestroyFence(d.ctx.device, fence, nil)
	if err := d.submit(fence, false); err != nil {
		return nil, err
	}
	if err := waitFence(d.ctx, fence); err != nil {
		return nil, err
	}
	pixels := bottomUpRGBA(staging.data, width, height, isBGRA(d.swapchain.format.Format))

	if err := beginCommandBuffer(f.cb, false); err != nil {
		d.recording = false
		return nil, err
	}
	d.bound = vk.NullPipeline
	d.beginPass(d.loadPass)
	return pixels, nil
}

func (d *Device) PrintInfo() device.Info {
	props := &d.ctx.properties
	api := vk.Version(props.ApiVersion)
	info := device.Info{
		Vendor:   fmt.Sprintf("0x%04x", props.VendorID),
		Renderer: cString(props.DeviceName[:]),
		Version:  fmt.Sprintf("Vulkan %d.%d.%d", api.Major(), api.Minor(), api.Patch()),
	}
	core.LogInfo("VK_VENDOR: %s", info.Vendor)
	core.LogInfo("VK_RENDERER: %s", info.Renderer)
	core.LogInfo("VK_VERSION: %s", info.Version)
	core.LogInfo("VK_MAX_IMAGE_DIMENSION_2D: %d, texture units: %d", d.caps.MaxTextureSize, d.caps.MaxTextureUnits)
	return info
}

var _ device.Device = (*Device)(nil)
