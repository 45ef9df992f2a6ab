package vulkan

import (
	"fmt"
	"runtime"
	"unsafe"

	"github.com/go-gl/glfw/v3.3/glfw"
	vk "github.com/goki/vulkan"

	"github.com/spaghettifunk/tessera/engine/core"
)

const validationLayer = "VK_LAYER_KHRONOS_validation"

/**
 * @brief The window the device presents to; a *glfw.Window created with
 * the NoAPI client hint satisfies it.
 */
type Window interface {
	GetRequiredInstanceExtensions() []string
	CreateWindowSurface(instance interface{}, allocator unsafe.Pointer) (uintptr, error)
}

/**
 * @brief The instance, the selected GPU and the logical device with its
 * queues. Everything else in the package is created against it.
 */
type context struct {
	instance vk.Instance
	surface  vk.Surface
	gpu      vk.PhysicalDevice
	device   vk.Device

	graphicsFamily uint32
	presentFamily  uint32
	graphicsQueue  vk.Queue
	presentQueue   vk.Queue
	commandPool    vk.CommandPool
	// texture uploads record from other goroutines than the frame
	uploadPool vk.CommandPool

	properties  vk.PhysicalDeviceProperties
	features    vk.PhysicalDeviceFeatures
	memory      vk.PhysicalDeviceMemoryProperties
	depthFormat vk.Format
}

func createInstance(appName string, window Window, validation bool) (*context, error) {
	procAddr := glfw.GetVulkanGetInstanceProcAddress()
	if procAddr == nil {
		return nil, fmt.Errorf("GetInstanceProcAddress is nil")
	}
	vk.SetGetInstanceProcAddr(procAddr)
	if err := vk.Init(); err != nil {
		return nil, fmt.Errorf("failed to initialize vk: %w", err)
	}

	appInfo := &vk.ApplicationInfo{
		SType:              vk.StructureTypeApplicationInfo,
		ApiVersion:         uint32(vk.MakeVersion(1, 0, 0)),
		ApplicationVersion: uint32(vk.MakeVersion(1, 0, 0)),
		PApplicationName:   safeString(appName),
		PEngineName:        safeString("Tessera"),
	}
	createInfo := vk.InstanceCreateInfo{
		SType:            vk.StructureTypeInstanceCreateInfo,
		PApplicationInfo: appInfo,
	}

	extensions := window.GetRequiredInstanceExtensions()
	if runtime.GOOS == "darwin" {
		extensions = append(extensions,
			"VK_KHR_portability_enumeration",
			"VK_KHR_get_physical_device_properties2",
		)
		// VK_INSTANCE_CREATE_ENUMERATE_PORTABILITY_BIT_KHR
		createInfo.Flags |= 1
	}
	core.LogDebug("required instance extensions: %v", extensions)
	createInfo.EnabledExtensionCount = uint32(len(extensions))
	createInfo.PpEnabledExtensionNames = safeStrings(extensions)

	if validation {
		if hasInstanceLayer(validationLayer) {
			layers := []string{validationLayer}
			createInfo.EnabledLayerCount = uint32(len(layers))
			createInfo.PpEnabledLayerNames = safeStrings(layers)
			core.LogInfo("validation layer enabled")
		} else {
			core.LogWarn("validation layer %s is not available", validationLayer)
		}
	}

	ctx := &context{}
	if err := check(vk.CreateInstance(&createInfo, nil, &ctx.instance), "vkCreateInstance"); err != nil {
		return nil, err
	}
	if err := vk.InitInstance(ctx.instance); err != nil {
		vk.DestroyInstance(ctx.instance, nil)
		return nil, err
	}
	core.LogInfo("Vulkan instance created")

	surface, err := window.CreateWindowSurface(ctx.instance, nil)
	if err != nil {
		ctx.destroy()
		return nil, fmt.Errorf("failed to create window surface: %w", err)
	}
	ctx.surface = vk.SurfaceFromPointer(surface)

	if err := ctx.selectPhysicalDevice(); err != nil {
		ctx.destroy()
		return nil, err
	}
	if err := ctx.createLogicalDevice(); err != nil {
		ctx.destroy()
		return nil, err
	}
	return ctx, nil
}

func hasInstanceLayer(name string) bool {
	var count uint32
	if vk.EnumerateInstanceLayerProperties(&count, nil) != vk.Success || count == 0 {
		return false
	}
	layers := make([]vk.LayerProperties, count)
	if vk.EnumerateInstanceLayerProperties(&count, layers) != vk.Success {
		return false
	}
	for i := range layers {
		layers[i].Deref()
		if cString(layers[i].LayerName[:]) == name {
			return true
		}
	}
	return false
}

/**
 * @brief Picks the graphics and present families. A family that does both
 * wins over a split pair.
 */
func pickQueueFamilies(graphics, present []bool) (g, p uint32, ok bool) {
	gi, pi := -1, -1
	for i := range graphics {
		if graphics[i] && i < len(present) && present[i] {
			return uint32(i), uint32(i), true
		}
		if graphics[i] && gi < 0 {
			gi = i
		}
		if i < len(present) && present[i] && pi < 0 {
			pi = i
		}
	}
	if gi < 0 || pi < 0 {
		return 0, 0, false
	}
	return uint32(gi), uint32(pi), true
}

func (c *context) selectPhysicalDevice() error {
	var count uint32
	if err := check(vk.EnumeratePhysicalDevices(c.instance, &count, nil), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}
	if count == 0 {
		return fmt.Errorf("no devices which support Vulkan were found")
	}
	gpus := make([]vk.PhysicalDevice, count)
	if err := check(vk.EnumeratePhysicalDevices(c.instance, &count, gpus), "vkEnumeratePhysicalDevices"); err != nil {
		return err
	}

	for _, gpu := range gpus {
		var props vk.PhysicalDeviceProperties
		vk.GetPhysicalDeviceProperties(gpu, &props)
		props.Deref()
		props.Limits.Deref()
		name := cString(props.DeviceName[:])

		if !hasDeviceExtension(gpu, vk.KhrSwapchainExtensionName) {
			core.LogInfo("device '%s' has no swapchain support, skipping", name)
			continue
		}

		var familyCount uint32
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, nil)
		families := make([]vk.QueueFamilyProperties, familyCount)
		vk.GetPhysicalDeviceQueueFamilyProperties(gpu, &familyCount, families)
		graphics := make([]bool, familyCount)
		present := make([]bool, familyCount)
		for i := range families {
			families[i].Deref()
			graphics[i] = vk.QueueFlagBits(families[i].QueueFlags)&vk.QueueGraphicsBit != 0
			var supported vk.Bool32
			if vk.GetPhysicalDeviceSurfaceSupport(gpu, uint32(i), c.surface, &supported) == vk.Success {
				present[i] = supported == vk.True
			}
		}
		g, p, ok := pickQueueFamilies(graphics, present)
		if !ok {
			core.LogInfo("device '%s' lacks graphics or present queues, skipping", name)
			continue
		}

		c.gpu = gpu
		c.properties = props
		c.graphicsFamily, c.presentFamily = g, p
		vk.GetPhysicalDeviceFeatures(gpu, &c.features)
		c.features.Deref()
		vk.GetPhysicalDeviceMemoryProperties(gpu, &c.memory)
		c.memory.Deref()
		for i := uint32(0); i < c.memory.MemoryTypeCount; i++ {
			c.memory.MemoryTypes[i].Deref()
		}

		core.LogInfo("selected device '%s'", name)
		core.LogInfo("Vulkan API version: %d.%d.%d",
			vk.Version(props.ApiVersion).Major(),
			vk.Version(props.ApiVersion).Minor(),
			vk.Version(props.ApiVersion).Patch())
		core.LogDebug("graphics family %d, present family %d", g, p)
		return c.detectDepthFormat()
	}
	return fmt.Errorf("no physical devices were found which meet the requirements")
}

func hasDeviceExtension(gpu vk.PhysicalDevice, name string) bool {
	var count uint32
	if vk.EnumerateDeviceExtensionProperties(gpu, "", &count, nil) != vk.Success || count == 0 {
		return false
	}
	exts := make([]vk.ExtensionProperties, count)
	if vk.EnumerateDeviceExtensionProperties(gpu, "", &count, exts) != vk.Success {
		return false
	}
	for i := range exts {
		exts[i].Deref()
		if cString(exts[i].ExtensionName[:]) == name {
			return true
		}
	}
	return false
}

func (c *context) detectDepthFormat() error {
	candidates := []vk.Format{
		vk.FormatD32Sfloat,
		vk.FormatD32SfloatS8Uint,
		vk.FormatD24UnormS8Uint,
	}
	want := vk.FormatFeatureFlags(vk.FormatFeatureDepthStencilAttachmentBit)
	for _, f := range candidates {
		var props vk.FormatProperties
		vk.GetPhysicalDeviceFormatProperties(c.gpu, f, &props)
		props.Deref()
		if props.OptimalTilingFeatures&want == want {
			c.depthFormat = f
			return nil
		}
	}
	return fmt.Errorf("no supported depth format")
}

func (c *context) createLogicalDevice() error {
	families := []uint32{c.graphicsFamily}
	if c.presentFamily != c.graphicsFamily {
		families = append(families, c.presentFamily)
	}
	queueInfos := make([]vk.DeviceQueueCreateInfo, len(families))
	for i, family := range families {
		queueInfos[i] = vk.DeviceQueueCreateInfo{
			SType:            vk.StructureTypeDeviceQueueCreateInfo,
			QueueFamilyIndex: family,
			QueueCount:       1,
			PQueuePriorities: []float32{1},
		}
	}

	// only what the pipelines use; wireframe and portal clipping degrade without them
	enabled := vk.PhysicalDeviceFeatures{
		FillModeNonSolid:   c.features.FillModeNonSolid,
		ShaderClipDistance: c.features.ShaderClipDistance,
		SamplerAnisotropy:  c.features.SamplerAnisotropy,
	}
	c.features = enabled

	extensions := []string{vk.KhrSwapchainExtensionName}
	if hasDeviceExtension(c.gpu, "VK_KHR_portability_subset") {
		extensions = append(extensions, "VK_KHR_portability_subset")
	}

	createInfo := vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		PEnabledFeatures:        []vk.PhysicalDeviceFeatures{enabled},
		EnabledExtensionCount:   uint32(len(extensions)),
		PpEnabledExtensionNames: safeStrings(extensions),
	}
	if err := check(vk.CreateDevice(c.gpu, &createInfo, nil, &c.device), "vkCreateDevice"); err != nil {
		return err
	}
	vk.GetDeviceQueue(c.device, c.graphicsFamily, 0, &c.graphicsQueue)
	vk.GetDeviceQueue(c.device, c.presentFamily, 0, &c.presentQueue)

	poolInfo := vk.CommandPoolCreateInfo{
		SType:            vk.StructureTypeCommandPoolCreateInfo,
		QueueFamilyIndex: c.graphicsFamily,
		Flags:            vk.CommandPoolCreateFlags(vk.CommandPoolCreateResetCommandBufferBit),
	}
	if err := check(vk.CreateCommandPool(c.device, &poolInfo, nil, &c.commandPool), "vkCreateCommandPool"); err != nil {
		return err
	}
	poolInfo.Flags |= vk.CommandPoolCreateFlags(vk.CommandPoolCreateTransientBit)
	if err := check(vk.CreateCommandPool(c.device, &poolInfo, nil, &c.uploadPool), "vkCreateCommandPool"); err != nil {
		return err
	}
	core.LogInfo("logical device created")
	return nil
}

/**
 * @brief Finds a memory type allowed by typeBits that has every property
 * in props.
 */
func (c *context) findMemoryType(typeBits uint32, props vk.MemoryPropertyFlags) (uint32, error) {
	for i := uint32(0); i < c.memory.MemoryTypeCount; i++ {
		if typeBits&(1<<i) != 0 && c.memory.MemoryTypes[i].PropertyFlags&props == props {
			return i, nil
		}
	}
	return 0, fmt.Errorf("no memory type for bits 0x%x with properties 0x%x", typeBits, props)
}

func (c *context) destroy() {
	if c.device != nil {
		vk.DeviceWaitIdle(c.device)
		for _, pool := range []vk.CommandPool{c.commandPool, c.uploadPool} {
			if pool != nil {
				vk.DestroyCommandPool(c.device, pool, nil)
			}
		}
		vk.DestroyDevice(c.device, nil)
		c.device = nil
	}
	if c.surface != vk.NullSurface {
		vk.DestroySurface(c.instance, c.surface, nil)
		c.surface = vk.NullSurface
	}
	if c.instance != nil {
		vk.DestroyInstance(c.instance, nil)
		c.instance = nil
	}
}
