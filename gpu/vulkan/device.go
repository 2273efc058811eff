package vulkan

import (
	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkboot/gpu"
)

func (b *Backend) PhysicalDevices(inst gpu.Instance) ([]gpu.PhysicalDevice, error) {
	instance := b.instances.get(uint64(inst))
	var count uint32
	if err := result(vk.EnumeratePhysicalDevices(instance, &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.PhysicalDevice, count)
	if err := result(vk.EnumeratePhysicalDevices(instance, &count, list)); err != nil {
		return nil, err
	}
	out := make([]gpu.PhysicalDevice, 0, count)
	for _, pd := range list[:count] {
		id, ok := b.gpuIDs[pd]
		if !ok {
			id = gpu.PhysicalDevice(b.gpus.add(pd))
			b.gpuIDs[pd] = id
		}
		out = append(out, id)
	}
	return out, nil
}

func (b *Backend) PhysicalDeviceProperties(pd gpu.PhysicalDevice) gpu.DeviceProperties {
	var props vk.PhysicalDeviceProperties
	vk.GetPhysicalDeviceProperties(b.gpus.get(uint64(pd)), &props)
	props.Deref()
	return gpu.DeviceProperties{
		Name:       vk.ToString(props.DeviceName[:]),
		Type:       gpu.DeviceType(props.DeviceType),
		APIVersion: gpu.Version(props.ApiVersion),
	}
}

func (b *Backend) DeviceExtensions(pd gpu.PhysicalDevice) (names []string, err error) {
	device := b.gpus.get(uint64(pd))
	var count uint32
	if err := result(vk.EnumerateDeviceExtensionProperties(device, "", &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.ExtensionProperties, count)
	if err := result(vk.EnumerateDeviceExtensionProperties(device, "", &count, list)); err != nil {
		return nil, err
	}
	for _, ext := range list {
		ext.Deref()
		names = append(names, vk.ToString(ext.ExtensionName[:]))
	}
	return names, nil
}

func (b *Backend) QueueFamilies(pd gpu.PhysicalDevice) []gpu.QueueFamily {
	device := b.gpus.get(uint64(pd))
	var count uint32
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, nil)
	list := make([]vk.QueueFamilyProperties, count)
	vk.GetPhysicalDeviceQueueFamilyProperties(device, &count, list)

	families := make([]gpu.QueueFamily, count)
	for i := range families {
		list[i].Deref()
		flags := list[i].QueueFlags
		families[i] = gpu.QueueFamily{
			Graphics: flags&vk.QueueFlags(vk.QueueGraphicsBit) != 0,
			Compute:  flags&vk.QueueFlags(vk.QueueComputeBit) != 0,
			Transfer: flags&vk.QueueFlags(vk.QueueTransferBit) != 0,
			Count:    list[i].QueueCount,
		}
	}
	return families
}

func (b *Backend) SurfaceSupport(pd gpu.PhysicalDevice, family uint32, s gpu.Surface) (bool, error) {
	var supported vk.Bool32
	ret := vk.GetPhysicalDeviceSurfaceSupport(b.gpus.get(uint64(pd)), family, b.surfaces.get(uint64(s)), &supported)
	if err := result(ret); err != nil {
		return false, err
	}
	return supported.B(), nil
}

func (b *Backend) SurfaceCapabilities(pd gpu.PhysicalDevice, s gpu.Surface) (gpu.SurfaceCapabilities, error) {
	var caps vk.SurfaceCapabilities
	ret := vk.GetPhysicalDeviceSurfaceCapabilities(b.gpus.get(uint64(pd)), b.surfaces.get(uint64(s)), &caps)
	if err := result(ret); err != nil {
		return gpu.SurfaceCapabilities{}, err
	}
	caps.Deref()
	caps.CurrentExtent.Deref()
	caps.MinImageExtent.Deref()
	caps.MaxImageExtent.Deref()
	return gpu.SurfaceCapabilities{
		MinImageCount:           caps.MinImageCount,
		MaxImageCount:           caps.MaxImageCount,
		CurrentExtent:           extent(caps.CurrentExtent),
		MinImageExtent:          extent(caps.MinImageExtent),
		MaxImageExtent:          extent(caps.MaxImageExtent),
		CurrentTransform:        uint32(caps.CurrentTransform),
		SupportedCompositeAlpha: uint32(caps.SupportedCompositeAlpha),
	}, nil
}

func extent(e vk.Extent2D) gpu.Extent2D {
	return gpu.Extent2D{Width: e.Width, Height: e.Height}
}

func (b *Backend) SurfaceFormats(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.SurfaceFormat, error) {
	device, surface := b.gpus.get(uint64(pd)), b.surfaces.get(uint64(s))
	var count uint32
	if err := result(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.SurfaceFormat, count)
	if err := result(vk.GetPhysicalDeviceSurfaceFormats(device, surface, &count, list)); err != nil {
		return nil, err
	}
	out := make([]gpu.SurfaceFormat, 0, count)
	for _, f := range list[:count] {
		f.Deref()
		out = append(out, gpu.SurfaceFormat{
			Format:     gpu.Format(f.Format),
			ColorSpace: gpu.ColorSpace(f.ColorSpace),
		})
	}
	return out, nil
}

func (b *Backend) SurfacePresentModes(pd gpu.PhysicalDevice, s gpu.Surface) ([]gpu.PresentMode, error) {
	device, surface := b.gpus.get(uint64(pd)), b.surfaces.get(uint64(s))
	var count uint32
	if err := result(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, nil)); err != nil {
		return nil, err
	}
	list := make([]vk.PresentMode, count)
	if err := result(vk.GetPhysicalDeviceSurfacePresentModes(device, surface, &count, list)); err != nil {
		return nil, err
	}
	out := make([]gpu.PresentMode, 0, count)
	for _, m := range list[:count] {
		out = append(out, gpu.PresentMode(m))
	}
	return out, nil
}

func (b *Backend) CreateDevice(pd gpu.PhysicalDevice, info gpu.DeviceInfo) (gpu.Device, error) {
	queueInfos := []vk.DeviceQueueCreateInfo{{
		SType:            vk.StructureTypeDeviceQueueCreateInfo,
		QueueFamilyIndex: info.QueueFamily,
		QueueCount:       1,
		PQueuePriorities: []float32{1.0},
	}}
	var device vk.Device
	ret := vk.CreateDevice(b.gpus.get(uint64(pd)), &vk.DeviceCreateInfo{
		SType:                   vk.StructureTypeDeviceCreateInfo,
		QueueCreateInfoCount:    uint32(len(queueInfos)),
		PQueueCreateInfos:       queueInfos,
		EnabledExtensionCount:   uint32(len(info.Extensions)),
		PpEnabledExtensionNames: safeStrings(info.Extensions),
		EnabledLayerCount:       uint32(len(info.Layers)),
		PpEnabledLayerNames:     safeStrings(info.Layers),
	}, nil, &device)
	if err := result(ret); err != nil {
		return 0, err
	}
	return gpu.Device(b.devices.add(device)), nil
}

func (b *Backend) DestroyDevice(d gpu.Device) {
	if device, ok := b.devices.remove(uint64(d)); ok {
		vk.DestroyDevice(device, nil)
	}
}

func (b *Backend) DeviceQueue(d gpu.Device, family uint32) gpu.Queue {
	var queue vk.Queue
	vk.GetDeviceQueue(b.devices.get(uint64(d)), family, 0, &queue)
	id, ok := b.queueIDs[queue]
	if !ok {
		id = gpu.Queue(b.queues.add(queue))
		b.queueIDs[queue] = id
	}
	return id
}

func (b *Backend) DeviceWaitIdle(d gpu.Device) error {
	return result(vk.DeviceWaitIdle(b.devices.get(uint64(d))))
}
