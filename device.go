package vkboot

import (
	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

// MinAPIVersion is the lowest device API version accepted.
var MinAPIVersion = gpu.MakeVersion(1, 1, 0)

// ErrNoSuitableDevice is wrapped by BuildDeviceContext when no physical
// device meets the requirements.
var ErrNoSuitableDevice = errors.New("no suitable physical device")

// SurfaceProvider is the window system side of surface creation.
type SurfaceProvider interface {
	// InstanceExtensions lists the instance extensions the window system
	// needs to create surfaces.
	InstanceExtensions() []string
	// CreateSurface creates a surface for the raw API instance.
	CreateSurface(rawInstance interface{}) (uintptr, error)
}

// DeviceContext owns the instance, the optional debug messenger, the
// surface and the logical device. They are released once, in reverse
// creation order.
type DeviceContext struct {
	api gpu.API

	Instance       gpu.Instance
	Messenger      gpu.DebugMessenger
	Surface        gpu.Surface
	PhysicalDevice gpu.PhysicalDevice
	Properties     gpu.DeviceProperties
	Device         gpu.Device
	Queue          gpu.Queue
	QueueFamily    uint32

	stack releaser
}

// BuildDeviceContext creates the device context. On failure every object
// created so far is released and no context is returned.
func BuildDeviceContext(api gpu.API, cfg Config, surfaces SurfaceProvider) (_ *DeviceContext, err error) {
	dc := &DeviceContext{api: api}
	defer func() {
		if err != nil {
			dc.stack.release()
		}
	}()

	if err := dc.createInstance(cfg, surfaces); err != nil {
		return nil, err
	}

	surface, err := api.CreateSurface(dc.Instance, surfaces.CreateSurface)
	if err != nil {
		return nil, initError("create surface", err)
	}
	dc.Surface = surface
	dc.stack.push("surface", func() { api.DestroySurface(dc.Instance, surface) })

	if err := dc.selectPhysicalDevice(); err != nil {
		return nil, err
	}

	device, err := api.CreateDevice(dc.PhysicalDevice, gpu.DeviceInfo{
		QueueFamily: dc.QueueFamily,
		Extensions:  []string{swapchainExtension},
	})
	if err != nil {
		return nil, initError("create device", err)
	}
	dc.Device = device
	dc.stack.push("device", func() { api.DestroyDevice(device) })

	dc.Queue = api.DeviceQueue(device, dc.QueueFamily)
	Logger().Info("device context ready",
		"device", dc.Properties.Name,
		"type", dc.Properties.Type.String(),
		"api", dc.Properties.APIVersion.String(),
		"queue_family", dc.QueueFamily)
	return dc, nil
}

func (dc *DeviceContext) createInstance(cfg Config, surfaces SurfaceProvider) error {
	api := dc.api
	available, err := api.InstanceExtensions()
	if err != nil {
		return initError("enumerate instance extensions", err)
	}
	extensions, missing := checkExisting(available, surfaces.InstanceExtensions())
	if len(missing) > 0 {
		return initError("select instance extensions",
			errors.Wrapf(gpu.ErrExtensionNotPresent, "%v", missing))
	}

	var layers []string
	debug := false
	if cfg.Validation {
		actualLayers, err := api.InstanceLayers()
		if err != nil {
			return initError("enumerate instance layers", err)
		}
		var missingLayers []string
		layers, missingLayers = checkExisting(actualLayers, []string{validationLayer})
		if len(missingLayers) > 0 {
			Logger().Warn("validation layers not available", "layers", missingLayers)
		}
		if contains(available, debugReportExtension) {
			extensions = appendUnique(extensions, debugReportExtension)
			debug = true
		} else {
			Logger().Warn("debug report extension not available", "extension", debugReportExtension)
		}
	}
	Logger().Debug("creating instance", "extensions", extensions, "layers", layers)

	inst, err := api.CreateInstance(gpu.InstanceInfo{
		AppName:    cfg.AppName,
		AppVersion: gpu.MakeVersion(1, 0, 0),
		APIVersion: MinAPIVersion,
		Extensions: extensions,
		Layers:     layers,
	})
	if err != nil {
		return initError("create instance", err)
	}
	dc.Instance = inst
	dc.stack.push("instance", func() { api.DestroyInstance(inst) })

	if debug {
		m, err := api.CreateDebugMessenger(inst, debugLogger(Logger()))
		if err != nil {
			return initError("create debug messenger", err)
		}
		dc.Messenger = m
		dc.stack.push("debug messenger", func() { api.DestroyDebugMessenger(inst, m) })
		Logger().Info("debug report callback enabled")
	}
	return nil
}

// selectPhysicalDevice picks the first device with a recent enough API,
// swapchain support and a graphics queue that can present to the surface.
func (dc *DeviceContext) selectPhysicalDevice() error {
	api := dc.api
	pds, err := api.PhysicalDevices(dc.Instance)
	if err != nil {
		return initError("enumerate physical devices", err)
	}
	for _, pd := range pds {
		props := api.PhysicalDeviceProperties(pd)
		log := Logger().With("device", props.Name)
		if !props.APIVersion.AtLeast(MinAPIVersion) {
			log.Debug("skipping device", "reason", "api version", "have", props.APIVersion.String())
			continue
		}
		exts, err := api.DeviceExtensions(pd)
		if err != nil {
			return initError("enumerate device extensions", err)
		}
		if !contains(exts, swapchainExtension) {
			log.Debug("skipping device", "reason", "no swapchain support")
			continue
		}
		family, ok, err := findGraphicsQueue(api, pd, dc.Surface)
		if err != nil {
			return initError("query surface support", err)
		}
		if !ok {
			log.Debug("skipping device", "reason", "no graphics queue that can present")
			continue
		}
		dc.PhysicalDevice = pd
		dc.Properties = props
		dc.QueueFamily = family
		return nil
	}
	return initError("select physical device",
		errors.Wrapf(ErrNoSuitableDevice, "%d candidates", len(pds)))
}

// API returns the API the context was built with.
func (dc *DeviceContext) API() gpu.API { return dc.api }

// Release destroys everything the context owns. Calling it again is a
// no-op.
func (dc *DeviceContext) Release() error {
	return dc.stack.release()
}
