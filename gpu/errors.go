package gpu

import "errors"

// Result errors returned by API implementations. Implementations may wrap
// them to add detail; match with errors.Is.
var (
	ErrTimeout             = errors.New("gpu: timeout")
	ErrNotReady            = errors.New("gpu: not ready")
	ErrOutOfDate           = errors.New("gpu: swapchain out of date")
	ErrSurfaceLost         = errors.New("gpu: surface lost")
	ErrDeviceLost          = errors.New("gpu: device lost")
	ErrOutOfMemory         = errors.New("gpu: out of memory")
	ErrInitialization      = errors.New("gpu: initialization failed")
	ErrExtensionNotPresent = errors.New("gpu: extension not present")
	ErrLayerNotPresent     = errors.New("gpu: layer not present")
	ErrFeatureNotPresent   = errors.New("gpu: feature not present")
	ErrIncompatibleDriver  = errors.New("gpu: incompatible driver")
	ErrUnknown             = errors.New("gpu: unknown error")
)
