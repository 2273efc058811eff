package vulkan

import (
	"fmt"

	vk "github.com/vulkan-go/vulkan"

	"github.com/andewx/vkboot/gpu"
)

// resultError keeps the Vulkan description of a failed call while matching
// the gpu sentinel it maps to.
type resultError struct {
	ret  vk.Result
	kind error
}

func (e *resultError) Error() string {
	if err := vk.Error(e.ret); err != nil {
		return fmt.Sprintf("vulkan: %v (%d)", err, e.ret)
	}
	return fmt.Sprintf("vulkan: %v (result %d)", e.kind, e.ret)
}

func (e *resultError) Unwrap() error { return e.kind }

// result converts a vk.Result to an error. Suboptimal counts as success:
// the swapchain can still be presented to.
func result(ret vk.Result) error {
	var kind error
	switch ret {
	case vk.Success, vk.Suboptimal:
		return nil
	case vk.Timeout:
		kind = gpu.ErrTimeout
	case vk.NotReady:
		kind = gpu.ErrNotReady
	case vk.ErrorOutOfDate:
		kind = gpu.ErrOutOfDate
	case vk.ErrorSurfaceLost:
		kind = gpu.ErrSurfaceLost
	case vk.ErrorDeviceLost:
		kind = gpu.ErrDeviceLost
	case vk.ErrorOutOfHostMemory, vk.ErrorOutOfDeviceMemory:
		kind = gpu.ErrOutOfMemory
	case vk.ErrorInitializationFailed:
		kind = gpu.ErrInitialization
	case vk.ErrorExtensionNotPresent:
		kind = gpu.ErrExtensionNotPresent
	case vk.ErrorLayerNotPresent:
		kind = gpu.ErrLayerNotPresent
	case vk.ErrorFeatureNotPresent:
		kind = gpu.ErrFeatureNotPresent
	case vk.ErrorIncompatibleDriver:
		kind = gpu.ErrIncompatibleDriver
	default:
		kind = gpu.ErrUnknown
	}
	return &resultError{ret: ret, kind: kind}
}

func safeString(s string) string {
	if len(s) == 0 || s[len(s)-1] != '\x00' {
		return s + "\x00"
	}
	return s
}

func safeStrings(list []string) []string {
	if len(list) == 0 {
		return nil
	}
	out := make([]string, len(list))
	for i := range list {
		out[i] = safeString(list[i])
	}
	return out
}

// sliceUint32 reinterprets little-endian SPIR-V bytes as words.
// Trailing bytes that do not form a full word are dropped.
func sliceUint32(data []byte) []uint32 {
	words := make([]uint32, len(data)/4)
	for i := range words {
		words[i] = uint32(data[i*4]) |
			uint32(data[i*4+1])<<8 |
			uint32(data[i*4+2])<<16 |
			uint32(data[i*4+3])<<24
	}
	return words
}
