package vkboot

import (
	"github.com/andewx/vkboot/gpu"
)

// findGraphicsQueue returns the first queue family of pd that supports
// graphics and can present to surface.
func findGraphicsQueue(api gpu.API, pd gpu.PhysicalDevice, surface gpu.Surface) (uint32, bool, error) {
	for i, family := range api.QueueFamilies(pd) {
		if !family.Graphics || family.Count == 0 {
			continue
		}
		ok, err := api.SurfaceSupport(pd, uint32(i), surface)
		if err != nil {
			return 0, false, err
		}
		if ok {
			return uint32(i), true, nil
		}
	}
	return 0, false, nil
}
