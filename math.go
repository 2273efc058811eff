package vkboot

import (
	"math"

	lin "github.com/xlab/linmath"
)

// flashPeriod is the frame count over which the clear intensity advances by
// one radian.
const flashPeriod = 120.0

// Intensity returns |sin(frame/120)|, the animated blue channel of the
// clear color.
func Intensity(frame uint64) float32 {
	return float32(math.Abs(math.Sin(float64(frame) / flashPeriod)))
}

var (
	// clearBase is the color at zero intensity.
	clearBase = lin.Vec4{0, 0, 0, 1}
	// clearPulse is added at full intensity.
	clearPulse = lin.Vec4{0, 0, 1, 0}
)

// ClearColor returns the RGBA clear color for frame: clearBase plus
// clearPulse scaled by Intensity(frame).
func ClearColor(frame uint64) lin.Vec4 {
	var c lin.Vec4
	c.Scale(&clearPulse, Intensity(frame))
	c.Add(&clearBase, &c)
	return c
}
