package gpu

import "fmt"

// Version is a packed API version using the Vulkan layout
// (major<<22 | minor<<12 | patch).
type Version uint32

func MakeVersion(major, minor, patch uint32) Version {
	return Version(major<<22 | minor<<12 | patch)
}

func (v Version) Major() uint32 { return uint32(v) >> 22 }
func (v Version) Minor() uint32 { return (uint32(v) >> 12) & 0x3ff }
func (v Version) Patch() uint32 { return uint32(v) & 0xfff }

// AtLeast reports whether v is the same as or newer than min.
// Patch levels are ignored.
func (v Version) AtLeast(min Version) bool {
	if v.Major() != min.Major() {
		return v.Major() > min.Major()
	}
	return v.Minor() >= min.Minor()
}

func (v Version) String() string {
	return fmt.Sprintf("%d.%d.%d", v.Major(), v.Minor(), v.Patch())
}
