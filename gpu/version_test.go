package gpu

import "testing"

func TestVersion(t *testing.T) {
	v := MakeVersion(1, 2, 135)
	if v.Major() != 1 || v.Minor() != 2 || v.Patch() != 135 {
		t.Fatalf("MakeVersion(1, 2, 135): got %d.%d.%d", v.Major(), v.Minor(), v.Patch())
	}
	if s := v.String(); s != "1.2.135" {
		t.Fatalf("String: have %q want %q", s, "1.2.135")
	}
	// Same layout as VK_MAKE_VERSION.
	if uint32(MakeVersion(1, 1, 0)) != 4198400 {
		t.Fatalf("MakeVersion(1, 1, 0): have %d want 4198400", uint32(MakeVersion(1, 1, 0)))
	}
}

func TestVersionAtLeast(t *testing.T) {
	min := MakeVersion(1, 1, 0)
	for _, x := range [...]struct {
		v    Version
		want bool
	}{
		{MakeVersion(1, 0, 0), false},
		{MakeVersion(1, 0, 999), false},
		{MakeVersion(1, 1, 0), true},
		{MakeVersion(1, 1, 7), true},
		{MakeVersion(1, 3, 0), true},
		{MakeVersion(2, 0, 0), true},
		{MakeVersion(0, 9, 0), false},
	} {
		if got := x.v.AtLeast(min); got != x.want {
			t.Errorf("%v.AtLeast(%v): have %t want %t", x.v, min, got, x.want)
		}
	}
}
