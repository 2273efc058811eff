package vkboot

import (
	"testing"

	"github.com/pkg/errors"

	"github.com/andewx/vkboot/gpu"
)

func TestErrorKinds(t *testing.T) {
	for _, x := range []struct {
		kind  Kind
		fatal bool
	}{
		{InitError, true},
		{FenceTimeout, true},
		{AcquireTimeout, true},
		{SwapchainError, true},
		{SubmitError, false},
		{PresentError, false},
		{TeardownError, true},
	} {
		err := errors.Wrap(newError(x.kind, "op", gpu.ErrDeviceLost), "frame 3")
		if IsFatal(err) != x.fatal {
			t.Errorf("%s: fatal %t", x.kind, IsFatal(err))
		}
		if k, ok := KindOf(err); !ok || k != x.kind {
			t.Errorf("%s: KindOf %v %t", x.kind, k, ok)
		}
		if errors.Cause(err) != gpu.ErrDeviceLost {
			t.Errorf("%s: cause %v", x.kind, errors.Cause(err))
		}
	}
	if !IsFatal(errors.New("plain")) || IsFatal(nil) {
		t.Fatal("unclassified errors must be fatal")
	}
	if got := newError(PresentError, "present", gpu.ErrOutOfDate).Error(); got != "vkboot: present: present: gpu: swapchain out of date" {
		t.Fatalf("message %q", got)
	}
}

func TestRecoverError(t *testing.T) {
	run := func() (err error) {
		defer recoverError(&err)
		panic("vulkan: loader not initialized")
	}
	if err := run(); err == nil || err.Error() != "panic: vulkan: loader not initialized" {
		t.Fatalf("recovered %v", err)
	}
}
