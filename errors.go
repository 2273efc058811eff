package vkboot

import (
	"fmt"

	"github.com/pkg/errors"
)

// Kind classifies a failure by the call site that produced it.
type Kind int

const (
	InitError Kind = iota + 1
	FenceTimeout
	AcquireTimeout
	SwapchainError
	SubmitError
	PresentError
	TeardownError
)

func (k Kind) String() string {
	switch k {
	case InitError:
		return "init"
	case FenceTimeout:
		return "fence timeout"
	case AcquireTimeout:
		return "acquire timeout"
	case SwapchainError:
		return "swapchain"
	case SubmitError:
		return "submit"
	case PresentError:
		return "present"
	case TeardownError:
		return "teardown"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Fatal reports whether an error of this kind ends the run. A failed submit
// or present only drops the frame.
func (k Kind) Fatal() bool {
	return k != SubmitError && k != PresentError
}

// Error is returned by every vkboot operation that talks to the GPU.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("vkboot: %s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("vkboot: %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Cause lets errors.Cause reach the underlying result.
func (e *Error) Cause() error { return e.Err }

func newError(kind Kind, op string, err error) error {
	return &Error{Kind: kind, Op: op, Err: err}
}

func initError(op string, err error) error {
	return newError(InitError, op, err)
}

// KindOf returns the Kind of the first *Error in err's chain.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

// IsFatal reports whether err ends the run. Errors without a Kind are fatal.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	k, ok := KindOf(err)
	return !ok || k.Fatal()
}

// recoverError stores a panic raised below it in *err. The Vulkan bindings
// panic on loader misuse.
func recoverError(err *error) {
	if v := recover(); v != nil {
		*err = errors.Errorf("panic: %+v", v)
	}
}
