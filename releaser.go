package vkboot

import (
	"github.com/pkg/errors"
)

type release struct {
	name string
	fn   func() error
}

// releaser is a LIFO stack of cleanups. Each builder pushes the destroy call
// for an object right after creating it, so unwinding the stack tears
// objects down in exact reverse creation order.
type releaser struct {
	stack []release
}

func (r *releaser) push(name string, fn func()) {
	r.stack = append(r.stack, release{name: name, fn: func() error { fn(); return nil }})
}

func (r *releaser) pushErr(name string, fn func() error) {
	r.stack = append(r.stack, release{name: name, fn: fn})
}

// release runs every cleanup, newest first, and empties the stack. All
// cleanups run even if some fail; the first failure is returned.
func (r *releaser) release() error {
	var first error
	for i := len(r.stack) - 1; i >= 0; i-- {
		rel := r.stack[i]
		Logger().Debug("release", "object", rel.name)
		if err := rel.fn(); err != nil {
			Logger().Error("release failed", "object", rel.name, "err", err)
			if first == nil {
				first = errors.Wrapf(err, "release %s", rel.name)
			}
		}
	}
	r.stack = nil
	return first
}

func (r *releaser) len() int { return len(r.stack) }
