package shadercache

import (
	"context"

	"github.com/gogpu/naga"
)

// Naga compiles WGSL in process. The stage is ignored: a WGSL module names
// its entry points itself.
type Naga struct{}

func (Naga) Compile(ctx context.Context, path string, source []byte, _ Stage) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	spirv, err := naga.Compile(string(source))
	if err != nil {
		return nil, &CompileError{Path: path, Diagnostic: err.Error(), Err: err}
	}
	return spirv, nil
}
