package shadercache

import (
	"context"
	"path/filepath"
	"strings"
)

// Compiler turns shader source into a SPIR-V binary. A compile failure is
// reported as a *CompileError carrying the compiler's diagnostics.
type Compiler interface {
	Compile(ctx context.Context, path string, source []byte, stage Stage) ([]byte, error)
}

// CompilerFunc adapts a function to Compiler.
type CompilerFunc func(ctx context.Context, path string, source []byte, stage Stage) ([]byte, error)

func (f CompilerFunc) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]byte, error) {
	return f(ctx, path, source, stage)
}

// ByExtension routes sources to a compiler by file extension, falling back
// to Default.
type ByExtension struct {
	Default Compiler
	ByExt   map[string]Compiler
}

// DefaultCompiler compiles .wgsl sources with Naga and everything else with
// glslc.
func DefaultCompiler() *ByExtension {
	return &ByExtension{
		Default: &Glslc{},
		ByExt:   map[string]Compiler{".wgsl": Naga{}},
	}
}

func (b *ByExtension) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]byte, error) {
	if c, ok := b.ByExt[strings.ToLower(filepath.Ext(path))]; ok {
		return c.Compile(ctx, path, source, stage)
	}
	return b.Default.Compile(ctx, path, source, stage)
}
