package vkboot

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync/atomic"
	"testing"

	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/gpu/gputest"
	"github.com/andewx/vkboot/shadercache"
)

// wordCompiler stands in for glslc: it pads the source to whole words and
// fails on sources containing "error".
type wordCompiler struct {
	calls atomic.Int32
}

func (c *wordCompiler) Compile(_ context.Context, path string, source []byte, _ shadercache.Stage) ([]byte, error) {
	c.calls.Add(1)
	if bytes.Contains(source, []byte("error")) {
		return nil, &shadercache.CompileError{Path: path, Diagnostic: path + ":1: error: '' : syntax error"}
	}
	out := append([]byte{0x03, 0x02, 0x23, 0x07}, source...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out, nil
}

func writeShaders(t *testing.T, sources map[string]string) (dir string, paths []string) {
	t.Helper()
	dir = t.TempDir()
	for name, text := range sources {
		p := filepath.Join(dir, name)
		if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
			t.Fatal(err)
		}
		paths = append(paths, p)
	}
	return dir, paths
}

func TestLoadShaders(t *testing.T) {
	m := gputest.New()
	dc, err := BuildDeviceContext(m, testConfig(), newFakeWindow(0))
	if err != nil {
		t.Fatal(err)
	}
	_, paths := writeShaders(t, map[string]string{"a.vert": "vertex", "a.frag": "fragment"})
	comp := &wordCompiler{}
	cache := shadercache.New(comp)

	set, err := LoadShaders(m, dc, cache, append(paths, paths[0]))
	if err != nil {
		t.Fatal(err)
	}
	if len(set.Modules) != 2 || comp.calls.Load() != 2 {
		t.Fatalf("%d modules, %d compiles", len(set.Modules), comp.calls.Load())
	}
	for _, p := range paths {
		art, err := cache.Load(p)
		if err != nil {
			t.Fatal(err)
		}
		if !bytes.Equal(m.ShaderCode(set.Modules[p]), art.Code) {
			t.Fatalf("%s: module code differs from artifact", p)
		}
	}

	set.Release()
	dc.Release()
	assertClean(t, m)
}

func TestLoadShadersFailureReleases(t *testing.T) {
	m := gputest.New()
	dc, err := BuildDeviceContext(m, testConfig(), newFakeWindow(0))
	if err != nil {
		t.Fatal(err)
	}
	defer func() {
		dc.Release()
		assertClean(t, m)
	}()

	dir, _ := writeShaders(t, map[string]string{"ok.vert": "vertex", "bad.frag": "error"})
	ok, bad := filepath.Join(dir, "ok.vert"), filepath.Join(dir, "bad.frag")

	set, err := LoadShaders(m, dc, shadercache.New(&wordCompiler{}), []string{ok, bad})
	if set != nil {
		t.Fatal("set returned on failure")
	}
	var ce *shadercache.CompileError
	if !errors.As(err, &ce) || ce.Path != bad {
		t.Fatalf("want compile error for %s, got %v", bad, err)
	}
	if k, _ := KindOf(err); k != InitError {
		t.Fatalf("kind %v", k)
	}
	if m.LiveKinds()[gputest.KindShaderModule] != 0 {
		t.Fatal("module of ok.vert leaked")
	}

	m.FailNext("CreateShaderModule", nil, gpu.ErrOutOfMemory)
	other, _ := writeShaders(t, map[string]string{"b.vert": "x", "b.frag": "y"})
	_, err = LoadShaders(m, dc, shadercache.New(&wordCompiler{}), []string{
		filepath.Join(other, "b.vert"), filepath.Join(other, "b.frag"),
	})
	if !errors.Is(err, gpu.ErrOutOfMemory) {
		t.Fatalf("err %v", err)
	}
}
