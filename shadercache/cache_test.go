package shadercache

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

// fakeSPIRV is what the counting compiler emits for source: a SPIR-V magic
// word followed by the source text, padded to a word boundary.
func fakeSPIRV(source []byte) []byte {
	out := append([]byte{0x03, 0x02, 0x23, 0x07}, source...)
	for len(out)%4 != 0 {
		out = append(out, 0)
	}
	return out
}

type countingCompiler struct {
	calls  atomic.Int32
	stages []Stage
}

func (c *countingCompiler) Compile(_ context.Context, path string, source []byte, stage Stage) ([]byte, error) {
	c.calls.Add(1)
	c.stages = append(c.stages, stage)
	if bytes.Contains(source, []byte("syntax error")) {
		return nil, &CompileError{Path: path, Diagnostic: path + ":3: error: 'syntax error' : unexpected token"}
	}
	return fakeSPIRV(source), nil
}

func writeSource(t *testing.T, dir, name, text string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte(text), 0o644); err != nil {
		t.Fatal(err)
	}
	return p
}

// touch moves the modification time of path by d from its current value.
func touch(t *testing.T, path string, d time.Duration) {
	t.Helper()
	info, err := os.Stat(path)
	if err != nil {
		t.Fatal(err)
	}
	mod := info.ModTime().Add(d)
	if err := os.Chtimes(path, mod, mod); err != nil {
		t.Fatal(err)
	}
}

func TestLoadCompilesOnce(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "triangle.vert", "#version 450\nvoid main() {}\n")
	comp := &countingCompiler{}
	cache := New(comp)

	a, err := cache.Load(src)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Compiled || comp.calls.Load() != 1 {
		t.Fatalf("first load: compiled=%t calls=%d", a.Compiled, comp.calls.Load())
	}
	if a.Path != src+".spv" {
		t.Fatalf("artifact path: %s", a.Path)
	}
	text, _ := os.ReadFile(src)
	if !bytes.Equal(a.Code, fakeSPIRV(text)) {
		t.Fatal("artifact bytes differ from a direct compile")
	}
	if a.ModTime.Before(a.SourceModTime) {
		t.Fatalf("artifact %v older than source %v", a.ModTime, a.SourceModTime)
	}

	b, err := cache.Load(src)
	if err != nil {
		t.Fatal(err)
	}
	if b.Compiled || comp.calls.Load() != 1 {
		t.Fatalf("second load: compiled=%t calls=%d", b.Compiled, comp.calls.Load())
	}
	if !bytes.Equal(a.Code, b.Code) {
		t.Fatal("reloaded bytes differ")
	}
	if cache.Compiles() != 1 {
		t.Fatalf("Compiles: %d", cache.Compiles())
	}
}

func TestLoadRecompilesNewerSource(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.frag", "v1")
	comp := &countingCompiler{}
	cache := New(comp)
	if _, err := cache.Load(src); err != nil {
		t.Fatal(err)
	}

	if err := os.WriteFile(src, []byte("v2"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, src, 2*time.Second)
	if stale, err := cache.Stale(src); err != nil || !stale {
		t.Fatalf("Stale: %t %v", stale, err)
	}

	a, err := cache.Load(src)
	if err != nil {
		t.Fatal(err)
	}
	if !a.Compiled || comp.calls.Load() != 2 {
		t.Fatalf("calls: %d", comp.calls.Load())
	}
	if !bytes.Equal(a.Code, fakeSPIRV([]byte("v2"))) {
		t.Fatal("artifact not refreshed")
	}
	if a.ModTime.Before(a.SourceModTime) {
		t.Fatalf("artifact %v older than source %v", a.ModTime, a.SourceModTime)
	}
}

func TestLoadEqualTimesIsFresh(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.comp", "x")
	if err := os.WriteFile(src+".spv", fakeSPIRV([]byte("x")), 0o644); err != nil {
		t.Fatal(err)
	}
	stamp := time.Now().Add(-time.Hour).Truncate(time.Second)
	for _, p := range []string{src, src + ".spv"} {
		if err := os.Chtimes(p, stamp, stamp); err != nil {
			t.Fatal(err)
		}
	}
	comp := &countingCompiler{}
	if _, err := New(comp).Load(src); err != nil {
		t.Fatal(err)
	}
	if comp.calls.Load() != 0 {
		t.Fatal("equal modification times must not recompile")
	}
}

func TestCompileErrorLeavesArtifact(t *testing.T) {
	dir := t.TempDir()
	comp := &countingCompiler{}
	cache := New(comp)

	// No artifact yet: none is created.
	bad := writeSource(t, dir, "bad.vert", "syntax error")
	_, err := cache.Load(bad)
	var ce *CompileError
	if !errors.As(err, &ce) {
		t.Fatalf("want *CompileError, got %v", err)
	}
	if !strings.Contains(ce.Diagnostic, "unexpected token") || ce.Path != bad {
		t.Fatalf("diagnostic: %+v", ce)
	}
	if _, err := os.Stat(bad + ".spv"); !os.IsNotExist(err) {
		t.Fatalf("artifact created by failed compile: %v", err)
	}

	// A stale artifact is not overwritten.
	src := writeSource(t, dir, "ok.frag", "good")
	if _, err := cache.Load(src); err != nil {
		t.Fatal(err)
	}
	before, _ := os.ReadFile(src + ".spv")
	if err := os.WriteFile(src, []byte("syntax error"), 0o644); err != nil {
		t.Fatal(err)
	}
	touch(t, src, 2*time.Second)
	if _, err := cache.Load(src); !errors.As(err, &ce) {
		t.Fatalf("want *CompileError, got %v", err)
	}
	after, _ := os.ReadFile(src + ".spv")
	if !bytes.Equal(before, after) {
		t.Fatal("failed compile overwrote the artifact")
	}
	if cache.Compiles() != 1 {
		t.Fatalf("Compiles: %d", cache.Compiles())
	}

	entries, _ := os.ReadDir(dir)
	for _, e := range entries {
		if strings.HasPrefix(e.Name(), ".") {
			t.Fatalf("temporary file left behind: %s", e.Name())
		}
	}
}

func TestPlainCompilerErrorIsWrapped(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "x.vert", "x")
	boom := errors.New("boom")
	cache := New(CompilerFunc(func(context.Context, string, []byte, Stage) ([]byte, error) {
		return nil, boom
	}))
	_, err := cache.Load(src)
	var ce *CompileError
	if !errors.As(err, &ce) || !errors.Is(err, boom) {
		t.Fatalf("got %v", err)
	}
}

func TestLoadIOErrors(t *testing.T) {
	dir := t.TempDir()
	cache := New(&countingCompiler{})

	_, err := cache.Load(filepath.Join(dir, "missing.vert"))
	var ioe *IOError
	if !errors.As(err, &ioe) || ioe.Op != "stat" {
		t.Fatalf("missing source: %v", err)
	}

	// An artifact path that cannot be read as a file.
	src := writeSource(t, dir, "d.vert", "x")
	touch(t, src, -time.Hour)
	if err := os.Mkdir(src+".spv", 0o755); err != nil {
		t.Fatal(err)
	}
	_, err = cache.Load(src)
	if !errors.As(err, &ioe) || ioe.Op != "read" {
		t.Fatalf("unreadable artifact: %v", err)
	}
}

func TestWithExtension(t *testing.T) {
	dir := t.TempDir()
	src := writeSource(t, dir, "a.vert", "x")
	cache := New(&countingCompiler{}, WithExtension(".bin"))
	a, err := cache.Load(src)
	if err != nil {
		t.Fatal(err)
	}
	if a.Path != src+".bin" {
		t.Fatalf("artifact path: %s", a.Path)
	}
}

func TestStageReachesCompiler(t *testing.T) {
	dir := t.TempDir()
	comp := &countingCompiler{}
	cache := New(comp)
	for _, name := range []string{"a.vert", "b.frag"} {
		if _, err := cache.Load(writeSource(t, dir, name, "x")); err != nil {
			t.Fatal(err)
		}
	}
	if _, err := cache.Load(writeSource(t, dir, "c.glsl", "#pragma shader_stage(compute)\n")); err != nil {
		t.Fatal(err)
	}
	want := []Stage{StageVertex, StageFragment, StageCompute}
	for i := range want {
		if comp.stages[i] != want[i] {
			t.Fatalf("stages: %v want %v", comp.stages, want)
		}
	}
}

// Two shaders compile on the first run and are reused by a second run with
// a fresh cache.
func TestTwoRuns(t *testing.T) {
	dir := t.TempDir()
	vert := writeSource(t, dir, "triangle.vert", "vertex")
	frag := writeSource(t, dir, "triangle.frag", "fragment")
	for _, p := range []string{vert, frag} {
		touch(t, p, -time.Minute)
	}

	first := &countingCompiler{}
	cache := New(first)
	for _, p := range []string{vert, frag} {
		if _, err := cache.Load(p); err != nil {
			t.Fatal(err)
		}
	}
	if first.calls.Load() != 2 {
		t.Fatalf("first run compiles: %d", first.calls.Load())
	}

	second := &countingCompiler{}
	cache = New(second)
	for _, p := range []string{vert, frag} {
		a, err := cache.Load(p)
		if err != nil {
			t.Fatal(err)
		}
		if a.Compiled {
			t.Fatalf("%s recompiled", p)
		}
	}
	if second.calls.Load() != 0 {
		t.Fatalf("second run compiles: %d", second.calls.Load())
	}
}
