// Package shadercache compiles shader sources to SPIR-V on demand and keeps
// the result next to the source. An artifact is reused until its source is
// modified after it.
package shadercache

import (
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// DefaultExtension is appended to a source path to name its artifact.
const DefaultExtension = ".spv"

// Artifact is a compiled shader loaded from disk.
type Artifact struct {
	SourcePath    string
	Path          string
	SourceModTime time.Time
	ModTime       time.Time
	Code          []byte
	// Compiled is set when this load had to compile the source.
	Compiled bool
}

// Cache maps shader sources to artifacts on disk. Nothing is kept in memory
// between loads. A Cache is safe for concurrent use on distinct sources.
type Cache struct {
	compiler Compiler
	ext      string
	compiles atomic.Int64
}

// Option configures a Cache.
type Option func(*Cache)

// WithExtension sets the artifact extension.
func WithExtension(ext string) Option {
	return func(c *Cache) {
		if ext != "" {
			c.ext = ext
		}
	}
}

// New returns a cache that compiles with c.
func New(c Compiler, opts ...Option) *Cache {
	cache := &Cache{compiler: c, ext: DefaultExtension}
	for _, opt := range opts {
		opt(cache)
	}
	return cache
}

// ArtifactPath returns where the artifact of source is stored.
func (c *Cache) ArtifactPath(source string) string {
	return source + c.ext
}

// Compiles returns how many compilations the cache has performed.
func (c *Cache) Compiles() int64 {
	return c.compiles.Load()
}

// Stale reports whether loading source would compile it: the artifact is
// missing or the source was modified after it.
func (c *Cache) Stale(source string) (bool, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return false, &IOError{Path: source, Op: "stat", Err: err}
	}
	return c.stale(srcInfo, c.ArtifactPath(source))
}

func (c *Cache) stale(srcInfo fs.FileInfo, artifact string) (bool, error) {
	artInfo, err := os.Stat(artifact)
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return true, nil
	case err != nil:
		return false, &IOError{Path: artifact, Op: "stat", Err: err}
	}
	return srcInfo.ModTime().After(artInfo.ModTime()), nil
}

// Load returns the artifact for source, compiling it first when stale.
func (c *Cache) Load(source string) (*Artifact, error) {
	return c.LoadContext(context.Background(), source)
}

// LoadContext is Load with a context for the compiler.
func (c *Cache) LoadContext(ctx context.Context, source string) (*Artifact, error) {
	srcInfo, err := os.Stat(source)
	if err != nil {
		return nil, &IOError{Path: source, Op: "stat", Err: err}
	}
	path := c.ArtifactPath(source)
	stale, err := c.stale(srcInfo, path)
	if err != nil {
		return nil, err
	}
	if stale {
		if err := c.compile(ctx, source, srcInfo.ModTime(), path); err != nil {
			return nil, err
		}
	} else {
		Logger().Debug("shader artifact up to date", "path", path)
	}

	code, err := os.ReadFile(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "read", Err: err}
	}
	artInfo, err := os.Stat(path)
	if err != nil {
		return nil, &IOError{Path: path, Op: "stat", Err: err}
	}
	return &Artifact{
		SourcePath:    source,
		Path:          path,
		SourceModTime: srcInfo.ModTime(),
		ModTime:       artInfo.ModTime(),
		Code:          code,
		Compiled:      stale,
	}, nil
}

func (c *Cache) compile(ctx context.Context, source string, srcMod time.Time, path string) error {
	text, err := os.ReadFile(source)
	if err != nil {
		return &IOError{Path: source, Op: "read", Err: err}
	}
	stage := DetectStage(source, text)
	log := Logger().With("source", source, "stage", stage.String())
	log.Info("compiling shader")

	code, err := c.compiler.Compile(ctx, source, text, stage)
	if err != nil {
		var ce *CompileError
		if !errors.As(err, &ce) {
			err = &CompileError{Path: source, Diagnostic: err.Error(), Err: err}
		}
		log.Error("shader compile failed", "err", err)
		return err
	}
	if err := writeFileAtomic(path, code); err != nil {
		return &IOError{Path: path, Op: "write", Err: err}
	}
	// A source stamped in the future would otherwise look newer than the
	// artifact forever.
	if info, err := os.Stat(path); err == nil && info.ModTime().Before(srcMod) {
		if err := os.Chtimes(path, srcMod, srcMod); err != nil {
			return &IOError{Path: path, Op: "chtimes", Err: err}
		}
	}
	c.compiles.Add(1)
	log.Info("shader compiled", "artifact", path, "bytes", len(code))
	return nil
}

// writeFileAtomic writes data to a temporary file in the target directory
// and renames it over path, so readers never see a partial artifact.
func writeFileAtomic(path string, data []byte) (err error) {
	f, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*")
	if err != nil {
		return err
	}
	tmp := f.Name()
	defer func() {
		if err != nil {
			os.Remove(tmp)
		}
	}()
	if _, err = f.Write(data); err != nil {
		f.Close()
		return err
	}
	if err = f.Close(); err != nil {
		return err
	}
	if err = os.Chmod(tmp, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
