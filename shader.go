package vkboot

import (
	"github.com/andewx/vkboot/gpu"
	"github.com/andewx/vkboot/shadercache"
)

// ShaderLoader returns the compiled artifact for a shader source.
// *shadercache.Cache implements it.
type ShaderLoader interface {
	Load(source string) (*shadercache.Artifact, error)
}

// ShaderSet owns the shader modules created at init, keyed by source path.
type ShaderSet struct {
	Modules map[string]gpu.ShaderModule

	stack releaser
}

// LoadShaderModule loads the artifact of path through loader, compiling it
// if stale, and creates a shader module from its bytes. Loader errors are
// returned as is so callers can match *shadercache.CompileError.
func LoadShaderModule(api gpu.API, device gpu.Device, loader ShaderLoader, path string) (gpu.ShaderModule, error) {
	art, err := loader.Load(path)
	if err != nil {
		return 0, err
	}
	m, err := api.CreateShaderModule(device, art.Code)
	if err != nil {
		return 0, initError("create shader module", err)
	}
	Logger().Debug("shader module created", "source", path, "bytes", len(art.Code), "compiled", art.Compiled)
	return m, nil
}

// LoadShaders creates a module for each path. On failure the modules
// already created are destroyed.
func LoadShaders(api gpu.API, dc *DeviceContext, loader ShaderLoader, paths []string) (_ *ShaderSet, err error) {
	set := &ShaderSet{Modules: make(map[string]gpu.ShaderModule, len(paths))}
	defer func() {
		if err != nil {
			set.stack.release()
		}
	}()
	for _, p := range paths {
		if _, ok := set.Modules[p]; ok {
			continue
		}
		m, err := LoadShaderModule(api, dc.Device, loader, p)
		if err != nil {
			if _, ok := KindOf(err); !ok {
				err = initError("load shader "+p, err)
			}
			return nil, err
		}
		set.Modules[p] = m
		set.stack.push("shader module", func() { api.DestroyShaderModule(dc.Device, m) })
	}
	return set, nil
}

// Release destroys the shader modules.
func (s *ShaderSet) Release() error {
	return s.stack.release()
}
