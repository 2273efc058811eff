package shadercache

import (
	"bytes"
	"context"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/pkg/errors"
)

// Glslc compiles GLSL and HLSL with the glslc executable from the Vulkan
// SDK or shaderc. The source text is piped on stdin, so what is compiled is
// exactly what the stage was detected from; the source's directory is added
// to the include path so #include lines resolve relative to the file.
//
// glslc cannot infer a stage for stdin input, so sources with StageInfer
// fail with its diagnostic.
type Glslc struct {
	// Path is the executable; empty means "glslc" from PATH.
	Path string
	// Args are extra arguments placed before the input, e.g. "-O".
	Args []string
}

func (g *Glslc) Compile(ctx context.Context, path string, source []byte, stage Stage) ([]byte, error) {
	bin := g.Path
	if bin == "" {
		bin = "glslc"
	}
	args := append([]string(nil), g.Args...)
	if stage != StageInfer {
		args = append(args, "-fshader-stage="+string(stage))
	}
	args = append(args, "-I", filepath.Dir(path), "-o", "-", "-")

	var stdout, stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, bin, args...)
	cmd.Stdin = bytes.NewReader(source)
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			diag := strings.ReplaceAll(strings.TrimSpace(stderr.String()), stdinName, path)
			return nil, &CompileError{Path: path, Diagnostic: diag, Err: err}
		}
		return nil, errors.Wrapf(err, "run %s", bin)
	}
	if stdout.Len() == 0 {
		return nil, &CompileError{Path: path, Diagnostic: "glslc produced no output", Err: errors.New("empty output")}
	}
	return stdout.Bytes(), nil
}

// stdinName is how glslc names stdin input in diagnostics.
const stdinName = "<stdin>"
