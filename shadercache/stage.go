package shadercache

import (
	"path/filepath"
	"regexp"
	"strings"
)

// Stage is a shader pipeline stage, named as glslc's -fshader-stage does.
type Stage string

const (
	StageInfer       Stage = ""
	StageVertex      Stage = "vert"
	StageFragment    Stage = "frag"
	StageCompute     Stage = "comp"
	StageGeometry    Stage = "geom"
	StageTessControl Stage = "tesc"
	StageTessEval    Stage = "tese"
)

func (s Stage) String() string {
	if s == StageInfer {
		return "infer"
	}
	return string(s)
}

var extStages = map[string]Stage{
	".vert": StageVertex,
	".frag": StageFragment,
	".comp": StageCompute,
	".geom": StageGeometry,
	".tesc": StageTessControl,
	".tese": StageTessEval,
}

var pragmaStages = map[string]Stage{
	"vertex":      StageVertex,
	"vert":        StageVertex,
	"fragment":    StageFragment,
	"frag":        StageFragment,
	"compute":     StageCompute,
	"comp":        StageCompute,
	"geometry":    StageGeometry,
	"geom":        StageGeometry,
	"tesscontrol": StageTessControl,
	"tesc":        StageTessControl,
	"tesseval":    StageTessEval,
	"tese":        StageTessEval,
}

var pragmaRe = regexp.MustCompile(`(?m)^\s*#\s*pragma\s+shader_stage\s*\(\s*(\w+)\s*\)`)

// DetectStage picks the stage from the file extension, then from a
// "#pragma shader_stage(...)" line in source. Otherwise the compiler has to
// infer it.
func DetectStage(path string, source []byte) Stage {
	if s, ok := extStages[strings.ToLower(filepath.Ext(path))]; ok {
		return s
	}
	if m := pragmaRe.FindSubmatch(source); m != nil {
		if s, ok := pragmaStages[strings.ToLower(string(m[1]))]; ok {
			return s
		}
	}
	return StageInfer
}
