package shadercache

import "fmt"

// CompileError reports a shader that failed to compile. Diagnostic holds
// the compiler's full output.
type CompileError struct {
	Path       string
	Diagnostic string
	Err        error
}

func (e *CompileError) Error() string {
	if e.Diagnostic == "" && e.Err != nil {
		return fmt.Sprintf("shadercache: compile %s: %v", e.Path, e.Err)
	}
	return fmt.Sprintf("shadercache: compile %s:\n%s", e.Path, e.Diagnostic)
}

func (e *CompileError) Unwrap() error { return e.Err }

// IOError reports a failure to stat, read or write a source or artifact.
type IOError struct {
	Path string
	Op   string
	Err  error
}

func (e *IOError) Error() string {
	return fmt.Sprintf("shadercache: %s %s: %v", e.Op, e.Path, e.Err)
}

func (e *IOError) Unwrap() error { return e.Err }
