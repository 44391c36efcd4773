package compiler

import (
	"fmt"
	"os"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"

	"github.com/roach88/polydep/internal/ir"
)

// ScopError ties a compile error to the scop it came from.
type ScopError struct {
	Scop string
	Err  error
}

func (e *ScopError) Error() string {
	return fmt.Sprintf("scop.%s: %v", e.Scop, e.Err)
}

func (e *ScopError) Unwrap() error { return e.Err }

// CompileScops compiles every field of the top-level `scop` struct, in
// declaration order. A scop that fails to compile is reported as a
// *ScopError and skipped; the others are still returned.
func CompileScops(v cue.Value) ([]*ir.ScopSpec, []error) {
	scopsVal := v.LookupPath(cue.ParsePath("scop"))
	if !scopsVal.Exists() {
		return nil, nil
	}
	iter, err := scopsVal.Fields()
	if err != nil {
		return nil, []error{formatCUEError(err)}
	}

	var specs []*ir.ScopSpec
	var errs []error
	for iter.Next() {
		spec, err := CompileScop(iter.Value())
		if err != nil {
			errs = append(errs, &ScopError{Scop: iter.Selector().String(), Err: err})
			continue
		}
		specs = append(specs, spec)
	}
	return specs, errs
}

// CompileFile compiles a single CUE file holding one or more scops.
func CompileFile(path string) ([]*ir.ScopSpec, []error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, []error{fmt.Errorf("read %s: %w", path, err)}
	}
	v := cuecontext.New().CompileBytes(data, cue.Filename(path))
	if err := v.Err(); err != nil {
		return nil, []error{formatCUEError(err)}
	}
	return CompileScops(v)
}
