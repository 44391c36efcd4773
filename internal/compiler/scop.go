package compiler

import (
	"fmt"
	"strconv"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/errors"
	"cuelang.org/go/cue/token"

	"github.com/roach88/polydep/internal/ir"
)

// CompileScop parses a CUE value into a ScopSpec.
// Uses CUE SDK's Go API directly (not CLI subprocess).
//
// The CUE value should be the scop struct itself, e.g.:
//
//	ctx := cuecontext.New()
//	v := ctx.CompileString(`scop: stencil: { ... }`)
//	spec, err := CompileScop(v.LookupPath(cue.ParsePath("scop.stencil")))
//
// A scop looks like:
//
//	scop: stencil: {
//		params: N: 8
//		statement: S1: {
//			domain: [{iter: "i", lower: 1, upper: "N - 1"}]
//			schedule: ["i", 0]
//			access: {
//				r0: {kind: "read", array: "A", index: ["i - 1"]}
//				w0: {kind: "must_write", array: "B", index: ["i"]}
//			}
//		}
//		independence: [{from: "S1", to: "S2"}]
//	}
//
// Bounds, schedule entries and subscripts may be written as integers or
// as affine expressions in strings. Statements and accesses keep their
// declaration order.
func CompileScop(v cue.Value) (*ir.ScopSpec, error) {
	if err := v.Err(); err != nil {
		return nil, formatCUEError(err)
	}

	spec := &ir.ScopSpec{}

	// Scop name from struct label (the path selector)
	labels := v.Path().Selectors()
	if len(labels) > 0 {
		spec.Name = labels[len(labels)-1].String()
	}

	var err error
	spec.Params, err = parseParams(v)
	if err != nil {
		return nil, err
	}

	spec.Statements, err = parseStatements(v)
	if err != nil {
		return nil, err
	}
	if len(spec.Statements) == 0 {
		return nil, &CompileError{
			Field:   "statement",
			Message: "at least one statement is required",
			Pos:     v.Pos(),
		}
	}

	spec.Independence, err = parseIndependence(v)
	if err != nil {
		return nil, err
	}

	return spec, nil
}

// parseParams reads the parameter values. Parameters must be integers.
func parseParams(v cue.Value) (map[string]int64, error) {
	paramsVal := v.LookupPath(cue.ParsePath("params"))
	if !paramsVal.Exists() {
		return nil, nil // params are optional
	}
	iter, err := paramsVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}
	params := make(map[string]int64)
	for iter.Next() {
		n, err := intValue(iter.Value(), "params."+iter.Selector().String())
		if err != nil {
			return nil, err
		}
		params[iter.Selector().String()] = n
	}
	return params, nil
}

// parseStatements extracts statements in declaration order.
func parseStatements(v cue.Value) ([]ir.StatementSpec, error) {
	stmtVal := v.LookupPath(cue.ParsePath("statement"))
	if !stmtVal.Exists() {
		return nil, nil
	}
	iter, err := stmtVal.Fields()
	if err != nil {
		return nil, formatCUEError(err)
	}

	var stmts []ir.StatementSpec
	for iter.Next() {
		st, err := parseStatement(iter.Selector().String(), iter.Value())
		if err != nil {
			return nil, err
		}
		stmts = append(stmts, st)
	}
	return stmts, nil
}

func parseStatement(name string, v cue.Value) (ir.StatementSpec, error) {
	st := ir.StatementSpec{Name: name}
	field := "statement." + name

	if domVal := v.LookupPath(cue.ParsePath("domain")); domVal.Exists() {
		list, err := domVal.List()
		if err != nil {
			return st, formatCUEError(err)
		}
		for list.Next() {
			b, err := parseLoopBound(list.Value(), field+".domain")
			if err != nil {
				return st, err
			}
			st.Domain = append(st.Domain, b)
		}
	}

	schedVal := v.LookupPath(cue.ParsePath("schedule"))
	if !schedVal.Exists() {
		return st, &CompileError{
			Field:   field + ".schedule",
			Message: "schedule is required",
			Pos:     v.Pos(),
		}
	}
	sched, err := affineList(schedVal, field+".schedule")
	if err != nil {
		return st, err
	}
	st.Schedule = sched

	if callVal := v.LookupPath(cue.ParsePath("call")); callVal.Exists() {
		call, err := callVal.Bool()
		if err != nil {
			return st, formatCUEError(err)
		}
		st.Call = call
	}

	if accVal := v.LookupPath(cue.ParsePath("access")); accVal.Exists() {
		iter, err := accVal.Fields()
		if err != nil {
			return st, formatCUEError(err)
		}
		for iter.Next() {
			a, err := parseAccess(iter.Selector().String(), iter.Value(), field+".access")
			if err != nil {
				return st, err
			}
			st.Accesses = append(st.Accesses, a)
		}
	}
	return st, nil
}

func parseLoopBound(v cue.Value, field string) (ir.LoopBound, error) {
	var b ir.LoopBound
	iterVal := v.LookupPath(cue.ParsePath("iter"))
	if !iterVal.Exists() {
		return b, &CompileError{Field: field + ".iter", Message: "loop iterator is required", Pos: v.Pos()}
	}
	it, err := iterVal.String()
	if err != nil {
		return b, formatCUEError(err)
	}
	b.Iter = it
	if b.Lower, err = affineField(v, "lower", field); err != nil {
		return b, err
	}
	if b.Upper, err = affineField(v, "upper", field); err != nil {
		return b, err
	}
	return b, nil
}

func parseAccess(ref string, v cue.Value, field string) (ir.AccessSpec, error) {
	a := ir.AccessSpec{Ref: ref}
	field = field + "." + ref

	kindVal := v.LookupPath(cue.ParsePath("kind"))
	if !kindVal.Exists() {
		return a, &CompileError{Field: field + ".kind", Message: "access kind is required", Pos: v.Pos()}
	}
	kind, err := kindVal.String()
	if err != nil {
		return a, formatCUEError(err)
	}
	a.Kind = ir.AccessKind(kind)

	arrVal := v.LookupPath(cue.ParsePath("array"))
	if !arrVal.Exists() {
		return a, &CompileError{Field: field + ".array", Message: "array is required", Pos: v.Pos()}
	}
	if a.Array, err = arrVal.String(); err != nil {
		return a, formatCUEError(err)
	}

	if idxVal := v.LookupPath(cue.ParsePath("index")); idxVal.Exists() {
		if a.Index, err = affineList(idxVal, field+".index"); err != nil {
			return a, err
		}
	}
	return a, nil
}

func parseIndependence(v cue.Value) ([]ir.IndependenceSpec, error) {
	indepVal := v.LookupPath(cue.ParsePath("independence"))
	if !indepVal.Exists() {
		return nil, nil
	}
	list, err := indepVal.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	var out []ir.IndependenceSpec
	for list.Next() {
		var d ir.IndependenceSpec
		if err := list.Value().Decode(&d); err != nil {
			return nil, formatCUEError(err)
		}
		out = append(out, d)
	}
	return out, nil
}

func affineField(v cue.Value, name, field string) (string, error) {
	fv := v.LookupPath(cue.ParsePath(name))
	if !fv.Exists() {
		return "", &CompileError{Field: field + "." + name, Message: name + " is required", Pos: v.Pos()}
	}
	return affineString(fv, field+"."+name)
}

func affineList(v cue.Value, field string) ([]string, error) {
	list, err := v.List()
	if err != nil {
		return nil, formatCUEError(err)
	}
	out := []string{}
	for i := 0; list.Next(); i++ {
		s, err := affineString(list.Value(), fmt.Sprintf("%s[%d]", field, i))
		if err != nil {
			return nil, err
		}
		out = append(out, s)
	}
	return out, nil
}

// affineString accepts an integer or a string holding an affine
// expression. Floats are forbidden.
func affineString(v cue.Value, field string) (string, error) {
	switch v.IncompleteKind() {
	case cue.StringKind:
		s, err := v.String()
		if err != nil {
			return "", formatCUEError(err)
		}
		return s, nil
	case cue.IntKind:
		n, err := v.Int64()
		if err != nil {
			return "", formatCUEError(err)
		}
		return strconv.FormatInt(n, 10), nil
	case cue.FloatKind, cue.NumberKind:
		return "", &CompileError{
			Field:   field,
			Message: "float values are forbidden - use int instead",
			Pos:     v.Pos(),
		}
	default:
		return "", &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected int or affine expression string, got %v", v.IncompleteKind()),
			Pos:     v.Pos(),
		}
	}
}

func intValue(v cue.Value, field string) (int64, error) {
	if k := v.IncompleteKind(); k != cue.IntKind {
		return 0, &CompileError{
			Field:   field,
			Message: fmt.Sprintf("expected int, got %v", k),
			Pos:     v.Pos(),
		}
	}
	n, err := v.Int64()
	if err != nil {
		return 0, formatCUEError(err)
	}
	return n, nil
}

// CompileError represents a compilation error with source position.
type CompileError struct {
	Field   string
	Message string
	Pos     token.Pos
}

func (e *CompileError) Error() string {
	if e.Pos.IsValid() {
		return fmt.Sprintf("%s:%d:%d: %s: %s",
			e.Pos.Filename(), e.Pos.Line(), e.Pos.Column(),
			e.Field, e.Message)
	}
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// formatCUEError extracts position info from CUE errors.
func formatCUEError(err error) error {
	if err == nil {
		return nil
	}

	// CUE errors may contain multiple errors
	errs := errors.Errors(err)
	if len(errs) == 0 {
		return err
	}

	// Return first error with position info
	firstErr := errs[0]
	positions := errors.Positions(firstErr)
	if len(positions) > 0 {
		return &CompileError{
			Field:   "cue",
			Message: firstErr.Error(),
			Pos:     positions[0],
		}
	}

	return err
}
