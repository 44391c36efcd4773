package compiler

import (
	"errors"
	"fmt"
	"maps"
	"slices"

	"github.com/roach88/polydep/internal/ir"
)

// Validation error codes (E100-E199)
const (
	// General validation errors (E100)
	ErrUnsupportedIRType = "E100" // unsupported IR type for validation

	// ScopSpec errors (E101-E119)
	ErrScopNameEmpty          = "E101" // name is required
	ErrScopNoStatements       = "E102" // at least one statement required
	ErrDuplicateStatement     = "E103" // duplicate statement name
	ErrDuplicateRef           = "E104" // duplicate access ref
	ErrEmptySchedule          = "E105" // schedule must have at least one dimension
	ErrInvalidAccessKind      = "E106" // access kind not recognized
	ErrInvalidIterator        = "E107" // duplicate or shadowing iterator
	ErrNonAffine              = "E108" // bound, schedule or subscript is not affine
	ErrUnknownIndependence    = "E109" // independence names an unknown statement
	ErrInconsistentArrayArity = "E110" // array used with different dimensionality
)

// ValidationError represents a schema validation error.
type ValidationError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Line    int    `json:"line,omitempty"`
}

// Error implements the error interface.
func (e ValidationError) Error() string {
	if e.Line > 0 {
		return fmt.Sprintf("[%s] line %d: %s: %s", e.Code, e.Line, e.Field, e.Message)
	}
	return fmt.Sprintf("[%s] %s: %s", e.Code, e.Field, e.Message)
}

// Validate validates compiled IR against schema rules.
// Returns all errors found (does not fail-fast).
func Validate(v any) []ValidationError {
	switch spec := v.(type) {
	case *ir.ScopSpec:
		return validateScopSpec(spec)
	case ir.ScopSpec:
		return validateScopSpec(&spec)
	default:
		return []ValidationError{{
			Field:   "type",
			Message: fmt.Sprintf("unsupported IR type: %T", v),
			Code:    ErrUnsupportedIRType,
		}}
	}
}

func validateScopSpec(spec *ir.ScopSpec) []ValidationError {
	var errs []ValidationError

	if spec.Name == "" {
		errs = append(errs, ValidationError{
			Field:   "name",
			Message: "scop name is required",
			Code:    ErrScopNameEmpty,
		})
	}

	if len(spec.Statements) == 0 {
		errs = append(errs, ValidationError{
			Field:   "statement",
			Message: "at least one statement is required",
			Code:    ErrScopNoStatements,
		})
	}

	params := slices.Sorted(maps.Keys(spec.Params))
	stmtNames := make(map[string]bool)
	refs := make(map[string]string) // ref -> statement
	arity := make(map[string]int)   // array -> number of subscripts
	arityAt := make(map[string]string)

	for _, st := range spec.Statements {
		path := "statement." + st.Name

		if stmtNames[st.Name] {
			errs = append(errs, ValidationError{
				Field:   path,
				Message: fmt.Sprintf("duplicate statement name %q", st.Name),
				Code:    ErrDuplicateStatement,
			})
		}
		stmtNames[st.Name] = true

		// Bounds see parameters and the iterators of enclosing loops.
		vars := slices.Clone(params)
		for i, b := range st.Domain {
			field := fmt.Sprintf("%s.domain[%d]", path, i)
			switch {
			case b.Iter == "":
				errs = append(errs, ValidationError{Field: field + ".iter", Message: "loop iterator is required", Code: ErrInvalidIterator})
			case slices.Contains(params, b.Iter):
				errs = append(errs, ValidationError{Field: field + ".iter", Message: fmt.Sprintf("iterator %q shadows a parameter", b.Iter), Code: ErrInvalidIterator})
			case slices.Contains(vars, b.Iter):
				errs = append(errs, ValidationError{Field: field + ".iter", Message: fmt.Sprintf("duplicate iterator %q", b.Iter), Code: ErrInvalidIterator})
			}
			errs = append(errs, checkAffine(field+".lower", b.Lower, vars)...)
			errs = append(errs, checkAffine(field+".upper", b.Upper, vars)...)
			vars = append(vars, b.Iter)
		}

		if len(st.Schedule) == 0 {
			errs = append(errs, ValidationError{
				Field:   path + ".schedule",
				Message: "schedule must have at least one dimension",
				Code:    ErrEmptySchedule,
			})
		}
		for i, e := range st.Schedule {
			errs = append(errs, checkAffine(fmt.Sprintf("%s.schedule[%d]", path, i), e, vars)...)
		}

		for _, a := range st.Accesses {
			field := path + ".access." + a.Ref
			if prev, dup := refs[a.Ref]; dup {
				errs = append(errs, ValidationError{
					Field:   field,
					Message: fmt.Sprintf("ref %q already used in statement %s", a.Ref, prev),
					Code:    ErrDuplicateRef,
				})
			} else {
				refs[a.Ref] = st.Name
			}
			if !ir.ValidAccessKinds[a.Kind] {
				errs = append(errs, ValidationError{
					Field:   field + ".kind",
					Message: fmt.Sprintf("invalid access kind %q (expected read, may_write, must_write or kill)", a.Kind),
					Code:    ErrInvalidAccessKind,
				})
			}
			for i, e := range a.Index {
				errs = append(errs, checkAffine(fmt.Sprintf("%s.index[%d]", field, i), e, vars)...)
			}
			if n, seen := arity[a.Array]; seen && n != len(a.Index) {
				errs = append(errs, ValidationError{
					Field:   field + ".index",
					Message: fmt.Sprintf("array %s has %d subscripts here but %d in %s", a.Array, len(a.Index), n, arityAt[a.Array]),
					Code:    ErrInconsistentArrayArity,
				})
			} else if !seen {
				arity[a.Array] = len(a.Index)
				arityAt[a.Array] = field
			}
		}
	}

	for i, d := range spec.Independence {
		for _, end := range []string{d.From, d.To} {
			if !stmtNames[end] {
				errs = append(errs, ValidationError{
					Field:   fmt.Sprintf("independence[%d]", i),
					Message: fmt.Sprintf("unknown statement %q", end),
					Code:    ErrUnknownIndependence,
				})
			}
		}
	}

	return errs
}

func checkAffine(field, expr string, vars []string) []ValidationError {
	_, err := ir.ParseAffine(expr, vars)
	if err == nil {
		return nil
	}
	msg := err.Error()
	var ae *ir.AffineError
	if errors.As(err, &ae) {
		msg = ae.Message
	}
	return []ValidationError{{
		Field:   field,
		Message: fmt.Sprintf("%q is not affine: %s", expr, msg),
		Code:    ErrNonAffine,
	}}
}
