package ir

import (
	"fmt"
	"maps"
	"slices"
	"strconv"
	"strings"

	"cuelang.org/go/cue/ast"
	"cuelang.org/go/cue/parser"
	"cuelang.org/go/cue/token"
)

// Affine is an integer affine expression: Σ Terms[v]·v + Const.
type Affine struct {
	Terms map[string]int64
	Const int64
}

// AffineError reports an expression that is not an integer affine function
// of the known iterators and parameters.
type AffineError struct {
	Expr    string
	Message string
}

func (e *AffineError) Error() string {
	return fmt.Sprintf("non-affine expression %q: %s", e.Expr, e.Message)
}

// ParseAffine parses an affine expression over the given variables.
//
// Expressions use CUE expression syntax restricted to integer literals,
// identifiers, unary minus, parentheses, + and -, and * where at least one
// side is constant: "2*i - j + N + 1". Anything else (products of
// variables, division, array subscripts, calls, unknown identifiers) is a
// data-dependent or non-integer condition and yields an *AffineError.
func ParseAffine(src string, vars []string) (Affine, error) {
	known := make(map[string]bool, len(vars))
	for _, v := range vars {
		known[v] = true
	}
	expr, err := parser.ParseExpr("affine", src)
	if err != nil {
		return Affine{}, &AffineError{Expr: src, Message: err.Error()}
	}
	p := affineParser{src: src, known: known}
	return p.eval(expr)
}

type affineParser struct {
	src   string
	known map[string]bool
}

func (p affineParser) fail(format string, args ...any) error {
	return &AffineError{Expr: p.src, Message: fmt.Sprintf(format, args...)}
}

func (p affineParser) eval(e ast.Expr) (Affine, error) {
	switch x := e.(type) {
	case *ast.BasicLit:
		if x.Kind != token.INT {
			return Affine{}, p.fail("literal %s is not an integer", x.Value)
		}
		v, err := strconv.ParseInt(strings.ReplaceAll(x.Value, "_", ""), 0, 64)
		if err != nil {
			return Affine{}, p.fail("bad integer %s", x.Value)
		}
		return Affine{Const: v}, nil
	case *ast.Ident:
		if !p.known[x.Name] {
			return Affine{}, p.fail("unknown identifier %s", x.Name)
		}
		return Affine{Terms: map[string]int64{x.Name: 1}}, nil
	case *ast.ParenExpr:
		return p.eval(x.X)
	case *ast.UnaryExpr:
		v, err := p.eval(x.X)
		if err != nil {
			return Affine{}, err
		}
		switch x.Op {
		case token.SUB:
			return v.Scale(-1), nil
		case token.ADD:
			return v, nil
		}
		return Affine{}, p.fail("unsupported unary operator %s", x.Op)
	case *ast.BinaryExpr:
		l, err := p.eval(x.X)
		if err != nil {
			return Affine{}, err
		}
		r, err := p.eval(x.Y)
		if err != nil {
			return Affine{}, err
		}
		switch x.Op {
		case token.ADD:
			return l.Add(r), nil
		case token.SUB:
			return l.Add(r.Scale(-1)), nil
		case token.MUL:
			switch {
			case l.IsConstant():
				return r.Scale(l.Const), nil
			case r.IsConstant():
				return l.Scale(r.Const), nil
			}
			return Affine{}, p.fail("product of variables")
		}
		return Affine{}, p.fail("unsupported operator %s", x.Op)
	case *ast.IndexExpr:
		return Affine{}, p.fail("data-dependent subscript")
	case *ast.CallExpr:
		return Affine{}, p.fail("function call")
	}
	return Affine{}, p.fail("unsupported expression %T", e)
}

// IsConstant reports whether the expression has no variable terms.
func (a Affine) IsConstant() bool {
	for _, c := range a.Terms {
		if c != 0 {
			return false
		}
	}
	return true
}

// Add returns a + b.
func (a Affine) Add(b Affine) Affine {
	terms := maps.Clone(a.Terms)
	if terms == nil {
		terms = make(map[string]int64)
	}
	for v, c := range b.Terms {
		terms[v] += c
	}
	return Affine{Terms: terms, Const: a.Const + b.Const}
}

// Scale returns k·a.
func (a Affine) Scale(k int64) Affine {
	terms := make(map[string]int64, len(a.Terms))
	for v, c := range a.Terms {
		terms[v] = k * c
	}
	return Affine{Terms: terms, Const: k * a.Const}
}

// Coeff returns the coefficient of v.
func (a Affine) Coeff(v string) int64 { return a.Terms[v] }

// Substitute replaces variables by constants and returns the result.
func (a Affine) Substitute(values map[string]int64) Affine {
	out := Affine{Terms: make(map[string]int64), Const: a.Const}
	for v, c := range a.Terms {
		if val, ok := values[v]; ok {
			out.Const += c * val
			continue
		}
		out.Terms[v] = c
	}
	return out
}

// String renders the expression with variables in sorted order.
func (a Affine) String() string {
	var b strings.Builder
	for _, v := range slices.Sorted(maps.Keys(a.Terms)) {
		c := a.Terms[v]
		if c == 0 {
			continue
		}
		switch {
		case b.Len() == 0 && c == 1:
			b.WriteString(v)
		case b.Len() == 0 && c == -1:
			b.WriteString("-" + v)
		case b.Len() == 0:
			fmt.Fprintf(&b, "%d*%s", c, v)
		case c == 1:
			b.WriteString(" + " + v)
		case c == -1:
			b.WriteString(" - " + v)
		case c < 0:
			fmt.Fprintf(&b, " - %d*%s", -c, v)
		default:
			fmt.Fprintf(&b, " + %d*%s", c, v)
		}
	}
	switch {
	case b.Len() == 0:
		return strconv.FormatInt(a.Const, 10)
	case a.Const > 0:
		fmt.Fprintf(&b, " + %d", a.Const)
	case a.Const < 0:
		fmt.Fprintf(&b, " - %d", -a.Const)
	}
	return b.String()
}
