package poly

import "fmt"

// Constraint is an affine constraint over the input dimensions, the output
// dimensions and a constant:
//
//	Σ In[k]·i_k + Σ Out[k]·o_k + Const = 0    (Eq)
//	Σ In[k]·i_k + Σ Out[k]·o_k + Const ≥ 0    (!Eq)
//
// Wrapped input tuples contribute their flattened coordinates.
type Constraint struct {
	In    []int64
	Out   []int64
	Const int64
	Eq    bool
}

// Basic is a single basic relation: a conjunction of affine constraints.
type Basic struct {
	NIn, NOut   int
	Constraints []Constraint
}

// Equalities returns the equality constraints of b in order.
func (b Basic) Equalities() []Constraint {
	var out []Constraint
	for _, c := range b.Constraints {
		if c.Eq {
			out = append(out, c)
		}
	}
	return out
}

// Affine is an affine function of the flattened coordinates of a tuple:
// Σ Coeffs[k]·x_k + Const.
type Affine struct {
	Coeffs []int64
	Const  int64
}

// Eval evaluates the function at x. Missing coefficients are zero.
func (a Affine) Eval(x []int64) int64 {
	v := a.Const
	for k, c := range a.Coeffs {
		if k < len(x) {
			v += c * x[k]
		}
	}
	return v
}

// NewAffineMap builds { x -> name[f_0(x), ..., f_n(x)] : x ∈ domain }.
//
// Every space of domain receives a Basic made of one equality per output
// dimension, o_k - f_k(x) = 0, so that the access matrix can later be read
// back from the relation.
func NewAffineMap(domain Set, name string, fs []Affine) (Map, error) {
	var b mapBuilder
	basics := make(map[string][]Basic)
	for _, t := range domain.Tuples() {
		x := t.Flat()
		for _, f := range fs {
			if len(f.Coeffs) > len(x) {
				return Map{}, fmt.Errorf("affine function over %d dims applied to %s", len(f.Coeffs), t)
			}
		}
		coords := make([]int64, len(fs))
		for k, f := range fs {
			coords[k] = f.Eval(x)
		}
		out := NewTuple(name, coords...)
		b.add(t, out)
		sp := Pair{In: t, Out: out}.Space()
		if _, ok := basics[sp]; !ok {
			basics[sp] = []Basic{affineBasic(len(x), fs)}
		}
	}
	m := b.build()
	if len(basics) > 0 {
		m.basics = basics
	}
	return m, nil
}

func affineBasic(nIn int, fs []Affine) Basic {
	bs := Basic{NIn: nIn, NOut: len(fs)}
	for k, f := range fs {
		c := Constraint{
			In:    make([]int64, nIn),
			Out:   make([]int64, len(fs)),
			Const: -f.Const,
			Eq:    true,
		}
		for j, a := range f.Coeffs {
			c.In[j] = -a
		}
		c.Out[k] = 1
		bs.Constraints = append(bs.Constraints, c)
	}
	return bs
}
