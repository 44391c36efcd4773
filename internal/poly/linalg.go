package poly

import (
	"math/big"
)

// rational is a dense matrix of exact rationals.
type rational [][]*big.Rat

func newRational(rows [][]int64, ncols int) rational {
	m := make(rational, len(rows))
	for i, r := range rows {
		m[i] = make([]*big.Rat, ncols)
		for j := range ncols {
			var v int64
			if j < len(r) {
				v = r[j]
			}
			m[i][j] = big.NewRat(v, 1)
		}
	}
	return m
}

// rref reduces m in place to reduced row echelon form and returns the pivot
// column of each non-zero row. Rows past len(pivots) are zero.
func (m rational) rref(ncols int) []int {
	var pivots []int
	r := 0
	for c := 0; c < ncols && r < len(m); c++ {
		p := -1
		for i := r; i < len(m); i++ {
			if m[i][c].Sign() != 0 {
				p = i
				break
			}
		}
		if p < 0 {
			continue
		}
		m[r], m[p] = m[p], m[r]
		inv := new(big.Rat).Inv(m[r][c])
		for j := c; j < ncols; j++ {
			m[r][j].Mul(m[r][j], inv)
		}
		for i := range m {
			if i == r || m[i][c].Sign() == 0 {
				continue
			}
			f := new(big.Rat).Set(m[i][c])
			for j := c; j < ncols; j++ {
				m[i][j].Sub(m[i][j], new(big.Rat).Mul(f, m[r][j]))
			}
		}
		pivots = append(pivots, c)
		r++
	}
	return pivots
}

// Kernel returns a basis of the right null space of the integer matrix
// rows × ncols: the integer vectors v with rows·v = 0.
//
// There is one basis vector per free column of the reduced matrix, in
// increasing column order. Each vector has a 1 at its free column before
// being scaled to the smallest integer multiple with coprime entries, so the
// free-column entry is always positive. A full column rank matrix has an
// empty kernel.
func Kernel(rows [][]int64, ncols int) [][]int64 {
	m := newRational(rows, ncols)
	pivots := m.rref(ncols)
	isPivot := make(map[int]int, len(pivots))
	for r, c := range pivots {
		isPivot[c] = r
	}

	var basis [][]int64
	for f := range ncols {
		if _, ok := isPivot[f]; ok {
			continue
		}
		v := make([]*big.Rat, ncols)
		for j := range v {
			v[j] = new(big.Rat)
		}
		v[f].SetInt64(1)
		for r, c := range pivots {
			v[c].Neg(m[r][f])
		}
		basis = append(basis, primitive(v))
	}
	return basis
}

// primitive scales a rational vector to the integer vector with coprime
// entries pointing in the same direction.
func primitive(v []*big.Rat) []int64 {
	lcm := big.NewInt(1)
	for _, x := range v {
		d := x.Denom()
		g := new(big.Int).GCD(nil, nil, lcm, d)
		lcm.Mul(lcm, new(big.Int).Quo(d, g))
	}
	ints := make([]*big.Int, len(v))
	gcd := new(big.Int)
	for i, x := range v {
		n := new(big.Int).Mul(x.Num(), new(big.Int).Quo(lcm, x.Denom()))
		ints[i] = n
		gcd.GCD(nil, nil, gcd, new(big.Int).Abs(n))
	}
	out := make([]int64, len(v))
	for i, n := range ints {
		if gcd.Sign() != 0 {
			n.Quo(n, gcd)
		}
		out[i] = n.Int64()
	}
	return out
}

// span is the linear span of a set of integer vectors, kept in reduced
// row echelon form for membership tests.
type span struct {
	rows   rational
	pivots []int
	dim    int
}

func newSpan(vectors [][]int64, dim int) span {
	m := newRational(vectors, dim)
	pivots := m.rref(dim)
	return span{rows: m[:len(pivots)], pivots: pivots, dim: dim}
}

// contains reports whether v lies in the span.
func (s span) contains(v []int64) bool {
	x := make([]*big.Rat, s.dim)
	for j := range x {
		var c int64
		if j < len(v) {
			c = v[j]
		}
		x[j] = big.NewRat(c, 1)
	}
	for r, c := range s.pivots {
		if x[c].Sign() == 0 {
			continue
		}
		f := new(big.Rat).Set(x[c])
		for j := range s.dim {
			x[j].Sub(x[j], new(big.Rat).Mul(f, s.rows[r][j]))
		}
	}
	for _, xj := range x {
		if xj.Sign() != 0 {
			return false
		}
	}
	return true
}

// AffineHull returns the points of within that lie in the affine hull of s,
// computed separately for every space of s. Spaces of within that s does
// not occupy contribute nothing.
//
// The hull is the rational affine span of the points, so the result is a
// superset of s ∩ within whose size is controlled by the dimension of the
// hull rather than by the number of points in s.
func (s Set) AffineHull(within Set) Set {
	bySpace := make(map[string][]Tuple)
	for _, t := range s.Tuples() {
		bySpace[t.Space()] = append(bySpace[t.Space()], t)
	}
	hulls := make(map[string]func(Tuple) bool, len(bySpace))
	for _, pts := range bySpace {
		base := pts[0].Flat()
		dim := len(base)
		diffs := make([][]int64, 0, len(pts)-1)
		for _, p := range pts[1:] {
			x := p.Flat()
			d := make([]int64, dim)
			for j := range dim {
				d[j] = x[j] - base[j]
			}
			diffs = append(diffs, d)
		}
		lin := newSpan(diffs, dim)
		hulls[pts[0].Space()] = func(t Tuple) bool {
			x := t.Flat()
			d := make([]int64, dim)
			for j := range dim {
				d[j] = x[j] - base[j]
			}
			return lin.contains(d)
		}
	}
	return within.Filter(func(t Tuple) bool {
		in, ok := hulls[t.Space()]
		return ok && in(t)
	})
}
