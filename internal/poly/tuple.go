package poly

import (
	"cmp"
	"fmt"
	"slices"
	"strings"
)

// Tuple is a named integer tuple, or a wrapped pair of tuples.
//
// A plain tuple looks like S1[0, 3]; a zero-dimensional tuple like ref_r0[].
// A wrapped tuple [S1[0] -> ref_r0[]] is the domain element of a tagged
// access: the statement instance paired with the reference that produced it.
type Tuple struct {
	name    string
	coords  []int64
	in, out *Tuple
}

// NewTuple creates a plain tuple. The coordinates are copied.
func NewTuple(name string, coords ...int64) Tuple {
	c := make([]int64, len(coords))
	copy(c, coords)
	return Tuple{name: name, coords: c}
}

// WrapPair creates the wrapped tuple [in -> out].
func WrapPair(in, out Tuple) Tuple {
	i, o := in, out
	return Tuple{in: &i, out: &o}
}

// Name returns the tuple name. Wrapped tuples have no name.
func (t Tuple) Name() string { return t.name }

// IsWrapped reports whether t is a wrapped pair.
func (t Tuple) IsWrapped() bool { return t.in != nil }

// Unwrap returns the two halves of a wrapped tuple.
// ok is false for plain tuples.
func (t Tuple) Unwrap() (in, out Tuple, ok bool) {
	if t.in == nil {
		return Tuple{}, Tuple{}, false
	}
	return *t.in, *t.out, true
}

// Dim returns the number of integer coordinates, counting both halves of a
// wrapped tuple.
func (t Tuple) Dim() int {
	if t.in != nil {
		return t.in.Dim() + t.out.Dim()
	}
	return len(t.coords)
}

// Coords returns a copy of the coordinates of a plain tuple.
func (t Tuple) Coords() []int64 {
	return slices.Clone(t.coords)
}

// Flat returns all coordinates, flattening wrapped pairs left to right.
func (t Tuple) Flat() []int64 {
	if t.in == nil {
		return slices.Clone(t.coords)
	}
	return append(t.in.Flat(), t.out.Flat()...)
}

// Instance strips any number of wrapping levels and returns the innermost
// domain tuple. For [S1[0] -> ref[]] it returns S1[0].
func (t Tuple) Instance() Tuple {
	for t.in != nil {
		t = *t.in
	}
	return t
}

// WithCoords returns a tuple with the same name and the given coordinates.
// It panics on wrapped tuples.
func (t Tuple) WithCoords(coords []int64) Tuple {
	if t.in != nil {
		panic("poly: WithCoords on wrapped tuple " + t.String())
	}
	return NewTuple(t.name, coords...)
}

// Space identifies the shape of a tuple: its name and dimension, recursively
// for wrapped pairs. Two tuples with the same space live in the same space of
// a union set.
func (t Tuple) Space() string {
	if t.in != nil {
		return "[" + t.in.Space() + " -> " + t.out.Space() + "]"
	}
	return fmt.Sprintf("%s/%d", t.name, len(t.coords))
}

// String renders the tuple in isl notation.
func (t Tuple) String() string {
	var b strings.Builder
	t.write(&b)
	return b.String()
}

func (t Tuple) write(b *strings.Builder) {
	if t.in != nil {
		b.WriteByte('[')
		t.in.write(b)
		b.WriteString(" -> ")
		t.out.write(b)
		b.WriteByte(']')
		return
	}
	b.WriteString(t.name)
	b.WriteByte('[')
	for i, c := range t.coords {
		if i > 0 {
			b.WriteString(", ")
		}
		fmt.Fprintf(b, "%d", c)
	}
	b.WriteByte(']')
}

// Equal reports whether two tuples are identical.
func (t Tuple) Equal(o Tuple) bool { return Compare(t, o) == 0 }

// Compare orders tuples: plain before wrapped, then by name, dimension and
// coordinates; wrapped pairs compare by their halves.
func Compare(a, b Tuple) int {
	aw, bw := a.in != nil, b.in != nil
	switch {
	case aw && !bw:
		return 1
	case !aw && bw:
		return -1
	case aw && bw:
		if c := Compare(*a.in, *b.in); c != 0 {
			return c
		}
		return Compare(*a.out, *b.out)
	}
	if c := cmp.Compare(a.name, b.name); c != 0 {
		return c
	}
	if c := cmp.Compare(len(a.coords), len(b.coords)); c != 0 {
		return c
	}
	return slices.Compare(a.coords, b.coords)
}
