package poly

import (
	"slices"
	"strings"
)

// Set is an immutable finite set of integer tuples, possibly spanning
// several spaces. The zero value is the empty set.
type Set struct {
	elems map[string]Tuple
}

// NewSet creates a set holding the given tuples.
func NewSet(ts ...Tuple) Set {
	if len(ts) == 0 {
		return Set{}
	}
	elems := make(map[string]Tuple, len(ts))
	for _, t := range ts {
		elems[t.String()] = t
	}
	return Set{elems: elems}
}

// EmptySet returns the empty set.
func EmptySet() Set { return Set{} }

// Len returns the number of tuples.
func (s Set) Len() int { return len(s.elems) }

// IsEmpty reports whether the set has no tuples.
func (s Set) IsEmpty() bool { return len(s.elems) == 0 }

// Contains reports whether t is an element of s.
func (s Set) Contains(t Tuple) bool {
	_, ok := s.elems[t.String()]
	return ok
}

// Tuples returns the elements in Compare order.
func (s Set) Tuples() []Tuple {
	out := make([]Tuple, 0, len(s.elems))
	for _, t := range s.elems {
		out = append(out, t)
	}
	slices.SortFunc(out, Compare)
	return out
}

// Spaces returns the sorted list of spaces occupied by the set.
func (s Set) Spaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range s.elems {
		sp := t.Space()
		if !seen[sp] {
			seen[sp] = true
			out = append(out, sp)
		}
	}
	slices.Sort(out)
	return out
}

// Union returns s ∪ o.
func (s Set) Union(o Set) Set {
	if o.IsEmpty() {
		return s
	}
	if s.IsEmpty() {
		return o
	}
	elems := make(map[string]Tuple, len(s.elems)+len(o.elems))
	for k, t := range s.elems {
		elems[k] = t
	}
	for k, t := range o.elems {
		elems[k] = t
	}
	return Set{elems: elems}
}

// Intersect returns s ∩ o.
func (s Set) Intersect(o Set) Set {
	return s.Filter(o.Contains)
}

// Subtract returns s \ o.
func (s Set) Subtract(o Set) Set {
	return s.Filter(func(t Tuple) bool { return !o.Contains(t) })
}

// Filter returns the elements of s satisfying keep.
func (s Set) Filter(keep func(Tuple) bool) Set {
	elems := make(map[string]Tuple)
	for k, t := range s.elems {
		if keep(t) {
			elems[k] = t
		}
	}
	if len(elems) == 0 {
		return Set{}
	}
	return Set{elems: elems}
}

// IsSubset reports whether s ⊆ o.
func (s Set) IsSubset(o Set) bool {
	for k := range s.elems {
		if _, ok := o.elems[k]; !ok {
			return false
		}
	}
	return true
}

// IsEqual reports whether s and o hold the same tuples.
func (s Set) IsEqual(o Set) bool {
	return s.Len() == o.Len() && s.IsSubset(o)
}

// Apply returns the image of s under m: { y : x ∈ s, x -> y ∈ m }.
func (s Set) Apply(m Map) Set {
	var b setBuilder
	for _, p := range m.pairs {
		if s.Contains(p.In) {
			b.add(p.Out)
		}
	}
	return b.build()
}

// Unwrap turns a set of wrapped tuples into the relation they encode.
// Plain tuples are ignored.
func (s Set) Unwrap() Map {
	var b mapBuilder
	for _, t := range s.elems {
		if in, out, ok := t.Unwrap(); ok {
			b.add(in, out)
		}
	}
	return b.build()
}

// Identity returns { x -> x : x ∈ s }.
func (s Set) Identity() Map {
	var b mapBuilder
	for _, t := range s.elems {
		b.add(t, t)
	}
	return b.build()
}

// String renders the set in isl notation with sorted elements.
func (s Set) String() string {
	if s.IsEmpty() {
		return "{ }"
	}
	parts := make([]string, 0, s.Len())
	for _, t := range s.Tuples() {
		parts = append(parts, t.String())
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

type setBuilder struct {
	elems map[string]Tuple
}

func (b *setBuilder) add(t Tuple) {
	if b.elems == nil {
		b.elems = make(map[string]Tuple)
	}
	b.elems[t.String()] = t
}

func (b *setBuilder) build() Set {
	if len(b.elems) == 0 {
		return Set{}
	}
	return Set{elems: b.elems}
}
