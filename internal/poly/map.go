package poly

import (
	"slices"
	"strings"
)

// Pair is a single element of a relation.
type Pair struct {
	In, Out Tuple
}

// Space returns the space of the pair, e.g. "S1/1 -> A/1".
func (p Pair) Space() string { return p.In.Space() + " -> " + p.Out.Space() }

func (p Pair) key() string { return p.In.String() + " -> " + p.Out.String() }

func comparePairs(a, b Pair) int {
	if c := Compare(a.In, b.In); c != 0 {
		return c
	}
	return Compare(a.Out, b.Out)
}

// Map is an immutable finite binary relation between integer tuples,
// possibly spanning several spaces. The zero value is the empty relation.
//
// A Map built from affine access functions also carries, per space, the
// basic relations that define it (see Basic). Union and SplitSpaces keep
// these descriptions; every other operation drops them.
type Map struct {
	pairs  map[string]Pair
	basics map[string][]Basic
}

// EmptyMap returns the empty relation.
func EmptyMap() Map { return Map{} }

// NewMap creates a relation from pairs.
func NewMap(ps ...Pair) Map {
	var b mapBuilder
	for _, p := range ps {
		b.add(p.In, p.Out)
	}
	return b.build()
}

// Len returns the number of pairs.
func (m Map) Len() int { return len(m.pairs) }

// IsEmpty reports whether the relation has no pairs.
func (m Map) IsEmpty() bool { return len(m.pairs) == 0 }

// Contains reports whether in -> out is in the relation.
func (m Map) Contains(in, out Tuple) bool {
	_, ok := m.pairs[Pair{In: in, Out: out}.key()]
	return ok
}

// Pairs returns all pairs sorted by domain then range.
func (m Map) Pairs() []Pair {
	out := make([]Pair, 0, len(m.pairs))
	for _, p := range m.pairs {
		out = append(out, p)
	}
	slices.SortFunc(out, comparePairs)
	return out
}

// Spaces returns the sorted list of spaces occupied by the relation.
func (m Map) Spaces() []string {
	seen := make(map[string]bool)
	var out []string
	for _, p := range m.pairs {
		sp := p.Space()
		if !seen[sp] {
			seen[sp] = true
			out = append(out, sp)
		}
	}
	slices.Sort(out)
	return out
}

// SplitSpaces returns one relation per space, in Spaces order. Basic
// descriptions are preserved.
func (m Map) SplitSpaces() []Map {
	bySpace := make(map[string]*mapBuilder)
	for _, p := range m.pairs {
		sp := p.Space()
		b := bySpace[sp]
		if b == nil {
			b = &mapBuilder{}
			bySpace[sp] = b
		}
		b.add(p.In, p.Out)
	}
	spaces := m.Spaces()
	out := make([]Map, 0, len(spaces))
	for _, sp := range spaces {
		part := bySpace[sp].build()
		if bs, ok := m.basics[sp]; ok {
			part.basics = map[string][]Basic{sp: bs}
		}
		out = append(out, part)
	}
	return out
}

// Basics returns the basic relations defining a single-space relation.
// ok is false when the relation spans several spaces or its definition was
// lost by a non-preserving operation.
func (m Map) Basics() (bs []Basic, ok bool) {
	spaces := m.Spaces()
	if len(spaces) != 1 {
		return nil, false
	}
	bs, ok = m.basics[spaces[0]]
	return slices.Clone(bs), ok
}

// Union returns m ∪ o. A space keeps its basic description only when every
// operand with pairs in that space describes it.
func (m Map) Union(o Map) Map {
	if o.IsEmpty() && len(o.basics) == 0 {
		return m
	}
	if m.IsEmpty() && len(m.basics) == 0 {
		return o
	}
	pairs := make(map[string]Pair, len(m.pairs)+len(o.pairs))
	for k, p := range m.pairs {
		pairs[k] = p
	}
	for k, p := range o.pairs {
		pairs[k] = p
	}
	res := Map{pairs: pairs}

	mSpaces, oSpaces := m.spaceSet(), o.spaceSet()
	basics := make(map[string][]Basic)
	for sp := range union(mSpaces, oSpaces) {
		mb, mok := m.basics[sp]
		ob, ook := o.basics[sp]
		if (mSpaces[sp] && !mok) || (oSpaces[sp] && !ook) {
			continue
		}
		basics[sp] = append(slices.Clone(mb), ob...)
	}
	if len(basics) > 0 {
		res.basics = basics
	}
	return res
}

func (m Map) spaceSet() map[string]bool {
	out := make(map[string]bool)
	for _, p := range m.pairs {
		out[p.Space()] = true
	}
	for sp := range m.basics {
		out[sp] = true
	}
	return out
}

func union(a, b map[string]bool) map[string]bool {
	out := make(map[string]bool, len(a)+len(b))
	for k := range a {
		out[k] = true
	}
	for k := range b {
		out[k] = true
	}
	return out
}

// Intersect returns m ∩ o.
func (m Map) Intersect(o Map) Map {
	return m.filter(func(p Pair) bool { return o.Contains(p.In, p.Out) })
}

// Subtract returns m \ o.
func (m Map) Subtract(o Map) Map {
	return m.filter(func(p Pair) bool { return !o.Contains(p.In, p.Out) })
}

// Filter returns the pairs of m satisfying keep.
func (m Map) Filter(keep func(Pair) bool) Map { return m.filter(keep) }

func (m Map) filter(keep func(Pair) bool) Map {
	var b mapBuilder
	for _, p := range m.pairs {
		if keep(p) {
			b.add(p.In, p.Out)
		}
	}
	return b.build()
}

// IsSubset reports whether m ⊆ o.
func (m Map) IsSubset(o Map) bool {
	for k := range m.pairs {
		if _, ok := o.pairs[k]; !ok {
			return false
		}
	}
	return true
}

// IsEqual reports whether m and o hold the same pairs.
func (m Map) IsEqual(o Map) bool {
	return m.Len() == o.Len() && m.IsSubset(o)
}

// Reverse returns { y -> x : x -> y ∈ m }.
func (m Map) Reverse() Map {
	var b mapBuilder
	for _, p := range m.pairs {
		b.add(p.Out, p.In)
	}
	return b.build()
}

// Domain returns { x : x -> y ∈ m }.
func (m Map) Domain() Set {
	var b setBuilder
	for _, p := range m.pairs {
		b.add(p.In)
	}
	return b.build()
}

// Range returns { y : x -> y ∈ m }.
func (m Map) Range() Set {
	var b setBuilder
	for _, p := range m.pairs {
		b.add(p.Out)
	}
	return b.build()
}

// IntersectDomain keeps the pairs whose domain element is in s.
func (m Map) IntersectDomain(s Set) Map {
	return m.filter(func(p Pair) bool { return s.Contains(p.In) })
}

// IntersectRange keeps the pairs whose range element is in s.
func (m Map) IntersectRange(s Set) Map {
	return m.filter(func(p Pair) bool { return s.Contains(p.Out) })
}

// SubtractDomain drops the pairs whose domain element is in s.
func (m Map) SubtractDomain(s Set) Map {
	return m.filter(func(p Pair) bool { return !s.Contains(p.In) })
}

// SubtractRange drops the pairs whose range element is in s.
func (m Map) SubtractRange(s Set) Map {
	return m.filter(func(p Pair) bool { return !s.Contains(p.Out) })
}

// ApplyRange composes m with o: { x -> z : x -> y ∈ m, y -> z ∈ o }.
func (m Map) ApplyRange(o Map) Map {
	byIn := o.indexByDomain()
	var b mapBuilder
	for _, p := range m.pairs {
		for _, q := range byIn[p.Out.String()] {
			b.add(p.In, q.Out)
		}
	}
	return b.build()
}

// ApplyDomain maps the domain of m through o: { y -> z : x -> z ∈ m, x -> y ∈ o }.
func (m Map) ApplyDomain(o Map) Map {
	byIn := o.indexByDomain()
	var b mapBuilder
	for _, p := range m.pairs {
		for _, q := range byIn[p.In.String()] {
			b.add(q.Out, p.Out)
		}
	}
	return b.build()
}

func (m Map) indexByDomain() map[string][]Pair {
	idx := make(map[string][]Pair)
	for _, p := range m.pairs {
		k := p.In.String()
		idx[k] = append(idx[k], p)
	}
	return idx
}

// RangeProduct returns { x -> [y -> z] : x -> y ∈ m, x -> z ∈ o }.
func (m Map) RangeProduct(o Map) Map {
	byIn := o.indexByDomain()
	var b mapBuilder
	for _, p := range m.pairs {
		for _, q := range byIn[p.In.String()] {
			b.add(p.In, WrapPair(p.Out, q.Out))
		}
	}
	return b.build()
}

// Wrap returns the set { [x -> y] : x -> y ∈ m }.
func (m Map) Wrap() Set {
	var b setBuilder
	for _, p := range m.pairs {
		b.add(WrapPair(p.In, p.Out))
	}
	return b.build()
}

// DomainMap returns { [x -> y] -> x : x -> y ∈ m }.
func (m Map) DomainMap() Map {
	var b mapBuilder
	for _, p := range m.pairs {
		b.add(WrapPair(p.In, p.Out), p.In)
	}
	return b.build()
}

// DomainFactorDomain maps [A -> B] -> C to A -> C. Pairs whose domain is
// not wrapped are dropped.
func (m Map) DomainFactorDomain() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		a, _, ok := p.In.Unwrap()
		return Pair{In: a, Out: p.Out}, ok
	})
}

// DomainFactorRange maps [A -> B] -> C to B -> C.
func (m Map) DomainFactorRange() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		_, b, ok := p.In.Unwrap()
		return Pair{In: b, Out: p.Out}, ok
	})
}

// RangeFactorDomain maps A -> [B -> C] to A -> B.
func (m Map) RangeFactorDomain() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		b, _, ok := p.Out.Unwrap()
		return Pair{In: p.In, Out: b}, ok
	})
}

// RangeFactorRange maps A -> [B -> C] to A -> C.
func (m Map) RangeFactorRange() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		_, c, ok := p.Out.Unwrap()
		return Pair{In: p.In, Out: c}, ok
	})
}

// FactorDomain maps [A -> B] -> [C -> D] to A -> C.
func (m Map) FactorDomain() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		a, _, ok1 := p.In.Unwrap()
		c, _, ok2 := p.Out.Unwrap()
		return Pair{In: a, Out: c}, ok1 && ok2
	})
}

// FactorRange maps [A -> B] -> [C -> D] to B -> D.
func (m Map) FactorRange() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		_, b, ok1 := p.In.Unwrap()
		_, d, ok2 := p.Out.Unwrap()
		return Pair{In: b, Out: d}, ok1 && ok2
	})
}

// Zip maps [A -> B] -> [C -> D] to [A -> C] -> [B -> D].
func (m Map) Zip() Map {
	return m.rewrite(func(p Pair) (Pair, bool) {
		a, b, ok1 := p.In.Unwrap()
		c, d, ok2 := p.Out.Unwrap()
		return Pair{In: WrapPair(a, c), Out: WrapPair(b, d)}, ok1 && ok2
	})
}

// Coalesce returns a compacted representation of m. Extensional relations
// are already canonical, so this is the identity.
func (m Map) Coalesce() Map { return m }

func (m Map) rewrite(f func(Pair) (Pair, bool)) Map {
	var b mapBuilder
	for _, p := range m.pairs {
		if q, ok := f(p); ok {
			b.add(q.In, q.Out)
		}
	}
	return b.build()
}

// String renders the relation in isl notation with sorted pairs.
func (m Map) String() string {
	if m.IsEmpty() {
		return "{ }"
	}
	parts := make([]string, 0, m.Len())
	for _, p := range m.Pairs() {
		parts = append(parts, p.key())
	}
	return "{ " + strings.Join(parts, "; ") + " }"
}

type mapBuilder struct {
	pairs map[string]Pair
}

func (b *mapBuilder) add(in, out Tuple) {
	if b.pairs == nil {
		b.pairs = make(map[string]Pair)
	}
	p := Pair{In: in, Out: out}
	b.pairs[p.key()] = p
}

func (b *mapBuilder) build() Map {
	if len(b.pairs) == 0 {
		return Map{}
	}
	return Map{pairs: b.pairs}
}
