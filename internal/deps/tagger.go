package deps

import (
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// Tagger returns { [S[i] -> ref[]] -> S[i] } for every tagged instance of
// a read, may-write or must-kill access of s.
func Tagger(s *scop.Scop) poly.Map {
	tagged := s.TaggedReads.
		Union(s.TaggedMayWrites).
		Union(s.TaggedMustKills)
	return tagged.Domain().Unwrap().DomainMap()
}

// ProjectTags drops the reference tags from both sides of a tagged
// dependence, { [S[i] -> a[]] -> [T[j] -> b[]] } becoming { S[i] -> T[j] }.
// Pairs that are not tagged on both sides are kept as they are, so
// projecting an untagged relation is a no-op.
func ProjectTags(m poly.Map) poly.Map {
	tagged := m.Filter(func(p poly.Pair) bool { return p.In.IsWrapped() && p.Out.IsWrapped() })
	plain := m.Subtract(tagged)
	return tagged.FactorDomain().Union(plain)
}

// untagDomain maps { [S[i] -> ref[]] -> e } to { S[i] -> e }.
func untagDomain(m poly.Map) poly.Map {
	return m.DomainFactorDomain()
}
