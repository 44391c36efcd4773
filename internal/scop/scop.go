package scop

import (
	"errors"
	"fmt"

	"github.com/roach88/polydep/internal/poly"
)

// Scop holds the relations of one static control part.
//
// All fields are immutable values. Domain excludes the instances of
// kill-only statements, which only appear in MustKills and Schedule.
type Scop struct {
	Name    string
	Context map[string]int64

	Domain poly.Set
	Call   poly.Set

	Reads      poly.Map
	MayWrites  poly.Map
	MustWrites poly.Map
	MustKills  poly.Map

	TaggedReads      poly.Map
	TaggedMayWrites  poly.Map
	TaggedMustWrites poly.Map
	TaggedMustKills  poly.Map

	Schedule     poly.Schedule
	Independence poly.Map

	// Refs lists the references in declaration order.
	Refs []Ref
}

// Ref identifies a syntactic array reference.
type Ref struct {
	Name      string
	Statement string
	Array     string
	Kind      string
}

// Ref returns the reference with the given name.
func (s *Scop) Ref(name string) (Ref, bool) {
	for _, r := range s.Refs {
		if r.Name == name {
			return r, true
		}
	}
	return Ref{}, false
}

// WithDomain returns a copy of s restricted to the instances in live.
// Access relations, the schedule and Call are restricted too; kills keep
// only the instances that are still scheduled.
func (s *Scop) WithDomain(live poly.Set) *Scop {
	out := *s
	keep := live.Union(s.killInstances())
	out.Domain = s.Domain.Intersect(live)
	out.Call = s.Call.Intersect(live)
	out.Reads = s.Reads.IntersectDomain(live)
	out.MayWrites = s.MayWrites.IntersectDomain(live)
	out.MustWrites = s.MustWrites.IntersectDomain(live)
	out.MustKills = s.MustKills.IntersectDomain(keep)
	out.TaggedReads = restrictTagged(s.TaggedReads, live)
	out.TaggedMayWrites = restrictTagged(s.TaggedMayWrites, live)
	out.TaggedMustWrites = restrictTagged(s.TaggedMustWrites, live)
	out.TaggedMustKills = restrictTagged(s.TaggedMustKills, keep)
	out.Schedule = s.Schedule.IntersectDomain(keep)
	out.Independence = s.Independence.IntersectDomain(live).IntersectRange(live)
	return &out
}

func (s *Scop) killInstances() poly.Set {
	return s.MustKills.Domain().Subtract(s.Domain)
}

func restrictTagged(m poly.Map, live poly.Set) poly.Map {
	return m.Filter(func(p poly.Pair) bool { return live.Contains(p.In.Instance()) })
}

// InputError reports a scop description the analysis cannot represent:
// a non-affine bound or subscript, a data-dependent condition, a schedule
// giving two instances the same time, or a domain larger than the
// configured instance limit. It is fatal to the scop only.
type InputError struct {
	Scop      string
	Statement string
	Err       error
}

func (e *InputError) Error() string {
	if e.Statement == "" {
		return fmt.Sprintf("scop %s: unsupported input: %v", e.Scop, e.Err)
	}
	return fmt.Sprintf("scop %s: statement %s: unsupported input: %v", e.Scop, e.Statement, e.Err)
}

func (e *InputError) Unwrap() error { return e.Err }

// IsInputError checks if an error is an InputError.
func IsInputError(err error) bool {
	var ie *InputError
	return errors.As(err, &ie)
}
