package deps

import (
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// ComputeFlowDep computes flow dependences on untagged accesses.
//
// Reads are sinks, may-writes are sources, and must-writes and must-kills
// cut older sources off. It returns the flow dependences and live_in, the
// reads that may see a value defined before the scop.
func ComputeFlowDep(s *scop.Scop) (depFlow, liveIn poly.Map, err error) {
	flow, err := poly.FromSink(s.Reads).
		SetMaySource(s.MayWrites).
		SetKill(s.MustWrites.Union(s.MustKills)).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, poly.Map{}, err
	}
	return flow.MayDependence(), flow.MayNoSource(), nil
}

// ComputeTaggedFlowDepOnly computes flow dependences on tagged accesses,
// so that each edge records the write and read references it connects.
//
// Must-kills are removed from the sources: a kill is never a value a read
// can observe. The returned live_in is tagged.
func ComputeTaggedFlowDepOnly(s *scop.Scop) (taggedFlow, taggedLiveIn poly.Map, err error) {
	kills := s.TaggedMustWrites.Union(s.TaggedMustKills)
	sources := s.TaggedMayWrites.Union(s.TaggedMustWrites).
		SubtractDomain(s.TaggedMustKills.Domain())
	flow, err := poly.FromSink(s.TaggedReads).
		SetMaySource(sources).
		SetKill(kills).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, poly.Map{}, err
	}
	return flow.MayDependence(), flow.MayNoSource(), nil
}

// ComputeFalseDep computes write-after-write and write-after-read hazards
// in a single dataflow problem: may-writes are sinks, and both may-writes
// and reads compete as sources for each of them.
func ComputeFalseDep(s *scop.Scop) (poly.Map, error) {
	flow, err := poly.FromSink(s.MayWrites).
		SetMaySource(s.MayWrites.Union(s.Reads)).
		SetKill(s.MustWrites.Union(s.MustKills)).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}
	return flow.MayDependence().Coalesce(), nil
}

// RemoveIndependences drops the tagged flow edges between instances the
// user asserted to be independent.
//
// An edge whose source is a must-write is always kept. That write may have
// killed other sources of the same read; removing its edge would make the
// read look as if it had no dependence on them at all.
func RemoveIndependences(s *scop.Scop, taggedFlow poly.Map) poly.Map {
	if s.Independence.IsEmpty() {
		return taggedFlow
	}
	mustWrites := s.TaggedMustWrites.Domain()
	indep := taggedFlow.Filter(func(p poly.Pair) bool {
		return s.Independence.Contains(p.In.Instance(), p.Out.Instance()) &&
			!mustWrites.Contains(p.In)
	})
	return taggedFlow.Subtract(indep)
}
