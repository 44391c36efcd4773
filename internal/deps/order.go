package deps

import (
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// ComputeOrderDependences returns the tagged order dependences that keep
// live ranges from being interleaved when live-range reordering is on.
//
// Every may-write is a sink. Its sources are the reads, together with the
// may-writes that never start a flow dependence: such a dead write still
// must not move past a later write of the same element.
func ComputeOrderDependences(s *scop.Scop, taggedFlow poly.Map) (poly.Map, error) {
	unmatched := s.TaggedMayWrites.SubtractDomain(taggedFlow.Domain())
	flow, err := poly.FromSink(s.TaggedMayWrites).
		SetMaySource(s.TaggedReads.Union(unmatched)).
		SetKill(s.TaggedMustWrites.Union(s.TaggedMustKills)).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}
	return flow.MayDependence(), nil
}

// ComputeForcedDependences returns the dependences that must hold even
// under live-range reordering, minus the user-asserted independences:
//
//   - a may-write before a live-out write of the same element stays before
//     it, so the last value written is the one that escapes;
//   - a live-in read stays before any may-write of the element it reads;
//   - may-writes feeding the same read keep their relative order.
//
// The last rule pairs every tagged flow source with the (sink, element)
// it provides and runs that relation against itself: two writes that may
// both provide the same read with the same element get ordered.
func ComputeForcedDependences(s *scop.Scop, liveOut, liveIn, taggedFlow poly.Map) (poly.Map, error) {
	lastWrite, err := poly.FromSink(liveOut).
		SetMaySource(s.MayWrites).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}
	firstRead, err := poly.FromSink(s.MayWrites).
		SetMaySource(liveIn).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}

	// source -> [sink -> element]
	shared := taggedFlow.RangeProduct(s.TaggedMayWrites)
	sharedSink, err := poly.FromSink(shared).
		SetMaySource(shared).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}

	forced := lastWrite.MayDependence().
		Union(firstRead.MayDependence()).
		Union(ProjectTags(sharedSink.MayDependence()))
	return forced.Subtract(s.Independence), nil
}
