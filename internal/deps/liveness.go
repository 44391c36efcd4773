package deps

import (
	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// ComputeLiveOut returns the may-writes whose value may escape the scop.
//
// Must-writes and must-kills act as sinks and may-writes as sources: every
// (write, element) pair that reaches such a sink is definitely overwritten
// before the end of the scop. What remains of the may-writes is live-out,
// so the result is always a subset of s.MayWrites.
func ComputeLiveOut(s *scop.Scop) (poly.Map, error) {
	flow, err := poly.FromSink(s.MustWrites.Union(s.MustKills)).
		SetMaySource(s.MayWrites).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}
	// [write -> sink] -> element  =>  write -> element
	covered := flow.FullMayDependence().DomainFactorDomain()
	return s.MayWrites.Subtract(covered), nil
}
