package deps

import (
	"log/slog"

	"github.com/roach88/polydep/internal/scop"
)

// DCEStats describes a dead code elimination run.
type DCEStats struct {
	// Iterations is the number of fixpoint steps, including the final one
	// that found nothing new.
	Iterations int

	// LiveSizes records the size of the live set at the start of each
	// iteration; it never decreases.
	LiveSizes []int

	// Removed is the number of instances dropped from the domain.
	Removed int
}

// EliminateDeadCode removes the instances of s that cannot affect a
// live-out value or an opaque call.
//
// Starting from the writers of live-out data and the call instances, it
// repeatedly adds every instance that provides a flow dependence to a live
// one. Each step widens the live set to its affine hull within the
// domain, which bounds the number of steps by the number of distinct hulls
// instead of the length of the longest dependence chain.
//
// It returns a restricted copy of s and of a: the domain, schedule, flow
// dependences (by sink) and tagged flow dependences. s and a are not
// modified.
func EliminateDeadCode(s *scop.Scop, a *Analysis) (*scop.Scop, *Analysis, DCEStats) {
	var stats DCEStats
	depFlow := a.Deps.Get(Flow)
	producers := depFlow.Reverse()

	live := a.LiveOut.Domain().Union(s.Call).Intersect(s.Domain)
	for {
		stats.Iterations++
		stats.LiveSizes = append(stats.LiveSizes, live.Len())
		extra := live.Apply(producers)
		if extra.IsSubset(live) {
			break
		}
		live = live.Union(extra).AffineHull(s.Domain)
		slog.Debug("dce: live set widened", "scop", s.Name,
			"iteration", stats.Iterations, "live", live.Len())
	}
	stats.Removed = s.Domain.Len() - live.Len()

	out := *a
	out.Deps = a.Deps.with(Flow, depFlow.IntersectRange(live))
	if a.TaggedDeps.Has(Flow) {
		liveTagged := live.Apply(a.Tagger.Reverse())
		out.TaggedDeps = a.TaggedDeps.with(Flow, a.TaggedDeps.Get(Flow).IntersectRange(liveTagged))
	}

	slog.Info("dead code eliminated", "scop", s.Name,
		"removed", stats.Removed, "iterations", stats.Iterations)
	return s.WithDomain(live), &out, stats
}
