package deps

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// Analysis is the result of ComputeDependences. All fields are immutable.
type Analysis struct {
	// Tagger maps tagged instances to instances.
	Tagger poly.Map

	LiveIn  poly.Map
	LiveOut poly.Map

	// Deps holds untagged dependences, instance -> instance.
	Deps Bundle

	// TaggedDeps holds the tagged variants of Flow, Order, RAR and WAW
	// when they were computed.
	TaggedDeps Bundle

	// Candidates reports every RAR access with more than one qualifying
	// reuse vector.
	Candidates []CandidateReport
}

// ComputeDependences runs the full dependence analysis of s.
//
// Any error aborts the analysis of s and is an *AnalysisError, except for
// context cancellation, which is returned as is.
func ComputeDependences(ctx context.Context, s *scop.Scop, opts Options) (*Analysis, error) {
	if err := checkShapes(s); err != nil {
		return nil, NewUnsupportedInputError(s.Name, "shape", err)
	}
	a := &Analysis{Tagger: Tagger(s)}

	liveOut, err := ComputeLiveOut(s)
	if err != nil {
		return nil, relationFailure(s.Name, "live_out", err)
	}
	a.LiveOut = liveOut
	slog.Debug("live-out computed", "scop", s.Name, "pairs", liveOut.Len())

	var depFlow poly.Map
	switch {
	case opts.LiveRangeReordering:
		tagged, taggedLiveIn, err := ComputeTaggedFlowDepOnly(s)
		if err != nil {
			return nil, relationFailure(s.Name, "flow", err)
		}
		tagged = RemoveIndependences(s, tagged)
		depFlow = ProjectTags(tagged)
		a.TaggedDeps.set(Flow, tagged)
		a.LiveIn = untagDomain(taggedLiveIn)

		taggedOrder, err := ComputeOrderDependences(s, tagged)
		if err != nil {
			return nil, relationFailure(s.Name, "order", err)
		}
		a.TaggedDeps.set(Order, taggedOrder)
		a.Deps.set(Order, ProjectTags(taggedOrder))

		forced, err := ComputeForcedDependences(s, a.LiveOut, a.LiveIn, tagged)
		if err != nil {
			return nil, relationFailure(s.Name, "forced", err)
		}
		a.Deps.set(Forced, forced)

	case opts.Target.RequiresTaggedFlow() || opts.AutoSA:
		tagged, taggedLiveIn, err := ComputeTaggedFlowDepOnly(s)
		if err != nil {
			return nil, relationFailure(s.Name, "flow", err)
		}
		depFlow = ProjectTags(tagged)
		a.TaggedDeps.set(Flow, tagged)
		a.LiveIn = untagDomain(taggedLiveIn)

	default:
		depFlow, a.LiveIn, err = ComputeFlowDep(s)
		if err != nil {
			return nil, relationFailure(s.Name, "flow", err)
		}
	}
	a.Deps.set(Flow, depFlow)
	slog.Debug("flow dependences computed", "scop", s.Name,
		"pairs", depFlow.Len(), "reordering", opts.LiveRangeReordering)

	depFalse, err := ComputeFalseDep(s)
	if err != nil {
		return nil, relationFailure(s.Name, "false", err)
	}
	// An instance pair already ordered by flow needs no separate edge.
	// Flow ∪ False is unchanged, so consumers that union them for
	// validity see every hazard.
	a.Deps.set(False, depFalse.Subtract(depFlow))

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if opts.AutoSA {
		taggedRAR, reports, err := ComputeTaggedRARDepOnly(ctx, s, a.TaggedDeps.Get(Flow), opts.RAR, opts.workers())
		if err != nil {
			if ctx.Err() != nil {
				return nil, err
			}
			return nil, relationFailure(s.Name, "rar", err)
		}
		a.TaggedDeps.set(RAR, taggedRAR)
		a.Deps.set(RAR, ProjectTags(taggedRAR))
		a.Candidates = reports

		taggedWAW, err := ComputeTaggedWAWDepOnly(s)
		if err != nil {
			return nil, relationFailure(s.Name, "waw", err)
		}
		a.TaggedDeps.set(WAW, taggedWAW)
		a.Deps.set(WAW, ProjectTags(taggedWAW))
		slog.Debug("reuse dependences computed", "scop", s.Name,
			"rar", taggedRAR.Len(), "waw", taggedWAW.Len(), "candidates", len(reports))
	}

	slog.Info("dependence analysis complete", "scop", s.Name, "kinds", len(a.Deps.Kinds()))
	return a, nil
}

// checkShapes verifies that untagged accesses start at plain instances and
// tagged accesses at [instance -> reference] pairs.
func checkShapes(s *scop.Scop) error {
	plain := []struct {
		name string
		m    poly.Map
	}{
		{"reads", s.Reads}, {"may_writes", s.MayWrites},
		{"must_writes", s.MustWrites}, {"must_kills", s.MustKills},
	}
	for _, r := range plain {
		for _, t := range r.m.Domain().Tuples() {
			if t.IsWrapped() {
				return fmt.Errorf("%s: domain element %s is tagged", r.name, t)
			}
		}
	}
	tagged := []struct {
		name string
		m    poly.Map
	}{
		{"tagged_reads", s.TaggedReads}, {"tagged_may_writes", s.TaggedMayWrites},
		{"tagged_must_writes", s.TaggedMustWrites}, {"tagged_must_kills", s.TaggedMustKills},
	}
	for _, r := range tagged {
		for _, t := range r.m.Domain().Tuples() {
			inst, tag, ok := t.Unwrap()
			if !ok || inst.IsWrapped() || tag.IsWrapped() || tag.Dim() != 0 {
				return fmt.Errorf("%s: domain element %s is not [instance -> reference[]]", r.name, t)
			}
		}
	}
	return nil
}
