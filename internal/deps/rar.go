package deps

import (
	"context"
	"log/slog"
	"slices"

	"golang.org/x/sync/errgroup"

	"github.com/roach88/polydep/internal/poly"
	"github.com/roach88/polydep/internal/scop"
)

// IsExternalAccess reports whether the reference tag takes part in no
// tagged flow dependence, neither as source nor as sink.
func IsExternalAccess(tag poly.Tuple, taggedFlow poly.Map) bool {
	// [S[i] -> a[]] -> [T[j] -> b[]]  =>  a[] -> b[]
	for _, p := range taggedFlow.FactorRange().Pairs() {
		if p.In.Equal(tag) || p.Out.Equal(tag) {
			return false
		}
	}
	return true
}

// Matrix is an integer matrix with an explicit column count, so that a
// matrix without rows still knows its width.
type Matrix struct {
	Rows [][]int64
	Cols int
}

// AccessMatrix reads the linear part of an access relation off its single
// defining basic relation: row k holds the coefficients of the iteration
// dimensions in the subscript of array dimension k.
//
// Each equality is matched to the one array dimension it defines, which
// must have a unit coefficient. An equality that defines no array
// dimension this way leaves its row zero. ok is false when the relation is
// not described by exactly one basic relation.
func AccessMatrix(access poly.Map) (m Matrix, ok bool) {
	bs, ok := access.Basics()
	if !ok || len(bs) != 1 {
		return Matrix{}, false
	}
	b := bs[0]
	m = Matrix{Rows: make([][]int64, b.NOut), Cols: b.NIn}
	for k := range m.Rows {
		m.Rows[k] = make([]int64, b.NIn)
	}
	for _, c := range b.Equalities() {
		row, sign := -1, int64(0)
		for k, v := range c.Out {
			if v == 0 {
				continue
			}
			if row >= 0 || (v != 1 && v != -1) {
				row = -1
				break
			}
			row, sign = k, v
		}
		if row < 0 {
			continue
		}
		for j := range b.NIn {
			var v int64
			if j < len(c.In) {
				v = c.In[j]
			}
			m.Rows[row][j] = -v * sign
		}
	}
	return m, true
}

// Pick is the outcome of reuse vector selection.
type Pick struct {
	// Vector is the chosen reuse vector; nil when OK is false.
	Vector []int64

	// Candidates lists the qualifying candidates in null-space column
	// order. Override indices refer to this list.
	Candidates [][]int64

	// Chosen is the index of Vector in Candidates.
	Chosen int

	// Overridden is true when Chosen came from a user override.
	Overridden bool

	OK bool
}

// SmartPick selects a reuse vector among the null-space basis vectors.
//
// Only vectors with the minimal number of non-zero components qualify,
// and if that minimum exceeds one the access is rejected: reuse along
// several loops at once is not supported. In tiled mode a vector with a
// negative component is disqualified. The default choice minimizes
// Σ |v[d]|·2^d over qualifying vectors (d = 0 is the outermost loop), so
// reuse along outer loops wins; override, when it is a valid index into
// the qualifying list, selects that candidate instead.
func SmartPick(kernel [][]int64, tiled bool, override int) Pick {
	if len(kernel) == 0 {
		return Pick{}
	}
	minCount := -1
	for _, v := range kernel {
		if c := nonZero(v); minCount < 0 || c < minCount {
			minCount = c
		}
	}
	if minCount > 1 {
		return Pick{}
	}

	var cands [][]int64
	best, bestScore := -1, int64(-1)
	for _, v := range kernel {
		if nonZero(v) != minCount {
			continue
		}
		score := reuseScore(v, tiled)
		if score < 0 {
			continue
		}
		cands = append(cands, slices.Clone(v))
		if best < 0 || score < bestScore {
			best, bestScore = len(cands)-1, score
		}
	}
	if best < 0 {
		return Pick{}
	}
	p := Pick{Candidates: cands, Chosen: best, OK: true}
	if override >= 0 && override < len(cands) {
		p.Chosen, p.Overridden = override, true
	}
	p.Vector = slices.Clone(cands[p.Chosen])
	return p
}

func nonZero(v []int64) int {
	n := 0
	for _, x := range v {
		if x != 0 {
			n++
		}
	}
	return n
}

// reuseScore returns -1 for a vector disqualified in tiled mode.
func reuseScore(v []int64, tiled bool) int64 {
	var score int64
	for d, x := range v {
		if x < 0 {
			if tiled {
				return -1
			}
			x = -x
		}
		score += x << d
	}
	return score
}

// BuildRARDependence builds the reuse dependence of a tagged access:
// { x -> x + v } where both endpoints are instances of the access. The
// identity on the access domain is returned when there is no vector, the
// vector does not fit the instances, or no instance has a successor.
func BuildRARDependence(access poly.Map, v []int64, ok bool) poly.Map {
	dom := access.Domain()
	if !ok {
		return dom.Identity()
	}
	var pairs []poly.Pair
	for _, t := range dom.Tuples() {
		inst, tag, wrapped := t.Unwrap()
		if !wrapped || inst.Dim() != len(v) {
			return dom.Identity()
		}
		next := inst.Coords()
		for d := range next {
			next[d] += v[d]
		}
		succ := poly.WrapPair(inst.WithCoords(next), tag)
		if dom.Contains(succ) {
			pairs = append(pairs, poly.Pair{In: t, Out: succ})
		}
	}
	if len(pairs) == 0 {
		return dom.Identity()
	}
	return poly.NewMap(pairs...)
}

// CandidateReport records the reuse candidates of a read with more than
// one qualifying vector, and the one that was chosen.
type CandidateReport struct {
	Ref        string
	Candidates [][]int64
	Chosen     int
	Overridden bool
}

type rarResult struct {
	dep    poly.Map
	report *CandidateReport
}

// ComputeTaggedRARDepOnly computes the tagged read-after-read reuse
// dependences of every external read of s.
//
// Each read reference is analyzed independently, up to workers at a time;
// the results are unioned in reference order, so the outcome does not
// depend on scheduling. A read that is not external gets no entry.
func ComputeTaggedRARDepOnly(ctx context.Context, s *scop.Scop, taggedFlow poly.Map, opts RAROptions, workers int) (poly.Map, []CandidateReport, error) {
	var accesses []poly.Map
	var refs []string
	for _, part := range s.TaggedReads.SplitSpaces() {
		_, tag, ok := part.Domain().Tuples()[0].Unwrap()
		if !ok || !IsExternalAccess(tag, taggedFlow) {
			continue
		}
		accesses = append(accesses, part)
		refs = append(refs, tag.Name())
	}

	results := make([]rarResult, len(accesses))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(max(workers, 1))
	for i, acc := range accesses {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = analyzeRead(refs[i], acc, opts)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return poly.Map{}, nil, err
	}

	var dep poly.Map
	var reports []CandidateReport
	for _, r := range results {
		dep = dep.Union(r.dep)
		if r.report != nil {
			reports = append(reports, *r.report)
		}
	}
	return dep, reports, nil
}

func analyzeRead(ref string, access poly.Map, opts RAROptions) rarResult {
	mat, ok := AccessMatrix(access)
	if !ok {
		slog.Debug("rar: access has no single basic relation, using identity", "ref", ref)
		return rarResult{dep: BuildRARDependence(access, nil, false)}
	}
	pick := SmartPick(poly.Kernel(mat.Rows, mat.Cols), opts.Tiled, opts.Override(ref))
	switch i := opts.Override(ref); {
	case !pick.OK:
		slog.Debug("rar: access has no qualifying reuse vector, using identity", "ref", ref)
		if i >= 0 {
			slog.Warn("rar: override ignored, access has no qualifying reuse vector",
				"ref", ref, "index", i)
		}
	case i >= 0 && !pick.Overridden:
		slog.Warn("rar: override index out of range, using heuristic",
			"ref", ref, "index", i, "candidates", len(pick.Candidates))
	}
	res := rarResult{dep: BuildRARDependence(access, pick.Vector, pick.OK)}
	if len(pick.Candidates) > 1 {
		res.report = &CandidateReport{
			Ref:        ref,
			Candidates: pick.Candidates,
			Chosen:     pick.Chosen,
			Overridden: pick.Overridden,
		}
		slog.Info("rar: multiple reuse candidates",
			"ref", ref, "candidates", pick.Candidates, "chosen", pick.Chosen)
	}
	return res
}

// ComputeTaggedWAWDepOnly computes tagged write-after-write dependences:
// may-writes are both sinks and sources, with the kills of flow analysis.
func ComputeTaggedWAWDepOnly(s *scop.Scop) (poly.Map, error) {
	flow, err := poly.FromSink(s.TaggedMayWrites).
		SetMaySource(s.TaggedMayWrites).
		SetKill(s.TaggedMustWrites.Union(s.TaggedMustKills)).
		SetSchedule(s.Schedule).
		ComputeFlow()
	if err != nil {
		return poly.Map{}, err
	}
	return flow.MayDependence(), nil
}
