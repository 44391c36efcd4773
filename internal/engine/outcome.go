package engine

import (
	"cmp"
	"slices"
	"strings"

	"github.com/roach88/polydep/internal/compiler"
	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/scop"
	"github.com/roach88/polydep/internal/store"
)

// Relation names stored next to the dependence kinds.
const (
	RelLiveIn  = "live_in"
	RelLiveOut = "live_out"
	RelDomain  = "domain"
)

// Outcome is the result of analyzing one scop.
//
// A fresh outcome carries the live Analysis and the (possibly
// DCE-restricted) scop. A cached outcome only carries what the store keeps:
// the printed relations and candidate reports.
type Outcome struct {
	Scop        string
	ID          string
	Seq         int64
	ScopHash    string
	OptionsHash string
	Cached      bool

	Result   *scop.Scop
	Analysis *deps.Analysis
	DCE      *deps.DCEStats

	// Dependences holds every printed relation, sorted by kind with
	// untagged before tagged.
	Dependences []store.DependenceRecord
	Candidates  []store.CandidateRecord
	Recurrences []compiler.RecurrenceWarning

	// Err is set when the scop was dropped.
	Err error

	// StoreErr is set when the outcome could not be persisted.
	StoreErr error
}

// OK reports whether the scop was analyzed.
func (o Outcome) OK() bool { return o.Err == nil }

// Relation returns the printed relation with the given name.
func (o Outcome) Relation(kind string, tagged bool) (string, bool) {
	for _, d := range o.Dependences {
		if d.Kind == kind && d.Tagged == tagged {
			return d.Relation, true
		}
	}
	return "", false
}

func outcomeFromRecord(rec store.AnalysisRecord) Outcome {
	out := Outcome{
		Scop:        rec.ScopName,
		ID:          rec.ID,
		Seq:         rec.Seq,
		ScopHash:    rec.ScopHash,
		OptionsHash: rec.OptionsHash,
		Cached:      true,
		Dependences: rec.Dependences,
		Candidates:  rec.Candidates,
	}
	if rec.DCEIterations > 0 {
		out.DCE = &deps.DCEStats{
			Iterations: rec.DCEIterations,
			LiveSizes:  rec.DCELiveSizes,
			Removed:    rec.DCERemoved,
		}
	}
	return out
}

func dependenceRecords(a *deps.Analysis, s *scop.Scop) []store.DependenceRecord {
	var recs []store.DependenceRecord
	for _, k := range a.Deps.Kinds() {
		m := a.Deps.Get(k)
		recs = append(recs, store.DependenceRecord{Kind: k.String(), Relation: m.String(), Size: m.Len()})
	}
	for _, k := range a.TaggedDeps.Kinds() {
		m := a.TaggedDeps.Get(k)
		recs = append(recs, store.DependenceRecord{Kind: k.String(), Tagged: true, Relation: m.String(), Size: m.Len()})
	}
	recs = append(recs,
		store.DependenceRecord{Kind: RelLiveIn, Relation: a.LiveIn.String(), Size: a.LiveIn.Len()},
		store.DependenceRecord{Kind: RelLiveOut, Relation: a.LiveOut.String(), Size: a.LiveOut.Len()},
		store.DependenceRecord{Kind: RelDomain, Relation: s.Domain.String(), Size: s.Domain.Len()},
	)
	sortRecords(recs)
	return recs
}

// sortRecords orders records like store.ReadDependences does.
func sortRecords(recs []store.DependenceRecord) {
	slices.SortFunc(recs, func(a, b store.DependenceRecord) int {
		if c := strings.Compare(a.Kind, b.Kind); c != 0 {
			return c
		}
		return cmp.Compare(boolRank(a.Tagged), boolRank(b.Tagged))
	})
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}

func candidateRecords(reports []deps.CandidateReport) []store.CandidateRecord {
	recs := make([]store.CandidateRecord, len(reports))
	for i, r := range reports {
		recs[i] = store.CandidateRecord{
			Ref:        r.Ref,
			Candidates: r.Candidates,
			Chosen:     r.Chosen,
			Overridden: r.Overridden,
		}
	}
	slices.SortFunc(recs, func(a, b store.CandidateRecord) int {
		return strings.Compare(a.Ref, b.Ref)
	})
	return recs
}
