package engine

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/roach88/polydep/internal/deps"
	"github.com/roach88/polydep/internal/store"
)

// ReplayReport compares a stored analysis with a fresh recomputation.
type ReplayReport struct {
	AnalysisID string
	Scop       string

	// Diffs lists every relation whose recomputed value differs from the
	// stored one, in record order. Empty means the replay matched.
	Diffs []RelationDiff

	// Err is the recomputation error, if the replay itself failed.
	Err error
}

// Match reports whether the replay reproduced the stored analysis.
func (r ReplayReport) Match() bool { return r.Err == nil && len(r.Diffs) == 0 }

// RelationDiff is a relation that differs between store and replay.
// A missing side is the empty string.
type RelationDiff struct {
	Kind     string
	Tagged   bool
	Stored   string
	Replayed string
}

// storedOptions mirrors deps.Options.Canonical plus the engine's own
// switches.
type storedOptions struct {
	LiveRangeReordering bool           `json:"live_range_reordering"`
	AutoSA              bool           `json:"autosa"`
	Target              string         `json:"target"`
	RARTiled            bool           `json:"rar_tiled"`
	RAROverrides        map[string]int `json:"rar_overrides"`
	DCE                 bool           `json:"dce"`
}

// Replay recomputes a stored analysis from its canonical scop and options
// and reports every relation that changed. The replay is not persisted.
//
// Returns sql.ErrNoRows (wrapped in a RuntimeError) if the analysis does
// not exist.
func Replay(ctx context.Context, s *store.Store, id string) (ReplayReport, error) {
	rec, err := s.ReadAnalysis(ctx, id)
	if errors.Is(err, sql.ErrNoRows) {
		return ReplayReport{}, storeFailure("", id, "analysis not found", err)
	}
	if err != nil {
		return ReplayReport{}, storeFailure("", id, "read analysis", err)
	}

	spec, err := store.UnmarshalScop(rec.Scop)
	if err != nil {
		return ReplayReport{}, corruptRecord(id, "decode scop", err)
	}
	var so storedOptions
	if err := json.Unmarshal([]byte(rec.Options), &so); err != nil {
		return ReplayReport{}, corruptRecord(id, "decode options", err)
	}
	target, err := deps.ParseTarget(so.Target)
	if err != nil {
		return ReplayReport{}, corruptRecord(id, "decode options", err)
	}
	opts := deps.Options{
		LiveRangeReordering: so.LiveRangeReordering,
		AutoSA:              so.AutoSA,
		Target:              target,
		RAR:                 deps.RAROptions{Tiled: so.RARTiled, Overrides: so.RAROverrides},
	}

	// Same inputs, no store: nothing is written and the cache is bypassed.
	e := New(nil, opts, WithDCE(so.DCE), WithIDGenerator(fixedID(id)))
	out := e.Analyze(ctx, spec)

	report := ReplayReport{AnalysisID: id, Scop: rec.ScopName}
	switch {
	case out.Err != nil && rec.Status == store.StatusFailed:
		// Failing the same way is a match.
		if ErrorCode(out.Err) != rec.ErrorCode {
			report.Err = fmt.Errorf("replay failed with %s, stored %s", ErrorCode(out.Err), rec.ErrorCode)
		}
	case out.Err != nil:
		report.Err = out.Err
	case rec.Status == store.StatusFailed:
		report.Err = fmt.Errorf("stored analysis failed with %s but replay succeeded", rec.ErrorCode)
	default:
		report.Diffs = diffRecords(rec.Dependences, out.Dependences)
	}

	slog.Info("replay complete", "analysis", id, "scop", rec.ScopName,
		"match", report.Match(), "diffs", len(report.Diffs))
	return report, nil
}

type fixedID string

func (f fixedID) Generate() string { return string(f) }

func diffRecords(stored, replayed []store.DependenceRecord) []RelationDiff {
	type key struct {
		kind   string
		tagged bool
	}
	byKey := make(map[key]string, len(replayed))
	for _, d := range replayed {
		byKey[key{d.Kind, d.Tagged}] = d.Relation
	}

	var diffs []RelationDiff
	seen := make(map[key]bool, len(stored))
	for _, d := range stored {
		k := key{d.Kind, d.Tagged}
		seen[k] = true
		if got, ok := byKey[k]; !ok || got != d.Relation {
			diffs = append(diffs, RelationDiff{Kind: d.Kind, Tagged: d.Tagged, Stored: d.Relation, Replayed: got})
		}
	}
	for _, d := range replayed {
		if !seen[key{d.Kind, d.Tagged}] {
			diffs = append(diffs, RelationDiff{Kind: d.Kind, Tagged: d.Tagged, Replayed: d.Relation})
		}
	}
	return diffs
}
