package harness

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"

	"github.com/roach88/polydep/internal/engine"
	"github.com/roach88/polydep/internal/store"
	"github.com/roach88/polydep/internal/testutil"
)

// Harness executes scenarios against an isolated store.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation, with a
// fresh clock and sequential analysis IDs derived from the scenario name.
//
// Execution flow:
// 1. Create fresh in-memory database
// 2. Analyze the scop through the engine, which persists the outcome
// 3. Compare every expected relation
// 4. Evaluate assertions against the result and the store
//
// An error is returned only when the scenario cannot be executed; a
// failing analysis is a result like any other.
func Run(scenario *Scenario) (*Result, error) {
	if scenario.Scop == nil {
		return nil, fmt.Errorf("scenario %q has no scop", scenario.Name)
	}
	opts, err := scenario.Options.AnalysisOptions()
	if err != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	h := &Harness{
		store: st,
		engine: engine.New(st, opts,
			engine.WithDCE(scenario.Options.DCE),
			engine.WithIDGenerator(testutil.NewSequentialIDGenerator(scenario.Name)),
		),
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)), // Suppress logs in tests
	}

	ctx := context.Background()
	out := h.engine.Analyze(ctx, scenario.Scop)
	if out.StoreErr != nil {
		return nil, fmt.Errorf("scenario %q: %w", scenario.Name, out.StoreErr)
	}

	result := NewResult()
	result.record(out)
	h.logger.Info("scenario analyzed",
		"scenario", scenario.Name,
		"analysis", out.ID,
		"status", result.Status,
	)

	for _, msg := range checkExpectations(result, scenario.Expect) {
		result.AddError(msg)
	}

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, msg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(msg)
	}

	return result, nil
}

// checkExpectations compares expected relations in name order.
func checkExpectations(result *Result, expect map[string]string) []string {
	var errs []string
	for _, name := range slices.Sorted(maps.Keys(expect)) {
		want := expect[name]
		got, ok := result.Relations[name]
		switch {
		case !ok && result.Status == store.StatusFailed:
			errs = append(errs, fmt.Sprintf("relation %s: analysis failed with %s", name, result.ErrorCode))
		case !ok:
			errs = append(errs, fmt.Sprintf("relation %s: not computed with these options", name))
		case got != want:
			errs = append(errs, fmt.Sprintf("relation %s:\n  Expected: %s\n  Actual:   %s", name, want, got))
		}
	}
	return errs
}
