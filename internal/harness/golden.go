package harness

import (
	"testing"

	"github.com/sebdah/goldie/v2"

	"github.com/roach88/polydep/internal/ir"
)

// Snapshot renders the deterministic part of a result as canonical JSON:
// status, relations, candidate reports, recurrences and DCE statistics.
// Analysis IDs are left out.
func Snapshot(scenarioName string, result *Result) ([]byte, error) {
	relations := make(map[string]any, len(result.Relations))
	for name, rel := range result.Relations {
		relations[name] = rel
	}

	candidates := make([]any, len(result.Candidates))
	for i, c := range result.Candidates {
		vectors := make([]any, len(c.Candidates))
		for j, v := range c.Candidates {
			coords := make([]any, len(v))
			for k, x := range v {
				coords[k] = x
			}
			vectors[j] = coords
		}
		candidates[i] = map[string]any{
			"ref":        c.Ref,
			"candidates": vectors,
			"chosen":     c.Chosen,
			"overridden": c.Overridden,
		}
	}

	recurrences := make([]any, len(result.Recurrences))
	for i, w := range result.Recurrences {
		path := make([]any, len(w.Path))
		for j, s := range w.Path {
			path[j] = s
		}
		recurrences[i] = map[string]any{
			"path":    path,
			"level":   w.Level,
			"message": w.Message,
		}
	}

	snapshot := map[string]any{
		"scenario_name": scenarioName,
		"scop":          result.Scop,
		"status":        result.Status,
		"relations":     relations,
		"candidates":    candidates,
		"recurrences":   recurrences,
	}
	if result.ErrorCode != "" {
		snapshot["error_code"] = result.ErrorCode
	}
	if result.DCE != nil {
		snapshot["dce"] = map[string]any{
			"iterations": result.DCE.Iterations,
			"removed":    result.DCE.Removed,
		}
	}
	return ir.MarshalCanonical(snapshot)
}

// RunWithGolden executes a scenario and compares its snapshot against a
// golden file stored in testdata/golden/{scenario.Name}.golden
//
// To regenerate golden files, run:
//
//	go test ./internal/harness -update
//
// Returns error if scenario execution fails.
// Test failure (via goldie) occurs if the snapshot doesn't match.
func RunWithGolden(t *testing.T, scenario *Scenario) (*Result, error) {
	t.Helper()

	result, err := Run(scenario)
	if err != nil {
		return nil, err
	}
	if err := AssertGolden(t, scenario.Name, result); err != nil {
		return nil, err
	}
	return result, nil
}

// AssertGolden compares an existing result against a golden file without
// re-running the scenario.
func AssertGolden(t *testing.T, scenarioName string, result *Result) error {
	t.Helper()

	data, err := Snapshot(scenarioName, result)
	if err != nil {
		return err
	}

	g := goldie.New(t,
		goldie.WithFixtureDir("testdata/golden"),
		goldie.WithNameSuffix(".golden"),
	)
	g.Assert(t, scenarioName, data)

	return nil
}
