package cli

import (
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/engine"
	"github.com/roach88/polydep/internal/testutil"
)

// analyzeResponse mirrors the JSON output of analyze.
type analyzeResponse struct {
	Status string        `json:"status"`
	Data   AnalyzeResult `json:"data"`
	Error  *CLIError     `json:"error"`
}

func runAnalyzeCmd(t *testing.T, ids engine.IDGenerator, format string, args ...string) (string, error) {
	t.Helper()
	if ids == nil {
		ids = testutil.NewSequentialIDGenerator("analysis")
	}
	cmd := newAnalyzeCommand(&AnalyzeOptions{
		RootOptions: &RootOptions{Format: format},
		IDGenerator: ids,
	})
	out, _, err := execute(cmd, args...)
	return out, err
}

func relation(summary AnalysisSummary, name string) (RelationSummary, bool) {
	for _, r := range summary.Relations {
		if r.Name == name {
			return r, true
		}
	}
	return RelationSummary{}, false
}

func TestAnalyze_Text(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE)

	out, err := runAnalyzeCmd(t, nil, "text", dir)
	require.NoError(t, err)

	assert.Contains(t, out, "✓ producer_consumer")
	assert.Contains(t, out, "{ S1[0] -> S2[0]; S1[1] -> S2[1] }")
	assert.Contains(t, out, "live_out:")
	assert.Contains(t, out, "{ S2[0] -> A[0]; S2[1] -> A[1] }")
	assert.Contains(t, out, "Analyzed 1 scop(s), 0 dropped")
}

func TestAnalyze_JSON(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE)

	out, err := runAnalyzeCmd(t, nil, "json", dir)
	require.NoError(t, err)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	assert.Equal(t, "ok", resp.Status)
	assert.Nil(t, resp.Error)
	assert.Equal(t, 1, resp.Data.Analyzed)
	assert.Equal(t, 0, resp.Data.Failed)
	require.Len(t, resp.Data.Analyses, 1)

	a := resp.Data.Analyses[0]
	assert.Equal(t, "producer_consumer", a.Scop)
	assert.Equal(t, "ok", a.Status)
	assert.False(t, a.Cached)
	assert.Nil(t, a.DCE)

	flow, ok := relation(a, "flow")
	require.True(t, ok)
	assert.Equal(t, "{ S1[0] -> S2[0]; S1[1] -> S2[1] }", flow.Relation)
	assert.Equal(t, 2, flow.Size)

	falseDeps, ok := relation(a, "false")
	require.True(t, ok)
	assert.Equal(t, "{ }", falseDeps.Relation)

	domain, ok := relation(a, "domain")
	require.True(t, ok)
	assert.Equal(t, "{ S1[0]; S1[1]; S2[0]; S2[1] }", domain.Relation)

	_, ok = relation(a, "rar")
	assert.False(t, ok, "rar needs --autosa")
}

func TestAnalyze_AutoSAWithPick(t *testing.T) {
	dir := writeScopDir(t, scalarReuseCUE)

	out, err := runAnalyzeCmd(t, nil, "json", dir, "--autosa", "--target", "hls", "--rar-pick", "r_x=1")
	require.NoError(t, err)

	var resp analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Analyses, 1)
	a := resp.Data.Analyses[0]

	rar, ok := relation(a, "rar")
	require.True(t, ok)
	assert.Equal(t, "{ S1[0, 0] -> S1[0, 1]; S1[1, 0] -> S1[1, 1] }", rar.Relation)

	require.Len(t, a.Candidates, 1)
	assert.Equal(t, CandidateSummary{
		Ref:        "r_x",
		Candidates: [][]int64{{1, 0}, {0, 1}},
		Chosen:     1,
		Overridden: true,
	}, a.Candidates[0])
}

func TestAnalyze_DroppedScop(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE, nonAffineCUE)

	t.Run("text", func(t *testing.T) {
		out, err := runAnalyzeCmd(t, nil, "text", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))
		assert.Contains(t, err.Error(), "1 scop(s) dropped")
		assert.Contains(t, out, "✗ squares")
		assert.Contains(t, out, "✓ producer_consumer")
		assert.Contains(t, out, "Analyzed 1 scop(s), 1 dropped")
	})

	t.Run("json", func(t *testing.T) {
		out, err := runAnalyzeCmd(t, nil, "json", dir)
		require.Error(t, err)
		assert.Equal(t, ExitFailure, GetExitCode(err))

		var resp analyzeResponse
		require.NoError(t, json.Unmarshal([]byte(out), &resp))
		assert.Equal(t, "error", resp.Status)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "UNSUPPORTED_INPUT", resp.Error.Code)
		assert.Equal(t, 1, resp.Data.Failed)
	})
}

func TestAnalyze_ScopFilter(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE, scalarReuseCUE)

	out, err := runAnalyzeCmd(t, nil, "text", dir, "--scop", "scalar_reuse")
	require.NoError(t, err)
	assert.Contains(t, out, "✓ scalar_reuse")
	assert.NotContains(t, out, "producer_consumer")

	_, err = runAnalyzeCmd(t, nil, "text", dir, "--scop", "nope")
	require.Error(t, err)
	assert.Equal(t, ExitCommandError, GetExitCode(err))
}

func TestAnalyze_CommandErrors(t *testing.T) {
	t.Run("missing_dir", func(t *testing.T) {
		out, err := runAnalyzeCmd(t, nil, "text", filepath.Join(t.TempDir(), "missing"))
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E005]")
	})

	t.Run("bad_target", func(t *testing.T) {
		dir := writeScopDir(t, producerConsumerCUE)
		out, err := runAnalyzeCmd(t, nil, "text", dir, "--target", "fortran")
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, out, "Error [E009]")
	})

	t.Run("only_bad_scops", func(t *testing.T) {
		dir := writeScopDir(t, badParamCUE)
		_, err := runAnalyzeCmd(t, nil, "text", dir)
		require.Error(t, err)
		assert.Equal(t, ExitCommandError, GetExitCode(err))
		assert.Contains(t, err.Error(), "E120")
	})
}

func TestAnalyze_DatabaseCache(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE)
	db := filepath.Join(t.TempDir(), "polydep.db")
	ids := testutil.NewSequentialIDGenerator("analysis")

	out, err := runAnalyzeCmd(t, ids, "json", dir, "--db", db)
	require.NoError(t, err)
	var first analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &first))
	require.Len(t, first.Data.Analyses, 1)
	assert.Equal(t, "analysis-1", first.Data.Analyses[0].ID)
	assert.Equal(t, int64(1), first.Data.Analyses[0].Seq)
	assert.False(t, first.Data.Analyses[0].Cached)

	out, err = runAnalyzeCmd(t, ids, "json", dir, "--db", db)
	require.NoError(t, err)
	var second analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &second))
	require.Len(t, second.Data.Analyses, 1)
	assert.True(t, second.Data.Analyses[0].Cached)
	assert.Equal(t, "analysis-1", second.Data.Analyses[0].ID)
	assert.Equal(t, first.Data.Analyses[0].Relations, second.Data.Analyses[0].Relations)

	// Different options miss the cache and advance the clock.
	out, err = runAnalyzeCmd(t, ids, "json", dir, "--db", db, "--dce")
	require.NoError(t, err)
	var third analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &third))
	require.Len(t, third.Data.Analyses, 1)
	assert.False(t, third.Data.Analyses[0].Cached)
	assert.Equal(t, "analysis-2", third.Data.Analyses[0].ID)
	assert.Equal(t, int64(2), third.Data.Analyses[0].Seq)
	require.NotNil(t, third.Data.Analyses[0].DCE)
	assert.Equal(t, 0, third.Data.Analyses[0].DCE.Removed)
}

func TestAnalyze_NoCache(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE)
	db := filepath.Join(t.TempDir(), "polydep.db")
	ids := testutil.NewSequentialIDGenerator("analysis")

	_, err := runAnalyzeCmd(t, ids, "json", dir, "--db", db)
	require.NoError(t, err)

	out, err := runAnalyzeCmd(t, ids, "json", dir, "--db", db, "--no-cache")
	require.NoError(t, err)
	var resp analyzeResponse
	require.NoError(t, json.Unmarshal([]byte(out), &resp))
	require.Len(t, resp.Data.Analyses, 1)
	assert.False(t, resp.Data.Analyses[0].Cached)
	assert.Equal(t, int64(2), resp.Data.Analyses[0].Seq)
}

func TestFormatCandidates(t *testing.T) {
	c := CandidateSummary{
		Ref:        "r_x",
		Candidates: [][]int64{{1, 0}, {0, 1}},
		Chosen:     1,
		Overridden: true,
	}
	assert.Equal(t, "0:[1 0] *1:[0 1] (override)", formatCandidates(c))
}
