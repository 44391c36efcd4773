package harness

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/polydep/internal/deps"
)

const minimalScop = `
scop:
  name: one
  statements:
    - name: S
      schedule: ["0"]
      accesses:
        - {ref: w, kind: must_write, array: x}
`

func TestLoadScenario_Inline(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "scalar_reuse.yaml"))
	require.NoError(t, err)

	assert.Equal(t, "scalar_reuse", s.Name)
	require.NotNil(t, s.Scop)
	assert.Equal(t, int64(2), s.Scop.Params["N"])
	require.Len(t, s.Scop.Statements, 1)
	assert.Equal(t, []string{"i", "j"}, s.Scop.Statements[0].Schedule)
	assert.Equal(t, map[string]int{"r_x": 1}, s.Options.RAROverrides)

	opts, err := s.Options.AnalysisOptions()
	require.NoError(t, err)
	assert.True(t, opts.AutoSA)
	assert.Equal(t, deps.TargetHLS, opts.Target)

	require.Len(t, s.Assertions, 2)
	require.NotNil(t, s.Assertions[0].Chosen)
	assert.Equal(t, 1, *s.Assertions[0].Chosen)
}

func TestLoadScenario_ScopFile(t *testing.T) {
	s, err := LoadScenario(filepath.Join("testdata", "scenarios", "accumulate.yaml"))
	require.NoError(t, err)

	require.NotNil(t, s.Scop)
	assert.Equal(t, "accumulate", s.Scop.Name)
	assert.Equal(t, int64(4), s.Scop.Params["N"])
}

func TestLoadScenario_MissingFile(t *testing.T) {
	_, err := LoadScenario(filepath.Join("testdata", "scenarios", "nope.yaml"))
	require.Error(t, err)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestParseScenario_ScopFileNotFound(t *testing.T) {
	data := []byte(`
name: missing
description: "points nowhere"
scop_file: nowhere.cue
expect:
  flow: "{ }"
`)
	_, err := ParseScenario(data, "testdata")
	require.Error(t, err)

	var notFound *ScopFileNotFoundError
	require.ErrorAs(t, err, &notFound)
	assert.Equal(t, "missing", notFound.Scenario)
	assert.Equal(t, filepath.Join("testdata", "nowhere.cue"), notFound.ResolvedPath)
}

func TestParseScenario_UnknownScopName(t *testing.T) {
	data := []byte(`
name: wrong_name
description: "selects a scop that does not exist"
scop_file: scops/accumulate.cue
scop_name: other
expect:
  flow: "{ }"
`)
	_, err := ParseScenario(data, "testdata")
	require.Error(t, err)
	assert.Contains(t, err.Error(), `scop "other" not found`)
}

func TestParseScenario_Invalid(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		want string
	}{
		{
			name: "missing name",
			yaml: "description: d\n" + minimalScop + "expect: {flow: \"{ }\"}\n",
			want: "name is required",
		},
		{
			name: "missing description",
			yaml: "name: n\n" + minimalScop + "expect: {flow: \"{ }\"}\n",
			want: "description is required",
		},
		{
			name: "no scop",
			yaml: "name: n\ndescription: d\nexpect: {flow: \"{ }\"}\n",
			want: "one of scop or scop_file is required",
		},
		{
			name: "scop and scop_file",
			yaml: "name: n\ndescription: d\nscop_file: a.cue\n" + minimalScop + "expect: {flow: \"{ }\"}\n",
			want: "mutually exclusive",
		},
		{
			name: "scop_name without scop_file",
			yaml: "name: n\ndescription: d\nscop_name: one\n" + minimalScop + "expect: {flow: \"{ }\"}\n",
			want: "scop_name requires scop_file",
		},
		{
			name: "bad target",
			yaml: "name: n\ndescription: d\n" + minimalScop + "options: {target: fpga}\nexpect: {flow: \"{ }\"}\n",
			want: "options:",
		},
		{
			name: "nothing to check",
			yaml: "name: n\ndescription: d\n" + minimalScop,
			want: "expect or assertions is required",
		},
		{
			name: "unknown relation",
			yaml: "name: n\ndescription: d\n" + minimalScop + "expect: {anti: \"{ }\"}\n",
			want: `unknown relation "anti"`,
		},
		{
			name: "unknown assertion type",
			yaml: "name: n\ndescription: d\n" + minimalScop + "assertions:\n  - type: eventually\n",
			want: `unknown assertion type "eventually"`,
		},
		{
			name: "relation_contains without pairs",
			yaml: "name: n\ndescription: d\n" + minimalScop + "assertions:\n  - {type: relation_contains, relation: flow}\n",
			want: "pairs list is required",
		},
		{
			name: "final_state without expect",
			yaml: "name: n\ndescription: d\n" + minimalScop + "assertions:\n  - {type: final_state, table: analyses}\n",
			want: "expect is required for final_state",
		},
		{
			name: "typo in field",
			yaml: "name: n\ndescription: d\n" + minimalScop + "expects: {flow: \"{ }\"}\n",
			want: "failed to parse YAML",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseScenario([]byte(tt.yaml), "")
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestIsRelationName(t *testing.T) {
	for _, name := range []string{"flow", "false", "order", "forced", "rar", "waw", "tagged_flow", "tagged_rar", "live_in", "live_out", "domain"} {
		assert.True(t, IsRelationName(name), name)
	}
	for _, name := range []string{"", "anti", "tagged_live_in", "tagged_"} {
		assert.False(t, IsRelationName(name), name)
	}
}
