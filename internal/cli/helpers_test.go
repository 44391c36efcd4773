package cli

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/cobra"
	"github.com/stretchr/testify/require"
)

// for (i = 0; i < N; i++) { S1: A[i] = 0; S2: A[i] = A[i] + 1; }
const producerConsumerCUE = `package scops

scop: producer_consumer: {
	params: N: 2
	statement: {
		S1: {
			domain: [{iter: "i", lower: 0, upper: "N"}]
			schedule: ["i", 0]
			access: w_S1_A: {kind: "must_write", array: "A", index: ["i"]}
		}
		S2: {
			domain: [{iter: "i", lower: 0, upper: "N"}]
			schedule: ["i", 1]
			access: {
				r_S2_A: {kind: "read", array: "A", index: ["i"]}
				w_S2_A: {kind: "must_write", array: "A", index: ["i"]}
			}
		}
	}
}
`

// for (i...) for (j...) S1: D[i][j] = x;
const scalarReuseCUE = `package scops

scop: scalar_reuse: {
	params: {N: 2, M: 2}
	statement: S1: {
		domain: [{iter: "i", lower: 0, upper: "N"}, {iter: "j", lower: 0, upper: "M"}]
		schedule: ["i", "j"]
		access: {
			r_x: {kind: "read", array: "x"}
			w_D: {kind: "must_write", array: "D", index: ["i", "j"]}
		}
	}
}
`

const nonAffineCUE = `package scops

scop: squares: {
	params: N: 2
	statement: S: {
		domain: [{iter: "i", lower: 0, upper: "N"}]
		schedule: ["i"]
		access: w: {kind: "must_write", array: "A", index: ["i*i"]}
	}
}
`

const badParamCUE = `package scops

scop: broken: {
	params: N: "four"
	statement: S: {
		schedule: [0]
		access: w: {kind: "must_write", array: "x"}
	}
}
`

// writeScopDir writes each source into its own file of a fresh package
// directory and returns the directory.
func writeScopDir(t *testing.T, sources ...string) string {
	t.Helper()
	dir := t.TempDir()
	for i, src := range sources {
		name := filepath.Join(dir, "scop"+string(rune('a'+i))+".cue")
		require.NoError(t, os.WriteFile(name, []byte(src), 0644))
	}
	return dir
}

// execute runs cmd with args and returns stdout, stderr and the error.
func execute(cmd *cobra.Command, args ...string) (string, string, error) {
	out := &bytes.Buffer{}
	errOut := &bytes.Buffer{}
	cmd.SetOut(out)
	cmd.SetErr(errOut)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return out.String(), errOut.String(), err
}

// analyzeInto records an analysis of every scop in sources into a fresh
// database and returns its path. IDs are analysis-1, analysis-2, ...
func analyzeInto(t *testing.T, sources ...string) string {
	t.Helper()
	db := filepath.Join(t.TempDir(), "polydep.db")
	_, err := runAnalyzeCmd(t, nil, "text", writeScopDir(t, sources...), "--db", db)
	if err != nil {
		// Dropped scops are recorded too.
		require.Equal(t, ExitFailure, GetExitCode(err), "analyze: %v", err)
	}
	return db
}
