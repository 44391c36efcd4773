package cli

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func loadErrorCode(t *testing.T, err error) string {
	t.Helper()
	var loadErr *LoadError
	require.True(t, errors.As(err, &loadErr), "expected *LoadError, got %T", err)
	return loadErr.Code
}

func TestLoadScops_Valid(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE, scalarReuseCUE)

	result, errs := LoadScops(dir, LoadModeCollectAll)
	require.Empty(t, errs)
	require.NotNil(t, result)
	assert.Equal(t, 2, result.FileCount)
	require.Len(t, result.Scops, 2)

	names := []string{result.Scops[0].Name, result.Scops[1].Name}
	assert.ElementsMatch(t, []string{"producer_consumer", "scalar_reuse"}, names)
}

func TestLoadScops_StatementOrder(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE)

	result, errs := LoadScops(dir, LoadModeFailFast)
	require.Empty(t, errs)
	require.Len(t, result.Scops, 1)

	spec := result.Scops[0]
	require.Len(t, spec.Statements, 2)
	assert.Equal(t, "S1", spec.Statements[0].Name)
	assert.Equal(t, "S2", spec.Statements[1].Name)
	assert.Equal(t, []string{"i", "1"}, spec.Statements[1].Schedule)
	assert.Equal(t, int64(2), spec.Params["N"])
}

func TestLoadScops_CommandErrors(t *testing.T) {
	t.Run("not_found", func(t *testing.T) {
		result, errs := LoadScops(filepath.Join(t.TempDir(), "missing"), LoadModeCollectAll)
		assert.Nil(t, result)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, errs[0]))
	})

	t.Run("not_a_directory", func(t *testing.T) {
		file := filepath.Join(t.TempDir(), "scop.cue")
		require.NoError(t, os.WriteFile(file, []byte(producerConsumerCUE), 0644))

		result, errs := LoadScops(file, LoadModeCollectAll)
		assert.Nil(t, result)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeNotFound, loadErrorCode(t, errs[0]))
	})

	t.Run("no_cue_files", func(t *testing.T) {
		result, errs := LoadScops(t.TempDir(), LoadModeCollectAll)
		assert.Nil(t, result)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeNoFiles, loadErrorCode(t, errs[0]))
	})

	t.Run("syntax_error", func(t *testing.T) {
		dir := writeScopDir(t, "package scops\n\nscop: {{{\n")
		result, errs := LoadScops(dir, LoadModeCollectAll)
		assert.Nil(t, result)
		require.Len(t, errs, 1)
		assert.Equal(t, ErrCodeLoadFailed, loadErrorCode(t, errs[0]))
	})
}

func TestLoadScops_NoScopStruct(t *testing.T) {
	dir := writeScopDir(t, "package scops\n\nname: \"nothing here\"\n")

	result, errs := LoadScops(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	assert.Empty(t, result.Scops)
	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeNoScops, loadErrorCode(t, errs[0]))
}

func TestLoadScops_BadScopKeepsOthers(t *testing.T) {
	dir := writeScopDir(t, producerConsumerCUE, badParamCUE)

	result, errs := LoadScops(dir, LoadModeCollectAll)
	require.NotNil(t, result)
	require.Len(t, result.Scops, 1)
	assert.Equal(t, "producer_consumer", result.Scops[0].Name)

	require.Len(t, errs, 1)
	assert.Equal(t, ErrCodeInvalidParam, loadErrorCode(t, errs[0]))
	assert.Contains(t, errs[0].Error(), "scop.broken: params.N")
}

func TestFindCUEFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "sub"), 0755))
	for _, name := range []string{"a.cue", "sub/b.cue", "notes.txt"} {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte("package scops\n"), 0644))
	}

	files, err := FindCUEFiles(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{
		filepath.Join(dir, "a.cue"),
		filepath.Join(dir, "sub", "b.cue"),
	}, files)
}

func TestMapFieldToErrorCode(t *testing.T) {
	tests := []struct {
		field string
		want  string
	}{
		{"params.N", ErrCodeInvalidParam},
		{"statement", ErrCodeInvalidStatement},
		{"statement.S1.domain[0].lower", ErrCodeInvalidDomain},
		{"statement.S1.schedule", ErrCodeInvalidSchedule},
		{"statement.S1.access.r0.kind", ErrCodeInvalidAccess},
		{"independence[0].arrays", ErrCodeInvalidIndepRule},
		{"cue", ErrCodeBuildFailed},
		{"something", ErrCodeGeneric},
	}

	for _, tt := range tests {
		t.Run(tt.field, func(t *testing.T) {
			assert.Equal(t, tt.want, MapFieldToErrorCode(tt.field))
		})
	}
}
