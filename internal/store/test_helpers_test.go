package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/polydep/internal/ir"
)

// createTestStore creates a new file-backed store in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// createTestAnalysis creates a successful analysis with minimal fields.
func createTestAnalysis(id, scopName string, seq int64) AnalysisRecord {
	return AnalysisRecord{
		ID:              id,
		Seq:             seq,
		ScopName:        scopName,
		ScopHash:        "scop-" + scopName,
		Scop:            `{"name":"` + scopName + `"}`,
		OptionsHash:     "opts",
		Options:         "{}",
		Status:          StatusOK,
		AnalyzerVersion: ir.AnalyzerVersion,
		IRVersion:       ir.IRVersion,
	}
}
