package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"slices"
	"testing"
)

func TestOpen_CreatesNewDatabase(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()

	if _, err := os.Stat(path); os.IsNotExist(err) {
		t.Error("database file was not created")
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	for i := 0; i < 3; i++ {
		s, err := Open(path)
		if err != nil {
			t.Fatalf("Open() iteration %d failed: %v", i, err)
		}
		s.Close()
	}

	s, err := Open(path)
	if err != nil {
		t.Fatalf("final Open() failed: %v", err)
	}
	defer s.Close()

	for _, table := range []string{"analyses", "dependences", "rar_candidates"} {
		var name string
		err := s.db.QueryRow(
			"SELECT name FROM sqlite_master WHERE type='table' AND name=?",
			table,
		).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found after idempotent opens: %v", table, err)
		}
	}
}

func TestOpen_InvalidPath(t *testing.T) {
	_, err := Open("/nonexistent/dir/test.db")
	if err == nil {
		t.Error("expected error for invalid path, got nil")
	}
}

func TestClose_NilDB(t *testing.T) {
	s := &Store{db: nil}
	if err := s.Close(); err != nil {
		t.Errorf("Close() on nil db should not error: %v", err)
	}
}

func TestPragmas(t *testing.T) {
	s := createTestStore(t)

	tests := []struct {
		name, want string
	}{
		{"journal_mode", "wal"},
		{"synchronous", "1"}, // NORMAL
		{"busy_timeout", "5000"},
		{"foreign_keys", "1"},
	}
	for _, tt := range tests {
		var got string
		if err := s.db.QueryRow("PRAGMA " + tt.name).Scan(&got); err != nil {
			t.Fatalf("PRAGMA %s: %v", tt.name, err)
		}
		if got != tt.want {
			t.Errorf("%s = %q, want %q", tt.name, got, tt.want)
		}
	}
}

func TestSchema_AnalysesTable(t *testing.T) {
	s := createTestStore(t)

	columns := getTableColumns(t, s.db, "analyses")
	expected := []string{
		"id", "seq", "scop_name", "scop_hash", "scop", "options_hash", "options",
		"status", "error_code", "error_message", "dce_iterations", "dce_removed",
		"dce_live_sizes", "analyzer_version", "ir_version",
	}
	for _, col := range expected {
		if !slices.Contains(columns, col) {
			t.Errorf("analyses table missing column %q", col)
		}
	}
}

func TestConstraint_StatusChecked(t *testing.T) {
	s := createTestStore(t)

	rec := createTestAnalysis("a-1", "s", 1)
	rec.Status = "pending"
	if _, err := s.WriteAnalysis(context.Background(), rec); err == nil {
		t.Error("expected CHECK constraint failure for unknown status")
	}
}

func TestConstraint_SeqUnique(t *testing.T) {
	s := createTestStore(t)

	if _, err := s.WriteAnalysis(context.Background(), createTestAnalysis("a-1", "s", 1)); err != nil {
		t.Fatalf("WriteAnalysis() failed: %v", err)
	}
	if _, err := s.WriteAnalysis(context.Background(), createTestAnalysis("a-2", "s", 1)); err == nil {
		t.Error("expected UNIQUE constraint failure for reused seq")
	}
}

func TestConstraint_ForeignKeyDependenceToAnalysis(t *testing.T) {
	s := createTestStore(t)

	_, err := s.db.Exec(`
		INSERT INTO dependences (analysis_id, kind, tagged, relation, size)
		VALUES ('missing', 'flow', 0, '{ }', 0)
	`)
	if err == nil {
		t.Error("expected foreign key failure for unknown analysis")
	}
}

func TestSchema_VersionStamped(t *testing.T) {
	s := createTestStore(t)

	var version int
	if err := s.db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		t.Fatalf("failed to get user_version: %v", err)
	}
	if version != SchemaVersion {
		t.Errorf("user_version = %d, want %d", version, SchemaVersion)
	}
	if indexes := getTableIndexes(t, s.db, "analyses"); !slices.Contains(indexes, "idx_analyses_scop_name") {
		t.Errorf("expected idx_analyses_scop_name, got indexes: %v", indexes)
	}
}

func TestOpen_RejectsOtherSchemaVersion(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	// A database left behind by a build with a different table layout.
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE analyses (id TEXT PRIMARY KEY)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	if _, err := db.Exec("PRAGMA user_version = 1"); err != nil {
		t.Fatalf("failed to set user_version: %v", err)
	}
	db.Close()

	_, err = Open(path)
	if !errors.Is(err, ErrSchemaVersion) {
		t.Fatalf("Open() error = %v, want ErrSchemaVersion", err)
	}
}

func TestOpen_InitializesUnversionedFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "test.db")

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		t.Fatalf("failed to open database: %v", err)
	}
	if _, err := db.Exec("CREATE TABLE notes (body TEXT)"); err != nil {
		t.Fatalf("failed to create table: %v", err)
	}
	db.Close()

	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	defer s.Close()
	if cols := getTableColumns(t, s.db, "analyses"); !slices.Contains(cols, "dce_live_sizes") {
		t.Errorf("analyses table not created: %v", cols)
	}
}

// Helper functions

func getTableColumns(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("PRAGMA table_info(" + table + ")")
	if err != nil {
		t.Fatalf("failed to get table info for %q: %v", table, err)
	}
	defer rows.Close()

	var columns []string
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dfltValue any
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dfltValue, &pk); err != nil {
			t.Fatalf("failed to scan column info: %v", err)
		}
		columns = append(columns, name)
	}
	return columns
}

func getTableIndexes(t *testing.T, db *sql.DB, table string) []string {
	t.Helper()

	rows, err := db.Query("SELECT name FROM sqlite_master WHERE type='index' AND tbl_name=?", table)
	if err != nil {
		t.Fatalf("failed to get indexes for %q: %v", table, err)
	}
	defer rows.Close()

	var indexes []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			t.Fatalf("failed to scan index name: %v", err)
		}
		indexes = append(indexes, name)
	}
	return indexes
}
