package store

import (
	"context"
	"database/sql"
	_ "embed"
	"errors"
	"fmt"
	"net/url"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// SchemaVersion is stamped into PRAGMA user_version of every database the
// store creates. Bump it whenever schema.sql changes shape.
//
//	1 - analyses, dependences, rar_candidates
//	2 - analyses.dce_live_sizes
const SchemaVersion = 2

// ErrSchemaVersion is returned by Open for a database written with a
// different SchemaVersion. Stored analyses are a cache of recomputable
// results, so there are no migrations: point --db at a fresh file.
var ErrSchemaVersion = errors.New("analysis database has an incompatible schema version")

// Store is the SQLite analysis history.
type Store struct {
	db *sql.DB
}

// Open creates or opens the database at path.
//
// Connection settings travel in the go-sqlite3 DSN so that every pooled
// connection gets them: WAL journal, synchronous=NORMAL, a 5s busy timeout
// and foreign keys. A new database receives schema.sql and SchemaVersion;
// an existing one must already carry SchemaVersion.
func Open(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One writer at a time; a single connection avoids SQLITE_BUSY between
	// our own statements.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := initSchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("database %s: %w", path, err)
	}
	return &Store{db: db}, nil
}

func dsn(path string) string {
	params := url.Values{}
	params.Set("_journal_mode", "WAL")
	params.Set("_synchronous", "NORMAL")
	params.Set("_busy_timeout", "5000")
	params.Set("_foreign_keys", "on")
	return path + "?" + params.Encode()
}

// initSchema creates the tables of an empty database and checks the version
// of an existing one.
func initSchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	switch version {
	case SchemaVersion:
		return nil
	case 0:
		// Fresh file, or one that polydep never initialized.
	default:
		return fmt.Errorf("%w: found %d, want %d", ErrSchemaVersion, version, SchemaVersion)
	}

	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	defer tx.Rollback()
	if _, err := tx.Exec(schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", SchemaVersion)); err != nil {
		return fmt.Errorf("stamp schema version: %w", err)
	}
	return tx.Commit()
}

// Close closes the database. Closing a zero Store is a no-op.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB exposes the connection for callers that inspect tables directly.
func (s *Store) DB() *sql.DB {
	return s.db
}

// Query runs a read-only query for scenario state assertions. The caller
// closes the rows.
func (s *Store) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, query, args...)
}
