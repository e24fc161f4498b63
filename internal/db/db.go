package db

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"

	"github.com/soundbluemusic/dictgen/internal/errors"
	_ "modernc.org/sqlite"
)

// CurrentSchemaVersion is the latest schema version.
// Bump this when adding migrations.
const CurrentSchemaVersion = 1

// Offline database location relative to the data root.
const (
	OfflineDir = "offline"
	FileName   = "context.db"
)

// The offline database ships as a single file, so it uses a rollback journal
// instead of WAL.
const pragmas = "?_pragma=busy_timeout(5000)&_pragma=journal_mode(DELETE)&_pragma=foreign_keys(1)"

// Path returns the offline database path under dataDir.
func Path(dataDir string) string {
	return filepath.Join(dataDir, OfflineDir, FileName)
}

// Init opens (creating if needed) the database at dbPath and migrates it.
func Init(dbPath string) (*sql.DB, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// A single writer keeps the export deterministic.
	db.SetMaxOpenConns(1)

	if err := verifyJournalMode(db); err != nil {
		db.Close()
		return nil, err
	}

	if err := migrate(db); err != nil {
		db.Close()
		return nil, err
	}

	_ = os.Chmod(dbPath, 0644)

	return db, nil
}

// Open opens an existing offline database for reads. It never creates the file.
func Open(dbPath string) (*sql.DB, error) {
	if _, err := os.Stat(dbPath); err != nil {
		if os.IsNotExist(err) {
			return nil, errors.NewNotFound(dbPath)
		}
		return nil, errors.NewInternal(err)
	}

	db, err := sql.Open("sqlite", dbPath+pragmas)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	version, err := GetUserVersion(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	if version != CurrentSchemaVersion {
		db.Close()
		return nil, errors.NewDataIntegrity(fmt.Sprintf("%s has schema version %d, want %d", filepath.Base(dbPath), version, CurrentSchemaVersion))
	}
	return db, nil
}

// migrate applies schema migrations based on user_version.
func migrate(db *sql.DB) error {
	version, err := GetUserVersion(db)
	if err != nil {
		return err
	}

	// Migration 0 -> 1: Initial schema (v1)
	if version < 1 {
		schema := `
		CREATE TABLE IF NOT EXISTS categories (
		  id               TEXT PRIMARY KEY,
		  name_json        TEXT NOT NULL,
		  description_json TEXT,
		  icon             TEXT,
		  color            TEXT,
		  sort_order       INTEGER NOT NULL
		);

		CREATE TABLE IF NOT EXISTS entries (
		  id                 TEXT PRIMARY KEY,
		  seq                INTEGER NOT NULL,
		  korean             TEXT NOT NULL,
		  romanization       TEXT NOT NULL,
		  part_of_speech     TEXT NOT NULL,
		  category_id        TEXT NOT NULL,
		  difficulty         TEXT NOT NULL,
		  frequency          TEXT,
		  partition_key      TEXT NOT NULL,
		  pronunciation_json TEXT,
		  color_code         TEXT,
		  tags_json          TEXT NOT NULL,
		  translations_json  TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_entries_category_seq
		ON entries(category_id, seq);

		CREATE INDEX IF NOT EXISTS idx_entries_partition_seq
		ON entries(partition_key, seq);

		CREATE INDEX IF NOT EXISTS idx_entries_korean
		ON entries(korean);

		CREATE TABLE IF NOT EXISTS build_runs (
		  id            TEXT PRIMARY KEY,
		  generated_at  INTEGER NOT NULL,
		  total_entries INTEGER NOT NULL,
		  partition     TEXT NOT NULL,
		  locales_json  TEXT NOT NULL
		);
		`
		if _, err := db.Exec(schema); err != nil {
			return fmt.Errorf("migration 1 failed: %w", err)
		}
		if err := SetUserVersion(db, 1); err != nil {
			return err
		}
	}

	// Future migrations go here:
	// if version < 2 { ... }

	return nil
}

// verifyJournalMode checks that the rollback journal set via the connection string is active.
func verifyJournalMode(db *sql.DB) error {
	var journalMode string
	if err := db.QueryRow("PRAGMA journal_mode;").Scan(&journalMode); err != nil {
		return fmt.Errorf("failed to verify journal mode: %w", err)
	}
	if journalMode != "delete" {
		return fmt.Errorf("expected delete journal mode, got %s", journalMode)
	}
	return nil
}

// GetUserVersion returns the current schema version (user_version pragma).
func GetUserVersion(db *sql.DB) (int, error) {
	var version int
	if err := db.QueryRow("PRAGMA user_version;").Scan(&version); err != nil {
		return 0, fmt.Errorf("failed to get user_version: %w", err)
	}
	return version, nil
}

// SetUserVersion sets the schema version (user_version pragma).
func SetUserVersion(db *sql.DB, version int) error {
	_, err := db.Exec(fmt.Sprintf("PRAGMA user_version=%d", version))
	if err != nil {
		return fmt.Errorf("failed to set user_version: %w", err)
	}
	return nil
}
