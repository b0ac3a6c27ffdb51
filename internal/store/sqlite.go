package store

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 1 - contracts, contract_events, transfers
// 2 - in-flight marker op, transfer custody and fee
const currentSchemaVersion = 2

// migrations[v] upgrades a database at version v to v+1. Each runs before
// the schema script, so the script's indexes see the new columns.
var migrations = map[int][]string{
	1: {
		"ALTER TABLE contracts RENAME COLUMN claim_token TO inflight_token",
		"ALTER TABLE contracts RENAME COLUMN claim_since TO inflight_since",
		"ALTER TABLE contracts ADD COLUMN inflight_op TEXT CHECK (inflight_op IN ('claim', 'refund'))",
		"UPDATE contracts SET inflight_op = 'claim' WHERE inflight_token IS NOT NULL",
		"ALTER TABLE transfers ADD COLUMN custody TEXT",
		"ALTER TABLE transfers ADD COLUMN fee TEXT NOT NULL DEFAULT '00000000000000000000' CHECK (length(fee) = 20)",
	},
}

// SQLiteStore is a Store backed by a single SQLite file.
type SQLiteStore struct {
	db *sql.DB
}

var _ Store = (*SQLiteStore)(nil)

// Open creates or opens a SQLite database at the given path. ":memory:"
// opens a private in-memory database. path may carry its own query
// parameters (e.g. "file:x.db?mode=rwc").
//
// The database is configured with:
//   - BEGIN IMMEDIATE for every transaction (_txlock=immediate)
//   - WAL mode for concurrent reads during writes
//   - NORMAL synchronous mode
//   - 5-second busy timeout for lock contention
//   - Foreign key enforcement
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite3", dsn(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	// One connection: SQLite has a single writer, and an in-memory
	// database exists only on the connection that created it.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &SQLiteStore{db: db}, nil
}

// dsn appends the driver options to path.
func dsn(path string) string {
	sep := "?"
	if strings.Contains(path, "?") {
		sep = "&"
	}
	return path + sep + "_txlock=immediate"
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// DB returns the underlying sql.DB for direct queries.
// Use with caution - prefer using SQLiteStore methods when available.
func (s *SQLiteStore) DB() *sql.DB {
	return s.db
}

func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA foreign_keys = ON",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema migrates an older database, creates tables if they don't
// exist and records the version. This function is idempotent.
func applySchema(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}
	if version > currentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, currentSchemaVersion)
	}

	// Version 0 is a fresh database: the schema script builds it whole.
	for v := version; v > 0 && v < currentSchemaVersion; v++ {
		if err := migrate(db, v); err != nil {
			return err
		}
	}

	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

func migrate(db *sql.DB, from int) error {
	tx, err := db.Begin()
	if err != nil {
		return fmt.Errorf("migrate from version %d: begin tx: %w", from, err)
	}
	defer tx.Rollback() // No-op if committed

	for _, stmt := range migrations[from] {
		if _, err := tx.Exec(stmt); err != nil {
			return fmt.Errorf("migrate from version %d: %q: %w", from, stmt, err)
		}
	}
	if _, err := tx.Exec(fmt.Sprintf("PRAGMA user_version = %d", from+1)); err != nil {
		return fmt.Errorf("migrate from version %d: set user_version: %w", from, err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("migrate from version %d: commit: %w", from, err)
	}
	return nil
}

// verifyPragma checks that a pragma is set to the expected value.
// Used for testing.
func (s *SQLiteStore) verifyPragma(name, expected string) error {
	var value string
	if err := s.db.QueryRowContext(context.Background(), fmt.Sprintf("PRAGMA %s", name)).Scan(&value); err != nil {
		return fmt.Errorf("failed to query %s: %w", name, err)
	}
	if value != expected {
		return fmt.Errorf("%s = %q, expected %q", name, value, expected)
	}
	return nil
}
