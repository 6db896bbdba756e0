// Package db owns the single SQLite handle backing conversation history.
// The database is opened once at startup, migrated to the latest schema
// version, and closed at shutdown.
package db

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "github.com/glebarez/go-sqlite"
)

// DB wraps the on-disk SQLite connection. Exactly one handle exists per
// process; WAL mode lets concurrent readers proceed while a writer commits.
type DB struct {
	conn   *sql.DB
	logger *slog.Logger
}

// Open resolves the database file path, creates parent directories, opens
// the connection with WAL journaling, foreign-key enforcement and a busy
// timeout, and runs pending schema migrations. Any failure aborts the open;
// callers decide whether to run without persistence.
func Open(path string, logger *slog.Logger) (*DB, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create database directory: %w", err)
	}

	dsn := "file:" + path + "?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	conn, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite serializes writers anyway; a single connection avoids
	// SQLITE_BUSY between our own callers.
	conn.SetMaxOpenConns(1)
	conn.SetMaxIdleConns(1)

	db := &DB{conn: conn, logger: logger}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	logger.Info("history database ready", "path", path)
	return db, nil
}

// Handle returns the live connection for the store layer.
func (d *DB) Handle() *sql.DB {
	return d.conn
}

// Close flushes and closes the handle. Safe to call more than once.
func (d *DB) Close() error {
	if d == nil || d.conn == nil {
		return nil
	}
	conn := d.conn
	d.conn = nil
	return conn.Close()
}
