// Package store is the data-access layer for conversations and messages.
// It is the only package that issues SQL against the history database.
package store

import (
	"database/sql"
	"errors"
	"log/slog"
)

// ErrNotFound is returned when a conversation id does not exist. Callers
// branch on it; it is never wrapped in a panic or surfaced raw to the UI.
var ErrNotFound = errors.New("conversation not found")

// Store runs all reads and writes against the history database. Construct
// one at startup with the shared handle and pass it down; there is no
// package-level instance.
type Store struct {
	conn   *sql.DB
	logger *slog.Logger
}

// New creates a Store on top of an open, migrated database handle.
func New(conn *sql.DB, logger *slog.Logger) *Store {
	return &Store{conn: conn, logger: logger}
}
