package db

import (
	"database/sql"
	"fmt"
	"sort"
	"strconv"
	"time"

	"github.com/qmuntal/stateless"
)

const schemaVersionKey = "schema_version"

// Migrator lifecycle states. Forward-only: there is no down path.
var (
	stateUninitialized stateless.State = "Uninitialized"
	stateApplying      stateless.State = "Applying"
	stateCurrent       stateless.State = "Current"
	stateFailed        stateless.State = "Failed"
)

var (
	triggerVersionDiscovered stateless.Trigger = "VersionDiscovered"
	triggerStepApplied       stateless.Trigger = "StepApplied"
	triggerUpToDate          stateless.Trigger = "UpToDate"
	triggerStepFailed        stateless.Trigger = "StepFailed"
)

// migration is one versioned schema upgrade step. Apply procedures must be
// idempotent (IF NOT EXISTS / guarded ALTER) because the version record is
// written after the step, not inside it.
type migration struct {
	version int
	name    string
	apply   func(conn *sql.DB) error
}

var migrations = []migration{
	{
		version: 1,
		name:    "create conversations and messages",
		apply: func(conn *sql.DB) error {
			stmts := []string{
				`CREATE TABLE IF NOT EXISTS conversations (
					id TEXT PRIMARY KEY,
					screenshot_data_url TEXT,
					screenshot_hash TEXT,
					title TEXT NOT NULL DEFAULT '',
					created_at INTEGER NOT NULL,
					updated_at INTEGER NOT NULL,
					message_count INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE TABLE IF NOT EXISTS messages (
					id TEXT PRIMARY KEY,
					conversation_id TEXT NOT NULL REFERENCES conversations(id) ON DELETE CASCADE,
					role TEXT NOT NULL,
					content TEXT NOT NULL,
					timestamp INTEGER NOT NULL,
					error INTEGER NOT NULL DEFAULT 0
				)`,
				`CREATE INDEX IF NOT EXISTS idx_messages_conversation_timestamp ON messages(conversation_id, timestamp)`,
				`CREATE INDEX IF NOT EXISTS idx_conversations_updated_at ON conversations(updated_at DESC)`,
			}
			for _, stmt := range stmts {
				if _, err := conn.Exec(stmt); err != nil {
					return err
				}
			}
			return nil
		},
	},
	{
		version: 2,
		name:    "add starred and archived flags",
		apply: func(conn *sql.DB) error {
			for _, col := range []string{"starred", "archived"} {
				exists, err := columnExists(conn, "conversations", col)
				if err != nil {
					return err
				}
				if exists {
					continue
				}
				if _, err := conn.Exec(fmt.Sprintf(`ALTER TABLE conversations ADD COLUMN %s INTEGER NOT NULL DEFAULT 0`, col)); err != nil {
					return err
				}
			}
			return nil
		},
	},
}

// migrate brings the schema from whatever version is on disk to the latest
// known version. Safe to run on a fresh file or an already-current one.
func (d *DB) migrate() error {
	if err := d.ensureMetadata(); err != nil {
		return err
	}
	current, err := d.schemaVersion()
	if err != nil {
		return err
	}

	fsm := stateless.NewStateMachine(stateUninitialized)
	fsm.Configure(stateUninitialized).
		Permit(triggerVersionDiscovered, stateApplying).
		Permit(triggerUpToDate, stateCurrent)
	fsm.Configure(stateApplying).
		PermitReentry(triggerStepApplied).
		Permit(triggerUpToDate, stateCurrent).
		Permit(triggerStepFailed, stateFailed)

	pending := make([]migration, 0, len(migrations))
	for _, m := range migrations {
		if m.version > current {
			pending = append(pending, m)
		}
	}
	sort.Slice(pending, func(i, j int) bool { return pending[i].version < pending[j].version })

	if len(pending) == 0 {
		d.logger.Debug("schema up to date", "version", current)
		return fsm.Fire(triggerUpToDate)
	}

	if err := fsm.Fire(triggerVersionDiscovered); err != nil {
		return err
	}
	for _, m := range pending {
		if err := m.apply(d.conn); err != nil {
			_ = fsm.Fire(triggerStepFailed)
			return fmt.Errorf("migration %d (%s) failed: %w", m.version, m.name, err)
		}
		if err := d.setSchemaVersion(m.version); err != nil {
			_ = fsm.Fire(triggerStepFailed)
			return fmt.Errorf("migration %d (%s): failed to record version: %w", m.version, m.name, err)
		}
		d.logger.Info("applied migration", "version", m.version, "name", m.name)
		if err := fsm.Fire(triggerStepApplied); err != nil {
			return err
		}
	}
	return fsm.Fire(triggerUpToDate)
}

// ensureMetadata creates the metadata table the version record lives in.
// Runs before version discovery, so it cannot itself be a migration step.
func (d *DB) ensureMetadata() error {
	_, err := d.conn.Exec(`CREATE TABLE IF NOT EXISTS metadata (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at INTEGER NOT NULL
	)`)
	return err
}

// schemaVersion reads the applied version; a missing record means a fresh
// database at version 0.
func (d *DB) schemaVersion() (int, error) {
	var value string
	err := d.conn.QueryRow(`SELECT value FROM metadata WHERE key = ?`, schemaVersionKey).Scan(&value)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("failed to read schema version: %w", err)
	}
	version, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("corrupt schema version %q: %w", value, err)
	}
	return version, nil
}

func (d *DB) setSchemaVersion(version int) error {
	_, err := d.conn.Exec(`INSERT INTO metadata (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value, updated_at = excluded.updated_at`,
		schemaVersionKey, strconv.Itoa(version), time.Now().UnixMilli())
	return err
}

func columnExists(conn *sql.DB, table, column string) (bool, error) {
	var count int
	query := fmt.Sprintf(`SELECT COUNT(*) FROM pragma_table_info('%s') WHERE name = ?`, table)
	if err := conn.QueryRow(query, column).Scan(&count); err != nil {
		return false, err
	}
	return count > 0, nil
}
