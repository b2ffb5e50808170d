package storage

import (
	"database/sql"
	"errors"
	"fmt"
)

// CurrentSchemaVersion is the schema version this build writes.
const CurrentSchemaVersion = 2

func initializeSchema(db *sql.DB) error {
	version, err := schemaVersion(db)
	if err != nil {
		return fmt.Errorf("failed to get schema version: %w", err)
	}
	if version == CurrentSchemaVersion {
		return nil
	}
	if version > CurrentSchemaVersion {
		return fmt.Errorf("database schema version %d is newer than supported version %d", version, CurrentSchemaVersion)
	}

	for v := version + 1; v <= CurrentSchemaVersion; v++ {
		if err := runMigration(db, v); err != nil {
			return fmt.Errorf("migration to version %d failed: %w", v, err)
		}
		if err := setSchemaVersion(db, v); err != nil {
			return fmt.Errorf("failed to update schema version to %d: %w", v, err)
		}
	}
	return nil
}

func runMigration(db *sql.DB, version int) error {
	switch version {
	case 1:
		return createDiffTables(db)
	case 2:
		return createMessageTable(db)
	default:
		return fmt.Errorf("unknown migration version: %d", version)
	}
}

func createDiffTables(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS diffs (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			message_id TEXT NOT NULL DEFAULT '',
			summary TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_diffs_thread ON diffs(thread_id, created_at_ms)`,
		`CREATE TABLE IF NOT EXISTS diff_files (
			diff_id TEXT NOT NULL REFERENCES diffs(id) ON DELETE CASCADE,
			position INTEGER NOT NULL,
			file_path TEXT NOT NULL,
			change_type TEXT NOT NULL,
			old_content TEXT,
			new_content TEXT,
			PRIMARY KEY (diff_id, position)
		)`,
	}
	return execAll(db, statements)
}

func createMessageTable(db *sql.DB) error {
	statements := []string{
		`CREATE TABLE IF NOT EXISTS messages (
			id TEXT PRIMARY KEY,
			thread_id TEXT NOT NULL,
			role TEXT NOT NULL,
			content TEXT NOT NULL,
			reasoning TEXT NOT NULL DEFAULT '',
			created_at_ms INTEGER NOT NULL,
			sequence INTEGER NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_messages_thread ON messages(thread_id, created_at_ms, sequence)`,
	}
	return execAll(db, statements)
}

func execAll(db *sql.DB, statements []string) error {
	for _, stmt := range statements {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("database exec error: %w", err)
		}
	}
	return nil
}

func setSchemaVersion(db *sql.DB, version int) error {
	if _, err := db.Exec(`INSERT OR REPLACE INTO schema_version (version) VALUES (?)`, version); err != nil {
		return fmt.Errorf("database exec error: %w", err)
	}
	return nil
}

func schemaVersion(db *sql.DB) (int, error) {
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY,
		applied_at DATETIME DEFAULT (strftime('%Y-%m-%dT%H:%M:%fZ','now'))
	)`)
	if err != nil {
		return 0, fmt.Errorf("failed to create schema_version table: %w", err)
	}

	var version int
	err = db.QueryRow(`SELECT version FROM schema_version ORDER BY version DESC LIMIT 1`).Scan(&version)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("schema version scan error: %w", err)
	}
	return version, nil
}
