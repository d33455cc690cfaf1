package storage

import (
	"database/sql"
	"fmt"
)

var migrations = []string{
	// Migration 1: Initial schema
	`CREATE TABLE IF NOT EXISTS config (
		id               INTEGER PRIMARY KEY CHECK (id = 1),
		fetch_snippet    TEXT NOT NULL,
		alert_channel    TEXT NOT NULL,
		default_interval INTEGER NOT NULL DEFAULT 120,
		updated_at       DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS thresholds (
		id           INTEGER PRIMARY KEY AUTOINCREMENT,
		credit_limit TEXT NOT NULL,
		interval_min INTEGER NOT NULL,
		position     INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS status (
		id                   INTEGER PRIMARY KEY CHECK (id = 1),
		remaining_balance    TEXT,
		last_fetch_at        DATETIME,
		next_fetch_countdown INTEGER NOT NULL DEFAULT 0,
		next_fetch_at        DATETIME,
		last_error           TEXT NOT NULL DEFAULT ''
	);

	CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	);`,

	// Migration 2: Check history
	`CREATE TABLE IF NOT EXISTS checks (
		id           TEXT PRIMARY KEY,
		balance      TEXT,
		success      INTEGER NOT NULL,
		attempts     INTEGER NOT NULL DEFAULT 0,
		error        TEXT NOT NULL DEFAULT '',
		trigger_kind TEXT NOT NULL,
		interval_min INTEGER NOT NULL DEFAULT 0,
		alert_fired  INTEGER NOT NULL DEFAULT 0,
		timestamp    DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_checks_timestamp ON checks(timestamp);`,
}

// runMigrations applies pending schema migrations.
func runMigrations(db *sql.DB) error {
	// Ensure migration tracking table exists
	_, err := db.Exec(`CREATE TABLE IF NOT EXISTS schema_migrations (
		version    INTEGER PRIMARY KEY,
		applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
	)`)
	if err != nil {
		return fmt.Errorf("create migration table: %w", err)
	}

	var currentVersion int
	row := db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("check migration version: %w", err)
	}

	for i := currentVersion; i < len(migrations); i++ {
		tx, err := db.Begin()
		if err != nil {
			return fmt.Errorf("begin migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec(migrations[i]); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("run migration %d: %w", i+1, err)
		}

		if _, err := tx.Exec("INSERT INTO schema_migrations (version) VALUES (?)", i+1); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("record migration %d: %w", i+1, err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("commit migration %d: %w", i+1, err)
		}
	}

	return nil
}
