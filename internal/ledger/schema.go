package ledger

import (
	"context"
	"database/sql"
	"fmt"
)

// migrations[i] brings the schema from version i to i+1. All DDL uses
// IF NOT EXISTS so re-applying a step is harmless.
var migrations = [][]string{
	{
		`CREATE TABLE IF NOT EXISTS decisions (
			id          INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id  TEXT    NOT NULL DEFAULT '',
			tool        TEXT    NOT NULL,
			call_id     TEXT    NOT NULL DEFAULT '',
			outcome     TEXT    NOT NULL,
			score       INTEGER NOT NULL DEFAULT 0,
			reasoning   TEXT    NOT NULL DEFAULT '',
			error       TEXT    NOT NULL DEFAULT '',
			duration_ms INTEGER NOT NULL DEFAULT 0,
			created_at  TEXT    NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_created ON decisions(created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_decisions_session ON decisions(session_id, id)`,
	},
}

// schemaVersion is the version reached after all migrations.
var schemaVersion = len(migrations)

// migrate applies pending migrations in order, recording each version.
func migrate(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "CREATE TABLE IF NOT EXISTS schema_version (version INTEGER PRIMARY KEY)"); err != nil {
		return fmt.Errorf("ledger: create schema_version: %w", err)
	}

	var current int
	if err := db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&current); err != nil {
		return fmt.Errorf("ledger: read schema version: %w", err)
	}

	for v := current; v < len(migrations); v++ {
		for _, stmt := range migrations[v] {
			if _, err := db.ExecContext(ctx, stmt); err != nil {
				return fmt.Errorf("ledger: migrate to v%d: %w\nstatement: %s", v+1, err, stmt)
			}
		}
		if _, err := db.ExecContext(ctx, "INSERT OR REPLACE INTO schema_version (version) VALUES (?)", v+1); err != nil {
			return fmt.Errorf("ledger: record schema version: %w", err)
		}
	}
	return nil
}
