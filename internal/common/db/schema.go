package db

import (
	"context"
	"fmt"
)

var schemaStatements = []string{
	`CREATE SCHEMA IF NOT EXISTS metro`,
	`CREATE TABLE IF NOT EXISTS metro.versions (
		version_id   SERIAL PRIMARY KEY,
		version_name TEXT NOT NULL,
		created_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at   TIMESTAMPTZ NOT NULL,
		is_active    BOOLEAN NOT NULL DEFAULT false,
		source_url   TEXT NOT NULL DEFAULT '',
		etag         TEXT NOT NULL DEFAULT '',
		description  TEXT NOT NULL DEFAULT ''
	)`,
	`CREATE UNIQUE INDEX IF NOT EXISTS versions_single_active
		ON metro.versions (is_active) WHERE is_active`,
	`CREATE TABLE IF NOT EXISTS metro.stations (
		version_id INTEGER NOT NULL REFERENCES metro.versions (version_id) ON DELETE CASCADE,
		position   INTEGER NOT NULL,
		station_id TEXT NOT NULL,
		name       TEXT NOT NULL,
		line       TEXT NOT NULL DEFAULT '',
		lat        DOUBLE PRECISION,
		lon        DOUBLE PRECISION,
		PRIMARY KEY (version_id, name)
	)`,
	`CREATE TABLE IF NOT EXISTS metro.connections (
		version_id   INTEGER NOT NULL REFERENCES metro.versions (version_id) ON DELETE CASCADE,
		position     INTEGER NOT NULL,
		from_station TEXT NOT NULL,
		to_station   TEXT NOT NULL,
		minutes      INTEGER NOT NULL CHECK (minutes >= 0),
		PRIMARY KEY (version_id, position)
	)`,
}

// EnsureSchema creates the metro schema and its tables when missing.
func (db *DB) EnsureSchema(ctx context.Context) error {
	tx, err := db.BeginTx(ctx)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	for _, stmt := range schemaStatements {
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("applying schema: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing schema: %w", err)
	}

	db.logger.Debug("Schema ensured", "statements", len(schemaStatements))
	return nil
}
