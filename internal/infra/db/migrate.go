package db

import (
	"database/sql"
	"fmt"
)

// MigrateUp bootstraps the schema for the given driver. Every statement is
// idempotent so the worker can run it unconditionally at startup.
func MigrateUp(database *sql.DB, driver string) error {
	var statements []string
	switch driver {
	case DriverSQLite:
		statements = sqliteSchema
	default:
		statements = postgresSchema
	}

	for _, stmt := range statements {
		if _, err := database.Exec(stmt); err != nil {
			return fmt.Errorf("migrate %s schema: %w", driver, err)
		}
	}
	return nil
}

// Criteria and the known-listing snapshot are stored as JSON documents: the
// core treats both as opaque values it reads and writes whole, so relational
// decomposition would buy nothing.
var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS saved_searches (
    id                    SERIAL PRIMARY KEY,
    name                  TEXT NOT NULL,
    criteria              JSONB NOT NULL,
    notifications_enabled BOOLEAN NOT NULL DEFAULT TRUE,
    known_listing_ids     JSONB NOT NULL DEFAULT '[]',
    last_cycle_at         TIMESTAMPTZ
)`,
	`CREATE TABLE IF NOT EXISTS feed_entries (
    id              SERIAL PRIMARY KEY,
    saved_search_id INTEGER NOT NULL REFERENCES saved_searches(id) ON DELETE CASCADE,
    site            TEXT NOT NULL,
    external_id     TEXT NOT NULL,
    title           TEXT NOT NULL,
    price_minor     BIGINT NOT NULL,
    currency        TEXT NOT NULL,
    url             TEXT NOT NULL,
    image_url       TEXT,
    cycle_at        TIMESTAMPTZ NOT NULL,
    created_at      TIMESTAMPTZ DEFAULT now()
)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_entries_cycle_at ON feed_entries(cycle_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_entries_search ON feed_entries(saved_search_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS saved_searches (
    id                    INTEGER PRIMARY KEY AUTOINCREMENT,
    name                  TEXT NOT NULL,
    criteria              TEXT NOT NULL,
    notifications_enabled INTEGER NOT NULL DEFAULT 1,
    known_listing_ids     TEXT NOT NULL DEFAULT '[]',
    last_cycle_at         TIMESTAMP
)`,
	`CREATE TABLE IF NOT EXISTS feed_entries (
    id              INTEGER PRIMARY KEY AUTOINCREMENT,
    saved_search_id INTEGER NOT NULL REFERENCES saved_searches(id) ON DELETE CASCADE,
    site            TEXT NOT NULL,
    external_id     TEXT NOT NULL,
    title           TEXT NOT NULL,
    price_minor     INTEGER NOT NULL,
    currency        TEXT NOT NULL,
    url             TEXT NOT NULL,
    image_url       TEXT,
    cycle_at        TIMESTAMP NOT NULL,
    created_at      TIMESTAMP DEFAULT CURRENT_TIMESTAMP
)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_entries_cycle_at ON feed_entries(cycle_at DESC)`,
	`CREATE INDEX IF NOT EXISTS idx_feed_entries_search ON feed_entries(saved_search_id)`,
}
