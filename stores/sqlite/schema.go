package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// Schema version for migrations
const currentSchemaVersion = 1

// Schema definitions
const (
	createEntriesTable = `
		CREATE TABLE IF NOT EXISTS entries (
			seq INTEGER PRIMARY KEY,
			action TEXT NOT NULL,
			data BLOB NOT NULL,
			state BLOB NOT NULL,
			timestamp DATETIME NOT NULL
		)`

	createEntriesActionIndex = `CREATE INDEX IF NOT EXISTS idx_entries_action ON entries(action)`

	createCheckpointsTable = `
		CREATE TABLE IF NOT EXISTS checkpoints (
			seq INTEGER PRIMARY KEY,
			state BLOB NOT NULL,
			timestamp DATETIME NOT NULL
		)`

	createSchemaVersionTable = `
		CREATE TABLE IF NOT EXISTS schema_version (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`
)

// migrate applies database migrations if needed
func migrate(ctx context.Context, db *sql.DB) error {
	// Create schema version table first (idempotent)
	_, err := db.ExecContext(ctx, createSchemaVersionTable)
	if err != nil {
		return fmt.Errorf("create schema_version table: %w", err)
	}

	// Check current version
	var version int
	err = db.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&version)
	if err != nil {
		return fmt.Errorf("get schema version: %w", err)
	}

	// Apply migrations
	if version < 1 {
		return migrateV1(ctx, db)
	}

	return nil
}

// migrateV1 applies the initial schema
func migrateV1(ctx context.Context, db *sql.DB) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}

	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	// Execute all schema creation in transaction
	statements := []string{
		createEntriesTable,
		createEntriesActionIndex,
		createCheckpointsTable,
		"INSERT INTO schema_version (version) VALUES (1)",
	}

	for _, stmt := range statements {
		if _, err = tx.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("exec schema: %w", err)
		}
	}

	return tx.Commit()
}
