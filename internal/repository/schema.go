package repository

import (
	"context"
	"fmt"

	entsql "entgo.io/ent/dialect/sql"
)

const notesTable = "notes"

var schemaStatements = []string{
	`CREATE TABLE IF NOT EXISTS notes (
	id         TEXT PRIMARY KEY,
	title      TEXT NOT NULL,
	subject    TEXT NOT NULL,
	preview    TEXT NOT NULL DEFAULT '',
	tags       TEXT NOT NULL DEFAULT '[]',
	date       TEXT NOT NULL,
	source     TEXT NOT NULL DEFAULT 'model',
	created_at BIGINT NOT NULL
)`,
	`CREATE INDEX IF NOT EXISTS notes_date_created_idx ON notes (date DESC, created_at DESC)`,
}

// Migrate creates the notes table and its ordering index when missing.
func Migrate(ctx context.Context, drv *entsql.Driver) error {
	for _, stmt := range schemaStatements {
		if err := drv.Exec(ctx, stmt, []any{}, nil); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
