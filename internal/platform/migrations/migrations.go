// Package migrations applies the parking layer database schema.
package migrations

import (
	"context"
	"database/sql"
	"fmt"
)

// statements are applied in order. Each statement is idempotent so Apply can
// run at every startup.
var statements = []string{
	`CREATE TABLE IF NOT EXISTS parking_users (
		id             TEXT PRIMARY KEY,
		name           TEXT NOT NULL,
		vehicle_number TEXT NOT NULL,
		created_at     TIMESTAMPTZ NOT NULL DEFAULT now(),
		CONSTRAINT parking_users_vehicle_number_key UNIQUE (vehicle_number)
	)`,
	`CREATE TABLE IF NOT EXISTS parking_records (
		id         TEXT PRIMARY KEY,
		user_id    TEXT NOT NULL REFERENCES parking_users(id),
		entry_time TIMESTAMPTZ NOT NULL,
		exit_time  TIMESTAMPTZ,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,
	// At most one open session per user, enforced by the database itself so
	// concurrent entries cannot both commit.
	`CREATE UNIQUE INDEX IF NOT EXISTS parking_records_one_open_per_user
		ON parking_records (user_id)
		WHERE exit_time IS NULL`,
	`CREATE INDEX IF NOT EXISTS parking_records_user_entry_idx
		ON parking_records (user_id, entry_time DESC)`,
}

// Apply runs all schema statements against the database.
func Apply(ctx context.Context, db *sql.DB) error {
	for i, stmt := range statements {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migration %d: %w", i+1, err)
		}
	}
	return nil
}
