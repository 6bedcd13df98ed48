package db

import (
	"fmt"

	"gorm.io/gorm"
)

var migrationStatements = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp";`,
	`CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id               UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		master_file      TEXT,
		weekly_file      TEXT,
		schema_mode      TEXT NOT NULL,
		duplicate_policy TEXT NOT NULL,
		run_date         DATE NOT NULL,
		master_rows      INT NOT NULL DEFAULT 0,
		weekly_rows      INT NOT NULL DEFAULT 0,
		merged_rows      INT NOT NULL DEFAULT 0,
		matched          INT NOT NULL DEFAULT 0,
		dates_updated    INT NOT NULL DEFAULT 0,
		unmatched_weekly INT NOT NULL DEFAULT 0,
		duplicate_plates INT NOT NULL DEFAULT 0,
		payload_count    INT NOT NULL DEFAULT 0,
		unknown_count    INT NOT NULL DEFAULT 0,
		skipped_links    INT NOT NULL DEFAULT 0,
		date_warnings    INT NOT NULL DEFAULT 0,
		tier_counts      JSONB,
		unmatched_plates JSONB,
		created_at       TIMESTAMPTZ NOT NULL DEFAULT now()
	);`,
	`CREATE INDEX IF NOT EXISTS idx_reconciliation_runs_created_at ON reconciliation_runs(created_at);`,
}

func runMigrations(db *gorm.DB) error {
	for i, stmt := range migrationStatements {
		if err := db.Exec(stmt).Error; err != nil {
			return fmt.Errorf("migration %d failed: %w", i+1, err)
		}
	}
	return nil
}
