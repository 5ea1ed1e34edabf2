package storage

import (
	"context"
	"fmt"
	"strings"
)

// {{ts}} and {{serial}} are replaced per driver
var schema = []string{
	`CREATE TABLE IF NOT EXISTS workflows (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		type TEXT NOT NULL,
		data TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS workflow_versions (
		id {{serial}},
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		version INTEGER NOT NULL,
		data TEXT NOT NULL,
		created_at {{ts}} NOT NULL,
		UNIQUE (workflow_id, version)
	)`,
	`CREATE TABLE IF NOT EXISTS scenes (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		name TEXT NOT NULL,
		data TEXT NOT NULL,
		thumbnail TEXT,
		created_at {{ts}} NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		workflow_id TEXT NOT NULL REFERENCES workflows(id) ON DELETE CASCADE,
		scene_id TEXT REFERENCES scenes(id) ON DELETE SET NULL,
		type TEXT NOT NULL,
		status TEXT NOT NULL,
		data TEXT NOT NULL,
		result TEXT,
		error TEXT,
		created_at {{ts}} NOT NULL,
		started_at {{ts}},
		completed_at {{ts}}
	)`,
	`CREATE TABLE IF NOT EXISTS settings (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL,
		updated_at {{ts}} NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_jobs_workflow ON jobs (workflow_id, created_at)`,
	`CREATE INDEX IF NOT EXISTS idx_scenes_workflow ON scenes (workflow_id, created_at)`,
}

func (s *Storage) dialect(stmt string) string {
	ts, serial := "TIMESTAMP", "INTEGER PRIMARY KEY AUTOINCREMENT"
	if s.db.DriverName() == "postgres" {
		ts, serial = "TIMESTAMPTZ", "BIGSERIAL PRIMARY KEY"
	}
	return strings.NewReplacer("{{ts}}", ts, "{{serial}}", serial).Replace(stmt)
}

// Migrate creates every table and index that does not exist yet
func (s *Storage) Migrate(ctx context.Context) error {
	for _, stmt := range schema {
		if _, err := s.db.ExecContext(ctx, s.dialect(stmt)); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}

	s.logger.Debug("Database schema ready")
	return nil
}
