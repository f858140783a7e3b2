package postgres

import (
	"context"
	"fmt"
	"time"
)

// Migration represents one schema migration.
type Migration struct {
	Version int
	Name    string
	UpSQL   string
}

// Migrate applies all pending migrations, tracking them in a
// schema_migrations table.
func Migrate(ctx context.Context, conn *Connection) error {
	const ensure = `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			name TEXT NOT NULL,
			applied_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
		)
	`
	if _, err := conn.Exec(ctx, ensure); err != nil {
		return fmt.Errorf("%w: create migrations table: %v", ErrMigrationFailed, err)
	}

	rows, err := conn.Query(ctx, "SELECT version FROM schema_migrations")
	if err != nil {
		return fmt.Errorf("%w: read applied versions: %v", ErrMigrationFailed, err)
	}
	defer rows.Close()

	applied := map[int]time.Time{}
	for rows.Next() {
		var version int
		if err := rows.Scan(&version); err != nil {
			return fmt.Errorf("%w: scan version: %v", ErrMigrationFailed, err)
		}
		applied[version] = time.Now()
	}
	if err := rows.Err(); err != nil {
		return fmt.Errorf("%w: %v", ErrMigrationFailed, err)
	}

	for _, mig := range migrations() {
		if _, ok := applied[mig.Version]; ok {
			continue
		}
		if _, err := conn.Exec(ctx, mig.UpSQL); err != nil {
			return fmt.Errorf("%w: version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
		if _, err := conn.Exec(ctx,
			"INSERT INTO schema_migrations (version, name) VALUES ($1, $2)",
			mig.Version, mig.Name,
		); err != nil {
			return fmt.Errorf("%w: record version %d: %v", ErrMigrationFailed, mig.Version, err)
		}
	}
	return nil
}

// migrations returns the embedded schema, oldest first.
func migrations() []Migration {
	return []Migration{
		{
			Version: 1,
			Name:    "create_submissions",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS submissions (
					id UUID PRIMARY KEY,
					user_id TEXT NOT NULL,
					content_id TEXT NOT NULL,
					answer TEXT NOT NULL,
					feedback TEXT NOT NULL DEFAULT '',
					xp_awarded INTEGER NOT NULL DEFAULT 0,
					xp_total INTEGER NOT NULL DEFAULT 0,
					streak INTEGER NOT NULL DEFAULT 0,
					created_at TIMESTAMP WITH TIME ZONE NOT NULL,
					duration_seconds INTEGER NOT NULL DEFAULT 0,
					block_index INTEGER
				);
				CREATE INDEX IF NOT EXISTS idx_submissions_user_created
					ON submissions (user_id, created_at DESC);
				CREATE INDEX IF NOT EXISTS idx_submissions_user_block
					ON submissions (user_id, block_index);
			`,
		},
		{
			Version: 2,
			Name:    "create_user_progress",
			UpSQL: `
				CREATE TABLE IF NOT EXISTS user_progress (
					user_id TEXT PRIMARY KEY,
					xp_total INTEGER NOT NULL DEFAULT 0,
					streak INTEGER NOT NULL DEFAULT 0,
					last_answered_on TIMESTAMP WITH TIME ZONE,
					updated_at TIMESTAMP WITH TIME ZONE NOT NULL DEFAULT NOW()
				);
			`,
		},
		{
			// One answer per user per content item. The in-process mutex
			// already serializes check-then-append inside one instance; this
			// constraint is the backstop across instances sharing the mirror.
			Version: 3,
			Name:    "unique_submission_per_user_content",
			UpSQL: `
				CREATE UNIQUE INDEX IF NOT EXISTS idx_submissions_user_content
					ON submissions (user_id, content_id);
			`,
		},
	}
}
