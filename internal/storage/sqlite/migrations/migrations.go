// Package migrations holds the individual steps in the savecontext
// migration ladder. Every function here must be safe to run against both
// a brand-new database (where schema.go already defines the end state)
// and an older one created before that column or index existed, which is
// why each step tolerates "duplicate column name" rather than treating it
// as a failure (see migrations.go's tolerated()).
package migrations

import (
	"context"
	"database/sql"
	"strings"
)

// SeedEmbeddingsMeta inserts a placeholder fast_provider = 'none' row into
// embeddings_meta unless that key already exists. Nothing else in the
// engine writes or reads the table; provider, model and dimensions are
// kept on each chunk row instead.
func SeedEmbeddingsMeta(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO embeddings_meta (key, value)
		VALUES ('fast_provider', 'none')
		ON CONFLICT (key) DO NOTHING
	`)
	return err
}

// IssueDueDeferIndex adds the lookup index due/defer scheduling queries
// depend on. Databases created by the current schema.go already have the
// due_at/defer_until columns, so only the index statement does real work
// there; on a pre-scheduling database this also adds the columns.
func IssueDueDeferIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `ALTER TABLE issues ADD COLUMN due_at INTEGER`); err != nil && !isDuplicateColumn(err) {
		return err
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE issues ADD COLUMN defer_until INTEGER`); err != nil && !isDuplicateColumn(err) {
		return err
	}
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_issues_due_at ON issues(due_at)`)
	return err
}

// CheckpointItemsTagsBackfill ensures older checkpoint_items rows, written
// before tags existed on that table, read back as an empty JSON array
// rather than NULL.
func CheckpointItemsTagsBackfill(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `ALTER TABLE checkpoint_items ADD COLUMN tags TEXT NOT NULL DEFAULT '[]'`); err != nil && !isDuplicateColumn(err) {
		return err
	}
	_, err := db.ExecContext(ctx, `UPDATE checkpoint_items SET tags = '[]' WHERE tags IS NULL`)
	return err
}

// PlanDueDeferIndex extends due/defer scheduling (spec.md supplemented
// features) from issues to plans, mirroring IssueDueDeferIndex.
func PlanDueDeferIndex(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, `ALTER TABLE plans ADD COLUMN due_at INTEGER`); err != nil && !isDuplicateColumn(err) {
		return err
	}
	if _, err := db.ExecContext(ctx, `ALTER TABLE plans ADD COLUMN defer_until INTEGER`); err != nil && !isDuplicateColumn(err) {
		return err
	}
	_, err := db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS idx_plans_due_at ON plans(due_at)`)
	return err
}

func isDuplicateColumn(err error) bool {
	if err == nil {
		return false
	}
	return strings.Contains(strings.ToLower(err.Error()), "duplicate column")
}
