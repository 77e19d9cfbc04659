package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/savecontext/savecontext/internal/storage/sqlite/migrations"
)

// migration is a single named, idempotent step in the ladder.
type migration struct {
	name string
	fn   func(ctx context.Context, db *sql.DB) error
}

// migrationList is the ordered set of migrations applied on every open.
// All are idempotent; schema_migrations just records which have run so
// runMigrations can skip the ones already applied.
var migrationList = []migration{
	{"001_embeddings_meta_seed", migrations.SeedEmbeddingsMeta},
	{"002_issue_due_defer_index", migrations.IssueDueDeferIndex},
	{"003_checkpoint_items_tags_backfill", migrations.CheckpointItemsTagsBackfill},
	{"004_plan_due_defer_index", migrations.PlanDueDeferIndex},
}

// runMigrations applies every pending migration inside one EXCLUSIVE
// transaction, tolerating exactly two error classes (spec.md §4.1):
// "duplicate column" (the base schema already defines what a migration
// would add) and a missing vector virtual-table module. All other errors
// abort the open.
func runMigrations(ctx context.Context, db *sql.DB) error {
	if _, err := db.ExecContext(ctx, "BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("acquiring exclusive lock for migrations: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = db.ExecContext(ctx, "ROLLBACK")
		}
	}()

	for _, m := range migrationList {
		var applied int
		err := db.QueryRowContext(ctx, `SELECT 1 FROM schema_migrations WHERE version = ?`, m.name).Scan(&applied)
		if err == nil {
			continue // already applied
		}
		if err != sql.ErrNoRows {
			return fmt.Errorf("checking migration %s: %w", m.name, err)
		}

		if err := m.fn(ctx, db); err != nil && !tolerated(err) {
			return fmt.Errorf("migration %s failed: %w", m.name, err)
		}

		if _, err := db.ExecContext(ctx, `INSERT INTO schema_migrations (version, applied_at) VALUES (?, ?)`, m.name, nowMillis()); err != nil {
			return fmt.Errorf("recording migration %s: %w", m.name, err)
		}
	}

	if _, err := db.ExecContext(ctx, "COMMIT"); err != nil {
		return fmt.Errorf("committing migrations: %w", err)
	}
	committed = true
	return nil
}

// tolerated reports whether err belongs to one of the two classes the
// ladder deliberately swallows rather than aborting the open (spec.md
// §4.1, §9): a column the base DDL already defines, or an unavailable
// vector virtual-table module. Every other error aborts.
func tolerated(err error) bool {
	if err == nil {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "duplicate column") || strings.Contains(msg, "no such module: vec0")
}
