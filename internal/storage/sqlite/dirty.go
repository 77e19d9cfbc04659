package sqlite

import (
	"context"
	"fmt"
	"strings"
)

// entityDirtyTable maps a sync entity kind to its dirty table name.
// validDirtyTable (mutate.go) keeps its own list of the same four tables.
var entityDirtyTable = map[string]string{
	"session":      "dirty_sessions",
	"issue":        "dirty_issues",
	"context_item": "dirty_context_items",
	"plan":         "dirty_plans",
}

func (s *Store) GetDirtyIDs(ctx context.Context, entityType, projectPath string) ([]string, error) {
	if _, ok := entityDirtyTable[entityType]; !ok {
		return nil, fmt.Errorf("unknown sync entity type %q", entityType)
	}

	// Dirty tables only record ids; the project scope is applied by
	// joining back to the owning entity table, which differs per kind.
	var query string
	switch entityType {
	case "session":
		query = `SELECT d.entity_id FROM dirty_sessions d JOIN sessions s ON s.id = d.entity_id WHERE s.project_path = ?`
	case "issue":
		query = `SELECT d.entity_id FROM dirty_issues d JOIN issues i ON i.id = d.entity_id WHERE i.project_path = ?`
	case "context_item":
		query = `SELECT d.entity_id FROM dirty_context_items d JOIN context_items c ON c.id = d.entity_id JOIN sessions s ON s.id = c.session_id WHERE s.project_path = ?`
	case "plan":
		query = `SELECT d.entity_id FROM dirty_plans d JOIN plans p ON p.id = d.entity_id WHERE p.project_path = ?`
	}

	rows, err := s.db.QueryContext(ctx, query, projectPath)
	if err != nil {
		return nil, fmt.Errorf("querying dirty %s ids: %w", entityType, err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

func (s *Store) ClearDirty(ctx context.Context, entityType string, ids []string) error {
	table, ok := entityDirtyTable[entityType]
	if !ok {
		return fmt.Errorf("unknown sync entity type %q", entityType)
	}
	if len(ids) == 0 {
		return nil
	}

	placeholders := make([]string, len(ids))
	args := make([]interface{}, len(ids))
	for i, id := range ids {
		placeholders[i] = "?"
		args[i] = id
	}
	query := fmt.Sprintf(`DELETE FROM %s WHERE entity_id IN (%s)`, table, strings.Join(placeholders, ",")) // #nosec G201 - table from fixed map above
	_, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("clearing dirty %s: %w", entityType, err)
	}
	return nil
}

// MarkAllDirty re-marks every entity of every kind under a project dirty,
// used to force a full re-export (e.g. after changing the merge strategy
// or recovering from a corrupted snapshot).
func (s *Store) MarkAllDirty(ctx context.Context, projectPath string) error {
	now := nowMillis()
	stmts := []struct {
		query string
	}{
		{`INSERT INTO dirty_sessions (entity_id, marked_at) SELECT id, ? FROM sessions WHERE project_path = ? ON CONFLICT (entity_id) DO UPDATE SET marked_at = excluded.marked_at`},
		{`INSERT INTO dirty_issues (entity_id, marked_at) SELECT id, ? FROM issues WHERE project_path = ? ON CONFLICT (entity_id) DO UPDATE SET marked_at = excluded.marked_at`},
		{`INSERT INTO dirty_context_items (entity_id, marked_at) SELECT c.id, ? FROM context_items c JOIN sessions s ON s.id = c.session_id WHERE s.project_path = ? ON CONFLICT (entity_id) DO UPDATE SET marked_at = excluded.marked_at`},
		{`INSERT INTO dirty_plans (entity_id, marked_at) SELECT id, ? FROM plans WHERE project_path = ? ON CONFLICT (entity_id) DO UPDATE SET marked_at = excluded.marked_at`},
	}
	for _, st := range stmts {
		if _, err := s.db.ExecContext(ctx, st.query, now, projectPath); err != nil {
			return fmt.Errorf("marking all dirty: %w", err)
		}
	}
	return nil
}
