package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) GetOrCreateProject(ctx context.Context, path string) (*types.Project, error) {
	if p, err := s.GetProject(ctx, path); err == nil {
		return p, nil
	} else if err != errNotFound {
		return nil, err
	}

	now := nowMillis()
	name := path
	if idx := lastSlash(path); idx >= 0 && idx+1 < len(path) {
		name = path[idx+1:]
	}

	p := &types.Project{
		Path:            path,
		Name:            name,
		IssuePrefix:     defaultPrefix(name),
		PlanPrefix:      defaultPrefix(name),
		NextIssueNumber: 1,
		NextPlanNumber:  1,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO projects (path, name, description, issue_prefix, plan_prefix, next_issue_number, next_plan_number, created_at, updated_at)
		VALUES (?, ?, '', ?, ?, ?, ?, ?, ?)
		ON CONFLICT (path) DO NOTHING
	`, p.Path, p.Name, p.IssuePrefix, p.PlanPrefix, p.NextIssueNumber, p.NextPlanNumber, p.CreatedAt, p.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("creating project: %w", err)
	}
	return s.GetProject(ctx, path)
}

func (s *Store) GetProject(ctx context.Context, path string) (*types.Project, error) {
	p := &types.Project{}
	err := s.db.QueryRowContext(ctx, `
		SELECT path, name, description, issue_prefix, plan_prefix, next_issue_number, next_plan_number, created_at, updated_at
		FROM projects WHERE path = ?
	`, path).Scan(&p.Path, &p.Name, &p.Description, &p.IssuePrefix, &p.PlanPrefix, &p.NextIssueNumber, &p.NextPlanNumber, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting project: %w", err)
	}
	return p, nil
}

func (s *Store) ListProjects(ctx context.Context) ([]*types.Project, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT path, name, description, issue_prefix, plan_prefix, next_issue_number, next_plan_number, created_at, updated_at
		FROM projects ORDER BY updated_at DESC
	`)
	if err != nil {
		return nil, fmt.Errorf("listing projects: %w", err)
	}
	defer rows.Close()

	var out []*types.Project
	for rows.Next() {
		p := &types.Project{}
		if err := rows.Scan(&p.Path, &p.Name, &p.Description, &p.IssuePrefix, &p.PlanPrefix, &p.NextIssueNumber, &p.NextPlanNumber, &p.CreatedAt, &p.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// syncedProjectEntityQueries maps each synced entity kind (internal/sync's
// Kinds list) anchored at a project to the query that collects its ids,
// so DeleteProject can log a sync_deletions row for everything the
// cascade is about to remove (spec.md §3/§69: deletion cascades to every
// anchored record, and that cascade is itself part of the deletion log).
var syncedProjectEntityQueries = map[string]string{
	"session":      `SELECT id FROM sessions WHERE project_path = ?`,
	"issue":        `SELECT id FROM issues WHERE project_path = ?`,
	"memory":       `SELECT id FROM memories WHERE project_path = ?`,
	"plan":         `SELECT id FROM plans WHERE project_path = ?`,
	"context_item": `SELECT c.id FROM context_items c JOIN sessions s ON s.id = c.session_id WHERE s.project_path = ?`,
	"checkpoint":   `SELECT c.id FROM checkpoints c JOIN sessions s ON s.id = c.session_id WHERE s.project_path = ?`,
}

// DeleteProject removes the project row and, via ON DELETE CASCADE,
// every session/issue/context item/memory/plan/checkpoint anchored at it.
// Before that cascade runs, every one of those ids is logged into
// sync_deletions so a peer that imports this project's deletion later
// doesn't keep a stale copy of its cascaded children.
func (s *Store) DeleteProject(ctx context.Context, path string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		now := nowMillis()
		for _, kind := range []string{"session", "issue", "memory", "plan", "context_item", "checkpoint"} {
			rows, err := m.Tx().QueryContext(m.ctx, syncedProjectEntityQueries[kind], path)
			if err != nil {
				return fmt.Errorf("collecting %s ids for project deletion: %w", kind, err)
			}
			var ids []string
			for rows.Next() {
				var id string
				if err := rows.Scan(&id); err != nil {
					rows.Close()
					return err
				}
				ids = append(ids, id)
			}
			if err := rows.Err(); err != nil {
				rows.Close()
				return err
			}
			rows.Close()

			for _, id := range ids {
				if _, err := m.Tx().ExecContext(m.ctx, `
					INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
					VALUES (?, ?, ?, ?, ?)
					ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
				`, kind, id, path, now, actor); err != nil {
					return fmt.Errorf("recording %s deletion: %w", kind, err)
				}
			}
		}

		res, err := m.Tx().ExecContext(m.ctx, `DELETE FROM projects WHERE path = ?`, path)
		if err != nil {
			return fmt.Errorf("deleting project: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordEvent("project", path, "project_"+types.EventDeleted)
		return nil
	})
}

func lastSlash(s string) int {
	for i := len(s) - 1; i >= 0; i-- {
		if s[i] == '/' {
			return i
		}
	}
	return -1
}

// defaultPrefix derives a short uppercase prefix (issue/plan ids) from a
// project name: its first two ASCII letters, uppercased, with every other
// character skipped (fewer if the name has fewer letters; "SC" if none).
func defaultPrefix(name string) string {
	var letters []byte
	for i := 0; i < len(name) && len(letters) < 2; i++ {
		c := name[i]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
			if c >= 'a' && c <= 'z' {
				c -= 'a' - 'A'
			}
			letters = append(letters, c)
		}
	}
	if len(letters) == 0 {
		return "SC"
	}
	return string(letters)
}
