package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

const planColumns = `id, short_id, project_path, session_id, title, body, success_criteria, status, source_file, source_hash, due_at, defer_until, created_at, updated_at`

func scanPlan(row interface{ Scan(...interface{}) error }) (*types.Plan, error) {
	p := &types.Plan{}
	err := row.Scan(&p.ID, &p.ShortID, &p.ProjectPath, &p.SessionID, &p.Title, &p.Body, &p.SuccessCriteria, &p.Status,
		&p.SourceFile, &p.SourceHash, &p.DueAt, &p.DeferUntil, &p.CreatedAt, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

func (s *Store) CreatePlan(ctx context.Context, p *types.Plan, actor string) (*types.Plan, error) {
	var out *types.Plan
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, p.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}

		now := nowMillis()
		p.CreatedAt, p.UpdatedAt = now, now
		if p.Status == "" {
			p.Status = types.PlanDraft
		}
		if p.ID == "" {
			p.ID = idgen.New("plan")
		}
		if p.ShortID == "" {
			shortID, err := allocateShortID(m.ctx, m.Tx(), p.ProjectPath, "plan")
			if err != nil {
				return fmt.Errorf("allocating short id: %w", err)
			}
			p.ShortID = shortID
		}
		if p.SourceFile != "" && p.SourceHash == "" {
			p.SourceHash = contentHashPlan(p)
		}

		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO plans (id, short_id, project_path, session_id, title, body, success_criteria, status,
				source_file, source_hash, due_at, defer_until, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, p.ID, p.ShortID, p.ProjectPath, p.SessionID, p.Title, p.Body, p.SuccessCriteria, p.Status,
			p.SourceFile, p.SourceHash, p.DueAt, p.DeferUntil, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("creating plan: %w", err)
		}

		m.RecordEvent("plan", p.ID, "plan_"+types.EventCreated)
		m.MarkDirty("dirty_plans", p.ID)
		out = p
		return nil
	})
	return out, err
}

func (s *Store) GetPlan(ctx context.Context, idOrShort string) (*types.Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, `SELECT `+planColumns+` FROM plans WHERE `+dualLookupWhere, idOrShort))
	if err != nil {
		return nil, fmt.Errorf("getting plan: %w", err)
	}
	return p, nil
}

func (s *Store) ListPlans(ctx context.Context, projectPath string) ([]*types.Plan, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+planColumns+` FROM plans WHERE project_path = ? ORDER BY updated_at DESC`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing plans: %w", err)
	}
	defer rows.Close()

	var out []*types.Plan
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) UpdatePlanStatus(ctx context.Context, id, status string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		res, err := m.Tx().ExecContext(m.ctx, `UPDATE plans SET status = ?, updated_at = ? WHERE id = ?`, status, nowMillis(), id)
		if err != nil {
			return fmt.Errorf("updating plan status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordChange("plan", id, "plan_"+types.EventStatusChanged, "", status)
		m.MarkDirty("dirty_plans", id)
		return nil
	})
}

// UpdatePlanSchedule sets a plan's due/defer timestamps (spec.md
// supplemented features). Either pointer may be nil to leave that column
// untouched, matching the issue due/defer update path in issues.go.
func (s *Store) UpdatePlanSchedule(ctx context.Context, id string, dueAt, deferUntil *int64, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		res, err := m.Tx().ExecContext(m.ctx, `
			UPDATE plans SET
				due_at = COALESCE(?, due_at),
				defer_until = COALESCE(?, defer_until),
				updated_at = ?
			WHERE id = ?
		`, dueAt, deferUntil, nowMillis(), id)
		if err != nil {
			return fmt.Errorf("updating plan schedule: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordEvent("plan", id, "plan_"+types.EventUpdated)
		m.MarkDirty("dirty_plans", id)
		return nil
	})
}

// FindPlanBySourceHash returns the plan in projectPath whose source_hash
// equals sourceHash. No import path in this repository calls it.
func (s *Store) FindPlanBySourceHash(ctx context.Context, projectPath, sourceHash string) (*types.Plan, error) {
	p, err := scanPlan(s.db.QueryRowContext(ctx, `
		SELECT `+planColumns+` FROM plans WHERE project_path = ? AND source_hash = ?
	`, projectPath, sourceHash))
	if err != nil {
		return nil, fmt.Errorf("finding plan by source hash: %w", err)
	}
	return p, nil
}

func (s *Store) DeletePlan(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var projectPath string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT project_path FROM plans WHERE id = ?`, id).Scan(&projectPath); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `UPDATE issues SET plan_id = NULL WHERE plan_id = ?`, id); err != nil {
			return fmt.Errorf("unlinking issues from plan: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM plans WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting plan: %w", err)
		}
		m.RecordEvent("plan", id, "plan_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('plan', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording plan deletion: %w", err)
		}
		return nil
	})
}
