package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strconv"
	"strings"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

const issueColumns = `id, short_id, project_path, plan_id, title, description, details, status, priority, issue_type,
	assignee, assigned_at, created_at, updated_at, closed_at, closed_by, close_reason, due_at, defer_until, content_hash`

func scanIssue(row interface{ Scan(...interface{}) error }) (*types.Issue, error) {
	i := &types.Issue{}
	var planID sql.NullString
	var contentHash sql.NullString
	err := row.Scan(&i.ID, &i.ShortID, &i.ProjectPath, &planID, &i.Title, &i.Description, &i.Details, &i.Status, &i.Priority,
		&i.IssueType, &i.Assignee, &i.AssignedAt, &i.CreatedAt, &i.UpdatedAt, &i.ClosedAt, &i.ClosedBy, &i.CloseReason,
		&i.DueAt, &i.DeferUntil, &contentHash)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	if planID.Valid {
		i.PlanID = &planID.String
	}
	i.ContentHash = contentHash.String
	return i, nil
}

// CreateIssue requires the project to exist (created lazily) and expects
// the caller to have already populated issue.ShortID, or leaves it to be
// allocated here from the project's counter (spec.md §4.3).
func (s *Store) CreateIssue(ctx context.Context, issue *types.Issue, actor string) (*types.Issue, error) {
	var out *types.Issue
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, issue.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}

		now := nowMillis()
		issue.CreatedAt, issue.UpdatedAt = now, now
		if issue.Status == "" {
			issue.Status = types.IssueOpen
		}
		if issue.IssueType == "" {
			issue.IssueType = types.IssueTypeTask
		}
		if issue.ID == "" {
			issue.ID = idgen.New("issue")
		}
		if issue.ShortID == "" {
			shortID, err := allocateShortID(m.ctx, m.Tx(), issue.ProjectPath, "issue")
			if err != nil {
				return fmt.Errorf("allocating short id: %w", err)
			}
			issue.ShortID = shortID
		}
		issue.ContentHash = contentHashIssue(issue)

		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO issues (id, short_id, project_path, plan_id, content_hash, title, description, details, status,
				priority, issue_type, assignee, assigned_at, created_at, updated_at, closed_at, closed_by, close_reason,
				due_at, defer_until)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`, issue.ID, issue.ShortID, issue.ProjectPath, issue.PlanID, issue.ContentHash, issue.Title, issue.Description,
			issue.Details, issue.Status, issue.Priority, issue.IssueType, issue.Assignee, issue.AssignedAt,
			issue.CreatedAt, issue.UpdatedAt, issue.ClosedAt, issue.ClosedBy, issue.CloseReason, issue.DueAt, issue.DeferUntil); err != nil {
			return fmt.Errorf("creating issue: %w", err)
		}

		m.RecordEvent("issue", issue.ID, "issue_"+types.EventCreated)
		m.MarkDirty("dirty_issues", issue.ID)
		out = issue
		return nil
	})
	return out, err
}

func (s *Store) GetIssue(ctx context.Context, idOrShort string) (*types.Issue, error) {
	issue, err := scanIssue(s.db.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE `+dualLookupWhere, idOrShort))
	if err != nil {
		return nil, fmt.Errorf("getting issue: %w", err)
	}
	return issue, nil
}

// SearchIssues applies the filter columns plus a case-insensitive
// substring match over title/description, ordered by priority DESC then
// created_at ASC to match "ready work" ordering conventions.
func (s *Store) SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error) {
	sqlQuery := `SELECT ` + issueColumns + ` FROM issues WHERE 1=1`
	var args []interface{}
	if filter.ProjectPath != "" {
		sqlQuery += ` AND project_path = ?`
		args = append(args, filter.ProjectPath)
	}
	if filter.Status != "" {
		sqlQuery += ` AND status = ?`
		args = append(args, filter.Status)
	}
	if filter.IssueType != "" {
		sqlQuery += ` AND issue_type = ?`
		args = append(args, filter.IssueType)
	}
	if filter.Assignee != "" {
		sqlQuery += ` AND assignee = ?`
		args = append(args, filter.Assignee)
	}
	if filter.PlanID != "" {
		sqlQuery += ` AND plan_id = ?`
		args = append(args, filter.PlanID)
	}
	if query != "" {
		sqlQuery += ` AND (LOWER(title) LIKE ? OR LOWER(description) LIKE ?)`
		needle := "%" + strings.ToLower(query) + "%"
		args = append(args, needle, needle)
	}
	sqlQuery += ` ORDER BY priority DESC, created_at ASC`

	rows, err := s.db.QueryContext(ctx, sqlQuery, args...)
	if err != nil {
		return nil, fmt.Errorf("searching issues: %w", err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

var updatableIssueColumns = map[string]bool{
	"title": true, "description": true, "details": true, "priority": true,
	"issue_type": true, "plan_id": true, "due_at": true, "defer_until": true,
}

// UpdateIssue applies an arbitrary subset of the updatable columns,
// recomputes the content hash, and bumps updated_at. Status transitions
// go through CloseIssue/ClaimIssue/ReleaseIssue instead, which carry
// their own invariants.
func (s *Store) UpdateIssue(ctx context.Context, id string, updates map[string]interface{}, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if len(updates) == 0 {
			return nil
		}
		setClauses := make([]string, 0, len(updates)+1)
		args := make([]interface{}, 0, len(updates)+2)
		for col, val := range updates {
			if !updatableIssueColumns[col] {
				return fmt.Errorf("column %q is not updatable via UpdateIssue", col)
			}
			setClauses = append(setClauses, col+" = ?")
			args = append(args, val)
		}
		setClauses = append(setClauses, "updated_at = ?")
		args = append(args, nowMillis())
		args = append(args, id)

		query := `UPDATE issues SET ` + strings.Join(setClauses, ", ") + ` WHERE id = ?` // #nosec G201 - columns validated against updatableIssueColumns above
		res, err := m.Tx().ExecContext(m.ctx, query, args...)
		if err != nil {
			return fmt.Errorf("updating issue: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}

		if err := s.refreshContentHash(m.ctx, m.Tx(), id); err != nil {
			return err
		}

		m.RecordEvent("issue", id, "issue_"+types.EventUpdated)
		m.MarkDirty("dirty_issues", id)
		return nil
	})
}

func (s *Store) refreshContentHash(ctx context.Context, tx *sql.Tx, id string) error {
	issue, err := scanIssue(tx.QueryRowContext(ctx, `SELECT `+issueColumns+` FROM issues WHERE id = ?`, id))
	if err != nil {
		return err
	}
	hash := contentHashIssue(issue)
	_, err = tx.ExecContext(ctx, `UPDATE issues SET content_hash = ? WHERE id = ?`, hash, id)
	return err
}

func (s *Store) CloseIssue(ctx context.Context, id, reason, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		now := nowMillis()
		res, err := m.Tx().ExecContext(m.ctx, `
			UPDATE issues SET status = ?, closed_at = ?, closed_by = ?, close_reason = ?, updated_at = ? WHERE id = ?
		`, types.IssueClosed, now, actor, reason, now, id)
		if err != nil {
			return fmt.Errorf("closing issue: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		if err := s.refreshContentHash(m.ctx, m.Tx(), id); err != nil {
			return err
		}
		m.RecordComment("issue", id, "issue_"+types.EventClosed, reason)
		m.MarkDirty("dirty_issues", id)
		return nil
	})
}

func (s *Store) ClaimIssue(ctx context.Context, id, assignee, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		now := nowMillis()
		res, err := m.Tx().ExecContext(m.ctx, `
			UPDATE issues SET status = ?, assignee = ?, assigned_at = ?, updated_at = ? WHERE id = ?
		`, types.IssueInProgress, assignee, now, now, id)
		if err != nil {
			return fmt.Errorf("claiming issue: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordChange("issue", id, "issue_"+types.EventClaimed, "", assignee)
		m.MarkDirty("dirty_issues", id)
		return nil
	})
}

func (s *Store) ReleaseIssue(ctx context.Context, id, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		now := nowMillis()
		res, err := m.Tx().ExecContext(m.ctx, `
			UPDATE issues SET status = ?, assignee = '', assigned_at = NULL, updated_at = ? WHERE id = ?
		`, types.IssueOpen, now, id)
		if err != nil {
			return fmt.Errorf("releasing issue: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordEvent("issue", id, "issue_"+types.EventReleased)
		m.MarkDirty("dirty_issues", id)
		return nil
	})
}

// DeleteIssue also removes matching rows from dependencies in both
// directions, then records a sync_deletions row (spec.md §4.3).
func (s *Store) DeleteIssue(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var projectPath string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT project_path FROM issues WHERE id = ?`, id).Scan(&projectPath); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM dependencies WHERE issue_id = ? OR depends_on_id = ?`, id, id); err != nil {
			return fmt.Errorf("deleting dependencies: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM issues WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting issue: %w", err)
		}
		m.RecordEvent("issue", id, "issue_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('issue', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording issue deletion: %w", err)
		}
		return nil
	})
}

// GetReadyWork returns open, unassigned issues with no open "blocks"
// dependency, via the ready_issues view, ordered priority DESC then
// created_at ASC.
func (s *Store) GetReadyWork(ctx context.Context, projectPath string, limit int) ([]*types.Issue, error) {
	query := `SELECT ` + issueColumns + ` FROM ready_issues WHERE project_path = ? ORDER BY priority DESC, created_at ASC`
	args := []interface{}{projectPath}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting ready work: %w", err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

// ClaimNextReady claims up to n ready issues in turn, each inside its own
// transaction, and returns their post-claim state (spec.md §4.3).
func (s *Store) ClaimNextReady(ctx context.Context, projectPath, assignee, actor string, n int) ([]*types.Issue, error) {
	var claimed []*types.Issue
	for len(claimed) < n {
		ready, err := s.GetReadyWork(ctx, projectPath, 1)
		if err != nil {
			return claimed, err
		}
		if len(ready) == 0 {
			break
		}
		if err := s.ClaimIssue(ctx, ready[0].ID, assignee, actor); err != nil {
			return claimed, err
		}
		updated, err := s.GetIssue(ctx, ready[0].ID)
		if err != nil {
			return claimed, err
		}
		claimed = append(claimed, updated)
	}
	return claimed, nil
}

func (s *Store) GetBlockedIssues(ctx context.Context, projectPath string) ([]*types.Issue, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+issueColumns+` FROM blocked_issues WHERE project_path = ? ORDER BY priority DESC, created_at ASC
	`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("getting blocked issues: %w", err)
	}
	defer rows.Close()

	var out []*types.Issue
	for rows.Next() {
		issue, err := scanIssue(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, issue)
	}
	return out, rows.Err()
}

func (s *Store) AddDependency(ctx context.Context, dep *types.Dependency, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if dep.Type == "" {
			dep.Type = types.DependencyBlocks
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO dependencies (issue_id, depends_on_id, type, created_at, created_by)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT (issue_id, depends_on_id) DO UPDATE SET type = excluded.type
		`, dep.IssueID, dep.DependsOnID, dep.Type, nowMillis(), actor); err != nil {
			return fmt.Errorf("adding dependency: %w", err)
		}
		m.RecordEvent("issue", dep.IssueID, "issue_"+types.EventDependAdded)
		m.MarkDirty("dirty_issues", dep.IssueID)
		return nil
	})
}

func (s *Store) RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM dependencies WHERE issue_id = ? AND depends_on_id = ?`, issueID, dependsOnID); err != nil {
			return fmt.Errorf("removing dependency: %w", err)
		}
		m.RecordEvent("issue", issueID, "issue_"+types.EventDependRemoved)
		m.MarkDirty("dirty_issues", issueID)
		return nil
	})
}

func (s *Store) GetDependencies(ctx context.Context, issueID string) ([]*types.Dependency, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT issue_id, depends_on_id, type FROM dependencies WHERE issue_id = ?`, issueID)
	if err != nil {
		return nil, fmt.Errorf("getting dependencies: %w", err)
	}
	defer rows.Close()

	var out []*types.Dependency
	for rows.Next() {
		d := &types.Dependency{}
		if err := rows.Scan(&d.IssueID, &d.DependsOnID, &d.Type); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) AddLabel(ctx context.Context, issueID, label string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO labels (issue_id, label) VALUES (?, ?) ON CONFLICT (issue_id, label) DO NOTHING
		`, issueID, label); err != nil {
			return fmt.Errorf("adding label: %w", err)
		}
		m.RecordEvent("issue", issueID, "issue_label_added")
		m.MarkDirty("dirty_issues", issueID)
		return nil
	})
}

func (s *Store) RemoveLabel(ctx context.Context, issueID, label string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM labels WHERE issue_id = ? AND label = ?`, issueID, label); err != nil {
			return fmt.Errorf("removing label: %w", err)
		}
		m.RecordEvent("issue", issueID, "issue_label_removed")
		m.MarkDirty("dirty_issues", issueID)
		return nil
	})
}

func (s *Store) GetLabels(ctx context.Context, issueID string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT label FROM labels WHERE issue_id = ? ORDER BY label`, issueID)
	if err != nil {
		return nil, fmt.Errorf("getting labels: %w", err)
	}
	defer rows.Close()

	var out []string
	for rows.Next() {
		var label string
		if err := rows.Scan(&label); err != nil {
			return nil, err
		}
		out = append(out, label)
	}
	return out, rows.Err()
}

// issuePriorityFromString parses the 0-4 priority scale, accepting
// either a bare integer or a synonym resolved upstream by internal/resolve.
func issuePriorityFromString(s string) (int, error) {
	n, err := strconv.Atoi(s)
	if err != nil || n < 0 || n > 4 {
		return 0, fmt.Errorf("invalid priority %q", s)
	}
	return n, nil
}
