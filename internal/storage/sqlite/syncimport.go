package sqlite

import (
	"context"
	"fmt"

	"github.com/savecontext/savecontext/internal/types"
)

// The Import* methods upsert an entity exactly as received from a peer,
// preserving its id (and short id, where present) instead of allocating a
// new one, then apply the same audit-event discipline as the local
// CRUD paths (spec.md §4.4 import step "upsert"). They do not call
// MarkDirty: a record just re-imported from a peer's snapshot is already
// reflected in that peer's export and re-marking it dirty would only
// cause a redundant re-export on the next sync round.

func (s *Store) ImportSession(ctx context.Context, sess *types.Session, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, sess.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sessions (id, name, project_path, provider, terminal_key, status, created_at, updated_at, ended_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, provider = excluded.provider,
				terminal_key = excluded.terminal_key, status = excluded.status, updated_at = excluded.updated_at, ended_at = excluded.ended_at
		`, sess.ID, sess.Name, sess.ProjectPath, sess.Provider, sess.TerminalKey, sess.Status, sess.CreatedAt, sess.UpdatedAt, sess.EndedAt); err != nil {
			return fmt.Errorf("importing session: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM session_projects WHERE session_id = ?`, sess.ID); err != nil {
			return fmt.Errorf("clearing session paths: %w", err)
		}
		for _, p := range sess.Paths {
			if p == sess.ProjectPath {
				continue
			}
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO session_projects (session_id, project_path) VALUES (?, ?) ON CONFLICT (session_id, project_path) DO NOTHING
			`, sess.ID, p); err != nil {
				return fmt.Errorf("importing session path: %w", err)
			}
		}
		m.RecordEvent("session", sess.ID, "session_imported")
		return nil
	})
}

func (s *Store) ImportIssue(ctx context.Context, issue *types.Issue, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, issue.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO issues (id, short_id, project_path, plan_id, content_hash, title, description, details, status,
				priority, issue_type, assignee, assigned_at, created_at, updated_at, closed_at, closed_by, close_reason,
				due_at, defer_until)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET plan_id = excluded.plan_id, content_hash = excluded.content_hash,
				title = excluded.title, description = excluded.description, details = excluded.details, status = excluded.status,
				priority = excluded.priority, issue_type = excluded.issue_type, assignee = excluded.assignee,
				assigned_at = excluded.assigned_at, updated_at = excluded.updated_at, closed_at = excluded.closed_at,
				closed_by = excluded.closed_by, close_reason = excluded.close_reason, due_at = excluded.due_at, defer_until = excluded.defer_until
		`, issue.ID, issue.ShortID, issue.ProjectPath, issue.PlanID, issue.ContentHash, issue.Title, issue.Description,
			issue.Details, issue.Status, issue.Priority, issue.IssueType, issue.Assignee, issue.AssignedAt,
			issue.CreatedAt, issue.UpdatedAt, issue.ClosedAt, issue.ClosedBy, issue.CloseReason, issue.DueAt, issue.DeferUntil); err != nil {
			return fmt.Errorf("importing issue: %w", err)
		}
		for _, label := range issue.Labels {
			if _, err := m.Tx().ExecContext(m.ctx, `INSERT INTO labels (issue_id, label) VALUES (?, ?) ON CONFLICT (issue_id, label) DO NOTHING`, issue.ID, label); err != nil {
				return fmt.Errorf("importing label: %w", err)
			}
		}
		for _, dep := range issue.Dependencies {
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO dependencies (issue_id, depends_on_id, type, created_at, created_by) VALUES (?, ?, ?, ?, ?)
				ON CONFLICT (issue_id, depends_on_id) DO UPDATE SET type = excluded.type
			`, dep.IssueID, dep.DependsOnID, dep.Type, issue.UpdatedAt, actor); err != nil {
				return fmt.Errorf("importing dependency: %w", err)
			}
		}
		m.RecordEvent("issue", issue.ID, "issue_imported")
		return nil
	})
}

func (s *Store) ImportContextItem(ctx context.Context, item *types.ContextItem, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO context_items (id, session_id, key, value, category, priority, channel, tags, size_bytes,
				fast_embedding_status, embedding_status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET value = excluded.value, category = excluded.category, priority = excluded.priority,
				channel = excluded.channel, tags = excluded.tags, size_bytes = excluded.size_bytes, updated_at = excluded.updated_at
		`, item.ID, item.SessionID, item.Key, item.Value, item.Category, item.Priority, item.Channel, marshalTags(item.Tags),
			item.SizeBytes, item.FastEmbedStatus, item.EmbeddingStatus, item.CreatedAt, item.UpdatedAt); err != nil {
			return fmt.Errorf("importing context item: %w", err)
		}
		m.RecordEvent("context_item", item.ID, "context_item_imported")
		return nil
	})
}

func (s *Store) ImportMemory(ctx context.Context, mem *types.Memory, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, mem.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO memories (id, project_path, key, value, category, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (project_path, key) DO UPDATE SET value = excluded.value, category = excluded.category, updated_at = excluded.updated_at
		`, mem.ID, mem.ProjectPath, mem.Key, mem.Value, mem.Category, mem.CreatedAt, mem.UpdatedAt); err != nil {
			return fmt.Errorf("importing memory: %w", err)
		}
		m.RecordEvent("memory", mem.ID, "memory_imported")
		return nil
	})
}

func (s *Store) ImportCheckpoint(ctx context.Context, cp *types.Checkpoint, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO checkpoints (id, session_id, name, description, git_branch, git_status, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET name = excluded.name, description = excluded.description,
				git_branch = excluded.git_branch, git_status = excluded.git_status
		`, cp.ID, cp.SessionID, cp.Name, cp.Description, cp.GitBranch, cp.GitStatus, cp.CreatedAt); err != nil {
			return fmt.Errorf("importing checkpoint: %w", err)
		}
		m.RecordEvent("checkpoint", cp.ID, "checkpoint_imported")
		return nil
	})
}

func (s *Store) ImportPlan(ctx context.Context, p *types.Plan, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, p.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO plans (id, short_id, project_path, session_id, title, body, success_criteria, status,
				source_file, source_hash, due_at, defer_until, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT (id) DO UPDATE SET session_id = excluded.session_id, title = excluded.title, body = excluded.body,
				success_criteria = excluded.success_criteria, status = excluded.status, source_file = excluded.source_file,
				source_hash = excluded.source_hash, due_at = excluded.due_at, defer_until = excluded.defer_until,
				updated_at = excluded.updated_at
		`, p.ID, p.ShortID, p.ProjectPath, p.SessionID, p.Title, p.Body, p.SuccessCriteria, p.Status,
			p.SourceFile, p.SourceHash, p.DueAt, p.DeferUntil, p.CreatedAt, p.UpdatedAt); err != nil {
			return fmt.Errorf("importing plan: %w", err)
		}
		m.RecordEvent("plan", p.ID, "plan_imported")
		return nil
	})
}

// ApplyDeletion replays a peer's deletion of entityID, deleting the row if
// still present locally and recording (or refreshing) the local deletion
// log entry so a subsequent export of this project reflects it too
// (spec.md §4.4 import step "apply deletions").
func (s *Store) ApplyDeletion(ctx context.Context, entityType, entityID, projectPath, deletedBy string, deletedAt int64) error {
	table, ok := entityTableForDeletion[entityType]
	if !ok {
		return fmt.Errorf("unknown entity type %q for deletion", entityType)
	}
	return s.mutate(ctx, "sync-import", func(m *MutationContext) error {
		query := fmt.Sprintf(`DELETE FROM %s WHERE id = ?`, table) // #nosec G201 - table from fixed map below
		if _, err := m.Tx().ExecContext(m.ctx, query, entityID); err != nil {
			return fmt.Errorf("applying %s deletion: %w", entityType, err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by, exported)
			VALUES (?, ?, ?, ?, ?, 1)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by
		`, entityType, entityID, projectPath, deletedAt, deletedBy); err != nil {
			return fmt.Errorf("recording replayed deletion: %w", err)
		}
		m.RecordEvent(entityType, entityID, entityType+"_deletion_replayed")
		return nil
	})
}

var entityTableForDeletion = map[string]string{
	"session":      "sessions",
	"issue":        "issues",
	"context_item": "context_items",
	"memory":       "memories",
	"checkpoint":   "checkpoints",
	"plan":         "plans",
}
