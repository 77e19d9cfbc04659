package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) CreateCheckpoint(ctx context.Context, sessionID, name, description string, actor string) (*types.Checkpoint, error) {
	var out *types.Checkpoint
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		cp := &types.Checkpoint{
			ID:          idgen.New("ckpt"),
			SessionID:   sessionID,
			Name:        name,
			Description: description,
			CreatedAt:   nowMillis(),
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO checkpoints (id, session_id, name, description, git_branch, git_status, created_at)
			VALUES (?, ?, ?, ?, '', '', ?)
		`, cp.ID, cp.SessionID, cp.Name, cp.Description, cp.CreatedAt); err != nil {
			return fmt.Errorf("creating checkpoint: %w", err)
		}

		rows, err := m.Tx().QueryContext(m.ctx, `SELECT `+contextItemColumns+` FROM context_items WHERE session_id = ?`, sessionID)
		if err != nil {
			return fmt.Errorf("snapshotting context items: %w", err)
		}
		defer rows.Close()

		var items []*types.ContextItem
		for rows.Next() {
			item, err := scanContextItem(rows)
			if err != nil {
				return err
			}
			items = append(items, item)
		}
		if err := rows.Err(); err != nil {
			return err
		}

		for _, item := range items {
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO checkpoint_items (id, checkpoint_id, key, value, category, priority, channel, tags, size_bytes)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, idgen.New("cpit"), cp.ID, item.Key, item.Value, item.Category, item.Priority, item.Channel, marshalTags(item.Tags), item.SizeBytes); err != nil {
				return fmt.Errorf("copying item into checkpoint: %w", err)
			}
		}

		m.RecordEvent("checkpoint", cp.ID, "checkpoint_"+types.EventCreated)
		out = cp
		return nil
	})
	return out, err
}

func (s *Store) GetCheckpoint(ctx context.Context, idOrShort string) (*types.Checkpoint, error) {
	cp := &types.Checkpoint{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, session_id, name, description, git_branch, git_status, created_at FROM checkpoints WHERE id = ?
	`, idOrShort).Scan(&cp.ID, &cp.SessionID, &cp.Name, &cp.Description, &cp.GitBranch, &cp.GitStatus, &cp.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting checkpoint: %w", err)
	}
	return cp, nil
}

func (s *Store) ListCheckpoints(ctx context.Context, sessionID string) ([]*types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, session_id, name, description, git_branch, git_status, created_at
		FROM checkpoints WHERE session_id = ? ORDER BY created_at DESC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints: %w", err)
	}
	defer rows.Close()

	var out []*types.Checkpoint
	for rows.Next() {
		cp := &types.Checkpoint{}
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Name, &cp.Description, &cp.GitBranch, &cp.GitStatus, &cp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// ListCheckpointsByProject returns every checkpoint anchored (through its
// session) at projectPath, for full-snapshot export (spec.md §4.4).
func (s *Store) ListCheckpointsByProject(ctx context.Context, projectPath string) ([]*types.Checkpoint, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.session_id, c.name, c.description, c.git_branch, c.git_status, c.created_at
		FROM checkpoints c JOIN sessions s ON s.id = c.session_id
		WHERE s.project_path = ? ORDER BY c.created_at DESC
	`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing checkpoints by project: %w", err)
	}
	defer rows.Close()

	var out []*types.Checkpoint
	for rows.Next() {
		cp := &types.Checkpoint{}
		if err := rows.Scan(&cp.ID, &cp.SessionID, &cp.Name, &cp.Description, &cp.GitBranch, &cp.GitStatus, &cp.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, cp)
	}
	return out, rows.Err()
}

// RestoreCheckpoint performs spec.md §4.3's destructive restore: every
// existing context item of targetSessionID is deleted, then one new row
// per surviving (filtered) checkpoint item is inserted with a fresh id,
// all inside a single transaction. It returns the count restored.
func (s *Store) RestoreCheckpoint(ctx context.Context, checkpointID, targetSessionID string, categories, tags []string, actor string) (int, error) {
	count := 0
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		rows, err := m.Tx().QueryContext(m.ctx, `
			SELECT key, value, category, priority, channel, tags FROM checkpoint_items WHERE checkpoint_id = ?
		`, checkpointID)
		if err != nil {
			return fmt.Errorf("reading checkpoint items: %w", err)
		}
		type restoreRow struct {
			key, value, category, priority, channel string
			tags                                     []string
		}
		var toRestore []restoreRow
		for rows.Next() {
			var r restoreRow
			var tagsJSON string
			if err := rows.Scan(&r.key, &r.value, &r.category, &r.priority, &r.channel, &tagsJSON); err != nil {
				rows.Close()
				return err
			}
			r.tags = unmarshalTags(tagsJSON)
			if matchesFilter(r.category, r.tags, categories, tags) {
				toRestore = append(toRestore, r)
			}
		}
		rows.Close()
		if err := rows.Err(); err != nil {
			return err
		}

		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM embedding_chunks WHERE item_id IN (
			SELECT id FROM context_items WHERE session_id = ?
		)`, targetSessionID); err != nil {
			return fmt.Errorf("clearing orphaned embedding chunks: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM embedding_chunks_fast WHERE item_id IN (
			SELECT id FROM context_items WHERE session_id = ?
		)`, targetSessionID); err != nil {
			return fmt.Errorf("clearing orphaned fast embedding chunks: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM context_items WHERE session_id = ?`, targetSessionID); err != nil {
			return fmt.Errorf("clearing target session's context items: %w", err)
		}

		now := nowMillis()
		for _, r := range toRestore {
			id := idgen.New("item")
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO context_items (id, session_id, key, value, category, priority, channel, tags, size_bytes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, id, targetSessionID, r.key, r.value, r.category, r.priority, r.channel, marshalTags(r.tags), len(r.value), now, now); err != nil {
				return fmt.Errorf("restoring item %s: %w", r.key, err)
			}
			m.MarkDirty("dirty_context_items", id)
			count++
		}

		if _, err := m.Tx().ExecContext(m.ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, targetSessionID); err != nil {
			return fmt.Errorf("bumping session updated_at: %w", err)
		}

		m.RecordEvent("checkpoint", checkpointID, "checkpoint_"+types.EventRestored)
		m.MarkDirty("dirty_sessions", targetSessionID)
		return nil
	})
	return count, err
}

func matchesFilter(category string, itemTags, wantCategories, wantTags []string) bool {
	if len(wantCategories) > 0 && !contains(wantCategories, category) {
		return false
	}
	if len(wantTags) > 0 {
		found := false
		for _, t := range wantTags {
			if contains(itemTags, t) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	return true
}

func contains(list []string, v string) bool {
	for _, s := range list {
		if s == v {
			return true
		}
	}
	return false
}

func (s *Store) DeleteCheckpoint(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var projectPath string
		if err := m.Tx().QueryRowContext(m.ctx, `
			SELECT s.project_path FROM checkpoints c JOIN sessions s ON s.id = c.session_id WHERE c.id = ?
		`, id).Scan(&projectPath); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM checkpoints WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting checkpoint: %w", err)
		}
		m.RecordEvent("checkpoint", id, "checkpoint_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('checkpoint', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording checkpoint deletion: %w", err)
		}
		return nil
	})
}
