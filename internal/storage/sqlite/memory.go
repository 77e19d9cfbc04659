package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

// SaveMemory is an upsert on (project_path, key); the id is preserved
// across updates, mirroring SaveContextItem's contract.
func (s *Store) SaveMemory(ctx context.Context, mem *types.Memory, actor string) (*types.Memory, error) {
	var out *types.Memory
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, mem.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}

		var existingID string
		err := m.Tx().QueryRowContext(m.ctx, `SELECT id FROM memories WHERE project_path = ? AND key = ?`, mem.ProjectPath, mem.Key).Scan(&existingID)
		if err != nil && err != sql.ErrNoRows {
			return err
		}

		now := nowMillis()
		mem.UpdatedAt = now
		if existingID == "" {
			mem.ID = idgen.New("mem")
			mem.CreatedAt = now
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO memories (id, project_path, key, value, category, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, mem.ID, mem.ProjectPath, mem.Key, mem.Value, mem.Category, mem.CreatedAt, mem.UpdatedAt); err != nil {
				return fmt.Errorf("inserting memory: %w", err)
			}
			m.RecordEvent("memory", mem.ID, "memory_"+types.EventCreated)
		} else {
			mem.ID = existingID
			if _, err := m.Tx().ExecContext(m.ctx, `
				UPDATE memories SET value = ?, category = ?, updated_at = ? WHERE id = ?
			`, mem.Value, mem.Category, mem.UpdatedAt, mem.ID); err != nil {
				return fmt.Errorf("updating memory: %w", err)
			}
			m.RecordEvent("memory", mem.ID, "memory_"+types.EventUpdated)
		}
		out = mem
		return nil
	})
	return out, err
}

func (s *Store) GetMemory(ctx context.Context, projectPath, key string) (*types.Memory, error) {
	mem := &types.Memory{}
	err := s.db.QueryRowContext(ctx, `
		SELECT id, project_path, key, value, category, created_at, updated_at FROM memories WHERE project_path = ? AND key = ?
	`, projectPath, key).Scan(&mem.ID, &mem.ProjectPath, &mem.Key, &mem.Value, &mem.Category, &mem.CreatedAt, &mem.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting memory: %w", err)
	}
	return mem, nil
}

func (s *Store) ListMemory(ctx context.Context, projectPath string) ([]*types.Memory, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, project_path, key, value, category, created_at, updated_at
		FROM memories WHERE project_path = ? ORDER BY key
	`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing memory: %w", err)
	}
	defer rows.Close()

	var out []*types.Memory
	for rows.Next() {
		mem := &types.Memory{}
		if err := rows.Scan(&mem.ID, &mem.ProjectPath, &mem.Key, &mem.Value, &mem.Category, &mem.CreatedAt, &mem.UpdatedAt); err != nil {
			return nil, err
		}
		out = append(out, mem)
	}
	return out, rows.Err()
}

func (s *Store) DeleteMemory(ctx context.Context, projectPath, key string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var id string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT id FROM memories WHERE project_path = ? AND key = ?`, projectPath, key).Scan(&id); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM memories WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting memory: %w", err)
		}
		m.RecordEvent("memory", id, "memory_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('memory', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording memory deletion: %w", err)
		}
		return nil
	})
}
