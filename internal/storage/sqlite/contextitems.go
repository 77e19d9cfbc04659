package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

// SaveContextItem is an upsert on (session_id, key): the id is preserved
// across updates, value/category/priority/channel/tags/size/updated_at
// are overwritten, and the owning session's updated_at is bumped
// (spec.md §4.3).
func (s *Store) SaveContextItem(ctx context.Context, item *types.ContextItem, actor string) (*types.ContextItem, error) {
	var out *types.ContextItem
	err := s.mutate(ctx, actor, func(m *MutationContext) error {
		existingID, err := lookupItemID(m.ctx, m.Tx(), item.SessionID, item.Key)
		if err != nil && err != errNotFound {
			return err
		}

		now := nowMillis()
		item.UpdatedAt = now
		if existingID == "" {
			item.ID = idgen.New("item")
			item.CreatedAt = now
			item.SizeBytes = len(item.Value)
			if _, err := m.Tx().ExecContext(m.ctx, `
				INSERT INTO context_items (id, session_id, key, value, category, priority, channel, tags, size_bytes, created_at, updated_at)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
			`, item.ID, item.SessionID, item.Key, item.Value, item.Category, item.Priority, item.Channel, marshalTags(item.Tags), item.SizeBytes, item.CreatedAt, item.UpdatedAt); err != nil {
				return fmt.Errorf("inserting context item: %w", err)
			}
			m.RecordEvent("context_item", item.ID, "context_item_"+types.EventCreated)
		} else {
			item.ID = existingID
			item.SizeBytes = len(item.Value)
			if _, err := m.Tx().ExecContext(m.ctx, `
				UPDATE context_items SET value = ?, category = ?, priority = ?, channel = ?, tags = ?, size_bytes = ?,
					fast_embedding_status = 'pending', embedding_status = 'pending', updated_at = ?
				WHERE id = ?
			`, item.Value, item.Category, item.Priority, item.Channel, marshalTags(item.Tags), item.SizeBytes, item.UpdatedAt, item.ID); err != nil {
				return fmt.Errorf("updating context item: %w", err)
			}
			m.RecordEvent("context_item", item.ID, "context_item_"+types.EventUpdated)
		}

		if _, err := m.Tx().ExecContext(m.ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, now, item.SessionID); err != nil {
			return fmt.Errorf("bumping session updated_at: %w", err)
		}

		m.MarkDirty("dirty_context_items", item.ID)
		m.MarkDirty("dirty_sessions", item.SessionID)
		out = item
		return nil
	})
	return out, err
}

func lookupItemID(ctx context.Context, tx *sql.Tx, sessionID, key string) (string, error) {
	var id string
	err := tx.QueryRowContext(ctx, `SELECT id FROM context_items WHERE session_id = ? AND key = ?`, sessionID, key).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errNotFound
	}
	if err != nil {
		return "", err
	}
	return id, nil
}

func (s *Store) GetItemIDByKey(ctx context.Context, sessionID, key string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx, `SELECT id FROM context_items WHERE session_id = ? AND key = ?`, sessionID, key).Scan(&id)
	if err == sql.ErrNoRows {
		return "", errNotFound
	}
	if err != nil {
		return "", fmt.Errorf("looking up item id: %w", err)
	}
	return id, nil
}

func scanContextItem(row interface{ Scan(...interface{}) error }) (*types.ContextItem, error) {
	item := &types.ContextItem{}
	var tags string
	err := row.Scan(&item.ID, &item.SessionID, &item.Key, &item.Value, &item.Category, &item.Priority, &item.Channel,
		&tags, &item.SizeBytes, &item.FastEmbedStatus, &item.FastEmbeddedAt, &item.EmbeddingStatus, &item.CreatedAt, &item.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	item.Tags = unmarshalTags(tags)
	return item, nil
}

const contextItemColumns = `id, session_id, key, value, category, priority, channel, tags, size_bytes, fast_embedding_status, fast_embedded_at, embedding_status, created_at, updated_at`

func (s *Store) GetContextItem(ctx context.Context, id string) (*types.ContextItem, error) {
	item, err := scanContextItem(s.db.QueryRowContext(ctx, `SELECT `+contextItemColumns+` FROM context_items WHERE id = ?`, id))
	if err != nil {
		return nil, fmt.Errorf("getting context item: %w", err)
	}
	return item, nil
}

func (s *Store) ListContextItems(ctx context.Context, sessionID string) ([]*types.ContextItem, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+contextItemColumns+` FROM context_items WHERE session_id = ? ORDER BY updated_at DESC`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("listing context items: %w", err)
	}
	defer rows.Close()

	var out []*types.ContextItem
	for rows.Next() {
		item, err := scanContextItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

// ListContextItemsByProject returns every context item anchored (through
// its session) at projectPath, for full-snapshot export (spec.md §4.4).
func (s *Store) ListContextItemsByProject(ctx context.Context, projectPath string) ([]*types.ContextItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT c.id, c.session_id, c.key, c.value, c.category, c.priority, c.channel, c.tags, c.size_bytes,
			c.fast_embedding_status, c.fast_embedded_at, c.embedding_status, c.created_at, c.updated_at
		FROM context_items c JOIN sessions s ON s.id = c.session_id
		WHERE s.project_path = ? ORDER BY c.updated_at DESC
	`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing context items by project: %w", err)
	}
	defer rows.Close()

	var out []*types.ContextItem
	for rows.Next() {
		item, err := scanContextItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}

func (s *Store) DeleteContextItem(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var sessionID string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT session_id FROM context_items WHERE id = ?`, id).Scan(&sessionID); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM context_items WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting context item: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM embedding_chunks WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("deleting embedding chunks: %w", err)
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM embedding_chunks_fast WHERE item_id = ?`, id); err != nil {
			return fmt.Errorf("deleting fast embedding chunks: %w", err)
		}

		var projectPath string
		_ = m.Tx().QueryRowContext(m.ctx, `SELECT project_path FROM sessions WHERE id = ?`, sessionID).Scan(&projectPath)

		m.RecordEvent("context_item", id, "context_item_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('context_item', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording context item deletion: %w", err)
		}
		return nil
	})
}
