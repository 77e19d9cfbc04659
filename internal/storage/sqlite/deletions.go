package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) RecordDeletion(ctx context.Context, entityType, entityID, projectPath, actor string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
	`, entityType, entityID, projectPath, nowMillis(), actor)
	if err != nil {
		return fmt.Errorf("recording deletion: %w", err)
	}
	return nil
}

func (s *Store) ListDeletions(ctx context.Context, projectPath string) ([]*types.Deletion, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_type, entity_id, project_path, deleted_at, deleted_by, exported
		FROM sync_deletions WHERE project_path = ? ORDER BY deleted_at ASC
	`, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing deletions: %w", err)
	}
	defer rows.Close()

	var out []*types.Deletion
	for rows.Next() {
		d := &types.Deletion{}
		if err := rows.Scan(&d.EntityType, &d.EntityID, &d.ProjectPath, &d.DeletedAt, &d.DeletedBy, &d.Exported); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

func (s *Store) MarkDeletionsExported(ctx context.Context, projectPath string, entityIDs []string) error {
	if len(entityIDs) == 0 {
		return nil
	}
	placeholders := make([]string, len(entityIDs))
	args := make([]interface{}, 0, len(entityIDs)+1)
	args = append(args, projectPath)
	for i, id := range entityIDs {
		placeholders[i] = "?"
		args = append(args, id)
	}
	query := fmt.Sprintf(`UPDATE sync_deletions SET exported = 1 WHERE project_path = ? AND entity_id IN (%s)`, strings.Join(placeholders, ","))
	if _, err := s.db.ExecContext(ctx, query, args...); err != nil {
		return fmt.Errorf("marking deletions exported: %w", err)
	}
	return nil
}

func (s *Store) GetExportHash(ctx context.Context, entityType, entityID string) (string, error) {
	var hash string
	err := s.db.QueryRowContext(ctx, `SELECT content_hash FROM export_hashes WHERE entity_type = ? AND entity_id = ?`, entityType, entityID).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", errNotFound
	}
	if err != nil {
		return "", fmt.Errorf("getting export hash: %w", err)
	}
	return hash, nil
}

func (s *Store) SetExportHash(ctx context.Context, entityType, entityID, contentHash string) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO export_hashes (entity_type, entity_id, content_hash, exported_at) VALUES (?, ?, ?, ?)
		ON CONFLICT (entity_type, entity_id) DO UPDATE SET content_hash = excluded.content_hash, exported_at = excluded.exported_at
	`, entityType, entityID, contentHash, nowMillis())
	if err != nil {
		return fmt.Errorf("setting export hash: %w", err)
	}
	return nil
}
