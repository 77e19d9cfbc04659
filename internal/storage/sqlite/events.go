package sqlite

import (
	"context"
	"fmt"

	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) GetEvents(ctx context.Context, entityType, entityID string, limit int) ([]*types.Event, error) {
	query := `
		SELECT id, entity_type, entity_id, event_type, actor, old_value, new_value, comment, created_at
		FROM events WHERE entity_type = ? AND entity_id = ? ORDER BY created_at DESC
	`
	args := []interface{}{entityType, entityID}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("getting events: %w", err)
	}
	defer rows.Close()

	var out []*types.Event
	for rows.Next() {
		e := &types.Event{}
		if err := rows.Scan(&e.ID, &e.EntityType, &e.EntityID, &e.EventType, &e.Actor, &e.OldValue, &e.NewValue, &e.Comment, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
