package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) CreateSession(ctx context.Context, sess *types.Session, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := s.GetOrCreateProject(m.ctx, sess.ProjectPath); err != nil {
			return fmt.Errorf("ensuring project: %w", err)
		}
		if sess.ID == "" {
			sess.ID = idgen.New("sess")
		}
		now := nowMillis()
		sess.CreatedAt, sess.UpdatedAt = now, now

		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sessions (id, name, project_path, provider, terminal_key, status, created_at, updated_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, sess.ID, sess.Name, sess.ProjectPath, sess.Provider, sess.TerminalKey, sess.Status, sess.CreatedAt, sess.UpdatedAt); err != nil {
			return fmt.Errorf("creating session: %w", err)
		}

		m.RecordEvent("session", sess.ID, "session_"+types.EventCreated)
		m.MarkDirty("dirty_sessions", sess.ID)
		return nil
	})
}

func scanSession(row interface{ Scan(...interface{}) error }) (*types.Session, error) {
	sess := &types.Session{}
	err := row.Scan(&sess.ID, &sess.Name, &sess.ProjectPath, &sess.Provider, &sess.TerminalKey, &sess.Status, &sess.CreatedAt, &sess.UpdatedAt, &sess.EndedAt)
	if err == sql.ErrNoRows {
		return nil, errNotFound
	}
	if err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) GetSession(ctx context.Context, idOrShort string) (*types.Session, error) {
	sess, err := scanSession(s.db.QueryRowContext(ctx, `
		SELECT id, name, project_path, provider, terminal_key, status, created_at, updated_at, ended_at
		FROM sessions WHERE id = ?
	`, idOrShort))
	if err != nil {
		return nil, fmt.Errorf("getting session: %w", err)
	}
	if err := s.loadSessionPaths(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

func (s *Store) loadSessionPaths(ctx context.Context, sess *types.Session) error {
	rows, err := s.db.QueryContext(ctx, `SELECT project_path FROM session_projects WHERE session_id = ?`, sess.ID)
	if err != nil {
		return fmt.Errorf("loading session paths: %w", err)
	}
	defer rows.Close()

	paths := []string{sess.ProjectPath}
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return err
		}
		if p != sess.ProjectPath {
			paths = append(paths, p)
		}
	}
	sess.Paths = paths
	return rows.Err()
}

// ListSessions applies the path/status/query filters over the
// session_projects junction table so a session registered under any of
// its paths is found, and free-text query is a case-insensitive
// substring match on name (spec.md §4.3).
func (s *Store) ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error) {
	query := `
		SELECT DISTINCT s.id, s.name, s.project_path, s.provider, s.terminal_key, s.status, s.created_at, s.updated_at, s.ended_at
		FROM sessions s
		LEFT JOIN session_projects sp ON sp.session_id = s.id
		WHERE 1=1
	`
	var args []interface{}
	if filter.ProjectPath != "" {
		query += ` AND (s.project_path = ? OR sp.project_path = ?)`
		args = append(args, filter.ProjectPath, filter.ProjectPath)
	}
	if filter.Status != "" {
		query += ` AND s.status = ?`
		args = append(args, filter.Status)
	}
	if filter.Query != "" {
		query += ` AND LOWER(s.name) LIKE ?`
		args = append(args, "%"+strings.ToLower(filter.Query)+"%")
	}
	query += ` ORDER BY s.updated_at DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []*types.Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, sess)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	for _, sess := range out {
		if err := s.loadSessionPaths(ctx, sess); err != nil {
			return nil, err
		}
	}
	return out, nil
}

func (s *Store) UpdateSessionStatus(ctx context.Context, id, status string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		res, err := m.Tx().ExecContext(m.ctx, `UPDATE sessions SET status = ?, updated_at = ? WHERE id = ?`, status, nowMillis(), id)
		if err != nil {
			return fmt.Errorf("updating session status: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordChange("session", id, "session_"+types.EventStatusChanged, "", status)
		m.MarkDirty("dirty_sessions", id)
		return nil
	})
}

func (s *Store) RenameSession(ctx context.Context, id, name string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		res, err := m.Tx().ExecContext(m.ctx, `UPDATE sessions SET name = ?, updated_at = ? WHERE id = ?`, name, nowMillis(), id)
		if err != nil {
			return fmt.Errorf("renaming session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordEvent("session", id, "session_"+types.EventRenamed)
		m.MarkDirty("dirty_sessions", id)
		return nil
	})
}

func (s *Store) AddSessionPath(ctx context.Context, id, path string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO session_projects (session_id, project_path) VALUES (?, ?)
			ON CONFLICT (session_id, project_path) DO NOTHING
		`, id, path); err != nil {
			return fmt.Errorf("adding session path: %w", err)
		}
		m.RecordEvent("session", id, "session_"+types.EventPathAdded)
		m.MarkDirty("dirty_sessions", id)
		return nil
	})
}

// RemoveSessionPath never removes the session's primary path; it is
// implicitly registered and not stored as a session_projects row
// (spec.md §4.3).
func (s *Store) RemoveSessionPath(ctx context.Context, id, path string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var primary string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT project_path FROM sessions WHERE id = ?`, id).Scan(&primary); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if primary == path {
			return fmt.Errorf("cannot remove session's primary path")
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM session_projects WHERE session_id = ? AND project_path = ?`, id, path); err != nil {
			return fmt.Errorf("removing session path: %w", err)
		}
		m.RecordEvent("session", id, "session_"+types.EventPathRemoved)
		m.MarkDirty("dirty_sessions", id)
		return nil
	})
}

func (s *Store) EndSession(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		now := nowMillis()
		res, err := m.Tx().ExecContext(m.ctx, `UPDATE sessions SET status = ?, ended_at = ?, updated_at = ? WHERE id = ?`, types.SessionCompleted, now, now, id)
		if err != nil {
			return fmt.Errorf("ending session: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return errNotFound
		}
		m.RecordEvent("session", id, "session_"+types.EventEnded)
		m.MarkDirty("dirty_sessions", id)
		return nil
	})
}

func (s *Store) DeleteSession(ctx context.Context, id string, actor string) error {
	return s.mutate(ctx, actor, func(m *MutationContext) error {
		var projectPath string
		if err := m.Tx().QueryRowContext(m.ctx, `SELECT project_path FROM sessions WHERE id = ?`, id).Scan(&projectPath); err != nil {
			if err == sql.ErrNoRows {
				return errNotFound
			}
			return err
		}
		if _, err := m.Tx().ExecContext(m.ctx, `DELETE FROM sessions WHERE id = ?`, id); err != nil {
			return fmt.Errorf("deleting session: %w", err)
		}
		m.RecordEvent("session", id, "session_"+types.EventDeleted)
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO sync_deletions (entity_type, entity_id, project_path, deleted_at, deleted_by)
			VALUES ('session', ?, ?, ?, ?)
			ON CONFLICT (entity_type, entity_id) DO UPDATE SET deleted_at = excluded.deleted_at, deleted_by = excluded.deleted_by, exported = 0
		`, id, projectPath, nowMillis(), actor); err != nil {
			return fmt.Errorf("recording session deletion: %w", err)
		}
		return nil
	})
}

// marshalTags is a small helper shared by every entity that stores a
// tag list as a JSON text column.
func marshalTags(tags []string) string {
	if tags == nil {
		tags = []string{}
	}
	b, _ := json.Marshal(tags)
	return string(b)
}

func unmarshalTags(raw string) []string {
	var tags []string
	if raw == "" {
		return nil
	}
	_ = json.Unmarshal([]byte(raw), &tags)
	return tags
}
