package sqlite

import (
	"context"
	"fmt"

	"github.com/savecontext/savecontext/internal/idgen"
	"github.com/savecontext/savecontext/internal/types"
)

func (s *Store) AddIssueComment(ctx context.Context, issueID, author, text string) (*types.Comment, error) {
	var out *types.Comment
	err := s.mutate(ctx, author, func(m *MutationContext) error {
		c := &types.Comment{
			ID:        idgen.New("cmt"),
			IssueID:   issueID,
			Author:    author,
			Text:      text,
			CreatedAt: nowMillis(),
		}
		if _, err := m.Tx().ExecContext(m.ctx, `
			INSERT INTO comments (issue_id, author, text, created_at) VALUES (?, ?, ?, ?)
		`, c.IssueID, c.Author, c.Text, c.CreatedAt); err != nil {
			return fmt.Errorf("adding comment: %w", err)
		}
		m.RecordComment("issue", issueID, "issue_"+types.EventCommented, text)
		m.MarkDirty("dirty_issues", issueID)
		out = c
		return nil
	})
	return out, err
}

func (s *Store) GetIssueComments(ctx context.Context, issueID string) ([]*types.Comment, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, issue_id, author, text, created_at FROM comments WHERE issue_id = ? ORDER BY created_at ASC
	`, issueID)
	if err != nil {
		return nil, fmt.Errorf("getting comments: %w", err)
	}
	defer rows.Close()

	var out []*types.Comment
	for rows.Next() {
		c := &types.Comment{}
		var rowID int64
		if err := rows.Scan(&rowID, &c.IssueID, &c.Author, &c.Text, &c.CreatedAt); err != nil {
			return nil, err
		}
		c.ID = fmt.Sprintf("%d", rowID)
		out = append(out, c)
	}
	return out, rows.Err()
}
