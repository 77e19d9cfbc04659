package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"strings"
	"time"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

// pendingEvent is one buffered audit event, flushed on commit.
type pendingEvent struct {
	entityType, entityID, eventType, actor string
	oldValue, newValue, comment            *string
}

// MutationContext is passed to every mutate() closure. It buffers audit
// events and dirty-table marks so they commit atomically with the rest of
// the write (spec.md §4.2).
type MutationContext struct {
	ctx    context.Context
	tx     *sql.Tx
	actor  string
	events []pendingEvent
	dirty  map[string]map[string]bool // table -> set of ids
}

func newMutationContext(ctx context.Context, tx *sql.Tx, actor string) *MutationContext {
	return &MutationContext{
		ctx:   ctx,
		tx:    tx,
		actor: actor,
		dirty: make(map[string]map[string]bool),
	}
}

// Tx exposes the underlying transaction for repository methods.
func (m *MutationContext) Tx() *sql.Tx { return m.tx }

// Actor is the identity performing this mutation.
func (m *MutationContext) Actor() string { return m.actor }

// RecordEvent buffers an audit event with no before/after values.
func (m *MutationContext) RecordEvent(entityType, entityID, eventType string) {
	m.events = append(m.events, pendingEvent{entityType: entityType, entityID: entityID, eventType: eventType, actor: m.actor})
}

// RecordChange buffers an audit event carrying old and new values.
func (m *MutationContext) RecordChange(entityType, entityID, eventType, old, new string) {
	m.events = append(m.events, pendingEvent{
		entityType: entityType, entityID: entityID, eventType: eventType, actor: m.actor,
		oldValue: &old, newValue: &new,
	})
}

// RecordComment buffers an audit event carrying a free-form comment.
func (m *MutationContext) RecordComment(entityType, entityID, eventType, comment string) {
	m.events = append(m.events, pendingEvent{entityType: entityType, entityID: entityID, eventType: eventType, actor: m.actor, comment: &comment})
}

// MarkDirty flags an entity id dirty in the named dirty table. Redundant
// with trigger-maintained dirty tables in systems that have them; this
// engine has no triggers, so every write path must call
// this explicitly for entities the sync engine tracks.
func (m *MutationContext) MarkDirty(table, id string) {
	if m.dirty[table] == nil {
		m.dirty[table] = make(map[string]bool)
	}
	m.dirty[table][id] = true
}

func (m *MutationContext) flush() error {
	now := nowMillis()
	for _, e := range m.events {
		if _, err := m.tx.ExecContext(m.ctx, `
			INSERT INTO events (entity_type, entity_id, event_type, actor, old_value, new_value, comment, created_at)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		`, e.entityType, e.entityID, e.eventType, e.actor, e.oldValue, e.newValue, e.comment, now); err != nil {
			return fmt.Errorf("recording event: %w", err)
		}
	}

	for table, ids := range m.dirty {
		if !validDirtyTable(table) {
			return fmt.Errorf("invalid dirty table %q", table)
		}
		for id := range ids {
			// #nosec G201 - table name is validated against a fixed allowlist above
			query := fmt.Sprintf(`
				INSERT INTO %s (entity_id, marked_at) VALUES (?, ?)
				ON CONFLICT (entity_id) DO UPDATE SET marked_at = excluded.marked_at
			`, table)
			if _, err := m.tx.ExecContext(m.ctx, query, id, now); err != nil {
				return fmt.Errorf("marking %s dirty: %w", table, err)
			}
		}
	}
	return nil
}

func validDirtyTable(table string) bool {
	switch table {
	case "dirty_sessions", "dirty_issues", "dirty_context_items", "dirty_plans":
		return true
	}
	return false
}

// mutate wraps fn in an immediate-mode write transaction: on success it
// flushes buffered events and dirty marks, then commits; on any error it
// rolls back and the database is left untouched (spec.md §4.2).
func (s *Store) mutate(ctx context.Context, actor string, fn func(m *MutationContext) error) error {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("acquiring connection: %w", err)
	}
	defer conn.Close()

	tx, err := beginImmediateWithRetry(ctx, conn, 5, 10*time.Millisecond)
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}

	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	mctx := newMutationContext(ctx, tx, actor)
	if err := fn(mctx); err != nil {
		return err
	}

	if err := mctx.flush(); err != nil {
		return err
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing transaction: %w", err)
	}
	committed = true
	return nil
}

// beginImmediateWithRetry acquires a write lock via BEGIN IMMEDIATE,
// retrying with jittered backoff on SQLITE_BUSY so concurrent processes
// against the same file don't fail outright on contention. Isolation is
// set to sql.LevelSerializable, which the sqlite driver maps to IMMEDIATE
// rather than the default DEFERRED acquisition.
func beginImmediateWithRetry(ctx context.Context, conn *sql.Conn, attempts int, backoff time.Duration) (*sql.Tx, error) {
	opts := &sql.TxOptions{Isolation: sql.LevelSerializable}
	var lastErr error
	for i := 0; i < attempts; i++ {
		tx, err := conn.BeginTx(ctx, opts)
		if err == nil {
			return tx, nil
		}
		lastErr = err

		if !isBusyError(lastErr) {
			return nil, lastErr
		}
		time.Sleep(backoff + time.Duration(rand.Intn(int(backoff))))
		backoff *= 2
	}
	return nil, lastErr
}

func isBusyError(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "busy") || strings.Contains(msg, "locked")
}

var errNotFound = storage.ErrNotFound
