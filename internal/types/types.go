// Package types defines the entities stored and exchanged by the engine:
// projects, sessions, context items, issues, checkpoints, memories, plans,
// audit events and embedding chunks.
package types

import "time"

// Status values for sessions.
const (
	SessionActive    = "active"
	SessionPaused    = "paused"
	SessionCompleted = "completed"
)

// Status values for issues.
const (
	IssueOpen       = "open"
	IssueInProgress = "in_progress"
	IssueClosed     = "closed"
)

// Issue types.
const (
	IssueTypeTask    = "task"
	IssueTypeBug     = "bug"
	IssueTypeFeature = "feature"
	IssueTypeEpic    = "epic"
	IssueTypeChore   = "chore"
)

// Dependency types. Parent-child is expressed as a dependency row, never a
// column on Issue.
const (
	DependencyBlocks      = "blocks"
	DependencyParentChild = "parent-child"
	DependencyDuplicateOf = "duplicate-of"
)

// Plan statuses.
const (
	PlanDraft     = "draft"
	PlanActive    = "active"
	PlanCompleted = "completed"
)

// Priority bands for context items.
const (
	PriorityLow    = "low"
	PriorityNormal = "normal"
	PriorityHigh   = "high"
)

// Embedding status values stored on context items.
const (
	EmbeddingNone     = "none"
	EmbeddingPending  = "pending"
	EmbeddingComplete = "complete"
)

// Audit event kinds. Entity-specific prefixes (session_, item_, issue_,
// plan_, checkpoint_, memory_) are formed by callers; these are the
// canonical verbs.
const (
	EventCreated     = "created"
	EventUpdated     = "updated"
	EventDeleted     = "deleted"
	EventClosed      = "closed"
	EventClaimed     = "claimed"
	EventReleased    = "released"
	EventCommented   = "commented"
	EventRestored    = "restored"
	EventDependAdded   = "dependency_added"
	EventDependRemoved = "dependency_removed"
	EventStatusChanged = "status_changed"
	EventRenamed       = "renamed"
	EventPathAdded     = "path_added"
	EventPathRemoved   = "path_removed"
	EventEnded         = "ended"
)

// Project is a registered codebase keyed by its canonical absolute path.
type Project struct {
	Path            string `json:"path"`
	Name            string `json:"name"`
	Description     string `json:"description,omitempty"`
	IssuePrefix     string `json:"issue_prefix"`
	PlanPrefix      string `json:"plan_prefix"`
	NextIssueNumber int    `json:"next_issue_number"`
	NextPlanNumber  int    `json:"next_plan_number"`
	CreatedAt       int64  `json:"created_at"`
	UpdatedAt       int64  `json:"updated_at"`
}

// Session is a named conversation or work span anchored at a primary
// project path, with optional additional paths via the session_projects
// junction table.
type Session struct {
	ID          string  `json:"id"`
	Name        string  `json:"name"`
	ProjectPath string  `json:"project_path"`
	Provider    string  `json:"provider,omitempty"`
	TerminalKey string  `json:"terminal_key,omitempty"`
	Status      string  `json:"status"`
	CreatedAt   int64   `json:"created_at"`
	UpdatedAt   int64   `json:"updated_at"`
	EndedAt     *int64  `json:"ended_at,omitempty"`
	Paths       []string `json:"paths,omitempty"`
}

// ContextItem is a keyed piece of session state.
type ContextItem struct {
	ID                string   `json:"id"`
	SessionID         string   `json:"session_id"`
	Key               string   `json:"key"`
	Value             string   `json:"value"`
	Category          string   `json:"category,omitempty"`
	Priority          string   `json:"priority"`
	Channel           string   `json:"channel,omitempty"`
	Tags              []string `json:"tags,omitempty"`
	SizeBytes         int      `json:"size_bytes"`
	FastEmbedStatus   string   `json:"fast_embedding_status,omitempty"`
	FastEmbeddedAt    *int64   `json:"fast_embedded_at,omitempty"`
	EmbeddingStatus   string   `json:"embedding_status,omitempty"`
	CreatedAt         int64    `json:"created_at"`
	UpdatedAt         int64    `json:"updated_at"`
}

// EmbedText builds the text embedded for a context item, per the fast and
// quality providers' shared convention: "[<category>] <key>: <value>" with
// the bracket omitted when category is empty.
func (c *ContextItem) EmbedText() string {
	if c.Category == "" {
		return c.Key + ": " + c.Value
	}
	return "[" + c.Category + "] " + c.Key + ": " + c.Value
}

// Issue is a ticket.
type Issue struct {
	ID                 string  `json:"id"`
	ShortID            string  `json:"short_id"`
	ProjectPath        string  `json:"project_path"`
	PlanID             *string `json:"plan_id,omitempty"`
	Title              string  `json:"title"`
	Description        string  `json:"description,omitempty"`
	Details            string  `json:"details,omitempty"`
	Status             string  `json:"status"`
	Priority           int     `json:"priority"`
	IssueType          string  `json:"issue_type"`
	Assignee           string  `json:"assignee,omitempty"`
	AssignedAt         *int64  `json:"assigned_at,omitempty"`
	CreatedAt          int64   `json:"created_at"`
	UpdatedAt          int64   `json:"updated_at"`
	ClosedAt           *int64  `json:"closed_at,omitempty"`
	ClosedBy           string  `json:"closed_by,omitempty"`
	CloseReason        string  `json:"close_reason,omitempty"`
	DueAt              *int64  `json:"due_at,omitempty"`
	DeferUntil         *int64  `json:"defer_until,omitempty"`
	ContentHash        string  `json:"content_hash,omitempty"`
	Labels             []string      `json:"labels,omitempty"`
	Dependencies       []*Dependency `json:"dependencies,omitempty"`
}

// Dependency is an edge between two issues. Parent-child relationships are
// dependency rows with Type == DependencyParentChild; there is no parent
// column on Issue.
type Dependency struct {
	IssueID     string `json:"issue_id"`
	DependsOnID string `json:"depends_on_id"`
	Type        string `json:"type"`
}

// Label is a free-text tag on an issue, unique on (IssueID, Label).
type Label struct {
	IssueID string `json:"issue_id"`
	Label   string `json:"label"`
}

// Comment is user-authored prose on an issue, distinct from audit Events
// (system-authored structured records).
type Comment struct {
	ID        string `json:"id"`
	IssueID   string `json:"issue_id"`
	Author    string `json:"author"`
	Text      string `json:"text"`
	CreatedAt int64  `json:"created_at"`
}

// Checkpoint is a named, immutable snapshot of a session's context items.
type Checkpoint struct {
	ID          string `json:"id"`
	SessionID   string `json:"session_id"`
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	GitBranch   string `json:"git_branch,omitempty"`
	GitStatus   string `json:"git_status,omitempty"`
	CreatedAt   int64  `json:"created_at"`
}

// CheckpointItem is one context item captured into a checkpoint.
type CheckpointItem struct {
	ID           string   `json:"id"`
	CheckpointID string   `json:"checkpoint_id"`
	Key          string   `json:"key"`
	Value        string   `json:"value"`
	Category     string   `json:"category,omitempty"`
	Priority     string   `json:"priority"`
	Channel      string   `json:"channel,omitempty"`
	Tags         []string `json:"tags,omitempty"`
	SizeBytes    int      `json:"size_bytes"`
}

// Memory is a project-scoped persistent key/value/category tuple that
// outlasts sessions. Unique on (ProjectPath, Key).
type Memory struct {
	ID          string `json:"id"`
	ProjectPath string `json:"project_path"`
	Key         string `json:"key"`
	Value       string `json:"value"`
	Category    string `json:"category,omitempty"`
	CreatedAt   int64  `json:"created_at"`
	UpdatedAt   int64  `json:"updated_at"`
}

// Plan is a project-scoped document, optionally bound to a session.
type Plan struct {
	ID                string  `json:"id"`
	ShortID           string  `json:"short_id"`
	ProjectPath       string  `json:"project_path"`
	SessionID         string  `json:"session_id,omitempty"`
	Title             string  `json:"title"`
	Body              string  `json:"body"`
	SuccessCriteria   string  `json:"success_criteria,omitempty"`
	Status            string  `json:"status"`
	SourceFile        string  `json:"source_file,omitempty"`
	SourceHash        string  `json:"source_hash,omitempty"`
	DueAt             *int64  `json:"due_at,omitempty"`
	DeferUntil        *int64  `json:"defer_until,omitempty"`
	CreatedAt         int64   `json:"created_at"`
	UpdatedAt         int64   `json:"updated_at"`
}

// Event is an append-only audit record, inserted inside the transaction
// that caused it.
type Event struct {
	ID         int64   `json:"id"`
	EntityType string  `json:"entity_type"`
	EntityID   string  `json:"entity_id"`
	EventType  string  `json:"event_type"`
	Actor      string  `json:"actor"`
	OldValue   *string `json:"old_value,omitempty"`
	NewValue   *string `json:"new_value,omitempty"`
	Comment    *string `json:"comment,omitempty"`
	CreatedAt  int64   `json:"created_at"`
}

// EmbeddingChunk is one chunk of an item's embedded text, stored in either
// the fast-tier or quality-tier table.
type EmbeddingChunk struct {
	ID         string  `json:"id"`
	ItemID     string  `json:"item_id"`
	ChunkIndex int     `json:"chunk_index"`
	ChunkText  string  `json:"chunk_text"`
	Embedding  []float32 `json:"-"`
	Dimensions int     `json:"dimensions"`
	Provider   string  `json:"provider"`
	Model      string  `json:"model"`
	CreatedAt  int64   `json:"created_at"`
}

// Deletion is a row in the sync_deletions log.
type Deletion struct {
	EntityType  string `json:"entity_type"`
	EntityID    string `json:"entity_id"`
	ProjectPath string `json:"project_path"`
	DeletedAt   int64  `json:"deleted_at"`
	DeletedBy   string `json:"deleted_by"`
	Exported    bool   `json:"exported"`
}

// SessionFilter narrows ListSessions.
type SessionFilter struct {
	ProjectPath string
	Status      string
	Query       string
}

// IssueFilter narrows SearchIssues.
type IssueFilter struct {
	ProjectPath string
	Status      string
	IssueType   string
	Assignee    string
	PlanID      string
}

// NowMillis returns the current time as epoch milliseconds. Centralized so
// every write path stamps timestamps the same way.
func NowMillis() int64 {
	return time.Now().UnixMilli()
}
