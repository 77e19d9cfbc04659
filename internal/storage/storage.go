// Package storage defines the interface for the engine's storage backend:
// typed CRUD on every entity plus the mutation pipeline that wraps every
// write in a single transaction.
package storage

import (
	"context"
	"database/sql"
	"errors"

	"github.com/savecontext/savecontext/internal/types"
)

// ErrNotInitialized is returned when a storage feature is used before the
// database has been opened and migrated.
var ErrNotInitialized = errors.New("database not initialized")

// ErrNotFound is returned (wrapped) by every lookup method when the
// requested entity does not exist.
var ErrNotFound = errors.New("not found")

// Storage is the full entity repository plus the mutation pipeline and
// sync-support queries (dirty tables, export hashes, deletions).
type Storage interface {
	// Projects
	GetOrCreateProject(ctx context.Context, path string) (*types.Project, error)
	GetProject(ctx context.Context, path string) (*types.Project, error)
	ListProjects(ctx context.Context) ([]*types.Project, error)
	DeleteProject(ctx context.Context, path string, actor string) error

	// Sessions
	CreateSession(ctx context.Context, s *types.Session, actor string) error
	GetSession(ctx context.Context, idOrShort string) (*types.Session, error)
	ListSessions(ctx context.Context, filter types.SessionFilter) ([]*types.Session, error)
	UpdateSessionStatus(ctx context.Context, id, status string, actor string) error
	RenameSession(ctx context.Context, id, name string, actor string) error
	AddSessionPath(ctx context.Context, id, path string, actor string) error
	RemoveSessionPath(ctx context.Context, id, path string, actor string) error
	EndSession(ctx context.Context, id string, actor string) error
	DeleteSession(ctx context.Context, id string, actor string) error

	// Context items
	SaveContextItem(ctx context.Context, item *types.ContextItem, actor string) (*types.ContextItem, error)
	GetItemIDByKey(ctx context.Context, sessionID, key string) (string, error)
	GetContextItem(ctx context.Context, id string) (*types.ContextItem, error)
	ListContextItems(ctx context.Context, sessionID string) ([]*types.ContextItem, error)
	ListContextItemsByProject(ctx context.Context, projectPath string) ([]*types.ContextItem, error)
	DeleteContextItem(ctx context.Context, id string, actor string) error

	// Issues
	CreateIssue(ctx context.Context, issue *types.Issue, actor string) (*types.Issue, error)
	GetIssue(ctx context.Context, idOrShort string) (*types.Issue, error)
	SearchIssues(ctx context.Context, query string, filter types.IssueFilter) ([]*types.Issue, error)
	UpdateIssue(ctx context.Context, id string, updates map[string]interface{}, actor string) error
	CloseIssue(ctx context.Context, id, reason, actor string) error
	ClaimIssue(ctx context.Context, id, assignee, actor string) error
	ReleaseIssue(ctx context.Context, id, actor string) error
	DeleteIssue(ctx context.Context, id string, actor string) error
	GetReadyWork(ctx context.Context, projectPath string, limit int) ([]*types.Issue, error)
	ClaimNextReady(ctx context.Context, projectPath, assignee, actor string, n int) ([]*types.Issue, error)
	GetBlockedIssues(ctx context.Context, projectPath string) ([]*types.Issue, error)

	// Dependencies & labels
	AddDependency(ctx context.Context, dep *types.Dependency, actor string) error
	RemoveDependency(ctx context.Context, issueID, dependsOnID string, actor string) error
	GetDependencies(ctx context.Context, issueID string) ([]*types.Dependency, error)
	AddLabel(ctx context.Context, issueID, label string, actor string) error
	RemoveLabel(ctx context.Context, issueID, label string, actor string) error
	GetLabels(ctx context.Context, issueID string) ([]string, error)

	// Comments
	AddIssueComment(ctx context.Context, issueID, author, text string) (*types.Comment, error)
	GetIssueComments(ctx context.Context, issueID string) ([]*types.Comment, error)

	// Checkpoints
	CreateCheckpoint(ctx context.Context, sessionID, name, description string, actor string) (*types.Checkpoint, error)
	GetCheckpoint(ctx context.Context, idOrShort string) (*types.Checkpoint, error)
	ListCheckpoints(ctx context.Context, sessionID string) ([]*types.Checkpoint, error)
	ListCheckpointsByProject(ctx context.Context, projectPath string) ([]*types.Checkpoint, error)
	RestoreCheckpoint(ctx context.Context, checkpointID, targetSessionID string, categories, tags []string, actor string) (int, error)
	DeleteCheckpoint(ctx context.Context, id string, actor string) error

	// Memory
	SaveMemory(ctx context.Context, m *types.Memory, actor string) (*types.Memory, error)
	GetMemory(ctx context.Context, projectPath, key string) (*types.Memory, error)
	ListMemory(ctx context.Context, projectPath string) ([]*types.Memory, error)
	DeleteMemory(ctx context.Context, projectPath, key string, actor string) error

	// Plans
	CreatePlan(ctx context.Context, p *types.Plan, actor string) (*types.Plan, error)
	GetPlan(ctx context.Context, idOrShort string) (*types.Plan, error)
	ListPlans(ctx context.Context, projectPath string) ([]*types.Plan, error)
	UpdatePlanStatus(ctx context.Context, id, status string, actor string) error
	UpdatePlanSchedule(ctx context.Context, id string, dueAt, deferUntil *int64, actor string) error
	FindPlanBySourceHash(ctx context.Context, projectPath, sourceHash string) (*types.Plan, error)
	DeletePlan(ctx context.Context, id string, actor string) error

	// Audit
	GetEvents(ctx context.Context, entityType, entityID string, limit int) ([]*types.Event, error)

	// Sync import (raw upserts preserving incoming ids, bypassing the
	// normal id-allocation paths)
	ImportSession(ctx context.Context, sess *types.Session, actor string) error
	ImportIssue(ctx context.Context, issue *types.Issue, actor string) error
	ImportContextItem(ctx context.Context, item *types.ContextItem, actor string) error
	ImportMemory(ctx context.Context, mem *types.Memory, actor string) error
	ImportCheckpoint(ctx context.Context, cp *types.Checkpoint, actor string) error
	ImportPlan(ctx context.Context, p *types.Plan, actor string) error
	ApplyDeletion(ctx context.Context, entityType, entityID, projectPath, deletedBy string, deletedAt int64) error

	// Dirty tracking / export hashes / deletions (sync engine support)
	GetDirtyIDs(ctx context.Context, entityType, projectPath string) ([]string, error)
	ClearDirty(ctx context.Context, entityType string, ids []string) error
	MarkAllDirty(ctx context.Context, projectPath string) error
	RecordDeletion(ctx context.Context, entityType, entityID, projectPath, actor string) error
	ListDeletions(ctx context.Context, projectPath string) ([]*types.Deletion, error)
	MarkDeletionsExported(ctx context.Context, projectPath string, entityIDs []string) error
	GetExportHash(ctx context.Context, entityType, entityID string) (string, error)
	SetExportHash(ctx context.Context, entityType, entityID, contentHash string) error

	// Config & metadata
	SetConfig(ctx context.Context, key, value string) error
	GetConfig(ctx context.Context, key string) (string, error)
	SetMetadata(ctx context.Context, key, value string) error
	GetMetadata(ctx context.Context, key string) (string, error)

	// Embeddings
	UpsertEmbeddingChunk(ctx context.Context, table string, chunk *types.EmbeddingChunk) error
	GetEmbeddingChunks(ctx context.Context, table, itemID string) ([]*types.EmbeddingChunk, error)
	DeleteEmbeddingChunks(ctx context.Context, table, itemID string) error
	SearchEmbeddings(ctx context.Context, table string, query []float32, sessionID string, limit int, threshold float32) ([]*types.EmbeddingChunk, []float32, error)
	SetItemEmbeddingStatus(ctx context.Context, itemID, fastStatus, qualityStatus string) error
	ItemsNeedingQualityEmbedding(ctx context.Context, limit int) ([]*types.ContextItem, error)
	ItemsMisclassifiedComplete(ctx context.Context) ([]string, error)

	// Lifecycle
	Close() error
	Path() string
	UnderlyingDB() *sql.DB
}
