package sync

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/gofrs/flock"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

// ImportResult tallies what an Import call did, per spec.md §4.4 step 6's
// created/skipped/deleted counters.
type ImportResult struct {
	Created   int
	Updated   int
	Skipped   int
	Deleted   int
}

// Import reads dir's LDJSON files in the fixed kind order (sessions,
// issues, context items, memories, checkpoints, plans), then deletions
// last, and applies each record to store under the given merge strategy
// (spec.md §4.4).
func Import(ctx context.Context, store storage.Storage, dir string, strategy MergeStrategy, actor string) (*ImportResult, error) {
	lock := flock.New(filepath.Join(dir, ".sync.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring import lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another sync is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	result := &ImportResult{}

	for _, kind := range Kinds {
		path := filepath.Join(dir, fileForKind[kind])
		lines, err := readLDJSONLines(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return nil, fmt.Errorf("reading %s: %w", kind, err)
		}
		for _, line := range lines {
			if err := importRecord(ctx, store, kind, line, strategy, actor, result); err != nil {
				return nil, fmt.Errorf("importing %s record: %w", kind, err)
			}
		}
	}

	delLines, err := readLDJSONLines(filepath.Join(dir, deletionsFile))
	if err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading deletions: %w", err)
	}
	for _, line := range delLines {
		var d deletionRecord
		if err := json.Unmarshal(line, &d); err != nil {
			return nil, fmt.Errorf("parsing deletion record: %w", err)
		}
		deletedAt, _ := time.Parse(time.RFC3339, d.DeletedAt)
		if err := store.ApplyDeletion(ctx, d.EntityType, d.EntityID, d.ProjectPath, d.DeletedBy, deletedAt.UnixMilli()); err != nil {
			return nil, fmt.Errorf("applying deletion: %w", err)
		}
		result.Deleted++
	}

	return result, nil
}

func readLDJSONLines(path string) ([][]byte, error) {
	b, err := os.ReadFile(path) // #nosec G304 - path built from the caller's own sync directory
	if err != nil {
		return nil, err
	}
	var out [][]byte
	for _, line := range splitLines(b) {
		if len(line) == 0 {
			continue
		}
		out = append(out, line)
	}
	return out, nil
}

// importRecord decodes one LDJSON line as kind, looks up the local
// version, and upserts it according to strategy if the content hash
// differs (spec.md §4.4 steps 2-5).
func importRecord(ctx context.Context, store storage.Storage, kind string, line []byte, strategy MergeStrategy, actor string, result *ImportResult) error {
	var env envelope
	if err := json.Unmarshal(line, &env); err != nil {
		return fmt.Errorf("parsing record envelope: %w", err)
	}

	switch kind {
	case "session":
		var incoming types.Session
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetSession(ctx, incoming.ID)
		return upsertDecision(err, result, func() error { return store.ImportSession(ctx, &incoming, actor) },
			func() bool { return existing.UpdatedAt >= incoming.UpdatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	case "issue":
		var incoming types.Issue
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetIssue(ctx, incoming.ID)
		return upsertDecision(err, result, func() error { return store.ImportIssue(ctx, &incoming, actor) },
			func() bool { return existing.UpdatedAt >= incoming.UpdatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	case "context_item":
		var incoming types.ContextItem
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetContextItem(ctx, incoming.ID)
		return upsertDecision(err, result, func() error { return store.ImportContextItem(ctx, &incoming, actor) },
			func() bool { return existing.UpdatedAt >= incoming.UpdatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	case "memory":
		var incoming types.Memory
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetMemory(ctx, incoming.ProjectPath, incoming.Key)
		return upsertDecision(err, result, func() error { return store.ImportMemory(ctx, &incoming, actor) },
			func() bool { return existing.UpdatedAt >= incoming.UpdatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	case "checkpoint":
		var incoming types.Checkpoint
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetCheckpoint(ctx, incoming.ID)
		return upsertDecision(err, result, func() error { return store.ImportCheckpoint(ctx, &incoming, actor) },
			func() bool { return existing.CreatedAt >= incoming.CreatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	case "plan":
		var incoming types.Plan
		if err := json.Unmarshal(line, &incoming); err != nil {
			return err
		}
		existing, err := store.GetPlan(ctx, incoming.ID)
		return upsertDecision(err, result, func() error { return store.ImportPlan(ctx, &incoming, actor) },
			func() bool { return existing.UpdatedAt >= incoming.UpdatedAt },
			func(h string) bool { localHash, _ := contentHash(existing); return localHash == h },
			strategy, env.ContentHash)

	default:
		return fmt.Errorf("unknown entity kind %q", kind)
	}
}

// upsertDecision implements spec.md §4.4 steps 3-5 once per entity kind:
// absent locally → create; present with equal hash → skip; present with
// differing hash → apply the merge strategy.
func upsertDecision(getErr error, result *ImportResult, doImport func() error, localNotOlder func() bool, hashEqual func(string) bool, strategy MergeStrategy, incomingHash string) error {
	if getErr != nil {
		if errors.Is(getErr, storage.ErrNotFound) {
			if err := doImport(); err != nil {
				return err
			}
			result.Created++
			return nil
		}
		return getErr
	}

	if hashEqual(incomingHash) {
		result.Skipped++
		return nil
	}

	switch strategy {
	case PreferLocal:
		result.Skipped++
		return nil
	case PreferExternal:
		if err := doImport(); err != nil {
			return err
		}
		result.Updated++
		return nil
	case PreferNewer, "":
		// Ties resolve in favor of the local record, matching the
		// teacher's left-wins-on-tie convention.
		if localNotOlder() {
			result.Skipped++
			return nil
		}
		if err := doImport(); err != nil {
			return err
		}
		result.Updated++
		return nil
	default:
		return fmt.Errorf("unknown merge strategy %q", strategy)
	}
}
