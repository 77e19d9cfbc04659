package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/savecontext/savecontext/internal/storage"
)

// dirtyKinds are the entity kinds tracked by a dirty table; memory and
// checkpoint have none (they export unconditionally whenever non-empty,
// per the dirty-table schema in spec.md §4.1).
var dirtyKinds = []string{"session", "issue", "context_item", "plan"}

// EntityStatus reports one entity kind's dirty/total counts.
type EntityStatus struct {
	Kind        string
	DirtyCount  int
	TotalCount  int
}

// FileStatus reports one export file's on-disk shape.
type FileStatus struct {
	Kind      string
	Path      string
	Exists    bool
	SizeBytes int64
	Lines     int
}

// Status is a project's full sync status report (spec.md §4.4 "Status").
type Status struct {
	ProjectPath     string
	Entities        []EntityStatus
	Files           []FileStatus
	NeedsBackfill   bool
	AnyExportExists bool
}

// GetStatus assembles a Status report for projectPath, whose sync
// directory is dir.
func GetStatus(ctx context.Context, store storage.Storage, projectPath, dir string) (*Status, error) {
	status := &Status{ProjectPath: projectPath}

	for _, kind := range dirtyKinds {
		dirty, err := store.GetDirtyIDs(ctx, kind, projectPath)
		if err != nil {
			return nil, fmt.Errorf("reading dirty %s ids: %w", kind, err)
		}
		records, _, err := fetchProjectRecords(ctx, store, projectPath, kind)
		if err != nil {
			return nil, fmt.Errorf("counting %s records: %w", kind, err)
		}
		status.Entities = append(status.Entities, EntityStatus{
			Kind:       kind,
			DirtyCount: len(dirty),
			TotalCount: len(records),
		})
	}
	for _, kind := range []string{"memory", "checkpoint"} {
		records, _, err := fetchProjectRecords(ctx, store, projectPath, kind)
		if err != nil {
			return nil, fmt.Errorf("counting %s records: %w", kind, err)
		}
		status.Entities = append(status.Entities, EntityStatus{Kind: kind, TotalCount: len(records)})
	}

	fileKinds := append(append([]string{}, Kinds...), "deletions")
	for _, kind := range fileKinds {
		name := deletionsFile
		if kind != "deletions" {
			name = fileForKind[kind]
		}
		path := filepath.Join(dir, name)
		fs := FileStatus{Kind: kind, Path: path}
		if info, err := os.Stat(path); err == nil {
			fs.Exists = true
			fs.SizeBytes = info.Size()
			lines, err := readLDJSONLines(path)
			if err != nil {
				return nil, fmt.Errorf("reading %s: %w", kind, err)
			}
			fs.Lines = len(lines)
			status.AnyExportExists = true
		}
		status.Files = append(status.Files, fs)
	}

	needsBackfill, err := NeedsBackfill(ctx, store, projectPath, dir)
	if err != nil {
		return nil, fmt.Errorf("checking backfill status: %w", err)
	}
	status.NeedsBackfill = needsBackfill

	return status, nil
}
