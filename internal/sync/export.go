package sync

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/gofrs/flock"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

// gitignoreContents is the whitelist pattern written once per sync
// directory (spec.md §4.4): ignore everything except the LDJSON files
// and the .gitignore itself, so the directory can live inside a
// project's source-control tree without vendoring the database.
const gitignoreContents = "*\n!*.jsonl\n!.gitignore\n"

// Result summarizes one Export call.
type Result struct {
	// PerKind holds the record count written to each entity kind's file
	// (kinds with zero records are omitted, matching the "skip empty
	// files" rule).
	PerKind map[string]int
	// Deletions is the count of cumulative deletion records written.
	Deletions int
	// Nothing is true when the aggregate record count (including
	// deletions) was zero, per spec.md §4.4's "nothing to export" signal.
	Nothing bool
}

// Export snapshots every record belonging to projectPath into dir, one
// LDJSON file per entity kind plus a cumulative deletions file, following
// spec.md §4.4's seven-step export algorithm. Unless force is true, it
// refuses to overwrite a file that would drop a record the existing file
// still mentions.
func Export(ctx context.Context, store storage.Storage, projectPath, dir string, force bool) (*Result, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating sync directory: %w", err)
	}
	if err := writeGitignoreIfAbsent(dir); err != nil {
		return nil, err
	}

	lock := flock.New(filepath.Join(dir, ".sync.lock"))
	locked, err := lock.TryLock()
	if err != nil {
		return nil, fmt.Errorf("acquiring export lock: %w", err)
	}
	if !locked {
		return nil, fmt.Errorf("another sync is in progress")
	}
	defer func() { _ = lock.Unlock() }()

	now := time.Now()
	result := &Result{PerKind: make(map[string]int)}

	for _, kind := range Kinds {
		records, ids, err := fetchProjectRecords(ctx, store, projectPath, kind)
		if err != nil {
			return nil, fmt.Errorf("fetching %s records: %w", kind, err)
		}
		if len(records) == 0 {
			continue
		}

		path := filepath.Join(dir, fileForKind[kind])
		if !force {
			if err := checkSafety(path, ids); err != nil {
				return nil, err
			}
		}

		lines := make([][]byte, 0, len(records))
		for _, rec := range records {
			line, _, err := wrapRecord(kind, rec, now)
			if err != nil {
				return nil, fmt.Errorf("wrapping %s record: %w", kind, err)
			}
			lines = append(lines, line)
		}
		if err := writeAtomic(path, lines); err != nil {
			return nil, fmt.Errorf("writing %s: %w", kind, err)
		}
		result.PerKind[kind] = len(records)
	}

	deletions, err := store.ListDeletions(ctx, projectPath)
	if err != nil {
		return nil, fmt.Errorf("listing deletions: %w", err)
	}
	if len(deletions) > 0 {
		lines := make([][]byte, 0, len(deletions))
		exportedIDs := make([]string, 0, len(deletions))
		for _, d := range deletions {
			line, err := json.Marshal(deletionRecord{
				EntityType:  d.EntityType,
				EntityID:    d.EntityID,
				ProjectPath: d.ProjectPath,
				DeletedAt:   time.UnixMilli(d.DeletedAt).UTC().Format(time.RFC3339),
				DeletedBy:   d.DeletedBy,
			})
			if err != nil {
				return nil, fmt.Errorf("wrapping deletion record: %w", err)
			}
			lines = append(lines, line)
			if !d.Exported {
				exportedIDs = append(exportedIDs, d.EntityID)
			}
		}
		if err := writeAtomic(filepath.Join(dir, deletionsFile), lines); err != nil {
			return nil, fmt.Errorf("writing deletions: %w", err)
		}
		if err := store.MarkDeletionsExported(ctx, projectPath, exportedIDs); err != nil {
			return nil, fmt.Errorf("marking deletions exported: %w", err)
		}
		result.Deletions = len(deletions)
	}

	aggregate := result.Deletions
	for _, n := range result.PerKind {
		aggregate += n
	}
	if aggregate == 0 {
		result.Nothing = true
		return result, nil
	}

	for _, kind := range []string{"session", "issue", "context_item", "plan"} {
		ids, err := store.GetDirtyIDs(ctx, kind, projectPath)
		if err != nil {
			return nil, fmt.Errorf("reading dirty %s ids: %w", kind, err)
		}
		if err := store.ClearDirty(ctx, kind, ids); err != nil {
			return nil, fmt.Errorf("clearing dirty %s: %w", kind, err)
		}
	}

	return result, nil
}

// NeedsBackfill reports whether a project has records but no dirty flags
// and no export files on disk yet — the first-export-on-existing-data
// condition spec.md §4.4 calls "backfill".
func NeedsBackfill(ctx context.Context, store storage.Storage, projectPath, dir string) (bool, error) {
	if anyExportFileExists(dir) {
		return false, nil
	}

	anyDirty := false
	for _, kind := range []string{"session", "issue", "context_item", "plan"} {
		ids, err := store.GetDirtyIDs(ctx, kind, projectPath)
		if err != nil {
			return false, err
		}
		if len(ids) > 0 {
			anyDirty = true
			break
		}
	}
	if anyDirty {
		return false, nil
	}

	sessions, err := store.ListSessions(ctx, types.SessionFilter{ProjectPath: projectPath})
	if err != nil {
		return false, err
	}
	if len(sessions) > 0 {
		return true, nil
	}
	issues, err := store.SearchIssues(ctx, "", types.IssueFilter{ProjectPath: projectPath})
	if err != nil {
		return false, err
	}
	return len(issues) > 0, nil
}

// Backfill marks every project-anchored record dirty so the next Export
// performs a full snapshot rather than exporting nothing.
func Backfill(ctx context.Context, store storage.Storage, projectPath string) error {
	return store.MarkAllDirty(ctx, projectPath)
}

func anyExportFileExists(dir string) bool {
	for _, f := range fileForKind {
		if _, err := os.Stat(filepath.Join(dir, f)); err == nil {
			return true
		}
	}
	if _, err := os.Stat(filepath.Join(dir, deletionsFile)); err == nil {
		return true
	}
	return false
}

// fetchProjectRecords returns every record of kind anchored at
// projectPath, along with their ids, as a generic slice of the concrete
// entity pointers so wrapRecord can serialize them uniformly.
func fetchProjectRecords(ctx context.Context, store storage.Storage, projectPath, kind string) ([]interface{}, []string, error) {
	var out []interface{}
	var ids []string

	switch kind {
	case "session":
		sessions, err := store.ListSessions(ctx, types.SessionFilter{ProjectPath: projectPath})
		if err != nil {
			return nil, nil, err
		}
		for _, s := range sessions {
			out = append(out, s)
			ids = append(ids, s.ID)
		}
	case "issue":
		issues, err := store.SearchIssues(ctx, "", types.IssueFilter{ProjectPath: projectPath})
		if err != nil {
			return nil, nil, err
		}
		for _, i := range issues {
			labels, err := store.GetLabels(ctx, i.ID)
			if err != nil {
				return nil, nil, err
			}
			deps, err := store.GetDependencies(ctx, i.ID)
			if err != nil {
				return nil, nil, err
			}
			i.Labels = labels
			i.Dependencies = deps
			out = append(out, i)
			ids = append(ids, i.ID)
		}
	case "context_item":
		items, err := store.ListContextItemsByProject(ctx, projectPath)
		if err != nil {
			return nil, nil, err
		}
		for _, it := range items {
			out = append(out, it)
			ids = append(ids, it.ID)
		}
	case "memory":
		mems, err := store.ListMemory(ctx, projectPath)
		if err != nil {
			return nil, nil, err
		}
		for _, m := range mems {
			out = append(out, m)
			ids = append(ids, m.ID)
		}
	case "checkpoint":
		cps, err := store.ListCheckpointsByProject(ctx, projectPath)
		if err != nil {
			return nil, nil, err
		}
		for _, c := range cps {
			out = append(out, c)
			ids = append(ids, c.ID)
		}
	case "plan":
		plans, err := store.ListPlans(ctx, projectPath)
		if err != nil {
			return nil, nil, err
		}
		for _, p := range plans {
			out = append(out, p)
			ids = append(ids, p.ID)
		}
	default:
		return nil, nil, fmt.Errorf("unknown entity kind %q", kind)
	}
	return out, ids, nil
}

// checkSafety refuses the export if the existing file on disk mentions an
// id that's absent from the fresh snapshot (spec.md §4.4 step 4).
func checkSafety(path string, freshIDs []string) error {
	existing, err := readLDJSONIDs(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("reading existing export for safety check: %w", err)
	}

	fresh := make(map[string]bool, len(freshIDs))
	for _, id := range freshIDs {
		fresh[id] = true
	}

	var missing []string
	for _, id := range existing {
		if !fresh[id] {
			missing = append(missing, id)
		}
	}
	if len(missing) == 0 {
		return nil
	}
	sort.Strings(missing)
	shown := missing
	if len(shown) > 5 {
		shown = shown[:5]
	}
	return fmt.Errorf("would lose %d record(s): %v (use force to override)", len(missing), shown)
}

func readLDJSONIDs(path string) ([]string, error) {
	b, err := os.ReadFile(path) // #nosec G304 - path built from the caller's own sync directory
	if err != nil {
		return nil, err
	}
	var ids []string
	for _, line := range splitLines(b) {
		if len(line) == 0 {
			continue
		}
		var env envelope
		if err := json.Unmarshal(line, &env); err != nil {
			continue
		}
		if env.ID != "" {
			ids = append(ids, env.ID)
		}
	}
	return ids, nil
}

func splitLines(b []byte) [][]byte {
	var lines [][]byte
	start := 0
	for i, c := range b {
		if c == '\n' {
			lines = append(lines, b[start:i])
			start = i + 1
		}
	}
	if start < len(b) {
		lines = append(lines, b[start:])
	}
	return lines
}

// writeAtomic writes lines (one LDJSON record per line) to path via a
// temp file in the same directory, fsync, then rename, grounded on the
// teacher's exportToRepo write sequence.
func writeAtomic(path string, lines [][]byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpPath := tmp.Name()
	removeTmp := true
	defer func() {
		_ = tmp.Close()
		if removeTmp {
			_ = os.Remove(tmpPath)
		}
	}()

	for _, line := range lines {
		if _, err := tmp.Write(line); err != nil {
			return fmt.Errorf("writing temp file: %w", err)
		}
		if _, err := tmp.Write([]byte("\n")); err != nil {
			return fmt.Errorf("writing temp file: %w", err)
		}
	}
	if err := tmp.Sync(); err != nil {
		return fmt.Errorf("syncing temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("renaming temp file into place: %w", err)
	}
	removeTmp = false
	return nil
}

func writeGitignoreIfAbsent(dir string) error {
	path := filepath.Join(dir, ".gitignore")
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, []byte(gitignoreContents), 0o644) // #nosec G306 - git-tracked ignore file, world-readable is intended
}
