package embeddings

import (
	"context"
	"fmt"
	"os"
	"os/exec"

	"golang.org/x/sync/errgroup"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/savecontext/savecontext/internal/storage"
	"github.com/savecontext/savecontext/internal/types"
)

// qualityConcurrencyEnv overrides the default bound on concurrent quality
// embedding requests (Open Question decision, see DESIGN.md).
const qualityConcurrencyEnv = "SAVECONTEXT_EMBEDDINGS_QUALITY_CONCURRENCY"

const defaultQualityConcurrency = 4

// hiddenUpgradeVerb is the CLI subcommand the spawned child process runs.
// It is not registered in cobra's help output (spec.md §4.5's background
// upgrade process is an implementation detail, not a user-facing command).
const hiddenUpgradeVerb = "internal"

const hiddenUpgradeSubVerb = "process-embeddings"

// SpawnBackgroundUpgrade launches a detached copy of the running binary
// invoked with the hidden "internal process-embeddings" verb, so the
// upgrade survives the parent CLI process exiting (spec.md §4.5
// "Background quality upgrade"). Its stdout/stderr are redirected to a
// lumberjack-rotated log file rather than inherited from the parent,
// grounded on the teacher's daemon-spawn pattern
// (cmd/bd/daemon_autostart.go's startDaemonProcess).
func SpawnBackgroundUpgrade(logPath string) error {
	exe, err := os.Executable()
	if err != nil {
		return fmt.Errorf("resolving executable path: %w", err)
	}

	cmd := exec.Command(exe, hiddenUpgradeVerb, hiddenUpgradeSubVerb)
	cmd.Env = os.Environ()

	logger := &lumberjack.Logger{
		Filename:   logPath,
		MaxSize:    10, // megabytes
		MaxBackups: 3,
		MaxAge:     28, // days
	}
	cmd.Stdout = logger
	cmd.Stderr = logger
	cmd.Stdin = nil

	configureDetached(cmd)

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("starting background upgrade process: %w", err)
	}
	// Deliberately do not Wait: the child outlives this process.
	return cmd.Process.Release()
}

// UpgradeResult tallies one ProcessPending run.
type UpgradeResult struct {
	Embedded  int
	Failed    int
	Resynced  int
}

// ProcessPending is the hidden upgrade verb's entrypoint: it finds items
// whose fast tier is complete but quality tier is still pending, chunks
// and embeds each with the quality provider, and stores the resulting
// chunks (spec.md §4.5 "Background quality upgrade").
func ProcessPending(ctx context.Context, store storage.Storage, quality QualityProvider, limit int) (*UpgradeResult, error) {
	result := &UpgradeResult{}

	resynced, err := ResyncStatus(ctx, store)
	if err != nil {
		return nil, fmt.Errorf("resyncing embedding status: %w", err)
	}
	result.Resynced = resynced

	items, err := store.ItemsNeedingQualityEmbedding(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("listing items needing quality embedding: %w", err)
	}
	if len(items) == 0 {
		return result, nil
	}

	cfg := ChunkConfigFor(quality)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(qualityConcurrency())

	type itemOutcome struct {
		itemID string
		failed bool
	}
	outcomes := make([]itemOutcome, len(items))

	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			if err := embedItem(gctx, store, quality, cfg, item); err != nil {
				outcomes[i] = itemOutcome{itemID: item.ID, failed: true}
				return nil // one item's failure doesn't abort the batch
			}
			outcomes[i] = itemOutcome{itemID: item.ID}
			return nil
		})
	}
	_ = g.Wait()

	for _, o := range outcomes {
		if o.failed {
			result.Failed++
		} else {
			result.Embedded++
		}
	}
	return result, nil
}

func embedItem(ctx context.Context, store storage.Storage, quality QualityProvider, cfg ChunkConfig, item *types.ContextItem) error {
	text := item.EmbedText()
	chunks := ChunkText(text, cfg)
	if len(chunks) == 0 {
		return store.SetItemEmbeddingStatus(ctx, item.ID, item.FastEmbedStatus, types.EmbeddingNone)
	}

	for _, c := range chunks {
		vec, err := quality.Embed(ctx, c.Text)
		if err != nil {
			return fmt.Errorf("embedding chunk %d of item %s: %w", c.Index, item.ID, err)
		}
		chunk := &types.EmbeddingChunk{
			ItemID:     item.ID,
			ChunkIndex: c.Index,
			ChunkText:  c.Text,
			Embedding:  vec,
			Provider:   "quality",
			Model:      quality.Model(),
		}
		if err := store.UpsertEmbeddingChunk(ctx, qualityTable, chunk); err != nil {
			return fmt.Errorf("storing chunk %d of item %s: %w", c.Index, item.ID, err)
		}
	}

	return store.SetItemEmbeddingStatus(ctx, item.ID, item.FastEmbedStatus, types.EmbeddingComplete)
}

func qualityConcurrency() int {
	if v := os.Getenv(qualityConcurrencyEnv); v != "" {
		var n int
		if _, err := fmt.Sscanf(v, "%d", &n); err == nil && n > 0 {
			return n
		}
	}
	return defaultQualityConcurrency
}
