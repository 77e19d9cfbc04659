package sync

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// debouncer batches rapid filesystem events into a single callback after a
// quiet period, grounded on the pack's daemon file-watch debouncer.
type debouncer struct {
	mu       sync.Mutex
	timer    *time.Timer
	duration time.Duration
	action   func()
}

func newDebouncer(d time.Duration, action func()) *debouncer {
	return &debouncer{duration: d, action: action}
}

func (d *debouncer) trigger() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
	}
	d.timer = time.AfterFunc(d.duration, d.action)
}

func (d *debouncer) cancel() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
}

// Watcher triggers discrete import or export calls when a project's sync
// directory changes on disk, rather than streaming file contents — import
// on a change made by a peer, export on a local mutation signal delivered
// separately by the caller via TriggerExport.
type Watcher struct {
	dir              string
	fsw              *fsnotify.Watcher
	importDebouncer  *debouncer
	exportDebouncer  *debouncer
	cancel           context.CancelFunc
	wg               sync.WaitGroup
}

// WatchOptions configures a Watcher's callbacks and debounce window.
type WatchOptions struct {
	OnImportNeeded func()
	OnExportNeeded func()
	Debounce       time.Duration
}

// NewWatcher starts watching dir for LDJSON file changes. It calls
// opts.OnImportNeeded (debounced) whenever a file under dir is created,
// written, or renamed — signaling that a peer may have exported new
// records this process should import.
func NewWatcher(ctx context.Context, dir string, opts WatchOptions) (*Watcher, error) {
	if opts.Debounce == 0 {
		opts.Debounce = 500 * time.Millisecond
	}
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("creating sync directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("starting filesystem watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		_ = fsw.Close()
		return nil, fmt.Errorf("watching sync directory: %w", err)
	}

	w := &Watcher{dir: dir, fsw: fsw}
	if opts.OnImportNeeded != nil {
		w.importDebouncer = newDebouncer(opts.Debounce, opts.OnImportNeeded)
	}
	if opts.OnExportNeeded != nil {
		w.exportDebouncer = newDebouncer(opts.Debounce, opts.OnExportNeeded)
	}

	watchCtx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(watchCtx)

	return w, nil
}

func (w *Watcher) loop(ctx context.Context) {
	defer w.wg.Done()
	for {
		select {
		case event, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Ext(event.Name) != ".jsonl" {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 && w.importDebouncer != nil {
				w.importDebouncer.trigger()
			}
		case _, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

// TriggerExport schedules the export callback, debounced — callers fire
// this on local mutation events (spec.md §4.4's export side of watch mode).
func (w *Watcher) TriggerExport() {
	if w.exportDebouncer != nil {
		w.exportDebouncer.trigger()
	}
}

// Close stops the watcher and cancels any pending debounced actions.
func (w *Watcher) Close() error {
	if w.cancel != nil {
		w.cancel()
	}
	w.wg.Wait()
	if w.importDebouncer != nil {
		w.importDebouncer.cancel()
	}
	if w.exportDebouncer != nil {
		w.exportDebouncer.cancel()
	}
	return w.fsw.Close()
}
