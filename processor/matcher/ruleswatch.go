package matcher

import (
	"context"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
)

// reloadDebounce is how long to wait after a rules-file change before
// reloading, so editors that write in multiple steps trigger one reload.
const reloadDebounce = 500 * time.Millisecond

// ruleWatcher reloads the rules file when it changes on disk. The containing
// directory is watched rather than the file itself, since most editors
// replace the file on save.
type ruleWatcher struct {
	path     string
	watcher  *fsnotify.Watcher
	logger   *slog.Logger
	onReload func(*RuleTable)

	pendingMu sync.Mutex
	pending   bool
}

func newRuleWatcher(path string, logger *slog.Logger, onReload func(*RuleTable)) (*ruleWatcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		_ = fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ruleWatcher{
		path:     path,
		watcher:  fsw,
		logger:   logger,
		onReload: onReload,
	}, nil
}

// Start begins processing file events until the context is cancelled.
func (w *ruleWatcher) Start(ctx context.Context) {
	go w.processEvents(ctx)
}

// Stop closes the underlying watcher.
func (w *ruleWatcher) Stop() error {
	return w.watcher.Close()
}

func (w *ruleWatcher) processEvents(ctx context.Context) {
	ticker := time.NewTicker(reloadDebounce)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Has(fsnotify.Write) || ev.Has(fsnotify.Create) || ev.Has(fsnotify.Rename) {
				w.pendingMu.Lock()
				w.pending = true
				w.pendingMu.Unlock()
			}

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Error("Rules watcher error", "error", err)

		case <-ticker.C:
			w.flushPending()
		}
	}
}

func (w *ruleWatcher) flushPending() {
	w.pendingMu.Lock()
	pending := w.pending
	w.pending = false
	w.pendingMu.Unlock()

	if !pending {
		return
	}

	table, err := LoadRulesFile(w.path)
	if err != nil {
		// Keep the previous table on a bad edit.
		w.logger.Warn("Failed to reload rules file",
			"path", w.path,
			"error", err)
		return
	}
	w.onReload(table)
}
