package source

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
)

// Watcher monitors the ruleset path for changes and swaps validated
// snapshots into a Store. Rapid consecutive writes are debounced so an
// editor save (write + rename + chmod) triggers one reload, not three.
// A snapshot that fails to load or validate is rejected; the last known
// good RuleSet stays active.
type Watcher struct {
	source   *FileSource
	store    *Store
	debounce time.Duration
	logger   *slog.Logger
}

// NewWatcher creates a watcher that reloads from source into store.
// A non-positive debounce defaults to 100ms.
func NewWatcher(source *FileSource, store *Store, debounce time.Duration, logger *slog.Logger) *Watcher {
	if logger == nil {
		logger = slog.Default()
	}
	if debounce <= 0 {
		debounce = 100 * time.Millisecond
	}
	return &Watcher{
		source:   source,
		store:    store,
		debounce: debounce,
		logger:   logger.With("component", "ruleset.watcher"),
	}
}

// Watch blocks, processing file events until the context is cancelled.
func (w *Watcher) Watch(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create fsnotify watcher: %w", err)
	}
	defer fsw.Close()

	// Watch the parent directory so atomic rename-into-place saves are seen.
	watchPath := w.source.path
	if !isDir(watchPath) {
		watchPath = filepath.Dir(watchPath)
	}
	if err := fsw.Add(watchPath); err != nil {
		return fmt.Errorf("failed to watch %q: %w", watchPath, err)
	}

	w.logger.Info("ruleset watcher started",
		"path", w.source.path,
		"debounce_ms", w.debounce.Milliseconds(),
	)

	var timer *time.Timer
	var timerCh <-chan time.Time

	for {
		select {
		case <-ctx.Done():
			w.logger.Info("ruleset watcher stopped")
			return nil

		case event, ok := <-fsw.Events:
			if !ok {
				return fmt.Errorf("watcher events channel closed")
			}
			if !w.relevant(event) {
				continue
			}

			w.logger.Debug("ruleset file event",
				"path", event.Name,
				"op", event.Op.String(),
			)

			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerCh = timer.C
			} else {
				if !timer.Stop() {
					<-timer.C
				}
				timer.Reset(w.debounce)
			}

		case <-timerCh:
			timer = nil
			timerCh = nil
			w.reload()

		case err, ok := <-fsw.Errors:
			if !ok {
				return fmt.Errorf("watcher errors channel closed")
			}
			w.logger.Error("ruleset watcher error", "error", err)
		}
	}
}

// relevant filters events down to yaml changes affecting the watched path.
func (w *Watcher) relevant(event fsnotify.Event) bool {
	if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename|fsnotify.Remove) == 0 {
		return false
	}

	name := filepath.Base(event.Name)
	if strings.HasPrefix(name, ".") {
		return false
	}

	ext := filepath.Ext(name)
	if ext != ".yaml" && ext != ".yml" {
		return false
	}

	if !isDir(w.source.path) {
		return filepath.Clean(event.Name) == filepath.Clean(w.source.path)
	}
	return true
}

// reload loads a fresh snapshot and swaps it in if valid.
func (w *Watcher) reload() {
	rs, err := w.source.Load()
	if err != nil {
		w.logger.Error("ruleset reload failed, keeping previous snapshot", "error", err)
		return
	}

	previous := w.store.Current()
	w.store.Swap(rs)

	prevVersion := ""
	if previous != nil {
		prevVersion = previous.Version
	}
	w.logger.Info("ruleset reloaded",
		"previous_version", prevVersion,
		"version", rs.Version,
		"rule_count", len(rs.Rules),
	)
}

// isDir reports whether path exists and is a directory.
func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
