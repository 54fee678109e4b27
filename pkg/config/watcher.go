package config

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

const defaultDebounceDelay = 200 * time.Millisecond

// ReloadFunc receives the freshly loaded configuration after the watched
// file changed and parsed successfully.
type ReloadFunc func(*Config)

// Watcher reloads the config file on change so valve edits apply without
// a restart. A rewrite that fails to parse keeps the previous config.
type Watcher struct {
	path     string
	debounce time.Duration
	onReload ReloadFunc
	log      *slog.Logger
}

// NewWatcher creates a watcher for the given config file path.
func NewWatcher(path string, onReload ReloadFunc, log *slog.Logger) (*Watcher, error) {
	if path == "" {
		return nil, fmt.Errorf("config watcher requires a file path")
	}
	if onReload == nil {
		return nil, fmt.Errorf("config watcher requires a reload callback")
	}
	if log == nil {
		log = slog.Default()
	}

	return &Watcher{
		path:     path,
		debounce: defaultDebounceDelay,
		onReload: onReload,
		log:      log.With("component", "config.watcher"),
	}, nil
}

// Run watches until the context is cancelled. Editors replace files with
// rename+create, so the parent directory is watched rather than the file
// itself.
func (w *Watcher) Run(ctx context.Context) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	defer watcher.Close()

	dir := filepath.Dir(w.path)
	if err := watcher.Add(dir); err != nil {
		return fmt.Errorf("watch %s: %w", dir, err)
	}

	w.log.Debug("Config watcher started", "path", w.path)

	var debounce *time.Timer
	defer func() {
		if debounce != nil {
			debounce.Stop()
		}
	}()

	pending := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case event, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if filepath.Clean(event.Name) != filepath.Clean(w.path) {
				continue
			}
			if !event.Has(fsnotify.Write) && !event.Has(fsnotify.Create) && !event.Has(fsnotify.Rename) {
				continue
			}

			if debounce != nil {
				debounce.Stop()
			}
			debounce = time.AfterFunc(w.debounce, func() {
				select {
				case pending <- struct{}{}:
				default:
				}
			})

		case <-pending:
			w.reload()

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("Config watcher error", "error", err)
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadConfigFile(w.path)
	if err != nil {
		w.log.Warn("Config reload skipped", "path", w.path, "error", err)
		return
	}

	w.log.Info("Config reloaded", "path", w.path)
	w.onReload(cfg)
}
