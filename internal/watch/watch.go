// Package watch reruns a callback when any of a set of files changes.
package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// DefaultDebounce is how long a file must stay quiet before a change is
// acted on. Bundlers write large files in several chunks.
const DefaultDebounce = 500 * time.Millisecond

const tick = 100 * time.Millisecond

// Watcher tracks a fixed set of files. Their parent directories are
// watched so that files replaced by rename are still noticed.
type Watcher struct {
	files    map[string]bool
	debounce time.Duration
	logger   *zap.Logger

	watcher *fsnotify.Watcher
	pending map[string]time.Time
}

// Option configures a Watcher.
type Option func(*Watcher)

// WithDebounce overrides DefaultDebounce.
func WithDebounce(d time.Duration) Option {
	return func(w *Watcher) {
		w.debounce = d
	}
}

// WithLogger sets the logger for change events.
func WithLogger(logger *zap.Logger) Option {
	return func(w *Watcher) {
		if logger != nil {
			w.logger = logger
		}
	}
}

// New starts watching paths.
func New(paths []string, opts ...Option) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}
	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		debounce: DefaultDebounce,
		logger:   zap.NewNop(),
		watcher:  fw,
		pending:  make(map[string]time.Time),
	}
	for _, opt := range opts {
		opt(w)
	}

	dirs := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			fw.Close()
			return nil, err
		}
		w.files[abs] = true
		dirs[filepath.Dir(abs)] = true
	}
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			fw.Close()
			return nil, fmt.Errorf("watch %s: %w", dir, err)
		}
		w.logger.Debug("Watching directory", zap.String("dir", dir))
	}
	return w, nil
}

// Run calls onChange with the changed files after each quiet period, until
// ctx is done. An error from onChange is logged and watching continues.
// Run closes the watcher before returning.
func (w *Watcher) Run(ctx context.Context, onChange func(ctx context.Context, changed []string) error) error {
	defer w.watcher.Close()

	ticker := time.NewTicker(tick)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.watcher.Events:
			if !ok {
				return nil
			}
			w.handle(event)

		case err, ok := <-w.watcher.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("Watcher error", zap.Error(err))

		case now := <-ticker.C:
			changed := w.due(now)
			if len(changed) == 0 {
				continue
			}
			w.logger.Info("Bundles changed", zap.Strings("files", changed))
			if err := onChange(ctx, changed); err != nil {
				w.logger.Error("Regeneration failed", zap.Error(err))
			}
		}
	}
}

func (w *Watcher) handle(event fsnotify.Event) {
	if !w.files[filepath.Clean(event.Name)] {
		return
	}
	if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) && !event.Has(fsnotify.Rename) {
		return
	}
	w.logger.Debug("File event", zap.String("file", event.Name), zap.Stringer("op", event.Op))
	w.pending[filepath.Clean(event.Name)] = time.Now()
}

// due removes and returns files whose last event is older than the
// debounce period.
func (w *Watcher) due(now time.Time) []string {
	var out []string
	for path, at := range w.pending {
		if now.Sub(at) >= w.debounce {
			out = append(out, path)
			delete(w.pending, path)
		}
	}
	return out
}
