// Package watcher reports event-log files that appear in a directory once
// their writer has finished with them.
package watcher

import (
	"context"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/davidleathers/workflow-insights-backend/internal/domain/errors"
)

// DefaultSettle is how long a file must stay unchanged before it is reported
const DefaultSettle = 2 * time.Second

// Watcher emits the paths of new or rewritten files with a given extension
type Watcher struct {
	fsWatcher *fsnotify.Watcher
	dir       string
	ext       string
	settle    time.Duration
	logger    *zap.Logger

	mu      sync.Mutex
	pending map[string]time.Time

	files  chan string
	errors chan error
}

// New watches dir for files ending in ext (e.g. ".csv")
func New(dir, ext string, settle time.Duration, logger *zap.Logger) (*Watcher, error) {
	if logger == nil {
		return nil, errors.NewConfigError("NIL_LOGGER", "logger cannot be nil")
	}
	if settle <= 0 {
		settle = DefaultSettle
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, err
	}
	info, err := os.Stat(abs)
	if err != nil {
		return nil, errors.NewConfigError("WATCH_DIR", "watch directory does not exist").WithCause(err)
	}
	if !info.IsDir() {
		return nil, errors.NewConfigError("WATCH_DIR", abs+" is not a directory")
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(abs); err != nil {
		_ = fsw.Close()
		return nil, err
	}

	return &Watcher{
		fsWatcher: fsw,
		dir:       abs,
		ext:       strings.ToLower(ext),
		settle:    settle,
		logger:    logger,
		pending:   make(map[string]time.Time),
		files:     make(chan string, 64),
		errors:    make(chan error, 8),
	}, nil
}

// Files returns settled file paths. It is closed when Run returns.
func (w *Watcher) Files() <-chan string {
	return w.files
}

// Errors returns watcher errors; full buffers drop them
func (w *Watcher) Errors() <-chan error {
	return w.errors
}

// Dir returns the absolute watched directory
func (w *Watcher) Dir() string {
	return w.dir
}

// Run processes filesystem events until ctx is done
func (w *Watcher) Run(ctx context.Context) {
	defer close(w.files)
	defer w.fsWatcher.Close()

	ticker := time.NewTicker(w.settle / 4)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			w.observe(event, time.Now())

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.errors <- err:
			default:
				w.logger.Warn("watcher error dropped", zap.Error(err))
			}

		case now := <-ticker.C:
			for _, path := range w.settled(now) {
				select {
				case w.files <- path:
				case <-ctx.Done():
					return
				}
			}
		}
	}
}

func (w *Watcher) observe(event fsnotify.Event, now time.Time) {
	if !strings.EqualFold(filepath.Ext(event.Name), w.ext) {
		return
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	switch {
	case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
	case event.Has(fsnotify.Create), event.Has(fsnotify.Write):
		w.pending[event.Name] = now
	}
}

// settled removes and returns files untouched for at least the settle time,
// oldest first
func (w *Watcher) settled(now time.Time) []string {
	w.mu.Lock()
	defer w.mu.Unlock()

	threshold := now.Add(-w.settle)
	var ready []string
	for path, last := range w.pending {
		if last.After(threshold) {
			continue
		}
		delete(w.pending, path)
		if info, err := os.Stat(path); err != nil || info.IsDir() {
			continue
		}
		ready = append(ready, path)
	}

	sortByModTime(ready)
	return ready
}

func sortByModTime(paths []string) {
	mod := make(map[string]time.Time, len(paths))
	for _, p := range paths {
		if info, err := os.Stat(p); err == nil {
			mod[p] = info.ModTime()
		}
	}
	sort.Slice(paths, func(i, j int) bool {
		a, b := mod[paths[i]], mod[paths[j]]
		if a.Equal(b) {
			return paths[i] < paths[j]
		}
		return a.Before(b)
	})
}
