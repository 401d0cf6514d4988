// Package watch re-runs the AC-PC computation whenever the landmark files
// change, so the aligned view follows the user while landmarks are moved.
package watch

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// DefaultDebounce is used when no debounce is configured.
const DefaultDebounce = 200 * time.Millisecond

// UpdateFunc recomputes and exports the transform. An error is logged and
// the watcher keeps running.
type UpdateFunc func(ctx context.Context) error

// Watcher observes a set of files and calls an UpdateFunc after they change.
type Watcher struct {
	files    map[string]bool
	dirs     []string
	debounce time.Duration
	update   UpdateFunc
	logger   *log.Logger

	mu       sync.Mutex
	runs     int
	failures int
}

// New returns a Watcher for paths. The parent directories are watched
// rather than the files themselves since hosts often save by replacing the
// file.
func New(paths []string, debounce time.Duration, logger *log.Logger, update UpdateFunc) (*Watcher, error) {
	if len(paths) == 0 {
		return nil, errors.New("no files to watch")
	}
	if update == nil {
		return nil, errors.New("nil update function")
	}
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	if logger == nil {
		logger = log.Default()
	}

	w := &Watcher{
		files:    make(map[string]bool, len(paths)),
		debounce: debounce,
		update:   update,
		logger:   logger,
	}
	seen := make(map[string]bool)
	for _, p := range paths {
		abs, err := filepath.Abs(p)
		if err != nil {
			return nil, fmt.Errorf("resolving %s: %w", p, err)
		}
		w.files[abs] = true
		dir := filepath.Dir(abs)
		if !seen[dir] {
			seen[dir] = true
			w.dirs = append(w.dirs, dir)
		}
	}
	return w, nil
}

// Stats returns how many updates ran and how many of them failed.
func (w *Watcher) Stats() (runs, failures int) {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.runs, w.failures
}

// Run performs an initial update and then one update per burst of changes
// until ctx is cancelled. It returns nil on cancellation.
func (w *Watcher) Run(ctx context.Context) error {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating file watcher: %w", err)
	}
	defer fsw.Close()

	for _, dir := range w.dirs {
		if err := fsw.Add(dir); err != nil {
			return fmt.Errorf("watching %s: %w", dir, err)
		}
		w.logger.Debug("watching directory", "dir", dir)
	}

	w.runUpdate(ctx)

	timer := time.NewTimer(w.debounce)
	if !timer.Stop() {
		<-timer.C
	}
	pending := false

	for {
		select {
		case <-ctx.Done():
			timer.Stop()
			return nil

		case e, ok := <-fsw.Events:
			if !ok {
				return nil
			}
			if !w.relevant(e) {
				continue
			}
			w.logger.Debug("landmark file changed", "file", e.Name, "op", e.Op.String())
			if pending && !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(w.debounce)
			pending = true

		case err, ok := <-fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("file watcher error", "err", err)

		case <-timer.C:
			pending = false
			w.runUpdate(ctx)
		}
	}
}

func (w *Watcher) relevant(e fsnotify.Event) bool {
	if !e.Op.Has(fsnotify.Write) && !e.Op.Has(fsnotify.Create) && !e.Op.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(e.Name)
	if err != nil {
		return false
	}
	return w.files[abs]
}

func (w *Watcher) runUpdate(ctx context.Context) {
	start := time.Now()
	err := w.update(ctx)

	w.mu.Lock()
	w.runs++
	if err != nil {
		w.failures++
	}
	w.mu.Unlock()

	if err != nil {
		w.logger.Error("update failed", "err", err)
		return
	}
	w.logger.Info("transform updated", "elapsed", time.Since(start).Round(time.Microsecond))
}
