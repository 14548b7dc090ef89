// Package watch turns filesystem events under a root directory into debounced
// batches of changed paths.
package watch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"affected/internal/changes"
	"affected/internal/ignore"
)

// DefaultDebounce is used when Options.Debounce is zero.
const DefaultDebounce = 200 * time.Millisecond

// Handler receives one batch of changed paths. Batches are delivered one at a
// time; events arriving while a handler runs go into the next batch.
type Handler func(ctx context.Context, batch changes.Set) error

// Options configure a Watcher.
type Options struct {
	Debounce time.Duration
	// Ignore filters paths relative to the root. Nil ignores nothing.
	Ignore *ignore.Matcher
	Logger *slog.Logger
}

// Watcher watches a directory tree.
type Watcher struct {
	root     string
	fsw      *fsnotify.Watcher
	debounce time.Duration
	ignore   *ignore.Matcher
	log      *slog.Logger
}

// New creates a watcher for root and registers every directory below it that
// is not ignored.
func New(root string, opts Options) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving watch root: %w", err)
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		root:     abs,
		fsw:      fsw,
		debounce: opts.Debounce,
		ignore:   opts.Ignore,
		log:      opts.Logger,
	}
	if w.debounce <= 0 {
		w.debounce = DefaultDebounce
	}
	if w.log == nil {
		w.log = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	if _, err := w.addRecursive(abs); err != nil {
		fsw.Close()
		return nil, err
	}
	return w, nil
}

// Root returns the absolute watched directory.
func (w *Watcher) Root() string {
	return w.root
}

// Close releases the underlying watcher. Run returns once it is closed.
func (w *Watcher) Close() error {
	return w.fsw.Close()
}

// Run delivers batches to h until ctx is cancelled, the watcher is closed,
// or h returns an error. Cancellation is not an error.
func (w *Watcher) Run(ctx context.Context, h Handler) error {
	pending := make(map[string]struct{})
	var (
		timer  *time.Timer
		timerC <-chan time.Time
	)
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case event, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			paths := w.accept(event)
			if len(paths) == 0 {
				continue
			}
			for _, p := range paths {
				pending[p] = struct{}{}
			}
			if timer == nil {
				timer = time.NewTimer(w.debounce)
				timerC = timer.C
			} else {
				timer.Reset(w.debounce)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.log.Warn("watch error", "error", err)

		case <-timerC:
			timer, timerC = nil, nil
			paths := make([]string, 0, len(pending))
			for p := range pending {
				paths = append(paths, p)
			}
			clear(pending)

			batch := changes.NewSet(paths...)
			w.log.Debug("batch ready", "paths", batch.Len())
			if err := h(ctx, batch); err != nil {
				return err
			}
		}
	}
}

// accept filters an event and returns the file paths it touches. A newly
// created directory is registered and its existing files are reported, since
// they may have been written before the directory was watched. Chmod-only
// events are dropped.
func (w *Watcher) accept(event fsnotify.Event) []string {
	if event.Op == fsnotify.Chmod {
		return nil
	}
	info, statErr := os.Stat(event.Name)
	isDir := statErr == nil && info.IsDir()
	if w.ignored(event.Name, isDir) {
		return nil
	}
	if isDir {
		if !event.Has(fsnotify.Create) {
			return nil
		}
		files, err := w.addRecursive(event.Name)
		if err != nil {
			w.log.Warn("watching new directory", "path", event.Name, "error", err)
		}
		return files
	}
	w.log.Debug("event", "op", event.Op.String(), "path", event.Name)
	return []string{event.Name}
}

func (w *Watcher) ignored(path string, isDir bool) bool {
	if w.ignore == nil {
		return false
	}
	rel, err := filepath.Rel(w.root, path)
	if err != nil || rel == "." {
		return false
	}
	return w.ignore.Match(rel, isDir)
}

// addRecursive watches dir and every directory below it that is not ignored,
// and returns the files found on the way.
func (w *Watcher) addRecursive(dir string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return err
			}
			// Vanished or unreadable subdirectory.
			return nil
		}
		if w.ignored(path, d.IsDir()) {
			if d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.IsDir() {
			files = append(files, path)
			return nil
		}
		if err := w.fsw.Add(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("watching %s: %w", path, err)
		}
		return nil
	})
	return files, err
}
