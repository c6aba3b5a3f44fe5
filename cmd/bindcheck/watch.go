package main

import (
	"context"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
)

// settle is how long the watcher waits after the last event before
// re-running, so an editor's write-rename sequence triggers one run.
const settle = 100 * time.Millisecond

// watcher re-runs a check whenever the manifest or its shader changes.
type watcher struct {
	fs     *fsnotify.Watcher
	logger *slog.Logger
	files  map[string]bool
	dirs   map[string]bool
}

func newWatcher(logger *slog.Logger) (*watcher, error) {
	fs, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	return &watcher{fs: fs, logger: logger, files: make(map[string]bool), dirs: make(map[string]bool)}, nil
}

// track watches path. Directories are watched rather than files so that
// replacing a file by rename is still seen.
func (w *watcher) track(path string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	w.files[abs] = true
	dir := filepath.Dir(abs)
	if w.dirs[dir] {
		return nil
	}
	if err := w.fs.Add(dir); err != nil {
		return err
	}
	w.dirs[dir] = true
	return nil
}

func (w *watcher) relevant(e fsnotify.Event) bool {
	if !e.Has(fsnotify.Write) && !e.Has(fsnotify.Create) && !e.Has(fsnotify.Rename) {
		return false
	}
	abs, err := filepath.Abs(e.Name)
	return err == nil && w.files[abs]
}

// run calls f once per settled burst of relevant events until ctx is done.
func (w *watcher) run(ctx context.Context, f func()) error {
	defer w.fs.Close()

	timer := time.NewTimer(settle)
	timer.Stop()
	for {
		select {
		case <-ctx.Done():
			return nil
		case e, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.relevant(e) {
				w.logger.Debug("change detected", "file", e.Name, "op", e.Op.String())
				timer.Reset(settle)
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.logger.Error("watch error", "err", err)
		case <-timer.C:
			f()
		}
	}
}
