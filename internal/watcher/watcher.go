// Package watcher reports changes to document files under a directory.
package watcher

import (
	"context"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"medisync-rag/internal/logging"
)

// Operation is the kind of change observed on a file.
type Operation int

const (
	FileCreated Operation = iota
	FileModified
	FileDeleted
)

func (o Operation) String() string {
	switch o {
	case FileCreated:
		return "created"
	case FileModified:
		return "modified"
	case FileDeleted:
		return "deleted"
	}
	return "unknown"
}

// Event is a change to a watched file.
type Event struct {
	Path      string
	Operation Operation
}

// DefaultQuiet is how long Run waits for further events before reporting a batch.
const DefaultQuiet = 500 * time.Millisecond

// Watcher wraps an fsnotify watcher filtered by file extension.
type Watcher struct {
	watcher    *fsnotify.Watcher
	extensions map[string]struct{}
	logger     *slog.Logger
}

// New creates a watcher for files with the given extensions (e.g. ".pdf").
// Matching is case-insensitive.
func New(extensions []string, logger *slog.Logger) (*Watcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	exts := make(map[string]struct{}, len(extensions))
	for _, e := range extensions {
		exts[strings.ToLower(e)] = struct{}{}
	}

	return &Watcher{
		watcher:    w,
		extensions: exts,
		logger:     logging.OrDiscard(logger),
	}, nil
}

// Watch starts monitoring dir and its subdirectories. The returned channel
// is closed when ctx is done or the watcher is stopped.
func (w *Watcher) Watch(ctx context.Context, dir string) (<-chan Event, error) {
	if _, err := w.addTree(dir); err != nil {
		return nil, err
	}

	events := make(chan Event, 100)

	go func() {
		defer close(events)
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-w.watcher.Events:
				if !ok {
					return
				}
				if event.Has(fsnotify.Create) && isDir(event.Name) {
					// Files may land in a new directory before its watch exists.
					files, err := w.addTree(event.Name)
					if err != nil {
						w.logger.Warn("watching new directory failed", "dir", event.Name, "error", err)
					}
					for _, f := range files {
						select {
						case events <- Event{Path: f, Operation: FileCreated}:
						case <-ctx.Done():
							return
						}
					}
					continue
				}
				if !w.isWatched(event.Name) {
					continue
				}

				var op Operation
				switch {
				case event.Has(fsnotify.Create):
					op = FileCreated
				case event.Has(fsnotify.Write):
					op = FileModified
				case event.Has(fsnotify.Remove), event.Has(fsnotify.Rename):
					op = FileDeleted
				default:
					continue
				}

				select {
				case events <- Event{Path: event.Name, Operation: op}:
				case <-ctx.Done():
					return
				}
			case err, ok := <-w.watcher.Errors:
				if !ok {
					return
				}
				w.logger.Warn("file watcher error", "dir", dir, "error", err)
			}
		}
	}()

	return events, nil
}

// Run watches dir and calls onChange with each batch of events once no new
// event has arrived for quiet. It blocks until ctx is done.
func (w *Watcher) Run(ctx context.Context, dir string, quiet time.Duration, onChange func([]Event)) error {
	events, err := w.Watch(ctx, dir)
	if err != nil {
		return err
	}
	if quiet <= 0 {
		quiet = DefaultQuiet
	}

	var pending []Event
	timer := time.NewTimer(quiet)
	timer.Stop()
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			pending = append(pending, ev)
			timer.Reset(quiet)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			batch := pending
			pending = nil
			onChange(batch)
		}
	}
}

// addTree watches root and every directory below it and returns the
// watched files already present.
func (w *Watcher) addTree(root string) ([]string, error) {
	var files []string
	err := filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			return w.watcher.Add(path)
		}
		if w.isWatched(path) {
			files = append(files, path)
		}
		return nil
	})
	return files, err
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

// Stop stops the watcher.
func (w *Watcher) Stop() error {
	return w.watcher.Close()
}

func (w *Watcher) isWatched(path string) bool {
	if len(w.extensions) == 0 {
		return true
	}
	_, ok := w.extensions[strings.ToLower(filepath.Ext(path))]
	return ok
}
