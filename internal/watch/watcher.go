// Package watch reports filesystem changes to the monitored log.
package watch

import (
	"context"
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches the directory holding a file so that rotations and atomic
// replacements are seen as well as in-place writes.
type Watcher struct {
	fsw    *fsnotify.Watcher
	dir    string
	notify func(path string)
}

// New starts watching the directory of path. notify is called with the absolute
// path of every entry in that directory that was written, created or renamed;
// filtering is left to the caller.
func New(path string, notify func(path string)) (*Watcher, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve %s: %w", path, err)
	}
	dir := filepath.Dir(abs)

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	return &Watcher{fsw: fsw, dir: dir, notify: notify}, nil
}

// Dir returns the watched directory.
func (w *Watcher) Dir() string {
	return w.dir
}

// Run forwards events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fsw.Close()

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			if !relevant(ev.Op) {
				continue
			}
			name := ev.Name
			if !filepath.IsAbs(name) {
				name = filepath.Join(w.dir, name)
			}
			w.notify(filepath.Clean(name))
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			log.Printf("[Watch] %v", err)
		}
	}
}

func relevant(op fsnotify.Op) bool {
	return op.Has(fsnotify.Write) || op.Has(fsnotify.Create) || op.Has(fsnotify.Rename)
}
