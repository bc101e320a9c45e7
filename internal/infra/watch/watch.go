// Package watch reports library files that disappear from disk.
package watch

import (
	"path/filepath"
	"sync"

	"github.com/cockroachdb/errors"
	"github.com/fsnotify/fsnotify"
	zlog "github.com/rs/zerolog/log"
)

// Watcher watches the directories holding library files and reports files
// that were removed or renamed away.
type Watcher struct {
	mu    sync.Mutex
	fs    *fsnotify.Watcher
	dirs  map[string]bool
	files map[string]bool

	removed chan string
	done    chan struct{}
	wg      sync.WaitGroup
}

// New starts a watcher.
func New() (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, errors.Wrap(err, "failed to create file watcher")
	}
	w := &Watcher{
		fs:      fw,
		dirs:    make(map[string]bool),
		files:   make(map[string]bool),
		removed: make(chan string),
		done:    make(chan struct{}),
	}
	w.wg.Add(1)
	go w.loop()
	return w, nil
}

// Add starts tracking path. Its directory is watched on first use.
func (w *Watcher) Add(path string) error {
	path = filepath.Clean(path)
	dir := filepath.Dir(path)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.dirs[dir] {
		if err := w.fs.Add(dir); err != nil {
			return errors.Wrapf(err, "failed to watch %s", dir)
		}
		w.dirs[dir] = true
		zlog.Debug().Msgf("watch: watching dir=%s", dir)
	}
	w.files[path] = true
	return nil
}

// Removed delivers paths of tracked files that went away.
func (w *Watcher) Removed() <-chan string {
	return w.removed
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	select {
	case <-w.done:
		return nil
	default:
	}
	close(w.done)
	err := w.fs.Close()
	w.wg.Wait()
	return err
}

func (w *Watcher) loop() {
	defer w.wg.Done()
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.fs.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Remove) && !event.Has(fsnotify.Rename) {
				continue
			}
			if !w.forget(event.Name) {
				continue
			}
			zlog.Debug().Msgf("watch: file gone path=%s op=%s", event.Name, event.Op)
			select {
			case w.removed <- event.Name:
			case <-w.done:
				return
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return
			}
			zlog.Warn().Msgf("watch: %v", err)
		}
	}
}

// forget stops tracking path and reports whether it was tracked.
func (w *Watcher) forget(path string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	path = filepath.Clean(path)
	if !w.files[path] {
		return false
	}
	delete(w.files, path)
	return true
}
