package manifest

import (
	"fmt"
	"log"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher reloads a manifest file whenever it changes on disk, so a
// running fleet can pick up composition changes without a restart.
type Watcher struct {
	path    string
	watcher *fsnotify.Watcher
	updates chan *Manifest
	done    chan struct{}
}

// Watch starts watching the manifest at path. Updates that fail to
// parse or validate are logged and skipped; the previous composition
// stays in effect.
func Watch(path string) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch manifest: %w", err)
	}

	// Watch the directory, not the file: editors replace files on save,
	// which drops a direct file watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, fmt.Errorf("watch manifest dir: %w", err)
	}

	w := &Watcher{
		path:    path,
		watcher: fw,
		updates: make(chan *Manifest, 1),
		done:    make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Updates delivers each successfully reloaded manifest.
func (w *Watcher) Updates() <-chan *Manifest {
	return w.updates
}

func (w *Watcher) run() {
	defer close(w.updates)

	base := filepath.Base(w.path)
	for {
		select {
		case <-w.done:
			return
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Base(event.Name) != base {
				continue
			}
			if event.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}

			m, err := Load(w.path)
			if err != nil {
				log.Printf("[manifest] reload skipped: %v", err)
				continue
			}

			// Coalesce: replace a pending update the consumer has not
			// taken yet.
			select {
			case w.updates <- m:
			default:
				select {
				case <-w.updates:
				default:
				}
				w.updates <- m
			}
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			log.Printf("[manifest] watch error: %v", err)
		}
	}
}

// Close stops the watcher.
func (w *Watcher) Close() error {
	close(w.done)
	return w.watcher.Close()
}
