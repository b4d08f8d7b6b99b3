package knowledge

import (
	"fmt"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"

	"quenito/internal/logging"
)

// Watcher reloads persona and question patterns when the knowledge file is
// edited outside the process. The store's own saves are invisible to the
// reload path because ReloadExternal only replaces hand-editable sections.
type Watcher struct {
	store   Watched
	fsw     *fsnotify.Watcher
	done    chan struct{}
	stopped chan struct{}
}

// Watched is the subset of Store the watcher needs; tests substitute fakes.
type Watched interface {
	Path() string
	ReloadExternal() error
}

// Watch starts a background goroutine reloading the store on file changes.
// The parent directory is watched rather than the file itself so editors that
// replace the file (write temp + rename) are still seen.
func Watch(store Watched) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create file watcher: %w", err)
	}

	dir := filepath.Dir(store.Path())
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", dir, err)
	}

	w := &Watcher{
		store:   store,
		fsw:     fsw,
		done:    make(chan struct{}),
		stopped: make(chan struct{}),
	}
	go w.loop()
	logging.Knowledge("watching %s for external edits", store.Path())
	return w, nil
}

func (w *Watcher) loop() {
	defer close(w.stopped)

	target := filepath.Clean(w.store.Path())
	// Debounce: editors fire several events per save.
	var pending *time.Timer
	reload := make(chan struct{}, 1)

	for {
		select {
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != target {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			if pending != nil {
				pending.Stop()
			}
			pending = time.AfterFunc(250*time.Millisecond, func() {
				select {
				case reload <- struct{}{}:
				default:
				}
			})

		case <-reload:
			if err := w.store.ReloadExternal(); err != nil {
				logging.KnowledgeWarn("external edit not applied: %v", err)
			}

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return
			}
			logging.KnowledgeWarn("file watcher error: %v", err)

		case <-w.done:
			if pending != nil {
				pending.Stop()
			}
			return
		}
	}
}

// Close stops the watcher and waits for its goroutine to exit.
func (w *Watcher) Close() error {
	close(w.done)
	err := w.fsw.Close()
	<-w.stopped
	return err
}
