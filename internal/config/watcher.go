package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"

	"github.com/gatecode-ai/gatecode/internal/event"
	"github.com/gatecode-ai/gatecode/internal/logging"
)

// Watcher reloads a config file when it changes on disk and publishes
// config.updated so dependents can pick up the new values.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onReload func(*Config)
	stopCh   chan struct{}
	doneCh   chan struct{}
	mu       sync.Mutex
	started  bool
}

// NewWatcher creates a watcher for the given config file. onReload is called
// with the freshly loaded config after each successful reload.
func NewWatcher(path string, onReload func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory: editors replace files rather than writing in
	// place, which drops a watch on the file itself.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	return &Watcher{
		watcher:  fw,
		path:     path,
		onReload: onReload,
		stopCh:   make(chan struct{}),
		doneCh:   make(chan struct{}),
	}, nil
}

// Start begins watching in a background goroutine.
func (w *Watcher) Start() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.started {
		return
	}
	w.started = true
	go w.loop()
}

// Stop stops watching and waits for the loop to exit.
func (w *Watcher) Stop() {
	w.mu.Lock()
	if !w.started {
		w.mu.Unlock()
		w.watcher.Close()
		return
	}
	w.mu.Unlock()

	close(w.stopCh)
	<-w.doneCh
	w.watcher.Close()
}

func (w *Watcher) loop() {
	defer close(w.doneCh)

	for {
		select {
		case <-w.stopCh:
			return
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}
			w.reload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			logging.Warn().Err(err).Msg("config watcher error")
		}
	}
}

func (w *Watcher) reload() {
	cfg, err := LoadFile(w.path)
	if err != nil {
		logging.Warn().Str("path", w.path).Err(err).Msg("config reload failed, keeping previous")
		return
	}

	logging.Info().Str("path", w.path).Msg("config reloaded")
	if w.onReload != nil {
		w.onReload(cfg)
	}

	event.Publish(event.Event{
		Type: event.ConfigUpdated,
		Data: event.ConfigUpdatedData{Path: w.path},
	})
}
