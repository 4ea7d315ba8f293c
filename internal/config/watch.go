package config

import (
	"path/filepath"
	"sync"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/viper"
)

// Watcher reloads the configuration when the config file changes on disk
// and notifies a callback with the freshly validated Config. Reloads that
// fail validation are dropped; the previous configuration stays in effect.
type Watcher struct {
	watcher  *fsnotify.Watcher
	path     string
	onChange func(*Config)

	mu     sync.Mutex
	stopCh chan struct{}
	closed bool
}

// Watch starts watching the given config file. The callback runs on the
// watcher's goroutine for every successful reload.
func Watch(path string, onChange func(*Config)) (*Watcher, error) {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}

	// Watch the directory rather than the file itself: editors that
	// rename-and-replace would otherwise detach the watch.
	if err := fw.Add(filepath.Dir(path)); err != nil {
		fw.Close()
		return nil, err
	}

	w := &Watcher{
		watcher:  fw,
		path:     filepath.Clean(path),
		onChange: onChange,
		stopCh:   make(chan struct{}),
	}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create) == 0 {
				continue
			}
			if filepath.Clean(ev.Name) != w.path {
				continue
			}
			if err := viper.ReadInConfig(); err != nil {
				continue
			}
			cfg, err := Load()
			if err != nil {
				continue
			}
			w.onChange(cfg)

		case _, ok := <-w.watcher.Errors:
			if !ok {
				return
			}

		case <-w.stopCh:
			return
		}
	}
}

// Close stops watching. Safe to call more than once.
func (w *Watcher) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return nil
	}
	w.closed = true
	close(w.stopCh)
	return w.watcher.Close()
}
