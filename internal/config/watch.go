package config

import (
	"log/slog"
	"path/filepath"

	"github.com/fsnotify/fsnotify"
)

// Watcher hot-reloads non-connection settings out of the config file
// directory (SPEC_FULL.md §2 "Configuration": "watched with fsnotify
// for hot-reload of non-connection settings").
type Watcher struct {
	path     string
	watcher  *fsnotify.Watcher
	onReload func(*Config)
}

// Watch starts watching path's directory for changes and invokes
// onReload with the freshly-loaded Config each time path itself
// changes. The returned Watcher must be closed by the caller.
func Watch(path string, onReload func(*Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	dir := filepath.Dir(path)
	if err := fsw.Add(dir); err != nil {
		fsw.Close()
		return nil, err
	}

	w := &Watcher{path: path, watcher: fsw, onReload: onReload}
	go w.loop()
	return w, nil
}

func (w *Watcher) loop() {
	target := filepath.Clean(w.path)
	for {
		select {
		case event, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(event.Name) != target {
				continue
			}
			if !(event.Op&(fsnotify.Write|fsnotify.Create) != 0) {
				continue
			}
			cfg, err := Load(w.path)
			if err != nil {
				slog.Warn("config hot-reload failed, keeping previous config", "path", w.path, "error", err)
				continue
			}
			slog.Info("config hot-reload applied", "path", w.path)
			w.onReload(cfg)
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			slog.Warn("config watcher error", "error", err)
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error {
	return w.watcher.Close()
}
