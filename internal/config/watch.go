package config

import (
	"path/filepath"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/fsnotify/fsnotify"
)

// watchDebounce coalesces the event bursts editors produce when saving.
const watchDebounce = 200 * time.Millisecond

// Watcher reloads the configuration file on change and hands validated
// results to a callback. Invalid intermediate states (half-written
// files, bad values) are logged and skipped; the last good config
// stays in effect.
type Watcher struct {
	path    string
	onLoad  func(Config)
	logger  *log.Logger
	watcher *fsnotify.Watcher

	mu      sync.Mutex
	pending *time.Timer
	closed  bool
}

// Watch starts watching path's directory. Watching the directory
// rather than the file survives editors that replace on save.
func Watch(path string, logger *log.Logger, onLoad func(Config)) (*Watcher, error) {
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, err
	}
	if err := fsw.Add(filepath.Dir(path)); err != nil {
		fsw.Close()
		return nil, err
	}
	if logger == nil {
		logger = log.Default()
	}
	w := &Watcher{
		path:    path,
		onLoad:  onLoad,
		logger:  logger.With("component", "config.watch"),
		watcher: fsw,
	}
	go w.run()
	return w, nil
}

// Close stops watching.
func (w *Watcher) Close() error {
	w.mu.Lock()
	w.closed = true
	if w.pending != nil {
		w.pending.Stop()
	}
	w.mu.Unlock()
	return w.watcher.Close()
}

func (w *Watcher) run() {
	for {
		select {
		case ev, ok := <-w.watcher.Events:
			if !ok {
				return
			}
			if filepath.Clean(ev.Name) != filepath.Clean(w.path) {
				continue
			}
			if ev.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) == 0 {
				continue
			}
			w.scheduleReload()
		case err, ok := <-w.watcher.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watch error", "err", err)
		}
	}
}

func (w *Watcher) scheduleReload() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.closed {
		return
	}
	if w.pending != nil {
		w.pending.Stop()
	}
	w.pending = time.AfterFunc(watchDebounce, w.reload)
}

func (w *Watcher) reload() {
	cfg, err := Load(w.path)
	if err != nil {
		w.logger.Warn("reload skipped", "path", w.path, "err", err)
		return
	}
	w.logger.Info("configuration reloaded", "path", w.path)
	w.onLoad(cfg)
}
