// Package watcher reports changes to project config files so the workspace
// can be reloaded.
package watcher

import (
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// EventType represents the type of file system event
type EventType int

const (
	EventCreate EventType = iota
	EventModify
	EventDelete
	EventRename
)

// Event represents a file system event
type Event struct {
	Type      EventType
	Path      string
	Timestamp time.Time
}

// String returns a string representation of the event type
func (e EventType) String() string {
	switch e {
	case EventCreate:
		return "create"
	case EventModify:
		return "modify"
	case EventDelete:
		return "delete"
	case EventRename:
		return "rename"
	default:
		return "unknown"
	}
}

// ChangeHandler is called with a debounced batch of changes.
type ChangeHandler func(events []Event)

// Config contains watcher configuration
type Config struct {
	Enabled    bool
	DebounceMs int
	// Files are the base names that matter; events for other files in the
	// watched directories are dropped.
	Files []string
}

// Watcher watches directories for changes to named files. Directories are
// watched rather than files so editors that save by rename are seen.
type Watcher struct {
	config  Config
	logger  *zap.Logger
	handler ChangeHandler
	batch   *BatchDebouncer

	mu      sync.Mutex
	fs      *fsnotify.Watcher
	dirs    []string
	stopCh  chan struct{}
	wg      sync.WaitGroup
	running bool
}

// New creates a watcher. Nothing is watched until Start.
func New(config Config, logger *zap.Logger, handler ChangeHandler) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	w := &Watcher{config: config, logger: logger, handler: handler}
	delay := time.Duration(config.DebounceMs) * time.Millisecond
	w.batch = NewBatchDebouncer(delay, w.deliver)
	return w
}

// Start watches dirs. Directories that do not exist are skipped.
func (w *Watcher) Start(dirs ...string) error {
	if !w.config.Enabled {
		w.logger.Info("config watcher is disabled")
		return nil
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.running {
		return nil
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	for _, dir := range dirs {
		if dir == "" {
			continue
		}
		if info, err := os.Stat(dir); err != nil || !info.IsDir() {
			w.logger.Debug("skipping watch of missing directory", zap.String("dir", dir))
			continue
		}
		if err := fsw.Add(dir); err != nil {
			w.logger.Warn("failed to watch directory", zap.String("dir", dir), zap.Error(err))
			continue
		}
		w.dirs = append(w.dirs, dir)
	}

	w.fs = fsw
	w.stopCh = make(chan struct{})
	w.running = true
	w.wg.Add(1)
	go w.run(fsw, w.stopCh)

	w.logger.Info("watching config files",
		zap.Strings("dirs", w.dirs),
		zap.Int("debounceMs", w.config.DebounceMs))
	return nil
}

// Stop stops watching and drops pending events.
func (w *Watcher) Stop() error {
	w.mu.Lock()
	if !w.running {
		w.mu.Unlock()
		return nil
	}
	w.running = false
	close(w.stopCh)
	fsw := w.fs
	w.mu.Unlock()

	w.wg.Wait()
	w.batch.Stop()
	return fsw.Close()
}

// Dirs returns the directories being watched.
func (w *Watcher) Dirs() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}

func (w *Watcher) run(fsw *fsnotify.Watcher, stop <-chan struct{}) {
	defer w.wg.Done()
	for {
		select {
		case <-stop:
			return
		case ev, ok := <-fsw.Events:
			if !ok {
				return
			}
			w.handleEvent(ev)
		case err, ok := <-fsw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handleEvent(ev fsnotify.Event) {
	if !w.Relevant(ev.Name) {
		return
	}
	var typ EventType
	switch {
	case ev.Op&fsnotify.Create != 0:
		typ = EventCreate
	case ev.Op&fsnotify.Write != 0:
		typ = EventModify
	case ev.Op&fsnotify.Remove != 0:
		typ = EventDelete
	case ev.Op&fsnotify.Rename != 0:
		typ = EventRename
	default:
		return
	}
	w.logger.Debug("config file changed", zap.String("path", ev.Name), zap.Stringer("type", typ))
	w.batch.Add(Event{Type: typ, Path: ev.Name, Timestamp: time.Now()})
}

// Relevant reports whether path names one of the watched files.
func (w *Watcher) Relevant(path string) bool {
	base := filepath.Base(path)
	for _, f := range w.config.Files {
		if f == base {
			return true
		}
	}
	return false
}

func (w *Watcher) deliver(events []Event) {
	if w.handler != nil {
		w.handler(events)
	}
}
