package watch

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"extinguisher_map/internal/loader"
)

// Watcher monitors local source files and calls their handlers once a
// burst of changes has settled.
type Watcher struct {
	debounce time.Duration
	logger   *zap.Logger

	mu      sync.Mutex
	targets map[string]*target
	dirs    []string
}

type target struct {
	handlers []func()
	timer    *time.Timer
}

func New(debounce time.Duration, logger *zap.Logger) *Watcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Watcher{debounce: debounce, logger: logger, targets: make(map[string]*target)}
}

// Watch registers onChange for location. Remote and empty locations are
// ignored and reported as false.
func (w *Watcher) Watch(location string, onChange func()) bool {
	if strings.TrimSpace(location) == "" {
		return false
	}
	path, ok := loader.LocalPath(location)
	if !ok {
		w.logger.Info("not watching remote source", zap.String("location", location))
		return false
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		w.logger.Warn("cannot resolve watch path", zap.String("location", location), zap.Error(err))
		return false
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.targets[abs]
	if !ok {
		t = &target{}
		w.targets[abs] = t
	}
	t.handlers = append(t.handlers, onChange)
	return true
}

// Start watches the parent directory of every registered file. Directories
// are watched rather than files so atomic replace-by-rename is seen.
func (w *Watcher) Start(ctx context.Context) error {
	w.mu.Lock()
	dirs := make(map[string]struct{})
	for path := range w.targets {
		dirs[filepath.Dir(path)] = struct{}{}
	}
	w.mu.Unlock()
	if len(dirs) == 0 {
		w.logger.Info("watcher has no local sources")
		return nil
	}

	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create fsnotify watcher: %w", err)
	}
	watched := 0
	for dir := range dirs {
		if err := fw.Add(dir); err != nil {
			w.logger.Warn("cannot watch source directory, changes will not reload", zap.String("dir", dir), zap.Error(err))
			continue
		}
		watched++
		w.mu.Lock()
		w.dirs = append(w.dirs, dir)
		w.mu.Unlock()
		w.logger.Info("watching source directory", zap.String("dir", dir))
	}
	if watched == 0 {
		return fw.Close()
	}
	go w.loop(ctx, fw)
	return nil
}

// Watching returns the directories currently watched.
func (w *Watcher) Watching() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.dirs...)
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer fw.Close()
	defer w.stopTimers()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-fw.Events:
			if !ok {
				return
			}
			if evt.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Rename) != 0 {
				w.schedule(evt.Name)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.logger.Warn("watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) schedule(name string) {
	abs, err := filepath.Abs(name)
	if err != nil {
		return
	}
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.targets[abs]
	if !ok {
		return
	}
	if t.timer != nil {
		t.timer.Stop()
	}
	handlers := t.handlers
	t.timer = time.AfterFunc(w.debounce, func() {
		w.logger.Info("source changed", zap.String("path", abs))
		for _, fn := range handlers {
			fn()
		}
	})
}

func (w *Watcher) stopTimers() {
	w.mu.Lock()
	defer w.mu.Unlock()
	for _, t := range w.targets {
		if t.timer != nil {
			t.timer.Stop()
		}
	}
}
