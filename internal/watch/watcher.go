// Package watch turns filesystem changes into task reruns: the Watcher maps
// fsnotify events onto bindings and queues them, the Dispatcher drains the
// queue, debounces and coalesces runs per binding.
package watch

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/fsnotify/fsnotify"

	"git.home.luguber.info/inful/assetpipe/internal/asset"
	"git.home.luguber.info/inful/assetpipe/internal/logfields"
	"git.home.luguber.info/inful/assetpipe/internal/task"
)

// Binding reruns Task whenever a file matching Patterns changes. Patterns
// are project-root relative globs; "!" excludes.
type Binding struct {
	Name     string
	Patterns []string
	Task     task.Task
}

// Event is a change matched to a binding. Path is project-root relative.
type Event struct {
	Binding string
	Path    string
	Op      fsnotify.Op
}

// Watcher observes the directories holding the bindings' glob bases.
type Watcher struct {
	root     string
	skip     []string
	bindings []Binding
	fsw      *fsnotify.Watcher
	events   chan Event
	logger   *slog.Logger
}

// WatcherOption configures a Watcher.
type WatcherOption func(*Watcher)

// WithLogger sets the watcher logger.
func WithLogger(l *slog.Logger) WatcherOption {
	return func(w *Watcher) {
		if l != nil {
			w.logger = l
		}
	}
}

// WithSkipDirs excludes absolute directories (typically the output root)
// from being watched.
func WithSkipDirs(dirs ...string) WatcherOption {
	return func(w *Watcher) { w.skip = append(w.skip, dirs...) }
}

// NewWatcher starts watching root for the given bindings. A binding whose
// base directory does not exist yet is covered through its nearest existing
// parent, so creating the directory later is noticed.
func NewWatcher(root string, bindings []Binding, opts ...WatcherOption) (*Watcher, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, err
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("fsnotify: %w", err)
	}
	w := &Watcher{
		root:     abs,
		bindings: bindings,
		fsw:      fsw,
		events:   make(chan Event, 256),
		logger:   slog.Default(),
	}
	for _, o := range opts {
		o(w)
	}
	for _, dir := range w.watchDirs() {
		if err := w.addDirsRecursive(dir); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

// Events is the change queue. It is closed when Run returns.
func (w *Watcher) Events() <-chan Event { return w.events }

// Run forwards matching filesystem events to the queue until ctx is done.
func (w *Watcher) Run(ctx context.Context) error {
	defer close(w.events)
	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-w.fsw.Events:
			if !ok {
				return nil
			}
			w.handle(ctx, ev)
		case err, ok := <-w.fsw.Errors:
			if !ok {
				return nil
			}
			w.logger.Warn("Watcher error", logfields.Error(err))
		}
	}
}

// Close stops the underlying fsnotify watcher.
func (w *Watcher) Close() error { return w.fsw.Close() }

// Match returns the names of the bindings selecting the project-relative
// slash path rel.
func (w *Watcher) Match(rel string) []string {
	var names []string
	for _, b := range w.bindings {
		if asset.Match(b.Patterns, rel) {
			names = append(names, b.Name)
		}
	}
	return names
}

func (w *Watcher) handle(ctx context.Context, ev fsnotify.Event) {
	if shouldIgnoreEvent(ev.Name) || w.skipped(ev.Name) {
		return
	}
	if ev.Op&fsnotify.Create == fsnotify.Create {
		if fi, err := os.Stat(ev.Name); err == nil && fi.IsDir() {
			_ = w.addDirsRecursive(ev.Name)
			return
		}
	}
	if ev.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
		return
	}
	rel, err := filepath.Rel(w.root, ev.Name)
	if err != nil || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)
	for _, name := range w.Match(rel) {
		w.logger.Debug("File change detected", logfields.Binding(name), logfields.Path(rel), logfields.Op(ev.Op.String()))
		select {
		case w.events <- Event{Binding: name, Path: rel, Op: ev.Op}:
		case <-ctx.Done():
			return
		}
	}
}

// watchDirs returns the nearest existing directory of every glob base.
func (w *Watcher) watchDirs() []string {
	seen := map[string]bool{}
	var dirs []string
	for _, b := range w.bindings {
		for _, p := range b.Patterns {
			if strings.HasPrefix(p, "!") {
				continue
			}
			dir := filepath.Join(w.root, filepath.FromSlash(asset.Base(p)))
			for {
				if fi, err := os.Stat(dir); err == nil && fi.IsDir() {
					break
				}
				if dir == w.root || !strings.HasPrefix(dir, w.root) {
					dir = w.root
					break
				}
				dir = filepath.Dir(dir)
			}
			if !seen[dir] {
				seen[dir] = true
				dirs = append(dirs, dir)
			}
		}
	}
	return dirs
}

func (w *Watcher) skipped(p string) bool {
	for _, s := range w.skip {
		if p == s || strings.HasPrefix(p, s+string(filepath.Separator)) {
			return true
		}
	}
	return false
}

func (w *Watcher) addDirsRecursive(root string) error {
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			if path == root && errors.Is(err, os.ErrNotExist) {
				return err
			}
			return nil
		}
		if !d.IsDir() {
			return nil
		}
		if path != root && (strings.HasPrefix(d.Name(), ".") || w.skipped(path)) {
			return filepath.SkipDir
		}
		if err := w.fsw.Add(path); err != nil {
			w.logger.Warn("Watch add failed", logfields.Path(path), logfields.Error(err))
		}
		return nil
	})
}

// shouldIgnoreEvent returns true for filesystem events that should not trigger rebuilds.
func shouldIgnoreEvent(path string) bool {
	base := filepath.Base(path)

	// Hidden files, which also covers our own atomic-write temp files.
	if strings.HasPrefix(base, ".") {
		return true
	}

	// Editor temp/swap files
	if strings.HasSuffix(base, "~") ||
		strings.HasSuffix(base, ".swp") ||
		strings.HasSuffix(base, ".swx") ||
		strings.HasPrefix(base, "#") && strings.HasSuffix(base, "#") {
		return true
	}

	return base == "Thumbs.db" || base == "4913"
}
