package runner

import (
	"errors"
	"fmt"
	"path/filepath"
	"sort"
	"sync"

	"github.com/fsnotify/fsnotify"
)

// Watcher watches scripts and the files they touched for changes.
//
// Dependencies come from a previous run (loaded modules and read_file
// inputs), so a TOML document read by a script triggers a rerun the same
// way an edited load() target does.
type Watcher struct {
	mu sync.RWMutex

	fsWatcher *fsnotify.Watcher

	// scripts is the set of watched scripts.
	scripts map[string]bool

	// dependents maps a file to the scripts that depend on it.
	dependents map[string]map[string]bool

	// deps maps a script to the files it depended on in its last run.
	deps map[string][]string

	// Events receives change notifications.
	Events chan WatchEvent

	// Errors receives watcher errors.
	Errors chan error

	done chan struct{}
}

// WatchEvent represents a file change.
type WatchEvent struct {
	// File is the file that changed.
	File string

	// Op is the filesystem operation.
	Op fsnotify.Op

	// Affected lists the scripts to rerun, sorted.
	Affected []string
}

// NewWatcher creates a watcher and starts processing events.
func NewWatcher() (*Watcher, error) {
	fsWatcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("creating watcher: %w", err)
	}

	w := &Watcher{
		fsWatcher:  fsWatcher,
		scripts:    make(map[string]bool),
		dependents: make(map[string]map[string]bool),
		deps:       make(map[string][]string),
		Events:     make(chan WatchEvent, 100),
		Errors:     make(chan error, 10),
		done:       make(chan struct{}),
	}
	go w.run()
	return w, nil
}

// Track records the files result depended on and watches them along with
// the script. Calling Track again for the same script replaces its
// dependencies.
func (w *Watcher) Track(result *Result) error {
	return w.Add(result.File, result.Dependencies()...)
}

// Add watches script and deps.
func (w *Watcher) Add(script string, deps ...string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(script)
	if err != nil {
		return fmt.Errorf("getting absolute path: %w", err)
	}

	if !w.scripts[absPath] {
		if err := w.fsWatcher.Add(absPath); err != nil {
			return fmt.Errorf("watching %s: %w", absPath, err)
		}
		w.scripts[absPath] = true
	}

	for _, dep := range w.deps[absPath] {
		delete(w.dependents[dep], absPath)
	}

	tracked := make([]string, 0, len(deps))
	for _, dep := range deps {
		depPath, err := filepath.Abs(dep)
		if err != nil {
			continue
		}
		if w.dependents[depPath] == nil {
			w.dependents[depPath] = make(map[string]bool)
		}
		w.dependents[depPath][absPath] = true
		tracked = append(tracked, depPath)

		// A missing dependency is retried on the next Track.
		_ = w.fsWatcher.Add(depPath)
	}
	w.deps[absPath] = tracked
	return nil
}

// Remove stops watching script. A script whose file is already gone is
// forgotten without error.
func (w *Watcher) Remove(script string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	absPath, err := filepath.Abs(script)
	if err != nil {
		return err
	}

	delete(w.scripts, absPath)
	for _, dep := range w.deps[absPath] {
		delete(w.dependents[dep], absPath)
	}
	delete(w.deps, absPath)
	if err := w.fsWatcher.Remove(absPath); err != nil && !errors.Is(err, fsnotify.ErrNonExistentWatch) {
		return err
	}
	return nil
}

// Close stops the watcher and releases resources.
func (w *Watcher) Close() error {
	close(w.done)
	return w.fsWatcher.Close()
}

// WatchedScripts returns the watched scripts, sorted.
func (w *Watcher) WatchedScripts() []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	files := make([]string, 0, len(w.scripts))
	for f := range w.scripts {
		files = append(files, f)
	}
	sort.Strings(files)
	return files
}

// Affected returns the scripts affected by a change to file, sorted.
func (w *Watcher) Affected(file string) []string {
	w.mu.RLock()
	defer w.mu.RUnlock()

	absPath, _ := filepath.Abs(file)
	return w.affectedLocked(absPath)
}

func (w *Watcher) affectedLocked(absPath string) []string {
	seen := make(map[string]bool)
	if w.scripts[absPath] {
		seen[absPath] = true
	}
	for script := range w.dependents[absPath] {
		seen[script] = true
	}

	affected := make([]string, 0, len(seen))
	for script := range seen {
		affected = append(affected, script)
	}
	sort.Strings(affected)
	return affected
}

func (w *Watcher) run() {
	for {
		select {
		case <-w.done:
			return

		case event, ok := <-w.fsWatcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			w.handleEvent(event)

		case err, ok := <-w.fsWatcher.Errors:
			if !ok {
				return
			}
			select {
			case w.Errors <- err:
			default:
			}
		}
	}
}

func (w *Watcher) handleEvent(event fsnotify.Event) {
	w.mu.RLock()
	absPath, _ := filepath.Abs(event.Name)
	affected := w.affectedLocked(absPath)
	w.mu.RUnlock()

	if len(affected) == 0 {
		return
	}
	select {
	case w.Events <- WatchEvent{File: absPath, Op: event.Op, Affected: affected}:
	case <-w.done:
	}
}
