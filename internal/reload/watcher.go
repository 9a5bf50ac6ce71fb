// Package reload watches the served tree recursively with fsnotify and
// reports normalized change events.
package reload

import (
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"
)

// ChangeKind classifies a filesystem change.
type ChangeKind string

// Change kinds reported by a Watcher.
const (
	Created  ChangeKind = "created"
	Modified ChangeKind = "modified"
	Deleted  ChangeKind = "deleted"
	Renamed  ChangeKind = "renamed"
)

// WatchEvent is one change under the watched root.
type WatchEvent struct {
	Kind ChangeKind
	Path string
}

// Watcher is the watch primitive consumed by the Notifier. Both channels are
// closed once the watcher is closed.
type Watcher interface {
	Events() <-chan WatchEvent
	Errors() <-chan error
	Close() error
}

// DefaultIgnore lists the substrings that exclude a path from watching.
// Matching is on the path relative to the root, so ".git" also excludes
// ".github" and ".gitignore".
var DefaultIgnore = []string{"node_modules", ".git"}

// FSWatcher watches a directory tree recursively with fsnotify. Directories
// created after startup are added as they appear. Only changes made after
// NewFSWatcher returns are reported.
type FSWatcher struct {
	watcher   *fsnotify.Watcher
	root      string
	ignore    []string
	events    chan WatchEvent
	errors    chan error
	done      chan struct{}
	closeOnce sync.Once
	logger    *zap.Logger
}

// NewFSWatcher starts watching root, skipping paths that contain any of
// the ignore substrings below the root.
func NewFSWatcher(root string, ignore []string, logger *zap.Logger) (*FSWatcher, error) {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create watcher: %w", err)
	}

	fw := &FSWatcher{
		watcher: w,
		root:    root,
		ignore:  ignore,
		events:  make(chan WatchEvent),
		errors:  make(chan error),
		done:    make(chan struct{}),
		logger:  logger,
	}

	if err := fw.addTree(root); err != nil {
		_ = w.Close()
		return nil, err
	}

	go fw.loop()
	return fw, nil
}

// Events implements Watcher.
func (fw *FSWatcher) Events() <-chan WatchEvent { return fw.events }

// Errors implements Watcher.
func (fw *FSWatcher) Errors() <-chan error { return fw.errors }

// Close stops the watcher. It is safe to call more than once.
func (fw *FSWatcher) Close() error {
	var err error
	fw.closeOnce.Do(func() {
		close(fw.done)
		err = fw.watcher.Close()
	})
	return err
}

// addTree registers dir and every directory below it. Only a failure on dir
// itself is returned; unreadable subdirectories are logged and skipped.
func (fw *FSWatcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			fw.logger.Debug("Skipping unreadable directory", zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() {
				return fs.SkipDir
			}
			return nil
		}

		if !d.IsDir() {
			return nil
		}
		if path != fw.root && fw.ignored(path) {
			return fs.SkipDir
		}

		if err := fw.watcher.Add(path); err != nil {
			if path == dir {
				return fmt.Errorf("watch %s: %w", path, err)
			}
			fw.logger.Warn("Failed to watch directory", zap.String("path", path), zap.Error(err))
		}
		return nil
	})
}

// ignored reports whether the path below the root contains an ignore
// substring.
func (fw *FSWatcher) ignored(path string) bool {
	rel, err := filepath.Rel(fw.root, path)
	if err != nil || rel == "." {
		return false
	}
	rel = filepath.ToSlash(rel)
	for _, pattern := range fw.ignore {
		if strings.Contains(rel, pattern) {
			return true
		}
	}
	return false
}

func (fw *FSWatcher) loop() {
	defer close(fw.events)
	defer close(fw.errors)

	for {
		select {
		case ev, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			fw.handle(ev)

		case err, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
			select {
			case fw.errors <- err:
			case <-fw.done:
				return
			}

		case <-fw.done:
			return
		}
	}
}

func (fw *FSWatcher) handle(ev fsnotify.Event) {
	if fw.ignored(ev.Name) {
		return
	}

	var kind ChangeKind
	switch {
	case ev.Has(fsnotify.Create):
		kind = Created
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := fw.addTree(ev.Name); err != nil {
				fw.logger.Warn("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	case ev.Has(fsnotify.Remove):
		kind = Deleted
	case ev.Has(fsnotify.Rename):
		kind = Renamed
	case ev.Has(fsnotify.Write):
		kind = Modified
	default:
		// Chmod alone does not change content.
		return
	}

	select {
	case fw.events <- WatchEvent{Kind: kind, Path: ev.Name}:
	case <-fw.done:
	}
}
