// Package reload turns relevant filesystem changes into reload broadcasts.
package reload

import (
	"context"
	"path/filepath"
	"strings"

	"go.uber.org/zap"
)

// DefaultExtensions lists the file extensions whose changes trigger a reload.
var DefaultExtensions = []string{".html", ".css", ".js"}

// Broadcaster delivers a payload to every connected reload client.
type Broadcaster interface {
	Broadcast(payload []byte) bool
}

// Notifier turns watch events into reload broadcasts.
type Notifier struct {
	root       string
	watcher    Watcher
	hub        Broadcaster
	extensions map[string]struct{}
	logger     *zap.Logger
}

// NewNotifier creates a Notifier reloading on DefaultExtensions.
func NewNotifier(root string, watcher Watcher, hub Broadcaster, logger *zap.Logger) *Notifier {
	n := &Notifier{
		root:       root,
		watcher:    watcher,
		hub:        hub,
		extensions: make(map[string]struct{}, len(DefaultExtensions)),
		logger:     logger,
	}
	for _, ext := range DefaultExtensions {
		n.extensions[ext] = struct{}{}
	}
	return n
}

// Run consumes watch events until ctx is done or the watcher closes.
func (n *Notifier) Run(ctx context.Context) error {
	events := n.watcher.Events()
	errs := n.watcher.Errors()

	for {
		select {
		case <-ctx.Done():
			return nil

		case ev, ok := <-events:
			if !ok {
				return nil
			}
			n.Handle(ev)

		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			n.logger.Warn("File watcher error", zap.Error(err))
		}
	}
}

// Handle broadcasts a reload for a relevant change and reports whether it did.
func (n *Notifier) Handle(ev WatchEvent) bool {
	rel, err := filepath.Rel(n.root, ev.Path)
	if err != nil {
		rel = ev.Path
	}
	rel = filepath.ToSlash(rel)

	if _, ok := n.extensions[strings.ToLower(filepath.Ext(ev.Path))]; !ok {
		n.logger.Debug("Ignoring change", zap.String("kind", string(ev.Kind)), zap.String("path", rel))
		return false
	}

	n.logger.Info(string(ev.Kind)+": "+rel, zap.String("kind", string(ev.Kind)), zap.String("path", rel))
	return n.hub.Broadcast(ReloadPayload)
}
