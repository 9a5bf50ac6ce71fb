// Package app runs the fail-fast startup checks for the features a
// configuration enables.
package app

import (
	"errors"
	"fmt"

	"github.com/Tyrowin/devserve/internal/config"
	"github.com/Tyrowin/devserve/internal/server"

	"github.com/fsnotify/fsnotify"
)

// ErrCapabilityMissing is returned when a required runtime capability is not
// available on this host.
var ErrCapabilityMissing = errors.New("required capability missing")

// Capability is one startup check.
type Capability struct {
	Name  string
	Check func() error
}

// Capabilities lists the checks required by cfg. File watching and the push
// channel are only required when reload is enabled.
func Capabilities(cfg *config.Config) []Capability {
	caps := []Capability{
		{Name: "content-type resolution", Check: checkContentTypes},
	}
	if cfg.Reload {
		caps = append(caps,
			Capability{Name: "file watching", Check: checkFileWatching},
			Capability{Name: "push channel", Check: func() error { return checkPushChannel(cfg) }},
		)
	}
	return caps
}

// CheckCapabilities runs every check and returns the first failure. No socket
// is bound.
func CheckCapabilities(caps []Capability) error {
	for _, c := range caps {
		if err := c.Check(); err != nil {
			return fmt.Errorf("%w: %s: %w", ErrCapabilityMissing, c.Name, err)
		}
	}
	return nil
}

func checkContentTypes() error {
	if got := server.ContentType("index.html"); got != server.HTMLContentType {
		return fmt.Errorf("index.html resolves to %q", got)
	}
	return nil
}

func checkFileWatching() error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	return w.Close()
}

func checkPushChannel(cfg *config.Config) error {
	if port := cfg.ReloadPort(); port < 1 || port > 65535 {
		return fmt.Errorf("port %d is out of range", port)
	}
	return nil
}
