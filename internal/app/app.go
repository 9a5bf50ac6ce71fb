// Package app wires the devserve components together and owns their
// lifecycle: binding the listeners, running the reload pipeline and shutting
// everything down when the context ends.
package app

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"time"

	"github.com/Tyrowin/devserve/internal/config"
	"github.com/Tyrowin/devserve/internal/reload"
	"github.com/Tyrowin/devserve/internal/server"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

const shutdownTimeout = 2 * time.Second

// App is a configured devserve instance.
type App struct {
	cfg          *config.Config
	logger       *zap.Logger
	httpServer   *http.Server
	reloadServer *http.Server
	hub          *reload.Hub
	ready        chan struct{}
}

// New builds an App for cfg without binding anything.
func New(cfg *config.Config, logger *zap.Logger) *App {
	a := &App{
		cfg:        cfg,
		logger:     logger,
		httpServer: server.CreateServer(cfg.Address(), server.SetupRoutes(cfg, logger)),
		ready:      make(chan struct{}),
	}

	if cfg.Reload {
		a.hub = reload.NewHub(logger.Named("reload"))
		origins := reload.NewOriginPolicy(cfg.AllowedOrigins, logger)
		a.reloadServer = server.CreateServer(cfg.ReloadAddress(),
			reload.NewHandler(a.hub, origins, logger.Named("reload")))
	}

	return a
}

// Ready is closed once the listeners are bound and the watcher is running.
func (a *App) Ready() <-chan struct{} {
	return a.ready
}

// Run binds the listeners and serves until ctx is done or a component fails.
// A cancelled ctx is a clean exit and returns nil.
func (a *App) Run(ctx context.Context) error {
	httpLn, err := net.Listen("tcp", a.cfg.Address())
	if err != nil {
		return fmt.Errorf("listen on %s: %w", a.cfg.Address(), err)
	}

	var (
		reloadLn net.Listener
		watcher  reload.Watcher
	)
	if a.cfg.Reload {
		reloadLn, err = net.Listen("tcp", a.cfg.ReloadAddress())
		if err != nil {
			_ = httpLn.Close()
			return fmt.Errorf("listen on %s: %w", a.cfg.ReloadAddress(), err)
		}

		watcher, err = reload.NewFSWatcher(a.cfg.Root, reload.DefaultIgnore, a.logger.Named("watcher"))
		if err != nil {
			_ = httpLn.Close()
			_ = reloadLn.Close()
			return fmt.Errorf("watch %s: %w", a.cfg.Root, err)
		}
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return server.StartServer(a.httpServer, httpLn, a.logger)
	})

	if a.cfg.Reload {
		notifier := reload.NewNotifier(a.cfg.Root, watcher, a.hub, a.logger.Named("watcher"))
		g.Go(func() error {
			a.hub.Run()
			return nil
		})
		g.Go(func() error {
			return server.StartServer(a.reloadServer, reloadLn, a.logger)
		})
		g.Go(func() error {
			return notifier.Run(gctx)
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		return a.shutdown(watcher)
	})

	a.logStartup()
	close(a.ready)

	if err := g.Wait(); err != nil && !errors.Is(err, context.Canceled) {
		return err
	}
	return nil
}

func (a *App) logStartup() {
	a.logger.Info(fmt.Sprintf("Serving %s at http://%s/", a.cfg.Root, a.cfg.Address()))
	if a.cfg.Reload {
		a.logger.Info(fmt.Sprintf("WebSocket live-reload on ws://%s/", a.cfg.ReloadAddress()))
	} else {
		a.logger.Info("Live reload disabled")
	}
}

// shutdown closes the watcher and both listeners, then the reload clients.
// In-flight requests get shutdownTimeout to finish.
func (a *App) shutdown(watcher reload.Watcher) error {
	a.logger.Info("Shutting down")

	var errs []error
	if watcher != nil {
		if err := watcher.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close watcher: %w", err))
		}
	}
	if err := server.ShutdownServer(a.httpServer, shutdownTimeout, a.logger); err != nil {
		errs = append(errs, fmt.Errorf("close http listener: %w", err))
	}
	if a.reloadServer != nil {
		if err := server.ShutdownServer(a.reloadServer, shutdownTimeout, a.logger); err != nil {
			errs = append(errs, fmt.Errorf("close reload listener: %w", err))
		}
		if err := a.hub.Shutdown(shutdownTimeout); err != nil {
			errs = append(errs, fmt.Errorf("close reload clients: %w", err))
		}
	}
	return errors.Join(errs...)
}
