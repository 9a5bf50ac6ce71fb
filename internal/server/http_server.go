// Package server constructs, starts and stops the http.Server instances used
// by devserve on pre-bound listeners.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// CreateServer creates an HTTP server for addr and handler with the timeouts
// used by both devserve listeners.
func CreateServer(addr string, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// StartServer serves on an already bound listener and blocks until the server
// stops. A server stopped through ShutdownServer returns nil.
func StartServer(server *http.Server, ln net.Listener, logger *zap.Logger) error {
	logger.Debug("Listener started", zap.String("addr", ln.Addr().String()))
	if err := server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// ShutdownServer stops the server, waiting at most timeout for active
// requests before closing their connections.
func ShutdownServer(server *http.Server, timeout time.Duration, logger *zap.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Warn("Listener shutdown timed out, closing connections", zap.String("addr", server.Addr), zap.Error(err))
		return server.Close()
	}

	logger.Debug("Listener shutdown completed", zap.String("addr", server.Addr))
	return nil
}
