// Package server resolves request paths against the served root and routes
// them to the listing, a file, a directory index or a 404.
package server

import (
	"net/http"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/Tyrowin/devserve/internal/config"

	"go.uber.org/zap"
)

// Handler routes requests to the root listing, a file, a directory's
// index.html, or a 404, in that order.
type Handler struct {
	cfg     *config.Config
	logger  *zap.Logger
	snippet []byte
}

// NewHandler creates a Handler serving cfg.Root.
func NewHandler(cfg *config.Config, logger *zap.Logger) *Handler {
	return &Handler{
		cfg:     cfg,
		logger:  logger,
		snippet: ReloadSnippet(cfg.Host, cfg.ReloadPort()),
	}
}

// SetupRoutes returns the complete request handler for the HTTP listener,
// wrapped in request logging. Paths are not canonicalized by redirect;
// resolve cleans them before the lookup.
func SetupRoutes(cfg *config.Config, logger *zap.Logger) http.Handler {
	return RequestLogger(logger, NewHandler(cfg, logger))
}

// ServeHTTP implements http.Handler.
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path == "/" {
		h.serveRootIndex(w)
		return
	}

	candidate, ok := h.resolve(r.URL)
	if !ok {
		NotFound(w)
		return
	}

	if isRegularFile(candidate) {
		h.ServeFile(w, candidate)
		return
	}

	if index := filepath.Join(candidate, indexFileName); isRegularFile(index) {
		h.ServeFile(w, index)
		return
	}

	NotFound(w)
}

func (h *Handler) serveRootIndex(w http.ResponseWriter) {
	entries := FindIndexFiles(h.cfg.Root, h.logger)
	body, err := RenderRootIndex(h.cfg.Root, h.cfg.Address(), entries)
	if err != nil {
		h.logger.Error("Failed to render root index", zap.Error(err))
		http.Error(w, "Internal Server Error", http.StatusInternalServerError)
		return
	}
	h.writeBody(w, HTMLContentType, body)
}

// resolve decodes the request path and maps it below the root. It reports
// false for malformed escapes and for anything that lands outside the root.
func (h *Handler) resolve(u *url.URL) (string, bool) {
	decoded, err := decodePath(u)
	if err != nil {
		h.logger.Debug("Rejecting malformed request path", zap.String("path", u.RawPath), zap.Error(err))
		return "", false
	}

	cleaned := path.Clean("/" + decoded)
	candidate := filepath.Join(h.cfg.Root, filepath.FromSlash(cleaned))
	if !withinRoot(h.cfg.Root, candidate) {
		return "", false
	}
	return candidate, true
}

// decodePath returns the decoded request path. net/http has already decoded
// Path; RawPath is only set when the original encoding differs and is decoded
// here so malformed escapes surface as errors.
func decodePath(u *url.URL) (string, error) {
	if u.RawPath == "" {
		return u.Path, nil
	}
	return url.PathUnescape(u.RawPath)
}

func withinRoot(root, candidate string) bool {
	rel, err := filepath.Rel(root, candidate)
	if err != nil {
		return false
	}
	return rel != ".." && !strings.HasPrefix(rel, ".."+string(filepath.Separator))
}

func isRegularFile(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.Mode().IsRegular()
}
