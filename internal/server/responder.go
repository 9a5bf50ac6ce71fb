// Package server writes file responses, injecting the reload client into HTML,
// and the plain-text 404 body.
package server

import (
	"net/http"
	"os"
	"strconv"

	"go.uber.org/zap"
)

const notFoundBody = "404 Not Found"

// ServeFile writes the file at path as the response. Any read failure is
// answered with a plain-text 404.
func (h *Handler) ServeFile(w http.ResponseWriter, path string) {
	data, err := os.ReadFile(path)
	if err != nil {
		h.logger.Debug("Failed to read file", zap.String("path", path), zap.Error(err))
		NotFound(w)
		return
	}

	h.writeBody(w, ContentType(path), data)
}

// writeBody sends data with the given content type, injecting the reload
// snippet into HTML when reload is enabled.
func (h *Handler) writeBody(w http.ResponseWriter, contentType string, data []byte) {
	if h.cfg.Reload && contentType == HTMLContentType {
		data = InjectReloadClient(data, h.snippet)
	}

	w.Header().Set("Content-Type", HeaderValue(contentType))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		h.logger.Debug("Failed to write response body", zap.Error(err))
	}
}

// NotFound writes the plain-text 404 response.
func NotFound(w http.ResponseWriter) {
	w.Header().Set("Content-Type", HeaderValue(TextContentType))
	w.Header().Set("X-Content-Type-Options", "nosniff")
	w.WriteHeader(http.StatusNotFound)
	_, _ = w.Write([]byte(notFoundBody))
}
