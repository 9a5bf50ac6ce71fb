// Package server maps file extensions to Content-Type values and marks the
// textual types that are served with a UTF-8 charset.
package server

import (
	"mime"
	"path/filepath"
	"strings"
)

// Content types the handler treats specially.
const (
	DefaultContentType = "application/octet-stream"
	HTMLContentType    = "text/html"
	TextContentType    = "text/plain"
)

// builtinTypes covers the assets a front-end tree usually holds so results do
// not depend on the host's mime.types files.
var builtinTypes = map[string]string{
	".html":  "text/html",
	".htm":   "text/html",
	".css":   "text/css",
	".js":    "text/javascript",
	".mjs":   "text/javascript",
	".json":  "application/json",
	".map":   "application/json",
	".txt":   "text/plain",
	".md":    "text/markdown",
	".csv":   "text/csv",
	".xml":   "text/xml",
	".svg":   "image/svg+xml",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".webp":  "image/webp",
	".avif":  "image/avif",
	".ico":   "image/x-icon",
	".woff":  "font/woff",
	".woff2": "font/woff2",
	".ttf":   "font/ttf",
	".otf":   "font/otf",
	".wasm":  "application/wasm",
	".pdf":   "application/pdf",
	".mp3":   "audio/mpeg",
	".mp4":   "video/mp4",
	".webm":  "video/webm",
}

// ContentType maps a file path's extension to a MIME type without
// parameters. Unknown extensions resolve to DefaultContentType.
func ContentType(path string) string {
	ext := strings.ToLower(filepath.Ext(path))
	if ext == "" {
		return DefaultContentType
	}

	if t, ok := builtinTypes[ext]; ok {
		return t
	}

	if t := mime.TypeByExtension(ext); t != "" {
		if mediaType, _, err := mime.ParseMediaType(t); err == nil {
			return mediaType
		}
	}

	return DefaultContentType
}

// IsText reports whether a content type is textual.
func IsText(contentType string) bool {
	return strings.HasPrefix(contentType, "text/")
}

// HeaderValue returns the Content-Type header value for a resolved type,
// adding a utf-8 charset to textual types.
func HeaderValue(contentType string) string {
	if IsText(contentType) {
		return contentType + "; charset=utf-8"
	}
	return contentType
}
