// Package server implements the static side of devserve.
//
// A Handler resolves request paths against the served root and answers with
// the synthesized root listing, a file, a directory's index.html, or a 404.
// HTML responses carry the live-reload client snippet when reload is enabled.
// The files are organized by concern: content types, snippet injection, the
// index listing, file responses, routing, middleware and listener helpers.
package server
