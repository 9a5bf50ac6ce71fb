// Package server discovers index.html files below the served root and renders
// the listing shown at "/".
package server

import (
	"bytes"
	"fmt"
	"html/template"
	"io/fs"
	"path/filepath"
	"sort"
	"strings"

	"go.uber.org/zap"
)

const indexFileName = "index.html"

// IndexEntry is one index.html discovered under the root.
type IndexEntry struct {
	// RelativePath is the file path relative to the root, slash separated.
	RelativePath string
	// URL is the path of the containing directory, with a trailing slash.
	URL string
}

var rootIndexTemplate = template.Must(template.New("root-index").Parse(`<!doctype html>
<html>
  <head><meta charset="utf-8"><title>Index of index.html files</title></head>
  <body>
    <h1>index.html files under {{.Root}}</h1>
    <ul>
{{- range .Entries}}
      <li><a href="{{.URL}}">{{.RelativePath}}</a></li>
{{- end}}
    </ul>
    <p>Serving on http://{{.Address}}</p>
  </body>
</html>
`))

// FindIndexFiles walks root and returns every regular file named index.html
// (case-insensitive), sorted by relative path. Unreadable subtrees are
// skipped; the walk never fails as a whole.
func FindIndexFiles(root string, logger *zap.Logger) []IndexEntry {
	var entries []IndexEntry

	// WalkDir does not descend into a symlinked root.
	if resolved, err := filepath.EvalSymlinks(root); err == nil {
		root = resolved
	}

	_ = filepath.WalkDir(root, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			logger.Debug("Skipping unreadable path during index scan",
				zap.String("path", path), zap.Error(err))
			if d != nil && d.IsDir() && path != root {
				return fs.SkipDir
			}
			return nil
		}

		if !d.Type().IsRegular() || !strings.EqualFold(d.Name(), indexFileName) {
			return nil
		}

		rel, relErr := filepath.Rel(root, path)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		entries = append(entries, IndexEntry{RelativePath: rel, URL: indexURL(rel)})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].RelativePath < entries[j].RelativePath
	})
	return entries
}

// indexURL strips the trailing index.html so a nested index is linked at its
// directory's URL.
func indexURL(rel string) string {
	dir := rel[:len(rel)-len(indexFileName)]
	return "/" + dir
}

// RenderRootIndex renders the listing page for entries.
func RenderRootIndex(root, address string, entries []IndexEntry) ([]byte, error) {
	var buf bytes.Buffer
	err := rootIndexTemplate.Execute(&buf, struct {
		Root    string
		Address string
		Entries []IndexEntry
	}{
		Root:    root,
		Address: address,
		Entries: entries,
	})
	if err != nil {
		return nil, fmt.Errorf("render root index: %w", err)
	}
	return buf.Bytes(), nil
}
