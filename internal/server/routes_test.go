package server_test

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Tyrowin/devserve/internal/config"
	"github.com/Tyrowin/devserve/internal/server"
	"github.com/Tyrowin/devserve/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const (
	pageA    = "<html><body><h1>A</h1></body></html>"
	pageC    = "<html><body><h1>C</h1></body></html>"
	fragment = "<p>no body tag here</p>"
)

func newSite(t *testing.T, reload bool) (*config.Config, *httptest.Server) {
	t.Helper()

	root := t.TempDir()
	testhelpers.WriteTree(t, root, map[string]string{
		"a/index.html":     pageA,
		"b/c/index.html":   pageC,
		"b/fragment.html":  fragment,
		"b/style.css":      "body { color: red; }",
		"b/app.js":         "console.log('hi');",
		"img/pixel.png":    "\x89PNG\r\n\x1a\n\x00\x00",
		"docs/readme.txt":  "plain text",
		"my dir/page.html": "<body>spaced</body>",
	})

	cfg := &config.Config{Root: root, Port: 3000, Host: "127.0.0.1", Reload: reload}
	ts := httptest.NewServer(server.SetupRoutes(cfg, zap.NewNop()))
	t.Cleanup(ts.Close)
	return cfg, ts
}

func get(t *testing.T, ts *httptest.Server, path string) (*http.Response, string) {
	t.Helper()
	resp := testhelpers.MakeRequest(t, http.MethodGet, ts.URL+path)
	return resp, testhelpers.ReadBody(t, resp)
}

func TestRouter_Scenario(t *testing.T) {
	_, ts := newSite(t, true)

	t.Run("RootListsEveryIndex", func(t *testing.T) {
		resp, body := get(t, ts, "/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "text/html; charset=utf-8", resp.Header.Get("Content-Type"))
		assert.Equal(t, 2, strings.Count(body, "<li><a href="))
		assert.Contains(t, body, `href="/a/"`)
		assert.Contains(t, body, `href="/b/c/"`)
		assert.Equal(t, 1, strings.Count(body, snippetMarker))
	})

	t.Run("DirectoryWithTrailingSlash", func(t *testing.T) {
		resp, body := get(t, ts, "/a/")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<h1>A</h1>")
	})

	t.Run("DirectoryWithoutTrailingSlashIsNotRedirected", func(t *testing.T) {
		client := &http.Client{CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		}}
		resp, err := client.Get(ts.URL + "/b/c")
		require.NoError(t, err)
		body := testhelpers.ReadBody(t, resp)
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Contains(t, body, "<h1>C</h1>")
	})

	t.Run("MissingPath", func(t *testing.T) {
		resp, body := get(t, ts, "/missing")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "404 Not Found", body)
		assert.Equal(t, "text/plain; charset=utf-8", resp.Header.Get("Content-Type"))
	})
}

func TestRouter_ReloadInjection(t *testing.T) {
	_, ts := newSite(t, true)

	t.Run("BeforeLastClosingBody", func(t *testing.T) {
		_, body := get(t, ts, "/a/index.html")
		assert.Equal(t, 1, strings.Count(body, snippetMarker))
		assert.True(t, strings.HasSuffix(body, "</script>\n</body></html>"))
		assert.Contains(t, body, `new WebSocket("ws://127.0.0.1:3001")`)
	})

	t.Run("AppendedWithoutBodyTag", func(t *testing.T) {
		_, body := get(t, ts, "/b/fragment.html")
		assert.True(t, strings.HasPrefix(body, fragment))
		assert.True(t, strings.HasSuffix(body, "</script>\n"))
		assert.Equal(t, 1, strings.Count(body, snippetMarker))
	})

	t.Run("NonHTMLUntouched", func(t *testing.T) {
		resp, body := get(t, ts, "/b/app.js")
		assert.Equal(t, "console.log('hi');", body)
		assert.Equal(t, "text/javascript; charset=utf-8", resp.Header.Get("Content-Type"))
	})
}

func TestRouter_ReloadDisabledServesExactBytes(t *testing.T) {
	cfg, ts := newSite(t, false)

	for _, rel := range []string{
		"a/index.html",
		"b/c/index.html",
		"b/fragment.html",
		"b/style.css",
		"b/app.js",
		"img/pixel.png",
		"docs/readme.txt",
	} {
		t.Run(rel, func(t *testing.T) {
			want, err := os.ReadFile(filepath.Join(cfg.Root, filepath.FromSlash(rel)))
			require.NoError(t, err)

			resp, body := get(t, ts, "/"+rel)
			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.True(t, bytes.Equal(want, []byte(body)))
			assert.NotContains(t, body, snippetMarker)
		})
	}

	_, root := get(t, ts, "/")
	assert.NotContains(t, root, snippetMarker)
}

func TestRouter_ContentTypes(t *testing.T) {
	_, ts := newSite(t, false)

	tests := []struct {
		path string
		want string
	}{
		{"/b/style.css", "text/css; charset=utf-8"},
		{"/img/pixel.png", "image/png"},
		{"/docs/readme.txt", "text/plain; charset=utf-8"},
		{"/a/", "text/html; charset=utf-8"},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			resp, _ := get(t, ts, tt.path)
			assert.Equal(t, tt.want, resp.Header.Get("Content-Type"))
		})
	}
}

func TestRouter_PathDecoding(t *testing.T) {
	_, ts := newSite(t, false)

	t.Run("PercentEncodedSpace", func(t *testing.T) {
		resp, body := get(t, ts, "/my%20dir/page.html")
		assert.Equal(t, http.StatusOK, resp.StatusCode)
		assert.Equal(t, "<body>spaced</body>", body)
	})

	t.Run("EncodedTraversalStaysInRoot", func(t *testing.T) {
		resp, body := get(t, ts, "/%2e%2e/%2e%2e/etc/passwd")
		assert.Equal(t, http.StatusNotFound, resp.StatusCode)
		assert.Equal(t, "404 Not Found", body)
	})

	t.Run("MalformedEscape", func(t *testing.T) {
		cfg := &config.Config{Root: t.TempDir(), Port: 3000, Host: "127.0.0.1"}
		h := server.NewHandler(cfg, zap.NewNop())

		req := httptest.NewRequest(http.MethodGet, "/placeholder", nil)
		req.URL = &url.URL{Path: "/bad", RawPath: "/%zz"}
		rr := httptest.NewRecorder()
		h.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusNotFound, rr.Code)
		assert.Equal(t, "404 Not Found", rr.Body.String())
	})
}

func TestRouter_NonCanonicalPathsServeDirectly(t *testing.T) {
	_, ts := newSite(t, false)

	client := &http.Client{
		CheckRedirect: func(*http.Request, []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}

	tests := []struct {
		name string
		path string
		want string
	}{
		{"DoubleSlashDirectory", "/a//", pageA},
		{"DotSegmentFile", "/b/./style.css", "body { color: red; }"},
		{"DoubleSlashFile", "/b//style.css", "body { color: red; }"},
		{"DotDotSegmentDirectory", "/b/../a/", pageA},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := client.Get(ts.URL + tt.path)
			require.NoError(t, err)
			body := testhelpers.ReadBody(t, resp)

			assert.Equal(t, http.StatusOK, resp.StatusCode)
			assert.Empty(t, resp.Header.Get("Location"))
			assert.Equal(t, tt.want, body)
		})
	}
}

func TestRouter_DirectoryWithoutIndex(t *testing.T) {
	_, ts := newSite(t, false)

	resp, body := get(t, ts, "/b/")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	assert.NotEmpty(t, body)
}

func TestRouter_HeadRequest(t *testing.T) {
	_, ts := newSite(t, false)

	resp := testhelpers.MakeRequest(t, http.MethodHead, ts.URL+"/b/style.css")
	body := testhelpers.ReadBody(t, resp)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Empty(t, body)
	assert.Equal(t, "20", resp.Header.Get("Content-Length"))
}

func TestRouter_RequestID(t *testing.T) {
	_, ts := newSite(t, false)

	resp, _ := get(t, ts, "/a/")
	assert.NotEmpty(t, resp.Header.Get(server.RequestIDHeader))

	req, err := http.NewRequest(http.MethodGet, ts.URL+"/a/", http.NoBody)
	require.NoError(t, err)
	req.Header.Set(server.RequestIDHeader, "trace-123")
	resp, err = http.DefaultClient.Do(req)
	require.NoError(t, err)
	_ = testhelpers.ReadBody(t, resp)
	assert.Equal(t, "trace-123", resp.Header.Get(server.RequestIDHeader))
}

func TestServeFile_ReadFailure(t *testing.T) {
	cfg := &config.Config{Root: t.TempDir(), Port: 3000, Host: "127.0.0.1", Reload: true}
	h := server.NewHandler(cfg, zap.NewNop())

	rr := httptest.NewRecorder()
	h.ServeFile(rr, filepath.Join(cfg.Root, "vanished.html"))

	assert.Equal(t, http.StatusNotFound, rr.Code)
	assert.Equal(t, "404 Not Found", rr.Body.String())
}
