package reload_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Tyrowin/devserve/internal/reload"
	"github.com/Tyrowin/devserve/internal/testhelpers"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestHandler_MethodValidation(t *testing.T) {
	logger := zap.NewNop()
	h := reload.NewHandler(reload.NewHub(logger), reload.NewOriginPolicy(nil, logger), logger)

	for _, method := range []string{http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodPatch} {
		t.Run(method, func(t *testing.T) {
			rr := httptest.NewRecorder()
			h.ServeHTTP(rr, httptest.NewRequest(method, "/", nil))

			assert.Equal(t, http.StatusMethodNotAllowed, rr.Code)
			assert.Contains(t, rr.Header().Get("Content-Type"), "text/plain")
			assert.Equal(t, "Method not allowed. The reload endpoint only accepts GET requests.",
				strings.TrimSpace(rr.Body.String()))
		})
	}
}

func TestHandler_GETWithoutUpgrade(t *testing.T) {
	logger := zap.NewNop()
	h := reload.NewHandler(reload.NewHub(logger), reload.NewOriginPolicy(nil, logger), logger)

	rr := httptest.NewRecorder()
	h.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestHandler_OriginEnforcement(t *testing.T) {
	_, ts := startHub(t)
	url := testhelpers.WebSocketURL(ts.URL)

	t.Run("DisallowedOrigin", func(t *testing.T) {
		_, resp, err := testhelpers.ConnectWebSocket(url, "http://evil.example")
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusForbidden, resp.StatusCode)
	})

	t.Run("AllowedOrigin", func(t *testing.T) {
		conn, _, err := testhelpers.ConnectWebSocket(url, testOrigin)
		require.NoError(t, err)
		defer conn.Close()
	})

	t.Run("AnyPath", func(t *testing.T) {
		conn, _, err := testhelpers.ConnectWebSocket(url+"/livereload", "")
		require.NoError(t, err)
		defer conn.Close()
	})
}
