package server_test

import (
	"strings"
	"testing"

	"github.com/Tyrowin/devserve/internal/server"

	"github.com/stretchr/testify/assert"
)

const snippetMarker = "/* live-reload client */"

func TestReloadSnippet(t *testing.T) {
	t.Run("ExplicitHost", func(t *testing.T) {
		snippet := string(server.ReloadSnippet("127.0.0.1", 3001))
		assert.Contains(t, snippet, `new WebSocket("ws://127.0.0.1:3001")`)
		assert.Contains(t, snippet, "ev.data==='reload'")
		assert.Contains(t, snippet, "location.reload()")
		assert.Contains(t, snippet, "catch(e){}")
		assert.True(t, strings.HasPrefix(strings.TrimSpace(snippet), "<script>"))
		assert.True(t, strings.HasSuffix(strings.TrimSpace(snippet), "</script>"))
	})

	t.Run("IPv6Host", func(t *testing.T) {
		snippet := string(server.ReloadSnippet("::1", 3001))
		assert.Contains(t, snippet, `"ws://[::1]:3001"`)
	})

	t.Run("WildcardHost", func(t *testing.T) {
		snippet := string(server.ReloadSnippet("0.0.0.0", 8081))
		assert.Contains(t, snippet, "'ws://'+location.hostname+':8081'")
		assert.NotContains(t, snippet, "0.0.0.0")
	})
}

func TestInjectReloadClient(t *testing.T) {
	snippet := []byte("<script>SNIPPET</script>")

	tests := []struct {
		name string
		body string
		want string
	}{
		{
			name: "BeforeClosingBody",
			body: "<html><body><p>hi</p></body></html>",
			want: "<html><body><p>hi</p><script>SNIPPET</script></body></html>",
		},
		{
			name: "UpperCaseTag",
			body: "<HTML><BODY>x</BODY></HTML>",
			want: "<HTML><BODY>x<script>SNIPPET</script></BODY></HTML>",
		},
		{
			name: "LastOccurrenceWins",
			body: "<body><pre>&lt;/body&gt; </body></pre></body>",
			want: "<body><pre>&lt;/body&gt; </body></pre><script>SNIPPET</script></body>",
		},
		{
			name: "NoClosingTagAppends",
			body: "<p>fragment",
			want: "<p>fragment<script>SNIPPET</script>",
		},
		{
			name: "EmptyBody",
			body: "",
			want: "<script>SNIPPET</script>",
		},
		{
			name: "ExistingScriptsUntouched",
			body: "<body><script>var a=1;</script></body>",
			want: "<body><script>var a=1;</script><script>SNIPPET</script></body>",
		},
		{
			name: "NonASCIIBeforeTag",
			body: "<body>Größe İstanbul</body>",
			want: "<body>Größe İstanbul<script>SNIPPET</script></body>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := []byte(tt.body)
			got := server.InjectReloadClient(body, snippet)
			assert.Equal(t, tt.want, string(got))
			assert.Equal(t, tt.body, string(body), "input must not be modified")
			assert.Equal(t, 1, strings.Count(string(got), "SNIPPET"))
		})
	}
}
