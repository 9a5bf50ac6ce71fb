// Package server builds the live-reload client snippet and inserts it into
// HTML responses.
package server

import (
	"fmt"
	"net"
	"strconv"
)

const closingBodyTag = "</body>"

// ReloadSnippet returns the script injected into HTML responses. It connects
// to the push channel on host:port and reloads the page when it receives the
// literal "reload". Wildcard bind hosts are replaced by the page's own
// hostname, since browsers cannot dial them.
func ReloadSnippet(host string, port int) []byte {
	var target string
	switch host {
	case "", "0.0.0.0", "::":
		target = fmt.Sprintf("'ws://'+location.hostname+':%d'", port)
	default:
		target = strconv.Quote("ws://" + net.JoinHostPort(host, strconv.Itoa(port)))
	}

	return []byte("\n<script>/* live-reload client */(function(){try{var s=new WebSocket(" + target +
		");s.onmessage=function(ev){if(ev.data==='reload'){location.reload();}};" +
		"s.onerror=function(){};}catch(e){}})();</script>\n")
}

// InjectReloadClient inserts snippet immediately before the last
// case-insensitive </body> in body, or appends it when there is none.
// The result is a new slice; body is not modified.
func InjectReloadClient(body, snippet []byte) []byte {
	out := make([]byte, 0, len(body)+len(snippet))

	idx := lastIndexFoldASCII(body, closingBodyTag)
	if idx < 0 {
		out = append(out, body...)
		return append(out, snippet...)
	}

	out = append(out, body[:idx]...)
	out = append(out, snippet...)
	return append(out, body[idx:]...)
}

// lastIndexFoldASCII finds the last occurrence of the lower-case ASCII needle
// in s, ignoring ASCII case. Non-ASCII bytes only ever match themselves.
func lastIndexFoldASCII(s []byte, needle string) int {
	n := len(needle)
	for i := len(s) - n; i >= 0; i-- {
		if matchFoldASCII(s[i:i+n], needle) {
			return i
		}
	}
	return -1
}

func matchFoldASCII(b []byte, needle string) bool {
	for i := 0; i < len(needle); i++ {
		c := b[i]
		if 'A' <= c && c <= 'Z' {
			c += 'a' - 'A'
		}
		if c != needle[i] {
			return false
		}
	}
	return true
}
