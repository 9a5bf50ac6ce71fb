// Package reload defines the reload payload and small helpers shared by the
// hub and its clients.
package reload

import (
	"errors"
	"net"
	"strings"
)

// ReloadPayload is the only message sent to reload clients.
var ReloadPayload = []byte("reload")

// isExpectedCloseError checks if an error is expected during connection closure.
func isExpectedCloseError(err error) bool {
	if err == nil || errors.Is(err, net.ErrClosed) {
		return true
	}
	errStr := err.Error()
	return strings.Contains(errStr, "use of closed network connection") ||
		strings.Contains(errStr, "websocket: close sent") ||
		strings.Contains(errStr, "broken pipe") ||
		strings.Contains(errStr, "connection reset by peer")
}
