// Package reload coordinates client registration, reload broadcast and
// connection cleanup for the push channel via the Hub type.
package reload

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Hub tracks connected reload clients and broadcasts messages to them.
// The client set is only touched by Run.
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	count      atomic.Int64
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc
	done       chan struct{}
	logger     *zap.Logger
}

// NewHub creates a Hub. Run must be started before clients connect.
func NewHub(logger *zap.Logger) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run is the hub's event loop. It returns after Shutdown has been called and
// every client connection has been closed.
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.shutdownClients()
			return

		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			if _, ok := h.clients[client]; ok {
				h.removeClient(client)
				h.logger.Debug("Reload client disconnected",
					zap.String("remote", client.addr), zap.Int("clients", len(h.clients)))
			}

		case payload := <-h.broadcast:
			h.handleBroadcast(payload)
		}
	}
}

// Register hands a client to the hub. It reports false if the hub has
// stopped, in which case the caller owns the connection.
func (h *Hub) Register(client *Client) bool {
	select {
	case h.register <- client:
		return true
	case <-h.done:
		return false
	case <-h.ctx.Done():
		return false
	}
}

// Broadcast queues payload for every connected client. It reports false if
// the hub has stopped.
func (h *Hub) Broadcast(payload []byte) bool {
	select {
	case h.broadcast <- payload:
		return true
	case <-h.done:
		return false
	case <-h.ctx.Done():
		return false
	}
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

func (h *Hub) addClient(client *Client) {
	if client == nil {
		h.logger.Warn("Received nil client registration; skipping")
		return
	}

	h.clients[client] = struct{}{}
	h.count.Store(int64(len(h.clients)))
	h.logger.Debug("Reload client connected",
		zap.String("remote", client.addr), zap.Int("clients", len(h.clients)))

	h.wg.Add(2)
	go func() {
		defer h.wg.Done()
		client.writePump()
	}()
	go func() {
		defer h.wg.Done()
		client.readPump()
	}()
}

// removeClient drops the client and closes its send channel, which makes its
// write pump close the connection.
func (h *Hub) removeClient(client *Client) {
	delete(h.clients, client)
	h.count.Store(int64(len(h.clients)))
	close(client.send)
}

// handleBroadcast queues payload on every client. A client whose buffer is
// full is not keeping up and is dropped; the others still receive it.
func (h *Hub) handleBroadcast(payload []byte) {
	h.logger.Debug("Broadcasting to reload clients", zap.Int("clients", len(h.clients)))

	for client := range h.clients {
		select {
		case client.send <- payload:
		default:
			h.removeClient(client)
			h.logger.Warn("Reload client removed due to full send buffer", zap.String("remote", client.addr))
		}
	}
}

// shutdownClients closes every client connection.
func (h *Hub) shutdownClients() {
	n := len(h.clients)
	for client := range h.clients {
		h.removeClient(client)
		if client.conn != nil {
			if err := client.conn.Close(); err != nil && !isExpectedCloseError(err) {
				h.logger.Warn("Error closing reload client", zap.String("remote", client.addr), zap.Error(err))
			}
		}
	}
	h.logger.Debug("Closed reload client connections", zap.Int("clients", n))
}

// Shutdown stops the hub and waits up to timeout for client goroutines to
// finish.
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()
	<-h.done

	done := make(chan struct{})
	go func() {
		h.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-time.After(timeout):
		h.logger.Warn("Hub shutdown timeout reached, some client goroutines may still be running")
		return context.DeadlineExceeded
	}
}
