// Package reload implements the live-reload pipeline of devserve.
//
// A Watcher reports filesystem changes under the served root. The Notifier
// filters them by extension and asks the Hub to broadcast the literal
// "reload" to every connected push-channel client. Clients connect through
// Handler, which upgrades requests to WebSocket connections.
//
// The Hub's client set is owned by its Run goroutine: registration,
// removal and broadcast are all serialized through channels, so no client
// state is shared between goroutines.
package reload
