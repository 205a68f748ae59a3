// Package ws implements the live reading stream for pulsebridge-server.
//
// Hub wraps a wshub.Hub and broadcasts the newest stored reading to every
// connected client on a configurable interval (server.stream.interval,
// default 1s).
//
// New(store, interval) creates a Hub.
// Hub.Run(ctx) starts the broadcast ticker. It blocks until ctx is cancelled,
// then closes all active connections.
// Hub.ServeHTTP upgrades an HTTP connection to WebSocket and sends the
// current state immediately on connect.
//
// Message format sent to clients:
//
//	{
//	  "event": "stream",
//	  "data":  {"latest": {...} | null, "reading_count": N, "generated_at": "..."}
//	}
//
// The WebSocket endpoint is mounted at /ws/stream by the server.
package ws
