package ws

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/pulsebridge/pulsebridge/pkg/wshub"
	"github.com/pulsebridge/pulsebridge/server/internal/api"
	"github.com/pulsebridge/pulsebridge/server/internal/store"
)

// Message is the JSON envelope sent to clients on every broadcast tick.
type Message struct {
	Event string             `json:"event"`
	Data  api.StreamResponse `json:"data"`
}

// Hub broadcasts the newest reading in the store to all connected clients
// every interval.
type Hub struct {
	store    *store.Store
	interval time.Duration
	hub      *wshub.Hub
}

// New creates a Hub that reads from st and broadcasts every interval.
func New(st *store.Store, interval time.Duration) *Hub {
	h := &Hub{store: st, interval: interval}
	h.hub = wshub.New(func() ([]byte, bool) {
		data, err := h.buildMessage()
		return data, err == nil
	})
	return h
}

// Run starts the broadcast ticker loop. Run blocks until ctx is cancelled,
// then closes all active connections.
func (h *Hub) Run(ctx context.Context) {
	t := time.NewTicker(h.interval)
	defer t.Stop()

	for {
		select {
		case <-ctx.Done():
			h.hub.Close()
			return
		case <-t.C:
			data, err := h.buildMessage()
			if err != nil {
				slog.Error("ws: encode message", "err", err)
				continue
			}
			h.hub.Broadcast(data)
		}
	}
}

// ServeHTTP upgrades the connection and sends the current state immediately,
// then streams updates on each tick. Blocks until the connection closes.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeHTTP(w, r)
}

// Count returns the number of currently connected clients.
func (h *Hub) Count() int {
	return h.hub.Count()
}

func (h *Hub) buildMessage() ([]byte, error) {
	return json.Marshal(Message{
		Event: "stream",
		Data:  api.BuildStream(h.store),
	})
}
