// Package live pushes session update events to connected WebSocket clients
// so they can render the optimistic chat flow (thinking placeholder appears,
// then is replaced in place).
package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/coder/websocket"

	"github.com/eductome/eductome/internal/session"
)

// writeTimeout bounds each broadcast write so one stuck client cannot stall
// the fan-out.
const writeTimeout = 5 * time.Second

// Hub fans session events out to every connected client.
type Hub struct {
	allowedOrigin string
	isDev         bool

	mu    sync.RWMutex
	conns map[*websocket.Conn]struct{}
}

// NewHub creates a hub. allowedOrigin guards the upgrade in production.
func NewHub(allowedOrigin string, isDev bool) *Hub {
	return &Hub{
		allowedOrigin: allowedOrigin,
		isDev:         isDev,
		conns:         make(map[*websocket.Conn]struct{}),
	}
}

// Run consumes events until ctx is cancelled or the channel closes. Call it
// in its own goroutine.
func (h *Hub) Run(ctx context.Context, events <-chan session.Event) {
	for {
		select {
		case <-ctx.Done():
			h.closeAll()
			return
		case ev, ok := <-events:
			if !ok {
				h.closeAll()
				return
			}
			h.broadcast(ev)
		}
	}
}

func (h *Hub) broadcast(ev session.Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		slog.Warn("Failed to marshal session event", "type", ev.Type, "error", err)
		return
	}

	h.mu.RLock()
	conns := make([]*websocket.Conn, 0, len(h.conns))
	for c := range h.conns {
		conns = append(conns, c)
	}
	h.mu.RUnlock()

	for _, c := range conns {
		ctx, cancel := context.WithTimeout(context.Background(), writeTimeout)
		err := c.Write(ctx, websocket.MessageText, data)
		cancel()
		if err != nil {
			slog.Debug("WebSocket write failed, dropping client", "error", err)
			h.unregister(c)
			_ = c.Close(websocket.StatusNormalClosure, "write failed")
		}
	}
}

func (h *Hub) register(c *websocket.Conn) {
	h.mu.Lock()
	h.conns[c] = struct{}{}
	n := len(h.conns)
	h.mu.Unlock()
	slog.Info("Live client connected", "clients", n)
}

func (h *Hub) unregister(c *websocket.Conn) {
	h.mu.Lock()
	delete(h.conns, c)
	h.mu.Unlock()
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	for c := range h.conns {
		_ = c.Close(websocket.StatusGoingAway, "server shutting down")
	}
	h.conns = make(map[*websocket.Conn]struct{})
	h.mu.Unlock()
}

// ServeHTTP upgrades the connection and keeps it registered until the client
// disconnects. Clients only receive; inbound frames are drained and ignored.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if !h.checkOrigin(r) {
		http.Error(w, "origin not allowed", http.StatusForbidden)
		return
	}

	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: []string{"*"},
	})
	if err != nil {
		slog.Error("Failed to accept WebSocket", "error", err)
		return
	}

	h.register(ws)
	defer func() {
		h.unregister(ws)
		_ = ws.Close(websocket.StatusNormalClosure, "session ended")
	}()

	ctx := r.Context()
	for {
		if _, _, err := ws.Read(ctx); err != nil {
			if websocket.CloseStatus(err) != -1 {
				slog.Debug("Live client disconnected")
			} else {
				slog.Debug("Live client read error", "error", err)
			}
			return
		}
	}
}

func (h *Hub) checkOrigin(r *http.Request) bool {
	if h.isDev {
		return true
	}
	origin := r.Header.Get("Origin")
	if origin == "" || h.allowedOrigin == "*" {
		return true
	}
	if origin == h.allowedOrigin {
		return true
	}
	slog.Warn("WebSocket origin rejected", "origin", origin, "allowed", h.allowedOrigin)
	return false
}
