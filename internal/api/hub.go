package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/talgya/pedsim/internal/engine"
)

const (
	maxWSConns   = 16
	writeTimeout = 5 * time.Second
)

// Hub fans tick reports out to websocket subscribers.
type Hub struct {
	mu       sync.Mutex
	clients  map[*websocket.Conn]struct{}
	upgrader websocket.Upgrader
}

// NewHub creates an empty hub.
func NewHub() *Hub {
	return &Hub{
		clients: make(map[*websocket.Conn]struct{}),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 4096,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

func (h *Hub) add(conn *websocket.Conn) bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.clients) >= maxWSConns {
		return false
	}
	h.clients[conn] = struct{}{}
	return true
}

func (h *Hub) remove(conn *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.clients, conn)
	conn.Close()
}

// Len returns the number of connected subscribers.
func (h *Hub) Len() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Broadcast sends rep to every subscriber, dropping any that fail.
func (h *Hub) Broadcast(rep engine.TickReport) {
	payload, ok := encodeReport(rep)
	if !ok {
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn := range h.clients {
		_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			slog.Debug("dropping websocket subscriber", "remote", conn.RemoteAddr(), "error", err)
			conn.Close()
			delete(h.clients, conn)
		}
	}
}

func encodeReport(rep engine.TickReport) ([]byte, bool) {
	payload, err := json.Marshal(rep)
	if err != nil {
		slog.Error("marshal tick report", "tick", rep.Tick, "error", err)
		return nil, false
	}
	return payload, true
}

// handler upgrades the connection, sends the latest report if there is one,
// then holds the connection until the client goes away. Client messages are
// ignored.
func (h *Hub) handler(last func() (engine.TickReport, bool)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := h.upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Warn("websocket upgrade failed", "error", err)
			return
		}
		if !h.add(conn) {
			_ = conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseTryAgainLater, "too many subscribers"),
				time.Now().Add(time.Second))
			conn.Close()
			return
		}
		defer h.remove(conn)
		slog.Info("websocket subscriber connected", "remote", conn.RemoteAddr())

		if rep, ok := last(); ok {
			payload, ok := encodeReport(rep)
			if !ok {
				return
			}
			h.mu.Lock()
			_ = conn.SetWriteDeadline(time.Now().Add(writeTimeout))
			err := conn.WriteMessage(websocket.TextMessage, payload)
			h.mu.Unlock()
			if err != nil {
				return
			}
		}

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}
}
