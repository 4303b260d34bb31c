// Package websocket adapts the teacher's multi-tenant WebSocket hub into
// a single-purpose live observer for the streaming dataflow engine's
// event bus (spec §3/§6's "Execution event" / "Event stream"): every
// connected browser or CLI client receives the same broadcast of
// NodeStart/NodeFinish/NodeError/EdgeData/WorkflowStart/WorkflowFinish
// events for one workflow run, encoded as JSON. There is no tenant or
// room concept here — the engine core has no multi-tenancy of its own
// (spec §1 places persistence/auth/accounts out of scope) — so this
// hub collapses the teacher's per-room broadcast down to one global
// room per run.
package websocket

import (
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Client is one connected WebSocket observer.
type Client struct {
	ID   string
	Conn *websocket.Conn
	Hub  *Hub
	Send chan []byte
}

// Hub fans every broadcast out to every registered client, matching the
// teacher's drop-on-full-send-channel behavior: a slow observer loses
// events rather than stalling the engine (the same lossy contract
// engine.EventBus gives in-process subscribers).
type Hub struct {
	mu      sync.RWMutex
	clients map[string]*Client

	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	logger *slog.Logger
}

// NewHub creates a hub with its logger; call Run in its own goroutine to
// start the dispatch loop.
func NewHub(logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}
	return &Hub{
		clients:    make(map[string]*Client),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 256),
		logger:     logger,
	}
}

// Run drives the hub's register/unregister/broadcast loop until stop is
// closed.
func (h *Hub) Run(stop <-chan struct{}) {
	for {
		select {
		case <-stop:
			return
		case c := <-h.register:
			h.mu.Lock()
			h.clients[c.ID] = c
			h.mu.Unlock()
			h.logger.Info("observer connected", "client_id", c.ID)
		case c := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[c.ID]; ok {
				delete(h.clients, c.ID)
				close(c.Send)
			}
			h.mu.Unlock()
			h.logger.Info("observer disconnected", "client_id", c.ID)
		case msg := <-h.broadcast:
			h.mu.RLock()
			for _, c := range h.clients {
				select {
				case c.Send <- msg:
				default:
					h.logger.Warn("observer send buffer full, dropping event", "client_id", c.ID)
				}
			}
			h.mu.RUnlock()
		}
	}
}

// Register adds c to the hub; safe to call concurrently with Run.
func (h *Hub) Register(c *Client) { h.register <- c }

// Unregister removes c from the hub.
func (h *Hub) Unregister(c *Client) { h.unregister <- c }

// Broadcast enqueues data for delivery to every connected client,
// dropping it (with a log line) rather than blocking if the hub's
// internal buffer is also full.
func (h *Hub) Broadcast(data []byte) {
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("hub broadcast buffer full, dropping event")
	}
}

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = (pongWait * 9) / 10
	maxMessageSize = 64 * 1024
)

// ReadPump drains and discards inbound frames (this hub is read-only
// from the client's perspective) purely to service ping/pong control
// frames and detect disconnects.
func (c *Client) ReadPump() {
	defer func() {
		c.Hub.Unregister(c)
		c.Conn.Close()
	}()
	c.Conn.SetReadLimit(maxMessageSize)
	_ = c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	c.Conn.SetPongHandler(func(string) error {
		return c.Conn.SetReadDeadline(time.Now().Add(pongWait))
	})
	for {
		if _, _, err := c.Conn.ReadMessage(); err != nil {
			return
		}
	}
}

// WritePump delivers every broadcast queued in c.Send to the underlying
// connection, pinging on an idle timer to keep it alive.
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.Conn.Close()
	}()
	for {
		select {
		case msg, ok := <-c.Send:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				_ = c.Conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.Conn.WriteMessage(websocket.TextMessage, msg); err != nil {
				return
			}
		case <-ticker.C:
			_ = c.Conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.Conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
