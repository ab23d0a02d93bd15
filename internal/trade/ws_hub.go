// Broadcast hub: fan-out of price and fill events to websocket subscribers.
package trade

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tradesim/market-engine/internal/metrics"
	"github.com/tradesim/market-engine/internal/model"
)

const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 30 * time.Second
)

// Client is one subscriber connection. Events arrive on a buffered channel;
// a client that stops draining it is dropped by the hub.
type Client struct {
	send chan []byte
	once sync.Once
}

// Events returns the client's event stream. The channel is closed when the
// client is unsubscribed.
func (c *Client) Events() <-chan []byte {
	return c.send
}

func (c *Client) close() {
	c.once.Do(func() { close(c.send) })
}

// Hub fans events out to all subscribed clients. Publish never blocks: a
// client whose buffer is full is unsubscribed instead of stalling the
// publisher or the other subscribers. Events published in sequence by one
// publisher reach every surviving client in that order.
type Hub struct {
	mu      sync.RWMutex
	clients map[*Client]bool
	bufSize int
}

// NewHub creates a hub whose clients buffer up to bufSize events.
func NewHub(bufSize int) *Hub {
	if bufSize <= 0 {
		bufSize = 64
	}
	return &Hub{
		clients: make(map[*Client]bool),
		bufSize: bufSize,
	}
}

// Subscribe registers a new client.
func (h *Hub) Subscribe() *Client {
	c := &Client{send: make(chan []byte, h.bufSize)}

	h.mu.Lock()
	h.clients[c] = true
	total := len(h.clients)
	h.mu.Unlock()

	metrics.WebSocketClients.Set(float64(total))
	slog.Info("subscriber connected", "total", total)
	return c
}

// Unsubscribe removes a client and closes its event channel. Safe to call
// more than once.
func (h *Hub) Unsubscribe(c *Client) {
	h.mu.Lock()
	if _, ok := h.clients[c]; !ok {
		h.mu.Unlock()
		return
	}
	delete(h.clients, c)
	total := len(h.clients)
	h.mu.Unlock()

	c.close()
	metrics.WebSocketClients.Set(float64(total))
	slog.Info("subscriber removed", "total", total)
}

// Publish delivers an event to every current subscriber, best-effort.
func (h *Hub) Publish(event model.Event) {
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("event marshal failed", "type", event.Type, "err", err)
		return
	}

	var dropped []*Client

	h.mu.RLock()
	for c := range h.clients {
		select {
		case c.send <- data:
		default:
			// Buffer full: the subscriber is too slow to keep.
			dropped = append(dropped, c)
		}
	}
	h.mu.RUnlock()

	for _, c := range dropped {
		metrics.EventsDropped.Inc()
		slog.Warn("dropping slow subscriber", "type", event.Type)
		h.Unsubscribe(c)
	}
}

// Close unsubscribes every client, releasing their resources.
func (h *Hub) Close() {
	h.mu.Lock()
	clients := make([]*Client, 0, len(h.clients))
	for c := range h.clients {
		clients = append(clients, c)
	}
	h.clients = make(map[*Client]bool)
	h.mu.Unlock()

	for _, c := range clients {
		c.close()
	}
	metrics.WebSocketClients.Set(0)
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(_ *http.Request) bool {
		return true // Allow all origins during development.
	},
}

// HandleWS handles WebSocket upgrade requests at GET /api/v1/ws.
func (h *Hub) HandleWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Error("ws upgrade failed", "err", err)
		return
	}

	client := h.Subscribe()

	// Write pump: drain the client's event channel onto the wire, with
	// pings to keep the connection alive through proxies.
	go func() {
		ticker := time.NewTicker(pingPeriod)
		defer func() {
			ticker.Stop()
			conn.Close()
		}()
		for {
			select {
			case msg, ok := <-client.Events():
				if !ok {
					conn.WriteMessage(websocket.CloseMessage, nil)
					return
				}
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.TextMessage, msg); err != nil {
					h.Unsubscribe(client)
					return
				}
			case <-ticker.C:
				conn.SetWriteDeadline(time.Now().Add(writeWait))
				if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
					h.Unsubscribe(client)
					return
				}
			}
		}
	}()

	// Read pump: keep connection alive and detect disconnects.
	go func() {
		defer h.Unsubscribe(client)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()
}
