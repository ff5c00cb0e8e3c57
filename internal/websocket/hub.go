// Package websocket streams alert, health and metric events to connected
// admin UIs.
package websocket

import (
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Hub maintains the set of active clients and fans engine events out to them.
type Hub struct {
	clients map[*Client]bool

	broadcast  chan frame
	register   chan *Client
	unregister chan *Client
	done       chan struct{}

	logger *logrus.Logger

	mu    sync.RWMutex
	stats HubStats
}

type frame struct {
	topic string
	data  []byte
}

// HubStats reports connection and traffic counters.
type HubStats struct {
	ConnectedClients int       `json:"connected_clients"`
	TotalConnections int64     `json:"total_connections"`
	MessagesSent     int64     `json:"messages_sent"`
	LastActivity     time.Time `json:"last_activity"`
}

func NewHub(logger *logrus.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		broadcast:  make(chan frame, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger,
		stats:      HubStats{LastActivity: time.Now()},
	}
}

// Run handles registration and broadcasting until Stop is called.
func (h *Hub) Run() {
	h.logger.Info("WebSocket hub started")

	ticker := time.NewTicker(30 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case client := <-h.register:
			h.registerClient(client)

		case client := <-h.unregister:
			h.unregisterClient(client)

		case f := <-h.broadcast:
			h.broadcastFrame(f)

		case <-ticker.C:
			h.sendHeartbeat()

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Stop shuts the hub down and disconnects every client.
func (h *Hub) Stop() {
	close(h.done)
}

// Broadcast queues a message for every client subscribed to its topic. The
// frame is dropped rather than blocking an engine tick when the hub is
// saturated.
func (h *Hub) Broadcast(msg Message) {
	select {
	case h.broadcast <- frame{topic: msg.Topic, data: msg.ToJSON()}:
	case <-h.done:
	default:
		h.logger.Warn("Broadcast channel is full, message dropped")
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	h.clients[client] = true
	h.stats.TotalConnections++
	h.stats.ConnectedClients = len(h.clients)
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	h.logger.WithFields(logrus.Fields{
		"client_id":         client.ID,
		"remote_addr":       client.RemoteAddr,
		"connected_clients": h.ClientCount(),
	}).Info("WebSocket client connected")

	welcome := Message{
		Type: "connection",
		Data: map[string]interface{}{
			"status":    "connected",
			"client_id": client.ID,
		},
	}
	client.send <- welcome.ToJSON()
}

func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; ok {
		delete(h.clients, client)
		close(client.send)
		h.stats.ConnectedClients = len(h.clients)
		h.stats.LastActivity = time.Now()

		h.logger.WithFields(logrus.Fields{
			"client_id":         client.ID,
			"connected_clients": len(h.clients),
		}).Info("WebSocket client disconnected")
	}
}

func (h *Hub) broadcastFrame(f frame) {
	h.mu.RLock()
	clients := make([]*Client, 0, len(h.clients))
	for client := range h.clients {
		if client.Subscribed(f.topic) {
			clients = append(clients, client)
		}
	}
	h.mu.RUnlock()

	h.mu.Lock()
	h.stats.MessagesSent++
	h.stats.LastActivity = time.Now()
	h.mu.Unlock()

	for _, client := range clients {
		select {
		case client.send <- f.data:
		default:
			// Client's send buffer is full, drop the connection.
			h.unregisterClient(client)
		}
	}
}

func (h *Hub) sendHeartbeat() {
	h.Broadcast(Message{
		Type: "heartbeat",
		Data: map[string]interface{}{
			"clients": h.ClientCount(),
		},
	})
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
	}
	h.stats.ConnectedClients = 0
	h.logger.Info("WebSocket hub stopped")
}

// Stats returns a copy of the current counters.
func (h *Hub) Stats() HubStats {
	h.mu.RLock()
	defer h.mu.RUnlock()

	stats := h.stats
	stats.ConnectedClients = len(h.clients)
	return stats
}

// ClientCount returns the current number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}
