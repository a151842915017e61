package websocket

import (
	"context"
	"log/slog"
	"sync"

	"github.com/alumni-connect/gallery-service/internal/types"
)

// Hub maintains the set of connected moderators and broadcasts gallery
// events to them
type Hub struct {
	// Registered clients mapped by connection ID
	clients map[string]*Client

	// Register requests from the clients
	register chan *Client

	// Mutex to protect clients map
	mu sync.RWMutex

	// Channel to broadcast events
	broadcast chan *types.Event

	// closed once Run has returned
	done     chan struct{}
	stopOnce sync.Once
}

// NewHub creates a new WebSocket hub
func NewHub() *Hub {
	return &Hub{
		clients:   make(map[string]*Client),
		register:  make(chan *Client),
		broadcast: make(chan *types.Event, 64),
		done:      make(chan struct{}),
	}
}

// Run starts the hub's main loop and returns when ctx is cancelled
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.stopOnce.Do(func() { close(h.done) })
			h.closeAll()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.id] = client
			h.mu.Unlock()
			slog.Info("WebSocket client connected",
				slog.String("client_id", client.id),
				slog.String("user_id", client.userID))

		case event := <-h.broadcast:
			h.broadcastToAll(event)
		}
	}
}

// RegisterClient registers a new client. Once the hub has stopped the
// client's send channel is closed instead, so its pumps shut the socket.
func (h *Hub) RegisterClient(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.closeSend()
	}
}

// UnregisterClient removes a client. It does not go through the run loop
// so that pumps can still exit after the hub has stopped.
func (h *Hub) UnregisterClient(client *Client) {
	h.remove(client)
}

// BroadcastToAll queues an event for every connected client
func (h *Hub) BroadcastToAll(event *types.Event) {
	select {
	case h.broadcast <- event:
	default:
		slog.Warn("Broadcast channel is full, dropping message", slog.String("type", string(event.Type)))
	}
}

func (h *Hub) broadcastToAll(event *types.Event) {
	h.mu.RLock()
	var failed []*Client
	for _, client := range h.clients {
		if err := client.SendEvent(event); err != nil {
			slog.Error("Failed to send event to client",
				slog.String("client_id", client.id),
				slog.String("error", err.Error()))
			failed = append(failed, client)
		}
	}
	h.mu.RUnlock()

	// Slow clients are dropped
	for _, client := range failed {
		h.remove(client)
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client.id]; ok {
		delete(h.clients, client.id)
		client.closeSend()
		slog.Info("WebSocket client disconnected", slog.String("client_id", client.id))
	}
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for id, client := range h.clients {
		delete(h.clients, id)
		client.closeSend()
	}
}

// GetClientCount returns the number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.clients)
}
