package websocket

import (
	"log/slog"
	"sync"

	"github.com/lorrc/helpdesk-analytics/internal/core/ports"
)

// Hub tracks live-filter connections, grouped by the technician each
// connection is currently viewing.
type Hub struct {
	// clients holds every registered connection
	clients map[*Client]bool

	// watchers maps technician IDs to the clients viewing them
	watchers map[int64]map[*Client]bool

	// Register requests from clients
	Register chan *Client

	// Unregister requests from clients
	Unregister chan *Client

	// done stops Run
	done     chan struct{}
	stopOnce sync.Once

	// mu protects the clients and watchers maps
	mu sync.RWMutex

	logger *slog.Logger
}

var _ ports.TechnicianNotifier = (*Hub)(nil)

// NewHub creates a new WebSocket hub
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]bool),
		watchers:   make(map[int64]map[*Client]bool),
		Register:   make(chan *Client),
		Unregister: make(chan *Client),
		done:       make(chan struct{}),
		logger:     logger.With("component", "websocket_hub"),
	}
}

// Run starts the hub's event loop. This MUST be run as a goroutine.
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.Register:
			h.registerClient(client)

		case client := <-h.Unregister:
			h.unregisterClient(client)

		case <-h.done:
			h.closeAll()
			return
		}
	}
}

// Shutdown closes every connection and stops Run. It is safe to call more
// than once.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() { close(h.done) })
}

// Join registers a client with Run. It returns false once the hub has been
// shut down; the caller then owns closing the connection.
func (h *Hub) Join(client *Client) bool {
	select {
	case <-h.done:
		return false
	default:
	}

	select {
	case h.Register <- client:
		return true
	case <-h.done:
		return false
	}
}

// unregister hands a client to Run unless the hub is already stopped.
func (h *Hub) unregister(client *Client) {
	select {
	case h.Unregister <- client:
	case <-h.done:
	}
}

func (h *Hub) registerClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	// Run may pick a register over a concurrent shutdown.
	select {
	case <-h.done:
		client.CloseSend()
		return
	default:
	}

	h.clients[client] = true

	h.logger.Info("client registered",
		"client_id", client.ID,
		"total_connections", len(h.clients),
	)
}

// unregisterClient removes a client from the hub and from whatever
// technician it was watching
func (h *Hub) unregisterClient(client *Client) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	h.removeWatcherLocked(client, client.Watching())

	client.CloseSend()

	h.logger.Info("client unregistered",
		"client_id", client.ID,
		"total_connections", len(h.clients),
	)
}

func (h *Hub) closeAll() {
	h.mu.Lock()
	defer h.mu.Unlock()

	for client := range h.clients {
		client.CloseSend()
	}
	h.clients = make(map[*Client]bool)
	h.watchers = make(map[int64]map[*Client]bool)

	h.logger.Info("hub stopped")
}

// watch moves a client onto the given technician
func (h *Hub) watch(client *Client, technicianID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	previous := client.Watching()
	if previous == technicianID {
		return
	}
	h.removeWatcherLocked(client, previous)

	if technicianID > 0 {
		if h.watchers[technicianID] == nil {
			h.watchers[technicianID] = make(map[*Client]bool)
		}
		h.watchers[technicianID][client] = true
	}
	client.setWatching(technicianID)

	h.logger.Debug("client watching technician",
		"client_id", client.ID,
		"technician_id", technicianID,
	)
}

func (h *Hub) removeWatcherLocked(client *Client, technicianID int64) {
	if watchers, ok := h.watchers[technicianID]; ok {
		delete(watchers, client)
		if len(watchers) == 0 {
			delete(h.watchers, technicianID)
		}
	}
}

// NotifyTechnician tells every client viewing a technician that its stored
// tickets changed, so the dashboard re-sends its last filter.
func (h *Hub) NotifyTechnician(technicianID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()

	watchers := h.watchers[technicianID]
	for client := range watchers {
		client.send(Message{
			Type:    TypeRefresh,
			Payload: RefreshPayload{TechnicianID: technicianID},
		})
	}

	if len(watchers) > 0 {
		h.logger.Info("technician refresh sent",
			"technician_id", technicianID,
			"clients", len(watchers),
		)
	}
	return len(watchers)
}

// GetClientCount returns the total number of connected clients
func (h *Hub) GetClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// GetWatcherCount returns how many clients are viewing a technician
func (h *Hub) GetWatcherCount(technicianID int64) int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.watchers[technicianID])
}
