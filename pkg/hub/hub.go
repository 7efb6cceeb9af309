// Package hub provides a thread-safe websocket broadcast hub for console
// UI clients, using the channel-based fan-out pattern.
package hub

import (
	"encoding/json"
	"log/slog"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
)

// Hub broadcasts console state snapshots to any number of UI clients.
//
// Each client gets a buffered send queue; a client too slow to drain its
// queue is dropped rather than allowed to stall the broadcast. The most
// recent snapshot is retained and replayed to newly connected clients so
// a fresh UI paints immediately.
type Hub struct {
	name   string
	logger *slog.Logger

	clients    map[*client]bool
	broadcast  chan []byte
	register   chan *client
	unregister chan *client

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	mu      sync.RWMutex
	last    []byte
	running bool
}

// New creates a hub. The name appears in log lines.
func New(name string, logger *slog.Logger) *Hub {
	if logger == nil {
		logger = slog.Default()
	}

	return &Hub{
		name:       name,
		logger:     logger.With("hub", name),
		clients:    make(map[*client]bool),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *client),
		unregister: make(chan *client),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// Run starts the hub's fan-out loop. Call it in a goroutine; it returns
// after Stop.
func (h *Hub) Run() {
	defer close(h.done)

	h.mu.Lock()
	h.running = true
	h.mu.Unlock()

	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			count := len(h.clients)
			last := h.last
			h.mu.Unlock()

			// Replay the latest snapshot so the client has state before
			// the next broadcast.
			if last != nil {
				select {
				case client.send <- last:
				default:
				}
			}
			h.logger.Info("🔌 ui client connected", "id", client.id, "total", count)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			count := len(h.clients)
			h.mu.Unlock()
			h.logger.Info("🔌 ui client disconnected", "id", client.id, "remaining", count)

		case data := <-h.broadcast:
			h.mu.Lock()
			h.last = data
			for client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Queue full: the client is too slow, drop it.
					delete(h.clients, client)
					close(client.send)
					h.logger.Warn("dropped slow ui client", "id", client.id)
				}
			}
			h.mu.Unlock()

		case <-h.stop:
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
			}
			h.running = false
			h.mu.Unlock()
			return
		}
	}
}

// RegisterRoutes registers the UI websocket endpoint on a Fiber app.
func (h *Hub) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/ui", websocket.New(func(c *websocket.Conn) {
		h.serve(c)
	}))
}

// serve registers a connection with the hub and blocks until it closes.
func (h *Hub) serve(conn *websocket.Conn) {
	client := newClient(h, conn)

	select {
	case h.register <- client:
	case <-h.done:
		conn.Close()
		return
	}

	client.run()
}

// Broadcast queues a JSON-encoded snapshot for fan-out. When the
// broadcast queue is full the snapshot is dropped; state snapshots are
// superseded by design, so a newer one is always on the way.
func (h *Hub) Broadcast(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return err
	}

	select {
	case h.broadcast <- data:
	default:
		h.logger.Debug("broadcast queue full, snapshot dropped")
	}
	return nil
}

// ClientCount returns the number of connected clients.
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// Running reports whether the fan-out loop is active.
func (h *Hub) Running() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.running
}

// Stop ends the fan-out loop and disconnects all clients.
func (h *Hub) Stop() {
	h.stopOnce.Do(func() {
		close(h.stop)
	})
}
