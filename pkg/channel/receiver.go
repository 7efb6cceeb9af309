package channel

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"

	"github.com/sonogrid/go-sonogrid/pkg/protocol"
)

// PositionFunc receives each well-formed position record.
type PositionFunc func(x, y, viewportW, viewportH float64)

// StateFunc receives feed connect/disconnect transitions.
type StateFunc func(connected bool)

// Receiver accepts the sensor feed over websocket and dispatches parsed
// records to callbacks.
//
// At most one feed is active at a time: a newer connection displaces the
// previous one, which is closed immediately. The state callback sees true
// for every accepted feed and false only when the active feed ends, so a
// displacement never reads as an outage. Malformed records are skipped
// without dropping the connection.
type Receiver struct {
	logger *slog.Logger

	onPosition PositionFunc
	onState    StateFunc

	mu     sync.Mutex
	active *feedConn

	received  atomic.Int64
	skipped   atomic.Int64
	displaced atomic.Int64
}

// feedConn is one accepted sensor connection.
type feedConn struct {
	id     string
	conn   *websocket.Conn
	opened time.Time
}

// NewReceiver creates a receiver with its callbacks fixed at
// construction. Either callback may be nil.
func NewReceiver(onPosition PositionFunc, onState StateFunc, logger *slog.Logger) *Receiver {
	if logger == nil {
		logger = slog.Default()
	}

	return &Receiver{
		logger:     logger.With("component", "channel.receiver"),
		onPosition: onPosition,
		onState:    onState,
	}
}

// RegisterRoutes registers the telemetry websocket endpoint on a Fiber app.
func (r *Receiver) RegisterRoutes(app *fiber.App) {
	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	app.Get("/ws/telemetry", websocket.New(r.handle))
}

// handle runs the read loop for one sensor connection.
func (r *Receiver) handle(c *websocket.Conn) {
	feed := &feedConn{
		id:     uuid.NewString()[:8],
		conn:   c,
		opened: time.Now(),
	}

	r.mu.Lock()
	prev := r.active
	r.active = feed
	r.mu.Unlock()

	if prev != nil {
		r.displaced.Add(1)
		r.logger.Info("🖱️ feed displaced", "old", prev.id, "new", feed.id)
		prev.conn.Close()
	}

	r.logger.Info("🖱️ feed connected", "id", feed.id)
	if r.onState != nil {
		r.onState(true)
	}

	defer func() {
		r.mu.Lock()
		wasActive := r.active == feed
		if wasActive {
			r.active = nil
		}
		r.mu.Unlock()

		// A displaced feed stays quiet; its successor already owns the
		// connected state.
		if wasActive {
			r.logger.Info("🖱️ feed disconnected",
				"id", feed.id,
				"uptime", time.Since(feed.opened).Round(time.Millisecond),
			)
			if r.onState != nil {
				r.onState(false)
			}
		}
	}()

	for {
		_, data, err := c.ReadMessage()
		if err != nil {
			return
		}
		r.dispatch(feed.id, data)
	}
}

// dispatch parses one record and routes it. Anything unparseable or
// invalid is skipped.
func (r *Receiver) dispatch(feedID string, data []byte) {
	rec, err := protocol.Parse(data)
	if err != nil {
		r.skipped.Add(1)
		r.logger.Debug("record skipped", "feed", feedID, "error", err)
		return
	}

	switch rec := rec.(type) {
	case *protocol.Hello:
		r.logger.Info("🖱️ sensor hello", "feed", feedID, "device", rec.Device)

	case *protocol.MousePos:
		if err := rec.Validate(); err != nil {
			r.skipped.Add(1)
			r.logger.Debug("record skipped", "feed", feedID, "error", err)
			return
		}
		r.received.Add(1)
		if r.onPosition != nil {
			r.onPosition(rec.X, rec.Y, rec.W, rec.H)
		}
	}
}

// Active reports whether a feed is currently connected.
func (r *Receiver) Active() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.active != nil
}

// ReceiverStats is a snapshot of receiver counters.
type ReceiverStats struct {
	Active    bool  `json:"active"`
	Received  int64 `json:"received"`
	Skipped   int64 `json:"skipped"`
	Displaced int64 `json:"displaced"`
}

// Stats returns a snapshot of receiver counters.
func (r *Receiver) Stats() ReceiverStats {
	return ReceiverStats{
		Active:    r.Active(),
		Received:  r.received.Load(),
		Skipped:   r.skipped.Load(),
		Displaced: r.displaced.Load(),
	}
}

// Stop closes the active feed, if any. The read loop notices and runs its
// normal disconnect path; route teardown belongs to the owning fiber app.
func (r *Receiver) Stop() {
	r.mu.Lock()
	active := r.active
	r.mu.Unlock()

	if active != nil {
		active.conn.Close()
	}
}
