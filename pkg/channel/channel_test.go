package channel

import (
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gorilla/websocket"

	"github.com/sonogrid/go-sonogrid/pkg/protocol"
)

// callbackLog records receiver callback invocations for assertions.
type callbackLog struct {
	mu        sync.Mutex
	positions [][4]float64
	states    []bool
}

func (c *callbackLog) onPosition(x, y, w, h float64) {
	c.mu.Lock()
	c.positions = append(c.positions, [4]float64{x, y, w, h})
	c.mu.Unlock()
}

func (c *callbackLog) onState(connected bool) {
	c.mu.Lock()
	c.states = append(c.states, connected)
	c.mu.Unlock()
}

func (c *callbackLog) positionCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.positions)
}

func (c *callbackLog) position(i int) [4]float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.positions[i]
}

func (c *callbackLog) stateSeq() []bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]bool, len(c.states))
	copy(out, c.states)
	return out
}

// waitFor polls cond until it holds or the timeout expires.
func waitFor(t *testing.T, timeout time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func startReceiverApp(t *testing.T, addr string, r *Receiver) *fiber.App {
	t.Helper()
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
	})
	r.RegisterRoutes(app)

	go app.Listen(addr)
	time.Sleep(100 * time.Millisecond)
	return app
}

func TestConnectionStateString(t *testing.T) {
	cases := []struct {
		state ConnectionState
		want  string
	}{
		{StateDisconnected, "disconnected"},
		{StateConnecting, "connecting"},
		{StateConnected, "connected"},
		{ConnectionState(99), "disconnected"},
	}
	for _, tc := range cases {
		if got := tc.state.String(); got != tc.want {
			t.Errorf("String(%d) = %s, want %s", tc.state, got, tc.want)
		}
	}
}

func TestProducerConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.QueueSize = 0

	if _, err := NewProducer(cfg, nil); err == nil {
		t.Error("expected error for zero queue_size")
	}

	cfg = DefaultConfig()
	cfg.URL = ""
	if _, err := NewProducer(cfg, nil); err == nil {
		t.Error("expected error for empty url")
	}
}

func TestProducerEnqueueBeforeStart(t *testing.T) {
	p, err := NewProducer(DefaultConfig(), nil)
	if err != nil {
		t.Fatalf("NewProducer() error: %v", err)
	}

	if err := p.Enqueue(protocol.NewMousePos(1, 2, 100, 100)); err != nil {
		t.Fatalf("Enqueue() error: %v", err)
	}

	stats := p.Stats()
	if stats.Queued != 1 {
		t.Errorf("Queued = %d, want 1", stats.Queued)
	}
	if stats.State != "disconnected" {
		t.Errorf("State = %s, want disconnected", stats.State)
	}
}

func TestReceiverDispatchesRecords(t *testing.T) {
	log := &callbackLog{}
	r := NewReceiver(log.onPosition, log.onState, nil)

	app := startReceiverApp(t, ":18090", r)
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18090/ws/telemetry", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer ws.Close()

	hello, _ := protocol.NewHello("test-sensor").Bytes()
	ws.WriteMessage(websocket.TextMessage, hello)

	pos, _ := protocol.NewMousePos(10, 20, 100, 100).Bytes()
	ws.WriteMessage(websocket.TextMessage, pos)

	waitFor(t, 2*time.Second, "position callback", func() bool {
		return log.positionCount() == 1
	})

	got := log.position(0)
	want := [4]float64{10, 20, 100, 100}
	if got != want {
		t.Errorf("position = %v, want %v", got, want)
	}

	states := log.stateSeq()
	if len(states) != 1 || !states[0] {
		t.Errorf("states = %v, want [true]", states)
	}
	if !r.Active() {
		t.Error("Active() = false with a live feed")
	}
}

// Malformed, unknown-type and bad-viewport records are skipped without
// dropping the connection.
func TestReceiverSkipsMalformedRecords(t *testing.T) {
	log := &callbackLog{}
	r := NewReceiver(log.onPosition, log.onState, nil)

	app := startReceiverApp(t, ":18091", r)
	defer app.Shutdown()

	ws, _, err := websocket.DefaultDialer.Dial("ws://localhost:18091/ws/telemetry", nil)
	if err != nil {
		t.Fatalf("dial error: %v", err)
	}
	defer ws.Close()

	ws.WriteMessage(websocket.TextMessage, []byte("not json"))
	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"unknown","x":1}`))
	ws.WriteMessage(websocket.TextMessage, []byte(`{"type":"mouse_pos","x":5,"y":5,"w":0,"h":100,"ts":1}`))

	// A valid record after the garbage proves the connection survived.
	pos, _ := protocol.NewMousePos(42, 7, 200, 150).Bytes()
	ws.WriteMessage(websocket.TextMessage, pos)

	waitFor(t, 2*time.Second, "valid record to arrive", func() bool {
		return log.positionCount() == 1
	})

	got := log.position(0)
	if got[0] != 42 || got[1] != 7 {
		t.Errorf("position = %v, want x=42 y=7", got)
	}

	stats := r.Stats()
	if stats.Skipped != 3 {
		t.Errorf("Skipped = %d, want 3", stats.Skipped)
	}
	if stats.Received != 1 {
		t.Errorf("Received = %d, want 1", stats.Received)
	}
}

// A second sensor connection displaces the first.
func TestReceiverDisplacesPriorFeed(t *testing.T) {
	log := &callbackLog{}
	r := NewReceiver(log.onPosition, log.onState, nil)

	app := startReceiverApp(t, ":18092", r)
	defer app.Shutdown()

	ws1, _, err := websocket.DefaultDialer.Dial("ws://localhost:18092/ws/telemetry", nil)
	if err != nil {
		t.Fatalf("first dial error: %v", err)
	}
	defer ws1.Close()
	time.Sleep(50 * time.Millisecond)

	ws2, _, err := websocket.DefaultDialer.Dial("ws://localhost:18092/ws/telemetry", nil)
	if err != nil {
		t.Fatalf("second dial error: %v", err)
	}
	defer ws2.Close()
	time.Sleep(50 * time.Millisecond)

	// The displaced connection is closed by the receiver.
	ws1.SetReadDeadline(time.Now().Add(2 * time.Second))
	if _, _, err := ws1.ReadMessage(); err == nil {
		t.Error("displaced connection still readable, want close")
	}

	if got := r.Stats().Displaced; got != 1 {
		t.Errorf("Displaced = %d, want 1", got)
	}

	// The newer feed is live and dispatching.
	pos, _ := protocol.NewMousePos(3, 4, 100, 100).Bytes()
	ws2.WriteMessage(websocket.TextMessage, pos)

	waitFor(t, 2*time.Second, "record from the newer feed", func() bool {
		return log.positionCount() == 1
	})

	// Both accepts were reported; no disconnect was reported for the
	// displaced feed.
	states := log.stateSeq()
	if len(states) != 2 || !states[0] || !states[1] {
		t.Errorf("states = %v, want [true true]", states)
	}
}

// End to end: the producer starts before the receiver exists, retries,
// connects once the receiver appears, delivers in order, and reconnects
// after the receiver drops the feed.
func TestProducerDeliversAndReconnects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://localhost:18093/ws/telemetry"
	cfg.ReconnectDelay = 100 * time.Millisecond

	p, err := NewProducer(cfg, nil)
	if err != nil {
		t.Fatalf("NewProducer() error: %v", err)
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer p.Stop()

	p.Enqueue(protocol.NewMousePos(1, 1, 100, 100))

	// Let at least one dial fail before the receiver exists.
	time.Sleep(250 * time.Millisecond)
	if got := p.Stats().Retries; got == 0 {
		t.Error("Retries = 0 before the receiver exists, want > 0")
	}

	log := &callbackLog{}
	r := NewReceiver(log.onPosition, log.onState, nil)
	app := startReceiverApp(t, ":18093", r)
	defer app.Shutdown()

	waitFor(t, 3*time.Second, "queued record after reconnect", func() bool {
		return log.positionCount() == 1
	})
	if got := p.State(); got != StateConnected {
		t.Errorf("State() = %s, want connected", got)
	}

	// Records enqueued while connected arrive in order.
	p.Enqueue(protocol.NewMousePos(2, 2, 100, 100))
	p.Enqueue(protocol.NewMousePos(3, 3, 100, 100))
	waitFor(t, 2*time.Second, "ordered delivery", func() bool {
		return log.positionCount() == 3
	})
	for i := 0; i < 3; i++ {
		if got := log.position(i); got[0] != float64(i+1) {
			t.Errorf("position[%d].x = %v, want %d", i, got[0], i+1)
		}
	}

	// Drop the feed server-side; the producer must come back on its own.
	retriesBefore := p.Stats().Retries
	r.Stop()

	waitFor(t, 3*time.Second, "automatic reconnect", func() bool {
		return p.Stats().Retries > retriesBefore && p.State() == StateConnected
	})

	p.Enqueue(protocol.NewMousePos(4, 4, 100, 100))
	waitFor(t, 2*time.Second, "delivery after reconnect", func() bool {
		return log.positionCount() == 4
	})
}

func TestProducerStopIsBounded(t *testing.T) {
	cfg := DefaultConfig()
	cfg.URL = "ws://127.0.0.1:1/ws/telemetry"
	cfg.ReconnectDelay = 50 * time.Millisecond

	p, err := NewProducer(cfg, nil)
	if err != nil {
		t.Fatalf("NewProducer() error: %v", err)
	}

	// Stop before start is a no-op.
	if err := p.Stop(); err != nil {
		t.Errorf("Stop() before Start error: %v", err)
	}

	if err := p.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(80 * time.Millisecond)

	start := time.Now()
	if err := p.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("Stop() took %v, want bounded teardown", elapsed)
	}

	if got := p.State(); got != StateDisconnected {
		t.Errorf("State() = %s after Stop, want disconnected", got)
	}
}
