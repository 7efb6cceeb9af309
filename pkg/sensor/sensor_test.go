package sensor

import (
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sonogrid/go-sonogrid/pkg/channel"
)

// testConfig returns a sensor config with no reachable device or console,
// so everything stays local and deterministic.
func testConfig(t *testing.T) Config {
	t.Helper()
	cfg := DefaultConfig()
	cfg.Device.Path = filepath.Join(t.TempDir(), "no-such-mouse")
	cfg.Channel.URL = "ws://127.0.0.1:1/ws/telemetry"
	cfg.Channel.ReconnectDelay = 50 * time.Millisecond
	cfg.PollInterval = 10 * time.Millisecond
	return cfg
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

func TestConfigValidation(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DeviceName = ""
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for empty device_name")
	}

	cfg = DefaultConfig()
	cfg.PollInterval = 0
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for zero poll_interval")
	}

	cfg = DefaultConfig()
	cfg.Pointer.MaxX = cfg.Pointer.MinX
	if err := cfg.Validate(); err == nil {
		t.Error("expected error for degenerate bounds")
	}
}

// With no console reachable, records pile up in the producer queue, which
// makes the send-gating observable: one hello at startup, then exactly one
// position record per batch of movement.
func TestSendsOnlyOnMovement(t *testing.T) {
	s, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	// Startup hello only; a resting pointer sends nothing.
	time.Sleep(80 * time.Millisecond)
	if got := s.Stats().Producer.Queued; got != 1 {
		t.Fatalf("Queued = %d before any movement, want 1 (hello)", got)
	}

	s.Integrator().ApplyDelta(5, 5)
	waitFor(t, time.Second, "position record", func() bool {
		return s.Stats().Producer.Queued == 2
	})

	// No further movement, no further records.
	time.Sleep(80 * time.Millisecond)
	if got := s.Stats().Producer.Queued; got != 2 {
		t.Errorf("Queued = %d after movement stopped, want 2", got)
	}
	if got := s.Stats().Sampled; got != 1 {
		t.Errorf("Sampled = %d, want 1", got)
	}
}

// End to end against a real receiver: the integrated position and the
// configured viewport spans arrive on the console side.
func TestDeliversIntegratedPosition(t *testing.T) {
	cfg := testConfig(t)
	cfg.Channel.URL = "ws://localhost:18120/ws/telemetry"

	var mu sync.Mutex
	var positions [][4]float64
	r := channel.NewReceiver(func(x, y, w, h float64) {
		mu.Lock()
		positions = append(positions, [4]float64{x, y, w, h})
		mu.Unlock()
	}, nil, nil)

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	r.RegisterRoutes(app)
	go app.Listen(":18120")
	defer app.Shutdown()
	time.Sleep(100 * time.Millisecond)

	s, err := New(cfg, nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	defer s.Stop()

	s.Integrator().ApplyDelta(10, 20)

	waitFor(t, 3*time.Second, "position delivery", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(positions) >= 1
	})

	mu.Lock()
	got := positions[0]
	mu.Unlock()

	// Default start is the center (800, 550); delta lands at (810, 570).
	want := [4]float64{810, 570, 1600, 1101}
	if got != want {
		t.Errorf("delivered position = %v, want %v", got, want)
	}
}

func TestStopIsBounded(t *testing.T) {
	s, err := New(testConfig(t), nil)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	// Stop before start is a no-op.
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() before Start error: %v", err)
	}

	if err := s.Start(); err != nil {
		t.Fatalf("Start() error: %v", err)
	}
	time.Sleep(50 * time.Millisecond)

	start := time.Now()
	if err := s.Stop(); err != nil {
		t.Errorf("Stop() error: %v", err)
	}
	if elapsed := time.Since(start); elapsed > 3*time.Second {
		t.Errorf("Stop() took %v, want bounded teardown", elapsed)
	}
}
