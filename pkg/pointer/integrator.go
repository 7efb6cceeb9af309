// Package pointer integrates raw relative pointer motion into a clamped
// absolute position and reads the motion stream from a raw input device.
package pointer

import (
	"math"
	"sync"
)

// Position is an absolute pointer coordinate within the configured bounds.
type Position struct {
	X int
	Y int
}

// Integrator accumulates relative motion deltas into an absolute position.
// It is safe for concurrent use by one device-reading goroutine and any
// number of readers; an explicit override (SetPosition) serializes through
// the same lock.
type Integrator struct {
	mu    sync.Mutex
	cfg   Config
	x, y  int
	moved bool
}

// NewIntegrator creates an integrator positioned at the configured start,
// clamped into bounds. The moved flag starts clear.
func NewIntegrator(cfg Config) *Integrator {
	return &Integrator{
		cfg: cfg,
		x:   clampInt(cfg.StartX, cfg.MinX, cfg.MaxX),
		y:   clampInt(cfg.StartY, cfg.MinY, cfg.MaxY),
	}
}

// ApplyDelta adds a scaled motion delta to the current position and clamps
// to bounds. Any call marks the position as moved.
func (in *Integrator) ApplyDelta(dx, dy int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	if in.cfg.Rotate180 {
		dx = -dx
		dy = -dy
	}

	in.x = clampInt(in.x+int(math.Round(float64(dx)*in.cfg.ScaleX)), in.cfg.MinX, in.cfg.MaxX)
	in.y = clampInt(in.y+int(math.Round(float64(dy)*in.cfg.ScaleY)), in.cfg.MinY, in.cfg.MaxY)
	in.moved = true
}

// SetPosition overrides the current position, clamping to bounds.
func (in *Integrator) SetPosition(x, y int) {
	in.mu.Lock()
	defer in.mu.Unlock()

	in.x = clampInt(x, in.cfg.MinX, in.cfg.MaxX)
	in.y = clampInt(y, in.cfg.MinY, in.cfg.MaxY)
	in.moved = true
}

// Position returns a consistent snapshot of the current position.
func (in *Integrator) Position() Position {
	in.mu.Lock()
	defer in.mu.Unlock()
	return Position{X: in.x, Y: in.y}
}

// ConsumeMoved reports whether the position changed since the last call,
// clearing the flag. Polling loops use this as an edge detector to send
// telemetry only while the pointer is actually moving.
func (in *Integrator) ConsumeMoved() bool {
	in.mu.Lock()
	defer in.mu.Unlock()

	moved := in.moved
	in.moved = false
	return moved
}

// Config returns the integration configuration.
func (in *Integrator) Config() Config {
	return in.cfg
}

func clampInt(v, min, max int) int {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
