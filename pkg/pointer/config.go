package pointer

import (
	"fmt"
	"time"
)

// Config holds the position integration parameters
type Config struct {
	// Bounds (inclusive) of the addressable coordinate space
	MinX int
	MaxX int
	MinY int
	MaxY int

	// Scale factors applied to raw device deltas before integration
	ScaleX float64
	ScaleY float64

	// Rotate180 inverts both axes for an upside-down mounted device
	Rotate180 bool

	// Starting position; clamped into bounds on construction
	StartX int
	StartY int
}

// DefaultConfig returns the configuration for the reference 1600x1101
// exploration surface with the pointer starting at the center.
func DefaultConfig() Config {
	return Config{
		MinX:   0,
		MaxX:   1600,
		MinY:   0,
		MaxY:   1101,
		ScaleX: 1.0,
		ScaleY: 1.0,

		Rotate180: false,

		StartX: 800,
		StartY: 550,
	}
}

// Validate checks the configuration for consistency.
func (c Config) Validate() error {
	if c.MaxX <= c.MinX {
		return fmt.Errorf("invalid x bounds: [%d, %d]", c.MinX, c.MaxX)
	}
	if c.MaxY <= c.MinY {
		return fmt.Errorf("invalid y bounds: [%d, %d]", c.MinY, c.MaxY)
	}
	if c.ScaleX <= 0 || c.ScaleY <= 0 {
		return fmt.Errorf("scale factors must be positive: %g, %g", c.ScaleX, c.ScaleY)
	}
	return nil
}

// SpanX returns the width of the coordinate space.
func (c Config) SpanX() int { return c.MaxX - c.MinX }

// SpanY returns the height of the coordinate space.
func (c Config) SpanY() int { return c.MaxY - c.MinY }

// DeviceConfig holds the raw input device parameters
type DeviceConfig struct {
	// Path to the pointer device node
	Path string

	// Retry delays per failure class. A missing or erroring device never
	// stops the reader; it waits and tries again.
	NotFoundDelay   time.Duration
	PermissionDelay time.Duration
	ReadErrorDelay  time.Duration
}

// DefaultDeviceConfig returns the configuration for the kernel's
// aggregated PS/2 pointer stream.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Path:            "/dev/input/mice",
		NotFoundDelay:   250 * time.Millisecond,
		PermissionDelay: 1 * time.Second,
		ReadErrorDelay:  250 * time.Millisecond,
	}
}

// Validate checks the device configuration.
func (c DeviceConfig) Validate() error {
	if c.Path == "" {
		return fmt.Errorf("device path must not be empty")
	}
	if c.NotFoundDelay <= 0 || c.PermissionDelay <= 0 || c.ReadErrorDelay <= 0 {
		return fmt.Errorf("retry delays must be positive")
	}
	return nil
}
