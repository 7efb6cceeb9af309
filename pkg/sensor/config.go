package sensor

import (
	"fmt"
	"time"

	"github.com/sonogrid/go-sonogrid/pkg/channel"
	"github.com/sonogrid/go-sonogrid/pkg/pointer"
)

// Config holds the sensor application configuration.
type Config struct {
	// DeviceName identifies this sensor in hello records. A session suffix
	// is appended at startup.
	DeviceName string `json:"device_name"`

	// Pointer is the position integration configuration.
	Pointer pointer.Config `json:"pointer"`

	// Device is the raw input device configuration.
	Device pointer.DeviceConfig `json:"device"`

	// Channel is the telemetry producer configuration.
	Channel channel.Config `json:"channel"`

	// PollInterval is how often the integrator is sampled. It caps the
	// send rate: at most one position record per interval, and only when
	// the pointer actually moved.
	PollInterval time.Duration `json:"poll_interval"`
}

// DefaultConfig returns a sensor configuration sampling at ~60Hz.
func DefaultConfig() Config {
	return Config{
		DeviceName:   "sonogrid-sensor",
		Pointer:      pointer.DefaultConfig(),
		Device:       pointer.DefaultDeviceConfig(),
		Channel:      channel.DefaultConfig(),
		PollInterval: 16 * time.Millisecond,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.DeviceName == "" {
		return fmt.Errorf("device_name must not be empty")
	}
	if c.PollInterval <= 0 {
		return fmt.Errorf("poll_interval must be positive, got %v", c.PollInterval)
	}
	if err := c.Pointer.Validate(); err != nil {
		return fmt.Errorf("pointer: %w", err)
	}
	if err := c.Device.Validate(); err != nil {
		return fmt.Errorf("device: %w", err)
	}
	if err := c.Channel.Validate(); err != nil {
		return fmt.Errorf("channel: %w", err)
	}
	return nil
}
