package channel

import (
	"fmt"
	"time"
)

// Config holds message channel configuration for the producer side.
type Config struct {
	// URL is the receiver's websocket endpoint.
	URL string `json:"url"`

	// QueueSize bounds the outbound queue. On overflow the oldest queued
	// record is dropped to admit the newest.
	QueueSize int `json:"queue_size"`

	// ReconnectDelay is the fixed wait between connection attempts.
	ReconnectDelay time.Duration `json:"reconnect_delay"`

	// HandshakeTimeout bounds the websocket handshake.
	HandshakeTimeout time.Duration `json:"handshake_timeout"`

	// WriteTimeout bounds a single record write.
	WriteTimeout time.Duration `json:"write_timeout"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		URL:              "ws://127.0.0.1:8765/ws/telemetry",
		QueueSize:        64,
		ReconnectDelay:   time.Second,
		HandshakeTimeout: 5 * time.Second,
		WriteTimeout:     5 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.URL == "" {
		return fmt.Errorf("url must not be empty")
	}
	if c.QueueSize <= 0 {
		return fmt.Errorf("queue_size must be positive, got %d", c.QueueSize)
	}
	if c.ReconnectDelay <= 0 {
		return fmt.Errorf("reconnect_delay must be positive, got %v", c.ReconnectDelay)
	}
	if c.HandshakeTimeout <= 0 {
		return fmt.Errorf("handshake_timeout must be positive, got %v", c.HandshakeTimeout)
	}
	if c.WriteTimeout <= 0 {
		return fmt.Errorf("write_timeout must be positive, got %v", c.WriteTimeout)
	}
	return nil
}
