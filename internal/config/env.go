// Package config provides configuration helpers for sonogrid commands.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Default network configuration.
const (
	DefaultConsolePort = "8765"
	DefaultListenAddr  = ":8765"
)

// ConsoleURL returns the console websocket URL from SONOGRID_URL.
// Falls back to the provided default if not set.
func ConsoleURL(defaultURL string) string {
	if url := os.Getenv("SONOGRID_URL"); url != "" {
		return url
	}
	return defaultURL
}

// ConsoleURLRequired returns the console websocket URL from SONOGRID_URL.
// Exits if not set.
func ConsoleURLRequired() string {
	url := os.Getenv("SONOGRID_URL")
	if url == "" {
		fmt.Fprintln(os.Stderr, "Error: SONOGRID_URL environment variable is required")
		fmt.Fprintln(os.Stderr, "Usage: SONOGRID_URL=ws://192.168.68.50:8765/ws/telemetry go run ./cmd/...")
		os.Exit(1)
	}
	return url
}

// ListenAddr returns the console listen address from LISTEN_ADDR or default.
func ListenAddr(defaultAddr string) string {
	if addr := os.Getenv("LISTEN_ADDR"); addr != "" {
		return addr
	}
	return defaultAddr
}

// MouseDevice returns the pointer device path from MOUSE_DEVICE or default.
func MouseDevice(defaultPath string) string {
	if dev := os.Getenv("MOUSE_DEVICE"); dev != "" {
		return dev
	}
	return defaultPath
}

// EnvString returns the value of key or the default when unset.
func EnvString(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// EnvInt returns the integer value of key or the default when unset or invalid.
func EnvInt(key string, defaultValue int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return defaultValue
}

// EnvFloat returns the float value of key or the default when unset or invalid.
func EnvFloat(key string, defaultValue float64) float64 {
	if v := os.Getenv(key); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			return f
		}
	}
	return defaultValue
}

// EnvDuration returns the duration value of key or the default when unset or invalid.
func EnvDuration(key string, defaultValue time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return defaultValue
}

// EnvBool returns the boolean value of key or the default when unset or invalid.
func EnvBool(key string, defaultValue bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return defaultValue
}
