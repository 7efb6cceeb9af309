// Sonogrid sensor - reads raw pointer motion on the device and streams the
// integrated position to a console.
package main

import (
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonogrid/go-sonogrid/internal/config"
	"github.com/sonogrid/go-sonogrid/internal/log"
	"github.com/sonogrid/go-sonogrid/pkg/sensor"
)

func main() {
	cfg, level := parseFlags()
	log.Init(level)

	s, err := sensor.New(cfg, log.L())
	if err != nil {
		log.Error("❌ sensor setup failed", "error", err)
		os.Exit(1)
	}

	if err := s.Start(); err != nil {
		log.Error("❌ sensor start failed", "error", err)
		os.Exit(1)
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	s.Stop()
}

// parseFlags parses command line flags with environment overrides and
// returns the sensor configuration plus the log level.
func parseFlags() (sensor.Config, string) {
	cfg := sensor.DefaultConfig()

	url := flag.String("url", config.ConsoleURL(cfg.Channel.URL), "console telemetry endpoint")
	device := flag.String("device", config.MouseDevice(cfg.Device.Path), "pointer device node")
	name := flag.String("name", cfg.DeviceName, "device name sent in hello records")
	minX := flag.Int("min-x", cfg.Pointer.MinX, "minimum x coordinate")
	maxX := flag.Int("max-x", cfg.Pointer.MaxX, "maximum x coordinate")
	minY := flag.Int("min-y", cfg.Pointer.MinY, "minimum y coordinate")
	maxY := flag.Int("max-y", cfg.Pointer.MaxY, "maximum y coordinate")
	scaleX := flag.Float64("scale-x", cfg.Pointer.ScaleX, "x delta scale factor")
	scaleY := flag.Float64("scale-y", cfg.Pointer.ScaleY, "y delta scale factor")
	rotate := flag.Bool("rotate-180", config.EnvBool("SONOGRID_ROTATE_180", false), "invert both axes for an upside-down device")
	queue := flag.Int("queue", cfg.Channel.QueueSize, "outbound queue size (drop-oldest on overflow)")
	reconnect := flag.Duration("reconnect-delay", config.EnvDuration("SONOGRID_RECONNECT_DELAY", cfg.Channel.ReconnectDelay), "delay between connection attempts")
	poll := flag.Duration("poll", cfg.PollInterval, "integrator sampling interval (caps the send rate)")
	level := flag.String("log-level", config.EnvString("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	cfg.DeviceName = *name
	cfg.Device.Path = *device
	cfg.Pointer.MinX, cfg.Pointer.MaxX = *minX, *maxX
	cfg.Pointer.MinY, cfg.Pointer.MaxY = *minY, *maxY
	cfg.Pointer.ScaleX, cfg.Pointer.ScaleY = *scaleX, *scaleY
	cfg.Pointer.Rotate180 = *rotate
	// Recenter the start position inside whatever bounds were given.
	cfg.Pointer.StartX = (*minX + *maxX) / 2
	cfg.Pointer.StartY = (*minY + *maxY) / 2
	cfg.Channel.URL = *url
	cfg.Channel.QueueSize = *queue
	cfg.Channel.ReconnectDelay = *reconnect
	cfg.PollInterval = *poll

	return cfg, *level
}
