// feed-sim replays a synthetic pointer sweep into a console, for developing
// and demoing without a physical sensor.
package main

import (
	"flag"
	"fmt"
	"math"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/sonogrid/go-sonogrid/internal/config"
	"github.com/sonogrid/go-sonogrid/internal/log"
	"github.com/sonogrid/go-sonogrid/pkg/channel"
	"github.com/sonogrid/go-sonogrid/pkg/protocol"
)

func main() {
	url := flag.String("url", config.ConsoleURL("ws://127.0.0.1:8765/ws/telemetry"), "console telemetry endpoint")
	w := flag.Float64("w", 1600, "viewport width")
	h := flag.Float64("h", 1101, "viewport height")
	rate := flag.Duration("rate", 25*time.Millisecond, "interval between position records")
	period := flag.Duration("period", 8*time.Second, "time for one full sweep of the viewport")
	level := flag.String("log-level", config.EnvString("LOG_LEVEL", "info"), "log level")
	flag.Parse()

	log.Init(*level)

	cfg := channel.DefaultConfig()
	cfg.URL = *url

	producer, err := channel.NewProducer(cfg, log.L())
	if err != nil {
		log.Error("❌ producer setup failed", "error", err)
		os.Exit(1)
	}
	if err := producer.Start(); err != nil {
		log.Error("❌ producer start failed", "error", err)
		os.Exit(1)
	}

	device := fmt.Sprintf("feed-sim-%s", uuid.NewString()[:8])
	producer.Enqueue(protocol.NewHello(device))
	log.Info("🎬 sweeping", "device", device, "url", *url, "period", *period)

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)

	ticker := time.NewTicker(*rate)
	defer ticker.Stop()
	start := time.Now()

loop:
	for {
		select {
		case <-sig:
			break loop
		case <-ticker.C:
			// Lissajous path: covers every cell without retracing itself.
			t := time.Since(start).Seconds() / period.Seconds() * 2 * math.Pi
			x := *w / 2 * (1 + math.Sin(t))
			y := *h / 2 * (1 + math.Sin(2*t+math.Pi/3))
			producer.Enqueue(protocol.NewMousePos(x, y, *w, *h))
		}
	}

	producer.Stop()
}
