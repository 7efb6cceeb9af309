// Sonogrid console - receives pointer telemetry, resolves it against the
// score map and renders it as audio feedback.
package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"

	"github.com/sonogrid/go-sonogrid/internal/config"
	"github.com/sonogrid/go-sonogrid/internal/log"
	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/console"
	"github.com/sonogrid/go-sonogrid/pkg/synth"
)

func main() {
	cfg, level := parseFlags()
	log.Init(level)

	provider := newSynthProvider()
	if provider != nil {
		defer provider.Close()
	}

	con, err := console.New(cfg, provider, log.L())
	if err != nil {
		log.Error("❌ console setup failed", "error", err)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := con.Start(ctx); err != nil {
		log.Error("❌ console start failed", "error", err)
		os.Exit(1)
	}

	<-ctx.Done()
	con.Stop()
}

// newSynthProvider builds the announcement provider. Missing credentials
// disable the speech channel for the session; everything else keeps
// running.
func newSynthProvider() synth.Provider {
	apiKey := os.Getenv("OPENAI_API_KEY")
	if apiKey == "" {
		log.Warn("OPENAI_API_KEY not set, announcements disabled for this session")
		return nil
	}

	provider, err := synth.NewOpenAI(
		synth.WithAPIKey(apiKey),
		synth.WithLogger(log.L()),
	)
	if err != nil {
		log.Warn("synthesis provider unavailable, announcements disabled", "error", err)
		return nil
	}
	return provider
}

// parseFlags parses command line flags with environment overrides and
// returns the console configuration plus the log level.
func parseFlags() (console.Config, string) {
	cfg := console.DefaultConfig()

	listen := flag.String("listen", config.ListenAddr(cfg.ListenAddr), "HTTP/websocket listen address")
	image := flag.String("image", config.EnvString("SONOGRID_IMAGE", ""), "source image the score cache is keyed by")
	cacheDir := flag.String("cache-dir", config.EnvString("SONOGRID_CACHE_DIR", cfg.CacheDir), "analysis cache directory")
	factor := flag.Int("factor", config.EnvInt("SONOGRID_FACTOR", cfg.FactorIndex), "interest factor index in the analysis cache")
	rows := flag.Int("rows", cfg.Resolver.Rows, "grid rows")
	cols := flag.Int("cols", cfg.Resolver.Cols, "grid columns")
	minIntensity := flag.Float64("min-intensity", cfg.Resolver.MinIntensity, "gain floor in [0,1]")
	intensityFactor := flag.Float64("intensity-factor", cfg.Resolver.IntensityFactor, "gain amplification factor")
	wav := flag.String("wav", config.EnvString("SONOGRID_WAV", ""), "looping waveform file (empty = generated tone)")
	backend := flag.String("audio-backend", string(cfg.Audio.Backend), "audio backend: auto, portaudio, mock")
	device := flag.String("audio-device", "", "audio output device name (empty = system default)")
	level := flag.String("log-level", config.EnvString("LOG_LEVEL", "info"), "log level: debug, info, warn, error")
	flag.Parse()

	cfg.ListenAddr = *listen
	cfg.ImagePath = *image
	cfg.CacheDir = *cacheDir
	cfg.FactorIndex = *factor
	cfg.Resolver.Rows = *rows
	cfg.Resolver.Cols = *cols
	cfg.Resolver.MinIntensity = *minIntensity
	cfg.Resolver.IntensityFactor = *intensityFactor
	cfg.Feedback.WavPath = *wav
	cfg.Audio.Backend = audioio.Backend(*backend)
	cfg.Audio.Device = *device

	return cfg, *level
}
