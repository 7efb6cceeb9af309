// Package console is the consumer-side application: it receives pointer
// telemetry, resolves each position against the score map, drives the
// audio feedback controller, and serves a status API plus a UI state hub.
package console

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/channel"
	"github.com/sonogrid/go-sonogrid/pkg/feedback"
	"github.com/sonogrid/go-sonogrid/pkg/hub"
	"github.com/sonogrid/go-sonogrid/pkg/scoremap"
	"github.com/sonogrid/go-sonogrid/pkg/synth"
)

// State is the console's last-known state, broadcast to UI clients and
// returned by the status API.
type State struct {
	Connected bool    `json:"connected"`
	X         float64 `json:"x"`
	Y         float64 `json:"y"`
	Cell      string  `json:"cell"`
	Intensity int     `json:"intensity"`
	Gain      float64 `json:"gain"`
	UpdatedMs int64   `json:"updated_ms"`
}

// Console wires the receiver, resolver, feedback controller and UI hub
// together and owns their shared lifecycle.
type Console struct {
	cfg    Config
	logger *slog.Logger

	app        *fiber.App
	receiver   *channel.Receiver
	resolver   *scoremap.Resolver
	controller *feedback.Controller
	uiHub      *hub.Hub

	loopSink   audioio.Sink
	speechSink audioio.Sink

	mu    sync.Mutex
	state State

	started time.Time
}

// New builds a console from its configuration. provider may be nil, which
// disables announcements for the session. The score table is loaded once
// here and immutable afterwards.
func New(cfg Config, provider synth.Provider, logger *slog.Logger) (*Console, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid console config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	table, err := loadTable(cfg, logger)
	if err != nil {
		return nil, err
	}

	loopSink, err := audioio.NewSink(cfg.Audio, logger)
	if err != nil {
		return nil, fmt.Errorf("create loop sink: %w", err)
	}
	speechSink, err := audioio.NewSink(cfg.Audio, logger)
	if err != nil {
		loopSink.Close()
		return nil, fmt.Errorf("create speech sink: %w", err)
	}

	controller, err := feedback.NewController(cfg.Feedback, loopSink, speechSink, provider, logger)
	if err != nil {
		loopSink.Close()
		speechSink.Close()
		return nil, err
	}

	c := &Console{
		cfg:        cfg,
		logger:     logger.With("component", "console"),
		resolver:   scoremap.NewResolver(cfg.Resolver, table),
		controller: controller,
		uiHub:      hub.New("console", logger),
		loopSink:   loopSink,
		speechSink: speechSink,
	}
	c.receiver = channel.NewReceiver(c.onPosition, c.onConnectionState, logger)

	app := fiber.New(fiber.Config{
		AppName:               "sonogrid console",
		DisableStartupMessage: true,
	})

	api := app.Group("/api")
	api.Get("/status", c.handleStatus)
	api.Post("/announce", c.handleAnnounce)
	app.Get("/health", c.handleHealth)

	c.receiver.RegisterRoutes(app)
	c.uiHub.RegisterRoutes(app)
	c.app = app

	return c, nil
}

// loadTable loads the score table from the analysis cache. A cache without
// any usable grid map degrades to an all-zero table (silent feedback); a
// missing or unreadable cache file is a startup error, because writing it
// is the scoring pipeline's job.
func loadTable(cfg Config, logger *slog.Logger) (*scoremap.Table, error) {
	if cfg.ImagePath == "" {
		logger.Warn("no source image configured, all cells score 0")
		return scoremap.NewTable(cfg.Resolver.Rows, cfg.Resolver.Cols, nil), nil
	}

	table, err := scoremap.LoadCached(cfg.ImagePath, cfg.CacheDir, cfg.FactorIndex, cfg.Resolver.Rows, cfg.Resolver.Cols)
	if err != nil {
		if errors.Is(err, scoremap.ErrNoGridMap) {
			logger.Warn("analysis cache has no grid map, all cells score 0",
				"image", cfg.ImagePath,
			)
			return scoremap.NewTable(cfg.Resolver.Rows, cfg.Resolver.Cols, nil), nil
		}
		return nil, err
	}

	logger.Info("🗺️ score table loaded",
		"image", cfg.ImagePath,
		"grid", fmt.Sprintf("%dx%d", table.Rows(), table.Cols()),
	)
	return table, nil
}

// Start opens the audio channels, runs the UI hub and begins serving HTTP.
// It does not block; errors from the listener are logged, not returned.
func (c *Console) Start(ctx context.Context) error {
	if err := c.controller.Start(ctx); err != nil {
		return fmt.Errorf("start feedback: %w", err)
	}

	go c.uiHub.Run()

	c.started = time.Now()
	go func() {
		if err := c.app.Listen(c.cfg.ListenAddr); err != nil {
			c.logger.Error("http server exited", "error", err)
		}
	}()

	c.logger.Info("🎛️ console listening",
		"addr", c.cfg.ListenAddr,
		"grid", fmt.Sprintf("%dx%d", c.cfg.Resolver.Rows, c.cfg.Resolver.Cols),
		"speech", c.controller.SpeechEnabled(),
	)
	return nil
}

// onPosition handles one telemetry position: resolve it, and only when the
// cell or intensity actually changed push the new gain and a UI snapshot.
// Gain updates are last-write-wins; there is no queue between telemetry
// and the loop channel.
func (c *Console) onPosition(x, y, w, h float64) {
	res := c.resolver.Resolve(x, y, w, h)

	c.mu.Lock()
	changed := res.Label != c.state.Cell || res.Intensity != c.state.Intensity
	c.state.X = x
	c.state.Y = y
	c.state.Cell = res.Label
	c.state.Intensity = res.Intensity
	c.state.Gain = res.Gain
	c.state.UpdatedMs = time.Now().UnixMilli()
	state := c.state
	c.mu.Unlock()

	if !changed {
		return
	}

	c.controller.UpdateGain(res.Gain)
	c.uiHub.Broadcast(state)
	c.logger.Debug("cell changed",
		"cell", res.Label,
		"intensity", res.Intensity,
		"gain", res.Gain,
	)
}

// onConnectionState tracks the sensor feed state for the status surface.
// The loop holds its last gain across a disconnect; a resting pointer and
// a lost link sound the same.
func (c *Console) onConnectionState(connected bool) {
	c.mu.Lock()
	c.state.Connected = connected
	c.state.UpdatedMs = time.Now().UnixMilli()
	state := c.state
	c.mu.Unlock()

	c.uiHub.Broadcast(state)
}

// Announce speaks a UI-originated announcement through the speech channel.
// The newest announcement always preempts any older one still in flight.
func (c *Console) Announce(text string) {
	c.controller.Speak(text)
}

// Snapshot returns the current console state.
func (c *Console) Snapshot() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

func (c *Console) handleHealth(ctx *fiber.Ctx) error {
	return ctx.JSON(fiber.Map{
		"status": "ok",
		"uptime": time.Since(c.started).Round(time.Second).String(),
	})
}

func (c *Console) handleStatus(ctx *fiber.Ctx) error {
	speech := c.controller.Speech()

	return ctx.JSON(fiber.Map{
		"state":    c.Snapshot(),
		"receiver": c.receiver.Stats(),
		"loop": fiber.Map{
			"running": c.controller.Loop().Running(),
			"gain":    c.controller.Gain(),
			"chunks":  c.controller.Loop().ChunksWritten(),
			"rewinds": c.controller.Loop().Rewinds(),
		},
		"speech": fiber.Map{
			"enabled":    speech.Enabled(),
			"playing":    speech.Playing(),
			"generation": speech.Generation(),
		},
		"ui_clients": c.uiHub.ClientCount(),
		"uptime":     time.Since(c.started).Round(time.Second).String(),
	})
}

func (c *Console) handleAnnounce(ctx *fiber.Ctx) error {
	var req struct {
		Text string `json:"text"`
	}
	if err := ctx.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "invalid request body")
	}
	if strings.TrimSpace(req.Text) == "" {
		return fiber.NewError(fiber.StatusBadRequest, "text is required")
	}

	c.Announce(req.Text)
	return ctx.JSON(fiber.Map{
		"status":         "accepted",
		"speech_enabled": c.controller.SpeechEnabled(),
	})
}

// Stop tears the console down: feed first, then the hub and feedback
// channels, then the HTTP server. Sinks are closed last.
func (c *Console) Stop() error {
	c.receiver.Stop()
	c.uiHub.Stop()

	var firstErr error
	if err := c.controller.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.app.ShutdownWithTimeout(2 * time.Second); err != nil && firstErr == nil {
		firstErr = err
	}

	c.loopSink.Close()
	c.speechSink.Close()

	c.logger.Info("console stopped")
	return firstErr
}
