// Package feedback renders resolved pointer intensity as audio.
//
// Two independently scheduled channels share nothing but the clock:
//
//   - the loop channel plays a waveform endlessly, with a gain that tracks
//     the resolved grid intensity in real time
//   - the speech channel speaks one-shot announcements with latest-wins
//     preemption driven by a generation counter
//
// Each channel owns its audio sink outright, so simultaneous loop playback
// and speech never contend for a device handle and no mixing stage is
// needed.
package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/gopxl/beep"

	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/synth"
)

// Config holds feedback output configuration.
type Config struct {
	// WavPath is the looping waveform file. Empty, missing or undecodable
	// paths fall back to a generated sine tone.
	WavPath string `json:"wav_path"`

	// ToneHz is the fallback tone frequency.
	ToneHz float64 `json:"tone_hz"`

	// ToneSampleRate is the sample rate of the generated fallback tone.
	ToneSampleRate int `json:"tone_sample_rate"`

	// SynthTimeout bounds a single synthesis request.
	SynthTimeout time.Duration `json:"synth_timeout"`
}

// DefaultConfig returns sensible feedback defaults.
func DefaultConfig() Config {
	return Config{
		WavPath:        "",
		ToneHz:         440,
		ToneSampleRate: 44100,
		SynthTimeout:   15 * time.Second,
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ToneHz <= 0 {
		return fmt.Errorf("tone_hz must be positive, got %v", c.ToneHz)
	}
	if c.ToneSampleRate <= 0 {
		return fmt.Errorf("tone_sample_rate must be positive, got %d", c.ToneSampleRate)
	}
	if c.SynthTimeout <= 0 {
		return fmt.Errorf("synth_timeout must be positive, got %v", c.SynthTimeout)
	}
	return nil
}

// Controller owns the loop and speech channels.
type Controller struct {
	cfg    Config
	loop   *LoopChannel
	speech *SpeechChannel
	logger *slog.Logger

	source beep.StreamSeekCloser
}

// NewController wires both feedback channels. Each channel gets its own
// sink; provider may be nil, which disables speech for the session.
func NewController(cfg Config, loopSink, speechSink audioio.Sink, provider synth.Provider, logger *slog.Logger) (*Controller, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid feedback config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	return &Controller{
		cfg:    cfg,
		loop:   NewLoopChannel(loopSink, logger),
		speech: NewSpeechChannel(speechSink, provider, logger, cfg.SynthTimeout),
		logger: logger,
	}, nil
}

// Start opens both sinks and begins the waveform loop at zero gain.
func (c *Controller) Start(ctx context.Context) error {
	source, format := OpenWaveform(c.cfg, c.logger)
	c.source = source

	if err := c.loop.Start(ctx, source, format); err != nil {
		source.Close()
		c.source = nil
		return err
	}
	if err := c.speech.Start(ctx); err != nil {
		c.loop.Stop()
		source.Close()
		c.source = nil
		return err
	}
	return nil
}

// UpdateGain sets the loop gain. Last write wins; there is no queue.
func (c *Controller) UpdateGain(gain float64) {
	c.loop.SetGain(gain)
}

// Gain returns the current loop gain.
func (c *Controller) Gain() float64 {
	return c.loop.Gain()
}

// Speak requests an announcement on the speech channel.
func (c *Controller) Speak(text string) {
	c.speech.Speak(text)
}

// SpeechEnabled reports whether announcements are active.
func (c *Controller) SpeechEnabled() bool {
	return c.speech.Enabled()
}

// Loop exposes the loop channel, mainly for status reporting.
func (c *Controller) Loop() *LoopChannel {
	return c.loop
}

// Speech exposes the speech channel, mainly for status reporting.
func (c *Controller) Speech() *SpeechChannel {
	return c.speech
}

// Stop halts both channels and closes the waveform source.
// The first error wins; both channels are always stopped.
func (c *Controller) Stop() error {
	var firstErr error

	if err := c.loop.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := c.speech.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if c.source != nil {
		c.source.Close()
		c.source = nil
	}

	return firstErr
}
