package console

import (
	"fmt"

	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/feedback"
	"github.com/sonogrid/go-sonogrid/pkg/scoremap"
)

// Config holds the console application configuration.
type Config struct {
	// ListenAddr is the HTTP/websocket listen address.
	ListenAddr string `json:"listen_addr"`

	// ImagePath is the source image the score cache is keyed by. Empty
	// means no score map: every cell resolves to intensity 0.
	ImagePath string `json:"image_path"`

	// CacheDir holds the analysis cache files written by the offline
	// scoring pipeline.
	CacheDir string `json:"cache_dir"`

	// FactorIndex selects the interest factor inside the analysis cache.
	FactorIndex int `json:"factor_index"`

	// Resolver is the grid geometry and gain curve.
	Resolver scoremap.ResolverConfig `json:"resolver"`

	// Feedback configures the loop and speech channels.
	Feedback feedback.Config `json:"feedback"`

	// Audio configures the output sinks. The loop and speech channels each
	// get their own sink built from this configuration.
	Audio audioio.Config `json:"audio"`
}

// DefaultConfig returns a console configuration with the reference grid
// and playback defaults.
func DefaultConfig() Config {
	return Config{
		ListenAddr:  ":8765",
		CacheDir:    "analysis_cache",
		FactorIndex: 0,
		Resolver:    scoremap.DefaultResolverConfig(),
		Feedback:    feedback.DefaultConfig(),
		Audio:       audioio.DefaultConfig(),
	}
}

// Validate checks that the configuration is valid.
func (c *Config) Validate() error {
	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}
	if err := c.Resolver.Validate(); err != nil {
		return fmt.Errorf("resolver: %w", err)
	}
	if err := c.Feedback.Validate(); err != nil {
		return fmt.Errorf("feedback: %w", err)
	}
	if err := c.Audio.Validate(); err != nil {
		return fmt.Errorf("audio: %w", err)
	}
	return nil
}
