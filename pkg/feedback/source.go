package feedback

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/wav"
)

// LoadWaveform opens a WAV file as a seekable streamer.
// The caller owns the returned streamer and must Close it.
func LoadWaveform(path string) (beep.StreamSeekCloser, beep.Format, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, beep.Format{}, fmt.Errorf("open waveform: %w", err)
	}

	streamer, format, err := wav.Decode(f)
	if err != nil {
		f.Close()
		return nil, beep.Format{}, fmt.Errorf("decode waveform: %w", err)
	}

	return streamer, format, nil
}

// OpenWaveform loads the configured WAV file, falling back to a generated
// sine tone when the path is empty or the file cannot be decoded. The
// fallback is logged once; a missing waveform never blocks feedback.
func OpenWaveform(cfg Config, logger *slog.Logger) (beep.StreamSeekCloser, beep.Format) {
	if logger == nil {
		logger = slog.Default()
	}

	if cfg.WavPath != "" {
		streamer, format, err := LoadWaveform(cfg.WavPath)
		if err == nil {
			logger.Info("waveform loaded",
				"path", cfg.WavPath,
				"sample_rate", int(format.SampleRate),
				"channels", format.NumChannels,
			)
			return streamer, format
		}
		logger.Warn("waveform unavailable, using tone fallback",
			"path", cfg.WavPath,
			"error", err,
		)
	}

	sr := beep.SampleRate(cfg.ToneSampleRate)
	format := beep.Format{
		SampleRate:  sr,
		NumChannels: 2,
		Precision:   2,
	}
	return NewSineTone(sr, cfg.ToneHz, defaultToneAmp), format
}
