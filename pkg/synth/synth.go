// Package synth converts short announcement texts to raw PCM audio.
//
// The console speaks grid cell announcements through a synthesis provider.
// Providers return PCM16 ready for direct playback through an audio sink.
// There is no streaming surface: announcements are a few words long, and the
// newest request supersedes older ones before streaming would pay off.
//
// Example usage:
//
//	provider, _ := synth.NewOpenAI(
//	    synth.WithAPIKey(os.Getenv("OPENAI_API_KEY")),
//	    synth.WithVoice(synth.VoiceNova),
//	)
//	defer provider.Close()
//
//	result, _ := provider.Synthesize(ctx, "B4, score 64")
//	// result.Audio contains little-endian PCM16 bytes
package synth

import (
	"context"
	"time"
)

// Provider defines the speech synthesis interface.
type Provider interface {
	// Synthesize converts text to PCM16 audio, returning the complete buffer.
	Synthesize(ctx context.Context, text string) (*Result, error)

	// Health checks provider connectivity and credential validity.
	Health(ctx context.Context) error

	// Close releases any resources held by the provider.
	Close() error
}

// Result is a complete synthesis result.
type Result struct {
	// Audio contains little-endian PCM16 bytes.
	Audio []byte

	// SampleRate of the audio in Hz.
	SampleRate int

	// Channels is 1 for mono, 2 for stereo.
	Channels int

	// CharCount is the number of characters synthesized.
	CharCount int

	// LatencyMs is the request round-trip time in milliseconds.
	LatencyMs int64
}

// Duration returns the playback duration of the audio.
func (r *Result) Duration() time.Duration {
	if r.SampleRate <= 0 || r.Channels <= 0 {
		return 0
	}
	samples := len(r.Audio) / 2
	return time.Duration(samples) * time.Second / time.Duration(r.SampleRate*r.Channels)
}
