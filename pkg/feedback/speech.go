package feedback

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/synth"
)

// SpeechChannel speaks one utterance at a time with latest-wins preemption.
//
// Every Speak increments a generation counter. An in-flight utterance
// compares its captured generation against the current one at three
// checkpoints — before synthesis, after synthesis, and before it would
// flush — and silently abandons itself on mismatch. Preemption also
// cancels the superseded utterance's context and clears the sink, so a
// playing utterance goes quiet immediately instead of draining.
//
// A channel constructed without a provider disables itself for the
// session with a single diagnostic; Speak then becomes a no-op.
type SpeechChannel struct {
	sink     audioio.Sink
	provider synth.Provider
	logger   *slog.Logger

	// mu guards gen, playing, cancel and enabled together so that
	// increment-and-preempt is atomic against concurrent Speak calls.
	mu      sync.Mutex
	gen     int64
	playing bool
	cancel  context.CancelFunc
	enabled bool

	wg sync.WaitGroup

	synthTimeout time.Duration
}

// NewSpeechChannel creates a speech channel around the given sink.
// A nil provider disables the channel for the session.
func NewSpeechChannel(sink audioio.Sink, provider synth.Provider, logger *slog.Logger, synthTimeout time.Duration) *SpeechChannel {
	if logger == nil {
		logger = slog.Default()
	}
	if synthTimeout <= 0 {
		synthTimeout = 15 * time.Second
	}

	s := &SpeechChannel{
		sink:         sink,
		provider:     provider,
		logger:       logger,
		enabled:      provider != nil,
		synthTimeout: synthTimeout,
	}

	if provider == nil {
		logger.Info("🔇 speech channel disabled: no synthesis provider configured")
	}

	return s
}

// Start opens the audio sink.
func (s *SpeechChannel) Start(ctx context.Context) error {
	if err := s.sink.Start(ctx); err != nil {
		return fmt.Errorf("start speech sink: %w", err)
	}
	return nil
}

// Speak requests an utterance. Empty text and a disabled channel are
// no-ops. Any utterance currently playing or still synthesizing is
// superseded: its audio is cleared and its result discarded. Speak never
// blocks on synthesis or playback.
func (s *SpeechChannel) Speak(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	s.mu.Lock()
	if !s.enabled {
		s.mu.Unlock()
		s.logger.Debug("speech disabled, dropping utterance", "chars", len(text))
		return
	}

	s.gen++
	gen := s.gen

	if s.cancel != nil {
		// Render the previous utterance moot wherever it is.
		s.cancel()
	}
	if s.playing {
		// Discard its buffered audio so nothing stale stays audible.
		if err := s.sink.Clear(); err != nil {
			s.logger.Warn("clear before speak failed", "error", err)
		}
		s.playing = false
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.mu.Unlock()

	s.wg.Add(1)
	go s.utter(ctx, gen, text)
}

// utter synthesizes and plays one utterance, abandoning itself the moment
// a newer generation exists.
func (s *SpeechChannel) utter(ctx context.Context, gen int64, text string) {
	defer s.wg.Done()

	if s.stale(gen) {
		s.logger.Debug("utterance superseded before synthesis", "gen", gen)
		return
	}

	synthCtx, cancel := context.WithTimeout(ctx, s.synthTimeout)
	defer cancel()

	result, err := s.provider.Synthesize(synthCtx, text)
	if err != nil {
		if ctx.Err() == nil {
			// Real failure; supersede-cancellations are expected and quiet.
			s.logger.Warn("speech synthesis failed", "error", err, "chars", len(text))
		}
		s.mu.Lock()
		if s.gen == gen {
			s.playing = false
		}
		s.mu.Unlock()
		return
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		s.logger.Debug("utterance superseded during synthesis", "gen", gen)
		return
	}
	// Covers the race between synthesis completing and a newer request
	// landing a moment later: anything buffered belongs to the past.
	if err := s.sink.Clear(); err != nil {
		s.logger.Warn("clear before playback failed", "error", err)
	}
	s.playing = true
	s.mu.Unlock()

	chunk := audioio.AudioChunk{
		Samples:    audioio.BytesToSamples(result.Audio),
		SampleRate: result.SampleRate,
		Channels:   result.Channels,
	}

	err = s.sink.Write(ctx, chunk)
	if err == nil && !s.stale(gen) {
		err = s.sink.Flush(ctx)
	}
	if err != nil && ctx.Err() == nil {
		s.logger.Warn("speech playback failed", "error", err)
	}

	s.mu.Lock()
	if s.gen == gen {
		s.playing = false
	}
	s.mu.Unlock()

	if ctx.Err() == nil && !s.stale(gen) {
		s.logger.Debug("utterance complete",
			"gen", gen,
			"chars", result.CharCount,
			"duration", result.Duration(),
		)
	}
}

func (s *SpeechChannel) stale(gen int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen != gen
}

// Disable silences the channel: the current utterance is preempted and
// subsequent Speak calls are no-ops until Enable.
func (s *SpeechChannel) Disable() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.gen++
	if s.cancel != nil {
		s.cancel()
	}
	if s.playing {
		if err := s.sink.Clear(); err != nil {
			s.logger.Warn("clear on disable failed", "error", err)
		}
		s.playing = false
	}
	s.enabled = false
}

// Enable re-enables the channel. It stays disabled without a provider.
func (s *SpeechChannel) Enable() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enabled = s.provider != nil
}

// Enabled reports whether Speak currently does anything.
func (s *SpeechChannel) Enabled() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enabled
}

// Generation returns the current generation counter.
func (s *SpeechChannel) Generation() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// Playing reports whether an utterance is currently audible.
func (s *SpeechChannel) Playing() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.playing
}

// Stop preempts any in-flight utterance, waits for background work to
// finish, and releases the sink.
func (s *SpeechChannel) Stop() error {
	s.Disable()
	s.wg.Wait()

	if err := s.sink.Stop(); err != nil {
		return fmt.Errorf("stop speech sink: %w", err)
	}
	return nil
}
