package audioio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// PortAudioSink plays audio through PortAudio's blocking write API.
//
// The sink owns one device-sized staging buffer bound to the stream at
// open time. Write accumulates incoming chunks and pushes full buffers;
// Flush pads and drains; Clear aborts the stream so an in-flight Write
// returns promptly.
//
// PortAudio exposes no master volume, so PortAudioSink deliberately does
// not implement VolumeControl; callers fall back to software gain.
type PortAudioSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex // lifecycle: running, closed, stream
	running bool
	closed  bool
	stream  *portaudio.Stream
	buf     []int16 // bound to the stream; guarded by writeMu

	writeMu sync.Mutex // serializes Write and Flush
	pendMu  sync.Mutex // guards pending; never held across stream calls
	pending []int16

	clearGen atomic.Int64

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	underruns      atomic.Int64
}

// NewPortAudioSink creates a PortAudio-backed sink.
// The device is not opened until Start.
func NewPortAudioSink(cfg Config, logger *slog.Logger) *PortAudioSink {
	if logger == nil {
		logger = slog.Default()
	}

	return &PortAudioSink{
		cfg:    cfg,
		logger: logger,
	}
}

// Start initializes PortAudio and opens the output stream.
func (s *PortAudioSink) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if s.running {
		return nil
	}

	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("portaudio init: %w", err)
	}

	frames := s.cfg.BufferSize()
	s.buf = make([]int16, frames*s.cfg.Channels)

	stream, err := s.openStream(frames)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("portaudio start: %w", err)
	}

	s.stream = stream
	s.running = true

	s.logger.Info("portaudio sink started",
		"sample_rate", s.cfg.SampleRate,
		"channels", s.cfg.Channels,
		"frames_per_buffer", frames,
		"device", s.cfg.Device,
	)

	return nil
}

// openStream opens the configured device, or the system default when no
// device selector is set.
func (s *PortAudioSink) openStream(frames int) (*portaudio.Stream, error) {
	if s.cfg.Device == "" {
		stream, err := portaudio.OpenDefaultStream(
			0, s.cfg.Channels,
			float64(s.cfg.SampleRate),
			frames, &s.buf,
		)
		if err != nil {
			return nil, fmt.Errorf("portaudio open default: %w", err)
		}
		return stream, nil
	}

	devices, err := portaudio.Devices()
	if err != nil {
		return nil, fmt.Errorf("portaudio list devices: %w", err)
	}

	var dev *portaudio.DeviceInfo
	for _, d := range devices {
		if d.MaxOutputChannels >= s.cfg.Channels &&
			strings.Contains(strings.ToLower(d.Name), strings.ToLower(s.cfg.Device)) {
			dev = d
			break
		}
	}
	if dev == nil {
		return nil, fmt.Errorf("audio output device %q not found", s.cfg.Device)
	}

	params := portaudio.LowLatencyParameters(nil, dev)
	params.Output.Channels = s.cfg.Channels
	params.SampleRate = float64(s.cfg.SampleRate)
	params.FramesPerBuffer = frames

	stream, err := portaudio.OpenStream(params, &s.buf)
	if err != nil {
		return nil, fmt.Errorf("portaudio open %q: %w", dev.Name, err)
	}
	return stream, nil
}

// Write queues an audio chunk for playback, converting sample rate and
// channel count to the device format as needed. Full device buffers are
// pushed to the stream; a trailing partial buffer stays pending until the
// next Write or Flush.
func (s *PortAudioSink) Write(ctx context.Context, chunk AudioChunk) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed || !s.running {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	stream := s.stream
	s.mu.Unlock()

	samples := s.adapt(chunk)

	s.chunksWritten.Add(1)
	s.samplesWritten.Add(int64(len(samples)))

	s.pendMu.Lock()
	s.pending = append(s.pending, samples...)
	s.pendMu.Unlock()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		gen := s.clearGen.Load()

		s.pendMu.Lock()
		if len(s.pending) < len(s.buf) {
			s.pendMu.Unlock()
			return nil
		}
		copy(s.buf, s.pending[:len(s.buf)])
		s.pending = s.pending[:copy(s.pending, s.pending[len(s.buf):])]
		s.pendMu.Unlock()

		if err := stream.Write(); err != nil {
			if s.clearGen.Load() != gen {
				// Clear aborted the stream mid-write; not an error.
				return nil
			}
			if errors.Is(err, portaudio.OutputUnderflowed) {
				// Data was written, an audible gap preceded it.
				s.underruns.Add(1)
				continue
			}
			return fmt.Errorf("portaudio write: %w", err)
		}
	}
}

// adapt converts a chunk to the device format. Resampling happens while
// the audio is mono; stereo chunks at a foreign rate are downmixed first.
func (s *PortAudioSink) adapt(chunk AudioChunk) []int16 {
	samples := chunk.Samples

	channels := chunk.Channels
	if channels == 0 {
		channels = s.cfg.Channels
	}
	rate := chunk.SampleRate
	if rate == 0 {
		rate = s.cfg.SampleRate
	}

	if rate != s.cfg.SampleRate && channels == 2 {
		samples = StereoToMono(samples)
		channels = 1
	}
	if rate != s.cfg.SampleRate {
		samples = Resample(samples, rate, s.cfg.SampleRate)
	}

	if channels == 1 && s.cfg.Channels == 2 {
		samples = MonoToStereo(samples)
	} else if channels == 2 && s.cfg.Channels == 1 {
		samples = StereoToMono(samples)
	}

	return samples
}

// Flush plays out any pending partial buffer padded with silence, then
// drains the device.
func (s *PortAudioSink) Flush(ctx context.Context) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return io.ErrClosedPipe
	}
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	stream := s.stream
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}

	s.pendMu.Lock()
	n := len(s.pending)
	if n > 0 {
		for i := range s.buf {
			s.buf[i] = 0
		}
		copy(s.buf, s.pending)
		s.pending = s.pending[:0]
	}
	s.pendMu.Unlock()

	if n > 0 {
		if err := stream.Write(); err != nil && !errors.Is(err, portaudio.OutputUnderflowed) {
			return fmt.Errorf("portaudio write: %w", err)
		}
	}

	// Stop waits for buffered audio to finish; Start re-arms the stream.
	if err := stream.Stop(); err != nil {
		return fmt.Errorf("portaudio drain: %w", err)
	}
	if err := stream.Start(); err != nil {
		return fmt.Errorf("portaudio restart: %w", err)
	}

	return nil
}

// Clear discards pending and device-buffered audio immediately.
// Any blocked Write returns without error.
func (s *PortAudioSink) Clear() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return io.ErrClosedPipe
	}
	if !s.running || s.stream == nil {
		return nil
	}

	s.clearGen.Add(1)

	s.pendMu.Lock()
	s.pending = s.pending[:0]
	s.pendMu.Unlock()

	if err := s.stream.Abort(); err != nil {
		return fmt.Errorf("portaudio abort: %w", err)
	}
	if err := s.stream.Start(); err != nil {
		return fmt.Errorf("portaudio restart: %w", err)
	}

	return nil
}

// Stop halts playback without draining and releases the device.
func (s *PortAudioSink) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

func (s *PortAudioSink) stopLocked() error {
	if !s.running {
		return nil
	}
	s.running = false
	s.clearGen.Add(1)

	var firstErr error
	if s.stream != nil {
		if err := s.stream.Abort(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("portaudio abort: %w", err)
		}
		if err := s.stream.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("portaudio close: %w", err)
		}
		s.stream = nil
	}
	if err := portaudio.Terminate(); err != nil && firstErr == nil {
		firstErr = fmt.Errorf("portaudio terminate: %w", err)
	}

	s.pendMu.Lock()
	s.pending = nil
	s.pendMu.Unlock()

	s.logger.Info("portaudio sink stopped")

	return firstErr
}

// Config returns the audio configuration.
func (s *PortAudioSink) Config() Config {
	return s.cfg
}

// Name returns "portaudio".
func (s *PortAudioSink) Name() string {
	return "portaudio"
}

// Close releases all resources.
func (s *PortAudioSink) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true

	return s.stopLocked()
}

// Stats returns sink statistics.
func (s *PortAudioSink) Stats() SinkStats {
	s.mu.Lock()
	running := s.running
	s.mu.Unlock()

	s.pendMu.Lock()
	buffered := int64(len(s.pending))
	s.pendMu.Unlock()

	return SinkStats{
		ChunksWritten:   s.chunksWritten.Load(),
		SamplesWritten:  s.samplesWritten.Load(),
		Underruns:       s.underruns.Load(),
		Running:         running,
		Backend:         "portaudio",
		BufferedSamples: buffered,
	}
}

// Ensure PortAudioSink implements SinkWithStats.
var _ SinkWithStats = (*PortAudioSink)(nil)
