package audioio

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// MockSink is a mock audio sink for testing.
// It discards audio data but tracks statistics, and can optionally
// simulate device draining so callers can exercise interruption paths.
type MockSink struct {
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	closed  bool

	// Stats
	chunksWritten  atomic.Int64
	samplesWritten atomic.Int64
	clears         atomic.Int64

	// Buffer simulation
	buffer []AudioChunk

	// Options
	writeDelay    time.Duration
	captureWrites bool
	captured      []AudioChunk

	// clearCh is closed by Clear to unblock an in-flight Write.
	clearCh chan struct{}

	// Hardware volume recording
	volumeSets []int
}

// MockSinkOption configures a MockSink.
type MockSinkOption func(*MockSink)

// WithWriteDelay makes each Write block for the given duration, simulating
// a device draining its buffer. Clear unblocks a pending Write.
func WithWriteDelay(d time.Duration) MockSinkOption {
	return func(m *MockSink) {
		m.writeDelay = d
	}
}

// WithCaptureWrites keeps a copy of every written chunk for inspection.
func WithCaptureWrites() MockSinkOption {
	return func(m *MockSink) {
		m.captureWrites = true
	}
}

// NewMockSink creates a new mock audio sink.
func NewMockSink(cfg Config, logger *slog.Logger, opts ...MockSinkOption) *MockSink {
	if logger == nil {
		logger = slog.Default()
	}

	m := &MockSink{
		cfg:     cfg,
		logger:  logger,
		buffer:  make([]AudioChunk, 0, 100),
		clearCh: make(chan struct{}),
	}

	for _, opt := range opts {
		opt(m)
	}

	return m
}

// Start begins accepting audio.
func (m *MockSink) Start(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}

	m.running = true
	m.logger.Info("mock audio sink started")

	return nil
}

// Stop halts audio acceptance.
func (m *MockSink) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.running = false
	m.logger.Info("mock audio sink stopped")

	return nil
}

// Write accepts an audio chunk.
// With a write delay configured, Write blocks until the delay elapses,
// the context is cancelled, or Clear is called.
func (m *MockSink) Write(ctx context.Context, chunk AudioChunk) error {
	m.mu.Lock()
	if m.closed || !m.running {
		m.mu.Unlock()
		return io.ErrClosedPipe
	}

	m.buffer = append(m.buffer, chunk)
	if m.captureWrites {
		m.captured = append(m.captured, chunk)
	}
	delay := m.writeDelay
	clearCh := m.clearCh
	m.mu.Unlock()

	m.chunksWritten.Add(1)
	m.samplesWritten.Add(int64(len(chunk.Samples)))

	if delay > 0 {
		timer := time.NewTimer(delay)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-clearCh:
			// Buffer discarded mid-write; the write itself still succeeded.
			return nil
		case <-timer.C:
		}
	}

	return nil
}

// Flush simulates waiting for playback.
func (m *MockSink) Flush(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	// Simulate playback time
	totalSamples := 0
	for _, chunk := range m.buffer {
		totalSamples += len(chunk.Samples)
	}

	if totalSamples > 0 && m.cfg.SampleRate > 0 {
		duration := time.Duration(float64(totalSamples) / float64(m.cfg.SampleRate) * float64(time.Second))
		// Don't actually wait the full duration in mock mode, just a token amount
		waitTime := duration / 100
		if waitTime > 10*time.Millisecond {
			waitTime = 10 * time.Millisecond
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(waitTime):
		}
	}

	m.buffer = m.buffer[:0]
	return nil
}

// Clear discards buffered audio and unblocks any pending Write.
func (m *MockSink) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.buffer = m.buffer[:0]
	m.clears.Add(1)

	// Wake a blocked Write, then arm a fresh channel for the next one.
	close(m.clearCh)
	m.clearCh = make(chan struct{})

	m.logger.Debug("mock audio sink cleared")

	return nil
}

// SetVolume records the requested hardware volume.
func (m *MockSink) SetVolume(percent int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return io.ErrClosedPipe
	}

	m.volumeSets = append(m.volumeSets, percent)
	return nil
}

// VolumeSets returns every volume percentage passed to SetVolume, in order.
func (m *MockSink) VolumeSets() []int {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]int, len(m.volumeSets))
	copy(out, m.volumeSets)
	return out
}

// Captured returns the chunks written so far.
// Only populated when the sink was created with WithCaptureWrites.
func (m *MockSink) Captured() []AudioChunk {
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]AudioChunk, len(m.captured))
	copy(out, m.captured)
	return out
}

// Clears returns the number of times Clear has been called.
func (m *MockSink) Clears() int64 {
	return m.clears.Load()
}

// Config returns the audio configuration.
func (m *MockSink) Config() Config {
	return m.cfg
}

// Name returns "mock".
func (m *MockSink) Name() string {
	return "mock"
}

// Close releases resources.
func (m *MockSink) Close() error {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return nil
	}
	m.closed = true
	m.mu.Unlock()

	m.Stop()
	return nil
}

// Stats returns sink statistics.
func (m *MockSink) Stats() SinkStats {
	m.mu.Lock()
	running := m.running
	buffered := int64(0)
	for _, chunk := range m.buffer {
		buffered += int64(len(chunk.Samples))
	}
	m.mu.Unlock()

	return SinkStats{
		ChunksWritten:   m.chunksWritten.Load(),
		SamplesWritten:  m.samplesWritten.Load(),
		Underruns:       0,
		Running:         running,
		Backend:         "mock",
		BufferedSamples: buffered,
	}
}

// Ensure MockSink implements SinkWithStats and VolumeControl.
var (
	_ SinkWithStats = (*MockSink)(nil)
	_ VolumeControl = (*MockSink)(nil)
)
