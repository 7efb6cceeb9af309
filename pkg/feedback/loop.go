package feedback

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gopxl/beep"
	"github.com/gopxl/beep/effects"

	"github.com/sonogrid/go-sonogrid/pkg/audioio"
)

// LoopChannel plays a waveform in an endless loop with a live gain control.
//
// Gain is applied in software on every pumped chunk; when the sink also
// exposes a hardware volume, the gain is mirrored there best-effort with
// identical values deduplicated. Zero gain keeps the loop advancing and
// writes silence, so raising the gain later resumes mid-waveform rather
// than from the start.
type LoopChannel struct {
	sink   audioio.Sink
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	done    chan struct{}

	gainBits atomic.Uint64

	volMu   sync.Mutex
	lastVol int

	chunks  atomic.Int64
	rewinds atomic.Int64
}

// NewLoopChannel creates a loop channel around the given sink.
// The channel starts at zero gain.
func NewLoopChannel(sink audioio.Sink, logger *slog.Logger) *LoopChannel {
	if logger == nil {
		logger = slog.Default()
	}

	return &LoopChannel{
		sink:    sink,
		logger:  logger,
		lastVol: -1,
	}
}

// Start opens the sink and begins pumping the waveform from its start.
func (l *LoopChannel) Start(ctx context.Context, source beep.StreamSeeker, format beep.Format) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if l.running {
		return nil
	}
	if source == nil {
		return errors.New("feedback: nil waveform source")
	}

	if err := l.sink.Start(ctx); err != nil {
		return fmt.Errorf("start audio sink: %w", err)
	}
	if err := source.Seek(0); err != nil {
		l.sink.Stop()
		return fmt.Errorf("rewind waveform: %w", err)
	}

	pumpCtx, cancel := context.WithCancel(context.Background())
	l.cancel = cancel
	l.done = make(chan struct{})
	l.running = true

	go l.pump(pumpCtx, source, format)

	l.logger.Info("🔊 waveform loop started",
		"sample_rate", int(format.SampleRate),
		"channels", format.NumChannels,
		"sink", l.sink.Name(),
	)

	return nil
}

// pump pulls frames through the volume stage and writes them to the sink.
// The sink's blocking write paces the loop.
func (l *LoopChannel) pump(ctx context.Context, source beep.StreamSeeker, format beep.Format) {
	defer close(l.done)

	channels := format.NumChannels
	if channels < 1 || channels > 2 {
		channels = 2
	}

	frames := l.sink.Config().BufferSize()
	if frames <= 0 {
		frames = 512
	}
	buf := make([][2]float64, frames)

	vol := &effects.Volume{Streamer: source, Base: 2, Volume: 0, Silent: true}

	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if g := l.Gain(); g <= 0 {
			vol.Silent = true
		} else {
			vol.Silent = false
			vol.Volume = math.Log2(g)
		}

		n, ok := vol.Stream(buf)
		if n > 0 {
			chunk := audioio.AudioChunk{
				Samples:    audioio.FramesToPCM16(buf[:n], channels),
				SampleRate: int(format.SampleRate),
				Channels:   channels,
			}
			if err := l.sink.Write(ctx, chunk); err != nil {
				if ctx.Err() != nil {
					return
				}
				l.logger.Warn("waveform write failed, retrying", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-time.After(100 * time.Millisecond):
				}
				continue
			}
			l.chunks.Add(1)
		}

		if !ok || n < len(buf) {
			// Source exhausted: loop back to the start.
			if err := source.Seek(0); err != nil {
				l.logger.Error("waveform rewind failed, stopping loop", "error", err)
				return
			}
			l.rewinds.Add(1)
		}
	}
}

// SetGain updates the loop amplitude, clamped to [0, 1].
// The software gain takes effect on the next pumped chunk; a hardware
// volume, when the sink has one, is mirrored with repeated identical
// values skipped.
func (l *LoopChannel) SetGain(g float64) {
	if math.IsNaN(g) {
		g = 0
	}
	if g < 0 {
		g = 0
	}
	if g > 1 {
		g = 1
	}

	l.gainBits.Store(math.Float64bits(g))
	l.mirrorVolume(g)
}

// Gain returns the current gain.
func (l *LoopChannel) Gain() float64 {
	return math.Float64frombits(l.gainBits.Load())
}

// mirrorVolume pushes the gain to the sink's hardware volume if it has
// one. Failures are debug-logged and retried on the next distinct value.
func (l *LoopChannel) mirrorVolume(g float64) {
	vc, ok := l.sink.(audioio.VolumeControl)
	if !ok {
		return
	}
	vol := int(math.Round(g * 100))

	l.volMu.Lock()
	defer l.volMu.Unlock()

	if vol == l.lastVol {
		return
	}
	if err := vc.SetVolume(vol); err != nil {
		l.logger.Debug("hardware volume update failed", "error", err)
		return
	}
	l.lastVol = vol
}

// Stop halts the pump and releases the sink.
func (l *LoopChannel) Stop() error {
	l.mu.Lock()
	if !l.running {
		l.mu.Unlock()
		return nil
	}
	l.running = false
	l.cancel()
	done := l.done
	l.mu.Unlock()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		l.logger.Warn("waveform pump did not exit in time")
	}

	if err := l.sink.Stop(); err != nil {
		return fmt.Errorf("stop audio sink: %w", err)
	}

	l.logger.Info("waveform loop stopped")
	return nil
}

// Running reports whether the pump is active.
func (l *LoopChannel) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.running
}

// Rewinds returns how many times the waveform has looped.
func (l *LoopChannel) Rewinds() int64 {
	return l.rewinds.Load()
}

// ChunksWritten returns how many chunks the pump has written.
func (l *LoopChannel) ChunksWritten() int64 {
	return l.chunks.Load()
}
