// Package sensor is the device-side application: it integrates raw pointer
// motion into an absolute position and streams it to the console over the
// lossy telemetry channel.
package sensor

import (
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/sonogrid/go-sonogrid/pkg/channel"
	"github.com/sonogrid/go-sonogrid/pkg/pointer"
	"github.com/sonogrid/go-sonogrid/pkg/protocol"
)

// Sensor owns the device reader, the integrator and the producer, plus the
// polling loop between them.
type Sensor struct {
	cfg    Config
	logger *slog.Logger
	device string

	integ    *pointer.Integrator
	reader   *pointer.DeviceReader
	producer *channel.Producer

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}

	sampled atomic.Int64
}

// New builds a sensor from its configuration. The device identity gets a
// random session suffix so consecutive runs are distinguishable in console
// logs.
func New(cfg Config, logger *slog.Logger) (*Sensor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid sensor config: %w", err)
	}
	if logger == nil {
		logger = slog.Default()
	}

	producer, err := channel.NewProducer(cfg.Channel, logger)
	if err != nil {
		return nil, err
	}

	integ := pointer.NewIntegrator(cfg.Pointer)

	return &Sensor{
		cfg:      cfg,
		logger:   logger.With("component", "sensor"),
		device:   fmt.Sprintf("%s-%s", cfg.DeviceName, uuid.NewString()[:8]),
		integ:    integ,
		reader:   pointer.NewDeviceReader(cfg.Device, integ, logger),
		producer: producer,
	}, nil
}

// Start launches the producer, the device reader and the polling loop.
// One hello record is enqueued up front; like everything else on the
// channel it is best-effort.
func (s *Sensor) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if err := s.producer.Start(); err != nil {
		return err
	}
	if err := s.reader.Start(); err != nil {
		s.producer.Stop()
		return err
	}

	if err := s.producer.Enqueue(protocol.NewHello(s.device)); err != nil {
		s.logger.Warn("hello enqueue failed", "error", err)
	}

	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	go s.poll()

	s.logger.Info("🖱️ sensor started",
		"device", s.device,
		"path", s.cfg.Device.Path,
		"url", s.cfg.Channel.URL,
		"poll", s.cfg.PollInterval,
	)
	return nil
}

// poll samples the integrator on a fixed interval and enqueues a position
// record only when the pointer moved since the last sample. The interval
// caps the send rate; the moved flag keeps a resting pointer silent.
func (s *Sensor) poll() {
	defer close(s.done)

	ticker := time.NewTicker(s.cfg.PollInterval)
	defer ticker.Stop()

	w := float64(s.cfg.Pointer.SpanX())
	h := float64(s.cfg.Pointer.SpanY())

	for {
		select {
		case <-s.stopCh:
			return
		case <-ticker.C:
			if !s.integ.ConsumeMoved() {
				continue
			}
			pos := s.integ.Position()
			rec := protocol.NewMousePos(float64(pos.X), float64(pos.Y), w, h)
			if err := s.producer.Enqueue(rec); err != nil {
				s.logger.Warn("position enqueue failed", "error", err)
				continue
			}
			s.sampled.Add(1)
		}
	}
}

// Integrator exposes the position integrator, for explicit overrides.
func (s *Sensor) Integrator() *pointer.Integrator {
	return s.integ
}

// Device returns the session device identity.
func (s *Sensor) Device() string {
	return s.device
}

// Stats is a snapshot of sensor counters.
type Stats struct {
	Device   string                `json:"device"`
	Position pointer.Position      `json:"position"`
	Sampled  int64                 `json:"sampled"`
	Reader   pointer.DeviceStats   `json:"reader"`
	Producer channel.ProducerStats `json:"producer"`
}

// Stats returns a snapshot of sensor counters.
func (s *Sensor) Stats() Stats {
	return Stats{
		Device:   s.device,
		Position: s.integ.Position(),
		Sampled:  s.sampled.Load(),
		Reader:   s.reader.Stats(),
		Producer: s.producer.Stats(),
	}
}

// Stop halts the polling loop, the device reader and the producer.
func (s *Sensor) Stop() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done

	var firstErr error
	if err := s.reader.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.producer.Stop(); err != nil && firstErr == nil {
		firstErr = err
	}

	s.logger.Info("sensor stopped", "sampled", s.sampled.Load())
	return firstErr
}
