package pointer

import (
	"errors"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

// packetSize is the length of one PS/2 record from the kernel's aggregated
// pointer stream.
const packetSize = 3

// DeviceReader feeds raw motion deltas from an input device node into an
// Integrator. A background goroutine reopens the device after any failure,
// so an absent or unplugged device never stops integration; the last known
// position is preserved across retries.
type DeviceReader struct {
	cfg    DeviceConfig
	integ  *Integrator
	logger *slog.Logger

	mu      sync.Mutex
	running bool
	file    *os.File
	stopCh  chan struct{}
	done    chan struct{}

	packetsRead atomic.Int64
	packetsBad  atomic.Int64
	opens       atomic.Int64
}

// DeviceStats reports reader counters.
type DeviceStats struct {
	PacketsRead int64
	PacketsBad  int64
	Opens       int64
	Running     bool
}

// NewDeviceReader creates a reader for the given device configuration.
func NewDeviceReader(cfg DeviceConfig, integ *Integrator, logger *slog.Logger) *DeviceReader {
	if logger == nil {
		logger = slog.Default()
	}
	return &DeviceReader{
		cfg:    cfg,
		integ:  integ,
		logger: logger,
	}
}

// Start launches the background read loop.
func (r *DeviceReader) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.running {
		return nil
	}
	r.running = true
	r.stopCh = make(chan struct{})
	r.done = make(chan struct{})

	go r.readLoop()

	r.logger.Info("🖱️ pointer device reader started", "path", r.cfg.Path)
	return nil
}

// Stop terminates the read loop and waits for it to exit. Closing the
// device node unblocks any in-flight read.
func (r *DeviceReader) Stop() error {
	r.mu.Lock()
	if !r.running {
		r.mu.Unlock()
		return nil
	}
	r.running = false
	close(r.stopCh)
	if r.file != nil {
		r.file.Close()
	}
	done := r.done
	r.mu.Unlock()

	<-done
	r.logger.Info("pointer device reader stopped")
	return nil
}

// Stats returns reader counters.
func (r *DeviceReader) Stats() DeviceStats {
	r.mu.Lock()
	running := r.running
	r.mu.Unlock()

	return DeviceStats{
		PacketsRead: r.packetsRead.Load(),
		PacketsBad:  r.packetsBad.Load(),
		Opens:       r.opens.Load(),
		Running:     running,
	}
}

func (r *DeviceReader) readLoop() {
	defer close(r.done)

	buf := make([]byte, packetSize)
	for {
		if r.stopped() {
			return
		}

		f, err := os.Open(r.cfg.Path)
		if err != nil {
			r.logger.Debug("pointer device unavailable", "path", r.cfg.Path, "error", err)
			if !r.wait(r.openRetryDelay(err)) {
				return
			}
			continue
		}

		r.setFile(f)
		r.opens.Add(1)
		r.logger.Info("pointer device opened", "path", r.cfg.Path)

		for {
			if _, err := io.ReadFull(f, buf); err != nil {
				r.setFile(nil)
				f.Close()
				if r.stopped() {
					return
				}
				r.logger.Warn("pointer device read failed, reopening", "error", err)
				if !r.wait(r.cfg.ReadErrorDelay) {
					return
				}
				break
			}
			r.packetsRead.Add(1)

			dx, dy, ok := decodePacket(buf)
			if !ok {
				r.packetsBad.Add(1)
				continue
			}
			if dx == 0 && dy == 0 {
				continue
			}
			r.integ.ApplyDelta(dx, dy)
		}
	}
}

// openRetryDelay maps an open failure to its retry delay. A missing device
// node and an I/O error are expected to clear quickly; a permission error
// usually needs operator action, so it backs off longer.
func (r *DeviceReader) openRetryDelay(err error) time.Duration {
	switch {
	case errors.Is(err, fs.ErrNotExist):
		return r.cfg.NotFoundDelay
	case errors.Is(err, fs.ErrPermission):
		return r.cfg.PermissionDelay
	default:
		return r.cfg.ReadErrorDelay
	}
}

func (r *DeviceReader) setFile(f *os.File) {
	r.mu.Lock()
	r.file = f
	r.mu.Unlock()
}

func (r *DeviceReader) stopped() bool {
	select {
	case <-r.stopCh:
		return true
	default:
		return false
	}
}

// wait sleeps for d or until Stop, reporting false when stopping.
func (r *DeviceReader) wait(d time.Duration) bool {
	select {
	case <-r.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

// decodePacket decodes one PS/2 pointer packet. Byte 0 carries button, sign
// and overflow bits (bit 3 is always set on a well-framed packet); bytes 1
// and 2 are 9-bit two's-complement X and Y deltas. The device reports Y
// increasing upward, so the Y delta is flipped to screen orientation here.
func decodePacket(b []byte) (dx, dy int, ok bool) {
	if len(b) != packetSize {
		return 0, 0, false
	}
	if b[0]&0x08 == 0 {
		return 0, 0, false
	}
	if b[0]&0xC0 != 0 {
		// Overflow in either axis, delta bytes are garbage
		return 0, 0, false
	}

	dx = int(b[1])
	if b[0]&0x10 != 0 {
		dx -= 256
	}
	dy = int(b[2])
	if b[0]&0x20 != 0 {
		dy -= 256
	}
	return dx, -dy, true
}
