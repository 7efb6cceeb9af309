package pointer

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDecodePacket(t *testing.T) {
	tests := []struct {
		name   string
		packet []byte
		wantDX int
		wantDY int
		wantOK bool
	}{
		{"right", []byte{0x08, 10, 0}, 10, 0, true},
		{"left via sign bit", []byte{0x18, 0xF6, 0}, -10, 0, true},
		{"device up is screen up", []byte{0x08, 0, 5}, 0, -5, true},
		{"device down is screen down", []byte{0x28, 0, 0xFB}, 0, 5, true},
		{"diagonal", []byte{0x38, 0xFF, 0xFF}, -1, 1, true},
		{"zero motion", []byte{0x09, 0, 0}, 0, 0, true},
		{"missing sync bit", []byte{0x00, 10, 10}, 0, 0, false},
		{"x overflow", []byte{0x48, 0xFF, 0}, 0, 0, false},
		{"y overflow", []byte{0x88, 0, 0xFF}, 0, 0, false},
		{"short packet", []byte{0x08, 1}, 0, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dx, dy, ok := decodePacket(tt.packet)
			if ok != tt.wantOK {
				t.Fatalf("decodePacket() ok = %v, want %v", ok, tt.wantOK)
			}
			if dx != tt.wantDX || dy != tt.wantDY {
				t.Errorf("decodePacket() = (%d, %d), want (%d, %d)", dx, dy, tt.wantDX, tt.wantDY)
			}
		})
	}
}

func fastDeviceConfig(path string) DeviceConfig {
	return DeviceConfig{
		Path:            path,
		NotFoundDelay:   5 * time.Millisecond,
		PermissionDelay: 5 * time.Millisecond,
		ReadErrorDelay:  5 * time.Millisecond,
	}
}

func TestDeviceReaderMissingDevice(t *testing.T) {
	in := NewIntegrator(testConfig())
	r := NewDeviceReader(fastDeviceConfig(filepath.Join(t.TempDir(), "no-such-device")), in, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The reader should idle in its retry loop without crashing or moving
	// the position.
	time.Sleep(30 * time.Millisecond)

	pos := in.Position()
	if pos.X != 50 || pos.Y != 50 {
		t.Errorf("position = (%d, %d), want (50, 50) untouched", pos.X, pos.Y)
	}

	stopped := make(chan struct{})
	go func() {
		r.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
	case <-time.After(time.Second):
		t.Fatal("Stop() did not return within 1s")
	}

	if r.Stats().Running {
		t.Error("Stats().Running = true after Stop")
	}
}

func TestDeviceReaderReadsPackets(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mice")
	// Two motion packets: +10 in x, then +3 in x. EOF sends the reader
	// through its reopen path, which is fine for this assertion.
	data := []byte{0x08, 10, 0, 0x08, 3, 0}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatal(err)
	}

	in := NewIntegrator(testConfig())
	r := NewDeviceReader(fastDeviceConfig(path), in, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if in.Position().X > 50 {
			break
		}
		time.Sleep(5 * time.Millisecond)
	}
	r.Stop()

	pos := in.Position()
	if pos.X <= 50 {
		t.Errorf("X = %d, want > 50 after motion packets", pos.X)
	}
	if !in.ConsumeMoved() {
		t.Error("ConsumeMoved() = false after device motion")
	}

	stats := r.Stats()
	if stats.PacketsRead < 2 {
		t.Errorf("PacketsRead = %d, want >= 2", stats.PacketsRead)
	}
	if stats.Opens < 1 {
		t.Errorf("Opens = %d, want >= 1", stats.Opens)
	}
}

func TestDeviceReaderStartIdempotent(t *testing.T) {
	in := NewIntegrator(testConfig())
	r := NewDeviceReader(fastDeviceConfig(filepath.Join(t.TempDir(), "gone")), in, nil)

	if err := r.Start(); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	if err := r.Start(); err != nil {
		t.Fatalf("second Start() error = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := r.Stop(); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
}
