package audioio

import (
	"context"
	"io"
	"testing"
	"time"
)

func TestMockSink_StartStop(t *testing.T) {
	cfg := DefaultConfig()

	sink := NewMockSink(cfg, nil)
	defer sink.Close()

	ctx := context.Background()

	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Second Start failed: %v", err)
	}

	if err := sink.Stop(); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}

	if err := sink.Stop(); err != nil {
		t.Fatalf("Second Stop failed: %v", err)
	}
}

func TestMockSink_WriteTracksStats(t *testing.T) {
	cfg := DefaultConfig()

	sink := NewMockSink(cfg, nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{
		Samples:    make([]int16, 882),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}

	for i := 0; i < 3; i++ {
		if err := sink.Write(ctx, chunk); err != nil {
			t.Fatalf("Write %d failed: %v", i, err)
		}
	}

	stats := sink.Stats()
	if stats.ChunksWritten != 3 {
		t.Errorf("ChunksWritten = %d, want 3", stats.ChunksWritten)
	}
	if stats.SamplesWritten != 3*882 {
		t.Errorf("SamplesWritten = %d, want %d", stats.SamplesWritten, 3*882)
	}
	if stats.Backend != "mock" {
		t.Errorf("Backend = %q, want %q", stats.Backend, "mock")
	}
	if !stats.Running {
		t.Error("Expected sink to be running")
	}
}

func TestMockSink_WriteBeforeStart(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)
	defer sink.Close()

	err := sink.Write(context.Background(), AudioChunk{Samples: []int16{1}})
	if err != io.ErrClosedPipe {
		t.Errorf("Write before Start = %v, want io.ErrClosedPipe", err)
	}
}

func TestMockSink_ClearUnblocksWrite(t *testing.T) {
	cfg := DefaultConfig()

	sink := NewMockSink(cfg, nil, WithWriteDelay(5*time.Second))
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	done := make(chan error, 1)
	go func() {
		done <- sink.Write(ctx, AudioChunk{Samples: make([]int16, 100)})
	}()

	// Give the write time to block on its simulated drain.
	time.Sleep(20 * time.Millisecond)

	if err := sink.Clear(); err != nil {
		t.Fatalf("Clear failed: %v", err)
	}

	select {
	case err := <-done:
		if err != nil {
			t.Errorf("Write after Clear = %v, want nil", err)
		}
	case <-time.After(time.Second):
		t.Fatal("Write did not unblock after Clear")
	}

	if sink.Clears() != 1 {
		t.Errorf("Clears() = %d, want 1", sink.Clears())
	}
	if got := sink.Stats().BufferedSamples; got != 0 {
		t.Errorf("BufferedSamples after Clear = %d, want 0", got)
	}
}

func TestMockSink_WriteHonorsContext(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil, WithWriteDelay(5*time.Second))
	defer sink.Close()

	if err := sink.Start(context.Background()); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := sink.Write(ctx, AudioChunk{Samples: make([]int16, 100)})
	if err != context.DeadlineExceeded {
		t.Errorf("Write with expired context = %v, want context.DeadlineExceeded", err)
	}
}

func TestMockSink_CaptureWrites(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil, WithCaptureWrites())
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{Samples: []int16{7, 8, 9}, SampleRate: 44100, Channels: 1}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	captured := sink.Captured()
	if len(captured) != 1 {
		t.Fatalf("Captured %d chunks, want 1", len(captured))
	}
	if len(captured[0].Samples) != 3 || captured[0].Samples[0] != 7 {
		t.Errorf("Captured chunk does not match written chunk: %v", captured[0].Samples)
	}
}

func TestMockSink_VolumeControl(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)
	defer sink.Close()

	// MockSink must satisfy the optional capability interface.
	var vc VolumeControl = sink

	for _, pct := range []int{80, 80, 100} {
		if err := vc.SetVolume(pct); err != nil {
			t.Fatalf("SetVolume(%d) failed: %v", pct, err)
		}
	}

	sets := sink.VolumeSets()
	if len(sets) != 3 {
		t.Fatalf("VolumeSets() returned %d entries, want 3", len(sets))
	}
	if sets[0] != 80 || sets[1] != 80 || sets[2] != 100 {
		t.Errorf("VolumeSets() = %v, want [80 80 100]", sets)
	}
}

func TestMockSink_Flush(t *testing.T) {
	cfg := DefaultConfig()

	sink := NewMockSink(cfg, nil)
	defer sink.Close()

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	chunk := AudioChunk{
		Samples:    make([]int16, 441),
		SampleRate: cfg.SampleRate,
		Channels:   cfg.Channels,
	}
	if err := sink.Write(ctx, chunk); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	if got := sink.Stats().BufferedSamples; got != 441 {
		t.Errorf("BufferedSamples before Flush = %d, want 441", got)
	}

	if err := sink.Flush(ctx); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}

	if got := sink.Stats().BufferedSamples; got != 0 {
		t.Errorf("BufferedSamples after Flush = %d, want 0", got)
	}
}

func TestMockSink_CloseRejectsWrites(t *testing.T) {
	sink := NewMockSink(DefaultConfig(), nil)

	ctx := context.Background()
	if err := sink.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	if err := sink.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := sink.Write(ctx, AudioChunk{Samples: []int16{1}}); err != io.ErrClosedPipe {
		t.Errorf("Write after Close = %v, want io.ErrClosedPipe", err)
	}
	if err := sink.Start(ctx); err != io.ErrClosedPipe {
		t.Errorf("Start after Close = %v, want io.ErrClosedPipe", err)
	}
}

func TestNewSink_MockBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = BackendMock

	sink, err := NewSink(cfg, nil)
	if err != nil {
		t.Fatalf("NewSink failed: %v", err)
	}
	defer sink.Close()

	if sink.Name() != "mock" {
		t.Errorf("Name() = %q, want %q", sink.Name(), "mock")
	}
}

func TestNewSink_InvalidConfig(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Channels = 5

	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("Expected error for invalid channel count")
	}
}

func TestNewSink_UnknownBackend(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Backend = Backend("pulse")

	if _, err := NewSink(cfg, nil); err == nil {
		t.Error("Expected error for unknown backend")
	}
}

func TestAvailableBackends(t *testing.T) {
	backends := AvailableBackends()

	if len(backends) == 0 {
		t.Fatal("Expected at least one backend")
	}
	if backends[0] != BackendMock {
		t.Errorf("First backend = %q, want %q", backends[0], BackendMock)
	}
}
