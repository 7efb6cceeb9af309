package feedback_test

import (
	"math"
	"testing"

	"github.com/sonogrid/go-sonogrid/pkg/feedback"
)

func TestSineToneAmplitudeBounded(t *testing.T) {
	tone := feedback.NewSineTone(44100, 440, 0.6)

	buf := make([][2]float64, 1024)
	var peak float64
	for i := 0; i < 50; i++ {
		n, ok := tone.Stream(buf)
		if !ok || n != len(buf) {
			t.Fatalf("Stream() = (%d, %v), want (%d, true)", n, ok, len(buf))
		}
		for _, frame := range buf {
			if frame[0] != frame[1] {
				t.Fatalf("channels differ: %v vs %v", frame[0], frame[1])
			}
			if v := math.Abs(frame[0]); v > peak {
				peak = v
			}
		}
	}

	if peak > 0.6 {
		t.Errorf("peak amplitude = %v, want <= 0.6", peak)
	}
	if peak < 0.5 {
		t.Errorf("peak amplitude = %v, suspiciously low for a 0.6 tone", peak)
	}
}

func TestSineTonePhaseWraps(t *testing.T) {
	tone := feedback.NewSineTone(44100, 440, 0.6)

	buf := make([][2]float64, 44100+10)
	tone.Stream(buf)

	if got := tone.Position(); got != 10 {
		t.Errorf("Position() = %d after one second plus 10 samples, want 10", got)
	}
}

func TestSineToneSeek(t *testing.T) {
	tone := feedback.NewSineTone(44100, 440, 0.6)

	if err := tone.Seek(44100 + 5); err != nil {
		t.Fatalf("Seek() error: %v", err)
	}
	if got := tone.Position(); got != 5 {
		t.Errorf("Position() = %d, want 5", got)
	}

	if err := tone.Seek(-3); err != nil {
		t.Fatalf("Seek(-3) error: %v", err)
	}
	if got := tone.Position(); got != 0 {
		t.Errorf("Position() = %d after negative seek, want 0", got)
	}
}

func TestSineToneAmpClamped(t *testing.T) {
	tone := feedback.NewSineTone(44100, 440, 1.5)

	buf := make([][2]float64, 44100)
	tone.Stream(buf)
	for _, frame := range buf {
		if math.Abs(frame[0]) > 1 {
			t.Fatalf("sample %v exceeds full scale with clamped amplitude", frame[0])
		}
	}
}
