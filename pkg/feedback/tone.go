package feedback

import (
	"math"

	"github.com/gopxl/beep"
)

// defaultToneAmp keeps the generated tone below full scale to avoid
// clipping once gain is applied.
const defaultToneAmp = 0.6

// SineTone is an endless sine generator used when no waveform file is
// available. It satisfies beep.StreamSeekCloser so the loop channel treats
// it exactly like a decoded file; it never drains, so Seek only matters
// for the interface.
type SineTone struct {
	sr   beep.SampleRate
	freq float64
	amp  float64
	pos  int
}

// NewSineTone creates a tone generator at the given frequency.
func NewSineTone(sr beep.SampleRate, freq, amp float64) *SineTone {
	if amp < 0 {
		amp = 0
	}
	if amp > 1 {
		amp = 1
	}
	return &SineTone{sr: sr, freq: freq, amp: amp}
}

// Stream fills samples with the next slice of the sine wave.
func (t *SineTone) Stream(samples [][2]float64) (n int, ok bool) {
	for i := range samples {
		v := t.amp * math.Sin(2*math.Pi*t.freq*float64(t.pos)/float64(t.sr))
		samples[i][0] = v
		samples[i][1] = v

		t.pos++
		if t.pos >= int(t.sr) {
			t.pos = 0
		}
	}
	return len(samples), true
}

// Err always returns nil.
func (t *SineTone) Err() error {
	return nil
}

// Len reports one second of samples; the tone repeats past it.
func (t *SineTone) Len() int {
	return int(t.sr)
}

// Position returns the phase position within the current second.
func (t *SineTone) Position() int {
	return t.pos
}

// Seek moves the phase position.
func (t *SineTone) Seek(p int) error {
	if p < 0 {
		p = 0
	}
	t.pos = p % int(t.sr)
	return nil
}

// Close is a no-op; the generator holds no resources.
func (t *SineTone) Close() error {
	return nil
}

var _ beep.StreamSeekCloser = (*SineTone)(nil)
