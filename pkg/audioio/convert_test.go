package audioio

import (
	"testing"
)

func TestResample_SameRate(t *testing.T) {
	samples := []int16{100, 200, 300, 400, 500}
	result := Resample(samples, 24000, 24000)

	if len(result) != len(samples) {
		t.Errorf("Expected %d samples, got %d", len(samples), len(result))
	}

	for i, s := range samples {
		if result[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, result[i])
		}
	}
}

func TestResample_Downsample(t *testing.T) {
	// 48kHz -> 24kHz (2:1 ratio)
	samples := make([]int16, 960) // 20ms at 48kHz
	for i := range samples {
		samples[i] = int16(i)
	}

	result := Resample(samples, 48000, 24000)

	expectedLen := 480
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Upsample(t *testing.T) {
	// 24kHz -> 44.1kHz, the speech-to-device path
	samples := make([]int16, 480) // 20ms at 24kHz
	for i := range samples {
		samples[i] = int16(i * 10)
	}

	result := Resample(samples, 24000, 44100)

	expectedLen := 882 // 20ms at 44.1kHz
	if len(result) != expectedLen {
		t.Errorf("Expected %d samples, got %d", expectedLen, len(result))
	}
}

func TestResample_Empty(t *testing.T) {
	result := Resample(nil, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for nil input")
	}

	result = Resample([]int16{}, 24000, 48000)
	if len(result) != 0 {
		t.Errorf("Expected empty result for empty input")
	}
}

func TestBytesToSamples(t *testing.T) {
	data := []byte{0x02, 0x01, 0x04, 0x03}
	samples := BytesToSamples(data)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	if samples[0] != 0x0102 {
		t.Errorf("Sample 0: expected 0x0102, got 0x%04x", samples[0])
	}

	if samples[1] != 0x0304 {
		t.Errorf("Sample 1: expected 0x0304, got 0x%04x", samples[1])
	}
}

func TestSamplesToBytes(t *testing.T) {
	samples := []int16{0x0102, 0x0304}
	data := SamplesToBytes(samples)

	if len(data) != 4 {
		t.Fatalf("Expected 4 bytes, got %d", len(data))
	}

	expected := []byte{0x02, 0x01, 0x04, 0x03}
	for i, b := range expected {
		if data[i] != b {
			t.Errorf("Byte %d: expected 0x%02x, got 0x%02x", i, b, data[i])
		}
	}
}

func TestSamplesToBytes_Negative(t *testing.T) {
	samples := []int16{-1}
	data := SamplesToBytes(samples)

	if data[0] != 0xFF || data[1] != 0xFF {
		t.Errorf("Expected 0xFFFF encoding for -1, got 0x%02x%02x", data[1], data[0])
	}

	back := BytesToSamples(data)
	if back[0] != -1 {
		t.Errorf("Round trip: expected -1, got %d", back[0])
	}
}

func TestMonoToStereo(t *testing.T) {
	mono := []int16{100, 200, 300}
	stereo := MonoToStereo(mono)

	if len(stereo) != 6 {
		t.Fatalf("Expected 6 samples, got %d", len(stereo))
	}

	expected := []int16{100, 100, 200, 200, 300, 300}
	for i, s := range expected {
		if stereo[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, stereo[i])
		}
	}
}

func TestStereoToMono(t *testing.T) {
	stereo := []int16{100, 200, 300, 400}
	mono := StereoToMono(stereo)

	if len(mono) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(mono))
	}

	if mono[0] != 150 {
		t.Errorf("Sample 0: expected 150, got %d", mono[0])
	}
	if mono[1] != 350 {
		t.Errorf("Sample 1: expected 350, got %d", mono[1])
	}
}

func TestFramesToPCM16_Stereo(t *testing.T) {
	frames := [][2]float64{
		{0, 0},
		{0.5, -0.5},
		{1, -1},
	}

	samples := FramesToPCM16(frames, 2)

	if len(samples) != 6 {
		t.Fatalf("Expected 6 samples, got %d", len(samples))
	}

	if samples[0] != 0 || samples[1] != 0 {
		t.Errorf("Frame 0: expected silence, got %d/%d", samples[0], samples[1])
	}
	if samples[2] != 16383 {
		t.Errorf("Frame 1 left: expected 16383, got %d", samples[2])
	}
	if samples[3] != -16383 {
		t.Errorf("Frame 1 right: expected -16383, got %d", samples[3])
	}
	if samples[4] != 32767 {
		t.Errorf("Frame 2 left: expected 32767, got %d", samples[4])
	}
	if samples[5] != -32767 {
		t.Errorf("Frame 2 right: expected -32767, got %d", samples[5])
	}
}

func TestFramesToPCM16_MonoDownmix(t *testing.T) {
	frames := [][2]float64{
		{0.5, -0.5}, // cancels to 0
		{0.5, 0.5},
	}

	samples := FramesToPCM16(frames, 1)

	if len(samples) != 2 {
		t.Fatalf("Expected 2 samples, got %d", len(samples))
	}

	if samples[0] != 0 {
		t.Errorf("Sample 0: expected 0, got %d", samples[0])
	}
	if samples[1] != 16383 {
		t.Errorf("Sample 1: expected 16383, got %d", samples[1])
	}
}

func TestFramesToPCM16_Clipping(t *testing.T) {
	frames := [][2]float64{
		{2.0, -3.0},
	}

	samples := FramesToPCM16(frames, 2)

	if samples[0] != 32767 {
		t.Errorf("Expected clip to 32767, got %d", samples[0])
	}
	if samples[1] != -32767 {
		t.Errorf("Expected clip to -32767, got %d", samples[1])
	}
}

func TestAudioChunk_Duration(t *testing.T) {
	chunk := AudioChunk{
		Samples:    make([]int16, 44100*2), // 1 second of stereo
		SampleRate: 44100,
		Channels:   2,
	}

	if d := chunk.Duration(); d != 1.0 {
		t.Errorf("Duration() = %v, want 1.0", d)
	}

	empty := AudioChunk{}
	if d := empty.Duration(); d != 0 {
		t.Errorf("Duration() on empty chunk = %v, want 0", d)
	}
}

func TestAudioChunk_BytesRoundTrip(t *testing.T) {
	chunk := AudioChunk{
		Samples:    []int16{100, -200, 32767, -32768},
		SampleRate: 44100,
		Channels:   2,
	}

	data := chunk.Bytes()

	var back AudioChunk
	back.FromBytes(data, 44100, 2)

	if len(back.Samples) != len(chunk.Samples) {
		t.Fatalf("Expected %d samples, got %d", len(chunk.Samples), len(back.Samples))
	}
	for i, s := range chunk.Samples {
		if back.Samples[i] != s {
			t.Errorf("Sample %d: expected %d, got %d", i, s, back.Samples[i])
		}
	}
}
