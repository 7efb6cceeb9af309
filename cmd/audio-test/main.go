// audio-test plays the feedback waveform through the loop channel with a
// slow gain ramp, to verify an audio setup end to end.
package main

import (
	"context"
	"flag"
	"math"
	"os"
	"time"

	"github.com/sonogrid/go-sonogrid/internal/config"
	"github.com/sonogrid/go-sonogrid/internal/log"
	"github.com/sonogrid/go-sonogrid/pkg/audioio"
	"github.com/sonogrid/go-sonogrid/pkg/feedback"
)

func main() {
	wav := flag.String("wav", config.EnvString("SONOGRID_WAV", ""), "waveform file (empty = generated tone)")
	backend := flag.String("backend", "auto", "audio backend: auto, portaudio, mock")
	device := flag.String("device", "", "audio output device name")
	seconds := flag.Int("seconds", 10, "test duration")
	flag.Parse()

	log.Init("info")

	sinkCfg := audioio.DefaultConfig()
	sinkCfg.Backend = audioio.Backend(*backend)
	sinkCfg.Device = *device

	sink, err := audioio.NewSink(sinkCfg, log.L())
	if err != nil {
		log.Error("❌ sink setup failed", "error", err)
		os.Exit(1)
	}
	defer sink.Close()

	fbCfg := feedback.DefaultConfig()
	fbCfg.WavPath = *wav
	source, format := feedback.OpenWaveform(fbCfg, log.L())
	defer source.Close()

	loop := feedback.NewLoopChannel(sink, log.L())
	if err := loop.Start(context.Background(), source, format); err != nil {
		log.Error("❌ loop start failed", "error", err)
		os.Exit(1)
	}

	// Triangle ramp: silence up to full gain and back, over the duration.
	log.Info("🔊 ramping gain", "seconds", *seconds)
	steps := *seconds * 10
	for i := 0; i <= steps; i++ {
		phase := float64(i) / float64(steps)
		gain := 1 - math.Abs(2*phase-1)
		loop.SetGain(gain)
		time.Sleep(100 * time.Millisecond)
	}

	loop.Stop()
	log.Info("done", "chunks", loop.ChunksWritten(), "rewinds", loop.Rewinds())
}
