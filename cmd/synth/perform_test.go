package main

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mml"
	"github.com/dudk/synth/output"
	"github.com/dudk/synth/seq"
)

func TestBuildChain(t *testing.T) {
	for _, name := range instrumentNames {
		chain, err := buildChain(name)
		assert.Nil(t, err)
		assert.NotNil(t, chain, "Incorrect chain for %v", name)
	}

	_, err := buildChain("theremin")
	assert.True(t, errors.Is(err, synth.ErrNotFound), "Incorrect error for unknown instrument")
}

func TestRegisterInstruments(t *testing.T) {
	h, err := output.New(synth.DefaultSampleRate, synth.NanoClock())
	assert.Nil(t, err)
	r := seq.NewRegistry()

	assert.Nil(t, registerInstruments(h, r))
	assert.Equal(t, instrumentNames, r.Instruments())

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, h.Wait())
	goleak.VerifyNoLeaks(t)
}

func TestDemoSong(t *testing.T) {
	h, err := output.New(synth.DefaultSampleRate, synth.NanoClock())
	assert.Nil(t, err)
	r := seq.NewRegistry()
	assert.Nil(t, registerInstruments(h, r))

	tracks, err := mml.Parse(r, demoSong, "fm", "triangle")
	assert.Nil(t, err)
	assert.Equal(t, 2, len(tracks))
	assert.Equal(t, "fm", tracks[0].Instrument())
	assert.Equal(t, "triangle", tracks[1].Instrument())
	assert.InDelta(t, tracks[0].Duration().Seconds(), tracks[1].Duration().Seconds(), 1e-6)

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, h.Wait())
	goleak.VerifyNoLeaks(t)
}

func TestPacer(t *testing.T) {
	p := newPacer(8)
	assert.Nil(t, p.Start(1000))

	start := time.Now()
	for i := 0; i < 16; i++ {
		assert.Nil(t, p.Receive(0))
	}
	elapsed := time.Since(start)
	assert.True(t, elapsed >= 15*time.Millisecond, "Incorrect pacing, 16 samples at 1kHz took %v", elapsed)
	assert.Nil(t, p.Stop())
}

func TestPerformanceErrors(t *testing.T) {
	_, err := performance{rate: 0, buffer: 512, driver: "none"}.handler(synth.NanoClock())
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for zero rate")

	_, err = performance{rate: 44100, buffer: 0, driver: "none"}.handler(synth.NanoClock())
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for zero buffer")

	_, err = performance{rate: 44100, buffer: 512, driver: "alsa"}.handler(synth.NanoClock())
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for unknown driver")

	_, err = performance{rate: 44100, buffer: 512, driver: "none", out: "t.wav", depth: 24}.handler(synth.NanoClock())
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for unsupported depth")
}
