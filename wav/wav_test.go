package wav_test

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	gowav "github.com/go-audio/wav"
	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth"
	"github.com/dudk/synth/wav"
)

func TestSinkRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	sink, err := wav.NewSink(path, 16)
	assert.Nil(t, err)

	err = sink.Start(synth.SampleRate(44100))
	assert.Nil(t, err)
	samples := 1000
	half := 0.5
	for i := 0; i < samples; i++ {
		err = sink.Receive(half)
		assert.Nil(t, err)
	}
	err = sink.Receive(2.0)
	assert.Nil(t, err)
	err = sink.Receive(-2.0)
	assert.Nil(t, err)
	err = sink.Stop()
	assert.Nil(t, err)

	f, err := os.Open(path)
	assert.Nil(t, err)
	defer f.Close()
	decoder := gowav.NewDecoder(f)
	buf, err := decoder.FullPCMBuffer()
	assert.Nil(t, err)
	assert.Equal(t, 1, buf.Format.NumChannels, "Incorrect result num channels")
	assert.Equal(t, 44100, buf.Format.SampleRate, "Incorrect result sample rate")
	assert.Equal(t, samples+2, len(buf.Data), "Incorrect result num samples")
	assert.Equal(t, int(half*0x7fff), buf.Data[0], "Incorrect result sample value")
	assert.Equal(t, int(half*0x7fff), buf.Data[samples-1], "Incorrect result sample value")
	assert.Equal(t, 0x7fff, buf.Data[samples], "Incorrect result clamped sample")
	assert.Equal(t, -0x7fff, buf.Data[samples+1], "Incorrect result clamped sample")
}

func TestSinkSingleUse(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	sink, err := wav.NewSink(path, 16)
	assert.Nil(t, err)

	err = sink.Start(synth.SampleRate(44100))
	assert.Nil(t, err)
	err = sink.Stop()
	assert.Nil(t, err)

	err = sink.Start(synth.SampleRate(44100))
	assert.True(t, errors.Is(err, synth.ErrSingleUseReused), "Incorrect error for reused sink")
}

func TestSinkBitDepth(t *testing.T) {
	path := filepath.Join(t.TempDir(), "take.wav")
	_, err := wav.NewSink(path, 24)
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for unsupported depth")

	sink, err := wav.NewSink(path, 32)
	assert.Nil(t, err)
	assert.NotNil(t, sink)
}
