package seq_test

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mock"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/seq"
	"github.com/dudk/synth/voice"
)

func TestRegistryRegister(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	r := seq.NewRegistry()

	err := r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master))
	assert.Nil(t, err)
	err = r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master))
	assert.True(t, errors.Is(err, synth.ErrInvalidState), "Incorrect error for duplicate instrument")
	assert.Equal(t, []string{"sine"}, r.Instruments())

	_, err = r.Voice(seq.Pitch{}, "square")
	assert.True(t, errors.Is(err, synth.ErrNotFound), "Incorrect error for unknown instrument")
}

func TestRegistryResolve(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	r := seq.NewRegistry()
	assert.Nil(t, r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master)))

	v1, err := r.Voice(seq.Pitch{}, "")
	assert.Nil(t, err)
	assert.InDelta(t, 440.0, v1.Context().Freq.Read(), 1e-6, "Incorrect result voice frequency")

	v2, err := r.Voice(seq.Pitch{}, "sine")
	assert.Nil(t, err)
	assert.True(t, v1 == v2, "Incorrect result cached voice")

	v3, err := r.Voice(seq.Pitch{Octave: 1}, "")
	assert.Nil(t, err)
	assert.False(t, v1 == v3, "Incorrect result cached voice")
	assert.InDelta(t, 880.0, v3.Context().Freq.Read(), 1e-6, "Incorrect result voice frequency")
}

func TestRegistryNoteLifecycle(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	r := seq.NewRegistry()
	assert.Nil(t, r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master)))

	a := seq.Pitch{}
	err := r.NoteOn(a, 0.5, "")
	assert.Nil(t, err)
	assert.True(t, r.On(a, ""), "Incorrect result note state")
	assert.Equal(t, 1, master.Len())
	assert.Equal(t, 0.25, master.NextSample())

	// a second note on keeps the note sounding
	assert.Nil(t, r.NoteOn(a, 0.5, ""))
	assert.Equal(t, 1, master.Len())

	err = r.NoteOff(a, "")
	assert.Nil(t, err)
	v, err := r.Voice(a, "")
	assert.Nil(t, err)
	v.Join()
	assert.False(t, r.On(a, ""), "Incorrect result note state")
	assert.Equal(t, 0, master.Len())

	// note off of a silent note is recoverable
	assert.Nil(t, r.NoteOff(a, ""))
	assert.Nil(t, r.NoteOff(seq.Pitch{Step: 2}, ""))
	err = r.NoteOff(a, "square")
	assert.True(t, errors.Is(err, synth.ErrNotFound), "Incorrect error for unknown instrument")

	// zero velocity plays at unity scale
	assert.Nil(t, r.NoteOn(a, 0, ""))
	assert.Equal(t, 0.5, master.NextSample())
	r.NoteOff(a, "")
	r.Drain()

	goleak.VerifyNoLeaks(t)
}

func TestRegistryStopAll(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	r := seq.NewRegistry()
	assert.Nil(t, r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master)))

	assert.Nil(t, r.NoteOn(seq.Pitch{}, 0, ""))
	assert.Nil(t, r.NoteOn(seq.Pitch{Step: 4}, 0, ""))
	assert.Nil(t, r.NoteOn(seq.Pitch{Step: 7}, 0, ""))
	assert.Equal(t, 3, master.Len())

	r.StopAll()
	r.Drain()
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestRegistryHardStopAll(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	r := seq.NewRegistry()
	assert.Nil(t, r.Register("sine", voice.New(mock.NewSource(ctx, 0.5), master)))

	assert.Nil(t, r.NoteOn(seq.Pitch{}, 0, ""))
	assert.Nil(t, r.NoteOn(seq.Pitch{Step: 4}, 0, ""))
	r.HardStopAll()
	assert.Equal(t, 0, master.Len())
	r.Drain()

	goleak.VerifyNoLeaks(t)
}
