package seq_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dudk/synth/seq"
)

func TestPitchFreq(t *testing.T) {
	assert.InDelta(t, 440.0, seq.Pitch{}.Freq(seq.ReferenceFreq), 1e-6)
	assert.InDelta(t, 880.0, seq.Pitch{Step: 12}.Freq(seq.ReferenceFreq), 1e-6)
	assert.InDelta(t, 880.0, seq.Pitch{Octave: 1}.Freq(seq.ReferenceFreq), 1e-6)
	assert.InDelta(t, 220.0, seq.Pitch{Octave: -1}.Freq(seq.ReferenceFreq), 1e-6)
	// middle C
	assert.InDelta(t, 261.625565, seq.Pitch{Octave: -1, Step: 3}.Freq(seq.ReferenceFreq), 1e-5)
}

func TestPitchNum(t *testing.T) {
	tests := []struct {
		num    int
		octave int
		step   int
	}{
		{0, 0, 0},
		{11, 0, 11},
		{12, 1, 0},
		{-1, -1, 11},
		{-13, -2, 11},
	}
	for _, c := range tests {
		p := seq.PitchFromNum(c.num)
		assert.Equal(t, c.octave, p.Octave, "Incorrect result octave")
		assert.Equal(t, c.step, p.Step, "Incorrect result step")
		assert.Equal(t, c.num, p.Num(), "Incorrect result num")
	}
}

func TestPitchFromMIDI(t *testing.T) {
	assert.Equal(t, seq.Pitch{}, seq.PitchFromMIDI(69))
	assert.Equal(t, -9, seq.PitchFromMIDI(60).Num())
	assert.InDelta(t, 880.0, seq.PitchFromMIDI(81).Freq(seq.ReferenceFreq), 1e-6)
}
