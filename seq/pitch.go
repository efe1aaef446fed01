// Package seq schedules note events onto voices: pitches, the instrument
// registry, command tracks and the lookahead scheduler.
package seq

import "math"

// ReferenceFreq is the frequency of Pitch{0, 0}, the A above middle C.
const ReferenceFreq = 440.0

// Pitch identifies a note in the equal-tempered scale as an offset from the
// reference pitch: Octave octaves plus Step semitones.
type Pitch struct {
	Octave int
	Step   int
}

// Freq converts the pitch to a frequency built on the reference.
func (p Pitch) Freq(ref float64) float64 {
	return ref * math.Pow(2, float64(p.Num())/12)
}

// Num returns the pitch as a single semitone offset from the reference.
func (p Pitch) Num() int {
	return 12*p.Octave + p.Step
}

// PitchFromNum converts a semitone offset back to a pitch. The octave is
// floored so the step stays in [0, 12).
func PitchFromNum(num int) Pitch {
	oct := num / 12
	step := num % 12
	if step < 0 {
		oct--
		step += 12
	}
	return Pitch{Octave: oct, Step: step}
}

// PitchFromMIDI converts a MIDI note number, A4 is 69.
func PitchFromMIDI(n int) Pitch {
	return PitchFromNum(n - 69)
}
