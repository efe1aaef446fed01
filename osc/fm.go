package osc

import (
	"math"

	"github.com/dudk/synth/node"
)

// FM is a two-operator frequency modulation source. The carrier tracks the
// automated chain frequency, the modulator runs at carrier frequency times
// ratio, and index sets the modulation depth.
type FM struct {
	node.Base
	ratio        float64
	index        float64
	carrierPhase float64
	modPhase     float64
}

// NewFM returns an FM oscillator attached to the provided context.
func NewFM(ctx *node.Context, ratio, index float64) *FM {
	return &FM{
		Base:  node.NewBase(ctx),
		ratio: ratio,
		index: index,
	}
}

// Start resets both operator phases.
func (o *FM) Start() {
	o.Base.Start()
	o.carrierPhase = 0
	o.modPhase = 0
}

// NextSample returns the modulated sample at the current phases. The chain
// frequency is read once and drives both operators.
func (o *FM) NextSample() float64 {
	s := math.Cos(math.Sin(o.carrierPhase) + o.index*math.Sin(o.modPhase))
	freq := o.Context().Freq.Read()
	rate := float64(o.Context().SampleRate)
	o.carrierPhase += twoPi * freq / rate
	if o.carrierPhase >= twoPi {
		o.carrierPhase -= twoPi
	}
	o.modPhase += twoPi * freq * o.ratio / rate
	if o.modPhase >= twoPi {
		o.modPhase -= twoPi
	}
	return s
}

// Clone returns an FM oscillator with fresh phases.
func (o *FM) Clone(ctx *node.Context) node.Node {
	clone := NewFM(ctx, o.ratio, o.index)
	clone.Base = o.CloneBase(ctx)
	return clone
}
