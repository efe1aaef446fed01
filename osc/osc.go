// Package osc provides the waveform sources of the signal graph. Every
// oscillator reads the automated chain frequency once per sample, so ramps
// and modulators applied to it glide smoothly. Oscillators also satisfy
// automation.Modulator and double as LFOs.
package osc

import (
	"math"
	"math/rand"
	"time"

	"github.com/dudk/synth/node"
)

const twoPi = 2 * math.Pi

// advance moves a phase accumulator by one sample worth of the automated
// frequency, wrapped to one period.
func advance(phase float64, ctx *node.Context) float64 {
	phase += twoPi * ctx.Freq.Read() / float64(ctx.SampleRate)
	if phase >= twoPi {
		phase -= twoPi
	}
	return phase
}

// Sine is a sine wave source.
type Sine struct {
	node.Base
	phase float64
}

// NewSine returns a sine oscillator attached to the provided context.
func NewSine(ctx *node.Context) *Sine {
	return &Sine{Base: node.NewBase(ctx)}
}

// Start resets the phase.
func (o *Sine) Start() {
	o.Base.Start()
	o.phase = 0
}

// NextSample returns the sample at the current phase.
func (o *Sine) NextSample() float64 {
	s := math.Sin(o.phase)
	o.phase = advance(o.phase, o.Context())
	return s
}

// Clone returns a sine oscillator with a fresh phase.
func (o *Sine) Clone(ctx *node.Context) node.Node {
	clone := NewSine(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// Square is a square wave source, the sign of the sine at the same phase.
type Square struct {
	node.Base
	phase float64
}

// NewSquare returns a square oscillator attached to the provided context.
func NewSquare(ctx *node.Context) *Square {
	return &Square{Base: node.NewBase(ctx)}
}

// Start resets the phase.
func (o *Square) Start() {
	o.Base.Start()
	o.phase = 0
}

// NextSample returns 1, -1 or 0 at zero crossings.
func (o *Square) NextSample() float64 {
	s := math.Sin(o.phase)
	o.phase = advance(o.phase, o.Context())
	switch {
	case s > 0:
		return 1
	case s < 0:
		return -1
	default:
		return 0
	}
}

// Clone returns a square oscillator with a fresh phase.
func (o *Square) Clone(ctx *node.Context) node.Node {
	clone := NewSquare(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// Saw is a sawtooth source built on the arctangent identity.
type Saw struct {
	node.Base
	phase float64
}

// NewSaw returns a sawtooth oscillator attached to the provided context.
func NewSaw(ctx *node.Context) *Saw {
	return &Saw{Base: node.NewBase(ctx)}
}

// Start resets the phase.
func (o *Saw) Start() {
	o.Base.Start()
	o.phase = 0
}

// NextSample returns the sample at the current phase, 0 at period bounds.
func (o *Saw) NextSample() float64 {
	t := math.Tan(o.phase / 2)
	o.phase = advance(o.phase, o.Context())
	if t == 0 {
		return 0
	}
	return -(2 / math.Pi) * math.Atan(1/t)
}

// Clone returns a sawtooth oscillator with a fresh phase.
func (o *Saw) Clone(ctx *node.Context) node.Node {
	clone := NewSaw(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// Triangle is a triangle wave source, the normalized arcsine of the sine.
type Triangle struct {
	node.Base
	phase float64
}

// NewTriangle returns a triangle oscillator attached to the provided context.
func NewTriangle(ctx *node.Context) *Triangle {
	return &Triangle{Base: node.NewBase(ctx)}
}

// Start resets the phase.
func (o *Triangle) Start() {
	o.Base.Start()
	o.phase = 0
}

// NextSample returns the sample at the current phase.
func (o *Triangle) NextSample() float64 {
	s := (2 / math.Pi) * math.Asin(math.Sin(o.phase))
	o.phase = advance(o.phase, o.Context())
	return s
}

// Clone returns a triangle oscillator with a fresh phase.
func (o *Triangle) Clone(ctx *node.Context) node.Node {
	clone := NewTriangle(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// White is a uniform white noise source.
type White struct {
	node.Base
	rnd *rand.Rand
}

// NewWhite returns a noise source with its own random stream.
func NewWhite(ctx *node.Context) *White {
	return &White{
		Base: node.NewBase(ctx),
		rnd:  rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// NextSample returns a sample uniformly distributed in [-1, 1).
func (o *White) NextSample() float64 {
	return o.rnd.Float64()*2 - 1
}

// Clone returns a noise source with a fresh random stream.
func (o *White) Clone(ctx *node.Context) node.Node {
	clone := NewWhite(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// Zero is a silent source.
type Zero struct {
	node.Base
}

// NewZero returns a silent source attached to the provided context.
func NewZero(ctx *node.Context) *Zero {
	return &Zero{Base: node.NewBase(ctx)}
}

// NextSample returns 0.
func (o *Zero) NextSample() float64 {
	return 0
}

// Clone returns a silent source.
func (o *Zero) Clone(ctx *node.Context) node.Node {
	clone := NewZero(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}

// Impulse emits a single unit sample per start.
type Impulse struct {
	node.Base
	fired bool
}

// NewImpulse returns an impulse source attached to the provided context.
func NewImpulse(ctx *node.Context) *Impulse {
	return &Impulse{Base: node.NewBase(ctx)}
}

// Start re-arms the impulse.
func (o *Impulse) Start() {
	o.Base.Start()
	o.fired = false
}

// NextSample returns 1 on the first pull after a start, 0 after.
func (o *Impulse) NextSample() float64 {
	if o.fired {
		return 0
	}
	o.fired = true
	return 1
}

// Clone returns a re-armed impulse.
func (o *Impulse) Clone(ctx *node.Context) node.Node {
	clone := NewImpulse(ctx)
	clone.Base = o.CloneBase(ctx)
	return clone
}
