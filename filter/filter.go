// Package filter provides in-chain signal shapers: automated gain, a
// centered moving average and a one-pole low-pass.
package filter

import (
	"fmt"
	"math"

	"github.com/dudk/synth"
	"github.com/dudk/synth/automation"
	"github.com/dudk/synth/node"
)

// Gain scales the upstream mean by an automated amplitude. The amplitude is
// a full automation value, so it can be set, ramped or modulated.
type Gain struct {
	node.Base
	initial float64
	amp     *automation.Value
}

// NewGain returns a gain stage with the provided initial amplitude.
func NewGain(ctx *node.Context, amp float64) *Gain {
	return &Gain{
		Base:    node.NewBase(ctx),
		initial: amp,
		amp:     automation.New(amp, ctx.Clock),
	}
}

// Amp returns the automated amplitude.
func (f *Gain) Amp() *automation.Value {
	return f.amp
}

// NextSample returns the upstream mean scaled by the amplitude.
func (f *Gain) NextSample() float64 {
	return f.Input().NextSample() * f.amp.Read()
}

// Clone returns a gain stage reset to its initial amplitude.
func (f *Gain) Clone(ctx *node.Context) node.Node {
	clone := NewGain(ctx, f.initial)
	clone.Base = f.CloneBase(ctx)
	return clone
}

// MovingAverage smooths the upstream signal with a mean over the last window
// samples. The window is zero-filled on start, so output fades in over one
// window length.
type MovingAverage struct {
	node.Base
	window []float64
	pos    int
}

// NewMovingAverage returns a moving average filter. The window size must be
// odd so the averaged point stays centered.
func NewMovingAverage(ctx *node.Context, size int) (*MovingAverage, error) {
	if size <= 0 || size%2 == 0 {
		return nil, fmt.Errorf("moving average window %d must be a positive odd number: %w", size, synth.ErrConfiguration)
	}
	return &MovingAverage{
		Base:   node.NewBase(ctx),
		window: make([]float64, size),
	}, nil
}

// Start clears the window.
func (f *MovingAverage) Start() {
	f.Base.Start()
	for i := range f.window {
		f.window[i] = 0
	}
	f.pos = 0
}

// NextSample pushes one upstream sample into the window and returns the
// window mean.
func (f *MovingAverage) NextSample() float64 {
	f.window[f.pos] = f.Input().NextSample()
	f.pos = (f.pos + 1) % len(f.window)
	var sum float64
	for _, v := range f.window {
		sum += v
	}
	return sum / float64(len(f.window))
}

// Clone returns a moving average with a fresh window.
func (f *MovingAverage) Clone(ctx *node.Context) node.Node {
	clone := &MovingAverage{
		Base:   f.CloneBase(ctx),
		window: make([]float64, len(f.window)),
	}
	return clone
}

// LowPass is a first-order recursive low-pass filter,
// y[n] = a0*x[n] + b1*y[n-1].
type LowPass struct {
	node.Base
	cutoff float64
	rate   float64
	a0, b1 float64
	prev   float64
}

// NewLowPass returns a low-pass filter with the provided cutoff frequency.
func NewLowPass(ctx *node.Context, cutoff float64) *LowPass {
	return &LowPass{Base: node.NewBase(ctx), cutoff: cutoff}
}

// Start clears the recursion state.
func (f *LowPass) Start() {
	f.Base.Start()
	f.prev = 0
}

// NextSample filters one upstream sample. Coefficients follow the context
// sample rate, which the delivery layer may restamp after binding.
func (f *LowPass) NextSample() float64 {
	if rate := float64(f.Context().SampleRate); rate != f.rate {
		f.rate = rate
		f.b1 = math.Exp(-2 * math.Pi * f.cutoff / rate)
		f.a0 = 1 - f.b1
	}
	f.prev = f.a0*f.Input().NextSample() + f.b1*f.prev
	return f.prev
}

// Clone returns a low-pass filter with cleared state.
func (f *LowPass) Clone(ctx *node.Context) node.Node {
	clone := NewLowPass(ctx, f.cutoff)
	clone.Base = f.CloneBase(ctx)
	return clone
}
