// Package node defines the pull-based signal graph: the node contract, the
// shared chain context and the fan-in mixer.
package node

import (
	"sync/atomic"

	"github.com/dudk/synth"
	"github.com/dudk/synth/automation"
)

// Context is the state shared by every node of one chain: the sample rate,
// the automated fundamental frequency and the engine clock. The context
// holds no references back to nodes.
type Context struct {
	SampleRate synth.SampleRate
	Freq       *automation.Value
	Clock      synth.Clock
}

// NewContext returns a chain context with an automated frequency value.
func NewContext(rate synth.SampleRate, freq float64, clock synth.Clock) *Context {
	return &Context{
		SampleRate: rate,
		Freq:       automation.New(freq, clock),
		Clock:      clock,
	}
}

// Node is a single element of the signal graph.
//
// Start resets accumulated state and recursively starts upstreams.
// NextSample produces exactly one sample, pulling each upstream once.
// RequestFinish asks for a graceful wind-down, IsDone reports completion.
// Clone deep-copies owned state only and attaches the provided context.
type Node interface {
	Start()
	NextSample() float64
	RequestFinish()
	IsDone() bool
	Context() *Context
	SetContext(*Context)
	Clone(*Context) Node
}

// Base is an embeddable node core. It owns the zero-or-one upstream mixer
// and the shared context reference.
type Base struct {
	ctx      *Context
	in       *Mixer
	finished int32
}

// NewBase returns a base attached to the provided context.
func NewBase(ctx *Context) Base {
	return Base{ctx: ctx, in: NewMixer()}
}

// Bind adds an upstream node to the input mixer. The downstream context
// propagates backward through the bound subtree.
func (b *Base) Bind(upstream Node) {
	upstream.SetContext(b.ctx)
	b.in.Add(upstream)
}

// Input returns the upstream mixer.
func (b *Base) Input() *Mixer {
	return b.in
}

// Context returns the shared chain context.
func (b *Base) Context() *Context {
	return b.ctx
}

// SetContext replaces the context and propagates it upstream.
func (b *Base) SetContext(ctx *Context) {
	b.ctx = ctx
	b.in.SetContext(ctx)
}

// Start resets the finish flag and restarts upstreams.
func (b *Base) Start() {
	atomic.StoreInt32(&b.finished, 0)
	b.in.Start()
}

// RequestFinish marks the node finished and forwards the request upstream.
func (b *Base) RequestFinish() {
	atomic.StoreInt32(&b.finished, 1)
	b.in.RequestFinish()
}

// IsDone reports whether a finish was requested.
func (b *Base) IsDone() bool {
	return atomic.LoadInt32(&b.finished) == 1
}

// CloneBase returns a base for a clone, with upstream members cloned
// recursively into the provided context.
func (b *Base) CloneBase(ctx *Context) Base {
	clone := NewBase(ctx)
	for _, m := range b.in.Members() {
		clone.in.Add(m.Clone(ctx))
	}
	return clone
}
