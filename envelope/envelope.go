// Package envelope provides the ADSR amplitude envelope. The envelope is a
// plain chain node: it multiplies the upstream mean by an automated level
// which it drives with scheduled ramps, so attack, decay and release reuse
// the same event queue as every other parameter.
package envelope

import (
	"sync/atomic"
	"time"

	"github.com/dudk/synth/automation"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/node"
)

// State identifies one of the envelope lifecycle states.
type State int32

const (
	// Idle means the envelope was never started.
	Idle State = iota
	// Attacking means the level ramps towards the maximum.
	Attacking
	// Decaying means the level ramps from the maximum to the sustain.
	Decaying
	// Sustaining means the level holds the sustain value.
	Sustaining
	// Releasing means the level ramps towards zero.
	Releasing
	// Finished means the release completed and the node is done.
	Finished
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Attacking:
		return "attacking"
	case Decaying:
		return "decaying"
	case Sustaining:
		return "sustaining"
	case Releasing:
		return "releasing"
	case Finished:
		return "finished"
	}
	return "unknown"
}

// ADSR is an attack-decay-sustain-release envelope.
type ADSR struct {
	node.Base
	logger     log.Logger
	attack     time.Duration
	decay      time.Duration
	sustain    float64
	release    time.Duration
	maxLevel   float64
	maxRelease time.Duration
	level      *automation.Value
	state      int32
	releasedAt int64
}

// Option provides a way to set optional envelope parameters.
type Option func(*ADSR)

// WithMaxLevel sets the attack peak, 1.0 when not provided.
func WithMaxLevel(level float64) Option {
	return func(e *ADSR) {
		e.maxLevel = level
	}
}

// WithMaxRelease sets the safety bound on top of the release time after
// which a stuck release is forced to finish.
func WithMaxRelease(d time.Duration) Option {
	return func(e *ADSR) {
		e.maxRelease = d
	}
}

// New returns an envelope attached to the provided context.
func New(ctx *node.Context, attack, decay time.Duration, sustain float64, release time.Duration, options ...Option) *ADSR {
	e := &ADSR{
		Base:     node.NewBase(ctx),
		logger:   log.GetLogger(),
		attack:   attack,
		decay:    decay,
		sustain:  sustain,
		release:  release,
		maxLevel: 1.0,
		level:    automation.New(0, ctx.Clock),
	}
	for _, option := range options {
		option(e)
	}
	if e.maxRelease == 0 {
		e.maxRelease = 2*release + 500*time.Millisecond
	}
	return e
}

// Level returns the automated envelope level.
func (e *ADSR) Level() *automation.Value {
	return e.level
}

// State returns the current lifecycle state.
func (e *ADSR) State() State {
	return State(atomic.LoadInt32(&e.state))
}

func (e *ADSR) setState(s State) {
	atomic.StoreInt32(&e.state, int32(s))
}

// Start begins an attack from the current level: the attack and decay ramps
// are queued back to back, the decay picking up where the attack snaps.
// Starting a releasing envelope re-attacks without dropping to zero.
func (e *ADSR) Start() {
	e.Base.Start()
	now := e.Context().Clock()
	e.level.CancelAll()
	_ = e.level.ScheduleLinearRamp(e.maxLevel, now+int64(e.attack))
	_ = e.level.ScheduleLinearRamp(e.sustain, now+int64(e.attack)+int64(e.decay))
	e.setState(Attacking)
}

// RequestFinish cancels whatever the level is doing and ramps it to zero
// over the release time.
func (e *ADSR) RequestFinish() {
	now := e.Context().Clock()
	e.level.CancelAll()
	_ = e.level.ScheduleLinearRamp(0, now+int64(e.release))
	atomic.StoreInt64(&e.releasedAt, now)
	e.setState(Releasing)
}

// IsDone reports whether the release completed.
func (e *ADSR) IsDone() bool {
	return e.State() == Finished
}

// NextSample multiplies the upstream mean by the envelope level.
func (e *ADSR) NextSample() float64 {
	up := e.Input().NextSample()
	gain := e.level.Read()
	e.observe(gain)
	return up * gain
}

// observe derives state transitions from the level queue and enforces the
// release safety bound.
func (e *ADSR) observe(gain float64) {
	switch e.State() {
	case Attacking:
		switch e.level.Pending() {
		case 0:
			e.setState(Sustaining)
		case 1:
			e.setState(Decaying)
		}
	case Decaying:
		if e.level.Pending() == 0 {
			e.setState(Sustaining)
		}
	case Releasing:
		if gain == 0 {
			e.setState(Finished)
			return
		}
		now := e.Context().Clock()
		if now-atomic.LoadInt64(&e.releasedAt) > int64(e.release+e.maxRelease) {
			e.logger.Warn("envelope release exceeded safety bound, forcing finish")
			e.level.CancelAll()
			_ = e.level.Set(0)
			e.level.Read()
			e.setState(Finished)
		}
	}
}

// Clone returns an idle envelope with the same shape.
func (e *ADSR) Clone(ctx *node.Context) node.Node {
	clone := New(ctx, e.attack, e.decay, e.sustain, e.release,
		WithMaxLevel(e.maxLevel), WithMaxRelease(e.maxRelease))
	clone.Base = e.CloneBase(ctx)
	return clone
}
