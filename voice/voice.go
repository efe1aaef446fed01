// Package voice binds a signal chain to the delivery layer. A voice is the
// unit of playback control: it registers the chain with the master mixer,
// winds it down gracefully and reports when the tail has fully drained.
package voice

import (
	"fmt"
	"math"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/synth"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/node"
)

// State identifies one of the voice lifecycle states.
type State int32

const (
	// Unregistered means the voice was never activated.
	Unregistered State = iota
	// Scheduled means a window is armed but the voice is not sounding yet.
	Scheduled
	// Active means the voice is registered and sounding.
	Active
	// Releasing means a finish was requested and the tail is draining.
	Releasing
	// Terminated means the voice is deregistered after its last window.
	Terminated
)

func (s State) String() string {
	switch s {
	case Unregistered:
		return "unregistered"
	case Scheduled:
		return "scheduled"
	case Active:
		return "active"
	case Releasing:
		return "releasing"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}

type (
	// Voice wraps a chain and controls its membership in the master mixer.
	Voice struct {
		synth.UID
		logger       log.Logger
		chain        node.Node
		out          *node.Mixer
		top          *top
		drainTimeout time.Duration

		velocity uint64
		budget   int64
		state    int32
		restart  int32

		mu      sync.Mutex
		gen     uint64
		timers  []*time.Timer
		pending int
		done    chan struct{}
	}

	// Option provides a way to set voice parameters.
	Option func(v *Voice)
)

const (
	defaultDrainTimeout = 2 * time.Second
	drainTick           = time.Millisecond
)

// WithDrainTimeout overrides the bound on a graceful wind-down. A chain
// which is not done when the bound expires is dropped hard.
func WithDrainTimeout(d time.Duration) Option {
	return func(v *Voice) {
		v.drainTimeout = d
	}
}

// New returns an idle voice around the chain, bound to the master mixer.
func New(chain node.Node, out *node.Mixer, options ...Option) *Voice {
	v := &Voice{
		UID:          synth.NewUID(),
		logger:       log.GetLogger(),
		chain:        chain,
		out:          out,
		drainTimeout: defaultDrainTimeout,
	}
	v.top = &top{v: v}
	v.SetVelocity(1)
	for _, option := range options {
		option(v)
	}
	return v
}

// Chain returns the wrapped chain head.
func (v *Voice) Chain() node.Node {
	return v.chain
}

// Context returns the chain context.
func (v *Voice) Context() *node.Context {
	return v.chain.Context()
}

// State returns the current lifecycle state.
func (v *Voice) State() State {
	return State(atomic.LoadInt32(&v.state))
}

func (v *Voice) setState(s State) {
	atomic.StoreInt32(&v.state, int32(s))
}

// Velocity returns the output scale.
func (v *Voice) Velocity() float64 {
	return math.Float64frombits(atomic.LoadUint64(&v.velocity))
}

// SetVelocity scales the chain output, 1 is unity.
func (v *Voice) SetVelocity(vel float64) {
	atomic.StoreUint64(&v.velocity, math.Float64bits(vel))
}

// LimitSamples arms a sample budget: after n pulls the voice winds itself
// down gracefully. A non-positive n removes the budget.
func (v *Voice) LimitSamples(n int64) {
	if n < 0 {
		n = 0
	}
	atomic.StoreInt64(&v.budget, n)
}

// Start resets the chain and registers the voice with the master mixer.
// Starting a voice that is already sounding is invalid.
func (v *Voice) Start() error {
	v.mu.Lock()
	defer v.mu.Unlock()
	switch s := v.State(); s {
	case Active, Releasing:
		return fmt.Errorf("voice %s is %s: %w", v.ID(), s, synth.ErrInvalidState)
	}
	v.activate()
	return nil
}

// Stop winds the voice down gracefully: the chain keeps sounding until its
// release tail drains, then the voice deregisters and terminates exactly
// once. Stopping a terminated or already releasing voice is a no-op. A
// manual stop cancels pending windows.
func (v *Voice) Stop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelWindows()
	switch v.State() {
	case Active:
		v.chain.RequestFinish()
		v.setState(Releasing)
		go v.drain(v.done)
	case Scheduled:
		v.terminate()
	}
}

// HardStop cancels windows and deregisters immediately. Safe from any
// goroutine.
func (v *Voice) HardStop() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cancelWindows()
	switch v.State() {
	case Unregistered, Terminated:
		return
	}
	v.chain.RequestFinish()
	v.terminate()
}

// ScheduleWindow arms the voice for an absolute engine-clock window. A
// negative stopAt keeps the voice sounding until an explicit Stop. Windows
// cycle the voice between Active and Releasing; it terminates only after
// the last window closes and the chain drains.
func (v *Voice) ScheduleWindow(startAt, stopAt int64) {
	v.mu.Lock()
	defer v.mu.Unlock()
	if v.done == nil {
		v.done = make(chan struct{})
	}
	if s := v.State(); s == Unregistered || s == Terminated {
		v.setState(Scheduled)
	}
	v.pending++
	g := v.gen
	clock := v.chain.Context().Clock
	if delay := time.Duration(startAt - clock()); delay <= 0 {
		v.windowStart(g)
	} else {
		v.timers = append(v.timers, time.AfterFunc(delay, func() {
			v.mu.Lock()
			v.windowStart(g)
			v.mu.Unlock()
		}))
	}
	if stopAt < 0 {
		return
	}
	stopDelay := time.Duration(stopAt - clock())
	if stopDelay < 0 {
		stopDelay = 0
	}
	v.timers = append(v.timers, time.AfterFunc(stopDelay, func() {
		v.mu.Lock()
		v.windowStop(g)
		v.mu.Unlock()
	}))
}

// Join blocks until the voice terminates. A voice that was never activated
// returns immediately.
func (v *Voice) Join() {
	v.mu.Lock()
	d := v.done
	v.mu.Unlock()
	if d == nil {
		return
	}
	<-d
}

// Clone returns an idle voice around a deep copy of the chain, attached to
// the provided context and the same master mixer.
func (v *Voice) Clone(ctx *node.Context) *Voice {
	return New(v.chain.Clone(ctx), v.out, WithDrainTimeout(v.drainTimeout))
}

// activate runs under mu. The chain starts before it joins the mixer, so
// node state is never touched while the cadence can pull it.
func (v *Voice) activate() {
	if v.done == nil {
		v.done = make(chan struct{})
	}
	v.chain.Start()
	atomic.StoreInt32(&v.restart, 0)
	switch v.State() {
	case Unregistered, Scheduled, Terminated:
		v.out.Add(v.top)
	}
	v.setState(Active)
}

// windowStart runs under mu. Stale windows are identified by generation.
func (v *Voice) windowStart(g uint64) {
	if g != v.gen {
		return
	}
	switch v.State() {
	case Active:
	case Releasing:
		// the next window opened before the previous tail drained;
		// the restart runs on the next pull, node state belongs to
		// the cadence goroutine while the voice is registered
		atomic.StoreInt32(&v.restart, 1)
		v.setState(Active)
	default:
		v.activate()
	}
}

// windowStop runs under mu. Unlike Stop it retires one window only.
func (v *Voice) windowStop(g uint64) {
	if g != v.gen {
		return
	}
	if v.pending > 0 {
		v.pending--
	}
	if v.State() != Active {
		return
	}
	v.chain.RequestFinish()
	v.setState(Releasing)
	go v.drain(v.done)
}

// cancelWindows runs under mu. Bumping the generation turns every armed
// timer into a no-op.
func (v *Voice) cancelWindows() {
	for _, t := range v.timers {
		t.Stop()
	}
	v.timers = nil
	v.pending = 0
	v.gen++
}

// terminate runs under mu. With windows still pending the voice only drops
// back to Scheduled; the real termination closes the join channel once.
func (v *Voice) terminate() {
	v.out.Remove(v.top)
	if v.pending > 0 {
		v.setState(Scheduled)
		return
	}
	v.setState(Terminated)
	if v.done != nil {
		close(v.done)
		v.done = nil
	}
	v.timers = nil
}

// drain polls the chain until the tail is done, then terminates the voice.
// The activation is identified by its join channel, so a revived voice
// detaches a stale drain.
func (v *Voice) drain(done chan struct{}) {
	deadline := time.Now().Add(v.drainTimeout)
	ticker := time.NewTicker(drainTick)
	defer ticker.Stop()
	for range ticker.C {
		v.mu.Lock()
		if v.State() != Releasing || v.done != done {
			v.mu.Unlock()
			return
		}
		if v.chain.IsDone() {
			v.terminate()
			v.mu.Unlock()
			return
		}
		overdue := time.Now().After(deadline)
		v.mu.Unlock()
		if overdue {
			v.logger.Error("voice ", v.ID(), " did not drain within ", v.drainTimeout, ", dropping")
			v.HardStop()
			return
		}
	}
}

// spend counts one pull against the sample budget.
func (v *Voice) spend() {
	if atomic.LoadInt64(&v.budget) == 0 {
		return
	}
	if atomic.AddInt64(&v.budget, -1) == 0 {
		v.logger.Debug("voice ", v.ID(), " exhausted its sample budget")
		v.Stop()
	}
}

// top is the mixer-facing node. It applies the velocity scale and counts
// the sample budget on the way out.
type top struct {
	v *Voice
}

// compile-time contract check
var _ node.Node = (*top)(nil)

func (t *top) Start() {
	t.v.chain.Start()
}

func (t *top) NextSample() float64 {
	if atomic.CompareAndSwapInt32(&t.v.restart, 1, 0) {
		t.v.chain.Start()
	}
	s := t.v.chain.NextSample() * t.v.Velocity()
	t.v.spend()
	return s
}

func (t *top) RequestFinish() {
	t.v.chain.RequestFinish()
}

func (t *top) IsDone() bool {
	return t.v.chain.IsDone()
}

func (t *top) Context() *node.Context {
	return t.v.chain.Context()
}

func (t *top) SetContext(ctx *node.Context) {
	t.v.chain.SetContext(ctx)
}

func (t *top) Clone(ctx *node.Context) node.Node {
	return t.v.chain.Clone(ctx)
}
