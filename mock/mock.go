// Package mock provides engine doubles for tests: a settable clock, scripted
// sources and modulators, and a capturing sink.
package mock

import (
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/dudk/synth"
	"github.com/dudk/synth/node"
)

// Clock is a settable engine time source.
type Clock struct {
	now int64
}

// NewClock returns a clock frozen at zero.
func NewClock() *Clock {
	return &Clock{}
}

// Now returns the synth.Clock reading this fake.
func (c *Clock) Now() synth.Clock {
	return func() int64 {
		return atomic.LoadInt64(&c.now)
	}
}

// Set moves the clock to an absolute nanosecond timestamp.
func (c *Clock) Set(now int64) {
	atomic.StoreInt64(&c.now, now)
}

// Advance moves the clock forward.
func (c *Clock) Advance(d time.Duration) {
	atomic.AddInt64(&c.now, int64(d))
}

// Source is a scripted signal node. It plays Samples first, then repeats
// Value forever, and counts its pulls.
type Source struct {
	node.Base
	Value   float64
	Samples []float64
	pos     int
	pulls   int64
}

// NewSource returns a source emitting a constant value.
func NewSource(ctx *node.Context, value float64) *Source {
	return &Source{Base: node.NewBase(ctx), Value: value}
}

// Start resets the script position.
func (s *Source) Start() {
	s.Base.Start()
	s.pos = 0
}

// NextSample returns the next scripted sample.
func (s *Source) NextSample() float64 {
	atomic.AddInt64(&s.pulls, 1)
	if s.pos < len(s.Samples) {
		v := s.Samples[s.pos]
		s.pos++
		return v
	}
	return s.Value
}

// Pulls returns the number of samples pulled so far.
func (s *Source) Pulls() int {
	return int(atomic.LoadInt64(&s.pulls))
}

// Clone returns a source with the same script and a fresh position.
func (s *Source) Clone(ctx *node.Context) node.Node {
	clone := NewSource(ctx, s.Value)
	clone.Samples = s.Samples
	clone.Base = s.CloneBase(ctx)
	return clone
}

// Modulator yields a scripted sequence and then holds the last value.
type Modulator struct {
	Values []float64
	pos    int
}

// NextSample returns the next scripted modulation sample.
func (m *Modulator) NextSample() float64 {
	if len(m.Values) == 0 {
		return 0
	}
	if m.pos < len(m.Values)-1 {
		v := m.Values[m.pos]
		m.pos++
		return v
	}
	return m.Values[len(m.Values)-1]
}

// Sink captures every delivered sample and records lifecycle calls. FailOn
// makes Receive fail on the n-th sample, FailStart makes Start fail, Delay
// slows every Receive down.
type Sink struct {
	mu        sync.Mutex
	samples   []float64
	rate      synth.SampleRate
	started   int32
	stopped   int32
	FailStart bool
	FailOn    int
	Delay     time.Duration
}

// NewSink returns an empty capturing sink.
func NewSink() *Sink {
	return &Sink{}
}

// Start records the delivery sample rate.
func (s *Sink) Start(rate synth.SampleRate) error {
	if s.FailStart {
		return fmt.Errorf("mock sink start failure")
	}
	atomic.AddInt32(&s.started, 1)
	s.mu.Lock()
	s.rate = rate
	s.mu.Unlock()
	return nil
}

// Receive captures one sample.
func (s *Sink) Receive(sample float64) error {
	if s.Delay > 0 {
		time.Sleep(s.Delay)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.FailOn > 0 && len(s.samples)+1 >= s.FailOn {
		return fmt.Errorf("mock sink receive failure")
	}
	s.samples = append(s.samples, sample)
	return nil
}

// Stop records the shutdown call.
func (s *Sink) Stop() error {
	atomic.AddInt32(&s.stopped, 1)
	return nil
}

// Samples returns a snapshot of captured samples.
func (s *Sink) Samples() []float64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	samples := make([]float64, len(s.samples))
	copy(samples, s.samples)
	return samples
}

// Rate returns the sample rate seen on Start.
func (s *Sink) Rate() synth.SampleRate {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rate
}

// Started returns the number of Start calls.
func (s *Sink) Started() int {
	return int(atomic.LoadInt32(&s.started))
}

// Stopped returns the number of Stop calls.
func (s *Sink) Stopped() int {
	return int(atomic.LoadInt32(&s.stopped))
}
