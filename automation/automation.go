// Package automation provides time-aware scalar values driven by a queue of
// scheduled ramp events.
package automation

import (
	"fmt"
	"math"
	"sync"

	"github.com/dudk/synth"
	"github.com/dudk/synth/log"
)

// Modulator produces one modulation sample per call.
type Modulator interface {
	NextSample() float64
}

// kind identifies the type of a scheduled event.
type kind int

const (
	kindSet kind = iota
	kindLinear
	kindExponential
	kindOscillator
)

// event is a single entry of the value's FIFO queue. Events are stamped
// lazily: startAt and startValue are captured when the event reaches the
// front of the queue during a read, so chained ramps pick up exactly where
// the previous one snapped.
type event struct {
	kind       kind
	target     float64
	endAt      int64 // absolute ns, negative means unbounded
	startAt    int64
	startValue float64
	live       bool
	mod        Modulator
}

func (e *event) progress(now int64) float64 {
	if e.endAt <= e.startAt {
		return 1
	}
	return synth.Clamp(float64(now-e.startAt)/float64(e.endAt-e.startAt), 0, 1)
}

func (e *event) value(now int64) float64 {
	switch e.kind {
	case kindLinear:
		return e.startValue + (e.target-e.startValue)*e.progress(now)
	case kindExponential:
		return e.startValue * math.Pow(e.target/e.startValue, e.progress(now))
	case kindOscillator:
		return e.startValue + e.mod.NextSample()
	default:
		return e.target
	}
}

// Value is a scalar automated over time. It holds a current value and a FIFO
// queue of scheduled events of which at most one, the front, is active.
// Scheduling never blocks and mid-flight scheduling appends in arrival order.
type Value struct {
	mu       sync.Mutex
	clock    synth.Clock
	logger   log.Logger
	current  float64
	events   []event
	hasRange bool
	min, max float64
}

// New returns a value with no range constraint.
func New(initial float64, clock synth.Clock) *Value {
	return &Value{
		clock:   clock,
		logger:  log.GetLogger(),
		current: initial,
	}
}

// NewRanged returns a value constrained to [min, max]. Targets outside the
// range are rejected at schedule time.
func NewRanged(initial, min, max float64, clock synth.Clock) (*Value, error) {
	if min > max {
		return nil, fmt.Errorf("range [%v, %v] is inverted: %w", min, max, synth.ErrConfiguration)
	}
	if initial < min || initial > max {
		return nil, fmt.Errorf("initial value %v outside [%v, %v]: %w", initial, min, max, synth.ErrDomain)
	}
	v := New(initial, clock)
	v.hasRange = true
	v.min = min
	v.max = max
	return v, nil
}

// Read returns the value at the current clock time. It retires every front
// event whose end time has passed, snapping the value to the event's target,
// and evaluates the one left active. Events with a negative end time are
// never auto-retired.
func (v *Value) Read() float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	now := v.clock()
	for len(v.events) > 0 {
		e := &v.events[0]
		if !e.live {
			e.live = true
			e.startAt = now
			e.startValue = v.current
			if e.kind == kindExponential && e.startValue == 0 {
				// schedule-time deduction can be defeated by an
				// oscillator ahead in the queue
				v.logger.Warn("exponential ramp activated at zero, snapping to target")
				v.current = e.target
				v.events = v.events[1:]
				continue
			}
		}
		if e.endAt >= 0 && now >= e.endAt {
			v.current = e.target
			v.events = v.events[1:]
			continue
		}
		v.current = e.value(now)
		return v.current
	}
	return v.current
}

// Set enqueues a zero-duration event, so plain writes never race scheduled
// ramps and apply in arrival order.
func (v *Value) Set(target float64) error {
	if err := v.checkRange(target); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, event{kind: kindSet, target: target, endAt: v.clock()})
	return nil
}

// ScheduleLinearRamp enqueues a linear ramp to target ending at the absolute
// time endAt.
func (v *Value) ScheduleLinearRamp(target float64, endAt int64) error {
	if err := v.checkRange(target); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, event{kind: kindLinear, target: target, endAt: endAt})
	return nil
}

// ScheduleExponentialRamp enqueues an exponential ramp to target ending at
// the absolute time endAt. A ramp whose deducible start value is zero, or
// whose target is on the other side of zero, cannot be expressed as a
// geometric progression and is rejected.
func (v *Value) ScheduleExponentialRamp(target float64, endAt int64) error {
	if err := v.checkRange(target); err != nil {
		return err
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	start := v.deducedStart()
	if start == 0 {
		return fmt.Errorf("exponential ramp from zero: %w", synth.ErrDomain)
	}
	if start*target < 0 {
		return fmt.Errorf("exponential ramp from %v to %v crosses zero: %w", start, target, synth.ErrDomain)
	}
	v.events = append(v.events, event{kind: kindExponential, target: target, endAt: endAt})
	return nil
}

// ScheduleOscillator enqueues an oscillator-driven event which adds the
// modulator's samples to the value as of activation. Pass a negative endAt
// for an unbounded event, which is retired only by CancelAll.
func (v *Value) ScheduleOscillator(m Modulator, endAt int64) error {
	if m == nil {
		return fmt.Errorf("nil modulator: %w", synth.ErrConfiguration)
	}
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = append(v.events, event{kind: kindOscillator, endAt: endAt, mod: m})
	return nil
}

// SetClock moves the value onto another clock. Rebind before scheduling,
// events already queued keep their original stamps.
func (v *Value) SetClock(clock synth.Clock) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.clock = clock
}

// CancelAll drops the whole event queue. The value keeps its last read
// result.
func (v *Value) CancelAll() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.events = nil
}

// Pending returns the number of queued events, the active one included.
func (v *Value) Pending() int {
	v.mu.Lock()
	defer v.mu.Unlock()
	return len(v.events)
}

// deducedStart resolves the value the next scheduled event would start from:
// the target of the last queued deterministic event, else the current value.
func (v *Value) deducedStart() float64 {
	for i := len(v.events) - 1; i >= 0; i-- {
		if v.events[i].kind != kindOscillator {
			return v.events[i].target
		}
	}
	return v.current
}

// checkRange needs no lock, the range is immutable after construction.
func (v *Value) checkRange(target float64) error {
	if v.hasRange && (target < v.min || target > v.max) {
		return fmt.Errorf("target %v outside [%v, %v]: %w", target, v.min, v.max, synth.ErrDomain)
	}
	return nil
}
