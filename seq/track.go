package seq

import (
	"fmt"
	"time"

	"github.com/dudk/synth"
)

type commandKind int

const (
	noteOn commandKind = iota
	rest
	repeat
)

// command is one step of a track. Time is precomputed at append so the
// scheduler only compares, never accumulates: a command always starts
// exactly when its predecessor stops.
type command struct {
	kind      commandKind
	notes     []Pitch
	velocity  float64
	target    int
	count     int
	timeStart int64
	timeStop  int64
}

// Track is an ordered command list played against the registry. Build it
// with the append methods, then hand it to a scheduler. A track is not safe
// for concurrent use.
type Track struct {
	registry   *Registry
	instrument string
	commands   []command
	length     int64
	err        error

	cursor int
	offset int64
	counts []int
}

// NewTrack returns an empty track routed to the named instrument. An empty
// name routes to the registry default.
func NewTrack(r *Registry, instrument string) *Track {
	return &Track{registry: r, instrument: instrument}
}

// Instrument returns the instrument name the track is routed to.
func (t *Track) Instrument() string {
	return t.instrument
}

// Note appends a single note. A zero velocity plays at unity scale.
func (t *Track) Note(p Pitch, d time.Duration, velocity float64) *Track {
	return t.Chord([]Pitch{p}, d, velocity)
}

// Chord appends notes sharing one window.
func (t *Track) Chord(notes []Pitch, d time.Duration, velocity float64) *Track {
	t.append(command{
		kind:     noteOn,
		notes:    notes,
		velocity: velocity,
	}, d)
	return t
}

// Rest appends silence.
func (t *Track) Rest(d time.Duration) *Track {
	t.append(command{kind: rest}, d)
	return t
}

// Repeat appends a jump back to the target command. A positive count plays
// the block count extra times, a negative count repeats it forever. The
// repeated block must carry time, otherwise replaying it would never
// advance the cursor clock.
func (t *Track) Repeat(target, count int) *Track {
	if target < 0 || target > len(t.commands) {
		t.fail(fmt.Errorf("repeat target %v out of range: %w", target, synth.ErrConfiguration))
		return t
	}
	if count != 0 && (target == len(t.commands) || t.length == t.commands[target].timeStart) {
		t.fail(fmt.Errorf("repeat of an empty block: %w", synth.ErrConfiguration))
		return t
	}
	t.append(command{kind: repeat, target: target, count: count}, 0)
	return t
}

func (t *Track) fail(err error) {
	if t.err == nil {
		t.err = err
	}
}

// Err returns the first builder error, also reported by Run.
func (t *Track) Err() error {
	return t.err
}

func (t *Track) append(c command, d time.Duration) {
	c.timeStart = t.length
	c.timeStop = t.length + int64(d)
	t.length = c.timeStop
	t.commands = append(t.commands, c)
	t.counts = append(t.counts, c.count)
}

// Len returns the number of commands.
func (t *Track) Len() int {
	return len(t.commands)
}

// Span returns the window of the i-th command relative to track zero.
func (t *Track) Span(i int) (start, stop time.Duration) {
	c := t.commands[i]
	return time.Duration(c.timeStart), time.Duration(c.timeStop)
}

// Duration returns the single-pass length of the track.
func (t *Track) Duration() time.Duration {
	return time.Duration(t.length)
}

// Rewind resets the cursor and the repeat counters and rebases the track at
// the given engine time.
func (t *Track) Rewind(base int64) {
	t.cursor = 0
	t.offset = base
	for i, c := range t.commands {
		t.counts[i] = c.count
	}
}

// Run executes, in order, every command whose window opens before the
// horizon. Notes schedule voice windows at their exact precomputed times,
// so calling Run early never distorts timing. It returns false once the
// cursor passes the last command.
func (t *Track) Run(horizon int64) (bool, error) {
	if t.err != nil {
		return false, t.err
	}
	for t.cursor < len(t.commands) {
		c := &t.commands[t.cursor]
		if c.timeStart+t.offset >= horizon {
			return true, nil
		}
		switch c.kind {
		case noteOn:
			if err := t.fire(c); err != nil {
				return false, err
			}
			t.cursor++
		case rest:
			t.cursor++
		case repeat:
			if t.counts[t.cursor] == 0 {
				t.cursor++
				continue
			}
			if t.counts[t.cursor] > 0 {
				t.counts[t.cursor]--
			}
			// the replayed block spans from the target's start to
			// this command's own stop
			t.offset += c.timeStop - t.commands[c.target].timeStart
			t.cursor = c.target
		}
	}
	return false, nil
}

func (t *Track) fire(c *command) error {
	for _, p := range c.notes {
		v, err := t.registry.Voice(p, t.instrument)
		if err != nil {
			return err
		}
		vel := c.velocity
		if vel == 0 {
			vel = 1
		}
		v.SetVelocity(vel)
		v.ScheduleWindow(c.timeStart+t.offset, c.timeStop+t.offset)
	}
	return nil
}
