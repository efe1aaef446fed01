package output

import (
	"github.com/dudk/synth"
)

// State identifies one of the possible states handler can be in
type State interface {
	listen(*Handler, target) (State, target)
	transition(*Handler, eventMessage) State
}

// idleState identifies that the handler is ONLY waiting for user to send an event
type idleState interface {
	State
}

// activeState identifies that the handler is rendering samples and also is waiting for user to send an event
type activeState interface {
	State
	sendSample(*Handler) State
	handleError(*Handler, sinkError) State
}

// states
type (
	ready   struct{}
	running struct{}
	pausing struct{}
	paused  struct{}
)

// states variables
var (
	// Ready [idle] state means that handler can be started.
	Ready ready

	// Running [active] state means that handler is rendering at the moment.
	Running running

	// Paused [idle] state means that handler is paused and can be resumed.
	Paused paused

	// Pausing [active] state means that pause event was sent, but the sample
	// in flight still has to reach its sinks.
	Pausing pausing
)

// event identifies the type of event
type event int

// eventMessage is passed into handler's event channel when user does some action.
type eventMessage struct {
	event            // event type.
	sink Sink        // sink to attach.
	done chan error  // ack for attach events.
	target
}

// target identifies which state is expected from handler.
type target struct {
	State            // end state for this event.
	errc  chan error // channel to send errors. it's closed when target state is reached.
}

// types of events.
const (
	run event = iota
	pause
	resume
	stop
	attach
)

// Run sends a run event into handler. Calling this method on a terminated
// handler returns a failed channel.
func (h *Handler) Run() chan error {
	runEvent := eventMessage{
		event: run,
		target: target{
			State: Ready,
			errc:  make(chan error),
		},
	}
	return h.event(runEvent)
}

// Pause sends a pause event into handler.
func (h *Handler) Pause() chan error {
	pauseEvent := eventMessage{
		event: pause,
		target: target{
			State: Paused,
			errc:  make(chan error),
		},
	}
	return h.event(pauseEvent)
}

// Resume sends a resume event into handler.
func (h *Handler) Resume() chan error {
	resumeEvent := eventMessage{
		event: resume,
		target: target{
			State: Running,
			errc:  make(chan error),
		},
	}
	return h.event(resumeEvent)
}

// Stop sends a stop event into handler. Queued samples drain through every
// sink before the handler terminates.
func (h *Handler) Stop() chan error {
	stopEvent := eventMessage{
		event: stop,
		target: target{
			State: Ready,
			errc:  make(chan error),
		},
	}
	return h.event(stopEvent)
}

// Wait for state transition or first error to occur.
func Wait(d chan error) error {
	for err := range d {
		if err != nil {
			return err
		}
	}
	return nil
}

// idle is used to listen to handler's channels which are relevant for idle state.
// s is the new state, t is the target state and d channel to notify target transition.
func (h *Handler) idle(s idleState, t target) (State, target) {
	if s == t.State {
		t = t.reach()
	}
	for {
		var newState State
		e, ok := <-h.eventc
		if !ok {
			return nil, t
		}
		newState = s.transition(h, e)
		if e.hasTarget() {
			t.reach()
			t = e.target
		}
		if s != newState {
			return newState, t
		}
	}
}

// active is used to listen to handler's channels which are relevant for active state.
func (h *Handler) active(s activeState, t target) (State, target) {
	if s == t.State {
		t = t.reach()
	}
	for {
		var newState State
		var e eventMessage
		var ok bool
		select {
		case e, ok = <-h.eventc:
			if !ok {
				return nil, t
			}
			newState = s.transition(h, e)
		case <-h.pullc:
			newState = s.sendSample(h)
		case se := <-h.errc:
			newState = s.handleError(h, se)
		}
		if e.hasTarget() {
			t.reach()
			t = e.target
		}
		if s != newState {
			return newState, t
		}
	}
}

func (s ready) listen(h *Handler, t target) (State, target) {
	return h.idle(s, t)
}

func (s ready) transition(h *Handler, e eventMessage) State {
	switch e.event {
	case attach:
		_, err := h.addRunner(e.sink, false)
		e.done <- err
		return s
	case run:
		if err := h.start(); err != nil {
			e.target.errc <- err
			return s
		}
		return Running
	case stop:
		return nil
	}
	e.target.errc <- synth.ErrInvalidState
	return s
}

func (s running) listen(h *Handler, t target) (State, target) {
	return h.active(s, t)
}

func (s running) transition(h *Handler, e eventMessage) State {
	switch e.event {
	case attach:
		e.done <- h.attachRunner(e.sink)
		return s
	case pause:
		return Pausing
	case stop:
		h.teardown()
		return nil
	}
	e.target.errc <- synth.ErrInvalidState
	return s
}

func (s running) sendSample(h *Handler) State {
	h.send()
	return s
}

func (s running) handleError(h *Handler, se sinkError) State {
	return h.sinkFailed(s, se)
}

func (s pausing) listen(h *Handler, t target) (State, target) {
	return h.active(s, t)
}

func (s pausing) transition(h *Handler, e eventMessage) State {
	switch e.event {
	case attach:
		e.done <- h.attachRunner(e.sink)
		return s
	case stop:
		h.teardown()
		return nil
	}
	e.target.errc <- synth.ErrInvalidState
	return s
}

// sendSample confirms the sample in flight and parks the cadence.
func (s pausing) sendSample(h *Handler) State {
	h.send()
	return Paused
}

func (s pausing) handleError(h *Handler, se sinkError) State {
	return h.sinkFailed(s, se)
}

func (s paused) listen(h *Handler, t target) (State, target) {
	return h.idle(s, t)
}

func (s paused) transition(h *Handler, e eventMessage) State {
	switch e.event {
	case attach:
		e.done <- h.attachRunner(e.sink)
		return s
	case resume:
		return Running
	case stop:
		h.teardown()
		return nil
	}
	e.target.errc <- synth.ErrInvalidState
	return s
}

// hasTarget checks if event contains target.
func (e eventMessage) hasTarget() bool {
	return e.target.State != nil
}

// reach closes error channel and cancel waiting of target.
func (t target) reach() target {
	if t.State != nil {
		t.State = nil
		close(t.errc)
		t.errc = nil
	}
	return t
}

// Convert the event to a string.
func (e event) String() string {
	switch e {
	case run:
		return "run"
	case pause:
		return "pause"
	case resume:
		return "resume"
	case stop:
		return "stop"
	case attach:
		return "attach"
	}
	return "unknown"
}
