// Package output delivers the rendered sample stream to sinks. A handler
// owns the master mixer and renders exactly one sample per cadence cycle:
// the driver sink consumes it synchronously and its blocking device write
// paces the whole engine, every other sink gets the sample through its own
// bounded queue and worker goroutine. Without a driver the queue sinks
// provide the pacing through backpressure, which is the offline rendering
// mode.
package output

import (
	"fmt"
	"sync"

	"github.com/dudk/synth"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/voice"
)

// Handler is the delivery layer with a fully defined lifecycle:
// it has
//	 1 		master mixer
//	 0..1 	driver sink
//	 0..n	queue sinks
type Handler struct {
	synth.UID
	sampleRate synth.SampleRate
	clock      synth.Clock
	depth      int
	master     *node.Mixer

	driver *sinkRunner
	queues []*sinkRunner

	eventc chan eventMessage // event channel
	pullc  chan struct{}     // cadence ask channel
	errc   chan sinkError    // failures reported by workers
	cancel chan struct{}     // cancellation channel
	donec  chan struct{}     // closed when the handler terminates
	wg     sync.WaitGroup
	err    error

	cmu      sync.Mutex
	counters map[string]*Counter

	log log.Logger
}

// Option provides a way to set parameters to handler.
type Option func(h *Handler) error

// sinkRunner owns one sink's delivery: the queue and the worker goroutine.
type sinkRunner struct {
	name     string
	sink     Sink
	queue    chan float64
	counter  *Counter
	driver   bool
	detached bool
}

// sinkError is a failure reported by a worker.
type sinkError struct {
	runner *sinkRunner
	err    error
}

var do struct{}

// New creates a new handler and applies provided options.
// Returned handler is in Ready state.
func New(sampleRate synth.SampleRate, clock synth.Clock, options ...Option) (*Handler, error) {
	h := &Handler{
		UID:        synth.NewUID(),
		sampleRate: sampleRate,
		clock:      clock,
		depth:      int(synth.DefaultBufferSize),
		master:     node.NewMixer(),
		eventc:     make(chan eventMessage, 1),
		pullc:      make(chan struct{}),
		donec:      make(chan struct{}),
		counters:   make(map[string]*Counter),
		log:        log.GetLogger(),
	}
	for _, option := range options {
		if err := option(h); err != nil {
			return nil, err
		}
	}
	go h.loop()
	return h, nil
}

// WithSink attaches sinks delivered through their own bounded queues.
func WithSink(sinks ...Sink) Option {
	return func(h *Handler) error {
		for _, s := range sinks {
			if _, err := h.addRunner(s, false); err != nil {
				return err
			}
		}
		return nil
	}
}

// WithDriver attaches the sink which paces the cadence. At most one driver
// can be set.
func WithDriver(s Sink) Option {
	return func(h *Handler) error {
		_, err := h.addRunner(s, true)
		return err
	}
}

// WithQueue overrides the per-sink queue depth.
func WithQueue(n int) Option {
	return func(h *Handler) error {
		if n <= 0 {
			return fmt.Errorf("queue depth %d: %w", n, synth.ErrConfiguration)
		}
		h.depth = n
		return nil
	}
}

// SampleRate returns the handler sample rate.
func (h *Handler) SampleRate() synth.SampleRate {
	return h.sampleRate
}

// Clock returns the engine clock.
func (h *Handler) Clock() synth.Clock {
	return h.clock
}

// BindVoice wraps a chain in a voice registered against the master mixer.
// The handler's sample rate and clock are stamped into the chain context,
// the frequency automation included.
func (h *Handler) BindVoice(chain node.Node) *voice.Voice {
	ctx := chain.Context()
	ctx.SampleRate = h.sampleRate
	ctx.Clock = h.clock
	ctx.Freq.SetClock(h.clock)
	return voice.New(chain, h.master)
}

// AddSink attaches a sink, also mid-run: an active handler spins the worker
// up immediately.
func (h *Handler) AddSink(s Sink) error {
	e := eventMessage{event: attach, sink: s, done: make(chan error, 1)}
	select {
	case h.eventc <- e:
	case <-h.donec:
		return fmt.Errorf("handler is terminated: %w", synth.ErrInvalidState)
	}
	select {
	case err := <-e.done:
		return err
	case <-h.donec:
		return fmt.Errorf("handler is terminated: %w", synth.ErrInvalidState)
	}
}

// Wait blocks until the handler terminates and returns the terminal error if
// the run broke down.
func (h *Handler) Wait() error {
	<-h.donec
	return h.err
}

// Counters returns a snapshot of per-sink delivery metrics.
func (h *Handler) Counters() map[string]Counter {
	h.cmu.Lock()
	defer h.cmu.Unlock()
	out := make(map[string]Counter, len(h.counters))
	for name, c := range h.counters {
		out[name] = Counter{samples: c.Samples(), dropped: c.Dropped()}
	}
	return out
}

// event routes a control event, failing fast on a terminated handler.
func (h *Handler) event(e eventMessage) chan error {
	select {
	case h.eventc <- e:
		return e.target.errc
	case <-h.donec:
		errc := make(chan error, 1)
		errc <- fmt.Errorf("handler is terminated: %w", synth.ErrInvalidState)
		close(errc)
		return errc
	}
}

// loop listens until the nil state is reached.
func (h *Handler) loop() {
	var s State = Ready
	t := target{}
	for s != nil {
		s, t = s.listen(h, t)
	}
	if h.err != nil && t.State != nil {
		select {
		case t.errc <- h.err:
		default:
		}
	}
	t.reach()
	close(h.donec)
}

// addRunner registers a sink. Runner names disambiguate duplicates of one
// sink type.
func (h *Handler) addRunner(s Sink, driver bool) (*sinkRunner, error) {
	if s == nil {
		return nil, fmt.Errorf("nil sink: %w", synth.ErrConfiguration)
	}
	if driver && h.driver != nil {
		return nil, fmt.Errorf("driver is already set: %w", synth.ErrConfiguration)
	}
	name := fmt.Sprintf("%T", s)
	h.cmu.Lock()
	if _, taken := h.counters[name]; taken {
		for i := 2; ; i++ {
			next := fmt.Sprintf("%s#%d", name, i)
			if _, taken := h.counters[next]; !taken {
				name = next
				break
			}
		}
	}
	c := &Counter{}
	h.counters[name] = c
	h.cmu.Unlock()
	r := &sinkRunner{name: name, sink: s, counter: c, driver: driver}
	if driver {
		h.driver = r
	} else {
		h.queues = append(h.queues, r)
	}
	return r, nil
}

// attachRunner registers a sink and spins its worker up immediately.
func (h *Handler) attachRunner(s Sink) error {
	r, err := h.addRunner(s, false)
	if err != nil {
		return err
	}
	if err := h.startRunner(r); err != nil {
		h.detach(sinkError{runner: r, err: err})
		return err
	}
	return nil
}

// start prepares every sink and spins up the delivery goroutines.
func (h *Handler) start() error {
	if h.driver == nil && len(h.queues) == 0 {
		return fmt.Errorf("no sinks attached: %w", synth.ErrConfiguration)
	}
	h.cancel = make(chan struct{})
	h.errc = make(chan sinkError, 16)
	started := make([]*sinkRunner, 0, 1+len(h.queues))
	for _, r := range h.runners() {
		if err := h.startRunner(r); err != nil {
			close(h.cancel)
			for _, sr := range started {
				if !sr.driver {
					close(sr.queue)
				}
			}
			h.wg.Wait()
			h.cancel = nil
			return err
		}
		started = append(started, r)
	}
	if h.driver == nil {
		h.wg.Add(1)
		go h.pace()
	}
	return nil
}

// runners lists the driver first, then the queue sinks.
func (h *Handler) runners() []*sinkRunner {
	rs := make([]*sinkRunner, 0, 1+len(h.queues))
	if h.driver != nil {
		rs = append(rs, h.driver)
	}
	return append(rs, h.queues...)
}

// startRunner prepares the sink and spins its worker. Driver delivery is a
// rendezvous, queue delivery is bounded.
func (h *Handler) startRunner(r *sinkRunner) error {
	if err := r.sink.Start(h.sampleRate); err != nil {
		return fmt.Errorf("sink %s failed to start: %w", r.name, err)
	}
	if r.driver {
		r.queue = make(chan float64)
		h.wg.Add(1)
		go h.driveWorker(r)
		return nil
	}
	r.queue = make(chan float64, h.depth)
	h.wg.Add(1)
	go h.queueWorker(r)
	return nil
}

// send renders one sample from the master mixer and distributes it. With a
// driver the queues get a non-blocking offer and a full queue drops; without
// one the blocking sends provide the backpressure which paces the engine.
func (h *Handler) send() {
	s := h.master.NextSample()
	if h.driver != nil {
		h.driver.queue <- s
		for _, r := range h.queues {
			select {
			case r.queue <- s:
			default:
				r.counter.drop()
			}
		}
		return
	}
	rs := make([]*sinkRunner, len(h.queues))
	copy(rs, h.queues)
	for _, r := range rs {
		sent := false
		for !sent && !r.detached {
			select {
			case r.queue <- s:
				sent = true
			case se := <-h.errc:
				h.detach(se)
			}
		}
	}
}

// sinkFailed detaches a failed queue sink and keeps the run going; a failed
// driver aborts the run with the error surfaced through Wait.
func (h *Handler) sinkFailed(s State, se sinkError) State {
	if se.runner != nil && se.runner.driver {
		h.log.Error("driver ", se.runner.name, " failed: ", se.err)
		h.err = se.err
		h.teardown()
		return nil
	}
	h.detach(se)
	return s
}

// detach removes a failed queue sink, the run continues without it.
func (h *Handler) detach(se sinkError) {
	if se.runner == nil || se.runner.detached {
		return
	}
	se.runner.detached = true
	h.log.Error("sink ", se.runner.name, " failed: ", se.err)
	for i, r := range h.queues {
		if r == se.runner {
			h.queues = append(h.queues[:i], h.queues[i+1:]...)
			break
		}
	}
}

// teardown stops the delivery: the cadence exits, every queue is closed and
// drained by its worker, the shutdown hooks run, then leftover failures are
// collected.
func (h *Handler) teardown() {
	if h.cancel == nil {
		return
	}
	close(h.cancel)
	if h.driver != nil && !h.driver.detached {
		close(h.driver.queue)
	}
	for _, r := range h.queues {
		close(r.queue)
	}
	h.wg.Wait()
	for {
		select {
		case se := <-h.errc:
			h.log.Error("sink ", se.runner.name, " failed: ", se.err)
			if h.err == nil {
				h.err = se.err
			}
		default:
			h.cancel = nil
			return
		}
	}
}

// fail reports a worker failure without ever blocking the worker.
func (h *Handler) fail(r *sinkRunner, err error) {
	select {
	case h.errc <- sinkError{runner: r, err: err}:
	default:
		h.log.Error("sink ", r.name, " failed: ", err)
	}
}

// pace asks for cadence cycles when no driver does.
func (h *Handler) pace() {
	defer h.wg.Done()
	for {
		select {
		case h.pullc <- do:
		case <-h.cancel:
			return
		}
	}
}

// queueWorker owns the sink until the queue sentinel: it drains every queued
// sample, then runs the sink's shutdown hook.
func (h *Handler) queueWorker(r *sinkRunner) {
	defer h.wg.Done()
	for s := range r.queue {
		if err := r.sink.Receive(s); err != nil {
			h.fail(r, err)
			if err := r.sink.Stop(); err != nil {
				h.log.Error("sink ", r.name, " failed to stop: ", err)
			}
			return
		}
		r.counter.advance()
	}
	if err := r.sink.Stop(); err != nil {
		h.fail(r, err)
	}
}

// driveWorker paces the engine: it asks for a sample, hands it to the device
// and blocks in the device write until the device is ready for more.
func (h *Handler) driveWorker(r *sinkRunner) {
	defer h.wg.Done()
	for {
		select {
		case h.pullc <- do:
		case <-h.cancel:
			if err := r.sink.Stop(); err != nil {
				h.log.Error("sink ", r.name, " failed to stop: ", err)
			}
			return
		}
		s, ok := <-r.queue
		if !ok {
			if err := r.sink.Stop(); err != nil {
				h.fail(r, err)
			}
			return
		}
		if err := r.sink.Receive(s); err != nil {
			h.fail(r, err)
			if err := r.sink.Stop(); err != nil {
				h.log.Error("sink ", r.name, " failed to stop: ", err)
			}
			return
		}
		r.counter.advance()
	}
}
