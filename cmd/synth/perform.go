package main

import (
	"fmt"
	"time"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mml"
	"github.com/dudk/synth/mp3"
	"github.com/dudk/synth/oto"
	"github.com/dudk/synth/output"
	"github.com/dudk/synth/portaudio"
	"github.com/dudk/synth/seq"
	"github.com/dudk/synth/wav"
)

const (
	mp3BitRate = 192
	mp3Quality = 2
)

// performance holds the delivery setup shared by the song commands.
type performance struct {
	rate   int
	buffer int
	driver string
	out    string
	depth  int
	mp3    string
}

// handler builds the output handler: the driver paces the cadence, the
// optional recording sinks each deliver through their own queue.
func (p performance) handler(clock synth.Clock) (*output.Handler, error) {
	if p.rate <= 0 {
		return nil, fmt.Errorf("sample rate %d: %w", p.rate, synth.ErrConfiguration)
	}
	if p.buffer <= 0 {
		return nil, fmt.Errorf("buffer size %d: %w", p.buffer, synth.ErrConfiguration)
	}
	bs := synth.BufferSize(p.buffer)
	var options []output.Option
	switch p.driver {
	case "portaudio":
		options = append(options, output.WithDriver(portaudio.NewSink(bs)))
	case "oto":
		options = append(options, output.WithDriver(oto.NewSink(bs)))
	case "none":
		options = append(options, output.WithDriver(newPacer(bs)))
	default:
		return nil, fmt.Errorf("unknown driver %q: %w", p.driver, synth.ErrConfiguration)
	}
	if p.out != "" {
		sink, err := wav.NewSink(p.out, p.depth)
		if err != nil {
			return nil, err
		}
		options = append(options, output.WithSink(sink))
	}
	if p.mp3 != "" {
		sink, err := mp3.NewSink(p.mp3, mp3BitRate, mp3Quality)
		if err != nil {
			return nil, err
		}
		options = append(options, output.WithSink(sink))
	}
	return output.New(synth.SampleRate(p.rate), clock, options...)
}

// perform plays one mml song from start to finish: it builds the delivery
// chain, registers the built-in instruments, compiles the song and blocks
// until every track played out and the sinks shut down.
func perform(source string, instruments []string, p performance) error {
	clock := synth.NanoClock()
	h, err := p.handler(clock)
	if err != nil {
		return err
	}
	r := seq.NewRegistry()
	if err := registerInstruments(h, r); err != nil {
		output.Wait(h.Stop())
		return err
	}
	tracks, err := mml.Parse(r, source, instruments...)
	if err != nil {
		output.Wait(h.Stop())
		return err
	}
	if len(tracks) == 0 {
		output.Wait(h.Stop())
		return fmt.Errorf("no tracks in the song: %w", synth.ErrConfiguration)
	}

	sched := seq.NewScheduler(clock, r)
	runc := h.Run()
	brokec := make(chan error, 1)
	donec := make(chan struct{})
	go func() {
		err := output.Wait(runc)
		if err == nil {
			return
		}
		brokec <- err
		// Run may not have armed its stop channel yet, retry until the
		// schedule winds down.
		for {
			sched.Stop()
			select {
			case <-donec:
				return
			case <-time.After(10 * time.Millisecond):
			}
		}
	}()

	err = sched.Run(tracks...)
	close(donec)
	if err != nil {
		output.Wait(h.Stop())
		return err
	}
	stopErr := output.Wait(h.Stop())
	select {
	case err := <-brokec:
		return err
	default:
	}
	return stopErr
}

// pacer is a silent cadence driver for runs without an audio device: the
// blocking Receive spends wall time at the sample rate so voice windows
// scheduled on the engine clock stay aligned with the rendered stream.
type pacer struct {
	bs      synth.BufferSize
	rate    synth.SampleRate
	started time.Time
	samples int
	n       int
}

func newPacer(bs synth.BufferSize) *pacer {
	return &pacer{bs: bs}
}

// Start implements output.Sink.
func (p *pacer) Start(rate synth.SampleRate) error {
	p.rate = rate
	p.started = time.Now()
	p.samples = 0
	p.n = 0
	return nil
}

// Receive implements output.Sink. It sleeps once per buffer towards the
// absolute deadline of the samples received so far.
func (p *pacer) Receive(float64) error {
	p.samples++
	p.n++
	if p.n < int(p.bs) {
		return nil
	}
	p.n = 0
	time.Sleep(time.Until(p.started.Add(p.rate.DurationOf(p.samples))))
	return nil
}

// Stop implements output.Sink.
func (p *pacer) Stop() error {
	return nil
}
