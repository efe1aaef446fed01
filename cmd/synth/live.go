package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/chzyer/readline"
	"github.com/rakyll/portmidi"

	"github.com/dudk/synth"
	"github.com/dudk/synth/midi"
	"github.com/dudk/synth/mml"
	"github.com/dudk/synth/output"
	"github.com/dudk/synth/seq"
)

type liveCommand struct {
	driver string
	rate   int
	buffer int
	out    string
	midi   string
}

//Implement command interface
func (cmd *liveCommand) Name() string {
	return "live"
}

func (cmd *liveCommand) Help() string {
	return "Start an interactive session"
}

func (cmd *liveCommand) Register(fs *flag.FlagSet) {
	fs.StringVar(&cmd.driver, "driver", "portaudio", "audio driver: portaudio, oto or none")
	fs.IntVar(&cmd.rate, "rate", int(synth.DefaultSampleRate), "sample rate in Hz")
	fs.IntVar(&cmd.buffer, "buffer", int(synth.DefaultBufferSize), "buffer size in samples")
	fs.StringVar(&cmd.out, "out", "", "wav file to record the session into")
	fs.StringVar(&cmd.midi, "midi", "", "MIDI input device id or 'default', see the devices command")
}

func (cmd *liveCommand) Run() error {
	clock := synth.NanoClock()
	p := performance{
		rate:   cmd.rate,
		buffer: cmd.buffer,
		driver: cmd.driver,
		out:    cmd.out,
		depth:  16,
	}
	h, err := p.handler(clock)
	if err != nil {
		return err
	}
	r := seq.NewRegistry()
	if err := registerInstruments(h, r); err != nil {
		output.Wait(h.Stop())
		return err
	}

	var ctrl *midi.Controller
	if cmd.midi != "" {
		id, err := resolveDevice(cmd.midi)
		if err != nil {
			output.Wait(h.Stop())
			return err
		}
		if ctrl, err = midi.Open(id, r); err != nil {
			output.Wait(h.Stop())
			return err
		}
		// CC 123 is the all notes off channel mode message
		ctrl.BindControl(123, func(float64) { r.StopAll() })
	}

	rl, err := readline.New("> ")
	if err != nil {
		closeController(ctrl)
		output.Wait(h.Stop())
		return err
	}
	var closed sync.Once
	closeRl := func() {
		closed.Do(func() { rl.Close() })
	}

	runc := h.Run()
	brokec := make(chan error, 1)
	go func() {
		if err := output.Wait(runc); err != nil {
			brokec <- err
			closeRl()
		}
	}()

	s := &session{
		handler:  h,
		registry: r,
		sched:    seq.NewScheduler(clock, r),
	}
	fmt.Println("Live session, type help to list commands")
	fmt.Println("Instruments:", strings.Join(r.Instruments(), ", "))
	for {
		line, err := rl.Readline()
		if err == readline.ErrInterrupt {
			r.StopAll()
			continue
		}
		if err != nil {
			break
		}
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		if line == "quit" || line == "exit" {
			break
		}
		if err := s.eval(line); err != nil {
			fmt.Println(err)
		}
	}
	closeRl()

	s.sched.Stop()
	s.wg.Wait()
	closeController(ctrl)
	r.StopAll()
	r.Drain()
	stopErr := output.Wait(h.Stop())
	select {
	case err := <-brokec:
		return err
	default:
	}
	return stopErr
}

// session is the state behind one live prompt.
type session struct {
	handler    *output.Handler
	registry   *seq.Registry
	sched      *seq.Scheduler
	instrument string
	wg         sync.WaitGroup
}

func (s *session) eval(line string) error {
	fields := strings.Fields(line)
	switch fields[0] {
	case "on":
		p, err := parsePitch(fields[1:])
		if err != nil {
			return err
		}
		return s.registry.NoteOn(p, 0, s.instrument)
	case "off":
		p, err := parsePitch(fields[1:])
		if err != nil {
			return err
		}
		return s.registry.NoteOff(p, s.instrument)
	case "inst":
		if len(fields) < 2 {
			for _, name := range s.registry.Instruments() {
				marker := " "
				if name == s.current() {
					marker = "*"
				}
				fmt.Printf("%s %s\n", marker, name)
			}
			return nil
		}
		return s.switchInstrument(fields[1])
	case "play":
		tracks, err := mml.Parse(s.registry, strings.TrimSpace(strings.TrimPrefix(line, "play")), s.instrument)
		if err != nil {
			return err
		}
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			if err := s.sched.Run(tracks...); err != nil {
				fmt.Println(err)
			}
		}()
		return nil
	case "stopall":
		s.sched.Stop()
		s.registry.StopAll()
		return nil
	case "pause":
		return output.Wait(s.handler.Pause())
	case "resume":
		return output.Wait(s.handler.Resume())
	case "help":
		printHelp()
		return nil
	}
	return fmt.Errorf("unknown command %q, type help to list commands", fields[0])
}

// current resolves the effective instrument name, the registry default when
// none was picked.
func (s *session) current() string {
	if s.instrument != "" {
		return s.instrument
	}
	return s.registry.Instruments()[0]
}

func (s *session) switchInstrument(name string) error {
	for _, have := range s.registry.Instruments() {
		if have == name {
			s.instrument = name
			fmt.Println("instrument:", name)
			return nil
		}
	}
	return fmt.Errorf("unknown instrument %q: %w", name, synth.ErrNotFound)
}

func printHelp() {
	fmt.Println("on <note> [oct]  \thold a note, e.g. on c# 5")
	fmt.Println("off <note> [oct] \trelease a held note")
	fmt.Println("inst [name]      \tshow or switch the current instrument")
	fmt.Println("play <mml>       \tplay an mml line on the current instrument")
	fmt.Println("stopall          \trelease everything that sounds")
	fmt.Println("pause, resume    \tpark and resume the delivery")
	fmt.Println("quit             \tleave the session")
}

// noteSteps maps a note letter to its semitone distance from a.
var noteSteps = map[byte]int{
	'c': -9, 'd': -7, 'e': -5, 'f': -4, 'g': -2, 'a': 0, 'b': 2,
}

// parsePitch reads a note token with optional trailing accidentals and an
// optional octave argument, e.g. "c# 5" or "a".
func parsePitch(args []string) (seq.Pitch, error) {
	if len(args) == 0 {
		return seq.Pitch{}, fmt.Errorf("missing note: %w", synth.ErrDomain)
	}
	name := strings.ToLower(args[0])
	step, ok := noteSteps[name[0]]
	if !ok {
		return seq.Pitch{}, fmt.Errorf("unknown note %q: %w", args[0], synth.ErrDomain)
	}
	for _, ch := range name[1:] {
		switch ch {
		case '+', '#':
			step++
		case '-':
			step--
		default:
			return seq.Pitch{}, fmt.Errorf("unknown note %q: %w", args[0], synth.ErrDomain)
		}
	}
	octave := 4
	if len(args) > 1 {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return seq.Pitch{}, fmt.Errorf("bad octave %q: %w", args[1], synth.ErrDomain)
		}
		octave = n
	}
	return seq.Pitch{Octave: octave - 4, Step: step}, nil
}

// resolveDevice reads the -midi flag value.
func resolveDevice(v string) (portmidi.DeviceID, error) {
	if v == "default" {
		return midi.DefaultDevice()
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("bad device id %q: %w", v, synth.ErrConfiguration)
	}
	return portmidi.DeviceID(n), nil
}

func closeController(c *midi.Controller) {
	if c == nil {
		return
	}
	if err := c.Close(); err != nil {
		fmt.Println("midi controller close failed:", err)
	}
}
