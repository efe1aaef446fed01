package seq

import (
	"fmt"
	"sync"

	"github.com/dudk/synth"
	"github.com/dudk/synth/log"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/voice"
)

type (
	// Registry resolves note events to voices. A registered voice is an
	// instrument prototype: it never sounds itself, it is cloned once per
	// sounding pitch and the clone is cached and reused.
	Registry struct {
		logger log.Logger
		ref    float64

		mu    sync.Mutex
		order []string
		insts map[string]*instrument
	}

	// RegistryOption provides a way to set registry parameters.
	RegistryOption func(r *Registry)

	instrument struct {
		proto  *voice.Voice
		voices map[int]*voice.Voice
	}
)

// WithReference overrides the frequency of Pitch{0, 0}.
func WithReference(freq float64) RegistryOption {
	return func(r *Registry) {
		r.ref = freq
	}
}

// NewRegistry returns an empty registry tuned to A440.
func NewRegistry(options ...RegistryOption) *Registry {
	r := &Registry{
		logger: log.GetLogger(),
		ref:    ReferenceFreq,
		insts:  make(map[string]*instrument),
	}
	for _, option := range options {
		option(r)
	}
	return r
}

// Register adds an instrument prototype under a name. The first registered
// instrument becomes the default. Registering a name twice is invalid.
func (r *Registry) Register(name string, v *voice.Voice) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.insts[name]; ok {
		return fmt.Errorf("instrument %q is already registered: %w", name, synth.ErrInvalidState)
	}
	r.insts[name] = &instrument{
		proto:  v,
		voices: make(map[int]*voice.Voice),
	}
	r.order = append(r.order, name)
	return nil
}

// Instruments returns the registered names in registration order.
func (r *Registry) Instruments() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	names := make([]string, len(r.order))
	copy(names, r.order)
	return names
}

// Voice resolves the voice sounding the pitch, cloning the instrument
// prototype at the pitch frequency on first use. An empty name resolves to
// the default instrument.
func (r *Registry) Voice(p Pitch, name string) (*voice.Voice, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.resolve(p, name)
}

// resolve runs under mu.
func (r *Registry) resolve(p Pitch, name string) (*voice.Voice, error) {
	inst, err := r.lookup(name)
	if err != nil {
		return nil, err
	}
	if v, ok := inst.voices[p.Num()]; ok {
		return v, nil
	}
	proto := inst.proto.Context()
	ctx := node.NewContext(proto.SampleRate, p.Freq(r.ref), proto.Clock)
	v := inst.proto.Clone(ctx)
	inst.voices[p.Num()] = v
	return v, nil
}

// lookup runs under mu.
func (r *Registry) lookup(name string) (*instrument, error) {
	if name == "" {
		if len(r.order) == 0 {
			return nil, fmt.Errorf("no instruments registered: %w", synth.ErrNotFound)
		}
		name = r.order[0]
	}
	inst, ok := r.insts[name]
	if !ok {
		return nil, fmt.Errorf("instrument %q: %w", name, synth.ErrNotFound)
	}
	return inst, nil
}

// NoteOn starts the pitch and keeps it sounding until NoteOff. A zero
// velocity plays at unity scale. A note that is already sounding keeps
// sounding, a releasing note revives with its attack.
func (r *Registry) NoteOn(p Pitch, velocity float64, name string) error {
	r.mu.Lock()
	v, err := r.resolve(p, name)
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if velocity == 0 {
		velocity = 1
	}
	v.SetVelocity(velocity)
	v.ScheduleWindow(v.Context().Clock(), -1)
	return nil
}

// NoteOff winds the pitch down gracefully. A note that is not sounding is
// logged and skipped.
func (r *Registry) NoteOff(p Pitch, name string) error {
	r.mu.Lock()
	inst, err := r.lookup(name)
	var v *voice.Voice
	if err == nil {
		v = inst.voices[p.Num()]
	}
	r.mu.Unlock()
	if err != nil {
		return err
	}
	if v == nil {
		r.logger.Debug("note off for unknown pitch ", p.Num())
		return nil
	}
	switch v.State() {
	case voice.Active, voice.Scheduled:
		v.Stop()
	case voice.Releasing:
	default:
		r.logger.Debug("note ", p.Num(), " is not on")
	}
	return nil
}

// On reports whether the pitch is currently sounding.
func (r *Registry) On(p Pitch, name string) bool {
	r.mu.Lock()
	inst, err := r.lookup(name)
	var v *voice.Voice
	if err == nil {
		v = inst.voices[p.Num()]
	}
	r.mu.Unlock()
	if v == nil {
		return false
	}
	switch v.State() {
	case voice.Active, voice.Releasing:
		return true
	}
	return false
}

// StopAll gracefully winds down every voice the registry ever resolved.
func (r *Registry) StopAll() {
	for _, v := range r.voices() {
		v.Stop()
	}
}

// HardStopAll drops every voice immediately.
func (r *Registry) HardStopAll() {
	for _, v := range r.voices() {
		v.HardStop()
	}
}

// Drain blocks until every voice that ever sounded terminates.
func (r *Registry) Drain() {
	for _, v := range r.voices() {
		v.Join()
	}
}

func (r *Registry) voices() []*voice.Voice {
	r.mu.Lock()
	defer r.mu.Unlock()
	var vs []*voice.Voice
	for _, name := range r.order {
		for _, v := range r.insts[name].voices {
			vs = append(vs, v)
		}
	}
	return vs
}
