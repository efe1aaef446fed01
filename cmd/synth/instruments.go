package main

import (
	"fmt"
	"time"

	"github.com/dudk/synth"
	"github.com/dudk/synth/envelope"
	"github.com/dudk/synth/filter"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/osc"
	"github.com/dudk/synth/output"
	"github.com/dudk/synth/seq"
)

// instrumentNames lists the built-in bank in registration order. The first
// entry is the registry default.
var instrumentNames = []string{"sine", "square", "saw", "triangle", "fm"}

// buildChain assembles the signal chain of one built-in instrument. The
// context carries placeholder rate and clock, BindVoice stamps the real ones.
func buildChain(name string) (node.Node, error) {
	ctx := node.NewContext(synth.DefaultSampleRate, seq.ReferenceFreq, synth.NanoClock())
	adsr := func(n node.Node) node.Node {
		env := envelope.New(ctx, 10*time.Millisecond, 60*time.Millisecond, 0.8, 250*time.Millisecond)
		env.Bind(n)
		return env
	}
	switch name {
	case "sine":
		return adsr(osc.NewSine(ctx)), nil
	case "square":
		g := filter.NewGain(ctx, 0.6)
		g.Bind(osc.NewSquare(ctx))
		return adsr(g), nil
	case "saw":
		lp := filter.NewLowPass(ctx, 6000)
		lp.Bind(osc.NewSaw(ctx))
		return adsr(lp), nil
	case "triangle":
		return adsr(osc.NewTriangle(ctx)), nil
	case "fm":
		return adsr(osc.NewFM(ctx, 2, 1.5)), nil
	}
	return nil, fmt.Errorf("unknown instrument %q: %w", name, synth.ErrNotFound)
}

// registerInstruments binds the built-in bank against the handler's master
// mixer and registers every instrument under its name.
func registerInstruments(h *output.Handler, r *seq.Registry) error {
	for _, name := range instrumentNames {
		chain, err := buildChain(name)
		if err != nil {
			return err
		}
		if err := r.Register(name, h.BindVoice(chain)); err != nil {
			return err
		}
	}
	return nil
}
