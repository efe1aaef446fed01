// Package mml compiles Music Macro Language into sequencer tracks. The
// dialect is deliberately small: notes with accidentals, dots and ties,
// rests, chords, octave and tempo state, parallel tracks, loop points and
// repeat blocks.
package mml

import (
	"fmt"
	"math"
	"time"
	"unicode"

	"github.com/dudk/synth"
	"github.com/dudk/synth/seq"
)

const (
	defaultTempo    = 120
	defaultLength   = 4
	beatsPerMeasure = 4.0
)

// noteSteps maps note letters to semitone offsets from A.
var noteSteps = map[rune]int{
	'c': -9,
	'd': -7,
	'e': -5,
	'f': -4,
	'g': -2,
	'a': 0,
	'b': 2,
}

func isNote(ch rune) bool {
	_, ok := noteSteps[ch]
	return ok
}

// Parse compiles the source into one track per ';' separated part. Tracks
// are routed to the instrument names in order, the remainder to the
// registry default.
func Parse(r *seq.Registry, source string, instruments ...string) ([]*seq.Track, error) {
	p := &parser{
		src:   []rune(source),
		reg:   r,
		names: instruments,
	}
	p.startTrack()
	if err := p.parse(); err != nil {
		return nil, err
	}
	if err := p.finishTrack(); err != nil {
		return nil, err
	}
	return p.tracks, nil
}

type parser struct {
	src   []rune
	pos   int
	reg   *seq.Registry
	names []string

	tracks []*seq.Track
	track  *seq.Track
	index  int

	octave   int
	tempo    int
	length   int
	dots     int
	velocity float64
	loop     int
	blocks   []block
}

// block is an open repeat block: the command it will jump back to and the
// source position it was opened at.
type block struct {
	cmd int
	pos int
}

func (p *parser) parse() error {
	for p.pos < len(p.src) {
		ch := p.src[p.pos]
		switch {
		case unicode.IsSpace(ch):
			p.pos++
		case isNote(ch):
			if err := p.note(); err != nil {
				return err
			}
		case ch == 'r':
			p.pos++
			d, err := p.duration()
			if err != nil {
				return err
			}
			p.track.Rest(d)
		case ch == '[':
			if err := p.chord(); err != nil {
				return err
			}
		case ch == 'o':
			p.pos++
			n, err := p.number()
			if err != nil {
				return err
			}
			p.octave = n - 4
		case ch == '<':
			p.pos++
			p.octave++
		case ch == '>':
			p.pos++
			p.octave--
		case ch == 'l':
			p.pos++
			n, err := p.number()
			if err != nil {
				return err
			}
			if n == 0 {
				return p.errorf("zero default length")
			}
			p.length = n
			p.dots = p.countDots()
		case ch == 't':
			p.pos++
			n, err := p.number()
			if err != nil {
				return err
			}
			if n == 0 {
				return p.errorf("zero tempo")
			}
			p.tempo = n
		case ch == 'v':
			p.pos++
			n, err := p.number()
			if err != nil {
				return err
			}
			if n > 15 {
				n = 15
			}
			if n < 1 {
				n = 1
			}
			p.velocity = float64(n) / 15
		case ch == 'q':
			// gate quantization is not modeled
			p.pos++
			if _, err := p.number(); err != nil {
				return err
			}
		case ch == '$':
			p.pos++
			p.loop = p.track.Len()
		case ch == '/':
			open := p.pos
			p.pos++
			if p.pos >= len(p.src) || p.src[p.pos] != ':' {
				return p.errorf("expected ':' after '/'")
			}
			p.pos++
			p.blocks = append(p.blocks, block{cmd: p.track.Len(), pos: open})
		case ch == ':':
			if err := p.closeBlock(); err != nil {
				return err
			}
		case ch == ';':
			p.pos++
			if err := p.finishTrack(); err != nil {
				return err
			}
			p.startTrack()
		default:
			return p.errorf("unexpected %q", ch)
		}
	}
	return nil
}

func (p *parser) startTrack() {
	name := ""
	if p.index < len(p.names) {
		name = p.names[p.index]
	}
	p.track = seq.NewTrack(p.reg, name)
	p.octave = 0
	p.tempo = defaultTempo
	p.length = defaultLength
	p.dots = 0
	p.velocity = 0
	p.loop = -1
}

func (p *parser) finishTrack() error {
	if len(p.blocks) > 0 {
		return p.errorfAt(p.blocks[len(p.blocks)-1].pos, "unclosed repeat block")
	}
	if p.loop >= 0 {
		p.track.Repeat(p.loop, -1)
	}
	if err := p.track.Err(); err != nil {
		return err
	}
	if p.track.Len() > 0 {
		p.tracks = append(p.tracks, p.track)
	}
	p.index++
	return nil
}

func (p *parser) note() error {
	steps := noteSteps[p.src[p.pos]]
	p.pos++
	steps += p.accidental()
	d, err := p.duration()
	if err != nil {
		return err
	}
	p.track.Note(seq.Pitch{Octave: p.octave, Step: steps}, d, p.velocity)
	return nil
}

func (p *parser) chord() error {
	open := p.pos
	p.pos++
	var notes []seq.Pitch
	for {
		p.ws()
		if p.pos >= len(p.src) {
			return p.errorfAt(open, "unterminated chord")
		}
		ch := p.src[p.pos]
		if ch == ']' {
			p.pos++
			break
		}
		switch {
		case isNote(ch):
			p.pos++
			steps := noteSteps[ch] + p.accidental()
			notes = append(notes, seq.Pitch{Octave: p.octave, Step: steps})
		case ch == '<':
			p.pos++
			p.octave++
		case ch == '>':
			p.pos++
			p.octave--
		case ch == 'o':
			p.pos++
			n, err := p.number()
			if err != nil {
				return err
			}
			p.octave = n - 4
		default:
			return p.errorf("unexpected %q in chord", ch)
		}
	}
	if len(notes) == 0 {
		return p.errorfAt(open, "empty chord")
	}
	d, err := p.duration()
	if err != nil {
		return err
	}
	p.track.Chord(notes, d, p.velocity)
	return nil
}

func (p *parser) closeBlock() error {
	p.pos++
	if p.pos >= len(p.src) || p.src[p.pos] != '/' {
		return p.errorf("expected '/' after ':'")
	}
	p.pos++
	if len(p.blocks) == 0 {
		return p.errorf("repeat block was never opened")
	}
	start := p.blocks[len(p.blocks)-1].cmd
	p.blocks = p.blocks[:len(p.blocks)-1]
	count := 2
	if n, ok := p.digits(); ok {
		count = n
	}
	if count < 1 {
		return p.errorf("repeat block count %v", count)
	}
	p.track.Repeat(start, count-1)
	return nil
}

// accidental reads an optional '+', '#' or '-' after a note letter.
func (p *parser) accidental() int {
	p.ws()
	if p.pos >= len(p.src) {
		return 0
	}
	switch p.src[p.pos] {
	case '+', '#':
		p.pos++
		return 1
	case '-':
		p.pos++
		return -1
	}
	return 0
}

// duration reads the length of the current item and any '^' tied tails.
func (p *parser) duration() (time.Duration, error) {
	d, err := p.noteLength()
	if err != nil {
		return 0, err
	}
	for {
		p.ws()
		if p.pos >= len(p.src) || p.src[p.pos] != '^' {
			return d, nil
		}
		p.pos++
		tail, err := p.noteLength()
		if err != nil {
			return 0, err
		}
		d += tail
	}
}

// noteLength resolves an optional divisor with dots against the running
// default. A dot extends the value by half of its previous extension.
func (p *parser) noteLength() (time.Duration, error) {
	div := p.length
	dots := p.dots
	if n, ok := p.digits(); ok {
		div = n
		dots = 0
	}
	dots += p.countDots()
	if div == 0 {
		return 0, p.errorf("zero note length")
	}
	beats := beatsPerMeasure / float64(div) * (2 - math.Pow(0.5, float64(dots)))
	return time.Duration(beats * 60 / float64(p.tempo) * float64(time.Second)), nil
}

func (p *parser) countDots() int {
	dots := 0
	for {
		p.ws()
		if p.pos >= len(p.src) || p.src[p.pos] != '.' {
			return dots
		}
		dots++
		p.pos++
	}
}

// number reads a required unsigned integer.
func (p *parser) number() (int, error) {
	n, ok := p.digits()
	if !ok {
		return 0, p.errorf("expected a number")
	}
	return n, nil
}

// digits reads an optional unsigned integer.
func (p *parser) digits() (int, bool) {
	p.ws()
	n, ok := 0, false
	for p.pos < len(p.src) && p.src[p.pos] >= '0' && p.src[p.pos] <= '9' {
		n = n*10 + int(p.src[p.pos]-'0')
		p.pos++
		ok = true
	}
	return n, ok
}

func (p *parser) ws() {
	for p.pos < len(p.src) && unicode.IsSpace(p.src[p.pos]) {
		p.pos++
	}
}

func (p *parser) errorf(format string, args ...interface{}) error {
	return p.errorfAt(p.pos, format, args...)
}

func (p *parser) errorfAt(pos int, format string, args ...interface{}) error {
	msg := fmt.Sprintf(format, args...)
	return fmt.Errorf("mml: %s at position %d: %w", msg, pos, synth.ErrDomain)
}
