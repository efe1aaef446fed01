// Package oto provides a sink that plays the stream through the oto
// library, without cgo. The oto context is process wide, so at most one
// sink can ever be started.
package oto

import (
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/ebitengine/oto/v3"

	"github.com/dudk/synth"
	"github.com/dudk/synth/output"
)

type (
	// Sink represents oto sink which allows to play audio using default device.
	Sink struct {
		synth.UID
		bs     synth.BufferSize
		once   sync.Once
		conv   output.Converter
		buf    []byte
		frames int
		player *oto.Player
		pw     *io.PipeWriter
	}
)

// NewSink returns new initialized sink which allows to play the stream.
func NewSink(bs synth.BufferSize) *Sink {
	return &Sink{
		UID:  synth.NewUID(),
		bs:   bs,
		conv: output.Float32LE{},
	}
}

// Start creates the oto context and a player pulling from the sink. The
// device buffer holds one engine buffer worth of frames.
func (s *Sink) Start(rate synth.SampleRate) error {
	if err := synth.SingleUse(&s.once); err != nil {
		return fmt.Errorf("oto sink: %w", err)
	}
	op := &oto.NewContextOptions{
		SampleRate:   int(rate),
		ChannelCount: 1,
		Format:       oto.FormatFloat32LE,
		BufferSize:   time.Duration(int(s.bs)) * time.Second / time.Duration(rate),
	}
	ctx, ready, err := oto.NewContext(op)
	if err != nil {
		return err
	}
	<-ready
	pr, pw := io.Pipe()
	s.pw = pw
	s.buf = make([]byte, 0, int(s.bs)*4)
	s.frames = 0
	s.player = ctx.NewPlayer(pr)
	s.player.Play()
	return nil
}

// Receive buffers one sample and pipes full buffers to the player. The
// pipe write blocks until the player consumes the buffer.
func (s *Sink) Receive(sample float64) error {
	s.buf = s.conv.Append(s.buf, sample)
	s.frames++
	if s.frames < int(s.bs) {
		return nil
	}
	_, err := s.pw.Write(s.buf)
	s.buf = s.buf[:0]
	s.frames = 0
	return err
}

// Stop pipes the tail buffer and closes the player.
func (s *Sink) Stop() error {
	if s.frames > 0 {
		s.pw.Write(s.buf)
		s.buf = s.buf[:0]
		s.frames = 0
	}
	s.pw.Close()
	return s.player.Close()
}
