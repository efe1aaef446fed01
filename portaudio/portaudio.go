// Package portaudio provides a sink that plays the stream on the default
// output device. Stream writes block at the device rate, which makes this
// sink the usual cadence driver.
package portaudio

import (
	"github.com/gordonklaus/portaudio"

	"github.com/dudk/synth"
)

type (
	// Sink represents portaudio sink which allows to play audio using default device.
	Sink struct {
		synth.UID
		bs     synth.BufferSize
		buf    []float32
		n      int
		stream *portaudio.Stream
	}
)

// NewSink returns new initialized sink which allows to play the stream.
func NewSink(bs synth.BufferSize) *Sink {
	return &Sink{
		UID: synth.NewUID(),
		bs:  bs,
	}
}

// Start initializes the portaudio api and opens the default mono stream.
func (s *Sink) Start(rate synth.SampleRate) error {
	s.buf = make([]float32, int(s.bs))
	s.n = 0
	err := portaudio.Initialize()
	if err != nil {
		return err
	}
	s.stream, err = portaudio.OpenDefaultStream(0, 1, float64(rate), int(s.bs), &s.buf)
	if err != nil {
		portaudio.Terminate()
		return err
	}
	if err = s.stream.Start(); err != nil {
		s.stream.Close()
		portaudio.Terminate()
		return err
	}
	return nil
}

// Receive buffers one sample and writes full buffers to the stream. The
// write blocks until the device consumes the buffer.
func (s *Sink) Receive(sample float64) error {
	s.buf[s.n] = float32(sample)
	s.n++
	if s.n < len(s.buf) {
		return nil
	}
	s.n = 0
	return s.stream.Write()
}

// Stop pads and plays the tail buffer, then terminates portaudio structures.
func (s *Sink) Stop() error {
	if s.n > 0 {
		for i := s.n; i < len(s.buf); i++ {
			s.buf[i] = 0
		}
		s.n = 0
		s.stream.Write()
	}
	err := s.stream.Stop()
	if err != nil {
		return err
	}
	err = s.stream.Close()
	if err != nil {
		return err
	}
	return portaudio.Terminate()
}
