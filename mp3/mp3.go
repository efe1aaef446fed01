// Package mp3 provides a sink that encodes the stream to an mp3 file.
package mp3

import (
	"fmt"
	"os"
	"sync"

	"github.com/viert/lame"

	"github.com/dudk/synth"
	"github.com/dudk/synth/output"
)

// Sink saves audio to an mp3 file. The sink is single use: once the file is
// finalized it cannot be reopened.
type Sink struct {
	synth.UID
	path    string
	bitRate int
	quality int
	conv    output.Converter
	batch   int
	once    sync.Once
	buf     []byte
	frames  int
	file    *os.File
	wr      *lame.LameWriter
}

// NewSink creates a new mp3 sink. Bit rate is in kbps, quality grades from
// 0 (best) to 9 (fastest).
func NewSink(path string, bitRate, quality int) (*Sink, error) {
	if bitRate <= 0 {
		return nil, fmt.Errorf("bit rate %v is not supported: %w", bitRate, synth.ErrConfiguration)
	}
	if quality < 0 || quality > 9 {
		return nil, fmt.Errorf("quality %v is out of range: %w", quality, synth.ErrConfiguration)
	}
	return &Sink{
		UID:     synth.NewUID(),
		path:    path,
		bitRate: bitRate,
		quality: quality,
		conv:    output.Int16LE{},
		batch:   int(synth.DefaultBufferSize),
	}, nil
}

// Start creates the file and initializes the encoder.
func (s *Sink) Start(rate synth.SampleRate) error {
	if err := synth.SingleUse(&s.once); err != nil {
		return fmt.Errorf("mp3 sink for %v: %w", s.path, err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.file = f
	s.wr = lame.NewWriter(f)
	s.wr.Encoder.SetBitrate(s.bitRate)
	s.wr.Encoder.SetQuality(s.quality)
	s.wr.Encoder.SetNumChannels(1)
	s.wr.Encoder.SetInSamplerate(int(rate))
	s.wr.Encoder.SetMode(lame.JOINT_STEREO)
	s.wr.Encoder.SetVBR(lame.VBR_RH)
	s.wr.Encoder.InitParams()
	s.buf = make([]byte, 0, s.batch*2)
	s.frames = 0
	return nil
}

// Receive buffers one sample and encodes full batches.
func (s *Sink) Receive(sample float64) error {
	s.buf = s.conv.Append(s.buf, sample)
	s.frames++
	if s.frames < s.batch {
		return nil
	}
	return s.flush()
}

// Stop encodes the tail batch and finalizes the file.
func (s *Sink) Stop() error {
	if err := s.flush(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.wr.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *Sink) flush() error {
	if len(s.buf) == 0 {
		return nil
	}
	if _, err := s.wr.Write(s.buf); err != nil {
		return err
	}
	s.buf = s.buf[:0]
	s.frames = 0
	return nil
}
