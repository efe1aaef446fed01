// Package wav provides a sink that renders the stream to a mono PCM wav
// file.
package wav

import (
	"fmt"
	"os"
	"sync"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"

	"github.com/dudk/synth"
)

// wav pcm format
const wavAudioFormat = 1

// Sink saves audio to a wav file. The sink is single use: once the file is
// finalized it cannot be reopened.
type Sink struct {
	synth.UID
	path     string
	bitDepth int
	scale    float64
	batch    int
	once     sync.Once
	file     *os.File
	encoder  *wav.Encoder
	ib       *audio.IntBuffer
}

// NewSink creates a new wav sink. Only 16 and 32 bit depths are supported.
func NewSink(path string, bitDepth int) (*Sink, error) {
	var scale float64
	switch bitDepth {
	case 16:
		scale = 0x7fff
	case 32:
		scale = 0x7fffffff
	default:
		return nil, fmt.Errorf("bit depth %v is not supported: %w", bitDepth, synth.ErrConfiguration)
	}
	return &Sink{
		UID:      synth.NewUID(),
		path:     path,
		bitDepth: bitDepth,
		scale:    scale,
		batch:    int(synth.DefaultBufferSize),
	}, nil
}

// Start creates the file and the encoder.
func (s *Sink) Start(rate synth.SampleRate) error {
	if err := synth.SingleUse(&s.once); err != nil {
		return fmt.Errorf("wav sink for %v: %w", s.path, err)
	}
	f, err := os.Create(s.path)
	if err != nil {
		return err
	}
	s.file = f
	s.encoder = wav.NewEncoder(f, int(rate), s.bitDepth, 1, wavAudioFormat)
	s.ib = &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: 1,
			SampleRate:  int(rate),
		},
		SourceBitDepth: s.bitDepth,
		Data:           make([]int, 0, s.batch),
	}
	return nil
}

// Receive buffers one sample and flushes full batches to the encoder.
func (s *Sink) Receive(sample float64) error {
	s.ib.Data = append(s.ib.Data, int(synth.Clamp(sample, -1, 1)*s.scale))
	if len(s.ib.Data) < s.batch {
		return nil
	}
	return s.flush()
}

// Stop flushes the tail batch and finalizes the file.
func (s *Sink) Stop() error {
	if err := s.flush(); err != nil {
		s.file.Close()
		return err
	}
	if err := s.encoder.Close(); err != nil {
		s.file.Close()
		return err
	}
	return s.file.Close()
}

func (s *Sink) flush() error {
	if len(s.ib.Data) == 0 {
		return nil
	}
	if err := s.encoder.Write(s.ib); err != nil {
		return err
	}
	s.ib.Data = s.ib.Data[:0]
	return nil
}
