package output

import (
	"encoding/binary"
	"fmt"
	"io"
	"math"

	"github.com/dudk/synth"
)

type (
	// Sink consumes the rendered stream one sample at a time. Start prepares
	// resources, Receive is called once per sample on the sink's own worker
	// goroutine, Stop is the shutdown hook which runs after the last sample.
	Sink interface {
		Start(synth.SampleRate) error
		Receive(float64) error
		Stop() error
	}

	// Converter appends the wire form of one sample to a byte slice.
	Converter interface {
		Append([]byte, float64) []byte
	}
)

// Float32LE encodes samples as little-endian IEEE 754 float32.
type Float32LE struct{}

// Append implements Converter.
func (Float32LE) Append(b []byte, s float64) []byte {
	var frame [4]byte
	binary.LittleEndian.PutUint32(frame[:], math.Float32bits(float32(s)))
	return append(b, frame[:]...)
}

// Int16LE encodes samples as little-endian signed 16-bit PCM. Samples are
// clamped to [-1, 1] before scaling to full range.
type Int16LE struct{}

// Append implements Converter.
func (Int16LE) Append(b []byte, s float64) []byte {
	v := int16(synth.Clamp(s, -1, 1) * 0x7fff)
	var frame [2]byte
	binary.LittleEndian.PutUint16(frame[:], uint16(v))
	return append(b, frame[:]...)
}

// Writer is a sink that encodes samples with a converter and writes them out
// in buffer-sized batches.
type Writer struct {
	w      io.Writer
	conv   Converter
	batch  int
	buf    []byte
	frames int
}

// NewWriter returns a writer sink encoding with the provided converter.
func NewWriter(w io.Writer, conv Converter) *Writer {
	return &Writer{
		w:     w,
		conv:  conv,
		batch: int(synth.DefaultBufferSize),
	}
}

// Start implements Sink.
func (w *Writer) Start(synth.SampleRate) error {
	if w.w == nil || w.conv == nil {
		return fmt.Errorf("writer sink misses writer or converter: %w", synth.ErrConfiguration)
	}
	w.buf = w.buf[:0]
	w.frames = 0
	return nil
}

// Receive implements Sink.
func (w *Writer) Receive(s float64) error {
	w.buf = w.conv.Append(w.buf, s)
	w.frames++
	if w.frames < w.batch {
		return nil
	}
	return w.flush()
}

// Stop implements Sink. The tail batch is flushed.
func (w *Writer) Stop() error {
	return w.flush()
}

func (w *Writer) flush() error {
	if len(w.buf) == 0 {
		return nil
	}
	if _, err := w.w.Write(w.buf); err != nil {
		return err
	}
	w.buf = w.buf[:0]
	w.frames = 0
	return nil
}

// Null is a sink that discards everything it receives.
type Null struct{}

// Start implements Sink.
func (Null) Start(synth.SampleRate) error { return nil }

// Receive implements Sink.
func (Null) Receive(float64) error { return nil }

// Stop implements Sink.
func (Null) Stop() error { return nil }
