package output_test

import (
	"bytes"
	"encoding/binary"
	"errors"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mock"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/output"
)

func TestConverters(t *testing.T) {
	half := 0.5
	b := output.Float32LE{}.Append(nil, half)
	assert.Equal(t, 4, len(b), "Incorrect frame size for float32")
	assert.Equal(t, float32(0.5), math.Float32frombits(binary.LittleEndian.Uint32(b)))

	b = output.Int16LE{}.Append(nil, half)
	assert.Equal(t, 2, len(b), "Incorrect frame size for int16")
	assert.Equal(t, int16(half*0x7fff), int16(binary.LittleEndian.Uint16(b)))

	b = output.Int16LE{}.Append(nil, 2.0)
	assert.Equal(t, int16(0x7fff), int16(binary.LittleEndian.Uint16(b)), "Incorrect clamped sample")

	b = output.Int16LE{}.Append(nil, -2.0)
	assert.Equal(t, int16(-0x7fff), int16(binary.LittleEndian.Uint16(b)), "Incorrect clamped sample")
}

func TestWriterMisconfigured(t *testing.T) {
	err := output.NewWriter(nil, nil).Start(44100)
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for empty writer")
}

func TestWriterAndNullSinks(t *testing.T) {
	clock := mock.NewClock()
	var buf bytes.Buffer
	h, err := output.New(44100, clock.Now(),
		output.WithSink(output.NewWriter(&buf, output.Int16LE{}), output.Null{}),
		output.WithQueue(4))
	assert.Nil(t, err)

	ctx := node.NewContext(44100, 440, clock.Now())
	half := 0.5
	v := h.BindVoice(mock.NewSource(ctx, half))
	assert.Nil(t, v.Start())

	runc := h.Run()
	// the writer flushes once per full batch, wait for at least one
	waitFor(t, "batch delivered", func() bool {
		c, ok := h.Counters()["*output.Writer"]
		return ok && c.Samples() > int64(synth.DefaultBufferSize)
	})

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())

	wc := h.Counters()["*output.Writer"]
	delivered := wc.Samples()
	assert.Equal(t, int(delivered)*2, buf.Len(), "Incorrect result stream size")
	assert.Equal(t, int16(half*0x7fff), int16(binary.LittleEndian.Uint16(buf.Bytes())))

	v.HardStop()
	goleak.VerifyNoLeaks(t)
}
