package output_test

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mock"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/output"
)

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatal("never happened: ", what)
}

func TestHandlerOfflineRun(t *testing.T) {
	clock := mock.NewClock()
	sink := mock.NewSink()
	h, err := output.New(44100, clock.Now(), output.WithSink(sink), output.WithQueue(4))
	assert.Nil(t, err)

	ctx := node.NewContext(22050, 440, clock.Now())
	v := h.BindVoice(mock.NewSource(ctx, 0.5))
	assert.Equal(t, synth.SampleRate(44100), ctx.SampleRate)
	assert.Nil(t, v.Start())

	runc := h.Run()
	waitFor(t, "sink received samples", func() bool { return len(sink.Samples()) >= 100 })

	err = output.Wait(h.Stop())
	assert.Nil(t, err)
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())

	assert.Equal(t, 1, sink.Started())
	assert.Equal(t, 1, sink.Stopped())
	assert.Equal(t, synth.SampleRate(44100), sink.Rate())
	for _, s := range sink.Samples() {
		assert.Equal(t, 0.5, s)
	}

	counters := h.Counters()
	assert.Equal(t, 1, len(counters))
	for _, c := range counters {
		assert.True(t, c.Samples() >= 100, "Incorrect delivered count")
		assert.Equal(t, int64(0), c.Dropped())
	}

	v.HardStop()
	goleak.VerifyNoLeaks(t)
}

func TestHandlerPauseResume(t *testing.T) {
	clock := mock.NewClock()
	sink := mock.NewSink()
	h, err := output.New(44100, clock.Now(), output.WithSink(sink), output.WithQueue(4))
	assert.Nil(t, err)

	runc := h.Run()
	waitFor(t, "sink received samples", func() bool { return len(sink.Samples()) >= 10 })

	assert.Nil(t, output.Wait(h.Pause()))
	time.Sleep(5 * time.Millisecond)
	parked := len(sink.Samples())
	time.Sleep(20 * time.Millisecond)
	assert.Equal(t, parked, len(sink.Samples()), "Paused handler should not deliver")

	assert.Nil(t, output.Wait(h.Resume()))
	waitFor(t, "delivery resumed", func() bool { return len(sink.Samples()) > parked })

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())
	goleak.VerifyNoLeaks(t)
}

func TestHandlerNoSinks(t *testing.T) {
	clock := mock.NewClock()
	h, err := output.New(44100, clock.Now())
	assert.Nil(t, err)

	err = output.Wait(h.Run())
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for sinkless run")

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, h.Wait())
	goleak.VerifyNoLeaks(t)
}

func TestHandlerInvalidEvents(t *testing.T) {
	clock := mock.NewClock()
	sink := mock.NewSink()
	h, err := output.New(44100, clock.Now(), output.WithSink(sink))
	assert.Nil(t, err)

	assert.Equal(t, synth.ErrInvalidState, output.Wait(h.Pause()))
	assert.Equal(t, synth.ErrInvalidState, output.Wait(h.Resume()))

	runc := h.Run()
	waitFor(t, "sink received samples", func() bool { return len(sink.Samples()) >= 1 })
	assert.Equal(t, synth.ErrInvalidState, output.Wait(h.Run()))

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())

	err = output.Wait(h.Run())
	assert.True(t, errors.Is(err, synth.ErrInvalidState), "Incorrect error for terminated handler")
	goleak.VerifyNoLeaks(t)
}

func TestHandlerBadOptions(t *testing.T) {
	clock := mock.NewClock()
	_, err := output.New(44100, clock.Now(), output.WithQueue(0))
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for zero queue")

	_, err = output.New(44100, clock.Now(),
		output.WithDriver(mock.NewSink()), output.WithDriver(mock.NewSink()))
	assert.True(t, errors.Is(err, synth.ErrConfiguration), "Incorrect error for second driver")
}

func TestHandlerDriverCadence(t *testing.T) {
	clock := mock.NewClock()
	driver := mock.NewSink()
	driver.Delay = 100 * time.Microsecond
	tap := mock.NewSink()
	h, err := output.New(44100, clock.Now(),
		output.WithDriver(driver), output.WithSink(tap), output.WithQueue(8))
	assert.Nil(t, err)

	runc := h.Run()
	waitFor(t, "driver received samples", func() bool { return len(driver.Samples()) >= 50 })

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())

	assert.Equal(t, 1, driver.Started())
	assert.Equal(t, 1, driver.Stopped())
	assert.Equal(t, 1, tap.Started())
	assert.Equal(t, 1, tap.Stopped())

	// the tap rides the driver cadence, it can trail by the queue depth only
	assert.True(t, len(tap.Samples()) >= len(driver.Samples())-9, "Tap fell too far behind the driver")
	goleak.VerifyNoLeaks(t)
}

func TestHandlerSlowSinkDrops(t *testing.T) {
	clock := mock.NewClock()
	driver := mock.NewSink()
	slow := mock.NewSink()
	slow.Delay = 2 * time.Millisecond
	h, err := output.New(44100, clock.Now(),
		output.WithDriver(driver), output.WithSink(slow), output.WithQueue(2))
	assert.Nil(t, err)

	runc := h.Run()
	waitFor(t, "driver received samples", func() bool { return len(driver.Samples()) >= 200 })

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())

	assert.True(t, len(driver.Samples()) > len(slow.Samples()), "Slow sink should not pace the driver")
	var dropped int64
	for _, c := range h.Counters() {
		dropped += c.Dropped()
	}
	assert.True(t, dropped > 0, "Full queue should have dropped")
	goleak.VerifyNoLeaks(t)
}

func TestHandlerQueueSinkFailureIsolation(t *testing.T) {
	clock := mock.NewClock()
	driver := mock.NewSink()
	failing := mock.NewSink()
	failing.FailOn = 5
	h, err := output.New(44100, clock.Now(),
		output.WithDriver(driver), output.WithSink(failing), output.WithQueue(4))
	assert.Nil(t, err)

	runc := h.Run()
	waitFor(t, "failed sink detached", func() bool { return failing.Stopped() == 1 })
	waitFor(t, "driver kept running", func() bool { return len(driver.Samples()) >= 100 })

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait(), "Queue sink failure should not break the run")
	assert.Equal(t, 1, driver.Stopped())
	goleak.VerifyNoLeaks(t)
}

func TestHandlerDriverFailureAborts(t *testing.T) {
	clock := mock.NewClock()
	driver := mock.NewSink()
	driver.FailOn = 10
	tap := mock.NewSink()
	h, err := output.New(44100, clock.Now(),
		output.WithDriver(driver), output.WithSink(tap), output.WithQueue(4))
	assert.Nil(t, err)

	h.Run()
	err = h.Wait()
	assert.NotNil(t, err, "Driver failure should surface")
	assert.Equal(t, 1, driver.Stopped())
	assert.Equal(t, 1, tap.Stopped())

	err = output.Wait(h.Run())
	assert.True(t, errors.Is(err, synth.ErrInvalidState), "Incorrect error for terminated handler")
	goleak.VerifyNoLeaks(t)
}

func TestHandlerAddSinkLive(t *testing.T) {
	clock := mock.NewClock()
	driver := mock.NewSink()
	h, err := output.New(44100, clock.Now(), output.WithDriver(driver))
	assert.Nil(t, err)

	runc := h.Run()
	waitFor(t, "driver received samples", func() bool { return len(driver.Samples()) >= 10 })

	late := mock.NewSink()
	assert.Nil(t, h.AddSink(late))
	assert.Equal(t, 1, late.Started())
	waitFor(t, "late sink received samples", func() bool { return len(late.Samples()) >= 10 })

	assert.Nil(t, output.Wait(h.Stop()))
	assert.Nil(t, output.Wait(runc))
	assert.Nil(t, h.Wait())
	assert.Equal(t, 1, late.Stopped())

	err = h.AddSink(mock.NewSink())
	assert.True(t, errors.Is(err, synth.ErrInvalidState), "Incorrect error for terminated handler")
	goleak.VerifyNoLeaks(t)
}
