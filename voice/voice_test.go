package voice_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"go.uber.org/goleak"

	"github.com/dudk/synth"
	"github.com/dudk/synth/mock"
	"github.com/dudk/synth/node"
	"github.com/dudk/synth/voice"
)

// gate is a chain whose drain completes only when opened.
type gate struct {
	node.Base
	open int32
}

func newGate(ctx *node.Context) *gate {
	return &gate{Base: node.NewBase(ctx)}
}

func (g *gate) NextSample() float64 {
	return 0
}

func (g *gate) IsDone() bool {
	return atomic.LoadInt32(&g.open) == 1
}

func (g *gate) finish() {
	atomic.StoreInt32(&g.open, 1)
}

func (g *gate) Clone(ctx *node.Context) node.Node {
	return newGate(ctx)
}

func waitState(t *testing.T, v *voice.Voice, want voice.State) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if v.State() == want {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("voice never reached %v, stuck in %v", want, v.State())
}

func TestVoiceLifecycle(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.5), master)

	assert.Equal(t, voice.Unregistered, v.State())
	assert.Equal(t, 0, master.Len())

	err := v.Start()
	assert.Nil(t, err)
	assert.Equal(t, voice.Active, v.State())
	assert.Equal(t, 1, master.Len())
	assert.Equal(t, 0.5, master.NextSample())

	err = v.Start()
	assert.True(t, errors.Is(err, synth.ErrInvalidState), "Incorrect error for double start")

	v.SetVelocity(0.5)
	assert.Equal(t, 0.25, master.NextSample())

	v.Stop()
	v.Join()
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())

	v.Stop()
	assert.Equal(t, voice.Terminated, v.State())

	err = v.Start()
	assert.Nil(t, err)
	assert.Equal(t, voice.Active, v.State())
	assert.Equal(t, 1, master.Len())
	v.Stop()
	v.Join()

	goleak.VerifyNoLeaks(t)
}

func TestVoiceStopWhileReleasing(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	chain := newGate(ctx)
	v := voice.New(chain, master)

	assert.Nil(t, v.Start())
	v.Stop()
	assert.Equal(t, voice.Releasing, v.State())
	assert.Equal(t, 1, master.Len(), "Releasing voice should stay registered")

	v.Stop()
	assert.Equal(t, voice.Releasing, v.State())

	chain.finish()
	v.Join()
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceHardStop(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(newGate(ctx), master)

	assert.Nil(t, v.Start())
	v.HardStop()
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())
	v.Join()

	v.HardStop()
	assert.Equal(t, voice.Terminated, v.State())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceDrainTimeout(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(newGate(ctx), master, voice.WithDrainTimeout(20*time.Millisecond))

	assert.Nil(t, v.Start())
	v.Stop()
	v.Join()
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceWindowCycle(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.5), master)

	ms := int64(time.Millisecond)
	v.ScheduleWindow(20*ms, 60*ms)
	v.ScheduleWindow(100*ms, 140*ms)
	assert.Equal(t, voice.Scheduled, v.State())

	waitState(t, v, voice.Active)
	assert.Equal(t, 1, master.Len())

	waitState(t, v, voice.Scheduled)
	assert.Equal(t, 0, master.Len(), "Voice should deregister between windows")

	waitState(t, v, voice.Active)
	waitState(t, v, voice.Terminated)
	v.Join()
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceIndefiniteWindow(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.5), master)

	v.ScheduleWindow(0, -1)
	assert.Equal(t, voice.Active, v.State())

	v.Stop()
	v.Join()
	assert.Equal(t, voice.Terminated, v.State())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceStopCancelsWindows(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.5), master)

	ms := int64(time.Millisecond)
	v.ScheduleWindow(500*ms, 600*ms)
	assert.Equal(t, voice.Scheduled, v.State())

	v.Stop()
	assert.Equal(t, voice.Terminated, v.State())
	v.Join()

	time.Sleep(10 * time.Millisecond)
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceSampleBudget(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.5), master)

	v.LimitSamples(3)
	assert.Nil(t, v.Start())
	for i := 0; i < 3; i++ {
		assert.Equal(t, 0.5, master.NextSample())
	}
	v.Join()
	assert.Equal(t, voice.Terminated, v.State())
	assert.Equal(t, 0, master.Len())

	goleak.VerifyNoLeaks(t)
}

func TestVoiceClone(t *testing.T) {
	master := node.NewMixer()
	clock := mock.NewClock()
	ctx := node.NewContext(44100, 440, clock.Now())
	v := voice.New(mock.NewSource(ctx, 0.7), master)
	v.SetVelocity(0.3)

	cloneCtx := node.NewContext(44100, 880, clock.Now())
	clone := v.Clone(cloneCtx)
	assert.Equal(t, voice.Unregistered, clone.State())
	assert.NotEqual(t, v.ID(), clone.ID())
	assert.Equal(t, 1.0, clone.Velocity())

	assert.Nil(t, clone.Start())
	assert.Equal(t, 0.7, master.NextSample())
	clone.Stop()
	clone.Join()

	goleak.VerifyNoLeaks(t)
}
