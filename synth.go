// Package synth provides a real-time modular audio synthesis engine built
// around a pull-based signal graph, time-aware parameter automation and a
// concurrent output delivery layer.
package synth

import (
	"sync"
	"time"

	"github.com/rs/xid"
)

type (
	// SampleRate represents a number of samples per second.
	SampleRate int

	// BufferSize represents a number of samples per delivery batch.
	BufferSize int

	// Clock returns the current engine time in nanoseconds.
	Clock func() int64
)

// DefaultSampleRate is used when the host does not provide one.
const DefaultSampleRate = SampleRate(44100)

// DefaultBufferSize is used when the host does not provide one.
const DefaultBufferSize = BufferSize(512)

// DurationOf returns the time it takes to play the provided number of samples.
func (rate SampleRate) DurationOf(samples int) time.Duration {
	return time.Duration(float64(samples) / float64(rate) * float64(time.Second))
}

// SamplesIn returns the number of samples played during the provided duration.
func (rate SampleRate) SamplesIn(d time.Duration) int {
	return int(float64(rate) * d.Seconds())
}

// NanoClock returns a monotonic clock anchored at the moment of the call.
// All automation timestamps, command times and scheduling horizons are
// nanoseconds of a single clock shared through the engine context.
func NanoClock() Clock {
	start := time.Now()
	return func() int64 {
		return int64(time.Since(start))
	}
}

// UID is a string unique identifier.
type UID struct {
	value string
}

// NewUID returns a new unique identifier.
func NewUID() UID {
	return UID{value: xid.New().String()}
}

// ID returns the string value of the identifier.
func (u UID) ID() string {
	return u.value
}

// SingleUse is designed to be used in Start functions and prevents
// single-use components from being reused.
func SingleUse(once *sync.Once) error {
	err := ErrSingleUseReused
	once.Do(func() {
		err = nil
	})
	return err
}

// Clamp limits v to the [min, max] interval.
func Clamp(v, min, max float64) float64 {
	if v < min {
		return min
	}
	if v > max {
		return max
	}
	return v
}
