package output

import "sync/atomic"

// Counter measures the passthrough of one sink.
type Counter struct {
	samples int64
	dropped int64
}

// advance counts one delivered sample.
func (c *Counter) advance() {
	atomic.AddInt64(&c.samples, 1)
}

// drop counts one sample rejected by a full queue.
func (c *Counter) drop() {
	atomic.AddInt64(&c.dropped, 1)
}

// Samples returns the number of delivered samples.
func (c *Counter) Samples() int64 {
	return atomic.LoadInt64(&c.samples)
}

// Dropped returns the number of dropped samples.
func (c *Counter) Dropped() int64 {
	return atomic.LoadInt64(&c.dropped)
}

// Count returns delivered and dropped metrics.
func (c *Counter) Count() (int64, int64) {
	return c.Samples(), c.Dropped()
}

// Reset resets counter's metrics.
func (c *Counter) Reset() {
	atomic.StoreInt64(&c.samples, 0)
	atomic.StoreInt64(&c.dropped, 0)
}
