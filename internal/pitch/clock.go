package pitch

import "time"

// Clock supplies detection timestamps in milliseconds.
type Clock interface {
	NowMs() float64
}

// MonotonicClock measures milliseconds since its creation on the monotonic
// clock, so timestamps never go backwards when the wall clock is adjusted.
type MonotonicClock struct {
	origin time.Time
}

// NewMonotonicClock returns a clock starting at zero.
func NewMonotonicClock() *MonotonicClock {
	return &MonotonicClock{origin: time.Now()}
}

// NowMs returns the elapsed time in milliseconds.
func (c *MonotonicClock) NowMs() float64 {
	return float64(time.Since(c.origin).Nanoseconds()) / 1e6
}

// processClock is shared by detectors created without an explicit clock, so
// their timestamps are comparable.
var processClock = NewMonotonicClock()
