// Package buffer holds streamed samples between audio delivery and analysis.
package buffer

import (
	"errors"
	"fmt"
)

// ErrInvalidSize is returned for non-positive capacities and block sizes.
var ErrInvalidSize = errors.New("buffer size must be positive")

// CircularBuffer is a fixed-capacity FIFO of samples. When full, writes
// overwrite the oldest samples. It is not safe for concurrent use.
type CircularBuffer struct {
	data     []float32
	readPos  int
	count    int
	dropped  uint64
	capacity int
}

// NewCircularBuffer allocates a buffer holding capacity samples.
func NewCircularBuffer(capacity int) (*CircularBuffer, error) {
	if capacity <= 0 {
		return nil, fmt.Errorf("%w: capacity %d", ErrInvalidSize, capacity)
	}
	return &CircularBuffer{
		data:     make([]float32, capacity),
		capacity: capacity,
	}, nil
}

// Write appends samples, overwriting the oldest data when the buffer is
// full. Overwritten samples are counted by Dropped.
func (cb *CircularBuffer) Write(samples []float32) {
	if len(samples) >= cb.capacity {
		cb.dropped += uint64(cb.count + len(samples) - cb.capacity)
		copy(cb.data, samples[len(samples)-cb.capacity:])
		cb.readPos = 0
		cb.count = cb.capacity
		return
	}

	writePos := (cb.readPos + cb.count) % cb.capacity
	n := copy(cb.data[writePos:], samples)
	copy(cb.data, samples[n:])

	cb.count += len(samples)
	if overflow := cb.count - cb.capacity; overflow > 0 {
		cb.dropped += uint64(overflow)
		cb.readPos = (cb.readPos + overflow) % cb.capacity
		cb.count = cb.capacity
	}
}

// Read moves up to len(dst) of the oldest samples into dst.
func (cb *CircularBuffer) Read(dst []float32) int {
	n := cb.Peek(dst)
	cb.Discard(n)
	return n
}

// Peek copies up to len(dst) of the oldest samples without consuming them.
func (cb *CircularBuffer) Peek(dst []float32) int {
	n := min(len(dst), cb.count)
	first := copy(dst[:n], cb.data[cb.readPos:])
	copy(dst[first:n], cb.data)
	return n
}

// Discard drops up to n of the oldest samples.
func (cb *CircularBuffer) Discard(n int) {
	n = min(max(n, 0), cb.count)
	cb.readPos = (cb.readPos + n) % cb.capacity
	cb.count -= n
}

// contiguous returns the oldest n samples as a view into the backing array
// when they do not wrap around its end.
func (cb *CircularBuffer) contiguous(n int) ([]float32, bool) {
	if n > cb.count || cb.readPos+n > cb.capacity {
		return nil, false
	}
	return cb.data[cb.readPos : cb.readPos+n], true
}

// Available returns the number of unread samples.
func (cb *CircularBuffer) Available() int {
	return cb.count
}

// Capacity returns the maximum number of samples held.
func (cb *CircularBuffer) Capacity() int {
	return cb.capacity
}

// Dropped returns how many unread samples were overwritten so far.
func (cb *CircularBuffer) Dropped() uint64 {
	return cb.dropped
}

// Clear empties the buffer. The dropped counter is kept.
func (cb *CircularBuffer) Clear() {
	cb.readPos = 0
	cb.count = 0
}
