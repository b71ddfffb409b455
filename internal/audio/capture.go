// Package audio delivers mono sample batches from a microphone or a
// synthetic signal over a channel.
package audio

import (
	"errors"
	"math"
)

var (
	ErrAlreadyStarted = errors.New("audio capture already started")
	ErrNotStarted     = errors.New("audio capture not started")
	ErrClosed         = errors.New("audio capture closed")
)

// silenceDB is reported for an all-zero batch.
const silenceDB = -100

// Batch is one block of mono samples. Receivers own Samples.
type Batch struct {
	Samples    []float32
	SampleRate uint32
}

// Source produces batches until it is stopped. Batches is closed by Stop.
type Source interface {
	// Start begins delivering batches
	Start() error

	// Stop ends delivery and closes the batch channel
	Stop() error

	// Batches returns the channel batches arrive on
	Batches() <-chan Batch

	// SampleRate returns the rate every batch carries
	SampleRate() uint32
}

// Level returns the RMS of samples and the same value in dBFS.
func Level(samples []float32) (rms, db float64) {
	if len(samples) == 0 {
		return 0, silenceDB
	}
	var sum float64
	for _, s := range samples {
		v := float64(s)
		sum += v * v
	}
	rms = math.Sqrt(sum / float64(len(samples)))
	if rms < 1e-7 {
		return rms, silenceDB
	}
	return rms, 20 * math.Log10(rms)
}
