package audio

import (
	"errors"
	"fmt"
	"math"
	"sync"
	"sync/atomic"

	"github.com/gordonklaus/portaudio"
)

// minAmplification keeps the input from being muted entirely.
const minAmplification = 0.1

// inputStream is the part of *portaudio.Stream that Stop needs.
type inputStream interface {
	Stop() error
	Close() error
}

// PortAudioSource captures the default input device. Multi-channel input is
// averaged to mono and scaled by the amplification factor.
//
// The stream callback never blocks: when the consumer falls behind, the
// batch is dropped and counted.
//
// PortAudio stays initialized from NewPortAudioSource until Stop or Close.
type PortAudioSource struct {
	mu            sync.Mutex
	stream        inputStream
	batches       chan Batch
	capturing     bool
	released      bool
	terminate     func() error
	batchSize     int
	sampleRate    uint32
	channels      int
	amplification atomic.Uint32 // float32 bits
	dropped       atomic.Uint64
}

// NewPortAudioSource initializes PortAudio. queue is the number of batches
// buffered between the callback and the consumer.
func NewPortAudioSource(batchSize int, sampleRate uint32, channels, queue int) (*PortAudioSource, error) {
	if batchSize <= 0 || channels <= 0 || sampleRate == 0 {
		return nil, fmt.Errorf("invalid stream shape: batch %d, channels %d, rate %d", batchSize, channels, sampleRate)
	}
	if err := portaudio.Initialize(); err != nil {
		return nil, fmt.Errorf("initialize portaudio: %w", err)
	}
	s := &PortAudioSource{
		batches:    make(chan Batch, max(queue, 1)),
		batchSize:  batchSize,
		sampleRate: sampleRate,
		channels:   channels,
		terminate:  portaudio.Terminate,
	}
	s.SetAmplification(1)
	return s, nil
}

// Start opens the default input stream.
func (s *PortAudioSource) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing {
		return ErrAlreadyStarted
	}
	if s.released {
		return ErrClosed
	}

	stream, err := portaudio.OpenDefaultStream(
		s.channels, // input channels
		0,          // no output
		float64(s.sampleRate),
		s.batchSize, // frames per buffer
		s.process,
	)
	if err != nil {
		return fmt.Errorf("open input stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		return fmt.Errorf("start input stream: %w", err)
	}

	s.stream = stream
	s.capturing = true
	return nil
}

// Stop closes the stream, terminates PortAudio and closes Batches. Every
// step runs even when an earlier one fails; the failures are joined.
func (s *PortAudioSource) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.capturing {
		return ErrNotStarted
	}
	return s.stopLocked()
}

// Close releases PortAudio whether or not the source was started, stopping
// a running stream first. It is a no-op once the source is released.
func (s *PortAudioSource) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.capturing {
		return s.stopLocked()
	}
	return s.release()
}

func (s *PortAudioSource) stopLocked() error {
	s.capturing = false

	var errs []error
	if err := s.stream.Stop(); err != nil {
		errs = append(errs, fmt.Errorf("stop input stream: %w", err))
	}
	if err := s.stream.Close(); err != nil {
		errs = append(errs, fmt.Errorf("close input stream: %w", err))
	}
	close(s.batches)
	errs = append(errs, s.release())
	return errors.Join(errs...)
}

// release terminates PortAudio once. mu must be held.
func (s *PortAudioSource) release() error {
	if s.released {
		return nil
	}
	s.released = true
	if err := s.terminate(); err != nil {
		return fmt.Errorf("terminate portaudio: %w", err)
	}
	return nil
}

// process runs on the PortAudio callback thread and must not take mu:
// Stop holds it while waiting for the callback to return.
func (s *PortAudioSource) process(in []float32) {
	gain := math.Float32frombits(s.amplification.Load())

	mono := make([]float32, len(in)/s.channels)
	for i := range mono {
		var sum float32
		for ch := 0; ch < s.channels; ch++ {
			sum += in[i*s.channels+ch]
		}
		mono[i] = sum / float32(s.channels) * gain
	}

	select {
	case s.batches <- Batch{Samples: mono, SampleRate: s.sampleRate}:
	default:
		s.dropped.Add(1)
	}
}

// Batches returns the channel captured batches arrive on.
func (s *PortAudioSource) Batches() <-chan Batch {
	return s.batches
}

// SampleRate returns the stream sample rate.
func (s *PortAudioSource) SampleRate() uint32 {
	return s.sampleRate
}

// Dropped returns how many batches were discarded because the consumer was
// not keeping up.
func (s *PortAudioSource) Dropped() uint64 {
	return s.dropped.Load()
}

// SetAmplification sets the input gain, floored at 0.1.
func (s *PortAudioSource) SetAmplification(factor float32) {
	s.amplification.Store(math.Float32bits(max(factor, minAmplification)))
}
