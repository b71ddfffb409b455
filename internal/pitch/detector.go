// Package pitch estimates the fundamental frequency of a fixed-size window of
// mono samples.
//
// The estimator is the McLeod Pitch Method. Clarity is the value of the
// normalized square difference function at the chosen peak: it lies in
// [0, 1] and higher means a more periodic, more trustworthy pitch.
package pitch

import (
	"fmt"
	"unsafe"
)

// PitchResult is one accepted detection.
type PitchResult struct {
	Frequency float32 // Hz
	Clarity   float32 // 0..1, higher is better
	Timestamp float64 // monotonic milliseconds
}

// Option configures a Detector.
type Option func(*Detector)

// WithClock replaces the timestamp source.
func WithClock(clock Clock) Option {
	return func(d *Detector) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// Detector wraps one McLeod estimator with configuration validation and a
// frequency-range filter. It is not safe for concurrent use.
//
// The searched lags cover one and a half periods of MinFrequency, within
// half to seven eighths of the window. Lower frequencies are not detected.
type Detector struct {
	config     Config
	sampleRate uint32
	algo       *mcleod
	clock      Clock
}

// New validates config and allocates the estimator, including its FFT plan.
func New(config Config, sampleRate uint32, opts ...Option) (*Detector, error) {
	if err := config.Validate(sampleRate); err != nil {
		return nil, err
	}
	d := &Detector{
		config:     config,
		sampleRate: sampleRate,
		algo:       newEstimator(config, sampleRate),
		clock:      processClock,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(d)
		}
	}
	return d, nil
}

// Config returns the active configuration.
func (d *Detector) Config() Config {
	return d.config
}

// SampleRate returns the sample rate the detector was created for.
func (d *Detector) SampleRate() uint32 {
	return d.sampleRate
}

// Analyze runs detection on exactly one window of samples. The result is
// returned by value so that detection does not allocate.
//
// ok is false with a nil error when there is no usable pitch: the window is
// too quiet, not clear enough, or the pitch lies outside the configured range.
func (d *Detector) Analyze(samples []float32) (result PitchResult, ok bool, err error) {
	if len(samples) != d.config.WindowSize {
		return PitchResult{}, false, fmt.Errorf("%w: got %d samples, want %d", ErrShapeMismatch, len(samples), d.config.WindowSize)
	}

	freq, clarity, ok, err := d.algo.estimate(samples, float64(d.sampleRate), d.config.PowerThreshold, d.config.ClarityThreshold)
	if err != nil {
		return PitchResult{}, false, err
	}
	if !ok || freq < d.config.MinFrequency || freq > d.config.MaxFrequency {
		return PitchResult{}, false, nil
	}

	return PitchResult{
		Frequency: float32(freq),
		Clarity:   float32(clarity),
		Timestamp: d.clock.NowMs(),
	}, true, nil
}

// UpdateConfig validates and applies config as a whole. A change of window
// size, padding or lag range rebuilds the estimator, which allocates; do not
// call it per frame.
func (d *Detector) UpdateConfig(config Config) error {
	if err := config.Validate(d.sampleRate); err != nil {
		return err
	}
	if config.WindowSize != d.config.WindowSize || config.PaddingSize != d.config.PaddingSize ||
		lagRange(config.WindowSize, float64(d.sampleRate), config.MinFrequency) != d.algo.maxLag {
		d.algo = newEstimator(config, d.sampleRate)
	}
	d.config = config
	return nil
}

// MemoryUsageBytes estimates the memory held by the detector.
func (d *Detector) MemoryUsageBytes() int {
	return int(unsafe.Sizeof(*d)) + int(unsafe.Sizeof(*d.algo)) + d.algo.memoryBytes()
}

func newEstimator(config Config, sampleRate uint32) *mcleod {
	maxLag := lagRange(config.WindowSize, float64(sampleRate), config.MinFrequency)
	return newMcleod(config.WindowSize, config.PaddingSize, maxLag)
}
