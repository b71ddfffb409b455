// Package analyzer drives a pitch detector over incoming sample batches and
// keeps performance statistics about it.
package analyzer

import (
	"fmt"
	"time"
	"unsafe"

	"github.com/0xlemi/intonote/internal/buffer"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/pitch"
)

// Overlap bounds for AnalyzeBatchWithOverlap.
const (
	MinOverlap = 0.0
	MaxOverlap = 0.9
)

// Option configures an Analyzer.
type Option func(*Analyzer)

// WithLogger sets the logger for reconfiguration and latency warnings.
func WithLogger(logger logging.Logger) Option {
	return func(a *Analyzer) {
		if logger != nil {
			a.logger = logger
		}
	}
}

// WithDetectorOptions forwards options to the owned detector.
func WithDetectorOptions(opts ...pitch.Option) Option {
	return func(a *Analyzer) {
		a.detectorOpts = append(a.detectorOpts, opts...)
	}
}

// Analyzer owns one detector and one pre-allocated analysis window. Every
// Analyze call copies into that window, so the steady-state path does not
// allocate; only reconfiguration does.
//
// An Analyzer is not safe for concurrent use. Share it through Guarded.
type Analyzer struct {
	detector     *pitch.Detector
	detectorOpts []pitch.Option
	window       []float32
	results      []pitch.PitchResult

	enabled bool
	last    pitch.PitchResult
	hasLast bool

	metrics PerformanceMetrics
	logger  logging.Logger
	now     func() time.Time
}

// New creates an analyzer with a detector for config at sampleRate.
func New(config pitch.Config, sampleRate uint32, opts ...Option) (*Analyzer, error) {
	a := &Analyzer{
		enabled: true,
		logger:  logging.NoOpLogger{},
		now:     time.Now,
	}
	for _, opt := range opts {
		if opt != nil {
			opt(a)
		}
	}

	detector, err := pitch.New(config, sampleRate, a.detectorOpts...)
	if err != nil {
		return nil, fmt.Errorf("create detector: %w", err)
	}
	a.detector = detector
	a.window = make([]float32, config.WindowSize)
	a.results = make([]pitch.PitchResult, 0, 8)
	a.metrics.MemoryUsageBytes = a.memoryUsage()
	return a, nil
}

// WindowSize returns the number of samples analyzed per detection.
func (a *Analyzer) WindowSize() int {
	return len(a.window)
}

// Config returns the detector configuration.
func (a *Analyzer) Config() pitch.Config {
	return a.detector.Config()
}

// SampleRate returns the detector sample rate.
func (a *Analyzer) SampleRate() uint32 {
	return a.detector.SampleRate()
}

// SetEnabled turns detection on or off. While disabled every Analyze call
// reports no pitch and counts as a failed cycle.
func (a *Analyzer) SetEnabled(enabled bool) {
	a.enabled = enabled
}

// Enabled reports whether detection is on.
func (a *Analyzer) Enabled() bool {
	return a.enabled
}

// AnalyzeSamples runs one detection on exactly WindowSize samples. ok
// reports whether a pitch was found.
//
// Errors (wrong sample count, estimator failure) and a missing pitch both
// count as failed cycles, but only errors are returned as errors.
func (a *Analyzer) AnalyzeSamples(samples []float32) (result pitch.PitchResult, ok bool, err error) {
	start := a.now()

	if !a.enabled {
		a.finish(start, 0, pitch.PitchResult{}, false)
		return pitch.PitchResult{}, false, nil
	}
	if len(samples) != len(a.window) {
		a.finish(start, 0, pitch.PitchResult{}, false)
		return pitch.PitchResult{}, false, fmt.Errorf("%w: got %d samples, want %d", pitch.ErrShapeMismatch, len(samples), len(a.window))
	}

	copy(a.window, samples)
	detectStart := a.now()
	result, ok, err = a.detector.Analyze(a.window)
	detection := a.now().Sub(detectStart)

	if err != nil {
		a.finish(start, detection, pitch.PitchResult{}, false)
		return pitch.PitchResult{}, false, fmt.Errorf("analyze samples: %w", err)
	}
	a.finish(start, detection, result, ok)
	return result, ok, nil
}

// finish updates the latest detection and folds the cycle into the metrics.
func (a *Analyzer) finish(start time.Time, detection time.Duration, result pitch.PitchResult, ok bool) {
	a.last, a.hasLast = result, ok

	latency := a.now().Sub(start)
	if a.metrics.record(latency, detection, ok) {
		a.logger.Warn("analysis cycle exceeded latency budget", logging.Fields{
			"latency_ms": float64(latency.Microseconds()) / 1e3,
			"budget_ms":  LatencyBudgetMs,
			"violations": a.metrics.LatencyViolations,
		})
	}
	a.metrics.MemoryUsageBytes = a.memoryUsage()
}

// AnalyzeFromBuffer analyzes the next complete block of the extractor. It
// reports no pitch without counting a cycle when no block is available.
func (a *Analyzer) AnalyzeFromBuffer(blocks *buffer.BlockExtractor) (pitch.PitchResult, bool, error) {
	block, ok := blocks.Next()
	if !ok {
		return pitch.PitchResult{}, false, nil
	}
	return a.AnalyzeSamples(block)
}

// ProcessContinuousFromBuffer analyzes blocks until the extractor runs dry
// and returns the detections in order. It stops at the first error. The
// returned slice is reused by the next batch call.
func (a *Analyzer) ProcessContinuousFromBuffer(blocks *buffer.BlockExtractor) ([]pitch.PitchResult, error) {
	a.results = a.results[:0]
	for {
		block, ok := blocks.Next()
		if !ok {
			return a.results, nil
		}
		if err := a.collect(block); err != nil {
			return a.results, err
		}
	}
}

// AnalyzeBatchDirect splits batch into consecutive non-overlapping windows
// and analyzes each. Samples after the last complete window are ignored.
// It stops at the first error. The returned slice is reused by the next
// batch call.
func (a *Analyzer) AnalyzeBatchDirect(batch []float32) ([]pitch.PitchResult, error) {
	a.results = a.results[:0]
	size := len(a.window)
	for start := 0; start+size <= len(batch); start += size {
		if err := a.collect(batch[start : start+size]); err != nil {
			return a.results, err
		}
	}
	return a.results, nil
}

// AnalyzeBatchWithOverlap analyzes windows advancing by
// WindowSize*(1-overlap) samples. overlap is clamped to [0, 0.9]. It stops
// at the first error. The returned slice is reused by the next batch call.
func (a *Analyzer) AnalyzeBatchWithOverlap(batch []float32, overlap float64) ([]pitch.PitchResult, error) {
	a.results = a.results[:0]
	size := len(a.window)
	step := max(int(float64(size)*(1-clampOverlap(overlap))), 1)
	for start := 0; start+size <= len(batch); start += step {
		if err := a.collect(batch[start : start+size]); err != nil {
			return a.results, err
		}
	}
	return a.results, nil
}

func clampOverlap(overlap float64) float64 {
	if overlap != overlap { // NaN
		return MinOverlap
	}
	return min(max(overlap, MinOverlap), MaxOverlap)
}

func (a *Analyzer) collect(window []float32) error {
	result, ok, err := a.AnalyzeSamples(window)
	if err != nil {
		return err
	}
	if ok {
		a.results = append(a.results, result)
	}
	return nil
}

// LatestPitchData returns the most recent detection, if the last cycle
// produced one.
func (a *Analyzer) LatestPitchData() (pitch.PitchResult, bool) {
	return a.last, a.hasLast
}

// Metrics returns a snapshot of the performance statistics.
func (a *Analyzer) Metrics() PerformanceMetrics {
	return a.metrics
}

// ResetMetrics clears all statistics.
func (a *Analyzer) ResetMetrics() {
	a.metrics = PerformanceMetrics{MemoryUsageBytes: a.memoryUsage()}
}

// memoryUsage approximates the bytes held by the analyzer and its detector.
func (a *Analyzer) memoryUsage() int {
	return cap(a.window)*int(unsafe.Sizeof(float32(0))) +
		cap(a.results)*int(unsafe.Sizeof(pitch.PitchResult{})) +
		a.detector.MemoryUsageBytes() +
		int(unsafe.Sizeof(*a))
}
