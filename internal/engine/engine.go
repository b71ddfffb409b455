// Package engine connects an audio source to the analyzer and turns every
// detection into a musical reading.
package engine

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/0xlemi/intonote/internal/analyzer"
	"github.com/0xlemi/intonote/internal/audio"
	"github.com/0xlemi/intonote/internal/buffer"
	"github.com/0xlemi/intonote/internal/config"
	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/pitch"
	"github.com/0xlemi/intonote/internal/spectrum"
	"github.com/0xlemi/intonote/internal/tuning"
)

// Reading is one detection expressed musically.
type Reading struct {
	Pitch    pitch.PitchResult
	Note     tuning.Note              // nearest equal-tempered note
	Interval tuning.IntervalSemitones // relative to the reference note
}

// Event is published once per consumed batch.
type Event struct {
	Readings []Reading // in detection order, possibly empty
	LevelDB  float64
	PeakHz   float64 // strongest spectral peak, zero when disabled or absent
	Err      error   // analysis error of this batch, already logged
	Metrics  analyzer.PerformanceMetrics
}

// Latest returns the last reading of the event.
func (e Event) Latest() (Reading, bool) {
	if len(e.Readings) == 0 {
		return Reading{}, false
	}
	return e.Readings[len(e.Readings)-1], true
}

// Sink receives events on the engine goroutine. It must not retain
// Readings past the call.
type Sink func(Event)

// Optimization selects a window-size adjustment applied at construction.
type Optimization int

const (
	OptimizeNone Optimization = iota
	OptimizeLatency
	OptimizeAccuracy
)

// ParseOptimization parses "none", "latency" or "accuracy".
func ParseOptimization(s string) (Optimization, error) {
	switch s {
	case "", "none":
		return OptimizeNone, nil
	case "latency":
		return OptimizeLatency, nil
	case "accuracy":
		return OptimizeAccuracy, nil
	}
	return OptimizeNone, fmt.Errorf("unknown optimization %q", s)
}

// Option configures an Engine.
type Option func(*Engine)

// WithLogger sets the engine and analyzer logger.
func WithLogger(logger logging.Logger) Option {
	return func(e *Engine) {
		if logger != nil {
			e.logger = logger
		}
	}
}

// WithSpectrum adds the FFT peak readout to every event.
func WithSpectrum() Option {
	return func(e *Engine) { e.spectrum = true }
}

// WithOptimization adjusts the window size once before running.
func WithOptimization(o Optimization) Option {
	return func(e *Engine) { e.optimization = o }
}

// Engine consumes batches from a Source on the goroutine calling Run.
type Engine struct {
	cfg      config.AppConfig
	source   audio.Source
	sink     Sink
	analyzer *analyzer.Guarded
	rootHz   float64

	ring   *buffer.CircularBuffer
	blocks *buffer.BlockExtractor

	spectrum     bool
	optimization Optimization
	logger       logging.Logger

	readings []Reading
}

// New validates cfg and builds the analyzer. The source sample rate must
// match cfg.SampleRate.
func New(cfg config.AppConfig, source audio.Source, sink Sink, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if source.SampleRate() != cfg.SampleRate {
		return nil, fmt.Errorf("%w: source rate %d Hz, configured %d Hz", config.ErrInvalid, source.SampleRate(), cfg.SampleRate)
	}

	e := &Engine{
		cfg:    cfg,
		source: source,
		sink:   sink,
		rootHz: cfg.ReferenceHz(),
		logger: logging.Global(),
	}
	for _, opt := range opts {
		if opt != nil {
			opt(e)
		}
	}
	e.logger = e.logger.WithFields(logging.Fields{"component": "engine"})

	a, err := analyzer.New(cfg.Detector, cfg.SampleRate, analyzer.WithLogger(e.logger))
	if err != nil {
		return nil, err
	}
	if err := e.optimize(a); err != nil {
		return nil, err
	}

	if cfg.IngestMode == config.IngestContinuous {
		e.ring, err = buffer.NewCircularBuffer(max(cfg.BufferCapacity, a.WindowSize()))
		if err != nil {
			return nil, err
		}
		e.blocks, err = buffer.NewBlockExtractor(e.ring, a.WindowSize(), cfg.BlockWindow)
		if err != nil {
			return nil, err
		}
	}

	e.analyzer = analyzer.NewGuarded(a)
	return e, nil
}

func (e *Engine) optimize(a *analyzer.Analyzer) error {
	var (
		changed bool
		err     error
	)
	switch e.optimization {
	case OptimizeLatency:
		changed, err = a.OptimizeForLatency(e.cfg.LatencyTargetMs)
	case OptimizeAccuracy:
		changed, err = a.OptimizeForAccuracy()
	default:
		return nil
	}
	if err != nil {
		return fmt.Errorf("optimize window: %w", err)
	}
	if changed {
		e.logger.Info("window size adjusted", logging.Fields{"window": a.WindowSize()})
	}
	return nil
}

// Analyzer returns the shared analyzer for polling metrics or the latest
// detection from other goroutines.
func (e *Engine) Analyzer() *analyzer.Guarded {
	return e.analyzer
}

// RootHz returns the reference frequency intervals are measured against.
func (e *Engine) RootHz() float64 {
	return e.rootHz
}

// Run starts the source and processes batches until the source closes its
// channel or ctx is done. Cancellation is checked between batches. A source
// that fails to start is closed when it implements io.Closer.
func (e *Engine) Run(ctx context.Context) error {
	if err := e.source.Start(); err != nil {
		if c, ok := e.source.(io.Closer); ok {
			if cerr := c.Close(); cerr != nil {
				e.logger.Error(cerr, "close source")
			}
		}
		return fmt.Errorf("start source: %w", err)
	}
	defer func() {
		if err := e.source.Stop(); err != nil && !errors.Is(err, audio.ErrNotStarted) {
			e.logger.Error(err, "stop source")
		}
	}()

	e.logger.Info("engine started", logging.Fields{
		"mode":   e.cfg.IngestMode.String(),
		"root":   tuning.NoteName(e.cfg.ReferenceMIDI),
		"system": e.cfg.TuningSystem.String(),
		"scale":  e.cfg.Scale.String(),
	})

	batches := e.source.Batches()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case batch, ok := <-batches:
			if !ok {
				e.logger.Info("source closed")
				return nil
			}
			event := e.Process(batch)
			if e.sink != nil {
				e.sink(event)
			}
		}
	}
}

// Process analyzes one batch in the configured ingest mode. Run calls it
// for every batch; it is exported for synchronous callers.
func (e *Engine) Process(batch audio.Batch) Event {
	event := Event{}
	_, event.LevelDB = audio.Level(batch.Samples)

	err := e.analyzer.Do(func(a *analyzer.Analyzer) error {
		var (
			results []pitch.PitchResult
			err     error
		)
		switch e.cfg.IngestMode {
		case config.IngestOverlap:
			results, err = a.AnalyzeBatchWithOverlap(batch.Samples, e.cfg.OverlapFactor)
		case config.IngestContinuous:
			e.ring.Write(batch.Samples)
			results, err = a.ProcessContinuousFromBuffer(e.blocks)
		default:
			results, err = a.AnalyzeBatchDirect(batch.Samples)
		}
		// results is reused by the analyzer, convert before unlocking
		e.readings = e.readings[:0]
		for _, r := range results {
			e.readings = append(e.readings, e.reading(r))
		}
		event.Metrics = a.Metrics()
		return err
	})
	if err != nil {
		e.logger.Error(err, "analyze batch", logging.Fields{"samples": len(batch.Samples)})
		event.Err = err
	}
	event.Readings = e.readings

	if e.spectrum {
		detector := e.cfg.Detector
		if peak, ok := spectrum.PeakFrequency(batch.Samples, batch.SampleRate, detector.MinFrequency, detector.MaxFrequency); ok {
			event.PeakHz = peak.Frequency
		}
	}
	return event
}

func (e *Engine) reading(r pitch.PitchResult) Reading {
	freq := float64(r.Frequency)
	return Reading{
		Pitch:    r,
		Note:     tuning.FrequencyToNote(freq),
		Interval: tuning.FrequencyToIntervalSemitonesScaleAware(e.cfg.TuningSystem, e.rootHz, freq, e.cfg.Scale),
	}
}
