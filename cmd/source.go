package main

import (
	"fmt"
	"io"

	"github.com/0xlemi/intonote/internal/audio"
	"github.com/0xlemi/intonote/internal/engine"
	"github.com/0xlemi/intonote/internal/logging"
)

// portAudioQueue is the number of batches buffered between the device
// callback and the engine.
const portAudioQueue = 8

// sourceFlags selects where samples come from, together with
// cfg.TestSignalHz and cfg.Amplification.
type sourceFlags struct {
	file     string
	optimize string
	spectrum bool
}

// open builds the source and aligns cfg.SampleRate with it. limit caps the
// number of synthetic batches; zero is unlimited.
func (s sourceFlags) open(paced bool, limit int, logger logging.Logger) (audio.Source, string, error) {
	var opts []audio.StreamOption
	if paced {
		opts = append(opts, audio.WithPacing())
	}
	if limit > 0 {
		opts = append(opts, audio.WithBatchLimit(limit))
	}
	opts = append(opts, audio.WithSignalLogger(logger))

	switch {
	case s.file != "":
		src, err := audio.NewFileSource(s.file, cfg.BatchSize, opts...)
		if err != nil {
			return nil, "", err
		}
		cfg.SampleRate = src.SampleRate()
		return src, "file " + s.file, nil

	case cfg.TestSignalHz > 0:
		sig := audio.NewTestSignal(cfg.TestSignalHz, cfg.SampleRate, cfg.BatchSize, opts...)
		return sig, fmt.Sprintf("test %.2f Hz", sig.Frequency()), nil

	default:
		mic, err := audio.NewPortAudioSource(cfg.BatchSize, cfg.SampleRate, 1, portAudioQueue)
		if err != nil {
			return nil, "", err
		}
		mic.SetAmplification(cfg.Amplification)
		return mic, "microphone", nil
	}
}

func (s sourceFlags) engineOptions(logger logging.Logger) ([]engine.Option, error) {
	opt, err := engine.ParseOptimization(s.optimize)
	if err != nil {
		return nil, err
	}
	opts := []engine.Option{engine.WithLogger(logger), engine.WithOptimization(opt)}
	if s.spectrum {
		opts = append(opts, engine.WithSpectrum())
	}
	return opts, nil
}

// release frees a source that was opened but will not be run. Sources that
// hold no resources before Start have nothing to release.
func release(source audio.Source, logger logging.Logger) {
	if c, ok := source.(io.Closer); ok {
		if err := c.Close(); err != nil {
			logger.Error(err, "release audio source")
		}
	}
}
