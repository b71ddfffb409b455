// Package config holds the application settings shared by the commands.
package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/0xlemi/intonote/internal/buffer"
	"github.com/0xlemi/intonote/internal/pitch"
	"github.com/0xlemi/intonote/internal/tuning"
)

var ErrInvalid = errors.New("invalid configuration")

// IngestMode selects how batches are fed to the analyzer.
type IngestMode int

const (
	// IngestDirect splits each batch into non-overlapping windows.
	IngestDirect IngestMode = iota
	// IngestOverlap advances by a fraction of the window.
	IngestOverlap
	// IngestContinuous stages batches in a circular buffer and analyzes
	// complete blocks, carrying samples across batches.
	IngestContinuous
)

func (m IngestMode) String() string {
	switch m {
	case IngestDirect:
		return "direct"
	case IngestOverlap:
		return "overlap"
	case IngestContinuous:
		return "continuous"
	default:
		return fmt.Sprintf("IngestMode(%d)", int(m))
	}
}

// ParseIngestMode parses "direct", "overlap" or "continuous".
func ParseIngestMode(s string) (IngestMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "direct":
		return IngestDirect, nil
	case "overlap":
		return IngestOverlap, nil
	case "continuous":
		return IngestContinuous, nil
	}
	return IngestDirect, fmt.Errorf("%w: unknown ingest mode %q", ErrInvalid, s)
}

// AppConfig is everything a command needs to build the pipeline.
type AppConfig struct {
	SampleRate uint32
	BatchSize  int // samples per delivered batch
	Detector   pitch.Config

	ReferenceMIDI int
	TuningSystem  tuning.TuningSystem
	Scale         tuning.Scale

	IngestMode     IngestMode
	OverlapFactor  float64
	BufferCapacity int // samples, continuous mode only
	BlockWindow    buffer.WindowFunction

	LatencyTargetMs float64
	TestSignalHz    float64 // zero selects the microphone
	Amplification   float32
}

// Default returns the settings used when no flags are given.
func Default() AppConfig {
	detector := pitch.DefaultConfig()
	return AppConfig{
		SampleRate:      48000,
		BatchSize:       1024,
		Detector:        detector,
		ReferenceMIDI:   57, // A3
		TuningSystem:    tuning.EqualTemperament,
		Scale:           tuning.Chromatic,
		IngestMode:      IngestDirect,
		OverlapFactor:   0.5,
		BufferCapacity:  8 * detector.WindowSize,
		BlockWindow:     buffer.WindowNone,
		LatencyTargetMs: 50,
		Amplification:   1,
	}
}

// ReferenceHz returns the equal-tempered frequency of the reference note.
func (c AppConfig) ReferenceHz() float64 {
	return tuning.MIDIToFrequency(c.ReferenceMIDI)
}

// Validate checks every field, including the detector configuration.
func (c AppConfig) Validate() error {
	if err := c.Detector.Validate(c.SampleRate); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("%w: batch size %d must be positive", ErrInvalid, c.BatchSize)
	}
	if !tuning.ValidMIDI(c.ReferenceMIDI) {
		return fmt.Errorf("%w: reference note %d outside MIDI range 0..127", ErrInvalid, c.ReferenceMIDI)
	}
	if c.OverlapFactor < 0 || c.OverlapFactor > 0.9 {
		return fmt.Errorf("%w: overlap factor %v must be between 0 and 0.9", ErrInvalid, c.OverlapFactor)
	}
	if c.IngestMode == IngestContinuous && c.BufferCapacity < c.Detector.WindowSize {
		return fmt.Errorf("%w: buffer capacity %d smaller than window %d", ErrInvalid, c.BufferCapacity, c.Detector.WindowSize)
	}
	if c.LatencyTargetMs <= 0 {
		return fmt.Errorf("%w: latency target %v ms must be positive", ErrInvalid, c.LatencyTargetMs)
	}
	if c.TestSignalHz < 0 {
		return fmt.Errorf("%w: test signal frequency %v must not be negative", ErrInvalid, c.TestSignalHz)
	}
	if c.Amplification <= 0 {
		return fmt.Errorf("%w: amplification %v must be positive", ErrInvalid, c.Amplification)
	}
	return nil
}
