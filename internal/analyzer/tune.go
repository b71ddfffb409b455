package analyzer

import (
	"fmt"

	"github.com/0xlemi/intonote/internal/logging"
	"github.com/0xlemi/intonote/internal/pitch"
)

// UpdateConfig replaces the detector configuration and resizes the analysis
// window to match. Nothing changes when validation fails.
func (a *Analyzer) UpdateConfig(config pitch.Config) error {
	previous := a.detector.Config()
	if err := a.detector.UpdateConfig(config); err != nil {
		return fmt.Errorf("update config: %w", err)
	}
	a.resizeWindow(config.WindowSize)
	a.metrics.MemoryUsageBytes = a.memoryUsage()

	a.logger.Debug("analyzer reconfigured", logging.Fields{
		"window_from":  previous.WindowSize,
		"window_to":    config.WindowSize,
		"padding_from": previous.PaddingSize,
		"padding_to":   config.PaddingSize,
	})
	return nil
}

// OptimizeForLatency switches to the detector's advised window size for
// targetLatencyMs. It reports whether the configuration changed.
func (a *Analyzer) OptimizeForLatency(targetLatencyMs float64) (bool, error) {
	return a.applyWindowSize(a.detector.OptimalWindowSizeForLatency(targetLatencyMs))
}

// OptimizeForAccuracy switches to a window covering a few periods of the
// minimum frequency. It reports whether the configuration changed.
func (a *Analyzer) OptimizeForAccuracy() (bool, error) {
	return a.applyWindowSize(a.detector.AccuracyOptimizedWindowSize())
}

// applyWindowSize keeps the padding at the same fraction of the window.
func (a *Analyzer) applyWindowSize(size int) (bool, error) {
	config := a.detector.Config()
	if size == config.WindowSize {
		return false, nil
	}
	config.PaddingSize = config.PaddingSize * size / config.WindowSize
	config.WindowSize = size
	if err := a.UpdateConfig(config); err != nil {
		return false, err
	}
	return true, nil
}

// resizeWindow reallocates only when growing past the current capacity.
func (a *Analyzer) resizeWindow(size int) {
	if size <= cap(a.window) {
		a.window = a.window[:size]
		clear(a.window)
		return
	}
	a.window = make([]float32, size)
}
