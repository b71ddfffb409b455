package pitch

import "math"

// Heuristics for the window-size advisories. They were tuned for the McLeod
// estimator's cost and resolution; another estimator needs new values.
const (
	// detection cost relative to the duration of the window itself
	latencyCostFactor = 3.0
	// periods of the lowest frequency a window should span
	accuracyPeriods = 3.0

	accuracyFloor     = 1024
	accuracyPreferred = 2048
	accuracyCeiling   = 4096
)

// latencyCandidates are tried from the most accurate to the cheapest.
var latencyCandidates = [...]int{4096, 2048, 1024, 512, 256}

// OptimalWindowSizeForLatency returns the largest candidate window whose
// estimated processing cost fits targetLatencyMs. The result is advisory.
func (d *Detector) OptimalWindowSizeForLatency(targetLatencyMs float64) int {
	samplesPerMs := float64(d.sampleRate) / 1000
	budget := int(targetLatencyMs * samplesPerMs / latencyCostFactor)
	for _, size := range latencyCandidates {
		if size <= budget {
			return size
		}
	}
	return latencyCandidates[len(latencyCandidates)-1]
}

// AccuracyOptimizedWindowSize returns a window spanning a few periods of the
// configured minimum frequency, rounded up to a multiple of 128. It never
// goes below 1024, prefers 2048 when that suffices and is capped at 4096.
func (d *Detector) AccuracyOptimizedWindowSize() int {
	minPeriod := float64(d.sampleRate) / d.config.MinFrequency
	needed := int(math.Ceil(accuracyPeriods * minPeriod))
	needed = (needed + windowSizeQuantum - 1) / windowSizeQuantum * windowSizeQuantum

	switch {
	case needed <= accuracyFloor:
		return accuracyFloor
	case needed <= accuracyPreferred:
		return accuracyPreferred
	default:
		return min(needed, accuracyCeiling)
	}
}
