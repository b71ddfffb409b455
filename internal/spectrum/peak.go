// Package spectrum finds the strongest spectral peak of a block of samples.
// It is a cross-check for the time-domain detector, not a pitch estimator:
// the strongest partial of a rich tone is often a harmonic.
package spectrum

import (
	"math/cmplx"
	"sort"

	"github.com/mjibson/go-dsp/fft"
	"github.com/mjibson/go-dsp/window"
	"gonum.org/v1/gonum/floats"
)

const (
	// noiseFloor is the minimum magnitude of the strongest in-range bin
	noiseFloor = 0.01
	// peakThreshold is the minimum peak height as a fraction of the highest bin
	peakThreshold = 0.2
)

// Peak is a local maximum of the magnitude spectrum.
type Peak struct {
	Bin       int
	Magnitude float64
	Frequency float64 // Hz, refined by quadratic interpolation
}

// PeakFrequency returns the strongest peak of samples between minHz and
// maxHz after a Hann window. ok is false for silence or when no bin in the
// range is a local maximum.
func PeakFrequency(samples []float32, sampleRate uint32, minHz, maxHz float64) (Peak, bool) {
	if len(samples) < 4 || sampleRate == 0 {
		return Peak{}, false
	}

	windowed := make([]float64, len(samples))
	for i, s := range samples {
		windowed[i] = float64(s)
	}
	window.Apply(windowed, window.Hann)

	spectrum := fft.FFTReal(windowed)
	half := len(spectrum) / 2
	magnitudes := make([]float64, half)
	for i := range magnitudes {
		magnitudes[i] = cmplx.Abs(spectrum[i])
	}

	binHz := float64(sampleRate) / float64(len(spectrum))
	minBin := max(int(minHz/binHz), 1) // skip DC
	maxBin := min(int(maxHz/binHz), half-2)
	if minBin+1 >= maxBin {
		return Peak{}, false
	}

	highest := floats.Max(magnitudes[minBin : maxBin+1])
	if highest < noiseFloor {
		return Peak{}, false
	}

	peaks := findPeaks(magnitudes, minBin, maxBin, highest*peakThreshold, binHz)
	if len(peaks) == 0 {
		return Peak{}, false
	}
	sort.Slice(peaks, func(i, j int) bool {
		return peaks[i].Magnitude > peaks[j].Magnitude
	})
	return peaks[0], true
}

// findPeaks returns local maxima strictly inside (minBin, maxBin) above floor.
func findPeaks(magnitudes []float64, minBin, maxBin int, floor, binHz float64) []Peak {
	var peaks []Peak
	for i := minBin + 1; i < maxBin; i++ {
		prev, current, next := magnitudes[i-1], magnitudes[i], magnitudes[i+1]
		if current <= prev || current <= next || current <= floor {
			continue
		}

		// x = k + 0.5 * (R[k-1] - R[k+1]) / (R[k-1] - 2R[k] + R[k+1])
		position := float64(i)
		if denom := prev - 2*current + next; denom != 0 {
			position += 0.5 * (prev - next) / denom
		}
		peaks = append(peaks, Peak{
			Bin:       i,
			Magnitude: current,
			Frequency: position * binHz,
		})
	}
	return peaks
}
