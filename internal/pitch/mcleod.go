package pitch

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/dsp/fourier"
	"gonum.org/v1/gonum/floats"
)

// Bounds of the searched lag range relative to the window size.
const (
	minLagFraction = 0.5
	maxLagFraction = 0.875
	// periods of the lowest frequency the lag range must span, so that its
	// lobe closes inside the range
	lagPeriods = 1.5
)

// lagRange returns the number of NSDF lags searched for a window of size
// samples. It covers lagPeriods of the lowest frequency, never less than half
// the window and never more than maxLagFraction of it.
func lagRange(size int, sampleRate, minFrequency float64) int {
	needed := int(math.Ceil(lagPeriods*sampleRate/minFrequency)) + 2
	lo := int(minLagFraction * float64(size))
	hi := int(maxLagFraction * float64(size))
	return min(max(needed, lo), hi)
}

// mcleod holds the working state of the McLeod Pitch Method for one window
// size, padding and lag range. All buffers are allocated once so that
// estimate does not allocate.
//
// The FFT length is at least size+maxLag, so the autocorrelation is linear
// over every searched lag whatever the configured padding.
type mcleod struct {
	size    int
	padding int
	maxLag  int

	fft      *fourier.FFT
	signal   []float64    // window followed by zeros
	spectrum []complex128 // power spectrum of signal
	acf      []float64    // unnormalized autocorrelation
	nsdf     []float64    // normalized square difference, lags [0, maxLag)
	peaks    []int        // key maxima lags
}

func newMcleod(size, padding, maxLag int) *mcleod {
	n := size + max(padding, maxLag)
	return &mcleod{
		size:     size,
		padding:  padding,
		maxLag:   maxLag,
		fft:      fourier.NewFFT(n),
		signal:   make([]float64, n),
		spectrum: make([]complex128, n/2+1),
		acf:      make([]float64, n),
		nsdf:     make([]float64, maxLag),
		peaks:    make([]int, 0, maxLag/2+1),
	}
}

// memoryBytes approximates the heap held by the working buffers, including
// the FFT plan's scratch space.
func (m *mcleod) memoryBytes() int {
	n := len(m.signal)
	return 8*(len(m.signal)+len(m.acf)+len(m.nsdf)+2*n) + 16*len(m.spectrum) + 8*cap(m.peaks)
}

// estimate returns the fundamental frequency and its clarity. ok is false
// when the signal is too weak or no peak is clear enough.
func (m *mcleod) estimate(samples []float32, sampleRate, powerThreshold, clarityThreshold float64) (freq, clarity float64, ok bool, err error) {
	x := m.signal[:m.size]
	for i, s := range samples {
		x[i] = float64(s)
	}
	clear(m.signal[m.size:])

	power := floats.Dot(x, x)
	if math.IsNaN(power) || math.IsInf(power, 0) {
		return 0, 0, false, fmt.Errorf("%w: non-finite signal power", ErrAlgorithm)
	}
	if power < powerThreshold {
		return 0, 0, false, nil
	}

	m.autocorrelate()
	m.normalize(power)

	lag, ok := m.choosePeak(clarityThreshold)
	if !ok {
		return 0, 0, false, nil
	}

	period, peak := m.interpolate(lag)
	clarity = math.Min(peak, 1)
	if clarity < clarityThreshold {
		return 0, 0, false, nil
	}

	freq = sampleRate / period
	if period <= 0 || math.IsNaN(freq) || math.IsInf(freq, 0) {
		return 0, 0, false, fmt.Errorf("%w: degenerate period %v", ErrAlgorithm, period)
	}
	return freq, clarity, true, nil
}

// autocorrelate fills acf through the power spectrum of the padded signal.
func (m *mcleod) autocorrelate() {
	coeffs := m.fft.Coefficients(m.spectrum, m.signal)
	for i, c := range coeffs {
		re, im := real(c), imag(c)
		coeffs[i] = complex(re*re+im*im, 0)
	}
	m.fft.Sequence(m.acf, coeffs)
}

// normalize computes the NSDF n(tau) = 2 r(tau) / m(tau), where m(tau) is the
// energy of the two overlapping segments at lag tau.
func (m *mcleod) normalize(power float64) {
	x := m.signal
	scale := 1 / float64(len(m.signal))
	energy := 2 * power
	for tau := 0; tau < m.maxLag; tau++ {
		if tau > 0 {
			a, b := x[m.size-tau], x[tau-1]
			energy -= a*a + b*b
		}
		if energy > 1e-12 {
			m.nsdf[tau] = 2 * m.acf[tau] * scale / energy
		} else {
			m.nsdf[tau] = 0
		}
	}
}

// choosePeak collects the highest point of each positive lobe after the
// first negative-going zero crossing and returns the first one reaching
// threshold times the highest of them.
func (m *mcleod) choosePeak(threshold float64) (int, bool) {
	nsdf := m.nsdf
	m.peaks = m.peaks[:0]

	tau := 1
	for tau < m.maxLag && nsdf[tau] > 0 {
		tau++
	}

	highest := 0.0
	for tau < m.maxLag {
		for tau < m.maxLag && nsdf[tau] <= 0 {
			tau++
		}
		if tau >= m.maxLag {
			break
		}
		best := tau
		for tau < m.maxLag && nsdf[tau] > 0 {
			if nsdf[tau] > nsdf[best] {
				best = tau
			}
			tau++
		}
		// a lobe cut off by the lag range has no confirmed maximum
		if best == m.maxLag-1 {
			break
		}
		m.peaks = append(m.peaks, best)
		highest = math.Max(highest, nsdf[best])
	}

	if len(m.peaks) == 0 {
		return 0, false
	}
	cutoff := threshold * highest
	for _, lag := range m.peaks {
		if nsdf[lag] >= cutoff {
			return lag, true
		}
	}
	return 0, false
}

// interpolate refines a peak lag with a parabola through its neighbours.
func (m *mcleod) interpolate(lag int) (period, peak float64) {
	if lag < 1 || lag >= m.maxLag-1 {
		return float64(lag), m.nsdf[lag]
	}
	a, b, c := m.nsdf[lag-1], m.nsdf[lag], m.nsdf[lag+1]
	den := a - 2*b + c
	if den == 0 {
		return float64(lag), b
	}
	delta := 0.5 * (a - c) / den
	return float64(lag) + delta, b - 0.25*(a-c)*delta
}
