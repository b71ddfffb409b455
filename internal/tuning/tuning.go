// Package tuning converts between frequencies, semitone intervals and cents
// under a tuning system and an optional scale filter. Every function is pure.
package tuning

import (
	"fmt"
	"math"
	"strings"
)

// TuningSystem selects how semitone intervals map to frequency ratios.
type TuningSystem int

const (
	// EqualTemperament divides the octave into twelve 100-cent semitones.
	EqualTemperament TuningSystem = iota
	// JustIntonation uses small-integer ratios for each semitone of the octave.
	JustIntonation
)

// String returns the flag-friendly name of the tuning system.
func (s TuningSystem) String() string {
	switch s {
	case EqualTemperament:
		return "equal"
	case JustIntonation:
		return "just"
	default:
		return fmt.Sprintf("TuningSystem(%d)", int(s))
	}
}

// ParseTuningSystem parses "equal" or "just" (case-insensitive).
func ParseTuningSystem(s string) (TuningSystem, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "equal", "et", "equal-temperament":
		return EqualTemperament, nil
	case "just", "ji", "just-intonation":
		return JustIntonation, nil
	}
	return EqualTemperament, fmt.Errorf("unknown tuning system %q (want equal or just)", s)
}

// justRatios holds the frequency ratio of each semitone above the root,
// unison through major seventh.
var justRatios = [12]float64{
	1.0,       // unison
	16.0 / 15, // minor second
	9.0 / 8,   // major second
	6.0 / 5,   // minor third
	5.0 / 4,   // major third
	4.0 / 3,   // perfect fourth
	45.0 / 32, // tritone
	3.0 / 2,   // perfect fifth
	8.0 / 5,   // minor sixth
	5.0 / 3,   // major sixth
	9.0 / 5,   // minor seventh
	15.0 / 8,  // major seventh
}

// IntervalSemitones is an interval quantized to the tuning system plus the
// residual deviation in cents.
type IntervalSemitones struct {
	Semitones int
	Cents     float64
}

// String formats the interval as "+7 st -3.2c".
func (i IntervalSemitones) String() string {
	return fmt.Sprintf("%+d st %+.1fc", i.Semitones, i.Cents)
}

// euclidMod returns n mod m in [0, m).
func euclidMod(n, m int) int {
	r := n % m
	if r < 0 {
		r += m
	}
	return r
}

// floorDiv returns floor(n / m) for m > 0.
func floorDiv(n, m int) int {
	return (n - euclidMod(n, m)) / m
}

// IntervalFrequency returns the frequency lying the given number of semitones
// above (or below, when negative) rootHz.
func IntervalFrequency(system TuningSystem, rootHz float64, semitones int) float64 {
	if system == JustIntonation {
		octave := floorDiv(semitones, 12)
		return rootHz * justRatios[euclidMod(semitones, 12)] * math.Exp2(float64(octave))
	}
	return rootHz * math.Exp2(float64(semitones)/12)
}

// CentsDelta returns the distance from f1 to f2 in cents. Positive means f2
// is above f1. The result does not depend on any tuning system.
func CentsDelta(f1, f2 float64) float64 {
	return 1200 * math.Log2(f2/f1)
}

// FrequencyToIntervalSemitones quantizes targetHz to the nearest interval of
// the tuning system relative to rootHz.
func FrequencyToIntervalSemitones(system TuningSystem, rootHz, targetHz float64) IntervalSemitones {
	total := CentsDelta(rootHz, targetHz)

	if system == JustIntonation {
		octave := int(math.Floor(total / 1200))
		octaveRoot := rootHz * math.Exp2(float64(octave))

		// The unison of the next octave is a candidate too, otherwise a target
		// just below the octave would snap down to the major seventh.
		best, bestDist := 0, math.Inf(1)
		for i := 0; i <= 12; i++ {
			ratio := 2.0
			if i < 12 {
				ratio = justRatios[i]
			}
			dist := math.Abs(CentsDelta(octaveRoot*ratio, targetHz))
			if dist < bestDist {
				best, bestDist = i, dist
			}
		}

		semitones := octave*12 + best
		return IntervalSemitones{
			Semitones: semitones,
			Cents:     CentsDelta(IntervalFrequency(system, rootHz, semitones), targetHz),
		}
	}

	semitones := int(math.Round(total / 100))
	return IntervalSemitones{
		Semitones: semitones,
		Cents:     CentsDelta(IntervalFrequency(system, rootHz, semitones), targetHz),
	}
}

// scaleSearchRange bounds the scale-aware search to four octaves either side.
const scaleSearchRange = 48

// FrequencyToIntervalSemitonesScaleAware is FrequencyToIntervalSemitones
// restricted to members of scale. The candidate is chosen by frequency
// distance, not by semitone distance.
func FrequencyToIntervalSemitonesScaleAware(system TuningSystem, rootHz, targetHz float64, scale Scale) IntervalSemitones {
	if scale == Chromatic {
		return FrequencyToIntervalSemitones(system, rootHz, targetHz)
	}

	best := IntervalSemitones{}
	bestDist := math.Inf(1)
	for n := -scaleSearchRange; n <= scaleSearchRange; n++ {
		if !scale.Contains(n) {
			continue
		}
		cents := CentsDelta(IntervalFrequency(system, rootHz, n), targetHz)
		if d := math.Abs(cents); d < bestDist {
			bestDist = d
			best = IntervalSemitones{Semitones: n, Cents: cents}
		}
	}
	return best
}

// FindClosestScaleNote returns semitone if it belongs to scale, otherwise the
// nearest member searching outward. Upward wins ties.
func FindClosestScaleNote(semitone int, scale Scale) int {
	if scale.Contains(semitone) {
		return semitone
	}
	for d := 1; d <= 12; d++ {
		if scale.Contains(semitone + d) {
			return semitone + d
		}
		if scale.Contains(semitone - d) {
			return semitone - d
		}
	}
	return semitone
}

// IntervalFrequencyScaleAware snaps semitones to the closest scale member and
// returns its frequency.
func IntervalFrequencyScaleAware(system TuningSystem, rootHz float64, semitones int, scale Scale) float64 {
	return IntervalFrequency(system, rootHz, FindClosestScaleNote(semitones, scale))
}
