package tuning

import (
	"fmt"
	"strings"
)

// Scale restricts which semitone offsets from the root count as in scale.
type Scale int

const (
	Chromatic Scale = iota
	Major
	Minor
	MajorPentatonic
	MinorPentatonic
)

var scalePatterns = map[Scale][12]bool{
	Chromatic:       {true, true, true, true, true, true, true, true, true, true, true, true},
	Major:           {true, false, true, false, true, true, false, true, false, true, false, true},
	Minor:           {true, false, true, true, false, true, false, true, true, false, true, false},
	MajorPentatonic: {true, false, true, false, true, false, false, true, false, true, false, false},
	MinorPentatonic: {true, false, false, true, false, true, false, true, false, false, true, false},
}

var scaleNames = map[Scale]string{
	Chromatic:       "chromatic",
	Major:           "major",
	Minor:           "minor",
	MajorPentatonic: "major-pentatonic",
	MinorPentatonic: "minor-pentatonic",
}

// Pattern returns the membership of each semitone 0..11 above the root.
// Unknown scales report the chromatic pattern.
func (s Scale) Pattern() [12]bool {
	if p, ok := scalePatterns[s]; ok {
		return p
	}
	return scalePatterns[Chromatic]
}

// Contains reports whether the semitone offset is a member of the scale.
// Membership repeats every octave in both directions.
func (s Scale) Contains(semitone int) bool {
	return s.Pattern()[euclidMod(semitone, 12)]
}

func (s Scale) String() string {
	if name, ok := scaleNames[s]; ok {
		return name
	}
	return fmt.Sprintf("Scale(%d)", int(s))
}

// ParseScale parses a scale name as produced by Scale.String.
func ParseScale(s string) (Scale, error) {
	name := strings.ToLower(strings.TrimSpace(s))
	for scale, n := range scaleNames {
		if n == name {
			return scale, nil
		}
	}
	return Chromatic, fmt.Errorf("unknown scale %q", s)
}
