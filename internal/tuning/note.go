package tuning

import (
	"fmt"
	"math"
)

// Concert pitch reference.
const (
	A4Frequency = 440.0
	A4MIDI      = 69
)

// All note names in chromatic order
var noteNames = [12]string{"C", "C#", "D", "D#", "E", "F", "F#", "G", "G#", "A", "A#", "B"}

// Note represents a musical note
type Note struct {
	Name      string  // e.g., "A", "A#", "B"
	Octave    int     // e.g., 4 for middle C (C4)
	MIDI      int     // MIDI note number of the nearest equal-tempered note
	Frequency float64 // Frequency in Hz
	Cents     float64 // Cents deviation from the nearest note (-50 to +50)
}

// String returns the scientific pitch name, e.g. "C#4".
func (n Note) String() string {
	return fmt.Sprintf("%s%d", n.Name, n.Octave)
}

// ValidMIDI reports whether note is within the MIDI range 0..127.
func ValidMIDI(note int) bool {
	return note >= 0 && note <= 127
}

// MIDIToFrequency returns the equal-tempered frequency of a MIDI note.
func MIDIToFrequency(note int) float64 {
	return A4Frequency * math.Exp2(float64(note-A4MIDI)/12)
}

// NoteName returns the scientific pitch name of a MIDI note ("A4" for 69).
func NoteName(note int) string {
	return fmt.Sprintf("%s%d", noteNames[euclidMod(note, 12)], floorDiv(note, 12)-1)
}

// FrequencyToNote converts a frequency to the nearest equal-tempered note.
func FrequencyToNote(frequency float64) Note {
	// Semitones relative to A4, rounded to the nearest note
	semitones := 12 * math.Log2(frequency/A4Frequency)
	rounded := math.Round(semitones)
	midi := A4MIDI + int(rounded)

	return Note{
		Name:      noteNames[euclidMod(midi, 12)],
		Octave:    floorDiv(midi, 12) - 1,
		MIDI:      midi,
		Frequency: frequency,
		Cents:     100 * (semitones - rounded),
	}
}
