// Package theory provides note-name, semitone, frequency, and fretboard
// conversions shared by the pitch estimator and the detection pipeline.
package theory

import "math"

// Semitone is a signed pitch step counted from A0 (A0 = 0).
type Semitone int

// Invalid represents "no note". It is never a value FrequencyToSemitone or
// NoteToSemitone return on success.
const Invalid Semitone = math.MinInt32

// Unplayable marks a fretboard position outside [0, frets] for a string.
const Unplayable Semitone = -1

const a0Frequency = 27.5

// baseOffsets maps an uppercase natural letter to its semitone offset from A
// within one octave.
var baseOffsets = map[byte]int{
	'A': 0,
	'B': 2,
	'C': -9,
	'D': -7,
	'E': -5,
	'F': -4,
	'G': -2,
}

// NoteToSemitone parses a 1-2 character note name (a letter A-G, optionally
// followed by '#' or 'b') plus an octave into a Semitone measured from A0.
// It reports ok=false for malformed names or double accidentals.
func NoteToSemitone(name string, octave int) (Semitone, bool) {
	if len(name) == 0 || len(name) > 2 {
		return Invalid, false
	}

	letter := name[0]
	if letter >= 'a' && letter <= 'z' {
		letter -= 'a' - 'A'
	}
	base, ok := baseOffsets[letter]
	if !ok {
		return Invalid, false
	}

	accidental := 0
	if len(name) == 2 {
		switch name[1] {
		case '#':
			accidental = 1
		case 'b':
			accidental = -1
		default:
			return Invalid, false
		}
	}

	return Semitone(12*octave + base + accidental), true
}

// SemitoneToFrequency returns the reference frequency of s: 27.5*2^(s/12) Hz.
//
// This uses math.Pow rather than this codebase's fast power-of-two
// approximation (used elsewhere, e.g. internal/fixture's string synthesis):
// the semitone/frequency round trip is a correctness invariant to within
// 10^-3, tighter than the fast approximation is guaranteed to hold.
func SemitoneToFrequency(s Semitone) float64 {
	return a0Frequency * math.Pow(2, float64(s)/12.0)
}

// NoteToFrequency is a thin wrapper combining NoteToSemitone and
// SemitoneToFrequency; it reports ok=false under the same conditions as
// NoteToSemitone.
func NoteToFrequency(name string, octave int) (float64, bool) {
	s, ok := NoteToSemitone(name, octave)
	if !ok {
		return 0, false
	}
	return SemitoneToFrequency(s), true
}

// FrequencyToSemitone returns the nearest Semitone to f and the multiplicative
// ratio SemitoneToFrequency(s)/f (1.0 == exact). It reports ok=false for
// f <= 0.
func FrequencyToSemitone(f float64) (s Semitone, ratioErr float64, ok bool) {
	if f <= 0 {
		return Invalid, 0, false
	}
	exact := 12.0 * math.Log2(f/a0Frequency)
	s = Semitone(math.Round(exact))
	return s, SemitoneToFrequency(s) / f, true
}

// NoteToFrets maps note onto every string of tuning, returning Unplayable for
// strings where note - tuning[i] falls outside [0, frets]. countValid is the
// number of playable positions.
func NoteToFrets(note Semitone, tuning []Semitone, frets int) (out []Semitone, countValid int) {
	out = make([]Semitone, len(tuning))
	for i, open := range tuning {
		fret := note - open
		if fret < 0 || int(fret) > frets {
			out[i] = Unplayable
			continue
		}
		out[i] = fret
		countValid++
	}
	return out, countValid
}
