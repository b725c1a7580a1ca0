package composition

import (
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"
)

var (
	ErrBadTime     = errors.New("bad time token")
	ErrBadDuration = errors.New("bad duration token")
	ErrBadPitch    = errors.New("bad pitch")
)

var noteOffsets = map[byte]int{
	'c': 0, 'd': 2, 'e': 4, 'f': 5, 'g': 7, 'a': 9, 'b': 11,
}

// ParseTime converts a position token to beats (quarter notes). Accepted
// forms: "bars:quarters:sixteenths" (trailing fields optional), notation
// tokens such as "4n" or "1m", and plain seconds.
func ParseTime(tok string, beatsPerBar float64, bpm float64) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, nil
	}
	if strings.Contains(tok, ":") {
		parts := strings.Split(tok, ":")
		if len(parts) > 3 {
			return 0, fmt.Errorf("%w: %q", ErrBadTime, tok)
		}
		scale := [3]float64{beatsPerBar, 1, 0.25}
		var beats float64
		for i, p := range parts {
			p = strings.TrimSpace(p)
			if p == "" {
				continue
			}
			v, err := strconv.ParseFloat(p, 64)
			if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
				return 0, fmt.Errorf("%w: %q", ErrBadTime, tok)
			}
			beats += v * scale[i]
		}
		return beats, nil
	}
	beats, err := parseNotation(tok, beatsPerBar, bpm)
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadTime, tok)
	}
	return beats, nil
}

// ParseDuration converts a duration token to beats. It accepts the same
// grammar as ParseTime and rejects non-positive lengths.
func ParseDuration(tok string, beatsPerBar float64, bpm float64) (float64, error) {
	tok = strings.TrimSpace(tok)
	if tok == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadDuration)
	}
	beats, err := ParseTime(tok, beatsPerBar, bpm)
	if err != nil || beats <= 0 {
		return 0, fmt.Errorf("%w: %q", ErrBadDuration, tok)
	}
	return beats, nil
}

// parseNotation handles "4n", "8t", "8n.", "2m" and bare seconds.
func parseNotation(tok string, beatsPerBar float64, bpm float64) (float64, error) {
	lower := strings.ToLower(tok)
	dotted := strings.HasSuffix(lower, ".")
	lower = strings.TrimSuffix(lower, ".")
	if lower == "" {
		return 0, ErrBadTime
	}
	unit := lower[len(lower)-1]
	if unit >= '0' && unit <= '9' || unit == '.' {
		sec, err := strconv.ParseFloat(lower, 64)
		if err != nil || sec < 0 || math.IsInf(sec, 0) || dotted {
			return 0, ErrBadTime
		}
		return sec * bpm / 60, nil
	}
	n, err := strconv.ParseFloat(lower[:len(lower)-1], 64)
	if err != nil || n <= 0 || math.IsInf(n, 0) {
		return 0, ErrBadTime
	}
	var beats float64
	switch unit {
	case 'n':
		beats = 4 / n
	case 't':
		beats = 4 / n * 2 / 3
	case 'm':
		beats = n * beatsPerBar
	default:
		return 0, ErrBadTime
	}
	if dotted {
		beats *= 1.5
	}
	return beats, nil
}

// ParsePitch converts a note name ("C4", "F#3", "Bb2") or a frequency to Hz.
func ParsePitch(p Pitch) (float64, error) {
	s := strings.TrimSpace(string(p))
	if s == "" {
		return 0, fmt.Errorf("%w: empty", ErrBadPitch)
	}
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		if f <= 0 || math.IsInf(f, 0) {
			return 0, fmt.Errorf("%w: %q", ErrBadPitch, s)
		}
		return f, nil
	}
	midi, err := NoteNumber(s)
	if err != nil {
		return 0, err
	}
	return MidiToFreq(float64(midi)), nil
}

// NoteNumber returns the MIDI note number of a scientific-pitch name, with
// C4 = 60.
func NoteNumber(name string) (int, error) {
	s := strings.TrimSpace(name)
	if len(s) < 2 {
		return 0, fmt.Errorf("%w: %q", ErrBadPitch, name)
	}
	off, ok := noteOffsets[lower(s[0])]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrBadPitch, name)
	}
	i := 1
	for ; i < len(s) && (s[i] == '#' || s[i] == 'b'); i++ {
		if s[i] == '#' {
			off++
		} else {
			off--
		}
	}
	oct, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, fmt.Errorf("%w: %q", ErrBadPitch, name)
	}
	return (oct+1)*12 + off, nil
}

func MidiToFreq(note float64) float64 {
	return 440 * math.Pow(2, (note-69)/12)
}

// FreqToMidi returns the nearest MIDI note number for a frequency.
func FreqToMidi(freq float64) int {
	if freq <= 0 {
		return 0
	}
	return int(math.Round(69 + 12*math.Log2(freq/440)))
}

func lower(b byte) byte {
	if b >= 'A' && b <= 'Z' {
		return b + ('a' - 'A')
	}
	return b
}
