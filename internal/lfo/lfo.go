package lfo

import "math"

type Wave int

const (
	Saw Wave = iota
	Square
	Triangle
	Sine
)

// LFO is a free-running modulation oscillator sampled once per frame. The
// same type drives audio-rate modulators, so rates are not capped.
type LFO struct {
	depth  float64
	rateHz float64
	wave   Wave
	phase  float64 // [0, 1)
}

// Set configures depth, rate and waveform without touching the phase.
// Unknown waveforms fall back to Triangle.
func (l *LFO) Set(depth, rateHz float64, wave Wave) {
	l.depth = depth
	l.rateHz = rateHz
	if wave < Saw || wave > Sine {
		wave = Triangle
	}
	l.wave = wave
}

// SetRate retunes the oscillator, e.g. when a new note starts.
func (l *LFO) SetRate(rateHz float64) { l.rateHz = rateHz }

// Sample returns the current value in [-depth, +depth] and advances one
// sample. It returns 0 while depth or rate is zero.
func (l *LFO) Sample(sampleRate float64) float64 {
	if !l.Active() || sampleRate <= 0 {
		return 0
	}
	var v float64
	switch l.wave {
	case Saw:
		v = 1.0 - 2.0*l.phase
	case Square:
		if l.phase < 0.5 {
			v = 1.0
		} else {
			v = -1.0
		}
	case Sine:
		v = math.Sin(2 * math.Pi * l.phase)
	default:
		if l.phase < 0.5 {
			v = 4.0*l.phase - 1.0
		} else {
			v = 3.0 - 4.0*l.phase
		}
	}
	l.phase += l.rateHz / sampleRate
	l.phase -= math.Floor(l.phase)
	return v * l.depth
}

func (l *LFO) Active() bool {
	return l.depth != 0 && l.rateHz != 0
}

func (l *LFO) Reset() {
	l.phase = 0
}
