package voice

import "math"

const twoPi = math.Pi * 2

type Wave int

const (
	Sine Wave = iota
	Saw
	Triangle
	Square
)

// oscillator samples w at phase radians, phase in [0, 2π).
func oscillator(phase float64, w Wave) float64 {
	switch w {
	case Saw:
		return 1.0 - 2.0*phase/twoPi
	case Triangle:
		return 2.0*math.Abs(2.0*phase/twoPi-1.0) - 1.0
	case Square:
		if phase < math.Pi {
			return 1.0
		}
		return -1.0
	default:
		return math.Sin(phase)
	}
}

// advance moves phase by freq Hz for one sample and wraps it.
func advance(phase, freq, sampleRate float64) float64 {
	phase += twoPi * freq / sampleRate
	if phase >= twoPi || phase < 0 {
		phase = math.Mod(phase, twoPi)
		if phase < 0 {
			phase += twoPi
		}
	}
	return phase
}

// onePole is a first-order filter section shared by the lowpass and
// highpass paths.
type onePole struct {
	alpha float64
	y     float64
	x     float64
}

func (f *onePole) setLowpass(cutoff, sampleRate float64) {
	cutoff = math.Min(cutoff, sampleRate*0.45)
	rc := 1.0 / (twoPi * cutoff)
	dt := 1.0 / sampleRate
	f.alpha = dt / (rc + dt)
}

func (f *onePole) setHighpass(cutoff, sampleRate float64) {
	rc := 1.0 / (twoPi * cutoff)
	dt := 1.0 / sampleRate
	f.alpha = rc / (rc + dt)
}

func (f *onePole) lowpass(x float64) float64 {
	f.y += f.alpha * (x - f.y)
	return f.y
}

func (f *onePole) highpass(x float64) float64 {
	f.y = f.alpha * (f.y + x - f.x)
	f.x = x
	return f.y
}

func (f *onePole) reset() {
	f.x, f.y = 0, 0
}
