package analysis

import (
	"math"
	"math/cmplx"
	"sync"

	"github.com/madelynnblue/go-dsp/fft"
	"github.com/viterin/vek/vek32"
)

const (
	MinDB = -100.0
	MaxDB = 0.0
)

// Analyser taps the master bus and produces a magnitude spectrum on
// demand. It keeps the most recent 2*bins mono samples; nothing is
// computed until Decibels or Snapshot is called.
type Analyser struct {
	mu        sync.Mutex
	bins      int
	smoothing float64
	ring      []float32
	pos       int
	window    []float32
	frame     []float32
	real      []float64
	smoothed  []float64
	db        []float32
}

// New creates an analyser with bins frequency bins. smoothing in [0, 1)
// blends each snapshot with the previous one.
func New(bins int, smoothing float64) *Analyser {
	if bins <= 0 {
		bins = 256
	}
	size := 2 * bins
	a := &Analyser{
		bins:      bins,
		smoothing: math.Max(0, math.Min(smoothing, 0.999)),
		ring:      make([]float32, size),
		window:    blackman(size),
		frame:     make([]float32, size),
		real:      make([]float64, size),
		smoothed:  make([]float64, bins),
		db:        make([]float32, bins),
	}
	return a
}

// Write appends the mono mix of a stereo block.
func (a *Analyser) Write(l, r []float32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for i := range l {
		a.ring[a.pos] = (l[i] + r[i]) * 0.5
		a.pos++
		if a.pos == len(a.ring) {
			a.pos = 0
		}
	}
}

// Decibels returns smoothed bin magnitudes in dB. Silent bins are -Inf.
func (a *Analyser) Decibels() []float32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	n := copy(a.frame, a.ring[a.pos:])
	copy(a.frame[n:], a.ring[:a.pos])
	vek32.Mul_Inplace(a.frame, a.window)
	for i, v := range a.frame {
		a.real[i] = float64(v)
	}
	spectrum := fft.FFTReal(a.real)
	scale := 1 / float64(len(a.real))
	for k := 0; k < a.bins; k++ {
		mag := cmplx.Abs(spectrum[k]) * scale
		a.smoothed[k] = a.smoothing*a.smoothed[k] + (1-a.smoothing)*mag
		a.db[k] = float32(a.smoothed[k])
	}
	vek32.Log10_Inplace(a.db)
	vek32.MulNumber_Inplace(a.db, 20)
	out := make([]float32, a.bins)
	copy(out, a.db)
	return out
}

// Snapshot returns one byte per bin, see Normalize.
func (a *Analyser) Snapshot() []byte {
	return Normalize(a.Decibels())
}

// Reset forgets buffered audio and smoothing history.
func (a *Analyser) Reset() {
	a.mu.Lock()
	defer a.mu.Unlock()
	clear(a.ring)
	clear(a.smoothed)
	a.pos = 0
}

// Normalize maps each dB value with NormalizeDB.
func Normalize(db []float32) []byte {
	out := make([]byte, len(db))
	for i, v := range db {
		out[i] = NormalizeDB(float64(v))
	}
	return out
}

// NormalizeDB clamps v to [-100, 0] dB (-Inf and NaN count as -100) and
// maps it linearly onto 0..255 with floor(((v+100)/100)*255).
func NormalizeDB(v float64) byte {
	if math.IsNaN(v) || v < MinDB {
		v = MinDB
	}
	if v > MaxDB {
		v = MaxDB
	}
	return byte(math.Floor(((v + 100) / 100) * 255))
}

func blackman(n int) []float32 {
	w := make([]float32, n)
	for i := range w {
		x := 2 * math.Pi * float64(i) / float64(n)
		w[i] = float32(0.42 - 0.5*math.Cos(x) + 0.08*math.Cos(2*x))
	}
	return w
}
