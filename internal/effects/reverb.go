package effects

import "math"

// Comb and allpass lengths at 44.1 kHz; they are scaled to the sample rate.
var (
	combTuning    = [4]int{1116, 1188, 1277, 1356}
	allpassTuning = [2]int{556, 441}
)

const stereoSpread = 23

// Reverb is a Schroeder reverb: parallel damped combs into series
// allpasses, one network per channel. The comb feedback is derived from a
// decay time so the tail falls 60 dB in decaySec.
type Reverb struct {
	combs   [2][4]combFilter
	allpass [2][2]allpassFilter
	wet     float32
	decay   float64
}

type combFilter struct {
	buf   []float32
	pos   int
	fb    float32
	damp  float32
	store float32
}

type allpassFilter struct {
	buf []float32
	pos int
	fb  float32
}

// NewReverb creates a reverb whose tail lasts about decaySec seconds.
// wet is the output mix in [0, 1].
func NewReverb(sampleRate int, decaySec, wet float32) *Reverb {
	if decaySec <= 0 {
		decaySec = 0.1
	}
	r := &Reverb{wet: clamp(wet, 0, 1), decay: float64(decaySec)}
	scale := float64(sampleRate) / 44100
	for ch := 0; ch < 2; ch++ {
		spread := ch * stereoSpread
		for i, n := range combTuning {
			size := maxInt(int(float64(n+spread)*scale), 1)
			// RT60: feedback^(decay*sr/size) = 0.001
			fb := math.Pow(0.001, float64(size)/(float64(decaySec)*float64(sampleRate)))
			r.combs[ch][i] = combFilter{
				buf:  make([]float32, size),
				fb:   clamp(float32(fb), 0, 0.98),
				damp: 0.2,
			}
		}
		for i, n := range allpassTuning {
			r.allpass[ch][i] = allpassFilter{
				buf: make([]float32, maxInt(int(float64(n+spread)*scale), 1)),
				fb:  0.5,
			}
		}
	}
	return r
}

// Decay returns the configured tail length in seconds.
func (r *Reverb) Decay() float64 { return r.decay }

func (r *Reverb) Process(l, r2 float32) (float32, float32) {
	in := (l + r2) * 0.5
	var out [2]float32
	for ch := range out {
		var acc float32
		for i := range r.combs[ch] {
			acc += r.combs[ch][i].process(in)
		}
		acc *= 0.25
		for i := range r.allpass[ch] {
			acc = r.allpass[ch][i].process(acc)
		}
		out[ch] = acc
	}
	return l*(1-r.wet) + out[0]*r.wet, r2*(1-r.wet) + out[1]*r.wet
}

func (r *Reverb) Reset() {
	for ch := range r.combs {
		for i := range r.combs[ch] {
			c := &r.combs[ch][i]
			clear(c.buf)
			c.pos, c.store = 0, 0
		}
		for i := range r.allpass[ch] {
			a := &r.allpass[ch][i]
			clear(a.buf)
			a.pos = 0
		}
	}
}

func (c *combFilter) process(in float32) float32 {
	out := c.buf[c.pos]
	c.store = out*(1-c.damp) + c.store*c.damp
	c.buf[c.pos] = in + c.store*c.fb
	c.pos++
	if c.pos >= len(c.buf) {
		c.pos = 0
	}
	return out
}

func (a *allpassFilter) process(in float32) float32 {
	bufOut := a.buf[a.pos]
	out := -in + bufOut
	a.buf[a.pos] = in + bufOut*a.fb
	a.pos++
	if a.pos >= len(a.buf) {
		a.pos = 0
	}
	return out
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}
