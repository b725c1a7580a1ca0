package effects

import "github.com/cbegin/loopdeck-go/internal/lfo"

// Chorus is a modulated short delay. The right channel reads with the
// modulation inverted to widen the image.
type Chorus struct {
	sampleRate float64
	bufL, bufR []float32
	pos        int
	base       float32 // centre delay in samples
	mod        lfo.LFO
	wet        float32
}

// NewChorus creates a chorus with a delayMs centre swept by ±depthMs at
// rateHz.
func NewChorus(sampleRate int, delayMs, depthMs, rateHz, wet float32) *Chorus {
	sr := float32(sampleRate)
	base := delayMs * sr / 1000
	depth := depthMs * sr / 1000
	if depth > base-1 {
		depth = base - 1
	}
	if depth < 0 {
		depth = 0
	}
	size := int(base+depth) + 2
	if size < 4 {
		size = 4
	}
	c := &Chorus{
		sampleRate: float64(sampleRate),
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		base:       base,
		wet:        clamp(wet, 0, 1),
	}
	c.mod.Set(float64(depth), float64(rateHz), lfo.Sine)
	return c
}

func (c *Chorus) Process(l, r float32) (float32, float32) {
	m := float32(c.mod.Sample(c.sampleRate))
	c.bufL[c.pos] = l
	c.bufR[c.pos] = r
	delL := c.tap(c.bufL, c.base+m)
	delR := c.tap(c.bufR, c.base-m)
	c.pos++
	if c.pos >= len(c.bufL) {
		c.pos = 0
	}
	return l*(1-c.wet) + delL*c.wet, r*(1-c.wet) + delR*c.wet
}

// tap reads buf delay samples behind the write head with linear
// interpolation.
func (c *Chorus) tap(buf []float32, delay float32) float32 {
	size := float32(len(buf))
	readPos := float32(c.pos) - delay
	for readPos < 0 {
		readPos += size
	}
	idx := int(readPos)
	frac := readPos - float32(idx)
	idx2 := idx + 1
	if idx2 >= len(buf) {
		idx2 = 0
	}
	return buf[idx]*(1-frac) + buf[idx2]*frac
}

func (c *Chorus) Reset() {
	clear(c.bufL)
	clear(c.bufR)
	c.pos = 0
	c.mod.Reset()
}
