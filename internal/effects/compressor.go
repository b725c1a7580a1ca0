package effects

import "math"

// Compressor is a feed-forward compressor with a stereo-linked peak
// detector, so both channels get the same gain and the image does not move.
type Compressor struct {
	threshold float32
	ratio     float32
	attack    float32 // coefficient
	release   float32 // coefficient
	makeup    float32
	ceiling   float32 // hard output bound, 0 when unbounded
	env       float32
}

// NewCompressor creates a compressor.
// thresholdDB: threshold in dB (e.g., -20)
// ratio: compression ratio (e.g., 4 for 4:1)
// attackMs, releaseMs: detector times in ms
// makeupDB: makeup gain in dB
func NewCompressor(sampleRate int, thresholdDB, ratio, attackMs, releaseMs, makeupDB float32) *Compressor {
	if ratio < 1 {
		ratio = 1
	}
	return &Compressor{
		threshold: dbToAmp(thresholdDB),
		ratio:     ratio,
		attack:    coefficient(attackMs, sampleRate),
		release:   coefficient(releaseMs, sampleRate),
		makeup:    dbToAmp(makeupDB),
	}
}

// NewLimiter creates a fast, high-ratio compressor that also hard-bounds
// its output at ceilingDB. It guards the master bus.
func NewLimiter(sampleRate int, ceilingDB float32) *Compressor {
	c := NewCompressor(sampleRate, ceilingDB-1, 20, 1, 100, 0)
	c.ceiling = dbToAmp(ceilingDB)
	return c
}

func (c *Compressor) Process(l, r float32) (float32, float32) {
	peak := float32(math.Max(math.Abs(float64(l)), math.Abs(float64(r))))
	if peak > c.env {
		c.env += c.attack * (peak - c.env)
	} else {
		c.env += c.release * (peak - c.env)
	}
	g := c.gain(c.env) * c.makeup
	l, r = l*g, r*g
	if c.ceiling > 0 {
		l = clamp(l, -c.ceiling, c.ceiling)
		r = clamp(r, -c.ceiling, c.ceiling)
	}
	return l, r
}

func (c *Compressor) gain(env float32) float32 {
	if env <= c.threshold || c.threshold <= 0 {
		return 1.0
	}
	over := env / c.threshold
	return float32(math.Pow(float64(over), float64(1.0/c.ratio-1)))
}

func (c *Compressor) Reset() {
	c.env = 0
}

func coefficient(ms float32, sampleRate int) float32 {
	if ms <= 0 {
		return 1
	}
	return float32(1.0 - math.Exp(-1.0/(float64(ms)*float64(sampleRate)/1000.0)))
}

func dbToAmp(db float32) float32 {
	return float32(math.Pow(10, float64(db)/20))
}
