package mixer

import "math"

const (
	MinGainDB = -60.0
	MaxGainDB = 0.0
)

// Channel is one track's gain, mute and pan stage. Gain and pan changes
// ramp; mute is immediate.
type Channel struct {
	gainFrames int
	panFrames  int
	gainDB     float64
	gain       Param // linear
	pan        Param
	muted      bool
}

// NewChannel creates a channel at gainDB and pan without ramping.
func NewChannel(sampleRate int, gainDB, pan, gainRampSec, panRampSec float64) *Channel {
	c := &Channel{
		gainFrames: int(gainRampSec * float64(sampleRate)),
		panFrames:  int(panRampSec * float64(sampleRate)),
	}
	c.gainDB = ClampGain(gainDB)
	c.gain = NewParam(DBToGain(c.gainDB))
	c.pan = NewParam(ClampPan(pan))
	return c
}

// SetGain ramps to db, clamped to [MinGainDB, MaxGainDB].
func (c *Channel) SetGain(db float64) {
	c.gainDB = ClampGain(db)
	c.gain.RampTo(DBToGain(c.gainDB), c.gainFrames)
}

// GainDB returns the target gain in dB.
func (c *Channel) GainDB() float64 { return c.gainDB }

func (c *Channel) SetMute(muted bool) { c.muted = muted }

func (c *Channel) Muted() bool { return c.muted }

// ToggleMute flips the mute state and returns the new state.
func (c *Channel) ToggleMute() bool {
	c.muted = !c.muted
	return c.muted
}

// SetPan ramps to p, clamped to [-1, 1].
func (c *Channel) SetPan(p float64) {
	c.SetPanOver(p, c.panFrames)
}

// SetPanOver ramps to p over an explicit number of frames.
func (c *Channel) SetPanOver(p float64, frames int) {
	c.pan.RampTo(ClampPan(p), frames)
}

// Pan returns the target pan position.
func (c *Channel) Pan() float64 { return c.pan.Target() }

// Process applies gain and equal-power pan to mono, writing l and r.
// Ramps advance even while muted.
func (c *Channel) Process(mono, l, r []float32) {
	for i, s := range mono {
		g := c.gain.Next()
		p := c.pan.Next()
		if c.muted {
			g = 0
		}
		angle := (p + 1) / 2 * (math.Pi / 2)
		v := float64(s) * g
		l[i] = float32(v * math.Cos(angle))
		r[i] = float32(v * math.Sin(angle))
	}
}

func DBToGain(db float64) float64 {
	return math.Pow(10, db/20)
}

func ClampGain(db float64) float64 {
	if math.IsNaN(db) || db < MinGainDB {
		return MinGainDB
	}
	if db > MaxGainDB {
		return MaxGainDB
	}
	return db
}

func ClampPan(p float64) float64 {
	if math.IsNaN(p) {
		return 0
	}
	return math.Max(-1, math.Min(1, p))
}
