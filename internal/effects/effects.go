package effects

import (
	"errors"
	"fmt"
	"strings"
)

// ErrUnknownEffect is returned by FromTag for tags it does not recognise.
var ErrUnknownEffect = errors.New("effects: unknown effect")

// Effector processes stereo audio one frame at a time.
type Effector interface {
	Process(l, r float32) (float32, float32)
	Reset()
}

// TempoSyncer is implemented by effects whose timing follows the tempo.
type TempoSyncer interface {
	SetTempo(bpm float64)
}

// Chain applies a sequence of effects in order.
type Chain struct {
	effects []Effector
}

func NewChain(effects ...Effector) *Chain {
	return &Chain{effects: effects}
}

func (c *Chain) Process(l, r float32) (float32, float32) {
	for _, e := range c.effects {
		l, r = e.Process(l, r)
	}
	return l, r
}

func (c *Chain) Reset() {
	for _, e := range c.effects {
		e.Reset()
	}
}

func (c *Chain) Add(e Effector) {
	c.effects = append(c.effects, e)
}

func (c *Chain) Len() int { return len(c.effects) }

// SetTempo forwards bpm to every tempo-synced effect in the chain.
func (c *Chain) SetTempo(bpm float64) {
	for _, e := range c.effects {
		if s, ok := e.(TempoSyncer); ok {
			s.SetTempo(bpm)
		}
	}
}

// FromTag builds the insert effect named by a document effect tag.
func FromTag(tag string, sampleRate int, bpm float64) (Effector, error) {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case "reverb", "freeverb", "jcreverb":
		return NewReverb(sampleRate, 1.5, 0.3), nil
	case "delay", "feedbackdelay", "pingpong", "pingpongdelay", "echo":
		return NewSyncedDelay(sampleRate, 0.5, bpm, 0.3, 0.25), nil
	case "chorus":
		return NewChorus(sampleRate, 3.5, 2, 1.5, 0.5), nil
	case "distortion", "overdrive":
		return NewDistortion(sampleRate, 0.4, 6000), nil
	case "compressor":
		return NewCompressor(sampleRate, -18, 4, 5, 120, 3), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownEffect, tag)
}

func clamp(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
