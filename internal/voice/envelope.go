package voice

import "math"

type envState int

const (
	envAttack envState = iota
	envDecay
	envSustain
	envRelease
	envOff
)

// adsr is a linear envelope. A retrigger restarts the attack from the
// current level.
type adsr struct {
	Envelope
	level float64
	state envState
	from  float64 // level when release began
}

func newADSR(e Envelope) adsr {
	return adsr{Envelope: e, state: envOff}
}

func (a *adsr) trigger() {
	a.state = envAttack
}

func (a *adsr) release() {
	if a.state == envOff || a.state == envRelease {
		return
	}
	a.state = envRelease
	a.from = a.level
}

func (a *adsr) off() bool { return a.state == envOff }

func (a *adsr) next(sampleRate float64) float64 {
	switch a.state {
	case envAttack:
		a.level += envStep(1, a.Attack, sampleRate)
		if a.level >= 1 {
			a.level = 1
			a.state = envDecay
		}
	case envDecay:
		a.level -= envStep(1-a.Sustain, a.Decay, sampleRate)
		if a.level <= a.Sustain {
			a.level = a.Sustain
			a.state = envSustain
			if a.Sustain <= 0 {
				a.state = envOff
			}
		}
	case envSustain:
	case envRelease:
		a.level -= envStep(a.from, a.Release, sampleRate)
		if a.level <= 0.0001 {
			a.level = 0
			a.state = envOff
		}
	case envOff:
		a.level = 0
	}
	return a.level
}

// envStep is the per-sample change covering span in sec seconds. Zero
// times complete the stage in one sample.
func envStep(span, sec, sampleRate float64) float64 {
	if sec <= 0 || sampleRate <= 0 {
		return math.Inf(1)
	}
	return span / (sec * sampleRate)
}
