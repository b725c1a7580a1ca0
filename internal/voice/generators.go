package voice

import (
	"math"

	"github.com/cbegin/loopdeck-go/internal/lfo"
)

// tone is a single enveloped oscillator, the building block of Poly.
type tone struct {
	sr    float64
	wave  Wave
	env   adsr
	phase float64
	freq  float64
	vel   float64
}

func newTone(w Wave, e Envelope, sr float64) *tone {
	return &tone{sr: sr, wave: w, env: newADSR(e)}
}

func (t *tone) start(freq, vel float64) {
	t.freq, t.vel, t.phase = freq, vel, 0
	t.env.trigger()
}

func (t *tone) stop()          { t.env.release() }
func (t *tone) idle() bool     { return t.env.off() }
func (t *tone) level() float64 { return t.env.level }

func (t *tone) render() float64 {
	e := t.env.next(t.sr)
	s := oscillator(t.phase, t.wave) * e * t.vel
	t.phase = advance(t.phase, t.freq, t.sr)
	return s
}

// membrane sweeps a sine from Octaves*f down to f for a kick or tom.
type membrane struct {
	p     MembraneParams
	sr    float64
	env   adsr
	phase float64
	base  float64
	freq  float64
	ratio float64
	sweep int
	vel   float64
}

func newMembrane(p MembraneParams, sr float64) *membrane {
	return &membrane{p: p, sr: sr, env: newADSR(p.Envelope)}
}

func (m *membrane) start(freq, vel float64) {
	m.base, m.freq, m.vel, m.phase = freq, freq, vel, 0
	m.sweep = int(m.p.PitchDecay * m.sr)
	if m.p.Octaves > 1 && m.sweep > 0 {
		m.freq = freq * m.p.Octaves
		m.ratio = math.Pow(1/m.p.Octaves, 1/float64(m.sweep))
	} else {
		m.sweep = 0
	}
	m.env.trigger()
}

func (m *membrane) stop()          { m.env.release() }
func (m *membrane) idle() bool     { return m.env.off() }
func (m *membrane) level() float64 { return m.env.level }

func (m *membrane) render() float64 {
	e := m.env.next(m.sr)
	s := math.Sin(m.phase) * e * m.vel
	m.phase = advance(m.phase, m.freq, m.sr)
	if m.sweep > 0 {
		m.freq *= m.ratio
		m.sweep--
		if m.sweep == 0 {
			m.freq = m.base
		}
	}
	return s
}

// Inharmonic partial ratios for the metal voice.
var metalRatios = [6]float64{1.0, 1.483, 1.932, 2.546, 2.630, 3.897}

// metal is six phase-modulated square partials through a highpass.
type metal struct {
	p       MetalParams
	sr      float64
	env     adsr
	hp      onePole
	carrier [6]float64
	mod     [6]float64
	freq    float64
	vel     float64
}

func newMetal(p MetalParams, sr float64) *metal {
	m := &metal{p: p, sr: sr, env: newADSR(p.Envelope)}
	m.hp.setHighpass(p.Resonance, sr)
	return m
}

func (m *metal) start(freq, vel float64) {
	m.freq, m.vel = freq, vel
	m.carrier = [6]float64{}
	m.mod = [6]float64{}
	m.hp.reset()
	m.env.trigger()
}

func (m *metal) stop()          { m.env.release() }
func (m *metal) idle() bool     { return m.env.off() }
func (m *metal) level() float64 { return m.env.level }

func (m *metal) render() float64 {
	e := m.env.next(m.sr)
	var sum float64
	for i, r := range metalRatios {
		f := m.freq * r
		pm := math.Sin(m.mod[i]) * m.p.ModulationIndex
		sum += oscillator(wrap(m.carrier[i]+pm), Square)
		m.carrier[i] = advance(m.carrier[i], f, m.sr)
		m.mod[i] = advance(m.mod[i], f*m.p.Harmonicity, m.sr)
	}
	return m.hp.highpass(sum/6) * e * m.vel
}

// fmTone is a sine carrier phase-modulated by a square at Harmonicity*f.
type fmTone struct {
	p      FMParams
	sr     float64
	env    adsr
	modEnv adsr
	cPhase float64
	mPhase float64
	freq   float64
	vel    float64
}

func newFMTone(p FMParams, sr float64) *fmTone {
	return &fmTone{p: p, sr: sr, env: newADSR(p.Envelope), modEnv: newADSR(p.ModulationEnvelope)}
}

func (t *fmTone) start(freq, vel float64) {
	t.freq, t.vel = freq, vel
	t.cPhase, t.mPhase = 0, 0
	t.env.trigger()
	t.modEnv.trigger()
}

func (t *fmTone) stop() {
	t.env.release()
	t.modEnv.release()
}

func (t *fmTone) idle() bool     { return t.env.off() }
func (t *fmTone) level() float64 { return t.env.level }

func (t *fmTone) render() float64 {
	e := t.env.next(t.sr)
	me := t.modEnv.next(t.sr)
	pm := oscillator(t.mPhase, Square) * t.p.ModulationIndex / 8 * me
	s := math.Sin(t.cPhase+pm) * e * t.vel
	t.cPhase = advance(t.cPhase, t.freq, t.sr)
	t.mPhase = advance(t.mPhase, t.freq*t.p.Harmonicity, t.sr)
	return s
}

// amTone is a sine carrier whose amplitude follows a square modulator.
type amTone struct {
	p      AMParams
	sr     float64
	env    adsr
	modEnv adsr
	mod    lfo.LFO
	phase  float64
	freq   float64
	vel    float64
}

func newAMTone(p AMParams, sr float64) *amTone {
	return &amTone{p: p, sr: sr, env: newADSR(p.Envelope), modEnv: newADSR(p.ModulationEnvelope)}
}

func (t *amTone) start(freq, vel float64) {
	t.freq, t.vel, t.phase = freq, vel, 0
	t.mod.Set(1, freq*t.p.Harmonicity, lfo.Square)
	t.mod.Reset()
	t.env.trigger()
	t.modEnv.trigger()
}

func (t *amTone) stop() {
	t.env.release()
	t.modEnv.release()
}

func (t *amTone) idle() bool     { return t.env.off() }
func (t *amTone) level() float64 { return t.env.level }

func (t *amTone) render() float64 {
	e := t.env.next(t.sr)
	me := t.modEnv.next(t.sr)
	m := t.mod.Sample(t.sr)
	amp := 1 - me*(1-m)/2
	s := math.Sin(t.phase) * amp * e * t.vel
	t.phase = advance(t.phase, t.freq, t.sr)
	return s
}

// monoTone is a single lead oscillator through an enveloped lowpass.
// Retriggers keep the oscillator phase.
type monoTone struct {
	p     MonoParams
	sr    float64
	env   adsr
	fenv  adsr
	lp    onePole
	vib   lfo.LFO
	phase float64
	freq  float64
	vel   float64
}

func newMonoTone(p MonoParams, sr float64) *monoTone {
	t := &monoTone{p: p, sr: sr, env: newADSR(p.Envelope), fenv: newADSR(p.FilterEnvelope)}
	if p.VibratoRate > 0 && p.VibratoDepth != 0 {
		t.vib.Set(p.VibratoDepth, p.VibratoRate, lfo.Sine)
	}
	return t
}

func (t *monoTone) start(freq, vel float64) {
	t.freq, t.vel = freq, vel
	t.env.trigger()
	t.fenv.trigger()
}

func (t *monoTone) stop() {
	t.env.release()
	t.fenv.release()
}

func (t *monoTone) idle() bool     { return t.env.off() }
func (t *monoTone) level() float64 { return t.env.level }

func (t *monoTone) render() float64 {
	e := t.env.next(t.sr)
	fe := t.fenv.next(t.sr)
	t.lp.setLowpass(t.p.FilterBase*math.Pow(2, t.p.FilterOctaves*fe), t.sr)
	f := t.freq
	if t.vib.Active() {
		f *= math.Pow(2, t.vib.Sample(t.sr)/12)
	}
	s := t.lp.lowpass(oscillator(t.phase, t.p.Wave)) * e * t.vel
	t.phase = advance(t.phase, f, t.sr)
	return s
}

func wrap(phase float64) float64 {
	phase = math.Mod(phase, twoPi)
	if phase < 0 {
		phase += twoPi
	}
	return phase
}
