package voice

// Params is a per-kind parameter set. Every voice gets its own copy.
type Params interface {
	Kind() Kind
}

// Envelope times are in seconds, Sustain is a level in [0, 1].
type Envelope struct {
	Attack  float64
	Decay   float64
	Sustain float64
	Release float64
}

type MembraneParams struct {
	PitchDecay float64 // seconds to fall from Octaves*f to f
	Octaves    float64
	Envelope   Envelope
	Gain       float64
}

type MetalParams struct {
	Harmonicity     float64
	ModulationIndex float64
	Resonance       float64 // highpass cutoff in Hz
	Envelope        Envelope
	Gain            float64
}

type FMParams struct {
	Harmonicity        float64
	ModulationIndex    float64
	Envelope           Envelope
	ModulationEnvelope Envelope
	Gain               float64
}

type AMParams struct {
	Harmonicity        float64
	Envelope           Envelope
	ModulationEnvelope Envelope
	Gain               float64
}

type MonoParams struct {
	Wave           Wave
	Envelope       Envelope
	FilterEnvelope Envelope
	FilterBase     float64 // Hz
	FilterOctaves  float64
	VibratoRate    float64 // Hz, 0 disables vibrato
	VibratoDepth   float64 // semitones
	Gain           float64
}

type PolyParams struct {
	Wave      Wave
	Envelope  Envelope
	Polyphony int
	Gain      float64
}

func (MembraneParams) Kind() Kind { return Membrane }
func (MetalParams) Kind() Kind    { return Metal }
func (FMParams) Kind() Kind       { return FM }
func (AMParams) Kind() Kind       { return AM }
func (MonoParams) Kind() Kind     { return Mono }
func (PolyParams) Kind() Kind     { return Poly }

// DefaultParams returns the stock patch for k.
func DefaultParams(k Kind) Params {
	switch k {
	case Membrane:
		return MembraneParams{
			PitchDecay: 0.05,
			Octaves:    10,
			Envelope:   Envelope{Attack: 0.001, Decay: 0.4, Sustain: 0.01, Release: 1.4},
			Gain:       0.9,
		}
	case Metal:
		return MetalParams{
			Harmonicity:     5.1,
			ModulationIndex: 32,
			Resonance:       4000,
			Envelope:        Envelope{Attack: 0.001, Decay: 0.1, Sustain: 0, Release: 0.01},
			Gain:            0.15,
		}
	case FM:
		return FMParams{
			Harmonicity:        3,
			ModulationIndex:    10,
			Envelope:           Envelope{Attack: 0.01, Decay: 0.01, Sustain: 1, Release: 0.5},
			ModulationEnvelope: Envelope{Attack: 0.5, Decay: 0, Sustain: 1, Release: 0.5},
			Gain:               0.45,
		}
	case AM:
		return AMParams{
			Harmonicity:        2,
			Envelope:           Envelope{Attack: 0.1, Decay: 0.1, Sustain: 1, Release: 1},
			ModulationEnvelope: Envelope{Attack: 0.5, Decay: 0, Sustain: 1, Release: 0.5},
			Gain:               0.5,
		}
	case Mono:
		return MonoParams{
			Wave:           Square,
			Envelope:       Envelope{Attack: 0.1, Decay: 0.3, Sustain: 0.4, Release: 0.8},
			FilterEnvelope: Envelope{Attack: 0.6, Decay: 0.2, Sustain: 0.5, Release: 2},
			FilterBase:     200,
			FilterOctaves:  7,
			Gain:           0.35,
		}
	default:
		return PolyParams{
			Wave:      Triangle,
			Envelope:  Envelope{Attack: 0.1, Decay: 0.2, Sustain: 0.5, Release: 1},
			Polyphony: 16,
			Gain:      0.3,
		}
	}
}
