package voice

import "strings"

// Kind selects a synthesis family.
type Kind int

const (
	Poly Kind = iota
	Membrane
	Metal
	FM
	AM
	Mono
)

var kindTags = map[string]Kind{
	"polysynth":     Poly,
	"membranesynth": Membrane,
	"metalsynth":    Metal,
	"fmsynth":       FM,
	"amsynth":       AM,
	"monosynth":     Mono,
}

// ParseKind maps an instrument tag to a Kind. Tags are case-insensitive.
// Unknown or empty tags return Poly and false.
func ParseKind(tag string) (Kind, bool) {
	k, ok := kindTags[strings.ToLower(strings.TrimSpace(tag))]
	if !ok {
		return Poly, false
	}
	return k, true
}

func (k Kind) String() string {
	switch k {
	case Membrane:
		return "membranesynth"
	case Metal:
		return "metalsynth"
	case FM:
		return "fmsynth"
	case AM:
		return "amsynth"
	case Mono:
		return "monosynth"
	default:
		return "polysynth"
	}
}

// Percussive reports whether notes of this kind may omit a pitch.
func (k Kind) Percussive() bool {
	return k == Membrane || k == Metal
}

// DefaultPitch is substituted when a note carries no pitch.
func (k Kind) DefaultPitch() string {
	if k.Percussive() {
		return "C2"
	}
	return "C4"
}

// Note is one trigger request. Gate is the held length in frames; the
// release stage starts when it runs out.
type Note struct {
	Freq     float64
	Gate     int
	Velocity float64
}

// Voice is a synthesis unit owned by exactly one track. It is driven from
// the render thread only.
type Voice interface {
	Kind() Kind
	// Trigger queues n to start after delay frames of Render calls.
	Trigger(n Note, delay int)
	// Render produces the next mono sample.
	Render() float32
	// Cancel drops triggers that have not started yet.
	Cancel()
	// Release drops pending triggers and moves sounding notes to release.
	Release()
	// Active counts sounding notes plus pending triggers.
	Active() int
	// Dispose silences the voice for good. Later calls are no-ops.
	Dispose()
}

// Build constructs a voice from p. A nil p builds the default Poly voice.
func Build(p Params, sampleRate int) Voice {
	if p == nil {
		p = DefaultParams(Poly)
	}
	sr := float64(sampleRate)
	switch p := p.(type) {
	case MembraneParams:
		return newUnit(Membrane, 1, p.Gain, func() generator { return newMembrane(p, sr) })
	case MetalParams:
		return newUnit(Metal, 1, p.Gain, func() generator { return newMetal(p, sr) })
	case FMParams:
		return newUnit(FM, 1, p.Gain, func() generator { return newFMTone(p, sr) })
	case AMParams:
		return newUnit(AM, 1, p.Gain, func() generator { return newAMTone(p, sr) })
	case MonoParams:
		return newUnit(Mono, 1, p.Gain, func() generator { return newMonoTone(p, sr) })
	case PolyParams:
		return newUnit(Poly, p.Polyphony, p.Gain, func() generator { return newTone(p.Wave, p.Envelope, sr) })
	}
	return Build(DefaultParams(p.Kind()), sampleRate)
}

// BuildTag resolves an instrument tag and builds its default voice. ok is
// false when the tag was not recognised and Poly was used instead.
func BuildTag(tag string, sampleRate int) (v Voice, ok bool) {
	k, ok := ParseKind(tag)
	return Build(DefaultParams(k), sampleRate), ok
}
