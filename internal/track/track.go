package track

import (
	"log/slog"

	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/effects"
	"github.com/cbegin/loopdeck-go/internal/mixer"
	"github.com/cbegin/loopdeck-go/internal/voice"
)

// Track owns one voice, its mixer channel, its insert effects and the
// resolved events the scheduler plays through it. Everything is torn down
// together by Dispose.
type Track struct {
	name       string
	sampleRate float64
	voice      voice.Voice
	channel    *mixer.Channel
	inserts    *effects.Chain
	events     []composition.Event
	mono       []float32
	l, r       []float32
	disposed   bool
}

// New binds v, events and channel into a track. inserts may be nil.
func New(name string, sampleRate int, v voice.Voice, events []composition.Event, ch *mixer.Channel, inserts *effects.Chain) *Track {
	if inserts == nil {
		inserts = effects.NewChain()
	}
	return &Track{
		name:       name,
		sampleRate: float64(sampleRate),
		voice:      v,
		channel:    ch,
		inserts:    inserts,
		events:     events,
	}
}

type Options struct {
	SampleRate   int
	BeatsPerBar  float64
	BPM          float64
	LoopBeats    float64
	GainRampSec  float64
	PanRampSec   float64
	TrackEffects bool
}

// FromSpec builds a track from its document description and never fails.
// Unknown instruments fall back to the polyphonic voice, bad notes are
// dropped or clamped and unknown effects are skipped, each with a warning.
func FromSpec(ts composition.TrackSpec, opts Options, log *slog.Logger) *Track {
	if log == nil {
		log = slog.Default()
	}
	log = log.With("track", ts.Name)

	v, ok := voice.BuildTag(ts.Instrument, opts.SampleRate)
	kind := v.Kind()
	if !ok {
		log.Warn("unknown instrument, using default", "type", ts.Instrument, "default", kind)
	}

	res := composition.ResolveTrack(ts, opts.BeatsPerBar, opts.BPM, opts.LoopBeats, composition.Pitch(kind.DefaultPitch()))
	for _, w := range res.Warnings {
		log.Warn(w)
	}

	inserts := effects.NewChain()
	if opts.TrackEffects {
		for _, tag := range ts.Effects {
			fx, err := effects.FromTag(tag, opts.SampleRate, opts.BPM)
			if err != nil {
				log.Warn("effect ignored", "err", err)
				continue
			}
			inserts.Add(fx)
		}
	}

	ch := mixer.NewChannel(opts.SampleRate, ts.VolumeDB, ts.Pan, opts.GainRampSec, opts.PanRampSec)
	return New(ts.Name, opts.SampleRate, v, res.Events, ch, inserts)
}

func (t *Track) Name() string { return t.name }

func (t *Track) Kind() voice.Kind { return t.voice.Kind() }

// Events returns the loop-relative events in schedule order.
func (t *Track) Events() []composition.Event { return t.events }

func (t *Track) Channel() *mixer.Channel { return t.channel }

// Dispatch forwards ev to the voice, sounding delay frames from now.
// secondsPerBeat converts the event length to a gate. It is a no-op once
// the track is disposed.
func (t *Track) Dispatch(ev composition.Event, delay int, secondsPerBeat float64) {
	if t.disposed {
		return
	}
	t.voice.Trigger(voice.Note{
		Freq:     ev.Freq,
		Gate:     int(ev.Length * secondsPerBeat * t.sampleRate),
		Velocity: ev.Velocity,
	}, delay)
}

// Render produces n frames of post-fader, post-insert stereo. The returned
// slices are reused by the next call.
func (t *Track) Render(n int) (l, r []float32) {
	t.mono = grow(t.mono, n)
	t.l = grow(t.l, n)
	t.r = grow(t.r, n)
	if t.disposed {
		clear(t.l)
		clear(t.r)
		return t.l, t.r
	}
	for i := range t.mono {
		t.mono[i] = t.voice.Render()
	}
	t.channel.Process(t.mono, t.l, t.r)
	if t.inserts.Len() > 0 {
		for i := range t.l {
			t.l[i], t.r[i] = t.inserts.Process(t.l[i], t.r[i])
		}
	}
	return t.l, t.r
}

func (t *Track) SetGain(db float64)   { t.channel.SetGain(db) }
func (t *Track) SetMute(muted bool)   { t.channel.SetMute(muted) }
func (t *Track) ToggleMute() bool     { return t.channel.ToggleMute() }
func (t *Track) SetPan(p float64)     { t.channel.SetPan(p) }
func (t *Track) SetTempo(bpm float64) { t.inserts.SetTempo(bpm) }

// Cancel drops triggers that have been dispatched but not yet sounded.
func (t *Track) Cancel() {
	if !t.disposed {
		t.voice.Cancel()
	}
}

// Release cancels pending triggers and lets sounding notes decay.
func (t *Track) Release() {
	if !t.disposed {
		t.voice.Release()
	}
}

// Active reports sounding plus pending notes on the voice.
func (t *Track) Active() int {
	if t.disposed {
		return 0
	}
	return t.voice.Active()
}

func (t *Track) Disposed() bool { return t.disposed }

// Dispose releases the voice, the insert effects and the event list.
// Repeated calls are no-ops.
func (t *Track) Dispose() {
	if t.disposed {
		return
	}
	t.disposed = true
	t.voice.Dispose()
	t.inserts.Reset()
	t.inserts = effects.NewChain()
	t.events = nil
}

func grow(buf []float32, n int) []float32 {
	if cap(buf) < n {
		return make([]float32, n)
	}
	return buf[:n]
}
