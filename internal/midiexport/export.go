package midiexport

import (
	"fmt"
	"io"
	"math"
	"sort"

	"gitlab.com/gomidi/midi/v2"
	"gitlab.com/gomidi/midi/v2/smf"

	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/voice"
)

// TicksPerQuarter is the file resolution.
const TicksPerQuarter = 960

const drumChannel = 9

// Song is the resolved view of a composition that gets exported.
type Song struct {
	Title     string
	BPM       float64
	Meter     [2]int
	LoopBeats float64
	Loops     int
	Tracks    []Track
}

type Track struct {
	Name   string
	Kind   voice.Kind
	Events []composition.Event
}

// General MIDI programs standing in for each synth kind.
var programs = map[voice.Kind]uint8{
	voice.FM:   38, // synth bass 1
	voice.AM:   4,  // electric piano 1
	voice.Mono: 80, // square lead
	voice.Poly: 89, // warm pad
}

// Metal hits are written as a GM closed hi-hat; membrane hits keep their
// pitch, which lands on the GM kick and toms for low notes.
const hihatKey = 42

type point struct {
	tick uint32
	off  bool
	msg  midi.Message
}

// Export writes s as a format 1 Standard MIDI File: a conductor track
// with meter and tempo, then one track per song track. Loops repeats the
// loop region; zero means once.
func Export(w io.Writer, s Song) error {
	loops := s.Loops
	if loops < 1 {
		loops = 1
	}
	num, den := s.Meter[0], s.Meter[1]
	if num <= 0 || den <= 0 {
		num, den = 4, 4
	}
	end := ticks(s.LoopBeats * float64(loops))

	sm := smf.New()
	sm.TimeFormat = smf.MetricTicks(TicksPerQuarter)

	var conductor smf.Track
	if s.Title != "" {
		conductor.Add(0, smf.MetaTrackSequenceName(s.Title))
	}
	conductor.Add(0, smf.MetaMeter(uint8(num), uint8(den)))
	conductor.Add(0, smf.MetaTempo(s.BPM))
	conductor.Close(end)
	if err := sm.Add(conductor); err != nil {
		return fmt.Errorf("add conductor track: %w", err)
	}

	melodic := uint8(0)
	for i, t := range s.Tracks {
		ch := melodic
		if t.Kind.Percussive() {
			ch = drumChannel
		} else {
			melodic++
			if melodic == drumChannel {
				melodic++
			}
			melodic %= 16
		}
		if err := sm.Add(buildTrack(t, ch, s.LoopBeats, loops, end)); err != nil {
			return fmt.Errorf("add track %d: %w", i, err)
		}
	}
	if _, err := sm.WriteTo(w); err != nil {
		return fmt.Errorf("write midi: %w", err)
	}
	return nil
}

func buildTrack(t Track, ch uint8, loopBeats float64, loops int, end uint32) smf.Track {
	var pts []point
	for k := 0; k < loops; k++ {
		base := float64(k) * loopBeats
		for _, ev := range t.Events {
			key := noteKey(t.Kind, ev.Freq)
			on := ticks(base + ev.Offset)
			off := max(ticks(base+ev.Offset+ev.Length), on+1)
			off = min(off, end)
			if off <= on {
				continue
			}
			vel := uint8(math.Round(ev.Velocity * 127))
			if vel == 0 {
				vel = 1
			}
			pts = append(pts,
				point{tick: on, msg: midi.NoteOn(ch, key, vel)},
				point{tick: off, off: true, msg: midi.NoteOff(ch, key)},
			)
		}
	}
	// note-offs sort before note-ons on the same tick so retriggers work
	sort.SliceStable(pts, func(a, b int) bool {
		if pts[a].tick != pts[b].tick {
			return pts[a].tick < pts[b].tick
		}
		return pts[a].off && !pts[b].off
	})

	var tr smf.Track
	if t.Name != "" {
		tr.Add(0, smf.MetaTrackSequenceName(t.Name))
	}
	if prog, ok := programs[t.Kind]; ok && ch != drumChannel {
		tr.Add(0, midi.ProgramChange(ch, prog))
	}
	var last uint32
	for _, p := range pts {
		tr.Add(p.tick-last, p.msg)
		last = p.tick
	}
	tr.Close(end - last)
	return tr
}

func noteKey(k voice.Kind, freq float64) uint8 {
	if k == voice.Metal {
		return hihatKey
	}
	n := composition.FreqToMidi(freq)
	if n < 0 {
		n = 0
	}
	if n > 127 {
		n = 127
	}
	return uint8(n)
}

func ticks(beats float64) uint32 {
	if beats <= 0 {
		return 0
	}
	return uint32(math.Round(beats * TicksPerQuarter))
}
