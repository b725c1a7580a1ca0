package composition

import (
	"fmt"
	"sort"
)

// DefaultDuration is used when a note's duration is missing or unreadable.
const DefaultDuration = "8n"

// Event is a note pre-resolved against the loop region.
type Event struct {
	Offset   float64 // beats from the loop start
	Length   float64 // beats
	Freq     float64 // Hz
	Velocity float64
	Source   int // index into TrackSpec.Notes
}

// Resolution is the result of resolving one track's notes.
type Resolution struct {
	Events    []Event
	Warnings  []string
	Reordered bool
}

// ResolveTrack converts a track's notes into loop-relative events. Notes at
// or past loopBeats are dropped, negative times clamp to zero, missing
// pitches use defaultPitch, and unreadable durations fall back to
// DefaultDuration. Events keep document order except that out-of-order
// times are stably sorted by offset.
func ResolveTrack(ts TrackSpec, beatsPerBar, bpm, loopBeats float64, defaultPitch Pitch) Resolution {
	var res Resolution
	fallback, _ := ParseDuration(DefaultDuration, beatsPerBar, bpm)
	last := -1.0
	for i, n := range ts.Notes {
		offset, err := ParseTime(n.Time, beatsPerBar, bpm)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("note %d dropped: %v", i, err))
			continue
		}
		if offset < 0 {
			res.Warnings = append(res.Warnings, fmt.Sprintf("note %d time %q clamped to 0", i, n.Time))
			offset = 0
		}
		if offset >= loopBeats {
			res.Warnings = append(res.Warnings, fmt.Sprintf("note %d time %q is outside the loop region", i, n.Time))
			continue
		}
		length, err := ParseDuration(n.Duration, beatsPerBar, bpm)
		if err != nil {
			if n.Duration != "" {
				res.Warnings = append(res.Warnings, fmt.Sprintf("note %d duration %q replaced by %s", i, n.Duration, DefaultDuration))
			}
			length = fallback
		}
		pitch := n.Pitch
		if pitch == "" {
			pitch = defaultPitch
		}
		freq, err := ParsePitch(pitch)
		if err != nil {
			res.Warnings = append(res.Warnings, fmt.Sprintf("note %d dropped: %v", i, err))
			continue
		}
		if offset < last {
			res.Reordered = true
		}
		last = offset
		res.Events = append(res.Events, Event{
			Offset:   offset,
			Length:   length,
			Freq:     freq,
			Velocity: clamp(n.Velocity, 0, 1),
			Source:   i,
		})
	}
	if res.Reordered {
		res.Warnings = append(res.Warnings, "note times are not in order; events sorted by time")
		sort.SliceStable(res.Events, func(a, b int) bool { return res.Events[a].Offset < res.Events[b].Offset })
	}
	return res
}
