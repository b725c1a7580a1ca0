package sequencer

import (
	"math"
	"sort"

	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/transport"
)

// Target receives scheduled events. *track.Track implements it.
type Target interface {
	Events() []composition.Event
	Dispatch(ev composition.Event, delay int, secondsPerBeat float64)
	Cancel()
	Release()
}

// EventKind identifies scheduler lifecycle events.
type EventKind int

const (
	EventLoopCompleted EventKind = iota
)

type Options struct {
	OnEvent func(EventKind)
}

// Scheduler turns loop-relative events into frame-stamped triggers. Each
// block is planned before it is rendered: the clock is advanced across the
// block and every event occurrence inside it is dispatched with its exact
// frame offset, so dispatch runs ahead of the sound by up to one block.
//
// Events repeat every loop region for as long as the clock runs. Block
// windows are half-open and contiguous, so an occurrence on a block or
// loop boundary fires exactly once.
type Scheduler struct {
	clock   *transport.Clock
	targets []Target
	beats   []float64 // timeline position of each frame in the block
	onEvent func(EventKind)
}

func New(clock *transport.Clock) *Scheduler {
	return NewWithOptions(clock, Options{})
}

func NewWithOptions(clock *transport.Clock, opts Options) *Scheduler {
	return &Scheduler{clock: clock, onEvent: opts.OnEvent}
}

// SetTargets replaces the scheduled set. Old targets are not touched.
func (s *Scheduler) SetTargets(targets []Target) {
	s.targets = targets
}

// Plan advances the clock by up to n frames and dispatches the events that
// fall inside them. It returns how many frames the clock actually ran,
// which is less than n when the transport is not playing.
func (s *Scheduler) Plan(n int) int {
	s.beats = s.beats[:0]
	for i := 0; i < n; i++ {
		b, ok := s.clock.Advance()
		if !ok {
			break
		}
		s.beats = append(s.beats, b)
	}
	if len(s.beats) == 0 {
		return 0
	}
	start, end := s.beats[0], s.clock.Elapsed()
	loop := s.clock.LoopBeats()
	spb := s.clock.SecondsPerBeat()
	for _, t := range s.targets {
		for _, ev := range t.Events() {
			k := math.Ceil((start - ev.Offset) / loop)
			for at := k*loop + ev.Offset; at < end; at += loop {
				if at < start {
					continue
				}
				t.Dispatch(ev, sort.SearchFloat64s(s.beats, at), spb)
			}
		}
	}
	if s.onEvent != nil && start > 0 && math.Floor(end/loop) > math.Floor(start/loop) {
		s.onEvent(EventLoopCompleted)
	}
	return len(s.beats)
}

// Cancel drops every dispatched but unsounded trigger and releases
// sounding notes on all targets.
func (s *Scheduler) Cancel() {
	for _, t := range s.targets {
		t.Cancel()
		t.Release()
	}
}
