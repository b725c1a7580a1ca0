package transport

import "math"

type State int

const (
	Stopped State = iota
	Playing
	Paused
)

func (s State) String() string {
	switch s {
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	default:
		return "stopped"
	}
}

// Clock owns musical time. Positions are in beats (quarter notes). It is
// advanced one frame at a time by the render loop and mutated by a single
// control owner; it does no locking of its own.
type Clock struct {
	sampleRate  float64
	bpm         float64
	target      float64
	rampStep    float64
	rampFrames  int
	rampSec     float64
	beatsPerBar float64
	loopBars    int
	loop        bool
	state       State
	elapsed     float64
}

func New(sampleRate int, rampSec float64) *Clock {
	c := &Clock{
		sampleRate: float64(sampleRate),
		rampSec:    rampSec,
	}
	c.Configure(120, 4, 4)
	return c
}

// Configure sets tempo and loop region immediately and stops the clock.
func (c *Clock) Configure(bpm float64, loopBars int, beatsPerBar float64) {
	if loopBars <= 0 {
		loopBars = 4
	}
	if beatsPerBar <= 0 {
		beatsPerBar = 4
	}
	c.bpm = bpm
	c.target = bpm
	c.rampFrames = 0
	c.loopBars = loopBars
	c.beatsPerBar = beatsPerBar
	c.Stop()
}

func (c *Clock) Play() {
	c.state = Playing
}

// Pause holds the position. It only has an effect while playing.
func (c *Clock) Pause() {
	if c.state == Playing {
		c.state = Paused
	}
}

// Stop is valid from any state and rewinds to bar 0.
func (c *Clock) Stop() {
	c.state = Stopped
	c.elapsed = 0
}

// SetTempo ramps linearly to bpm over the configured ramp time without
// moving the position.
func (c *Clock) SetTempo(bpm float64) {
	c.target = bpm
	frames := int(c.rampSec * c.sampleRate)
	if frames <= 0 {
		c.bpm = bpm
		c.rampFrames = 0
		return
	}
	c.rampFrames = frames
	c.rampStep = (bpm - c.bpm) / float64(frames)
}

func (c *Clock) SetLoop(enabled bool) { c.loop = enabled }

func (c *Clock) Loop() bool { return c.loop }

func (c *Clock) State() State { return c.state }

// Tempo returns the tempo the clock is heading to.
func (c *Clock) Tempo() float64 { return c.target }

// CurrentTempo returns the instantaneous tempo, which differs from Tempo
// while a ramp is running.
func (c *Clock) CurrentTempo() float64 { return c.bpm }

func (c *Clock) SecondsPerBeat() float64 { return 60 / c.bpm }

func (c *Clock) BeatsPerBar() float64 { return c.beatsPerBar }

// LoopBeats is the loop region length in beats.
func (c *Clock) LoopBeats() float64 { return float64(c.loopBars) * c.beatsPerBar }

// Elapsed is the monotonic timeline position since the last stop.
func (c *Clock) Elapsed() float64 { return c.elapsed }

// Position is the transport position, wrapped into the loop region when
// looping is enabled.
func (c *Clock) Position() float64 {
	if !c.loop {
		return c.elapsed
	}
	return math.Mod(c.elapsed, c.LoopBeats())
}

// Bar returns the zero-based bar of Position.
func (c *Clock) Bar() int {
	return int(c.Position() / c.beatsPerBar)
}

// Advance moves one frame forward and returns the timeline position at the
// start of that frame. ok is false when the clock is not running.
func (c *Clock) Advance() (beat float64, ok bool) {
	beat = c.elapsed
	if c.state != Playing {
		return beat, false
	}
	c.elapsed += c.bpm / 60 / c.sampleRate
	if c.rampFrames > 0 {
		c.rampFrames--
		c.bpm += c.rampStep
		if c.rampFrames == 0 {
			c.bpm = c.target
		}
	}
	return beat, true
}
