package effects

// Delay is a stereo feedback delay. Its time can change while running, up
// to the buffer length chosen at construction.
type Delay struct {
	sampleRate float64
	bufL, bufR []float32
	pos        int
	length     int
	beats      float64 // tempo-synced length in beats, 0 when fixed
	feedback   float32
	wet        float32
}

// NewDelay creates a delay of delaySec seconds with room for maxSec.
func NewDelay(sampleRate int, delaySec, maxSec float64, feedback, wet float32) *Delay {
	if maxSec < delaySec {
		maxSec = delaySec
	}
	size := int(maxSec*float64(sampleRate)) + 1
	if size < 2 {
		size = 2
	}
	d := &Delay{
		sampleRate: float64(sampleRate),
		bufL:       make([]float32, size),
		bufR:       make([]float32, size),
		feedback:   clamp(feedback, 0, 0.95),
		wet:        clamp(wet, 0, 1),
	}
	d.SetTime(delaySec)
	return d
}

// NewSyncedDelay creates a delay of beats beats that follows SetTempo. The
// buffer covers the slowest supported tempo.
func NewSyncedDelay(sampleRate int, beats, bpm float64, feedback, wet float32) *Delay {
	const slowest = 60.0
	d := NewDelay(sampleRate, beats*60/bpm, beats*60/slowest, feedback, wet)
	d.beats = beats
	return d
}

// SetTime changes the delay length, clamped to the buffer.
func (d *Delay) SetTime(sec float64) {
	n := int(sec * d.sampleRate)
	if n < 1 {
		n = 1
	}
	if n > len(d.bufL)-1 {
		n = len(d.bufL) - 1
	}
	d.length = n
}

// Time returns the delay length in seconds.
func (d *Delay) Time() float64 { return float64(d.length) / d.sampleRate }

func (d *Delay) SetTempo(bpm float64) {
	if d.beats > 0 && bpm > 0 {
		d.SetTime(d.beats * 60 / bpm)
	}
}

func (d *Delay) Process(l, r float32) (float32, float32) {
	read := d.pos - d.length
	if read < 0 {
		read += len(d.bufL)
	}
	delL := d.bufL[read]
	delR := d.bufR[read]
	d.bufL[d.pos] = l + delL*d.feedback
	d.bufR[d.pos] = r + delR*d.feedback
	d.pos++
	if d.pos >= len(d.bufL) {
		d.pos = 0
	}
	return l*(1-d.wet) + delL*d.wet, r*(1-d.wet) + delR*d.wet
}

func (d *Delay) Reset() {
	clear(d.bufL)
	clear(d.bufR)
	d.pos = 0
}
