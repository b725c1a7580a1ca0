package mixer

// Param is a control value that moves linearly to its target, one step
// per rendered frame.
type Param struct {
	value  float64
	target float64
	step   float64
	frames int
}

func NewParam(v float64) Param {
	return Param{value: v, target: v}
}

// Set jumps to v and cancels any ramp in progress.
func (p *Param) Set(v float64) {
	p.value, p.target = v, v
	p.frames = 0
}

// RampTo starts a linear ramp from the current value to v over frames.
func (p *Param) RampTo(v float64, frames int) {
	if frames <= 0 {
		p.Set(v)
		return
	}
	p.target = v
	p.frames = frames
	p.step = (v - p.value) / float64(frames)
}

// Next returns the value for the current frame and advances the ramp.
func (p *Param) Next() float64 {
	v := p.value
	if p.frames > 0 {
		p.frames--
		p.value += p.step
		if p.frames == 0 {
			p.value = p.target
		}
	}
	return v
}

func (p *Param) Value() float64  { return p.value }
func (p *Param) Target() float64 { return p.target }
func (p *Param) Ramping() bool   { return p.frames > 0 }
