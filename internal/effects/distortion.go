package effects

import "math"

// Distortion is tanh waveshaping followed by an optional lowpass to tame
// the added harmonics. Output is normalised so a full-scale input stays at
// full scale.
type Distortion struct {
	drive    float64
	makeup   float32
	lpfAlpha float32
	lpfL     float32
	lpfR     float32
}

// NewDistortion creates a distortion. amount in [0, 1] sets the drive,
// lpfCutoff in Hz enables the output filter when positive.
func NewDistortion(sampleRate int, amount, lpfCutoff float32) *Distortion {
	amount = clamp(amount, 0, 1)
	d := &Distortion{drive: 1 + 20*float64(amount)}
	d.makeup = float32(1 / math.Tanh(d.drive))
	if lpfCutoff > 0 && lpfCutoff < float32(sampleRate)/2 {
		rc := 1.0 / (2.0 * math.Pi * float64(lpfCutoff))
		dt := 1.0 / float64(sampleRate)
		d.lpfAlpha = float32(dt / (rc + dt))
	}
	return d
}

func (d *Distortion) Process(l, r float32) (float32, float32) {
	l = float32(math.Tanh(float64(l)*d.drive)) * d.makeup
	r = float32(math.Tanh(float64(r)*d.drive)) * d.makeup
	if d.lpfAlpha > 0 {
		d.lpfL += d.lpfAlpha * (l - d.lpfL)
		d.lpfR += d.lpfAlpha * (r - d.lpfR)
		l = d.lpfL
		r = d.lpfR
	}
	return l, r
}

func (d *Distortion) Reset() {
	d.lpfL = 0
	d.lpfR = 0
}
