package mixer

import (
	"github.com/viterin/vek/vek32"

	"github.com/cbegin/loopdeck-go/internal/effects"
)

// Tap receives every rendered master block. Taps run on the render thread
// and must not block.
type Tap interface {
	Write(l, r []float32)
}

type BusConfig struct {
	SampleRate     int
	MasterGainDB   float64
	ReverbDecaySec float64
	ReverbSend     float64
	DelayBeats     float64
	DelayFeedback  float64
	DelaySend      float64
	BPM            float64
	GainRampSec    float64
}

// Bus is the master: track outputs are summed, sent to a reverb and a
// tempo-synced delay at fixed levels, scaled by the master gain and
// limited before reaching the taps.
type Bus struct {
	sampleRate int
	sumL, sumR []float32
	wetL, wetR []float32
	reverb     *effects.Reverb
	delay      *effects.Delay
	reverbSend float32
	delaySend  float32
	masterDB   float64
	master     Param
	rampFrames int
	limiter    *effects.Compressor
	taps       []Tap
}

func NewBus(cfg BusConfig) *Bus {
	b := &Bus{
		sampleRate: cfg.SampleRate,
		reverb:     effects.NewReverb(cfg.SampleRate, float32(cfg.ReverbDecaySec), 1),
		delay:      effects.NewSyncedDelay(cfg.SampleRate, cfg.DelayBeats, cfg.BPM, float32(cfg.DelayFeedback), 1),
		reverbSend: float32(cfg.ReverbSend),
		delaySend:  float32(cfg.DelaySend),
		masterDB:   cfg.MasterGainDB,
		master:     NewParam(DBToGain(cfg.MasterGainDB)),
		rampFrames: int(cfg.GainRampSec * float64(cfg.SampleRate)),
		limiter:    effects.NewLimiter(cfg.SampleRate, -0.3),
	}
	return b
}

// AddTap registers t to receive master output.
func (b *Bus) AddTap(t Tap) {
	b.taps = append(b.taps, t)
}

// SetMasterGain ramps the master stage to db. The master is not clamped
// to the channel range.
func (b *Bus) SetMasterGain(db float64) {
	b.masterDB = db
	b.master.RampTo(DBToGain(db), b.rampFrames)
}

func (b *Bus) MasterGainDB() float64 { return b.masterDB }

// SetTempo retimes the delay send.
func (b *Bus) SetTempo(bpm float64) {
	b.delay.SetTempo(bpm)
}

// Begin clears the summing buffers for a block of n frames.
func (b *Bus) Begin(n int) {
	b.sumL = zeroed(b.sumL, n)
	b.sumR = zeroed(b.sumR, n)
}

// Add mixes one track's block into the sum.
func (b *Bus) Add(l, r []float32) {
	vek32.Add_Inplace(b.sumL, l[:len(b.sumL)])
	vek32.Add_Inplace(b.sumR, r[:len(b.sumR)])
}

// End runs the send effects, master gain and limiter over the summed
// block, feeds the taps and writes interleaved stereo into dst.
func (b *Bus) End(dst []float32) {
	n := len(b.sumL)
	b.wetL = zeroed(b.wetL, n)
	b.wetR = zeroed(b.wetR, n)
	for i := 0; i < n; i++ {
		l, r := b.sumL[i], b.sumR[i]
		rl, rr := b.reverb.Process(l, r)
		dl, dr := b.delay.Process(l, r)
		b.wetL[i] = rl*b.reverbSend + dl*b.delaySend
		b.wetR[i] = rr*b.reverbSend + dr*b.delaySend
	}
	vek32.Add_Inplace(b.sumL, b.wetL)
	vek32.Add_Inplace(b.sumR, b.wetR)
	for i := 0; i < n; i++ {
		g := float32(b.master.Next())
		b.sumL[i], b.sumR[i] = b.limiter.Process(b.sumL[i]*g, b.sumR[i]*g)
	}
	for _, t := range b.taps {
		t.Write(b.sumL, b.sumR)
	}
	for i := 0; i < n && 2*i+1 < len(dst); i++ {
		dst[2*i] = b.sumL[i]
		dst[2*i+1] = b.sumR[i]
	}
}

// Reset clears effect tails, e.g. when a new composition is loaded.
func (b *Bus) Reset() {
	b.reverb.Reset()
	b.delay.Reset()
	b.limiter.Reset()
}

// zeroed returns buf resized to n and cleared, growing it when needed.
func zeroed(buf []float32, n int) []float32 {
	if cap(buf) < n {
		buf = make([]float32, n)
	}
	return vek32.Zeros_Into(buf[:n], n)
}
