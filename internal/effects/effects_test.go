package effects

import (
	"errors"
	"math"
	"testing"
)

func TestDelayProducesOutput(t *testing.T) {
	d := NewDelay(44100, 0.1, 0.1, 0.5, 0.5)
	// Feed a pulse and check delayed output appears
	d.Process(1.0, 1.0)
	for i := 0; i < 4409; i++ { // ~100ms at 44100Hz
		d.Process(0, 0)
	}
	l, r := d.Process(0, 0)
	if math.Abs(float64(l)) < 0.01 || math.Abs(float64(r)) < 0.01 {
		t.Errorf("expected delayed output, got l=%f r=%f", l, r)
	}
}

func TestSyncedDelayFollowsTempo(t *testing.T) {
	d := NewSyncedDelay(48000, 0.5, 120, 0.5, 1)
	if math.Abs(d.Time()-0.25) > 1e-4 {
		t.Fatalf("8n at 120 bpm = %v s, want 0.25", d.Time())
	}
	d.SetTempo(60)
	if math.Abs(d.Time()-0.5) > 1e-4 {
		t.Fatalf("8n at 60 bpm = %v s, want 0.5", d.Time())
	}
	d.SetTempo(200)
	if math.Abs(d.Time()-0.15) > 1e-4 {
		t.Fatalf("8n at 200 bpm = %v s, want 0.15", d.Time())
	}

	fixed := NewDelay(48000, 0.1, 0.1, 0, 1)
	fixed.SetTempo(60)
	if math.Abs(fixed.Time()-0.1) > 1e-4 {
		t.Fatalf("fixed delay changed with tempo: %v", fixed.Time())
	}
}

func TestReverbProducesOutput(t *testing.T) {
	r := NewReverb(44100, 2, 0.5)
	// Feed impulse
	r.Process(1.0, 1.0)
	// After some samples, reverb tail should be present
	var maxOut float32
	for i := 0; i < 10000; i++ {
		l, _ := r.Process(0, 0)
		if l > maxOut {
			maxOut = l
		}
	}
	if maxOut < 0.001 {
		t.Error("expected reverb tail")
	}
}

func TestReverbDecayShortensTail(t *testing.T) {
	energy := func(decay float32) float64 {
		r := NewReverb(44100, decay, 1)
		r.Process(1, 1)
		for i := 0; i < 44100; i++ {
			r.Process(0, 0)
		}
		var e float64
		for i := 0; i < 4410; i++ {
			l, rr := r.Process(0, 0)
			e += float64(l*l + rr*rr)
		}
		return e
	}
	if short, long := energy(0.3), energy(3); short >= long {
		t.Fatalf("shorter decay should leave less energy after 1s: %g >= %g", short, long)
	}
}

func TestDistortionClips(t *testing.T) {
	d := NewDistortion(44100, 1, 0)
	l, r := d.Process(0.5, 0.5)
	if math.Abs(float64(l)) > 1.0 || math.Abs(float64(r)) > 1.0 {
		t.Error("distortion output should be bounded")
	}
	if math.Abs(float64(l)) < 0.01 {
		t.Error("expected non-zero distortion output")
	}
}

func TestChorusStaysBounded(t *testing.T) {
	c := NewChorus(48000, 3.5, 2, 1.5, 0.5)
	for i := 0; i < 48000; i++ {
		x := float32(math.Sin(float64(i) * 0.05))
		l, r := c.Process(x, x)
		if math.Abs(float64(l)) > 1.0001 || math.Abs(float64(r)) > 1.0001 {
			t.Fatalf("frame %d: chorus output out of range %f %f", i, l, r)
		}
	}
}

func TestChainAppliesEffectsInOrder(t *testing.T) {
	c := NewChain(
		NewDistortion(44100, 0.2, 0),
		NewDelay(44100, 0.01, 0.01, 0, 0.5),
	)
	l, r := c.Process(0.5, 0.5)
	if l == 0 || r == 0 {
		t.Error("chain should produce output")
	}
	if c.Len() != 2 {
		t.Errorf("len = %d", c.Len())
	}
}

func TestChainSetTempoReachesDelay(t *testing.T) {
	d := NewSyncedDelay(48000, 0.5, 120, 0.3, 0.3)
	c := NewChain(NewDistortion(48000, 0.1, 0), d)
	c.SetTempo(60)
	if math.Abs(d.Time()-0.5) > 1e-4 {
		t.Fatalf("chain did not retime the delay: %v", d.Time())
	}
}

func TestCompressorReducesLoud(t *testing.T) {
	c := NewCompressor(44100, -10, 4, 1, 50, 0)
	// Feed loud signal repeatedly to let envelope settle
	var out float32
	for i := 0; i < 1000; i++ {
		out, _ = c.Process(1.0, 1.0)
	}
	if out >= 1.0 {
		t.Errorf("compressor should reduce loud signals, got %f", out)
	}
}

func TestLimiterBoundsOutput(t *testing.T) {
	c := NewLimiter(48000, -1)
	ceiling := math.Pow(10, -1.0/20)
	for i := 0; i < 100; i++ {
		l, r := c.Process(4, -4)
		if math.Abs(float64(l)) > ceiling+1e-6 || math.Abs(float64(r)) > ceiling+1e-6 {
			t.Fatalf("limiter exceeded ceiling: %f %f", l, r)
		}
	}
	c.Reset()
	if l, _ := c.Process(0.1, 0.1); math.Abs(float64(l)-0.1) > 1e-6 {
		t.Fatalf("quiet input should pass through, got %f", l)
	}
}

func TestFromTag(t *testing.T) {
	for _, tag := range []string{"reverb", "Delay", "pingpong", "chorus", "distortion", "compressor"} {
		if _, err := FromTag(tag, 48000, 120); err != nil {
			t.Errorf("FromTag(%q): %v", tag, err)
		}
	}
	if _, err := FromTag("phaser", 48000, 120); !errors.Is(err, ErrUnknownEffect) {
		t.Fatalf("expected ErrUnknownEffect, got %v", err)
	}
}
