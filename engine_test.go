package loopdeck

import (
	"bytes"
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"testing"

	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/config"
	intseq "github.com/cbegin/loopdeck-go/internal/sequencer"
	"github.com/cbegin/loopdeck-go/internal/track"
	"github.com/cbegin/loopdeck-go/internal/transport"
)

const testRate = 8000

// 4 bars at 120 bpm
const loopFrames = 8 * testRate

const twoTrackDoc = `{
  "title": "First",
  "tempo": 120,
  "tracks": [
    {"name": "Pad", "type": "polysynth", "notes": [
      {"time": "0:0:0", "pitch": "C4", "duration": "1m", "velocity": 0.8},
      {"time": "1:2:0", "pitch": "E4", "duration": "4n", "velocity": 0.8},
      {"time": "3:3:2", "pitch": "G4", "duration": "8n", "velocity": 0.8}
    ]},
    {"name": "Kick", "type": "membranesynth", "notes": [
      {"time": "0:0:0", "duration": "8n", "velocity": 1},
      {"time": "2:0:0", "duration": "8n", "velocity": 1}
    ]}
  ]
}`

const unknownTypeDoc = `{"tempo":140,"tracks":[{"type":"unknown","notes":[{"time":"0:0:0","duration":"4n","velocity":0.8}]}]}`

func testConfig() config.Config {
	cfg := config.Default()
	cfg.SampleRate = testRate
	return cfg
}

func newTestEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	opts = append([]Option{WithConfig(testConfig()), WithOutput(false)}, opts...)
	e, err := New(opts...)
	if err != nil {
		t.Fatalf("new engine: %v", err)
	}
	t.Cleanup(func() { _ = e.Close() })
	return e
}

func loadJSON(t *testing.T, e *Engine, doc string) {
	t.Helper()
	if err := e.LoadDocument([]byte(doc)); err != nil {
		t.Fatalf("load: %v", err)
	}
}

func process(e *Engine, frames int) {
	buf := make([]float32, 2*1024)
	for done := 0; done < frames; {
		n := min(1024, frames-done)
		e.Process(buf[:2*n])
		done += n
	}
}

// countingTarget wraps a track and counts what the scheduler sends it.
type countingTarget struct {
	*track.Track
	offsets []float64
}

func (c *countingTarget) Dispatch(ev composition.Event, delay int, secondsPerBeat float64) {
	c.offsets = append(c.offsets, ev.Offset)
	c.Track.Dispatch(ev, delay, secondsPerBeat)
}

func (c *countingTarget) count(offset float64) int {
	n := 0
	for _, o := range c.offsets {
		if o == offset {
			n++
		}
	}
	return n
}

func countTargets(e *Engine) []*countingTarget {
	var out []*countingTarget
	var targets []intseq.Target
	for _, t := range e.tracks {
		c := &countingTarget{Track: t}
		out = append(out, c)
		targets = append(targets, c)
	}
	e.sched.SetTargets(targets)
	return out
}

func TestFreshEngineProcess(t *testing.T) {
	e := newTestEngine(t)
	buf := make([]float32, 2*700)
	buf[0] = 1
	e.Process(buf)
	if buf[0] != 0 {
		t.Fatalf("uninitialized engine should render silence")
	}
	if err := e.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	// first block after Init, odd size to split across lookahead blocks
	e.Process(buf)
	for _, s := range buf {
		if s != 0 {
			t.Fatalf("engine without a composition produced %v", s)
		}
	}
	loadJSON(t, e, twoTrackDoc)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	e.Process(buf)
	peak := float32(0)
	for _, s := range buf {
		peak = max(peak, s, -s)
	}
	if peak == 0 {
		t.Fatalf("playing engine rendered silence")
	}
}

func TestMasterVolumeAndLoop(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetMasterVolume(-3); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	if e.MasterVolume() != testConfig().MasterGainDB || e.Loop() {
		t.Fatalf("unexpected defaults before init")
	}
	loadJSON(t, e, twoTrackDoc)
	if err := e.SetMasterVolume(-3); err != nil {
		t.Fatalf("set master: %v", err)
	}
	if e.MasterVolume() != -3 {
		t.Fatalf("master = %v, want -3", e.MasterVolume())
	}
	e.SetLoop(true)
	if !e.Loop() {
		t.Fatalf("loop flag not set")
	}
}

func TestLoadClearsAnalyser(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	_ = e.Play()
	process(e, 4000)
	loadJSON(t, e, `{"title": "Silence"}`)
	for _, b := range e.AnalysisSnapshot() {
		if b != 0 {
			t.Fatalf("spectrum of the previous composition survived a reload")
		}
	}
}

func TestLoadReplacesAllVoices(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	process(e, 2000)
	old := append([]*track.Track(nil), e.tracks...)
	if old[0].Active() == 0 || old[1].Active() == 0 {
		t.Fatalf("expected sounding voices before reload")
	}

	loadJSON(t, e, unknownTypeDoc)
	for i, tr := range old {
		if !tr.Disposed() || tr.Active() != 0 {
			t.Fatalf("old track %d still alive after reload", i)
		}
	}
	if len(e.tracks) != 1 || len(e.Tracks()) != 1 {
		t.Fatalf("expected exactly the new composition's track, got %d", len(e.tracks))
	}
	if e.State() != transport.Playing {
		t.Fatalf("reload while playing should keep playing, state %v", e.State())
	}
	if beats, bar := e.Position(); beats != 0 || bar != 0 {
		t.Fatalf("reload should restart at bar 0, got %v/%d", beats, bar)
	}
	process(e, 1000)
	if e.tracks[0].Active() == 0 {
		t.Fatalf("new composition is not sounding")
	}
}

func TestMalformedDocumentKeepsComposition(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	before := e.tracks

	err := e.LoadDocument([]byte(`{"tempo": `))
	var docErr *composition.DocumentError
	if !errors.As(err, &docErr) {
		t.Fatalf("expected a document error, got %v", err)
	}
	if err := e.LoadComposition(nil); !errors.As(err, &docErr) {
		t.Fatalf("nil document should be a document error, got %v", err)
	}
	if e.Composition().Title != "First" || len(e.tracks) != 2 || e.tracks[0] != before[0] || before[0].Disposed() {
		t.Fatalf("failed load changed the engine state")
	}
}

func TestMissingTracksLoadsEmpty(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, `{"title": "Silence", "tempo": 90}`)
	if len(e.Tracks()) != 0 || e.Tempo() != 90 {
		t.Fatalf("got %d tracks at %v bpm", len(e.Tracks()), e.Tempo())
	}
}

func TestUnknownInstrumentScenario(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, unknownTypeDoc)
	if e.Tempo() != 140 {
		t.Fatalf("tempo = %v, want 140", e.Tempo())
	}
	info := e.Tracks()
	if len(info) != 1 || info[0].Kind != "polysynth" {
		t.Fatalf("unexpected tracks %+v", info)
	}
	evs := e.tracks[0].Events()
	if len(evs) != 1 || evs[0].Offset != 0 {
		t.Fatalf("expected one event at bar 0, got %+v", evs)
	}

	targets := countTargets(e)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	process(e, 512)
	if len(targets[0].offsets) != 1 || targets[0].offsets[0] != 0 {
		t.Fatalf("expected the bar-0 event to be scheduled once, got %v", targets[0].offsets)
	}
}

func TestEachEventFiresTwiceOverTwoLoops(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	targets := countTargets(e)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	// stop just short of the third iteration's downbeat
	process(e, 2*loopFrames-100)
	for i, tgt := range targets {
		for _, ev := range e.tracks[i].Events() {
			if n := tgt.count(ev.Offset); n != 2 {
				t.Errorf("track %d event at %v fired %d times, want 2", i, ev.Offset, n)
			}
		}
	}
}

func TestWatchReportsLoops(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	ch := e.Watch()
	e.SetLoop(true)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	process(e, 2*loopFrames+1000)
	var got []int
	for len(ch) > 0 {
		ev := <-ch
		if ev.Kind == EventLoopCompleted {
			got = append(got, ev.Loop)
		}
	}
	if len(got) != 2 || got[0] != 1 || got[1] != 2 {
		t.Fatalf("loop events = %v, want [1 2]", got)
	}
	if _, bar := e.Position(); bar != 0 {
		t.Fatalf("looping position should wrap to bar 0, got bar %d", bar)
	}
}

func TestStopCancelsPendingEvents(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	if err := e.Play(); err != nil {
		t.Fatalf("play: %v", err)
	}
	process(e, 100)
	e.Stop()
	if e.State() != transport.Stopped {
		t.Fatalf("state = %v, want stopped", e.State())
	}
	targets := countTargets(e)
	process(e, loopFrames)
	if len(targets[0].offsets) != 0 {
		t.Fatalf("stopped engine scheduled %v", targets[0].offsets)
	}
	// released notes fade out with nothing new scheduled
	if e.tracks[0].Active() != 0 || e.tracks[1].Active() != 0 {
		t.Fatalf("voices still active long after stop")
	}
}

func TestToggleMuteTwiceRestores(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	before := e.Tracks()[0]
	muted, err := e.ToggleTrackMute(0)
	if err != nil || !muted {
		t.Fatalf("first toggle: muted=%v err=%v", muted, err)
	}
	muted, err = e.ToggleTrackMute(0)
	if err != nil || muted {
		t.Fatalf("second toggle: muted=%v err=%v", muted, err)
	}
	if after := e.Tracks()[0]; after != before {
		t.Fatalf("double toggle changed state: %+v -> %+v", before, after)
	}
}

func TestTrackVolumeClampsToFloor(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	if err := e.SetTrackVolume(0, -5); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if err := e.SetTrackVolume(0, -120); err != nil {
		t.Fatalf("set volume: %v", err)
	}
	if got := e.Tracks()[0].GainDB; got != -60 {
		t.Fatalf("gain = %v dB, want -60", got)
	}
}

func TestBadTrackIndex(t *testing.T) {
	e := newTestEngine(t)
	loadJSON(t, e, twoTrackDoc)
	if err := e.SetTrackVolume(2, -5); !errors.Is(err, ErrNoSuchTrack) {
		t.Fatalf("expected ErrNoSuchTrack, got %v", err)
	}
	if _, err := e.ToggleTrackMute(-1); !errors.Is(err, ErrNoSuchTrack) {
		t.Fatalf("expected ErrNoSuchTrack, got %v", err)
	}
	if err := e.SetTrackPan(5, 0); !errors.Is(err, ErrNoSuchTrack) {
		t.Fatalf("expected ErrNoSuchTrack, got %v", err)
	}
}

func TestSetTempoRange(t *testing.T) {
	e := newTestEngine(t)
	if err := e.SetTempo(120); !errors.Is(err, ErrNotInitialized) {
		t.Fatalf("expected ErrNotInitialized, got %v", err)
	}
	loadJSON(t, e, unknownTypeDoc)
	for _, bpm := range []float64{59.9, 200.1, 0, -10, math.NaN(), math.Inf(1)} {
		if err := e.SetTempo(bpm); !errors.Is(err, ErrTempoOutOfRange) {
			t.Errorf("SetTempo(%v) = %v, want ErrTempoOutOfRange", bpm, err)
		}
	}
	if e.Tempo() != 140 {
		t.Fatalf("rejected tempo changed playback to %v", e.Tempo())
	}
	for _, bpm := range []float64{60, 97.5, 200} {
		if err := e.SetTempo(bpm); err != nil {
			t.Fatalf("SetTempo(%v): %v", bpm, err)
		}
		if e.Tempo() != bpm {
			t.Fatalf("tempo = %v, want %v", e.Tempo(), bpm)
		}
	}
}

func TestRandomizeParametersKeepsPanInRange(t *testing.T) {
	e := newTestEngine(t, WithRandSource(rand.NewPCG(1, 2)))
	loadJSON(t, e, twoTrackDoc)
	changed := false
	for i := 0; i < 20; i++ {
		e.RandomizeParameters()
		for _, info := range e.Tracks() {
			if info.Pan < -1 || info.Pan > 1 {
				t.Fatalf("pan %v out of range", info.Pan)
			}
			if info.Pan != 0 {
				changed = true
			}
		}
	}
	if !changed {
		t.Fatalf("pans never moved")
	}
}

func TestAnalysisSnapshotLength(t *testing.T) {
	e := newTestEngine(t)
	if got := e.AnalysisSnapshot(); got == nil || len(got) != 0 {
		t.Fatalf("uninitialized snapshot = %v, want empty", got)
	}
	if err := e.Init(); err != nil {
		t.Fatalf("init: %v", err)
	}
	snap := e.AnalysisSnapshot()
	if len(snap) != testConfig().AnalyserBins {
		t.Fatalf("snapshot has %d bins, want %d", len(snap), testConfig().AnalyserBins)
	}
	for _, b := range snap {
		if b != 0 {
			t.Fatalf("silent engine should give a flat baseline, got %v", snap)
		}
	}

	loadJSON(t, e, twoTrackDoc)
	_ = e.Play()
	process(e, 4000)
	peak := byte(0)
	for _, b := range e.AnalysisSnapshot() {
		peak = max(peak, b)
	}
	if peak == 0 {
		t.Fatalf("playing engine produced a flat spectrum")
	}
}

func TestRecordingLifecycle(t *testing.T) {
	e := newTestEngine(t)
	if _, err := e.StopRecording(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("stop before init: %v", err)
	}
	loadJSON(t, e, twoTrackDoc)
	if _, err := e.StopRecording(); !errors.Is(err, ErrNotRecording) {
		t.Fatalf("stop without start: %v", err)
	}
	if err := e.StartRecording(); err != nil {
		t.Fatalf("start: %v", err)
	}
	if err := e.StartRecording(); !errors.Is(err, ErrAlreadyRecording) {
		t.Fatalf("second start: %v", err)
	}
	_ = e.Play()
	process(e, 3000)
	c, err := e.StopRecording()
	if err != nil {
		t.Fatalf("stop: %v", err)
	}
	if c.Frames != 3000 || !bytes.HasPrefix(c.Data, []byte("RIFF")) {
		t.Fatalf("capture has %d frames", c.Frames)
	}
}

func TestExportMIDI(t *testing.T) {
	e := newTestEngine(t)
	var buf bytes.Buffer
	if err := e.ExportMIDI(&buf, 1); !errors.Is(err, ErrNoComposition) {
		t.Fatalf("expected ErrNoComposition, got %v", err)
	}
	loadJSON(t, e, twoTrackDoc)
	if err := e.ExportMIDI(&buf, 2); err != nil {
		t.Fatalf("export: %v", err)
	}
	if !bytes.HasPrefix(buf.Bytes(), []byte("MThd")) {
		t.Fatalf("not a MIDI file")
	}
}

func TestGenerateLoadsResult(t *testing.T) {
	e := newTestEngine(t)
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (*composition.Document, error) {
		return composition.Extract("```json\n" + unknownTypeDoc + "\n```")
	})
	if err := e.Generate(context.Background(), gen, "slow jam"); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if e.Tempo() != 140 || len(e.Tracks()) != 1 {
		t.Fatalf("generated composition not loaded")
	}

	failing := GeneratorFunc(func(ctx context.Context, prompt string) (*composition.Document, error) {
		return nil, errors.New("quota")
	})
	if err := e.Generate(context.Background(), failing, "x"); err == nil {
		t.Fatalf("expected generator error")
	}
	if e.Tempo() != 140 {
		t.Fatalf("failed generation replaced the composition")
	}
}

func TestRenderComposition(t *testing.T) {
	doc, err := composition.Decode([]byte(twoTrackDoc))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	out, err := RenderComposition(doc, testConfig(), 0.5)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if len(out) != 2*testRate/2 {
		t.Fatalf("rendered %d samples", len(out))
	}
	peak := float32(0)
	for _, s := range out {
		peak = max(peak, s, -s)
	}
	if peak == 0 || peak > 1 {
		t.Fatalf("peak %v outside (0, 1]", peak)
	}
	wav := EncodeWAVFloat32LE(out, testRate, 2)
	if len(wav) != 44+4*len(out) || string(wav[:4]) != "RIFF" || string(wav[8:12]) != "WAVE" {
		t.Fatalf("bad wav header")
	}
}
