package loopdeck

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cbegin/loopdeck-go/internal/analysis"
	intaudio "github.com/cbegin/loopdeck-go/internal/audio"
	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/config"
	"github.com/cbegin/loopdeck-go/internal/midiexport"
	"github.com/cbegin/loopdeck-go/internal/mixer"
	"github.com/cbegin/loopdeck-go/internal/recorder"
	intseq "github.com/cbegin/loopdeck-go/internal/sequencer"
	"github.com/cbegin/loopdeck-go/internal/track"
	"github.com/cbegin/loopdeck-go/internal/transport"
)

var (
	ErrNotInitialized  = errors.New("engine not initialized")
	ErrTempoOutOfRange = fmt.Errorf("tempo outside [%d, %d] bpm", composition.MinTempo, composition.MaxTempo)
	ErrNoSuchTrack     = errors.New("no such track")
	ErrNoComposition   = errors.New("no composition loaded")

	ErrAlreadyRecording = recorder.ErrAlreadyRecording
	ErrNotRecording     = recorder.ErrNotRecording
)

// PlaybackEvent is delivered on the channel returned by Watch.
type PlaybackEvent struct {
	Kind int // EventLoopCompleted
	Loop int // completed loop iterations since the last stop
}

const (
	EventLoopCompleted int = iota
)

// TrackInfo is a snapshot of one track's mixer state.
type TrackInfo struct {
	Index  int
	Name   string
	Kind   string
	GainDB float64
	Pan    float64
	Muted  bool
}

// Engine turns a composition document into sound. Control calls and the
// render callback share one lock, so any goroutine may drive it, but the
// control surface expects a single owner issuing commands.
type Engine struct {
	mu        sync.Mutex
	cfg       config.Config
	log       *slog.Logger
	rng       *rand.Rand
	output    bool
	ready     bool
	clock     *transport.Clock
	sched     *intseq.Scheduler
	bus       *mixer.Bus
	analyser  *analysis.Analyser
	rec       *recorder.Recorder
	out       *intaudio.Output
	doc       *composition.Document
	tracks    []*track.Track
	loops     int
	eventCh   chan PlaybackEvent
	eventChMu sync.Mutex
}

// New creates an engine. Nothing is allocated for audio until Init.
func New(opts ...Option) (*Engine, error) {
	ec := defaultEngineConfig()
	for _, opt := range opts {
		opt(&ec)
	}
	if err := ec.cfg.Validate(); err != nil {
		return nil, err
	}
	output := ec.cfg.OutputEnabled()
	if ec.output != nil {
		output = *ec.output
	}
	src := ec.rand
	if src == nil {
		src = rand.NewPCG(rand.Uint64(), rand.Uint64())
	}
	return &Engine{
		cfg:    ec.cfg,
		log:    ec.log,
		rng:    rand.New(src),
		output: output,
	}, nil
}

// Init builds the clock, master bus, analyser and recorder and, when output
// is enabled, opens the audio device. Calling it again is a no-op.
func (e *Engine) Init() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.initLocked()
}

func (e *Engine) initLocked() error {
	if e.ready {
		return nil
	}
	cfg := e.cfg
	delayBeats, err := composition.ParseDuration(cfg.DelayNote, 4, composition.DefaultTempo)
	if err != nil {
		e.log.Warn("bad delay note, using 8n", "delayNote", cfg.DelayNote, "err", err)
		delayBeats = 0.5
	}
	e.clock = transport.New(cfg.SampleRate, cfg.TempoRampSec)
	e.clock.Configure(composition.DefaultTempo, cfg.LoopBars, 4)
	e.sched = intseq.NewWithOptions(e.clock, intseq.Options{OnEvent: e.onSchedulerEvent})
	e.bus = mixer.NewBus(mixer.BusConfig{
		SampleRate:     cfg.SampleRate,
		MasterGainDB:   cfg.MasterGainDB,
		ReverbDecaySec: cfg.ReverbDecaySec,
		ReverbSend:     cfg.ReverbSend,
		DelayBeats:     delayBeats,
		DelayFeedback:  cfg.DelayFeedback,
		DelaySend:      cfg.DelaySend,
		BPM:            composition.DefaultTempo,
		GainRampSec:    cfg.GainRampSec,
	})
	e.analyser = analysis.New(cfg.AnalyserBins, cfg.AnalyserSmoothing)
	e.rec = recorder.New(cfg.SampleRate)
	e.bus.AddTap(e.analyser)
	e.bus.AddTap(e.rec)

	if e.output {
		// the device pulls through Process, which takes e.mu
		out, err := intaudio.NewOutput(cfg.SampleRate, engineSource{e}, 0)
		if err != nil {
			return fmt.Errorf("init audio output: %w", err)
		}
		e.out = out
		e.out.Play()
	}
	e.ready = true
	e.log.Debug("engine initialized", "sampleRate", cfg.SampleRate, "output", e.output)
	return nil
}

// engineSource lets the output stream pull from the engine without
// exporting a second entry point.
type engineSource struct{ e *Engine }

func (s engineSource) Process(dst []float32) { s.e.Process(dst) }

// LoadDocument decodes data and loads it. A malformed document fails with
// a *composition.DocumentError and leaves the current composition intact.
func (e *Engine) LoadDocument(data []byte) error {
	doc, err := composition.Decode(data)
	if err != nil {
		return err
	}
	return e.LoadComposition(doc)
}

// LoadComposition stops the transport, disposes every track of the
// previous composition and builds the new one. If the transport was
// playing it keeps playing the new composition from bar 0.
func (e *Engine) LoadComposition(doc *composition.Document) error {
	if doc == nil {
		return &composition.DocumentError{Err: composition.ErrEmptyDocument}
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if err := e.initLocked(); err != nil {
		return err
	}

	wasPlaying := e.clock.State() == transport.Playing
	e.sched.Cancel()
	e.clock.Stop()
	for _, t := range e.tracks {
		t.Dispose()
	}
	e.tracks = nil
	e.sched.SetTargets(nil)
	e.bus.Reset()
	e.analyser.Reset()

	bpm := float64(composition.ClampTempo(doc.Tempo))
	beatsPerBar := doc.BeatsPerBar()
	e.clock.Configure(bpm, e.cfg.LoopBars, beatsPerBar)
	e.bus.SetTempo(bpm)
	opts := track.Options{
		SampleRate:   e.cfg.SampleRate,
		BeatsPerBar:  beatsPerBar,
		BPM:          bpm,
		LoopBeats:    e.clock.LoopBeats(),
		GainRampSec:  e.cfg.GainRampSec,
		PanRampSec:   e.cfg.PanRampSec,
		TrackEffects: e.cfg.TrackEffectsEnabled(),
	}
	targets := make([]intseq.Target, 0, len(doc.Tracks))
	for _, ts := range doc.Tracks {
		t := track.FromSpec(ts, opts, e.log)
		e.tracks = append(e.tracks, t)
		targets = append(targets, t)
	}
	e.sched.SetTargets(targets)
	e.doc = doc
	e.loops = 0

	e.log.Info("composition loaded", "title", doc.Title, "tracks", len(e.tracks), "tempo", bpm)
	if wasPlaying {
		e.clock.Play()
	}
	return nil
}

func (e *Engine) Play() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ErrNotInitialized
	}
	e.clock.Play()
	e.log.Debug("transport", "state", e.clock.State())
	return nil
}

// Pause holds the position and releases sounding notes.
func (e *Engine) Pause() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return
	}
	e.clock.Pause()
	e.sched.Cancel()
	e.log.Debug("transport", "state", e.clock.State())
}

// Stop cancels every pending event and rewinds to bar 0.
func (e *Engine) Stop() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return
	}
	e.sched.Cancel()
	e.clock.Stop()
	e.loops = 0
	e.log.Debug("transport", "state", e.clock.State())
}

func (e *Engine) SetLoop(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ready {
		e.clock.SetLoop(enabled)
	}
}

func (e *Engine) Loop() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ready && e.clock.Loop()
}

// SetMasterVolume ramps the master stage to db. Unlike track volumes it
// is not clamped; the limiter bounds the output.
func (e *Engine) SetMasterVolume(db float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ErrNotInitialized
	}
	e.bus.SetMasterGain(db)
	return nil
}

// MasterVolume returns the master gain in dB.
func (e *Engine) MasterVolume() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return e.cfg.MasterGainDB
	}
	return e.bus.MasterGainDB()
}

// SetTempo ramps playback to bpm. Values outside [60, 200] are rejected
// with ErrTempoOutOfRange and leave the tempo unchanged.
func (e *Engine) SetTempo(bpm float64) error {
	if math.IsNaN(bpm) || bpm < composition.MinTempo || bpm > composition.MaxTempo {
		return fmt.Errorf("%w: %v", ErrTempoOutOfRange, bpm)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return ErrNotInitialized
	}
	e.clock.SetTempo(bpm)
	e.bus.SetTempo(bpm)
	for _, t := range e.tracks {
		t.SetTempo(bpm)
	}
	return nil
}

// Tempo returns the target tempo in bpm.
func (e *Engine) Tempo() float64 {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return composition.DefaultTempo
	}
	return e.clock.Tempo()
}

func (e *Engine) trackLocked(index int) (*track.Track, error) {
	if index < 0 || index >= len(e.tracks) {
		return nil, fmt.Errorf("%w: %d", ErrNoSuchTrack, index)
	}
	return e.tracks[index], nil
}

// SetTrackVolume ramps a track's gain to db, clamped to [-60, 0].
func (e *Engine) SetTrackVolume(index int, db float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(index)
	if err != nil {
		return err
	}
	t.SetGain(db)
	return nil
}

// SetTrackPan ramps a track's pan to p, clamped to [-1, 1].
func (e *Engine) SetTrackPan(index int, p float64) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(index)
	if err != nil {
		return err
	}
	t.SetPan(p)
	return nil
}

// ToggleTrackMute flips a track's mute and returns whether it is now muted.
func (e *Engine) ToggleTrackMute(index int) (bool, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	t, err := e.trackLocked(index)
	if err != nil {
		return false, err
	}
	return t.ToggleMute(), nil
}

// RandomizeParameters sends every track to a random pan in [-1, 1] over
// the configured pan ramp.
func (e *Engine) RandomizeParameters() {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, t := range e.tracks {
		t.SetPan(e.rng.Float64()*2 - 1)
	}
}

// Tracks returns the mixer state of every loaded track.
func (e *Engine) Tracks() []TrackInfo {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]TrackInfo, len(e.tracks))
	for i, t := range e.tracks {
		ch := t.Channel()
		out[i] = TrackInfo{
			Index:  i,
			Name:   t.Name(),
			Kind:   t.Kind().String(),
			GainDB: ch.GainDB(),
			Pan:    ch.Pan(),
			Muted:  ch.Muted(),
		}
	}
	return out
}

// Composition returns the loaded document, or nil.
func (e *Engine) Composition() *composition.Document {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.doc
}

func (e *Engine) State() transport.State {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return transport.Stopped
	}
	return e.clock.State()
}

// Position returns the transport position in beats and its bar.
func (e *Engine) Position() (beats float64, bar int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		return 0, 0
	}
	return e.clock.Position(), e.clock.Bar()
}

// AnalysisSnapshot returns one byte per analyser bin, or an empty slice
// before Init.
func (e *Engine) AnalysisSnapshot() []byte {
	e.mu.Lock()
	a := e.analyser
	e.mu.Unlock()
	if a == nil {
		return []byte{}
	}
	return a.Snapshot()
}

// StartRecording begins capturing the master output. It fails with
// ErrAlreadyRecording while a capture is running.
func (e *Engine) StartRecording() error {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	if rec == nil {
		return ErrNotInitialized
	}
	if err := rec.Start(); err != nil {
		return err
	}
	e.log.Info("recording started")
	return nil
}

// StopRecording ends the capture and returns it. It fails with
// ErrNotRecording when no capture is running.
func (e *Engine) StopRecording() (*recorder.Capture, error) {
	e.mu.Lock()
	rec := e.rec
	e.mu.Unlock()
	if rec == nil {
		return nil, ErrNotRecording
	}
	c, err := rec.Stop()
	if err != nil {
		return nil, err
	}
	e.log.Info("recording stopped", "file", c.Filename(), "duration", c.Duration().Round(time.Millisecond))
	return c, nil
}

// Process renders interleaved stereo into dst. It is the render callback:
// events are planned one lookahead block ahead of the audio they start in.
func (e *Engine) Process(dst []float32) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.ready {
		clear(dst)
		return
	}
	frames := len(dst) / 2
	for off := 0; off < frames; {
		n := min(e.cfg.LookaheadFrames, frames-off)
		e.sched.Plan(n)
		e.bus.Begin(n)
		for _, t := range e.tracks {
			l, r := t.Render(n)
			e.bus.Add(l, r)
		}
		e.bus.End(dst[2*off : 2*(off+n)])
		off += n
	}
}

// Render produces seconds of output offline, advancing the engine exactly
// as the device would.
func (e *Engine) Render(seconds float64) ([]float32, error) {
	e.mu.Lock()
	ready := e.ready
	e.mu.Unlock()
	if !ready {
		return nil, ErrNotInitialized
	}
	frames := e.cfg.Frames(seconds)
	out := make([]float32, 2*max(frames, 0))
	e.Process(out)
	return out, nil
}

// ExportMIDI writes the loaded composition as a Standard MIDI File with
// the loop region repeated loops times, at the current tempo.
func (e *Engine) ExportMIDI(w io.Writer, loops int) error {
	e.mu.Lock()
	if e.doc == nil {
		e.mu.Unlock()
		return ErrNoComposition
	}
	song := midiexport.Song{
		Title:     e.doc.Title,
		BPM:       e.clock.Tempo(),
		Meter:     e.doc.TimeSignature,
		LoopBeats: e.clock.LoopBeats(),
		Loops:     loops,
	}
	for _, t := range e.tracks {
		song.Tracks = append(song.Tracks, midiexport.Track{Name: t.Name(), Kind: t.Kind(), Events: t.Events()})
	}
	e.mu.Unlock()
	return midiexport.Export(w, song)
}

// Watch returns a channel that receives playback events. The channel is
// buffered (cap 8) and events are dropped when it is full. Only the most
// recent Watch channel receives events.
func (e *Engine) Watch() <-chan PlaybackEvent {
	ch := make(chan PlaybackEvent, 8)
	e.eventChMu.Lock()
	e.eventCh = ch
	e.eventChMu.Unlock()
	return ch
}

// onSchedulerEvent runs inside Process with e.mu held.
func (e *Engine) onSchedulerEvent(kind intseq.EventKind) {
	if kind != intseq.EventLoopCompleted {
		return
	}
	e.loops++
	e.log.Debug("loop completed", "loop", e.loops)
	e.sendEvent(PlaybackEvent{Kind: EventLoopCompleted, Loop: e.loops})
}

func (e *Engine) sendEvent(ev PlaybackEvent) {
	e.eventChMu.Lock()
	ch := e.eventCh
	e.eventChMu.Unlock()
	if ch != nil {
		select {
		case ch <- ev:
		default:
		}
	}
}

// Close stops playback, disposes every track and closes the device.
func (e *Engine) Close() error {
	e.mu.Lock()
	if e.ready {
		e.sched.Cancel()
		e.clock.Stop()
	}
	for _, t := range e.tracks {
		t.Dispose()
	}
	e.tracks = nil
	out := e.out
	e.out = nil
	e.mu.Unlock()
	// closing the device may wait for a pending Process call
	if out != nil {
		return out.Close()
	}
	return nil
}
