package composition

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	DefaultTempo    = 120
	MinTempo        = 60
	MaxTempo        = 200
	DefaultVolumeDB = -5
	MinVolumeDB     = -60
	MaxVolumeDB     = 0
)

// Document is a composition as produced by the generative service. It is
// treated as immutable once decoded.
type Document struct {
	Title         string      `json:"title" yaml:"title"`
	Tempo         int         `json:"tempo" yaml:"tempo"`
	TimeSignature [2]int      `json:"timeSignature" yaml:"timeSignature"`
	Key           string      `json:"key" yaml:"key"`
	Tracks        []TrackSpec `json:"tracks" yaml:"tracks"`
}

type TrackSpec struct {
	Name       string      `json:"name" yaml:"name"`
	Instrument string      `json:"type" yaml:"type"`
	VolumeDB   float64     `json:"volume" yaml:"volume"`
	Pan        float64     `json:"pan" yaml:"pan"`
	Notes      []NoteEvent `json:"notes" yaml:"notes"`
	Effects    []string    `json:"effects" yaml:"effects"`
}

type NoteEvent struct {
	Time     string  `json:"time" yaml:"time"`
	Pitch    Pitch   `json:"pitch" yaml:"pitch"`
	Duration string  `json:"duration" yaml:"duration"`
	Velocity float64 `json:"velocity" yaml:"velocity"`
}

// Pitch is a note name ("C4"), a frequency, or empty for "use the voice
// default".
type Pitch string

func (p *Pitch) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*p = ""
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*p = Pitch(strings.TrimSpace(s))
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("pitch must be a string, number or null: %w", err)
	}
	*p = Pitch(strconv.FormatFloat(f, 'f', -1, 64))
	return nil
}

func (p *Pitch) UnmarshalYAML(n *yaml.Node) error {
	if n.Tag == "!!null" {
		*p = ""
		return nil
	}
	*p = Pitch(strings.TrimSpace(n.Value))
	return nil
}

// number is a numeric field that also accepts a quoted number, as
// generators sometimes emit. Null, missing and unparseable values are
// reported as absent so that the field keeps its default.
type number struct {
	v  float64
	ok bool
}

func (n *number) set(s string) {
	f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil || math.IsNaN(f) {
		*n = number{}
		return
	}
	*n = number{v: f, ok: true}
}

func (n *number) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) == 0 || string(b) == "null" {
		*n = number{}
		return nil
	}
	if b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n.set(s)
		return nil
	}
	var f float64
	if err := json.Unmarshal(b, &f); err != nil {
		return fmt.Errorf("expected a number: %w", err)
	}
	*n = number{v: f, ok: true}
	return nil
}

func (n *number) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number", node.Line)
	}
	if node.Tag == "!!null" {
		*n = number{}
		return nil
	}
	n.set(node.Value)
	return nil
}

func (n number) value() (float64, bool) { return n.v, n.ok }

// DocumentError reports a composition that could not be loaded at all.
type DocumentError struct {
	Err error
}

func (e *DocumentError) Error() string { return "malformed composition document: " + e.Err.Error() }

func (e *DocumentError) Unwrap() error { return e.Err }

var (
	ErrEmptyDocument = errors.New("empty document")
	ErrNoJSONObject  = errors.New("no JSON object found")
)

// wire mirrors the document with optional numeric fields so that missing
// values can be told apart from explicit zeros.
type wireDocument struct {
	Title         string      `json:"title" yaml:"title"`
	Tempo         number      `json:"tempo" yaml:"tempo"`
	TimeSignature []int       `json:"timeSignature" yaml:"timeSignature"`
	Key           string      `json:"key" yaml:"key"`
	Tracks        []wireTrack `json:"tracks" yaml:"tracks"`
}

type wireTrack struct {
	Name    string     `json:"name" yaml:"name"`
	Type    string     `json:"type" yaml:"type"`
	Volume  number     `json:"volume" yaml:"volume"`
	Pan     number     `json:"pan" yaml:"pan"`
	Notes   []wireNote `json:"notes" yaml:"notes"`
	Effects []string   `json:"effects" yaml:"effects"`
}

type wireNote struct {
	Time     string `json:"time" yaml:"time"`
	Pitch    Pitch  `json:"pitch" yaml:"pitch"`
	Note     Pitch  `json:"note" yaml:"note"`
	Duration string `json:"duration" yaml:"duration"`
	Velocity number `json:"velocity" yaml:"velocity"`
}

// Decode parses a document from JSON, falling back to YAML. Missing fields
// take their documented defaults and out-of-range values are clamped.
func Decode(data []byte) (*Document, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 || string(trimmed) == "null" {
		return nil, &DocumentError{Err: ErrEmptyDocument}
	}
	var w *wireDocument
	errJSON := json.Unmarshal(trimmed, &w)
	if errJSON != nil {
		w = nil
		if errYAML := yaml.Unmarshal(trimmed, &w); errYAML != nil {
			return nil, &DocumentError{Err: fmt.Errorf("not JSON (%v) or YAML (%w)", errJSON, errYAML)}
		}
	}
	if w == nil {
		return nil, &DocumentError{Err: ErrEmptyDocument}
	}
	return w.normalize(), nil
}

func (w *wireDocument) normalize() *Document {
	doc := &Document{
		Title:         strings.TrimSpace(w.Title),
		Tempo:         DefaultTempo,
		TimeSignature: [2]int{4, 4},
		Key:           strings.TrimSpace(w.Key),
	}
	if tempo, ok := w.Tempo.value(); ok && tempo != 0 {
		doc.Tempo = ClampTempo(int(math.Round(clamp(tempo, MinTempo, MaxTempo))))
	}
	if len(w.TimeSignature) == 2 && w.TimeSignature[0] > 0 && w.TimeSignature[1] > 0 {
		doc.TimeSignature = [2]int{w.TimeSignature[0], w.TimeSignature[1]}
	}
	doc.Tracks = make([]TrackSpec, 0, len(w.Tracks))
	for i, wt := range w.Tracks {
		ts := TrackSpec{
			Name:       strings.TrimSpace(wt.Name),
			Instrument: strings.TrimSpace(wt.Type),
			VolumeDB:   DefaultVolumeDB,
			Effects:    wt.Effects,
		}
		if ts.Name == "" {
			ts.Name = "Track " + strconv.Itoa(i+1)
		}
		if v, ok := wt.Volume.value(); ok {
			ts.VolumeDB = ClampVolume(v)
		}
		if p, ok := wt.Pan.value(); ok {
			ts.Pan = ClampPan(p)
		}
		ts.Notes = make([]NoteEvent, 0, len(wt.Notes))
		for _, wn := range wt.Notes {
			n := NoteEvent{
				Time:     strings.TrimSpace(wn.Time),
				Pitch:    wn.Pitch,
				Duration: strings.TrimSpace(wn.Duration),
				Velocity: 1,
			}
			if n.Pitch == "" {
				n.Pitch = wn.Note
			}
			if v, ok := wn.Velocity.value(); ok {
				n.Velocity = clamp(v, 0, 1)
			}
			ts.Notes = append(ts.Notes, n)
		}
		doc.Tracks = append(doc.Tracks, ts)
	}
	return doc
}

// BeatsPerBar returns the bar length in quarter notes.
func (d *Document) BeatsPerBar() float64 {
	num, den := d.TimeSignature[0], d.TimeSignature[1]
	if num <= 0 || den <= 0 {
		return 4
	}
	return float64(num) * 4 / float64(den)
}

func ClampTempo(bpm int) int {
	if bpm < MinTempo {
		return MinTempo
	}
	if bpm > MaxTempo {
		return MaxTempo
	}
	return bpm
}

func ClampVolume(db float64) float64 { return clamp(db, MinVolumeDB, MaxVolumeDB) }

func ClampPan(p float64) float64 { return clamp(p, -1, 1) }

func clamp(v, lo, hi float64) float64 {
	if v != v {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
