package composition

import (
	"errors"
	"math"
	"testing"
)

func TestDecodeAppliesDefaults(t *testing.T) {
	doc, err := Decode([]byte(`{"tracks":[{"type":"fmsynth","notes":[{"time":"0:0:0","duration":"4n"}]}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Tempo != DefaultTempo {
		t.Fatalf("tempo = %d, want %d", doc.Tempo, DefaultTempo)
	}
	if doc.TimeSignature != [2]int{4, 4} {
		t.Fatalf("time signature = %v", doc.TimeSignature)
	}
	tr := doc.Tracks[0]
	if tr.VolumeDB != DefaultVolumeDB || tr.Pan != 0 {
		t.Fatalf("volume/pan = %v/%v, want -5/0", tr.VolumeDB, tr.Pan)
	}
	if tr.Name != "Track 1" {
		t.Fatalf("name = %q", tr.Name)
	}
	if tr.Notes[0].Velocity != 1 {
		t.Fatalf("velocity default = %v, want 1", tr.Notes[0].Velocity)
	}
}

func TestDecodeKeepsExplicitZeroVolume(t *testing.T) {
	doc, err := Decode([]byte(`{"tempo":90,"tracks":[{"volume":0,"pan":0.5}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Tracks[0].VolumeDB != 0 {
		t.Fatalf("explicit 0 dB volume replaced with %v", doc.Tracks[0].VolumeDB)
	}
}

func TestDecodeClampsOutOfRange(t *testing.T) {
	doc, err := Decode([]byte(`{"tempo":500,"tracks":[{"volume":-120,"pan":3,"notes":[{"velocity":7}]}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Tempo != MaxTempo {
		t.Fatalf("tempo = %d, want %d", doc.Tempo, MaxTempo)
	}
	tr := doc.Tracks[0]
	if tr.VolumeDB != MinVolumeDB || tr.Pan != 1 || tr.Notes[0].Velocity != 1 {
		t.Fatalf("unexpected clamp result %+v", tr)
	}
}

func TestDecodeClampsHugeTempo(t *testing.T) {
	for _, tc := range []struct {
		in   string
		want int
	}{
		{`{"tempo":1e20}`, MaxTempo},
		{`{"tempo":-1e20}`, MinTempo},
		{`{"tempo":139.6}`, 140},
	} {
		doc, err := Decode([]byte(tc.in))
		if err != nil {
			t.Fatalf("%s: %v", tc.in, err)
		}
		if doc.Tempo != tc.want {
			t.Errorf("%s: tempo = %d, want %d", tc.in, doc.Tempo, tc.want)
		}
	}
}

func TestDecodeAcceptsQuotedNumbers(t *testing.T) {
	doc, err := Decode([]byte(`{"tempo":"140","tracks":[{"volume":"-7.5","pan":" 0.25 ","notes":[{"velocity":"0.5"}]},{"volume":"loud"}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Tempo != 140 {
		t.Fatalf("tempo = %d, want 140", doc.Tempo)
	}
	tr := doc.Tracks[0]
	if tr.VolumeDB != -7.5 || tr.Pan != 0.25 || tr.Notes[0].Velocity != 0.5 {
		t.Fatalf("unexpected track %+v", tr)
	}
	if doc.Tracks[1].VolumeDB != DefaultVolumeDB {
		t.Fatalf("unreadable volume should keep the default, got %v", doc.Tracks[1].VolumeDB)
	}

	doc, err = Decode([]byte("tempo: \"95\"\ntracks:\n  - volume: \"-3\"\n"))
	if err != nil {
		t.Fatalf("decode yaml: %v", err)
	}
	if doc.Tempo != 95 || doc.Tracks[0].VolumeDB != -3 {
		t.Fatalf("yaml quoted numbers: tempo %d volume %v", doc.Tempo, doc.Tracks[0].VolumeDB)
	}
}

func TestDecodeMissingTracksIsNotAnError(t *testing.T) {
	doc, err := Decode([]byte(`{"title":"Empty","tempo":100}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(doc.Tracks) != 0 {
		t.Fatalf("expected zero tracks, got %d", len(doc.Tracks))
	}
}

func TestDecodeRejectsMalformed(t *testing.T) {
	for _, tc := range []struct {
		name string
		in   string
	}{
		{"empty", ""},
		{"null", "null"},
		{"garbage", "{not json: [}"},
		{"scalar", `"just a string"`},
		{"array", `[1,2,3]`},
	} {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode([]byte(tc.in))
			var de *DocumentError
			if !errors.As(err, &de) {
				t.Fatalf("expected DocumentError, got %v", err)
			}
		})
	}
}

func TestDecodeYAMLFallback(t *testing.T) {
	doc, err := Decode([]byte("title: Yaml\ntempo: 140\ntracks:\n  - name: Bass\n    type: fmsynth\n    notes:\n      - time: \"0:1:0\"\n        pitch: 110\n        duration: 8n\n"))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	if doc.Title != "Yaml" || doc.Tempo != 140 || len(doc.Tracks) != 1 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if doc.Tracks[0].Notes[0].Pitch != "110" {
		t.Fatalf("pitch = %q", doc.Tracks[0].Notes[0].Pitch)
	}
}

func TestPitchAcceptsNumberAndNull(t *testing.T) {
	doc, err := Decode([]byte(`{"tracks":[{"notes":[{"pitch":440},{"pitch":null},{"pitch":"F#3"}]}]}`))
	if err != nil {
		t.Fatalf("decode: %v", err)
	}
	notes := doc.Tracks[0].Notes
	if notes[0].Pitch != "440" || notes[1].Pitch != "" || notes[2].Pitch != "F#3" {
		t.Fatalf("unexpected pitches %q %q %q", notes[0].Pitch, notes[1].Pitch, notes[2].Pitch)
	}
}

func TestParseTime(t *testing.T) {
	for _, tc := range []struct {
		tok  string
		want float64
	}{
		{"0:0:0", 0},
		{"1:0:0", 4},
		{"1:2:0", 6},
		{"0:0:2", 0.5},
		{"3:3:3", 15.75},
		{"2", 4}, // seconds at 120 bpm
		{"4n", 1},
		{"1m", 4},
		{"", 0},
	} {
		got, err := ParseTime(tc.tok, 4, 120)
		if err != nil {
			t.Fatalf("ParseTime(%q): %v", tc.tok, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseTime(%q) = %v, want %v", tc.tok, got, tc.want)
		}
	}
	if _, err := ParseTime("a:b:c", 4, 120); !errors.Is(err, ErrBadTime) {
		t.Fatalf("expected ErrBadTime, got %v", err)
	}
}

func TestParseDuration(t *testing.T) {
	for _, tc := range []struct {
		tok  string
		want float64
	}{
		{"4n", 1},
		{"8n", 0.5},
		{"16n", 0.25},
		{"8n.", 0.75},
		{"8t", 1.0 / 3},
		{"2m", 8},
		{"0:2:0", 2},
	} {
		got, err := ParseDuration(tc.tok, 4, 120)
		if err != nil {
			t.Fatalf("ParseDuration(%q): %v", tc.tok, err)
		}
		if math.Abs(got-tc.want) > 1e-9 {
			t.Errorf("ParseDuration(%q) = %v, want %v", tc.tok, got, tc.want)
		}
	}
	for _, bad := range []string{"", "0", "xn", "4q", "0:0:0"} {
		if _, err := ParseDuration(bad, 4, 120); !errors.Is(err, ErrBadDuration) {
			t.Errorf("ParseDuration(%q) expected ErrBadDuration, got %v", bad, err)
		}
	}
}

func TestParsePitch(t *testing.T) {
	for _, tc := range []struct {
		in   Pitch
		want float64
	}{
		{"A4", 440},
		{"a4", 440},
		{"C4", 261.6255653005986},
		{"A#4", 466.1637615180899},
		{"Bb4", 466.1637615180899},
		{"A3", 220},
		{"330", 330},
	} {
		got, err := ParsePitch(tc.in)
		if err != nil {
			t.Fatalf("ParsePitch(%q): %v", tc.in, err)
		}
		if math.Abs(got-tc.want) > 1e-6 {
			t.Errorf("ParsePitch(%q) = %v, want %v", tc.in, got, tc.want)
		}
	}
	for _, bad := range []Pitch{"", "H2", "C", "-5", "Cx"} {
		if _, err := ParsePitch(bad); !errors.Is(err, ErrBadPitch) {
			t.Errorf("ParsePitch(%q) expected ErrBadPitch, got %v", bad, err)
		}
	}
	if FreqToMidi(440) != 69 || FreqToMidi(261.63) != 60 {
		t.Fatalf("FreqToMidi mismatch")
	}
}

func TestExtractStripsFences(t *testing.T) {
	reply := "Here you go:\n```json\n{\"title\":\"Fenced\",\"tempo\":128,\"tracks\":[]}\n```\nEnjoy!"
	doc, err := Extract(reply)
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if doc.Title != "Fenced" || doc.Tempo != 128 {
		t.Fatalf("unexpected document %+v", doc)
	}
	if _, err := Extract("no braces at all"); !errors.Is(err, ErrNoJSONObject) {
		t.Fatalf("expected ErrNoJSONObject, got %v", err)
	}
}

func TestResolveTrackDefensiveClamping(t *testing.T) {
	// Past the loop, clamped with a bad duration, unparseable time, and a
	// missing pitch.
	ts := TrackSpec{Notes: []NoteEvent{
		{Time: "0:1:0", Pitch: "C4", Duration: "4n", Velocity: 0.8},
		{Time: "5:0:0", Pitch: "C4", Duration: "4n", Velocity: 1},
		{Time: "-1:0:0", Pitch: "D4", Duration: "bogus", Velocity: 1},
		{Time: "junk", Pitch: "E4", Duration: "4n", Velocity: 1},
		{Time: "1:0:0", Duration: "8n", Velocity: 0.5},
	}}
	res := ResolveTrack(ts, 4, 120, 16, "C2")
	if len(res.Events) != 3 {
		t.Fatalf("expected 3 events, got %d (%+v)", len(res.Events), res.Events)
	}
	if !res.Reordered {
		t.Fatalf("expected reorder to be detected")
	}
	if res.Events[0].Offset != 0 || res.Events[1].Offset != 1 || res.Events[2].Offset != 4 {
		t.Fatalf("unexpected offsets %+v", res.Events)
	}
	if res.Events[0].Source != 2 || res.Events[0].Length != 0.5 {
		t.Fatalf("clamped note should sort first with the default duration: %+v", res.Events[0])
	}
	if math.Abs(res.Events[2].Freq-MidiToFreq(36)) > 1e-9 {
		t.Fatalf("default pitch not applied: %v", res.Events[2].Freq)
	}
	if len(res.Warnings) < 4 {
		t.Fatalf("expected warnings for every adjustment, got %v", res.Warnings)
	}
}
