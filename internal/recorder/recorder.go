package recorder

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

var (
	ErrAlreadyRecording = errors.New("recorder: already recording")
	ErrNotRecording     = errors.New("recorder: not recording")
)

const channels = 2

// Recorder taps the master bus and captures everything written between
// Start and Stop. At most one capture is active at a time.
type Recorder struct {
	mu         sync.Mutex
	sampleRate int
	now        func() time.Time
	recording  bool
	samples    []float32 // interleaved stereo
	started    time.Time
}

type Option func(*Recorder)

// WithClock replaces time.Now for capture timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Recorder) {
		r.now = now
	}
}

func New(sampleRate int, opts ...Option) *Recorder {
	r := &Recorder{sampleRate: sampleRate, now: time.Now}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Start begins a capture. It fails with ErrAlreadyRecording if one is
// running.
func (r *Recorder) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.recording {
		return ErrAlreadyRecording
	}
	r.recording = true
	r.samples = r.samples[:0]
	r.started = r.now()
	return nil
}

func (r *Recorder) Recording() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.recording
}

// Write appends a stereo block while recording and is a no-op otherwise.
func (r *Recorder) Write(l, rt []float32) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.recording {
		return
	}
	for i := range l {
		r.samples = append(r.samples, l[i], rt[i])
	}
}

// Stop ends the capture and hands the encoded audio to the caller. It
// fails with ErrNotRecording when no capture is running.
func (r *Recorder) Stop() (*Capture, error) {
	r.mu.Lock()
	if !r.recording {
		r.mu.Unlock()
		return nil, ErrNotRecording
	}
	r.recording = false
	samples := r.samples
	r.samples = nil
	started, stopped := r.started, r.now()
	r.mu.Unlock()

	data, err := EncodeWAV(samples, r.sampleRate, channels)
	if err != nil {
		return nil, fmt.Errorf("encode capture: %w", err)
	}
	return &Capture{
		Data:       data,
		SampleRate: r.sampleRate,
		Channels:   channels,
		Frames:     len(samples) / channels,
		StartedAt:  started,
		StoppedAt:  stopped,
	}, nil
}

// Capture is a finished recording in WAV form. It belongs to the caller.
type Capture struct {
	Data       []byte
	SampleRate int
	Channels   int
	Frames     int
	StartedAt  time.Time
	StoppedAt  time.Time
}

// Filename is a timestamped name for the capture, e.g.
// loopdeck-20250102-150405.wav.
func (c *Capture) Filename() string {
	return "loopdeck-" + c.StartedAt.Format("20060102-150405") + ".wav"
}

// Duration is the captured audio length.
func (c *Capture) Duration() time.Duration {
	if c.SampleRate <= 0 {
		return 0
	}
	return time.Duration(c.Frames) * time.Second / time.Duration(c.SampleRate)
}

func (c *Capture) WriteTo(w io.Writer) (int64, error) {
	n, err := w.Write(c.Data)
	return int64(n), err
}

// Save writes the capture into dir under Filename and returns the path.
func (c *Capture) Save(dir string) (string, error) {
	path := filepath.Join(dir, c.Filename())
	f, err := os.Create(path)
	if err != nil {
		return "", err
	}
	if _, err := c.WriteTo(f); err != nil {
		f.Close()
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return path, nil
}
