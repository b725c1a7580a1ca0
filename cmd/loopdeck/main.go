package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"os/signal"
	"strings"

	"github.com/cbegin/loopdeck-go"
	"github.com/cbegin/loopdeck-go/internal/composition"
	"github.com/cbegin/loopdeck-go/internal/config"
)

func main() {
	var (
		docPath    = flag.String("file", "", "composition document (JSON or YAML); - reads stdin")
		cfgPath    = flag.String("config", "", "engine config file (YAML)")
		loops      = flag.Int("loops", 2, "stop after N loops (0 = loop until interrupted)")
		recordDir  = flag.String("record", "", "record playback and save the WAV into this directory")
		renderPath = flag.String("render", "", "render -loops loops offline to this WAV file instead of playing")
		midiPath   = flag.String("midi", "", "export the composition as a MIDI file")
		debug      = flag.Bool("debug", false, "debug logging")
		tempo      = flag.Int("tempo", 0, "override the document tempo (60-200 bpm)")
		master     = flag.Float64("master", math.NaN(), "master volume in dB (default from config)")
		raw        = flag.Bool("extract", false, "treat the input as free-form generator text and extract the document from it")
	)
	flag.Parse()

	cfg := config.Default()
	if *cfgPath != "" {
		var err error
		if cfg, err = config.Load(*cfgPath); err != nil {
			fatal(err)
		}
	}
	level := cfg.SlogLevel()
	if *debug {
		level = slog.LevelDebug
	}
	log := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(log)

	doc, err := readDocument(*docPath, *raw)
	if err != nil {
		fatal(err)
	}
	if *tempo != 0 {
		if *tempo < composition.MinTempo || *tempo > composition.MaxTempo {
			fatal(fmt.Errorf("%w: %d", loopdeck.ErrTempoOutOfRange, *tempo))
		}
		doc.Tempo = *tempo
	}

	if *renderPath != "" {
		if err := render(doc, cfg, *loops, *renderPath); err != nil {
			fatal(err)
		}
		if *midiPath != "" {
			if err := exportMIDI(doc, cfg, *loops, *midiPath); err != nil {
				fatal(err)
			}
		}
		return
	}

	e, err := loopdeck.New(loopdeck.WithConfig(cfg), loopdeck.WithLogger(log))
	if err != nil {
		fatal(err)
	}
	defer e.Close()
	if err := e.LoadComposition(doc); err != nil {
		fatal(err)
	}
	if *midiPath != "" {
		if err := writeMIDI(e, *loops, *midiPath); err != nil {
			fatal(err)
		}
	}
	if !math.IsNaN(*master) {
		if err := e.SetMasterVolume(*master); err != nil {
			fatal(err)
		}
	}
	if *recordDir != "" {
		if err := e.StartRecording(); err != nil {
			fatal(err)
		}
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	ch := e.Watch()
	e.SetLoop(true)
	if err := e.Play(); err != nil {
		fatal(err)
	}
	fmt.Printf("playing at %.0f bpm, master %.1f dB, loop %v\n", e.Tempo(), e.MasterVolume(), e.Loop())
	for _, t := range e.Tracks() {
		fmt.Printf("%d %-16s %-14s %6.1f dB pan %+.2f\n", t.Index, t.Name, t.Kind, t.GainDB, t.Pan)
	}

wait:
	for {
		select {
		case <-ctx.Done():
			break wait
		case ev := <-ch:
			if ev.Kind != loopdeck.EventLoopCompleted {
				continue
			}
			fmt.Printf("loop %d completed\n", ev.Loop)
			if *loops > 0 && ev.Loop >= *loops {
				break wait
			}
		}
	}

	if *recordDir != "" {
		c, err := e.StopRecording()
		if err != nil {
			fatal(err)
		}
		path, err := c.Save(*recordDir)
		if err != nil {
			fatal(err)
		}
		fmt.Println("saved", path)
	}
	e.Stop()
}

func readDocument(path string, extract bool) (*composition.Document, error) {
	var (
		data []byte
		err  error
	)
	switch strings.TrimSpace(path) {
	case "":
		return nil, errors.New("missing -file")
	case "-":
		data, err = io.ReadAll(os.Stdin)
	default:
		data, err = os.ReadFile(path)
	}
	if err != nil {
		return nil, err
	}
	if extract {
		return composition.Extract(string(data))
	}
	return composition.Decode(data)
}

func loopSeconds(doc *composition.Document, cfg config.Config) float64 {
	bpm := float64(composition.ClampTempo(doc.Tempo))
	return float64(cfg.LoopBars) * doc.BeatsPerBar() * 60 / bpm
}

func render(doc *composition.Document, cfg config.Config, loops int, path string) error {
	if loops <= 0 {
		loops = 1
	}
	seconds := float64(loops) * loopSeconds(doc, cfg)
	out, err := loopdeck.RenderComposition(doc, cfg, seconds)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, loopdeck.EncodeWAVFloat32LE(out, cfg.SampleRate, 2), 0o644); err != nil {
		return err
	}
	fmt.Printf("rendered %.1fs to %s\n", seconds, path)
	return nil
}

func exportMIDI(doc *composition.Document, cfg config.Config, loops int, path string) error {
	e, err := loopdeck.New(loopdeck.WithConfig(cfg), loopdeck.WithOutput(false))
	if err != nil {
		return err
	}
	defer e.Close()
	if err := e.LoadComposition(doc); err != nil {
		return err
	}
	return writeMIDI(e, loops, path)
}

func writeMIDI(e *loopdeck.Engine, loops int, path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := e.ExportMIDI(f, max(loops, 1)); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

func fatal(err error) {
	slog.Error(err.Error())
	os.Exit(1)
}
