// Command fret-monitor feeds a WAV recording through the detection pipeline
// and prints each NoteOn/NoteOff event with its fret position, the way an
// onstage tuner overlay would consume the core library.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/detect"
	"github.com/cwbudde/fretdetect/internal/fixture"
	"github.com/cwbudde/fretdetect/preset"
	"github.com/cwbudde/fretdetect/ringbuf"
	"github.com/cwbudde/fretdetect/theory"
)

func main() {
	input := flag.String("input", "", "WAV file to analyze (required)")
	presetPath := flag.String("preset", "", "Preset JSON file path (optional, defaults to config.Default())")
	sampleRate := flag.Int("sample-rate", 44100, "Analysis sample rate in Hz; the input is resampled if needed")
	blockFrames := flag.Int("block", 1024, "Frames fed to the ring per Analyze iteration")
	flag.Parse()

	if *input == "" {
		fmt.Fprintln(os.Stderr, "Error: -input is required")
		os.Exit(1)
	}

	var cfg config.Config
	if *presetPath != "" {
		loaded, err := preset.LoadJSON(*presetPath)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error loading preset %q: %v\n", *presetPath, err)
			os.Exit(1)
		}
		cfg = *loaded
	} else {
		cfg = config.Default()
	}

	samples, nativeRate, err := fixture.ReadWAVMono(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", *input, err)
		os.Exit(1)
	}
	samples, err = fixture.ResampleIfNeeded(samples, nativeRate, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resampling: %v\n", err)
		os.Exit(1)
	}

	state, err := detect.NewState(*sampleRate, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error initializing detector: %v\n", err)
		os.Exit(1)
	}

	// The session owns the cancellation token; Analyze itself takes none,
	// since it honors cancellation only at block boundaries (the caller's
	// loop, not the analysis call, is where ctx.Err() is checked).
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	ring := ringbuf.NewSPSC(1 << 20)
	consumer := &printingConsumer{}

	pos := 0
loop:
	for pos < len(samples) {
		select {
		case <-ctx.Done():
			fmt.Fprintln(os.Stderr, "Interrupted, draining final block")
			break loop
		default:
		}

		end := pos + *blockFrames
		if end > len(samples) {
			end = len(samples)
		}
		ringbuf.WriteFloat32(ring, samples[pos:end])
		pos = end

		if err := state.Analyze(ring, consumer); err != nil {
			fmt.Fprintf(os.Stderr, "Error during analysis: %v\n", err)
			os.Exit(1)
		}
	}
	// Drain whatever remains buffered, even on cancellation, so trailing
	// samples are never silently dropped.
	if err := state.Analyze(ring, consumer); err != nil {
		fmt.Fprintf(os.Stderr, "Error during analysis: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Processed %d frames, %d NoteOn, %d OnSilence\n", len(samples), consumer.notes, consumer.silences)
}

type printingConsumer struct {
	notes    int
	silences int
}

func (c *printingConsumer) OnNote(note theory.Semitone, frets []theory.Semitone) {
	c.notes++
	fmt.Printf("NoteOn  semitone=%d frets=%v\n", note, frets)
}

func (c *printingConsumer) OnSilence() {
	c.silences++
	fmt.Println("Silence")
}
