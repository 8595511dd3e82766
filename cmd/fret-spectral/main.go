// Command fret-spectral prints a harmonic-content report for a captured
// note: the strongest bin near each partial and an inharmonicity estimate,
// the offline diagnostic counterpart to the realtime detection pipeline.
package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/cwbudde/fretdetect/internal/fixture"
	"github.com/cwbudde/fretdetect/spectral"
	"github.com/cwbudde/fretdetect/theory"
)

func main() {
	input := flag.String("input", "", "WAV file of a single sustained note (required)")
	note := flag.String("note", "", "Expected note name, e.g. E2 (required)")
	sampleRate := flag.Int("sample-rate", 44100, "Analysis sample rate; the input is resampled if needed")
	harmonics := flag.Int("harmonics", 8, "Number of harmonics to report")
	flag.Parse()

	if *input == "" || *note == "" {
		fmt.Fprintln(os.Stderr, "Error: -input and -note are required")
		os.Exit(1)
	}

	fundamental, err := parseFrequency(*note)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	samples32, nativeRate, err := fixture.ReadWAVMono(*input)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error reading %q: %v\n", *input, err)
		os.Exit(1)
	}
	samples32, err = fixture.ResampleIfNeeded(samples32, nativeRate, *sampleRate)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error resampling: %v\n", err)
		os.Exit(1)
	}

	samples := make([]float64, len(samples32))
	for i, v := range samples32 {
		samples[i] = float64(v)
	}

	fmt.Printf("Input: %d frames @ %d Hz (%.2fs), expected fundamental %.2f Hz\n",
		len(samples), *sampleRate, float64(len(samples))/float64(*sampleRate), fundamental)

	report := spectral.Analyze(samples, *sampleRate, fundamental, *harmonics)
	if len(report.Partials) == 0 {
		fmt.Fprintln(os.Stderr, "Error: analysis produced no partials (input too short or invalid fundamental)")
		os.Exit(1)
	}

	fmt.Println()
	fmt.Printf("%-10s %-12s %-10s\n", "Harmonic", "Frequency", "Magnitude")
	for _, p := range report.Partials {
		expected := fundamental * float64(p.Harmonic)
		fmt.Printf("%-10d %8.2f Hz %7.1f dB  (expected %.2f Hz, drift %+.2f Hz)\n",
			p.Harmonic, p.Frequency, p.MagnitudeDB, expected, p.Frequency-expected)
	}
	fmt.Println()
	fmt.Printf("Inharmonicity: %.5f\n", report.Inharmonicity)
}

func parseFrequency(s string) (float64, error) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(s) {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	var octave int
	if _, err := fmt.Sscanf(s[i:], "%d", &octave); err != nil {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	freq, ok := theory.NoteToFrequency(s[:i], octave)
	if !ok {
		return 0, fmt.Errorf("invalid note name %q", s)
	}
	return freq, nil
}
