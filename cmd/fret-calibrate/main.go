// Command fret-calibrate fits detect's three gate thresholds
// (MinQuality, NoiseThreshold, RaiseThreshold) to a labeled corpus of
// recorded note captures using mayfly's population search, the offline
// counterpart to the realtime detection pipeline.
package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/internal/calibrate"
	"github.com/cwbudde/fretdetect/internal/fixture"
	"github.com/cwbudde/fretdetect/preset"
	"github.com/cwbudde/fretdetect/theory"
)

// manifestEntry is one line of the calibration manifest: a WAV capture and
// the note it should resolve to, or an empty Note for a negative example
// (silence, string noise) that must produce no NoteOn.
type manifestEntry struct {
	Path string `json:"path"`
	Note string `json:"note"`
}

type runReport struct {
	ManifestPath   string  `json:"manifest_path"`
	PresetPath     string  `json:"preset_path"`
	OutputPreset   string  `json:"output_preset"`
	SampleRate     int     `json:"sample_rate"`
	DurationSec    float64 `json:"elapsed_seconds"`
	Evaluations    int     `json:"evaluations"`
	MayflyVariant  string  `json:"mayfly_variant"`
	BestLoss       float64 `json:"best_loss"`
	MinQuality     float64 `json:"min_quality"`
	NoiseThreshold float64 `json:"noise_threshold"`
	RaiseThreshold float64 `json:"raise_threshold"`
}

func main() {
	manifestPath := flag.String("manifest", "", "Manifest JSON listing labeled captures (required)")
	presetPath := flag.String("preset", "", "Base preset JSON path (optional, defaults to config.Default())")
	outputPreset := flag.String("output-preset", "fitted.json", "Path to write the best fitted preset JSON")
	reportPath := flag.String("report", "", "Optional report JSON path (default: <output-preset>.report.json)")
	sampleRate := flag.Int("sample-rate", 44100, "Analysis sample rate; captures are resampled if needed")
	seed := flag.Int64("seed", 1, "Random seed")
	mayflyVariant := flag.String("mayfly-variant", "desma", "Mayfly variant: ma|desma|olce|eobbma|gsasma|mpma|aoblmoa")
	mayflyPop := flag.Int("mayfly-pop", 20, "Male and female population size")
	mayflyIters := flag.Int("mayfly-iters", 60, "Mayfly iteration count")
	flag.Parse()

	if *manifestPath == "" {
		die("manifest is required")
	}

	base := config.Default()
	if *presetPath != "" {
		loaded, err := preset.LoadJSON(*presetPath)
		if err != nil {
			die("failed to load preset: %v", err)
		}
		base = *loaded
	}

	entries, err := loadManifest(*manifestPath)
	if err != nil {
		die("failed to load manifest: %v", err)
	}

	examples := make([]calibrate.Example, 0, len(entries))
	for _, e := range entries {
		samples, nativeRate, err := fixture.ReadWAVMono(e.Path)
		if err != nil {
			die("failed to read %q: %v", e.Path, err)
		}
		samples, err = fixture.ResampleIfNeeded(samples, nativeRate, *sampleRate)
		if err != nil {
			die("failed to resample %q: %v", e.Path, err)
		}

		expected := theory.Invalid
		if e.Note != "" {
			expected, err = parseNote(e.Note)
			if err != nil {
				die("entry %q: %v", e.Path, err)
			}
		}

		examples = append(examples, calibrate.Example{
			Samples:      samples,
			SampleRate:   *sampleRate,
			ExpectedNote: expected,
		})
	}

	fmt.Printf("Loaded %d examples from %s\n", len(examples), *manifestPath)

	start := time.Now()
	result, err := calibrate.Run(calibrate.Config{
		Examples:      examples,
		Base:          base,
		Variant:       *mayflyVariant,
		Population:    *mayflyPop,
		MaxIterations: *mayflyIters,
		Seed:          *seed,
	})
	if err != nil {
		die("calibration failed: %v", err)
	}
	elapsed := time.Since(start).Seconds()

	fmt.Printf("Done evals=%d elapsed=%.1fs best_loss=%.4f min_quality=%.4f noise=%.4f raise=%.4f\n",
		result.Evals, elapsed, result.Loss,
		result.Best.MinQuality, result.Best.NoiseThreshold, result.Best.RaiseThreshold)

	if err := writePresetJSON(*outputPreset, result.Best); err != nil {
		die("failed to write output preset: %v", err)
	}

	rep := runReport{
		ManifestPath:   *manifestPath,
		PresetPath:     *presetPath,
		OutputPreset:   *outputPreset,
		SampleRate:     *sampleRate,
		DurationSec:    elapsed,
		Evaluations:    result.Evals,
		MayflyVariant:  *mayflyVariant,
		BestLoss:       result.Loss,
		MinQuality:     result.Best.MinQuality,
		NoiseThreshold: result.Best.NoiseThreshold,
		RaiseThreshold: result.Best.RaiseThreshold,
	}
	rp := *reportPath
	if rp == "" {
		rp = *outputPreset + ".report.json"
	}
	if err := writeJSON(rp, rep); err != nil {
		die("failed to write report: %v", err)
	}
}

func loadManifest(path string) ([]manifestEntry, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var entries []manifestEntry
	if err := json.Unmarshal(b, &entries); err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("manifest %q contains no entries", path)
	}
	return entries, nil
}

func parseNote(s string) (theory.Semitone, error) {
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
	semi, _, ok := theory.FrequencyToSemitone(freq)
	if !ok {
		return 0, fmt.Errorf("note %q out of range", s)
	}
	return semi, nil
}

func writePresetJSON(path string, cfg config.Config) error {
	type out struct {
		Strings                    int     `json:"strings"`
		Frets                      int     `json:"frets"`
		Tuning                     []int   `json:"tuning"`
		SearchLow                  string  `json:"search_low"`
		SearchHigh                 string  `json:"search_high"`
		MinQuality                 float64 `json:"min_quality"`
		NoiseThreshold             float64 `json:"noise_threshold"`
		RaiseThreshold             float64 `json:"raise_threshold"`
		OctaveSubmultipleThreshold float64 `json:"octave_submultiple_threshold"`
		PeaksSize                  int     `json:"peaks_size"`
		StaleSeconds               float64 `json:"stale_seconds"`
		DCBlock                    bool    `json:"dc_block"`
	}
	tuning := make([]int, len(cfg.Tuning))
	for i, v := range cfg.Tuning {
		tuning[i] = int(v)
	}
	return writeJSON(path, out{
		Strings:                    cfg.Strings,
		Frets:                      cfg.Frets,
		Tuning:                     tuning,
		SearchLow:                  cfg.SearchLow,
		SearchHigh:                 cfg.SearchHigh,
		MinQuality:                 cfg.MinQuality,
		NoiseThreshold:             cfg.NoiseThreshold,
		RaiseThreshold:             cfg.RaiseThreshold,
		OctaveSubmultipleThreshold: cfg.OctaveSubmultipleThreshold,
		PeaksSize:                  cfg.PeaksSize,
		StaleSeconds:               cfg.StaleSeconds,
		DCBlock:                    cfg.DCBlock,
	})
}

func writeJSON(path string, v any) error {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	b = append(b, '\n')
	return os.WriteFile(path, b, 0o644)
}

func die(format string, args ...any) {
	fmt.Fprintf(os.Stderr, format+"\n", args...)
	os.Exit(1)
}
