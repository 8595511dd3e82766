// Package config holds the typed, in-memory configuration consumed by
// detect.NewState: tuning, string/fret counts, search-frequency bounds, and
// the gate thresholds that drive the detection state machine.
package config

import (
	"fmt"

	"github.com/cwbudde/fretdetect/theory"
)

// StandardTuning is standard six-string guitar tuning (E4 B3 G3 D3 A2 E2),
// high to low (index 0 is the highest string), expressed as semitones from A0.
var StandardTuning = []theory.Semitone{43, 38, 34, 29, 24, 19}

// Config groups every runtime-tunable parameter of the detection pipeline.
type Config struct {
	Strings int
	Frets   int
	Tuning  []theory.Semitone

	SearchLow  string
	SearchHigh string

	MinQuality                 float64
	NoiseThreshold             float64
	RaiseThreshold             float64
	OctaveSubmultipleThreshold float64
	PeaksSize                  int
	StaleSeconds               float64

	// DCBlock enables a fixed 20Hz highpass ahead of pitch estimation, for
	// producers (certain audio interfaces, some ADC front ends) that leave a
	// DC offset on the input. Off by default since a clean input needs no
	// correction and the filter's startup transient costs a few hundred
	// samples of settling time.
	DCBlock bool
}

// Default returns the documented default configuration for standard
// six-string guitar.
func Default() Config {
	tuning := make([]theory.Semitone, len(StandardTuning))
	copy(tuning, StandardTuning)
	return Config{
		Strings:                    6,
		Frets:                      22,
		Tuning:                     tuning,
		SearchLow:                  "E1",
		SearchHigh:                 "E7",
		MinQuality:                 0.85,
		NoiseThreshold:             0.10,
		RaiseThreshold:             0.12,
		OctaveSubmultipleThreshold: 0.90,
		PeaksSize:                  100,
		StaleSeconds:               1.0,
	}
}

// Validate reports whether cfg is internally consistent: positive string
// count, non-negative fret count, a tuning entry per string, and thresholds
// within their documented ranges.
func (cfg Config) Validate() error {
	if cfg.Strings <= 0 {
		return fmt.Errorf("config: Strings must be > 0, got %d", cfg.Strings)
	}
	if cfg.Frets < 0 {
		return fmt.Errorf("config: Frets must be >= 0, got %d", cfg.Frets)
	}
	if len(cfg.Tuning) != cfg.Strings {
		return fmt.Errorf("config: len(Tuning) = %d, want Strings = %d", len(cfg.Tuning), cfg.Strings)
	}
	for name, v := range map[string]float64{
		"MinQuality":                 cfg.MinQuality,
		"NoiseThreshold":             cfg.NoiseThreshold,
		"RaiseThreshold":             cfg.RaiseThreshold,
		"OctaveSubmultipleThreshold": cfg.OctaveSubmultipleThreshold,
	} {
		if v <= 0 || v > 1 {
			return fmt.Errorf("config: %s must be in (0,1], got %v", name, v)
		}
	}
	if cfg.PeaksSize <= 0 {
		return fmt.Errorf("config: PeaksSize must be > 0, got %d", cfg.PeaksSize)
	}
	if cfg.StaleSeconds <= 0 {
		return fmt.Errorf("config: StaleSeconds must be > 0, got %v", cfg.StaleSeconds)
	}
	return nil
}
