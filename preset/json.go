// Package preset is the JSON-serializable overlay for config.Config: a
// preset file may set any strict subset of fields, and everything it leaves
// unset keeps config.Default's value.
package preset

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/theory"
)

// File is the JSON schema for detection config presets. Pointer fields make
// "unset" distinguishable from "zero".
type File struct {
	Strings *int  `json:"strings"`
	Frets   *int  `json:"frets"`
	Tuning  []int `json:"tuning"`

	SearchLow  *string `json:"search_low"`
	SearchHigh *string `json:"search_high"`

	MinQuality                 *float64 `json:"min_quality"`
	NoiseThreshold             *float64 `json:"noise_threshold"`
	RaiseThreshold             *float64 `json:"raise_threshold"`
	OctaveSubmultipleThreshold *float64 `json:"octave_submultiple_threshold"`
	PeaksSize                  *int     `json:"peaks_size"`
	StaleSeconds               *float64 `json:"stale_seconds"`
	DCBlock                    *bool    `json:"dc_block"`
}

// LoadJSON loads a preset JSON file and applies it on top of config.Default.
func LoadJSON(path string) (*config.Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var f File
	if err := json.Unmarshal(b, &f); err != nil {
		return nil, err
	}

	cfg := config.Default()
	if err := Apply(&cfg, &f); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Apply merges f onto dst in place, validating each field as it is applied.
func Apply(dst *config.Config, f *File) error {
	if dst == nil {
		return fmt.Errorf("preset: nil destination config")
	}
	if f == nil {
		return nil
	}

	if f.Strings != nil {
		if *f.Strings <= 0 {
			return fmt.Errorf("preset: strings must be > 0")
		}
		dst.Strings = *f.Strings
	}
	if f.Frets != nil {
		if *f.Frets < 0 {
			return fmt.Errorf("preset: frets must be >= 0")
		}
		dst.Frets = *f.Frets
	}
	if f.Tuning != nil {
		tuning := make([]theory.Semitone, len(f.Tuning))
		for i, v := range f.Tuning {
			tuning[i] = theory.Semitone(v)
		}
		dst.Tuning = tuning
		if f.Strings == nil {
			dst.Strings = len(tuning)
		}
	}
	if f.SearchLow != nil {
		dst.SearchLow = *f.SearchLow
	}
	if f.SearchHigh != nil {
		dst.SearchHigh = *f.SearchHigh
	}
	if f.MinQuality != nil {
		if *f.MinQuality <= 0 || *f.MinQuality > 1 {
			return fmt.Errorf("preset: min_quality must be in (0,1]")
		}
		dst.MinQuality = *f.MinQuality
	}
	if f.NoiseThreshold != nil {
		if *f.NoiseThreshold <= 0 || *f.NoiseThreshold > 1 {
			return fmt.Errorf("preset: noise_threshold must be in (0,1]")
		}
		dst.NoiseThreshold = *f.NoiseThreshold
	}
	if f.RaiseThreshold != nil {
		if *f.RaiseThreshold <= 0 || *f.RaiseThreshold > 1 {
			return fmt.Errorf("preset: raise_threshold must be in (0,1]")
		}
		dst.RaiseThreshold = *f.RaiseThreshold
	}
	if f.OctaveSubmultipleThreshold != nil {
		if *f.OctaveSubmultipleThreshold <= 0 || *f.OctaveSubmultipleThreshold > 1 {
			return fmt.Errorf("preset: octave_submultiple_threshold must be in (0,1]")
		}
		dst.OctaveSubmultipleThreshold = *f.OctaveSubmultipleThreshold
	}
	if f.PeaksSize != nil {
		if *f.PeaksSize <= 0 {
			return fmt.Errorf("preset: peaks_size must be > 0")
		}
		dst.PeaksSize = *f.PeaksSize
	}
	if f.StaleSeconds != nil {
		if *f.StaleSeconds <= 0 {
			return fmt.Errorf("preset: stale_seconds must be > 0")
		}
		dst.StaleSeconds = *f.StaleSeconds
	}
	if f.DCBlock != nil {
		dst.DCBlock = *f.DCBlock
	}

	return dst.Validate()
}
