// Package detect implements the monophonic guitar pitch detection state
// machine: gating a block's period estimate on quality and playability,
// tracking amplitude envelopes for re-attack detection, and reporting
// NoteOn/NoteOff transitions to a Consumer.
package detect

import (
	"fmt"
	"strconv"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/dsp"
	"github.com/cwbudde/fretdetect/pitch"
	"github.com/cwbudde/fretdetect/ringbuf"
	"github.com/cwbudde/fretdetect/theory"
)

// Consumer receives detection events from State.Analyze, invoked
// synchronously on the analyzer's goroutine.
type Consumer interface {
	OnNote(note theory.Semitone, frets []theory.Semitone)
	OnSilence()
}

// State is the per-session detection state machine. It is owned exclusively
// by whichever goroutine calls Analyze; it is not safe for concurrent use.
type State struct {
	cfg        config.Config
	sampleRate int

	minPeriod int
	maxPeriod int

	staleSamples int

	nacBuf  *pitch.NACBuffer
	dcBlock *dsp.Biquad

	peaks    []float64
	lastPeak int

	lastDetected   theory.Semitone
	droppedSamples int
}

// NewState builds a detection session for the given sample rate and
// configuration. Zero-valued fields of cfg (SearchLow/SearchHigh, Tuning,
// Strings, Frets) are filled with their documented defaults before
// validation. It returns an error if sampleRate <= 0 or cfg does not
// validate once defaults are applied.
func NewState(sampleRate int, cfg config.Config) (*State, error) {
	if sampleRate <= 0 {
		return nil, fmt.Errorf("detect: sampleRate must be > 0, got %d", sampleRate)
	}

	if cfg.SearchLow == "" {
		cfg.SearchLow = "E1"
	}
	if cfg.SearchHigh == "" {
		cfg.SearchHigh = "E7"
	}
	if cfg.Tuning == nil {
		cfg.Tuning = config.StandardTuning
	}
	if cfg.Strings == 0 {
		cfg.Strings = 6
	}
	if cfg.Frets == 0 {
		cfg.Frets = 22
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	fLow, ok := parseFrequency(cfg.SearchLow)
	if !ok {
		return nil, fmt.Errorf("detect: invalid SearchLow %q", cfg.SearchLow)
	}
	fHigh, ok := parseFrequency(cfg.SearchHigh)
	if !ok {
		return nil, fmt.Errorf("detect: invalid SearchHigh %q", cfg.SearchHigh)
	}
	if fHigh <= fLow {
		return nil, fmt.Errorf("detect: SearchHigh frequency must exceed SearchLow frequency")
	}

	minPeriod := int(float64(sampleRate) / fHigh)
	maxPeriod := int(float64(sampleRate)/fLow) + 1
	if minPeriod <= 1 {
		minPeriod = 2
	}

	s := &State{
		cfg:            cfg,
		sampleRate:     sampleRate,
		minPeriod:      minPeriod,
		maxPeriod:      maxPeriod,
		staleSamples:   int(cfg.StaleSeconds * float64(sampleRate)),
		nacBuf:         pitch.NewNACBuffer(),
		peaks:          make([]float64, cfg.PeaksSize),
		lastPeak:       cfg.PeaksSize - 1,
		lastDetected:   theory.Invalid,
		droppedSamples: 0,
	}
	if cfg.DCBlock {
		s.dcBlock = dsp.NewHighpass(20.0, float32(sampleRate), 0.707)
	}
	return s, nil
}

// parseFrequency parses a note name like "E1" or "C#4" into its reference
// frequency.
func parseFrequency(s string) (float64, bool) {
	i := len(s)
	for i > 0 && s[i-1] >= '0' && s[i-1] <= '9' {
		i--
	}
	if i == 0 || i == len(s) {
		return 0, false
	}
	octave, err := strconv.Atoi(s[i:])
	if err != nil {
		return 0, false
	}
	return theory.NoteToFrequency(s[:i], octave)
}

// Analyze treats every sample ring currently holds as one analysis block,
// gates it on periodicity quality and fretboard playability, reports
// transitions to consumer, and then releases the whole block. It never
// blocks. Each call allocates the decoded float32 view, the estimator's
// prefix-sum scratch, and the fret slice; none of these allocations is per
// sample.
//
// Analyze returns nil on success, including blocks filtered out by a gate.
// A non-nil error is reserved for fatal consumer-level failures; none are
// currently defined.
func (s *State) Analyze(ring ringbuf.Reader, consumer Consumer) error {
	fr := ringbuf.NewFloat32Reader(ring)

	availableSamples := fr.FillCount()
	if availableSamples < 2*s.maxPeriod {
		return nil
	}

	if s.droppedSamples > s.staleSamples {
		consumer.OnSilence()
		s.lastDetected = theory.Invalid
		s.droppedSamples = 0
	}

	x := fr.ViewFloat32(availableSamples)
	if s.dcBlock != nil {
		for i, v := range x {
			x[i] = s.dcBlock.Process(v)
		}
	}

	result := pitch.EstimatePeriod(x, s.minPeriod, s.maxPeriod, s.nacBuf, s.cfg.OctaveSubmultipleThreshold)
	if !result.Ok || result.PeriodInt <= 0 || result.Quality < s.cfg.MinQuality {
		s.droppedSamples += availableSamples
		fr.Advance(availableSamples)
		return nil
	}

	freq := float64(s.sampleRate) / result.Period
	note, _, ok := theory.FrequencyToSemitone(freq)
	if !ok {
		s.droppedSamples += availableSamples
		fr.Advance(availableSamples)
		return nil
	}

	frets, countValid := theory.NoteToFrets(note, s.cfg.Tuning, s.cfg.Frets)
	if countValid == 0 {
		s.droppedSamples += availableSamples
		fr.Advance(availableSamples)
		return nil
	}

	periodInt := result.PeriodInt
	var quickRaise, minSurpassed bool
	for j := 0; j+periodInt <= availableSamples; j += periodInt {
		var peakJ float64
		for i := 0; i < periodInt; i++ {
			v := float64(x[j+i])
			if v < 0 {
				v = -v
			}
			if v > peakJ {
				peakJ = v
			}
		}

		if peakJ-s.peaks[s.lastPeak] > s.cfg.RaiseThreshold {
			quickRaise = true
		}

		s.lastPeak = (s.lastPeak + 1) % len(s.peaks)
		s.peaks[s.lastPeak] = peakJ

		if peakJ > s.cfg.NoiseThreshold {
			minSurpassed = true
		}
	}

	s.droppedSamples = 0
	fr.Advance(availableSamples)

	if !minSurpassed {
		consumer.OnSilence()
		s.lastDetected = theory.Invalid
		return nil
	}

	report := quickRaise || s.lastDetected == theory.Invalid
	if !report {
		delta := note - s.lastDetected
		if delta < 0 {
			delta = -delta
		}
		delta %= 12
		if delta != 0 && delta != 7 {
			report = true
		}
	}

	if report {
		consumer.OnNote(note, frets)
		s.lastDetected = note
	}

	return nil
}
