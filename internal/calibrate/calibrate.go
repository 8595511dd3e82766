// Package calibrate tunes detect's three runtime gate thresholds
// (MinQuality, NoiseThreshold, RaiseThreshold) against a labeled corpus of
// recorded note attacks, using mayfly's population-based search the same
// way this codebase's cmd/piano-fit* tools fit physical-model parameters to
// a reference recording — just over a 3-dimensional search space instead of
// tens of physical-model knobs. Offline only; never on the realtime path.
package calibrate

import (
	"fmt"
	"math"
	"math/rand"
	"strings"
	"sync"

	"github.com/cwbudde/fretdetect/config"
	"github.com/cwbudde/fretdetect/detect"
	"github.com/cwbudde/fretdetect/theory"
	"github.com/cwbudde/mayfly"
)

// Example is one labeled recording: the expected first detected note of a
// block that, fed whole to detect.State.Analyze, should yield exactly one
// OnNote for ExpectedNote (or, if ExpectedNote is theory.Invalid, no OnNote
// at all — a negative example such as a silence or noise capture).
type Example struct {
	Samples      []float32
	SampleRate   int
	ExpectedNote theory.Semitone
}

// Config controls a calibration run.
type Config struct {
	Examples []Example
	Base     config.Config // thresholds overwritten by the search; other fields kept as-is

	Variant       string // mayfly config variant, see newMayflyConfig
	Population    int
	MaxIterations int
	Seed          int64
}

// Result is the outcome of a calibration run: the best configuration found
// and the loss it achieved.
type Result struct {
	Best  config.Config
	Loss  float64
	Evals int
}

// lowerBound and upperBound narrow the search space below config.Config.Validate's
// (0,1] range: thresholds at the extremes are never useful detector settings.
const (
	lowerBound = 0.01
	upperBound = 0.99
)

// Run searches for MinQuality/NoiseThreshold/RaiseThreshold values
// minimizing missed detections, wrong-note detections, and false positives
// across cfg.Examples.
func Run(cfg Config) (Result, error) {
	if len(cfg.Examples) == 0 {
		return Result{}, fmt.Errorf("calibrate: no examples provided")
	}

	population := cfg.Population
	if population <= 0 {
		population = 20
	}
	iterations := cfg.MaxIterations
	if iterations <= 0 {
		iterations = 40
	}

	mayflyConfig, err := newMayflyConfig(strings.ToLower(cfg.Variant), population, iterations)
	if err != nil {
		return Result{}, err
	}
	mayflyConfig.Rand = rand.New(rand.NewSource(cfg.Seed))

	var mu sync.Mutex
	bestLoss := math.Inf(1)
	var bestCfg config.Config
	evals := 0

	mayflyConfig.ObjectiveFunc = func(pos []float64) float64 {
		candidate := cfg.Base
		candidate.MinQuality = denormalize(pos[0])
		candidate.NoiseThreshold = denormalize(pos[1])
		candidate.RaiseThreshold = denormalize(pos[2])

		loss := evaluate(candidate, cfg.Examples)

		mu.Lock()
		evals++
		if loss < bestLoss {
			bestLoss = loss
			bestCfg = candidate
		}
		mu.Unlock()

		return loss
	}

	if _, err := runMayfly(mayflyConfig); err != nil {
		return Result{}, err
	}

	if math.IsInf(bestLoss, 1) {
		return Result{}, fmt.Errorf("calibrate: search produced no valid candidate")
	}

	return Result{Best: bestCfg, Loss: bestLoss, Evals: evals}, nil
}

func denormalize(x float64) float64 {
	if x < 0 {
		x = 0
	}
	if x > 1 {
		x = 1
	}
	return lowerBound + x*(upperBound-lowerBound)
}

// evaluate runs every example through a fresh detect.State under candidate
// and returns a loss penalizing missed onsets, wrong-note onsets, spurious
// extra onsets, and false positives on negative examples.
func evaluate(candidate config.Config, examples []Example) float64 {
	var loss float64
	for _, ex := range examples {
		state, err := detect.NewState(ex.SampleRate, candidate)
		if err != nil {
			return math.Inf(1)
		}

		rec := &recordingConsumer{}
		reader := &sliceReader{data: floatsToBytes(ex.Samples)}
		if err := state.Analyze(reader, rec); err != nil {
			return math.Inf(1)
		}

		switch {
		case ex.ExpectedNote == theory.Invalid:
			loss += float64(len(rec.notes)) // any NoteOn on a negative example is a false positive
		case len(rec.notes) == 0:
			loss += 1.0 // missed onset
		case rec.notes[0] != ex.ExpectedNote:
			loss += 1.0 // wrong note
		default:
			loss += 0.1 * float64(len(rec.notes)-1) // penalize spurious re-attacks within one capture
		}
	}
	return loss
}

type recordingConsumer struct {
	notes []theory.Semitone
}

func (c *recordingConsumer) OnNote(note theory.Semitone, _ []theory.Semitone) {
	c.notes = append(c.notes, note)
}
func (c *recordingConsumer) OnSilence() {}

// sliceReader is the minimal ringbuf.Reader over a fixed byte slice used to
// feed one capture through detect.State.Analyze without a live producer.
type sliceReader struct {
	data    []byte
	advance int
}

func (r *sliceReader) FillCount() int    { return len(r.data) - r.advance }
func (r *sliceReader) View(n int) []byte { return r.data[r.advance : r.advance+n] }
func (r *sliceReader) Advance(n int)     { r.advance += n }

func floatsToBytes(samples []float32) []byte {
	out := make([]byte, len(samples)*4)
	for i, v := range samples {
		bits := math.Float32bits(v)
		out[i*4+0] = byte(bits)
		out[i*4+1] = byte(bits >> 8)
		out[i*4+2] = byte(bits >> 16)
		out[i*4+3] = byte(bits >> 24)
	}
	return out
}

func newMayflyConfig(variant string, pop int, iters int) (*mayfly.Config, error) {
	var c *mayfly.Config
	switch variant {
	case "", "ma":
		c = mayfly.NewDefaultConfig()
	case "desma":
		c = mayfly.NewDESMAConfig()
	case "olce":
		c = mayfly.NewOLCEConfig()
	case "eobbma":
		c = mayfly.NewEOBBMAConfig()
	case "gsasma":
		c = mayfly.NewGSASMAConfig()
	case "mpma":
		c = mayfly.NewMPMAConfig()
	case "aoblmoa":
		c = mayfly.NewAOBLMOAConfig()
	default:
		return nil, fmt.Errorf("calibrate: unsupported mayfly variant %q", variant)
	}
	c.ProblemSize = 3
	c.LowerBound = 0.0
	c.UpperBound = 1.0
	c.MaxIterations = iters
	c.NPop = pop
	c.NPopF = pop
	c.NC = 2 * pop
	c.NM = maxInt(1, int(math.Round(0.05*float64(pop))))
	return c, nil
}

func maxInt(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func runMayfly(cfg *mayfly.Config) (_ *mayfly.Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("calibrate: mayfly panic: %v", r)
		}
	}()
	return mayfly.Optimize(cfg)
}
