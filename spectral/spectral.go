// Package spectral is an offline diagnostic: harmonic-content analysis of a
// captured note, never on the realtime detection path. It reuses this
// codebase's FFT-plan-cache idiom (fast real plan with a safe fallback)
// rather than allocating a plan per call.
package spectral

import (
	"errors"
	"math"
	"math/cmplx"
	"sync"

	algofft "github.com/cwbudde/algo-fft"
)

var planCache sync.Map // map[int]*fftPlan

type fftPlan struct {
	mu   sync.Mutex
	fast *algofft.FastPlanReal64
	safe *algofft.PlanRealT[float64, complex128]
}

func getPlan(n int) (*fftPlan, error) {
	if v, ok := planCache.Load(n); ok {
		return v.(*fftPlan), nil
	}

	p := &fftPlan{}
	fast, err := algofft.NewFastPlanReal64(n)
	if err == nil {
		p.fast = fast
	} else if !errors.Is(err, algofft.ErrNotImplemented) {
		// fall through to the safe plan
	}

	safe, err := algofft.NewPlanReal64(n)
	if err != nil {
		if p.fast == nil {
			return nil, err
		}
	} else {
		p.safe = safe
	}

	actual, _ := planCache.LoadOrStore(n, p)
	return actual.(*fftPlan), nil
}

func (p *fftPlan) forward(dst []complex128, src []float64) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.fast != nil {
		p.fast.Forward(dst, src)
		return nil
	}
	if p.safe != nil {
		return p.safe.Forward(dst, src)
	}
	return errors.New("spectral: missing FFT plan")
}

// Partial reports the strongest measured energy near one harmonic of the
// analyzed fundamental.
type Partial struct {
	Harmonic    int     // 1 = fundamental, 2 = first overtone, ...
	Frequency   float64 // Hz of the strongest bin near Harmonic*fundamental
	MagnitudeDB float64
}

// Report is the result of Analyze.
type Report struct {
	Fundamental   float64
	Partials      []Partial
	Inharmonicity float64 // quadratic deviation of measured partials from n*f0
}

// Analyze computes a Hann-windowed real FFT of samples and reports the
// strongest bin near each of the first numHarmonics of fundamental, plus a
// simple inharmonicity estimate. numHarmonics <= 0 defaults to 8.
func Analyze(samples []float64, sampleRate int, fundamental float64, numHarmonics int) Report {
	report := Report{Fundamental: fundamental}
	if sampleRate <= 0 || fundamental <= 0 || len(samples) < 512 {
		return report
	}
	if numHarmonics <= 0 {
		numHarmonics = 8
	}

	n := len(samples)
	n &^= 1 // real FFT plans require an even length
	if n < 512 {
		return report
	}
	x := samples[:n]

	win := make([]float64, n)
	for i := range win {
		w := 0.5 - 0.5*math.Cos(2*math.Pi*float64(i)/float64(n-1))
		win[i] = x[i] * w
	}

	bins := n / 2
	spec := make([]complex128, bins+1)

	plan, err := getPlan(n)
	if err == nil {
		if err := plan.forward(spec, win); err != nil {
			spec = naiveRealFFT(win, bins)
		}
	} else {
		spec = naiveRealFFT(win, bins)
	}

	binHz := float64(sampleRate) / float64(n)

	partials := make([]Partial, 0, numHarmonics)
	var sumSq, sumSqDev float64
	for h := 1; h <= numHarmonics; h++ {
		target := fundamental * float64(h)
		if target >= float64(sampleRate)/2 {
			break
		}
		centerBin := int(math.Round(target / binHz))
		lo := centerBin - 2
		hi := centerBin + 2
		if lo < 1 {
			lo = 1
		}
		if hi > bins {
			hi = bins
		}

		bestBin := lo
		bestMag := cmplx.Abs(spec[lo])
		for k := lo + 1; k <= hi; k++ {
			if m := cmplx.Abs(spec[k]); m > bestMag {
				bestMag = m
				bestBin = k
			}
		}

		freq := float64(bestBin) * binHz
		partials = append(partials, Partial{
			Harmonic:    h,
			Frequency:   freq,
			MagnitudeDB: linToDB(bestMag),
		})

		dev := freq - target
		sumSq += target * target
		sumSqDev += dev * dev
	}

	report.Partials = partials
	if sumSq > 0 {
		report.Inharmonicity = math.Sqrt(sumSqDev / sumSq)
	}
	return report
}

func naiveRealFFT(x []float64, bins int) []complex128 {
	n := len(x)
	out := make([]complex128, bins+1)
	for k := 0; k <= bins; k++ {
		var re, im float64
		for i := 0; i < n; i++ {
			phi := -2.0 * math.Pi * float64(k*i) / float64(n)
			re += x[i] * math.Cos(phi)
			im += x[i] * math.Sin(phi)
		}
		out[k] = complex(re, im)
	}
	return out
}

func linToDB(x float64) float64 {
	if x < 1e-12 {
		x = 1e-12
	}
	return 20.0 * math.Log10(x)
}
