// Package pitch implements the normalized-autocorrelation period estimator:
// the hard-engineering core of the detection pipeline. It is a pure function
// of its inputs — no I/O, no consumer callbacks, no error propagation beyond
// a well-defined failure result.
package pitch

import (
	"math"

	dspcore "github.com/cwbudde/algo-dsp/dsp/core"
)

// OctaveSubmultipleThreshold is the NAC strength required at each submultiple
// lag for the octave-correction loop to accept a shorter period.
const OctaveSubmultipleThreshold = 0.90

// NACBuffer holds the scratch normalized-autocorrelation array across calls
// to EstimatePeriod, amortizing its allocation. Its contents carry no
// meaning between calls; callers should not inspect it directly. A NACBuffer
// is not safe for concurrent use — pair one per analyzer goroutine.
type NACBuffer struct {
	nac    []float64
	minLag int // lowest lag index currently represented, i.e. minP-1 of the last call
}

// NewNACBuffer returns an empty scratch buffer ready for use with
// EstimatePeriod.
func NewNACBuffer() *NACBuffer {
	return &NACBuffer{}
}

func (b *NACBuffer) ensure(minP, maxP int) {
	need := maxP - minP + 3 // [minP-1, maxP+1] inclusive
	if cap(b.nac) < need {
		b.nac = make([]float64, need)
	} else {
		b.nac = b.nac[:need]
	}
	b.minLag = minP - 1
}

func (b *NACBuffer) at(lag int) float64 { return b.nac[lag-b.minLag] }
func (b *NACBuffer) set(lag int, v float64) {
	b.nac[lag-b.minLag] = v
}

// Result is the discriminated outcome of EstimatePeriod, replacing the
// source algorithm's sentinel-tuple return with an explicit Ok flag.
type Result struct {
	Period    float64 // fractional period, samples, after octave correction
	PeriodInt int      // integer lag of the pre-correction NAC peak
	Quality   float64  // NAC value at the pre-correction peak, in [0,1] when Ok
	Ok        bool
}

// EstimatePeriod returns a fractional period estimate, its integer peak
// lag, and a periodicity-quality score in [0,1], for the fundamental period
// of x within [minP, maxP] samples. octaveThreshold is the NAC strength
// required at each submultiple lag for correctOctave to accept a shorter
// period (config.Config.OctaveSubmultipleThreshold; OctaveSubmultipleThreshold
// in this package is that field's documented default).
//
// Preconditions are programmer contracts, not runtime errors: minP > 1,
// maxP > minP, and len(x) >= 2*maxP. Violating them panics.
func EstimatePeriod(x []float32, minP, maxP int, buf *NACBuffer, octaveThreshold float64) Result {
	if minP <= 1 {
		panic("pitch: minP must be > 1")
	}
	if maxP <= minP {
		panic("pitch: maxP must be > minP")
	}
	if len(x) < 2*maxP {
		panic("pitch: len(x) must be >= 2*maxP")
	}
	if buf == nil {
		buf = NewNACBuffer()
	}
	buf.ensure(minP, maxP)

	n := len(x)

	// Prefix sum of squares lets B(p) and E(p) be read off in O(1): B(p) is
	// the energy of x[0:n-p), E(p) is the energy of x[p:n).
	sqSum := make([]float64, n+1)
	for i := 0; i < n; i++ {
		v := float64(x[i])
		sqSum[i+1] = sqSum[i] + v*v
	}
	total := sqSum[n]

	for lag := minP - 1; lag <= maxP+1; lag++ {
		count := n - lag
		var ac float64
		for i := 0; i < count; i++ {
			ac += float64(x[i]) * float64(x[i+lag])
		}
		b := sqSum[count]
		e := total - sqSum[lag]

		var nac float64
		if b > 0 && e > 0 {
			nac = dspcore.FlushDenormals(ac / math.Sqrt(b*e))
		}
		buf.set(lag, nac)
	}

	best := minP
	bestVal := buf.at(minP)
	for p := minP + 1; p <= maxP; p++ {
		if v := buf.at(p); v > bestVal {
			bestVal = v
			best = p
		}
	}

	if bestVal <= buf.at(best-1) && bestVal <= buf.at(best+1) {
		return Result{}
	}

	l := buf.at(best - 1)
	m := buf.at(best)
	r := buf.at(best + 1)

	var delta float64
	denom := 2*m - l - r
	if denom != 0 {
		delta = 0.5 * (r - l) / denom
	}
	if math.Abs(delta) >= 0.2*float64(best) {
		delta = 0
	}

	period := float64(best) + delta
	if math.IsNaN(period) || math.IsInf(period, 0) {
		return Result{}
	}

	period = correctOctave(buf, best, period, minP, octaveThreshold)

	return Result{
		Period:    period,
		PeriodInt: best,
		Quality:   bestVal,
		Ok:        true,
	}
}

// correctOctave hypothesizes that the true period is period/m for integer
// m >= 1, trying m from high to low and accepting the first m for which
// every submultiple lag k*period/m (k in [1,m)) is still strongly periodic.
// m=1 always accepts, so the loop terminates.
func correctOctave(buf *NACBuffer, best int, period float64, minP int, octaveThreshold float64) float64 {
	bestVal := buf.at(best)
	for m := best / minP; m >= 1; m-- {
		ok := true
		for k := 1; k < m; k++ {
			idx := int(math.Round(float64(k) * period / float64(m)))
			if idx < buf.minLag || idx > buf.minLag+len(buf.nac)-1 {
				ok = false
				break
			}
			if buf.at(idx) < octaveThreshold*bestVal {
				ok = false
				break
			}
		}
		if ok {
			return period / float64(m)
		}
	}
	return period
}
