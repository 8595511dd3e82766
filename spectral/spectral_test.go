package spectral

import (
	"math"
	"testing"
)

func TestAnalyzeReportsSecondPartialNearTwiceFundamental(t *testing.T) {
	const rate = 44100
	const f0 = 220.0
	n := 8192
	x := make([]float64, n)
	for i := range x {
		tt := float64(i) / float64(rate)
		x[i] = 1.0*math.Sin(2*math.Pi*f0*tt) +
			0.5*math.Sin(2*math.Pi*2*f0*tt) +
			0.25*math.Sin(2*math.Pi*3*f0*tt)
	}

	report := Analyze(x, rate, f0, 4)
	if len(report.Partials) < 2 {
		t.Fatalf("expected at least 2 partials, got %d", len(report.Partials))
	}
	second := report.Partials[1]
	if second.Harmonic != 2 {
		t.Fatalf("partials[1].Harmonic = %d, want 2", second.Harmonic)
	}
	want := 2 * f0
	if math.Abs(second.Frequency/want-1) > 0.005 {
		t.Errorf("second partial frequency = %v, want within 0.5%% of %v", second.Frequency, want)
	}
}

func TestAnalyzeHarmonicSeriesHasLowInharmonicity(t *testing.T) {
	const rate = 44100
	const f0 = 110.0
	n := 8192
	x := make([]float64, n)
	for i := range x {
		tt := float64(i) / float64(rate)
		for h := 1; h <= 5; h++ {
			x[i] += math.Sin(2*math.Pi*f0*float64(h)*tt) / float64(h)
		}
	}
	report := Analyze(x, rate, f0, 5)
	if report.Inharmonicity > 0.01 {
		t.Errorf("Inharmonicity = %v, want near 0 for a clean harmonic series", report.Inharmonicity)
	}
}

func TestAnalyzeShortOrInvalidInputReturnsEmptyReport(t *testing.T) {
	if r := Analyze(make([]float64, 10), 44100, 220, 4); len(r.Partials) != 0 {
		t.Error("expected no partials for a too-short block")
	}
	if r := Analyze(make([]float64, 8192), 0, 220, 4); len(r.Partials) != 0 {
		t.Error("expected no partials for sampleRate <= 0")
	}
	if r := Analyze(make([]float64, 8192), 44100, 0, 4); len(r.Partials) != 0 {
		t.Error("expected no partials for fundamental <= 0")
	}
}
