package dsp

import (
	"math"
	"testing"
)

func TestHighpassAttenuatesDC(t *testing.T) {
	f := NewHighpass(20, 44100, 0.707)
	var last float32
	for i := 0; i < 20000; i++ {
		last = f.Process(1.0)
	}
	if math.Abs(float64(last)) > 0.01 {
		t.Errorf("settled DC response = %v, want near 0", last)
	}
}

func TestHighpassPassesAudibleToneNearUnityGain(t *testing.T) {
	f := NewHighpass(20, 44100, 0.707)
	const freq = 440.0
	const rate = 44100.0
	var maxOut float32
	for i := 0; i < 4410; i++ {
		in := float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
		out := f.Process(in)
		if i > 2000 { // past the filter's settling transient
			if out > maxOut {
				maxOut = out
			}
		}
	}
	if maxOut < 0.9 {
		t.Errorf("steady-state peak = %v, want near 1.0 for a tone well above cutoff", maxOut)
	}
}

func TestLowpassAttenuatesHighFrequency(t *testing.T) {
	f := NewLowpass(200, 44100, 0.707)
	const freq = 10000.0
	const rate = 44100.0
	var maxOut float32
	for i := 0; i < 4410; i++ {
		in := float32(math.Sin(2 * math.Pi * freq * float64(i) / rate))
		out := f.Process(in)
		if i > 2000 {
			if abs32(out) > maxOut {
				maxOut = abs32(out)
			}
		}
	}
	if maxOut > 0.3 {
		t.Errorf("steady-state amplitude = %v, want well below 1.0 for a tone above cutoff", maxOut)
	}
}

func abs32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}

func TestDelayLineRoundTrip(t *testing.T) {
	d := NewDelayLine(8)
	for i := 0; i < 8; i++ {
		d.Write(float32(i))
	}
	// writePos now sits at the slot that's about to be overwritten, so
	// delay=1 is the most recently written sample and delay=size wraps
	// back to the oldest one still held.
	if got := d.Read(1); got != 7 {
		t.Errorf("Read(1) = %v, want 7 (most recently written)", got)
	}
	if got := d.Read(8); got != 0 {
		t.Errorf("Read(8) = %v, want 0 (oldest, one full buffer length ago)", got)
	}
}

func TestDelayLineAddAtScattersAheadOfWritePos(t *testing.T) {
	d := NewDelayLine(8)
	d.AddAt(0, 1.0)
	d.AddAt(2, 0.5)
	if got := d.Read(8); got != 1.0 {
		t.Errorf("Read(8) = %v, want 1.0 (AddAt(0,...) landed at the next write position)", got)
	}
	d.Write(0) // consume the AddAt(0,...) slot
	d.Write(0)
	if got := d.Read(8); got != 0.5 {
		t.Errorf("Read(8) = %v, want 0.5 (AddAt(2,...) two writes ahead)", got)
	}
}

func TestDelayLineReadFractionalInterpolates(t *testing.T) {
	d := NewDelayLine(4)
	for _, v := range []float32{0, 0, 10, 0} {
		d.Write(v)
	}
	// delay=1 is the last write (0), delay=2 the one before it (10); a
	// fractional delay of 1.5 should land halfway between them.
	if got := d.ReadFractional(1.5); math.Abs(float64(got)-5.0) > 1e-6 {
		t.Errorf("ReadFractional(1.5) = %v, want 5.0", got)
	}
}

func TestFlushDenormalsZeroesTinyValues(t *testing.T) {
	if FlushDenormals(1e-32) != 0 {
		t.Error("expected denormal-range value flushed to 0")
	}
	if FlushDenormals(1.0) != 1.0 {
		t.Error("expected a normal value to pass through unchanged")
	}
}
